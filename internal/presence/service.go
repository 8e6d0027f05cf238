package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
)

// Store is the subset of the redis client presence needs.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PresenceKey(accountID string) string
}

// Service tracks host availability as a TTL'd redis key. Clients heartbeat
// while connected; when the heartbeats stop the key expires and the host
// reads as offline without any cleanup pass.
type Service interface {
	Heartbeat(ctx context.Context, accountID uuid.UUID, status enums.PresenceStatus) error
	Get(ctx context.Context, accountID uuid.UUID) (enums.PresenceStatus, error)
	SetOffline(ctx context.Context, accountID uuid.UUID) error
}

type service struct {
	store Store
	ttl   time.Duration
}

// NewService wires the presence service with its redis store and heartbeat TTL.
func NewService(store Store, ttl time.Duration) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("presence store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("presence ttl must be positive")
	}
	return &service{store: store, ttl: ttl}, nil
}

func (s *service) Heartbeat(ctx context.Context, accountID uuid.UUID, status enums.PresenceStatus) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid presence status %q", status))
	}
	if status == enums.PresenceStatusOffline {
		return s.SetOffline(ctx, accountID)
	}
	return s.store.Set(ctx, s.store.PresenceKey(accountID.String()), status.String(), s.ttl)
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (enums.PresenceStatus, error) {
	if accountID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	value, err := s.store.Get(ctx, s.store.PresenceKey(accountID.String()))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return enums.PresenceStatusOffline, nil
		}
		return "", err
	}

	status, err := enums.ParsePresenceStatus(value)
	if err != nil {
		return enums.PresenceStatusOffline, nil
	}
	return status, nil
}

func (s *service) SetOffline(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.store.Del(ctx, s.store.PresenceKey(accountID.String()))
}
