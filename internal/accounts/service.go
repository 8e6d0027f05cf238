package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/pkg/db"
	"github.com/lumea-app/lumea-backend/pkg/db/models"
	dbtypes "github.com/lumea-app/lumea-backend/pkg/db/types"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// Service covers account reads, host directory listing, and the host-side
// profile mutations (rates, payout destination).
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	EnsureAccount(ctx context.Context, input EnsureAccountInput) (*models.Account, error)
	ListHosts(ctx context.Context, params ListHostsParams) ([]models.Account, *pagination.Cursor, error)
	UpdateRates(ctx context.Context, hostID uuid.UUID, input UpdateRatesInput) (*models.Account, error)
	UpdatePayoutDetails(ctx context.Context, hostID uuid.UUID, details dbtypes.PayoutDetails) (*models.Account, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// EnsureAccountInput creates an account on first authentication.
type EnsureAccountInput struct {
	Phone string
	Name  string
	Role  enums.AccountRole
}

// UpdateRatesInput carries per-service rate changes; nil fields are left as-is.
type UpdateRatesInput struct {
	ChatRate  *int64
	VoiceRate *int64
	VideoRate *int64
	Languages []string
	Bio       *string
}

type service struct {
	repo Repository
}

// NewService wires the accounts service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.repo.FindByID(ctx, id)
}

// EnsureAccount returns the account for the phone number, creating it when
// this is the first authentication. A concurrent first-auth race falls back
// to re-reading the row the winner created.
func (s *service) EnsureAccount(ctx context.Context, input EnsureAccountInput) (*models.Account, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	role := input.Role
	if role == "" {
		role = enums.AccountRoleUser
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid account role %q", role))
	}

	existing, err := s.repo.FindByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	account := &models.Account{
		Role:   role,
		Status: enums.AccountStatusActive,
		Name:   strings.TrimSpace(input.Name),
		Phone:  phone,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.repo.FindByPhone(ctx, phone)
		}
		return nil, err
	}
	return account, nil
}

func (s *service) ListHosts(ctx context.Context, params ListHostsParams) ([]models.Account, *pagination.Cursor, error) {
	if params.Service != nil && !params.Service.IsValid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid service type %q", *params.Service))
	}
	return s.repo.ListHosts(ctx, params)
}

func (s *service) UpdateRates(ctx context.Context, hostID uuid.UUID, input UpdateRatesInput) (*models.Account, error) {
	account, err := s.requireHost(ctx, hostID)
	if err != nil {
		return nil, err
	}

	for _, rate := range []*int64{input.ChatRate, input.VoiceRate, input.VideoRate} {
		if rate != nil && *rate < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "rates must not be negative")
		}
	}

	if input.ChatRate != nil {
		account.ChatRate = *input.ChatRate
	}
	if input.VoiceRate != nil {
		account.VoiceRate = *input.VoiceRate
	}
	if input.VideoRate != nil {
		account.VideoRate = *input.VideoRate
	}
	if input.Languages != nil {
		account.Languages = append([]string(nil), input.Languages...)
	}
	if input.Bio != nil {
		account.Bio = input.Bio
	}

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) UpdatePayoutDetails(ctx context.Context, hostID uuid.UUID, details dbtypes.PayoutDetails) (*models.Account, error) {
	account, err := s.requireHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if details.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout details are required")
	}
	if strings.TrimSpace(details.HolderName) == "" || strings.TrimSpace(details.AccountNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "holder name and account number are required")
	}

	account.PayoutDetails = &details
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Deactivate soft-disables the account. Rows are never hard-deleted while
// transactions reference them.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.repo.UpdateStatus(ctx, id, enums.AccountStatusDeactivated)
}

func (s *service) requireHost(ctx context.Context, hostID uuid.UUID) (*models.Account, error) {
	if hostID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host id is required")
	}
	account, err := s.repo.FindByID(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if account.Role != enums.AccountRoleHost {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not a host")
	}
	return account, nil
}
