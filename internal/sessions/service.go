package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/internal/billing"
	"github.com/lumea-app/lumea-backend/internal/ledger"
	"github.com/lumea-app/lumea-backend/pkg/db"
	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/metrics"
	"github.com/lumea-app/lumea-backend/pkg/outbox"
	"github.com/lumea-app/lumea-backend/pkg/outbox/payloads"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type accountLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type presenceReader interface {
	Get(ctx context.Context, accountID uuid.UUID) (enums.PresenceStatus, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SettlementResult classifies how a session settled.
type SettlementResult string

const (
	// ResultSettled means the full elapsed charge was collected.
	ResultSettled SettlementResult = "settled"
	// ResultPartiallySettled means billed units were truncated to what the
	// payer balance could cover at settlement time.
	ResultPartiallySettled SettlementResult = "partially_settled"
	// ResultNothingBilled means the session ended without any charge.
	ResultNothingBilled SettlementResult = "nothing_billed"
)

// SettlementOutcome is the recorded result of ending a session. Replaying End
// on a settled session returns the same outcome without moving coins again.
type SettlementOutcome struct {
	Session        *models.Session
	Result         SettlementResult
	BilledUnits    int64
	ShortfallUnits int64
	Gross          int64
	Commission     int64
	Net            int64
	TransactionID  *uuid.UUID
}

// StartInput opens a metered session.
type StartInput struct {
	PayerID     uuid.UUID
	PayeeID     uuid.UUID
	ServiceType enums.ServiceType
}

// EndInput settles a session. A nil ActorID marks a system-initiated end
// (inactivity sweeper); user-initiated ends must come from either party.
type EndInput struct {
	SessionID uuid.UUID
	ActorID   uuid.UUID
}

// Service is the session meter: it opens metered engagements and settles
// them exactly once.
type Service interface {
	Start(ctx context.Context, input StartInput) (*models.Session, error)
	End(ctx context.Context, input EndInput) (*SettlementOutcome, error)
	Cancel(ctx context.Context, sessionID, actorID uuid.UUID) (*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	History(ctx context.Context, params ListSessionsParams) ([]models.Session, *pagination.Cursor, error)
	SweepStale(ctx context.Context, staleAge time.Duration, limit int) (int, error)
}

// ServiceParams groups the session service dependencies.
type ServiceParams struct {
	Tx        txRunner
	Repo      Repository
	Ledger    ledger.Service
	Accounts  accountLoader
	Presence  presenceReader
	Outbox    outboxPublisher
	Metrics   *metrics.SettlementMetrics
	Logger    *logger.Logger
	MaxLength time.Duration
}

type service struct {
	tx        txRunner
	repo      Repository
	ledger    ledger.Service
	accounts  accountLoader
	presence  presenceReader
	outbox    outboxPublisher
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	maxLength time.Duration
	now       func() time.Time
}

// NewService wires the session meter.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sessions repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account loader required")
	}
	if params.Presence == nil {
		return nil, fmt.Errorf("presence reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxLength := params.MaxLength
	if maxLength <= 0 {
		maxLength = 4 * time.Hour
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		ledger:    params.Ledger,
		accounts:  params.Accounts,
		presence:  params.Presence,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		maxLength: maxLength,
		now:       time.Now,
	}, nil
}

func (s *service) Start(ctx context.Context, input StartInput) (*models.Session, error) {
	if input.PayerID == uuid.Nil || input.PayeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee ids are required")
	}
	if input.PayerID == input.PayeeID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee must differ")
	}
	if !input.ServiceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid service type %q", input.ServiceType))
	}

	payee, err := s.accounts.FindByID(ctx, input.PayeeID)
	if err != nil {
		return nil, err
	}
	if payee.Role != enums.AccountRoleHost || payee.Status != enums.AccountStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodePayeeUnavailable, "payee is not an active host")
	}
	rate := payee.RateFor(input.ServiceType)
	if rate <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodePayeeUnavailable, fmt.Sprintf("host does not offer %s", input.ServiceType))
	}
	status, err := s.presence.Get(ctx, input.PayeeID)
	if err != nil {
		return nil, err
	}
	if status != enums.PresenceStatusOnline {
		return nil, pkgerrors.New(pkgerrors.CodePayeeUnavailable, "host is not online")
	}

	payer, err := s.accounts.FindByID(ctx, input.PayerID)
	if err != nil {
		return nil, err
	}
	if payer.Status != enums.AccountStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payer account is deactivated")
	}
	// Pre-flight only: one minute must be affordable now. No hold is taken;
	// settlement re-checks against the live balance.
	if payer.Balance < rate {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance does not cover one minute at the host's rate")
	}

	if existing, err := s.repo.FindActiveByPair(ctx, input.PayerID, input.PayeeID); err == nil {
		return existing, nil
	} else if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	session := &models.Session{
		PayerAccountID: input.PayerID,
		PayeeAccountID: input.PayeeID,
		ServiceType:    input.ServiceType,
		Status:         enums.SessionStatusActive,
		RatePerMinute:  rate,
		CommissionPct:  payee.CommissionPct,
		StartTime:      s.now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, session); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionStarted,
			AggregateType: enums.AggregateSession,
			AggregateID:   session.ID,
			Actor:         &outbox.ActorRef{AccountID: input.PayerID, Role: string(enums.AccountRoleUser)},
			Data: payloads.SessionStartedEvent{
				SessionID:      session.ID,
				PayerAccountID: session.PayerAccountID,
				PayeeAccountID: session.PayeeAccountID,
				ServiceType:    session.ServiceType,
				RatePerMinute:  session.RatePerMinute,
				StartTime:      session.StartTime,
			},
		})
	})
	if err != nil {
		// Lost the find-or-create race; the concurrent starter's row wins.
		if db.IsUniqueViolation(err, activePairIndex) {
			return s.repo.FindActiveByPair(ctx, input.PayerID, input.PayeeID)
		}
		return nil, err
	}
	return session, nil
}

// End is the single settlement point. The session row is locked for the whole
// unit of work, so a retried End observes the terminal status and replays the
// recorded outcome instead of charging again.
func (s *service) End(ctx context.Context, input EndInput) (*SettlementOutcome, error) {
	if input.SessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	var (
		outcome  *SettlementOutcome
		replayed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		session, err := repo.FindByIDForUpdate(ctx, input.SessionID)
		if err != nil {
			return err
		}
		if err := requireParticipant(session, input.ActorID); err != nil {
			return err
		}
		if session.Status.IsTerminal() {
			outcome = replayOutcome(session)
			replayed = true
			return nil
		}

		now := s.now().UTC()
		elapsed := now.Sub(session.StartTime)
		if elapsed > s.maxLength {
			elapsed = s.maxLength
		}
		if elapsed < time.Second {
			elapsed = time.Second
		}

		fullUnits, _, err := billing.ComputeCharge(session.RatePerMinute, elapsed)
		if err != nil {
			return err
		}

		payer, err := s.ledger.LockAccount(ctx, tx, session.PayerAccountID)
		if err != nil {
			return err
		}

		units := fullUnits
		if affordable := billing.AffordableUnits(payer.Balance, session.RatePerMinute); affordable < units {
			units = affordable
		}
		gross := units * session.RatePerMinute
		shortfall := fullUnits - units

		var commission, net int64
		var transactionID *uuid.UUID
		if units > 0 {
			commission, net, err = billing.Split(gross, int(session.CommissionPct))
			if err != nil {
				return err
			}
			transaction, err := s.ledger.TransferTx(ctx, tx, ledger.TransferInput{
				PayerID:     session.PayerAccountID,
				PayeeID:     session.PayeeAccountID,
				Gross:       gross,
				Commission:  commission,
				Kind:        enums.TransactionKindSessionPayment,
				Reference:   sessionReference(session.ID),
				Description: fmt.Sprintf("%s session settlement", session.ServiceType),
			})
			if err != nil {
				if pkgerrors.HasCode(err, pkgerrors.CodeDuplicateReference) {
					return pkgerrors.Wrap(pkgerrors.CodeDuplicateReference, err, "session already settled")
				}
				return err
			}
			transactionID = &transaction.ID
		}

		session.Status = enums.SessionStatusEnded
		session.EndTime = &now
		session.ElapsedSeconds = int64(elapsed / time.Second)
		session.BilledUnits = units
		session.ShortfallUnits = shortfall
		session.SettlementTransactionID = transactionID
		if err := repo.Update(ctx, session); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSessionSettled,
			AggregateType: enums.AggregateSession,
			AggregateID:   session.ID,
			Data: payloads.SessionSettledEvent{
				SessionID:      session.ID,
				PayerAccountID: session.PayerAccountID,
				PayeeAccountID: session.PayeeAccountID,
				ServiceType:    session.ServiceType,
				ElapsedSeconds: session.ElapsedSeconds,
				BilledUnits:    units,
				ShortfallUnits: shortfall,
				Gross:          gross,
				Commission:     commission,
				Net:            net,
				TransactionID:  transactionID,
				EndTime:        now,
			},
		}
		if input.ActorID != uuid.Nil {
			event.Actor = &outbox.ActorRef{AccountID: input.ActorID}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		outcome = &SettlementOutcome{
			Session:        session,
			Result:         classify(units, shortfall),
			BilledUnits:    units,
			ShortfallUnits: shortfall,
			Gross:          gross,
			Commission:     commission,
			Net:            net,
			TransactionID:  transactionID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.recordMetrics(ctx, outcome)
	}
	return outcome, nil
}

// cancelGrace is how long after Start a session still counts as never
// connected. Past it the elapsed time is billable and only End may
// terminate the session.
const cancelGrace = 30 * time.Second

// Cancel terminates a session that never delivered service. Anything with
// billable elapsed time must go through End.
func (s *service) Cancel(ctx context.Context, sessionID, actorID uuid.UUID) (*models.Session, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	var cancelled *models.Session
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := requireParticipant(session, actorID); err != nil {
			return err
		}
		if session.Status == enums.SessionStatusCancelled {
			cancelled = session
			return nil
		}
		if session.Status != enums.SessionStatusActive {
			return pkgerrors.New(pkgerrors.CodeSessionNotActive, "session already settled")
		}

		now := s.now().UTC()
		if now.Sub(session.StartTime) > cancelGrace {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "session has billable elapsed time; settle it through end")
		}
		session.Status = enums.SessionStatusCancelled
		session.EndTime = &now
		if err := repo.Update(ctx, session); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSessionCancelled,
			AggregateType: enums.AggregateSession,
			AggregateID:   session.ID,
			Data: payloads.SessionCancelledEvent{
				SessionID:      session.ID,
				PayerAccountID: session.PayerAccountID,
				PayeeAccountID: session.PayeeAccountID,
				CancelledAt:    now,
			},
		}
		if actorID != uuid.Nil {
			event.Actor = &outbox.ActorRef{AccountID: actorID}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		cancelled = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) History(ctx context.Context, params ListSessionsParams) ([]models.Session, *pagination.Cursor, error) {
	if params.AccountID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.repo.ListByAccount(ctx, params)
}

// SweepStale settles active sessions whose start time is older than staleAge.
// A lost client connection never leaves elapsed service unbilled.
func (s *service) SweepStale(ctx context.Context, staleAge time.Duration, limit int) (int, error) {
	if staleAge <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "stale age must be positive")
	}
	if limit <= 0 {
		limit = 100
	}

	cutoff := s.now().UTC().Add(-staleAge)
	stale, err := s.repo.ListStaleActive(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	swept := 0
	var errs []error
	for _, session := range stale {
		if _, err := s.End(ctx, EndInput{SessionID: session.ID}); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("stale session sweep failed for %s", session.ID), err)
			errs = append(errs, fmt.Errorf("sweep session %s: %w", session.ID, err))
			continue
		}
		swept++
	}
	return swept, multierr.Combine(errs...)
}

func (s *service) recordMetrics(ctx context.Context, outcome *SettlementOutcome) {
	if outcome == nil {
		return
	}
	s.metrics.RecordSettlement(string(enums.TransactionKindSessionPayment), string(outcome.Result), outcome.Gross, outcome.Commission)
	s.metrics.ObserveBilledUnits(outcome.BilledUnits)
	if outcome.ShortfallUnits > 0 {
		s.metrics.AddShortfall(outcome.ShortfallUnits)
		s.logg.Warn(ctx, fmt.Sprintf("session %s settled short by %d units", outcome.Session.ID, outcome.ShortfallUnits))
	}
}

func requireParticipant(session *models.Session, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return nil
	}
	if actorID != session.PayerAccountID && actorID != session.PayeeAccountID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only a session participant may end it")
	}
	return nil
}

func replayOutcome(session *models.Session) *SettlementOutcome {
	gross := session.BilledUnits * session.RatePerMinute
	commission := gross * session.CommissionPct / 100
	return &SettlementOutcome{
		Session:        session,
		Result:         classify(session.BilledUnits, session.ShortfallUnits),
		BilledUnits:    session.BilledUnits,
		ShortfallUnits: session.ShortfallUnits,
		Gross:          gross,
		Commission:     commission,
		Net:            gross - commission,
		TransactionID:  session.SettlementTransactionID,
	}
}

func classify(units, shortfall int64) SettlementResult {
	switch {
	case units == 0:
		return ResultNothingBilled
	case shortfall > 0:
		return ResultPartiallySettled
	default:
		return ResultSettled
	}
}

func sessionReference(sessionID uuid.UUID) string {
	return "session_" + sessionID.String()
}
