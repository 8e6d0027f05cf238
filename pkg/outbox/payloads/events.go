package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/pkg/enums"
)

// WalletRechargedEvent signals a confirmed gateway payment credited as coins.
type WalletRechargedEvent struct {
	AccountID     uuid.UUID `json:"account_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Coins         int64     `json:"coins"`
	OrderID       string    `json:"order_id"`
	PlanID        string    `json:"plan_id,omitempty"`
}

// SessionStartedEvent is emitted when a metered session opens.
type SessionStartedEvent struct {
	SessionID      uuid.UUID         `json:"session_id"`
	PayerAccountID uuid.UUID         `json:"payer_account_id"`
	PayeeAccountID uuid.UUID         `json:"payee_account_id"`
	ServiceType    enums.ServiceType `json:"service_type"`
	RatePerMinute  int64             `json:"rate_per_minute"`
	StartTime      time.Time         `json:"start_time"`
}

// SessionSettledEvent carries the settlement result when a session ends.
type SessionSettledEvent struct {
	SessionID      uuid.UUID         `json:"session_id"`
	PayerAccountID uuid.UUID         `json:"payer_account_id"`
	PayeeAccountID uuid.UUID         `json:"payee_account_id"`
	ServiceType    enums.ServiceType `json:"service_type"`
	ElapsedSeconds int64             `json:"elapsed_seconds"`
	BilledUnits    int64             `json:"billed_units"`
	ShortfallUnits int64             `json:"shortfall_units"`
	Gross          int64             `json:"gross"`
	Commission     int64             `json:"commission"`
	Net            int64             `json:"net"`
	TransactionID  *uuid.UUID        `json:"transaction_id,omitempty"`
	EndTime        time.Time         `json:"end_time"`
}

// SessionCancelledEvent is emitted when a session terminates before any
// billable time elapsed.
type SessionCancelledEvent struct {
	SessionID      uuid.UUID `json:"session_id"`
	PayerAccountID uuid.UUID `json:"payer_account_id"`
	PayeeAccountID uuid.UUID `json:"payee_account_id"`
	CancelledAt    time.Time `json:"cancelled_at"`
}

// GiftSentEvent records an immediate gift settlement.
type GiftSentEvent struct {
	GiftID         uuid.UUID  `json:"gift_id"`
	PayerAccountID uuid.UUID  `json:"payer_account_id"`
	PayeeAccountID uuid.UUID  `json:"payee_account_id"`
	Quantity       int64      `json:"quantity"`
	Gross          int64      `json:"gross"`
	Commission     int64      `json:"commission"`
	Net            int64      `json:"net"`
	TransactionID  uuid.UUID  `json:"transaction_id"`
	SessionID      *uuid.UUID `json:"session_id,omitempty"`
}

// WithdrawalRequestedEvent signals a new coin payout reservation.
type WithdrawalRequestedEvent struct {
	WithdrawalID   uuid.UUID `json:"withdrawal_id"`
	PayeeAccountID uuid.UUID `json:"payee_account_id"`
	Amount         int64     `json:"amount"`
	Commission     int64     `json:"commission"`
	PayoutINR      string    `json:"payout_inr"`
}

// WithdrawalProcessedEvent is emitted on every admin state change of a
// withdrawal: processing, completed, or rejected.
type WithdrawalProcessedEvent struct {
	WithdrawalID    uuid.UUID              `json:"withdrawal_id"`
	PayeeAccountID  uuid.UUID              `json:"payee_account_id"`
	Status          enums.WithdrawalStatus `json:"status"`
	Amount          int64                  `json:"amount"`
	PayoutReference string                 `json:"payout_reference,omitempty"`
	Reason          string                 `json:"reason,omitempty"`
	ProcessedAt     time.Time              `json:"processed_at"`
}

// BalanceAdjustedEvent records a manual ledger adjustment by an admin.
type BalanceAdjustedEvent struct {
	AccountID     uuid.UUID `json:"account_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Delta         int64     `json:"delta"`
	Reason        string    `json:"reason,omitempty"`
}
