package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/lumea-app/lumea-backend/pkg/db/types"
	"github.com/lumea-app/lumea-backend/pkg/enums"
)

// Withdrawal is a host's request to convert earned coins into an INR payout.
// The coin amount is debited when the request is created, so a rejection
// refunds exactly what was reserved. Payout details are snapshotted so later
// profile edits never redirect an in-flight payout.
type Withdrawal struct {
	ID             uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PayeeAccountID uuid.UUID              `gorm:"column:payee_account_id;type:uuid;not null"`
	Status         enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status_enum;not null;default:pending"`

	Amount           int64                 `gorm:"column:amount;not null"`
	CommissionPct    int64                 `gorm:"column:commission_pct;not null"`
	CommissionAmount int64                 `gorm:"column:commission_amount;not null"`
	PayoutAmountINR  decimal.Decimal       `gorm:"column:payout_amount_inr;type:numeric(14,2);not null"`
	PayoutDetails    dbtypes.PayoutDetails `gorm:"column:payout_details;type:jsonb;not null"`

	TransactionID   *uuid.UUID `gorm:"column:transaction_id;type:uuid"`
	PayoutReference *string    `gorm:"column:payout_reference"`
	RejectionReason *string    `gorm:"column:rejection_reason"`
	ProcessedBy     *uuid.UUID `gorm:"column:processed_by;type:uuid"`
	ProcessedAt     *time.Time `gorm:"column:processed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
