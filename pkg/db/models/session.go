package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/pkg/enums"
)

// Session is a metered chat/voice/video engagement between a payer and a
// host. The rate is snapshotted at start so mid-call rate edits never change
// what an in-flight session bills. A partial unique index on
// (payer_account_id, payee_account_id) WHERE status = 'active' enforces one
// live session per pair.
type Session struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PayerAccountID uuid.UUID           `gorm:"column:payer_account_id;type:uuid;not null"`
	PayeeAccountID uuid.UUID           `gorm:"column:payee_account_id;type:uuid;not null"`
	ServiceType    enums.ServiceType   `gorm:"column:service_type;type:service_type_enum;not null"`
	Status         enums.SessionStatus `gorm:"column:status;type:session_status_enum;not null;default:active"`
	RatePerMinute  int64               `gorm:"column:rate_per_minute;not null"`
	CommissionPct  int64               `gorm:"column:commission_pct;not null"`

	StartTime      time.Time  `gorm:"column:start_time;not null"`
	EndTime        *time.Time `gorm:"column:end_time"`
	ElapsedSeconds int64      `gorm:"column:elapsed_seconds;not null;default:0"`

	// Settlement outcome, written once when the session leaves active.
	BilledUnits             int64      `gorm:"column:billed_units;not null;default:0"`
	ShortfallUnits          int64      `gorm:"column:shortfall_units;not null;default:0"`
	SettlementTransactionID *uuid.UUID `gorm:"column:settlement_transaction_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
