package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/pkg/enums"
)

// Transaction is the immutable ledger row behind every coin movement.
// Net = Gross - Commission always holds; the reference column carries the
// unique idempotency key for the movement.
type Transaction struct {
	ID             uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Kind           enums.TransactionKind   `gorm:"column:kind;type:transaction_kind_enum;not null"`
	Status         enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:completed"`
	PayerAccountID *uuid.UUID              `gorm:"column:payer_account_id;type:uuid"`
	PayeeAccountID *uuid.UUID              `gorm:"column:payee_account_id;type:uuid"`
	Gross          int64                   `gorm:"column:gross;not null"`
	Commission     int64                   `gorm:"column:commission;not null;default:0"`
	Net            int64                   `gorm:"column:net;not null"`
	Reference      string                  `gorm:"column:reference;type:text;not null;uniqueIndex:idx_transactions_reference"`
	Description    string                  `gorm:"column:description;not null;default:''"`
	Metadata       json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
}
