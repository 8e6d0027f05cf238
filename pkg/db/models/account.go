package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	dbtypes "github.com/lumea-app/lumea-backend/pkg/db/types"
	"github.com/lumea-app/lumea-backend/pkg/enums"
)

// Account is the canonical wallet-holding identity. Balance is whole coins
// and is only ever mutated through the ledger repository's guarded updates.
type Account struct {
	ID           uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Role         enums.AccountRole   `gorm:"column:role;type:account_role_enum;not null;default:user"`
	Status       enums.AccountStatus `gorm:"column:status;type:account_status_enum;not null;default:active"`
	Name         string              `gorm:"column:name;not null"`
	Phone        string              `gorm:"column:phone;type:text;not null;uniqueIndex"`
	Email        *string             `gorm:"column:email"`
	Balance      int64               `gorm:"column:balance;not null;default:0"`
	LastActiveAt *time.Time          `gorm:"column:last_active_at"`

	// Host-only fields. Zero rates mean the service is not offered.
	CommissionPct int64                  `gorm:"column:commission_pct;not null;default:20"`
	ChatRate      int64                  `gorm:"column:chat_rate;not null;default:0"`
	VoiceRate     int64                  `gorm:"column:voice_rate;not null;default:0"`
	VideoRate     int64                  `gorm:"column:video_rate;not null;default:0"`
	Languages     pq.StringArray         `gorm:"column:languages;type:text[]"`
	Bio           *string                `gorm:"column:bio"`
	PayoutDetails *dbtypes.PayoutDetails `gorm:"column:payout_details;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// RateFor returns the per-minute coin rate for the given service type.
func (a Account) RateFor(service enums.ServiceType) int64 {
	switch service {
	case enums.ServiceTypeChat:
		return a.ChatRate
	case enums.ServiceTypeVoice:
		return a.VoiceRate
	case enums.ServiceTypeVideo:
		return a.VideoRate
	default:
		return 0
	}
}

// HasPayoutDetails reports whether a withdrawal destination has been captured.
func (a Account) HasPayoutDetails() bool {
	return a.PayoutDetails != nil && !a.PayoutDetails.IsZero()
}
