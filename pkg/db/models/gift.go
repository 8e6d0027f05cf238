package models

import (
	"time"

	"github.com/google/uuid"
)

// Gift is a catalog item purchasable with coins and settled immediately
// through the ledger.
type Gift struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string     `gorm:"column:name;not null"`
	Category   string     `gorm:"column:category;not null;default:'general'"`
	PriceCoins int64      `gorm:"column:price_coins;not null"`
	IconURL    *string    `gorm:"column:icon_url"`
	IsActive   bool       `gorm:"column:is_active;not null;default:true"`
	ValidFrom  *time.Time `gorm:"column:valid_from"`
	ValidUntil *time.Time `gorm:"column:valid_until"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableAt reports whether the gift may be sent at the given instant.
func (g Gift) AvailableAt(now time.Time) bool {
	if !g.IsActive {
		return false
	}
	if g.ValidFrom != nil && now.Before(*g.ValidFrom) {
		return false
	}
	if g.ValidUntil != nil && now.After(*g.ValidUntil) {
		return false
	}
	return true
}
