package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PromoCode is a discount code scoped to one event. The raw code is never
// stored, only its SHA-256 hex digest. DiscountPercent is a fraction in [0,1).
type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	ID              string    `bun:"id,pk" json:"id"`
	EventID         string    `bun:"event_id,notnull" json:"event_id"`
	Title           string    `bun:"title,notnull" json:"title"`
	CodeHash        string    `bun:"code_hash,notnull" json:"-"`
	DiscountPercent float64   `bun:"discount_percent,notnull" json:"discount_percent"`
	IsActive        bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
