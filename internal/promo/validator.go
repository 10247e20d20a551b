package promo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-ticketshop/internal/models"
)

var (
	ErrNotFound = errors.New("promo code not found")
	ErrInactive = errors.New("promo code is not active")
)

// Result distinguishes found-but-inactive from not-found: lookup callers get
// the record with a reason, apply callers pass mustBeActive and are rejected.
type Result struct {
	PromoCode *models.PromoCode
	Reason    string
}

// Multiplier is the factor applied to every item price when the code is used.
func (r *Result) Multiplier() float64 {
	return 1 - r.PromoCode.DiscountPercent
}

type Validator struct {
	Bun bun.IDB
}

func NewValidator(idb bun.IDB) *Validator {
	return &Validator{Bun: idb}
}

func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Validate looks up a code scoped to the event. An absent code is ErrNotFound.
// An inactive code is returned with a reason, unless mustBeActive is set, in
// which case it is rejected with ErrInactive.
func (v *Validator) Validate(ctx context.Context, eventID, code string, mustBeActive bool) (*Result, error) {
	var promoCode models.PromoCode
	err := v.Bun.NewSelect().
		Model(&promoCode).
		Where("event_id = ?", eventID).
		Where("code_hash = ?", HashCode(code)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up promo code: %w", err)
	}

	if promoCode.DiscountPercent < 0 || promoCode.DiscountPercent >= 1 {
		return nil, fmt.Errorf("promo code %s has invalid discount percent %v", promoCode.ID, promoCode.DiscountPercent)
	}

	if !promoCode.IsActive {
		if mustBeActive {
			return nil, ErrInactive
		}
		return &Result{PromoCode: &promoCode, Reason: "promo code is not active"}, nil
	}

	return &Result{PromoCode: &promoCode}, nil
}
