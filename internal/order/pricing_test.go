package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-ticketshop/internal/order"
)

func TestFinalPriceRoundsToCents(t *testing.T) {
	cases := []struct {
		initial float64
		percent float64
		want    float64
	}{
		{100.00, 0.10, 90.00},
		{100.00, 0.00, 100.00},
		{33.33, 0.15, 28.33},
		{0.01, 0.50, 0.01},
		{99.99, 0.333, 66.69},
	}
	for _, tc := range cases {
		got := order.FinalPrice(tc.initial, order.DiscountMultiplier(tc.percent))
		assert.InDelta(t, tc.want, got.InexactFloat64(), 1e-9, "%.2f at %.3f off", tc.initial, tc.percent)
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(18000), order.MinorUnits(180.00))
	assert.Equal(t, int64(50), order.MinorUnits(0.50))
	assert.Equal(t, int64(2833), order.MinorUnits(28.33))
	assert.Equal(t, int64(0), order.MinorUnits(0))
}
