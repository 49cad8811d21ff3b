package pricing

import (
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bolt := domain.Product{
		ID: 1, CategoryID: 1, Name: "Bolt", SKU: "B-1", Price: d("2.50"),
		Tiers: []domain.PriceTier{{MinQuantity: 100, DiscountPercent: d("10")}},
	}
	drill := domain.Product{ID: 2, CategoryID: 2, Name: "Drill", SKU: "D-1", Price: d("120.00")}
	promos := []domain.Promotion{{
		ID: 1, Active: true, DiscountPercent: d("5"), CategoryID: uintPtr(2),
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
	}}

	b, err := Calculate(Input{
		Items:          []Item{{Product: bolt, Quantity: 100}, {Product: drill, Quantity: 1}},
		Promotions:     promos,
		Coupon:         &domain.Coupon{Code: "WELCOME", Active: true, Type: domain.CouponFixed, Value: d("10")},
		Settings:       domain.DefaultSettings(),
		ShippingMethod: ShippingStandard,
		PaymentMethod:  domain.MethodPix,
		Now:            now,
	})
	require.NoError(t, err)

	require.Len(t, b.Lines, 2)
	assert.Equal(t, "225.00", b.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "10.00", b.Lines[0].DiscountPercent.StringFixed(2))
	assert.Equal(t, "114.00", b.Lines[1].LineTotal.StringFixed(2))

	assert.Equal(t, "370.00", b.Subtotal.StringFixed(2))
	assert.Equal(t, "31.00", b.DiscountTotal.StringFixed(2))
	assert.Equal(t, "10.00", b.CouponDiscount.StringFixed(2))
	assert.Equal(t, "WELCOME", b.CouponCode)
	// goods 329.00 clears the 299 threshold
	assert.True(t, b.Shipping.IsZero())
	assert.True(t, b.FreeShippingRemaining.IsZero())
	assert.Equal(t, "16.45", b.PaymentDiscount.StringFixed(2))
	assert.Equal(t, "312.55", b.Total.StringFixed(2))
}

func TestCalculate_BelowThresholdCardInterest(t *testing.T) {
	p := domain.Product{ID: 1, Name: "Kit", Price: d("200.00")}
	b, err := Calculate(Input{
		Items:          []Item{{Product: p, Quantity: 1}},
		Settings:       domain.DefaultSettings(),
		ShippingMethod: ShippingStandard,
		PaymentMethod:  domain.MethodCreditCard,
		Installments:   2,
		Now:            time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "19.90", b.Shipping.StringFixed(2))
	assert.Equal(t, "99.00", b.FreeShippingRemaining.StringFixed(2))
	assert.Equal(t, "219.90", b.Total.StringFixed(2))
	assert.Equal(t, 2, b.Installments)
	assert.Equal(t, "109.95", b.InstallmentValue.StringFixed(2))
}

func TestCalculate_CouponError(t *testing.T) {
	p := domain.Product{ID: 1, Name: "Kit", Price: d("20.00")}
	_, err := Calculate(Input{
		Items:  []Item{{Product: p, Quantity: 1}},
		Coupon: &domain.Coupon{Active: true, Type: domain.CouponFixed, Value: d("5"), MinOrderValue: d("50")},
		Now:    time.Now(),
	})
	assert.ErrorIs(t, err, ErrCouponMinimum)
}
