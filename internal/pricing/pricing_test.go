package pricing

import (
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func uintPtr(v uint) *uint {
	return &v
}

func TestTierDiscount(t *testing.T) {
	tiers := []domain.PriceTier{
		{MinQuantity: 10, DiscountPercent: d("5")},
		{MinQuantity: 50, DiscountPercent: d("10")},
		{MinQuantity: 100, DiscountPercent: d("15")},
	}
	tests := []struct {
		qty  int
		want string
	}{
		{1, "0.00"},
		{9, "0.00"},
		{10, "5.00"},
		{49, "5.00"},
		{50, "10.00"},
		{500, "15.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierDiscount(tiers, tt.qty).StringFixed(2), "qty %d", tt.qty)
	}
	assert.True(t, TierDiscount(nil, 100).IsZero())
}

func TestBestPromotion(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	window := func(p domain.Promotion) domain.Promotion {
		p.Active = true
		p.StartsAt = now.Add(-time.Hour)
		p.EndsAt = now.Add(time.Hour)
		return p
	}
	product := domain.Product{ID: 7, CategoryID: 3}
	promos := []domain.Promotion{
		window(domain.Promotion{ID: 1, DiscountPercent: d("5")}),
		window(domain.Promotion{ID: 2, DiscountPercent: d("12"), CategoryID: uintPtr(3)}),
		window(domain.Promotion{ID: 3, DiscountPercent: d("30"), ProductID: uintPtr(8)}),
		{ID: 4, DiscountPercent: d("50"), Active: true, StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)},
	}

	best := BestPromotion(promos, product, now)
	require.NotNil(t, best)
	assert.Equal(t, uint(2), best.ID)

	assert.Nil(t, BestPromotion(promos[2:], product, now))
}

func TestLinePrice_DoesNotStack(t *testing.T) {
	pct, total := LinePrice(d("10.00"), 20, d("5"), d("8"))
	assert.Equal(t, "8.00", pct.StringFixed(2))
	assert.Equal(t, "184.00", total.StringFixed(2))

	pct, total = LinePrice(d("19.99"), 3, decimal.Zero, decimal.Zero)
	assert.True(t, pct.IsZero())
	assert.Equal(t, "59.97", total.StringFixed(2))
}

func TestApplyCoupon(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		coupon  *domain.Coupon
		sub     string
		want    string
		wantErr error
	}{
		{"nil coupon", nil, "100", "0.00", nil},
		{"percent", &domain.Coupon{Active: true, Type: domain.CouponPercent, Value: d("10")}, "150", "15.00", nil},
		{"fixed", &domain.Coupon{Active: true, Type: domain.CouponFixed, Value: d("20")}, "150", "20.00", nil},
		{"fixed capped at subtotal", &domain.Coupon{Active: true, Type: domain.CouponFixed, Value: d("200")}, "150", "150.00", nil},
		{"inactive", &domain.Coupon{Type: domain.CouponFixed, Value: d("20")}, "150", "", ErrCouponInactive},
		{"expired", &domain.Coupon{Active: true, Type: domain.CouponFixed, Value: d("20"), ExpiresAt: &past}, "150", "", ErrCouponExpired},
		{"not yet expired", &domain.Coupon{Active: true, Type: domain.CouponFixed, Value: d("20"), ExpiresAt: &future}, "150", "20.00", nil},
		{"exhausted", &domain.Coupon{Active: true, Type: domain.CouponFixed, Value: d("20"), MaxUses: 3, UsedCount: 3}, "150", "", ErrCouponExhausted},
		{"below minimum", &domain.Coupon{Active: true, Type: domain.CouponFixed, Value: d("20"), MinOrderValue: d("200")}, "150", "", ErrCouponMinimum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyCoupon(tt.coupon, d(tt.sub), now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestShipping(t *testing.T) {
	s := domain.DefaultSettings()

	free, err := Shipping(s, ShippingStandard, d("299"))
	require.NoError(t, err)
	assert.True(t, free.IsZero())

	flat, err := Shipping(s, ShippingStandard, d("298.99"))
	require.NoError(t, err)
	assert.Equal(t, "19.90", flat.StringFixed(2))

	express, err := Shipping(s, ShippingExpress, d("1000"))
	require.NoError(t, err)
	assert.Equal(t, "39.90", express.StringFixed(2))

	pickup, err := Shipping(s, ShippingPickup, d("10"))
	require.NoError(t, err)
	assert.True(t, pickup.IsZero())

	_, err = Shipping(s, "drone", d("10"))
	assert.ErrorIs(t, err, ErrUnknownShipping)

	s.FreeShippingThreshold = decimal.Zero
	noFree, err := Shipping(s, ShippingStandard, d("10000"))
	require.NoError(t, err)
	assert.Equal(t, "19.90", noFree.StringFixed(2))
}

func TestFreeShippingRemaining(t *testing.T) {
	s := domain.DefaultSettings()
	assert.Equal(t, "49.00", FreeShippingRemaining(s, d("250")).StringFixed(2))
	assert.True(t, FreeShippingRemaining(s, d("300")).IsZero())

	s.FreeShippingThreshold = decimal.Zero
	assert.True(t, FreeShippingRemaining(s, d("1")).IsZero())
}
