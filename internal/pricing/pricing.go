// Package pricing holds the money math shared by the cart preview, order
// placement and quote conversion. Every function here is pure.
package pricing

import (
	"errors"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// Shipping methods
const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"
	ShippingPickup   = "pickup"
)

var (
	ErrCouponInactive  = errors.New("coupon is not active")
	ErrCouponExpired   = errors.New("coupon has expired")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	ErrCouponMinimum   = errors.New("order does not reach the coupon minimum")
	ErrUnknownShipping = errors.New("unknown shipping method")
	ErrUnknownPayment  = errors.New("unknown payment method")
	ErrInstallments    = errors.New("installments not allowed for this amount")
)

var hundred = decimal.NewFromInt(100)

// percentOf returns pct percent of amount, rounded to cents
func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

// TierDiscount returns the largest tier percent unlocked by qty, zero when none applies
func TierDiscount(tiers []domain.PriceTier, qty int) decimal.Decimal {
	best := decimal.Zero
	for _, t := range tiers {
		if t.MinQuantity <= qty && t.DiscountPercent.GreaterThan(best) {
			best = t.DiscountPercent
		}
	}
	return best
}

// BestPromotion returns the running promotion with the largest percent that
// covers the product directly, through its category, or store-wide.
func BestPromotion(promos []domain.Promotion, p domain.Product, now time.Time) *domain.Promotion {
	var best *domain.Promotion
	for i := range promos {
		promo := &promos[i]
		if !promo.Running(now) {
			continue
		}
		if promo.ProductID != nil && *promo.ProductID != p.ID {
			continue
		}
		if promo.CategoryID != nil && *promo.CategoryID != p.CategoryID {
			continue
		}
		if best == nil || promo.DiscountPercent.GreaterThan(best.DiscountPercent) {
			best = promo
		}
	}
	return best
}

// LinePrice prices qty units. The better of the tier and promotion percents
// applies; they never stack.
func LinePrice(unit decimal.Decimal, qty int, tierPct, promoPct decimal.Decimal) (pct, total decimal.Decimal) {
	pct = decimal.Max(tierPct, promoPct)
	gross := unit.Mul(decimal.NewFromInt(int64(qty)))
	return pct, gross.Sub(percentOf(gross, pct))
}

// ApplyCoupon returns the discount c grants on subtotal at now.
// A nil coupon grants nothing.
func ApplyCoupon(c *domain.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Zero, nil
	}
	switch {
	case !c.Active:
		return decimal.Zero, ErrCouponInactive
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return decimal.Zero, ErrCouponExpired
	case c.MaxUses > 0 && c.UsedCount >= c.MaxUses:
		return decimal.Zero, ErrCouponExhausted
	case subtotal.LessThan(c.MinOrderValue):
		return decimal.Zero, ErrCouponMinimum
	}
	var discount decimal.Decimal
	if c.Type == domain.CouponPercent {
		discount = percentOf(subtotal, c.Value)
	} else {
		discount = c.Value
	}
	return decimal.Min(discount, subtotal), nil
}

// Shipping returns the freight for method on a goods amount
func Shipping(s domain.CompanySettings, method string, amount decimal.Decimal) (decimal.Decimal, error) {
	switch method {
	case ShippingStandard, "":
		if FreeShippingRemaining(s, amount).IsZero() && s.FreeShippingThreshold.IsPositive() {
			return decimal.Zero, nil
		}
		return s.FlatShippingCost, nil
	case ShippingExpress:
		return s.ExpressShippingCost, nil
	case ShippingPickup:
		return decimal.Zero, nil
	}
	return decimal.Zero, ErrUnknownShipping
}

// FreeShippingRemaining is how much more the customer must buy for free
// standard shipping. Zero when reached or when the store offers none.
func FreeShippingRemaining(s domain.CompanySettings, amount decimal.Decimal) decimal.Decimal {
	if !s.FreeShippingThreshold.IsPositive() || amount.GreaterThanOrEqual(s.FreeShippingThreshold) {
		return decimal.Zero
	}
	return s.FreeShippingThreshold.Sub(amount)
}
