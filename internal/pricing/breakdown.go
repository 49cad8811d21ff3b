package pricing

import (
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// Item is one product and quantity to be priced
type Item struct {
	Product  domain.Product
	Quantity int
}

// Input carries everything needed to price a cart
type Input struct {
	Items          []Item
	Promotions     []domain.Promotion
	Coupon         *domain.Coupon
	Settings       domain.CompanySettings
	ShippingMethod string
	PaymentMethod  string
	Installments   int
	Now            time.Time
}

// Line is a priced item
type Line struct {
	ProductID       uint            `json:"product_id"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// Breakdown is the full price of a cart, in application order
type Breakdown struct {
	Lines                 []Line          `json:"lines"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountTotal         decimal.Decimal `json:"discount_total"`
	CouponCode            string          `json:"coupon_code,omitempty"`
	CouponDiscount        decimal.Decimal `json:"coupon_discount"`
	Shipping              decimal.Decimal `json:"shipping"`
	FreeShippingRemaining decimal.Decimal `json:"free_shipping_remaining"`
	PaymentDiscount       decimal.Decimal `json:"payment_discount"`
	Interest              decimal.Decimal `json:"interest"`
	Total                 decimal.Decimal `json:"total"`
	Installments          int             `json:"installments"`
	InstallmentValue      decimal.Decimal `json:"installment_value"`
}

// Calculate prices in. Line discounts come first, then the coupon on the
// discounted goods, then shipping on what is left, then the payment method.
func Calculate(in Input) (Breakdown, error) {
	b := Breakdown{Subtotal: decimal.Zero, DiscountTotal: decimal.Zero}
	net := decimal.Zero
	for _, it := range in.Items {
		p := it.Product
		tier := TierDiscount(p.Tiers, it.Quantity)
		promo := decimal.Zero
		if best := BestPromotion(in.Promotions, p, in.Now); best != nil {
			promo = best.DiscountPercent
		}
		pct, total := LinePrice(p.Price, it.Quantity, tier, promo)
		gross := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		b.Lines = append(b.Lines, Line{
			ProductID:       p.ID,
			Name:            p.Name,
			SKU:             p.SKU,
			UnitPrice:       p.Price,
			Quantity:        it.Quantity,
			DiscountPercent: pct,
			LineTotal:       total,
		})
		b.Subtotal = b.Subtotal.Add(gross)
		b.DiscountTotal = b.DiscountTotal.Add(gross.Sub(total))
		net = net.Add(total)
	}

	coupon, err := ApplyCoupon(in.Coupon, net, in.Now)
	if err != nil {
		return Breakdown{}, err
	}
	if in.Coupon != nil {
		b.CouponCode = in.Coupon.Code
	}
	b.CouponDiscount = coupon
	goods := net.Sub(coupon)

	shipping, err := Shipping(in.Settings, in.ShippingMethod, goods)
	if err != nil {
		return Breakdown{}, err
	}
	b.Shipping = shipping
	b.FreeShippingRemaining = FreeShippingRemaining(in.Settings, goods)

	adj, err := PaymentAdjustment(in.Settings, in.PaymentMethod, goods, shipping, in.Installments)
	if err != nil {
		return Breakdown{}, err
	}
	b.PaymentDiscount = adj.Discount
	b.Interest = adj.Interest
	b.Total = adj.Total
	b.Installments = adj.Installments
	b.InstallmentValue = adj.InstallmentValue
	return b, nil
}
