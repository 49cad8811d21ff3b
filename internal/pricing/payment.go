package pricing

import (
	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// Adjustment is what a payment method does to the amount due
type Adjustment struct {
	Discount         decimal.Decimal `json:"discount"`
	Interest         decimal.Decimal `json:"interest"`
	Total            decimal.Decimal `json:"total"`
	Installments     int             `json:"installments"`
	InstallmentValue decimal.Decimal `json:"installment_value"`
}

// Installment is one option offered on the card step
type Installment struct {
	Count        int             `json:"count"`
	Value        decimal.Decimal `json:"value"`
	Total        decimal.Decimal `json:"total"`
	InterestFree bool            `json:"interest_free"`
}

// PaymentAdjustment applies the method rules to goods plus shipping.
// PIX discounts the goods only; card interest is charged on everything.
func PaymentAdjustment(s domain.CompanySettings, method string, goods, shipping decimal.Decimal, installments int) (Adjustment, error) {
	amount := goods.Add(shipping)
	switch method {
	case "", domain.MethodBoleto:
		return Adjustment{Discount: decimal.Zero, Interest: decimal.Zero, Total: amount, Installments: 1, InstallmentValue: amount}, nil
	case domain.MethodPix:
		discount := percentOf(goods, s.PixDiscountPercent)
		total := amount.Sub(discount)
		return Adjustment{Discount: discount, Interest: decimal.Zero, Total: total, Installments: 1, InstallmentValue: total}, nil
	case domain.MethodCreditCard:
		if installments <= 0 {
			installments = 1
		}
		for _, opt := range InstallmentOptions(s, amount) {
			if opt.Count == installments {
				return Adjustment{
					Discount:         decimal.Zero,
					Interest:         opt.Total.Sub(amount),
					Total:            opt.Total,
					Installments:     opt.Count,
					InstallmentValue: opt.Value,
				}, nil
			}
		}
		return Adjustment{}, ErrInstallments
	}
	return Adjustment{}, ErrUnknownPayment
}

// InstallmentOptions lists the card plans for amount. A single payment is
// always offered; longer plans must keep each installment at or above the
// store minimum. Plans beyond the interest-free count use the Price table
// with the monthly rate from the settings.
func InstallmentOptions(s domain.CompanySettings, amount decimal.Decimal) []Installment {
	opts := []Installment{{Count: 1, Value: amount, Total: amount, InterestFree: true}}
	rate := s.InstallmentInterestPercent.Div(hundred)
	for n := 2; n <= s.MaxInstallments; n++ {
		count := decimal.NewFromInt(int64(n))
		var value decimal.Decimal
		free := n <= s.InterestFreeInstallments || !rate.IsPositive()
		if free {
			value = amount.Div(count).Round(2)
		} else {
			value = priceInstallment(amount, rate, n)
		}
		if value.LessThan(s.MinInstallmentValue) {
			break
		}
		total := value.Mul(count)
		if free {
			total = amount
		}
		opts = append(opts, Installment{Count: n, Value: value, Total: total, InterestFree: free})
	}
	return opts
}

// priceInstallment is P*r / (1 - (1+r)^-n), rounded to cents
func priceInstallment(amount, rate decimal.Decimal, n int) decimal.Decimal {
	factor := decimal.NewFromInt(1)
	growth := decimal.NewFromInt(1).Add(rate)
	for i := 0; i < n; i++ {
		factor = factor.Mul(growth)
	}
	// (1 - (1+r)^-n) == ((1+r)^n - 1) / (1+r)^n
	denom := factor.Sub(decimal.NewFromInt(1)).Div(factor)
	return amount.Mul(rate).Div(denom).Round(2)
}
