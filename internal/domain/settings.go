package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettingsID is the primary key of the single settings row
const SettingsID = 1

// CompanySettings holds the store-wide configuration edited in the back-office
type CompanySettings struct {
	ID                         uint            `gorm:"primaryKey" json:"-"`                                                      // Always SettingsID
	StoreName                  string          `gorm:"size:160" json:"store_name"`                                               // Store name
	Email                      string          `gorm:"size:190" json:"email"`                                                    // Contact email
	Phone                      string          `gorm:"size:30" json:"phone"`                                                     // Contact phone
	WhatsApp                   string          `gorm:"size:30" json:"whatsapp"`                                                  // WhatsApp number
	Address                    string          `gorm:"size:300" json:"address"`                                                  // Street address
	Document                   string          `gorm:"size:20" json:"document"`                                                  // Company CNPJ
	FreeShippingThreshold      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"free_shipping_threshold"`     // 0 disables free shipping
	FlatShippingCost           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"flat_shipping_cost"`          // Standard freight
	ExpressShippingCost        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"express_shipping_cost"`       // Express freight
	PixDiscountPercent         decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"pix_discount_percent"`         // Discount for PIX
	BoletoDueDays              int             `gorm:"default:3" json:"boleto_due_days"`                                         // Days until a boleto expires
	MaxInstallments            int             `gorm:"default:12" json:"max_installments"`                                       // Card installment cap
	MinInstallmentValue        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_installment_value"`       // Smallest installment allowed
	InstallmentInterestPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"installment_interest_percent"` // Monthly interest
	InterestFreeInstallments   int             `gorm:"default:1" json:"interest_free_installments"`                              // Installments without interest
	UpdatedAt                  time.Time       `json:"updated_at"`                                                               // Last change
}

// DefaultSettings is seeded by the migration when no settings row exists
func DefaultSettings() CompanySettings {
	return CompanySettings{
		ID:                         SettingsID,
		StoreName:                  "Storefront",
		FreeShippingThreshold:      decimal.NewFromInt(299),
		FlatShippingCost:           decimal.RequireFromString("19.90"),
		ExpressShippingCost:        decimal.RequireFromString("39.90"),
		PixDiscountPercent:         decimal.NewFromInt(5),
		BoletoDueDays:              3,
		MaxInstallments:            12,
		MinInstallmentValue:        decimal.NewFromInt(50),
		InstallmentInterestPercent: decimal.RequireFromString("1.99"),
		InterestFreeInstallments:   3,
	}
}
