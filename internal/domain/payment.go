package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods
const (
	MethodPix        = "pix"         // Instant transfer through a QR code
	MethodBoleto     = "boleto"      // Bank slip
	MethodCreditCard = "credit_card" // Tokenised card, with installments
)

// ValidPaymentMethod reports whether m is a supported method
func ValidPaymentMethod(m string) bool {
	return m == MethodPix || m == MethodBoleto || m == MethodCreditCard
}

// Payment statuses
const (
	PaymentPending  = "pending"  // Created, waiting for the payer
	PaymentApproved = "approved" // Confirmed by the gateway
	PaymentRejected = "rejected" // Refused by the gateway
	PaymentExpired  = "expired"  // PIX or boleto not paid in time
	PaymentRefunded = "refunded" // Returned to the payer
)

// Payment is one attempt to pay an order through the remote gateway
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`                      // Primary key
	OrderID       uint            `gorm:"index;not null" json:"order_id"`            // Paid order
	Method        string          `gorm:"size:20;not null" json:"method"`            // pix, boleto or credit_card
	Status        string          `gorm:"size:20;index;not null" json:"status"`      // Gateway status
	GatewayID     string          `gorm:"size:100;index" json:"gateway_id"`          // Id on the gateway side
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"` // Charged amount
	Installments  int             `gorm:"default:1" json:"installments"`             // Card installments
	PixQRCode     string          `gorm:"type:text" json:"pix_qr_code,omitempty"`    // Base64 QR code image
	PixCopyPaste  string          `gorm:"type:text" json:"pix_copy_paste,omitempty"` // PIX copia e cola payload
	BoletoURL     string          `gorm:"size:500" json:"boleto_url,omitempty"`      // Printable slip
	BoletoBarcode string          `gorm:"size:100" json:"boleto_barcode,omitempty"`  // Typeable line
	DueDate       *time.Time      `json:"due_date,omitempty"`                        // Expiry for PIX and boleto
	LastCheckedAt *time.Time      `json:"last_checked_at,omitempty"`                 // Last status poll
	CreatedAt     time.Time       `json:"created_at"`                                // Creation time
	UpdatedAt     time.Time       `json:"updated_at"`                                // Last change
}

// Final reports whether the payment status can no longer change by polling
func (p Payment) Final() bool {
	return p.Status != PaymentPending
}
