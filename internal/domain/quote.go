package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote statuses
const (
	QuotePending   = "pending"   // Submitted, waiting for the back-office
	QuotePriced    = "priced"    // Priced by an admin, waiting for the customer
	QuoteApproved  = "approved"  // Accepted, may be converted to an order
	QuoteRejected  = "rejected"  // Declined
	QuoteConverted = "converted" // Turned into an order
)

// Quote is a custom order request awaiting manual pricing and approval
type Quote struct {
	ID          uint             `gorm:"primaryKey" json:"id"`                       // Primary key
	Number      string           `gorm:"size:20;uniqueIndex;not null" json:"number"` // Public quote number
	UserID      *uint            `gorm:"index" json:"user_id"`                       // Account, when logged in
	Name        string           `gorm:"size:120;not null" json:"name"`              // Contact name
	Email       string           `gorm:"size:190;not null" json:"email"`             // Contact email
	Phone       string           `gorm:"size:30" json:"phone"`                       // Contact phone
	Company     string           `gorm:"size:160" json:"company"`                    // Company name
	Document    string           `gorm:"size:20" json:"document"`                    // CPF or CNPJ
	Message     string           `gorm:"type:text" json:"message"`                   // Request details
	Status      string           `gorm:"size:20;index;not null" json:"status"`       // Lifecycle status
	QuotedTotal *decimal.Decimal `gorm:"type:decimal(12,2)" json:"quoted_total"`     // Price offered by the back-office
	AdminNotes  string           `gorm:"type:text" json:"admin_notes"`               // Notes shown with the price
	OrderID     *uint            `gorm:"index" json:"order_id"`                      // Order created on conversion
	Items       []QuoteItem      `gorm:"constraint:OnDelete:CASCADE;" json:"items"`  // Requested lines
	CreatedAt   time.Time        `json:"created_at"`                                 // Submission time
	UpdatedAt   time.Time        `json:"updated_at"`                                 // Last change
}

// QuoteItem is one requested line, either a catalog product or free text
type QuoteItem struct {
	ID          uint             `gorm:"primaryKey" json:"id"`                 // Primary key
	QuoteID     uint             `gorm:"index;not null" json:"quote_id"`       // Owning quote
	ProductID   *uint            `gorm:"index" json:"product_id"`              // Catalog product, if any
	Description string           `gorm:"size:300" json:"description"`          // Free-text description
	Quantity    int              `gorm:"not null" json:"quantity"`             // Units requested
	UnitPrice   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"` // Filled in when priced
}
