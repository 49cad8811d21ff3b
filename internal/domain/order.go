package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderPendingPayment = "pending_payment" // Placed, waiting for payment confirmation
	OrderPaid           = "paid"            // Payment approved
	OrderProcessing     = "processing"      // Being picked and packed
	OrderShipped        = "shipped"         // Handed to the carrier
	OrderDelivered      = "delivered"       // Received by the customer
	OrderCancelled      = "cancelled"       // Cancelled before shipping
)

// orderTransitions lists the statuses reachable from each status
var orderTransitions = map[string][]string{
	OrderPendingPayment: {OrderPaid, OrderCancelled},
	OrderPaid:           {OrderProcessing, OrderCancelled},
	OrderProcessing:     {OrderShipped, OrderCancelled},
	OrderShipped:        {OrderDelivered},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Customer is the contact captured by the checkout customer step
type Customer struct {
	Name     string `gorm:"size:120" json:"name"`    // Full name
	Email    string `gorm:"size:190" json:"email"`   // Email
	Phone    string `gorm:"size:30" json:"phone"`    // Phone
	Document string `gorm:"size:20" json:"document"` // CPF or CNPJ, digits only
}

// Address is the delivery address captured by the checkout address step
type Address struct {
	CEP        string `gorm:"size:9" json:"cep"`          // Postal code 00000-000
	Street     string `gorm:"size:200" json:"street"`     // Street
	Number     string `gorm:"size:20" json:"number"`      // House number
	Complement string `gorm:"size:100" json:"complement"` // Optional complement
	District   string `gorm:"size:100" json:"district"`   // Neighbourhood
	City       string `gorm:"size:100" json:"city"`       // City
	State      string `gorm:"size:2" json:"state"`        // Two-letter state
}

// Order Model
type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`                                // Primary key
	Number           string          `gorm:"size:20;uniqueIndex;not null" json:"number"`          // Public order number
	UserID           uint            `gorm:"index;not null" json:"user_id"`                       // Buyer
	Status           string          `gorm:"size:20;index;not null" json:"status"`                // Lifecycle status
	Customer         Customer        `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`   // Buyer contact
	Address          Address         `gorm:"embedded;embeddedPrefix:ship_" json:"address"`        // Delivery address
	ShippingMethod   string          `gorm:"size:20" json:"shipping_method"`                      // standard, express or pickup
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`         // Sum of list prices
	DiscountTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_total"`   // Tier and promotion discounts
	CouponCode       string          `gorm:"size:40" json:"coupon_code"`                          // Applied coupon
	CouponDiscount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"coupon_discount"`  // Coupon discount
	ShippingCost     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shipping_cost"`    // Freight
	PaymentMethod    string          `gorm:"size:20" json:"payment_method"`                       // pix, boleto or credit_card
	PaymentDiscount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"payment_discount"` // PIX discount
	Interest         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"interest"`         // Card installment interest
	Total            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`            // Amount to pay
	Installments     int             `gorm:"default:1" json:"installments"`                       // Card installments
	TrackingCode     string          `gorm:"size:40" json:"tracking_code"`                        // Carrier tracking code
	Notes            string          `gorm:"type:text" json:"notes"`                              // Customer notes
	QuoteID          *uint           `gorm:"index" json:"quote_id"`                               // Source quote, if converted
	PaymentClaimedAt *time.Time      `gorm:"index" json:"-"`                                      // Set while a payment is being created
	Items            []OrderItem     `gorm:"constraint:OnDelete:CASCADE;" json:"items"`           // Lines
	CreatedAt        time.Time       `json:"created_at"`                                          // Placement time
	UpdatedAt        time.Time       `json:"updated_at"`                                          // Last change
}

// OrderItem is a priced snapshot of a product at placement time
type OrderItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`                               // Primary key
	OrderID         uint            `gorm:"index;not null" json:"order_id"`                     // Owning order
	ProductID       *uint           `gorm:"index" json:"product_id"`                            // Product, nil for custom quote lines
	Name            string          `gorm:"size:200;not null" json:"name"`                      // Name at placement
	SKU             string          `gorm:"size:64" json:"sku"`                                 // SKU at placement
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`      // List price at placement
	Quantity        int             `gorm:"not null" json:"quantity"`                           // Units
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"` // Tier or promotion percent applied
	LineTotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`      // Discounted line amount
}
