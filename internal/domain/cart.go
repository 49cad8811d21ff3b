package domain

import "time"

// Cart holds one customer's pending items, one cart per user
type Cart struct {
	ID        uint       `gorm:"primaryKey" json:"id"`                      // Primary key
	UserID    uint       `gorm:"uniqueIndex;not null" json:"user_id"`       // Owner
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE;" json:"items"` // Lines
	UpdatedAt time.Time  `json:"updated_at"`                                // Last change
}

// CartItem Model
type CartItem struct {
	ID        uint     `gorm:"primaryKey" json:"id"`             // Primary key
	CartID    uint     `gorm:"index;not null" json:"cart_id"`    // Owning cart
	ProductID uint     `gorm:"index;not null" json:"product_id"` // Product in the cart
	Product   *Product `json:"product,omitempty"`                // Preloaded product
	Quantity  int      `gorm:"not null" json:"quantity"`         // Units
}
