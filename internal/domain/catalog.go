package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category Model
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                      // Primary key
	Name        string    `gorm:"size:120;not null" json:"name"`             // Display name
	Slug        string    `gorm:"size:140;uniqueIndex;not null" json:"slug"` // URL slug
	Description string    `gorm:"type:text" json:"description"`              // Optional description
	ParentID    *uint     `gorm:"index" json:"parent_id"`                    // Parent category, nil for roots
	Active      bool      `gorm:"default:true" json:"active"`                // Visible in the storefront
	Position    int       `gorm:"default:0" json:"position"`                 // Sort position in menus
	CreatedAt   time.Time `json:"created_at"`                                // Creation time
}

// Product Model
type Product struct {
	ID             uint             `gorm:"primaryKey" json:"id"`                       // Primary key
	CategoryID     uint             `gorm:"index;not null" json:"category_id"`          // Owning category
	Category       *Category        `json:"category,omitempty"`                         // Preloaded category
	Name           string           `gorm:"size:200;not null" json:"name"`              // Display name
	Slug           string           `gorm:"size:220;uniqueIndex;not null" json:"slug"`  // URL slug
	SKU            string           `gorm:"size:64;uniqueIndex;not null" json:"sku"`    // Stock keeping unit
	Description    string           `gorm:"type:text" json:"description"`               // Long description
	Price          decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"price"`   // Unit price
	CompareAtPrice *decimal.Decimal `gorm:"type:decimal(12,2)" json:"compare_at_price"` // Struck-through "was" price
	Stock          int              `gorm:"not null;default:0" json:"stock"`            // Units available
	WeightGrams    int              `gorm:"default:0" json:"weight_grams"`              // Shipping weight
	ImageURL       string           `gorm:"size:500" json:"image_url"`                  // Cover image
	Images         []ProductImage   `gorm:"constraint:OnDelete:CASCADE;" json:"images"` // Gallery
	Active         bool             `gorm:"default:true" json:"active"`                 // Visible in the storefront
	Featured       bool             `gorm:"default:false" json:"featured"`              // Highlighted on the home page
	MinQuantity    int              `gorm:"not null;default:1" json:"min_quantity"`     // Minimum order quantity
	Tiers          []PriceTier      `gorm:"constraint:OnDelete:CASCADE;" json:"tiers"`  // Quantity discount tiers
	CreatedAt      time.Time        `json:"created_at"`                                 // Creation time
	UpdatedAt      time.Time        `json:"updated_at"`                                 // Last update
}

// PriceTier grants DiscountPercent off the unit price from MinQuantity units up
type PriceTier struct {
	ID              uint            `gorm:"primaryKey" json:"id"`                               // Primary key
	ProductID       uint            `gorm:"index;not null" json:"product_id"`                   // Owning product
	MinQuantity     int             `gorm:"not null" json:"min_quantity"`                       // Threshold quantity
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"` // Percent off
}

// ProductImage is one gallery picture stored in object storage
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`             // Primary key
	ProductID uint      `gorm:"index;not null" json:"product_id"` // Owning product
	Key       string    `gorm:"size:300;not null" json:"-"`       // Object storage key
	URL       string    `gorm:"size:500;not null" json:"url"`     // Public URL
	Position  int       `gorm:"default:0" json:"position"`        // Gallery order
	CreatedAt time.Time `json:"created_at"`                       // Upload time
}

// Review Model
type Review struct {
	ID         uint      `gorm:"primaryKey" json:"id"`                 // Primary key
	ProductID  uint      `gorm:"index;not null" json:"product_id"`     // Reviewed product
	UserID     *uint     `gorm:"index" json:"user_id"`                 // Author account, if any
	AuthorName string    `gorm:"size:120;not null" json:"author_name"` // Name shown publicly
	Rating     int       `gorm:"not null" json:"rating"`               // 1 to 5 stars
	Comment    string    `gorm:"type:text" json:"comment"`             // Review text
	Approved   bool      `gorm:"default:false" json:"approved"`        // Moderated and visible
	CreatedAt  time.Time `json:"created_at"`                           // Submission time
}

// Promotion Model
type Promotion struct {
	ID              uint            `gorm:"primaryKey" json:"id"`                               // Primary key
	Title           string          `gorm:"size:160;not null" json:"title"`                     // Banner title
	Description     string          `gorm:"type:text" json:"description"`                       // Banner text
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"` // Percent off
	ProductID       *uint           `gorm:"index" json:"product_id"`                            // Scoped to a product
	CategoryID      *uint           `gorm:"index" json:"category_id"`                           // Scoped to a category
	StartsAt        time.Time       `json:"starts_at"`                                          // Window start
	EndsAt          time.Time       `json:"ends_at"`                                            // Window end
	Active          bool            `gorm:"default:true" json:"active"`                         // Switched on by admin
	BannerURL       string          `gorm:"size:500" json:"banner_url"`                         // Optional banner image
	CreatedAt       time.Time       `json:"created_at"`                                         // Creation time
}

// Running reports whether the promotion applies at t
func (p Promotion) Running(t time.Time) bool {
	return p.Active && !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

// Coupon types
const (
	CouponPercent = "percent" // Value is a percentage of the subtotal
	CouponFixed   = "fixed"   // Value is a fixed amount
)

// Coupon Model
type Coupon struct {
	ID            uint            `gorm:"primaryKey" json:"id"`                                         // Primary key
	Code          string          `gorm:"size:40;uniqueIndex;not null" json:"code"`                     // Upper-cased code
	Type          string          `gorm:"size:10;not null" json:"type"`                                 // percent or fixed
	Value         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`                     // Percent or amount
	MinOrderValue decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_order_value"` // Minimum subtotal
	MaxUses       int             `gorm:"default:0" json:"max_uses"`                                    // 0 means unlimited
	UsedCount     int             `gorm:"default:0" json:"used_count"`                                  // Orders placed with it
	ExpiresAt     *time.Time      `json:"expires_at"`                                                   // Optional expiry
	Active        bool            `gorm:"default:true" json:"active"`                                   // Switched on by admin
	CreatedAt     time.Time       `json:"created_at"`                                                   // Creation time
}
