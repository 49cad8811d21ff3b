package domain

import "time"

// Lead is a contact or newsletter sign-up captured by the storefront
type Lead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`        // Primary key
	Name      string    `gorm:"size:120" json:"name"`        // Contact name
	Email     string    `gorm:"size:190;index" json:"email"` // Contact email
	Phone     string    `gorm:"size:30" json:"phone"`        // Contact phone
	Source    string    `gorm:"size:40" json:"source"`       // Where it was captured (footer, contact, popup)
	Message   string    `gorm:"type:text" json:"message"`    // Free text
	CreatedAt time.Time `json:"created_at"`                  // Capture time
}
