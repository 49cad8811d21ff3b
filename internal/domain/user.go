package domain

import "time"

// User roles
const (
	RoleCustomer = "customer" // Storefront customer
	RoleAdmin    = "admin"    // Back-office operator
)

// User Model
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                       // Primary key
	Name      string    `gorm:"size:120;not null" json:"name"`              // Display name
	Email     string    `gorm:"size:190;uniqueIndex;not null" json:"email"` // Unique, lower-cased email
	Password  string    `gorm:"not null" json:"-"`                          // Hashed password
	Role      string    `gorm:"size:20;default:customer" json:"role"`       // Role: customer or admin
	Phone     string    `gorm:"size:30" json:"phone"`                       // Contact phone
	Document  string    `gorm:"size:20" json:"document"`                    // CPF or CNPJ
	CreatedAt time.Time `json:"created_at"`                                 // Registration time
}

// IsAdmin reports whether the user may use the back-office
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}
