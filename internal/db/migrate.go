package db

import (
	"errors"                     // Error inspection
	"storefront/internal/domain" // Importing domain models
	"strings"                    // String normalisation

	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
)

// Open connects to MySQL
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

// Models lists every table the storefront owns, parents before children
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Category{},
		&domain.Product{},
		&domain.PriceTier{},
		&domain.ProductImage{},
		&domain.Review{},
		&domain.Promotion{},
		&domain.Coupon{},
		&domain.Cart{},
		&domain.CartItem{},
		&domain.Quote{},
		&domain.QuoteItem{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.Payment{},
		&domain.Lead{},
		&domain.CompanySettings{},
	}
}

// Migrate creates or updates the schema and seeds the settings row
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	settings := domain.DefaultSettings()
	// Only insert when missing so admin edits survive re-runs
	if err := db.FirstOrCreate(&settings, domain.CompanySettings{ID: domain.SettingsID}).Error; err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}

// SeedAdmin creates the first back-office account, or promotes an existing
// account with that email, so a fresh install can be administered
func SeedAdmin(db *gorm.DB, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil // Nothing to seed
	}
	var user domain.User
	err := db.Where("email = ?", email).First(&user).Error
	if err == nil {
		// Existing account: promote only
		return db.Model(&user).Update("role", domain.RoleAdmin).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user = domain.User{Name: "Administrator", Email: email, Password: string(hash), Role: domain.RoleAdmin}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	logrus.WithField("email", email).Info("Admin account created")
	return nil
}
