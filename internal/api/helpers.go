package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Promotion windows
	"unicode"  // Rune classes for slugs

	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/middleware" // Authenticated user
	"storefront/internal/pricing"    // Money math
	"storefront/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"       // Gin web framework
	"github.com/google/uuid"         // Public numbers
	"github.com/redis/go-redis/v9"   // Redis client
	"github.com/sirupsen/logrus"     // Logging library
	"golang.org/x/text/runes"        // Accent stripping
	"golang.org/x/text/transform"    // Transformer chain
	"golang.org/x/text/unicode/norm" // Unicode normalisation
	"gorm.io/gorm"                   // GORM ORM library
)

var (
	errCouponNotFound = errors.New("coupon not found")
	errOutOfStock     = errors.New("not enough stock")
	errProductGone    = errors.New("product is no longer available")
	errQuoteMoved     = errors.New("quote changed meanwhile")
)

// currentUser returns the authenticated user id or answers 401
func currentUser(c *gin.Context) (uint, bool) {
	userID, exists := middleware.UserID(c) // Get userID from context
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}

// paramID parses a numeric path parameter or answers 400
func paramID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// publicNumber returns a short upper-case id for orders and quotes
func publicNumber(prefix string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// loadSettings reads the settings row, falling back to defaults when missing
func loadSettings(db *gorm.DB) (domain.CompanySettings, error) {
	var s domain.CompanySettings
	err := db.First(&s, domain.SettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultSettings(), nil
	}
	return s, err
}

// runningPromotions loads the promotions active at now
func runningPromotions(db *gorm.DB, now time.Time) ([]domain.Promotion, error) {
	var promos []domain.Promotion
	err := db.Where("active = ? AND starts_at <= ? AND ends_at > ?", true, now, now).
		Order("discount_percent desc").
		Find(&promos).Error
	return promos, err
}

// findCoupon loads a coupon by code, case-insensitively; empty code is no coupon
func findCoupon(db *gorm.DB, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	var coupon domain.Coupon
	if err := db.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

// loadCart returns the user's cart with products and tiers, creating it on first use
func loadCart(db *gorm.DB, userID uint) (*domain.Cart, error) {
	cart := domain.Cart{UserID: userID}
	if err := db.Where(domain.Cart{UserID: userID}).FirstOrCreate(&cart).Error; err != nil {
		return nil, err
	}
	err := db.Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Preload("Items.Product").
		Preload("Items.Product.Tiers").
		First(&cart, cart.ID).Error
	return &cart, err
}

// pricingInput prices cart lines against the current catalog rules
func pricingInput(db *gorm.DB, items []domain.CartItem, couponCode string, now time.Time) (pricing.Input, error) {
	in := pricing.Input{Now: now}
	for _, it := range items {
		if it.Product == nil || !it.Product.Active {
			return in, errProductGone
		}
		in.Items = append(in.Items, pricing.Item{Product: *it.Product, Quantity: it.Quantity})
	}
	settings, err := loadSettings(db)
	if err != nil {
		return in, err
	}
	in.Settings = settings
	if in.Promotions, err = runningPromotions(db, now); err != nil {
		return in, err
	}
	if in.Coupon, err = findCoupon(db, couponCode); err != nil {
		return in, err
	}
	return in, nil
}

// pricingErrorStatus maps money-rule errors to a status and message
func pricingErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, errCouponNotFound):
		return http.StatusUnprocessableEntity, "Coupon not found", true
	case errors.Is(err, pricing.ErrCouponInactive),
		errors.Is(err, pricing.ErrCouponExpired),
		errors.Is(err, pricing.ErrCouponExhausted),
		errors.Is(err, pricing.ErrCouponMinimum),
		errors.Is(err, pricing.ErrUnknownShipping),
		errors.Is(err, pricing.ErrUnknownPayment),
		errors.Is(err, pricing.ErrInstallments):
		return http.StatusUnprocessableEntity, capitalize(err.Error()), true
	case errors.Is(err, errProductGone):
		return http.StatusConflict, "A product in the cart is no longer available", true
	}
	return 0, "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// invalidateCatalog drops every cached catalog read after a back-office write
func invalidateCatalog(rdb *redis.Client) {
	ctx := context.Background() // Context for Redis operations
	if err := utils.DeleteCachePrefix(ctx, rdb, utils.CacheProducts, utils.CacheCategories, utils.CachePromotions, utils.CacheSettings); err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to invalidate catalog cache")
	}
}

// adminName returns the acting admin's email for audit logs
func adminName(c *gin.Context) string {
	if v, ok := c.Get("adminUser"); ok {
		if u, ok := v.(domain.User); ok {
			return u.Email
		}
	}
	return ""
}

// slugify turns a name into a URL slug: accents stripped, lower-case, dashes
func slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// taken reports whether another row of model already uses value in column
func taken(db *gorm.DB, model any, column, value string, exceptID uint) (bool, error) {
	var n int64
	q := db.Model(model).Where(column+" = ?", value)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}
