package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Promotion windows

	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/listing"    // Table params and paging
	"storefront/internal/middleware" // Request binding
	"storefront/internal/pricing"    // Promotion and line math
	"storefront/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// productListing is the public catalog table
var productListing = listing.Spec{
	Sortable:     map[string]string{"name": "name", "price": "price", "created_at": "created_at"},
	Filterable:   map[string]string{"category_id": "category_id"},
	Searchable:   []string{"name", "sku", "description"},
	DefaultSort:  "name",
	DefaultOrder: "asc",
}

// ProductPage is the product detail response
type ProductPage struct {
	Product     domain.Product    `json:"product"`      // Product with category, images and tiers
	Promotion   *domain.Promotion `json:"promotion"`    // Best running promotion, if any
	Price       decimal.Decimal   `json:"price"`        // Unit price after the promotion
	Rating      float64           `json:"rating"`       // Average approved rating
	ReviewCount int64             `json:"review_count"` // Approved reviews
	Reviews     []domain.Review   `json:"reviews"`      // Latest approved reviews
	Cached      bool              `json:"cached"`       // Product served from cache
}

// productsPage is the cached product table
type productsPage struct {
	listing.Page[domain.Product]
	Cached bool `json:"cached"` // Served from cache
}

// ReviewRequest is a product review submission
type ReviewRequest struct {
	AuthorName string `json:"author_name" binding:"omitempty,max=120"` // Shown name, defaults to the account name
	Rating     int    `json:"rating" binding:"required,min=1,max=5"`   // 1 to 5 stars
	Comment    string `json:"comment" binding:"max=2000"`              // Review text
}

// ListCategoriesHandler returns the active categories in menu order
func ListCategoriesHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()                  // Context for Redis operations
		cacheKey := utils.CacheCategories + "active" // Cache key
		var categories []domain.Category
		// Try to get categories from cache
		if found, _ := utils.GetCache(ctx, rdb, cacheKey, &categories); found {
			c.JSON(http.StatusOK, gin.H{"categories": categories, "cached": true})
			return
		}
		if err := db.Where("active = ?", true).Order("position asc, name asc").Find(&categories).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, categories, utils.CacheTTL) // Cache the result
		c.JSON(http.StatusOK, gin.H{"categories": categories, "cached": false})
	}
}

// ListProductsHandler returns a page of active products. The category query
// parameter takes a category slug; featured=true keeps highlighted products only.
func ListProductsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Context for Redis operations
		params := listing.ParseParams(c, productListing)
		slug := strings.TrimSpace(c.Query("category"))
		featured := c.Query("featured") == "true"
		cacheKey := params.CacheKey(utils.CacheProducts+"list:") + ":category=" + slug
		if featured {
			cacheKey += ":featured"
		}
		var cached productsPage
		// Try to get the page from cache
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			c.JSON(http.StatusOK, cached)
			return
		}
		query := db.Where("products.active = ?", true)
		if slug != "" {
			var category domain.Category
			if err := db.Where("slug = ? AND active = ?", slug, true).First(&category).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
				return
			}
			query = query.Where("category_id = ?", category.ID)
		}
		if featured {
			query = query.Where("featured = ?", true)
		}
		page, err := listing.Find[domain.Product](query, productListing, params, func(tx *gorm.DB) *gorm.DB {
			return tx.Preload("Category")
		})
		if err != nil {
			logrus.WithField("error", err.Error()).Error("Failed to list products")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		resp := productsPage{Page: page}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL) // Cache the result
		c.JSON(http.StatusOK, resp)
	}
}

// findActiveProduct loads an active product by slug with what the product page shows
func findActiveProduct(db *gorm.DB, slug string) (domain.Product, error) {
	var product domain.Product
	err := db.Where("slug = ? AND active = ?", slug, true).
		Preload("Category").
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc, id asc") }).
		Preload("Tiers", func(tx *gorm.DB) *gorm.DB { return tx.Order("min_quantity asc") }).
		First(&product).Error
	return product, err
}

// GetProductHandler returns the product page: product, promotion, rating and latest reviews
func GetProductHandler(db *gorm.DB, rdb *redis.Client, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Context for Redis operations
		slug := c.Param("slug")
		cacheKey := utils.CacheProducts + "slug:" + slug // Cache key
		var product domain.Product
		found, err := utils.GetCache(ctx, rdb, cacheKey, &product)
		if err != nil || !found {
			found = false
			if product, err = findActiveProduct(db, slug); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
				return
			}
			_ = utils.SetCache(ctx, rdb, cacheKey, product, utils.CacheTTL) // Cache the product
		}

		// Promotions depend on the clock, so they are never cached with the product
		t := now()
		promos, err := runningPromotions(db, t)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch promotions"})
			return
		}
		resp := ProductPage{Product: product, Price: product.Price, Reviews: []domain.Review{}, Cached: found}
		if best := pricing.BestPromotion(promos, product, t); best != nil {
			resp.Promotion = best
			_, resp.Price = pricing.LinePrice(product.Price, 1, decimal.Zero, best.DiscountPercent)
		}

		var stats struct {
			Avg   float64
			Count int64
		}
		if err := db.Model(&domain.Review{}).
			Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
			Where("product_id = ? AND approved = ?", product.ID, true).
			Scan(&stats).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
			return
		}
		resp.Rating = stats.Avg
		resp.ReviewCount = stats.Count
		if err := db.Where("product_id = ? AND approved = ?", product.ID, true).
			Order("created_at desc").Limit(5).Find(&resp.Reviews).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

var reviewListing = listing.Spec{
	Sortable:     map[string]string{"created_at": "created_at", "rating": "rating"},
	Filterable:   map[string]string{"rating": "rating"},
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

// ListReviewsHandler returns a page of a product's approved reviews
func ListReviewsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var product domain.Product
		if err := db.Select("id").Where("slug = ? AND active = ?", c.Param("slug"), true).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		params := listing.ParseParams(c, reviewListing)
		query := db.Where("product_id = ? AND approved = ?", product.ID, true)
		page, err := listing.Find[domain.Review](query, reviewListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// CreateReviewHandler stores a review for moderation
func CreateReviewHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req ReviewRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		var product domain.Product
		if err := db.Select("id").Where("slug = ? AND active = ?", c.Param("slug"), true).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		name := strings.TrimSpace(req.AuthorName)
		if name == "" {
			var user domain.User
			if err := db.Select("name").First(&user, userID).Error; err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			name = user.Name
		}
		review := domain.Review{
			ProductID:  product.ID,
			UserID:     &userID,
			AuthorName: name,
			Rating:     req.Rating,
			Comment:    strings.TrimSpace(req.Comment),
			Approved:   false, // Hidden until moderated
		}
		if err := db.Create(&review).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save review"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"product_id": product.ID, // Reviewed product
			"user_id":    userID,     // Author
			"rating":     req.Rating, // Stars
		}).Info("Review submitted")
		c.JSON(http.StatusCreated, gin.H{"message": "Review submitted for moderation", "review": review})
	}
}

// ListPromotionsHandler returns the promotions running now
func ListPromotionsHandler(db *gorm.DB, rdb *redis.Client, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Context for Redis operations
		t := now()
		// Keyed by minute so a promotion starting or ending shows up within a minute
		cacheKey := utils.CachePromotions + t.UTC().Format("200601021504")
		var promos []domain.Promotion
		if found, _ := utils.GetCache(ctx, rdb, cacheKey, &promos); found {
			c.JSON(http.StatusOK, gin.H{"promotions": promos})
			return
		}
		promos, err := runningPromotions(db, t)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch promotions"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, promos, time.Minute) // Cache for the minute
		c.JSON(http.StatusOK, gin.H{"promotions": promos})
	}
}

// PublicSettings is the part of the settings the storefront shows
type PublicSettings struct {
	StoreName                  string          `json:"store_name"`
	Email                      string          `json:"email"`
	Phone                      string          `json:"phone"`
	WhatsApp                   string          `json:"whatsapp"`
	Address                    string          `json:"address"`
	FreeShippingThreshold      decimal.Decimal `json:"free_shipping_threshold"`
	FlatShippingCost           decimal.Decimal `json:"flat_shipping_cost"`
	ExpressShippingCost        decimal.Decimal `json:"express_shipping_cost"`
	PixDiscountPercent         decimal.Decimal `json:"pix_discount_percent"`
	MaxInstallments            int             `json:"max_installments"`
	MinInstallmentValue        decimal.Decimal `json:"min_installment_value"`
	InterestFreeInstallments   int             `json:"interest_free_installments"`
	InstallmentInterestPercent decimal.Decimal `json:"installment_interest_percent"`
	Cached                     bool            `json:"cached"`
}

// PublicSettingsHandler returns the contact and payment rules shown in the storefront
func PublicSettingsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()                // Context for Redis operations
		cacheKey := utils.CacheSettings + "public" // Cache key
		var resp PublicSettings
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &resp); err == nil && found {
			resp.Cached = true // Indicate response is from cache
			c.JSON(http.StatusOK, resp)
			return
		}
		s, err := loadSettings(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
			return
		}
		resp = PublicSettings{
			StoreName:                  s.StoreName,
			Email:                      s.Email,
			Phone:                      s.Phone,
			WhatsApp:                   s.WhatsApp,
			Address:                    s.Address,
			FreeShippingThreshold:      s.FreeShippingThreshold,
			FlatShippingCost:           s.FlatShippingCost,
			ExpressShippingCost:        s.ExpressShippingCost,
			PixDiscountPercent:         s.PixDiscountPercent,
			MaxInstallments:            s.MaxInstallments,
			MinInstallmentValue:        s.MinInstallmentValue,
			InterestFreeInstallments:   s.InterestFreeInstallments,
			InstallmentInterestPercent: s.InstallmentInterestPercent,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL) // Cache the result
		c.JSON(http.StatusOK, resp)
	}
}
