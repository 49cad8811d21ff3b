package api

import (
	"time" // Clock for pricing and payments

	"storefront/internal/middleware" // Auth, admin, rate limit
	"storefront/internal/payment"    // Remote payment functions
	"storefront/internal/storage"    // Product image storage

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps holds what the handlers need
type Deps struct {
	DB        *gorm.DB                // Database
	Redis     *redis.Client           // Cache, nil disables caching
	Gateway   payment.Gateway         // Remote payment and tracking functions
	Storage   storage.ObjectStorage   // Product images, nil disables uploads
	JWTSecret string                  // Token signing key
	Limiter   *middleware.RateLimiter // Public write limiter
	Now       func() time.Time        // Clock, time.Now when nil
}

func (d Deps) clock() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

// Register mounts every route on r
func Register(r *gin.Engine, d Deps) {
	db, rdb, now := d.DB, d.Redis, d.clock()
	auth := middleware.JWTAuthMiddleware(d.JWTSecret)
	optional := middleware.OptionalJWTMiddleware(d.JWTSecret)
	limit := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.Handler()
	}

	// Auth routes
	r.POST("/auth/register", limit, RegisterHandler(db))        // Registration endpoint
	r.POST("/auth/login", limit, LoginHandler(db, d.JWTSecret)) // Login endpoint
	r.GET("/me", auth, MeHandler(db))                           // Current user

	// Catalog routes (public, cached)
	r.GET("/categories", ListCategoriesHandler(db, rdb))             // Category tree
	r.GET("/products", ListProductsHandler(db, rdb))                 // Product table
	r.GET("/products/:slug", GetProductHandler(db, rdb, now))        // Product page
	r.GET("/products/:slug/reviews", ListReviewsHandler(db))         // Approved reviews
	r.POST("/products/:slug/reviews", auth, CreateReviewHandler(db)) // Submit a review
	r.GET("/promotions", ListPromotionsHandler(db, rdb, now))        // Running promotions
	r.GET("/settings", PublicSettingsHandler(db, rdb))               // Store contact and payment rules
	r.POST("/leads", limit, CreateLeadHandler(db))                   // Contact and newsletter capture

	// Quote routes
	r.POST("/quotes", limit, optional, SubmitQuoteHandler(db))     // Submit a quote
	r.GET("/quotes", auth, ListMyQuotesHandler(db))                // Own quotes
	r.GET("/quotes/:number", optional, GetQuoteHandler(db))        // Quote by number
	r.POST("/quotes/:number/accept", auth, AcceptQuoteHandler(db)) // Accept a priced quote

	// Cart routes (protected by JWT)
	cart := r.Group("/cart", auth)
	cart.GET("", GetCartHandler(db, now))                // Cart with price breakdown
	cart.POST("/items", AddCartItemHandler(db))          // Add a product
	cart.PATCH("/items/:id", UpdateCartItemHandler(db))  // Change quantity
	cart.DELETE("/items/:id", RemoveCartItemHandler(db)) // Remove a line
	cart.DELETE("", ClearCartHandler(db))                // Empty the cart

	// Checkout routes (protected by JWT)
	co := r.Group("/checkout", auth)
	co.POST("/validate", ValidateStepHandler(db))           // Gate one wizard step
	co.GET("/installments", InstallmentsHandler(db))        // Card plans for an amount
	co.POST("", PlaceOrderHandler(db, rdb, d.Gateway, now)) // Place the order

	// Order routes (protected by JWT)
	orders := r.Group("/orders", auth)
	orders.GET("", ListMyOrdersHandler(db))                                  // Own orders
	orders.GET("/:number", GetMyOrderHandler(db))                            // Order detail
	orders.POST("/:number/pay", PayOrderHandler(db, d.Gateway, now))         // Start a payment
	orders.GET("/:number/payment", PaymentStatusHandler(db, d.Gateway, now)) // Refresh payment status
	orders.GET("/:number/tracking", TrackOrderHandler(db, d.Gateway))        // Carrier events
	orders.POST("/:number/cancel", CancelOrderHandler(db, rdb))              // Cancel before payment

	// Admin routes (protected, admin only)
	admin := r.Group("/admin", auth, middleware.AdminOnlyMiddleware(db))
	admin.GET("/users", ListUsersHandler(db, rdb))                 // Users table
	admin.PATCH("/users/:id/role", UpdateUserRoleHandler(db, rdb)) // Change role

	admin.GET("/products", AdminListProductsHandler(db))                                  // Products table
	admin.GET("/products/:id", AdminGetProductHandler(db))                                // Product detail
	admin.POST("/products", CreateProductHandler(db, rdb))                                // New product
	admin.PUT("/products/:id", UpdateProductHandler(db, rdb))                             // Edit product
	admin.DELETE("/products/:id", DeleteProductHandler(db, rdb, d.Storage))               // Remove product
	admin.PUT("/products/:id/tiers", ReplaceTiersHandler(db, rdb))                        // Quantity tiers
	admin.POST("/products/:id/images", UploadImageHandler(db, rdb, d.Storage))            // Upload image
	admin.DELETE("/products/:id/images/:imageId", DeleteImageHandler(db, rdb, d.Storage)) // Remove image

	admin.GET("/categories", AdminListCategoriesHandler(db))        // Categories table
	admin.POST("/categories", CreateCategoryHandler(db, rdb))       // New category
	admin.PUT("/categories/:id", UpdateCategoryHandler(db, rdb))    // Edit category
	admin.DELETE("/categories/:id", DeleteCategoryHandler(db, rdb)) // Remove empty category

	admin.GET("/coupons", ListCouponsHandler(db))         // Coupons table
	admin.POST("/coupons", CreateCouponHandler(db))       // New coupon
	admin.PUT("/coupons/:id", UpdateCouponHandler(db))    // Edit coupon
	admin.DELETE("/coupons/:id", DeleteCouponHandler(db)) // Remove coupon

	admin.GET("/promotions", AdminListPromotionsHandler(db))         // Promotions table
	admin.POST("/promotions", CreatePromotionHandler(db, rdb))       // New promotion
	admin.PUT("/promotions/:id", UpdatePromotionHandler(db, rdb))    // Edit promotion
	admin.DELETE("/promotions/:id", DeletePromotionHandler(db, rdb)) // Remove promotion

	admin.GET("/orders", AdminListOrdersHandler(db))                     // Orders table
	admin.GET("/orders/:id", AdminGetOrderHandler(db))                   // Order detail with payments
	admin.PATCH("/orders/:id/status", UpdateOrderStatusHandler(db, rdb)) // Move order along

	admin.GET("/quotes", AdminListQuotesHandler(db))                        // Quotes table
	admin.GET("/quotes/:id", AdminGetQuoteHandler(db))                      // Quote detail
	admin.PUT("/quotes/:id/price", PriceQuoteHandler(db))                   // Price a quote
	admin.POST("/quotes/:id/approve", SetQuoteStatusHandler(db, "approve")) // Approve
	admin.POST("/quotes/:id/reject", SetQuoteStatusHandler(db, "reject"))   // Reject
	admin.POST("/quotes/:id/convert", ConvertQuoteHandler(db))              // Turn into an order

	admin.GET("/reviews", AdminListReviewsHandler(db))          // Reviews table
	admin.PATCH("/reviews/:id", ModerateReviewHandler(db, rdb)) // Approve or hide
	admin.DELETE("/reviews/:id", DeleteReviewHandler(db, rdb))  // Remove review

	admin.GET("/leads", ListLeadsHandler(db)) // Leads table

	admin.GET("/settings", AdminGetSettingsHandler(db))    // Full settings
	admin.PUT("/settings", UpdateSettingsHandler(db, rdb)) // Edit settings
}
