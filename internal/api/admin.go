package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"time"     // Timestamps

	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/listing"    // Table params and paging
	"storefront/internal/middleware" // Request binding
	"storefront/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

var userListing = listing.Spec{
	Sortable:     map[string]string{"name": "name", "email": "email", "created_at": "created_at", "role": "role"},
	Filterable:   map[string]string{"role": "role"},
	Searchable:   []string{"name", "email", "phone"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID         uint      `json:"id"`          // User ID
	Name       string    `json:"name"`        // Display name
	Email      string    `json:"email"`       // Login email
	Role       string    `json:"role"`        // User role
	Phone      string    `json:"phone"`       // Contact phone
	OrderCount int64     `json:"order_count"` // Orders placed
	CreatedAt  time.Time `json:"created_at"`  // Registration time
}

// usersPage is the cached users table
type usersPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
	Cached     bool                `json:"cached"`      // Served from cache
}

// ListUsersHandler returns a page of users with their order counts
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Use background context for Redis
		params := listing.ParseParams(c, userListing)
		// Create a cache key based on the table parameters
		cacheKey := params.CacheKey(utils.CacheAdminUsers)
		var cached usersPage
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			c.JSON(http.StatusOK, cached)
			return
		}
		page, err := listing.Find[domain.User](db, userListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"}) // Return on error
			return
		}
		ids := make([]uint, len(page.Items))
		for i, u := range page.Items {
			ids[i] = u.ID
		}
		// Count orders per user on this page
		var counts []struct {
			UserID uint
			Count  int64
		}
		if len(ids) > 0 {
			if err := db.Model(&domain.Order{}).Select("user_id, COUNT(*) AS count").
				Where("user_id IN ?", ids).Group("user_id").Scan(&counts).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count orders"})
				return
			}
		}
		byUser := make(map[uint]int64, len(counts))
		for _, row := range counts {
			byUser[row.UserID] = row.Count
		}
		resp := usersPage{
			Users:      make([]UserAdminResponse, len(page.Items)),
			Page:       page.Page,       // Current page
			PageSize:   page.PageSize,   // Page size
			Total:      page.Total,      // Total number of users
			TotalPages: page.TotalPages, // Total pages
		}
		// Map users to response format
		for i, u := range page.Items {
			resp.Users[i] = UserAdminResponse{
				ID:         u.ID,         // User ID
				Name:       u.Name,       // Display name
				Email:      u.Email,      // Email
				Role:       u.Role,       // User role
				Phone:      u.Phone,      // Phone
				OrderCount: byUser[u.ID], // Orders placed
				CreatedAt:  u.CreatedAt,  // Registration time
			}
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, resp) // Return the response
	}
}

// RoleRequest changes a user's role
type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=customer admin"` // New role
}

// UpdateUserRoleHandler promotes or demotes a user. Admins cannot demote themselves.
func UpdateUserRoleHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req RoleRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		if id == adminID && req.Role != domain.RoleAdmin {
			c.JSON(http.StatusConflict, gin.H{"error": "You cannot remove your own admin role"})
			return
		}
		var user domain.User
		if err := db.First(&user, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err := db.Model(&user).Update("role", req.Role).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
			return
		}
		_ = utils.DeleteCachePrefix(context.Background(), rdb, utils.CacheAdminUsers) // Users table changed
		logrus.WithFields(logrus.Fields{
			"admin":   adminName(c), // Acting admin
			"user_id": user.ID,      // Target user
			"role":    req.Role,     // New role
		}).Info("User role changed")
		c.JSON(http.StatusOK, gin.H{"message": "Role updated", "user": user})
	}
}

var leadListing = listing.Spec{
	Sortable:     map[string]string{"created_at": "created_at", "email": "email", "source": "source"},
	Filterable:   map[string]string{"source": "source"},
	Searchable:   []string{"name", "email", "phone", "message"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

// ListLeadsHandler returns a page of captured leads
func ListLeadsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := listing.Find[domain.Lead](db, leadListing, listing.ParseParams(c, leadListing))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

var reviewAdminListing = listing.Spec{
	Sortable:     map[string]string{"created_at": "created_at", "rating": "rating"},
	Filterable:   map[string]string{"approved": "approved", "product_id": "product_id", "rating": "rating"},
	Searchable:   []string{"author_name", "comment"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

// AdminListReviewsHandler returns a page of all reviews. approved=false lists the moderation queue.
func AdminListReviewsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := listing.ParseParams(c, reviewAdminListing)
		query := db
		// Booleans are stored as 0/1, so the filter value is normalised here
		if v, ok := params.Filters["approved"]; ok {
			delete(params.Filters, "approved")
			query = query.Where("approved = ?", v == "true" || v == "1")
		}
		page, err := listing.Find[domain.Review](query, reviewAdminListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ModerateRequest approves or hides a review
type ModerateRequest struct {
	Approved *bool `json:"approved" binding:"required"` // Visible in the storefront
}

// ModerateReviewHandler approves or hides a review
func ModerateReviewHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req ModerateRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		var review domain.Review
		if err := db.First(&review, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		if err := db.Model(&review).Update("approved", *req.Approved).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update review"})
			return
		}
		review.Approved = *req.Approved
		invalidateCatalog(rdb) // Product pages show ratings
		logrus.WithFields(logrus.Fields{
			"admin":     adminName(c),    // Acting admin
			"review_id": review.ID,       // Review
			"approved":  review.Approved, // New visibility
		}).Info("Review moderated")
		c.JSON(http.StatusOK, gin.H{"review": review})
	}
}

// DeleteReviewHandler removes a review
func DeleteReviewHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		res := db.Delete(&domain.Review{}, id)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete review"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		invalidateCatalog(rdb)
		c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
	}
}

// AdminGetSettingsHandler returns the full settings row
func AdminGetSettingsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := loadSettings(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": s})
	}
}

// UpdateSettingsHandler replaces the settings row
func UpdateSettingsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SettingsRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		if msg := req.check(); msg != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
			return
		}
		s := req.settings()
		// Save writes every column, so zero values such as a disabled free-shipping threshold stick
		if err := db.Save(&s).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
			return
		}
		invalidateCatalog(rdb) // Public settings are cached
		logrus.WithField("admin", adminName(c)).Info("Settings updated")
		c.JSON(http.StatusOK, gin.H{"settings": s})
	}
}
