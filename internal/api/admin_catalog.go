package api

import (
	"context"  // Storage calls
	"errors"   // Error inspection
	"io"       // Upload reading
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Coupon and promotion dates

	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/listing"    // Table params and paging
	"storefront/internal/middleware" // Request binding
	"storefront/internal/storage"    // Product images

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

var adminProductListing = listing.Spec{
	Sortable:     map[string]string{"name": "name", "price": "price", "stock": "stock", "created_at": "created_at", "sku": "sku"},
	Filterable:   map[string]string{"category_id": "category_id"},
	Searchable:   []string{"name", "sku", "slug"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

var adminCategoryListing = listing.Spec{
	Sortable:     map[string]string{"name": "name", "position": "position", "created_at": "created_at"},
	Filterable:   map[string]string{"parent_id": "parent_id"},
	Searchable:   []string{"name", "slug"},
	DefaultSort:  "position",
	DefaultOrder: "asc",
}

var couponListing = listing.Spec{
	Sortable:     map[string]string{"code": "code", "created_at": "created_at", "used_count": "used_count", "expires_at": "expires_at"},
	Filterable:   map[string]string{"type": "type"},
	Searchable:   []string{"code"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

var promotionListing = listing.Spec{
	Sortable:     map[string]string{"title": "title", "starts_at": "starts_at", "ends_at": "ends_at", "discount_percent": "discount_percent"},
	Filterable:   map[string]string{"product_id": "product_id", "category_id": "category_id"},
	Searchable:   []string{"title", "description"},
	DateColumn:   "starts_at",
	DefaultSort:  "starts_at",
	DefaultOrder: "desc",
}

// boolFilter moves a true/false query filter out of params and onto query
func boolFilter(c *gin.Context, query *gorm.DB, name string) *gorm.DB {
	switch c.Query(name) {
	case "true", "1":
		return query.Where(name+" = ?", true)
	case "false", "0":
		return query.Where(name+" = ?", false)
	}
	return query
}

// TierRequest is one quantity discount tier
type TierRequest struct {
	MinQuantity     int             `json:"min_quantity" binding:"required,min=2"` // Threshold, a tier for 1 unit is just the price
	DiscountPercent decimal.Decimal `json:"discount_percent"`                      // Percent off, 0 < p < 100
}

// checkTiers returns a message when tiers are invalid
func checkTiers(tiers []TierRequest) string {
	seen := map[int]bool{}
	for _, t := range tiers {
		if !t.DiscountPercent.IsPositive() || t.DiscountPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			return "Tier discount must be between 0 and 100"
		}
		if seen[t.MinQuantity] {
			return "Tier quantities must be unique"
		}
		seen[t.MinQuantity] = true
	}
	return ""
}

// ProductRequest creates or replaces a product
type ProductRequest struct {
	CategoryID     uint             `json:"category_id" binding:"required"`            // Owning category
	Name           string           `json:"name" binding:"required,min=2,max=200"`     // Display name
	Slug           string           `json:"slug" binding:"omitempty,max=220"`          // Derived from the name when empty
	SKU            string           `json:"sku" binding:"required,max=64"`             // Stock keeping unit
	Description    string           `json:"description"`                               // Long description
	Price          decimal.Decimal  `json:"price"`                                     // Unit price
	CompareAtPrice *decimal.Decimal `json:"compare_at_price"`                          // Optional "was" price
	Stock          int              `json:"stock" binding:"min=0"`                     // Units available
	WeightGrams    int              `json:"weight_grams" binding:"min=0"`              // Shipping weight
	ImageURL       string           `json:"image_url" binding:"omitempty,url,max=500"` // Cover image
	Active         *bool            `json:"active"`                                    // Defaults to true
	Featured       bool             `json:"featured"`                                  // Home page highlight
	MinQuantity    int              `json:"min_quantity" binding:"omitempty,min=1"`    // Defaults to 1
	Tiers          []TierRequest    `json:"tiers" binding:"dive"`                      // Quantity tiers
}

// check returns a message for rules the binding tags cannot express
func (r *ProductRequest) check() string {
	if !r.Price.IsPositive() {
		return "Price must be greater than zero"
	}
	if r.CompareAtPrice != nil && !r.CompareAtPrice.GreaterThan(r.Price) {
		return "Compare-at price must be greater than the price"
	}
	return checkTiers(r.Tiers)
}

// apply copies the request onto p
func (r *ProductRequest) apply(p *domain.Product) {
	p.CategoryID = r.CategoryID
	p.Category = nil // Reloaded by the next read
	p.Name = strings.TrimSpace(r.Name)
	p.Slug = slugify(r.Slug)
	if p.Slug == "" {
		p.Slug = slugify(r.Name)
	}
	p.SKU = strings.ToUpper(strings.TrimSpace(r.SKU))
	p.Description = r.Description
	p.Price = r.Price.Round(2)
	p.CompareAtPrice = r.CompareAtPrice
	p.Stock = r.Stock
	p.WeightGrams = r.WeightGrams
	p.ImageURL = r.ImageURL
	p.Active = r.Active == nil || *r.Active
	p.Featured = r.Featured
	p.MinQuantity = r.MinQuantity
	if p.MinQuantity < 1 {
		p.MinQuantity = 1
	}
}

// validateProduct checks the category and unique columns, answering on failure
func validateProduct(c *gin.Context, db *gorm.DB, p *domain.Product) bool {
	var n int64
	if err := db.Model(&domain.Category{}).Where("id = ?", p.CategoryID).Count(&n).Error; err != nil || n == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Category not found"})
		return false
	}
	if p.Slug == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Slug cannot be empty"})
		return false
	}
	for column, value := range map[string]string{"slug": p.Slug, "sku": p.SKU} {
		used, err := taken(db, &domain.Product{}, column, value, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save product"})
			return false
		}
		if used {
			c.JSON(http.StatusConflict, gin.H{"error": "Another product already uses this " + column})
			return false
		}
	}
	return true
}

// AdminListProductsHandler returns a page of all products, active or not
func AdminListProductsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := listing.ParseParams(c, adminProductListing)
		query := boolFilter(c, db, "active")
		query = boolFilter(c, query, "featured")
		page, err := listing.Find[domain.Product](query, adminProductListing, params, func(tx *gorm.DB) *gorm.DB {
			return tx.Preload("Category")
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// loadProduct loads a product with tiers and images by id, answering 404 otherwise
func loadProduct(c *gin.Context, db *gorm.DB) (*domain.Product, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var product domain.Product
	err := db.Preload("Category").
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc, id asc") }).
		Preload("Tiers", func(tx *gorm.DB) *gorm.DB { return tx.Order("min_quantity asc") }).
		First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		}
		return nil, false
	}
	return &product, true
}

// AdminGetProductHandler returns a product with its tiers and images
func AdminGetProductHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := loadProduct(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

// CreateProductHandler creates a product with optional tiers
func CreateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		if msg := req.check(); msg != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
			return
		}
		var product domain.Product
		req.apply(&product)
		if !validateProduct(c, db, &product) {
			return
		}
		for _, t := range req.Tiers {
			product.Tiers = append(product.Tiers, domain.PriceTier{MinQuantity: t.MinQuantity, DiscountPercent: t.DiscountPercent})
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			if !product.Active {
				// false is the zero value, so the column default won on insert
				return tx.Model(&product).Update("active", false).Error
			}
			return nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
			return
		}
		invalidateCatalog(rdb)
		logrus.WithFields(logrus.Fields{
			"admin":      adminName(c), // Acting admin
			"product_id": product.ID,   // New product
			"sku":        product.SKU,  // SKU
		}).Info("Product created")
		c.JSON(http.StatusCreated, gin.H{"product": product})
	}
}

// UpdateProductHandler replaces a product's fields; tiers are kept unless sent
func UpdateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := loadProduct(c, db)
		if !ok {
			return
		}
		var req ProductRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		if msg := req.check(); msg != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
			return
		}
		req.apply(product)
		if !validateProduct(c, db, product) {
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			// Omit associations; tiers and images have their own endpoints
			if err := tx.Omit("Category", "Images", "Tiers").Save(product).Error; err != nil {
				return err
			}
			if req.Tiers == nil {
				return nil
			}
			return replaceTiers(tx, product, req.Tiers)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		invalidateCatalog(rdb)
		logrus.WithFields(logrus.Fields{
			"admin":      adminName(c), // Acting admin
			"product_id": product.ID,   // Product
		}).Info("Product updated")
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

// replaceTiers swaps every tier of product for tiers inside tx
func replaceTiers(tx *gorm.DB, product *domain.Product, tiers []TierRequest) error {
	if err := tx.Where("product_id = ?", product.ID).Delete(&domain.PriceTier{}).Error; err != nil {
		return err
	}
	product.Tiers = make([]domain.PriceTier, 0, len(tiers))
	for _, t := range tiers {
		product.Tiers = append(product.Tiers, domain.PriceTier{ProductID: product.ID, MinQuantity: t.MinQuantity, DiscountPercent: t.DiscountPercent})
	}
	if len(product.Tiers) == 0 {
		return nil
	}
	return tx.Create(&product.Tiers).Error
}

// TiersRequest replaces a product's tiers
type TiersRequest struct {
	Tiers []TierRequest `json:"tiers" binding:"dive"` // Empty removes every tier
}

// ReplaceTiersHandler replaces the quantity tiers of a product
func ReplaceTiersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := loadProduct(c, db)
		if !ok {
			return
		}
		var req TiersRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		if msg := checkTiers(req.Tiers); msg != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
			return
		}
		if err := db.Transaction(func(tx *gorm.DB) error { return replaceTiers(tx, product, req.Tiers) }); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save tiers"})
			return
		}
		invalidateCatalog(rdb)
		c.JSON(http.StatusOK, gin.H{"tiers": product.Tiers})
	}
}

// DeleteProductHandler removes a product with its tiers, images and cart lines.
// Orders keep their snapshot of it.
func DeleteProductHandler(db *gorm.DB, rdb *redis.Client, store storage.ObjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := loadProduct(c, db)
		if !ok {
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, model := range []any{&domain.CartItem{}, &domain.PriceTier{}, &domain.ProductImage{}, &domain.Review{}} {
				if err := tx.Where("product_id = ?", product.ID).Delete(model).Error; err != nil {
					return err
				}
			}
			return tx.Delete(&domain.Product{}, product.ID).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
			return
		}
		// Objects are removed after the commit; a leftover object is harmless
		if store != nil {
			for _, img := range product.Images {
				if err := store.Delete(context.Background(), img.Key); err != nil {
					logrus.WithFields(logrus.Fields{
						"key":   img.Key,     // Object key
						"error": err.Error(), // Error message
					}).Warn("Failed to delete product image")
				}
			}
		}
		invalidateCatalog(rdb)
		logrus.WithFields(logrus.Fields{
			"admin":      adminName(c), // Acting admin
			"product_id": product.ID,   // Removed product
		}).Info("Product deleted")
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
	}
}

// UploadImageHandler stores a multipart "file" image and adds it to the gallery.
// The first image becomes the cover when the product has none.
func UploadImageHandler(db *gorm.DB, rdb *redis.Client, store storage.ObjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image storage is not configured"})
			return
		}
		product, ok := loadProduct(c, db)
		if !ok {
			return
		}
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
			return
		}
		if header.Size > storage.MaxImageSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image exceeds 5 MiB"})
			return
		}
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageSize+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
			return
		}
		// The declared type is not trusted; sniff the bytes
		contentType := http.DetectContentType(data)
		key, err := storage.ImageKey(product.ID, contentType, int64(len(data)))
		if err != nil {
			status := http.StatusUnsupportedMediaType
			if errors.Is(err, storage.ErrImageTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			c.JSON(status, gin.H{"error": capitalize(err.Error())})
			return
		}
		url, err := store.Put(c.Request.Context(), key, contentType, data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"product_id": product.ID,  // Product
				"error":      err.Error(), // Error message
			}).Error("Image upload failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload image"})
			return
		}
		image := domain.ProductImage{ProductID: product.ID, Key: key, URL: url, Position: len(product.Images)}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&image).Error; err != nil {
				return err
			}
			if product.ImageURL == "" {
				return tx.Model(&domain.Product{}).Where("id = ?", product.ID).Update("image_url", url).Error
			}
			return nil
		})
		if err != nil {
			_ = store.Delete(context.Background(), key) // Drop the orphaned object
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save image"})
			return
		}
		invalidateCatalog(rdb)
		c.JSON(http.StatusCreated, gin.H{"image": image})
	}
}

// DeleteImageHandler removes a gallery image; a removed cover falls back to the next image
func DeleteImageHandler(db *gorm.DB, rdb *redis.Client, store storage.ObjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := loadProduct(c, db)
		if !ok {
			return
		}
		imageID, ok := paramID(c, "imageId")
		if !ok {
			return
		}
		var image *domain.ProductImage
		var next string
		for i := range product.Images {
			if product.Images[i].ID == imageID {
				image = &product.Images[i]
			} else if next == "" {
				next = product.Images[i].URL
			}
		}
		if image == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&domain.ProductImage{}, image.ID).Error; err != nil {
				return err
			}
			if product.ImageURL == image.URL {
				return tx.Model(&domain.Product{}).Where("id = ?", product.ID).Update("image_url", next).Error
			}
			return nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete image"})
			return
		}
		if store != nil {
			if err := store.Delete(c.Request.Context(), image.Key); err != nil {
				logrus.WithFields(logrus.Fields{
					"key":   image.Key,   // Object key
					"error": err.Error(), // Error message
				}).Warn("Failed to delete product image")
			}
		}
		invalidateCatalog(rdb)
		c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
	}
}

// CategoryRequest creates or replaces a category
type CategoryRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=120"` // Display name
	Slug        string `json:"slug" binding:"omitempty,max=140"`      // Derived from the name when empty
	Description string `json:"description"`                           // Optional description
	ParentID    *uint  `json:"parent_id"`                             // Parent, nil for a root
	Active      *bool  `json:"active"`                                // Defaults to true
	Position    int    `json:"position"`                              // Menu order
}

// AdminListCategoriesHandler returns a page of all categories
func AdminListCategoriesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := listing.ParseParams(c, adminCategoryListing)
		page, err := listing.Find[domain.Category](boolFilter(c, db, "active"), adminCategoryListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// saveCategory validates and writes a category, answering on failure
func saveCategory(c *gin.Context, db *gorm.DB, rdb *redis.Client, category *domain.Category, req CategoryRequest, status int) {
	category.Name = strings.TrimSpace(req.Name)
	category.Slug = slugify(req.Slug)
	if category.Slug == "" {
		category.Slug = slugify(req.Name)
	}
	category.Description = req.Description
	category.ParentID = req.ParentID
	category.Active = req.Active == nil || *req.Active
	category.Position = req.Position
	if category.ParentID != nil {
		if category.ID != 0 && *category.ParentID == category.ID {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A category cannot be its own parent"})
			return
		}
		var n int64
		if err := db.Model(&domain.Category{}).Where("id = ?", *category.ParentID).Count(&n).Error; err != nil || n == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Parent category not found"})
			return
		}
	}
	used, err := taken(db, &domain.Category{}, "slug", category.Slug, category.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save category"})
		return
	}
	if used {
		c.JSON(http.StatusConflict, gin.H{"error": "Another category already uses this slug"})
		return
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if category.ID == 0 {
			if err := tx.Create(category).Error; err != nil {
				return err
			}
			if !category.Active {
				return tx.Model(category).Update("active", false).Error
			}
			return nil
		}
		return tx.Save(category).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save category"})
		return
	}
	invalidateCatalog(rdb)
	c.JSON(status, gin.H{"category": category})
}

// CreateCategoryHandler creates a category
func CreateCategoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		saveCategory(c, db, rdb, &domain.Category{}, req, http.StatusCreated)
	}
}

// UpdateCategoryHandler replaces a category
func UpdateCategoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req CategoryRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		var category domain.Category
		if err := db.First(&category, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		saveCategory(c, db, rdb, &category, req, http.StatusOK)
	}
}

// DeleteCategoryHandler removes a category without products or children
func DeleteCategoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var products, children int64
		if err := db.Model(&domain.Product{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
			return
		}
		if err := db.Model(&domain.Category{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
			return
		}
		if products > 0 || children > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Category still has products or subcategories"})
			return
		}
		res := db.Delete(&domain.Category{}, id)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		invalidateCatalog(rdb)
		c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
	}
}

// CouponRequest creates or replaces a coupon
type CouponRequest struct {
	Code          string          `json:"code" binding:"required,min=3,max=40,alphanum"` // Stored upper-cased
	Type          string          `json:"type" binding:"required,oneof=percent fixed"`   // percent or fixed
	Value         decimal.Decimal `json:"value"`                                         // Percent or amount
	MinOrderValue decimal.Decimal `json:"min_order_value"`                               // Minimum goods total
	MaxUses       int             `json:"max_uses" binding:"min=0"`                      // 0 is unlimited
	ExpiresAt     *time.Time      `json:"expires_at"`                                    // Optional expiry
	Active        *bool           `json:"active"`                                        // Defaults to true
}

func (r *CouponRequest) check() string {
	if !r.Value.IsPositive() {
		return "Value must be greater than zero"
	}
	if r.Type == domain.CouponPercent && r.Value.GreaterThan(decimal.NewFromInt(100)) {
		return "A percent coupon cannot exceed 100"
	}
	if r.MinOrderValue.IsNegative() {
		return "Minimum order value cannot be negative"
	}
	return ""
}

// ListCouponsHandler returns a page of coupons
func ListCouponsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := listing.ParseParams(c, couponListing)
		page, err := listing.Find[domain.Coupon](boolFilter(c, db, "active"), couponListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch coupons"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// saveCoupon validates and writes a coupon, answering on failure
func saveCoupon(c *gin.Context, db *gorm.DB, coupon *domain.Coupon, req CouponRequest, status int) {
	if msg := req.check(); msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
		return
	}
	coupon.Code = strings.ToUpper(req.Code)
	coupon.Type = req.Type
	coupon.Value = req.Value
	coupon.MinOrderValue = req.MinOrderValue
	coupon.MaxUses = req.MaxUses
	coupon.ExpiresAt = req.ExpiresAt
	coupon.Active = req.Active == nil || *req.Active
	used, err := taken(db, &domain.Coupon{}, "code", coupon.Code, coupon.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save coupon"})
		return
	}
	if used {
		c.JSON(http.StatusConflict, gin.H{"error": "Coupon code already exists"})
		return
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if coupon.ID == 0 {
			if err := tx.Create(coupon).Error; err != nil {
				return err
			}
			if !coupon.Active {
				return tx.Model(coupon).Update("active", false).Error
			}
			return nil
		}
		return tx.Save(coupon).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save coupon"})
		return
	}
	logrus.WithFields(logrus.Fields{
		"admin": adminName(c), // Acting admin
		"code":  coupon.Code,  // Coupon code
	}).Info("Coupon saved")
	c.JSON(status, gin.H{"coupon": coupon})
}

// CreateCouponHandler creates a coupon
func CreateCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CouponRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		saveCoupon(c, db, &domain.Coupon{}, req, http.StatusCreated)
	}
}

// UpdateCouponHandler replaces a coupon; its use count is kept
func UpdateCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req CouponRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		var coupon domain.Coupon
		if err := db.First(&coupon, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		saveCoupon(c, db, &coupon, req, http.StatusOK)
	}
}

// DeleteCouponHandler removes a coupon
func DeleteCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		res := db.Delete(&domain.Coupon{}, id)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete coupon"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Coupon deleted"})
	}
}

// PromotionRequest creates or replaces a promotion
type PromotionRequest struct {
	Title           string          `json:"title" binding:"required,min=2,max=160"`      // Banner title
	Description     string          `json:"description"`                                 // Banner text
	DiscountPercent decimal.Decimal `json:"discount_percent"`                            // Percent off
	ProductID       *uint           `json:"product_id"`                                  // Scope to a product
	CategoryID      *uint           `json:"category_id"`                                 // Scope to a category
	StartsAt        time.Time       `json:"starts_at" binding:"required"`                // Window start
	EndsAt          time.Time       `json:"ends_at" binding:"required,gtfield=StartsAt"` // Window end
	Active          *bool           `json:"active"`                                      // Defaults to true
	BannerURL       string          `json:"banner_url" binding:"omitempty,url,max=500"`  // Optional banner
}

func (r *PromotionRequest) check() string {
	if !r.DiscountPercent.IsPositive() || r.DiscountPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return "Discount must be between 0 and 100"
	}
	if r.ProductID != nil && r.CategoryID != nil {
		return "Scope a promotion to a product or a category, not both"
	}
	return ""
}

// AdminListPromotionsHandler returns a page of all promotions
func AdminListPromotionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := listing.ParseParams(c, promotionListing)
		page, err := listing.Find[domain.Promotion](boolFilter(c, db, "active"), promotionListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch promotions"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// savePromotion validates and writes a promotion, answering on failure
func savePromotion(c *gin.Context, db *gorm.DB, rdb *redis.Client, promo *domain.Promotion, req PromotionRequest, status int) {
	if msg := req.check(); msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
		return
	}
	promo.Title = strings.TrimSpace(req.Title)
	promo.Description = req.Description
	promo.DiscountPercent = req.DiscountPercent
	promo.ProductID = req.ProductID
	promo.CategoryID = req.CategoryID
	promo.StartsAt = req.StartsAt
	promo.EndsAt = req.EndsAt
	promo.Active = req.Active == nil || *req.Active
	promo.BannerURL = req.BannerURL
	err := db.Transaction(func(tx *gorm.DB) error {
		if promo.ID == 0 {
			if err := tx.Create(promo).Error; err != nil {
				return err
			}
			if !promo.Active {
				return tx.Model(promo).Update("active", false).Error
			}
			return nil
		}
		return tx.Save(promo).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save promotion"})
		return
	}
	invalidateCatalog(rdb)
	c.JSON(status, gin.H{"promotion": promo})
}

// CreatePromotionHandler creates a promotion
func CreatePromotionHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PromotionRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		savePromotion(c, db, rdb, &domain.Promotion{}, req, http.StatusCreated)
	}
}

// UpdatePromotionHandler replaces a promotion
func UpdatePromotionHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req PromotionRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		var promo domain.Promotion
		if err := db.First(&promo, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Promotion not found"})
			return
		}
		savePromotion(c, db, rdb, &promo, req, http.StatusOK)
	}
}

// DeletePromotionHandler removes a promotion
func DeletePromotionHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		res := db.Delete(&domain.Promotion{}, id)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete promotion"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Promotion not found"})
			return
		}
		invalidateCatalog(rdb)
		c.JSON(http.StatusOK, gin.H{"message": "Promotion deleted"})
	}
}
