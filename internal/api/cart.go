package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Pricing clock

	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/middleware" // Request binding
	"storefront/internal/pricing"    // Money math

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Request struct for adding a product to the cart
type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`     // Product to add
	Quantity  int  `json:"quantity" binding:"required,min=1"` // Units to add
}

// Request struct for changing a cart line
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"` // New quantity
}

// CartResponse is the cart with its price preview
type CartResponse struct {
	Cart        *domain.Cart       `json:"cart"`                   // Cart lines
	Breakdown   *pricing.Breakdown `json:"breakdown"`              // Nil for an empty cart
	CouponError string             `json:"coupon_error,omitempty"` // Why the coupon was not applied
	Unavailable []uint             `json:"unavailable,omitempty"`  // Lines whose product was switched off
}

// GetCartHandler returns the cart priced with the coupon, shipping method,
// payment method and installments given in the query
func GetCartHandler(db *gorm.DB, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		cart, err := loadCart(db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		resp := CartResponse{Cart: cart}
		var priced []domain.CartItem
		for _, it := range cart.Items {
			if it.Product == nil || !it.Product.Active {
				resp.Unavailable = append(resp.Unavailable, it.ID) // Shown so the customer can remove it
				continue
			}
			priced = append(priced, it)
		}
		if len(priced) == 0 {
			c.JSON(http.StatusOK, resp)
			return
		}

		in, err := pricingInput(db, priced, "", now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to price cart"})
			return
		}
		in.ShippingMethod = c.Query("shipping")
		in.PaymentMethod = c.Query("payment")
		in.Installments, _ = strconv.Atoi(c.Query("installments"))
		coupon, err := findCoupon(db, c.Query("coupon"))
		if err != nil && !errors.Is(err, errCouponNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to price cart"})
			return
		}
		if err != nil {
			resp.CouponError = "Coupon not found"
		}
		in.Coupon = coupon

		b, err := pricing.Calculate(in)
		if err != nil && in.Coupon != nil && isCouponError(err) {
			// A bad coupon never blocks the preview; price without it
			resp.CouponError = capitalize(err.Error())
			in.Coupon = nil
			b, err = pricing.Calculate(in)
		}
		if err != nil {
			if status, msg, ok := pricingErrorStatus(err); ok {
				c.JSON(status, gin.H{"error": msg})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to price cart"})
			return
		}
		resp.Breakdown = &b
		c.JSON(http.StatusOK, resp)
	}
}

// isCouponError reports whether err is one of the coupon rule errors
func isCouponError(err error) bool {
	return errors.Is(err, pricing.ErrCouponInactive) ||
		errors.Is(err, pricing.ErrCouponExpired) ||
		errors.Is(err, pricing.ErrCouponExhausted) ||
		errors.Is(err, pricing.ErrCouponMinimum)
}

// checkQuantity answers 409 or 422 when qty breaks the product's stock or minimum
func checkQuantity(c *gin.Context, product *domain.Product, qty int) bool {
	if qty > product.Stock {
		c.JSON(http.StatusConflict, gin.H{"error": "Only " + strconv.Itoa(product.Stock) + " in stock"})
		return false
	}
	if qty < product.MinQuantity {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Minimum quantity is " + strconv.Itoa(product.MinQuantity)})
		return false
	}
	return true
}

// AddCartItemHandler adds units of a product, merging with an existing line
func AddCartItemHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req AddCartItemRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		var product domain.Product
		if err := db.Where("id = ? AND active = ?", req.ProductID, true).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		cart, err := loadCart(db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		var line *domain.CartItem
		for i := range cart.Items {
			if cart.Items[i].ProductID == product.ID {
				line = &cart.Items[i]
				break
			}
		}
		qty := req.Quantity
		if line != nil {
			qty += line.Quantity // Merge into the existing line
		}
		if !checkQuantity(c, &product, qty) {
			return
		}
		if line != nil {
			err = db.Model(&domain.CartItem{}).Where("id = ?", line.ID).Update("quantity", qty).Error
		} else {
			err = db.Create(&domain.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: qty}).Error
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,     // Cart owner
			"product_id": product.ID, // Added product
			"quantity":   qty,        // Line quantity
		}).Debug("Cart item added")
		respondCart(c, db, userID, http.StatusOK)
	}
}

// UpdateCartItemHandler sets the quantity of one of the user's cart lines
func UpdateCartItemHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		itemID, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req UpdateCartItemRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		line, ok := findCartLine(c, db, userID, itemID)
		if !ok {
			return
		}
		if line.Product == nil || !line.Product.Active {
			c.JSON(http.StatusConflict, gin.H{"error": "Product is no longer available"})
			return
		}
		if !checkQuantity(c, line.Product, req.Quantity) {
			return
		}
		if err := db.Model(&domain.CartItem{}).Where("id = ?", line.ID).Update("quantity", req.Quantity).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
			return
		}
		respondCart(c, db, userID, http.StatusOK)
	}
}

// RemoveCartItemHandler deletes one of the user's cart lines
func RemoveCartItemHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		itemID, ok := paramID(c, "id")
		if !ok {
			return
		}
		line, ok := findCartLine(c, db, userID, itemID)
		if !ok {
			return
		}
		if err := db.Delete(&domain.CartItem{}, line.ID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
			return
		}
		respondCart(c, db, userID, http.StatusOK)
	}
}

// ClearCartHandler removes every line from the user's cart
func ClearCartHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		cart, err := loadCart(db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		if err := db.Where("cart_id = ?", cart.ID).Delete(&domain.CartItem{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
			return
		}
		respondCart(c, db, userID, http.StatusOK)
	}
}

// findCartLine loads a line of the user's cart with its product, answering 404 otherwise
func findCartLine(c *gin.Context, db *gorm.DB, userID, itemID uint) (*domain.CartItem, bool) {
	var line domain.CartItem
	err := db.Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", itemID, userID).
		Preload("Product").
		First(&line).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return nil, false
	}
	return &line, true
}

// respondCart answers with the user's current cart
func respondCart(c *gin.Context, db *gorm.DB, userID uint, status int) {
	cart, err := loadCart(db, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return
	}
	c.JSON(status, gin.H{"cart": cart})
}
