package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Payment clock

	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/listing"    // Table params and paging
	"storefront/internal/middleware" // Request binding
	"storefront/internal/payment"    // Remote payment functions
	"storefront/internal/pricing"    // Payment method math

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// orderListing is shared by the customer and admin order tables
var orderListing = listing.Spec{
	Sortable:     map[string]string{"created_at": "created_at", "total": "total", "status": "status", "number": "number"},
	Filterable:   map[string]string{"status": "status", "payment_method": "payment_method", "shipping_method": "shipping_method"},
	Searchable:   []string{"number", "customer_name", "customer_email"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

// PayRequest optionally switches the payment method before paying
type PayRequest struct {
	Method       string `json:"method" binding:"omitempty,oneof=pix boleto credit_card"` // New method, empty keeps the order's
	Installments int    `json:"installments" binding:"omitempty,min=1,max=24"`           // Card installments
	CardToken    string `json:"card_token"`                                              // Tokenised card
}

// ListMyOrdersHandler returns a page of the user's orders
func ListMyOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		params := listing.ParseParams(c, orderListing)
		page, err := listing.Find[domain.Order](db.Where("user_id = ?", userID), orderListing, params, func(tx *gorm.DB) *gorm.DB {
			return tx.Preload("Items")
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// findMyOrder loads one of the user's orders by number, answering 404 otherwise
func findMyOrder(c *gin.Context, db *gorm.DB, userID uint) (*domain.Order, bool) {
	var order domain.Order
	err := db.Preload("Items").
		Where("number = ? AND user_id = ?", strings.ToUpper(c.Param("number")), userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		}
		return nil, false
	}
	return &order, true
}

// orderPayments lists an order's payments, newest first
func orderPayments(db *gorm.DB, orderID uint) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	err := db.Where("order_id = ?", orderID).Order("id desc").Find(&payments).Error
	return payments, err
}

// GetMyOrderHandler returns one of the user's orders with its payments
func GetMyOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		order, ok := findMyOrder(c, db, userID)
		if !ok {
			return
		}
		payments, err := orderPayments(db, order.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order, "payments": payments})
	}
}

// paymentErrorStatus maps payment errors to an HTTP status
func paymentErrorStatus(err error) int {
	switch {
	case errors.Is(err, payment.ErrOrderNotPayable), errors.Is(err, payment.ErrPaymentInFlight),
		errors.Is(err, payment.ErrOrderChanged):
		return http.StatusConflict
	case errors.Is(err, payment.ErrMissingCardToken), errors.Is(err, payment.ErrUnsupportedMethod),
		errors.Is(err, pricing.ErrInstallments), errors.Is(err, pricing.ErrUnknownPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// PayOrderHandler starts a payment for a pending order. A different method or
// installment count reprices the order first; the goods and shipping stay as
// they were at placement.
func PayOrderHandler(db *gorm.DB, gw payment.Gateway, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req PayRequest // Body is optional
		if c.Request.ContentLength != 0 && !middleware.BindJSON(c, &req) {
			return
		}
		order, ok := findMyOrder(c, db, userID)
		if !ok {
			return
		}
		if order.Status != domain.OrderPendingPayment {
			c.JSON(http.StatusConflict, gin.H{"error": "Order is not awaiting payment"})
			return
		}
		var pending domain.Payment
		err := db.Where("order_id = ? AND status = ?", order.ID, domain.PaymentPending).First(&pending).Error
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"message": "Payment already in progress", "payment": pending})
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
			return
		}
		settings, err := loadSettings(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
			return
		}

		method := order.PaymentMethod
		if req.Method != "" {
			method = req.Method
		}
		installments := order.Installments
		if req.Installments > 0 {
			installments = req.Installments
		}
		if method != domain.MethodCreditCard {
			installments = 1
		}
		if method != order.PaymentMethod || installments != order.Installments {
			goods := order.Subtotal.Sub(order.DiscountTotal).Sub(order.CouponDiscount)
			adj, err := pricing.PaymentAdjustment(settings, method, goods, order.ShippingCost, installments)
			if err != nil {
				c.JSON(paymentErrorStatus(err), gin.H{"error": capitalize(err.Error())})
				return
			}
			updates := map[string]any{
				"payment_method":   method,
				"payment_discount": adj.Discount,
				"interest":         adj.Interest,
				"total":            adj.Total,
				"installments":     adj.Installments,
			}
			res := db.Model(order).Scopes(payment.Unclaimed(order.ID, now())).Updates(updates)
			if res.Error != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
				return
			}
			if res.RowsAffected == 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "Payment already in progress"})
				return
			}
			order.PaymentMethod = method
			order.PaymentDiscount = adj.Discount
			order.Interest = adj.Interest
			order.Total = adj.Total
			order.Installments = adj.Installments
		}

		p, err := payment.Start(c.Request.Context(), db, gw, order, settings, req.CardToken, now())
		if err != nil {
			if errors.Is(err, payment.ErrPaymentPending) {
				c.JSON(http.StatusOK, gin.H{"message": "Payment already in progress", "payment": p})
				return
			}
			c.JSON(paymentErrorStatus(err), gin.H{"error": capitalize(err.Error())})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"payment": p, "order": order})
	}
}

// PaymentStatusHandler refreshes the latest payment of an order once from the gateway
func PaymentStatusHandler(db *gorm.DB, gw payment.Gateway, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		order, ok := findMyOrder(c, db, userID)
		if !ok {
			return
		}
		var p domain.Payment
		if err := db.Where("order_id = ?", order.ID).Order("id desc").First(&p).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No payment for this order"})
			return
		}
		resp := gin.H{}
		if err := payment.Refresh(c.Request.Context(), db, gw, &p, now()); err != nil {
			// The stored status is still returned; the next poll tries again
			logrus.WithFields(logrus.Fields{
				"payment_id": p.ID,        // Payment id
				"error":      err.Error(), // Error message
			}).Warn("Payment status refresh failed")
			resp["refresh_error"] = "Could not reach the payment provider"
		}
		var current domain.Order
		if err := db.Select("id", "status").First(&current, order.ID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
			return
		}
		resp["payment"] = p
		resp["order_status"] = current.Status
		c.JSON(http.StatusOK, resp)
	}
}

// TrackOrderHandler returns the carrier events for a shipped order
func TrackOrderHandler(db *gorm.DB, gw payment.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		order, ok := findMyOrder(c, db, userID)
		if !ok {
			return
		}
		if order.TrackingCode == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tracking code not available yet"})
			return
		}
		res, err := gw.Track(c.Request.Context(), order.TrackingCode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"order": order.Number, // Order number
				"error": err.Error(),  // Error message
			}).Warn("Tracking lookup failed")
			c.JSON(paymentErrorStatus(err), gin.H{"error": "Tracking lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_status": order.Status, "tracking": res})
	}
}

// cancelOrder moves order to cancelled, puts its stock back and expires its
// pending payments, all inside tx. It reports false when the order left
// from while this ran.
func cancelOrder(tx *gorm.DB, order *domain.Order, from string) (bool, error) {
	res := tx.Model(&domain.Order{}).
		Where("id = ? AND status = ?", order.ID, from).
		Update("status", domain.OrderCancelled)
	if res.Error != nil || res.RowsAffected == 0 {
		return false, res.Error
	}
	for _, it := range order.Items {
		if it.ProductID == nil {
			continue // Custom quote line
		}
		if err := tx.Model(&domain.Product{}).Where("id = ?", *it.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
			return false, err
		}
	}
	err := tx.Model(&domain.Payment{}).
		Where("order_id = ? AND status = ?", order.ID, domain.PaymentPending).
		Update("status", domain.PaymentExpired).Error
	return err == nil, err
}

// CancelOrderHandler cancels an order that has not been paid yet
func CancelOrderHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		order, ok := findMyOrder(c, db, userID)
		if !ok {
			return
		}
		if order.Status != domain.OrderPendingPayment {
			c.JSON(http.StatusConflict, gin.H{"error": "Only orders awaiting payment can be cancelled"})
			return
		}
		var cancelled bool
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			cancelled, err = cancelOrder(tx, order, domain.OrderPendingPayment)
			return err
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel order"})
			return
		}
		if !cancelled {
			c.JSON(http.StatusConflict, gin.H{"error": "Only orders awaiting payment can be cancelled"})
			return
		}
		invalidateCatalog(rdb) // Stock changed
		order.Status = domain.OrderCancelled
		logrus.WithFields(logrus.Fields{
			"order":   order.Number, // Order number
			"user_id": userID,       // Buyer
		}).Info("Order cancelled by customer")
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
	}
}
