package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Pricing clock

	"storefront/internal/checkout"   // Wizard gating
	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/middleware" // Request binding
	"storefront/internal/payment"    // Payment creation
	"storefront/internal/pricing"    // Money math
	"storefront/internal/validation" // Document normalisation

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// CheckoutRequest carries the wizard steps after the cart. The cart lines are
// always read from the server-side cart.
type CheckoutRequest struct {
	Customer checkout.CustomerStep `json:"customer"`                 // Step 2
	Address  checkout.AddressStep  `json:"address"`                  // Step 3
	Shipping checkout.ShippingStep `json:"shipping"`                 // Step 4
	Payment  checkout.PaymentStep  `json:"payment"`                  // Step 5
	Coupon   string                `json:"coupon" binding:"max=40"`  // Optional coupon code
	Notes    string                `json:"notes" binding:"max=2000"` // Delivery notes
}

// ValidateStepRequest asks whether the wizard may move past Step
type ValidateStepRequest struct {
	Step checkout.Step `json:"step" binding:"required,min=1,max=5"` // Step being left
	CheckoutRequest
}

// cartForm builds the wizard form from the user's cart and the submitted steps
func cartForm(cart *domain.Cart, req CheckoutRequest) checkout.Form {
	form := checkout.Form{
		Customer: req.Customer,
		Address:  req.Address,
		Shipping: req.Shipping,
		Payment:  req.Payment,
		Coupon:   req.Coupon,
		Notes:    req.Notes,
	}
	for _, it := range cart.Items {
		line := checkout.Line{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.Product != nil {
			line.Description = it.Product.Name
			line.MinQuantity = it.Product.MinQuantity
			line.Stock = it.Product.Stock
		}
		form.Lines = append(form.Lines, line)
	}
	return form
}

// shippingAddress stores a validated address step
func shippingAddress(a checkout.AddressStep) domain.Address {
	return domain.Address{
		CEP:        a.CEP,
		Street:     strings.TrimSpace(a.Street),
		Number:     a.Number,
		Complement: a.Complement,
		District:   a.District,
		City:       a.City,
		State:      strings.ToUpper(a.State),
	}
}

// respondStepError answers 422 with the failing step and its fields
func respondStepError(c *gin.Context, err error, message string) {
	var stepErr *checkout.StepError
	if errors.As(err, &stepErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  message,
			"step":   int(stepErr.Step),
			"name":   stepErr.Step.String(),
			"fields": stepErr.Fields,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": capitalize(err.Error())})
}

// ValidateStepHandler checks every wizard step up to the given one and
// returns the next step
func ValidateStepHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req ValidateStepRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		cart, err := loadCart(db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		form := cartForm(cart, req.CheckoutRequest)
		next, err := checkout.New(&form).Advance(req.Step)
		if err != nil {
			respondStepError(c, err, "Checkout step incomplete")
			return
		}
		resp := gin.H{"ok": true, "next": int(next)}
		if next != 0 {
			resp["next_name"] = next.String()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// InstallmentsHandler lists the card plans for an amount
func InstallmentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		amount, err := decimal.NewFromString(c.Query("amount"))
		if err != nil || !amount.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		settings, err := loadSettings(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"amount": amount.Round(2), "options": pricing.InstallmentOptions(settings, amount.Round(2))})
	}
}

// PlaceOrderHandler turns the cart into an order. Stock, coupon usage, the
// order and the emptied cart are written in one transaction; the payment is
// then started through the remote function for the chosen method.
func PlaceOrderHandler(db *gorm.DB, rdb *redis.Client, gw payment.Gateway, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req CheckoutRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		cart, err := loadCart(db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		form := cartForm(cart, req)
		if err := checkout.New(&form).ValidateAll(); err != nil {
			respondStepError(c, err, "Checkout is incomplete")
			return
		}

		// Prices always come from the database, never from the client
		t := now()
		in, err := pricingInput(db, cart.Items, req.Coupon, t)
		if err == nil {
			in.ShippingMethod = req.Shipping.Method
			in.PaymentMethod = req.Payment.Method
			in.Installments = req.Payment.Installments
		}
		var b pricing.Breakdown
		if err == nil {
			b, err = pricing.Calculate(in)
		}
		if err != nil {
			if status, msg, ok := pricingErrorStatus(err); ok {
				c.JSON(status, gin.H{"error": msg})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to price order"})
			return
		}

		order := domain.Order{
			Number: publicNumber("P"),
			UserID: userID,
			Status: domain.OrderPendingPayment,
			Customer: domain.Customer{
				Name:     strings.TrimSpace(req.Customer.Name),
				Email:    strings.ToLower(strings.TrimSpace(req.Customer.Email)),
				Phone:    req.Customer.Phone,
				Document: validation.Digits(req.Customer.Document),
			},
			Address:         shippingAddress(req.Address),
			ShippingMethod:  req.Shipping.Method,
			Subtotal:        b.Subtotal,
			DiscountTotal:   b.DiscountTotal,
			CouponCode:      b.CouponCode,
			CouponDiscount:  b.CouponDiscount,
			ShippingCost:    b.Shipping,
			PaymentMethod:   req.Payment.Method,
			PaymentDiscount: b.PaymentDiscount,
			Interest:        b.Interest,
			Total:           b.Total,
			Installments:    b.Installments,
			Notes:           strings.TrimSpace(req.Notes),
		}
		for _, l := range b.Lines {
			id := l.ProductID
			order.Items = append(order.Items, domain.OrderItem{
				ProductID:       &id,
				Name:            l.Name,
				SKU:             l.SKU,
				UnitPrice:       l.UnitPrice,
				Quantity:        l.Quantity,
				DiscountPercent: l.DiscountPercent,
				LineTotal:       l.LineTotal,
			})
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			// Conditional decrement keeps stock from going negative under concurrent checkouts
			for _, l := range b.Lines {
				res := tx.Model(&domain.Product{}).
					Where("id = ? AND stock >= ?", l.ProductID, l.Quantity).
					UpdateColumn("stock", gorm.Expr("stock - ?", l.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return errOutOfStock
				}
			}
			if in.Coupon != nil {
				res := tx.Model(&domain.Coupon{}).
					Where("id = ? AND (max_uses = 0 OR used_count < max_uses)", in.Coupon.ID).
					UpdateColumn("used_count", gorm.Expr("used_count + 1"))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return pricing.ErrCouponExhausted
				}
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			return tx.Where("cart_id = ?", cart.ID).Delete(&domain.CartItem{}).Error
		})
		if err != nil {
			if errors.Is(err, errOutOfStock) {
				c.JSON(http.StatusConflict, gin.H{"error": "Not enough stock for one of the items"})
				return
			}
			if status, msg, ok := pricingErrorStatus(err); ok {
				c.JSON(status, gin.H{"error": msg})
				return
			}
			logrus.WithFields(logrus.Fields{
				"user_id": userID,      // Buyer
				"error":   err.Error(), // Error message
			}).Error("Order placement failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
			return
		}
		invalidateCatalog(rdb) // Stock changed
		logrus.WithFields(logrus.Fields{
			"order":   order.Number,         // Order number
			"user_id": userID,               // Buyer
			"total":   order.Total.String(), // Amount due
			"method":  order.PaymentMethod,  // Payment method
		}).Info("Order placed")

		resp := gin.H{"order": &order}
		// The order stands even when the payment call fails; the customer can retry from the order page
		if gw != nil {
			p, err := payment.Start(c.Request.Context(), db, gw, &order, in.Settings, req.Payment.CardToken, t)
			if err != nil {
				resp["payment_error"] = capitalize(err.Error())
			} else {
				resp["payment"] = p
				if p.Status == domain.PaymentApproved {
					order.Status = domain.OrderPaid
				}
			}
		}
		c.JSON(http.StatusCreated, resp)
	}
}
