package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"storefront/internal/checkout"   // Address step rules
	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/listing"    // Table params and paging
	"storefront/internal/middleware" // Request binding
	"storefront/internal/pricing"    // Payment method math
	"storefront/internal/validation" // Document digits

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

var adminOrderListing = listing.Spec{
	Sortable:     orderListing.Sortable,
	Filterable:   map[string]string{"status": "status", "payment_method": "payment_method", "shipping_method": "shipping_method", "user_id": "user_id"},
	Searchable:   []string{"number", "customer_name", "customer_email", "customer_document", "tracking_code"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

var adminQuoteListing = listing.Spec{
	Sortable:     quoteListing.Sortable,
	Filterable:   quoteListing.Filterable,
	Searchable:   []string{"number", "name", "email", "company", "message"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

// AdminListOrdersHandler returns a page of all orders
func AdminListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := listing.ParseParams(c, adminOrderListing)
		page, err := listing.Find[domain.Order](db, adminOrderListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// loadOrder loads an order with its items by id, answering 404 otherwise
func loadOrder(c *gin.Context, db *gorm.DB) (*domain.Order, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var order domain.Order
	if err := db.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		}
		return nil, false
	}
	return &order, true
}

// AdminGetOrderHandler returns an order with its payments and buyer
func AdminGetOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		payments, err := orderPayments(db, order.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
			return
		}
		var user domain.User
		if err := db.First(&user, order.UserID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch buyer"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order, "payments": payments, "user": user})
	}
}

// OrderStatusRequest moves an order along or sets its tracking code
type OrderStatusRequest struct {
	Status       string `json:"status" binding:"required,oneof=pending_payment paid processing shipped delivered cancelled"` // Target status
	TrackingCode string `json:"tracking_code" binding:"omitempty,max=40"`                                                    // Carrier code
}

// UpdateOrderStatusHandler applies an allowed status transition. Cancelling
// puts the stock back; shipping needs a tracking code unless it is a pickup.
func UpdateOrderStatusHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		var req OrderStatusRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		tracking := strings.TrimSpace(req.TrackingCode)
		from := order.Status
		if req.Status == from {
			// Same status: only the tracking code may change
			if tracking == "" {
				c.JSON(http.StatusOK, gin.H{"order": order})
				return
			}
			if err := db.Model(order).Update("tracking_code", tracking).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
				return
			}
			order.TrackingCode = tracking
			c.JSON(http.StatusOK, gin.H{"order": order})
			return
		}
		if !domain.CanTransition(from, req.Status) {
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot move an order from " + from + " to " + req.Status})
			return
		}
		if tracking == "" {
			tracking = order.TrackingCode
		}
		if req.Status == domain.OrderShipped && tracking == "" && order.ShippingMethod != pricing.ShippingPickup {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A tracking code is required to ship"})
			return
		}

		var moved bool
		err := db.Transaction(func(tx *gorm.DB) error {
			if req.Status == domain.OrderCancelled {
				var err error
				moved, err = cancelOrder(tx, order, from)
				return err
			}
			res := tx.Model(&domain.Order{}).
				Where("id = ? AND status = ?", order.ID, from).
				Updates(map[string]any{"status": req.Status, "tracking_code": tracking})
			moved = res.RowsAffected > 0
			return res.Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
			return
		}
		if !moved {
			c.JSON(http.StatusConflict, gin.H{"error": "Order changed meanwhile, reload and retry"})
			return
		}
		if req.Status == domain.OrderCancelled {
			invalidateCatalog(rdb) // Stock changed
		}
		order.Status = req.Status
		order.TrackingCode = tracking
		logrus.WithFields(logrus.Fields{
			"admin": adminName(c), // Acting admin
			"order": order.Number, // Order number
			"from":  from,         // Previous status
			"to":    req.Status,   // New status
		}).Info("Order status changed")
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// AdminListQuotesHandler returns a page of all quotes
func AdminListQuotesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := listing.ParseParams(c, adminQuoteListing)
		page, err := listing.Find[domain.Quote](db, adminQuoteListing, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quotes"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// loadQuote loads a quote with its items by id, answering 404 otherwise
func loadQuote(c *gin.Context, db *gorm.DB) (*domain.Quote, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	quote, err := findQuote(db, "id", id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quote"})
		}
		return nil, false
	}
	return quote, true
}

// AdminGetQuoteHandler returns a quote with its items
func AdminGetQuoteHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, ok := loadQuote(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"quote": quote})
	}
}

// QuoteItemPrice prices one quote line
type QuoteItemPrice struct {
	ID        uint            `json:"id" binding:"required"` // Quote item id
	UnitPrice decimal.Decimal `json:"unit_price"`            // Unit price offered
}

// PriceQuoteRequest prices a quote. Without a total, the lines are summed.
type PriceQuoteRequest struct {
	Items       []QuoteItemPrice `json:"items" binding:"required,min=1,dive"` // Line prices
	QuotedTotal *decimal.Decimal `json:"quoted_total"`                        // Overall price, shipping included
	AdminNotes  string           `json:"admin_notes" binding:"max=4000"`      // Shown to the customer
}

// PriceQuoteHandler prices a pending or priced quote
func PriceQuoteHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, ok := loadQuote(c, db)
		if !ok {
			return
		}
		var req PriceQuoteRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		if quote.Status != domain.QuotePending && quote.Status != domain.QuotePriced {
			c.JSON(http.StatusConflict, gin.H{"error": "Only pending or priced quotes can be priced"})
			return
		}
		prices := make(map[uint]decimal.Decimal, len(req.Items))
		for _, it := range req.Items {
			if it.UnitPrice.IsNegative() {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Prices cannot be negative"})
				return
			}
			prices[it.ID] = it.UnitPrice.Round(2)
		}
		sum := decimal.Zero
		for i := range quote.Items {
			price, ok := prices[quote.Items[i].ID]
			if !ok {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Every quote line needs a price", "item_id": quote.Items[i].ID})
				return
			}
			quote.Items[i].UnitPrice = &price
			sum = sum.Add(price.Mul(decimal.NewFromInt(int64(quote.Items[i].Quantity))))
		}
		total := sum
		if req.QuotedTotal != nil {
			total = req.QuotedTotal.Round(2)
		}
		if !total.IsPositive() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Quoted total must be greater than zero"})
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, it := range quote.Items {
				if err := tx.Model(&domain.QuoteItem{}).Where("id = ?", it.ID).Update("unit_price", *it.UnitPrice).Error; err != nil {
					return err
				}
			}
			return tx.Model(&domain.Quote{}).Where("id = ?", quote.ID).Updates(map[string]any{
				"status":       domain.QuotePriced,
				"quoted_total": total,
				"admin_notes":  req.AdminNotes,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to price quote"})
			return
		}
		quote.Status = domain.QuotePriced
		quote.QuotedTotal = &total
		quote.AdminNotes = req.AdminNotes
		logrus.WithFields(logrus.Fields{
			"admin": adminName(c),   // Acting admin
			"quote": quote.Number,   // Quote number
			"total": total.String(), // Offered price
		}).Info("Quote priced")
		c.JSON(http.StatusOK, gin.H{"quote": quote})
	}
}

// quoteMoves lists the statuses each back-office action accepts
var quoteMoves = map[string]struct {
	to   string
	from []string
}{
	"approve": {to: domain.QuoteApproved, from: []string{domain.QuotePriced}},
	"reject":  {to: domain.QuoteRejected, from: []string{domain.QuotePending, domain.QuotePriced, domain.QuoteApproved}},
}

// SetQuoteStatusHandler approves or rejects a quote
func SetQuoteStatusHandler(db *gorm.DB, action string) gin.HandlerFunc {
	move := quoteMoves[action]
	return func(c *gin.Context) {
		quote, ok := loadQuote(c, db)
		if !ok {
			return
		}
		res := db.Model(&domain.Quote{}).Where("id = ? AND status IN ?", quote.ID, move.from).Update("status", move.to)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update quote"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot " + action + " a " + quote.Status + " quote"})
			return
		}
		quote.Status = move.to
		logrus.WithFields(logrus.Fields{
			"admin":  adminName(c), // Acting admin
			"quote":  quote.Number, // Quote number
			"status": move.to,      // New status
		}).Info("Quote status changed")
		c.JSON(http.StatusOK, gin.H{"quote": quote})
	}
}

// ConvertQuoteRequest picks how a converted quote is paid and delivered
type ConvertQuoteRequest struct {
	PaymentMethod  string               `json:"payment_method" binding:"required,oneof=pix boleto credit_card"`    // Payment method
	Installments   int                  `json:"installments" binding:"omitempty,min=1,max=24"`                     // Card installments
	ShippingMethod string               `json:"shipping_method" binding:"omitempty,oneof=standard express pickup"` // Defaults to pickup
	Address        checkout.AddressStep `json:"address"`                                                           // Required unless picked up
}

// ConvertQuoteHandler turns an approved quote into an order for its customer.
// The quoted total is the goods price, shipping included; the payment method
// rules apply on top.
func ConvertQuoteHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, ok := loadQuote(c, db)
		if !ok {
			return
		}
		var req ConvertQuoteRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		if quote.Status != domain.QuoteApproved || quote.QuotedTotal == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Only approved quotes with a price can be converted"})
			return
		}
		if quote.UserID == nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Quote has no customer account to order for"})
			return
		}
		settings, err := loadSettings(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
			return
		}
		installments := req.Installments
		if req.PaymentMethod != domain.MethodCreditCard || installments == 0 {
			installments = 1
		}
		goods := *quote.QuotedTotal
		adj, err := pricing.PaymentAdjustment(settings, req.PaymentMethod, goods, decimal.Zero, installments)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": capitalize(err.Error())})
			return
		}
		shipping := req.ShippingMethod
		if shipping == "" {
			shipping = pricing.ShippingPickup
		}
		if shipping != pricing.ShippingPickup {
			if err := checkout.ValidateAddress(&req.Address); err != nil {
				respondStepError(c, err, "Delivery address incomplete")
				return
			}
		}

		order := domain.Order{
			Number: publicNumber("P"),
			UserID: *quote.UserID,
			Status: domain.OrderPendingPayment,
			Customer: domain.Customer{
				Name:     quote.Name,
				Email:    quote.Email,
				Phone:    quote.Phone,
				Document: validation.Digits(quote.Document),
			},
			Address:         shippingAddress(req.Address),
			ShippingMethod:  shipping,
			Subtotal:        goods,
			DiscountTotal:   decimal.Zero,
			CouponDiscount:  decimal.Zero,
			ShippingCost:    decimal.Zero,
			PaymentMethod:   req.PaymentMethod,
			PaymentDiscount: adj.Discount,
			Interest:        adj.Interest,
			Total:           adj.Total,
			Installments:    adj.Installments,
			Notes:           quote.Message,
			QuoteID:         &quote.ID,
		}
		for _, it := range quote.Items {
			unit := decimal.Zero
			if it.UnitPrice != nil {
				unit = *it.UnitPrice
			}
			item := domain.OrderItem{
				ProductID:       it.ProductID,
				Name:            it.Description,
				UnitPrice:       unit,
				Quantity:        it.Quantity,
				DiscountPercent: decimal.Zero,
				LineTotal:       unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2),
			}
			if it.ProductID != nil {
				var product domain.Product
				if err := db.Select("id", "name", "sku").First(&product, *it.ProductID).Error; err == nil {
					item.Name = product.Name
					item.SKU = product.SKU
				}
			}
			if item.Name == "" {
				item.Name = "Custom item"
			}
			order.Items = append(order.Items, item)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			for _, it := range order.Items {
				if it.ProductID == nil {
					continue
				}
				res := tx.Model(&domain.Product{}).
					Where("id = ? AND stock >= ?", *it.ProductID, it.Quantity).
					UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return errOutOfStock
				}
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			res := tx.Model(&domain.Quote{}).
				Where("id = ? AND status = ?", quote.ID, domain.QuoteApproved).
				Updates(map[string]any{"status": domain.QuoteConverted, "order_id": order.ID})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errQuoteMoved
			}
			return nil
		})
		switch {
		case errors.Is(err, errOutOfStock):
			c.JSON(http.StatusConflict, gin.H{"error": "Not enough stock for one of the items"})
			return
		case errors.Is(err, errQuoteMoved):
			c.JSON(http.StatusConflict, gin.H{"error": "Quote changed meanwhile, reload and retry"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert quote"})
			return
		}
		quote.Status = domain.QuoteConverted
		quote.OrderID = &order.ID
		logrus.WithFields(logrus.Fields{
			"admin": adminName(c),         // Acting admin
			"quote": quote.Number,         // Quote number
			"order": order.Number,         // New order
			"total": order.Total.String(), // Amount due
		}).Info("Quote converted")
		c.JSON(http.StatusCreated, gin.H{"quote": quote, "order": order})
	}
}

// SettingsRequest replaces the store settings
type SettingsRequest struct {
	StoreName                  string          `json:"store_name" binding:"required,max=160"`             // Store name
	Email                      string          `json:"email" binding:"omitempty,email"`                   // Contact email
	Phone                      string          `json:"phone" binding:"max=30"`                            // Contact phone
	WhatsApp                   string          `json:"whatsapp" binding:"max=30"`                         // WhatsApp number
	Address                    string          `json:"address" binding:"max=300"`                         // Street address
	Document                   string          `json:"document" binding:"omitempty,document"`             // Company CNPJ
	FreeShippingThreshold      decimal.Decimal `json:"free_shipping_threshold"`                           // 0 disables free shipping
	FlatShippingCost           decimal.Decimal `json:"flat_shipping_cost"`                                // Standard freight
	ExpressShippingCost        decimal.Decimal `json:"express_shipping_cost"`                             // Express freight
	PixDiscountPercent         decimal.Decimal `json:"pix_discount_percent"`                              // PIX discount
	BoletoDueDays              int             `json:"boleto_due_days" binding:"min=1,max=30"`            // Boleto expiry
	MaxInstallments            int             `json:"max_installments" binding:"min=1,max=24"`           // Card installment cap
	MinInstallmentValue        decimal.Decimal `json:"min_installment_value"`                             // Smallest installment
	InstallmentInterestPercent decimal.Decimal `json:"installment_interest_percent"`                      // Monthly interest
	InterestFreeInstallments   int             `json:"interest_free_installments" binding:"min=1,max=24"` // Interest-free count
}

// check returns a message for rules the binding tags cannot express
func (r *SettingsRequest) check() string {
	for name, v := range map[string]decimal.Decimal{
		"free_shipping_threshold": r.FreeShippingThreshold,
		"flat_shipping_cost":      r.FlatShippingCost,
		"express_shipping_cost":   r.ExpressShippingCost,
		"min_installment_value":   r.MinInstallmentValue,
	} {
		if v.IsNegative() {
			return name + " cannot be negative"
		}
	}
	hundred := decimal.NewFromInt(100)
	if r.PixDiscountPercent.IsNegative() || r.PixDiscountPercent.GreaterThanOrEqual(hundred) {
		return "pix_discount_percent must be between 0 and 100"
	}
	if r.InstallmentInterestPercent.IsNegative() || r.InstallmentInterestPercent.GreaterThan(hundred) {
		return "installment_interest_percent must be between 0 and 100"
	}
	if r.InterestFreeInstallments > r.MaxInstallments {
		return "interest_free_installments cannot exceed max_installments"
	}
	return ""
}

// settings builds the row the request describes
func (r *SettingsRequest) settings() domain.CompanySettings {
	return domain.CompanySettings{
		ID:                         domain.SettingsID,
		StoreName:                  strings.TrimSpace(r.StoreName),
		Email:                      r.Email,
		Phone:                      r.Phone,
		WhatsApp:                   r.WhatsApp,
		Address:                    r.Address,
		Document:                   r.Document,
		FreeShippingThreshold:      r.FreeShippingThreshold,
		FlatShippingCost:           r.FlatShippingCost,
		ExpressShippingCost:        r.ExpressShippingCost,
		PixDiscountPercent:         r.PixDiscountPercent,
		BoletoDueDays:              r.BoletoDueDays,
		MaxInstallments:            r.MaxInstallments,
		MinInstallmentValue:        r.MinInstallmentValue,
		InstallmentInterestPercent: r.InstallmentInterestPercent,
		InterestFreeInstallments:   r.InterestFreeInstallments,
	}
}
