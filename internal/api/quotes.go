package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"storefront/internal/checkout"   // Wizard gating
	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/listing"    // Table params and paging
	"storefront/internal/middleware" // Optional user and binding
	"storefront/internal/validation" // Document digits

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// QuoteRequest is a quote submission; lines may name a product or describe one
type QuoteRequest struct {
	Lines    []checkout.Line       `json:"lines"`                      // Requested items
	Customer checkout.CustomerStep `json:"customer"`                   // Contact
	Company  string                `json:"company" binding:"max=160"`  // Company name
	Message  string                `json:"message" binding:"max=4000"` // Request details
}

var quoteListing = listing.Spec{
	Sortable:     map[string]string{"created_at": "created_at", "status": "status", "number": "number"},
	Filterable:   map[string]string{"status": "status"},
	Searchable:   []string{"number", "message"},
	DateColumn:   "created_at",
	DefaultSort:  "created_at",
	DefaultOrder: "desc",
}

// SubmitQuoteHandler stores a quote request. Logged-in customers get it linked
// to their account.
func SubmitQuoteHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QuoteRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		// Attach the product minimums so the wizard checks them
		for i, l := range req.Lines {
			if l.ProductID == 0 {
				continue
			}
			var product domain.Product
			if err := db.Select("id", "min_quantity", "stock").Where("id = ? AND active = ?", l.ProductID, true).First(&product).Error; err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Product not found", "product_id": l.ProductID})
				return
			}
			req.Lines[i].MinQuantity = product.MinQuantity
			req.Lines[i].Stock = product.Stock
		}
		form := checkout.Form{Lines: req.Lines, Customer: req.Customer}
		if err := checkout.NewQuote(&form).ValidateAll(); err != nil {
			var stepErr *checkout.StepError
			if errors.As(err, &stepErr) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Quote is incomplete", "step": stepErr.Step.String(), "fields": stepErr.Fields})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		quote := domain.Quote{
			Number:   publicNumber("Q"),
			Name:     strings.TrimSpace(req.Customer.Name),
			Email:    strings.ToLower(strings.TrimSpace(req.Customer.Email)),
			Phone:    req.Customer.Phone,
			Company:  strings.TrimSpace(req.Company),
			Document: validation.Digits(req.Customer.Document),
			Message:  strings.TrimSpace(req.Message),
			Status:   domain.QuotePending,
		}
		if userID, ok := middleware.UserID(c); ok {
			quote.UserID = &userID
		}
		for _, l := range req.Lines {
			item := domain.QuoteItem{Description: strings.TrimSpace(l.Description), Quantity: l.Quantity}
			if l.ProductID != 0 {
				id := l.ProductID
				item.ProductID = &id
			}
			quote.Items = append(quote.Items, item)
		}
		if err := db.Create(&quote).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save quote"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"quote": quote.Number,     // Quote number
			"lines": len(quote.Items), // Requested lines
		}).Info("Quote submitted")
		c.JSON(http.StatusCreated, gin.H{"message": "Quote submitted", "quote": quote})
	}
}

// ListMyQuotesHandler returns a page of the user's quotes
func ListMyQuotesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		params := listing.ParseParams(c, quoteListing)
		page, err := listing.Find[domain.Quote](db.Where("user_id = ?", userID), quoteListing, params, func(tx *gorm.DB) *gorm.DB {
			return tx.Preload("Items")
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quotes"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// findQuote loads a quote with its items by a column match
func findQuote(db *gorm.DB, column string, value any) (*domain.Quote, error) {
	var quote domain.Quote
	err := db.Preload("Items").Where(column+" = ?", value).First(&quote).Error
	return &quote, err
}

// redactQuote drops the contact details of a quote
func redactQuote(q *domain.Quote) {
	q.Email, q.Phone, q.Document = "", "", ""
}

// GetQuoteHandler returns a quote by its public number. Only the owner sees
// the contact details; anyone else holding the number gets them redacted.
func GetQuoteHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, err := findQuote(db, "number", strings.ToUpper(c.Param("number")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		userID, ok := middleware.UserID(c)
		owner := ok && quote.UserID != nil && *quote.UserID == userID
		if !owner {
			redactQuote(quote)
		}
		c.JSON(http.StatusOK, gin.H{"quote": quote, "redacted": !owner})
	}
}

// AcceptQuoteHandler lets the owner accept a priced quote
func AcceptQuoteHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		quote, err := findQuote(db, "number", strings.ToUpper(c.Param("number")))
		if err != nil || quote.UserID == nil || *quote.UserID != userID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		if quote.Status != domain.QuotePriced {
			c.JSON(http.StatusConflict, gin.H{"error": "Only priced quotes can be accepted"})
			return
		}
		// Conditional update so a concurrent admin change is not overwritten
		res := db.Model(&domain.Quote{}).Where("id = ? AND status = ?", quote.ID, domain.QuotePriced).Update("status", domain.QuoteApproved)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept quote"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Only priced quotes can be accepted"})
			return
		}
		quote.Status = domain.QuoteApproved
		logrus.WithFields(logrus.Fields{
			"quote":   quote.Number, // Quote number
			"user_id": userID,       // Accepting customer
		}).Info("Quote accepted")
		c.JSON(http.StatusOK, gin.H{"message": "Quote accepted", "quote": quote})
	}
}
