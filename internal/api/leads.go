package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"storefront/internal/domain"     // Importing domain models
	"storefront/internal/middleware" // Request binding

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// LeadRequest is a contact form or newsletter sign-up
type LeadRequest struct {
	Name    string `json:"name" binding:"max=120"`            // Optional for newsletter sign-ups
	Email   string `json:"email" binding:"required,email"`    // Contact email
	Phone   string `json:"phone" binding:"omitempty,max=30"`  // Contact phone
	Source  string `json:"source" binding:"omitempty,max=40"` // footer, contact, popup...
	Message string `json:"message" binding:"max=4000"`        // Free text
}

// CreateLeadHandler captures a lead
func CreateLeadHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LeadRequest // Bind JSON request to struct
		if !middleware.BindJSON(c, &req) {
			return
		}
		lead := domain.Lead{
			Name:    strings.TrimSpace(req.Name),
			Email:   strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:   req.Phone,
			Source:  req.Source,
			Message: strings.TrimSpace(req.Message),
		}
		if lead.Source == "" {
			lead.Source = "contact" // Default source
		}
		if err := db.Create(&lead).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save contact"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"lead_id": lead.ID,     // Lead id
			"source":  lead.Source, // Capture point
		}).Info("Lead captured")
		c.JSON(http.StatusCreated, gin.H{"message": "Thanks, we will be in touch"})
	}
}
