package middleware

import (
	"net/http"                       // HTTP status codes
	"storefront/internal/validation" // Validator setup and messages

	"github.com/gin-gonic/gin"               // Gin web framework
	"github.com/gin-gonic/gin/binding"       // Gin binding engine
	"github.com/go-playground/validator/v10" // Validator engine
)

// SetupValidator registers the storefront tags and json field naming on
// gin's binding validator
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validation.Register(v)
	}
}

// BindJSON binds the body into dest and answers 400 with field errors on
// failure. It reports whether the handler may go on.
func BindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		if fields := validation.Fields(err); len(fields) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Request validation failed", "fields": fields})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		}
		return false
	}
	return true
}
