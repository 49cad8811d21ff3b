package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	SetupValidator()
}

func whoami(c *gin.Context) {
	id, ok := UserID(c)
	c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok})
}

func perform(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuthMiddleware("secret"), whoami)

	assert.Equal(t, http.StatusUnauthorized, perform(r, "GET", "/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "GET", "/me", "garbage", "").Code)

	token, err := utils.GenerateJWT(5, domain.RoleCustomer, "secret")
	require.NoError(t, err)
	w := perform(r, "GET", "/me", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":5,"ok":true}`, w.Body.String())
}

func TestOptionalJWTMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", OptionalJWTMiddleware("secret"), whoami)

	w := perform(r, "GET", "/me", "", "")
	assert.JSONEq(t, `{"id":0,"ok":false}`, w.Body.String())

	w = perform(r, "GET", "/me", "bad-token", "")
	assert.JSONEq(t, `{"id":0,"ok":false}`, w.Body.String())

	token, _ := utils.GenerateJWT(9, domain.RoleCustomer, "secret")
	w = perform(r, "GET", "/me", token, "")
	assert.JSONEq(t, `{"id":9,"ok":true}`, w.Body.String())
}

func TestAdminOnlyMiddleware(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	admin := domain.User{Name: "Ana", Email: "ana@example.com", Password: "x", Role: domain.RoleAdmin}
	customer := domain.User{Name: "Caio", Email: "caio@example.com", Password: "x", Role: domain.RoleCustomer}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&customer).Error)

	r := gin.New()
	r.GET("/admin", JWTAuthMiddleware("secret"), AdminOnlyMiddleware(db), whoami)

	adminToken, _ := utils.GenerateJWT(admin.ID, admin.Role, "secret")
	customerToken, _ := utils.GenerateJWT(customer.ID, customer.Role, "secret")
	ghostToken, _ := utils.GenerateJWT(999, domain.RoleAdmin, "secret")

	assert.Equal(t, http.StatusOK, perform(r, "GET", "/admin", adminToken, "").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "GET", "/admin", customerToken, "").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "GET", "/admin", ghostToken, "").Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.POST("/leads", NewRateLimiter(1, 2).Handler(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, perform(r, "POST", "/leads", "", "").Code)
	assert.Equal(t, http.StatusCreated, perform(r, "POST", "/leads", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, "POST", "/leads", "", "").Code)
}

func TestRateLimiter_SweepsIdleClientsOncePerPeriod(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	t0 := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clients := func() []string {
		var keys []string
		for k := range rl.limiters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}

	rl.getLimiter("a", t0)
	rl.getLimiter("b", t0.Add(5*time.Minute))
	rl.getLimiter("c", t0.Add(11*time.Minute))
	assert.Equal(t, []string{"b", "c"}, clients())

	// b is idle by now but the next sweep is not due yet
	rl.getLimiter("d", t0.Add(20*time.Minute))
	assert.Equal(t, []string{"b", "c", "d"}, clients())

	rl.getLimiter("e", t0.Add(21*time.Minute))
	assert.Equal(t, []string{"c", "d", "e"}, clients())
}

type signup struct {
	Email    string `json:"email" binding:"required,email"`
	Document string `json:"document" binding:"required,document"`
}

func TestBindJSON(t *testing.T) {
	r := gin.New()
	r.POST("/signup", func(c *gin.Context) {
		var req signup
		if !BindJSON(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, perform(r, "POST", "/signup", "", `{"email":"a@b.com","document":"529.982.247-25"}`).Code)

	w := perform(r, "POST", "/signup", "", `{"email":"nope","document":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error  string `json:"error"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Fields, 2)
	assert.Equal(t, "email", body.Fields[0].Field)
	assert.Equal(t, "document", body.Fields[1].Field)

	w = perform(r, "POST", "/signup", "", `{not json`)
	assert.JSONEq(t, `{"error":"Invalid request"}`, w.Body.String())
}
