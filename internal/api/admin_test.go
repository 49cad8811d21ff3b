package api

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"storefront/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestAdmin_RequiresAdminRole(t *testing.T) {
	env := setup(t)
	_, customer := env.user(t, "maria@example.com", domain.RoleCustomer)
	_, admin := env.user(t, "admin@example.com", domain.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/admin/products", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do("GET", "/admin/products", customer, nil).Code)
	assert.Equal(t, http.StatusOK, env.do("GET", "/admin/products", admin, nil).Code)
}

func TestAdmin_ProductAndCategoryCRUD(t *testing.T) {
	env := setup(t)
	_, admin := env.user(t, "admin@example.com", domain.RoleAdmin)

	w := env.do("POST", "/admin/categories", admin, map[string]any{"name": "Canecas Térmicas"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cat := decode[struct {
		Category domain.Category `json:"category"`
	}](t, w).Category
	assert.Equal(t, "canecas-termicas", cat.Slug)
	assert.Equal(t, http.StatusConflict, env.do("POST", "/admin/categories", admin, map[string]any{"name": "Canecas termicas"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("PUT", "/admin/categories/"+itoa(cat.ID), admin, map[string]any{"name": "Canecas", "parent_id": cat.ID}).Code)

	body := map[string]any{
		"category_id": cat.ID,
		"name":        "Caneca Térmica Inox",
		"sku":         "ct-1",
		"price":       "59.90",
		"stock":       5,
		"tiers":       []map[string]any{{"min_quantity": 10, "discount_percent": "5"}},
	}
	w = env.do("POST", "/admin/products", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := decode[struct {
		Product domain.Product `json:"product"`
	}](t, w).Product
	assert.Equal(t, "caneca-termica-inox", product.Slug)
	assert.Equal(t, "CT-1", product.SKU)
	assert.True(t, product.Active)
	require.Len(t, product.Tiers, 1)

	body["name"] = "Outra Caneca"
	assert.Equal(t, http.StatusConflict, env.do("POST", "/admin/products", admin, body).Code)

	body["tiers"] = []map[string]any{{"min_quantity": 10, "discount_percent": "5"}, {"min_quantity": 10, "discount_percent": "8"}}
	body["sku"] = "CT-2"
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("POST", "/admin/products", admin, body).Code)

	update := map[string]any{"category_id": cat.ID, "name": "Caneca Térmica Inox", "sku": "CT-1", "price": "64.90", "stock": 8, "active": false}
	w = env.do("PUT", "/admin/products/"+itoa(product.ID), admin, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stored domain.Product
	require.NoError(t, env.db.Preload("Tiers").First(&stored, product.ID).Error)
	assert.False(t, stored.Active)
	assert.Equal(t, "64.90", money(stored.Price))
	assert.Len(t, stored.Tiers, 1) // tiers untouched when not sent

	w = env.do("PUT", "/admin/products/"+itoa(product.ID)+"/tiers", admin, map[string]any{"tiers": []any{}})
	require.Equal(t, http.StatusOK, w.Code)
	var tiers int64
	require.NoError(t, env.db.Model(&domain.PriceTier{}).Where("product_id = ?", product.ID).Count(&tiers).Error)
	assert.Zero(t, tiers)

	w = env.do("GET", "/admin/products?active=false", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[struct {
		Total int64 `json:"total"`
	}](t, w).Total)

	assert.Equal(t, http.StatusConflict, env.do("DELETE", "/admin/categories/"+itoa(cat.ID), admin, nil).Code)
	require.Equal(t, http.StatusOK, env.do("DELETE", "/admin/products/"+itoa(product.ID), admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do("GET", "/admin/products/"+itoa(product.ID), admin, nil).Code)
	assert.Equal(t, http.StatusOK, env.do("DELETE", "/admin/categories/"+itoa(cat.ID), admin, nil).Code)
}

func TestAdmin_CouponsAndPromotions(t *testing.T) {
	env := setup(t)
	_, admin := env.user(t, "admin@example.com", domain.RoleAdmin)
	cat := env.category(t, "Canecas", "canecas")

	coupon := map[string]any{"code": "natal10", "type": "percent", "value": "10"}
	w := env.do("POST", "/admin/coupons", admin, coupon)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"code":"NATAL10"`)
	assert.Equal(t, http.StatusConflict, env.do("POST", "/admin/coupons", admin, coupon).Code)
	coupon["code"], coupon["value"] = "DEMAIS", "150"
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("POST", "/admin/coupons", admin, coupon).Code)

	promo := map[string]any{
		"title":            "Semana das canecas",
		"discount_percent": "15",
		"category_id":      cat.ID,
		"starts_at":        "2026-06-01T00:00:00Z",
		"ends_at":          "2026-06-08T00:00:00Z",
	}
	require.Equal(t, http.StatusCreated, env.do("POST", "/admin/promotions", admin, promo).Code)
	promo["ends_at"] = "2026-05-01T00:00:00Z"
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/admin/promotions", admin, promo).Code)

	w = env.do("GET", "/promotions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Semana das canecas")
}

func TestAdmin_OrderStatusTransitions(t *testing.T) {
	env := setup(t)
	_, token := mugCart(t, env)
	_, admin := env.user(t, "admin@example.com", domain.RoleAdmin)
	order := decode[orderResponse](t, env.do("POST", "/checkout", token, checkoutBody(domain.MethodBoleto))).Order
	url := "/admin/orders/" + itoa(order.ID) + "/status"

	assert.Equal(t, http.StatusConflict, env.do("PATCH", url, admin, map[string]string{"status": "shipped"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("PATCH", url, admin, map[string]string{"status": "lost"}).Code)
	require.Equal(t, http.StatusOK, env.do("PATCH", url, admin, map[string]string{"status": "paid"}).Code)
	require.Equal(t, http.StatusOK, env.do("PATCH", url, admin, map[string]string{"status": "processing"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("PATCH", url, admin, map[string]string{"status": "shipped"}).Code)

	w := env.do("PATCH", url, admin, map[string]string{"status": "shipped", "tracking_code": "BR123456789"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"tracking_code":"BR123456789"`)
	assert.Equal(t, http.StatusConflict, env.do("PATCH", url, admin, map[string]string{"status": "cancelled"}).Code)
	require.Equal(t, http.StatusOK, env.do("PATCH", url, admin, map[string]string{"status": "delivered"}).Code)

	w = env.do("GET", "/admin/orders/"+itoa(order.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"delivered"`)
	assert.Contains(t, w.Body.String(), "gw-1")

	w = env.do("GET", "/admin/orders?status=delivered", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), order.Number)
}

func TestAdmin_CancelPaidOrderRestoresStock(t *testing.T) {
	env := setup(t)
	p, token := mugCart(t, env)
	_, admin := env.user(t, "admin@example.com", domain.RoleAdmin)
	order := decode[orderResponse](t, env.do("POST", "/checkout", token, checkoutBody(domain.MethodPix))).Order
	url := "/admin/orders/" + itoa(order.ID) + "/status"

	require.Equal(t, http.StatusOK, env.do("PATCH", url, admin, map[string]string{"status": "paid"}).Code)
	require.Equal(t, http.StatusOK, env.do("PATCH", url, admin, map[string]string{"status": "cancelled"}).Code)

	var stock domain.Product
	require.NoError(t, env.db.First(&stock, p.ID).Error)
	assert.Equal(t, 10, stock.Stock)
}

func TestAdmin_QuoteLifecycle(t *testing.T) {
	env := setup(t)
	cat := env.category(t, "Canecas", "canecas")
	p := env.product(t, cat, "CAN-1", "50.00", 10)
	_, customer := env.user(t, "maria@example.com", domain.RoleCustomer)
	_, admin := env.user(t, "admin@example.com", domain.RoleAdmin)
	contact := map[string]string{"name": "Maria Silva", "email": "maria@example.com", "phone": "11987654321", "document": "529.982.247-25"}

	w := env.do("POST", "/quotes", customer, map[string]any{"lines": []map[string]any{{"quantity": 5}}, "customer": contact})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"step":"cart"`)

	w = env.do("POST", "/quotes", customer, map[string]any{
		"lines": []map[string]any{
			{"product_id": p.ID, "quantity": 4},
			{"description": "Caneca com logo gravado", "quantity": 50},
		},
		"customer": contact,
		"company":  "Silva Brindes",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	quote := decode[struct {
		Quote domain.Quote `json:"quote"`
	}](t, w).Quote
	require.Len(t, quote.Items, 2)
	require.NotNil(t, quote.UserID)
	base := "/admin/quotes/" + itoa(quote.ID)

	assert.Equal(t, http.StatusConflict, env.do("POST", base+"/approve", admin, nil).Code)
	assert.Equal(t, http.StatusConflict, env.do("POST", "/quotes/"+quote.Number+"/accept", customer, nil).Code)

	partial := map[string]any{"items": []map[string]any{{"id": quote.Items[0].ID, "unit_price": "45"}}}
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("PUT", base+"/price", admin, partial).Code)

	priced := map[string]any{
		"items": []map[string]any{
			{"id": quote.Items[0].ID, "unit_price": "45"},
			{"id": quote.Items[1].ID, "unit_price": "11"},
		},
		"quoted_total": "700",
		"admin_notes":  "Frete incluso",
	}
	w = env.do("PUT", base+"/price", admin, priced)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"priced"`)

	w = env.do("GET", "/quotes/"+quote.Number, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Frete incluso")
	assert.Contains(t, w.Body.String(), `"redacted":true`)
	assert.NotContains(t, w.Body.String(), "maria@example.com")
	assert.NotContains(t, w.Body.String(), "11987654321")
	assert.NotContains(t, w.Body.String(), "52998224725")

	_, stranger := env.user(t, "joao@example.com", domain.RoleCustomer)
	w = env.do("GET", "/quotes/"+quote.Number, stranger, nil)
	assert.NotContains(t, w.Body.String(), "maria@example.com")

	w = env.do("GET", "/quotes/"+quote.Number, customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redacted":false`)
	assert.Contains(t, w.Body.String(), "maria@example.com")
	assert.Contains(t, w.Body.String(), "52998224725")

	require.Equal(t, http.StatusOK, env.do("POST", "/quotes/"+quote.Number+"/accept", customer, nil).Code)

	w = env.do("POST", base+"/convert", admin, map[string]any{"payment_method": "pix", "shipping_method": "express"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"address"`)
	assert.Contains(t, w.Body.String(), "address.cep")

	badState := map[string]any{
		"payment_method":  "pix",
		"shipping_method": "express",
		"address":         map[string]any{"cep": "01310-100", "street": "Av. Paulista", "number": "1000", "district": "Bela Vista", "city": "Sao Paulo", "state": "XX"},
	}
	w = env.do("POST", base+"/convert", admin, badState)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "address.state")

	w = env.do("POST", base+"/convert", admin, map[string]any{"payment_method": "pix"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	converted := decode[struct {
		Quote domain.Quote `json:"quote"`
		Order domain.Order `json:"order"`
	}](t, w)
	assert.Equal(t, domain.QuoteConverted, converted.Quote.Status)
	assert.Equal(t, "665.00", money(converted.Order.Total))
	assert.Equal(t, "pickup", converted.Order.ShippingMethod)
	assert.Equal(t, "52998224725", converted.Order.Customer.Document)
	require.Len(t, converted.Order.Items, 2)
	assert.Equal(t, "Produto CAN-1", converted.Order.Items[0].Name)
	assert.Equal(t, "Caneca com logo gravado", converted.Order.Items[1].Name)

	var stock domain.Product
	require.NoError(t, env.db.First(&stock, p.ID).Error)
	assert.Equal(t, 6, stock.Stock)

	assert.Equal(t, http.StatusConflict, env.do("POST", base+"/convert", admin, map[string]any{"payment_method": "pix"}).Code)
	assert.Equal(t, http.StatusConflict, env.do("POST", base+"/reject", admin, nil).Code)

	w = env.do("GET", "/orders", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), converted.Order.Number)
}

func TestAdmin_ImageUpload(t *testing.T) {
	env := setup(t)
	_, admin := env.user(t, "admin@example.com", domain.RoleAdmin)
	p := env.product(t, env.category(t, "Canecas", "canecas"), "CAN-1", "50.00", 10)
	url := "/admin/products/" + itoa(p.ID) + "/images"

	upload := func(data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "foto.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		req := httptest.NewRequest("POST", url, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := upload([]byte("plain text pretending to be a png"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	w = upload(png)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	image := decode[struct {
		Image domain.ProductImage `json:"image"`
	}](t, w).Image
	assert.Regexp(t, regexp.MustCompile(`^https://cdn\.test/products/\d+/.+\.png$`), image.URL)
	assert.Len(t, env.store.objects, 1)

	var stored domain.Product
	require.NoError(t, env.db.First(&stored, p.ID).Error)
	assert.Equal(t, image.URL, stored.ImageURL)

	require.Equal(t, http.StatusOK, env.do("DELETE", url+"/"+itoa(image.ID), admin, nil).Code)
	require.NoError(t, env.db.First(&stored, p.ID).Error)
	assert.Empty(t, stored.ImageURL)
	assert.Empty(t, env.store.objects)
}

func TestAdmin_UsersReviewsAndSettings(t *testing.T) {
	env := setup(t)
	adminUser, admin := env.user(t, "admin@example.com", domain.RoleAdmin)
	customer, customerToken := env.user(t, "maria@example.com", domain.RoleCustomer)
	p := env.product(t, env.category(t, "Canecas", "canecas"), "CAN-1", "50.00", 10)

	w := env.do("GET", "/admin/users?role=customer", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[usersPage](t, w)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "maria@example.com", users.Users[0].Email)
	assert.False(t, users.Cached)

	assert.Equal(t, http.StatusConflict, env.do("PATCH", "/admin/users/"+itoa(adminUser.ID)+"/role", admin, map[string]string{"role": "customer"}).Code)
	require.Equal(t, http.StatusOK, env.do("PATCH", "/admin/users/"+itoa(customer.ID)+"/role", admin, map[string]string{"role": "admin"}).Code)
	assert.Equal(t, http.StatusOK, env.do("GET", "/admin/leads", customerToken, nil).Code)

	w = env.do("POST", "/products/"+p.Slug+"/reviews", customerToken, map[string]any{"rating": 5, "comment": "Mantém o café quente o dia todo"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	review := decode[struct {
		Review domain.Review `json:"review"`
	}](t, w).Review

	w = env.do("GET", "/admin/reviews?approved=false", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "café quente")
	require.Equal(t, http.StatusOK, env.do("PATCH", "/admin/reviews/"+itoa(review.ID), admin, map[string]bool{"approved": true}).Code)
	w = env.do("GET", "/products/"+p.Slug+"/reviews", "", nil)
	assert.Contains(t, w.Body.String(), "café quente")

	settings := map[string]any{
		"store_name":                   "Canecas & Cia",
		"email":                        "contato@canecas.com.br",
		"free_shipping_threshold":      "0",
		"flat_shipping_cost":           "15.00",
		"express_shipping_cost":        "30.00",
		"pix_discount_percent":         "8",
		"boleto_due_days":              5,
		"max_installments":             10,
		"min_installment_value":        "30",
		"installment_interest_percent": "2.5",
		"interest_free_installments":   2,
	}
	w = env.do("PUT", "/admin/settings", admin, settings)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do("GET", "/settings", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	public := decode[PublicSettings](t, w)
	assert.Equal(t, "Canecas & Cia", public.StoreName)
	assert.Equal(t, "8.00", money(public.PixDiscountPercent))
	assert.True(t, public.FreeShippingThreshold.IsZero())
	assert.NotContains(t, w.Body.String(), "boleto_due_days")

	settings["interest_free_installments"] = 12
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("PUT", "/admin/settings", admin, settings).Code)
}

func TestListLeads_DatabaseError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	conn, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `leads`").WillReturnError(errors.New("connection reset"))

	r := gin.New()
	r.GET("/leads", ListLeadsHandler(conn))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/leads", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch leads"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLeads_FiltersBySource(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	conn, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `leads` WHERE source = \\?").
		WithArgs("newsletter").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT \\* FROM `leads` WHERE source = \\? ORDER BY `created_at` DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "source"}).AddRow(7, "Ana", "ana@example.com", "newsletter"))

	r := gin.New()
	r.GET("/leads", ListLeadsHandler(conn))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/leads?source=newsletter", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"email":"ana@example.com"`)
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
