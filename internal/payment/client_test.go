package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFunctions serves the remote functions from a map of handlers
func fakeFunctions(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_CreateBranchesOnMethod(t *testing.T) {
	var seen []string
	record := func(name string, reply map[string]any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			var req CreateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "A1B2", req.OrderNumber)
			seen = append(seen, name)
			writeJSON(w, http.StatusOK, reply)
		}
	}
	srv := fakeFunctions(t, map[string]http.HandlerFunc{
		"/create-pix":         record("pix", map[string]any{"id": "pix_1", "status": "PENDING", "qr_code": "iVBOR", "copy_paste": "000201"}),
		"/create-boleto":      record("boleto", map[string]any{"id": "bol_1", "status": "pending", "boleto_url": "https://b/1", "barcode": "2379"}),
		"/create-credit-card": record("card", map[string]any{"id": "cc_1", "status": "CONFIRMED"}),
	})
	c := NewClient(srv.URL+"/", "secret")
	req := CreateRequest{OrderNumber: "A1B2", Amount: decimal.NewFromInt(100)}

	pix, err := c.Create(context.Background(), domain.MethodPix, req)
	require.NoError(t, err)
	assert.Equal(t, "pix_1", pix.GatewayID)
	assert.Equal(t, domain.PaymentPending, pix.Status)
	assert.Equal(t, "000201", pix.PixCopyPaste)

	boleto, err := c.Create(context.Background(), domain.MethodBoleto, req)
	require.NoError(t, err)
	assert.Equal(t, "2379", boleto.BoletoBarcode)

	_, err = c.Create(context.Background(), domain.MethodCreditCard, req)
	assert.ErrorIs(t, err, ErrMissingCardToken)

	req.CardToken = "tok_1"
	req.Installments = 3
	card, err := c.Create(context.Background(), domain.MethodCreditCard, req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentApproved, card.Status)

	_, err = c.Create(context.Background(), "cash", req)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	assert.Equal(t, []string{"pix", "boleto", "card"}, seen)
}

func TestClient_Rejections(t *testing.T) {
	srv := fakeFunctions(t, map[string]http.HandlerFunc{
		"/create-pix": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"error": "invalid document"})
		},
		"/payment-status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})
	c := NewClient(srv.URL, "")

	_, err := c.Create(context.Background(), domain.MethodPix, CreateRequest{})
	assert.ErrorIs(t, err, ErrGatewayRejected)
	assert.Contains(t, err.Error(), "invalid document")

	_, err = c.Status(context.Background(), "pix_1")
	assert.ErrorIs(t, err, ErrGatewayRejected)
	assert.Contains(t, err.Error(), "Bad Gateway")
}

func TestClient_NotConfigured(t *testing.T) {
	_, err := NewClient("", "").Track(context.Background(), "AA123456789BR")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_StatusAndTrack(t *testing.T) {
	srv := fakeFunctions(t, map[string]http.HandlerFunc{
		"/payment-status": func(w http.ResponseWriter, r *http.Request) {
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			writeJSON(w, http.StatusOK, map[string]any{"id": in["id"], "status": "RECEIVED"})
		},
		"/track-shipment": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"code":   "AA123456789BR",
				"status": "in_transit",
				"events": []map[string]any{{"date": "2026-04-01T10:00:00Z", "location": "São Paulo/SP", "description": "Posted"}},
			})
		},
	})
	c := NewClient(srv.URL, "k")

	st, err := c.Status(context.Background(), "pix_9")
	require.NoError(t, err)
	assert.Equal(t, "pix_9", st.GatewayID)
	assert.Equal(t, domain.PaymentApproved, st.Status)

	tr, err := c.Track(context.Background(), "AA123456789BR")
	require.NoError(t, err)
	require.Len(t, tr.Events, 1)
	assert.Equal(t, "Posted", tr.Events[0].Description)
	assert.False(t, tr.Delivered)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, domain.PaymentApproved, NormalizeStatus("Paid"))
	assert.Equal(t, domain.PaymentRejected, NormalizeStatus("DENIED"))
	assert.Equal(t, domain.PaymentExpired, NormalizeStatus("overdue"))
	assert.Equal(t, domain.PaymentRefunded, NormalizeStatus("refunded"))
	assert.Equal(t, domain.PaymentPending, NormalizeStatus("awaiting_risk_analysis"))
}
