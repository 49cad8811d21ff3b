// Package payment talks to the remote payment and tracking functions and
// keeps the stored payment rows in step with them.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// Remote function names, appended to the base URL
const (
	fnCreatePix        = "create-pix"
	fnCreateBoleto     = "create-boleto"
	fnCreateCreditCard = "create-credit-card"
	fnPaymentStatus    = "payment-status"
	fnTrackShipment    = "track-shipment"
)

var (
	ErrNotConfigured     = errors.New("payment functions are not configured")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrGatewayRejected   = errors.New("payment gateway rejected the request")
	ErrMissingCardToken  = errors.New("card token is required for credit card payments")
)

// Payer identifies who pays
type Payer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

// CreateRequest is the payload of the create-* functions
type CreateRequest struct {
	OrderNumber  string          `json:"order_number"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Payer        Payer           `json:"payer"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Installments int             `json:"installments,omitempty"`
	CardToken    string          `json:"card_token,omitempty"`
}

// CreateResult is what the create-* functions return
type CreateResult struct {
	GatewayID     string     `json:"id"`
	Status        string     `json:"status"`
	PixQRCode     string     `json:"qr_code"`
	PixCopyPaste  string     `json:"copy_paste"`
	BoletoURL     string     `json:"boleto_url"`
	BoletoBarcode string     `json:"barcode"`
	DueDate       *time.Time `json:"due_date"`
}

// StatusResult is what payment-status returns
type StatusResult struct {
	GatewayID string `json:"id"`
	Status    string `json:"status"`
}

// TrackingEvent is one carrier scan
type TrackingEvent struct {
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

// TrackingResult is what track-shipment returns
type TrackingResult struct {
	Code      string          `json:"code"`
	Status    string          `json:"status"`
	Delivered bool            `json:"delivered"`
	Events    []TrackingEvent `json:"events"`
}

// Gateway is the set of remote calls the storefront makes
type Gateway interface {
	Create(ctx context.Context, method string, req CreateRequest) (*CreateResult, error)
	Status(ctx context.Context, gatewayID string) (*StatusResult, error)
	Track(ctx context.Context, code string) (*TrackingResult, error)
}

var _ Gateway = (*Client)(nil)

// Client calls the remote functions over HTTP with a bearer key
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

// NewClient creates a client for the functions under baseURL
func NewClient(baseURL, key string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Create branches on method and calls the matching create function
func (c *Client) Create(ctx context.Context, method string, req CreateRequest) (*CreateResult, error) {
	var fn string
	switch method {
	case domain.MethodPix:
		fn = fnCreatePix
	case domain.MethodBoleto:
		fn = fnCreateBoleto
	case domain.MethodCreditCard:
		if req.CardToken == "" {
			return nil, ErrMissingCardToken
		}
		fn = fnCreateCreditCard
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	var out CreateResult
	if err := c.call(ctx, fn, req, &out); err != nil {
		return nil, err
	}
	out.Status = NormalizeStatus(out.Status)
	return &out, nil
}

// Status asks the gateway for the current status of a payment
func (c *Client) Status(ctx context.Context, gatewayID string) (*StatusResult, error) {
	var out StatusResult
	if err := c.call(ctx, fnPaymentStatus, map[string]string{"id": gatewayID}, &out); err != nil {
		return nil, err
	}
	out.Status = NormalizeStatus(out.Status)
	return &out, nil
}

// Track looks up carrier events for a tracking code
func (c *Client) Track(ctx context.Context, code string) (*TrackingResult, error) {
	var out TrackingResult
	if err := c.call(ctx, fnTrackShipment, map[string]string{"code": code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call posts in as JSON to the function and decodes the reply into out.
// A non-2xx status or an "error" member in the body is a rejection.
func (c *Client) call(ctx context.Context, fn string, in, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("payment: failed to marshal %s request: %w", fn, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+fn, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("payment: failed to build %s request: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment: %s request failed: %w", fn, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("payment: failed to read %s response: %w", fn, err)
	}
	var failure struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &failure)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || failure.Error != "" {
		msg := failure.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s: %s", ErrGatewayRejected, fn, msg)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payment: failed to parse %s response: %w", fn, err)
	}
	return nil
}

// NormalizeStatus maps gateway status names onto the payment statuses
func NormalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "approved", "confirmed", "received", "paid", "authorized", "captured":
		return domain.PaymentApproved
	case "rejected", "refused", "failed", "denied", "cancelled", "canceled":
		return domain.PaymentRejected
	case "expired", "overdue":
		return domain.PaymentExpired
	case "refunded", "chargeback", "charged_back":
		return domain.PaymentRefunded
	}
	return domain.PaymentPending
}
