package payment

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// stubGateway answers from fixed values and records what it was asked
type stubGateway struct {
	mu        sync.Mutex
	create    *CreateResult
	createErr error
	statuses  map[string]string
	statusErr error
	requests  []CreateRequest
}

func (s *stubGateway) Create(ctx context.Context, method string, req CreateRequest) (*CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.createErr != nil {
		return nil, s.createErr
	}
	out := *s.create
	return &out, nil
}

func (s *stubGateway) Status(ctx context.Context, id string) (*StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &StatusResult{GatewayID: id, Status: s.statuses[id]}, nil
}

func (s *stubGateway) Track(ctx context.Context, code string) (*TrackingResult, error) {
	return &TrackingResult{Code: code}, nil
}

// heldGateway blocks Create until release is closed
type heldGateway struct {
	stubGateway
	entered chan struct{}
	release chan struct{}
}

func (h *heldGateway) Create(ctx context.Context, method string, req CreateRequest) (*CreateResult, error) {
	h.entered <- struct{}{}
	<-h.release
	return h.stubGateway.Create(ctx, method, req)
}

func setupDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // every connection to :memory: is a new database
	require.NoError(t, db.AutoMigrate(&domain.Order{}, &domain.OrderItem{}, &domain.Payment{}))
	return db
}

func createOrder(t *testing.T, db *gorm.DB, number, method string) *domain.Order {
	o := &domain.Order{
		Number:        number,
		UserID:        1,
		Status:        domain.OrderPendingPayment,
		Customer:      domain.Customer{Name: "Maria", Email: "maria@example.com", Document: "52998224725"},
		PaymentMethod: method,
		Total:         decimal.RequireFromString("150.00"),
		Installments:  1,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func TestStart_Boleto(t *testing.T) {
	db := setupDB(t)
	order := createOrder(t, db, "ORD1", domain.MethodBoleto)
	gw := &stubGateway{create: &CreateResult{GatewayID: "bol_1", Status: domain.PaymentPending, BoletoURL: "https://b/1"}}

	p, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	require.NoError(t, err)
	assert.Equal(t, "bol_1", p.GatewayID)
	assert.Equal(t, domain.PaymentPending, p.Status)
	require.NotNil(t, p.DueDate)
	assert.Equal(t, now.AddDate(0, 0, 3), *p.DueDate)
	assert.Equal(t, "150.00", gw.requests[0].Amount.StringFixed(2))
	assert.Equal(t, "Maria", gw.requests[0].Payer.Name)

	again, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	assert.ErrorIs(t, err, ErrPaymentPending)
	assert.Equal(t, p.ID, again.ID)
	assert.Len(t, gw.requests, 1)
}

func TestStart_CardApprovedImmediately(t *testing.T) {
	db := setupDB(t)
	order := createOrder(t, db, "ORD2", domain.MethodCreditCard)
	gw := &stubGateway{create: &CreateResult{GatewayID: "cc_1", Status: domain.PaymentApproved}}

	_, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "tok_1", now)
	require.NoError(t, err)
	assert.Equal(t, "tok_1", gw.requests[0].CardToken)

	var stored domain.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, domain.OrderPaid, stored.Status)

	_, err = Start(context.Background(), db, gw, &stored, domain.DefaultSettings(), "tok_1", now)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}

func TestStart_GatewayFailureStoresNothing(t *testing.T) {
	db := setupDB(t)
	order := createOrder(t, db, "ORD3", domain.MethodPix)
	gw := &stubGateway{createErr: errors.Join(ErrGatewayRejected, errors.New("boom"))}

	_, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	assert.ErrorIs(t, err, ErrGatewayRejected)

	var count int64
	require.NoError(t, db.Model(&domain.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStart_ConcurrentCallsCreateOnePayment(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pay.db")+"?_busy_timeout=5000"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Order{}, &domain.OrderItem{}, &domain.Payment{}))
	order := createOrder(t, db, "ORD9", domain.MethodPix)
	gw := &heldGateway{
		stubGateway: stubGateway{create: &CreateResult{GatewayID: "pix_9", Status: domain.PaymentPending}},
		entered:     make(chan struct{}, 2),
		release:     make(chan struct{}),
	}

	type result struct {
		p   *domain.Payment
		err error
	}
	first := make(chan result, 1)
	go func() {
		p, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
		first <- result{p, err}
	}()
	<-gw.entered // first caller holds the claim and waits on the gateway

	second := make(chan error, 1)
	go func() {
		_, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
		second <- err
	}()
	select {
	case err := <-second:
		assert.ErrorIs(t, err, ErrPaymentInFlight)
	case <-gw.entered:
		t.Fatal("second caller reached the gateway")
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}

	close(gw.release)
	res := <-first
	require.NoError(t, res.err)

	var count int64
	require.NoError(t, db.Model(&domain.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored domain.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Nil(t, stored.PaymentClaimedAt)

	again, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	assert.ErrorIs(t, err, ErrPaymentPending)
	assert.Equal(t, res.p.ID, again.ID)
	assert.Len(t, gw.requests, 1)
}

func TestStart_ClaimsAndRepricing(t *testing.T) {
	db := setupDB(t)
	order := createOrder(t, db, "ORD10", domain.MethodPix)
	gw := &stubGateway{create: &CreateResult{GatewayID: "pix_10", Status: domain.PaymentPending}}

	// a live claim blocks, an expired one is taken over
	require.NoError(t, db.Model(order).Update("payment_claimed_at", now.Add(-time.Minute)).Error)
	_, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	assert.ErrorIs(t, err, ErrPaymentInFlight)
	assert.Empty(t, gw.requests)

	require.NoError(t, db.Model(order).Update("payment_claimed_at", now.Add(-ClaimTTL-time.Minute)).Error)

	// the caller priced another method than the one stored
	stale := *order
	stale.PaymentMethod = domain.MethodBoleto
	_, err = Start(context.Background(), db, gw, &stale, domain.DefaultSettings(), "", now)
	assert.ErrorIs(t, err, ErrOrderChanged)

	p, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	require.NoError(t, err)
	assert.Equal(t, "pix_10", p.GatewayID)

	// repricing is refused while a payment is pending
	res := db.Model(&domain.Order{}).Where("id = ?", order.ID).Scopes(Unclaimed(order.ID, now)).Update("payment_method", domain.MethodBoleto)
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)
}

func TestStart_GatewayFailureReleasesClaim(t *testing.T) {
	db := setupDB(t)
	order := createOrder(t, db, "ORD11", domain.MethodPix)
	gw := &stubGateway{createErr: errors.New("timeout")}

	_, err := Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	require.Error(t, err)

	gw.createErr = nil
	gw.create = &CreateResult{GatewayID: "pix_11", Status: domain.PaymentPending}
	_, err = Start(context.Background(), db, gw, order, domain.DefaultSettings(), "", now)
	require.NoError(t, err)
	assert.Len(t, gw.requests, 2)
}

func TestRefresh_RejectedKeepsOrderPayable(t *testing.T) {
	db := setupDB(t)
	order := createOrder(t, db, "ORD4", domain.MethodPix)
	p := &domain.Payment{OrderID: order.ID, Method: domain.MethodPix, Status: domain.PaymentPending, GatewayID: "pix_4", Amount: order.Total}
	require.NoError(t, db.Create(p).Error)
	gw := &stubGateway{statuses: map[string]string{"pix_4": domain.PaymentRejected}}

	require.NoError(t, Refresh(context.Background(), db, gw, p, now))
	assert.Equal(t, domain.PaymentRejected, p.Status)

	var stored domain.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, domain.OrderPendingPayment, stored.Status)

	// a final payment is not asked again
	gw.statuses["pix_4"] = domain.PaymentApproved
	require.NoError(t, Refresh(context.Background(), db, gw, p, now))
	assert.Equal(t, domain.PaymentRejected, p.Status)
}

func TestPoller_Tick(t *testing.T) {
	db := setupDB(t)
	o1 := createOrder(t, db, "ORD5", domain.MethodPix)
	o2 := createOrder(t, db, "ORD6", domain.MethodBoleto)
	p1 := &domain.Payment{OrderID: o1.ID, Method: domain.MethodPix, Status: domain.PaymentPending, GatewayID: "pix_5", Amount: o1.Total}
	p2 := &domain.Payment{OrderID: o2.ID, Method: domain.MethodBoleto, Status: domain.PaymentPending, GatewayID: "bol_6", Amount: o2.Total}
	require.NoError(t, db.Create(p1).Error)
	require.NoError(t, db.Create(p2).Error)

	gw := &stubGateway{statuses: map[string]string{"pix_5": domain.PaymentApproved, "bol_6": domain.PaymentPending}}
	poller := NewPoller(db, gw, time.Second)
	poller.now = func() time.Time { return now }

	assert.Equal(t, 1, poller.Tick(context.Background()))

	var paid domain.Order
	require.NoError(t, db.First(&paid, o1.ID).Error)
	assert.Equal(t, domain.OrderPaid, paid.Status)

	var still domain.Payment
	require.NoError(t, db.First(&still, p2.ID).Error)
	assert.Equal(t, domain.PaymentPending, still.Status)
	require.NotNil(t, still.LastCheckedAt)

	// gateway down: nothing changes, nothing panics
	gw.statusErr = errors.New("timeout")
	assert.Equal(t, 0, poller.Tick(context.Background()))
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	db := setupDB(t)
	poller := NewPoller(db, &stubGateway{}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
