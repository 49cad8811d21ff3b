package payment

import (
	"context"
	"time"

	"storefront/internal/domain"

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Poller refreshes pending payments on a fixed interval. There is no retry
// or backoff: a failed refresh is logged and the next tick tries again.
type Poller struct {
	db       *gorm.DB
	gw       Gateway
	interval time.Duration
	batch    int
	now      func() time.Time
}

// NewPoller creates a poller checking up to 100 pending payments per tick
func NewPoller(db *gorm.DB, gw Gateway, interval time.Duration) *Poller {
	return &Poller{db: db, gw: gw, interval: interval, batch: 100, now: time.Now}
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	logrus.WithField("interval", p.interval.String()).Info("Payment poller started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Payment poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick refreshes the least recently checked pending payments and returns how
// many changed status.
func (p *Poller) Tick(ctx context.Context) int {
	var pending []domain.Payment
	err := p.db.WithContext(ctx).
		Where("status = ? AND gateway_id <> ''", domain.PaymentPending).
		Order("last_checked_at asc").
		Limit(p.batch).
		Find(&pending).Error
	if err != nil {
		logrus.WithField("error", err.Error()).Error("Failed to load pending payments")
		return 0
	}
	changed := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		before := pending[i].Status
		if err := Refresh(ctx, p.db, p.gw, &pending[i], p.now()); err != nil {
			logrus.WithFields(logrus.Fields{
				"payment_id": pending[i].ID, // Payment id
				"error":      err.Error(),   // Error message
			}).Warn("Payment status refresh failed")
			continue
		}
		if pending[i].Status != before {
			changed++
		}
	}
	return changed
}
