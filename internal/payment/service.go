package payment

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain"

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Row locking
)

const (
	PixExpiry = 24 * time.Hour  // How long a PIX charge stays payable
	ClaimTTL  = 2 * time.Minute // How long an unreleased payment claim holds an order
)

var (
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
	ErrPaymentPending  = errors.New("order already has a pending payment")
	ErrPaymentInFlight = errors.New("a payment for this order is already being created")
	ErrOrderChanged    = errors.New("order changed while the payment was being created")
)

// Unclaimed limits an order query to orders nobody is creating a payment for
// and that have no pending payment. Claims older than ClaimTTL are ignored.
func Unclaimed(orderID uint, now time.Time) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		pending := tx.Session(&gorm.Session{NewDB: true}).Model(&domain.Payment{}).
			Select("1").
			Where("order_id = ? AND status = ?", orderID, domain.PaymentPending)
		return tx.Where("(payment_claimed_at IS NULL OR payment_claimed_at < ?)", now.Add(-ClaimTTL)).
			Where("NOT EXISTS (?)", pending)
	}
}

// claim reserves order for one payment creation. The order row is locked,
// re-read and compared with what the caller priced; an existing pending
// payment is returned with ErrPaymentPending.
func claim(db *gorm.DB, order *domain.Order, now time.Time) (*domain.Payment, error) {
	var existing *domain.Payment
	err := db.Transaction(func(tx *gorm.DB) error {
		var locked domain.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, order.ID).Error; err != nil {
			return err
		}
		if locked.Status != domain.OrderPendingPayment {
			return ErrOrderNotPayable
		}
		if locked.PaymentMethod != order.PaymentMethod || locked.Installments != order.Installments {
			return ErrOrderChanged
		}
		var p domain.Payment
		err := tx.Where("order_id = ? AND status = ?", order.ID, domain.PaymentPending).First(&p).Error
		if err == nil {
			existing = &p
			return ErrPaymentPending
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		res := tx.Model(&domain.Order{}).
			Where("id = ?", order.ID).
			Scopes(Unclaimed(order.ID, now)).
			Update("payment_claimed_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPaymentInFlight
		}
		return nil
	})
	return existing, err
}

// release drops the claim on an order
func release(db *gorm.DB, orderID uint) error {
	return db.Model(&domain.Order{}).Where("id = ?", orderID).Update("payment_claimed_at", nil).Error
}

// Start creates a payment for order through the remote function matching its
// payment method. An order has at most one pending payment; when one exists
// it is returned together with ErrPaymentPending. The order is claimed before
// the gateway is called, so a concurrent Start gets ErrPaymentInFlight.
func Start(ctx context.Context, db *gorm.DB, gw Gateway, order *domain.Order, settings domain.CompanySettings, cardToken string, now time.Time) (*domain.Payment, error) {
	if order.Status != domain.OrderPendingPayment {
		return nil, ErrOrderNotPayable
	}
	if existing, err := claim(db, order, now); err != nil {
		return existing, err
	}

	req := CreateRequest{
		OrderNumber: order.Number,
		Amount:      order.Total,
		Description: "Order " + order.Number,
		Payer: Payer{
			Name:     order.Customer.Name,
			Email:    order.Customer.Email,
			Phone:    order.Customer.Phone,
			Document: order.Customer.Document,
		},
	}
	switch order.PaymentMethod {
	case domain.MethodPix:
		due := now.Add(PixExpiry)
		req.DueDate = &due
	case domain.MethodBoleto:
		due := now.AddDate(0, 0, settings.BoletoDueDays)
		req.DueDate = &due
	case domain.MethodCreditCard:
		req.Installments = order.Installments
		req.CardToken = cardToken
	}

	res, err := gw.Create(ctx, order.PaymentMethod, req)
	if err != nil {
		if relErr := release(db, order.ID); relErr != nil {
			logrus.WithField("order", order.Number).Warn("Payment claim release failed")
		}
		logrus.WithFields(logrus.Fields{
			"order":  order.Number,        // Order number
			"method": order.PaymentMethod, // Payment method
			"error":  err.Error(),         // Error message
		}).Error("Payment creation failed")
		return nil, err
	}

	p := domain.Payment{
		OrderID:       order.ID,
		Method:        order.PaymentMethod,
		Status:        res.Status,
		GatewayID:     res.GatewayID,
		Amount:        order.Total,
		Installments:  order.Installments,
		PixQRCode:     res.PixQRCode,
		PixCopyPaste:  res.PixCopyPaste,
		BoletoURL:     res.BoletoURL,
		BoletoBarcode: res.BoletoBarcode,
		DueDate:       req.DueDate,
		LastCheckedAt: &now,
	}
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}
	if res.DueDate != nil {
		p.DueDate = res.DueDate // Gateway has the final word on expiry
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		if err := release(tx, order.ID); err != nil {
			return err
		}
		if p.Status == domain.PaymentApproved {
			return markOrderPaid(tx, order.ID)
		}
		return nil
	})
	if err != nil {
		_ = release(db, order.ID)
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"order":      order.Number,      // Order number
		"payment_id": p.ID,              // Payment id
		"method":     p.Method,          // Payment method
		"status":     p.Status,          // Initial status
		"amount":     p.Amount.String(), // Charged amount
	}).Info("Payment created")
	return &p, nil
}

// Refresh asks the gateway for p's status once and stores the answer.
// Final payments are left alone.
func Refresh(ctx context.Context, db *gorm.DB, gw Gateway, p *domain.Payment, now time.Time) error {
	if p.Final() || p.GatewayID == "" {
		return nil
	}
	res, err := gw.Status(ctx, p.GatewayID)
	if err != nil {
		return err
	}
	return Apply(db, p, res.Status, now)
}

// Apply stores status on p, the latest answer always winning, and moves the
// order to paid when the payment is approved.
func Apply(db *gorm.DB, p *domain.Payment, status string, now time.Time) error {
	changed := p.Status != status
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(p).Updates(map[string]any{"status": status, "last_checked_at": now}).Error; err != nil {
			return err
		}
		if status == domain.PaymentApproved {
			return markOrderPaid(tx, p.OrderID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.Status = status
	p.LastCheckedAt = &now
	if changed {
		logrus.WithFields(logrus.Fields{
			"payment_id": p.ID,      // Payment id
			"order_id":   p.OrderID, // Order id
			"status":     status,    // New status
		}).Info("Payment status changed")
	}
	return nil
}

// markOrderPaid moves a pending order to paid; other statuses are untouched
func markOrderPaid(tx *gorm.DB, orderID uint) error {
	return tx.Model(&domain.Order{}).
		Where("id = ? AND status = ?", orderID, domain.OrderPendingPayment).
		Update("status", domain.OrderPaid).Error
}
