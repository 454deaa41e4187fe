package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/secureshop/storefront/internal/cache"
	"github.com/secureshop/storefront/internal/db"
	"github.com/secureshop/storefront/internal/metrics"
	"github.com/secureshop/storefront/internal/models"
	"github.com/secureshop/storefront/internal/payment"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CheckoutSessions remembers which user opened which gateway order
type CheckoutSessions interface {
	Save(ctx context.Context, p cache.PendingCheckout) error
	Get(ctx context.Context, gatewayOrderID string) (*cache.PendingCheckout, bool, error)
	Delete(ctx context.Context, gatewayOrderID string) error
}

// CheckoutService turns a cart into a gateway order and a verified payment into an order
type CheckoutService struct {
	db       *db.DB
	metrics  *metrics.AppMetrics
	cart     *CartService
	orders   *OrderService
	gateway  payment.Gateway
	sessions CheckoutSessions
	currency string
}

// NewCheckoutService creates a new checkout service. sessions may be nil.
func NewCheckoutService(
	db *db.DB,
	metrics *metrics.AppMetrics,
	cart *CartService,
	orders *OrderService,
	gateway payment.Gateway,
	sessions CheckoutSessions,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		db:       db,
		metrics:  metrics,
		cart:     cart,
		orders:   orders,
		gateway:  gateway,
		sessions: sessions,
		currency: currency,
	}
}

// CreateOrder opens a gateway order for the current value of the user's cart
func (s *CheckoutService) CreateOrder(ctx context.Context, userID int64) (*models.CheckoutSession, error) {
	s.metrics.CheckoutsInitiated.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))

	sum, err := s.cart.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sum.Count == 0 {
		return nil, ErrEmptyCart
	}

	amount := MinorUnits(sum.Total)
	receipt := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"amount":   amount,
		"currency": s.currency,
		"receipt":  receipt,
	})

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, amount, s.currency, receipt)
	if err != nil {
		s.metrics.Outcome(ctx, s.metrics.GatewayOrders, "failed")
		log.WithError(err).Error("gateway order creation failed")
		return nil, fmt.Errorf("%w: %w", ErrGatewaySetup, err)
	}
	s.metrics.Outcome(ctx, s.metrics.GatewayOrders, "created")
	log.WithField("gateway_order_id", gatewayOrderID).Info("gateway order created")

	if s.sessions != nil {
		pending := cache.PendingCheckout{
			GatewayOrderID: gatewayOrderID,
			UserID:         userID,
			AmountMinor:    amount,
			Currency:       s.currency,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.sessions.Save(ctx, pending); err != nil {
			log.WithError(err).Warn("pending checkout not stored")
		}
	}

	return &models.CheckoutSession{
		GatewayOrderID: gatewayOrderID,
		AmountMinor:    amount,
		Currency:       s.currency,
		Total:          sum.Total,
	}, nil
}

// VerifyPayment checks the gateway signature and, when it holds, records a paid
// order and clears the cart in one transaction. Every failure records a failed
// order on a best-effort basis and returns ErrVerificationFailed.
func (s *CheckoutService) VerifyPayment(ctx context.Context, userID int64, req models.VerifyPaymentRequest) (int64, error) {
	log := logrus.WithFields(logrus.Fields{
		"user_id":          userID,
		"gateway_order_id": req.GatewayOrderID,
		"payment_id":       req.PaymentID,
	})

	orderID, err := s.verifyAndRecord(ctx, userID, req, log)
	if err != nil {
		log.WithError(err).Warn("payment verification failed")
		s.metrics.Outcome(ctx, s.metrics.PaymentsVerified, "failed")
		s.recordFailure(ctx, userID, req, log)
		return 0, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	s.metrics.Outcome(ctx, s.metrics.PaymentsVerified, "success")
	log.WithField("order_id", orderID).Info("payment verified and order recorded")
	return orderID, nil
}

func (s *CheckoutService) verifyAndRecord(ctx context.Context, userID int64, req models.VerifyPaymentRequest, log *logrus.Entry) (int64, error) {
	if req.GatewayOrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return 0, fmt.Errorf("missing payment identifiers: %w", ErrValidation)
	}
	if err := s.gateway.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature); err != nil {
		return 0, err
	}

	var pending *cache.PendingCheckout
	if s.sessions != nil {
		p, found, err := s.sessions.Get(ctx, req.GatewayOrderID)
		if err != nil {
			log.WithError(err).Warn("pending checkout lookup failed; authorized amount not checked")
		} else if !found {
			log.Warn("no pending checkout; authorized amount not checked")
		} else if p.UserID != userID {
			return 0, errors.New("gateway order belongs to another user")
		} else {
			pending = p
		}
	}

	var orderID int64
	var lines []cartLine
	order := &models.Order{
		UserID:         userID,
		PaymentStatus:  models.PaymentStatusPaid,
		TransactionID:  req.PaymentID,
		GatewayOrderID: req.GatewayOrderID,
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		lines, err = s.cart.lines(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		order.TotalAmount = linesTotal(lines)
		if pending != nil && MinorUnits(order.TotalAmount) != pending.AmountMinor {
			s.metrics.AmountMismatches.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
			return fmt.Errorf("cart total %d does not match authorized amount %d",
				MinorUnits(order.TotalAmount), pending.AmountMinor)
		}

		if orderID, err = s.orders.insertOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if err := s.orders.insertItems(ctx, tx, orderID, lines); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}

		start := time.Now()
		query := "DELETE FROM cart WHERE user_id = ?"
		_, err = tx.ExecContext(ctx, query, userID)
		s.metrics.RecordDBQuery(ctx, "DELETE", "cart", query, start, err == nil)
		if err != nil {
			return fmt.Errorf("%w: failed to clear cart: %w", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.sessions != nil {
		if err := s.sessions.Delete(ctx, req.GatewayOrderID); err != nil {
			log.WithError(err).Warn("pending checkout not cleared")
		}
	}

	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("payment_status", string(models.PaymentStatusPaid)),
		attribute.Int("item_count", len(lines)),
	})...))
	s.metrics.RevenueTotal.Add(ctx, order.TotalAmount.InexactFloat64(), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("currency", s.currency),
	})...))

	return orderID, nil
}

// recordFailure writes the failed-attempt record; its own failure is only logged
func (s *CheckoutService) recordFailure(ctx context.Context, userID int64, req models.VerifyPaymentRequest, log *logrus.Entry) {
	if _, err := s.orders.insertOrder(ctx, s.db, failedOrder(userID, req.PaymentID, req.GatewayOrderID)); err != nil {
		log.WithError(err).Error("failed order not recorded")
		return
	}
	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("payment_status", string(models.PaymentStatusFailed)),
	})...))
}
