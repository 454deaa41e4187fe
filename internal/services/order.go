package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/secureshop/storefront/internal/db"
	"github.com/secureshop/storefront/internal/metrics"
	"github.com/secureshop/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// OrderService handles order-related operations
type OrderService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewOrderService creates a new order service
func NewOrderService(db *db.DB, metrics *metrics.AppMetrics) *OrderService {
	return &OrderService{
		db:      db,
		metrics: metrics,
	}
}

// insertOrder writes the order header and returns its id
func (s *OrderService) insertOrder(ctx context.Context, q db.Queryer, o *models.Order) (int64, error) {
	start := time.Now()
	query := `INSERT INTO orders (user_id, total_amount, payment_status, transaction_id, gateway_order_id)
		VALUES (?, ?, ?, ?, ?)`
	result, err := q.ExecContext(ctx, query, o.UserID, o.TotalAmount, string(o.PaymentStatus), o.TransactionID, o.GatewayOrderID)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", query, start, err == nil)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get order ID: %w", err)
	}
	return id, nil
}

// insertItems writes one order_items row per cart line at the captured price
func (s *OrderService) insertItems(ctx context.Context, q db.Queryer, orderID int64, lines []cartLine) error {
	query := "INSERT INTO order_items (order_id, product_id, quantity, price) VALUES (?, ?, ?, ?)"
	for _, l := range lines {
		start := time.Now()
		_, err := q.ExecContext(ctx, query, orderID, l.ProductID, l.Quantity, l.Price)
		s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", query, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// ListUserOrders returns the user's orders newest first, with item counts
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	start := time.Now()
	query := `SELECT o.id, o.user_id, o.total_amount, o.payment_status, o.transaction_id, o.gateway_order_id, o.created_at,
			COUNT(oi.id)
		FROM orders o LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = ?
		GROUP BY o.id
		ORDER BY o.created_at DESC, o.id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.TransactionID, &o.GatewayOrderID, &o.CreatedAt, &o.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetOrder returns one of the user's orders with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	start := time.Now()
	query := `SELECT id, user_id, total_amount, payment_status, transaction_id, gateway_order_id, created_at
		FROM orders WHERE id = ? AND user_id = ?`
	var o models.Order
	err := s.db.QueryRowContext(ctx, query, orderID, userID).Scan(
		&o.ID, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.TransactionID, &o.GatewayOrderID, &o.CreatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || errors.Is(err, sql.ErrNoRows))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	start = time.Now()
	itemsQuery := "SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id = ? ORDER BY id"
	rows, err := s.db.QueryContext(ctx, itemsQuery, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", itemsQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	o.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}
	o.ItemCount = len(o.Items)

	return &o, nil
}

// failedOrder builds the record written when a payment cannot be verified
func failedOrder(userID int64, paymentID, gatewayOrderID string) *models.Order {
	if paymentID == "" {
		paymentID = "unknown"
	}
	return &models.Order{
		UserID:         userID,
		TotalAmount:    decimal.Zero,
		PaymentStatus:  models.PaymentStatusFailed,
		TransactionID:  paymentID,
		GatewayOrderID: gatewayOrderID,
	}
}
