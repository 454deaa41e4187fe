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
	"go.opentelemetry.io/otel/metric"
)

// CartService handles cart-related operations
type CartService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewCartService creates a new cart service
func NewCartService(db *db.DB, metrics *metrics.AppMetrics) *CartService {
	return &CartService{
		db:      db,
		metrics: metrics,
	}
}

// cartLine is a cart row priced at the current product price
type cartLine struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Add puts qty units of a product in the user's cart, merging with an existing
// line, and returns the new unit count.
func (s *CartService) Add(ctx context.Context, userID, productID int64, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}

	var count int
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireProduct(ctx, tx, productID); err != nil {
			return err
		}

		start := time.Now()
		query := `INSERT INTO cart (user_id, product_id, quantity) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`
		_, err := tx.ExecContext(ctx, query, userID, productID, qty)
		s.metrics.RecordDBQuery(ctx, "INSERT", "cart", query, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to add cart line: %w", err)
		}

		count, err = s.count(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.recordCartSize(ctx, count)
	return count, nil
}

// Remove deletes one of the user's cart lines. Lines owned by someone else are left alone.
func (s *CartService) Remove(ctx context.Context, userID, cartLineID int64) (models.CartSummary, error) {
	start := time.Now()
	query := "DELETE FROM cart WHERE id = ? AND user_id = ?"
	_, err := s.db.ExecContext(ctx, query, cartLineID, userID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "cart", query, start, err == nil)
	if err != nil {
		return models.CartSummary{}, fmt.Errorf("failed to remove cart line: %w", err)
	}
	return s.Summary(ctx, userID)
}

// UpdateQuantity sets the quantity of one of the user's cart lines
func (s *CartService) UpdateQuantity(ctx context.Context, userID, cartLineID int64, qty int) (models.CartSummary, error) {
	if qty < 1 {
		return models.CartSummary{}, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}

	start := time.Now()
	query := "UPDATE cart SET quantity = ? WHERE id = ? AND user_id = ?"
	_, err := s.db.ExecContext(ctx, query, qty, cartLineID, userID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "cart", query, start, err == nil)
	if err != nil {
		return models.CartSummary{}, fmt.Errorf("failed to update cart line: %w", err)
	}
	return s.Summary(ctx, userID)
}

// BuyNow replaces the user's cart with a single unit of the product
func (s *CartService) BuyNow(ctx context.Context, userID, productID int64) (int, error) {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireProduct(ctx, tx, productID); err != nil {
			return err
		}

		start := time.Now()
		query := "DELETE FROM cart WHERE user_id = ?"
		_, err := tx.ExecContext(ctx, query, userID)
		s.metrics.RecordDBQuery(ctx, "DELETE", "cart", query, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		start = time.Now()
		query = "INSERT INTO cart (user_id, product_id, quantity) VALUES (?, ?, 1)"
		_, err = tx.ExecContext(ctx, query, userID, productID)
		s.metrics.RecordDBQuery(ctx, "INSERT", "cart", query, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to add cart line: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.recordCartSize(ctx, 1)
	return 1, nil
}

// Summary returns the cart total and unit count in one query
func (s *CartService) Summary(ctx context.Context, userID int64) (models.CartSummary, error) {
	start := time.Now()
	query := `SELECT COALESCE(SUM(p.price * c.quantity), 0), COALESCE(SUM(c.quantity), 0)
		FROM cart c JOIN products p ON c.product_id = p.id WHERE c.user_id = ?`
	var sum models.CartSummary
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&sum.Total, &sum.Count)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart", query, start, err == nil)
	if err != nil {
		return models.CartSummary{}, fmt.Errorf("failed to summarize cart: %w", err)
	}

	s.recordCartSize(ctx, sum.Count)
	return sum, nil
}

// Total returns the sum of price x quantity over the user's cart
func (s *CartService) Total(ctx context.Context, userID int64) (decimal.Decimal, error) {
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Total, nil
}

// Count returns the number of units in the user's cart
func (s *CartService) Count(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, s.db, userID)
}

func (s *CartService) count(ctx context.Context, q db.Queryer, userID int64) (int, error) {
	start := time.Now()
	query := "SELECT COALESCE(SUM(quantity), 0) FROM cart WHERE user_id = ?"
	var count int
	err := q.QueryRowContext(ctx, query, userID).Scan(&count)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart", query, start, err == nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count cart: %w", err)
	}
	return count, nil
}

// GetCart returns the user's cart lines with live product data
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.CartResponse, error) {
	start := time.Now()
	query := `SELECT c.id, c.product_id, p.name, p.image_url, p.price, c.quantity
		FROM cart c JOIN products p ON c.product_id = p.id
		WHERE c.user_id = ? ORDER BY c.added_at DESC, c.id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	total := decimal.Zero
	count := 0
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.CartID, &item.ProductID, &item.Name, &item.ImageURL, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		total = total.Add(item.Subtotal())
		count += item.Quantity
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	s.recordCartSize(ctx, count)
	return &models.CartResponse{
		Items:     items,
		Total:     Present(total),
		CartCount: count,
	}, nil
}

// lines reads the user's cart priced at current product prices
func (s *CartService) lines(ctx context.Context, q db.Queryer, userID int64) ([]cartLine, error) {
	start := time.Now()
	query := `SELECT c.product_id, c.quantity, p.price
		FROM cart c JOIN products p ON c.product_id = p.id WHERE c.user_id = ?`
	rows, err := q.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *CartService) requireProduct(ctx context.Context, q db.Queryer, productID int64) error {
	start := time.Now()
	query := "SELECT id FROM products WHERE id = ?"
	var id int64
	err := q.QueryRowContext(ctx, query, productID).Scan(&id)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up product: %w", err)
	}
	return nil
}

func (s *CartService) recordCartSize(ctx context.Context, count int) {
	s.metrics.CartItemsCount.Record(ctx, int64(count), metric.WithAttributes(s.metrics.WithServiceName(nil)...))
}

// linesTotal sums price x quantity at full precision
func linesTotal(lines []cartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
