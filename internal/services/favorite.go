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
)

// Toggle outcomes
const (
	FavoriteAdded   = "added"
	FavoriteRemoved = "removed"
)

// FavoriteService manages the products a user has liked
type FavoriteService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(db *db.DB, metrics *metrics.AppMetrics) *FavoriteService {
	return &FavoriteService{
		db:      db,
		metrics: metrics,
	}
}

// Toggle adds the product to favorites, or removes it if already there
func (s *FavoriteService) Toggle(ctx context.Context, userID, productID int64) (string, error) {
	var action string
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		start := time.Now()
		query := "SELECT id FROM favorites WHERE user_id = ? AND product_id = ?"
		var id int64
		err := tx.QueryRowContext(ctx, query, userID, productID).Scan(&id)
		s.metrics.RecordDBQuery(ctx, "SELECT", "favorites", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

		switch {
		case err == nil:
			start = time.Now()
			query = "DELETE FROM favorites WHERE id = ?"
			_, err = tx.ExecContext(ctx, query, id)
			s.metrics.RecordDBQuery(ctx, "DELETE", "favorites", query, start, err == nil)
			if err != nil {
				return fmt.Errorf("failed to remove favorite: %w", err)
			}
			action = FavoriteRemoved
		case errors.Is(err, sql.ErrNoRows):
			start = time.Now()
			query = "SELECT id FROM products WHERE id = ?"
			var pid int64
			err = tx.QueryRowContext(ctx, query, productID).Scan(&pid)
			s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("product %d: %w", productID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to look up product: %w", err)
			}

			start = time.Now()
			query = "INSERT INTO favorites (user_id, product_id) VALUES (?, ?)"
			_, err = tx.ExecContext(ctx, query, userID, productID)
			s.metrics.RecordDBQuery(ctx, "INSERT", "favorites", query, start, err == nil)
			if err != nil {
				return fmt.Errorf("failed to add favorite: %w", err)
			}
			action = FavoriteAdded
		default:
			return fmt.Errorf("failed to look up favorite: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return action, nil
}

// List returns the user's favorite products, most recently liked first
func (s *FavoriteService) List(ctx context.Context, userID int64) ([]models.Product, error) {
	start := time.Now()
	query := `SELECT p.id, p.name, p.description, p.price, p.stock, p.rating, p.category, p.image_url, p.created_at
		FROM favorites f JOIN products p ON f.product_id = p.id
		WHERE f.user_id = ? ORDER BY f.added_at DESC, f.id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "favorites", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}
