package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/secureshop/storefront/internal/db"
	"github.com/secureshop/storefront/internal/metrics"
	"github.com/secureshop/storefront/internal/models"
)

var mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)

// UserService handles user-related operations
type UserService struct {
	db        *db.DB
	metrics   *metrics.AppMetrics
	orders    *OrderService
	favorites *FavoriteService
	cart      *CartService
}

// NewUserService creates a new user service
func NewUserService(db *db.DB, metrics *metrics.AppMetrics, orders *OrderService, favorites *FavoriteService, cart *CartService) *UserService {
	return &UserService{
		db:        db,
		metrics:   metrics,
		orders:    orders,
		favorites: favorites,
		cart:      cart,
	}
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()

	query := "SELECT id, name, email, mobile, profile_image, created_at FROM users WHERE id = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Mobile, &user.ProfileImage, &user.CreatedAt,
	)

	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetProfile returns the user with order history and favorites
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListUserOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	favorites, err := s.favorites.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.cart.Count(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		User:      user,
		Orders:    orders,
		Favorites: favorites,
		CartCount: count,
	}, nil
}

// UpdateProfile changes the user's name and mobile number
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, name, mobile string) error {
	name = strings.TrimSpace(name)
	mobile = strings.TrimSpace(mobile)
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters: %w", ErrValidation)
	}
	if !mobilePattern.MatchString(mobile) {
		return fmt.Errorf("mobile must be 10 digits: %w", ErrValidation)
	}

	start := time.Now()
	query := "UPDATE users SET name = ?, mobile = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, name, mobile, userID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "users", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	// MySQL reports 0 rows for an unchanged row, so only a missing user is an error
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}
