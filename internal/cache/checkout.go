package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingCheckout is a gateway order created but not yet verified
type PendingCheckout struct {
	GatewayOrderID string    `json:"gateway_order_id"`
	UserID         int64     `json:"user_id"`
	AmountMinor    int64     `json:"amount_minor_units"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
}

// CheckoutStore keeps pending checkouts until they are verified or expire
type CheckoutStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewCheckoutStore creates a store whose records expire after ttl
func NewCheckoutStore(rdb redis.Cmdable, ttl time.Duration) *CheckoutStore {
	return &CheckoutStore{rdb: rdb, ttl: ttl}
}

func checkoutKey(gatewayOrderID string) string {
	return "checkout:gateway_order:" + gatewayOrderID
}

// Save records p under its gateway order id
func (s *CheckoutStore) Save(ctx context.Context, p PendingCheckout) error {
	if err := SetJSON(ctx, s.rdb, checkoutKey(p.GatewayOrderID), p, s.ttl); err != nil {
		return fmt.Errorf("failed to save pending checkout: %w", err)
	}
	return nil
}

// Get returns the pending checkout, if one is still live
func (s *CheckoutStore) Get(ctx context.Context, gatewayOrderID string) (*PendingCheckout, bool, error) {
	var p PendingCheckout
	found, err := GetJSON(ctx, s.rdb, checkoutKey(gatewayOrderID), &p)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load pending checkout: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &p, true, nil
}

// Delete drops the pending checkout
func (s *CheckoutStore) Delete(ctx context.Context, gatewayOrderID string) error {
	if err := Delete(ctx, s.rdb, checkoutKey(gatewayOrderID)); err != nil {
		return fmt.Errorf("failed to delete pending checkout: %w", err)
	}
	return nil
}
