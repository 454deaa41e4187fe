package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrSignatureMismatch  = errors.New("payment signature mismatch")
)

// Gateway creates remote payment orders and checks completed payments
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	VerifySignature(orderID, paymentID, signature string) error
}

// RazorpayClient talks to the Razorpay orders API
type RazorpayClient struct {
	client    *resty.Client
	keySecret string
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewRazorpayClient creates a client authenticated with the key pair
func NewRazorpayClient(baseURL, keyID, keySecret string, timeout time.Duration) *RazorpayClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetBasicAuth(keyID, keySecret).
		SetHeader("Accept", "application/json")
	return &RazorpayClient{client: client, keySecret: keySecret}
}

// CreateOrder registers an order of amountMinor in currency and returns its id
func (c *RazorpayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	var result createOrderResponse
	var apiErr errorResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createOrderRequest{
			Amount:         amountMinor,
			Currency:       currency,
			Receipt:        receipt,
			PaymentCapture: 1,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/orders")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d: %s %s", ErrGatewayUnavailable,
			resp.StatusCode(), apiErr.Error.Code, apiErr.Error.Description)
	}
	if result.ID == "" {
		return "", fmt.Errorf("%w: response without order id", ErrGatewayUnavailable)
	}
	return result.ID, nil
}

// VerifySignature checks the checkout signature for orderID and paymentID
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) error {
	expected := Signature(c.keySecret, orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Signature is hex(HMAC-SHA256(secret, orderID + "|" + paymentID))
func Signature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
