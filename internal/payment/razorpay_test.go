package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	var got createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_ABC","amount":125050,"currency":"INR","status":"created"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "rzp_test_key", "secret", time.Second)
	id, err := c.CreateOrder(context.Background(), 125050, "INR", "rcpt-1")
	require.NoError(t, err)

	assert.Equal(t, "order_ABC", id)
	assert.Equal(t, int64(125050), got.Amount)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, "rcpt-1", got.Receipt)
	assert.Equal(t, 1, got.PaymentCapture)
}

func TestCreateOrderGatewayErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
		}))
		defer srv.Close()

		_, err := NewRazorpayClient(srv.URL, "k", "s", time.Second).CreateOrder(context.Background(), 1, "INR", "r")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.Contains(t, err.Error(), "BAD_REQUEST_ERROR")
	})

	t.Run("missing id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := NewRazorpayClient(srv.URL, "k", "s", time.Second).CreateOrder(context.Background(), 100, "INR", "r")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewRazorpayClient(url, "k", "s", time.Second).CreateOrder(context.Background(), 100, "INR", "r")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})
}

func TestVerifySignature(t *testing.T) {
	c := NewRazorpayClient("http://unused", "k", "secret", time.Second)
	sig := Signature("secret", "order_A", "pay_B")

	assert.Len(t, sig, 64)
	assert.NoError(t, c.VerifySignature("order_A", "pay_B", sig))

	tampered := []byte(sig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	assert.ErrorIs(t, c.VerifySignature("order_A", "pay_B", string(tampered)), ErrSignatureMismatch)
	assert.ErrorIs(t, c.VerifySignature("order_A", "pay_C", sig), ErrSignatureMismatch)
	assert.ErrorIs(t, c.VerifySignature("order_A", "pay_B", Signature("other", "order_A", "pay_B")), ErrSignatureMismatch)
	assert.ErrorIs(t, c.VerifySignature("order_A", "pay_B", ""), ErrSignatureMismatch)
}
