package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/secureshop/storefront/internal/auth"
	"github.com/secureshop/storefront/internal/db"
	"github.com/secureshop/storefront/internal/metrics"
	"github.com/secureshop/storefront/internal/payment"
	"github.com/secureshop/storefront/internal/services"
	"github.com/secureshop/storefront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

const testSecret = "test-secret"

type fakeGateway struct {
	verifyErr error
}

func (g *fakeGateway) CreateOrder(context.Context, int64, string, string) (string, error) {
	return "order_1", nil
}

func (g *fakeGateway) VerifySignature(string, string, string) error {
	return g.verifyErr
}

func newTestRouter(t *testing.T, gw payment.Gateway) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	database := db.Wrap(sqlDB)

	m, err := metrics.NewAppMetrics(noop.NewMeterProvider().Meter("test"), "storefront-test")
	require.NoError(t, err)

	cart := services.NewCartService(database, m)
	orders := services.NewOrderService(database, m)
	favorites := services.NewFavoriteService(database, m)
	app := NewApp(&config.Config{JWTSecret: testSecret, RazorpayKeyID: "rzp_test"}, m, Services{
		Products:  services.NewProductService(database, m, nil),
		Cart:      cart,
		Favorites: favorites,
		Orders:    orders,
		Users:     services.NewUserService(database, m, orders, favorites, cart),
		Checkout:  services.NewCheckoutService(database, m, cart, orders, gw, nil, "INR"),
	})

	r := mux.NewRouter()
	app.SetupRoutes(r)
	return r, mock
}

func do(t *testing.T, r http.Handler, method, path, body string, userID int64) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, err := auth.GenerateToken(userID, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealthIsPublic(t *testing.T) {
	r, _ := newTestRouter(t, &fakeGateway{})
	rec, body := do(t, r, http.MethodGet, "/health", "", 0)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestAPIRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t, &fakeGateway{})
	rec, body := do(t, r, http.MethodGet, "/api/v1/cart", "", 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAddToCartRejectsZeroQuantity(t *testing.T) {
	r, mock := newTestRouter(t, &fakeGateway{})
	rec, body := do(t, r, http.MethodPost, "/api/v1/cart/add", `{"product_id":5,"quantity":0}`, 7)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCartDefaultsToOneUnit(t *testing.T) {
	r, mock := newTestRouter(t, &fakeGateway{})
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM products WHERE id = ?")).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cart (user_id, product_id, quantity)")).
		WithArgs(int64(7), int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(quantity), 0) FROM cart")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow("1"))
	mock.ExpectCommit()

	rec, body := do(t, r, http.MethodPost, "/api/v1/cart/add", `{"product_id":5}`, 7)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["cart_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePaymentOrder(t *testing.T) {
	r, mock := newTestRouter(t, &fakeGateway{})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(p.price * c.quantity), 0)")).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "count"}).AddRow("1250.50", "3"))

	rec, body := do(t, r, http.MethodPost, "/api/v1/payment/create-order", "", 7)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order_1", body["order_id"])
	assert.Equal(t, float64(125050), body["amount_minor_units"])
	assert.Equal(t, 1250.5, body["amount"])
	assert.Equal(t, "INR", body["currency"])
	assert.Equal(t, "rzp_test", body["key_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePaymentOrderEmptyCart(t *testing.T) {
	r, mock := newTestRouter(t, &fakeGateway{})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(p.price * c.quantity), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "count"}).AddRow("0", "0"))

	rec, body := do(t, r, http.MethodPost, "/api/v1/payment/create-order", "", 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cart is empty", body["message"])
}

func TestVerifyPaymentFailureIsOpaque(t *testing.T) {
	r, mock := newTestRouter(t, &fakeGateway{verifyErr: payment.ErrSignatureMismatch})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(int64(7), sqlmock.AnyArg(), "failed", "pay_1", "order_1").
		WillReturnResult(sqlmock.NewResult(9, 1))

	rec, body := do(t, r, http.MethodPost, "/api/v1/payment/verify",
		`{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"bad"}`, 7)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Payment verification failed", body["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderNotOwned(t *testing.T) {
	r, mock := newTestRouter(t, &fakeGateway{})
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? AND user_id = ?")).WithArgs(int64(42), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec, _ := do(t, r, http.MethodGet, "/api/v1/orders/42", "", 7)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidPathID(t *testing.T) {
	r, _ := newTestRouter(t, &fakeGateway{})
	rec, _ := do(t, r, http.MethodPost, "/api/v1/cart/buy-now/abc", "", 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreflightGetsCORSHeaders(t *testing.T) {
	r, mock := newTestRouter(t, &fakeGateway{})
	for _, path := range []string{"/api/v1/cart/add", "/api/v1/orders/42", "/health"} {
		rec, _ := do(t, r, http.MethodOptions, path, "", 0)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization", path)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
