package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/secureshop/storefront/internal/metrics"
	"github.com/secureshop/storefront/internal/middleware"
	"github.com/secureshop/storefront/internal/models"
	"github.com/secureshop/storefront/internal/services"
	"github.com/secureshop/storefront/pkg/config"
	"github.com/sirupsen/logrus"
)

// App holds application dependencies
type App struct {
	config          *config.Config
	metrics         *metrics.AppMetrics
	productService  *services.ProductService
	cartService     *services.CartService
	favoriteService *services.FavoriteService
	orderService    *services.OrderService
	userService     *services.UserService
	checkoutService *services.CheckoutService
}

// Services groups the domain services the handlers call
type Services struct {
	Products  *services.ProductService
	Cart      *services.CartService
	Favorites *services.FavoriteService
	Orders    *services.OrderService
	Users     *services.UserService
	Checkout  *services.CheckoutService
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, m *metrics.AppMetrics, svc Services) *App {
	return &App{
		config:          cfg,
		metrics:         m,
		productService:  svc.Products,
		cartService:     svc.Cart,
		favoriteService: svc.Favorites,
		orderService:    svc.Orders,
		userService:     svc.Users,
		checkoutService: svc.Checkout,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.ErrorHandlerMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	// preflight requests match no method-bound route; answer them here so CORSMiddleware runs
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.HandleFunc("/health", a.HealthHandler).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(a.config.JWTSecret))

	// Products
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods("GET")

	// Cart
	api.HandleFunc("/cart", a.GetCartHandler).Methods("GET")
	api.HandleFunc("/cart/add", a.AddToCartHandler).Methods("POST")
	api.HandleFunc("/cart/remove", a.RemoveFromCartHandler).Methods("POST")
	api.HandleFunc("/cart/update", a.UpdateCartHandler).Methods("POST")
	api.HandleFunc("/cart/buy-now/{product_id}", a.BuyNowHandler).Methods("POST")

	// Favorites
	api.HandleFunc("/favorites", a.ListFavoritesHandler).Methods("GET")
	api.HandleFunc("/favorites/toggle", a.ToggleFavoriteHandler).Methods("POST")

	// Payment
	api.HandleFunc("/payment/create-order", a.CreatePaymentOrderHandler).Methods("POST")
	api.HandleFunc("/payment/verify", a.VerifyPaymentHandler).Methods("POST")

	// Orders
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods("GET")
	api.HandleFunc("/orders/{id}", a.GetOrderHandler).Methods("GET")

	// Profile
	api.HandleFunc("/profile", a.GetProfileHandler).Methods("GET")
	api.HandleFunc("/profile", a.UpdateProfileHandler).Methods("PUT")
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	product, err := a.productService.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	cart, err := a.cartService.GetCart(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddToCartHandler handles POST /api/v1/cart/add
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddToCartRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		writeFailure(w, http.StatusBadRequest, "Invalid product")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	count, err := a.cartService.Add(r.Context(), userID, req.ProductID, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Product added to cart",
		"cart_count": count,
	})
}

// RemoveFromCartHandler handles POST /api/v1/cart/remove
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RemoveFromCartRequest
	if !decode(w, r, &req) {
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	sum, err := a.cartService.Remove(r.Context(), userID, req.CartID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSummary(w, sum)
}

// UpdateCartHandler handles POST /api/v1/cart/update
func (a *App) UpdateCartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCartRequest
	if !decode(w, r, &req) {
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	sum, err := a.cartService.UpdateQuantity(r.Context(), userID, req.CartID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSummary(w, sum)
}

// BuyNowHandler handles POST /api/v1/cart/buy-now/{product_id}
func (a *App) BuyNowHandler(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	count, err := a.cartService.BuyNow(r.Context(), userID, productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cart_count": count})
}

// ListFavoritesHandler handles GET /api/v1/favorites
func (a *App) ListFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	favorites, err := a.favoriteService.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

// ToggleFavoriteHandler handles POST /api/v1/favorites/toggle
func (a *App) ToggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ToggleFavoriteRequest
	if !decode(w, r, &req) {
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	action, err := a.favoriteService.Toggle(r.Context(), userID, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "Added to favorites"
	if action == services.FavoriteRemoved {
		message = "Removed from favorites"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": action, "message": message})
}

// CreatePaymentOrderHandler handles POST /api/v1/payment/create-order
func (a *App) CreatePaymentOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	session, err := a.checkoutService.CreateOrder(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"order_id":           session.GatewayOrderID,
		"amount":             services.Present(session.Total),
		"amount_minor_units": session.AmountMinor,
		"currency":           session.Currency,
		"key_id":             a.config.RazorpayKeyID,
	})
}

// VerifyPaymentHandler handles POST /api/v1/payment/verify
func (a *App) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// a malformed body is still a verification attempt and is recorded as one
		req = models.VerifyPaymentRequest{}
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	orderID, err := a.checkoutService.VerifyPayment(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order_id": orderID})
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	orders, err := a.orderService.ListUserOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// GetOrderHandler handles GET /api/v1/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	order, err := a.orderService.GetOrder(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetProfileHandler handles GET /api/v1/profile
func (a *App) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	profile, err := a.userService.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfileHandler handles PUT /api/v1/profile
func (a *App) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	if err := a.userService.UpdateProfile(r.Context(), userID, req.Name, req.Mobile); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Profile updated"})
}

func writeSummary(w http.ResponseWriter, sum models.CartSummary) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"total":      services.Present(sum.Total),
		"cart_count": sum.Count,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// writeError maps a service error to a status and a client-safe message
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)

	entry := logrus.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"status":     status,
		"request_id": middleware.RequestIDFromContext(r.Context()),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	writeFailure(w, status, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrVerificationFailed):
		return http.StatusBadRequest, "Payment verification failed"
	case errors.Is(err, services.ErrGatewaySetup):
		return http.StatusBadGateway, "Could not start payment, please try again"
	case errors.Is(err, services.ErrEmptyCart):
		return http.StatusBadRequest, "Cart is empty"
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeFailure(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}
