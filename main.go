package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/secureshop/storefront/internal/api"
	"github.com/secureshop/storefront/internal/cache"
	"github.com/secureshop/storefront/internal/db"
	"github.com/secureshop/storefront/internal/metrics"
	"github.com/secureshop/storefront/internal/payment"
	"github.com/secureshop/storefront/internal/services"
	"github.com/secureshop/storefront/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	// Prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		logrus.Warn("Razorpay credentials are not set; checkout will fail")
	}

	ctx := context.Background()
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("Error shutting down meter provider: %v", err)
		}
	}()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.GetDSN()); err != nil {
			logrus.Fatalf("Failed to migrate database: %v", err)
		}
	}

	database, err := db.NewDB(cfg.GetDSN(), cfg.OTELServiceName)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logrus.Warnf("Redis unavailable at %s, continuing without cache: %v", cfg.RedisAddr, err)
	}

	gateway := payment.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout)

	cartService := services.NewCartService(database, appMetrics)
	orderService := services.NewOrderService(database, appMetrics)
	favoriteService := services.NewFavoriteService(database, appMetrics)
	app := api.NewApp(cfg, appMetrics, api.Services{
		Products:  services.NewProductService(database, appMetrics, redisClient),
		Cart:      cartService,
		Favorites: favoriteService,
		Orders:    orderService,
		Users:     services.NewUserService(database, appMetrics, orderService, favoriteService, cartService),
		Checkout: services.NewCheckoutService(database, appMetrics, cartService, orderService, gateway,
			cache.NewCheckoutStore(redisClient, cfg.CheckoutTTL), cfg.PaymentCurrency),
	})

	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GetAppPortInt()),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":     cfg.AppPort,
			"otlp":     cfg.OTELExporterOTLPEndpoint,
			"currency": cfg.PaymentCurrency,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
