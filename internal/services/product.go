package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/secureshop/storefront/internal/cache"
	"github.com/secureshop/storefront/internal/db"
	"github.com/secureshop/storefront/internal/metrics"
	"github.com/secureshop/storefront/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const productCacheTTL = 5 * time.Minute

const productColumns = "id, name, description, price, stock, rating, category, image_url, created_at"

// ProductService handles product-related operations
type ProductService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	rdb     redis.Cmdable
}

// NewProductService creates a new product service. rdb may be nil to disable caching.
func NewProductService(db *db.DB, metrics *metrics.AppMetrics, rdb redis.Cmdable) *ProductService {
	return &ProductService{
		db:      db,
		metrics: metrics,
		rdb:     rdb,
	}
}

func productCacheKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// GetProduct returns a product by ID, served from Redis when cached
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if s.rdb != nil {
		var cached models.Product
		found, err := cache.GetJSON(ctx, s.rdb, productCacheKey(id), &cached)
		if err != nil {
			logrus.WithError(err).WithField("product_id", id).Warn("product cache read failed")
		}
		if found && err == nil {
			s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
			s.recordView(ctx, &cached)
			return &cached, nil
		}
		s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
	}

	p, err := s.loadProduct(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if err := cache.SetJSON(ctx, s.rdb, productCacheKey(id), p, productCacheTTL); err != nil {
			logrus.WithError(err).WithField("product_id", id).Warn("product cache write failed")
		}
	}

	s.recordView(ctx, p)
	return p, nil
}

func (s *ProductService) loadProduct(ctx context.Context, q db.Queryer, id int64) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	var p models.Product
	err := q.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Rating, &p.Category, &p.ImageURL, &p.CreatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (s *ProductService) recordView(ctx context.Context, p *models.Product) {
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", p.ID),
		attribute.String("product_category", p.Category),
	})...))
}

// scanProducts reads rows selected with productColumns
func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Rating, &p.Category, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
