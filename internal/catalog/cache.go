package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/config"
	"go-pos-backend/internal/inventory"
	"go-pos-backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	_ Catalog                 = (*Store)(nil)
	_ Catalog                 = (*CachedStore)(nil)
	_ inventory.StockObserver = (*CachedStore)(nil)
)

const (
	keyAllProducts = "products:all"
	notFoundMarker = "notfound"
)

func productKey(id uint) string        { return fmt.Sprintf("product:%d", id) }
func barcodeKey(barcode string) string { return "product:barcode:" + barcode }

// ConnectRedis opens a client and pings it.
func ConnectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// CachedStore serves product reads from redis and falls back to the Store.
// Redis failures are logged and never fail a request.
type CachedStore struct {
	*Store
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedStore(store *Store, rdb *redis.Client, log *zap.Logger) *CachedStore {
	return &CachedStore{
		Store: store,
		redis: rdb,
		ttl:   5 * time.Minute,
		log:   log.Named("catalog.cache"),
	}
}

func (c *CachedStore) getJSON(ctx context.Context, key string, dst interface{}) (hit bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(data, dst); err != nil {
			c.log.Warn("failed to unmarshal cached value (continuing with DB)", zap.String("key", key), zap.Error(err))
			return false
		}
		return true
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("redis error (continuing with DB)", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (c *CachedStore) setJSON(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("failed to marshal value for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("failed to cache value", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedStore) del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("failed to delete cache keys", zap.Strings("keys", keys), zap.Error(err))
	}
}

// flush drops every cached product entry.
func (c *CachedStore) flush(ctx context.Context) {
	var keys []string
	iter := c.redis.Scan(ctx, 0, "product*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("failed to scan cache keys", zap.Error(err))
	}
	c.del(ctx, keys...)
}

func (c *CachedStore) ListProducts(ctx context.Context, f ProductFilter) ([]ProductView, error) {
	if !f.empty() {
		return c.Store.ListProducts(ctx, f)
	}
	var cached []ProductView
	if c.getJSON(ctx, keyAllProducts, &cached) {
		return cached, nil
	}
	products, err := c.Store.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, keyAllProducts, products)
	return products, nil
}

func (c *CachedStore) GetProduct(ctx context.Context, id uint) (*ProductView, error) {
	var cached ProductView
	if c.getJSON(ctx, productKey(id), &cached) {
		return &cached, nil
	}
	p, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, productKey(id), p)
	return p, nil
}

// ProductByBarcode caches barcode → id, so stock changes only need to drop
// the product entry.
func (c *CachedStore) ProductByBarcode(ctx context.Context, barcode string) (*ProductView, error) {
	raw, err := c.redis.Get(ctx, barcodeKey(barcode)).Result()
	switch {
	case err == nil:
		if raw == notFoundMarker {
			return nil, apperr.NotFound("product with barcode", barcode)
		}
		if id, perr := strconv.ParseUint(raw, 10, 64); perr == nil {
			return c.GetProduct(ctx, uint(id))
		}
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("redis error (continuing with DB)", zap.String("barcode", barcode), zap.Error(err))
	}

	p, err := c.Store.ProductByBarcode(ctx, barcode)
	if errors.Is(err, apperr.ErrNotFound) {
		if setErr := c.redis.Set(ctx, barcodeKey(barcode), notFoundMarker, time.Minute).Err(); setErr != nil {
			c.log.Warn("failed to cache notfound", zap.Error(setErr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if setErr := c.redis.Set(ctx, barcodeKey(barcode), strconv.FormatUint(uint64(p.ID), 10), c.ttl).Err(); setErr != nil {
		c.log.Warn("failed to cache barcode", zap.Error(setErr))
	}
	c.setJSON(ctx, productKey(p.ID), p)
	return p, nil
}

func (c *CachedStore) invalidateProduct(ctx context.Context, id uint, barcodes ...string) {
	keys := []string{productKey(id), keyAllProducts}
	for _, b := range barcodes {
		if b != "" {
			keys = append(keys, barcodeKey(b))
		}
	}
	c.del(ctx, keys...)
}

func (c *CachedStore) CreateProduct(ctx context.Context, in ProductInput) (*ProductView, error) {
	p, err := c.Store.CreateProduct(ctx, in)
	if err != nil {
		return nil, err
	}
	c.invalidateProduct(ctx, p.ID, p.Barcode)
	return p, nil
}

func (c *CachedStore) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*ProductView, error) {
	var oldBarcode string
	if old, err := c.Store.GetProduct(ctx, id); err == nil {
		oldBarcode = old.Barcode
	}
	p, err := c.Store.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, err
	}
	c.invalidateProduct(ctx, id, oldBarcode, p.Barcode)
	return p, nil
}

func (c *CachedStore) DeleteProduct(ctx context.Context, id uint) error {
	var barcode string
	if old, err := c.Store.GetProduct(ctx, id); err == nil {
		barcode = old.Barcode
	}
	if err := c.Store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.invalidateProduct(ctx, id, barcode)
	return nil
}

// Category names are embedded in every product entry.
func (c *CachedStore) UpdateCategory(ctx context.Context, id uint, in *models.Category) (*models.Category, error) {
	out, err := c.Store.UpdateCategory(ctx, id, in)
	if err != nil {
		return nil, err
	}
	c.flush(ctx)
	return out, nil
}

func (c *CachedStore) DeleteCategory(ctx context.Context, id uint) error {
	if err := c.Store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	c.flush(ctx)
	return nil
}

func (c *CachedStore) CreateDiscount(ctx context.Context, d *models.BulkDiscount) error {
	if err := c.Store.CreateDiscount(ctx, d); err != nil {
		return err
	}
	c.invalidateProduct(ctx, d.ProductID)
	return nil
}

func (c *CachedStore) UpdateDiscount(ctx context.Context, id uint, in *models.BulkDiscount) (*models.BulkDiscount, error) {
	old, err := c.Store.GetDiscount(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := c.Store.UpdateDiscount(ctx, id, in)
	if err != nil {
		return nil, err
	}
	c.invalidateProduct(ctx, old.ProductID)
	if out.ProductID != old.ProductID {
		c.invalidateProduct(ctx, out.ProductID)
	}
	return out, nil
}

func (c *CachedStore) DeleteDiscount(ctx context.Context, id uint) error {
	old, err := c.Store.GetDiscount(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Store.DeleteDiscount(ctx, id); err != nil {
		return err
	}
	c.invalidateProduct(ctx, old.ProductID)
	return nil
}

// StockChanged drops cached entries after sales and restocks.
func (c *CachedStore) StockChanged(ctx context.Context, productIDs ...uint) {
	keys := make([]string, 0, len(productIDs)+1)
	keys = append(keys, keyAllProducts)
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	c.del(ctx, keys...)
}
