package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
)

const (
	cacheKeyGallery          = "ace:content:gallery"
	cacheKeyTestimonials     = "ace:content:testimonials:all"
	cacheKeyTestimonialsLive = "ace:content:testimonials:approved"
)

// cacheClient is the part of *redis.Client the content cache uses.
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedContentSource puts a Redis read-through cache in front of the gallery
// and testimonial listings. Cache errors are logged and fall through to the
// store; writes invalidate the cached listings.
type CachedContentSource struct {
	store ContentStore
	rdb   cacheClient
	ttl   time.Duration
}

// NewRedisClient connects to Redis, or returns nil when no address is set.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewCachedContentSource(store ContentStore, rdb cacheClient, ttl time.Duration) *CachedContentSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedContentSource{store: store, rdb: rdb, ttl: ttl}
}

func (c *CachedContentSource) ListGallery(ctx context.Context) ([]model.GalleryImage, error) {
	var items []model.GalleryImage
	if c.load(ctx, cacheKeyGallery, &items) {
		return items, nil
	}
	items, err := c.store.ListGallery(ctx)
	if err != nil {
		return nil, err
	}
	c.save(ctx, cacheKeyGallery, items)
	return items, nil
}

func (c *CachedContentSource) ListTestimonials(ctx context.Context, approvedOnly bool) ([]model.Testimonial, error) {
	key := cacheKeyTestimonials
	if approvedOnly {
		key = cacheKeyTestimonialsLive
	}
	var items []model.Testimonial
	if c.load(ctx, key, &items) {
		return items, nil
	}
	items, err := c.store.ListTestimonials(ctx, approvedOnly)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, items)
	return items, nil
}

func (c *CachedContentSource) AddGalleryImage(ctx context.Context, img *model.GalleryImage) error {
	if err := c.store.AddGalleryImage(ctx, img); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeyGallery)
	return nil
}

func (c *CachedContentSource) AddTestimonial(ctx context.Context, t *model.Testimonial) error {
	if err := c.store.AddTestimonial(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeyTestimonials, cacheKeyTestimonialsLive)
	return nil
}

func (c *CachedContentSource) ApproveTestimonial(ctx context.Context, id string) error {
	if err := c.store.ApproveTestimonial(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeyTestimonials, cacheKeyTestimonialsLive)
	return nil
}

func (c *CachedContentSource) load(ctx context.Context, key string, dst any) bool {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "redis GET failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		logger.Warn(ctx, "discarding unreadable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *CachedContentSource) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "redis SET failed", "key", key, "error", err)
	}
}

func (c *CachedContentSource) invalidate(ctx context.Context, keys ...string) {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Warn(ctx, "redis DEL failed", "keys", keys, "error", err)
	}
}
