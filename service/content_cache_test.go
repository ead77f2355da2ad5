package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	down bool
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]string{}}
}

func (m *mapCache) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	m.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (m *mapCache) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type countingContent struct {
	*MemoryStore
	galleryCalls int
}

func (c *countingContent) ListGallery(ctx context.Context) ([]model.GalleryImage, error) {
	c.galleryCalls++
	return c.MemoryStore.ListGallery(ctx)
}

func TestCachedContentSourceReadThrough(t *testing.T) {
	ctx := context.Background()
	store := &countingContent{MemoryStore: NewMemoryStore()}
	_ = store.AddGalleryImage(ctx, &model.GalleryImage{ID: "g1", URL: "/a.jpg", Position: 1})

	cache := newMapCache()
	src := NewCachedContentSource(store, cache, time.Minute)

	for i := 0; i < 3; i++ {
		items, err := src.ListGallery(ctx)
		if err != nil {
			t.Fatalf("list gallery: %v", err)
		}
		if len(items) != 1 || items[0].ID != "g1" {
			t.Errorf("Unexpected gallery %+v", items)
		}
	}
	if store.galleryCalls != 1 {
		t.Errorf("Expected one store call, got %d", store.galleryCalls)
	}

	if err := src.AddGalleryImage(ctx, &model.GalleryImage{ID: "g2", URL: "/b.jpg", Position: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	items, _ := src.ListGallery(ctx)
	if len(items) != 2 {
		t.Errorf("Expected cache invalidated after write, got %d items", len(items))
	}
	if store.galleryCalls != 2 {
		t.Errorf("Expected a second store call after invalidation, got %d", store.galleryCalls)
	}
}

func TestCachedContentSourceApprovalInvalidates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	src := NewCachedContentSource(store, newMapCache(), time.Minute)

	_ = src.AddTestimonial(ctx, &model.Testimonial{ID: "t1", Author: "Ana", Quote: "Perfeito"})
	approved, _ := src.ListTestimonials(ctx, true)
	if len(approved) != 0 {
		t.Fatalf("Expected no approved testimonials, got %d", len(approved))
	}

	if err := src.ApproveTestimonial(ctx, "t1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	approved, _ = src.ListTestimonials(ctx, true)
	if len(approved) != 1 {
		t.Errorf("Expected approval to show up, got %d", len(approved))
	}
}

func TestCachedContentSourceCacheDown(t *testing.T) {
	ctx := context.Background()
	store := &countingContent{MemoryStore: NewMemoryStore()}
	_ = store.AddGalleryImage(ctx, &model.GalleryImage{ID: "g1", URL: "/a.jpg"})

	cache := newMapCache()
	cache.down = true
	src := NewCachedContentSource(store, cache, time.Minute)

	items, err := src.ListGallery(ctx)
	if err != nil {
		t.Fatalf("Expected store fallback, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestNewRedisClientDisabled(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), &config.RedisConfig{})
	if err != nil || rdb != nil {
		t.Errorf("Expected no client without address, got %v, %v", rdb, err)
	}
}
