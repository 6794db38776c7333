package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestOpenRedis_Success(t *testing.T) {
	// Start in-memory Redis
	s := miniredis.RunT(t)
	defer s.Close()

	// Use a non-zero DB to verify it's set
	c, err := OpenRedis(s.Addr(), 2)
	if err != nil {
		t.Fatalf("OpenRedis returned error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if got := c.Options().DB; got != 2 {
		t.Fatalf("client DB = %d, want 2", got)
	}
}

func TestOpenRedis_Failure(t *testing.T) {
	// Unresolvable host → Ping should fail immediately (no 5s delay)
	if _, err := OpenRedis("not-a-real-host:6379", 0); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestRedisCache_GetPutEvict(t *testing.T) {
	s, rdb := newTestClient(t)
	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "credit:avail:C1:P1"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if ok, err := c.PutIfGeneration(ctx, "credit:avail:C1:P1", "6000000", "credit:gen:C1", 0); err != nil || !ok {
		t.Fatalf("PutIfGeneration = %v, %v", ok, err)
	}
	v, ok, err := c.Get(ctx, "credit:avail:C1:P1")
	if err != nil || !ok || v != "6000000" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if ttl := s.TTL("credit:avail:C1:P1"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}

	s.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "credit:avail:C1:P1"); ok {
		t.Fatalf("entry survived its TTL")
	}

	_ = s.Set("a", "1")
	_ = s.Set("b", "2")
	if err := c.Evict(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if s.Exists("a") || s.Exists("b") {
		t.Fatalf("keys not evicted")
	}
	if err := c.Evict(ctx); err != nil {
		t.Fatalf("Evict with no keys: %v", err)
	}
}

func TestRedisCache_EvictPrefix(t *testing.T) {
	s, rdb := newTestClient(t)
	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		_ = s.Set("credit:avail:C1:P"+strconv.Itoa(i), "1")
	}
	_ = s.Set("credit:avail:C10:P1", "1")
	_ = s.Set("credit:active:C1", "[]")

	if err := c.EvictPrefix(ctx, "credit:avail:C1:"); err != nil {
		t.Fatalf("EvictPrefix: %v", err)
	}
	keys := s.Keys()
	if len(keys) != 2 {
		t.Fatalf("remaining keys = %v, want only C10 and the active list", keys)
	}
	if !s.Exists("credit:avail:C10:P1") || !s.Exists("credit:active:C1") {
		t.Fatalf("unrelated keys evicted: %v", keys)
	}
}

func TestRedisCache_PutIfGeneration(t *testing.T) {
	s, rdb := newTestClient(t)
	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()
	const key, gen = "credit:avail:C1:P1", "credit:gen:C1"

	g, err := c.Generation(ctx, gen)
	if err != nil || g != 0 {
		t.Fatalf("Generation on empty = %d, %v", g, err)
	}

	// a fill that read the counter before a bump is dropped
	if err := c.Bump(ctx, gen); err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if ok, err := c.PutIfGeneration(ctx, key, "10000000", gen, g); err != nil || ok {
		t.Fatalf("stale fill stored: ok=%v err=%v", ok, err)
	}
	if s.Exists(key) {
		t.Fatalf("stale value written")
	}

	g, err = c.Generation(ctx, gen)
	if err != nil || g != 1 {
		t.Fatalf("Generation after bump = %d, %v", g, err)
	}
	if ok, err := c.PutIfGeneration(ctx, key, "6000000", gen, g); err != nil || !ok {
		t.Fatalf("current fill rejected: ok=%v err=%v", ok, err)
	}
	if v, _ := s.Get(key); v != "6000000" {
		t.Fatalf("value = %q", v)
	}
	if ttl := s.TTL(key); ttl != time.Minute {
		t.Fatalf("value ttl = %v, want 1m", ttl)
	}
	if ttl := s.TTL(gen); ttl != genTTL {
		t.Fatalf("counter ttl = %v, want %v", ttl, genTTL)
	}
}

func TestRedisCache_ErrorsWhenServerDown(t *testing.T) {
	s, rdb := newTestClient(t)
	c := NewRedisCache(rdb, time.Minute)
	s.Close()

	if _, _, err := c.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected transport error")
	}
	if err := c.EvictPrefix(context.Background(), "k"); err == nil {
		t.Fatalf("expected transport error")
	}
	if err := c.Bump(context.Background(), "g"); err == nil {
		t.Fatalf("expected transport error")
	}
	if _, err := c.PutIfGeneration(context.Background(), "k", "v", "g", 0); err == nil {
		t.Fatalf("expected transport error")
	}
}
