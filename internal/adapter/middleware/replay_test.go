package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func Test_replayKey(t *testing.T) {
	k := replayKey("POST", "/loans/:loan_id/:action", "BM-1", testReqID)
	if k != "idemp:lofi:post:/loans/:loan_id/:action:BM-1:"+testReqID {
		t.Fatalf("replayKey = %q", k)
	}
	if replayKey("POST", "/loans", "BM-1", "x") == replayKey("POST", "/loans", "BM-2", "x") {
		t.Fatalf("keys must be scoped per actor")
	}
}

func Test_validRequestID(t *testing.T) {
	for _, s := range []string{
		"3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88",
		testReqID,
	} {
		if !validRequestID(s) {
			t.Fatalf("validRequestID should accept %q", s)
		}
	}
	for _, s := range []string{
		"",
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c8",
		"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
		"3f9a6a1b-3d54-9fbe-8b3a-6b3e8d6b2c88",
		"3f9a6a1b-3d54-4fbe-cb3a-6b3e8d6b2c88",
		"{3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88}",
	} {
		if validRequestID(s) {
			t.Fatalf("validRequestID should reject %q", s)
		}
	}
}

func Test_readRequestID(t *testing.T) {
	now := time.Now().UTC()
	h := http.Header{}
	h.Set(keyHeader, " 3F9A6A1B-3D54-4FBE-8B3A-6B3E8D6B2C88 ")
	h.Set(sentAtHeader, strconv.FormatInt(now.Unix(), 10))

	id, err := readRequestID(h, now)
	if err != nil || id != "3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88" {
		t.Fatalf("readRequestID = %q, %v", id, err)
	}

	h.Set(sentAtHeader, now.Add(maxSkew+time.Minute).Format(time.RFC3339))
	if _, err := readRequestID(h, now); err == nil || !strings.Contains(err.Error(), "skewed") {
		t.Fatalf("future timestamp: %v", err)
	}
}

func Test_parseSentAt(t *testing.T) {
	sec := time.Now().Unix()
	ms := time.Now().UnixMilli()
	cases := []struct {
		raw  string
		want time.Time
	}{
		{strconv.FormatInt(sec, 10), time.Unix(sec, 0).UTC()},
		{strconv.FormatInt(ms, 10), time.UnixMilli(ms).UTC()},
		{"2025-09-05T10:00:00+07:00", time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)},
		{"2025-09-05T03:00:00.5Z", time.Date(2025, 9, 5, 3, 0, 0, 5e8, time.UTC)},
	}
	for _, tc := range cases {
		got, err := parseSentAt(tc.raw)
		if err != nil || !got.Equal(tc.want) {
			t.Fatalf("parseSentAt(%q) = %v, %v; want %v", tc.raw, got, err, tc.want)
		}
	}
	for _, raw := range []string{"", "not-a-time", "2025-09-05T10:00:00", "1736123456abc"} {
		if _, err := parseSentAt(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestReplayStore_ReserveThenComplete(t *testing.T) {
	_, rdb := newMiniRedis(t)
	store := replayStore{rdb: rdb, ttl: 5 * time.Second}
	ctx := context.Background()
	key := replayKey("POST", "/loans", "CUST-1", testReqID)
	sum := bodyHash([]byte(`{"a":1}`))

	if ok, err := store.reserve(ctx, key, sum); err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > pendingTTL {
		t.Fatalf("pending TTL = %v", ttl)
	}
	if ok, err := store.reserve(ctx, key, sum); err != nil || ok {
		t.Fatalf("second reserve: ok=%v err=%v", ok, err)
	}
	pending, err := store.load(ctx, key)
	if err != nil || !pending.Pending || pending.BodyHash != sum {
		t.Fatalf("pending entry = %+v, %v", pending, err)
	}

	if err := store.complete(ctx, key, replayEntry{Status: 201, Body: []byte(`{"ok":true}`), BodyHash: sum}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := store.load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Pending || got.Status != 201 || string(got.Body) != `{"ok":true}` {
		t.Fatalf("final entry = %+v", got)
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > 5*time.Second {
		t.Fatalf("final TTL = %v", ttl)
	}

	if err := store.release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := store.load(ctx, key); err != redis.Nil {
		t.Fatalf("load after release = %v, want redis.Nil", err)
	}
}
