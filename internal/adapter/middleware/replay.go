package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyHeader    = "Idempotency-Key"
	sentAtHeader = "Idempotency-Request-At"

	// pendingTTL bounds how long a crashed handler can block retries.
	pendingTTL   = 60 * time.Second
	maxSkew      = 10 * time.Minute
	storeTimeout = 2 * time.Second
)

var reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)

// replayEntry is what a command key holds: a pending marker while the
// handler runs, then the response to replay.
type replayEntry struct {
	Pending  bool   `json:"pending,omitempty"`
	Status   int    `json:"status,omitempty"`
	Body     []byte `json:"body,omitempty"`
	BodyHash string `json:"body_hash"`
}

type replayStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// replayKey scopes an entry to one actor, one route and one request id.
func replayKey(method, route, actorID, requestID string) string {
	return "idemp:lofi:" + strings.ToLower(method) + ":" + route + ":" + actorID + ":" + requestID
}

// reserve claims key for a running command. false means someone already holds it.
func (s replayStore) reserve(ctx context.Context, key, bodyHash string) (bool, error) {
	payload, err := json.Marshal(replayEntry{Pending: true, BodyHash: bodyHash})
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, pendingTTL).Result()
}

func (s replayStore) load(ctx context.Context, key string) (replayEntry, error) {
	var e replayEntry
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(raw, &e)
	return e, err
}

func (s replayStore) complete(ctx context.Context, key string, e replayEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, s.ttl).Err()
}

func (s replayStore) release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// readRequestID validates the replay headers of a command and returns its
// normalised request id.
func readRequestID(h http.Header, now time.Time) (string, error) {
	id := strings.ToLower(strings.TrimSpace(h.Get(keyHeader)))
	if id == "" {
		return "", fmt.Errorf("missing %s", keyHeader)
	}
	if !validRequestID(id) {
		return "", fmt.Errorf("invalid %s format", keyHeader)
	}
	at, err := parseSentAt(h.Get(sentAtHeader))
	if err != nil {
		return "", err
	}
	if d := now.Sub(at); d > maxSkew || d < -maxSkew {
		return "", fmt.Errorf("%s too skewed", sentAtHeader)
	}
	return id, nil
}

// validRequestID takes a lowercase 32-hex id or an RFC 4122 UUID of version 1 to 5.
func validRequestID(id string) bool {
	if reHex32.MatchString(id) {
		return true
	}
	if len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil || u.Variant() != uuid.RFC4122 {
		return false
	}
	return u.Version() >= 1 && u.Version() <= 5
}

// parseSentAt accepts epoch seconds, epoch milliseconds, or RFC3339 with a zone.
func parseSentAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %s", sentAtHeader)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be epoch (s/ms) or RFC3339 with timezone", sentAtHeader)
	}
	return t.UTC(), nil
}

func bodyHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
