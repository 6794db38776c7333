package credit

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDependencyUnavailable is returned only when the uncached fallback also failed.
	ErrDependencyUnavailable = errors.New("credit availability dependency unavailable")
	ErrLockNotAcquired       = errors.New("lock not acquired within wait")
	ErrLockLost              = errors.New("lock expired or taken over before release")
)

// Cache is a string key/value store with a TTL chosen by the implementation.
// Writes are fenced by a generation counter: a fill that started before the
// counter moved is dropped.
type Cache interface {
	// Get reports ok=false on a miss; err is reserved for transport failures.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Generation reads the counter at genKey, zero when absent.
	Generation(ctx context.Context, genKey string) (int64, error)
	// Bump increments the counter at genKey.
	Bump(ctx context.Context, genKey string) error
	// PutIfGeneration stores value only while genKey still reads gen.
	PutIfGeneration(ctx context.Context, key, value, genKey string, gen int64) (stored bool, err error)
	Evict(ctx context.Context, keys ...string) error
	// EvictPrefix removes every key starting with prefix.
	EvictPrefix(ctx context.Context, prefix string) error
}

// Lock is the handle of a held distributed lock. Token identifies the owner.
type Lock struct {
	Key   string
	Token string
}

// Locker is a best-effort distributed mutex. It only de-duplicates cache fills;
// loan correctness rests on the database row lock and version check.
type Locker interface {
	TryAcquire(ctx context.Context, key string, wait time.Duration) (*Lock, error)
	Release(ctx context.Context, l *Lock) error
}

const (
	availPrefix  = "credit:avail:"
	activePrefix = "credit:active:"
	genPrefix    = "credit:gen:"
	lockPrefix   = "lock:credit:"
)

func AvailabilityKey(customerID, productID string) string {
	return availPrefix + customerID + ":" + productID
}

// CustomerAvailabilityPrefix matches every product entry of one customer.
func CustomerAvailabilityPrefix(customerID string) string {
	return availPrefix + customerID + ":"
}

func ActiveLoansKey(customerID string) string { return activePrefix + customerID }

// GenerationKey holds the customer's invalidation counter.
func GenerationKey(customerID string) string { return genPrefix + customerID }

func LockKey(customerID, productID string) string {
	return lockPrefix + customerID + ":" + productID
}
