package credit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/credit"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/product"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/metrics"

	"github.com/shopspring/decimal"
)

const defaultLockWait = 3 * time.Second

// Engine answers how much more a customer may borrow under a product.
// The cache and lock only save recomputation; every value is re-derivable
// from loan rows, so their failures are logged and never surfaced.
type Engine struct {
	loans    loan.Repository
	products product.Repository
	cache    domain.Cache
	locker   domain.Locker
	lockWait time.Duration
	log      *slog.Logger
}

type Option func(*Engine)

func WithLockWait(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.lockWait = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEngine(loans loan.Repository, products product.Repository, cache domain.Cache, locker domain.Locker, opts ...Option) *Engine {
	e := &Engine{
		loans:    loans,
		products: products,
		cache:    cache,
		locker:   locker,
		lockWait: defaultLockWait,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Compute is the uncached availability: max(0, product limit − Σ active loan amounts).
// It reads through the given repositories so a caller inside a transaction sees its own writes.
func Compute(ctx context.Context, loans loan.Repository, products product.Repository, customerID, productID string) (decimal.Decimal, error) {
	p, err := products.GetByProductID(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	used, err := loans.SumAmountByCustomer(ctx, customerID, loan.ActiveStatuses)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum active loans of %s: %w", customerID, err)
	}
	avail := p.MaxLoanAmount.Sub(used)
	if avail.IsNegative() {
		return decimal.Zero, nil
	}
	return avail, nil
}

// Available serves the cached value, or fills the cache under a per
// (customer, product) lock with a double check. When the lock cannot be
// taken it computes directly and leaves the cache alone. A fill that
// overlaps an Invalidate of the same customer is discarded.
func (e *Engine) Available(ctx context.Context, customerID, productID string) (decimal.Decimal, error) {
	key := domain.AvailabilityKey(customerID, productID)
	if v, ok := e.lookup(ctx, key); ok {
		return v, nil
	}

	lk, err := e.locker.TryAcquire(ctx, domain.LockKey(customerID, productID), e.lockWait)
	if err != nil {
		metrics.CreditLockAcquire.WithLabelValues(metrics.ResultFallback).Inc()
		e.log.WarnContext(ctx, "credit lock unavailable, computing uncached",
			"customer_id", customerID, "product_id", productID, "error", err)
		v, cerr := Compute(ctx, e.loans, e.products, customerID, productID)
		if cerr != nil {
			if errors.Is(cerr, product.ErrNotFound) {
				return decimal.Zero, cerr
			}
			return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrDependencyUnavailable, cerr)
		}
		return v, nil
	}
	metrics.CreditLockAcquire.WithLabelValues(metrics.ResultAcquired).Inc()
	defer e.release(lk)

	// someone may have filled it while we waited
	if v, ok := e.lookup(ctx, key); ok {
		return v, nil
	}

	gen, fresh := e.generation(ctx, customerID)
	v, err := Compute(ctx, e.loans, e.products, customerID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if fresh {
		e.fill(ctx, customerID, key, v.String(), gen)
	}
	return v, nil
}

// ActiveLoans lists the loan ids counting against the customer's plafond.
func (e *Engine) ActiveLoans(ctx context.Context, customerID string) ([]string, error) {
	key := domain.ActiveLoansKey(customerID)
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.WarnContext(ctx, "credit cache read failed", "key", key, "error", err)
	}
	if ok {
		var ids []string
		if jerr := json.Unmarshal([]byte(raw), &ids); jerr == nil {
			metrics.CreditCacheLookups.WithLabelValues(metrics.ResultHit).Inc()
			return ids, nil
		}
		e.evict(ctx, key)
	}
	metrics.CreditCacheLookups.WithLabelValues(metrics.ResultMiss).Inc()

	gen, fresh := e.generation(ctx, customerID)
	active, err := e.loans.FindActiveByCustomer(ctx, customerID, loan.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(active))
	for _, l := range active {
		ids = append(ids, l.LoanID)
	}
	if b, jerr := json.Marshal(ids); jerr == nil && fresh {
		e.fill(ctx, customerID, key, string(b), gen)
	}
	return ids, nil
}

// Invalidate moves the customer's generation on, then drops every cached
// availability and the active loans list. Failures are logged only.
func (e *Engine) Invalidate(ctx context.Context, customerID string) {
	if err := e.cache.Bump(ctx, domain.GenerationKey(customerID)); err != nil {
		e.log.WarnContext(ctx, "credit generation bump failed", "customer_id", customerID, "error", err)
	}
	if err := e.cache.EvictPrefix(ctx, domain.CustomerAvailabilityPrefix(customerID)); err != nil {
		e.log.WarnContext(ctx, "credit cache invalidation failed", "customer_id", customerID, "error", err)
	}
	e.evict(ctx, domain.ActiveLoansKey(customerID))
}

// generation must be read before the loan rows; fresh=false means the
// result is served but not cached.
func (e *Engine) generation(ctx context.Context, customerID string) (int64, bool) {
	gen, err := e.cache.Generation(ctx, domain.GenerationKey(customerID))
	if err != nil {
		e.log.WarnContext(ctx, "credit generation read failed, not caching", "customer_id", customerID, "error", err)
		return 0, false
	}
	return gen, true
}

func (e *Engine) fill(ctx context.Context, customerID, key, value string, gen int64) {
	stored, err := e.cache.PutIfGeneration(ctx, key, value, domain.GenerationKey(customerID), gen)
	if err != nil {
		e.log.WarnContext(ctx, "credit cache write failed", "key", key, "error", err)
		return
	}
	if !stored {
		e.log.DebugContext(ctx, "credit fill overlapped an invalidation, dropped", "key", key)
	}
}

func (e *Engine) lookup(ctx context.Context, key string) (decimal.Decimal, bool) {
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		metrics.CreditCacheLookups.WithLabelValues(metrics.ResultError).Inc()
		e.log.WarnContext(ctx, "credit cache read failed", "key", key, "error", err)
		return decimal.Zero, false
	}
	if !ok {
		metrics.CreditCacheLookups.WithLabelValues(metrics.ResultMiss).Inc()
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		e.log.WarnContext(ctx, "dropping unreadable credit cache entry", "key", key, "error", err)
		e.evict(ctx, key)
		return decimal.Zero, false
	}
	metrics.CreditCacheLookups.WithLabelValues(metrics.ResultHit).Inc()
	return v, true
}

func (e *Engine) evict(ctx context.Context, key string) {
	if err := e.cache.Evict(ctx, key); err != nil {
		e.log.WarnContext(ctx, "credit cache evict failed", "key", key, "error", err)
	}
}

// release uses its own context so a cancelled request still frees the lock.
func (e *Engine) release(lk *domain.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.locker.Release(ctx, lk); err != nil {
		e.log.Warn("credit lock release failed", "key", lk.Key, "error", err)
	}
}
