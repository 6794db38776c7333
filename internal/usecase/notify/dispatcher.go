package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/notification"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/uow"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/metrics"
)

type Config struct {
	Workers   int
	QueueSize int
	// Timeout bounds one sink call.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// Dispatcher hands committed status changes to a sink on a bounded worker
// pool. Delivery is best effort: a full queue drops the event, and sink
// failures are logged and never reach the workflow.
type Dispatcher struct {
	sink  notification.Sink
	log   *slog.Logger
	cfg   Config
	queue chan notification.LoanStatusChanged
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts the workers. Call Close to drain them.
func New(sink notification.Sink, cfg Config, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		sink:  sink,
		log:   log,
		cfg:   cfg,
		queue: make(chan notification.LoanStatusChanged, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue ties ev to the outcome of the transaction owning hooks: it is
// queued for delivery after commit and discarded on rollback. A nil hooks
// means there is no transaction and the event is queued right away.
func (d *Dispatcher) Enqueue(hooks *uow.Hooks, ev notification.LoanStatusChanged) {
	if hooks == nil {
		d.submit(ev)
		return
	}
	hooks.AfterCommit(func() { d.submit(ev) })
	hooks.AfterRollback(func() {
		metrics.Notifications.WithLabelValues(metrics.ResultDiscarded).Inc()
		d.log.Debug("status change discarded after rollback",
			"event_id", ev.EventID, "loan_id", ev.LoanID, "to_status", ev.ToStatus)
	})
}

// submit never blocks the committing caller.
func (d *Dispatcher) submit(ev notification.LoanStatusChanged) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ev, "dispatcher closed")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev notification.LoanStatusChanged, reason string) {
	metrics.Notifications.WithLabelValues(metrics.ResultDropped).Inc()
	d.log.Warn("status change notification dropped",
		"reason", reason, "event_id", ev.EventID, "loan_id", ev.LoanID, "to_status", ev.ToStatus)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev notification.LoanStatusChanged) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	err := d.call(ctx, ev)
	if err != nil {
		metrics.Notifications.WithLabelValues(metrics.ResultFailed).Inc()
		d.log.Error("status change notification failed",
			"event_id", ev.EventID, "loan_id", ev.LoanID, "customer_id", ev.CustomerID,
			"to_status", ev.ToStatus, "error", err)
		return
	}
	metrics.Notifications.WithLabelValues(metrics.ResultDelivered).Inc()
}

func (d *Dispatcher) call(ctx context.Context, ev notification.LoanStatusChanged) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return d.sink.NotifyStatusChange(ctx, ev)
}

// Close stops accepting events and waits for queued ones until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
