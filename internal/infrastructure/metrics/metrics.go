package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofi_loan_transitions_total",
		Help: "Loan workflow actions, labeled by action and outcome",
	}, []string{"action", "result"})

	CreditCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofi_credit_cache_lookups_total",
		Help: "Credit availability cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	CreditLockAcquire = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofi_credit_lock_acquire_total",
		Help: "Credit lock acquisitions by result (acquired, fallback)",
	}, []string{"result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofi_notifications_total",
		Help: "Status change notifications by outcome (delivered, failed, dropped, discarded)",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofi_http_requests_total",
		Help: "HTTP requests processed, labeled by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lofi_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})
)

// Outcome labels shared by the counters above.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultHit       = "hit"
	ResultMiss      = "miss"
	ResultAcquired  = "acquired"
	ResultFallback  = "fallback"
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
	ResultDiscarded = "discarded"
)

func Handler() http.Handler { return promhttp.Handler() }
