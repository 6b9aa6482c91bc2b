package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"savings_circle_bot/internal/domain/errs"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savings_circle_operations_total",
			Help: "Total number of community and wallet operations by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: "ok" or an errs.Kind
	)

	VersionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savings_circle_version_conflicts_total",
			Help: "Total number of optimistic-concurrency conflicts seen before retry",
		},
		[]string{"operation"},
	)

	PayoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savings_circle_payouts_total",
			Help: "Total number of mid-cycle payouts distributed",
		},
	)

	PayoutAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savings_circle_payout_amount_total",
			Help: "Sum of all payout amounts credited to wallets",
		},
	)

	ContributionAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savings_circle_contribution_amount_total",
			Help: "Sum of all recorded contributions",
		},
	)

	CyclesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savings_circle_cycles_completed_total",
			Help: "Total number of cycles in which every active member was paid",
		},
	)

	WalletsFrozenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savings_circle_wallets_frozen_total",
			Help: "Total number of wallets frozen for missed contributions",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "savings_circle_sweep_duration_seconds",
			Help:    "Duration of payout sweeps in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	SweepCommunitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savings_circle_sweep_communities_total",
			Help: "Communities processed by the payout sweep by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savings_circle_http_requests_total",
			Help: "Total number of ops HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordOperation counts an operation outcome.
func RecordOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errs.KindOf(err))
	}
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordPayout counts a distributed payout.
func RecordPayout(amount decimal.Decimal, cycleClosed bool) {
	PayoutsTotal.Inc()
	PayoutAmountTotal.Add(amount.InexactFloat64())
	if cycleClosed {
		CyclesCompletedTotal.Inc()
	}
}

// RecordContribution adds to the contribution total.
func RecordContribution(amount decimal.Decimal) {
	ContributionAmountTotal.Add(amount.InexactFloat64())
}

// RecordSweep records one sweep pass.
func RecordSweep(duration time.Duration, ok, failed int) {
	SweepDuration.Observe(duration.Seconds())
	SweepCommunitiesTotal.WithLabelValues("ok").Add(float64(ok))
	SweepCommunitiesTotal.WithLabelValues("error").Add(float64(failed))
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
	})
}
