package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the system
type Metrics struct {
	ForecastsTotal    *prometheus.CounterVec
	ForecastCacheHits prometheus.Counter
	ForecastTimeouts  prometheus.Counter
	ForecastLatency   prometheus.Histogram

	SimulationsTotal *prometheus.CounterVec
	CurveBuilds      *prometheus.CounterVec

	AlertsEmitted    *prometheus.CounterVec
	TransfersPlanned prometheus.Counter

	StoreErrors prometheus.Counter
	AuditErrors prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	return &Metrics{
		ForecastsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paintops_forecasts_total",
				Help: "Baseline forecasts computed, labeled by selected model",
			},
			[]string{"model"},
		),
		ForecastCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paintops_forecast_cache_hits",
			Help: "Baseline forecasts served from cache",
		}),
		ForecastTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paintops_forecast_timeouts",
			Help: "Baseline forecasts that exceeded the provider deadline",
		}),
		ForecastLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "paintops_forecast_latency_seconds",
			Help:    "Wall time spent computing a baseline forecast",
			Buckets: prometheus.DefBuckets,
		}),
		SimulationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paintops_simulations_total",
				Help: "What-if simulations run, labeled by composition policy",
			},
			[]string{"policy"},
		),
		CurveBuilds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paintops_curve_builds_total",
				Help: "Event multiplier curves built, labeled by event kind",
			},
			[]string{"kind"},
		),
		AlertsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paintops_alerts_emitted_total",
				Help: "Inventory alerts emitted, labeled by alert type",
			},
			[]string{"type"},
		),
		TransfersPlanned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paintops_transfers_planned",
			Help: "Stock transfer recommendations produced",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paintops_store_errors",
			Help: "Persistence layer errors",
		}),
		AuditErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paintops_audit_errors",
			Help: "Audit trail write errors",
		}),
	}
}
