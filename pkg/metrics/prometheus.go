package metrics

import (
	"sync"
	"time"

	"DeepInfo/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal    *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	staleDiscards prometheus.Counter
	cacheTotal    *prometheus.CounterVec
	renders       *prometheus.CounterVec
	sessions      prometheus.Gauge
	ingested      prometheus.Counter
	errorsTotal   *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the recorder registered on the default Prometheus registry.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deepinfo_fetch_total",
				Help: "Total number of candle fetches by source and status",
			},
			[]string{"source", "status"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deepinfo_fetch_duration_seconds",
				Help:    "Duration of candle fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		staleDiscards: f.NewCounter(prometheus.CounterOpts{
			Name: "deepinfo_stale_discards_total",
			Help: "Fetch completions dropped because a newer fetch superseded them",
		}),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deepinfo_cache_requests_total",
				Help: "Candle cache lookups by result",
			},
			[]string{"result"},
		),
		renders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deepinfo_renders_total",
				Help: "Chart renders by state",
			},
			[]string{"state"},
		),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "deepinfo_sessions_active",
			Help: "Number of live chart sessions",
		}),
		ingested: f.NewCounter(prometheus.CounterOpts{
			Name: "deepinfo_candles_ingested_total",
			Help: "Market candles written to the candle store",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deepinfo_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordFetch records one data source call.
func (r *Recorder) RecordFetch(source string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.fetchTotal.WithLabelValues(source, status).Inc()
	r.fetchLatency.WithLabelValues(source).Observe(d.Seconds())
}

func (r *Recorder) RecordStaleDiscard() { r.staleDiscards.Inc() }

// RecordCache records a cache hit or miss.
func (r *Recorder) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordRender(state models.RenderState) {
	r.renders.WithLabelValues(string(state)).Inc()
}

func (r *Recorder) RecordSessions(n int) { r.sessions.Set(float64(n)) }

func (r *Recorder) RecordIngested(n int) { r.ingested.Add(float64(n)) }

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
