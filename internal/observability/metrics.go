package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects engine metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	resolutionsTotal  *prometheus.CounterVec
	resolveDuration   *prometheus.HistogramVec
	reprocessTotal    *prometheus.CounterVec
	reprocessBatches  prometheus.Counter
	reprocessDuration *prometheus.HistogramVec
	rules             prometheus.Gauge
	cacheGeneration   prometheus.Gauge
	mutationsTotal    *prometheus.CounterVec
	trackingTotal     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "redirector_resolutions_total", Help: "Total URL resolutions"},
			[]string{"band", "cache"},
		),
		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redirector_resolve_duration_seconds",
				Help:    "Resolution duration in seconds",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"band"},
		),
		reprocessTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "redirector_reprocess_total", Help: "Total full rule reprocessing passes"},
			[]string{"trigger"},
		),
		reprocessBatches: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "redirector_reprocess_batches_total", Help: "Total reprocessing batches"},
		),
		reprocessDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redirector_reprocess_duration_seconds",
				Help:    "Duration of full reprocessing passes in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		rules: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "redirector_rules", Help: "Rules in the active cache snapshot"},
		),
		cacheGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "redirector_cache_generation", Help: "Generation of the active cache snapshot"},
		),
		mutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "redirector_rule_mutations_total", Help: "Total rule mutations"},
			[]string{"op", "outcome"},
		),
		trackingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "redirector_tracking_entries_total", Help: "Total tracking writes"},
			[]string{"outcome"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.resolutionsTotal,
		m.resolveDuration,
		m.reprocessTotal,
		m.reprocessBatches,
		m.reprocessDuration,
		m.rules,
		m.cacheGeneration,
		m.mutationsTotal,
		m.trackingTotal,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveResolution(band string, cacheHit bool, d time.Duration) {
	if m == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.resolutionsTotal.WithLabelValues(band, cache).Inc()
	m.resolveDuration.WithLabelValues(band).Observe(d.Seconds())
}

func (m *Metrics) ObserveReprocess(trigger string, batches int, d time.Duration) {
	if m == nil {
		return
	}
	m.reprocessTotal.WithLabelValues(trigger).Inc()
	m.reprocessBatches.Add(float64(batches))
	m.reprocessDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *Metrics) ObserveSnapshot(rules int, generation uint64) {
	if m == nil {
		return
	}
	m.rules.Set(float64(rules))
	m.cacheGeneration.Set(float64(generation))
}

func (m *Metrics) ObserveMutation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.mutationsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveTracking(stored bool, err error) {
	if m == nil {
		return
	}
	outcome := "stored"
	switch {
	case err != nil:
		outcome = "error"
	case !stored:
		outcome = "skipped"
	}
	m.trackingTotal.WithLabelValues(outcome).Inc()
}
