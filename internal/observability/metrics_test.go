package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.ObserveResolution("high", false, 2*time.Millisecond)
	metrics.ObserveResolution("high", true, time.Microsecond)
	metrics.ObserveReprocess("config", 50, time.Second)
	metrics.ObserveSnapshot(50000, 3)
	metrics.ObserveMutation("create", nil)
	metrics.ObserveMutation("create", errors.New("disk full"))
	metrics.ObserveTracking(false, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, float64(1), gathered(families, "redirector_resolutions_total", map[string]string{"band": "high", "cache": "hit"}))
	assert.Equal(t, float64(50), gathered(families, "redirector_reprocess_batches_total", nil))
	assert.Equal(t, float64(50000), gathered(families, "redirector_rules", nil))
	assert.Equal(t, float64(1), gathered(families, "redirector_rule_mutations_total", map[string]string{"op": "create", "outcome": "error"}))
	assert.Equal(t, float64(1), gathered(families, "redirector_tracking_entries_total", map[string]string{"outcome": "skipped"}))
}

// gathered returns the counter or gauge value of the series matching labels
func gathered(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return -1
}

func TestMetricsNilSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.ObserveResolution("none", false, time.Millisecond)
		metrics.ObserveReprocess("rebuild", 1, time.Millisecond)
		metrics.ObserveSnapshot(0, 0)
		metrics.ObserveMutation("delete", nil)
		metrics.ObserveTracking(true, nil)
	})
}
