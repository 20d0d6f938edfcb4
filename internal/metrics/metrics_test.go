package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IncrementCounter(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("reconcile_applied", map[string]string{"outcome": "inserted"}, "applied")
	r.IncrementCounter("reconcile_applied", map[string]string{"outcome": "inserted"}, "applied")
	r.IncrementCounter("reconcile_applied", map[string]string{"outcome": "replaced"}, "applied")

	all := r.GetAllMetrics()
	counters := all["counters"].(map[string]*Metric)

	inserted := counters["reconcile_applied_outcome:inserted"]
	require.NotNil(t, inserted)
	assert.Equal(t, float64(2), inserted.Value)

	replaced := counters["reconcile_applied_outcome:replaced"]
	require.NotNil(t, replaced)
	assert.Equal(t, float64(1), replaced.Value)
}

func TestRegistry_RecordTimer(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("refresh_sweep", 10*time.Millisecond, nil, "sweep")
	r.RecordTimer("refresh_sweep", 30*time.Millisecond, nil, "sweep")

	all := r.GetAllMetrics()
	timers := all["timers"].(map[string]*TimerMetric)

	sweep := timers["refresh_sweep"]
	require.NotNil(t, sweep)
	assert.Equal(t, int64(2), sweep.Count)
	assert.Equal(t, float64(10), sweep.Min)
	assert.Equal(t, float64(30), sweep.Max)
	assert.Equal(t, float64(20), sweep.Average)
}

func TestRegistry_SetGauge(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("channel_connected", 1, nil, "connection state")
	r.SetGauge("channel_connected", 0, nil, "connection state")

	all := r.GetAllMetrics()
	gauges := all["gauges"].(map[string]*Metric)

	g := gauges["channel_connected"]
	require.NotNil(t, g)
	assert.Equal(t, float64(0), g.Value)
}

func TestMetricKey_LabelOrderStable(t *testing.T) {
	a := metricKey("m", map[string]string{"x": "1", "y": "2"})
	b := metricKey("m", map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("c", nil, "")
	r.Reset()

	all := r.GetAllMetrics()
	assert.Empty(t, all["counters"].(map[string]*Metric))
}
