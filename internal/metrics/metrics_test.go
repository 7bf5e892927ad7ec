package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IncrementCounter(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter("call_start_total", nil, "Call starts")
	registry.IncrementCounter("call_start_total", nil, "Call starts")
	assert.Equal(t, float64(2), registry.CounterValue("call_start_total", nil))

	labels := map[string]string{"mode": "video"}
	registry.IncrementCounter("call_start_total", labels, "Call starts")

	snap := registry.Snapshot()
	counter, ok := snap.Counters["call_start_total_mode:video"]
	require.True(t, ok)
	assert.Equal(t, float64(1), counter.Value)
	assert.Equal(t, Counter, counter.Type)
	assert.Equal(t, "video", counter.Labels["mode"])
}

func TestRegistry_CounterLabelsAreCopied(t *testing.T) {
	registry := NewRegistry()
	labels := map[string]string{"code": "DEVICE_BUSY"}

	registry.IncrementCounter("failures", labels, "")
	labels["code"] = "changed"

	snap := registry.Snapshot()
	assert.Equal(t, "DEVICE_BUSY", snap.Counters["failures_code:DEVICE_BUSY"].Labels["code"])
}

func TestKey_SortsLabels(t *testing.T) {
	a := Key("m", map[string]string{"b": "2", "a": "1"})
	b := Key("m", map[string]string{"a": "1", "b": "2"})

	assert.Equal(t, "m_a:1_b:2", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "m", Key("m", nil))
}

func TestRegistry_RecordTimer(t *testing.T) {
	registry := NewRegistry()

	registry.RecordTimer("device_acquire_duration", 10*time.Millisecond, nil, "")
	registry.RecordTimer("device_acquire_duration", 30*time.Millisecond, nil, "")

	snap := registry.Snapshot()
	timer, ok := snap.Timers["device_acquire_duration"]
	require.True(t, ok)
	assert.Equal(t, int64(2), timer.Count)
	assert.InDelta(t, 10.0, timer.Min, 0.001)
	assert.InDelta(t, 30.0, timer.Max, 0.001)
	assert.InDelta(t, 20.0, timer.Average, 0.001)
	assert.Zero(t, timer.P95, "percentiles need ten samples")
	assert.Equal(t, int64(2), registry.TimerCount("device_acquire_duration", nil))
}

func TestRegistry_TimerPercentiles(t *testing.T) {
	registry := NewRegistry()

	for i := 100; i >= 1; i-- {
		registry.RecordTimer("latency", time.Duration(i)*time.Millisecond, nil, "")
	}

	timer := registry.Snapshot().Timers["latency"]
	assert.InDelta(t, 96.0, timer.P95, 0.001)
	assert.InDelta(t, 100.0, timer.P99, 0.001)
}

func TestRegistry_Gauge(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge("ws_clients", 3, nil, "")
	registry.SetGauge("ws_clients", 1, nil, "")

	assert.Equal(t, float64(1), registry.GaugeValue("ws_clients", nil))
	assert.Zero(t, registry.GaugeValue("missing", nil))
}

func TestRegistry_Reset(t *testing.T) {
	registry := NewRegistry()
	registry.IncrementCounter("c", nil, "")
	registry.RecordTimer("t", time.Millisecond, nil, "")

	registry.Reset()

	snap := registry.Snapshot()
	assert.Empty(t, snap.Counters)
	assert.Empty(t, snap.Timers)
	assert.Empty(t, snap.Gauges)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				registry.IncrementCounter("concurrent", nil, "")
				registry.RecordTimer("concurrent_timer", time.Millisecond, nil, "")
				_ = registry.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(1000), registry.CounterValue("concurrent", nil))
	assert.Equal(t, int64(1000), registry.TimerCount("concurrent_timer", nil))
}
