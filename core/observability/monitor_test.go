package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor(0, DefaultThresholds)
	defer pm.Stop()

	pm.RecordRequest("GET /api", 10*time.Millisecond, false)
	pm.RecordRequest("GET /api", 20*time.Millisecond, false)
	pm.RecordRequest("GET /api", 30*time.Millisecond, true)

	stats, ok := pm.Route("GET /api")
	require.True(t, ok)
	assert.Equal(t, uint64(3), stats.Count)
	assert.Equal(t, uint64(1), stats.Errors)
	assert.Equal(t, 20*time.Millisecond, stats.Avg)
	assert.Equal(t, 10*time.Millisecond, stats.Min)
	assert.Equal(t, 30*time.Millisecond, stats.Max)
	assert.Equal(t, uint64(3), stats.Buckets[3])

	requests, errors, avg := pm.Totals()
	assert.Equal(t, uint64(3), requests)
	assert.Equal(t, uint64(1), errors)
	assert.Equal(t, 20*time.Millisecond, avg)
}

func TestPerformanceMonitorDisabled(t *testing.T) {
	pm := NewPerformanceMonitor(0, DefaultThresholds)
	defer pm.Stop()

	pm.SetEnabled(false)
	pm.RecordRequest("GET /", time.Millisecond, false)
	assert.Empty(t, pm.Snapshot())
}

func TestBottleneckDetection(t *testing.T) {
	pm := NewPerformanceMonitor(0, DefaultThresholds)
	defer pm.Stop()

	for i := 0; i < 100; i++ {
		pm.RecordRequest("GET /slow", 150*time.Millisecond, false)
		pm.RecordRequest("GET /failing", time.Millisecond, i%2 == 0)
		pm.RecordRequest("GET /fine", time.Millisecond, false)
	}

	bottlenecks := pm.detectBottlenecks()
	require.Len(t, bottlenecks, 2)
	for _, b := range bottlenecks {
		t.Logf("  - [%s] %s: %s (severity: %d)", b.Type, b.Location, b.Details, b.Severity)
	}
	assert.Equal(t, "GET /failing", bottlenecks[0].Location)
	assert.Equal(t, "errors", bottlenecks[0].Type)
	assert.Equal(t, "GET /slow", bottlenecks[1].Location)
	assert.Equal(t, "latency", bottlenecks[1].Type)
}

func TestBackgroundAnalysis(t *testing.T) {
	pm := NewPerformanceMonitor(5*time.Millisecond, DefaultThresholds)
	defer pm.Stop()

	pm.RecordRequest("GET /slow", time.Second, false)
	assert.Eventually(t, func() bool {
		return len(pm.GetBottlenecks()) == 1
	}, time.Second, 5*time.Millisecond)
}

func BenchmarkRecordRequest(b *testing.B) {
	pm := NewPerformanceMonitor(0, DefaultThresholds)
	defer pm.Stop()
	duration := 10 * time.Millisecond

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pm.RecordRequest("GET /api", duration, false)
	}
}
