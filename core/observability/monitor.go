package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMonitor aggregates per-route request statistics and flags
// routes that are slow or failing
type PerformanceMonitor struct {
	enabled atomic.Bool
	routes  sync.Map
	global  struct {
		totalRequests atomic.Uint64
		totalErrors   atomic.Uint64
		totalDuration atomic.Uint64
	}
	bottlenecks  []Bottleneck
	bottleneckMu sync.RWMutex

	thresholds Thresholds
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

// Thresholds decide when a route is reported as a bottleneck
type Thresholds struct {
	AvgLatency time.Duration
	ErrorRate  float64
}

// DefaultThresholds flags routes averaging over 100ms or failing over 5%
var DefaultThresholds = Thresholds{
	AvgLatency: 100 * time.Millisecond,
	ErrorRate:  0.05,
}

// RouteMetrics stores per-route metrics
type RouteMetrics struct {
	Name           string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [len(bucketBounds) + 1]atomic.Uint64
}

// RouteStats is a point-in-time copy of RouteMetrics
type RouteStats struct {
	Name    string
	Count   uint64
	Errors  uint64
	Avg     time.Duration
	Min     time.Duration
	Max     time.Duration
	Buckets []uint64
}

// Bottleneck represents a performance issue
type Bottleneck struct {
	Type       string
	Location   string
	Severity   int
	Impact     float64
	DetectedAt time.Time
	Details    string
}

// Upper bounds of the latency buckets; the last bucket is unbounded
var bucketBounds = [...]time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	5 * time.Second,
	10 * time.Second,
}

// NewPerformanceMonitor creates a monitor. Bottleneck analysis runs every
// interval until Stop; a non-positive interval disables it.
func NewPerformanceMonitor(interval time.Duration, thresholds Thresholds) *PerformanceMonitor {
	pm := &PerformanceMonitor{
		thresholds: thresholds,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	pm.enabled.Store(true)
	if interval > 0 {
		go pm.analyzeBottlenecks(interval)
	} else {
		close(pm.done)
	}
	return pm
}

// Stop ends the background analysis
func (pm *PerformanceMonitor) Stop() {
	pm.stopOnce.Do(func() { close(pm.stop) })
	<-pm.done
}

// SetEnabled turns recording on or off
func (pm *PerformanceMonitor) SetEnabled(on bool) {
	pm.enabled.Store(on)
}

// RecordRequest records a request
func (pm *PerformanceMonitor) RecordRequest(route string, duration time.Duration, isError bool) {
	if !pm.enabled.Load() {
		return
	}

	val, _ := pm.routes.LoadOrStore(route, &RouteMetrics{Name: route})
	metrics := val.(*RouteMetrics)

	metrics.Count.Add(1)
	if isError {
		metrics.Errors.Add(1)
		pm.global.totalErrors.Add(1)
	}

	durationNs := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(durationNs)
	updateMinMax(metrics, durationNs)
	metrics.latencyBuckets[bucketFor(duration)].Add(1)

	pm.global.totalRequests.Add(1)
	pm.global.totalDuration.Add(durationNs)
}

func updateMinMax(m *RouteMetrics, d uint64) {
	for {
		cur := m.MinDuration.Load()
		if cur != 0 && d >= cur {
			break
		}
		if m.MinDuration.CompareAndSwap(cur, d) {
			break
		}
	}
	for {
		cur := m.MaxDuration.Load()
		if d <= cur {
			break
		}
		if m.MaxDuration.CompareAndSwap(cur, d) {
			break
		}
	}
}

func bucketFor(d time.Duration) int {
	for i, bound := range bucketBounds {
		if d < bound {
			return i
		}
	}
	return len(bucketBounds)
}

// Route returns the statistics of one route
func (pm *PerformanceMonitor) Route(name string) (RouteStats, bool) {
	val, ok := pm.routes.Load(name)
	if !ok {
		return RouteStats{}, false
	}
	return val.(*RouteMetrics).stats(), true
}

// Snapshot returns the statistics of every route, sorted by name
func (pm *PerformanceMonitor) Snapshot() []RouteStats {
	var out []RouteStats
	pm.routes.Range(func(_, value any) bool {
		out = append(out, value.(*RouteMetrics).stats())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Totals returns the request count, error count and average latency over
// every route
func (pm *PerformanceMonitor) Totals() (requests, errors uint64, avg time.Duration) {
	requests = pm.global.totalRequests.Load()
	errors = pm.global.totalErrors.Load()
	if requests > 0 {
		avg = time.Duration(pm.global.totalDuration.Load() / requests)
	}
	return requests, errors, avg
}

func (m *RouteMetrics) stats() RouteStats {
	s := RouteStats{
		Name:    m.Name,
		Count:   m.Count.Load(),
		Errors:  m.Errors.Load(),
		Min:     time.Duration(m.MinDuration.Load()),
		Max:     time.Duration(m.MaxDuration.Load()),
		Buckets: make([]uint64, len(m.latencyBuckets)),
	}
	if s.Count > 0 {
		s.Avg = time.Duration(m.TotalDuration.Load() / s.Count)
	}
	for i := range m.latencyBuckets {
		s.Buckets[i] = m.latencyBuckets[i].Load()
	}
	return s
}

func (pm *PerformanceMonitor) analyzeBottlenecks(interval time.Duration) {
	defer close(pm.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-pm.stop:
			return
		case <-ticker.C:
		}
		if pm.enabled.Load() {
			pm.Analyze()
		}
	}
}

// Analyze runs bottleneck detection now and returns its findings
func (pm *PerformanceMonitor) Analyze() []Bottleneck {
	bottlenecks := pm.detectBottlenecks()
	pm.bottleneckMu.Lock()
	pm.bottlenecks = bottlenecks
	pm.bottleneckMu.Unlock()
	return bottlenecks
}

func (pm *PerformanceMonitor) detectBottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	for _, s := range pm.Snapshot() {
		if s.Count == 0 {
			continue
		}

		// High latency
		if s.Avg > pm.thresholds.AvgLatency {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "latency",
				Location:   s.Name,
				Severity:   8,
				Impact:     float64(s.Avg) / float64(pm.thresholds.AvgLatency) * 100,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("High latency (%v avg)", s.Avg),
			})
		}

		// High error rate
		rate := float64(s.Errors) / float64(s.Count)
		if s.Errors > 0 && rate > pm.thresholds.ErrorRate {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:       "errors",
				Location:   s.Name,
				Severity:   10,
				Impact:     rate * 100,
				DetectedAt: time.Now(),
				Details:    fmt.Sprintf("%.1f%% error rate", rate*100),
			})
		}
	}

	return bottlenecks
}

// GetBottlenecks returns the bottlenecks found by the last analysis
func (pm *PerformanceMonitor) GetBottlenecks() []Bottleneck {
	pm.bottleneckMu.RLock()
	defer pm.bottleneckMu.RUnlock()
	return append([]Bottleneck{}, pm.bottlenecks...)
}
