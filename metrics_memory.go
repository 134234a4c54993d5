package mqttsn

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryMetrics keeps every series in process memory. Tests read it back
// through the Get methods; the example clients print Snapshot on exit.
type MemoryMetrics struct {
	mu         sync.RWMutex
	counters   map[string]*memoryCounter
	gauges     map[string]*memoryGauge
	histograms map[string]*memoryHistogram
}

// NewMemoryMetrics creates an empty store.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		counters:   make(map[string]*memoryCounter),
		gauges:     make(map[string]*memoryGauge),
		histograms: make(map[string]*memoryHistogram),
	}
}

// MetricSample is one series in a Snapshot. Count is set for histograms only.
type MetricSample struct {
	Name   string
	Type   MetricType
	Labels MetricLabels
	Value  float64
	Count  uint64
}

// series identifies a metric by name and label set.
type series struct {
	name   string
	labels MetricLabels
}

// labelsKey joins the name with the labels sorted by label name.
func labelsKey(name string, labels MetricLabels) string {
	if len(labels) == 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

// getOrCreate returns the series under key, creating it on first use.
func getOrCreate[T any](mu *sync.RWMutex, set map[string]T, key string, create func() T) T {
	mu.RLock()
	v, ok := set[key]
	mu.RUnlock()
	if ok {
		return v
	}

	mu.Lock()
	defer mu.Unlock()

	if v, ok := set[key]; ok {
		return v
	}
	v = create()
	set[key] = v
	return v
}

// Counter returns the counter for name and labels.
func (m *MemoryMetrics) Counter(name string, labels MetricLabels) Counter {
	return getOrCreate(&m.mu, m.counters, labelsKey(name, labels), func() *memoryCounter {
		return &memoryCounter{series: series{name: name, labels: maps.Clone(labels)}}
	})
}

// Gauge returns the gauge for name and labels.
func (m *MemoryMetrics) Gauge(name string, labels MetricLabels) Gauge {
	return getOrCreate(&m.mu, m.gauges, labelsKey(name, labels), func() *memoryGauge {
		return &memoryGauge{series: series{name: name, labels: maps.Clone(labels)}}
	})
}

// Histogram returns the histogram for name and labels.
func (m *MemoryMetrics) Histogram(name string, labels MetricLabels) Histogram {
	return getOrCreate(&m.mu, m.histograms, labelsKey(name, labels), func() *memoryHistogram {
		return &memoryHistogram{series: series{name: name, labels: maps.Clone(labels)}}
	})
}

// GetCounter returns an existing counter, or nil.
func (m *MemoryMetrics) GetCounter(name string, labels MetricLabels) Counter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.counters[labelsKey(name, labels)]; ok {
		return c
	}
	return nil
}

// GetGauge returns an existing gauge, or nil.
func (m *MemoryMetrics) GetGauge(name string, labels MetricLabels) Gauge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if g, ok := m.gauges[labelsKey(name, labels)]; ok {
		return g
	}
	return nil
}

// GetHistogram returns an existing histogram, or nil.
func (m *MemoryMetrics) GetHistogram(name string, labels MetricLabels) Histogram {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if h, ok := m.histograms[labelsKey(name, labels)]; ok {
		return h
	}
	return nil
}

// CounterTotal sums a counter over all of its label sets.
func (m *MemoryMetrics) CounterTotal(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total float64
	for _, c := range m.counters {
		if c.name == name {
			total += c.Value()
		}
	}
	return total
}

// Snapshot returns every series ordered by name and labels.
func (m *MemoryMetrics) Snapshot() []MetricSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keyed := make(map[string]MetricSample, len(m.counters)+len(m.gauges)+len(m.histograms))
	for k, c := range m.counters {
		keyed[k] = MetricSample{Name: c.name, Type: MetricTypeCounter, Labels: c.labels, Value: c.Value()}
	}
	for k, g := range m.gauges {
		keyed[k] = MetricSample{Name: g.name, Type: MetricTypeGauge, Labels: g.labels, Value: g.Value()}
	}
	for k, h := range m.histograms {
		keyed[k] = MetricSample{Name: h.name, Type: MetricTypeHistogram, Labels: h.labels, Value: h.Sum(), Count: h.Count()}
	}

	samples := make([]MetricSample, 0, len(keyed))
	for _, k := range slices.Sorted(maps.Keys(keyed)) {
		samples = append(samples, keyed[k])
	}
	return samples
}

// atomicFloat is a float64 updated with compare-and-swap.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) add(delta float64) {
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

type memoryCounter struct {
	series
	value atomicFloat
}

func (c *memoryCounter) Inc()              { c.value.add(1) }
func (c *memoryCounter) Add(delta float64) { c.value.add(delta) }
func (c *memoryCounter) Value() float64    { return c.value.load() }

type memoryGauge struct {
	series
	value atomicFloat
}

func (g *memoryGauge) Set(value float64) { g.value.store(value) }
func (g *memoryGauge) Inc()              { g.value.add(1) }
func (g *memoryGauge) Dec()              { g.value.add(-1) }
func (g *memoryGauge) Add(delta float64) { g.value.add(delta) }
func (g *memoryGauge) Sub(delta float64) { g.value.add(-delta) }
func (g *memoryGauge) Value() float64    { return g.value.load() }

// memoryHistogram keeps count and sum; ack latency is read as Sum/Count.
type memoryHistogram struct {
	series
	count atomic.Uint64
	sum   atomicFloat
}

func (h *memoryHistogram) Observe(value float64) {
	h.count.Add(1)
	h.sum.add(value)
}

func (h *memoryHistogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *memoryHistogram) Count() uint64 { return h.count.Load() }
func (h *memoryHistogram) Sum() float64  { return h.sum.load() }
