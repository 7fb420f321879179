package monitoring

import (
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type MetricType string

const (
	Counter MetricType = "counter"
	Timer   MetricType = "timer"
)

// Metric is one labelled series. Timers keep a count and a running sum so the
// mean can be derived.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Labels    map[string]string `json:"labels,omitempty"`
	Count     int64             `json:"count"`
	SumMillis float64           `json:"sum_ms,omitempty"`
	MaxMillis float64           `json:"max_ms,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (m *Metric) MeanMillis() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.SumMillis / float64(m.Count)
}

type MetricsCollector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
	started time.Time
}

type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
}

type Snapshot struct {
	Uptime  string       `json:"uptime"`
	Runtime RuntimeStats `json:"runtime"`
	Metrics []*Metric    `json:"metrics"`
}

var globalMetrics = NewMetricsCollector()

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metric),
		started: time.Now(),
	}
}

// Default is the process-wide collector fed by the package-level helpers.
func Default() *MetricsCollector {
	return globalMetrics
}

func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	metric := mc.series(name, Counter, labels)
	metric.Count++
	metric.UpdatedAt = time.Now()
}

func (mc *MetricsCollector) RecordDuration(name string, d time.Duration, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	ms := float64(d) / float64(time.Millisecond)
	metric := mc.series(name, Timer, labels)
	metric.Count++
	metric.SumMillis += ms
	if ms > metric.MaxMillis {
		metric.MaxMillis = ms
	}
	metric.UpdatedAt = time.Now()
}

// GetMetric returns a copy of the series, or nil if nothing was recorded.
func (mc *MetricsCollector) GetMetric(name string, labels map[string]string) *Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	metric, ok := mc.metrics[metricKey(name, labels)]
	if !ok {
		return nil
	}
	copied := *metric
	return &copied
}

func (mc *MetricsCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	metrics := make([]*Metric, 0, len(mc.metrics))
	for _, m := range mc.metrics {
		copied := *m
		metrics = append(metrics, &copied)
	}
	mc.mu.RUnlock()

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Name != metrics[j].Name {
			return metrics[i].Name < metrics[j].Name
		}
		return metricKey("", metrics[i].Labels) < metricKey("", metrics[j].Labels)
	})

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Snapshot{
		Uptime: time.Since(mc.started).Round(time.Second).String(),
		Runtime: RuntimeStats{
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  m.HeapAlloc,
			HeapSys:    m.HeapSys,
			NumGC:      m.NumGC,
		},
		Metrics: metrics,
	}
}

func (mc *MetricsCollector) series(name string, kind MetricType, labels map[string]string) *Metric {
	key := metricKey(name, labels)
	metric, ok := mc.metrics[key]
	if !ok {
		metric = &Metric{Name: name, Type: kind, Labels: labels}
		mc.metrics[key] = metric
	}
	return metric
}

// metricKey sorts label names so the same labels always map to one series.
func metricKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	labels := map[string]string{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status/100) + "xx",
	}
	globalMetrics.IncrementCounter("http_requests_total", labels)
	globalMetrics.RecordDuration("http_request_duration", d, map[string]string{"method": method, "route": route})
}

func RecordCheckout(status string, d time.Duration) {
	globalMetrics.IncrementCounter("checkout_sessions_total", map[string]string{"status": status})
	globalMetrics.RecordDuration("checkout_session_duration", d, nil)
}

func RecordWebhookEvent(provider, eventType, outcome string) {
	globalMetrics.IncrementCounter("webhook_events_total", map[string]string{
		"provider":   provider,
		"event_type": eventType,
		"outcome":    outcome,
	})
}

func RecordNotification(kind, status string) {
	globalMetrics.IncrementCounter("notifications_total", map[string]string{
		"type":   kind,
		"status": status,
	})
}
