package performance

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/peternagy/chromapal/internal/core"
)

// FetchBuckets are histogram buckets for page fetch latency, 5ms to 30s.
var FetchBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics holds performance and runtime statistics
type Metrics struct {
	// Go runtime
	HeapAlloc      uint64 `json:"heapAlloc"`      // Bytes allocated and in use
	HeapSys        uint64 `json:"heapSys"`        // Bytes obtained from system
	HeapInuse      uint64 `json:"heapInuse"`      // Bytes in non-idle spans
	StackInuse     uint64 `json:"stackInuse"`     // Bytes in stack spans
	Goroutines     int    `json:"goroutines"`     // Number of goroutines
	NumGC          uint32 `json:"numGC"`          // Number of completed GC cycles
	LastGCPauseNs  uint64 `json:"lastGCPauseNs"`  // Duration of last GC pause in nanoseconds
	TotalAllocated uint64 `json:"totalAllocated"` // Total bytes allocated (cumulative)
	Sys            uint64 `json:"sys"`            // Total bytes obtained from system

	// Connection stats
	Connected bool `json:"connected"`

	// Chroma request stats
	Attempts       map[string]float64 `json:"attempts"`       // "<variant>/<status class>" -> count
	CountLookups   map[string]float64 `json:"countLookups"`   // outcome -> count
	PageFetches    uint64             `json:"pageFetches"`    // negotiated page fetches
	FallbackCount  uint64             `json:"fallbackCount"`  // fetches that reached the fallback request
	AvgFetchMillis float64            `json:"avgFetchMillis"` // mean negotiated fetch latency

	// Uptime
	UptimeSeconds int64 `json:"uptimeSeconds"` // App uptime in seconds

	// Timestamp
	Timestamp string `json:"timestamp"` // When metrics were collected
}

// Service provides performance metrics collection and observes Chroma requests.
type Service struct {
	state     *core.AppState
	startTime time.Time

	registry      *prometheus.Registry
	attemptsTotal *prometheus.CounterVec
	countTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewService creates a new performance metrics service with its own registry.
func NewService(state *core.AppState) *Service {
	s := &Service{
		state:     state,
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chromapal_negotiation_attempts_total",
				Help: "Document fetch attempts by request variant and status class",
			},
			[]string{"variant", "status"},
		),
		countTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chromapal_count_lookups_total",
				Help: "Collection count lookups by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chromapal_page_fetch_duration_seconds",
				Help:    "Negotiated page fetch duration",
				Buckets: FetchBuckets,
			},
			[]string{"fallback", "ok"},
		),
	}
	s.registry.MustRegister(s.attemptsTotal, s.countTotal, s.fetchDuration)
	return s
}

// Registry exposes the metrics registry.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// StatusClass buckets an HTTP status; 0 means the request never got a response.
func StatusClass(status int) string {
	if status <= 0 {
		return "network"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// ObserveAttempt records one request variant.
func (s *Service) ObserveAttempt(variant string, status int, d time.Duration) {
	s.attemptsTotal.WithLabelValues(variant, StatusClass(status)).Inc()
}

// ObserveCount records a count lookup outcome.
func (s *Service) ObserveCount(outcome string) {
	s.countTotal.WithLabelValues(outcome).Inc()
}

// ObservePageFetch records a completed negotiated fetch.
func (s *Service) ObservePageFetch(d time.Duration, fallback, ok bool) {
	s.fetchDuration.WithLabelValues(fmt.Sprint(fallback), fmt.Sprint(ok)).Observe(d.Seconds())
}

// GetMetrics returns current performance metrics
func (s *Service) GetMetrics() *Metrics {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Get last GC pause duration
	var lastGCPause uint64
	if memStats.NumGC > 0 {
		// PauseNs is a circular buffer of recent GC pause times
		lastGCPause = memStats.PauseNs[(memStats.NumGC+255)%256]
	}

	m := &Metrics{
		HeapAlloc:      memStats.HeapAlloc,
		HeapSys:        memStats.HeapSys,
		HeapInuse:      memStats.HeapInuse,
		StackInuse:     memStats.StackInuse,
		Goroutines:     runtime.NumGoroutine(),
		NumGC:          memStats.NumGC,
		LastGCPauseNs:  lastGCPause,
		TotalAllocated: memStats.TotalAlloc,
		Sys:            memStats.Sys,
		Attempts:       map[string]float64{},
		CountLookups:   map[string]float64{},
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		Timestamp:      time.Now().Format(time.RFC3339),
	}
	if s.state != nil {
		m.Connected = s.state.HasClient()
	}

	families, err := s.registry.Gather()
	if err != nil {
		return m
	}
	var fetchSum float64
	for _, mf := range families {
		switch mf.GetName() {
		case "chromapal_negotiation_attempts_total":
			for _, metric := range mf.GetMetric() {
				key := label(metric, "variant") + "/" + label(metric, "status")
				m.Attempts[key] += metric.GetCounter().GetValue()
			}
		case "chromapal_count_lookups_total":
			for _, metric := range mf.GetMetric() {
				m.CountLookups[label(metric, "outcome")] += metric.GetCounter().GetValue()
			}
		case "chromapal_page_fetch_duration_seconds":
			for _, metric := range mf.GetMetric() {
				h := metric.GetHistogram()
				m.PageFetches += h.GetSampleCount()
				fetchSum += h.GetSampleSum()
				if label(metric, "fallback") == "true" {
					m.FallbackCount += h.GetSampleCount()
				}
			}
		}
	}
	if m.PageFetches > 0 {
		m.AvgFetchMillis = fetchSum / float64(m.PageFetches) * 1000
	}
	return m
}

// ForceGC triggers a garbage collection (for debugging/testing)
func (s *Service) ForceGC() {
	runtime.GC()
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
