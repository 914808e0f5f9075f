package observability

import (
	"strconv"
	"sync"
	"time"
)

type requestStat struct {
	count         int64
	totalDuration time.Duration
}

// Metrics keeps in-memory request and error counters keyed by route,
// method, and outcome.
type Metrics struct {
	mu       sync.Mutex
	requests map[string]*requestStat
	errors   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[string]*requestStat),
		errors:   make(map[string]int64),
	}
}

// RecordRequest counts a completed request and accumulates its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	stat, ok := m.requests[key]
	if !ok {
		stat = &requestStat{}
		m.requests[key] = stat
	}
	stat.count++
	stat.totalDuration += duration
}

// RecordError counts an error response by its domain error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[path+"|"+method+"|"+code]++
}

// RequestCount returns the number of requests recorded for the exact
// path, method, and status combination.
func (m *Metrics) RequestCount(path, method string, status int) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stat, ok := m.requests[path+"|"+method+"|"+strconv.Itoa(status)]
	if !ok {
		return 0
	}
	return stat.count
}

// AverageLatency returns the mean latency for a path, method, and status
// combination, or zero when nothing was recorded.
func (m *Metrics) AverageLatency(path, method string, status int) time.Duration {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stat, ok := m.requests[path+"|"+method+"|"+strconv.Itoa(status)]
	if !ok || stat.count == 0 {
		return 0
	}
	return stat.totalDuration / time.Duration(stat.count)
}
