// Package metrics exposes Prometheus counters for the session lifecycle.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	RefreshStale   = "stale"
	RefreshSkipped = "skipped"
)

// Teardown reasons.
const (
	TeardownUnauthorized  = "unauthorized"
	TeardownRefreshFailed = "refresh_failed"
	TeardownExpired       = "expired"
)

// Recorder is what the session components report to.
type Recorder interface {
	RecordStoreWrite(kind string)
	RecordRefresh(outcome string)
	RecordRetry(statusCode int)
	RecordTeardown(reason string)
	RecordRequest(method string, statusCode int, duration time.Duration)
}

// NoOp discards everything.
type NoOp struct{}

var _ Recorder = NoOp{}

func (NoOp) RecordStoreWrite(string)                  {}
func (NoOp) RecordRefresh(string)                     {}
func (NoOp) RecordRetry(int)                          {}
func (NoOp) RecordTeardown(string)                    {}
func (NoOp) RecordRequest(string, int, time.Duration) {}

// Collector records to Prometheus.
type Collector struct {
	storeWrites *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	retries     *prometheus.CounterVec
	teardowns   *prometheus.CounterVec
	requests    *prometheus.CounterVec
	latency     prometheus.Histogram
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repairshop",
			Name:      "session_store_writes_total",
			Help:      "Credential store mutations by kind.",
		}, []string{"kind"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repairshop",
			Name:      "session_refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repairshop",
			Name:      "session_retry_total",
			Help:      "Calls replayed after a refresh, by the status that triggered the replay.",
		}, []string{"status_code"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repairshop",
			Name:      "session_teardown_total",
			Help:      "Forced session teardowns by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repairshop",
			Name:      "api_requests_total",
			Help:      "API calls by method and status code.",
		}, []string{"method", "status_code"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "repairshop",
			Name:      "api_request_duration_seconds",
			Help:      "API call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.storeWrites,
		c.refreshes,
		c.retries,
		c.teardowns,
		c.requests,
		c.latency,
	)
	return c
}

// RecordStoreWrite counts a store mutation.
func (c *Collector) RecordStoreWrite(kind string) {
	c.storeWrites.WithLabelValues(kind).Inc()
}

// RecordRefresh counts a refresh attempt.
func (c *Collector) RecordRefresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

// RecordRetry counts a replayed call.
func (c *Collector) RecordRetry(statusCode int) {
	c.retries.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTeardown counts a forced teardown.
func (c *Collector) RecordTeardown(reason string) {
	c.teardowns.WithLabelValues(reason).Inc()
}

// RecordRequest counts an API call and its latency. statusCode is 0 for transport failures.
func (c *Collector) RecordRequest(method string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.latency.Observe(duration.Seconds())
}
