package server

import (
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/httpd/internal/response"
)

// Metrics holds server runtime metrics
type Metrics struct {
	ConnectionsTotal  atomic.Int64
	ActiveConnections atomic.Int64
	RequestsTotal     atomic.Int64
	Abandoned         atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64
	BytesSent         atomic.Int64
	Panics            atomic.Int64

	TotalLatencyNs atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a response that was sent, or attempted.
func (m *Metrics) RecordRequest(status response.StatusCode, bodyBytes int64, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.BytesSent.Add(bodyBytes)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	switch {
	case status.IsClientError():
		m.Errors4xx.Add(1)
	case status.IsServerError():
		m.Errors5xx.Add(1)
	}
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	total := m.RequestsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.TotalLatencyNs.Load() / total)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	ConnectionsTotal  int64         `json:"connections_total"`
	ActiveConnections int64         `json:"active_connections"`
	RequestsTotal     int64         `json:"requests_total"`
	Abandoned         int64         `json:"abandoned"`
	Errors4xx         int64         `json:"errors_4xx"`
	Errors5xx         int64         `json:"errors_5xx"`
	BytesSent         int64         `json:"bytes_sent"`
	Panics            int64         `json:"panics"`
	AverageLatency    time.Duration `json:"average_latency_ns"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsTotal:  m.ConnectionsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		RequestsTotal:     m.RequestsTotal.Load(),
		Abandoned:         m.Abandoned.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		BytesSent:         m.BytesSent.Load(),
		Panics:            m.Panics.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
