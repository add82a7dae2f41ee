package webserial

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks adapter health statistics. All counters are atomic and
// shared between a Binding and every Session it opens.
type Metrics struct {
	// Lifecycle
	OpenAttempts  atomic.Int64 // Total transport open attempts
	OpenFailures  atomic.Int64 // Failed transport opens
	Closes        atomic.Int64 // Completed closes
	LastOpenTime  atomic.Int64 // Unix timestamp of last successful open
	LastCloseTime atomic.Int64 // Unix timestamp of last close

	// Reconfiguration
	Reconfigurations       atomic.Int64 // Completed baud-rate changes
	ReconfigurationErrors  atomic.Int64 // Failed teardown/setup during update
	ReconfigurationRetries atomic.Int64 // Reads retried across a reopen

	// Read side
	ReadOperations  atomic.Int64 // Reads satisfied (buffer or transport)
	BytesRead       atomic.Int64 // Total bytes delivered to callers
	ReadErrors      atomic.Int64 // Fatal read failures
	LineNoiseEvents atomic.Int64 // Recoverable framing/parity/break/overrun

	// Write side
	WriteOperations atomic.Int64 // Writes queued
	BytesWritten    atomic.Int64 // Total bytes queued for transmission
	WriteErrors     atomic.Int64 // Failed writes

	// Registry
	DeviceRequests atomic.Int64 // Permission prompts triggered
	PathLookups    atomic.Int64 // Opens resolved via virtual path
	PathMisses     atomic.Int64 // Lookups that matched no device
}

// MetricsSnapshot is a point-in-time copy of the counters, suitable for
// broadcasting to consumers.
type MetricsSnapshot struct {
	Timestamp time.Time

	OpenAttempts           int64
	OpenFailures           int64
	Closes                 int64
	Reconfigurations       int64
	ReconfigurationErrors  int64
	ReconfigurationRetries int64
	ReadOperations         int64
	BytesRead              int64
	ReadErrors             int64
	LineNoiseEvents        int64
	WriteOperations        int64
	BytesWritten           int64
	WriteErrors            int64
	DeviceRequests         int64
	PathLookups            int64
	PathMisses             int64
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Timestamp:              time.Now(),
		OpenAttempts:           m.OpenAttempts.Load(),
		OpenFailures:           m.OpenFailures.Load(),
		Closes:                 m.Closes.Load(),
		Reconfigurations:       m.Reconfigurations.Load(),
		ReconfigurationErrors:  m.ReconfigurationErrors.Load(),
		ReconfigurationRetries: m.ReconfigurationRetries.Load(),
		ReadOperations:         m.ReadOperations.Load(),
		BytesRead:              m.BytesRead.Load(),
		ReadErrors:             m.ReadErrors.Load(),
		LineNoiseEvents:        m.LineNoiseEvents.Load(),
		WriteOperations:        m.WriteOperations.Load(),
		BytesWritten:           m.BytesWritten.Load(),
		WriteErrors:            m.WriteErrors.Load(),
		DeviceRequests:         m.DeviceRequests.Load(),
		PathLookups:            m.PathLookups.Load(),
		PathMisses:             m.PathMisses.Load(),
	}
}

// Reset zeroes all counters. Useful for tests.
func (m *Metrics) Reset() {
	*m = Metrics{}
}

// MetricsBroadcaster periodically emits snapshots on a channel.
type MetricsBroadcaster struct {
	ch       chan MetricsSnapshot
	interval time.Duration
	enabled  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once // Prevent double-close race
}

// NewMetricsBroadcaster creates a broadcaster emitting every interval on a
// channel with the given capacity.
func NewMetricsBroadcaster(channelSize int, interval time.Duration) *MetricsBroadcaster {
	return &MetricsBroadcaster{
		ch:       make(chan MetricsSnapshot, channelSize),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Channel returns the snapshot channel. It is closed once Stop has been
// called on a started broadcaster.
func (mb *MetricsBroadcaster) Channel() <-chan MetricsSnapshot { return mb.ch }

// Start begins broadcasting snapshots of m.
func (mb *MetricsBroadcaster) Start(m *Metrics) {
	if !mb.enabled.CompareAndSwap(false, true) {
		return // Already running
	}

	ticker := time.NewTicker(mb.interval)

	go func() {
		defer ticker.Stop()
		// The channel is closed here, after the stop signal, so a send can
		// never race a close.
		defer close(mb.ch)

		for {
			select {
			case <-mb.stopCh:
				return
			case <-ticker.C:
				// Drop the snapshot rather than block when no consumer
				// keeps up.
				select {
				case mb.ch <- m.Snapshot():
				default:
				}
			}
		}
	}()
}

// Stop stops broadcasting. The broadcast goroutine closes the snapshot
// channel on its way out.
func (mb *MetricsBroadcaster) Stop() {
	if mb.enabled.CompareAndSwap(true, false) {
		mb.stopOnce.Do(func() { close(mb.stopCh) })
	}
}
