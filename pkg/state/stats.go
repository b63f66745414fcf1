package state

import "sync"

// DeviceStats is a snapshot of one device's sample statistics.
type DeviceStats struct {
	// TotalSamples is the lifetime sample count.
	TotalSamples int

	// WindowMs is the configured sliding window duration.
	WindowMs int64

	// WindowSamples is the number of samples inside the window.
	WindowSamples int

	// RatePerSec is the derived sample rate in samples per second.
	RatePerSec float64

	// LastSampleMs is the time of the most recent sample batch.
	LastSampleMs int64
}

// statsEvent is one sample batch in the per-device event log.
type statsEvent struct {
	timeMs  int64
	samples int
}

// deviceStats is the mutable per-device tracking state.
type deviceStats struct {
	total  int
	events []statsEvent
	lastMs int64
}

// Stats tracks sliding-window sample rates per device.
type Stats struct {
	mu       sync.RWMutex
	windowMs int64
	devices  map[string]*deviceStats
}

// NewStats creates a stats tracker with the given window duration.
func NewStats(windowMs int64) *Stats {
	if windowMs <= 0 {
		windowMs = 1000
	}
	return &Stats{
		windowMs: windowMs,
		devices:  make(map[string]*deviceStats),
	}
}

// Update records a batch of samples for a device at nowMs. Events that have
// slid out of the window are dropped from the log head.
func (s *Stats) Update(key string, samples int, nowMs int64) {
	if samples <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.devices[key]
	if !ok {
		ds = &deviceStats{}
		s.devices[key] = ds
	}

	ds.total += samples
	ds.lastMs = nowMs
	ds.events = append(ds.events, statsEvent{timeMs: nowMs, samples: samples})
	ds.events = pruneEvents(ds.events, nowMs, s.windowMs)
}

// Get returns the stats snapshot for a device, evaluating the sliding
// window against nowMs. An unknown key yields zero stats.
func (s *Stats) Get(key string, nowMs int64) DeviceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := DeviceStats{WindowMs: s.windowMs}
	ds, ok := s.devices[key]
	if !ok {
		return snap
	}

	snap.TotalSamples = ds.total
	snap.LastSampleMs = ds.lastMs

	events := pruneEvents(ds.events, nowMs, s.windowMs)
	if len(events) == 0 {
		return snap
	}

	for _, ev := range events {
		snap.WindowSamples += ev.samples
	}
	elapsed := nowMs - events[0].timeMs
	if elapsed < 1 {
		elapsed = 1
	}
	snap.RatePerSec = float64(snap.WindowSamples) * 1000 / float64(elapsed)
	return snap
}

// Reset clears a device's statistics.
func (s *Stats) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, key)
}

// Remove is an alias for Reset used when a device is deleted.
func (s *Stats) Remove(key string) {
	s.Reset(key)
}

// pruneEvents drops events older than the window from the head.
// The returned slice aliases the input.
func pruneEvents(events []statsEvent, nowMs, windowMs int64) []statsEvent {
	cutoff := nowMs - windowMs
	idx := 0
	for idx < len(events) && events[idx].timeMs < cutoff {
		idx++
	}
	return events[idx:]
}
