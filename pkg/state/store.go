package state

import (
	"errors"
	"sync"
)

// Store errors.
var (
	// ErrDeviceNotFound indicates an unknown device key.
	ErrDeviceNotFound = errors.New("device not found")
)

// Store owns the device-state map. Creation is idempotent per device key.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState
}

// NewStore creates an empty device state store.
func NewStore() *Store {
	return &Store{devices: make(map[string]*DeviceState)}
}

// Ensure returns the device state for key, creating it on first sight.
// created reports whether this call created the entry.
func (s *Store) Ensure(key, busName, address string) (*DeviceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dev, ok := s.devices[key]; ok {
		return dev, false
	}
	dev := newDeviceState(key, busName, address)
	s.devices[key] = dev
	return dev, true
}

// Get returns the device state for key.
func (s *Store) Get(key string) (*DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[key]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev, nil
}

// Remove deletes the device state for key. Returns the removed state, or
// nil if the key was unknown.
func (s *Store) Remove(key string) *DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev := s.devices[key]
	delete(s.devices, key)
	return dev
}

// Keys returns the current device keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.devices))
	for k := range s.devices {
		keys = append(keys, k)
	}
	return keys
}

// Devices returns the current device states.
func (s *Store) Devices() []*DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devs := make([]*DeviceState, 0, len(s.devices))
	for _, d := range s.devices {
		devs = append(devs, d)
	}
	return devs
}

// Count returns the number of tracked devices.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// Stale returns the keys of devices whose last update is older than
// staleness, measured against nowMs. Devices that have never been updated
// are not considered stale.
func (s *Store) Stale(nowMs, stalenessMs int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []string
	for key, dev := range s.devices {
		if dev.LastUpdateMs > 0 && nowMs-dev.LastUpdateMs > stalenessMs {
			stale = append(stale, key)
		}
	}
	return stale
}
