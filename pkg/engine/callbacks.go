package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/robdobsn/raftgo/pkg/state"
)

// DecodedData is the payload of a decoded-data event: only the values and
// timestamps newly appended by one attribute-group update batch, plus any
// side-channel markers from the record (e.g. "_buf" for replayed data).
type DecodedData struct {
	// DeviceKey is the "{bus}_{addr}" identity.
	DeviceKey string

	// Timestamps are the newly appended timeline entries (microseconds).
	Timestamps []int64

	// Values maps attribute name to its newly appended values.
	Values map[string][]float64

	// Markers carries "_"-prefixed side-channel keys from the record.
	Markers map[string]any
}

// Callback signatures.
type (
	// NewDeviceFunc fires once when a device is first seen.
	NewDeviceFunc func(key string, dev *state.DeviceState)

	// AttributeFunc fires for new-attribute and new-data events.
	AttributeFunc func(key string, attr *state.AttributeState)

	// DecodedDataFunc fires once per attribute-group update batch.
	DecodedDataFunc func(data DecodedData)

	// DeviceRemovedFunc fires when a device leaves the state map.
	DeviceRemovedFunc func(key string, dev *state.DeviceState)
)

// callbackRegistry holds registered callbacks keyed by UUID handles.
type callbackRegistry struct {
	mu sync.RWMutex

	newDevice     map[string]NewDeviceFunc
	newAttribute  map[string]AttributeFunc
	newData       map[string]AttributeFunc
	decodedData   map[string]DecodedDataFunc
	deviceRemoved map[string]DeviceRemovedFunc
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{
		newDevice:     make(map[string]NewDeviceFunc),
		newAttribute:  make(map[string]AttributeFunc),
		newData:       make(map[string]AttributeFunc),
		decodedData:   make(map[string]DecodedDataFunc),
		deviceRemoved: make(map[string]DeviceRemovedFunc),
	}
}

// OnNewDevice registers a new-device callback and returns its handle.
func (e *Engine) OnNewDevice(fn NewDeviceFunc) string {
	handle := uuid.NewString()
	e.callbacks.mu.Lock()
	e.callbacks.newDevice[handle] = fn
	e.callbacks.mu.Unlock()
	return handle
}

// OnNewAttribute registers a new-attribute callback and returns its handle.
func (e *Engine) OnNewAttribute(fn AttributeFunc) string {
	handle := uuid.NewString()
	e.callbacks.mu.Lock()
	e.callbacks.newAttribute[handle] = fn
	e.callbacks.mu.Unlock()
	return handle
}

// OnNewData registers a new-data callback and returns its handle.
func (e *Engine) OnNewData(fn AttributeFunc) string {
	handle := uuid.NewString()
	e.callbacks.mu.Lock()
	e.callbacks.newData[handle] = fn
	e.callbacks.mu.Unlock()
	return handle
}

// OnDecodedData registers a decoded-data callback and returns its handle.
func (e *Engine) OnDecodedData(fn DecodedDataFunc) string {
	handle := uuid.NewString()
	e.callbacks.mu.Lock()
	e.callbacks.decodedData[handle] = fn
	e.callbacks.mu.Unlock()
	return handle
}

// OnDeviceRemoved registers a device-removed callback and returns its
// handle.
func (e *Engine) OnDeviceRemoved(fn DeviceRemovedFunc) string {
	handle := uuid.NewString()
	e.callbacks.mu.Lock()
	e.callbacks.deviceRemoved[handle] = fn
	e.callbacks.mu.Unlock()
	return handle
}

// Unregister removes a callback by handle, whichever kind it was.
func (e *Engine) Unregister(handle string) {
	e.callbacks.mu.Lock()
	defer e.callbacks.mu.Unlock()
	delete(e.callbacks.newDevice, handle)
	delete(e.callbacks.newAttribute, handle)
	delete(e.callbacks.newData, handle)
	delete(e.callbacks.decodedData, handle)
	delete(e.callbacks.deviceRemoved, handle)
}

// dispatch fires all pending callbacks for the just-processed frame and
// clears the dirty flags. Callbacks run synchronously, outside any lock;
// a slow callback delays the next frame.
func (e *Engine) dispatch() {
	e.callbacks.mu.RLock()
	newDevice := snapshotCallbacks(e.callbacks.newDevice)
	newAttribute := snapshotCallbacks(e.callbacks.newAttribute)
	newData := snapshotCallbacks(e.callbacks.newData)
	decodedData := snapshotCallbacks(e.callbacks.decodedData)
	deviceRemoved := snapshotCallbacks(e.callbacks.deviceRemoved)
	e.callbacks.mu.RUnlock()

	for _, dev := range e.store.Devices() {
		if dev.IsNew {
			dev.IsNew = false
			for _, fn := range newDevice {
				fn(dev.Key, dev)
			}
		}
		dev.StateChanged = false

		for _, attr := range dev.Attributes {
			if attr.NewAttribute {
				attr.NewAttribute = false
				for _, fn := range newAttribute {
					fn(dev.Key, attr)
				}
			}
			if attr.NewData {
				attr.NewData = false
				for _, fn := range newData {
					fn(dev.Key, attr)
				}
			}
		}
	}

	for _, ev := range e.pendingDecoded {
		for _, fn := range decodedData {
			fn(ev)
		}
	}
	e.pendingDecoded = nil

	for _, removed := range e.pendingRemoved {
		for _, fn := range deviceRemoved {
			fn(removed.key, removed.dev)
		}
	}
	e.pendingRemoved = nil
}

// snapshotCallbacks copies a callback map's values for dispatch outside
// the registry lock.
func snapshotCallbacks[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}
