package protolog

import "time"

// Event is one captured protocol event. CBOR encoding uses integer keys
// for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// EngineID identifies the engine instance (UUID).
	EngineID string `cbor:"2,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"4,keyasint"`

	// Type-specific payload (one of these will be set).
	Frame     *FrameEvent     `cbor:"5,keyasint,omitempty"`
	Record    *RecordEvent    `cbor:"6,keyasint,omitempty"`
	Lifecycle *LifecycleEvent `cbor:"7,keyasint,omitempty"`
	Error     *ErrorEventData `cbor:"8,keyasint,omitempty"`
}

// Layer indicates which engine layer captured the event.
type Layer uint8

const (
	// LayerFrame is the frame classification layer.
	LayerFrame Layer = 0
	// LayerRecord is the per-device record decode layer.
	LayerRecord Layer = 1
	// LayerLifecycle is the device lifecycle layer.
	LayerLifecycle Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerFrame:
		return "FRAME"
	case LayerRecord:
		return "RECORD"
	case LayerLifecycle:
		return "LIFECYCLE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryData indicates a normally-processed frame or record.
	CategoryData Category = 0
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 1
	// CategoryError indicates a parse or decode failure.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryData:
		return "DATA"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a classified inbound frame.
type FrameEvent struct {
	// Size is the full frame size including the transport prefix.
	Size int `cbor:"1,keyasint"`

	// Kind is the frame classification name.
	Kind string `cbor:"2,keyasint"`

	// Topic is the resolved topic name, when known.
	Topic string `cbor:"3,keyasint,omitempty"`

	// Version is the envelope version, when enveloped.
	Version int `cbor:"4,keyasint,omitempty"`

	// Data is the (possibly truncated) frame payload.
	Data []byte `cbor:"5,keyasint,omitempty"`

	// Truncated indicates Data was cut at the capture limit.
	Truncated bool `cbor:"6,keyasint,omitempty"`
}

// RecordEvent captures one per-device decode result.
type RecordEvent struct {
	// DeviceKey is the "{bus}_{addr}" identity.
	DeviceKey string `cbor:"1,keyasint"`

	// Samples is the number of samples appended.
	Samples int `cbor:"2,keyasint"`

	// Attrs is the number of attributes per sample.
	Attrs int `cbor:"3,keyasint,omitempty"`
}

// LifecycleEvent captures a device lifecycle change.
type LifecycleEvent struct {
	// DeviceKey is the "{bus}_{addr}" identity.
	DeviceKey string `cbor:"1,keyasint"`

	// OldState and NewState are online-state names.
	OldState string `cbor:"2,keyasint,omitempty"`
	NewState string `cbor:"3,keyasint"`

	// Reason is the trigger, e.g. "pending-deletion" or "stale".
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures a parse or decode failure.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes what was being processed.
	Context string `cbor:"2,keyasint,omitempty"`
}
