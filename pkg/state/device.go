package state

import "github.com/robdobsn/raftgo/pkg/schema"

// OnlineState is the device lifecycle state.
type OnlineState uint8

const (
	// OnlineStateUnknown means no lifecycle information has been seen.
	OnlineStateUnknown OnlineState = iota

	// OnlineStateOnline means the device answered its last poll.
	OnlineStateOnline

	// OnlineStateOffline means the device stopped answering polls.
	OnlineStateOffline

	// OnlineStatePendingDeletion means the firmware is about to remove
	// the device; it is removed from the store on receipt.
	OnlineStatePendingDeletion
)

// String returns the state name.
func (s OnlineState) String() string {
	switch s {
	case OnlineStateOnline:
		return "online"
	case OnlineStateOffline:
		return "offline"
	case OnlineStatePendingDeletion:
		return "pending-deletion"
	default:
		return "unknown"
	}
}

// AttributeState holds one attribute's value history and dirty flags.
type AttributeState struct {
	// Name is the attribute name.
	Name string

	// Values is the ordered value history, oldest first.
	Values []float64

	// NewAttribute is set until the new-attribute callback has fired.
	NewAttribute bool

	// NewData is set when values were appended since the last dispatch.
	NewData bool

	// Units is the display unit from the schema.
	Units string

	// Range is the valid [min, max] range from the schema, when declared.
	Range []float64

	// Format is the display format string from the schema.
	Format string

	// VisibleSeries and VisibleForm mirror the schema's display flags.
	VisibleSeries bool
	VisibleForm   bool
}

// Latest returns the most recent value. ok is false when no history exists.
func (a *AttributeState) Latest() (float64, bool) {
	if len(a.Values) == 0 {
		return 0, false
	}
	return a.Values[len(a.Values)-1], true
}

// Display renders the latest value with the attribute's format string,
// or "N/A" when no history exists.
func (a *AttributeState) Display() string {
	v, ok := a.Latest()
	if !ok {
		return "N/A"
	}
	return schema.FormatValue(a.Format, v)
}

// DeviceState is the full per-device telemetry state.
type DeviceState struct {
	// Key is the stable device identity "{busName}_{addrHex}".
	Key string

	// BusName is the bus the device lives on.
	BusName string

	// Address is the canonical device address (lowercase hex, no prefix).
	Address string

	// TypeKey is the device-type name or index string used to fetch the
	// schema.
	TypeKey string

	// TypeInfo is the resolved schema; nil until the fetch completes.
	TypeInfo *schema.DeviceTypeInfo

	// Timeline is the shared sample timeline in microseconds.
	Timeline []int64

	// Attributes maps attribute name to its history.
	Attributes map[string]*AttributeState

	// Online is the lifecycle state from the last record.
	Online OnlineState

	// IsNew is set until the new-device callback has fired.
	IsNew bool

	// StateChanged is set when the lifecycle state changed this frame.
	StateChanged bool

	// LastUpdateMs is the wall-clock time of the last accepted record,
	// in milliseconds. The liveness sweep uses it.
	LastUpdateMs int64
}

// newDeviceState creates an empty device state.
func newDeviceState(key, busName, address string) *DeviceState {
	return &DeviceState{
		Key:        key,
		BusName:    busName,
		Address:    address,
		Attributes: make(map[string]*AttributeState),
		IsNew:      true,
	}
}

// Attribute returns the named attribute state, creating it from the schema
// on first sight. created reports whether this call created it.
func (d *DeviceState) Attribute(attr *schema.AttributeSchema) (*AttributeState, bool) {
	if existing, ok := d.Attributes[attr.Name]; ok {
		return existing, false
	}

	a := &AttributeState{
		Name:          attr.Name,
		NewAttribute:  true,
		Units:         attr.Units,
		Range:         attr.Range,
		Format:        attr.Format,
		VisibleSeries: attr.VisibleSeries == nil || *attr.VisibleSeries,
		VisibleForm:   attr.VisibleForm == nil || *attr.VisibleForm,
	}
	d.Attributes[attr.Name] = a
	return a, true
}

// AppendTimeline appends one sample instant, trimming the timeline and all
// attribute histories in lock-step to maxDatapoints.
func (d *DeviceState) AppendTimeline(timestampUs int64, maxDatapoints int) {
	d.Timeline = append(d.Timeline, timestampUs)
	if maxDatapoints > 0 && len(d.Timeline) > maxDatapoints {
		excess := len(d.Timeline) - maxDatapoints
		d.Timeline = d.Timeline[excess:]
		for _, a := range d.Attributes {
			if len(a.Values) > maxDatapoints {
				a.Values = a.Values[len(a.Values)-maxDatapoints:]
			}
		}
	}
}

// AppendValue appends one decoded value to an attribute history, trimming
// to maxDatapoints oldest-first, and marks the new-data flag.
func (d *DeviceState) AppendValue(a *AttributeState, v float64, maxDatapoints int) {
	a.Values = append(a.Values, v)
	if maxDatapoints > 0 && len(a.Values) > maxDatapoints {
		a.Values = a.Values[len(a.Values)-maxDatapoints:]
	}
	a.NewData = true
}
