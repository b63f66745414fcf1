package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Device type errors.
var (
	// ErrNoPollResponse indicates a schema without a poll response block.
	ErrNoPollResponse = errors.New("device type has no poll response descriptor")

	// ErrActionNotFound indicates an unknown action name.
	ErrActionNotFound = errors.New("action not found")
)

// PollResponse describes the layout of one poll response block.
type PollResponse struct {
	// BlockSize is the per-sample byte size of the block.
	BlockSize int `json:"b"`

	// TimestampBytes is the number of timestamp-offset bytes the firmware
	// reserves at the start of each sample, before attribute data.
	TimestampBytes int `json:"ts,omitempty"`

	// Attrs is the ordered attribute extraction list.
	Attrs []AttributeSchema `json:"a"`
}

// SampleSize returns the total cursor advance per sample.
func (p *PollResponse) SampleSize() int {
	return p.TimestampBytes + p.BlockSize
}

// Action describes one writable attribute or command on a device type.
type Action struct {
	// Name is the action name.
	Name string `json:"n"`

	// Type is the struct-pack type code used to pack each value.
	Type string `json:"t"`

	// Multiplier scales the value before packing (inverse of the read
	// path's divisor); zero means no scaling.
	Multiplier float64 `json:"m,omitempty"`

	// Subtrahend is subtracted before scaling (inverse of the read path's
	// additive offset).
	Subtrahend float64 `json:"s,omitempty"`

	// Prefix is a literal hex string prepended to the packed bytes.
	Prefix string `json:"pre,omitempty"`

	// Postfix is a literal hex string appended to the packed bytes.
	Postfix string `json:"post,omitempty"`
}

// CustomFunction is an opaque descriptor of a firmware-side custom poll
// function. It is carried through for UI layers and not interpreted here.
type CustomFunction struct {
	Name string `json:"n"`
	Code string `json:"c,omitempty"`
}

// DeviceTypeInfo is the immutable schema for one firmware device type.
type DeviceTypeInfo struct {
	// Name is the device-type name, e.g. "VL53L0X".
	Name string `json:"name"`

	// Desc is the human-readable description.
	Desc string `json:"desc,omitempty"`

	// Resp describes the poll response block, when the type is pollable.
	Resp *PollResponse `json:"resp,omitempty"`

	// Actions lists the write actions, when any.
	Actions []Action `json:"actions,omitempty"`

	// Custom is the optional custom-function descriptor.
	Custom *CustomFunction `json:"cust,omitempty"`
}

// ParseDeviceTypeInfo parses the JSON schema returned by the typeinfo RPC.
func ParseDeviceTypeInfo(data []byte) (*DeviceTypeInfo, error) {
	var info DeviceTypeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse device type info: %w", err)
	}
	return &info, nil
}

// FindAction returns the named action.
func (d *DeviceTypeInfo) FindAction(name string) (*Action, error) {
	for i := range d.Actions {
		if d.Actions[i].Name == name {
			return &d.Actions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrActionNotFound, name)
}
