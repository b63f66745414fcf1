package engine

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/robdobsn/raftgo/pkg/decode"
	"github.com/robdobsn/raftgo/pkg/state"
)

// Reserved JSON device-entry keys.
const (
	// keyTypeName identifies the schema by type name.
	keyTypeName = "_t"

	// keyTypeIndex identifies the schema by type-table index.
	keyTypeIndex = "_i"

	// keyOnline carries the lifecycle state: 1 = online,
	// 2 = pending deletion, anything else = offline.
	keyOnline = "_o"

	// keyBusStatus is the per-bus status marker inside a bus entry.
	keyBusStatus = "_s"
)

// onlinePendingDeletion is the "_o" value signalling imminent removal.
const onlinePendingDeletion = 2

// deviceMeta is the reserved metadata resolved once per device entry.
type deviceMeta struct {
	// typeKey is the schema identity from "_t" (name) or "_i" (index),
	// empty when neither is present.
	typeKey string

	// online is the lifecycle state from "_o"; nil when absent.
	online *state.OnlineState

	// pendingDeletion is set when "_o" is 2.
	pendingDeletion bool

	// markers collects the remaining "_"-prefixed side-channel keys.
	markers map[string]any
}

// parseJSON parses a JSON telemetry payload: bus name → device address →
// attribute-group hex strings, plus reserved "_" metadata keys.
func (e *Engine) parseJSON(payload []byte) {
	var buses map[string]json.RawMessage
	if err := json.Unmarshal(payload, &buses); err != nil {
		e.logger.Warn().Err(err).Msg("json frame dropped: not an object")
		e.captureError("json frame not an object", "devjson")
		return
	}

	for busName, busRaw := range buses {
		if strings.HasPrefix(busName, "_") {
			continue
		}

		var devices map[string]json.RawMessage
		if err := json.Unmarshal(busRaw, &devices); err != nil {
			e.logger.Debug().Str("bus", busName).Msg("bus entry skipped: not an object")
			continue
		}

		for addrKey, devRaw := range devices {
			if strings.HasPrefix(addrKey, "_") {
				if addrKey == keyBusStatus {
					e.setBusStatus(busName, devRaw)
				}
				continue
			}
			e.parseJSONDevice(busName, addrKey, devRaw)
		}
	}
}

// setBusStatus records the "_s" bus-status marker.
func (e *Engine) setBusStatus(busName string, raw json.RawMessage) {
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		// Numeric or structured statuses are kept as raw text.
		status = string(raw)
	}
	e.mu.Lock()
	e.busStatus[busName] = status
	e.mu.Unlock()
}

// parseJSONDevice processes one device entry.
func (e *Engine) parseJSONDevice(busName, addrKey string, devRaw json.RawMessage) {
	var entry map[string]json.RawMessage
	if err := json.Unmarshal(devRaw, &entry); err != nil {
		e.logger.Debug().Str("bus", busName).Str("addr", addrKey).
			Msg("device entry skipped: not an object")
		return
	}

	meta := parseDeviceMeta(entry)
	key := busName + "_" + addrKey

	if meta.pendingDeletion {
		e.logger.Debug().Str("device", key).Msg("device removed: pending deletion")
		e.removeDevice(key, state.OnlineStatePendingDeletion, "pending-deletion")
		return
	}

	dev, _ := e.store.Ensure(key, busName, addrKey)
	dev.LastUpdateMs = e.nowMs()

	if meta.online != nil && dev.Online != *meta.online {
		dev.Online = *meta.online
		dev.StateChanged = true
	}

	if !e.resolveType(dev, busName, meta.typeKey) {
		return
	}

	totalSamples := 0
	for groupName, groupRaw := range entry {
		if strings.HasPrefix(groupName, "_") {
			continue
		}

		var hexStr string
		if err := json.Unmarshal(groupRaw, &hexStr); err != nil {
			e.logger.Debug().Str("device", key).Str("group", groupName).
				Msg("attribute group skipped: not a hex string")
			continue
		}
		groupBytes, err := hex.DecodeString(hexStr)
		if err != nil {
			e.logger.Warn().Err(err).Str("device", key).Str("group", groupName).
				Msg("attribute group skipped: invalid hex")
			e.captureError("invalid hex in attribute group", key)
			continue
		}

		_, samples := decode.GroupLoop(dev, groupBytes, 0, e.nowUs(), e.cfg.MaxDatapoints)
		totalSamples += samples
	}

	e.recordSamples(dev, totalSamples, meta.markers)
}

// parseDeviceMeta resolves the reserved "_" keys of a device entry.
func parseDeviceMeta(entry map[string]json.RawMessage) deviceMeta {
	meta := deviceMeta{}

	for k, raw := range entry {
		switch {
		case k == keyTypeName:
			var name string
			if err := json.Unmarshal(raw, &name); err == nil {
				meta.typeKey = name
			}
		case k == keyTypeIndex:
			var index int
			if err := json.Unmarshal(raw, &index); err == nil && meta.typeKey == "" {
				meta.typeKey = strconv.Itoa(index)
			}
		case k == keyOnline:
			var code int
			if err := json.Unmarshal(raw, &code); err != nil {
				break
			}
			online := state.OnlineStateOffline
			switch code {
			case 1:
				online = state.OnlineStateOnline
			case onlinePendingDeletion:
				meta.pendingDeletion = true
				online = state.OnlineStatePendingDeletion
			}
			meta.online = &online
		case strings.HasPrefix(k, "_"):
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				v = string(raw)
			}
			if meta.markers == nil {
				meta.markers = make(map[string]any)
			}
			meta.markers[k] = v
		}
	}
	return meta
}
