package engine

import (
	"encoding/binary"
	"strconv"

	"github.com/robdobsn/raftgo/pkg/decode"
	"github.com/robdobsn/raftgo/pkg/state"
)

// devbin record layout constants.
const (
	// recordLenSize is the size of the record length field.
	recordLenSize = 2

	// recordHeaderSize is the fixed body header: status/bus byte,
	// 4-byte address, 2-byte device-type index.
	recordHeaderSize = 7

	// Status byte bits.
	statusOnlineBit     = 0x80
	statusPendingDelBit = 0x40
	statusBusMask       = 0x0F
)

// parseBinary parses a devbin payload: back-to-back fixed-header
// variable-body records. A record claiming more bytes than remain aborts
// the whole frame; records already processed are kept.
func (e *Engine) parseBinary(payload []byte) {
	cursor := 0
	for cursor+recordLenSize <= len(payload) {
		recordLen := int(binary.BigEndian.Uint16(payload[cursor : cursor+recordLenSize]))
		if recordLen < recordHeaderSize || cursor+recordLenSize+recordLen > len(payload) {
			e.logger.Warn().
				Int("recordLen", recordLen).
				Int("remaining", len(payload)-cursor-recordLenSize).
				Msg("devbin frame aborted: record length overruns buffer")
			e.captureError("record length overruns buffer", "devbin")
			return
		}

		body := payload[cursor+recordLenSize : cursor+recordLenSize+recordLen]
		e.parseBinaryRecord(body)
		cursor += recordLenSize + recordLen
	}

	if cursor != len(payload) {
		e.logger.Debug().
			Int("trailing", len(payload)-cursor).
			Msg("devbin frame has trailing bytes")
	}
}

// parseBinaryRecord processes one devbin record body.
func (e *Engine) parseBinaryRecord(body []byte) {
	status := body[0]
	busName := strconv.Itoa(int(status & statusBusMask))
	addr := binary.BigEndian.Uint32(body[1:5])
	addrHex := strconv.FormatUint(uint64(addr), 16)
	typeKey := strconv.Itoa(int(binary.BigEndian.Uint16(body[5:7])))
	key := busName + "_" + addrHex

	if status&statusPendingDelBit != 0 {
		e.logger.Debug().Str("device", key).Msg("device removed: pending deletion")
		e.removeDevice(key, state.OnlineStatePendingDeletion, "pending-deletion")
		return
	}

	dev, _ := e.store.Ensure(key, busName, addrHex)
	dev.LastUpdateMs = e.nowMs()

	online := state.OnlineStateOffline
	if status&statusOnlineBit != 0 {
		online = state.OnlineStateOnline
	}
	if dev.Online != online {
		dev.Online = online
		dev.StateChanged = true
	}

	if !e.resolveType(dev, busName, typeKey) {
		// Schema not yet available: the record is consumed, attribute
		// processing resumes once the fetch settles.
		return
	}

	pollData := body[recordHeaderSize:]
	_, samples := decode.GroupLoop(dev, pollData, 0, e.nowUs(), e.cfg.MaxDatapoints)
	e.recordSamples(dev, samples, nil)
}
