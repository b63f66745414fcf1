package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdobsn/raftgo/pkg/config"
	"github.com/robdobsn/raftgo/pkg/protolog"
	"github.com/robdobsn/raftgo/pkg/schema"
	"github.com/robdobsn/raftgo/pkg/state"
)

// recordingCapture collects capture events in memory.
type recordingCapture struct {
	mu     sync.Mutex
	events []protolog.Event
}

func (c *recordingCapture) Log(event protolog.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *recordingCapture) all() []protolog.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protolog.Event(nil), c.events...)
}

// scriptedRequester answers typeinfo and cmdraw RPCs from a fixed script
// and records the paths it was asked for.
type scriptedRequester struct {
	mu        sync.Mutex
	typeInfo  string
	cmdResult string
	err       error
	paths     []string
}

func (r *scriptedRequester) Request(ctx context.Context, path string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	if r.err != nil {
		return nil, r.err
	}
	if len(path) >= 6 && path[:6] == "cmdraw" {
		return []byte(`{"rslt": "` + r.cmdResult + `"}`), nil
	}
	return []byte(`{"rslt": "ok", "devinfo": ` + r.typeInfo + `}`), nil
}

func (r *scriptedRequester) requestedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

const servoInfo = `{
	"name": "servo",
	"resp": {"b": 2, "a": [{"n": "x1", "t": "<H", "at": 0}]},
	"actions": [{"n": "setpos", "t": ">H", "pre": "a55a", "post": "ff"}]
}`

func servoSchema(t *testing.T) *schema.DeviceTypeInfo {
	t.Helper()
	info, err := schema.ParseDeviceTypeInfo([]byte(servoInfo))
	require.NoError(t, err)
	return info
}

// prefixed prepends the 2-byte transport prefix.
func prefixed(body ...byte) []byte {
	return append([]byte{0x00, 0x00}, body...)
}

func jsonFrame(body string) []byte {
	return prefixed([]byte(body)...)
}

// devbinRecord builds one length-prefixed record.
func devbinRecord(status byte, addr uint32, typeIndex uint16, pollData []byte) []byte {
	body := make([]byte, recordHeaderSize, recordHeaderSize+len(pollData))
	body[0] = status
	binary.BigEndian.PutUint32(body[1:5], addr)
	binary.BigEndian.PutUint16(body[5:7], typeIndex)
	body = append(body, pollData...)

	out := make([]byte, recordLenSize, recordLenSize+len(body))
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	return append(out, body...)
}

// devbinFrame wraps records in a v1 envelope with no topic, plus the
// transport prefix.
func devbinFrame(records ...[]byte) []byte {
	frame := prefixed(0xDB, 0xFF)
	for _, rec := range records {
		frame = append(frame, rec...)
	}
	return frame
}

func newTestEngine(t *testing.T, req *scriptedRequester, opts ...Option) *Engine {
	t.Helper()
	if req == nil {
		req = &scriptedRequester{typeInfo: servoInfo, cmdResult: "ok"}
	}
	return New(req, opts...)
}

func TestHandleFrameJSON(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("servo", servoSchema(t))

	err := e.HandleFrame(jsonFrame(`{"0":{"a1":{"_t":"servo","x1":"0100"}}}`))
	require.NoError(t, err)

	dev, err := e.DeviceState("0_a1")
	require.NoError(t, err)
	assert.Equal(t, "0", dev.BusName)
	assert.Equal(t, "a1", dev.Address)

	attr := dev.Attributes["x1"]
	require.NotNil(t, attr)
	require.Len(t, attr.Values, 1)
	// "0100" little-endian uint16 → 1
	assert.Equal(t, float64(1), attr.Values[0])
}

func TestHandleFrameDevBin(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("7", servoSchema(t))

	rec := devbinRecord(statusOnlineBit|0x01, 0x3C, 7, []byte{0x02, 0x00})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))

	// Bus 1, address 0x3c → key "1_3c".
	dev, err := e.DeviceState("1_3c")
	require.NoError(t, err)
	assert.Equal(t, state.OnlineStateOnline, dev.Online)
	assert.Equal(t, "7", dev.TypeKey)

	attr := dev.Attributes["x1"]
	require.NotNil(t, attr)
	require.Len(t, attr.Values, 1)
	assert.Equal(t, float64(2), attr.Values[0])
}

func TestHandleFrameDevBinStackedSamples(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("7", servoSchema(t))

	// Three stacked 2-byte samples in one record.
	rec := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0, 2, 0, 3, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))

	dev, err := e.DeviceState("0_10")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, dev.Attributes["x1"].Values)

	stats := e.Stats("0_10")
	assert.Equal(t, 3, stats.TotalSamples)
}

func TestHandleFrameDevBinOverrunAborts(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("7", servoSchema(t))

	good := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0})
	// Length field claims far more bytes than remain.
	bad := []byte{0x0F, 0xFF, 0x80}

	frame := devbinFrame(good, bad)
	require.NoError(t, e.HandleFrame(frame), "a malformed record must not surface an error")

	// The record before the overrun was processed.
	dev, err := e.DeviceState("0_10")
	require.NoError(t, err)
	assert.Len(t, dev.Attributes["x1"].Values, 1)
}

func TestHandleFramePendingDeletion(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("7", servoSchema(t))

	var removedMu sync.Mutex
	var removed []*state.DeviceState
	e.OnDeviceRemoved(func(key string, dev *state.DeviceState) {
		removedMu.Lock()
		removed = append(removed, dev)
		removedMu.Unlock()
	})

	rec := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))
	require.Equal(t, 1, len(e.DeviceStateMap()))

	del := devbinRecord(statusPendingDelBit, 0x10, 7, nil)
	require.NoError(t, e.HandleFrame(devbinFrame(del)))

	assert.Empty(t, e.DeviceStateMap())
	require.Len(t, removed, 1)
	assert.Equal(t, "0_10", removed[0].Key)
	assert.Equal(t, state.OnlineStatePendingDeletion, removed[0].Online)

	// Stats went with the device.
	assert.Equal(t, 0, e.Stats("0_10").TotalSamples)

	// Deleting an unknown device is a no-op, not a second callback.
	require.NoError(t, e.HandleFrame(devbinFrame(del)))
	assert.Len(t, removed, 1)
}

func TestHandleFrameUnresolvedTypeSkipsAttributes(t *testing.T) {
	req := &scriptedRequester{typeInfo: servoInfo, cmdResult: "ok"}
	e := newTestEngine(t, req)

	rec := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))

	// The device exists but its attributes wait for the schema fetch.
	dev, err := e.DeviceState("0_10")
	require.NoError(t, err)
	assert.Empty(t, dev.Attributes)

	require.Eventually(t, func() bool {
		_, ok := e.TypeInfo("7")
		return ok
	}, time.Second, 5*time.Millisecond)

	// The next frame decodes normally.
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))
	dev, err = e.DeviceState("0_10")
	require.NoError(t, err)
	assert.Len(t, dev.Attributes["x1"].Values, 1)
}

func TestHandleFrameTooLarge(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxFrameBytes = 8
	e := newTestEngine(t, nil, WithConfig(cfg))

	err := e.HandleFrame(jsonFrame(`{"0":{"a1":{"x1":"0100"}}}`))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestHandleFrameUnknownEnvelopeVersion(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.HandleFrame(prefixed(0xD0, 0x01, 0x02)))
	assert.Empty(t, e.DeviceStateMap())
}

func TestBusStatusMarker(t *testing.T) {
	e := newTestEngine(t, nil)

	require.NoError(t, e.HandleFrame(jsonFrame(`{"0":{"_s":"ok"}}`)))
	status, ok := e.BusStatus("0")
	require.True(t, ok)
	assert.Equal(t, "ok", status)

	_, ok = e.BusStatus("1")
	assert.False(t, ok)
}

func TestDecodedDataMarkers(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("servo", servoSchema(t))

	var events []DecodedData
	e.OnDecodedData(func(data DecodedData) {
		events = append(events, data)
	})

	frame := jsonFrame(`{"0":{"a1":{"_t":"servo","_buf":"replay","x1":"0100"}}}`)
	require.NoError(t, e.HandleFrame(frame))

	require.Len(t, events, 1)
	assert.Equal(t, "0_a1", events[0].DeviceKey)
	assert.Equal(t, []float64{1}, events[0].Values["x1"])
	assert.Len(t, events[0].Timestamps, 1)
	assert.Equal(t, "replay", events[0].Markers["_buf"])
}

func TestStaleSweep(t *testing.T) {
	clock := time.Unix(1000, 0)
	cfg := config.DefaultConfig()
	cfg.StalenessTimeoutMs = 5000
	e := newTestEngine(t, nil,
		WithConfig(cfg),
		WithClock(func() time.Time { return clock }),
	)
	e.TypeCache().Put("7", servoSchema(t))

	var removed []string
	e.OnDeviceRemoved(func(key string, dev *state.DeviceState) {
		removed = append(removed, key)
		assert.Equal(t, state.OnlineStateOffline, dev.Online)
	})

	rec := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))
	require.Equal(t, 1, len(e.DeviceStateMap()))

	// A later frame for another device triggers the sweep.
	clock = clock.Add(10 * time.Second)
	other := devbinRecord(statusOnlineBit, 0x20, 7, []byte{1, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(other)))

	assert.Equal(t, []string{"0_10"}, removed)
	_, err := e.DeviceState("0_10")
	assert.ErrorIs(t, err, state.ErrDeviceNotFound)
	_, err = e.DeviceState("0_20")
	assert.NoError(t, err)
}

func TestSendAction(t *testing.T) {
	req := &scriptedRequester{typeInfo: servoInfo, cmdResult: "ok"}
	e := newTestEngine(t, req)
	e.TypeCache().Put("servo", servoSchema(t))

	require.NoError(t, e.HandleFrame(jsonFrame(`{"0":{"a1":{"_t":"servo","x1":"0100"}}}`)))

	err := e.SendAction(context.Background(), "0_a1", "setpos", 0x0102)
	require.NoError(t, err)

	paths := req.requestedPaths()
	require.NotEmpty(t, paths)
	// Prefix and postfix literals wrap the packed big-endian value.
	assert.Equal(t, "cmdraw?bus=0&addr=a1&hexWr=a55a0102ff", paths[len(paths)-1])
}

func TestSendActionErrors(t *testing.T) {
	req := &scriptedRequester{typeInfo: servoInfo, cmdResult: "fail"}
	e := newTestEngine(t, req)
	e.TypeCache().Put("servo", servoSchema(t))

	err := e.SendAction(context.Background(), "0_a1", "setpos", 1)
	assert.ErrorIs(t, err, state.ErrDeviceNotFound)

	require.NoError(t, e.HandleFrame(jsonFrame(`{"0":{"a1":{"_t":"servo","x1":"0100"}}}`)))

	err = e.SendAction(context.Background(), "0_a1", "nope", 1)
	assert.Error(t, err)

	err = e.SendAction(context.Background(), "0_a1", "setpos", 1)
	assert.ErrorIs(t, err, ErrCommandFailed)

	req.mu.Lock()
	req.err = errors.New("link down")
	req.mu.Unlock()
	err = e.SendAction(context.Background(), "0_a1", "setpos", 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCommandFailed)
}

func TestCaptureFileFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.rcap")
	cfg := config.DefaultConfig()
	cfg.CaptureFile = path

	e := newTestEngine(t, nil, WithConfig(cfg))
	e.TypeCache().Put("7", servoSchema(t))

	rec := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))
	require.NoError(t, e.Close())

	events, err := protolog.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, protolog.LayerFrame, events[0].Layer)
}

func TestCaptureFileYieldsToExplicitSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.rcap")
	cfg := config.DefaultConfig()
	cfg.CaptureFile = path

	sink := &recordingCapture{}
	e := newTestEngine(t, nil, WithConfig(cfg), WithCapture(sink))

	rec := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))
	require.NoError(t, e.Close())

	assert.NotEmpty(t, sink.all())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "config capture path must stay unused")
}

func TestResolveTypeRemembersTypeKey(t *testing.T) {
	req := &scriptedRequester{err: errors.New("link down")}
	e := newTestEngine(t, req)

	require.NoError(t, e.HandleFrame(jsonFrame(`{"0":{"a1":{"_t":"servo","x1":"0100"}}}`)))
	dev, err := e.DeviceState("0_a1")
	require.NoError(t, err)
	assert.Empty(t, dev.Attributes)
	assert.Equal(t, "servo", dev.TypeKey)

	// The schema arrives after the first record; later records omit "_t".
	e.TypeCache().Put("servo", servoSchema(t))
	require.NoError(t, e.HandleFrame(jsonFrame(`{"0":{"a1":{"x1":"0200"}}}`)))

	dev, err = e.DeviceState("0_a1")
	require.NoError(t, err)
	require.NotNil(t, dev.Attributes["x1"])
	assert.Equal(t, []float64{2}, dev.Attributes["x1"].Values)
}

func TestDeviceKeysSorted(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("7", servoSchema(t))

	for _, addr := range []uint32{0x20, 0x10} {
		rec := devbinRecord(statusOnlineBit, addr, 7, []byte{1, 0})
		require.NoError(t, e.HandleFrame(devbinFrame(rec)))
	}
	assert.Equal(t, []string{"0_10", "0_20"}, e.DeviceKeys())
}

func TestStatsAndReset(t *testing.T) {
	e := newTestEngine(t, nil)
	e.TypeCache().Put("7", servoSchema(t))

	rec := devbinRecord(statusOnlineBit, 0x10, 7, []byte{1, 0, 2, 0})
	require.NoError(t, e.HandleFrame(devbinFrame(rec)))

	stats := e.Stats("0_10")
	assert.Equal(t, 2, stats.TotalSamples)
	assert.Equal(t, 2, stats.WindowSamples)

	e.ResetStats("0_10")
	assert.Equal(t, 0, e.Stats("0_10").TotalSamples)
}
