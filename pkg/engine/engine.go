package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robdobsn/raftgo/pkg/config"
	"github.com/robdobsn/raftgo/pkg/decode"
	"github.com/robdobsn/raftgo/pkg/frame"
	"github.com/robdobsn/raftgo/pkg/protolog"
	"github.com/robdobsn/raftgo/pkg/schema"
	"github.com/robdobsn/raftgo/pkg/state"
	"github.com/robdobsn/raftgo/pkg/typecache"
)

// Topic names the engine handles.
const (
	// TopicDevBin is the binary telemetry topic.
	TopicDevBin = "devbin"

	// TopicDevJSON is the JSON telemetry topic.
	TopicDevJSON = "devjson"
)

// Engine errors.
var (
	// ErrFrameTooLarge indicates a frame above the configured bound.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrNoDeviceType indicates a device without a resolved schema.
	ErrNoDeviceType = errors.New("device type not resolved")

	// ErrCommandFailed indicates a cmdraw RPC that did not answer "ok".
	ErrCommandFailed = errors.New("command rejected by firmware")
)

// cmdResponse is the cmdraw RPC response envelope.
type cmdResponse struct {
	Result string `json:"rslt"`
}

// Engine is the device telemetry protocol engine.
type Engine struct {
	mu sync.RWMutex

	id        string
	cfg       config.Config
	logger    zerolog.Logger
	capture   protolog.Logger
	requester typecache.Requester
	topics    frame.TopicLookup
	now       func() time.Time

	store *state.Store
	stats *state.Stats
	types *typecache.Cache

	// Capture file opened from the config's CaptureFile setting; nil when
	// the sink was supplied via WithCapture or capture is disabled.
	ownedCapture *protolog.FileLogger

	callbacks *callbackRegistry

	// Per-bus status from JSON "_s" markers.
	busStatus map[string]string

	// Events queued during the current frame, dispatched after the sweep.
	pendingDecoded []DecodedData
	pendingRemoved []removedDevice
}

// removedDevice is a queued device-removed dispatch.
type removedDevice struct {
	key string
	dev *state.DeviceState
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		cfg.Normalize()
		e.cfg = cfg
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithCapture sets the protocol capture sink.
func WithCapture(capture protolog.Logger) Option {
	return func(e *Engine) { e.capture = capture }
}

// WithTopicLookup sets the topic-index-to-name lookup supplied by the
// transport layer.
func WithTopicLookup(lookup frame.TopicLookup) Option {
	return func(e *Engine) { e.topics = lookup }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a telemetry engine over the given RPC requester.
func New(requester typecache.Requester, opts ...Option) *Engine {
	e := &Engine{
		id:        uuid.NewString(),
		cfg:       config.DefaultConfig(),
		logger:    zerolog.Nop(),
		capture:   protolog.NoopLogger{},
		requester: requester,
		now:       time.Now,
		store:     state.NewStore(),
		callbacks: newCallbackRegistry(),
		busStatus: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.stats = state.NewStats(e.cfg.StatsWindowMs)
	e.types = typecache.New(requester,
		typecache.WithMinRetryInterval(time.Duration(e.cfg.MinTypeFetchRetryMs)*time.Millisecond),
		typecache.WithLogger(e.logger),
		typecache.WithClock(func() time.Time { return e.now() }),
	)

	// An explicit WithCapture sink wins over the config's capture path.
	if _, noop := e.capture.(protolog.NoopLogger); noop && e.cfg.CaptureFile != "" {
		capture, err := protolog.NewFileLogger(e.cfg.CaptureFile)
		if err != nil {
			e.logger.Warn().Err(err).Str("path", e.cfg.CaptureFile).
				Msg("failed to open capture file")
		} else {
			e.capture = capture
			e.ownedCapture = capture
		}
	}
	return e
}

// Close releases resources the engine owns, currently the capture file
// opened from the config's CaptureFile setting. Safe to call when no such
// file is open.
func (e *Engine) Close() error {
	if e.ownedCapture != nil {
		return e.ownedCapture.Close()
	}
	return nil
}

// ID returns the engine instance identifier.
func (e *Engine) ID() string { return e.id }

// TypeCache returns the device-type schema cache.
func (e *Engine) TypeCache() *typecache.Cache { return e.types }

// nowMs returns the wall clock in milliseconds.
func (e *Engine) nowMs() int64 { return e.now().UnixMilli() }

// nowUs returns the wall clock in microseconds.
func (e *Engine) nowUs() int64 { return e.now().UnixMicro() }

// HandleFrame processes one raw inbound frame, including its 2-byte
// transport prefix. It must not be called reentrantly; the transport
// delivers one frame at a time.
func (e *Engine) HandleFrame(data []byte) error {
	if e.cfg.MaxFrameBytes > 0 && len(data) > e.cfg.MaxFrameBytes {
		e.logger.Warn().Int("size", len(data)).Msg("frame dropped: too large")
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), e.cfg.MaxFrameBytes)
	}

	f, err := frame.Classify(data, e.topics)
	if err != nil {
		e.logger.Warn().Err(err).Msg("frame dropped: unclassifiable")
		return err
	}
	e.captureFrame(len(data), f)

	switch f.Kind {
	case frame.KindJSON:
		if f.TopicName == "" || f.TopicName == TopicDevJSON {
			e.parseJSON(f.Payload)
		} else {
			e.logger.Debug().Str("topic", f.TopicName).Msg("json frame ignored: not a telemetry topic")
		}
	case frame.KindBinary:
		if f.TopicName == "" || f.TopicName == TopicDevBin {
			e.parseBinary(f.Payload)
		} else {
			e.logger.Debug().Str("topic", f.TopicName).Msg("binary frame ignored: not a telemetry topic")
		}
	case frame.KindBinaryLegacy:
		e.parseBinary(f.Payload)
	case frame.KindBinaryUnknownVersion:
		e.logger.Warn().Msg("binary frame dropped: unrecognized envelope version")
		e.captureError("unrecognized envelope version", "frame")
	default:
		e.logger.Warn().Msg("frame dropped: unknown format")
		e.captureError("unknown frame format", "frame")
	}

	e.sweepStale()
	e.dispatch()
	return nil
}

// resolveType attaches a schema to the device if one is cached, kicking
// off a background fetch otherwise. Reports whether attribute processing
// may proceed.
func (e *Engine) resolveType(dev *state.DeviceState, busName, typeKey string) bool {
	if dev.TypeInfo != nil {
		return true
	}
	// Records may omit the type key after the first report; fall back to
	// the key recorded when the device was first seen.
	if typeKey == "" {
		typeKey = dev.TypeKey
	}
	if typeKey == "" {
		return false
	}
	dev.TypeKey = typeKey

	info, ok := e.types.Lookup(busName, typeKey)
	if !ok {
		return false
	}
	dev.TypeInfo = info
	return true
}

// removeDevice deletes a device and its stats atomically and queues the
// device-removed dispatch.
func (e *Engine) removeDevice(key string, online state.OnlineState, reason string) {
	dev := e.store.Remove(key)
	if e.stats != nil {
		e.stats.Remove(key)
	}
	if dev == nil {
		return
	}

	oldState := dev.Online
	dev.Online = online
	e.pendingRemoved = append(e.pendingRemoved, removedDevice{key: key, dev: dev})

	e.capture.Log(protolog.Event{
		Timestamp: e.now(),
		EngineID:  e.id,
		Layer:     protolog.LayerLifecycle,
		Category:  protolog.CategoryState,
		Lifecycle: &protolog.LifecycleEvent{
			DeviceKey: key,
			OldState:  oldState.String(),
			NewState:  online.String(),
			Reason:    reason,
		},
	})
}

// sweepStale removes devices unseen for longer than the staleness timeout.
// Runs once per inbound frame.
func (e *Engine) sweepStale() {
	for _, key := range e.store.Stale(e.nowMs(), e.cfg.StalenessTimeoutMs) {
		e.logger.Debug().Str("device", key).Msg("device removed: stale")
		e.removeDevice(key, state.OnlineStateOffline, "stale")
	}
}

// recordSamples updates stats and queues the decoded-data event for one
// attribute-group batch.
func (e *Engine) recordSamples(dev *state.DeviceState, samples int, markers map[string]any) {
	if samples <= 0 {
		return
	}
	e.stats.Update(dev.Key, samples, e.nowMs())

	// Newly appended entries are the batch tail; trimming keeps the
	// timeline and histories in lock-step so the tail is consistent.
	n := samples
	if n > len(dev.Timeline) {
		n = len(dev.Timeline)
	}
	ev := DecodedData{
		DeviceKey:  dev.Key,
		Timestamps: append([]int64(nil), dev.Timeline[len(dev.Timeline)-n:]...),
		Values:     make(map[string][]float64),
		Markers:    markers,
	}
	for name, attr := range dev.Attributes {
		if len(attr.Values) == 0 {
			continue
		}
		m := n
		if m > len(attr.Values) {
			m = len(attr.Values)
		}
		ev.Values[name] = append([]float64(nil), attr.Values[len(attr.Values)-m:]...)
	}
	e.pendingDecoded = append(e.pendingDecoded, ev)

	attrCount := 0
	if dev.TypeInfo != nil && dev.TypeInfo.Resp != nil {
		attrCount = len(dev.TypeInfo.Resp.Attrs)
	}
	e.capture.Log(protolog.Event{
		Timestamp: e.now(),
		EngineID:  e.id,
		Layer:     protolog.LayerRecord,
		Category:  protolog.CategoryData,
		Record: &protolog.RecordEvent{
			DeviceKey: dev.Key,
			Samples:   samples,
			Attrs:     attrCount,
		},
	})
}

// captureFrame logs a classified frame to the capture sink.
func (e *Engine) captureFrame(size int, f frame.Frame) {
	data := f.Payload
	truncated := false
	if len(data) > maxCaptureData {
		data = data[:maxCaptureData]
		truncated = true
	}
	e.capture.Log(protolog.Event{
		Timestamp: e.now(),
		EngineID:  e.id,
		Layer:     protolog.LayerFrame,
		Category:  protolog.CategoryData,
		Frame: &protolog.FrameEvent{
			Size:      size,
			Kind:      f.Kind.String(),
			Topic:     f.TopicName,
			Version:   f.Version,
			Data:      data,
			Truncated: truncated,
		},
	})
}

// maxCaptureData bounds the payload bytes included in capture events.
const maxCaptureData = 4096

// captureError logs a parse failure to the capture sink.
func (e *Engine) captureError(message, context string) {
	e.capture.Log(protolog.Event{
		Timestamp: e.now(),
		EngineID:  e.id,
		Layer:     protolog.LayerFrame,
		Category:  protolog.CategoryError,
		Error: &protolog.ErrorEventData{
			Message: message,
			Context: context,
		},
	})
}

// DeviceKeys returns the current device keys, sorted.
func (e *Engine) DeviceKeys() []string {
	keys := e.store.Keys()
	sort.Strings(keys)
	return keys
}

// DeviceStateMap returns a snapshot of the device-state map.
func (e *Engine) DeviceStateMap() map[string]*state.DeviceState {
	devices := e.store.Devices()
	snapshot := make(map[string]*state.DeviceState, len(devices))
	for _, d := range devices {
		snapshot[d.Key] = d
	}
	return snapshot
}

// DeviceState returns one device's state.
func (e *Engine) DeviceState(key string) (*state.DeviceState, error) {
	return e.store.Get(key)
}

// Stats returns one device's sample statistics.
func (e *Engine) Stats(key string) state.DeviceStats {
	return e.stats.Get(key, e.nowMs())
}

// ResetStats clears one device's sample statistics.
func (e *Engine) ResetStats(key string) {
	e.stats.Reset(key)
}

// TypeInfo returns a cached device-type schema.
func (e *Engine) TypeInfo(typeKey string) (*schema.DeviceTypeInfo, bool) {
	return e.types.Cached(typeKey)
}

// BusStatus returns the last "_s" status marker seen for a bus.
func (e *Engine) BusStatus(busName string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status, ok := e.busStatus[busName]
	return status, ok
}

// SendAction encodes a write action and issues the cmdraw RPC.
// The device must have a resolved schema declaring the action.
func (e *Engine) SendAction(ctx context.Context, deviceKey, actionName string, values ...float64) error {
	dev, err := e.store.Get(deviceKey)
	if err != nil {
		return err
	}
	if dev.TypeInfo == nil {
		return fmt.Errorf("%w: %s", ErrNoDeviceType, deviceKey)
	}

	action, err := dev.TypeInfo.FindAction(actionName)
	if err != nil {
		return err
	}

	packed, err := decode.EncodeAction(action, values)
	if err != nil {
		return err
	}
	hexWr := action.Prefix + hex.EncodeToString(packed) + action.Postfix

	path := fmt.Sprintf("cmdraw?bus=%s&addr=%s&hexWr=%s",
		url.QueryEscape(dev.BusName), url.QueryEscape(dev.Address), url.QueryEscape(hexWr))

	payload, err := e.requester.Request(ctx, path)
	if err != nil {
		e.logger.Warn().Err(err).Str("device", deviceKey).Str("action", actionName).
			Msg("write command failed")
		return fmt.Errorf("cmdraw request: %w", err)
	}

	var resp cmdResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("cmdraw response parse: %w", err)
	}
	if resp.Result != "ok" {
		return fmt.Errorf("%w: rslt=%q", ErrCommandFailed, resp.Result)
	}
	return nil
}
