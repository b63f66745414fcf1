package typecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robdobsn/raftgo/pkg/schema"
)

// Defaults.
const (
	// DefaultMinRetryInterval is the minimum time between fetch attempts
	// for the same unresolved type key.
	DefaultMinRetryInterval = 10 * time.Second

	// DefaultFetchTimeout bounds one schema-fetch round trip.
	DefaultFetchTimeout = 15 * time.Second
)

// Cache errors.
var (
	// ErrUnavailable indicates the schema could not be fetched; retry is
	// rate-limited.
	ErrUnavailable = errors.New("device type unavailable")
)

// Requester is the opaque RPC boundary to the firmware. Implementations
// (BLE GATT request channel, WebSocket RPC) are supplied by the transport
// layer. The path is relative, e.g. "typeinfo?bus=bus0&type=12".
type Requester interface {
	Request(ctx context.Context, path string) ([]byte, error)
}

// typeInfoResponse is the typeinfo RPC response envelope.
type typeInfoResponse struct {
	Result  string          `json:"rslt"`
	DevInfo json.RawMessage `json:"devinfo"`
}

// pending is an in-flight fetch with its FIFO waiter queue.
type pending struct {
	waiters []chan *schema.DeviceTypeInfo
}

// Cache is the device-type schema cache.
type Cache struct {
	mu sync.Mutex

	requester    Requester
	minRetry     time.Duration
	fetchTimeout time.Duration
	logger       zerolog.Logger
	now          func() time.Time

	// Cached schemas by type key; immutable once set.
	cached map[string]*schema.DeviceTypeInfo

	// In-flight fetches by type key.
	inflight map[string]*pending

	// Last fetch attempt time by type key, for rate limiting.
	lastAttempt map[string]time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithMinRetryInterval sets the per-key rate limit between fetch attempts.
func WithMinRetryInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.minRetry = d
		}
	}
}

// WithFetchTimeout bounds one schema-fetch round trip.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a schema cache backed by the given requester.
func New(requester Requester, opts ...Option) *Cache {
	c := &Cache{
		requester:    requester,
		minRetry:     DefaultMinRetryInterval,
		fetchTimeout: DefaultFetchTimeout,
		logger:       zerolog.Nop(),
		now:          time.Now,
		cached:       make(map[string]*schema.DeviceTypeInfo),
		inflight:     make(map[string]*pending),
		lastAttempt:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cached returns the cached schema for a type key, if any.
func (c *Cache) Cached(typeKey string) (*schema.DeviceTypeInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.cached[typeKey]
	return info, ok
}

// Put inserts a schema directly, bypassing the network. Used for schemas
// carried inline by the transport and for tests.
func (c *Cache) Put(typeKey string, info *schema.DeviceTypeInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached[typeKey] = info
}

// Lookup is the non-blocking resolve used on the frame-processing path.
// It returns the cached schema when available. Otherwise it starts a
// background fetch (subject to the per-key rate limit) and reports the
// schema as not yet available; the record's attribute processing is
// skipped until a later frame finds the schema cached.
func (c *Cache) Lookup(busName, typeKey string) (*schema.DeviceTypeInfo, bool) {
	c.mu.Lock()

	if info, ok := c.cached[typeKey]; ok {
		c.mu.Unlock()
		return info, true
	}
	if _, ok := c.inflight[typeKey]; ok {
		c.mu.Unlock()
		return nil, false
	}
	if !c.retryAllowedLocked(typeKey) {
		c.mu.Unlock()
		return nil, false
	}

	c.startFetchLocked(busName, typeKey)
	c.mu.Unlock()
	return nil, false
}

// Resolve returns the schema for a type key, blocking until any shared
// in-flight fetch settles. All concurrent callers for the same key observe
// the identical result. Returns ErrUnavailable on fetch failure or when
// the rate limiter suppresses a retry.
func (c *Cache) Resolve(ctx context.Context, busName, typeKey string) (*schema.DeviceTypeInfo, error) {
	c.mu.Lock()

	if info, ok := c.cached[typeKey]; ok {
		c.mu.Unlock()
		return info, nil
	}

	if p, ok := c.inflight[typeKey]; ok {
		ch := make(chan *schema.DeviceTypeInfo, 1)
		p.waiters = append(p.waiters, ch)
		c.mu.Unlock()
		return c.await(ctx, ch)
	}

	if !c.retryAllowedLocked(typeKey) {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: retry rate-limited for %q", ErrUnavailable, typeKey)
	}

	p := c.startFetchLocked(busName, typeKey)
	ch := make(chan *schema.DeviceTypeInfo, 1)
	p.waiters = append(p.waiters, ch)
	c.mu.Unlock()
	return c.await(ctx, ch)
}

// await blocks on a waiter channel.
func (c *Cache) await(ctx context.Context, ch chan *schema.DeviceTypeInfo) (*schema.DeviceTypeInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case info := <-ch:
		if info == nil {
			return nil, ErrUnavailable
		}
		return info, nil
	}
}

// retryAllowedLocked checks the per-key rate limiter. Callers hold c.mu.
func (c *Cache) retryAllowedLocked(typeKey string) bool {
	last, ok := c.lastAttempt[typeKey]
	return !ok || c.now().Sub(last) >= c.minRetry
}

// startFetchLocked registers an in-flight fetch and launches it.
// Callers hold c.mu.
func (c *Cache) startFetchLocked(busName, typeKey string) *pending {
	p := &pending{}
	c.inflight[typeKey] = p
	c.lastAttempt[typeKey] = c.now()

	go c.fetch(busName, typeKey)
	return p
}

// fetch performs one schema-fetch round trip and settles all waiters.
func (c *Cache) fetch(busName, typeKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	info, err := c.fetchTypeInfo(ctx, busName, typeKey)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("bus", busName).
			Str("type", typeKey).
			Msg("device type fetch failed")
	}

	c.mu.Lock()
	if info != nil {
		c.cached[typeKey] = info
	}
	p := c.inflight[typeKey]
	delete(c.inflight, typeKey)
	c.mu.Unlock()

	if p == nil {
		return
	}
	for _, ch := range p.waiters {
		ch <- info
	}
}

// fetchTypeInfo issues the typeinfo RPC and parses the schema.
func (c *Cache) fetchTypeInfo(ctx context.Context, busName, typeKey string) (*schema.DeviceTypeInfo, error) {
	path := fmt.Sprintf("typeinfo?bus=%s&type=%s",
		url.QueryEscape(busName), url.QueryEscape(typeKey))

	payload, err := c.requester.Request(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("typeinfo request: %w", err)
	}

	var resp typeInfoResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("typeinfo response parse: %w", err)
	}
	if resp.Result != "ok" {
		return nil, fmt.Errorf("%w: rslt=%q", ErrUnavailable, resp.Result)
	}
	if len(resp.DevInfo) == 0 {
		return nil, fmt.Errorf("%w: empty devinfo", ErrUnavailable)
	}

	info, err := schema.ParseDeviceTypeInfo(resp.DevInfo)
	if err != nil {
		return nil, err
	}
	return info, nil
}
