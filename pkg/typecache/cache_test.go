package typecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdobsn/raftgo/pkg/schema"
)

func mustParseInfo(t *testing.T) *schema.DeviceTypeInfo {
	t.Helper()
	info, err := schema.ParseDeviceTypeInfo([]byte(`{"name": "servo"}`))
	require.NoError(t, err)
	return info
}

const servoTypeInfo = `{
	"rslt": "ok",
	"devinfo": {
		"name": "servo",
		"resp": {"b": 2, "a": [{"n": "pos", "t": ">H", "at": 0}]}
	}
}`

// fakeRequester scripts typeinfo responses and counts requests.
type fakeRequester struct {
	mu       sync.Mutex
	calls    int32
	response []byte
	err      error
	release  chan struct{} // when set, requests block until closed
}

func (f *fakeRequester) Request(ctx context.Context, path string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response, f.err
}

func (f *fakeRequester) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func TestResolveFetchesAndCaches(t *testing.T) {
	req := &fakeRequester{response: []byte(servoTypeInfo)}
	c := New(req)

	info, err := c.Resolve(context.Background(), "bus0", "12")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "servo", info.Name)
	assert.Equal(t, 1, req.callCount())

	// Second resolve comes from the cache.
	again, err := c.Resolve(context.Background(), "bus0", "12")
	require.NoError(t, err)
	assert.Same(t, info, again)
	assert.Equal(t, 1, req.callCount())
}

func TestResolveCoalescesConcurrentCallers(t *testing.T) {
	req := &fakeRequester{
		response: []byte(servoTypeInfo),
		release:  make(chan struct{}),
	}
	c := New(req)

	const callers = 5
	results := make(chan error, callers)
	infos := make(chan string, callers)

	for i := 0; i < callers; i++ {
		go func() {
			info, err := c.Resolve(context.Background(), "bus0", "12")
			results <- err
			if info != nil {
				infos <- info.Name
			}
		}()
	}

	// Give all callers time to join the in-flight fetch, then let it finish.
	time.Sleep(50 * time.Millisecond)
	close(req.release)

	for i := 0; i < callers; i++ {
		require.NoError(t, <-results)
		assert.Equal(t, "servo", <-infos)
	}
	assert.Equal(t, 1, req.callCount(), "concurrent resolves must share one fetch")
}

func TestResolveFailureAndRateLimit(t *testing.T) {
	clock := time.Unix(0, 0)
	req := &fakeRequester{err: errors.New("link down")}
	c := New(req,
		WithMinRetryInterval(10*time.Second),
		WithClock(func() time.Time { return clock }),
	)

	_, err := c.Resolve(context.Background(), "bus0", "12")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, req.callCount())

	// Inside the retry interval the fetch is suppressed.
	_, err = c.Resolve(context.Background(), "bus0", "12")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, req.callCount())

	// After the interval the fetch runs again and can succeed.
	clock = clock.Add(11 * time.Second)
	req.mu.Lock()
	req.err = nil
	req.response = []byte(servoTypeInfo)
	req.mu.Unlock()

	info, err := c.Resolve(context.Background(), "bus0", "12")
	require.NoError(t, err)
	assert.Equal(t, "servo", info.Name)
	assert.Equal(t, 2, req.callCount())
}

func TestResolveBadResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"error result", `{"rslt": "fail"}`},
		{"missing devinfo", `{"rslt": "ok"}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeRequester{response: []byte(tt.response)})
			_, err := c.Resolve(context.Background(), "bus0", "12")
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestLookupNonBlocking(t *testing.T) {
	req := &fakeRequester{
		response: []byte(servoTypeInfo),
		release:  make(chan struct{}),
	}
	c := New(req)

	// First lookup misses and kicks off the background fetch.
	info, ok := c.Lookup("bus0", "12")
	assert.False(t, ok)
	assert.Nil(t, info)

	// While the fetch is in flight, lookups keep missing without piling
	// on extra requests.
	_, ok = c.Lookup("bus0", "12")
	assert.False(t, ok)

	close(req.release)

	require.Eventually(t, func() bool {
		_, ok := c.Lookup("bus0", "12")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, req.callCount())
}

func TestPutBypassesNetwork(t *testing.T) {
	req := &fakeRequester{}
	c := New(req)

	c.Put("12", mustParseInfo(t))
	info, ok := c.Cached("12")
	require.True(t, ok)
	assert.Equal(t, "servo", info.Name)

	_, err := c.Resolve(context.Background(), "bus0", "12")
	require.NoError(t, err)
	assert.Equal(t, 0, req.callCount())
}

func TestResolveContextCancelled(t *testing.T) {
	req := &fakeRequester{
		response: []byte(servoTypeInfo),
		release:  make(chan struct{}),
	}
	defer close(req.release)
	c := New(req)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Resolve(ctx, "bus0", "12")
	assert.ErrorIs(t, err, context.Canceled)
}
