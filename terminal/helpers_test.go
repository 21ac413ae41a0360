package terminal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-terminal/logger"
	"github.com/stretchr/testify/require"
)

// newTestCore creates a Core with a permissive mock logger and registers Close as cleanup.
func newTestCore(t *testing.T, hooks Hooks, opts ...Option) *Core {
	t.Helper()

	defaults := []Option{
		WithLogger(logger.NewMockLogger().AllowAll()),
		WithCloseTimeout(time.Second),
	}

	cfg, err := NewConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	c, err := NewCore(cfg, hooks)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

// syncCore waits until the dispatcher handled everything queued so far.
func syncCore(t *testing.T, c *Core) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Sync(ctx))
}

// recorder collects callback invocations.
type recorder struct {
	mu      sync.Mutex
	data    []byte
	calls   int
	errs    []Error
	consume bool
}

func newRecorder(consume bool) *recorder {
	return &recorder{consume: consume}
}

func (r *recorder) onRead(data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.consume {
		r.data = append(r.data, data...)
	}

	return r.consume
}

func (r *recorder) onError(e Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, e)
}

func (r *recorder) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]byte(nil), r.data...)
}

func (r *recorder) errors() []Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Error(nil), r.errs...)
}

func (r *recorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}
