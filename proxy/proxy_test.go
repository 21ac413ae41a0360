package proxy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-terminal/logger"
	"github.com/arloliu/go-terminal/loopback"
	"github.com/arloliu/go-terminal/terminal"
)

func newInner(t *testing.T, opts ...loopback.Option) *loopback.Terminal {
	t.Helper()

	defaults := []loopback.Option{
		loopback.WithTerminalOptions(terminal.WithLogger(logger.NewMockLogger().AllowAll())),
	}

	inner, err := loopback.New(append(defaults, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inner.Close() })

	return inner
}

func newTestProxy(t *testing.T, inner terminal.Terminal, opts ...Option) *Terminal {
	t.Helper()

	defaults := []Option{
		WithTerminalOptions(
			terminal.WithLogger(logger.NewMockLogger().AllowAll()),
			terminal.WithCloseTimeout(time.Second),
		),
	}

	p, err := New(inner, append(defaults, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	return p
}

func syncAll(t *testing.T, terms ...interface{ Sync(context.Context) error }) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, term := range terms {
		require.NoError(t, term.Sync(ctx))
	}
}

type collector struct {
	mu   sync.Mutex
	data []byte
	errs []terminal.Error
}

func (c *collector) onRead(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = append(c.data, data...)

	return true
}

func (c *collector) onError(e terminal.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errs = append(c.errs, e)
}

func (c *collector) snapshot() (string, []terminal.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return string(c.data), append([]terminal.Error(nil), c.errs...)
}

func TestProxy_ForwardsReadAndWrite(t *testing.T) {
	inner := newInner(t)
	p := newTestProxy(t, inner)

	col := &collector{}
	p.SetReadCb(col.onRead)
	p.Start()
	assert.Equal(t, terminal.Active, inner.State())

	require.Equal(t, 4, inner.Inject([]byte("OK\r\n")))
	syncAll(t, inner, p)

	got, _ := col.snapshot()
	assert.Equal(t, "OK\r\n", got)

	n, err := p.Write([]byte("ATH\r"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "ATH\r", string(inner.Written()))
	assert.Equal(t, uint64(4), p.Metrics().TxBytes.Load())
}

func TestProxy_ReadWithoutCallback(t *testing.T) {
	inner := newInner(t)
	p := newTestProxy(t, inner)
	p.Start()

	inner.Inject([]byte("+CMTI: \"SM\",3\r\n"))
	syncAll(t, inner, p)

	buf := make([]byte, 64)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "+CMTI: \"SM\",3\r\n", string(buf[:n]))
}

func TestProxy_PartialWritePassesThrough(t *testing.T) {
	inner := newInner(t, loopback.WithMaxWritePerAttempt(4))
	p := newTestProxy(t, inner)

	n, err := p.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = terminal.WriteAll(context.Background(), p, []byte("456789"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "0123456789", string(inner.Written()))
}

func TestProxy_StopStopsInner(t *testing.T) {
	inner := newInner(t)
	p := newTestProxy(t, inner)
	col := &collector{}
	p.SetReadCb(col.onRead)

	p.Start()
	p.Stop()
	assert.Equal(t, terminal.Stopped, inner.State())

	assert.Zero(t, inner.Inject([]byte("late")))
	syncAll(t, inner, p)

	got, _ := col.snapshot()
	assert.Empty(t, got)
}

func TestProxy_Swap(t *testing.T) {
	first := newInner(t)
	second := newInner(t)
	p := newTestProxy(t, first)

	col := &collector{}
	p.SetReadCb(col.onRead)
	p.SetErrorCb(col.onError)
	p.Start()

	first.Inject([]byte("one,"))
	require.True(t, first.InjectError(terminal.DeviceGone))
	syncAll(t, first, p)

	_, err := p.Write([]byte("x"))
	assert.ErrorIs(t, err, terminal.ErrDeviceGone)

	prev, err := p.Swap(second)
	require.NoError(t, err)
	assert.Same(t, first, prev)
	assert.Equal(t, terminal.Stopped, first.State())
	assert.Equal(t, terminal.Active, second.State())
	assert.Same(t, second, p.Inner())

	// the old terminal is detached
	first.Start()
	first.Inject([]byte("stale"))
	syncAll(t, first)

	second.Inject([]byte("two"))
	syncAll(t, second, p)

	got, errs := col.snapshot()
	assert.Equal(t, "one,two", got)
	// reported by the inner terminal, then again by the failed Write
	assert.Equal(t, []terminal.Error{terminal.DeviceGone, terminal.DeviceGone}, errs)

	n, err := p.Write([]byte("AT\r"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "AT\r", string(second.Written()))
}

func TestProxy_SwapWhileStopped(t *testing.T) {
	first, second := newInner(t), newInner(t)
	p := newTestProxy(t, first)

	_, err := p.Swap(second)
	require.NoError(t, err)
	assert.Equal(t, terminal.Constructed, second.State())

	p.Start()
	assert.Equal(t, terminal.Active, second.State())

	_, err = p.Swap(nil)
	assert.Error(t, err)
}

func TestProxy_ErrorFilter(t *testing.T) {
	inner := newInner(t)
	p := newTestProxy(t, inner, WithErrorFilter(func(e terminal.Error) bool {
		return e != terminal.ChecksumError
	}))

	col := &collector{}
	p.SetErrorCb(col.onError)
	p.Start()

	inner.InjectError(terminal.ChecksumError)
	inner.InjectError(terminal.UnexpectedControlFlow)
	inner.InjectError(terminal.DeviceGone)
	syncAll(t, inner, p)

	_, errs := col.snapshot()
	assert.Equal(t, []terminal.Error{terminal.UnexpectedControlFlow, terminal.DeviceGone}, errs)
}

func TestProxy_OverflowIsReportedByProxy(t *testing.T) {
	inner := newInner(t, loopback.WithTerminalOptions(terminal.WithRxBufferSize(256)))
	p := newTestProxy(t, inner, WithTerminalOptions(terminal.WithRxBufferSize(8)))

	col := &collector{}
	p.SetErrorCb(col.onError)
	p.Start()

	inner.Inject([]byte("0123456789ABCDEF"))
	syncAll(t, inner, p)

	_, errs := col.snapshot()
	assert.Equal(t, []terminal.Error{terminal.BufferOverflow}, errs)
	assert.Equal(t, 8, p.Buffered())
	assert.Zero(t, inner.Buffered())
}

func TestProxy_Trace(t *testing.T) {
	l := logger.NewMockLogger().AllowAll()
	inner := newInner(t)
	p := newTestProxy(t, inner, WithTrace(true), WithTraceLimit(2),
		WithTerminalOptions(terminal.WithLogger(l)))
	p.Start()

	inner.Inject([]byte{0x41, 0x54, 0x0D})
	syncAll(t, inner, p)
	_, err := p.Write([]byte{0x0D})
	require.NoError(t, err)

	l.AssertCalled(t, "Debug", "proxy: rx", []any{"len", 3, "data", "41 54 ...(+1)"})
	l.AssertCalled(t, "Debug", "proxy: tx", mock.Anything)
}

func TestProxy_CloseClosesInner(t *testing.T) {
	inner := newInner(t)
	p := newTestProxy(t, inner)
	p.Start()

	require.NoError(t, p.Close())
	assert.Equal(t, terminal.Closed, inner.State())

	_, err := p.Write([]byte("x"))
	assert.ErrorIs(t, err, terminal.ErrClosed)

	_, err = p.Swap(newInner(t))
	assert.ErrorIs(t, err, terminal.ErrClosed)
}

func TestProxy_NewValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(newInner(t), WithTraceLimit(0))
	assert.Error(t, err)
}
