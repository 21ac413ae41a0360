package terminal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-terminal/internal/queue"
	"github.com/arloliu/go-terminal/internal/task"
	"github.com/arloliu/go-terminal/logger"
)

// Hooks let a transport react to lifecycle changes of its Core.
// Every hook is optional.
type Hooks struct {
	// OnStart arms the transport. It runs after the Core became Active.
	OnStart func()
	// OnStop disarms the transport. It runs after the Core left Active, on Stop and on
	// Close of an active terminal.
	OnStop func()
	// OnSetReadCb runs after a read callback was registered, e.g. to enable receive
	// interrupts. cb may be nil.
	OnSetReadCb func(cb ReadFunc)
	// OnClose releases the transport. It runs once, after the dispatcher drained.
	OnClose func() error
}

type eventKind uint8

const (
	readEvent eventKind = iota
	errorEvent
	barrierEvent
)

type event struct {
	kind eventKind
	err  Error
	gen  uint64
	done chan struct{}
}

// Core implements the transport independent part of a Terminal: callback slots,
// lifecycle state, the bounded receive buffer and the notification dispatcher.
//
// Transports embed *Core, implement Write, and feed received bytes and faults from
// their own goroutines through Deliver and Report.
type Core struct {
	cfg    *Config
	logger logger.Logger
	hooks  Hooks

	// gate serializes lifecycle transitions with callback admission: a callback is
	// only invoked if the terminal is Active in the generation the event was raised in.
	gate  sync.Mutex
	state AtomicState
	gen   uint64 // activation generation, guarded by gate
	// starting is set by the dispatcher between admission and the callback entry,
	// guarded by gate. Stop waits on started until it is cleared.
	starting bool
	started  *sync.Cond
	// onAdmit, if set, runs in the dispatcher right after a callback was admitted.
	onAdmit func()

	// readPending holds the generation of a read notification that is queued and not
	// yet dispatched, or 0.
	readPending atomic.Uint64

	gone atomic.Bool

	readCb atomic.Pointer[ReadFunc]
	errCb  atomic.Pointer[ErrorFunc]

	rxMu sync.Mutex
	rx   *ring

	events  *queue.LockFreeQueue[event]
	wake    chan struct{}
	tasks   *task.Manager
	scratch []byte // owned by the dispatcher goroutine

	closeOnce sync.Once
	closeErr  error

	metrics Metrics
}

// NewCore creates a Core and starts its dispatcher goroutine. The Core starts in the
// Constructed state; it must be released with Close.
func NewCore(cfg *Config, hooks Hooks) (*Core, error) {
	if cfg == nil {
		return nil, errors.New("terminal: config is nil")
	}

	l := cfg.logger
	if cfg.name != "" {
		l = l.With("terminal", cfg.name)
	}

	c := &Core{
		cfg:    cfg,
		logger: l,
		hooks:  hooks,
		rx:     newRing(cfg.rxBufferSize),
		events: queue.NewLockFreeQueue[event](),
		wake:   make(chan struct{}, 1),
		tasks:  task.NewManager(context.Background(), l),
	}
	c.started = sync.NewCond(&c.gate)

	if err := c.tasks.Go("dispatcher", c.dispatchLoop); err != nil {
		return nil, err
	}

	return c, nil
}

// --- DTE side ---

// SetErrorCb registers the error callback, replacing any previous one.
func (c *Core) SetErrorCb(cb ErrorFunc) {
	if cb == nil {
		c.errCb.Store(nil)
		return
	}
	c.errCb.Store(&cb)
}

// SetReadCb registers the read callback, replacing any previous one. If bytes are
// already buffered while active, a read notification is queued for the new callback.
func (c *Core) SetReadCb(cb ReadFunc) {
	if cb == nil {
		c.readCb.Store(nil)
	} else {
		c.readCb.Store(&cb)
	}

	if c.hooks.OnSetReadCb != nil {
		c.hooks.OnSetReadCb(cb)
	}

	if cb != nil {
		c.notifyBuffered()
	}
}

// Read copies up to len(buf) buffered bytes into buf. It never waits.
//
// Once the device is gone, Read keeps returning buffered bytes and then
// 0, ErrDeviceGone, reporting DeviceGone again on every such call.
func (c *Core) Read(buf []byte) (int, error) {
	if c.state.IsClosed() {
		return 0, ErrClosed
	}

	c.rxMu.Lock()
	n := c.rx.Read(buf)
	c.rxMu.Unlock()

	if n == 0 && len(buf) > 0 && c.gone.Load() {
		c.Report(DeviceGone)
		return 0, ErrDeviceGone
	}

	return n, nil
}

// Start activates the terminal. It is a no-op while active or after Close.
func (c *Core) Start() {
	c.gate.Lock()
	if !c.state.ToActive() {
		c.gate.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.gate.Unlock()

	c.logger.Debug("terminal: started", "generation", gen)

	if c.hooks.OnStart != nil {
		c.hooks.OnStart()
	}

	c.notifyBuffered()
}

// Stop deactivates the terminal. Once Stop returns no new callback invocation begins;
// an invocation already running completes. Stop does not wait for it, so it may be
// called from inside a callback.
func (c *Core) Stop() {
	c.gate.Lock()
	ok := c.state.ToStopped()
	c.waitAdmitted()
	c.gate.Unlock()

	if !ok {
		return
	}

	c.logger.Debug("terminal: stopped")

	if c.hooks.OnStop != nil {
		c.hooks.OnStop()
	}
}

// Close stops the terminal, waits for the dispatcher to finish the callback in flight,
// then releases the transport. It is safe to call while active and more than once.
//
// Close must not be called from inside a callback: it would wait for itself until
// the close timeout elapses and then return ErrCloseTimeout.
func (c *Core) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.close()
	})

	return c.closeErr
}

func (c *Core) close() error {
	c.gate.Lock()
	prev := c.state.ToClosed()
	c.waitAdmitted()
	c.gate.Unlock()

	if prev == Active && c.hooks.OnStop != nil {
		c.hooks.OnStop()
	}

	var err error

	c.tasks.Stop()
	if !c.tasks.WaitTimeout(c.cfg.closeTimeout) {
		c.logger.Error("terminal: dispatcher did not stop in time", "timeout", c.cfg.closeTimeout)
		err = ErrCloseTimeout
	}

	if c.hooks.OnClose != nil {
		if cerr := c.hooks.OnClose(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}

	c.readCb.Store(nil)
	c.errCb.Store(nil)

	c.rxMu.Lock()
	c.rx.Reset()
	c.rxMu.Unlock()

	c.logger.Debug("terminal: closed", "prevState", prev.String())

	return err
}

// State returns the current lifecycle state.
func (c *Core) State() State {
	return c.state.Get()
}

// Sync blocks until every notification queued before the call has been dispatched,
// or ctx is done. It returns ErrClosed if the terminal is closed.
func (c *Core) Sync(ctx context.Context) error {
	if c.state.IsClosed() {
		return ErrClosed
	}

	done := make(chan struct{})
	c.enqueue(event{kind: barrierEvent, done: done})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.tasks.Context().Done():
		return ErrClosed
	}
}

// Buffered returns the number of received bytes waiting in the receive buffer.
func (c *Core) Buffered() int {
	c.rxMu.Lock()
	defer c.rxMu.Unlock()

	return c.rx.Len()
}

// Metrics returns the counters of the terminal.
func (c *Core) Metrics() *Metrics {
	return &c.metrics
}

// Name returns the configured terminal name.
func (c *Core) Name() string {
	return c.cfg.name
}

// Config returns the terminal configuration.
func (c *Core) Config() *Config {
	return c.cfg
}

// Logger returns the logger of the terminal, annotated with its name.
func (c *Core) Logger() logger.Logger {
	return c.logger
}

// --- transport side ---

// Deliver stores bytes received from the wire and queues a read notification.
// Bytes that do not fit into the receive buffer are dropped and a BufferOverflow
// notification is queued. Outside the Active state nothing is stored.
//
// Deliver never blocks on the DTE and may be called from any goroutine; calls must be
// made in wire order.
func (c *Core) Deliver(data []byte) int {
	n, ok := c.TryDeliver(data)
	if !ok {
		c.metrics.RxDropped.Add(uint64(len(data)))
	}

	return n
}

// TryDeliver is Deliver for transports that keep refused bytes themselves. Outside the
// Active state it stores nothing and returns false, and the bytes are not counted as
// dropped.
func (c *Core) TryDeliver(data []byte) (int, bool) {
	if len(data) == 0 {
		return 0, true
	}

	gen, ok := c.activeGen()
	if !ok {
		return 0, false
	}

	c.rxMu.Lock()
	n := c.rx.Write(data)
	c.rxMu.Unlock()

	c.metrics.RxBytes.Add(uint64(n))

	if n < len(data) {
		c.metrics.RxDropped.Add(uint64(len(data) - n))
		c.logger.Warn("terminal: receive buffer overflow",
			"received", len(data),
			"accepted", n,
			"capacity", c.cfg.rxBufferSize,
		)
		c.enqueue(event{kind: errorEvent, err: BufferOverflow, gen: gen})
	}

	if n > 0 {
		c.notifyRead(gen)
	}

	return n, true
}

// Report queues an error notification and returns whether it was queued, which only
// happens while Active. Reporting DeviceGone marks the device gone in any state, after
// which Writable fails with ErrDeviceGone.
func (c *Core) Report(e Error) bool {
	if !e.Valid() {
		c.logger.Error("terminal: invalid error reported", "error", e.String())
		return false
	}

	if e == DeviceGone && !c.gone.Swap(true) {
		c.logger.Warn("terminal: device gone")
	}

	gen, ok := c.activeGen()
	if !ok {
		return false
	}

	c.enqueue(event{kind: errorEvent, err: e, gen: gen})

	return true
}

// IsGone reports whether DeviceGone was reported.
func (c *Core) IsGone() bool {
	return c.gone.Load()
}

// ClearGone forgets a previous DeviceGone, after the transport was reattached.
func (c *Core) ClearGone() {
	c.gone.Store(false)
}

// Writable returns the error a Write must fail with, or nil if writing is allowed.
// While the device is gone every call reports DeviceGone again.
func (c *Core) Writable() error {
	if c.state.IsClosed() {
		return ErrClosed
	}
	if c.gone.Load() {
		c.Report(DeviceGone)
		return ErrDeviceGone
	}

	return nil
}

func (c *Core) activeGen() (uint64, bool) {
	c.gate.Lock()
	defer c.gate.Unlock()

	return c.gen, c.state.IsActive()
}

// waitAdmitted blocks until an admitted callback has been entered. gate must be held.
func (c *Core) waitAdmitted() {
	for c.starting {
		c.started.Wait()
	}
}

func (c *Core) notifyBuffered() {
	gen, ok := c.activeGen()
	if !ok || c.Buffered() == 0 {
		return
	}

	c.notifyRead(gen)
}

// notifyRead queues a read notification for gen unless one is already queued.
func (c *Core) notifyRead(gen uint64) {
	if c.readPending.Swap(gen) == gen {
		return
	}

	c.enqueue(event{kind: readEvent, gen: gen})
}

func (c *Core) enqueue(ev event) {
	c.events.Enqueue(ev)

	select {
	case c.wake <- struct{}{}:
	default:
	}
}
