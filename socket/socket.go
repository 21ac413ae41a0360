package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arloliu/go-terminal/internal/task"
	"github.com/arloliu/go-terminal/terminal"
)

// lingerCheckInterval is the polling interval while Close waits for the transmit
// buffer to drain.
const lingerCheckInterval = 5 * time.Millisecond

// Terminal is a terminal.Terminal backed by a net.Conn.
type Terminal struct {
	*terminal.Core
	cfg  *Config
	conn net.Conn

	// reader runs only while active, io for the whole lifetime (writer).
	reader *task.Manager
	io     *task.Manager

	// carry is only touched by reader goroutines, which never overlap.
	carry []byte

	txMu     sync.Mutex
	tx       []byte
	txSignal chan struct{}
	limiter  *rate.Limiter
}

var _ terminal.Terminal = (*Terminal)(nil)

// New wraps conn in a terminal. The terminal owns conn and closes it on Close.
func New(conn net.Conn, cfg *Config) (*Terminal, error) {
	if conn == nil {
		return nil, errors.New("socket: conn is nil")
	}
	if cfg == nil {
		return nil, errors.New("socket: config is nil")
	}

	coreCfg, err := terminal.NewConfig(cfg.coreOpts...)
	if err != nil {
		return nil, err
	}

	t := &Terminal{
		cfg:      cfg,
		conn:     conn,
		tx:       make([]byte, 0, cfg.txBufferSize),
		txSignal: make(chan struct{}, 1),
	}

	if cfg.baudRate > 0 {
		bytesPerSec := float64(cfg.baudRate) / 10
		t.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), max(1, int(bytesPerSec/10)))
	}

	t.Core, err = terminal.NewCore(coreCfg, terminal.Hooks{
		OnStart: t.arm,
		OnStop:  t.disarm,
		OnClose: t.release,
	})
	if err != nil {
		return nil, err
	}

	l := t.Logger().With("remoteAddr", remoteAddr(conn))
	t.reader = task.NewManager(context.Background(), l)
	t.reader.Stop()
	t.io = task.NewManager(context.Background(), l)

	if err := t.io.Go("socket-writer", t.writeLoop); err != nil {
		_ = t.Core.Close()
		return nil, err
	}

	return t, nil
}

// Dial connects to cfg.Addr() and wraps the connection.
func Dial(ctx context.Context, cfg *Config) (*Terminal, error) {
	if cfg == nil {
		return nil, errors.New("socket: config is nil")
	}

	dialer := net.Dialer{Timeout: cfg.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("socket: dial %s: %w", cfg.Addr(), err)
	}

	t, err := New(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return t, nil
}

// Accept waits on ln for one connection and wraps it. It returns when a peer connects,
// ctx is done or the listener fails.
func Accept(ctx context.Context, ln net.Listener, cfg *Config) (*Terminal, error) {
	if cfg == nil {
		return nil, errors.New("socket: config is nil")
	}

	type deadliner interface{ SetDeadline(time.Time) error }

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if dl, ok := ln.(deadliner); ok {
			_ = dl.SetDeadline(time.Now().Add(cfg.acceptTimeout))
		}

		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}

			return nil, fmt.Errorf("socket: accept: %w", err)
		}

		t, err := New(conn, cfg)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}

		return t, nil
	}
}

// Write copies as much of data as fits into the transmit buffer and returns at once.
func (t *Terminal) Write(data []byte) (int, error) {
	if err := t.Writable(); err != nil {
		return 0, fmt.Errorf("socket: write: %w", err)
	}

	t.txMu.Lock()
	n := min(len(data), t.cfg.txBufferSize-len(t.tx))
	if t.limiter != nil && n > 0 {
		now := time.Now()
		n = min(n, max(0, int(t.limiter.TokensAt(now))))
		if n > 0 && !t.limiter.AllowN(now, n) {
			n = 0
		}
	}
	t.tx = append(t.tx, data[:n]...)
	t.txMu.Unlock()

	t.Metrics().CountWrite(n, len(data))

	if n > 0 {
		select {
		case t.txSignal <- struct{}{}:
		default:
		}
	}

	return n, nil
}

// Pending returns the number of accepted bytes not yet written to the connection.
func (t *Terminal) Pending() int {
	t.txMu.Lock()
	defer t.txMu.Unlock()

	return len(t.tx)
}

// RemoteAddr returns the remote address of the connection.
func (t *Terminal) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// --- hooks ---

func (t *Terminal) arm() {
	_ = t.conn.SetReadDeadline(time.Time{})
	t.reader.Reset()

	if err := t.reader.Go("socket-reader", t.readLoop); err != nil {
		t.Logger().Error("socket: failed to start reader", "error", err)
	}
}

func (t *Terminal) disarm() {
	t.reader.Stop()
	_ = t.conn.SetReadDeadline(time.Now())
	t.reader.Wait()
}

func (t *Terminal) release() error {
	t.linger()

	t.io.Stop()
	err := t.conn.Close()
	if err != nil && errors.Is(err, net.ErrClosed) {
		err = nil
	}

	if !t.io.WaitTimeout(t.Config().CloseTimeout()) {
		err = errors.Join(err, terminal.ErrCloseTimeout)
	}

	if err != nil {
		return fmt.Errorf("socket: close: %w", err)
	}

	return nil
}

// linger waits until the transmit buffer drained or the linger timeout elapsed.
func (t *Terminal) linger() {
	if t.cfg.lingerTimeout <= 0 || t.IsGone() {
		return
	}

	deadline := time.Now().Add(t.cfg.lingerTimeout)
	ticker := time.NewTicker(lingerCheckInterval)
	defer ticker.Stop()

	for t.Pending() > 0 && time.Now().Before(deadline) {
		<-ticker.C
	}

	if n := t.Pending(); n > 0 {
		t.Logger().Warn("socket: discarding unsent bytes on close", "pending", n)
	}
}

// --- goroutines ---

func (t *Terminal) readLoop(ctx context.Context) {
	if len(t.carry) > 0 {
		if _, ok := t.TryDeliver(t.carry); ok {
			t.carry = t.carry[:0]
		}
	}

	buf := make([]byte, t.cfg.readChunkSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			// bytes refused because Stop won the race are kept for the next Start
			if _, ok := t.TryDeliver(buf[:n]); !ok {
				t.carry = append(t.carry, buf[:n]...)
			}
		}

		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return
		}
		if isTimeout(err) {
			continue
		}

		if errors.Is(err, io.EOF) {
			t.Logger().Info("socket: connection closed by peer")
		} else {
			t.Logger().Warn("socket: read failed", "error", err)
		}
		t.Report(terminal.DeviceGone)

		return
	}
}

func (t *Terminal) writeLoop(ctx context.Context) {
	buf := make([]byte, t.cfg.txBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.txSignal:
		}

		for ctx.Err() == nil {
			t.txMu.Lock()
			n := copy(buf, t.tx)
			t.txMu.Unlock()

			if n == 0 {
				break
			}

			_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.sendTimeout))
			written, err := t.conn.Write(buf[:n])

			t.txMu.Lock()
			t.tx = append(t.tx[:0], t.tx[written:]...)
			t.txMu.Unlock()

			if err == nil {
				continue
			}

			if ctx.Err() != nil {
				return
			}

			if isTimeout(err) {
				t.Logger().Warn("socket: peer is not reading", "pending", n-written, "timeout", t.cfg.sendTimeout)
				t.Report(terminal.UnexpectedControlFlow)

				continue
			}

			t.Logger().Warn("socket: write failed", "error", err)
			t.Report(terminal.DeviceGone)

			t.txMu.Lock()
			t.tx = t.tx[:0]
			t.txMu.Unlock()

			return
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}
