package loopback

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-terminal/internal/util"
	"github.com/arloliu/go-terminal/terminal"
)

// Terminal is an in-memory terminal.Terminal.
type Terminal struct {
	*terminal.Core
	cfg *Config

	mu       sync.Mutex
	written  []byte
	writeErr error
	peer     *Terminal
}

var _ terminal.Terminal = (*Terminal)(nil)

// New creates a loopback terminal.
func New(opts ...Option) (*Terminal, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	coreCfg, err := terminal.NewConfig(cfg.coreOpts...)
	if err != nil {
		return nil, err
	}

	t := &Terminal{cfg: cfg}
	t.Core, err = terminal.NewCore(coreCfg, terminal.Hooks{})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Pair creates two terminals wired back to back: bytes accepted by a.Write are
// received by b and vice versa. Both use the same options.
func Pair(opts ...Option) (a *Terminal, b *Terminal, err error) {
	a, err = New(opts...)
	if err != nil {
		return nil, nil, err
	}

	b, err = New(opts...)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	a.peer, b.peer = b, a

	return a, b, nil
}

// Write accepts as many bytes as the simulated transport allows in one attempt.
func (t *Terminal) Write(data []byte) (int, error) {
	if err := t.Writable(); err != nil {
		return 0, fmt.Errorf("loopback: write: %w", err)
	}

	t.mu.Lock()
	if t.writeErr != nil {
		err := t.writeErr
		t.mu.Unlock()

		return 0, fmt.Errorf("loopback: write: %w: %w", terminal.ErrIO, err)
	}

	n := len(data)
	if t.cfg.maxWrite > 0 {
		n = min(n, t.cfg.maxWrite)
	}
	if t.cfg.txCapacity > 0 {
		n = min(n, t.cfg.txCapacity-len(t.written))
	}
	t.written = append(t.written, data[:n]...)
	peer := t.peer
	t.mu.Unlock()

	t.Metrics().CountWrite(n, len(data))

	if n > 0 {
		if t.cfg.echo {
			t.Deliver(data[:n])
		}
		if peer != nil {
			peer.Deliver(data[:n])
		}
	}

	return n, nil
}

// Inject simulates one receive event carrying data and returns how many bytes the
// receive buffer accepted.
func (t *Terminal) Inject(data []byte) int {
	return t.Deliver(data)
}

// InjectError simulates a detected fault. It returns false if the terminal is not
// active and no notification was queued.
func (t *Terminal) InjectError(e terminal.Error) bool {
	return t.Report(e)
}

// Reattach simulates the device coming back after DeviceGone.
func (t *Terminal) Reattach() {
	t.ClearGone()
}

// SetWriteError makes every following Write fail with an ErrIO wrapping err.
// A nil err restores normal writes.
func (t *Terminal) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writeErr = err
}

// Written returns a copy of the bytes accepted by Write and not yet taken.
func (t *Terminal) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return util.CloneSlice(t.written, 0)
}

// TakeWritten returns the accepted bytes and clears them, freeing tx capacity.
func (t *Terminal) TakeWritten() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.written
	t.written = nil

	return out
}
