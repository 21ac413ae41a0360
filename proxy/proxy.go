// Package proxy implements a terminal.Terminal that forwards to another terminal which
// can be replaced at runtime, e.g. after a socket was reconnected.
//
// The proxy owns its callback slots, lifecycle and receive buffer. The DTE keeps its
// callbacks registered on the proxy while inner terminals come and go.
package proxy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/arloliu/go-terminal/internal/util"
	"github.com/arloliu/go-terminal/terminal"
)

// Terminal is a proxy terminal.
type Terminal struct {
	*terminal.Core
	cfg *Config

	mu    sync.RWMutex
	inner terminal.Terminal
}

var _ terminal.Terminal = (*Terminal)(nil)

// New creates a proxy around inner. inner is stopped and its callbacks are taken over;
// it is closed together with the proxy.
func New(inner terminal.Terminal, opts ...Option) (*Terminal, error) {
	if inner == nil {
		return nil, errors.New("proxy: inner terminal is nil")
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	coreCfg, err := terminal.NewConfig(cfg.coreOpts...)
	if err != nil {
		return nil, err
	}

	p := &Terminal{cfg: cfg}
	p.Core, err = terminal.NewCore(coreCfg, terminal.Hooks{
		OnStart: p.startInner,
		OnStop:  p.stopInner,
		OnClose: p.closeInner,
	})
	if err != nil {
		return nil, err
	}

	inner.Stop()
	p.attach(inner)
	p.inner = inner

	return p, nil
}

// Inner returns the current inner terminal.
func (p *Terminal) Inner() terminal.Terminal {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.inner
}

// Swap replaces the inner terminal and returns the previous one, stopped and with its
// callbacks cleared. The caller owns the returned terminal. next is started if the
// proxy is active. A previous DeviceGone is forgotten.
func (p *Terminal) Swap(next terminal.Terminal) (terminal.Terminal, error) {
	if next == nil {
		return nil, errors.New("proxy: inner terminal is nil")
	}
	if p.State() == terminal.Closed {
		return nil, fmt.Errorf("proxy: swap: %w", terminal.ErrClosed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.inner
	if prev == next {
		return prev, nil
	}

	prev.Stop()
	prev.SetReadCb(nil)
	prev.SetErrorCb(nil)

	next.Stop()
	p.attach(next)
	p.inner = next
	p.ClearGone()

	if p.State() == terminal.Active {
		next.Start()
	}

	p.Logger().Info("proxy: inner terminal swapped")

	return prev, nil
}

// Write forwards data to the inner terminal.
func (p *Terminal) Write(data []byte) (int, error) {
	if err := p.Writable(); err != nil {
		return 0, fmt.Errorf("proxy: write: %w", err)
	}

	p.mu.RLock()
	n, err := p.inner.Write(data)
	p.mu.RUnlock()

	if err != nil {
		return n, fmt.Errorf("proxy: %w", err)
	}

	p.Metrics().CountWrite(n, len(data))

	if p.cfg.trace && n > 0 {
		p.Logger().Debug("proxy: tx", "len", n, "data", util.HexPreview(data[:n], p.cfg.traceLimit))
	}

	return n, nil
}

func (p *Terminal) attach(inner terminal.Terminal) {
	inner.SetReadCb(p.onInnerRead)
	inner.SetErrorCb(p.onInnerError)
}

// onInnerRead moves bytes into the proxy's own buffer. They are always consumed from
// the inner terminal; bytes the proxy cannot hold are reported as BufferOverflow by
// the proxy itself.
func (p *Terminal) onInnerRead(data []byte) bool {
	if p.cfg.trace {
		p.Logger().Debug("proxy: rx", "len", len(data), "data", util.HexPreview(data, p.cfg.traceLimit))
	}

	p.Deliver(data)

	return true
}

func (p *Terminal) onInnerError(e terminal.Error) {
	if e.Transient() && p.cfg.filter != nil && !p.cfg.filter(e) {
		p.Logger().Debug("proxy: error filtered", "error", e.String())
		return
	}

	p.Report(e)
}

// --- hooks ---

func (p *Terminal) startInner() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.inner.Start()
}

func (p *Terminal) stopInner() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.inner.Stop()
}

func (p *Terminal) closeInner() error {
	p.mu.RLock()
	inner := p.inner
	p.mu.RUnlock()

	inner.SetReadCb(nil)
	inner.SetErrorCb(nil)

	if err := inner.Close(); err != nil {
		return fmt.Errorf("proxy: close inner: %w", err)
	}

	return nil
}
