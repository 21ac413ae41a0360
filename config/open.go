package config

import (
	"context"
	"fmt"
	"net"

	"github.com/arloliu/go-terminal/logger"
	"github.com/arloliu/go-terminal/loopback"
	"github.com/arloliu/go-terminal/proxy"
	"github.com/arloliu/go-terminal/socket"
	"github.com/arloliu/go-terminal/terminal"
	"github.com/arloliu/go-terminal/uart"
)

// Open builds the terminal described by def. A socket in listen mode waits for one
// peer until ctx is done. With Trace set the terminal is wrapped in a tracing proxy.
func (def Definition) Open(ctx context.Context, l logger.Logger) (terminal.Terminal, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.GetLogger()
	}

	coreOpts := def.terminalOptions(l)

	var (
		term terminal.Terminal
		err  error
	)

	switch def.Kind {
	case KindUART:
		term, err = def.openUART(coreOpts)
	case KindSocket:
		term, err = def.openSocket(ctx, coreOpts)
	case KindLoopback:
		term, err = def.openLoopback(coreOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", def.Name, err)
	}

	if !def.Trace {
		return term, nil
	}

	p, err := proxy.New(term, proxy.WithTrace(true), proxy.WithTerminalOptions(coreOpts...))
	if err != nil {
		_ = term.Close()
		return nil, fmt.Errorf("config: open %s: %w", def.Name, err)
	}

	return p, nil
}

func (def Definition) terminalOptions(l logger.Logger) []terminal.Option {
	opts := []terminal.Option{terminal.WithName(def.Name), terminal.WithLogger(l)}
	if def.RxBuffer > 0 {
		opts = append(opts, terminal.WithRxBufferSize(def.RxBuffer))
	}
	if def.CloseTimeout > 0 {
		opts = append(opts, terminal.WithCloseTimeout(def.CloseTimeout))
	}

	return opts
}

func (def Definition) openUART(coreOpts []terminal.Option) (terminal.Terminal, error) {
	opts := []uart.Option{uart.WithTerminalOptions(coreOpts...)}

	if def.Baud > 0 {
		opts = append(opts, uart.WithBaudRate(def.Baud))
	}
	if def.DataBits > 0 {
		opts = append(opts, uart.WithDataBits(def.DataBits))
	}
	if def.StopBits > 0 {
		opts = append(opts, uart.WithStopBits(def.StopBits))
	}

	parity, err := uart.ParseParity(def.Parity)
	if err != nil {
		return nil, err
	}
	flow, err := uart.ParseFlowControl(def.Flow)
	if err != nil {
		return nil, err
	}
	opts = append(opts, uart.WithParity(parity), uart.WithFlowControl(flow))

	cfg, err := uart.NewConfig(def.Device, opts...)
	if err != nil {
		return nil, err
	}

	return uart.Open(cfg)
}

func (def Definition) openSocket(ctx context.Context, coreOpts []terminal.Option) (terminal.Terminal, error) {
	opts := []socket.Option{socket.WithTerminalOptions(coreOpts...)}

	if def.TxBuffer > 0 {
		opts = append(opts, socket.WithTxBufferSize(def.TxBuffer))
	}
	if def.Baud > 0 {
		opts = append(opts, socket.WithBaudRate(def.Baud))
	}

	cfg, err := socket.NewConfig(def.Host, def.Port, opts...)
	if err != nil {
		return nil, err
	}

	if def.Mode != ModeListen {
		return socket.Dial(ctx, cfg)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	return socket.Accept(ctx, ln, cfg)
}

func (def Definition) openLoopback(coreOpts []terminal.Option) (terminal.Terminal, error) {
	opts := []loopback.Option{
		loopback.WithTerminalOptions(coreOpts...),
		loopback.WithEcho(def.Echo),
	}
	if def.MaxWrite > 0 {
		opts = append(opts, loopback.WithMaxWritePerAttempt(def.MaxWrite))
	}

	return loopback.New(opts...)
}
