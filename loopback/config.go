package loopback

import (
	"errors"

	"github.com/arloliu/go-terminal/terminal"
)

// Config holds the settings of a loopback terminal.
type Config struct {
	coreOpts   []terminal.Option
	maxWrite   int
	txCapacity int
	echo       bool
}

// Option is a functional option for configuring a loopback terminal.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithTerminalOptions passes options to the shared terminal configuration,
// e.g. terminal.WithRxBufferSize or terminal.WithLogger.
func WithTerminalOptions(opts ...terminal.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.coreOpts = append(cfg.coreOpts, opts...)
		return nil
	})
}

// WithMaxWritePerAttempt limits how many bytes a single Write accepts.
// Zero means unlimited.
func WithMaxWritePerAttempt(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			return errors.New("loopback: max write per attempt must not be negative")
		}
		cfg.maxWrite = n

		return nil
	})
}

// WithTxCapacity bounds the simulated far-end buffer. Writes accept only the free space
// until the far end drains it with TakeWritten. Zero means unlimited.
func WithTxCapacity(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			return errors.New("loopback: tx capacity must not be negative")
		}
		cfg.txCapacity = n

		return nil
	})
}

// WithEcho feeds every accepted write back as received data.
func WithEcho(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.echo = enabled
		return nil
	})
}

func newConfig(opts []Option) (*Config, error) {
	cfg := &Config{}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
