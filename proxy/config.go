package proxy

import (
	"errors"

	"github.com/arloliu/go-terminal/terminal"
)

// DefaultTraceLimit is the number of bytes shown per traced chunk.
const DefaultTraceLimit = 64

// ErrorFilter decides whether an error raised by the inner terminal is forwarded.
type ErrorFilter func(e terminal.Error) bool

// Config holds the settings of a proxy terminal.
type Config struct {
	coreOpts   []terminal.Option
	trace      bool
	traceLimit int
	filter     ErrorFilter
}

func newConfig(opts []Option) (*Config, error) {
	cfg := &Config{traceLimit: DefaultTraceLimit}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for configuring a proxy terminal.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithTerminalOptions passes options to the proxy's own terminal configuration.
func WithTerminalOptions(opts ...terminal.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.coreOpts = append(cfg.coreOpts, opts...)
		return nil
	})
}

// WithTrace enables debug logging of every received and written chunk as hex.
func WithTrace(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.trace = enabled
		return nil
	})
}

// WithTraceLimit sets how many bytes of a chunk the trace shows.
func WithTraceLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 {
			return errors.New("proxy: trace limit must be >= 1")
		}
		cfg.traceLimit = n

		return nil
	})
}

// WithErrorFilter installs a filter for inner errors; errors for which filter returns
// false are dropped. Errors that are not transient, i.e. DeviceGone, are never dropped.
func WithErrorFilter(filter ErrorFilter) Option {
	return optFunc(func(cfg *Config) error {
		cfg.filter = filter
		return nil
	})
}
