package terminal

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-terminal/logger"
)

const (
	DefaultRxBufferSize = 1024
	DefaultCloseTimeout = 3 * time.Second

	MinRxBufferSize = 1
	MaxRxBufferSize = 16 << 20
)

// Config holds the settings shared by every terminal implementation.
type Config struct {
	name         string
	rxBufferSize int
	closeTimeout time.Duration
	logger       logger.Logger
}

// NewConfig creates a Config with defaults, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		rxBufferSize: DefaultRxBufferSize,
		closeTimeout: DefaultCloseTimeout,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Name returns the terminal name used in logs.
func (cfg *Config) Name() string { return cfg.name }

// RxBufferSize returns the receive buffer capacity in bytes.
func (cfg *Config) RxBufferSize() int { return cfg.rxBufferSize }

// CloseTimeout returns how long Close waits for terminal goroutines.
func (cfg *Config) CloseTimeout() time.Duration { return cfg.closeTimeout }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithName sets the name attached to every log record of the terminal.
func WithName(name string) Option {
	return optFunc(func(cfg *Config) error {
		cfg.name = name
		return nil
	})
}

// WithRxBufferSize sets the receive buffer capacity.
// Bytes arriving while the buffer is full are dropped and reported as BufferOverflow.
func WithRxBufferSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < MinRxBufferSize || size > MaxRxBufferSize {
			return fmt.Errorf("terminal: rx buffer size %d out of range [%d, %d]", size, MinRxBufferSize, MaxRxBufferSize)
		}
		cfg.rxBufferSize = size

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for in-flight callbacks and transport
// goroutines before giving up with ErrCloseTimeout.
func WithCloseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("terminal: close timeout must be positive")
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithLogger sets the logger for the terminal.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("terminal: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
