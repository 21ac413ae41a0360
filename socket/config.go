package socket

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-terminal/terminal"
)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultAcceptTimeout  = time.Second // accept deadline per iteration
	DefaultSendTimeout    = 3 * time.Second
	DefaultLingerTimeout  = time.Second
	DefaultTxBufferSize   = 4096
	DefaultReadChunkSize  = 512

	MinBaudRate = 50
	MaxBaudRate = 4_000_000
)

// Config holds the settings of a socket terminal.
type Config struct {
	host string
	port int

	connectTimeout time.Duration
	acceptTimeout  time.Duration
	sendTimeout    time.Duration
	lingerTimeout  time.Duration

	txBufferSize  int
	readChunkSize int
	baudRate      int

	coreOpts []terminal.Option
}

// NewConfig creates a socket configuration.
//
// host is the remote (or bind) address, port the TCP port. An empty host is allowed
// when the terminal wraps an existing connection or listens on all interfaces.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		connectTimeout: DefaultConnectTimeout,
		acceptTimeout:  DefaultAcceptTimeout,
		sendTimeout:    DefaultSendTimeout,
		lingerTimeout:  DefaultLingerTimeout,
		txBufferSize:   DefaultTxBufferSize,
		readChunkSize:  DefaultReadChunkSize,
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *Config) setHost(host string) error {
	if host == "" {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if _, err := net.LookupHost(host); err == nil {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("socket: invalid host %q", host)
}

func (cfg *Config) setPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("socket: port %d out of range [0, 65535]", port)
	}
	cfg.port = port

	return nil
}

// Host returns the configured host address.
func (cfg *Config) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *Config) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *Config) Addr() string { return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port)) }

// TxBufferSize returns the transmit buffer capacity.
func (cfg *Config) TxBufferSize() int { return cfg.txBufferSize }

// BaudRate returns the emulated line speed, 0 when writes are not paced.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// SendTimeout returns how long a flush may stall before UnexpectedControlFlow is reported.
func (cfg *Config) SendTimeout() time.Duration { return cfg.sendTimeout }

// Option is a functional option for configuring a socket Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithConnectTimeout sets the TCP dial timeout used by Dial.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("socket: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithAcceptTimeout sets the accept deadline per iteration used by Accept.
func WithAcceptTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("socket: accept timeout must be positive")
		}
		cfg.acceptTimeout = d

		return nil
	})
}

// WithSendTimeout sets the write deadline of each flush attempt.
func WithSendTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("socket: send timeout must be positive")
		}
		cfg.sendTimeout = d

		return nil
	})
}

// WithLingerTimeout sets how long Close keeps flushing buffered bytes.
// Zero discards pending bytes immediately.
func WithLingerTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("socket: linger timeout must not be negative")
		}
		cfg.lingerTimeout = d

		return nil
	})
}

// WithTxBufferSize sets the transmit buffer capacity.
func WithTxBufferSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < 1 {
			return errors.New("socket: tx buffer size must be >= 1")
		}
		cfg.txBufferSize = size

		return nil
	})
}

// WithReadChunkSize sets the size of a single connection read.
func WithReadChunkSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < 1 {
			return errors.New("socket: read chunk size must be >= 1")
		}
		cfg.readChunkSize = size

		return nil
	})
}

// WithBaudRate paces writes like a serial line with 10 bit times per byte.
// Zero disables pacing.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud != 0 && (baud < MinBaudRate || baud > MaxBaudRate) {
			return fmt.Errorf("socket: baud rate %d out of range [%d, %d]", baud, MinBaudRate, MaxBaudRate)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithTerminalOptions passes options to the shared terminal configuration.
func WithTerminalOptions(opts ...terminal.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.coreOpts = append(cfg.coreOpts, opts...)
		return nil
	})
}
