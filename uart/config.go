package uart

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/arloliu/go-terminal/terminal"
)

// ErrUnsupported is returned by Open on platforms without termios support.
var ErrUnsupported = errors.New("uart: not supported on this platform")

const (
	DefaultBaudRate     = 115200
	DefaultDataBits     = 8
	DefaultStopBits     = 1
	DefaultPollInterval = 20 * time.Millisecond

	MinPollInterval = time.Millisecond
	MaxPollInterval = time.Second
)

// SupportedBaudRates lists the line speeds accepted by WithBaudRate.
var SupportedBaudRates = []int{
	50, 75, 110, 134, 150, 200, 300, 600, 1200, 1800, 2400, 4800, 9600,
	19200, 38400, 57600, 115200, 230400, 460800, 500000, 576000, 921600,
	1000000, 1152000, 1500000, 2000000, 2500000, 3000000, 3500000, 4000000,
}

// Parity is the parity mode of the line.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", uint8(p))
	}
}

// ParseParity parses "none", "odd" or "even" (case insensitive, also "n", "o", "e").
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	default:
		return ParityNone, fmt.Errorf("uart: invalid parity %q", s)
	}
}

// FlowControl is the flow control mode of the line.
type FlowControl uint8

// FlowHardware uses the RTS/CTS lines, FlowSoftware XON/XOFF characters.
const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowSoftware
)

func (f FlowControl) String() string {
	switch f {
	case FlowNone:
		return "none"
	case FlowHardware:
		return "hardware"
	case FlowSoftware:
		return "software"
	default:
		return fmt.Sprintf("FlowControl(%d)", uint8(f))
	}
}

// ParseFlowControl parses "none", "hardware" ("rtscts") or "software" ("xonxoff").
func ParseFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return FlowNone, nil
	case "hardware", "rtscts":
		return FlowHardware, nil
	case "software", "xonxoff":
		return FlowSoftware, nil
	default:
		return FlowNone, fmt.Errorf("uart: invalid flow control %q", s)
	}
}

// Config holds the line settings of a UART terminal.
type Config struct {
	device       string
	baudRate     int
	dataBits     int
	parity       Parity
	stopBits     int
	flow         FlowControl
	pollInterval time.Duration

	coreOpts []terminal.Option
}

// NewConfig creates the configuration for device, 115200 8N1 without flow control by
// default.
func NewConfig(device string, opts ...Option) (*Config, error) {
	if device == "" {
		return nil, errors.New("uart: device path is empty")
	}

	cfg := &Config{
		device:       device,
		baudRate:     DefaultBaudRate,
		dataBits:     DefaultDataBits,
		stopBits:     DefaultStopBits,
		pollInterval: DefaultPollInterval,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Device returns the tty device path.
func (cfg *Config) Device() string { return cfg.device }

// BaudRate returns the line speed.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// DataBits returns the number of data bits per character.
func (cfg *Config) DataBits() int { return cfg.dataBits }

// Parity returns the parity mode.
func (cfg *Config) Parity() Parity { return cfg.parity }

// StopBits returns the number of stop bits.
func (cfg *Config) StopBits() int { return cfg.stopBits }

// FlowControl returns the flow control mode.
func (cfg *Config) FlowControl() FlowControl { return cfg.flow }

// PollInterval returns the poll timeout of the reader task.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// String returns the line settings in the usual "115200 8N1" notation.
func (cfg *Config) String() string {
	return fmt.Sprintf("%s %d %d%c%d", cfg.device, cfg.baudRate, cfg.dataBits,
		strings.ToUpper(cfg.parity.String())[0], cfg.stopBits)
}

// Option is a functional option for configuring a UART Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the line speed. It must be one of SupportedBaudRates.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if !slices.Contains(SupportedBaudRates, baud) {
			return fmt.Errorf("uart: unsupported baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithDataBits sets the number of data bits, 5 to 8.
func WithDataBits(bits int) Option {
	return optFunc(func(cfg *Config) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("uart: data bits %d out of range [5, 8]", bits)
		}
		cfg.dataBits = bits

		return nil
	})
}

// WithParity sets the parity mode.
func WithParity(p Parity) Option {
	return optFunc(func(cfg *Config) error {
		if p > ParityEven {
			return fmt.Errorf("uart: invalid parity %d", p)
		}
		cfg.parity = p

		return nil
	})
}

// WithStopBits sets the number of stop bits, 1 or 2.
func WithStopBits(bits int) Option {
	return optFunc(func(cfg *Config) error {
		if bits != 1 && bits != 2 {
			return fmt.Errorf("uart: stop bits must be 1 or 2, got %d", bits)
		}
		cfg.stopBits = bits

		return nil
	})
}

// WithFlowControl sets the flow control mode.
func WithFlowControl(f FlowControl) Option {
	return optFunc(func(cfg *Config) error {
		if f > FlowSoftware {
			return fmt.Errorf("uart: invalid flow control %d", f)
		}
		cfg.flow = f

		return nil
	})
}

// WithPollInterval sets how long the reader waits for input before it checks for Stop.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("uart: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

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
