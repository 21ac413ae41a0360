// Package config loads terminal definitions from YAML and opens them.
//
// Example file:
//
//	terminals:
//	  - name: modem
//	    kind: uart
//	    device: /dev/ttyUSB0
//	    baud: 115200
//	    rx_buffer: 2048
//	  - name: remote
//	    kind: socket
//	    host: 127.0.0.1
//	    port: 5000
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidDefinition = errors.New("config: invalid terminal definition")
	ErrDuplicateName     = errors.New("config: duplicate terminal name")
)

// Kind selects the transport of a terminal definition.
type Kind string

const (
	KindUART     Kind = "uart"
	KindSocket   Kind = "socket"
	KindLoopback Kind = "loopback"
)

// Socket modes.
const (
	ModeDial   = "dial"
	ModeListen = "listen"
)

// File is the root of a configuration file.
type File struct {
	Terminals []Definition `yaml:"terminals"`
}

// Definition describes one terminal.
type Definition struct {
	Name         string        `yaml:"name"`
	Kind         Kind          `yaml:"kind"`
	RxBuffer     int           `yaml:"rx_buffer,omitempty"`
	CloseTimeout time.Duration `yaml:"close_timeout,omitempty"`
	Trace        bool          `yaml:"trace,omitempty"`

	// uart
	Device   string `yaml:"device,omitempty"`
	Baud     int    `yaml:"baud,omitempty"`
	DataBits int    `yaml:"data_bits,omitempty"`
	Parity   string `yaml:"parity,omitempty"`
	StopBits int    `yaml:"stop_bits,omitempty"`
	Flow     string `yaml:"flow,omitempty"`

	// socket
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Mode     string `yaml:"mode,omitempty"`
	TxBuffer int    `yaml:"tx_buffer,omitempty"`

	// loopback
	Echo     bool `yaml:"echo,omitempty"`
	MaxWrite int  `yaml:"max_write,omitempty"`
}

// Load decodes and validates a configuration. Unknown keys are rejected.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}

		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// LoadFile loads the configuration file at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer fh.Close()

	return Load(fh)
}

// Validate checks every definition and the uniqueness of names.
func (f *File) Validate() error {
	seen := make(map[string]struct{}, len(f.Terminals))

	for i := range f.Terminals {
		def := &f.Terminals[i]
		if err := def.Validate(); err != nil {
			return err
		}

		if _, ok := seen[def.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, def.Name)
		}
		seen[def.Name] = struct{}{}
	}

	return nil
}

// Find returns the definition named name.
func (f *File) Find(name string) (Definition, bool) {
	for _, def := range f.Terminals {
		if def.Name == name {
			return def, true
		}
	}

	return Definition{}, false
}

// Validate checks the fields required by the definition's kind. Value ranges are
// checked by the transport options when the terminal is opened.
func (def *Definition) Validate() error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidDefinition)
	}

	switch def.Kind {
	case KindUART:
		if def.Device == "" {
			return fmt.Errorf("%w: %s: uart requires device", ErrInvalidDefinition, def.Name)
		}
	case KindSocket:
		if def.Port <= 0 {
			return fmt.Errorf("%w: %s: socket requires port", ErrInvalidDefinition, def.Name)
		}
		if def.Mode != "" && def.Mode != ModeDial && def.Mode != ModeListen {
			return fmt.Errorf("%w: %s: unknown socket mode %q", ErrInvalidDefinition, def.Name, def.Mode)
		}
	case KindLoopback:
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidDefinition, def.Name, def.Kind)
	}

	return nil
}
