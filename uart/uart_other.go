//go:build !linux

package uart

import (
	"fmt"

	"github.com/arloliu/go-terminal/terminal"
)

// Terminal is a terminal.Terminal on a tty device. It cannot be opened on this platform.
type Terminal struct {
	*terminal.Core
}

// Open returns ErrUnsupported.
func Open(cfg *Config) (*Terminal, error) {
	if cfg == nil {
		return nil, ErrUnsupported
	}

	return nil, fmt.Errorf("uart: open %s: %w", cfg.Device(), ErrUnsupported)
}

// Write fails with terminal.ErrIO.
func (t *Terminal) Write([]byte) (int, error) {
	return 0, fmt.Errorf("uart: write: %w", terminal.ErrIO)
}
