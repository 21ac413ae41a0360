package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/arloliu/go-terminal/internal/task"
	"github.com/arloliu/go-terminal/terminal"
)

var baudFlags = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

var dataBitFlags = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

// Terminal is a terminal.Terminal on a tty device.
type Terminal struct {
	*terminal.Core
	cfg *Config

	fdMu sync.RWMutex // guards fd against Close
	fd   int

	reader *task.Manager

	// owned by the reader goroutine
	decoder markDecoder
	carry   []byte
}

var _ terminal.Terminal = (*Terminal)(nil)

// Open opens and configures the device of cfg. The terminal starts in the Constructed
// state and must be released with Close.
func Open(cfg *Config) (*Terminal, error) {
	if cfg == nil {
		return nil, errors.New("uart: config is nil")
	}

	coreCfg, err := terminal.NewConfig(cfg.coreOpts...)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(cfg.device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", cfg.device, err)
	}

	if err := configure(fd, cfg); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	t := &Terminal{cfg: cfg, fd: fd}

	t.Core, err = terminal.NewCore(coreCfg, terminal.Hooks{
		OnStart: t.arm,
		OnStop:  t.disarm,
		OnClose: t.release,
	})
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	t.reader = task.NewManager(context.Background(), t.Logger().With("device", cfg.device))
	t.reader.Stop()

	t.Logger().Info("uart: opened", "line", cfg.String(), "flow", cfg.flow.String())

	return t, nil
}

// configure switches fd to raw mode with the line settings of cfg.
func configure(fd int, cfg *Config) error {
	cur, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("uart: get termios: %w", err)
	}

	tio, err := buildTermios(*cur, cfg)
	if err != nil {
		return err
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &tio); err != nil {
		return fmt.Errorf("uart: set termios: %w", err)
	}

	// drop whatever arrived before the line was configured
	_ = unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)

	return nil
}

// buildTermios returns base switched to raw mode with the line settings of cfg.
func buildTermios(base unix.Termios, cfg *Config) (unix.Termios, error) {
	tio := base

	speed, ok := baudFlags[cfg.baudRate]
	if !ok {
		return tio, fmt.Errorf("uart: unsupported baud rate %d", cfg.baudRate)
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR |
		unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK | unix.IGNPAR
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	tio.Cflag |= unix.CREAD | unix.CLOCAL | dataBitFlags[cfg.dataBits] | speed
	tio.Ispeed = speed
	tio.Ospeed = speed

	switch cfg.parity {
	case ParityOdd:
		tio.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		tio.Cflag |= unix.PARENB
	}
	if cfg.parity != ParityNone {
		tio.Iflag |= unix.INPCK | unix.PARMRK
	}

	if cfg.stopBits == 2 {
		tio.Cflag |= unix.CSTOPB
	}

	switch cfg.flow {
	case FlowHardware:
		tio.Cflag |= unix.CRTSCTS
	case FlowSoftware:
		tio.Iflag |= unix.IXON | unix.IXOFF
	}

	// non-blocking reads return whatever is available
	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = 0

	return tio, nil
}

// Write performs one non-blocking write. A full output queue yields a partial write.
func (t *Terminal) Write(data []byte) (int, error) {
	if err := t.Writable(); err != nil {
		return 0, fmt.Errorf("uart: write: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}

	t.fdMu.RLock()
	fd := t.fd
	if fd < 0 {
		t.fdMu.RUnlock()
		return 0, fmt.Errorf("uart: write: %w", terminal.ErrClosed)
	}
	n, err := unix.Write(fd, data)
	t.fdMu.RUnlock()

	if n < 0 {
		n = 0
	}

	switch {
	case err == nil:
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		err = nil
	case isGone(err):
		t.Logger().Warn("uart: device gone on write", "error", err)
		t.Report(terminal.DeviceGone)

		return 0, fmt.Errorf("uart: write: %w", errors.Join(terminal.ErrDeviceGone, err))
	default:
		return 0, fmt.Errorf("uart: write: %w", errors.Join(terminal.ErrIO, err))
	}

	t.Metrics().CountWrite(n, len(data))

	return n, nil
}

// Device returns the device path.
func (t *Terminal) Device() string {
	return t.cfg.device
}

// --- hooks ---

func (t *Terminal) arm() {
	t.reader.Reset()

	if err := t.reader.Go("uart-reader", t.readLoop); err != nil {
		t.Logger().Error("uart: failed to start reader", "error", err)
	}
}

func (t *Terminal) disarm() {
	t.reader.Stop()
	t.reader.Wait()
}

func (t *Terminal) release() error {
	t.reader.Stop()

	var err error
	if !t.reader.WaitTimeout(t.Config().CloseTimeout()) {
		err = terminal.ErrCloseTimeout
	}

	t.fdMu.Lock()
	if t.fd >= 0 {
		if cerr := unix.Close(t.fd); cerr != nil {
			err = errors.Join(err, cerr)
		}
		t.fd = -1
	}
	t.fdMu.Unlock()

	if err != nil {
		return fmt.Errorf("uart: close: %w", err)
	}

	return nil
}

// --- reader ---

func (t *Terminal) readLoop(ctx context.Context) {
	if len(t.carry) > 0 {
		if _, ok := t.TryDeliver(t.carry); ok {
			t.carry = t.carry[:0]
		}
	}

	raw := make([]byte, 256)
	out := make([]byte, 0, 256)
	timeout := int(t.cfg.pollInterval.Milliseconds())

	for ctx.Err() == nil {
		fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}

		_, err := unix.Poll(fds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			t.gone(err)

			return
		}

		revents := fds[0].Revents
		if revents&unix.POLLIN != 0 {
			if !t.drain(raw, out) {
				return
			}
		}

		if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			t.gone(fmt.Errorf("poll revents 0x%x", revents))
			return
		}
	}
}

// drain reads until the device has no more input. It returns false when the device
// is gone.
func (t *Terminal) drain(raw, out []byte) bool {
	for {
		n, err := unix.Read(t.fd, raw)
		if n > 0 {
			t.deliver(raw[:n], out)
		}

		switch {
		case err == nil && n > 0:
			continue
		case err == nil:
			// zero byte read on a tty without carrier
			t.gone(errors.New("end of file"))
			return false
		case errors.Is(err, unix.EAGAIN):
			return true
		case errors.Is(err, unix.EINTR):
			continue
		default:
			t.gone(err)
			return false
		}
	}
}

func (t *Terminal) deliver(raw, out []byte) {
	data := raw
	if t.cfg.parity != ParityNone {
		var faults int
		data, faults = t.decoder.decode(out[:0], raw)

		for i := 0; i < faults; i++ {
			t.Logger().Debug("uart: parity error")
			t.Report(terminal.ChecksumError)
		}
	}

	if len(data) == 0 {
		return
	}

	// bytes refused because Stop won the race are kept for the next Start
	if _, ok := t.TryDeliver(data); !ok {
		t.carry = append(t.carry, data...)
	}
}

func (t *Terminal) gone(err error) {
	t.Logger().Warn("uart: device gone", "error", err)
	t.Report(terminal.DeviceGone)
}

func isGone(err error) bool {
	return errors.Is(err, unix.EIO) || errors.Is(err, unix.ENXIO) ||
		errors.Is(err, unix.ENODEV) || errors.Is(err, unix.EBADF)
}
