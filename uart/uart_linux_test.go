package uart

import (
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/arloliu/go-terminal/logger"
	"github.com/arloliu/go-terminal/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPtyTerminal opens a terminal on the slave side of a pseudo terminal and returns
// the master side, which plays the remote device.
func newPtyTerminal(t *testing.T, opts ...Option) (*Terminal, *os.File) {
	t.Helper()

	master, slave, err := pty.Open()
	require.NoError(t, err)

	defaults := []Option{
		WithPollInterval(5 * time.Millisecond),
		WithTerminalOptions(
			terminal.WithLogger(logger.NewMockLogger().AllowAll()),
			terminal.WithCloseTimeout(time.Second),
		),
	}

	cfg, err := NewConfig(slave.Name(), append(defaults, opts...)...)
	require.NoError(t, err)

	term, err := Open(cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = term.Close()
		_ = slave.Close()
		_ = master.Close()
	})

	return term, master
}

type collector struct {
	mu   sync.Mutex
	data []byte
	errs []terminal.Error
}

func (c *collector) onRead(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = append(c.data, data...)

	return true
}

func (c *collector) onError(e terminal.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errs = append(c.errs, e)
}

func (c *collector) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.data...)
}

func (c *collector) hasError(e terminal.Error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, got := range c.errs {
		if got == e {
			return true
		}
	}

	return false
}

func TestUART_ReadCallback(t *testing.T) {
	term, master := newPtyTerminal(t)
	col := &collector{}
	term.SetReadCb(col.onRead)
	term.Start()

	_, err := master.Write([]byte("RING\r\n+CLIP: \"123\"\r\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return string(col.bytes()) == "RING\r\n+CLIP: \"123\"\r\n"
	}, time.Second, time.Millisecond)
}

func TestUART_WriteReachesDevice(t *testing.T) {
	term, master := newPtyTerminal(t)
	term.Start()

	n, err := term.Write([]byte("AT+CSQ\r"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	got := make([]byte, 7)
	_, err = io.ReadFull(master, got)
	require.NoError(t, err)
	assert.Equal(t, "AT+CSQ\r", string(got), "raw mode must not translate CR")
}

func TestUART_ReadWhileStoppedKeepsBytesOnDevice(t *testing.T) {
	term, master := newPtyTerminal(t)
	col := &collector{}
	term.SetReadCb(col.onRead)

	term.Start()
	term.Stop()

	_, err := master.Write([]byte("OK\r\n"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, col.bytes())

	term.Start()
	assert.Eventually(t, func() bool { return string(col.bytes()) == "OK\r\n" }, time.Second, time.Millisecond)
}

func TestUART_EscapedMarkByteWithParity(t *testing.T) {
	term, master := newPtyTerminal(t, WithParity(ParityEven))
	col := &collector{}
	term.SetReadCb(col.onRead)
	term.Start()

	// the line discipline doubles 0xFF when PARMRK is set
	_, err := master.Write([]byte{0x10, 0xFF, 0x20})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return string(col.bytes()) == string([]byte{0x10, 0xFF, 0x20})
	}, time.Second, time.Millisecond)
}

func TestUART_HangupReportsDeviceGone(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer slave.Close()

	cfg, err := NewConfig(slave.Name(),
		WithPollInterval(5*time.Millisecond),
		WithTerminalOptions(terminal.WithLogger(logger.NewMockLogger().AllowAll())),
	)
	require.NoError(t, err)

	term, err := Open(cfg)
	require.NoError(t, err)
	defer term.Close()

	col := &collector{}
	term.SetErrorCb(col.onError)
	term.Start()

	require.NoError(t, master.Close())

	assert.Eventually(t, func() bool { return col.hasError(terminal.DeviceGone) }, time.Second, time.Millisecond)

	n, err := term.Write([]byte("AT\r"))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, terminal.ErrDeviceGone)
}

func TestUART_LineSettings(t *testing.T) {
	term, _ := newPtyTerminal(t,
		WithBaudRate(9600),
		WithDataBits(7),
		WithParity(ParityOdd),
		WithStopBits(2),
		WithFlowControl(FlowSoftware),
	)

	term.fdMu.RLock()
	tio, err := unix.IoctlGetTermios(term.fd, unix.TCGETS)
	term.fdMu.RUnlock()
	require.NoError(t, err)

	// a pty forces CS8 and no parity, only the line discipline flags are kept
	assert.NotZero(t, tio.Iflag&unix.IXON)
	assert.NotZero(t, tio.Iflag&unix.PARMRK)
	assert.Zero(t, tio.Iflag&unix.ICRNL)
	assert.Zero(t, tio.Lflag&unix.ICANON)
	assert.Zero(t, tio.Lflag&unix.ECHO)
	assert.Zero(t, tio.Oflag&unix.OPOST)
}

func TestBuildTermios(t *testing.T) {
	base := unix.Termios{
		Iflag: unix.ICRNL | unix.IXANY,
		Oflag: unix.OPOST,
		Lflag: unix.ICANON | unix.ECHO,
		Cflag: unix.CS8 | unix.PARENB | unix.CRTSCTS,
	}

	tests := []struct {
		name  string
		opts  []Option
		check func(t *testing.T, tio unix.Termios)
	}{
		{
			name: "7O2 software flow",
			opts: []Option{WithBaudRate(9600), WithDataBits(7), WithParity(ParityOdd), WithStopBits(2), WithFlowControl(FlowSoftware)},
			check: func(t *testing.T, tio unix.Termios) {
				assert.Equal(t, uint32(unix.CS7), tio.Cflag&unix.CSIZE)
				assert.NotZero(t, tio.Cflag&unix.PARENB)
				assert.NotZero(t, tio.Cflag&unix.PARODD)
				assert.NotZero(t, tio.Cflag&unix.CSTOPB)
				assert.Zero(t, tio.Cflag&unix.CRTSCTS)
				assert.NotZero(t, tio.Iflag&(unix.IXON|unix.IXOFF))
				assert.NotZero(t, tio.Iflag&(unix.INPCK|unix.PARMRK))
				assert.Equal(t, uint32(unix.B9600), tio.Cflag&unix.CBAUD)
				assert.Equal(t, uint32(unix.B9600), tio.Ispeed)
			},
		},
		{
			name: "8E1 hardware flow",
			opts: []Option{WithParity(ParityEven), WithFlowControl(FlowHardware)},
			check: func(t *testing.T, tio unix.Termios) {
				assert.Equal(t, uint32(unix.CS8), tio.Cflag&unix.CSIZE)
				assert.NotZero(t, tio.Cflag&unix.PARENB)
				assert.Zero(t, tio.Cflag&unix.PARODD)
				assert.Zero(t, tio.Cflag&unix.CSTOPB)
				assert.NotZero(t, tio.Cflag&unix.CRTSCTS)
				assert.Zero(t, tio.Iflag&unix.IXON)
				assert.Equal(t, uint32(unix.B115200), tio.Ospeed)
			},
		},
		{
			name: "8N1 raw",
			check: func(t *testing.T, tio unix.Termios) {
				assert.Zero(t, tio.Cflag&unix.PARENB)
				assert.Zero(t, tio.Iflag&(unix.INPCK|unix.PARMRK|unix.ICRNL|unix.IXANY))
				assert.Zero(t, tio.Lflag&(unix.ICANON|unix.ECHO))
				assert.Zero(t, tio.Oflag&unix.OPOST)
				assert.NotZero(t, tio.Cflag&(unix.CREAD|unix.CLOCAL))
				assert.Zero(t, tio.Cc[unix.VMIN])
				assert.Zero(t, tio.Cc[unix.VTIME])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig("/dev/ttyS0", tt.opts...)
			require.NoError(t, err)

			tio, err := buildTermios(base, cfg)
			require.NoError(t, err)
			tt.check(t, tio)
		})
	}
}

func TestUART_Close(t *testing.T) {
	term, _ := newPtyTerminal(t)
	term.Start()

	require.NoError(t, term.Close())
	require.NoError(t, term.Close())
	assert.Equal(t, terminal.Closed, term.State())

	n, err := term.Write([]byte("x"))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, terminal.ErrClosed)
}

func TestUART_OpenMissingDevice(t *testing.T) {
	cfg, err := NewConfig("/dev/does-not-exist-uart")
	require.NoError(t, err)

	_, err = Open(cfg)
	assert.Error(t, err)
}
