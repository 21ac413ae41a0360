// Package uart implements terminal.Terminal on a tty device such as /dev/ttyUSB0.
//
// The device is opened non-blocking and switched to raw mode. A reader task polls the
// file descriptor and feeds received bytes to the terminal core; Write performs a single
// non-blocking write and reports backpressure as a partial write.
//
// With parity enabled the line discipline marks bytes received with a parity or framing
// error. Those bytes are removed from the stream and reported as terminal.ChecksumError.
//
// Only Linux is supported; on other platforms Open returns ErrUnsupported.
//
// Example:
//
//	cfg, err := uart.NewConfig("/dev/ttyUSB0", uart.WithBaudRate(115200))
//	if err != nil {
//	    return err
//	}
//	term, err := uart.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer term.Close()
//
//	term.SetReadCb(func(data []byte) bool {
//	    fmt.Printf("rx: %q\n", data)
//	    return true
//	})
//	term.Start()
package uart
