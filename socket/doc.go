// Package socket implements terminal.Terminal over a stream connection (net.Conn),
// typically TCP to a serial device server or a modem emulator.
//
// # Receive path
//
// While the terminal is active a reader goroutine reads the connection and hands the
// bytes to the shared terminal core. Stop wakes the reader with a past read deadline;
// bytes it picked up during that race are kept and delivered first after the next
// Start, so no received byte is lost across a restart.
//
// # Transmit path
//
// Write copies into a bounded transmit buffer and returns immediately; a writer
// goroutine flushes the buffer to the connection. When the buffer is full, Write
// accepts only the free space (a partial write). With WithBaudRate the accepted rate
// is additionally paced like a serial line of that speed.
//
// # Errors
//
//   - read or write failure (EOF, reset): terminal.DeviceGone, later writes fail
//   - flushing stalls longer than the send timeout because the peer does not
//     read: terminal.UnexpectedControlFlow, flushing continues
package socket
