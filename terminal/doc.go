// Package terminal defines the duplex byte-stream contract that every communication
// channel (UART, socket, loopback, proxy) satisfies to serve as the transport beneath
// a protocol engine (the DTE).
//
// # Contract
//
// A [Terminal] owns exactly two callback slots: a [ReadFunc] invoked when received
// bytes are available and an [ErrorFunc] invoked when the transport detects one of the
// four [Error] kinds. Registering a callback replaces the previous one.
//
// Write and Read never wait for I/O completion. Write returns the number of bytes
// accepted, a short count being backpressure that the caller retries (see [WriteAll]).
// A non-nil error from Write is a definitive failure wrapping [ErrDeviceGone],
// [ErrClosed] or [ErrIO]. Read drains already received bytes; 0 means nothing is
// buffered right now.
//
// # Lifecycle
//
//	Constructed --Start--> Active --Stop--> Stopped --Start--> Active
//	     any   --Close--> Closed
//
// Callbacks fire only while Active. Once Stop returns no new callback invocation
// begins; Close additionally waits for in-flight invocations and transport goroutines
// before releasing resources.
//
// # Implementing a transport
//
// Transports embed a [*Core], created with [NewCore], and feed it from their own
// goroutines with [Core.Deliver] and [Core.Report]. The Core queues notifications on
// a lock-free channel drained by a single dispatcher goroutine, which keeps wire order
// and decouples transport goroutines from slow callbacks.
package terminal
