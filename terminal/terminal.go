package terminal

// ReadFunc is invoked with received bytes. data is only valid during the call.
// Returning true tells the terminal the bytes were consumed and may be discarded;
// false keeps them buffered for Read and later notifications.
type ReadFunc func(data []byte) bool

// ErrorFunc is invoked with each detected fault.
type ErrorFunc func(err Error)

// Terminal is the contract between a DTE and a communication channel.
//
// SetReadCb, SetErrorCb, Write, Read, Start, Stop and Close are meant to be called by
// the single owning DTE. Callbacks run on the terminal's dispatcher goroutine, one at a
// time, and may call back into the terminal, including Stop.
type Terminal interface {
	// SetErrorCb registers the error callback, replacing any previous one.
	// A nil callback clears the slot.
	SetErrorCb(cb ErrorFunc)
	// SetReadCb registers the read callback, replacing any previous one.
	// A nil callback clears the slot and leaves received bytes to Read.
	SetReadCb(cb ReadFunc)
	// Write makes one non-blocking attempt to send data and returns the number of
	// bytes accepted. A short count with a nil error is a partial write.
	Write(data []byte) (int, error)
	// Read copies up to len(buf) buffered bytes into buf without waiting.
	Read(buf []byte) (int, error)
	// Start arms event delivery. Calling it while active is a no-op.
	Start()
	// Stop disarms event delivery. Calling it while not active is a no-op.
	Stop()
	// Close stops the terminal, drains in-flight callbacks and releases the transport.
	Close() error
	// State returns the current lifecycle state.
	State() State
}

// Writer is the write half of a Terminal.
type Writer interface {
	Write(data []byte) (int, error)
}
