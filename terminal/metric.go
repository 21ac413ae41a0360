package terminal

import "sync/atomic"

// Metrics contains atomic counters for a terminal.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// RxBytes is the number of received bytes accepted into the receive buffer.
	RxBytes atomic.Uint64
	// RxDropped is the number of received bytes dropped on overflow or while inactive.
	RxDropped atomic.Uint64
	// TxBytes is the number of bytes accepted by Write.
	TxBytes atomic.Uint64
	// PartialWrites is the number of Write calls that accepted fewer bytes than offered.
	PartialWrites atomic.Uint64
	// ReadNotifyCount is the number of read callback invocations.
	ReadNotifyCount atomic.Uint64
	// ErrorNotifyCount is the number of error callback invocations.
	ErrorNotifyCount atomic.Uint64
	// DiscardedEvents is the number of notifications dropped because the terminal was
	// stopped or restarted before they were dispatched, or no callback was registered.
	DiscardedEvents atomic.Uint64
	// CallbackPanics is the number of callbacks that panicked.
	CallbackPanics atomic.Uint64
}

// CountWrite records the outcome of one Write attempt.
func (m *Metrics) CountWrite(accepted, requested int) {
	if accepted > 0 {
		m.TxBytes.Add(uint64(accepted))
	}
	if accepted < requested {
		m.PartialWrites.Add(1)
	}
}
