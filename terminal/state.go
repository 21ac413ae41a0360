package terminal

import "sync/atomic"

// State is the lifecycle state of a terminal.
type State uint32

const (
	Constructed State = iota
	Active
	Stopped
	Closed
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "Constructed"
	case Active:
		return "Active"
	case Stopped:
		return "Stopped"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// AtomicState holds a State with atomic transitions.
type AtomicState struct {
	state atomic.Uint32
}

func (st *AtomicState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicState) Get() State {
	return State(st.state.Load())
}

func (st *AtomicState) IsActive() bool {
	return st.Get() == Active
}

func (st *AtomicState) IsClosed() bool {
	return st.Get() == Closed
}

// ToActive moves Constructed or Stopped to Active. It returns false if the state was
// already Active or is Closed.
func (st *AtomicState) ToActive() bool {
	if st.state.CompareAndSwap(uint32(Constructed), uint32(Active)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(Stopped), uint32(Active))
}

// ToStopped moves Active to Stopped. It returns false for any other state.
func (st *AtomicState) ToStopped() bool {
	return st.state.CompareAndSwap(uint32(Active), uint32(Stopped))
}

// ToClosed moves any state to Closed and returns the previous state.
func (st *AtomicState) ToClosed() State {
	return State(st.state.Swap(uint32(Closed)))
}
