// Package loopback provides an in-memory terminal.Terminal that simulates a transport.
//
// It is meant for testing DTE implementations and the terminal contract itself:
// received bytes and faults are injected with Inject and InjectError, the far end of
// the wire is observed with Written, and transport limits such as a small receive
// buffer or a transport accepting only a few bytes per attempt are configurable.
//
// Pair creates two cross-connected terminals, where bytes written to one are received
// by the other.
package loopback
