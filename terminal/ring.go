package terminal

// ring is a bounded FIFO byte buffer. Bytes are addressed by monotonically increasing
// stream offsets so that a consumer can discard exactly what it saw even if another
// consumer drained part of it meanwhile.
//
// ring is not goroutine-safe.
type ring struct {
	buf  []byte
	head uint64 // stream offset of the oldest buffered byte
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]byte, capacity)}
}

func (r *ring) Len() int  { return r.size }
func (r *ring) Cap() int  { return len(r.buf) }
func (r *ring) Free() int { return len(r.buf) - r.size }

// Write appends as much of p as fits and returns the number of bytes stored.
func (r *ring) Write(p []byte) int {
	n := min(len(p), r.Free())
	if n == 0 {
		return 0
	}

	start := (r.index(r.head) + r.size) % len(r.buf)
	copied := copy(r.buf[start:], p[:n])
	copy(r.buf, p[copied:n])
	r.size += n

	return n
}

// Read moves up to len(p) bytes into p.
func (r *ring) Read(p []byte) int {
	n := r.peek(p)
	r.consume(n)

	return n
}

// Snapshot appends all buffered bytes to dst and returns the stream offset of the
// first byte along with the extended slice.
func (r *ring) Snapshot(dst []byte) (uint64, []byte) {
	if cap(dst)-len(dst) < r.size {
		grown := make([]byte, len(dst), len(dst)+r.size)
		copy(grown, dst)
		dst = grown
	}
	out := dst[len(dst) : len(dst)+r.size]
	r.peek(out)

	return r.head, dst[:len(dst)+r.size]
}

// DiscardTo drops buffered bytes whose stream offset is below off.
func (r *ring) DiscardTo(off uint64) {
	if off <= r.head {
		return
	}
	r.consume(int(min(off-r.head, uint64(r.size))))
}

// Reset drops every buffered byte.
func (r *ring) Reset() {
	r.consume(r.size)
}

func (r *ring) peek(p []byte) int {
	n := min(len(p), r.size)
	if n == 0 {
		return 0
	}

	start := r.index(r.head)
	copied := copy(p[:n], r.buf[start:])
	copy(p[copied:n], r.buf)

	return n
}

func (r *ring) consume(n int) {
	r.head += uint64(n)
	r.size -= n
}

func (r *ring) index(off uint64) int {
	return int(off % uint64(len(r.buf)))
}
