package webserial

import "sync"

// readBuffer reconciles the granularity mismatch between transport chunks
// and caller reads: when a delivered chunk exceeds the requested length the
// excess is stashed here and drained, oldest first, by later reads.
//
// The buffer is a growable ring, so stash and take are O(1) amortized. It
// is unbounded; backpressure is the underlying transport's responsibility.
type readBuffer struct {
	mu   sync.Mutex
	buf  []byte
	head int
	size int
}

const readBufferMinCap = 512

// Stash appends p to the tail.
func (b *readBuffer) Stash(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.grow(b.size + len(p))
	tail := (b.head + b.size) % len(b.buf)
	n := copy(b.buf[tail:], p)
	copy(b.buf, p[n:])
	b.size += len(p)
}

// Take drains up to len(dst) buffered bytes into dst, oldest first, and
// returns the count.
func (b *readBuffer) Take(dst []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := len(dst)
	if want > b.size {
		want = b.size
	}
	if want == 0 {
		return 0
	}

	n := copy(dst[:want], b.buf[b.head:])
	copy(dst[n:want], b.buf)
	b.head = (b.head + want) % len(b.buf)
	b.size -= want
	if b.size == 0 {
		b.head = 0
	}
	return want
}

// Len returns the number of buffered bytes.
func (b *readBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Clear discards all buffered bytes.
func (b *readBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// grow ensures capacity for want bytes, re-linearizing on reallocation.
// Caller holds b.mu.
func (b *readBuffer) grow(want int) {
	if want <= len(b.buf) {
		return
	}
	newCap := len(b.buf) * 2
	if newCap < readBufferMinCap {
		newCap = readBufferMinCap
	}
	for newCap < want {
		newCap *= 2
	}
	// re-linearize: live bytes end up at offset 0 of the new ring
	next := make([]byte, newCap)
	n := copy(next, b.buf[b.head:])
	copy(next[n:], b.buf[:b.head])
	b.buf = next
	b.head = 0
}
