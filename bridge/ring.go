package bridge

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/midilink/pkg"
)

// Ring is a fixed-capacity byte queue between the USB write callback and
// the UART transmitter.
//
// The capacity is a power of two so cursors wrap with a mask. Both cursors
// run freely and are only reduced modulo the capacity when indexing, which
// keeps a full ring distinguishable from an empty one. Each cursor is a
// single atomic word with one writer in the common case: Push owns the write
// cursor and Pop owns the read cursor. The exception is Push on a full ring,
// which advances the read cursor to drop the oldest byte; both sides use
// compare-and-swap on the read cursor so that case never loses a cursor
// update.
type Ring struct {
	buf  []byte
	mask uint32

	write atomic.Uint32
	read  atomic.Uint32

	overwrites atomic.Uint64
}

// NewRing allocates a ring holding size bytes. Size must be a power of two.
func NewRing(size int) (*Ring, error) {
	if size < 2 || size&(size-1) != 0 || size > 1<<30 {
		return nil, fmt.Errorf("ring size %d: %w", size, pkg.ErrRingSize)
	}
	return &Ring{
		buf:  make([]byte, size),
		mask: uint32(size - 1),
	}, nil
}

// Push appends b. A full ring drops its oldest byte to make room.
func (r *Ring) Push(b byte) {
	w := r.write.Load()
	for {
		rd := r.read.Load()
		if w-rd <= r.mask {
			break
		}
		if r.read.CompareAndSwap(rd, rd+1) {
			r.overwrites.Add(1)
			break
		}
	}
	r.buf[w&r.mask] = b
	r.write.Store(w + 1)
}

// Pop removes and returns the oldest byte. It returns false when the ring
// is empty.
func (r *Ring) Pop() (byte, bool) {
	for {
		rd := r.read.Load()
		if rd == r.write.Load() {
			return 0, false
		}
		b := r.buf[rd&r.mask]
		if r.read.CompareAndSwap(rd, rd+1) {
			return b, true
		}
	}
}

// Len returns the number of unread bytes.
func (r *Ring) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Free returns the number of bytes that can be pushed before the oldest
// byte is overwritten.
func (r *Ring) Free() int {
	return r.Cap() - r.Len()
}

// Overwrites returns the number of bytes dropped because the ring was full.
func (r *Ring) Overwrites() uint64 {
	return r.overwrites.Load()
}

// Reset empties the ring. It must not race with Push or Pop.
func (r *Ring) Reset() {
	r.read.Store(r.write.Load())
}
