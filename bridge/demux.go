package bridge

import (
	"sync/atomic"

	"github.com/ardnew/midilink/pkg"
)

// Demux splits host-to-device USB packets into frames and queues them for
// the UART.
type Demux struct {
	ring *Ring

	frames    atomic.Uint64
	discarded atomic.Uint64
}

// NewDemux returns a demultiplexer feeding ring.
func NewDemux(ring *Ring) *Demux {
	return &Demux{ring: ring}
}

// Write pushes every complete 4-byte group of data into the ring, in order,
// and returns the number of frames queued. A trailing fragment shorter than
// a frame is discarded.
func (d *Demux) Write(data []byte) int {
	n := 0
	for len(data) >= FrameSize {
		for _, b := range data[:FrameSize] {
			d.ring.Push(b)
		}
		data = data[FrameSize:]
		n++
	}
	d.frames.Add(uint64(n))

	if len(data) > 0 {
		d.discarded.Add(uint64(len(data)))
		pkg.LogDebug(pkg.ComponentBridge, "discarding packet fragment",
			"bytes", len(data))
	}
	return n
}

// Frames returns the number of frames queued since creation.
func (d *Demux) Frames() uint64 {
	return d.frames.Load()
}

// Discarded returns the number of trailing fragment bytes dropped.
func (d *Demux) Discarded() uint64 {
	return d.discarded.Load()
}
