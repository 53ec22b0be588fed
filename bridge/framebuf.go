package bridge

import "github.com/ardnew/midilink/pkg/syncutil"

// FrameBuffer holds the most recent complete serial frame until the
// interrupt IN endpoint can take it. It has room for exactly one frame.
type FrameBuffer struct {
	mutex      syncutil.Mutex
	frame      Frame
	ready      bool
	overwrites uint64
}

// Stage stores f and marks it ready, replacing any frame not yet taken.
func (fb *FrameBuffer) Stage(f Frame) {
	fb.mutex.Lock()
	if fb.ready {
		fb.overwrites++
	}
	fb.frame = f
	fb.ready = true
	fb.mutex.Unlock()
}

// TryTake returns the staged frame and clears the ready flag. It returns
// false when no frame is pending.
func (fb *FrameBuffer) TryTake() (Frame, bool) {
	fb.mutex.Lock()
	defer fb.mutex.Unlock()
	if !fb.ready {
		return Frame{}, false
	}
	fb.ready = false
	return fb.frame, true
}

// Ready reports whether a frame is pending.
func (fb *FrameBuffer) Ready() bool {
	fb.mutex.Lock()
	defer fb.mutex.Unlock()
	return fb.ready
}

// Overwrites returns the number of frames replaced before being taken.
func (fb *FrameBuffer) Overwrites() uint64 {
	fb.mutex.Lock()
	defer fb.mutex.Unlock()
	return fb.overwrites
}
