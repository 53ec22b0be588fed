package bridge

// Assembler groups serial bytes into frames. Every fourth byte completes a
// frame, which is staged into the output buffer. There is no
// resynchronization: if a byte is lost on the line, every later frame is
// shifted until the peer realigns.
type Assembler struct {
	out     *FrameBuffer
	staging Frame
	count   int
}

// NewAssembler returns an assembler that stages completed frames into out.
func NewAssembler(out *FrameBuffer) *Assembler {
	return &Assembler{out: out}
}

// Feed appends b to the frame under construction. It returns true when b
// completed a frame.
func (a *Assembler) Feed(b byte) bool {
	a.staging[a.count] = b
	a.count++
	if a.count < FrameSize {
		return false
	}
	a.out.Stage(a.staging)
	a.count = 0
	return true
}

// Pending returns how many bytes of the next frame have been received.
func (a *Assembler) Pending() int {
	return a.count
}

// Reset discards a partially received frame.
func (a *Assembler) Reset() {
	a.count = 0
}
