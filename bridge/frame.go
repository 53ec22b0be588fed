package bridge

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/ardnew/midilink/pkg"
)

// FrameSize is the size of a USB-MIDI event packet.
const FrameSize = 4

// Frame is a 4-byte USB-MIDI event packet. Byte 0 holds the cable number
// (high nibble) and code index number (low nibble); bytes 1-3 hold the MIDI
// message padded with zeros.
//
// The bridge treats frames as opaque. The accessors exist for logging and
// for building frames from MIDI messages.
type Frame [FrameSize]byte

// codeIndexLength maps a code index number to the number of MIDI bytes it
// carries. Zero marks the reserved codes.
var codeIndexLength = [16]uint8{
	0x0: 0, // reserved for miscellaneous function codes
	0x1: 0, // reserved for cable events
	0x2: 2, // two-byte system common
	0x3: 3, // three-byte system common
	0x4: 3, // SysEx start or continue
	0x5: 1, // single-byte system common or SysEx end
	0x6: 2, // SysEx ends with two bytes
	0x7: 3, // SysEx ends with three bytes
	0x8: 3, // note off
	0x9: 3, // note on
	0xA: 3, // poly key pressure
	0xB: 3, // control change
	0xC: 2, // program change
	0xD: 2, // channel pressure
	0xE: 3, // pitch bend
	0xF: 1, // single byte
}

// Cable returns the virtual cable number.
func (f Frame) Cable() uint8 {
	return f[0] >> 4
}

// CodeIndex returns the code index number.
func (f Frame) CodeIndex() uint8 {
	return f[0] & 0x0F
}

// Len returns the number of MIDI bytes the frame carries.
func (f Frame) Len() int {
	return int(codeIndexLength[f.CodeIndex()])
}

// Message returns a copy of the MIDI bytes carried by the frame.
func (f Frame) Message() midi.Message {
	n := f.Len()
	msg := make(midi.Message, n)
	copy(msg, f[1:1+n])
	return msg
}

// String renders the raw bytes followed by the decoded MIDI message.
func (f Frame) String() string {
	if f.Len() == 0 {
		return fmt.Sprintf("[% X] cable=%d", f[:], f.Cable())
	}
	return fmt.Sprintf("[% X] cable=%d %s", f[:], f.Cable(), f.Message().String())
}

// NewFrame wraps a complete MIDI message in a USB-MIDI event packet for the
// given cable. SysEx is not supported.
func NewFrame(cable uint8, msg []byte) (Frame, error) {
	var f Frame
	if cable > 0x0F {
		return f, fmt.Errorf("cable %d: %w", cable, pkg.ErrInvalidParameter)
	}
	if len(msg) == 0 || len(msg) > FrameSize-1 {
		return f, fmt.Errorf("message length %d: %w", len(msg), pkg.ErrInvalidParameter)
	}

	status := msg[0]
	var cin uint8
	switch {
	case status < 0x80:
		return f, fmt.Errorf("status byte %#02x: %w", status, pkg.ErrInvalidParameter)
	case status < 0xF0:
		cin = status >> 4
	case status == 0xF0, status == 0xF7:
		return f, fmt.Errorf("system exclusive: %w", pkg.ErrNotSupported)
	case status == 0xF1, status == 0xF3:
		cin = 0x2
	case status == 0xF2:
		cin = 0x3
	case status == 0xF6:
		cin = 0x5
	default:
		cin = 0xF
	}

	if int(codeIndexLength[cin]) != len(msg) {
		return f, fmt.Errorf("status %#02x expects %d bytes, got %d: %w",
			status, codeIndexLength[cin], len(msg), pkg.ErrInvalidParameter)
	}

	f[0] = cable<<4 | cin
	copy(f[1:], msg)
	return f, nil
}
