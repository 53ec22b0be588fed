package midi

import (
	"encoding/binary"

	"github.com/ardnew/midilink/device"
)

// ACHeaderDescriptor is the class-specific Audio Control interface header.
type ACHeaderDescriptor struct {
	ADC        uint16  // Audio class release (BCD)
	Interfaces []uint8 // Streaming interfaces in the collection
}

// Size returns the encoded size.
func (d *ACHeaderDescriptor) Size() int {
	return 8 + len(d.Interfaces)
}

// MarshalTo serializes the descriptor to buf and returns the number of
// bytes written, or 0 if buf is too small. wTotalLength covers only the
// header, since the adapter has no audio units.
func (d *ACHeaderDescriptor) MarshalTo(buf []byte) int {
	size := d.Size()
	if len(buf) < size {
		return 0
	}
	buf[0] = uint8(size)
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeHeader
	binary.LittleEndian.PutUint16(buf[3:5], d.ADC)
	binary.LittleEndian.PutUint16(buf[5:7], uint16(size))
	buf[7] = uint8(len(d.Interfaces))
	copy(buf[8:], d.Interfaces)
	return size
}

// MSHeaderDescriptor is the class-specific MIDI Streaming interface header.
type MSHeaderDescriptor struct {
	MSC         uint16 // MIDI Streaming release (BCD)
	TotalLength uint16 // Header, jacks and endpoints
}

// MSHeaderDescriptorSize is the encoded size of MSHeaderDescriptor.
const MSHeaderDescriptorSize = 7

// MarshalTo serializes the descriptor to buf.
func (d *MSHeaderDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < MSHeaderDescriptorSize {
		return 0
	}
	buf[0] = MSHeaderDescriptorSize
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeHeader
	binary.LittleEndian.PutUint16(buf[3:5], d.MSC)
	binary.LittleEndian.PutUint16(buf[5:7], d.TotalLength)
	return MSHeaderDescriptorSize
}

// InJackDescriptor describes a MIDI IN jack.
type InJackDescriptor struct {
	JackType uint8
	ID       uint8
	String   uint8
}

// InJackDescriptorSize is the encoded size of InJackDescriptor.
const InJackDescriptorSize = 6

// MarshalTo serializes the descriptor to buf.
func (d *InJackDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < InJackDescriptorSize {
		return 0
	}
	buf[0] = InJackDescriptorSize
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeInJack
	buf[3] = d.JackType
	buf[4] = d.ID
	buf[5] = d.String
	return InJackDescriptorSize
}

// JackSource is one input pin of an OUT jack.
type JackSource struct {
	ID  uint8 // Source jack
	Pin uint8 // Output pin of the source jack
}

// OutJackDescriptor describes a MIDI OUT jack.
type OutJackDescriptor struct {
	JackType uint8
	ID       uint8
	Sources  []JackSource
	String   uint8
}

// Size returns the encoded size.
func (d *OutJackDescriptor) Size() int {
	return 7 + 2*len(d.Sources)
}

// MarshalTo serializes the descriptor to buf.
func (d *OutJackDescriptor) MarshalTo(buf []byte) int {
	size := d.Size()
	if len(buf) < size {
		return 0
	}
	buf[0] = uint8(size)
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeOutJack
	buf[3] = d.JackType
	buf[4] = d.ID
	buf[5] = uint8(len(d.Sources))
	for i, src := range d.Sources {
		buf[6+2*i] = src.ID
		buf[7+2*i] = src.Pin
	}
	buf[size-1] = d.String
	return size
}

// EndpointDescriptor is the class-specific MIDI Streaming endpoint
// descriptor listing the embedded jacks bound to an endpoint.
type EndpointDescriptor struct {
	Jacks []uint8
}

// Size returns the encoded size.
func (d *EndpointDescriptor) Size() int {
	return 4 + len(d.Jacks)
}

// MarshalTo serializes the descriptor to buf.
func (d *EndpointDescriptor) MarshalTo(buf []byte) int {
	size := d.Size()
	if len(buf) < size {
		return 0
	}
	buf[0] = uint8(size)
	buf[1] = device.DescriptorTypeCSEndpoint
	buf[2] = SubtypeMSGeneral
	buf[3] = uint8(len(d.Jacks))
	copy(buf[4:], d.Jacks)
	return size
}

type marshaler interface {
	MarshalTo(buf []byte) int
}

// concat serializes descriptors back to back.
func concat(descs ...marshaler) []byte {
	var scratch [64]byte
	var out []byte
	for _, d := range descs {
		n := d.MarshalTo(scratch[:])
		out = append(out, scratch[:n]...)
	}
	return out
}
