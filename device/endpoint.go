package device

import (
	"fmt"

	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// Endpoint transfer types.
const (
	EndpointTypeControl     = 0x00
	EndpointTypeIsochronous = 0x01
	EndpointTypeBulk        = 0x02
	EndpointTypeInterrupt   = 0x03
)

// Endpoint directions.
const (
	EndpointDirectionOut = 0x00 // Host to device
	EndpointDirectionIn  = 0x80 // Device to host
)

// Endpoint represents a USB endpoint and the descriptors that follow it.
type Endpoint struct {
	Address       uint8  // Endpoint address including direction
	Attributes    uint8  // Transfer type
	MaxPacketSize uint16 // Maximum packet size
	Interval      uint8  // Polling interval

	// Audio selects the 9-byte endpoint descriptor layout.
	Audio        bool
	Refresh      uint8
	SynchAddress uint8

	// ClassDescriptors are emitted verbatim after the endpoint descriptor.
	ClassDescriptors []byte

	mutex   syncutil.Mutex
	stalled bool
}

// Number returns the endpoint number (0-15).
func (e *Endpoint) Number() uint8 {
	return e.Address & 0x0F
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e *Endpoint) IsIn() bool {
	return e.Address&EndpointDirectionIn != 0
}

// TransferType returns the transfer type.
func (e *Endpoint) TransferType() uint8 {
	return e.Attributes & 0x03
}

// SetStall sets or clears the halt condition.
func (e *Endpoint) SetStall(stalled bool) {
	e.mutex.Lock()
	e.stalled = stalled
	e.mutex.Unlock()
	pkg.LogDebug(pkg.ComponentEndpoint, "endpoint halt changed",
		"address", fmt.Sprintf("0x%02X", e.Address),
		"halted", stalled)
}

// IsStalled returns true if the endpoint is halted.
func (e *Endpoint) IsStalled() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.stalled
}

// Descriptor returns the endpoint descriptor.
func (e *Endpoint) Descriptor() EndpointDescriptor {
	return EndpointDescriptor{
		EndpointAddress: e.Address,
		Attributes:      e.Attributes,
		MaxPacketSize:   e.MaxPacketSize,
		Interval:        e.Interval,
		Audio:           e.Audio,
		Refresh:         e.Refresh,
		SynchAddress:    e.SynchAddress,
	}
}

// size returns the number of bytes MarshalTo writes.
func (e *Endpoint) size() int {
	d := e.Descriptor()
	return d.Size() + len(e.ClassDescriptors)
}

// MarshalTo writes the endpoint descriptor and its class-specific
// descriptors to buf. It returns 0 if buf is too small.
func (e *Endpoint) MarshalTo(buf []byte) int {
	if len(buf) < e.size() {
		return 0
	}
	d := e.Descriptor()
	n := d.MarshalTo(buf)
	n += copy(buf[n:], e.ClassDescriptors)
	return n
}

// TransferTypeName returns a human-readable transfer type name.
func TransferTypeName(t uint8) string {
	switch t & 0x03 {
	case EndpointTypeControl:
		return "Control"
	case EndpointTypeIsochronous:
		return "Isochronous"
	case EndpointTypeBulk:
		return "Bulk"
	default:
		return "Interrupt"
	}
}
