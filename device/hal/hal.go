package hal

import "context"

// Speed represents the USB connection speed.
type Speed uint8

// USB speed constants.
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	default:
		return "Unknown"
	}
}

// EndpointConfig describes a data endpoint of the active configuration.
type EndpointConfig struct {
	Address       uint8  // Endpoint address including direction bit
	Attributes    uint8  // Transfer type
	MaxPacketSize uint16 // Maximum packet size
	Interval      uint8  // Polling interval in frames
}

// Number returns the endpoint number (0-15).
func (e *EndpointConfig) Number() uint8 {
	return e.Address & 0x0F
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e *EndpointConfig) IsIn() bool {
	return e.Address&0x80 != 0
}

// SetupSize is the size of a raw SETUP packet.
const SetupSize = 8

// DeviceHAL is the hardware interface of a poll-driven USB device stack.
//
// No method blocks waiting for the host. Each Poll method reports whether
// it produced anything, and IN transfers are offered only when the
// controller reports the endpoint ready. This matches controllers that are
// serviced from a main loop rather than from interrupts or goroutines.
type DeviceHAL interface {
	// Init prepares the controller. The context bounds initialization only.
	Init(ctx context.Context) error

	// Start attaches to the bus.
	Start() error

	// Stop detaches from the bus and releases the controller.
	Stop() error

	// SetAddress applies the address assigned by the host. It is called
	// after the status stage of SET_ADDRESS.
	SetAddress(address uint8) error

	// ConfigureEndpoints activates the data endpoints of the selected
	// configuration. An empty slice deconfigures them.
	ConfigureEndpoints(endpoints []EndpointConfig) error

	// PollSetup returns the next SETUP packet, if any, in setup and copies
	// the data stage of a host-to-device request into data. It returns
	// pkg.ErrReset when the host reset the port.
	PollSetup(setup *[SetupSize]byte, data []byte) (n int, ok bool, err error)

	// WriteEP0 answers a device-to-host control request.
	WriteEP0(data []byte) error

	// StallEP0 rejects the current control request.
	StallEP0() error

	// AckEP0 completes a host-to-device control request.
	AckEP0() error

	// PollOut copies the next packet received on an OUT endpoint into buf.
	PollOut(address uint8, buf []byte) (n int, ok bool, err error)

	// InReady reports whether an IN endpoint can accept another packet,
	// meaning the host has collected the previous one.
	InReady(address uint8) bool

	// WriteIn queues one packet on an IN endpoint. It returns pkg.ErrBusy
	// if the endpoint is not ready.
	WriteIn(address uint8, data []byte) error

	// IsConnected returns true if the device is attached to a host.
	IsConnected() bool

	// GetSpeed returns the bus speed.
	GetSpeed() Speed
}
