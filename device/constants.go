package device

import "fmt"

// Limits for the fixed-size tables of a device.
const (
	// MaxEndpointsPerInterface is the maximum number of endpoints per interface.
	MaxEndpointsPerInterface = 8

	// MaxInterfacesPerConfiguration is the maximum number of interfaces per configuration.
	MaxInterfacesPerConfiguration = 4

	// MaxConfigurations is the maximum number of configurations per device.
	MaxConfigurations = 2

	// MaxStrings is the maximum number of string descriptors per device.
	MaxStrings = 8

	// MaxEndpointNumber is the highest data endpoint number.
	MaxEndpointNumber = 15
)

// Device states (USB 2.0 section 9.1).
const (
	StateAttached   State = 0 // Attached but not powered
	StatePowered    State = 1 // Powered
	StateDefault    State = 2 // Reset, using the default address
	StateAddress    State = 3 // Unique address assigned
	StateConfigured State = 4 // Configured and operational
)

// State represents USB device state.
type State uint8

// String returns a human-readable state description.
func (s State) String() string {
	switch s {
	case StateAttached:
		return "Attached"
	case StatePowered:
		return "Powered"
	case StateDefault:
		return "Default"
	case StateAddress:
		return "Address"
	case StateConfigured:
		return "Configured"
	default:
		return fmt.Sprintf("Unknown State (%d)", s)
	}
}
