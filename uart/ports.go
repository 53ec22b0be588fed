package uart

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s:%s]", p.Name, p.VID, p.PID)
	if p.Product != "" {
		fmt.Fprintf(&b, " %s", p.Product)
	}
	if p.Serial != "" {
		fmt.Fprintf(&b, " (%s)", p.Serial)
	}
	return b.String()
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     strings.ToUpper(d.VID),
			PID:     strings.ToUpper(d.PID),
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}
