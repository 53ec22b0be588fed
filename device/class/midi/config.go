package midi

import (
	"fmt"

	"github.com/ardnew/midilink/pkg"
)

// Config describes the USB identity and endpoints of a MIDI adapter.
type Config struct {
	VendorID      uint16
	ProductID     uint16
	DeviceVersion uint16 // BCD
	Manufacturer  string
	Product       string
	Serial        string // empty for no serial number string

	OutEndpoint   uint8  // host-to-device endpoint address
	InEndpoint    uint8  // device-to-host endpoint address
	MaxPacketSize uint16 // wMaxPacketSize of both endpoints
	Interval      uint8  // bInterval of both endpoints
	MaxPower      uint8  // bMaxPower in 2 mA units
}

// DefaultConfig returns the identity of the USB-MIDI Link adapter: a
// shared V-USB MIDI vendor and product ID, a bus-powered 100 mA
// configuration and a pair of 8-byte interrupt endpoints.
func DefaultConfig() Config {
	return Config{
		VendorID:      0x16C0,
		ProductID:     0x05E4,
		DeviceVersion: 0x0100,
		Manufacturer:  "morecat_lab",
		Product:       "USB-MIDI Link",
		OutEndpoint:   DefaultOutEndpoint,
		InEndpoint:    DefaultInEndpoint,
		MaxPacketSize: DefaultMaxPacketSize,
		Interval:      DefaultInterval,
		MaxPower:      50,
	}
}

// Validate checks the endpoint layout.
func (c Config) Validate() error {
	switch {
	case c.OutEndpoint&0x80 != 0 || c.OutEndpoint&0x0F == 0:
		return fmt.Errorf("out endpoint 0x%02X: %w", c.OutEndpoint, pkg.ErrInvalidEndpoint)
	case c.InEndpoint&0x80 == 0 || c.InEndpoint&0x0F == 0:
		return fmt.Errorf("in endpoint 0x%02X: %w", c.InEndpoint, pkg.ErrInvalidEndpoint)
	case c.MaxPacketSize < 4 || c.MaxPacketSize > 64:
		return fmt.Errorf("max packet size %d: %w", c.MaxPacketSize, pkg.ErrInvalidParameter)
	}
	return nil
}
