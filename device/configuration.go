package device

import (
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// Configuration represents a USB device configuration.
type Configuration struct {
	Value       uint8 // Value for SET_CONFIGURATION
	Attributes  uint8 // Bus/self powered, remote wakeup
	MaxPower    uint8 // Maximum power consumption (2mA units)
	StringIndex uint8 // String descriptor index

	interfaces     [MaxInterfacesPerConfiguration]*Interface
	interfaceCount int
	mutex          syncutil.RWMutex
}

// NewConfiguration creates a bus-powered configuration drawing 100mA.
func NewConfiguration(value uint8) *Configuration {
	return &Configuration{
		Value:      value,
		Attributes: ConfigAttrBusPowered,
		MaxPower:   50,
	}
}

// AddInterface appends an interface.
func (c *Configuration) AddInterface(iface *Interface) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.interfaceCount >= MaxInterfacesPerConfiguration {
		return pkg.ErrInvalidParameter
	}
	for idx := 0; idx < c.interfaceCount; idx++ {
		if c.interfaces[idx].Number == iface.Number {
			return pkg.ErrInvalidParameter
		}
	}
	c.interfaces[c.interfaceCount] = iface
	c.interfaceCount++
	return nil
}

// GetInterface returns the interface with the given number, or nil.
func (c *Configuration) GetInterface(number uint8) *Interface {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for idx := 0; idx < c.interfaceCount; idx++ {
		if c.interfaces[idx].Number == number {
			return c.interfaces[idx]
		}
	}
	return nil
}

// Interfaces returns the interfaces of the configuration. The returned
// slice references internal storage.
func (c *Configuration) Interfaces() []*Interface {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.interfaces[:c.interfaceCount]
}

// Endpoints returns every data endpoint of the configuration.
func (c *Configuration) Endpoints() []*Endpoint {
	var eps []*Endpoint
	for _, iface := range c.Interfaces() {
		eps = append(eps, iface.Endpoints()...)
	}
	return eps
}

// TotalLength returns the size of the full configuration bundle.
func (c *Configuration) TotalLength() int {
	n := ConfigurationDescriptorSize
	for _, iface := range c.Interfaces() {
		n += iface.size()
	}
	return n
}

// Descriptor returns the configuration descriptor.
func (c *Configuration) Descriptor() ConfigurationDescriptor {
	return ConfigurationDescriptor{
		TotalLength:        uint16(c.TotalLength()),
		NumInterfaces:      uint8(len(c.Interfaces())),
		ConfigurationValue: c.Value,
		ConfigurationIndex: c.StringIndex,
		Attributes:         c.Attributes,
		MaxPower:           c.MaxPower,
	}
}

// MarshalTo writes the configuration descriptor followed by every
// interface, class-specific and endpoint descriptor. It returns 0 if buf
// is too small.
func (c *Configuration) MarshalTo(buf []byte) int {
	if len(buf) < c.TotalLength() {
		return 0
	}
	desc := c.Descriptor()
	n := desc.MarshalTo(buf)
	for _, iface := range c.Interfaces() {
		n += iface.MarshalTo(buf[n:])
	}
	return n
}

// Close releases every interface's class driver.
func (c *Configuration) Close() error {
	var lastErr error
	for _, iface := range c.Interfaces() {
		if err := iface.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
