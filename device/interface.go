package device

import (
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// ClassDriver handles the class-specific behavior of an interface.
type ClassDriver interface {
	// Init binds the driver to the interface.
	Init(iface *Interface) error

	// HandleSetup processes a class-specific SETUP request addressed to
	// the interface. It returns true if the request was handled.
	HandleSetup(iface *Interface, setup *SetupPacket, data []byte) (bool, error)

	// SetAlternate is called when the host selects an alternate setting.
	SetAlternate(iface *Interface, alt uint8) error

	// Close releases any resources held by the driver.
	Close() error
}

// ClassResponder is implemented by class drivers that return data for
// device-to-host class requests. Drivers without it answer with a
// zero-length data stage.
type ClassResponder interface {
	ClassResponse(iface *Interface, setup *SetupPacket) []byte
}

// Interface represents a USB interface within a configuration.
type Interface struct {
	Number           uint8 // Interface number
	AlternateSetting uint8 // Current alternate setting
	Class            uint8 // Interface class
	SubClass         uint8 // Interface subclass
	Protocol         uint8 // Interface protocol
	StringIndex      uint8 // String descriptor index

	// ClassDescriptors are emitted verbatim after the interface descriptor
	// and before the endpoints.
	ClassDescriptors []byte

	endpoints     [MaxEndpointsPerInterface]*Endpoint
	endpointCount int
	classDriver   ClassDriver
	mutex         syncutil.RWMutex
}

// AddEndpoint appends an endpoint. Endpoints are described in the order
// they are added.
func (i *Interface) AddEndpoint(ep *Endpoint) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.endpointCount >= MaxEndpointsPerInterface {
		return pkg.ErrInvalidParameter
	}
	for idx := 0; idx < i.endpointCount; idx++ {
		if i.endpoints[idx].Address == ep.Address {
			return pkg.ErrInvalidEndpoint
		}
	}
	i.endpoints[i.endpointCount] = ep
	i.endpointCount++

	pkg.LogDebug(pkg.ComponentDevice, "endpoint added",
		"interface", i.Number,
		"endpoint", ep.Address,
		"type", TransferTypeName(ep.TransferType()))
	return nil
}

// GetEndpoint returns the endpoint with the given address, or nil.
func (i *Interface) GetEndpoint(address uint8) *Endpoint {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	for idx := 0; idx < i.endpointCount; idx++ {
		if i.endpoints[idx].Address == address {
			return i.endpoints[idx]
		}
	}
	return nil
}

// Endpoints returns the endpoints of the interface. The returned slice
// references internal storage.
func (i *Interface) Endpoints() []*Endpoint {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.endpoints[:i.endpointCount]
}

// SetClassDriver binds driver to the interface, closing any previous one.
func (i *Interface) SetClassDriver(driver ClassDriver) error {
	i.mutex.Lock()
	old := i.classDriver
	i.classDriver = driver
	i.mutex.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			pkg.LogWarn(pkg.ComponentDevice, "error closing previous class driver", "error", err)
		}
	}
	// Init runs unlocked so the driver may call back into the interface.
	if driver != nil {
		return driver.Init(i)
	}
	return nil
}

// ClassDriver returns the bound class driver.
func (i *Interface) ClassDriver() ClassDriver {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.classDriver
}

// HandleSetup forwards a class request to the bound driver.
func (i *Interface) HandleSetup(setup *SetupPacket, data []byte) (bool, error) {
	driver := i.ClassDriver()
	if driver == nil {
		return false, nil
	}
	return driver.HandleSetup(i, setup, data)
}

// ClassResponse returns the data stage for a device-to-host class request
// the driver handled, truncated to wLength.
func (i *Interface) ClassResponse(setup *SetupPacket) []byte {
	responder, ok := i.ClassDriver().(ClassResponder)
	if !ok {
		return nil
	}
	resp := responder.ClassResponse(i, setup)
	if len(resp) > int(setup.Length) {
		resp = resp[:setup.Length]
	}
	return resp
}

// SetAlternate changes the alternate setting.
func (i *Interface) SetAlternate(alt uint8) error {
	i.mutex.Lock()
	i.AlternateSetting = alt
	driver := i.classDriver
	i.mutex.Unlock()

	if driver != nil {
		return driver.SetAlternate(i, alt)
	}
	return nil
}

// size returns the number of bytes MarshalTo writes.
func (i *Interface) size() int {
	n := InterfaceDescriptorSize + len(i.ClassDescriptors)
	for _, ep := range i.Endpoints() {
		n += ep.size()
	}
	return n
}

// MarshalTo writes the interface descriptor, its class-specific
// descriptors and every endpoint to buf. It returns 0 if buf is too small.
func (i *Interface) MarshalTo(buf []byte) int {
	if len(buf) < i.size() {
		return 0
	}
	i.mutex.RLock()
	desc := InterfaceDescriptor{
		InterfaceNumber:   i.Number,
		AlternateSetting:  i.AlternateSetting,
		NumEndpoints:      uint8(i.endpointCount),
		InterfaceClass:    i.Class,
		InterfaceSubClass: i.SubClass,
		InterfaceProtocol: i.Protocol,
		InterfaceIndex:    i.StringIndex,
	}
	i.mutex.RUnlock()

	n := desc.MarshalTo(buf)
	n += copy(buf[n:], i.ClassDescriptors)
	for _, ep := range i.Endpoints() {
		n += ep.MarshalTo(buf[n:])
	}
	return n
}

// Close releases the class driver.
func (i *Interface) Close() error {
	i.mutex.Lock()
	driver := i.classDriver
	i.classDriver = nil
	i.mutex.Unlock()

	if driver != nil {
		return driver.Close()
	}
	return nil
}
