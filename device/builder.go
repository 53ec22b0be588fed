package device

import (
	"errors"

	"github.com/ardnew/midilink/pkg"
)

// DeviceBuilder assembles a device, its configurations, interfaces and
// endpoints. Errors are collected and reported by Build.
type DeviceBuilder struct {
	device *Device
	config *Configuration
	iface  *Interface
	errs   []error
}

// NewDeviceBuilder creates a new device builder.
func NewDeviceBuilder() *DeviceBuilder {
	return &DeviceBuilder{}
}

func (b *DeviceBuilder) fail(err error) *DeviceBuilder {
	b.errs = append(b.errs, err)
	return b
}

// WithDescriptor sets the device descriptor.
func (b *DeviceBuilder) WithDescriptor(desc DeviceDescriptor) *DeviceBuilder {
	b.device = NewDevice(desc)
	return b
}

// WithVendorProduct sets vendor and product IDs, creating a USB 1.1
// device with an 8-byte control endpoint if no descriptor was given.
func (b *DeviceBuilder) WithVendorProduct(vendorID, productID uint16) *DeviceBuilder {
	if b.device == nil {
		b.device = NewDevice(DeviceDescriptor{
			USBVersion:     0x0110,
			MaxPacketSize0: 8,
		})
	}
	b.device.Descriptor.VendorID = vendorID
	b.device.Descriptor.ProductID = productID
	return b
}

// WithStrings sets the manufacturer, product and serial strings at
// indices 1, 2 and 3. Empty strings are left out and their index is zero.
func (b *DeviceBuilder) WithStrings(manufacturer, product, serial string) *DeviceBuilder {
	if b.device == nil {
		return b.fail(pkg.ErrInvalidState)
	}
	lang := make([]byte, 4)
	b.device.SetString(0, lang[:LanguageDescriptorTo(lang, LangIDUSEnglish)])
	for idx, s := range [...]string{manufacturer, product, serial} {
		index := uint8(idx + 1)
		if s == "" {
			continue
		}
		if !b.setString(index, s) {
			return b.fail(pkg.ErrBufferTooSmall)
		}
		switch index {
		case 1:
			b.device.Descriptor.ManufacturerIndex = index
		case 2:
			b.device.Descriptor.ProductIndex = index
		case 3:
			b.device.Descriptor.SerialNumberIndex = index
		}
	}
	return b
}

func (b *DeviceBuilder) setString(index uint8, s string) bool {
	buf := make([]byte, 2+2*126)
	n := StringDescriptorTo(buf, s)
	if n == 0 {
		return false
	}
	b.device.SetString(index, buf[:n])
	return true
}

// AddConfiguration starts a new configuration.
func (b *DeviceBuilder) AddConfiguration(value uint8) *DeviceBuilder {
	if b.device == nil {
		return b.fail(pkg.ErrInvalidState)
	}
	b.config = NewConfiguration(value)
	b.iface = nil
	if err := b.device.AddConfiguration(b.config); err != nil {
		return b.fail(err)
	}
	return b
}

// WithPower sets the attributes and bMaxPower of the current configuration.
func (b *DeviceBuilder) WithPower(attributes, maxPower uint8) *DeviceBuilder {
	if b.config == nil {
		return b.fail(pkg.ErrInvalidState)
	}
	b.config.Attributes = attributes | ConfigAttrBusPowered
	b.config.MaxPower = maxPower
	return b
}

// AddInterface starts a new interface in the current configuration,
// numbered after the interfaces already present.
func (b *DeviceBuilder) AddInterface(class, subClass, protocol uint8) *DeviceBuilder {
	if b.config == nil {
		return b.fail(pkg.ErrInvalidState)
	}
	b.iface = &Interface{
		Number:   uint8(len(b.config.Interfaces())),
		Class:    class,
		SubClass: subClass,
		Protocol: protocol,
	}
	if err := b.config.AddInterface(b.iface); err != nil {
		return b.fail(err)
	}
	return b
}

// WithClassDescriptor appends class-specific descriptors to the current
// interface.
func (b *DeviceBuilder) WithClassDescriptor(data []byte) *DeviceBuilder {
	if b.iface == nil {
		return b.fail(pkg.ErrInvalidState)
	}
	b.iface.ClassDescriptors = append(b.iface.ClassDescriptors, data...)
	return b
}

// AddEndpoint adds a standard endpoint to the current interface.
func (b *DeviceBuilder) AddEndpoint(address, transferType uint8, maxPacketSize uint16, interval uint8) *DeviceBuilder {
	return b.addEndpoint(&Endpoint{
		Address:       address,
		Attributes:    transferType,
		MaxPacketSize: maxPacketSize,
		Interval:      interval,
	})
}

// AddAudioEndpoint adds an audio class endpoint, described with the 9-byte
// layout and followed by its class-specific descriptors.
func (b *DeviceBuilder) AddAudioEndpoint(address, transferType uint8, maxPacketSize uint16, interval uint8, classDesc []byte) *DeviceBuilder {
	return b.addEndpoint(&Endpoint{
		Address:          address,
		Attributes:       transferType,
		MaxPacketSize:    maxPacketSize,
		Interval:         interval,
		Audio:            true,
		ClassDescriptors: classDesc,
	})
}

func (b *DeviceBuilder) addEndpoint(ep *Endpoint) *DeviceBuilder {
	if b.iface == nil {
		return b.fail(pkg.ErrInvalidState)
	}
	if ep.Number() == 0 || ep.Number() > MaxEndpointNumber {
		return b.fail(pkg.ErrInvalidEndpoint)
	}
	if err := b.iface.AddEndpoint(ep); err != nil {
		return b.fail(err)
	}
	return b
}

// Build returns the constructed device.
func (b *DeviceBuilder) Build() (*Device, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if b.device == nil {
		return nil, pkg.ErrInvalidState
	}
	return b.device, nil
}
