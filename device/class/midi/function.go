package midi

import (
	"github.com/ardnew/midilink/device"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// Function implements the USB MIDI 1.0 class driver for a simple adapter
// with one cable in each direction. It owns the Audio Control and MIDI
// Streaming interfaces.
type Function struct {
	cfg Config

	mutex     syncutil.RWMutex
	control   *device.Interface
	streaming *device.Interface
	out       *device.Endpoint
	in        *device.Endpoint

	responseBuf [classResponseSize]byte
}

// NewFunction creates a class driver for cfg.
func NewFunction(cfg Config) *Function {
	return &Function{cfg: cfg}
}

// Config returns the configuration of the function.
func (f *Function) Config() Config {
	return f.cfg
}

// ConfigureDevice adds the Audio Control and MIDI Streaming interfaces to
// the current configuration of builder.
func (f *Function) ConfigureDevice(builder *device.DeviceBuilder) *device.DeviceBuilder {
	jacks := []marshaler{
		&InJackDescriptor{JackType: JackEmbedded, ID: JackEmbeddedIn},
		&InJackDescriptor{JackType: JackExternal, ID: JackExternalIn},
		&OutJackDescriptor{
			JackType: JackEmbedded,
			ID:       JackEmbeddedOut,
			Sources:  []JackSource{{ID: JackExternalIn, Pin: 1}},
		},
		&OutJackDescriptor{
			JackType: JackExternal,
			ID:       JackExternalOut,
			Sources:  []JackSource{{ID: JackEmbeddedIn, Pin: 1}},
		},
	}
	outClass := concat(&EndpointDescriptor{Jacks: []uint8{JackEmbeddedIn}})
	inClass := concat(&EndpointDescriptor{Jacks: []uint8{JackEmbeddedOut}})
	jackBytes := concat(jacks...)

	// The MS header length spans everything up to the end of the
	// interface, endpoints included.
	total := MSHeaderDescriptorSize + len(jackBytes) +
		2*device.AudioEndpointDescriptorSize + len(outClass) + len(inClass)
	header := concat(&MSHeaderDescriptor{MSC: MSCVersion, TotalLength: uint16(total)})

	return builder.
		AddInterface(device.ClassAudio, SubclassAudioControl, 0).
		WithClassDescriptor(concat(&ACHeaderDescriptor{ADC: ADCVersion, Interfaces: []uint8{1}})).
		AddInterface(device.ClassAudio, SubclassMIDIStreaming, 0).
		WithClassDescriptor(append(header, jackBytes...)).
		AddAudioEndpoint(f.cfg.OutEndpoint, device.EndpointTypeInterrupt, f.cfg.MaxPacketSize, f.cfg.Interval, outClass).
		AddAudioEndpoint(f.cfg.InEndpoint, device.EndpointTypeInterrupt, f.cfg.MaxPacketSize, f.cfg.Interval, inClass)
}

// AttachToInterfaces binds the function to the Audio Control and MIDI
// Streaming interfaces of configuration configValue.
func (f *Function) AttachToInterfaces(dev *device.Device, configValue uint8) error {
	config := dev.GetConfiguration(configValue)
	if config == nil {
		return pkg.ErrInvalidRequest
	}
	var bound int
	for _, iface := range config.Interfaces() {
		if iface.Class != device.ClassAudio {
			continue
		}
		if err := iface.SetClassDriver(f); err != nil {
			return err
		}
		bound++
	}
	if bound != 2 || f.Streaming() == nil {
		return pkg.ErrInvalidRequest
	}
	return nil
}

// Init records the interface and its endpoints.
func (f *Function) Init(iface *device.Interface) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	switch iface.SubClass {
	case SubclassAudioControl:
		f.control = iface
	case SubclassMIDIStreaming:
		f.streaming = iface
		f.out = iface.GetEndpoint(f.cfg.OutEndpoint)
		f.in = iface.GetEndpoint(f.cfg.InEndpoint)
		if f.out == nil || f.in == nil {
			return pkg.ErrInvalidEndpoint
		}
	default:
		return pkg.ErrNotSupported
	}
	pkg.LogDebug(pkg.ComponentMIDI, "midi interface bound",
		"interface", iface.Number,
		"subclass", iface.SubClass)
	return nil
}

// HandleSetup accepts every class request. The adapter has no controls,
// so host-to-device data is discarded.
func (f *Function) HandleSetup(iface *device.Interface, setup *device.SetupPacket, data []byte) (bool, error) {
	pkg.LogDebug(pkg.ComponentMIDI, "class request",
		"interface", iface.Number,
		"request", setup.Request,
		"length", len(data))
	return true, nil
}

// ClassResponse answers device-to-host class requests with zeros.
func (f *Function) ClassResponse(*device.Interface, *device.SetupPacket) []byte {
	clear(f.responseBuf[:])
	return f.responseBuf[:]
}

// SetAlternate accepts only the default setting.
func (f *Function) SetAlternate(_ *device.Interface, alt uint8) error {
	if alt != 0 {
		return pkg.ErrNotSupported
	}
	return nil
}

// Close unbinds the function.
func (f *Function) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.control, f.streaming, f.out, f.in = nil, nil, nil, nil
	return nil
}

// Streaming returns the bound MIDI Streaming interface, or nil.
func (f *Function) Streaming() *device.Interface {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.streaming
}

// NewDevice builds a complete MIDI adapter from cfg and binds a new
// Function to it.
func NewDevice(cfg Config) (*device.Device, *Function, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	f := NewFunction(cfg)
	builder := device.NewDeviceBuilder().
		WithDescriptor(device.DeviceDescriptor{
			USBVersion:     0x0110,
			DeviceClass:    device.ClassPerInterface,
			MaxPacketSize0: 8,
			VendorID:       cfg.VendorID,
			ProductID:      cfg.ProductID,
			DeviceVersion:  cfg.DeviceVersion,
		}).
		WithStrings(cfg.Manufacturer, cfg.Product, cfg.Serial).
		AddConfiguration(1).
		WithPower(0, cfg.MaxPower)
	dev, err := f.ConfigureDevice(builder).Build()
	if err != nil {
		return nil, nil, err
	}
	if err := f.AttachToInterfaces(dev, 1); err != nil {
		return nil, nil, err
	}
	return dev, f, nil
}

var (
	_ device.ClassDriver    = (*Function)(nil)
	_ device.ClassResponder = (*Function)(nil)
)
