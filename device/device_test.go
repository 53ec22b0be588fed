package device

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardnew/midilink/pkg"
)

// testDevice builds a vendor device with one interrupt endpoint pair.
func testDevice(t *testing.T) *Device {
	t.Helper()
	dev, err := NewDeviceBuilder().
		WithVendorProduct(0x1234, 0x5678).
		WithStrings("Maker", "Widget", "").
		AddConfiguration(1).
		AddInterface(ClassVendor, 0, 0).
		AddEndpoint(0x01, EndpointTypeInterrupt, 8, 10).
		AddEndpoint(0x81, EndpointTypeInterrupt, 8, 10).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return dev
}

// configure walks dev through enumeration.
func configure(t *testing.T, dev *Device) {
	t.Helper()
	dev.Attach()
	dev.Reset()
	if err := dev.SetAddress(5); err != nil {
		t.Fatalf("SetAddress() error = %v", err)
	}
	if err := dev.SetConfiguration(1); err != nil {
		t.Fatalf("SetConfiguration() error = %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateAttached, "Attached"},
		{StatePowered, "Powered"},
		{StateDefault, "Default"},
		{StateAddress, "Address"},
		{StateConfigured, "Configured"},
		{State(99), "Unknown State (99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestDeviceBuilder(t *testing.T) {
	dev := testDevice(t)

	desc := dev.Descriptor
	if desc.VendorID != 0x1234 || desc.ProductID != 0x5678 {
		t.Errorf("IDs = %04X:%04X", desc.VendorID, desc.ProductID)
	}
	if desc.USBVersion != 0x0110 || desc.MaxPacketSize0 != 8 {
		t.Errorf("USBVersion = %04X, MaxPacketSize0 = %d", desc.USBVersion, desc.MaxPacketSize0)
	}
	if desc.ManufacturerIndex != 1 || desc.ProductIndex != 2 || desc.SerialNumberIndex != 0 {
		t.Errorf("string indices = %d/%d/%d", desc.ManufacturerIndex, desc.ProductIndex, desc.SerialNumberIndex)
	}
	if desc.NumConfigurations != 1 {
		t.Errorf("NumConfigurations = %d, want 1", desc.NumConfigurations)
	}

	if lang := dev.GetString(0); !bytes.Equal(lang, []byte{0x04, 0x03, 0x09, 0x04}) {
		t.Errorf("language descriptor = % X", lang)
	}
	product, err := ParseStringDescriptor(dev.GetString(2))
	if err != nil || product != "Widget" {
		t.Errorf("product string = %q, %v", product, err)
	}
	if dev.GetString(3) != nil {
		t.Error("empty serial string was stored")
	}

	config := dev.ConfigurationAt(0)
	if config == nil {
		t.Fatal("ConfigurationAt(0) = nil")
	}
	if got := len(config.Endpoints()); got != 2 {
		t.Errorf("Endpoints() = %d, want 2", got)
	}
}

func TestDeviceBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*Device, error)
		want  error
	}{
		{
			name: "no descriptor",
			build: func() (*Device, error) {
				return NewDeviceBuilder().AddConfiguration(1).Build()
			},
			want: pkg.ErrInvalidState,
		},
		{
			name: "endpoint without interface",
			build: func() (*Device, error) {
				return NewDeviceBuilder().
					WithVendorProduct(1, 2).
					AddConfiguration(1).
					AddEndpoint(0x81, EndpointTypeBulk, 64, 0).
					Build()
			},
			want: pkg.ErrInvalidState,
		},
		{
			name: "endpoint zero",
			build: func() (*Device, error) {
				return NewDeviceBuilder().
					WithVendorProduct(1, 2).
					AddConfiguration(1).
					AddInterface(ClassVendor, 0, 0).
					AddEndpoint(0x80, EndpointTypeBulk, 64, 0).
					Build()
			},
			want: pkg.ErrInvalidEndpoint,
		},
		{
			name: "duplicate endpoint",
			build: func() (*Device, error) {
				return NewDeviceBuilder().
					WithVendorProduct(1, 2).
					AddConfiguration(1).
					AddInterface(ClassVendor, 0, 0).
					AddEndpoint(0x81, EndpointTypeBulk, 64, 0).
					AddEndpoint(0x81, EndpointTypeBulk, 64, 0).
					Build()
			},
			want: pkg.ErrInvalidEndpoint,
		},
		{
			name: "duplicate configuration",
			build: func() (*Device, error) {
				return NewDeviceBuilder().
					WithVendorProduct(1, 2).
					AddConfiguration(1).
					AddConfiguration(1).
					Build()
			},
			want: pkg.ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := tt.build()
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
			if dev != nil {
				t.Error("Build() returned a device with an error")
			}
		})
	}
}

func TestDevice_StateMachine(t *testing.T) {
	dev := testDevice(t)

	var transitions []State
	dev.SetOnStateChange(func(_, to State) {
		transitions = append(transitions, to)
	})
	var configured uint8
	dev.SetOnSetConfiguration(func(value uint8) {
		configured = value
	})
	resets := 0
	dev.SetOnReset(func() { resets++ })

	if err := dev.SetAddress(1); !errors.Is(err, pkg.ErrInvalidState) {
		t.Errorf("SetAddress() before reset error = %v, want ErrInvalidState", err)
	}
	if err := dev.SetConfiguration(1); !errors.Is(err, pkg.ErrInvalidState) {
		t.Errorf("SetConfiguration() before address error = %v, want ErrInvalidState", err)
	}

	configure(t, dev)
	if !dev.IsConfigured() || dev.Address() != 5 || configured != 1 {
		t.Errorf("state = %v, address = %d, configured = %d", dev.State(), dev.Address(), configured)
	}
	if dev.GetEndpoint(0x81) == nil || dev.GetInterface(0) == nil {
		t.Error("active configuration does not expose its endpoints")
	}
	if err := dev.SetConfiguration(9); !errors.Is(err, pkg.ErrInvalidRequest) {
		t.Errorf("SetConfiguration(9) error = %v, want ErrInvalidRequest", err)
	}

	if err := dev.SetConfiguration(0); err != nil {
		t.Fatalf("SetConfiguration(0) error = %v", err)
	}
	if dev.State() != StateAddress || dev.ActiveConfiguration() != nil {
		t.Errorf("after deconfigure state = %v", dev.State())
	}

	dev.Reset()
	if dev.State() != StateDefault || dev.Address() != 0 || resets != 2 {
		t.Errorf("after reset state = %v, address = %d, resets = %d", dev.State(), dev.Address(), resets)
	}

	want := []State{StatePowered, StateDefault, StateAddress, StateConfigured, StateAddress, StateDefault}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestDevice_Status(t *testing.T) {
	dev := testDevice(t)
	configure(t, dev)

	if got := dev.Status(); got != 0 {
		t.Errorf("Status() = %d, want 0", got)
	}
	dev.EnableRemoteWakeup(true)
	if got := dev.Status(); got != 2 {
		t.Errorf("Status() with wakeup = %d, want 2", got)
	}
	dev.ActiveConfiguration().Attributes |= ConfigAttrSelfPowered
	if got := dev.Status(); got != 3 {
		t.Errorf("Status() self-powered = %d, want 3", got)
	}
}

func TestEndpoint(t *testing.T) {
	ep := &Endpoint{Address: 0x83, Attributes: EndpointTypeInterrupt, MaxPacketSize: 8}
	if ep.Number() != 3 || !ep.IsIn() || ep.TransferType() != EndpointTypeInterrupt {
		t.Errorf("Number = %d, IsIn = %v, TransferType = %d", ep.Number(), ep.IsIn(), ep.TransferType())
	}

	ep.SetStall(true)
	if !ep.IsStalled() {
		t.Error("IsStalled() = false after SetStall(true)")
	}
	ep.SetStall(false)
	if ep.IsStalled() {
		t.Error("IsStalled() = true after SetStall(false)")
	}

	names := map[uint8]string{
		EndpointTypeControl:     "Control",
		EndpointTypeIsochronous: "Isochronous",
		EndpointTypeBulk:        "Bulk",
		EndpointTypeInterrupt:   "Interrupt",
	}
	for typ, want := range names {
		if got := TransferTypeName(typ); got != want {
			t.Errorf("TransferTypeName(%d) = %q, want %q", typ, got, want)
		}
	}
}

func TestEndpoint_MarshalTo(t *testing.T) {
	ep := &Endpoint{
		Address:          0x01,
		Attributes:       EndpointTypeInterrupt,
		MaxPacketSize:    8,
		Interval:         10,
		Audio:            true,
		ClassDescriptors: []byte{0x05, 0x25, 0x01, 0x01, 0x01},
	}
	want := []byte{
		0x09, 0x05, 0x01, 0x03, 0x08, 0x00, 0x0A, 0x00, 0x00,
		0x05, 0x25, 0x01, 0x01, 0x01,
	}
	buf := make([]byte, 32)
	n := ep.MarshalTo(buf)
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("MarshalTo() = % X, want % X", buf[:n], want)
	}
	if n := ep.MarshalTo(buf[:10]); n != 0 {
		t.Errorf("MarshalTo(short) = %d, want 0", n)
	}
}

func TestConfiguration_MarshalTo(t *testing.T) {
	config := NewConfiguration(1)
	iface := &Interface{
		Number:           0,
		Class:            ClassAudio,
		SubClass:         1,
		ClassDescriptors: []byte{0x03, 0x24, 0x01},
	}
	if err := iface.AddEndpoint(&Endpoint{Address: 0x81, Attributes: EndpointTypeInterrupt, MaxPacketSize: 8, Interval: 10}); err != nil {
		t.Fatal(err)
	}
	if err := config.AddInterface(iface); err != nil {
		t.Fatal(err)
	}
	if err := config.AddInterface(&Interface{Number: 0}); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("duplicate AddInterface() error = %v", err)
	}

	want := []byte{
		0x09, 0x02, 0x1C, 0x00, 0x01, 0x01, 0x00, 0x80, 0x32,
		0x09, 0x04, 0x00, 0x00, 0x01, 0x01, 0x01, 0x00, 0x00,
		0x03, 0x24, 0x01,
		0x07, 0x05, 0x81, 0x03, 0x08, 0x00, 0x0A,
	}
	if got := config.TotalLength(); got != len(want) {
		t.Errorf("TotalLength() = %d, want %d", got, len(want))
	}
	buf := make([]byte, 64)
	n := config.MarshalTo(buf)
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("MarshalTo() =\n% X\nwant\n% X", buf[:n], want)
	}
}

type recordingDriver struct {
	inits, closes int
	alt           uint8
	handled       []uint8
}

func (d *recordingDriver) Init(*Interface) error { d.inits++; return nil }

func (d *recordingDriver) HandleSetup(_ *Interface, setup *SetupPacket, _ []byte) (bool, error) {
	d.handled = append(d.handled, setup.Request)
	return setup.Request == 0x01, nil
}

func (d *recordingDriver) SetAlternate(_ *Interface, alt uint8) error { d.alt = alt; return nil }

func (d *recordingDriver) Close() error { d.closes++; return nil }

func TestInterface_ClassDriver(t *testing.T) {
	iface := &Interface{Number: 1}
	if handled, err := iface.HandleSetup(&SetupPacket{}, nil); handled || err != nil {
		t.Errorf("HandleSetup() without driver = %v, %v", handled, err)
	}

	first := &recordingDriver{}
	if err := iface.SetClassDriver(first); err != nil {
		t.Fatal(err)
	}
	if first.inits != 1 || iface.ClassDriver() != first {
		t.Error("driver not bound")
	}

	handled, err := iface.HandleSetup(&SetupPacket{Request: 0x01}, nil)
	if !handled || err != nil {
		t.Errorf("HandleSetup() = %v, %v", handled, err)
	}
	if err := iface.SetAlternate(2); err != nil || first.alt != 2 || iface.AlternateSetting != 2 {
		t.Errorf("SetAlternate() = %v, driver alt = %d", err, first.alt)
	}

	second := &recordingDriver{}
	if err := iface.SetClassDriver(second); err != nil {
		t.Fatal(err)
	}
	if first.closes != 1 {
		t.Error("previous driver was not closed")
	}
	if err := iface.Close(); err != nil || second.closes != 1 || iface.ClassDriver() != nil {
		t.Error("Close() did not release the driver")
	}
}
