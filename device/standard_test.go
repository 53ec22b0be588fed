package device

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardnew/midilink/pkg"
)

func TestStandardRequestHandler_Descriptors(t *testing.T) {
	dev := testDevice(t)
	h := NewStandardRequestHandler(dev)

	var devDesc [DeviceDescriptorSize]byte
	dev.Descriptor.MarshalTo(devDesc[:])
	configLen := dev.ConfigurationAt(0).TotalLength()

	tests := []struct {
		name    string
		setup   SetupPacket
		wantLen int
		prefix  []byte
		wantErr error
	}{
		{"device", GetDescriptorRequest(DescriptorTypeDevice, 0, 0, 64), DeviceDescriptorSize, devDesc[:], nil},
		{"device truncated", GetDescriptorRequest(DescriptorTypeDevice, 0, 0, 8), 8, devDesc[:8], nil},
		{"configuration header", GetDescriptorRequest(DescriptorTypeConfiguration, 0, 0, 9), 9, []byte{0x09, 0x02, byte(configLen)}, nil},
		{"configuration", GetDescriptorRequest(DescriptorTypeConfiguration, 0, 0, 255), configLen, nil, nil},
		{"missing configuration", GetDescriptorRequest(DescriptorTypeConfiguration, 1, 0, 255), 0, nil, pkg.ErrInvalidRequest},
		{"languages", GetDescriptorRequest(DescriptorTypeString, 0, 0, 255), 4, []byte{0x04, 0x03, 0x09, 0x04}, nil},
		{"manufacturer", GetDescriptorRequest(DescriptorTypeString, 1, LangIDUSEnglish, 255), 12, []byte{0x0C, 0x03, 'M', 0}, nil},
		{"missing string", GetDescriptorRequest(DescriptorTypeString, 5, LangIDUSEnglish, 255), 0, nil, pkg.ErrInvalidRequest},
		{"unsupported type", GetDescriptorRequest(0x06, 0, 0, 10), 0, nil, pkg.ErrNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.HandleSetup(&tt.setup)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("HandleSetup() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("HandleSetup() error = %v", err)
			}
			if len(resp) != tt.wantLen {
				t.Errorf("len(resp) = %d, want %d", len(resp), tt.wantLen)
			}
			if !bytes.HasPrefix(resp, tt.prefix) {
				t.Errorf("resp = % X, want prefix % X", resp, tt.prefix)
			}
		})
	}
}

func TestStandardRequestHandler_Enumeration(t *testing.T) {
	dev := testDevice(t)
	dev.Attach()
	dev.Reset()
	h := NewStandardRequestHandler(dev)

	steps := []SetupPacket{SetAddressRequest(9), SetConfigurationRequest(1)}
	for _, setup := range steps {
		if resp, err := h.HandleSetup(&setup); err != nil || resp != nil {
			t.Fatalf("HandleSetup(%s) = % X, %v", setup.String(), resp, err)
		}
	}
	if !dev.IsConfigured() || dev.Address() != 9 {
		t.Fatalf("state = %v, address = %d", dev.State(), dev.Address())
	}

	getConfig := SetupPacket{
		RequestType: RequestDirectionDeviceToHost,
		Request:     RequestGetConfiguration,
		Length:      1,
	}
	resp, err := h.HandleSetup(&getConfig)
	if err != nil || !bytes.Equal(resp, []byte{1}) {
		t.Errorf("GET_CONFIGURATION = % X, %v", resp, err)
	}

	status := GetStatusRequest(RequestRecipientDevice, 0)
	resp, err = h.HandleSetup(&status)
	if err != nil || !bytes.Equal(resp, []byte{0, 0}) {
		t.Errorf("GET_STATUS = % X, %v", resp, err)
	}

	wakeup := SetupPacket{Request: RequestSetFeature, Value: FeatureDeviceRemoteWakeup}
	if _, err := h.HandleSetup(&wakeup); err != nil {
		t.Fatal(err)
	}
	resp, _ = h.HandleSetup(&status)
	if !bytes.Equal(resp, []byte{2, 0}) {
		t.Errorf("GET_STATUS after wakeup = % X", resp)
	}
}

func TestStandardRequestHandler_EndpointHalt(t *testing.T) {
	dev := testDevice(t)
	configure(t, dev)
	h := NewStandardRequestHandler(dev)

	halt := SetupPacket{
		RequestType: RequestRecipientEndpoint,
		Request:     RequestSetFeature,
		Value:       FeatureEndpointHalt,
		Index:       0x81,
	}
	if _, err := h.HandleSetup(&halt); err != nil {
		t.Fatal(err)
	}
	if !dev.GetEndpoint(0x81).IsStalled() {
		t.Error("endpoint not halted")
	}

	status := GetStatusRequest(RequestRecipientEndpoint, 0x81)
	resp, err := h.HandleSetup(&status)
	if err != nil || !bytes.Equal(resp, []byte{1, 0}) {
		t.Errorf("GET_STATUS(ep) = % X, %v", resp, err)
	}

	halt.Request = RequestClearFeature
	if _, err := h.HandleSetup(&halt); err != nil {
		t.Fatal(err)
	}
	if dev.GetEndpoint(0x81).IsStalled() {
		t.Error("endpoint still halted")
	}

	missing := GetStatusRequest(RequestRecipientEndpoint, 0x82)
	if _, err := h.HandleSetup(&missing); !errors.Is(err, pkg.ErrInvalidEndpoint) {
		t.Errorf("GET_STATUS(missing ep) error = %v", err)
	}
}

func TestStandardRequestHandler_Interface(t *testing.T) {
	dev := testDevice(t)
	configure(t, dev)
	h := NewStandardRequestHandler(dev)

	setInterface := SetupPacket{
		RequestType: RequestRecipientInterface,
		Request:     RequestSetInterface,
		Value:       0,
		Index:       0,
	}
	if _, err := h.HandleSetup(&setInterface); err != nil {
		t.Fatal(err)
	}

	getInterface := SetupPacket{
		RequestType: RequestDirectionDeviceToHost | RequestRecipientInterface,
		Request:     RequestGetInterface,
		Length:      1,
	}
	resp, err := h.HandleSetup(&getInterface)
	if err != nil || !bytes.Equal(resp, []byte{0}) {
		t.Errorf("GET_INTERFACE = % X, %v", resp, err)
	}

	getInterface.Index = 3
	if _, err := h.HandleSetup(&getInterface); !errors.Is(err, pkg.ErrInvalidRequest) {
		t.Errorf("GET_INTERFACE(3) error = %v", err)
	}

	class := SetupPacket{RequestType: RequestTypeClass | RequestRecipientInterface}
	if _, err := h.HandleSetup(&class); !errors.Is(err, pkg.ErrInvalidRequest) {
		t.Errorf("class request error = %v", err)
	}
}
