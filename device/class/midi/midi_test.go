package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/midilink/device"
	"github.com/ardnew/midilink/pkg"
)

// adapterConfiguration is the configuration bundle of the reference
// USB-MIDI adapter.
var adapterConfiguration = []byte{
	0x09, 0x02, 0x65, 0x00, 0x02, 0x01, 0x00, 0x80, 0x32,
	// Audio Control interface
	0x09, 0x04, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00,
	0x09, 0x24, 0x01, 0x00, 0x01, 0x09, 0x00, 0x01, 0x01,
	// MIDI Streaming interface
	0x09, 0x04, 0x01, 0x00, 0x02, 0x01, 0x03, 0x00, 0x00,
	0x07, 0x24, 0x01, 0x00, 0x01, 0x41, 0x00,
	0x06, 0x24, 0x02, 0x01, 0x01, 0x00,
	0x06, 0x24, 0x02, 0x02, 0x02, 0x00,
	0x09, 0x24, 0x03, 0x01, 0x03, 0x01, 0x02, 0x01, 0x00,
	0x09, 0x24, 0x03, 0x02, 0x04, 0x01, 0x01, 0x01, 0x00,
	// OUT endpoint
	0x09, 0x05, 0x01, 0x03, 0x08, 0x00, 0x0A, 0x00, 0x00,
	0x05, 0x25, 0x01, 0x01, 0x01,
	// IN endpoint
	0x09, 0x05, 0x81, 0x03, 0x08, 0x00, 0x0A, 0x00, 0x00,
	0x05, 0x25, 0x01, 0x01, 0x03,
}

func TestNewDevice_Descriptors(t *testing.T) {
	dev, f, err := NewDevice(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, f.Streaming())

	var desc [device.DeviceDescriptorSize]byte
	require.Equal(t, device.DeviceDescriptorSize, dev.Descriptor.MarshalTo(desc[:]))
	assert.Equal(t, []byte{
		0x12, 0x01, 0x10, 0x01, 0x00, 0x00, 0x00, 0x08,
		0xC0, 0x16, 0xE4, 0x05, 0x00, 0x01, 0x01, 0x02,
		0x00, 0x01,
	}, desc[:])

	config := dev.ConfigurationAt(0)
	require.NotNil(t, config)
	require.Len(t, adapterConfiguration, 101)
	assert.Equal(t, 101, config.TotalLength())

	buf := make([]byte, 128)
	n := config.MarshalTo(buf)
	assert.Equal(t, adapterConfiguration, buf[:n])

	product, err := device.ParseStringDescriptor(dev.GetString(2))
	require.NoError(t, err)
	assert.Equal(t, "USB-MIDI Link", product)
	assert.Nil(t, dev.GetString(3))
}

func TestNewDevice_Serial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial = "0001"
	dev, _, err := NewDevice(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), dev.Descriptor.SerialNumberIndex)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"out endpoint is IN", func(c *Config) { c.OutEndpoint = 0x82 }, pkg.ErrInvalidEndpoint},
		{"out endpoint zero", func(c *Config) { c.OutEndpoint = 0 }, pkg.ErrInvalidEndpoint},
		{"in endpoint is OUT", func(c *Config) { c.InEndpoint = 0x02 }, pkg.ErrInvalidEndpoint},
		{"packet too small", func(c *Config) { c.MaxPacketSize = 2 }, pkg.ErrInvalidParameter},
		{"packet too large", func(c *Config) { c.MaxPacketSize = 512 }, pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			_, _, err = NewDevice(cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDescriptors(t *testing.T) {
	tests := []struct {
		name string
		desc marshaler
		want []byte
	}{
		{
			name: "ac header",
			desc: &ACHeaderDescriptor{ADC: ADCVersion, Interfaces: []uint8{1, 2}},
			want: []byte{0x0A, 0x24, 0x01, 0x00, 0x01, 0x0A, 0x00, 0x02, 0x01, 0x02},
		},
		{
			name: "out jack with two sources",
			desc: &OutJackDescriptor{
				JackType: JackExternal,
				ID:       7,
				Sources:  []JackSource{{ID: 1, Pin: 1}, {ID: 2, Pin: 1}},
				String:   4,
			},
			want: []byte{0x0B, 0x24, 0x03, 0x02, 0x07, 0x02, 0x01, 0x01, 0x02, 0x01, 0x04},
		},
		{
			name: "endpoint with two jacks",
			desc: &EndpointDescriptor{Jacks: []uint8{1, 3}},
			want: []byte{0x06, 0x25, 0x01, 0x02, 0x01, 0x03},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, concat(tt.desc))
			var small [3]byte
			assert.Zero(t, tt.desc.MarshalTo(small[:]))
		})
	}
}

func TestFunction_ClassRequests(t *testing.T) {
	dev, f, err := NewDevice(DefaultConfig())
	require.NoError(t, err)
	dev.Attach()
	dev.Reset()
	require.NoError(t, dev.SetAddress(1))
	require.NoError(t, dev.SetConfiguration(1))

	iface := dev.GetInterface(1)
	require.NotNil(t, iface)
	assert.Same(t, f, iface.ClassDriver())

	setup := &device.SetupPacket{
		RequestType: device.RequestDirectionDeviceToHost | device.RequestTypeClass | device.RequestRecipientInterface,
		Request:     0x81,
		Index:       1,
		Length:      4,
	}
	handled, err := iface.HandleSetup(setup, nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []byte{0, 0, 0, 0}, iface.ClassResponse(setup))

	setup.Length = 64
	assert.Len(t, iface.ClassResponse(setup), classResponseSize)

	assert.NoError(t, iface.SetAlternate(0))
	assert.ErrorIs(t, iface.SetAlternate(1), pkg.ErrNotSupported)

	require.NoError(t, dev.Close())
	assert.Nil(t, f.Streaming())
}
