//go:build linux || darwin

package fifo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardnew/midilink/device"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// DefaultTimeout bounds every host transaction.
const DefaultTimeout = 5 * time.Second

// scanInterval is the bus directory polling period of Dial.
const scanInterval = 10 * time.Millisecond

// Descriptors is what Enumerate learns about a device.
type Descriptors struct {
	Device        device.DeviceDescriptor
	Configuration []byte // full configuration bundle
	Manufacturer  string
	Product       string
}

// Host drives a single fifo device from the host side.
//
// Control transfers are serialized. Each data endpoint may be used by one
// goroutine at a time.
type Host struct {
	dir     string
	timeout time.Duration

	connection *pipe
	toDevice   *pipe
	fromDevice *pipe

	ctrl    syncutil.Mutex
	address uint8

	mutex syncutil.Mutex
	epIn  [MaxEndpoints]*pipe
	epOut [MaxEndpoints]*pipe
}

// Devices lists the device directories present on a bus.
func Devices(busDir string) ([]string, error) {
	entries, err := os.ReadDir(busDir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), DevicePrefix) {
			dirs = append(dirs, filepath.Join(busDir, entry.Name()))
		}
	}
	return dirs, nil
}

// Dial waits until a device on busDir signals that it is attached.
func Dial(ctx context.Context, busDir string) (*Host, error) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		dirs, _ := Devices(busDir)
		for _, dir := range dirs {
			h, err := Open(dir)
			if err != nil {
				continue
			}
			typ, _, ok, err := h.connection.recv()
			if err == nil && ok && typ == sigConnect {
				pkg.LogInfo(pkg.ComponentHAL, "device attached", "dir", dir)
				return h, nil
			}
			_ = h.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Open opens the device directory dir without waiting for it to attach.
func Open(dir string) (*Host, error) {
	h := &Host{dir: dir, timeout: DefaultTimeout}
	var err error
	if h.connection, err = openPipe(dir, fifoConnection); err != nil {
		return nil, err
	}
	if h.toDevice, err = openPipe(dir, fifoHostToDevice); err != nil {
		_ = h.Close()
		return nil, err
	}
	if h.fromDevice, err = openPipe(dir, fifoDeviceToHost); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

// SetTimeout changes the transaction timeout.
func (h *Host) SetTimeout(timeout time.Duration) {
	h.ctrl.Lock()
	h.timeout = timeout
	h.ctrl.Unlock()
}

// Dir returns the device directory.
func (h *Host) Dir() string {
	return h.dir
}

// Address returns the address used for control transfers.
func (h *Host) Address() uint8 {
	h.ctrl.Lock()
	defer h.ctrl.Unlock()
	return h.address
}

// Reset resets the port and returns the device to address zero.
func (h *Host) Reset(ctx context.Context) error {
	h.ctrl.Lock()
	defer h.ctrl.Unlock()

	if err := h.toDevice.send(msgReset, nil); err != nil {
		return err
	}
	typ, _, err := h.response(ctx)
	if err != nil {
		return err
	}
	if typ != msgAck {
		return fmt.Errorf("reset answered with 0x%02X: %w", typ, pkg.ErrInvalidState)
	}
	h.address = 0
	return nil
}

// Control performs a control transfer. For a device-to-host request the
// data stage is copied into data; otherwise data is sent to the device.
// It returns pkg.ErrStall if the device rejected the request.
func (h *Host) Control(ctx context.Context, setup device.SetupPacket, data []byte) (int, error) {
	h.ctrl.Lock()
	defer h.ctrl.Unlock()

	var msg [1 + device.SetupPacketSize + MaxPayload]byte
	msg[0] = h.address
	setup.MarshalTo(msg[1:])
	n := 1 + device.SetupPacketSize
	if !setup.IsDeviceToHost() {
		if len(data) > MaxPayload-n {
			return 0, pkg.ErrBufferTooSmall
		}
		n += copy(msg[n:], data)
	}
	if err := h.toDevice.send(msgSetup, msg[:n]); err != nil {
		return 0, err
	}

	typ, payload, err := h.response(ctx)
	if err != nil {
		return 0, err
	}
	switch typ {
	case msgData:
		return copy(data, payload), nil
	case msgAck:
		if setup.Type() == device.RequestTypeStandard &&
			setup.Recipient() == device.RequestRecipientDevice &&
			setup.Request == device.RequestSetAddress {
			h.address = uint8(setup.Value & 0x7F)
		}
		return 0, nil
	case msgStall:
		return 0, pkg.ErrStall
	default:
		return 0, fmt.Errorf("control answered with 0x%02X: %w", typ, pkg.ErrInvalidState)
	}
}

func (h *Host) response(ctx context.Context) (byte, []byte, error) {
	if err := h.fromDevice.await(ctx, h.timeout); err != nil {
		return 0, nil, err
	}
	typ, payload, ok, err := h.fromDevice.recv()
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, pkg.ErrTimeout
	}
	return typ, payload, nil
}

// GetDescriptor reads a descriptor into buf.
func (h *Host) GetDescriptor(ctx context.Context, descType, index uint8, langID uint16, buf []byte) (int, error) {
	return h.Control(ctx, device.GetDescriptorRequest(descType, index, langID, uint16(len(buf))), buf)
}

// GetString reads and decodes a string descriptor in US English.
func (h *Host) GetString(ctx context.Context, index uint8) (string, error) {
	if index == 0 {
		return "", nil
	}
	var buf [255]byte
	n, err := h.GetDescriptor(ctx, device.DescriptorTypeString, index, device.LangIDUSEnglish, buf[:])
	if err != nil {
		return "", err
	}
	return device.ParseStringDescriptor(buf[:n])
}

// Enumerate resets the device, assigns address, and selects its first
// configuration.
func (h *Host) Enumerate(ctx context.Context, address uint8) (*Descriptors, error) {
	if err := h.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}

	var desc Descriptors
	var buf [device.DeviceDescriptorSize]byte
	n, err := h.GetDescriptor(ctx, device.DescriptorTypeDevice, 0, 0, buf[:])
	if err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}
	if err := device.ParseDeviceDescriptor(buf[:n], &desc.Device); err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}

	if _, err := h.Control(ctx, device.SetAddressRequest(address), nil); err != nil {
		return nil, fmt.Errorf("set address: %w", err)
	}

	var header [device.ConfigurationDescriptorSize]byte
	n, err = h.GetDescriptor(ctx, device.DescriptorTypeConfiguration, 0, 0, header[:])
	if err != nil {
		return nil, fmt.Errorf("configuration header: %w", err)
	}
	var config device.ConfigurationDescriptor
	if err := device.ParseConfigurationDescriptor(header[:n], &config); err != nil {
		return nil, fmt.Errorf("configuration header: %w", err)
	}
	desc.Configuration = make([]byte, config.TotalLength)
	n, err = h.GetDescriptor(ctx, device.DescriptorTypeConfiguration, 0, 0, desc.Configuration)
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	desc.Configuration = desc.Configuration[:n]

	if desc.Manufacturer, err = h.GetString(ctx, desc.Device.ManufacturerIndex); err != nil {
		return nil, fmt.Errorf("manufacturer string: %w", err)
	}
	if desc.Product, err = h.GetString(ctx, desc.Device.ProductIndex); err != nil {
		return nil, fmt.Errorf("product string: %w", err)
	}

	if _, err := h.Control(ctx, device.SetConfigurationRequest(config.ConfigurationValue), nil); err != nil {
		return nil, fmt.Errorf("set configuration: %w", err)
	}
	pkg.LogInfo(pkg.ComponentHAL, "device enumerated",
		"vendor", fmt.Sprintf("%04X", desc.Device.VendorID),
		"product", fmt.Sprintf("%04X", desc.Device.ProductID),
		"address", address)
	return &desc, nil
}

func (h *Host) endpoint(address uint8) (*pipe, error) {
	num := int(address & 0x0F)
	if num == 0 || num > MaxEndpoints {
		return nil, pkg.ErrInvalidEndpoint
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	table, name := &h.epOut, epOutName(num)
	if address&device.EndpointDirectionIn != 0 {
		table, name = &h.epIn, epInName(num)
	}
	if table[num-1] == nil {
		p, err := openPipe(h.dir, name)
		if err != nil {
			return nil, err
		}
		table[num-1] = p
	}
	return table[num-1], nil
}

// WriteOut sends one packet to an OUT endpoint. Like a host retrying a
// NAKed transfer, it first waits for the device to take the previous one.
func (h *Host) WriteOut(ctx context.Context, address uint8, data []byte) error {
	if address&device.EndpointDirectionIn != 0 {
		return pkg.ErrInvalidEndpoint
	}
	p, err := h.endpoint(address)
	if err != nil {
		return err
	}
	if err := p.drained(ctx, h.timeout); err != nil {
		return err
	}
	return p.send(msgData, data)
}

// ReadIn waits for one packet from an IN endpoint.
func (h *Host) ReadIn(ctx context.Context, address uint8, buf []byte) (int, error) {
	if address&device.EndpointDirectionIn == 0 {
		return 0, pkg.ErrInvalidEndpoint
	}
	p, err := h.endpoint(address)
	if err != nil {
		return 0, err
	}
	if err := p.await(ctx, h.timeout); err != nil {
		return 0, err
	}
	typ, payload, ok, err := p.recv()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, pkg.ErrTimeout
	}
	if typ != msgData {
		return 0, fmt.Errorf("IN endpoint sent 0x%02X: %w", typ, pkg.ErrInvalidState)
	}
	return copy(buf, payload), nil
}

// Detached reports whether the device signalled disconnection.
func (h *Host) Detached() bool {
	typ, _, ok, err := h.connection.recv()
	if err != nil {
		return true
	}
	return ok && typ == sigDisconnect
}

// Close releases the pipes. The device is left attached.
func (h *Host) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, p := range append([]*pipe{h.connection, h.toDevice, h.fromDevice}, append(h.epIn[:], h.epOut[:]...)...) {
		_ = p.close()
	}
	return nil
}
