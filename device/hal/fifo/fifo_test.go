//go:build linux || darwin

package fifo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/midilink/device"
	"github.com/ardnew/midilink/pkg"
)

type testBus struct {
	hal     *HAL
	stack   *device.Stack
	packets chan []byte
	host    *Host
}

// newTestBus attaches a polled device to a fresh bus and dials it.
func newTestBus(t *testing.T) *testBus {
	t.Helper()
	busDir := t.TempDir()

	dev, err := device.NewDeviceBuilder().
		WithVendorProduct(0x16C0, 0x05E4).
		WithStrings("Maker", "Widget", "").
		AddConfiguration(1).
		AddInterface(device.ClassVendor, 0, 0).
		AddEndpoint(0x01, device.EndpointTypeInterrupt, 8, 10).
		AddEndpoint(0x81, device.EndpointTypeInterrupt, 8, 10).
		Build()
	require.NoError(t, err)

	bus := &testBus{
		hal:     New(busDir),
		packets: make(chan []byte, 16),
	}
	bus.stack = device.NewStack(dev, bus.hal)
	require.NoError(t, bus.stack.SetOutHandler(0x01, func(data []byte) {
		bus.packets <- append([]byte(nil), data...)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.stack.Start(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			if err := bus.stack.Poll(); err != nil {
				if bus.stack.IsRunning() {
					t.Errorf("Poll() error = %v", err)
				}
				return
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	bus.host, err = Dial(dialCtx, busDir)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		<-done
		_ = bus.host.Close()
		_ = bus.stack.Stop()
	})
	return bus
}

func TestPipe_Messages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, makePipe(dir, "p"))
	writer, err := openPipe(dir, "p")
	require.NoError(t, err)
	defer writer.close()
	reader, err := openPipe(dir, "p")
	require.NoError(t, err)
	defer reader.close()

	_, _, ok, err := reader.recv()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, writer.send(msgData, []byte{1, 2, 3}))
	require.NoError(t, writer.send(msgAck, nil))
	n, err := reader.pending()
	require.NoError(t, err)
	assert.Equal(t, 2*headerSize+3, n)

	require.NoError(t, reader.await(context.Background(), time.Second))
	typ, payload, ok, err := reader.recv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(msgData), typ)
	assert.Equal(t, []byte{1, 2, 3}, payload)

	typ, payload, ok, err = reader.recv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(msgAck), typ)
	assert.Empty(t, payload)
	n, err = reader.pending()
	require.NoError(t, err)
	assert.Zero(t, n)

	err = reader.await(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, pkg.ErrTimeout)
	assert.ErrorIs(t, writer.send(msgData, make([]byte, MaxPayload+1)), pkg.ErrInvalidParameter)
}

func TestHAL_Lifecycle(t *testing.T) {
	h := New(t.TempDir())
	assert.ErrorIs(t, h.Start(), pkg.ErrNotConfigured)

	require.NoError(t, h.Init(context.Background()))
	assert.ErrorIs(t, h.Init(context.Background()), pkg.ErrAlreadyRunning)
	assert.Len(t, h.UUID(), 32)

	dir := h.DeviceDir()
	for _, name := range []string{fifoConnection, fifoHostToDevice, fifoDeviceToHost, "ep1_in", "ep15_out"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, os.ModeNamedPipe, info.Mode().Type(), name)
	}

	require.NoError(t, h.Start())
	assert.True(t, h.IsConnected())
	require.NoError(t, h.Stop())
	assert.False(t, h.IsConnected())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestHost_Enumerate(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	desc, err := bus.host.Enumerate(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x16C0), desc.Device.VendorID)
	assert.Equal(t, uint16(0x05E4), desc.Device.ProductID)
	assert.Equal(t, "Maker", desc.Manufacturer)
	assert.Equal(t, "Widget", desc.Product)
	assert.Len(t, desc.Configuration, bus.stack.Device().ConfigurationAt(0).TotalLength())
	assert.Equal(t, uint8(3), bus.host.Address())
	assert.True(t, bus.stack.Device().IsConfigured())

	_, err = bus.host.GetDescriptor(ctx, 0x0F, 0, 0, make([]byte, 8))
	assert.ErrorIs(t, err, pkg.ErrStall)

	// A reset drops the address, so the device stops answering address 3.
	require.NoError(t, bus.host.Reset(ctx))
	assert.Zero(t, bus.host.Address())
	var buf [device.DeviceDescriptorSize]byte
	n, err := bus.host.GetDescriptor(ctx, device.DescriptorTypeDevice, 0, 0, buf[:])
	require.NoError(t, err)
	assert.Equal(t, device.DeviceDescriptorSize, n)
}

func TestHost_DataEndpoints(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()
	_, err := bus.host.Enumerate(ctx, 1)
	require.NoError(t, err)

	packet := []byte{0x09, 0x90, 0x3C, 0x64}
	require.NoError(t, bus.host.WriteOut(ctx, 0x01, packet))
	select {
	case got := <-bus.packets:
		assert.Equal(t, packet, got)
	case <-time.After(5 * time.Second):
		t.Fatal("OUT packet not delivered")
	}

	require.Eventually(t, func() bool { return bus.stack.InterruptReady(0x81) },
		time.Second, time.Millisecond)
	require.NoError(t, bus.stack.SetInterrupt(0x81, packet))
	assert.False(t, bus.stack.InterruptReady(0x81))

	buf := make([]byte, 8)
	n, err := bus.host.ReadIn(ctx, 0x81, buf)
	require.NoError(t, err)
	assert.Equal(t, packet, buf[:n])
	assert.True(t, bus.stack.InterruptReady(0x81))

	assert.ErrorIs(t, bus.host.WriteOut(ctx, 0x81, packet), pkg.ErrInvalidEndpoint)
	_, err = bus.host.ReadIn(ctx, 0x01, buf)
	assert.ErrorIs(t, err, pkg.ErrInvalidEndpoint)
}

func TestHAL_InReadyTracksHostReads(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()
	_, err := bus.host.Enumerate(ctx, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return bus.hal.InReady(0x81) },
		time.Second, time.Millisecond)
	require.NoError(t, bus.hal.WriteIn(0x81, []byte{0x09, 0x80, 0x3C, 0x00}))
	assert.False(t, bus.hal.InReady(0x81))
	assert.ErrorIs(t, bus.hal.WriteIn(0x81, []byte{0x09, 0x90, 0x3C, 0x40}), pkg.ErrBusy)

	buf := make([]byte, 8)
	n, err := bus.host.ReadIn(ctx, 0x81, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09, 0x80, 0x3C, 0x00}, buf[:n])
	assert.True(t, bus.hal.InReady(0x81))
}

func TestPipe_PendingClosed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, makePipe(dir, "p"))
	p, err := openPipe(dir, "p")
	require.NoError(t, err)
	require.NoError(t, p.close())

	_, err = p.pending()
	assert.Error(t, err)
	assert.Error(t, p.drained(context.Background(), time.Second))
}

func TestHost_WriteOutWaitsWhileDisabled(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()
	_, err := bus.host.Enumerate(ctx, 1)
	require.NoError(t, err)

	bus.stack.DisableAllRequests()
	bus.host.SetTimeout(50 * time.Millisecond)

	require.NoError(t, bus.host.WriteOut(ctx, 0x01, []byte{1}))
	assert.ErrorIs(t, bus.host.WriteOut(ctx, 0x01, []byte{2}), pkg.ErrTimeout)
	assert.Empty(t, bus.packets)

	bus.stack.EnableAllRequests()
	bus.host.SetTimeout(DefaultTimeout)
	require.NoError(t, bus.host.WriteOut(ctx, 0x01, []byte{2}))

	for _, want := range []byte{1, 2} {
		select {
		case got := <-bus.packets:
			assert.Equal(t, []byte{want}, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("packet %d not delivered", want)
		}
	}
}

func TestHost_Detached(t *testing.T) {
	bus := newTestBus(t)
	assert.False(t, bus.host.Detached())
	require.NoError(t, bus.stack.Stop())
	assert.True(t, bus.host.Detached())

	dirs, err := Devices(filepath.Dir(bus.host.Dir()))
	require.NoError(t, err)
	assert.Empty(t, dirs)
}
