package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ardnew/midilink/device/hal"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// Buffer sizes of the stack.
const (
	// MaxControlDataSize is the largest host-to-device control data stage.
	MaxControlDataSize = 256

	// MaxDataPacketSize is the largest OUT packet delivered to a handler.
	MaxDataPacketSize = 64
)

// Stack drives a [Device] over a poll-driven [hal.DeviceHAL].
//
// The owner calls [Stack.Poll] from its main loop. Each call services at
// most one control transaction and at most one packet per OUT endpoint;
// OUT packets are handed to the registered handlers before Poll returns.
type Stack struct {
	device  *Device
	hal     hal.DeviceHAL
	handler *StandardRequestHandler

	mutex   syncutil.RWMutex
	running bool

	disabled    atomic.Bool
	outHandlers [MaxEndpointNumber + 1]func(data []byte)

	setupBuf [hal.SetupSize]byte
	ep0Buf   [MaxControlDataSize]byte
	outBuf   [MaxDataPacketSize]byte
}

// NewStack creates a stack for dev on h.
func NewStack(dev *Device, h hal.DeviceHAL) *Stack {
	return &Stack{
		device:  dev,
		hal:     h,
		handler: NewStandardRequestHandler(dev),
	}
}

// Start initializes the HAL and attaches to the bus.
func (s *Stack) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return pkg.ErrAlreadyRunning
	}

	if err := s.hal.Init(ctx); err != nil {
		return fmt.Errorf("init hal: %w", err)
	}
	if err := s.hal.Start(); err != nil {
		return fmt.Errorf("start hal: %w", err)
	}
	s.device.Attach()
	s.running = true

	pkg.LogDebug(pkg.ComponentStack, "device stack started")
	return nil
}

// Stop detaches from the bus.
func (s *Stack) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if err := s.hal.Stop(); err != nil {
		return fmt.Errorf("stop hal: %w", err)
	}
	pkg.LogDebug(pkg.ComponentStack, "device stack stopped")
	return nil
}

// IsRunning returns true between Start and Stop.
func (s *Stack) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Device returns the underlying device.
func (s *Stack) Device() *Device {
	return s.device
}

// Speed returns the bus speed.
func (s *Stack) Speed() hal.Speed {
	return s.hal.GetSpeed()
}

// IsConnected returns true if the device is attached to a host.
func (s *Stack) IsConnected() bool {
	return s.hal.IsConnected()
}

// SetOutHandler registers fn to receive the packets of an OUT endpoint.
// fn runs inside Poll and must not retain data.
func (s *Stack) SetOutHandler(address uint8, fn func(data []byte)) error {
	num := address & 0x0F
	if address&EndpointDirectionIn != 0 || num == 0 || num > MaxEndpointNumber {
		return pkg.ErrInvalidEndpoint
	}
	s.outHandlers[num] = fn
	return nil
}

// DisableAllRequests stops delivering OUT packets. The HAL keeps them
// queued, so the host sees the endpoint as busy.
func (s *Stack) DisableAllRequests() {
	s.disabled.Store(true)
}

// EnableAllRequests resumes delivery of OUT packets.
func (s *Stack) EnableAllRequests() {
	s.disabled.Store(false)
}

// AllRequestsDisabled reports whether OUT delivery is paused.
func (s *Stack) AllRequestsDisabled() bool {
	return s.disabled.Load()
}

// Poll services pending USB work without blocking.
func (s *Stack) Poll() error {
	if !s.IsRunning() {
		return pkg.ErrNotRunning
	}
	if err := s.pollControl(); err != nil {
		return err
	}
	if s.disabled.Load() || !s.device.IsConfigured() {
		return nil
	}

	for num := uint8(1); num <= MaxEndpointNumber; num++ {
		fn := s.outHandlers[num]
		if fn == nil {
			continue
		}
		if ep := s.device.GetEndpoint(num); ep == nil || ep.IsStalled() {
			continue
		}
		n, ok, err := s.hal.PollOut(num, s.outBuf[:])
		if err != nil {
			return fmt.Errorf("poll endpoint %d: %w", num, err)
		}
		if ok {
			fn(s.outBuf[:n])
		}
	}
	return nil
}

func (s *Stack) pollControl() error {
	n, ok, err := s.hal.PollSetup(&s.setupBuf, s.ep0Buf[:])
	if errors.Is(err, pkg.ErrReset) {
		s.device.Reset()
		if err := s.hal.ConfigureEndpoints(nil); err != nil {
			return fmt.Errorf("reset endpoints: %w", err)
		}
		return s.hal.SetAddress(0)
	}
	if err != nil {
		return fmt.Errorf("poll setup: %w", err)
	}
	if !ok {
		return nil
	}

	var setup SetupPacket
	if err := ParseSetupPacket(s.setupBuf[:], &setup); err != nil {
		return err
	}
	if err := s.handleSetup(&setup, s.ep0Buf[:n]); err != nil {
		pkg.LogWarn(pkg.ComponentStack, "control request rejected",
			"error", err,
			"request", setup.String())
		return s.hal.StallEP0()
	}
	return nil
}

// handleSetup processes a single control transaction.
func (s *Stack) handleSetup(setup *SetupPacket, data []byte) error {
	if pkg.LogEnabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentStack, "setup received", "request", setup.String())
	}

	switch setup.Type() {
	case RequestTypeStandard:
		resp, err := s.handler.HandleSetup(setup)
		if err != nil {
			return err
		}
		if err := s.complete(setup, resp); err != nil {
			return err
		}
		return s.afterStandard(setup)

	case RequestTypeClass:
		if setup.Recipient() != RequestRecipientInterface {
			return pkg.ErrInvalidRequest
		}
		iface := s.device.GetInterface(setup.Target())
		if iface == nil {
			return pkg.ErrInvalidRequest
		}
		handled, err := iface.HandleSetup(setup, data)
		if err != nil {
			return err
		}
		if !handled {
			return pkg.ErrInvalidRequest
		}
		var resp []byte
		if setup.IsDeviceToHost() {
			resp = iface.ClassResponse(setup)
		}
		return s.complete(setup, resp)
	}
	return pkg.ErrInvalidRequest
}

// complete runs the data or status stage.
func (s *Stack) complete(setup *SetupPacket, data []byte) error {
	if setup.IsDeviceToHost() {
		return s.hal.WriteEP0(data)
	}
	return s.hal.AckEP0()
}

// afterStandard applies the hardware side effects that must follow the
// status stage.
func (s *Stack) afterStandard(setup *SetupPacket) error {
	if setup.Recipient() != RequestRecipientDevice {
		return nil
	}
	switch setup.Request {
	case RequestSetAddress:
		return s.hal.SetAddress(s.device.Address())
	case RequestSetConfiguration:
		var eps []hal.EndpointConfig
		if config := s.device.ActiveConfiguration(); config != nil {
			for _, ep := range config.Endpoints() {
				eps = append(eps, hal.EndpointConfig{
					Address:       ep.Address,
					Attributes:    ep.Attributes,
					MaxPacketSize: ep.MaxPacketSize,
					Interval:      ep.Interval,
				})
			}
		}
		return s.hal.ConfigureEndpoints(eps)
	}
	return nil
}

// InterruptReady reports whether an IN endpoint can take another packet.
func (s *Stack) InterruptReady(address uint8) bool {
	if !s.device.IsConfigured() {
		return false
	}
	ep := s.device.GetEndpoint(address)
	if ep == nil || ep.IsStalled() {
		return false
	}
	return s.hal.InReady(address)
}

// SetInterrupt queues one packet on an IN endpoint.
func (s *Stack) SetInterrupt(address uint8, data []byte) error {
	if !s.device.IsConfigured() {
		return pkg.ErrNotConfigured
	}
	ep := s.device.GetEndpoint(address)
	if ep == nil || !ep.IsIn() {
		return pkg.ErrInvalidEndpoint
	}
	if len(data) > int(ep.MaxPacketSize) {
		return fmt.Errorf("packet of %d bytes exceeds %d: %w",
			len(data), ep.MaxPacketSize, pkg.ErrInvalidParameter)
	}
	return s.hal.WriteIn(address, data)
}
