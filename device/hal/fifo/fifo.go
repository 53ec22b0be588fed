//go:build linux || darwin

package fifo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ardnew/midilink/device/hal"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// MaxEndpoints is the number of data endpoint pairs (1-15).
const MaxEndpoints = 15

// Connection signal bytes.
const (
	sigConnect    = 0x01
	sigDisconnect = 0x00
)

// Pipe names inside a device directory.
const (
	fifoHostToDevice = "host_to_device"
	fifoDeviceToHost = "device_to_host"
	fifoConnection   = "connection"
)

// DevicePrefix begins the name of every device directory on a bus.
const DevicePrefix = "device-"

func epInName(num int) string  { return fmt.Sprintf("ep%d_in", num) }
func epOutName(num int) string { return fmt.Sprintf("ep%d_out", num) }

// HAL implements hal.DeviceHAL over named pipes. Each instance creates its
// own directory under the bus directory, so several devices can share a
// bus.
type HAL struct {
	busDir    string
	deviceDir string
	uuid      string

	connection   *pipe
	hostToDevice *pipe
	deviceToHost *pipe
	epIn         [MaxEndpoints]*pipe
	epOut        [MaxEndpoints]*pipe

	// active marks the endpoints of the current configuration, indexed by
	// number; bit 0 is OUT and bit 1 is IN.
	active [MaxEndpoints + 1]uint8

	connected atomic.Bool
	address   uint8
	speed     hal.Speed

	mutex    syncutil.Mutex
	initDone bool
}

// New creates a HAL that publishes its device under busDir.
func New(busDir string) *HAL {
	return &HAL{
		busDir: busDir,
		speed:  hal.SpeedLow,
	}
}

func generateUUID() (string, error) {
	var uuid [16]byte
	if _, err := rand.Read(uuid[:]); err != nil {
		return "", err
	}
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return hex.EncodeToString(uuid[:]), nil
}

// Init creates the device directory and its pipes.
func (h *HAL) Init(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.initDone {
		return pkg.ErrAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	uuid, err := generateUUID()
	if err != nil {
		return fmt.Errorf("generate uuid: %w", err)
	}
	h.uuid = uuid
	h.deviceDir = filepath.Join(h.busDir, DevicePrefix+uuid)
	if err := os.MkdirAll(h.deviceDir, 0o755); err != nil {
		return fmt.Errorf("create device dir: %w", err)
	}

	names := []string{fifoConnection, fifoHostToDevice, fifoDeviceToHost}
	for num := 1; num <= MaxEndpoints; num++ {
		names = append(names, epInName(num), epOutName(num))
	}
	for _, name := range names {
		if err := makePipe(h.deviceDir, name); err != nil {
			h.cleanup()
			return err
		}
	}

	open := func(name string) *pipe {
		if err != nil {
			return nil
		}
		var p *pipe
		p, err = openPipe(h.deviceDir, name)
		return p
	}
	h.connection = open(fifoConnection)
	h.hostToDevice = open(fifoHostToDevice)
	h.deviceToHost = open(fifoDeviceToHost)
	for num := 1; num <= MaxEndpoints; num++ {
		h.epIn[num-1] = open(epInName(num))
		h.epOut[num-1] = open(epOutName(num))
	}
	if err != nil {
		h.cleanup()
		return err
	}

	h.initDone = true
	pkg.LogInfo(pkg.ComponentHAL, "fifo device HAL initialized",
		"busDir", h.busDir,
		"deviceDir", h.deviceDir)
	return nil
}

// Start signals the host that the device is attached.
func (h *HAL) Start() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.initDone {
		return pkg.ErrNotConfigured
	}
	if err := h.connection.send(sigConnect, nil); err != nil {
		return fmt.Errorf("signal connect: %w", err)
	}
	h.connected.Store(true)
	pkg.LogInfo(pkg.ComponentHAL, "fifo device HAL started", "uuid", h.uuid)
	return nil
}

// Stop signals disconnection and removes the device directory.
func (h *HAL) Stop() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.initDone {
		return nil
	}
	if h.connected.Swap(false) {
		if err := h.connection.send(sigDisconnect, nil); err != nil {
			pkg.LogWarn(pkg.ComponentHAL, "failed to signal disconnect", "error", err)
		}
	}
	h.cleanup()
	h.initDone = false
	pkg.LogInfo(pkg.ComponentHAL, "fifo device HAL stopped")
	return nil
}

func (h *HAL) cleanup() {
	pipes := []*pipe{h.connection, h.hostToDevice, h.deviceToHost}
	pipes = append(pipes, h.epIn[:]...)
	pipes = append(pipes, h.epOut[:]...)
	for _, p := range pipes {
		_ = p.close()
	}
	h.connection, h.hostToDevice, h.deviceToHost = nil, nil, nil
	h.epIn = [MaxEndpoints]*pipe{}
	h.epOut = [MaxEndpoints]*pipe{}
	h.active = [MaxEndpoints + 1]uint8{}
	if h.deviceDir != "" {
		_ = os.RemoveAll(h.deviceDir)
	}
}

// SetAddress sets the address the device answers to.
func (h *HAL) SetAddress(address uint8) error {
	h.mutex.Lock()
	h.address = address
	h.mutex.Unlock()
	pkg.LogDebug(pkg.ComponentHAL, "address set", "address", address)
	return nil
}

// ConfigureEndpoints activates the given data endpoints.
func (h *HAL) ConfigureEndpoints(endpoints []hal.EndpointConfig) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.active = [MaxEndpoints + 1]uint8{}
	for _, ep := range endpoints {
		num := ep.Number()
		if num == 0 || num > MaxEndpoints {
			return pkg.ErrInvalidEndpoint
		}
		if ep.IsIn() {
			h.active[num] |= 2
		} else {
			h.active[num] |= 1
		}
	}
	pkg.LogDebug(pkg.ComponentHAL, "endpoints configured", "count", len(endpoints))
	return nil
}

// PollSetup returns the next SETUP addressed to this device. Messages for
// other addresses are dropped unanswered.
func (h *HAL) PollSetup(setup *[hal.SetupSize]byte, data []byte) (int, bool, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.initDone {
		return 0, false, pkg.ErrNotConfigured
	}

	for {
		typ, payload, ok, err := h.hostToDevice.recv()
		if err != nil || !ok {
			return 0, false, err
		}

		switch typ {
		case msgReset:
			h.address = 0
			if err := h.deviceToHost.send(msgAck, nil); err != nil {
				return 0, false, err
			}
			pkg.LogDebug(pkg.ComponentHAL, "port reset received")
			return 0, false, pkg.ErrReset

		case msgSetup:
			if len(payload) < 1+hal.SetupSize {
				pkg.LogWarn(pkg.ComponentHAL, "short setup message", "length", len(payload))
				continue
			}
			if payload[0] != h.address {
				pkg.LogDebug(pkg.ComponentHAL, "setup for another address", "address", payload[0])
				continue
			}
			copy(setup[:], payload[1:1+hal.SetupSize])
			extra := payload[1+hal.SetupSize:]
			if len(extra) > len(data) {
				pkg.LogWarn(pkg.ComponentHAL, "control data stage too long", "length", len(extra))
				if err := h.deviceToHost.send(msgStall, nil); err != nil {
					return 0, false, err
				}
				continue
			}
			return copy(data, extra), true, nil

		default:
			pkg.LogWarn(pkg.ComponentHAL, "unexpected message on control pipe", "type", typ)
		}
	}
}

// WriteEP0 sends the data stage of a device-to-host request.
func (h *HAL) WriteEP0(data []byte) error {
	return h.reply(msgData, data)
}

// StallEP0 rejects the current control request.
func (h *HAL) StallEP0() error {
	pkg.LogDebug(pkg.ComponentHAL, "EP0 stalled")
	return h.reply(msgStall, nil)
}

// AckEP0 completes a host-to-device control request.
func (h *HAL) AckEP0() error {
	return h.reply(msgAck, nil)
}

func (h *HAL) reply(typ byte, data []byte) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.initDone {
		return pkg.ErrNotConfigured
	}
	return h.deviceToHost.send(typ, data)
}

// PollOut returns the next packet the host wrote to an OUT endpoint.
// Packets that do not fit buf are dropped.
func (h *HAL) PollOut(address uint8, buf []byte) (int, bool, error) {
	num := address & 0x0F
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.initDone {
		return 0, false, pkg.ErrNotConfigured
	}
	if num == 0 || num > MaxEndpoints || h.active[num]&1 == 0 {
		return 0, false, pkg.ErrInvalidEndpoint
	}

	typ, payload, ok, err := h.epOut[num-1].recv()
	if err != nil || !ok {
		return 0, false, err
	}
	if typ != msgData || len(payload) > len(buf) {
		pkg.LogWarn(pkg.ComponentHAL, "dropped OUT message",
			"endpoint", num,
			"type", typ,
			"length", len(payload))
		return 0, false, nil
	}
	return copy(buf, payload), true, nil
}

// InReady reports whether the host has collected the last IN packet.
func (h *HAL) InReady(address uint8) bool {
	num := address & 0x0F
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.initDone || num == 0 || num > MaxEndpoints || h.active[num]&2 == 0 {
		return false
	}
	n, err := h.epIn[num-1].pending()
	if err != nil {
		pkg.LogDebug(pkg.ComponentHAL, "IN endpoint query failed",
			"endpoint", num,
			"error", err)
		return false
	}
	return n == 0
}

// WriteIn queues one packet on an IN endpoint.
func (h *HAL) WriteIn(address uint8, data []byte) error {
	num := address & 0x0F
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.initDone {
		return pkg.ErrNotConfigured
	}
	if num == 0 || num > MaxEndpoints || h.active[num]&2 == 0 {
		return pkg.ErrInvalidEndpoint
	}
	p := h.epIn[num-1]
	n, err := p.pending()
	if err != nil {
		return err
	}
	if n > 0 {
		return pkg.ErrBusy
	}
	return p.send(msgData, data)
}

// IsConnected returns true between Start and Stop.
func (h *HAL) IsConnected() bool {
	return h.connected.Load()
}

// GetSpeed returns the emulated bus speed.
func (h *HAL) GetSpeed() hal.Speed {
	return h.speed
}

// DeviceDir returns the device directory, or "" before Init.
func (h *HAL) DeviceDir() string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.deviceDir
}

// UUID returns the identifier of the device directory.
func (h *HAL) UUID() string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.uuid
}

var _ hal.DeviceHAL = (*HAL)(nil)
