package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ardnew/midilink/pkg"
)

// USB is the device-side USB-MIDI function as seen by the loop.
type USB interface {
	// Poll services pending USB events. Host-to-device packets are passed
	// to the write handler synchronously from within Poll.
	Poll() error

	// SetWriteHandler registers the callback for host-to-device packets.
	SetWriteHandler(fn func(data []byte))

	// InterruptReady reports whether the interrupt IN endpoint can accept
	// a packet.
	InterruptReady() bool

	// SendInterrupt queues one packet on the interrupt IN endpoint.
	SendInterrupt(data []byte) error
}

// FlowControl is implemented by USB stacks that can refuse host requests.
type FlowControl interface {
	AllRequestsDisabled() bool
	EnableAllRequests()
	DisableAllRequests()
}

// UART is a byte-at-a-time serial transport. None of its methods may block.
type UART interface {
	ByteReceived() bool
	ReadByte() (byte, error)
	TransmitReady() bool
	WriteByte(c byte) error
}

// Watchdog is kicked once per loop iteration.
type Watchdog interface {
	Kick()
}

// Indicator shows activity, typically with an LED.
type Indicator interface {
	Set(on bool)
}

type nopWatchdog struct{}

func (nopWatchdog) Kick() {}

type nopIndicator struct{}

func (nopIndicator) Set(bool) {}

// Stats is a snapshot of the bridge counters.
type Stats struct {
	Iterations      uint64 // loop iterations
	FramesFromUSB   uint64 // frames demultiplexed from host packets
	BytesToSerial   uint64 // bytes written to the UART
	BytesFromSerial uint64 // bytes read from the UART
	FramesToUSB     uint64 // frames sent on the interrupt IN endpoint
	RingOverwrites  uint64 // bytes lost to a full ring
	FrameOverwrites uint64 // serial frames replaced before being sent
	Discarded       uint64 // trailing packet bytes that did not form a frame
	FlowPauses      uint64 // times USB requests were disabled
	Errors          uint64 // UART or USB write failures
}

// Bridge connects a USB-MIDI function to a serial line.
type Bridge struct {
	cfg  Config
	usb  USB
	flow FlowControl
	uart UART
	wd   Watchdog
	ind  Indicator

	ring   *Ring
	demux  *Demux
	frames *FrameBuffer
	asm    *Assembler

	led     bool
	running atomic.Bool

	iterations  atomic.Uint64
	bytesOut    atomic.Uint64
	bytesIn     atomic.Uint64
	framesToUSB atomic.Uint64
	flowPauses  atomic.Uint64
	errors      atomic.Uint64
}

// New creates a bridge between usb and port and registers its demultiplexer
// as the USB write handler. If usb implements [FlowControl] the bridge
// manages request acceptance.
func New(cfg Config, usb USB, port UART) (*Bridge, error) {
	if usb == nil || port == nil {
		return nil, fmt.Errorf("bridge requires a USB function and a UART: %w", pkg.ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ring, err := NewRing(cfg.RingSize)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:    cfg,
		usb:    usb,
		uart:   port,
		wd:     nopWatchdog{},
		ind:    nopIndicator{},
		ring:   ring,
		demux:  NewDemux(ring),
		frames: &FrameBuffer{},
	}
	b.asm = NewAssembler(b.frames)
	if fc, ok := usb.(FlowControl); ok {
		b.flow = fc
	}
	usb.SetWriteHandler(b.onPacket)
	return b, nil
}

// SetWatchdog sets the watchdog kicked at the top of every iteration.
func (b *Bridge) SetWatchdog(wd Watchdog) {
	if wd == nil {
		wd = nopWatchdog{}
	}
	b.wd = wd
}

// SetIndicator sets the activity indicator. It is toggled for every frame
// that crosses the bridge.
func (b *Bridge) SetIndicator(ind Indicator) {
	if ind == nil {
		ind = nopIndicator{}
	}
	b.ind = ind
}

// Config returns the bridge configuration.
func (b *Bridge) Config() Config {
	return b.cfg
}

// Ring returns the USB-to-serial ring.
func (b *Bridge) Ring() *Ring {
	return b.ring
}

// Frames returns the serial-to-USB frame buffer.
func (b *Bridge) Frames() *FrameBuffer {
	return b.frames
}

// onPacket runs inside USB.Poll for every host-to-device packet.
func (b *Bridge) onPacket(data []byte) {
	if b.demux.Write(data) > 0 {
		b.toggle()
	}
	if b.cfg.FlowControl && b.flow != nil && !b.flow.AllRequestsDisabled() &&
		b.ring.Free() < b.cfg.MaxPacketSize {
		b.flow.DisableAllRequests()
		b.flowPauses.Add(1)
		pkg.LogDebug(pkg.ComponentBridge, "usb requests paused", "queued", b.ring.Len())
	}
}

func (b *Bridge) toggle() {
	b.led = !b.led
	b.ind.Set(b.led)
}

// Step runs one iteration of the loop.
func (b *Bridge) Step() error {
	_, err := b.step()
	return err
}

// step returns true if any data moved.
func (b *Bridge) step() (bool, error) {
	b.iterations.Add(1)
	b.wd.Kick()

	before := b.demux.Frames()
	if err := b.usb.Poll(); err != nil {
		return false, fmt.Errorf("usb poll: %w", err)
	}
	busy := b.demux.Frames() != before

	if b.uart.TransmitReady() {
		if c, ok := b.ring.Pop(); ok {
			busy = true
			if err := b.uart.WriteByte(c); err != nil {
				b.errors.Add(1)
				pkg.LogWarn(pkg.ComponentBridge, "uart write failed", "error", err)
			} else {
				b.bytesOut.Add(1)
			}
		}
	}

	if b.flow != nil && b.flow.AllRequestsDisabled() &&
		b.ring.Len() < b.ring.Cap()-b.cfg.MaxPacketSize {
		b.flow.EnableAllRequests()
		pkg.LogDebug(pkg.ComponentBridge, "usb requests resumed", "queued", b.ring.Len())
	}

	if b.uart.ByteReceived() {
		c, err := b.uart.ReadByte()
		if err != nil {
			b.errors.Add(1)
			pkg.LogWarn(pkg.ComponentBridge, "uart read failed", "error", err)
		} else {
			busy = true
			b.bytesIn.Add(1)
			b.asm.Feed(c)
		}
	}

	if b.usb.InterruptReady() {
		if f, ok := b.frames.TryTake(); ok {
			busy = true
			if err := b.usb.SendInterrupt(f[:]); err != nil {
				b.errors.Add(1)
				pkg.LogWarn(pkg.ComponentBridge, "interrupt send failed", "error", err)
			} else {
				b.framesToUSB.Add(1)
				b.toggle()
				if pkg.LogEnabled(slog.LevelDebug) {
					pkg.LogDebug(pkg.ComponentBridge, "frame to host", "frame", f.String())
				}
			}
		}
	}

	return busy, nil
}

// Run repeats Step until ctx is cancelled or the USB stack fails. It
// returns ctx.Err() on cancellation.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer b.running.Store(false)

	pkg.LogInfo(pkg.ComponentBridge, "bridge running",
		"ring", b.cfg.RingSize, "flowControl", b.cfg.FlowControl)

	for {
		select {
		case <-ctx.Done():
			pkg.LogInfo(pkg.ComponentBridge, "bridge stopped", "iterations", b.iterations.Load())
			return ctx.Err()
		default:
		}

		busy, err := b.step()
		if err != nil {
			pkg.LogError(pkg.ComponentBridge, "bridge failed", "error", err)
			return err
		}
		if !busy {
			b.idle()
		}
	}
}

func (b *Bridge) idle() {
	if b.cfg.IdleInterval > 0 {
		time.Sleep(b.cfg.IdleInterval)
		return
	}
	runtime.Gosched()
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Iterations:      b.iterations.Load(),
		FramesFromUSB:   b.demux.Frames(),
		BytesToSerial:   b.bytesOut.Load(),
		BytesFromSerial: b.bytesIn.Load(),
		FramesToUSB:     b.framesToUSB.Load(),
		RingOverwrites:  b.ring.Overwrites(),
		FrameOverwrites: b.frames.Overwrites(),
		Discarded:       b.demux.Discarded(),
		FlowPauses:      b.flowPauses.Load(),
		Errors:          b.errors.Load(),
	}
}
