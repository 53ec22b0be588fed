package midi

import (
	"github.com/ardnew/midilink/bridge"
	"github.com/ardnew/midilink/device"
	"github.com/ardnew/midilink/pkg"
)

// Port exposes the MIDI endpoints of a running device stack to the
// bridge loop.
type Port struct {
	stack *device.Stack
	out   uint8
	in    uint8
}

// NewPort creates a port on stack using the endpoints of f. The port
// takes over the state callbacks of the stack's device to report when the
// host opens and closes the MIDI function.
func NewPort(stack *device.Stack, f *Function) *Port {
	cfg := f.Config()
	p := &Port{
		stack: stack,
		out:   cfg.OutEndpoint,
		in:    cfg.InEndpoint,
	}

	dev := stack.Device()
	dev.SetOnStateChange(func(from, to device.State) {
		pkg.LogDebug(pkg.ComponentMIDI, "usb state", "from", from.String(), "to", to.String())
		if from == device.StateConfigured && to != device.StateConfigured {
			pkg.LogInfo(pkg.ComponentMIDI, "midi port closed by host")
		}
	})
	dev.SetOnSetConfiguration(func(value uint8) {
		pkg.LogInfo(pkg.ComponentMIDI, "midi port opened by host", "configuration", value)
	})
	dev.SetOnReset(func() {
		pkg.LogDebug(pkg.ComponentMIDI, "bus reset")
	})
	return p
}

// Poll services the device stack once.
func (p *Port) Poll() error {
	return p.stack.Poll()
}

// SetWriteHandler registers fn for packets the host writes to the OUT
// endpoint.
func (p *Port) SetWriteHandler(fn func(data []byte)) {
	if err := p.stack.SetOutHandler(p.out, fn); err != nil {
		pkg.LogError(pkg.ComponentMIDI, "cannot register write handler",
			"endpoint", p.out, "error", err)
	}
}

// InterruptReady reports whether the IN endpoint can take a packet.
func (p *Port) InterruptReady() bool {
	return p.stack.InterruptReady(p.in)
}

// SendInterrupt queues a packet on the IN endpoint.
func (p *Port) SendInterrupt(data []byte) error {
	return p.stack.SetInterrupt(p.in, data)
}

// AllRequestsDisabled reports whether OUT packets are being refused.
func (p *Port) AllRequestsDisabled() bool {
	return p.stack.AllRequestsDisabled()
}

// EnableAllRequests resumes accepting OUT packets.
func (p *Port) EnableAllRequests() {
	p.stack.EnableAllRequests()
}

// DisableAllRequests refuses OUT packets until re-enabled.
func (p *Port) DisableAllRequests() {
	p.stack.DisableAllRequests()
}

var (
	_ bridge.USB         = (*Port)(nil)
	_ bridge.FlowControl = (*Port)(nil)
)
