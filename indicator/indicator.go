package indicator

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/ardnew/midilink/bridge"
	"github.com/ardnew/midilink/pkg"
)

// GPIO drives an activity LED on a GPIO pin.
type GPIO struct {
	pin       gpio.PinOut
	activeLow bool

	on      atomic.Bool
	changes atomic.Uint64
	failed  atomic.Bool
}

// NewGPIO drives pin. With activeLow the LED is lit by a low level.
func NewGPIO(pin gpio.PinOut, activeLow bool) *GPIO {
	g := &GPIO{pin: pin, activeLow: activeLow}
	g.write(false)
	return g
}

// OpenGPIO initializes the host drivers and drives the named pin, for
// example "GPIO17" or "PB0".
func OpenGPIO(name string, activeLow bool) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize host drivers: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q: %w", name, pkg.ErrNoDevice)
	}
	pkg.LogInfo(pkg.ComponentIndicator, "activity led", "pin", pin.Name(), "activeLow", activeLow)
	return NewGPIO(pin, activeLow), nil
}

// Set lights or clears the LED.
func (g *GPIO) Set(on bool) {
	if g.on.Swap(on) == on {
		return
	}
	g.changes.Add(1)
	g.write(on)
}

// On reports the last state set.
func (g *GPIO) On() bool {
	return g.on.Load()
}

// Changes returns the number of state changes.
func (g *GPIO) Changes() uint64 {
	return g.changes.Load()
}

func (g *GPIO) write(on bool) {
	if err := g.pin.Out(gpio.Level(on != g.activeLow)); err != nil {
		if !g.failed.Swap(true) {
			pkg.LogWarn(pkg.ComponentIndicator, "cannot drive led", "pin", g.pin.String(), "error", err)
		}
	}
}

// Close turns the LED off.
func (g *GPIO) Close() error {
	g.Set(false)
	return nil
}

// Nop is an indicator without an output.
type Nop struct{}

// Set does nothing.
func (Nop) Set(bool) {}

var (
	_ bridge.Indicator = (*GPIO)(nil)
	_ bridge.Indicator = Nop{}
)
