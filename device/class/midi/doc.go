// Package midi implements the USB MIDI 1.0 class for a single-cable
// adapter.
//
// The topology is the simple MIDI adapter of the MIDI 1.0 class
// definition: an Audio Control interface with only a class header, and a
// MIDI Streaming interface with four jacks.
//
//	host ─▶ OUT EP ─▶ embedded IN jack 1 ─▶ external OUT jack 4 ─▶ serial
//	host ◀─ IN EP  ◀─ embedded OUT jack 3 ◀─ external IN jack 2 ◀─ serial
//
// Both endpoints are interrupt endpoints described with the 9-byte audio
// layout, followed by a class-specific endpoint descriptor naming their
// embedded jack.
//
// # Usage
//
//	dev, fn, err := midi.NewDevice(midi.DefaultConfig())
//	stack := device.NewStack(dev, hal)
//	b, err := bridge.New(bridge.DefaultConfig(), midi.NewPort(stack, fn), uart)
//	stack.Start(ctx)
//	b.Run(ctx)
//
// [Port] adapts the stack to [bridge.USB] and [bridge.FlowControl].
package midi
