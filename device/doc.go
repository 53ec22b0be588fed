// Package device implements a small, poll-driven USB 1.1 device stack.
//
// It is platform-agnostic and reaches hardware only through the
// [hal.DeviceHAL] interface defined in
// [github.com/ardnew/midilink/device/hal]. The HAL never blocks: the owner
// calls [Stack.Poll] from its main loop and the stack services whatever
// the controller has pending.
//
// # Architecture
//
//   - [Device] holds descriptors, strings and the chapter 9 state machine
//   - [Stack] runs control transactions and dispatches OUT packets
//   - [StandardRequestHandler] answers the standard requests
//   - [Interface] groups endpoints and binds a [ClassDriver]
//   - [DeviceBuilder] assembles all of the above
//
// # Device States
//
//	Attached → Powered → Default → Address → Configured
//
// A bus reset returns the device to Default from any state.
//
// # Flow Control
//
// [Stack.DisableAllRequests] stops the stack from draining OUT endpoints.
// Packets stay queued in the controller, which answers further host
// transfers with NAK until [Stack.EnableAllRequests] is called. Control
// transfers on endpoint zero are unaffected.
//
// # Zero-Allocation Design
//
// Descriptors serialize with MarshalTo(buf) and parse into caller-provided
// values. Endpoints, interfaces and configurations live in fixed-size
// arrays, and Poll reuses its buffers between calls.
//
// # Example
//
//	dev, err := device.NewDeviceBuilder().
//	    WithVendorProduct(0x16C0, 0x05E4).
//	    WithStrings("Maker", "Widget", "").
//	    AddConfiguration(1).
//	    AddInterface(device.ClassVendor, 0, 0).
//	    AddEndpoint(0x01, device.EndpointTypeInterrupt, 8, 10).
//	    AddEndpoint(0x81, device.EndpointTypeInterrupt, 8, 10).
//	    Build()
//	stack := device.NewStack(dev, hal)
//	stack.SetOutHandler(0x01, handle)
//	stack.Start(ctx)
//	for {
//	    stack.Poll()
//	}
//
// The MIDI streaming class lives in
// [github.com/ardnew/midilink/device/class/midi], and a FIFO-based HAL for
// running without hardware in [github.com/ardnew/midilink/device/hal/fifo].
package device
