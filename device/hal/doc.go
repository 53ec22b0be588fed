// Package hal defines the hardware abstraction layer beneath the device
// stack.
//
// The [DeviceHAL] interface is poll-driven. The stack calls it from a
// single main loop and every method returns immediately:
//
//   - [DeviceHAL.PollSetup] hands over at most one SETUP transaction
//   - [DeviceHAL.PollOut] hands over at most one OUT packet per endpoint
//   - [DeviceHAL.InReady] and [DeviceHAL.WriteIn] offer one IN packet at a time
//
// Nothing in the interface spawns goroutines or accepts a context on the
// data path, so an implementation can sit directly on a polled controller
// (bit-banged low-speed USB, for example) or on any transport that can be
// read without blocking.
//
// # Implementing a HAL
//
//  1. Attach in Start and detach in Stop
//  2. Return SETUP packets from PollSetup, and pkg.ErrReset for port resets
//  3. Answer control requests with WriteEP0, AckEP0 or StallEP0
//  4. Buffer one packet per IN endpoint and report InReady once the host has it
//
// A named-pipe implementation for tests and simulation is available in
// [github.com/ardnew/midilink/device/hal/fifo].
package hal
