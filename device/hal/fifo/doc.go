// Package fifo implements a poll-driven USB device HAL over named pipes,
// together with the host side needed to drive it.
//
// It lets the device stack, class drivers and the bridge run and be tested
// on a workstation without a USB controller.
//
// # Bus Layout
//
// Each device creates its own directory under a shared bus directory:
//
//	/tmp/usb-bus/
//	└── device-{uuid}/
//	    ├── connection        attach and detach signals
//	    ├── host_to_device    SETUP and reset messages
//	    ├── device_to_host    DATA, ACK and STALL replies
//	    ├── ep1_in, ep1_out   endpoint 1
//	    └── ...               up to ep15_in, ep15_out
//
// # Protocol
//
// Every message is [type, len_lo, len_hi, payload...]. A SETUP payload is
// [address, setup(8), data...], where data is present only for
// host-to-device requests. The device answers each SETUP with exactly one
// DATA, ACK or STALL message, and ignores SETUPs for other addresses.
//
// Pipes are opened read-write and non-blocking on both sides. Messages are
// written atomically and read one at a time, so a packet the device has
// not polled stays in the kernel pipe. [Host.WriteOut] waits for the pipe
// to drain before sending, which is how a host sees a NAKing endpoint, and
// [HAL.InReady] reports an IN endpoint free once the host has read it.
//
// # Usage
//
//	h := fifo.New("/tmp/usb-bus")
//	stack := device.NewStack(dev, h)
//	stack.Start(ctx)
//	for {
//	    stack.Poll()
//	}
//
// and in the host process:
//
//	host, err := fifo.Dial(ctx, "/tmp/usb-bus")
//	desc, err := host.Enumerate(ctx, 1)
//	err = host.WriteOut(ctx, 0x01, packet)
//	n, err := host.ReadIn(ctx, 0x81, buf)
package fifo
