package bridge

import (
	"fmt"
	"time"

	"github.com/ardnew/midilink/pkg"
)

// Default configuration values.
const (
	// DefaultMaxPacketSize is the wMaxPacketSize of the USB-MIDI OUT endpoint.
	DefaultMaxPacketSize = 8

	// DefaultRingSize holds four full-speed low-bandwidth OUT packets.
	DefaultRingSize = DefaultMaxPacketSize << 2
)

// Config controls the bridge buffers and scheduling.
type Config struct {
	// RingSize is the capacity of the USB-to-serial ring. Must be a power
	// of two larger than MaxPacketSize.
	RingSize int

	// MaxPacketSize is the largest host-to-device packet. The ring's
	// low-water mark is RingSize-MaxPacketSize.
	MaxPacketSize int

	// FlowControl makes the bridge stop accepting USB requests when the
	// ring cannot hold another full packet. Requests are re-enabled once
	// the ring drains below the low-water mark. Without it a full ring
	// overwrites its oldest bytes.
	FlowControl bool

	// IdleInterval is slept after an iteration that moved no data. Zero
	// only yields the processor.
	IdleInterval time.Duration
}

// DefaultConfig returns an 8-byte packet size and a 32-byte ring without
// flow control.
func DefaultConfig() Config {
	return Config{
		RingSize:      DefaultRingSize,
		MaxPacketSize: DefaultMaxPacketSize,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxPacketSize < FrameSize || c.MaxPacketSize%FrameSize != 0 {
		return fmt.Errorf("max packet size %d must be a positive multiple of %d: %w",
			c.MaxPacketSize, FrameSize, pkg.ErrInvalidParameter)
	}
	if c.RingSize < 2 || c.RingSize&(c.RingSize-1) != 0 {
		return fmt.Errorf("ring size %d: %w", c.RingSize, pkg.ErrRingSize)
	}
	if c.RingSize <= c.MaxPacketSize {
		return fmt.Errorf("ring size %d must exceed max packet size %d: %w",
			c.RingSize, c.MaxPacketSize, pkg.ErrInvalidParameter)
	}
	if c.IdleInterval < 0 {
		return fmt.Errorf("idle interval %v: %w", c.IdleInterval, pkg.ErrInvalidParameter)
	}
	return nil
}
