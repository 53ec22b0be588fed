package uart

import (
	"fmt"
	"time"

	"github.com/ardnew/midilink/pkg"
)

// Line rates.
const (
	// MIDIBaud is the MIDI 1.0 current-loop rate.
	MIDIBaud = 31250

	// LinkBaud is the rate used between two adapters wired back to back.
	LinkBaud = 125000
)

// Default configuration values.
const (
	DefaultBufferSize  = 64
	DefaultReadTimeout = 10 * time.Millisecond
)

// Config describes a serial line. Framing is always 8N1.
type Config struct {
	// Baud is the line rate in bits per second.
	Baud int

	// RxBuffer is the number of received bytes held before new bytes
	// are dropped as overruns.
	RxBuffer int

	// TxBuffer is the number of bytes queued for transmission before
	// TransmitReady reports false.
	TxBuffer int

	// ReadTimeout bounds each read of the underlying port so the reader
	// notices Close.
	ReadTimeout time.Duration
}

// DefaultConfig returns a MIDI line configuration.
func DefaultConfig() Config {
	return Config{
		Baud:        MIDIBaud,
		RxBuffer:    DefaultBufferSize,
		TxBuffer:    DefaultBufferSize,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud %d: %w", c.Baud, pkg.ErrInvalidParameter)
	}
	if c.RxBuffer <= 0 || c.TxBuffer <= 0 {
		return fmt.Errorf("buffer sizes rx=%d tx=%d: %w",
			c.RxBuffer, c.TxBuffer, pkg.ErrInvalidParameter)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout %v: %w", c.ReadTimeout, pkg.ErrInvalidParameter)
	}
	return nil
}

// ByteTime is the time one 8N1 character occupies on the line.
func (c Config) ByteTime() time.Duration {
	if c.Baud <= 0 {
		return 0
	}
	return time.Duration(10 * int64(time.Second) / int64(c.Baud))
}
