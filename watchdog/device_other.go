//go:build !linux

package watchdog

import (
	"fmt"
	"time"

	"github.com/ardnew/midilink/pkg"
)

// DefaultDevice is empty where no hardware watchdog driver exists.
const DefaultDevice = ""

// Device is unavailable on this platform.
type Device struct{}

// OpenDevice returns [pkg.ErrNotSupported].
func OpenDevice(path string, _ time.Duration) (*Device, error) {
	return nil, fmt.Errorf("hardware watchdog %q: %w", path, pkg.ErrNotSupported)
}

// Timeout returns zero.
func (*Device) Timeout() time.Duration { return 0 }

// Kick does nothing.
func (*Device) Kick() {}

// Err returns nil.
func (*Device) Err() error { return nil }

// Close does nothing.
func (*Device) Close() error { return nil }
