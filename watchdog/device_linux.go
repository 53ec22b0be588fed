package watchdog

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/midilink/bridge"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// DefaultDevice is the Linux watchdog character device.
const DefaultDevice = "/dev/watchdog"

// magicClose disarms a watchdog opened without nowayout.
const magicClose = 'V'

// Device drives a Linux hardware watchdog. If the process stops kicking it
// the machine is reset.
type Device struct {
	path    string
	fd      int
	timeout time.Duration
	every   time.Duration

	mutex syncutil.Mutex
	last  time.Time
	err   error
}

// OpenDevice opens the watchdog at path and sets its timeout, rounded up to
// whole seconds.
func OpenDevice(path string, timeout time.Duration) (*Device, error) {
	if path == "" {
		path = DefaultDevice
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}

	secs := int((timeout + time.Second - 1) / time.Second)
	if err := unix.IoctlSetPointerInt(fd, unix.WDIOC_SETTIMEOUT, secs); err != nil {
		pkg.LogWarn(pkg.ComponentWatchdog, "cannot set watchdog timeout",
			"device", path, "seconds", secs, "error", err)
	}
	if got, err := unix.IoctlGetInt(fd, unix.WDIOC_GETTIMEOUT); err == nil && got > 0 {
		secs = got
	}

	d := &Device{
		path:    path,
		fd:      fd,
		timeout: time.Duration(secs) * time.Second,
	}
	d.every = d.timeout / 4
	pkg.LogInfo(pkg.ComponentWatchdog, "hardware watchdog armed", "device", path, "timeout", d.timeout)
	return d, nil
}

// Timeout returns the timeout reported by the driver.
func (d *Device) Timeout() time.Duration {
	return d.timeout
}

// Kick pings the hardware. Pings closer together than a quarter of the
// timeout are skipped.
func (d *Device) Kick() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.fd < 0 {
		return
	}
	now := time.Now()
	if now.Sub(d.last) < d.every {
		return
	}
	d.last = now
	if err := unix.IoctlWatchdogKeepalive(d.fd); err != nil && d.err == nil {
		d.err = err
		pkg.LogError(pkg.ComponentWatchdog, "watchdog keepalive failed", "device", d.path, "error", err)
	}
}

// Err returns the first keepalive failure.
func (d *Device) Err() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.err
}

// Close disarms and closes the watchdog.
func (d *Device) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.fd < 0 {
		return nil
	}
	if _, err := unix.Write(d.fd, []byte{magicClose}); err != nil {
		pkg.LogWarn(pkg.ComponentWatchdog, "watchdog magic close failed", "device", d.path, "error", err)
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return fmt.Errorf("close watchdog %s: %w", d.path, err)
	}
	pkg.LogInfo(pkg.ComponentWatchdog, "hardware watchdog disarmed", "device", d.path)
	return nil
}

var _ bridge.Watchdog = (*Device)(nil)
