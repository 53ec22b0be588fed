package watchdog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ardnew/midilink/bridge"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// DefaultTimeout is the expiry used when none is given.
const DefaultTimeout = time.Second

// Software calls an expiry action when it is not kicked within its timeout.
//
// Kick only stores a timestamp, so it is safe to call on every loop
// iteration. A monitor goroutine started by Start compares the timestamp
// against the timeout.
type Software struct {
	timeout  time.Duration
	onExpire func()

	last        atomic.Int64
	kicks       atomic.Uint64
	expirations atomic.Uint64
	expired     atomic.Bool

	mutex  syncutil.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

// NewSoftware creates a watchdog that calls onExpire once each time the
// timeout passes without a kick. A non-positive timeout selects
// [DefaultTimeout].
func NewSoftware(timeout time.Duration, onExpire func()) *Software {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if onExpire == nil {
		onExpire = func() {}
	}
	return &Software{
		timeout:  timeout,
		onExpire: onExpire,
		now:      time.Now,
	}
}

// Timeout returns the expiry duration.
func (w *Software) Timeout() time.Duration {
	return w.timeout
}

// Start arms the watchdog. It is disarmed by Stop or when ctx is done.
func (w *Software) Start(ctx context.Context) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.cancel != nil {
		return pkg.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.Kick()

	go w.monitor(ctx, w.done)
	pkg.LogDebug(pkg.ComponentWatchdog, "watchdog armed", "timeout", w.timeout)
	return nil
}

// Stop disarms the watchdog and waits for the monitor to exit.
func (w *Software) Stop() {
	w.mutex.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	pkg.LogDebug(pkg.ComponentWatchdog, "watchdog disarmed")
}

// Kick restarts the timeout.
func (w *Software) Kick() {
	w.last.Store(w.now().UnixNano())
	w.kicks.Add(1)
	w.expired.Store(false)
}

// Kicks returns the number of kicks received.
func (w *Software) Kicks() uint64 {
	return w.kicks.Load()
}

// Expirations returns the number of times the watchdog expired.
func (w *Software) Expirations() uint64 {
	return w.expirations.Load()
}

// Expired reports whether the watchdog has expired since the last kick.
func (w *Software) Expired() bool {
	return w.expired.Load()
}

func (w *Software) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(w.timeout/4, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Software) check() {
	elapsed := time.Duration(w.now().UnixNano() - w.last.Load())
	if elapsed < w.timeout || !w.expired.CompareAndSwap(false, true) {
		return
	}
	w.expirations.Add(1)
	pkg.LogError(pkg.ComponentWatchdog, "watchdog expired",
		"elapsed", elapsed, "timeout", w.timeout)
	w.onExpire()
}

// Nop is a watchdog that is never armed.
type Nop struct{}

// Kick does nothing.
func (Nop) Kick() {}

var (
	_ bridge.Watchdog = (*Software)(nil)
	_ bridge.Watchdog = Nop{}
)
