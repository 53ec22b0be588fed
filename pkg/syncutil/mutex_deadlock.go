//go:build deadlock

package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Detecting reports whether deadlock detection is compiled in.
const Detecting = true

// DeadlockTimeout is how long a lock may be waited on before go-deadlock
// reports it. The bridge loop never holds a lock across I/O, so anything
// close to a second is already a bug.
var DeadlockTimeout = 2 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = DeadlockTimeout
}

// Mutex is a go-deadlock mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a go-deadlock read/write mutex.
type RWMutex struct {
	deadlock.RWMutex
}
