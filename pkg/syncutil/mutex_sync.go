//go:build !deadlock

// Package syncutil provides the mutex types used throughout the bridge.
//
// Builds use [sync.Mutex] and [sync.RWMutex] by default. Building with
// -tags=deadlock swaps in github.com/sasha-s/go-deadlock, which reports lock
// ordering violations and locks held longer than [DeadlockTimeout].
package syncutil

import (
	"sync"
	"time"
)

// Detecting reports whether deadlock detection is compiled in.
const Detecting = false

// DeadlockTimeout is unused without the deadlock build tag.
var DeadlockTimeout time.Duration

// Mutex is a [sync.Mutex].
type Mutex struct {
	sync.Mutex
}

// RWMutex is a [sync.RWMutex].
type RWMutex struct {
	sync.RWMutex
}
