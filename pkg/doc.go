// Package pkg provides shared utilities for the USB-MIDI link.
//
// This package contains functionality used by the USB device stack, the
// bridge engine and the transport adapters:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for USB protocol and bridge conditions
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentBridge, "frame sent", "frame", f)
//
// Per-byte paths guard expensive attributes with [LogEnabled].
//
// # Errors
//
// Errors are sentinel values, wrapped with context by callers:
//
//	if errors.Is(err, pkg.ErrBusy) {
//	    // retry on the next loop iteration
//	}
package pkg
