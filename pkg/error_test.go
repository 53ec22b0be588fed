package pkg

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsDistinct(t *testing.T) {
	all := []error{
		ErrStall, ErrTimeout, ErrNoDevice, ErrNotConfigured, ErrInvalidEndpoint,
		ErrInvalidState, ErrInvalidRequest, ErrBufferTooSmall, ErrNotSupported,
		ErrBusy, ErrDescriptorTooShort, ErrDescriptorTypeMismatch,
		ErrSetupPacketTooShort, ErrAlreadyRunning, ErrNotRunning,
		ErrInvalidParameter, ErrReset, ErrRingSize, ErrClosed, ErrNoData,
		ErrWatchdogExpired,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors.Is(%v, %v) = true, want false", a, b)
			}
		}
	}
}

func TestErrorsWrap(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"busy", ErrBusy},
		{"reset", ErrReset},
		{"ring size", ErrRingSize},
		{"watchdog", ErrWatchdogExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(wrapped, %v) = false, want true", tt.err)
			}
		})
	}
}
