//go:build !linux

package failsafe

import (
	"fmt"
	"runtime"
)

// Reboot is only implemented on linux.
type Reboot struct{}

// NewReboot returns a Restarter that always fails on this platform.
func NewReboot() *Reboot {
	return &Reboot{}
}

func (r *Reboot) Restart(reason error) error {
	return fmt.Errorf("reboot is not supported on %s: %w", runtime.GOOS, reason)
}
