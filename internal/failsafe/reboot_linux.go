//go:build linux

package failsafe

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/muurk/wifiboot/internal/logging"
)

// Reboot restarts the whole machine. It needs CAP_SYS_BOOT.
type Reboot struct {
	sync   func()
	reboot func(cmd int) error
}

// NewReboot returns a Restarter that reboots the host.
func NewReboot() *Reboot {
	return &Reboot{
		sync:   unix.Sync,
		reboot: unix.Reboot,
	}
}

func (r *Reboot) Restart(reason error) error {
	logging.Error("Rebooting device", zap.Error(reason))
	logging.Sync()

	// flush filesystems so a credential save just before the reboot survives
	r.sync()
	if err := r.reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot failed: %w", err)
	}
	return nil
}
