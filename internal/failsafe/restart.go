// Package failsafe restarts the device when it cannot get onto the network.
package failsafe

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/logging"
)

// Restarter performs the terminal recovery action. Implementations that
// succeed normally do not return.
type Restarter interface {
	Restart(reason error) error
}

// DefaultExitCode is used by Exit when Code is zero.
const DefaultExitCode = 75

// Exit terminates the process with a non-zero status and leaves the restart
// to the service manager (systemd Restart=on-failure and similar).
type Exit struct {
	Code int

	exit func(code int)
}

// NewExit returns a Restarter that exits with code.
func NewExit(code int) *Exit {
	return &Exit{Code: code, exit: os.Exit}
}

func (e *Exit) Restart(reason error) error {
	code := e.Code
	if code == 0 {
		code = DefaultExitCode
	}

	logging.Error("Exiting for restart", zap.Int("code", code), zap.Error(reason))
	logging.Sync()

	exit := e.exit
	if exit == nil {
		exit = os.Exit
	}
	exit(code)
	return nil
}

// New returns the Restarter for mode, "reboot" or "exit".
func New(mode string, exitCode int) (Restarter, error) {
	switch mode {
	case "reboot":
		return NewReboot(), nil
	case "exit", "":
		return NewExit(exitCode), nil
	default:
		return nil, fmt.Errorf("unknown restart mode %q", mode)
	}
}
