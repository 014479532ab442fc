//go:build !windows

package osutils

import (
	"os"
	"syscall"

	"github.com/rs/zerolog"
)

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// ToggleSignals returns the signals that toggle capture.
func ToggleSignals() []os.Signal { return []os.Signal{syscall.SIGUSR1} }

// EnsureFirewallRule is a stub for non-Windows platforms
func EnsureFirewallRule(port int, log zerolog.Logger) error {
	log.Debug().Int("port", port).Msg("firewall rule management is only supported on Windows")
	return nil
}
