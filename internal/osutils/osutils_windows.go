//go:build windows

package osutils

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// ToggleSignals returns the signals that toggle capture. Windows has none.
func ToggleSignals() []os.Signal { return nil }

// EnsureFirewallRule makes sure an inbound allow rule exists for the API
// port, elevating through UAC when the process is not already admin.
func EnsureFirewallRule(port int, log zerolog.Logger) error {
	log = log.With().Str("rule", FirewallRuleName).Int("port", port).Logger()

	output, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+FirewallRuleName).CombinedOutput()
	if err == nil && ruleMatches(string(output), port) {
		log.Debug().Msg("firewall rule already present")
		return nil
	}
	log.Info().Msg("creating firewall rule")

	psCommand := firewallScript(port)

	if !IsAdmin() {
		log.Info().Msg("process is not elevated, requesting UAC elevation")

		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		var showCmd int32 = 0 // SW_HIDE

		if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, showCmd); err != nil {
			return fmt.Errorf("launch elevated powershell: %w", err)
		}
		return nil
	}

	cmd := exec.Command("powershell", "-NoProfile", "-Command", psCommand)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("create firewall rule: %w (output: %s)", err, string(output))
	}
	log.Info().Msg("firewall rule applied")
	return nil
}
