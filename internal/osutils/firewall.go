// Package osutils holds small platform helpers: elevation checks, the API
// firewall rule and the capture toggle signal.
package osutils

import (
	"fmt"
	"strconv"
	"strings"
)

// FirewallRuleName is the display name of the inbound API rule.
const FirewallRuleName = "globalmkh API"

// ruleMatches reports whether netsh output describes an allow rule for port.
func ruleMatches(netshOutput string, port int) bool {
	if !strings.Contains(netshOutput, FirewallRuleName) || !strings.Contains(netshOutput, "Allow") {
		return false
	}
	for _, line := range strings.Split(netshOutput, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) != "LocalPort" {
			continue
		}
		if strings.TrimSpace(value) == strconv.Itoa(port) {
			return true
		}
	}
	return false
}

// firewallScript replaces any previous rule with one allowing TCP port.
func firewallScript(port int) string {
	return fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol TCP -Action Allow -Profile Any",
		FirewallRuleName, FirewallRuleName, port,
	)
}
