// Package autostart registers the daemon to start with the user session.
package autostart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

// Label identifies the launch entry on every platform.
const Label = "com.globalmkh.daemon"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=globalmkh
Comment=Global mouse and keyboard hook daemon
Exec={{.Command}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

type entry struct {
	Label          string
	ExecutablePath string
	Args           []string
}

// Command is the quoted command line used by desktop entries and the
// Windows Run key.
func (e entry) Command() string {
	parts := make([]string, 0, len(e.Args)+1)
	for _, p := range append([]string{e.ExecutablePath}, e.Args...) {
		if strings.ContainsAny(p, " \t\"") {
			p = `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

func newEntry(args []string) (entry, error) {
	execPath, err := os.Executable()
	if err != nil {
		return entry{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	return entry{Label: Label, ExecutablePath: execPath, Args: args}, nil
}

// Enable starts the running executable with args on login.
func Enable(args []string) error {
	e, err := newEntry(args)
	if err != nil {
		return err
	}

	if runtime.GOOS == "windows" {
		return enableWindows(e)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	path, tmpl := entryFile(home)
	return writeEntry(path, tmpl, e)
}

// Disable removes the login entry. A missing entry is not an error.
func Disable() error {
	if runtime.GOOS == "windows" {
		return disableWindows()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	path, _ := entryFile(home)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	if runtime.GOOS == "windows" {
		return isEnabledWindows()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	path, _ := entryFile(home)
	_, err = os.Stat(path)
	return err == nil
}

// entryFile returns the login entry path under home and its template.
func entryFile(home string) (string, string) {
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "LaunchAgents", Label+".plist"), macLaunchAgentPlist
	}
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = filepath.Join(home, ".config")
	}
	return filepath.Join(config, "autostart", Label+".desktop"), xdgDesktopEntry
}

func render(tmpl string, e entry) ([]byte, error) {
	t, err := template.New("entry").Parse(tmpl)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEntry(path, tmpl string, e entry) error {
	data, err := render(tmpl, e)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
