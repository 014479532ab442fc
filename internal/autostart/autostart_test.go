package autostart

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPlist(t *testing.T) {
	e := entry{Label: Label, ExecutablePath: "/Applications/globalmkh", Args: []string{"-config", "/tmp/c.toml"}}
	data, err := render(macLaunchAgentPlist, e)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, "<string>com.globalmkh.daemon</string>")
	assert.Contains(t, s, "<string>/Applications/globalmkh</string>\n        <string>-config</string>\n        <string>/tmp/c.toml</string>")
}

func TestRenderDesktopEntryQuotes(t *testing.T) {
	e := entry{Label: Label, ExecutablePath: "/opt/global mkh/bin", Args: []string{"-config", "a.toml"}}
	data, err := render(xdgDesktopEntry, e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `Exec="/opt/global mkh/bin" -config a.toml`)
}

func TestWriteEntry(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	path, tmpl := entryFile(home)
	assert.True(t, strings.HasPrefix(path, home))

	require.NoError(t, writeEntry(path, tmpl, entry{Label: Label, ExecutablePath: "/bin/globalmkh"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/bin/globalmkh")
}
