package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitWritesComponentField(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: "debug", Out: &buf, NoColor: true}))
	defer Close()

	l := For("input")
	l.Info().Msg("hook installed")

	assert.Contains(t, buf.String(), "hook installed")
	assert.Contains(t, buf.String(), "component=input")
}

func TestInitFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: "warn", Out: &buf, NoColor: true}))
	defer Close()

	l := Logger()
	l.Info().Msg("quiet")
	l.Warn().Msg("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestInitLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "globalmkh.log")
	require.NoError(t, Init(Config{File: path, Out: &bytes.Buffer{}}))

	l := Logger()
	l.Info().Msg("to file")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestReinitKeepsComponentLoggersWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "globalmkh.log")
	require.NoError(t, Init(Config{Level: "info", File: path, Out: &bytes.Buffer{}}))
	defer Close()

	comp := For("input")
	comp.Info().Msg("before-reload")
	comp.Debug().Msg("debug-before")

	require.NoError(t, Init(Config{Level: "debug", File: path, Out: &bytes.Buffer{}}))
	comp.Info().Msg("after-reload")
	comp.Debug().Msg("debug-after")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "before-reload")
	assert.Contains(t, s, "after-reload", "old sub-logger writes to the reopened file")
	assert.NotContains(t, s, "debug-before")
	assert.Contains(t, s, "debug-after", "new level reaches old sub-loggers")
}

func TestCloseKeepsConsole(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "globalmkh.log")
	require.NoError(t, Init(Config{File: path, Out: &buf, NoColor: true}))
	comp := For("api")
	Close()

	comp.Info().Msg("after-close")
	assert.Contains(t, buf.String(), "after-close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "after-close")
}
