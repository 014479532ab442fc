// Package logging wraps zerolog with the process-wide logger used by every
// globalmkh component.
//
// Component loggers share one long-lived writer. Init swaps the destinations
// and level inside that writer, so loggers taken before a config reload keep
// working and follow the new settings.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Config selects level and destinations.
type Config struct {
	Level   string
	File    string
	NoColor bool
	Out     io.Writer // defaults to os.Stderr
}

// ParseLevel maps a config string onto a zerolog level. The empty string is info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

// switchWriter is the single sink behind every logger. Writes and swaps are
// serialised, so a file is never written after it is closed.
type switchWriter struct {
	mu    sync.Mutex
	out   zerolog.LevelWriter
	level zerolog.Level
	file  *os.File
	cfg   Config
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Write(p)
}

func (s *switchWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l < s.level {
		return len(p), nil
	}
	return s.out.WriteLevel(l, p)
}

// swap installs out and level, returning the file that was in use.
func (s *switchWriter) swap(cfg Config, out zerolog.LevelWriter, level zerolog.Level, file *os.File) *os.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.file
	s.cfg, s.out, s.level, s.file = cfg, out, level, file
	return old
}

func consoleWriter(cfg Config) io.Writer {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    cfg.NoColor,
	}
}

var (
	initMu sync.Mutex
	sink   = &switchWriter{
		out:   zerolog.MultiLevelWriter(consoleWriter(Config{})),
		level: zerolog.InfoLevel,
	}
	base = zerolog.New(sink).With().Timestamp().Int("pid", os.Getpid()).Logger()
)

// Init applies cfg to the process logger. It may be called again after a
// config reload; existing component loggers pick up the change.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	initMu.Lock()
	defer initMu.Unlock()

	writers := []io.Writer{consoleWriter(cfg)}

	var f *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err = os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}

	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}
	if old := sink.swap(cfg, zerolog.MultiLevelWriter(writers...), level, f); old != nil {
		old.Close()
	}
	return nil
}

// Logger returns the process logger.
func Logger() zerolog.Logger {
	return base
}

// For returns a sub-logger tagged with the component name.
func For(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// Close flushes and closes the log file, if any. Logging continues on the
// console.
func Close() {
	initMu.Lock()
	defer initMu.Unlock()

	sink.mu.Lock()
	cfg, level := sink.cfg, sink.level
	sink.mu.Unlock()

	cfg.File = ""
	if old := sink.swap(cfg, zerolog.MultiLevelWriter(consoleWriter(cfg)), level, nil); old != nil {
		old.Close()
	}
}
