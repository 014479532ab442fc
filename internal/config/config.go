// Package config provides configuration management for the hook daemon.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user configuration directory.
const AppName = "globalmkh"

// Config represents the application configuration
type Config struct {
	General GeneralConfig `toml:"general" json:"general" yaml:"general"`
	API     APIConfig     `toml:"api" json:"api" yaml:"api"`
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" json:"log_level" yaml:"log_level"`

	// LogFile is an optional file that receives a copy of the log.
	LogFile string `toml:"log_file,omitempty" json:"log_file,omitempty" yaml:"log_file,omitempty"`

	// Tray shows the system tray menu.
	Tray bool `toml:"tray" json:"tray" yaml:"tray"`

	// StartOnLogin registers the daemon to start with the user session.
	StartOnLogin bool `toml:"start_on_login" json:"start_on_login" yaml:"start_on_login"`

	// StartPaused pauses every category right after its hook installs.
	StartPaused bool `toml:"start_paused" json:"start_paused" yaml:"start_paused"`
}

// APIConfig configures the HTTP and WebSocket server.
type APIConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Listen is the host:port to bind.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`

	// Token is an optional bearer token required on every request but /health.
	Token string `toml:"token,omitempty" json:"token,omitempty" yaml:"token,omitempty"`
}

// CaptureConfig configures the input core.
type CaptureConfig struct {
	// ToggleHotkey pauses or resumes every category (e.g. "Ctrl+Alt+P").
	// Empty disables the hotkey.
	ToggleHotkey string `toml:"toggle_hotkey" json:"toggle_hotkey" yaml:"toggle_hotkey"`

	// QueueSize bounds raw events waiting for dispatch.
	QueueSize int `toml:"queue_size" json:"queue_size" yaml:"queue_size"`

	// AutoSubscribe lists events subscribed at startup so capture begins
	// without a remote watcher.
	AutoSubscribe []string `toml:"auto_subscribe" json:"auto_subscribe" yaml:"auto_subscribe"`
}

// JournalConfig configures the SQLite event journal.
type JournalConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path of the database file. Relative paths resolve against the config
	// directory.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Events lists the recorded events.
	Events []string `toml:"events" json:"events" yaml:"events"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			Tray:     true,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:18080",
		},
		Capture: CaptureConfig{
			ToggleHotkey: "Ctrl+Alt+P",
			QueueSize:    1024,
		},
		Journal: JournalConfig{
			Path:   "journal.db",
			Events: []string{"keyup", "mousedown", "mousewheel"},
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Capture.AutoSubscribe = append([]string(nil), c.Capture.AutoSubscribe...)
	out.Journal.Events = append([]string(nil), c.Journal.Events...)
	return &out
}

// ApplyEnvOverrides applies GLOBALMKH_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GLOBALMKH_LOG_LEVEL"); v != "" {
		c.General.LogLevel = v
	}
	if v := os.Getenv("GLOBALMKH_API_LISTEN"); v != "" {
		c.API.Listen = v
	}
	if v := os.Getenv("GLOBALMKH_API_TOKEN"); v != "" {
		c.API.Token = v
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  []func(*Config)
}

// NewManager creates a manager for path. An empty path selects config.toml
// in the platform config directory.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.toml")
	}

	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// Dir returns the per-user configuration directory, creating it if needed.
func Dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, AppName)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", AppName)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

// Path returns the config file path.
func (m *Manager) Path() string { return m.configPath }

// ResolvePath resolves p against the config file's directory.
func (m *Manager) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(m.configPath), p)
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	cfg, err := loadFile(m.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate %s: %w", m.configPath, err)
	}

	m.Set(cfg)
	return nil
}

// Save writes the configuration to disk in the format implied by the file
// extension.
func (m *Manager) Save() error {
	m.mu.Lock()
	cfg := m.config.Clone()
	path := m.configPath
	m.mu.Unlock()

	data, err := encode(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}

// Set updates the configuration and notifies callbacks.
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config.Clone()
	callbacks := slices.Clone(m.onChanged)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(config.Clone())
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = append(m.onChanged, fn)
}

// loadFile reads and parses a config file based on its extension.
func loadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	return cfg, nil
}

func encode(cfg *Config, ext string) ([]byte, error) {
	switch ext {
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}
