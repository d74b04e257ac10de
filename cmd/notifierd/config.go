package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/iltoga/BusinessSuite-sub003/internal/db"
	"github.com/iltoga/BusinessSuite-sub003/internal/eventstream"
)

// Config is the daemon configuration, loaded from a TOML file with flag
// overrides on top. Durations are written as Go duration strings.
type Config struct {
	Backend       BackendConfig       `toml:"backend"`
	Daemon        DaemonConfig        `toml:"daemon"`
	Logging       LoggingConfig       `toml:"logging"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// BackendConfig points the daemon at the CRM backend.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. https://crm.example.
	BaseURL string `toml:"base_url"`

	// StreamPath is the SSE endpoint path.
	StreamPath string `toml:"stream_path"`

	// DeviceLabel overrides the generated hostname-derived label.
	DeviceLabel string `toml:"device_label"`
}

// DaemonConfig holds process-level settings.
type DaemonConfig struct {
	// ListenAddr is where surfaces attach over WebSocket.
	ListenAddr string `toml:"listen_addr"`

	// DBPath is the SQLite database location. Empty means the default
	// under the home directory.
	DBPath string `toml:"db_path"`
}

// LoggingConfig controls log output and forwarding.
type LoggingConfig struct {
	// Level is the log level applied to every subsystem.
	Level string `toml:"level"`

	// Dir is the rotating log file directory. Empty disables file
	// logging.
	Dir string `toml:"dir"`

	// ForwardWindow is the dedup window for backend log forwarding.
	ForwardWindow string `toml:"forward_window"`
}

// NotificationsConfig tunes delivery behavior.
type NotificationsConfig struct {
	// DecodePolicy is "strict" or "lenient" for malformed stream
	// payloads.
	DecodePolicy string `toml:"decode_policy"`

	// NotifyCommand is the OS notification binary.
	NotifyCommand string `toml:"notify_command"`
}

// DefaultConfig returns the daemon defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			StreamPath: "/api/notifications/stream/",
		},
		Daemon: DaemonConfig{
			ListenAddr: "127.0.0.1:7357",
		},
		Logging: LoggingConfig{
			Level:         "info",
			ForwardWindow: "1m",
		},
		Notifications: NotificationsConfig{
			DecodePolicy:  "strict",
			NotifyCommand: "notify-send",
		},
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".notifierd", "notifierd.toml"), nil
}

// LoadConfig reads the config file at path over the defaults. A missing file
// is not an error; the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("unable to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// decodePolicy maps the config string to the stream decode policy.
func (c Config) decodePolicy() (eventstream.DecodePolicy, error) {
	switch c.Notifications.DecodePolicy {
	case "", "strict":
		return eventstream.DecodeStrict, nil
	case "lenient":
		return eventstream.DecodeLenient, nil
	default:
		return eventstream.DecodeStrict, fmt.Errorf(
			"unknown decode_policy %q", c.Notifications.DecodePolicy,
		)
	}
}

// duration parses a config duration string, falling back when empty.
func duration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// dbPath resolves the database path, using the shared default when unset.
func (c Config) dbPath() (string, error) {
	if c.Daemon.DBPath != "" {
		return c.Daemon.DBPath, nil
	}
	return db.DefaultDBPath()
}
