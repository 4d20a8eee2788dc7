package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the focusd daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config. The file is the primary configuration surface; flags
// only override individual values.
type Config struct {
	// Method channel served by the daemon
	Channel ChannelConfig `yaml:"channel"`

	// Notification policy backend
	Backend BackendConfig `yaml:"backend"`

	// Where to send the user when policy access is missing
	Settings SettingsConfig `yaml:"settings"`

	// Unix socket transport
	IPC IPCConfig `yaml:"ipc"`

	// HTTP transport + state websocket
	HTTP HTTPConfig `yaml:"http"`

	// Optional MQTT state publishing
	MQTT MQTTConfig `yaml:"mqtt"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type ChannelConfig struct {
	Name string `yaml:"name"`

	// StrictAuthorization reports calls redirected to the settings surface as
	// errors. When false they are reported as successes with
	// outcome "redirected_for_authorization".
	StrictAuthorization bool `yaml:"strict_authorization"`
}

type BackendConfig struct {
	Type  string             `yaml:"type"` // "auto", "gnome" or "dunst"
	Gnome GnomeBackendConfig `yaml:"gnome"`
}

type GnomeBackendConfig struct {
	Gsettings string `yaml:"gsettings"` // path to the gsettings binary
	Schema    string `yaml:"schema"`
	Key       string `yaml:"key"`
}

type SettingsConfig struct {
	// Command is started (not waited for) to open the policy-access settings.
	// Empty disables it.
	Command []string `yaml:"command"`

	// Notify posts a desktop notification asking the user to grant access.
	Notify bool `yaml:"notify"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"` // empty disables the HTTP transport
}

type MQTTConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"` // e.g. tcp://broker.home.arpa:1883
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username,omitempty"`
	PasswordFile string `yaml:"password_file,omitempty"`
	Topic        string `yaml:"topic"`
	QoS          int    `yaml:"qos"`
	Retain       bool   `yaml:"retain"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Channel: ChannelConfig{
			Name: defaultChannelName,
		},
		Backend: BackendConfig{
			Type: backendAuto,
			Gnome: GnomeBackendConfig{
				Gsettings: "gsettings",
				Schema:    defaultGnomeSchema,
				Key:       defaultGnomeKey,
			},
		},
		Settings: SettingsConfig{
			Command: []string{"gnome-control-center", "notifications"},
			Notify:  true,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath(),
		},
		HTTP: HTTPConfig{
			Listen: defaultHTTPListen,
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			ClientID: defaultMQTTClientID,
			Topic:    defaultMQTTTopic,
			QoS:      0,
			Retain:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, defaultSocketName)
}

// defaultConfigPath is where focusd looks for a config file when -config is
// not given.
func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "focusd", "config.yaml")
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		// A file with only comments is an empty config.
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from command-line flags. Each non-nil pointer is
// applied on top of the loaded config, even if it holds a zero value.
type FlagOverrides struct {
	ChannelName         *string
	StrictAuthorization *bool

	BackendType *string

	IPCSocketPath *string
	HTTPListen    *string

	MQTTEnabled *bool
	MQTTBroker  *string
	MQTTTopic   *string

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.ChannelName != nil {
		cfg.Channel.Name = *o.ChannelName
	}
	if o.StrictAuthorization != nil {
		cfg.Channel.StrictAuthorization = *o.StrictAuthorization
	}
	if o.BackendType != nil {
		cfg.Backend.Type = *o.BackendType
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.MQTTEnabled != nil {
		cfg.MQTT.Enabled = *o.MQTTEnabled
	}
	if o.MQTTBroker != nil {
		cfg.MQTT.Broker = *o.MQTTBroker
	}
	if o.MQTTTopic != nil {
		cfg.MQTT.Topic = *o.MQTTTopic
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Channel.Name) == "" {
		return errors.New("channel.name must not be empty")
	}

	switch c.Backend.Type {
	case backendAuto, backendGnome, backendDunst:
	default:
		return fmt.Errorf("backend.type must be one of %q, %q, %q", backendAuto, backendGnome, backendDunst)
	}
	if c.Backend.Type != backendDunst {
		if c.Backend.Gnome.Gsettings == "" {
			return errors.New("backend.gnome.gsettings must not be empty")
		}
		if c.Backend.Gnome.Schema == "" || c.Backend.Gnome.Key == "" {
			return errors.New("backend.gnome.schema and backend.gnome.key must not be empty")
		}
	}

	for i, arg := range c.Settings.Command {
		if arg == "" {
			return fmt.Errorf("settings.command[%d] is empty", i)
		}
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker is empty")
		}
		if c.MQTT.Topic == "" {
			return errors.New("mqtt.enabled is true but mqtt.topic is empty")
		}
		if c.MQTT.ClientID == "" {
			return errors.New("mqtt.enabled is true but mqtt.client_id is empty")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.New("mqtt.qos must be 0, 1 or 2")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if !validLogFormat(c.Logging.Format) {
		return errors.New(`logging.format must be "text" or "json"`)
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
