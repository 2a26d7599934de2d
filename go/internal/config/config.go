// Package config loads the headless client's settings: an optional YAML file
// supplies defaults and environment variables override it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/tablesync/go/internal/realtime/connection"
	"github.com/mcdev12/tablesync/go/internal/realtime/gate"
	"github.com/mcdev12/tablesync/go/internal/realtime/streams"
	"github.com/mcdev12/tablesync/go/internal/relay"
	"github.com/mcdev12/tablesync/go/internal/tableclient"
	"gopkg.in/yaml.v3"
)

// Hint store kinds.
const (
	HintsMemory   = "memory"
	HintsFile     = "file"
	HintsPostgres = "postgres"
	HintsPgx      = "pgx"
	HintsSQLite   = "sqlite"
)

var ErrMissingServerURL = errors.New("server url is required")

type Config struct {
	ServerURL string `yaml:"server_url"`
	APIURL    string `yaml:"api_url"`
	Token     string `yaml:"token"`
	LogLevel  string `yaml:"log_level"`

	AckTimeout time.Duration `yaml:"ack_timeout"`

	Reconnect struct {
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		MaxAttempts  int           `yaml:"max_attempts"`
	} `yaml:"reconnect"`

	Streams struct {
		ChatWindow     int `yaml:"chat_window"`
		ReactionWindow int `yaml:"reaction_window"`
	} `yaml:"streams"`

	Hints struct {
		Store string `yaml:"store"`
		File  string `yaml:"file"`
		Key   string `yaml:"key"`
	} `yaml:"hints"`

	Relay struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`

	StatusAddr string `yaml:"status_addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	c := &Config{
		LogLevel:   "info",
		AckTimeout: gate.DefaultTimeout,
	}
	conn := connection.DefaultConfig()
	c.Reconnect.InitialDelay = conn.InitialBackoff
	c.Reconnect.MaxDelay = conn.MaxBackoff
	c.Reconnect.MaxAttempts = conn.MaxAttempts
	c.Streams.ChatWindow = streams.DefaultChatLimit
	c.Streams.ReactionWindow = streams.DefaultReactionLimit
	c.Hints.Store = HintsFile
	c.Hints.File = "tablesync-session.yaml"
	c.Hints.Key = "default"
	c.Relay.SubjectPrefix = relay.DefaultConfig().SubjectPrefix
	return c
}

// Load reads the YAML file at path, if any, over the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromEnv loads the file named by TABLESYNC_CONFIG, if set.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("TABLESYNC_CONFIG"))
}

func (c *Config) applyEnv() {
	c.ServerURL = getEnv("TABLESYNC_SERVER_URL", c.ServerURL)
	c.APIURL = getEnv("TABLESYNC_API_URL", c.APIURL)
	c.Token = getEnv("TABLESYNC_TOKEN", c.Token)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.AckTimeout = getEnvAsDuration("TABLESYNC_ACK_TIMEOUT", c.AckTimeout)
	c.Reconnect.InitialDelay = getEnvAsDuration("TABLESYNC_RECONNECT_INITIAL_DELAY", c.Reconnect.InitialDelay)
	c.Reconnect.MaxDelay = getEnvAsDuration("TABLESYNC_RECONNECT_MAX_DELAY", c.Reconnect.MaxDelay)
	c.Reconnect.MaxAttempts = getEnvAsInt("TABLESYNC_RECONNECT_MAX_ATTEMPTS", c.Reconnect.MaxAttempts)
	c.Streams.ChatWindow = getEnvAsInt("TABLESYNC_CHAT_WINDOW", c.Streams.ChatWindow)
	c.Streams.ReactionWindow = getEnvAsInt("TABLESYNC_REACTION_WINDOW", c.Streams.ReactionWindow)
	c.Hints.Store = getEnv("TABLESYNC_HINT_STORE", c.Hints.Store)
	c.Hints.File = getEnv("TABLESYNC_HINT_FILE", c.Hints.File)
	c.Hints.Key = getEnv("TABLESYNC_HINT_KEY", c.Hints.Key)
	c.Relay.URL = getEnv("NATS_URL", c.Relay.URL)
	c.Relay.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.Relay.SubjectPrefix)
	c.StatusAddr = getEnv("STATUS_ADDR", c.StatusAddr)
}

// Validate checks the settings the client cannot start without.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrMissingServerURL
	}
	switch c.Hints.Store {
	case HintsMemory, HintsFile, HintsPostgres, HintsPgx, HintsSQLite:
	default:
		return fmt.Errorf("unknown hint store %q", c.Hints.Store)
	}
	if c.Hints.Store == HintsFile && c.Hints.File == "" {
		return errors.New("hint file path is required for the file hint store")
	}
	if c.AckTimeout <= 0 {
		return fmt.Errorf("ack timeout must be positive, got %s", c.AckTimeout)
	}
	return nil
}

// Client returns the tableclient settings.
func (c *Config) Client() tableclient.Config {
	tc := tableclient.DefaultConfig()
	tc.Gate.Timeout = c.AckTimeout
	tc.Connection.InitialBackoff = c.Reconnect.InitialDelay
	tc.Connection.MaxBackoff = c.Reconnect.MaxDelay
	tc.Connection.MaxAttempts = c.Reconnect.MaxAttempts
	tc.ChatLimit = c.Streams.ChatWindow
	tc.ReactionLimit = c.Streams.ReactionWindow
	return tc
}

// RelayEnabled reports whether snapshots should be republished over NATS.
func (c *Config) RelayEnabled() bool {
	return c.Relay.URL != ""
}

// RelayConfig returns the relay settings.
func (c *Config) RelayConfig() relay.Config {
	rc := relay.DefaultConfig()
	rc.URL = c.Relay.URL
	rc.SubjectPrefix = c.Relay.SubjectPrefix
	return rc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
