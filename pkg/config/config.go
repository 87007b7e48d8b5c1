package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultListen          = "127.0.0.1:8080"
	DefaultHistoryLimit    = 50
	DefaultMaxHistoryLimit = 200
	DefaultPreviewLength   = 80
	DefaultSendBuffer      = 128
	DefaultQueue           = "notifications"
)

type Config struct {
	StorageDir    string              `toml:"storage_dir"`
	Listen        string              `toml:"listen"`
	LogLevel      string              `toml:"log_level"`
	Auth          AuthConfig          `toml:"auth"`
	Chat          ChatConfig          `toml:"chat"`
	Notifications NotificationsConfig `toml:"notifications"`
}

type AuthConfig struct {
	// Secret is the HS256 key used to verify connection credentials.
	Secret   string   `toml:"secret"`
	Issuer   string   `toml:"issuer,omitempty"`
	TokenTTL Duration `toml:"token_ttl"`
}

type ChatConfig struct {
	HistoryLimit    int      `toml:"history_limit"`
	MaxHistoryLimit int      `toml:"max_history_limit"`
	PreviewLength   int      `toml:"preview_length"`
	SendBuffer      int      `toml:"send_buffer"`
	WriteWait       Duration `toml:"write_wait"`
	PingPeriod      Duration `toml:"ping_period"`
}

type NotificationsConfig struct {
	// Persist stores notices in the local database.
	Persist bool `toml:"persist"`
	// SocketPath, when set, publishes notices as NDJSON on a unix socket.
	SocketPath string `toml:"socket_path,omitempty"`
	// RedisURL, when set, enqueues notices as asynq tasks.
	RedisURL string `toml:"redis_url,omitempty"`
	Queue    string `toml:"queue,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	cfg.Notifications.Persist = true
	return cfg, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Config{Notifications: NotificationsConfig{Persist: true}}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Auth.TokenTTL.Duration == 0 {
		c.Auth.TokenTTL = Duration{24 * time.Hour}
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = DefaultHistoryLimit
	}
	if c.Chat.MaxHistoryLimit < c.Chat.HistoryLimit {
		c.Chat.MaxHistoryLimit = DefaultMaxHistoryLimit
		if c.Chat.MaxHistoryLimit < c.Chat.HistoryLimit {
			c.Chat.MaxHistoryLimit = c.Chat.HistoryLimit
		}
	}
	if c.Chat.PreviewLength <= 0 {
		c.Chat.PreviewLength = DefaultPreviewLength
	}
	if c.Chat.SendBuffer <= 0 {
		c.Chat.SendBuffer = DefaultSendBuffer
	}
	if c.Chat.WriteWait.Duration == 0 {
		c.Chat.WriteWait = Duration{10 * time.Second}
	}
	if c.Chat.PingPeriod.Duration == 0 {
		c.Chat.PingPeriod = Duration{30 * time.Second}
	}
	if c.Notifications.Queue == "" {
		c.Notifications.Queue = DefaultQueue
	}
}

// Validate reports configuration that would prevent the server from starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if len(c.Auth.Secret) < 16 {
		return fmt.Errorf("auth.secret must be at least 16 bytes")
	}
	return nil
}

// DBPath returns the chat database location inside the storage directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "huddle.db")
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0600)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0600)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/huddle", storageDir, 1)
	if c.Auth.Secret != "" {
		template = strings.Replace(template, "change-me-to-a-long-random-string", c.Auth.Secret, 1)
	}
	return template, nil
}

// GetDefaultStorageDir returns the default storage directory for databases
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "huddle")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns the configuration directory for huddle
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "huddle")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
