package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Daemon        DaemonConfig        `yaml:"daemon"`
	API           APIConfig           `yaml:"api"`
	Docker        DockerConfig        `yaml:"docker"`
	Paths         PathsConfig         `yaml:"paths"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// DaemonConfig controls the polling loop and build concurrency.
type DaemonConfig struct {
	// CheckInterval is the delay between repository update checks.
	CheckInterval time.Duration `yaml:"check_interval"`
	// MaxContainers caps the number of concurrently running build containers.
	MaxContainers int `yaml:"max_containers"`
	// AutoBuildConfig is the path to the autobuild project configuration.
	AutoBuildConfig string `yaml:"autobuild_config"`
}

// APIConfig controls the status API server.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port"`
	// AdminPort serves /metrics, /healthz and the build report.
	AdminPort int `yaml:"admin_port"`
}

// DockerConfig identifies the DAPS container image.
type DockerConfig struct {
	Image string `yaml:"image"`
}

// PathsConfig holds filesystem locations used by the daemon.
type PathsConfig struct {
	// BuildsDir receives finished documentation archives.
	BuildsDir string `yaml:"builds_dir"`
	// LogDir receives build failure logs.
	LogDir string `yaml:"log_dir"`
	// RepoDir is where project repositories are checked out.
	RepoDir string `yaml:"repo_dir"`
	// HistoryDB is the SQLite build history database. ":memory:" is allowed.
	HistoryDB string `yaml:"history_db"`
}

// NotificationsConfig holds the notifier backends.
type NotificationsConfig struct {
	IRC  IRCConfig  `yaml:"irc"`
	NATS NATSConfig `yaml:"nats"`
}

// IRCConfig mirrors the classic dapsenv IRC bot settings.
type IRCConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Server             string `yaml:"server"`
	Port               int    `yaml:"port"`
	Channel            string `yaml:"channel"`
	BotNickname        string `yaml:"bot_nickname"`
	BotUsername        string `yaml:"bot_username"`
	InformBuildSuccess bool   `yaml:"inform_build_success"`
	InformBuildFail    bool   `yaml:"inform_build_fail"`
	ChannelMessages    bool   `yaml:"channel_messages"`
}

// NATSConfig configures the JetStream build event publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env if present; missing files are fine.
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expandedData := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Daemon.CheckInterval <= 0 {
		return fmt.Errorf("daemon.check_interval must be positive, got %s", c.Daemon.CheckInterval)
	}
	if c.Daemon.MaxContainers <= 0 {
		return fmt.Errorf("daemon.max_containers must be positive, got %d", c.Daemon.MaxContainers)
	}
	if c.Docker.Image == "" {
		return fmt.Errorf("docker.image must not be empty")
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	if c.Notifications.IRC.Enabled {
		irc := c.Notifications.IRC
		if irc.Server == "" || irc.Channel == "" || irc.BotNickname == "" {
			return fmt.Errorf("notifications.irc requires server, channel and bot_nickname")
		}
	}
	if c.Notifications.NATS.Enabled && c.Notifications.NATS.URL == "" {
		return fmt.Errorf("notifications.nats.url must not be empty when enabled")
	}
	return nil
}
