package config

import "time"

// Default values mirror the classic dapsenv general constants.
const (
	DefaultCheckInterval  = 300 * time.Second
	DefaultMaxContainers  = 5
	DefaultAPIPort        = 5555
	DefaultAdminPort      = 9155
	DefaultContainerImage = "mschnitzer/dapsenv"
	DefaultIRCPort        = 6667
	DefaultNATSSubject    = "dapsenv.builds"
	DefaultNATSStream     = "DAPSENV"
)

// Default returns a configuration populated with defaults. Loading a file
// overlays onto this, so absent keys keep their default values.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			CheckInterval:   DefaultCheckInterval,
			MaxContainers:   DefaultMaxContainers,
			AutoBuildConfig: "autobuild.yaml",
		},
		API: APIConfig{
			Enabled:   true,
			Host:      "0.0.0.0",
			Port:      DefaultAPIPort,
			AdminPort: DefaultAdminPort,
		},
		Docker: DockerConfig{
			Image: DefaultContainerImage,
		},
		Paths: PathsConfig{
			BuildsDir: "builds",
			LogDir:    "logs",
			RepoDir:   "repos",
			HistoryDB: "dapsenv-history.db",
		},
		Notifications: NotificationsConfig{
			IRC: IRCConfig{
				Port:               DefaultIRCPort,
				BotNickname:        "dapsenv",
				BotUsername:        "dapsenv",
				InformBuildSuccess: true,
				InformBuildFail:    true,
			},
			NATS: NATSConfig{
				Subject: DefaultNATSSubject,
				Stream:  DefaultNATSStream,
			},
		},
	}
}

// applyDefaults fills zero values that unmarshalling may have cleared when a
// section was present but individual keys were omitted.
func (c *Config) applyDefaults() {
	if c.Daemon.CheckInterval == 0 {
		c.Daemon.CheckInterval = DefaultCheckInterval
	}
	if c.Daemon.MaxContainers == 0 {
		c.Daemon.MaxContainers = DefaultMaxContainers
	}
	if c.API.Port == 0 {
		c.API.Port = DefaultAPIPort
	}
	if c.API.AdminPort == 0 {
		c.API.AdminPort = DefaultAdminPort
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.Docker.Image == "" {
		c.Docker.Image = DefaultContainerImage
	}
	if c.Paths.BuildsDir == "" {
		c.Paths.BuildsDir = "builds"
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = "logs"
	}
	if c.Paths.RepoDir == "" {
		c.Paths.RepoDir = "repos"
	}
	if c.Paths.HistoryDB == "" {
		c.Paths.HistoryDB = "dapsenv-history.db"
	}
	if c.Notifications.IRC.Port == 0 {
		c.Notifications.IRC.Port = DefaultIRCPort
	}
	if c.Notifications.NATS.Subject == "" {
		c.Notifications.NATS.Subject = DefaultNATSSubject
	}
	if c.Notifications.NATS.Stream == "" {
		c.Notifications.NATS.Stream = DefaultNATSStream
	}
}
