package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# dapsenv daemon configuration
daemon:
  # How often to check documentation repositories for new commits.
  check_interval: 300s
  # Maximum number of concurrently running build containers.
  max_containers: 5
  autobuild_config: autobuild.yaml

api:
  enabled: true
  host: 0.0.0.0
  port: 5555
  admin_port: 9155

docker:
  image: mschnitzer/dapsenv

paths:
  builds_dir: builds
  log_dir: logs
  repo_dir: repos
  history_db: dapsenv-history.db

notifications:
  irc:
    enabled: false
    server: irc.libera.chat
    port: 6667
    channel: "#dapsenv"
    bot_nickname: dapsenv
    bot_username: dapsenv
    inform_build_success: true
    inform_build_fail: true
    channel_messages: true
  nats:
    enabled: false
    url: nats://127.0.0.1:4222
    subject: dapsenv.builds
    stream: DAPSENV
`

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
