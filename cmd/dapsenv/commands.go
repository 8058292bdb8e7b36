package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mschnitzer/daps-buildenv/internal/autobuild"
	"github.com/mschnitzer/daps-buildenv/internal/build"
	"github.com/mschnitzer/daps-buildenv/internal/config"
	"github.com/mschnitzer/daps-buildenv/internal/daemon"
	"github.com/mschnitzer/daps-buildenv/internal/docker"
	"github.com/mschnitzer/daps-buildenv/internal/git"
	"github.com/mschnitzer/daps-buildenv/internal/history"
	"github.com/mschnitzer/daps-buildenv/internal/metrics"
	"github.com/mschnitzer/daps-buildenv/internal/notify"
)

// Sentinels used to map startup failures onto exit codes.
var (
	errInvalidConfig      = errors.New("invalid configuration")
	errDockerImageMissing = daemon.ErrDockerImageMissing
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	return cfg, nil
}

func runDaemon(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if CLI.Daemon.AutoBuildConfig != "" {
		cfg.Daemon.AutoBuildConfig = CLI.Daemon.AutoBuildConfig
	}

	projects, err := autobuild.Load(cfg.Daemon.AutoBuildConfig)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	gitClient := git.NewClient(cfg.Paths.RepoDir)
	if err := gitClient.EnsureWorkspace(); err != nil {
		return err
	}

	dockerClient := docker.NewClient(nil, cfg.Docker.Image)
	worker := build.NewWorker(dockerClient, cfg.Paths.BuildsDir, cfg.Paths.LogDir).
		WithDebug(CLI.Daemon.Debug)

	notifier, err := buildNotifier(ctx, cfg, CLI.Daemon.NoNotify)
	if err != nil {
		return err
	}

	var store *history.Store
	if cfg.Paths.HistoryDB != "" {
		store, err = history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	recorder := metrics.NewPrometheusRecorder(daemon.Registry)

	d := daemon.New(cfg, projects, gitClient, dockerClient, worker, notifier, recorder, store)

	if err := d.CheckRequirements(ctx); err != nil {
		return err
	}
	if err := d.FetchProjects(); err != nil {
		return err
	}
	return d.Run(ctx)
}

// buildNotifier assembles the configured notification backends. noNotify
// disables them all without touching the configuration file.
func buildNotifier(ctx context.Context, cfg *config.Config, noNotify bool) (notify.Notifier, error) {
	var notifiers []notify.Notifier
	if noNotify {
		return notify.NewMulti(), nil
	}

	if cfg.Notifications.IRC.Enabled {
		irc, err := notify.NewIRCNotifier(cfg.Notifications.IRC)
		if err != nil {
			// The daemon can still build without IRC; warn and continue.
			slog.Warn("IRC notifier unavailable", "error", err)
		} else {
			notifiers = append(notifiers, irc)
		}
	}
	if cfg.Notifications.NATS.Enabled {
		nats, err := notify.NewNATSNotifier(ctx, cfg.Notifications.NATS)
		if err != nil {
			return nil, fmt.Errorf("nats notifier: %w", err)
		}
		notifiers = append(notifiers, nats)
	}
	return notify.NewMulti(notifiers...), nil
}

func runProjects() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	projects, err := autobuild.Load(cfg.Daemon.AutoBuildConfig)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	fmt.Printf("%-24s %-12s %-40s %s\n", "PROJECT", "BRANCH", "REPOSITORY", "DC FILES")
	for _, p := range projects.Projects() {
		fmt.Printf("%-24s %-12s %-40s %d\n", p.Name, p.Branch, p.Repo, len(p.DCFiles))
	}
	return nil
}

func runBuild(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(CLI.Build.RepoDir); err != nil {
		return fmt.Errorf("repository checkout not found: %w", err)
	}

	dockerClient := docker.NewClient(nil, cfg.Docker.Image)
	ok, err := dockerClient.ImageExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", errDockerImageMissing, cfg.Docker.Image)
	}

	worker := build.NewWorker(dockerClient, cfg.Paths.BuildsDir, cfg.Paths.LogDir).
		WithFormats(CLI.Build.Formats).
		WithDebug(CLI.Build.Debug)

	results, err := worker.Run(ctx, build.Job{
		Project: "adhoc",
		DCFile:  CLI.Build.DC,
		RepoDir: CLI.Build.RepoDir,
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Success {
			fmt.Printf("built %-12s -> %s\n", res.Format, res.ArchiveName)
		} else {
			failed++
			fmt.Printf("FAILED %-11s -> %s\n", res.Format, res.LogPath)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d formats failed", failed, len(results))
	}
	return nil
}
