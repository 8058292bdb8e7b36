package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/mschnitzer/daps-buildenv/internal/api"
	"github.com/mschnitzer/daps-buildenv/internal/config"
	"github.com/mschnitzer/daps-buildenv/internal/exitcodes"
	"github.com/mschnitzer/daps-buildenv/internal/git"
	"github.com/mschnitzer/daps-buildenv/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"dapsenv.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Daemon struct {
		AutoBuildConfig string `short:"a" help:"Override the autobuild configuration file"`
		NoNotify        bool   `help:"Disable IRC and NATS notifications for this run"`
		Debug           bool   `help:"Keep build containers around and record extra build info"`
	} `cmd:"" help:"Run the build daemon watching documentation repositories"`

	Status struct {
		Host string `help:"Daemon host" default:"127.0.0.1"`
		Port int    `help:"Status API port" default:"5555"`
	} `cmd:"" help:"Query the status of a running daemon"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Projects struct{} `cmd:"" help:"List the projects of the autobuild configuration"`

	Build struct {
		RepoDir string   `short:"r" required:"" help:"Path to a documentation checkout"`
		DC      string   `short:"d" required:"" help:"DC file to build"`
		Formats []string `short:"f" help:"Formats to build" default:"html,single_html,pdf"`
		Debug   bool     `help:"Keep the build container around"`
	} `cmd:"" help:"Build a single DC file once and exit"`

	Version struct{} `cmd:"" help:"Print the version"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "daemon":
		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runDaemon(runCtx); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(exitCodeFor(err))
		}
	case "status":
		if err := runStatus(CLI.Status.Host, CLI.Status.Port); err != nil {
			slog.Error("Status query failed", "error", err)
			os.Exit(exitcodes.ErrAPIUnreachable)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(exitcodes.ErrGeneral)
		}
		fmt.Printf("Configuration written to %s\n", CLI.Config)
	case "projects":
		if err := runProjects(); err != nil {
			slog.Error("Listing projects failed", "error", err)
			os.Exit(exitCodeFor(err))
		}
	case "build":
		if err := runBuild(context.Background()); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(exitCodeFor(err))
		}
	case "version":
		fmt.Printf("dapsenv %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

// exitCodeFor maps error classes onto the documented exit codes.
func exitCodeFor(err error) int {
	var invalidRepo *git.InvalidRepoError
	switch {
	case errors.As(err, &invalidRepo):
		return exitcodes.ErrInvalidGitRepo
	case errors.Is(err, errDockerImageMissing):
		return exitcodes.ErrDockerImageMissing
	case errors.Is(err, errInvalidConfig):
		return exitcodes.ErrInvalidConfig
	default:
		return exitcodes.ErrGeneral
	}
}

func runStatus(host string, port int) error {
	resp, err := api.NewClient(host, port).Status()
	if err != nil {
		return err
	}

	fmt.Printf("Running builds:   %d\n", resp.RunningBuilds)
	fmt.Printf("Scheduled builds: %d\n", resp.ScheduledBuilds)
	if len(resp.Jobs) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Printf("%-20s %-12s %-28s %-8s %-10s\n", "PROJECT", "BRANCH", "DC FILE", "STATUS", "COMMIT")
	for _, job := range resp.Jobs {
		status := "queued"
		if job.Status == 1 {
			status = "running"
		}
		commit := job.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Printf("%-20s %-12s %-28s %-8s %-10s\n", job.Project, job.Branch, job.DCFile, status, commit)
	}
	return nil
}
