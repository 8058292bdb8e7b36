// Package daemon wires the watch-build-notify loop together: it polls the
// configured repositories, schedules a build job per DC file when a branch
// advances and runs those jobs in DAPS containers, bounded by the container
// limit.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mschnitzer/daps-buildenv/internal/api"
	"github.com/mschnitzer/daps-buildenv/internal/autobuild"
	"github.com/mschnitzer/daps-buildenv/internal/build"
	"github.com/mschnitzer/daps-buildenv/internal/config"
	"github.com/mschnitzer/daps-buildenv/internal/docker"
	"github.com/mschnitzer/daps-buildenv/internal/git"
	"github.com/mschnitzer/daps-buildenv/internal/history"
	"github.com/mschnitzer/daps-buildenv/internal/logfields"
	"github.com/mschnitzer/daps-buildenv/internal/metrics"
	"github.com/mschnitzer/daps-buildenv/internal/notify"
)

// ErrDockerImageMissing is returned by CheckRequirements when the configured
// DAPS image is not present on the Docker host.
var ErrDockerImageMissing = errors.New("daps container image not found")

// Daemon is the dapsenv build daemon.
type Daemon struct {
	cfg       *config.Config
	projects  *autobuild.Config
	gitClient *git.Client
	docker    *docker.Client
	worker    *build.Worker
	queue     *Queue
	notifier  notify.Notifier
	recorder  metrics.Recorder
	store     *history.Store
	hostname  string
	startTime time.Time

	// checkMu keeps repository checks strictly serial, like the original
	// poll loop; a slow check must not overlap with the next tick.
	checkMu sync.Mutex
}

// New assembles a daemon from its collaborators.
func New(cfg *config.Config, projects *autobuild.Config, gitClient *git.Client, dockerClient *docker.Client, worker *build.Worker, notifier notify.Notifier, recorder metrics.Recorder, store *history.Store) *Daemon {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if notifier == nil {
		notifier = notify.NewMulti()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Daemon{
		cfg:       cfg,
		projects:  projects,
		gitClient: gitClient,
		docker:    dockerClient,
		worker:    worker,
		queue:     NewQueue(cfg.Daemon.MaxContainers),
		notifier:  notifier,
		recorder:  recorder,
		store:     store,
		hostname:  hostname,
	}
}

// CheckRequirements verifies the environment before the daemon starts.
func (d *Daemon) CheckRequirements(ctx context.Context) error {
	ok, err := d.docker.ImageExists(ctx)
	if err != nil {
		return fmt.Errorf("check daps image: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDockerImageMissing, d.cfg.Docker.Image)
	}
	return nil
}

// FetchProjects clones or opens all configured project repositories.
func (d *Daemon) FetchProjects() error {
	return d.projects.FetchProjects(d.gitClient)
}

// Run starts all daemon components and blocks until the context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(d.cfg.Daemon.CheckInterval),
		gocron.NewTask(d.CheckProjects, ctx),
		gocron.WithName("repo-check"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule repository checks: %w", err)
	}

	var apiServer *api.Server
	if d.cfg.API.Enabled {
		apiServer = api.NewServer(d, d.cfg.API.Host, d.cfg.API.Port)
		apiServer.Start()
	}

	adminServer := d.startAdminServer()

	watcher, err := newConfigWatcher(d.cfg.Daemon.AutoBuildConfig, func() {
		changed, rerr := d.projects.Reload(d.gitClient)
		if rerr != nil {
			slog.Error("Autobuild config reload failed", logfields.Error(rerr))
			return
		}
		if !changed {
			// The daemon's own commit hash persistence also fires the
			// watcher; nothing to reload then.
			slog.Debug("Autobuild config unchanged, skipping reload", logfields.Path(d.cfg.Daemon.AutoBuildConfig))
			return
		}
		slog.Info("Autobuild config reloaded", logfields.Path(d.cfg.Daemon.AutoBuildConfig))
	})
	if err != nil {
		slog.Warn("Autobuild config watcher unavailable", logfields.Error(err))
	} else {
		watcher.Start(ctx)
	}

	go d.runManager(ctx)

	scheduler.Start()
	slog.Info("The daemon is now running",
		slog.Duration("check_interval", d.cfg.Daemon.CheckInterval),
		slog.Int("max_containers", d.cfg.Daemon.MaxContainers))

	// First check runs immediately, not after the first interval.
	d.CheckProjects(ctx)

	<-ctx.Done()

	slog.Info("Shutting down daemon")
	if err := scheduler.Shutdown(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			slog.Warn("Status API shutdown failed", logfields.Error(err))
		}
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Admin server shutdown failed", logfields.Error(err))
		}
	}
	if err := d.notifier.Close(); err != nil {
		slog.Warn("Notifier shutdown failed", logfields.Error(err))
	}
	return nil
}

// CheckProjects pulls every watched repository and schedules builds for
// branches whose head moved since the last scheduled commit.
func (d *Daemon) CheckProjects(ctx context.Context) {
	d.checkMu.Lock()
	defer d.checkMu.Unlock()

	slog.Info("Checking for updates in documentation repositories")

	for _, project := range d.projects.Projects() {
		if project.Repository == nil {
			slog.Warn("Project has no fetched repository, skipping", logfields.Project(project.Name))
			continue
		}
		if err := d.gitClient.Pull(project.Repository, project.Branch); err != nil {
			slog.Error("Failed to update repository",
				logfields.Project(project.Name), logfields.Branch(project.Branch), logfields.Error(err))
			continue
		}
		commit, err := d.gitClient.LastCommitHash(project.Repository, project.Branch)
		if err != nil {
			slog.Error("Failed to read branch head",
				logfields.Project(project.Name), logfields.Branch(project.Branch), logfields.Error(err))
			continue
		}

		changed := commit != project.LastCommit
		d.recorder.IncRepoCheck(changed)
		if !changed {
			continue
		}

		slog.Info("Documentation update detected",
			logfields.Project(project.Name), logfields.Branch(project.Branch), logfields.Commit(commit))

		if err := d.projects.UpdateCommitHash(project.Name, commit); err != nil {
			slog.Error("Failed to persist commit hash", logfields.Project(project.Name), logfields.Error(err))
		}

		for _, dcFile := range project.DCFiles {
			qj := d.queue.Enqueue(build.Job{
				Project:    project.Name,
				Branch:     project.Branch,
				DCFile:     dcFile,
				Commit:     commit,
				RepoDir:    project.RepoDir,
				IRCTargets: project.Notifications.IRC,
			})
			slog.Info("Build scheduled", logfields.JobID(qj.ID), logfields.Project(project.Name), logfields.DCFile(dcFile))
		}
		d.updateGauges()
	}

	slog.Info("Next scheduled check", slog.Time("at", time.Now().Add(d.cfg.Daemon.CheckInterval)))
}

// runManager starts queued jobs whenever build containers are available.
func (d *Daemon) runManager(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				qj := d.queue.StartNext()
				if qj == nil {
					break
				}
				d.updateGauges()
				go d.processJob(ctx, qj)
			}
		}
	}
}

// processJob builds all formats of one job and reports the results.
func (d *Daemon) processJob(ctx context.Context, qj *QueuedJob) {
	defer func() {
		d.queue.Finish(qj.ID)
		d.updateGauges()
	}()

	results, err := d.worker.Run(ctx, qj.Job)
	if err != nil {
		slog.Error("Build job failed",
			logfields.JobID(qj.ID), logfields.Project(qj.Job.Project), logfields.DCFile(qj.Job.DCFile), logfields.Error(err))
		d.recorder.IncBuildOutcome(history.OutcomeFailed)
	}

	for _, res := range results {
		d.reportResult(ctx, res)
	}
}

func (d *Daemon) reportResult(ctx context.Context, res *build.Result) {
	outcome := history.OutcomeFailed
	if res.Success {
		outcome = history.OutcomeSuccess
	}
	d.recorder.IncBuildOutcome(outcome)
	d.recorder.ObserveBuildDuration(res.Format, res.FinishedAt.Sub(res.StartedAt))

	if d.store != nil {
		rec := &history.Record{
			Project:     res.Job.Project,
			Branch:      res.Job.Branch,
			DCFile:      res.Job.DCFile,
			Format:      res.Format,
			Commit:      res.Job.Commit,
			Outcome:     outcome,
			ArchivePath: res.ArchiveName,
			LogPath:     res.LogPath,
			StartedAt:   res.StartedAt,
			FinishedAt:  res.FinishedAt,
		}
		if err := d.store.Add(ctx, rec); err != nil {
			slog.Warn("Failed to record build history", logfields.Error(err))
		}
	}

	event := &notify.Event{
		Project:     res.Job.Project,
		Branch:      res.Job.Branch,
		DCFile:      res.Job.DCFile,
		Format:      res.Format,
		Commit:      res.Job.Commit,
		Success:     res.Success,
		ArchiveName: res.ArchiveName,
		LogPath:     res.LogPath,
		Hostname:    d.hostname,
		IRCTargets:  res.Job.IRCTargets,
	}
	if err := d.notifier.Notify(ctx, event); err != nil {
		slog.Warn("Notification failed", logfields.Error(err))
	}
}

func (d *Daemon) updateGauges() {
	running, scheduled := d.queue.Counts()
	d.recorder.SetRunningBuilds(running)
	d.recorder.SetScheduledBuilds(scheduled)
}

// StatusSnapshot implements api.StatusProvider.
func (d *Daemon) StatusSnapshot() api.Snapshot {
	running, scheduled := d.queue.Counts()
	snap := api.Snapshot{RunningBuilds: running, ScheduledBuilds: scheduled}

	for _, qj := range d.queue.Snapshot() {
		job := api.Job{
			Project: qj.Job.Project,
			Branch:  qj.Job.Branch,
			DCFile:  qj.Job.DCFile,
			Status:  int(qj.Status),
			Commit:  qj.Job.Commit,
		}
		if !qj.TimeStarted.IsZero() {
			job.TimeStarted = qj.TimeStarted.Unix()
		}
		snap.Jobs = append(snap.Jobs, job)
	}
	return snap
}
