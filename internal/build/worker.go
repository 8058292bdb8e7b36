// Package build runs the documentation builds for one scheduled job: it
// drives a DAPS container through all configured formats, archives successful
// builds into the builds directory and writes failure logs.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mschnitzer/daps-buildenv/internal/docker"
	"github.com/mschnitzer/daps-buildenv/internal/logfields"
)

// Job identifies one DC file build request.
type Job struct {
	Project    string
	Branch     string
	DCFile     string
	Commit     string
	RepoDir    string
	IRCTargets []string
}

// Result is the outcome of building one format of a job.
type Result struct {
	Job     Job
	Format  string
	Success bool
	// ArchiveName is the file name under the builds directory (success only).
	ArchiveName string
	// LogPath is the failure log location (failure only).
	LogPath    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Worker executes build jobs in throwaway containers.
type Worker struct {
	docker    *docker.Client
	buildsDir string
	logDir    string
	formats   []string
	debug     bool
	now       func() time.Time
}

// NewWorker creates a build worker.
func NewWorker(dockerClient *docker.Client, buildsDir, logDir string) *Worker {
	return &Worker{
		docker:    dockerClient,
		buildsDir: buildsDir,
		logDir:    logDir,
		formats:   docker.DefaultFormats,
		now:       time.Now,
	}
}

// WithFormats overrides the built formats (fluent helper).
func (w *Worker) WithFormats(formats []string) *Worker {
	if len(formats) > 0 {
		w.formats = formats
	}
	return w
}

// WithDebug keeps containers around after the build and records extra fields
// in build_info.json.
func (w *Worker) WithDebug(debug bool) *Worker { w.debug = debug; return w }

// Run builds all formats of the job in a fresh container. The returned slice
// has one entry per format; a container-level failure aborts remaining
// formats and is returned as error alongside the results gathered so far.
func (w *Worker) Run(ctx context.Context, job Job) ([]*Result, error) {
	if err := os.MkdirAll(w.buildsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create builds dir: %w", err)
	}
	if err := os.MkdirAll(w.logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	ctr, err := w.docker.Spawn(ctx)
	if err != nil {
		return nil, fmt.Errorf("spawn build container: %w", err)
	}
	if !w.debug {
		defer func() {
			if kerr := ctr.Kill(context.WithoutCancel(ctx)); kerr != nil {
				slog.Warn("Failed to remove build container", logfields.ContainerID(ctr.ShortID()), logfields.Error(kerr))
			}
		}()
	}

	if err := ctr.Prepare(ctx, job.RepoDir); err != nil {
		return nil, fmt.Errorf("prepare build container: %w", err)
	}

	var results []*Result
	for _, format := range w.formats {
		res, err := w.buildFormat(ctx, ctr, job, format)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (w *Worker) buildFormat(ctx context.Context, ctr *docker.Container, job Job, format string) (*Result, error) {
	started := w.now()
	slog.Info("Building documentation",
		logfields.Project(job.Project), logfields.DCFile(job.DCFile), logfields.Format(format), logfields.Commit(shortCommit(job.Commit)))

	outcome, err := ctr.BuildDocumentation(ctx, job.DCFile, format)
	if err != nil {
		return nil, err
	}

	res := &Result{Job: job, Format: format, StartedAt: started}
	if outcome.Success {
		archiveName, err := w.archiveBuild(ctx, ctr, job, format, outcome)
		if err != nil {
			// Treat archiving problems like a failed build so the job does
			// not silently lose its output.
			slog.Error("Failed to archive build", logfields.DCFile(job.DCFile), logfields.Format(format), logfields.Error(err))
			res.LogPath = w.writeFailLog(job, format, outcome.Log+"\narchive error: "+err.Error())
		} else {
			res.Success = true
			res.ArchiveName = archiveName
		}
	} else {
		res.LogPath = w.writeFailLog(job, format, outcome.Log)
	}
	res.FinishedAt = w.now()
	return res, nil
}

// archiveBuild appends build_info.json to the tar archive, compresses it and
// fetches it into the builds directory.
func (w *Worker) archiveBuild(ctx context.Context, ctr *docker.Container, job Job, format string, outcome *docker.BuildOutcome) (string, error) {
	info := map[string]any{
		"dc_file":      job.DCFile,
		"format":       format,
		"build_status": true,
		"project":      job.Project,
		"branch":       job.Branch,
		"commit":       job.Commit,
	}
	if docInfo, err := ctr.DocInfo(ctx); err == nil {
		var product map[string]any
		if jerr := json.Unmarshal(docInfo, &product); jerr == nil {
			for k, v := range product {
				info[k] = v
			}
		}
	} else {
		slog.Debug("No doc info available", logfields.DCFile(job.DCFile), logfields.Error(err))
	}
	if w.debug {
		info["container_id"] = ctr.ID()
		info["dapscmd"] = outcome.Command
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("marshal build info: %w", err)
	}
	if err := ctr.FileCreate(ctx, "/tmp/build_info.json", payload); err != nil {
		return "", err
	}

	appendCmd := fmt.Sprintf("tar -C /tmp --append --file=%s build_info.json", outcome.ArchivePath)
	if res, err := ctr.Execute(ctx, appendCmd); err != nil {
		return "", err
	} else if res.ExitCode != 0 {
		return "", fmt.Errorf("tar append exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	if res, err := ctr.Execute(ctx, "gzip "+outcome.ArchivePath); err != nil {
		return "", err
	} else if res.ExitCode != 0 {
		return "", fmt.Errorf("gzip exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	archiveName := ArchiveName(w.now(), job.DCFile, format)
	dst := filepath.Join(w.buildsDir, archiveName)
	if err := ctr.Fetch(ctx, outcome.ArchivePath+".gz", dst); err != nil {
		return "", err
	}

	slog.Info("Build archived", logfields.DCFile(job.DCFile), logfields.Format(format), logfields.Path(dst))
	return archiveName, nil
}

func (w *Worker) writeFailLog(job Job, format, log string) string {
	path := filepath.Join(w.logDir, FailLogName(w.now(), job.DCFile, format))
	if err := os.WriteFile(path, []byte(log), 0o644); err != nil {
		slog.Error("Failed to write build failure log", logfields.Path(path), logfields.Error(err))
		return ""
	}
	slog.Warn("Build failed", logfields.Project(job.Project), logfields.DCFile(job.DCFile), logfields.Format(format), logfields.Path(path))
	return path
}

// ArchiveName renders the builds directory file name:
// <unix_ts>_<dc-without-prefix>_<format-with-dashes>.tar.gz
func ArchiveName(ts time.Time, dcFile, format string) string {
	return fmt.Sprintf("%d_%s_%s.tar.gz",
		ts.Unix(), strings.TrimPrefix(dcFile, "DC-"), strings.ReplaceAll(format, "_", "-"))
}

// FailLogName renders the failure log file name:
// build_fail_<dc>_<format>_<unix_ts>.log
func FailLogName(ts time.Time, dcFile, format string) string {
	return fmt.Sprintf("build_fail_%s_%s_%d.log", dcFile, format, ts.Unix())
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
