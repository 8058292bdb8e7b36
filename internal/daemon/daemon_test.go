package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschnitzer/daps-buildenv/internal/autobuild"
	"github.com/mschnitzer/daps-buildenv/internal/build"
	"github.com/mschnitzer/daps-buildenv/internal/config"
	"github.com/mschnitzer/daps-buildenv/internal/docker"
	"github.com/mschnitzer/daps-buildenv/internal/git"
)

type noopRunner struct{}

func (noopRunner) Run(_ context.Context, _ []byte, _ ...string) ([]byte, []byte, int, error) {
	return []byte("ok\n"), nil, 0, nil
}

func commitTo(t *testing.T, repo *gogit.Repository, dir, name, msg string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(msg), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

// newTestDaemon builds a daemon watching one local repository with two DC files.
func newTestDaemon(t *testing.T) (*Daemon, *gogit.Repository, string, string) {
	t.Helper()

	srcDir := t.TempDir()
	srcRepo, err := gogit.PlainInit(srcDir, false)
	require.NoError(t, err)
	commitTo(t, srcRepo, srcDir, "DC-manual", "initial")

	abPath := filepath.Join(t.TempDir(), "autobuild.yaml")
	abContent := "projects:\n" +
		"  - name: manual\n" +
		"    repo: " + srcDir + "\n" +
		"    branch: master\n" +
		"    dc_files: [DC-manual, DC-manual-html]\n"
	require.NoError(t, os.WriteFile(abPath, []byte(abContent), 0o644))

	projects, err := autobuild.Load(abPath)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Daemon.AutoBuildConfig = abPath
	cfg.Daemon.MaxContainers = 1
	cfg.Paths.RepoDir = filepath.Join(t.TempDir(), "repos")

	gitClient := git.NewClient(cfg.Paths.RepoDir)
	require.NoError(t, gitClient.EnsureWorkspace())

	dockerClient := docker.NewClient(noopRunner{}, cfg.Docker.Image)
	worker := build.NewWorker(dockerClient, t.TempDir(), t.TempDir())

	d := New(cfg, projects, gitClient, dockerClient, worker, nil, nil, nil)
	require.NoError(t, d.FetchProjects())
	return d, srcRepo, srcDir, abPath
}

func TestCheckProjectsSchedulesJobsPerDCFile(t *testing.T) {
	d, _, _, abPath := newTestDaemon(t)

	d.CheckProjects(context.Background())

	snap := d.StatusSnapshot()
	assert.Equal(t, 0, snap.RunningBuilds)
	assert.Equal(t, 2, snap.ScheduledBuilds)
	require.Len(t, snap.Jobs, 2)
	assert.Equal(t, "DC-manual", snap.Jobs[0].DCFile)
	assert.Equal(t, "DC-manual-html", snap.Jobs[1].DCFile)
	assert.Equal(t, int(StatusQueued), snap.Jobs[0].Status)
	assert.Zero(t, snap.Jobs[0].TimeStarted)

	// The scheduled commit is persisted into the autobuild config.
	reloaded, err := autobuild.Load(abPath)
	require.NoError(t, err)
	assert.Equal(t, snap.Jobs[0].Commit, reloaded.Projects()[0].LastCommit)
}

func TestCheckProjectsIgnoresUnchangedHead(t *testing.T) {
	d, _, _, _ := newTestDaemon(t)

	d.CheckProjects(context.Background())
	_, scheduled := d.queue.Counts()
	require.Equal(t, 2, scheduled)

	// No new commit: a second check must not schedule more jobs.
	d.CheckProjects(context.Background())
	_, scheduled = d.queue.Counts()
	assert.Equal(t, 2, scheduled)
}

func TestCheckProjectsDetectsNewCommit(t *testing.T) {
	d, srcRepo, srcDir, _ := newTestDaemon(t)

	d.CheckProjects(context.Background())
	first := d.StatusSnapshot()
	require.Len(t, first.Jobs, 2)

	want := commitTo(t, srcRepo, srcDir, "book.xml", "update docs")

	d.CheckProjects(context.Background())
	snap := d.StatusSnapshot()
	require.Len(t, snap.Jobs, 4)
	assert.Equal(t, want, snap.Jobs[2].Commit)
}

func TestCheckProjectsRunsSerially(t *testing.T) {
	d, _, _, _ := newTestDaemon(t)

	// Overlapping checks must not double-schedule the same commit: the
	// second check waits for the first and then sees the persisted hash.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.CheckProjects(context.Background())
		}()
	}
	wg.Wait()

	_, scheduled := d.queue.Counts()
	assert.Equal(t, 2, scheduled)
}

func TestStatusSnapshotMarksRunningJobs(t *testing.T) {
	d, _, _, _ := newTestDaemon(t)

	d.CheckProjects(context.Background())
	started := d.queue.StartNext()
	require.NotNil(t, started)

	snap := d.StatusSnapshot()
	assert.Equal(t, 1, snap.RunningBuilds)
	assert.Equal(t, 1, snap.ScheduledBuilds)

	var runningJobs int
	for _, j := range snap.Jobs {
		if j.Status == int(StatusRunning) {
			runningJobs++
			assert.NotZero(t, j.TimeStarted)
		}
	}
	assert.Equal(t, 1, runningJobs)
}
