package autobuild

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschnitzer/daps-buildenv/internal/git"
)

// newSourceRepo creates a local repository with one commit that can serve as
// a clone origin via its filesystem path.
func newSourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DC-doc"), []byte("MAIN=\"MAIN.xml\"\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("DC-doc")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func projectYAML(name, repo string) string {
	return "  - name: " + name + "\n" +
		"    repo: " + repo + "\n" +
		"    branch: master\n" +
		"    dc_files: [DC-doc]\n"
}

func TestReloadSelfWriteIsNoop(t *testing.T) {
	srcA := newSourceRepo(t)
	path := filepath.Join(t.TempDir(), "autobuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n"+projectYAML("alpha", srcA)), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	client := git.NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())
	require.NoError(t, cfg.FetchProjects(client))

	// Persisting a commit hash rewrites the file; the follow-up reload the
	// file watcher triggers must recognize it as the daemon's own write.
	require.NoError(t, cfg.UpdateCommitHash("alpha", "abc123"))

	changed, err := cfg.Reload(client)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "abc123", cfg.Projects()[0].LastCommit)
}

func TestReloadKeepsRuntimeStateByName(t *testing.T) {
	srcA := newSourceRepo(t)
	srcB := newSourceRepo(t)
	path := filepath.Join(t.TempDir(), "autobuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n"+projectYAML("alpha", srcA)), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	client := git.NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())
	require.NoError(t, cfg.FetchProjects(client))
	require.NoError(t, cfg.UpdateCommitHash("alpha", "abc123"))

	alphaBefore := cfg.Projects()[0]
	require.NotNil(t, alphaBefore.Repository)

	// External edit: keep alpha (without last_commit) and add beta.
	edited := "projects:\n" + projectYAML("alpha", srcA) + projectYAML("beta", srcB)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	changed, err := cfg.Reload(client)
	require.NoError(t, err)
	assert.True(t, changed)

	projects := cfg.Projects()
	require.Len(t, projects, 2)

	// alpha keeps its opened repository, checkout path and scheduled commit.
	alpha := projects[0]
	assert.Same(t, alphaBefore.Repository, alpha.Repository)
	assert.Equal(t, alphaBefore.RepoDir, alpha.RepoDir)
	assert.Equal(t, "abc123", alpha.LastCommit)

	// beta is fetched fresh.
	beta := projects[1]
	require.NotNil(t, beta.Repository)
	assert.Equal(t, client.RepoPath("beta"), beta.RepoDir)
}

func TestReloadDropsStateWhenRepoURLChanges(t *testing.T) {
	srcA := newSourceRepo(t)
	srcB := newSourceRepo(t)
	path := filepath.Join(t.TempDir(), "autobuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n"+projectYAML("alpha", srcA)), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	client := git.NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())
	require.NoError(t, cfg.FetchProjects(client))
	alphaBefore := cfg.Projects()[0]

	// Same name, different repo: the old checkout must not be reused as-is.
	require.NoError(t, os.WriteFile(path, []byte("projects:\n"+projectYAML("alpha", srcB)), 0o644))

	changed, err := cfg.Reload(client)
	require.NoError(t, err)
	assert.True(t, changed)

	alpha := cfg.Projects()[0]
	require.NotNil(t, alpha.Repository)
	assert.NotSame(t, alphaBefore.Repository, alpha.Repository)
}
