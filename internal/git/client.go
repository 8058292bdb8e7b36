// Package git wraps go-git for the repository operations the daemon needs:
// cloning project repositories, force-updating a branch to its remote state
// and reading branch head hashes.
package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/mschnitzer/daps-buildenv/internal/logfields"
)

// Client handles Git operations inside a workspace directory. One checkout
// per project name lives under the workspace root.
type Client struct {
	workspaceDir string
}

// NewClient creates a new Git client with the specified workspace directory.
func NewClient(workspaceDir string) *Client { return &Client{workspaceDir: workspaceDir} }

// EnsureWorkspace creates the workspace directory if it does not exist.
func (c *Client) EnsureWorkspace() error {
	if err := os.MkdirAll(c.workspaceDir, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	return nil
}

// RepoPath returns the checkout location for a project name.
func (c *Client) RepoPath(name string) string {
	return filepath.Join(c.workspaceDir, name)
}

// CloneOrOpen returns an opened repository for the project, cloning it first
// if the checkout does not exist yet. A repository that can neither be opened
// nor cloned yields an *InvalidRepoError.
func (c *Client) CloneOrOpen(name, url, branch string) (*gogit.Repository, error) {
	repoPath := c.RepoPath(name)

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(repoPath)
		if err != nil {
			return nil, &InvalidRepoError{Op: "open", URL: url, Err: err}
		}
		return repo, nil
	}

	slog.Debug("Cloning repository", logfields.URL(url), logfields.Branch(branch), logfields.Path(repoPath))

	opts := &gogit.CloneOptions{URL: url}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	repo, err := gogit.PlainClone(repoPath, false, opts)
	if err != nil {
		return nil, &InvalidRepoError{Op: "clone", URL: url, Err: err}
	}

	if ref, herr := repo.Head(); herr == nil {
		slog.Info("Repository cloned", logfields.URL(url), logfields.Commit(shortHash(ref.Hash().String())), logfields.Path(repoPath))
	}
	return repo, nil
}

// Pull force-updates the local branch to the remote state. The remote is
// authoritative; local history is discarded on divergence, matching the
// classic dapsenv pull --force behavior.
func (c *Client) Pull(repo *gogit.Repository, branch string) error {
	fetchOpts := &gogit.FetchOptions{
		RemoteName: "origin",
		Tags:       gogit.NoTags,
		RefSpecs:   []gitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Force:      true,
	}
	if err := repo.Fetch(fetchOpts); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch origin: %w", err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return fmt.Errorf("resolve origin/%s: %w", branch, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: !branchExists(repo, branch),
		Force:  true,
	}); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: remoteRef.Hash(), Mode: gogit.HardReset}); err != nil {
		return fmt.Errorf("reset to origin/%s: %w", branch, err)
	}

	// Keep the local branch ref aligned with the worktree.
	localRef := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), remoteRef.Hash())
	if err := repo.Storer.SetReference(localRef); err != nil {
		return fmt.Errorf("update branch ref: %w", err)
	}
	return nil
}

// LastCommitHash returns the full hash of the branch head.
func (c *Client) LastCommitHash(repo *gogit.Repository, branch string) (string, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return "", fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	return ref.Hash().String(), nil
}

func branchExists(repo *gogit.Repository, branch string) bool {
	_, err := repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	return err == nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
