// Package autobuild manages the project configuration of the daemon: which
// repositories to watch, which DC files to build and whom to notify. The last
// built commit per project is persisted back into the file so restarts do not
// rebuild unchanged documentation.
package autobuild

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"gopkg.in/yaml.v3"

	"github.com/mschnitzer/daps-buildenv/internal/git"
)

// Project is one watched documentation repository.
type Project struct {
	Name    string   `yaml:"name"`
	Repo    string   `yaml:"repo"`
	Branch  string   `yaml:"branch"`
	DCFiles []string `yaml:"dc_files"`
	// LastCommit is the last commit hash for which builds were scheduled.
	LastCommit    string        `yaml:"last_commit,omitempty"`
	Notifications Notifications `yaml:"notifications,omitempty"`

	// Runtime state attached by FetchProjects, never serialized.
	Repository *gogit.Repository `yaml:"-"`
	RepoDir    string            `yaml:"-"`
}

// Notifications lists per-project notification targets.
type Notifications struct {
	// IRC contains nicknames that receive a private message per build result.
	IRC []string `yaml:"irc,omitempty"`
}

type fileFormat struct {
	Projects []*Project `yaml:"projects"`
}

// Config is the parsed autobuild configuration. All methods are safe for
// concurrent use; the poll loop and the config watcher both touch it.
type Config struct {
	path string

	mu       sync.RWMutex
	projects []*Project
	// lastData is the file content as last loaded or written, used to tell
	// external edits apart from the daemon's own persistence writes.
	lastData []byte
}

// Load reads and validates an autobuild configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read autobuild config: %w", err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("failed to unmarshal autobuild config: %w", err)
	}

	cfg := &Config{path: path, projects: ff.Projects, lastData: data}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.projects))
	for i, p := range c.projects {
		if p.Name == "" {
			return fmt.Errorf("project #%d has no name", i+1)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate project name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Repo == "" {
			return fmt.Errorf("project %q has no repo", p.Name)
		}
		if p.Branch == "" {
			p.Branch = "main"
		}
		if len(p.DCFiles) == 0 {
			return fmt.Errorf("project %q has no dc_files", p.Name)
		}
	}
	return nil
}

// Projects returns a snapshot of the configured projects.
func (c *Config) Projects() []*Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// FetchProjects clones or opens every project repository that has not been
// fetched yet. A repository that can neither be opened nor cloned surfaces as
// *git.InvalidRepoError; the daemon exits on it.
func (c *Config) FetchProjects(client *git.Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.projects {
		if p.Repository != nil {
			continue
		}
		repo, err := client.CloneOrOpen(p.Name, p.Repo, p.Branch)
		if err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
		p.Repository = repo
		p.RepoDir = client.RepoPath(p.Name)
	}
	return nil
}

// UpdateCommitHash records the commit for which builds were scheduled and
// persists the configuration file.
func (c *Config) UpdateCommitHash(project, commit string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, p := range c.projects {
		if p.Name == project {
			p.LastCommit = commit
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown project %q", project)
	}
	return c.persistLocked()
}

func (c *Config) persistLocked() error {
	data, err := yaml.Marshal(&fileFormat{Projects: c.projects})
	if err != nil {
		return fmt.Errorf("failed to marshal autobuild config: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write autobuild config: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}
	c.lastData = data
	return nil
}

// Reload re-reads the configuration file, keeping runtime repository state
// for projects whose name is unchanged. Returns false when the file matches
// the last loaded or written content, so the daemon's own persistence writes
// do not trigger a reload.
func (c *Config) Reload(client *git.Client) (bool, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return false, fmt.Errorf("failed to read autobuild config: %w", err)
	}

	c.mu.RLock()
	unchanged := bytes.Equal(data, c.lastData)
	c.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	fresh, err := Load(c.path)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	old := make(map[string]*Project, len(c.projects))
	for _, p := range c.projects {
		old[p.Name] = p
	}
	for _, p := range fresh.projects {
		if prev, ok := old[p.Name]; ok && prev.Repo == p.Repo {
			p.Repository = prev.Repository
			p.RepoDir = prev.RepoDir
			if p.LastCommit == "" {
				p.LastCommit = prev.LastCommit
			}
		}
	}
	c.projects = fresh.projects
	c.lastData = data
	c.mu.Unlock()

	return true, c.FetchProjects(client)
}
