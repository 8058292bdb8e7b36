// Package docker drives the DAPS build containers through the docker CLI.
// Each build job gets a throwaway container of the configured image; the
// repository checkout is copied in, daps runs inside and the resulting
// archive is copied back out.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mschnitzer/daps-buildenv/internal/logfields"
)

// RepoMount is where the project checkout lives inside a build container.
const RepoMount = "/daps/repo"

// Client creates and manages build containers.
type Client struct {
	runner Runner
	image  string
}

// NewClient creates a docker client for the given DAPS image.
func NewClient(runner Runner, image string) *Client {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Client{runner: runner, image: image}
}

// ImageExists reports whether the DAPS image is available on the local host.
func (c *Client) ImageExists(ctx context.Context) (bool, error) {
	stdout, stderr, code, err := c.runner.Run(ctx, nil, "images", "-q", c.image)
	if err != nil {
		return false, fmt.Errorf("docker images: %w", err)
	}
	if code != 0 {
		return false, fmt.Errorf("docker images exited with %d: %s", code, strings.TrimSpace(string(stderr)))
	}
	return len(strings.TrimSpace(string(stdout))) > 0, nil
}

// Container is a running build container.
type Container struct {
	client *Client
	id     string
}

// ID returns the container id.
func (c *Container) ID() string { return c.id }

// ShortID returns the abbreviated container id used in logs and status output.
func (c *Container) ShortID() string {
	if len(c.id) > 12 {
		return c.id[:12]
	}
	return c.id
}

// Spawn starts a new idle container of the DAPS image.
func (c *Client) Spawn(ctx context.Context) (*Container, error) {
	stdout, stderr, code, err := c.runner.Run(ctx, nil, "run", "-d", c.image, "tail", "-f", "/dev/null")
	if err != nil {
		return nil, fmt.Errorf("docker run: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("docker run exited with %d: %s", code, strings.TrimSpace(string(stderr)))
	}
	id := strings.TrimSpace(string(stdout))
	if id == "" {
		return nil, fmt.Errorf("docker run returned no container id")
	}
	ctr := &Container{client: c, id: id}
	slog.Debug("Container spawned", logfields.ContainerID(ctr.ShortID()))
	return ctr, nil
}

// Prepare copies the repository checkout into the container.
func (ctr *Container) Prepare(ctx context.Context, repoDir string) error {
	if _, mkdirErr, code, err := ctr.run(ctx, nil, "exec", ctr.id, "mkdir", "-p", RepoMount); err != nil {
		return fmt.Errorf("prepare container: %w", err)
	} else if code != 0 {
		return fmt.Errorf("prepare container: mkdir exited with %d: %s", code, strings.TrimSpace(string(mkdirErr)))
	}
	_, stderr, code, err := ctr.run(ctx, nil, "cp", repoDir+"/.", ctr.id+":"+RepoMount)
	if err != nil {
		return fmt.Errorf("docker cp: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("docker cp exited with %d: %s", code, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// ExecResult carries the outcome of a command executed inside a container.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Execute runs a shell command inside the container.
func (ctr *Container) Execute(ctx context.Context, command string) (*ExecResult, error) {
	stdout, stderr, code, err := ctr.run(ctx, nil, "exec", ctr.id, "sh", "-c", command)
	if err != nil {
		return nil, fmt.Errorf("docker exec: %w", err)
	}
	return &ExecResult{Stdout: string(stdout), Stderr: string(stderr), ExitCode: code}, nil
}

// FileCreate writes content to a file inside the container.
func (ctr *Container) FileCreate(ctx context.Context, path string, content []byte) error {
	_, stderr, code, err := ctr.run(ctx, content, "exec", "-i", ctr.id, "sh", "-c", "cat > "+path)
	if err != nil {
		return fmt.Errorf("docker exec: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("file create exited with %d: %s", code, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Fetch copies a file out of the container to the given host path.
func (ctr *Container) Fetch(ctx context.Context, src, dst string) error {
	_, stderr, code, err := ctr.run(ctx, nil, "cp", ctr.id+":"+src, dst)
	if err != nil {
		return fmt.Errorf("docker cp: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("docker cp exited with %d: %s", code, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Kill removes the container, discarding its filesystem.
func (ctr *Container) Kill(ctx context.Context) error {
	_, stderr, code, err := ctr.run(ctx, nil, "rm", "-f", ctr.id)
	if err != nil {
		return fmt.Errorf("docker rm: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("docker rm exited with %d: %s", code, strings.TrimSpace(string(stderr)))
	}
	slog.Debug("Container removed", logfields.ContainerID(ctr.ShortID()))
	return nil
}

func (ctr *Container) run(ctx context.Context, stdin []byte, args ...string) ([]byte, []byte, int, error) {
	return ctr.client.runner.Run(ctx, stdin, args...)
}
