package docker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Runner executes docker CLI commands. Split out so tests can substitute a
// fake without a Docker host.
type Runner interface {
	Run(ctx context.Context, stdin []byte, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// ExecRunner runs the real docker binary.
type ExecRunner struct {
	// Binary overrides the docker executable path, default "docker".
	Binary string
}

func (r *ExecRunner) Run(ctx context.Context, stdin []byte, args ...string) ([]byte, []byte, int, error) {
	bin := r.Binary
	if bin == "" {
		bin = "docker"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			// Non-zero exit is reported via exitCode, not as a Go error.
			err = nil
		} else {
			exitCode = -1
		}
	}
	return out.Bytes(), errOut.Bytes(), exitCode, err
}
