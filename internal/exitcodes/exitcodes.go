// Package exitcodes defines the distinct process exit codes used by dapsenv.
// Scripts driving the daemon rely on these values staying stable.
package exitcodes

const (
	OK = 0

	// ErrGeneral is used for unclassified fatal errors.
	ErrGeneral = 1

	// ErrInvalidConfig indicates the daemon configuration file could not be
	// loaded or failed validation.
	ErrInvalidConfig = 4

	// ErrInvalidGitRepo indicates a project in the autobuild configuration
	// points at a repository that could not be cloned or opened.
	ErrInvalidGitRepo = 6

	// ErrDockerImageMissing indicates the configured DAPS container image is
	// not available on the local Docker host.
	ErrDockerImageMissing = 7

	// ErrAPIUnreachable indicates the status client could not reach a
	// running daemon.
	ErrAPIUnreachable = 8
)
