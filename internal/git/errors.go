package git

import "fmt"

// InvalidRepoError indicates a configured project repository cannot be used.
// The daemon treats this as a fatal configuration error at startup.
type InvalidRepoError struct {
	Op  string
	URL string
	Err error
}

func (e *InvalidRepoError) Error() string {
	return fmt.Sprintf("invalid git repository (%s %s): %v", e.Op, e.URL, e.Err)
}

func (e *InvalidRepoError) Unwrap() error { return e.Err }
