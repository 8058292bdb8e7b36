package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyProject     = "project"
	KeyBranch      = "branch"
	KeyDCFile      = "dc_file"
	KeyFormat      = "format"
	KeyCommit      = "commit"
	KeyJobID       = "job_id"
	KeyJobStatus   = "job_status"
	KeyContainerID = "container_id"
	KeyPath        = "path"
	KeyURL         = "url"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Project(name string) slog.Attr    { return slog.String(KeyProject, name) }
func Branch(name string) slog.Attr     { return slog.String(KeyBranch, name) }
func DCFile(dc string) slog.Attr       { return slog.String(KeyDCFile, dc) }
func Format(f string) slog.Attr        { return slog.String(KeyFormat, f) }
func Commit(hash string) slog.Attr     { return slog.String(KeyCommit, hash) }
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func ContainerID(id string) slog.Attr  { return slog.String(KeyContainerID, id) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
