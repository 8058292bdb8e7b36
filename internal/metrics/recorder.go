package metrics

import "time"

// Recorder defines observability hooks for the daemon. Implementations may
// forward to Prometheus; the NoopRecorder is used when metrics are disabled.
type Recorder interface {
	ObserveBuildDuration(format string, d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed
	SetRunningBuilds(n int)
	SetScheduledBuilds(n int)
	IncRepoCheck(changed bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)                    {}
func (NoopRecorder) SetRunningBuilds(int)                      {}
func (NoopRecorder) SetScheduledBuilds(int)                    {}
func (NoopRecorder) IncRepoCheck(bool)                         {}
