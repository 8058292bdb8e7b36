package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration   *prom.HistogramVec
	buildOutcome    *prom.CounterVec
	runningBuilds   prom.Gauge
	scheduledBuilds prom.Gauge
	repoChecks      *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the daemon metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "dapsenv",
			Name:      "build_duration_seconds",
			Help:      "Duration of documentation builds per format",
			Buckets:   prom.DefBuckets,
		}, []string{"format"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dapsenv",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		runningBuilds: prom.NewGauge(prom.GaugeOpts{
			Namespace: "dapsenv",
			Name:      "running_builds",
			Help:      "Number of currently running build containers",
		}),
		scheduledBuilds: prom.NewGauge(prom.GaugeOpts{
			Namespace: "dapsenv",
			Name:      "scheduled_builds",
			Help:      "Number of builds waiting in the queue",
		}),
		repoChecks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dapsenv",
			Name:      "repo_checks_total",
			Help:      "Repository update checks by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.runningBuilds, pr.scheduledBuilds, pr.repoChecks)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(format string, d time.Duration) {
	p.buildDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetRunningBuilds(n int)   { p.runningBuilds.Set(float64(n)) }
func (p *PrometheusRecorder) SetScheduledBuilds(n int) { p.scheduledBuilds.Set(float64(n)) }

func (p *PrometheusRecorder) IncRepoCheck(changed bool) {
	result := "unchanged"
	if changed {
		result = "changed"
	}
	p.repoChecks.WithLabelValues(result).Inc()
}
