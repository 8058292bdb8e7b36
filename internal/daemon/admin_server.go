package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mschnitzer/daps-buildenv/internal/logfields"
	"github.com/mschnitzer/daps-buildenv/internal/report"
)

// Registry is the metrics registry the admin server exposes. The daemon's
// Prometheus recorder registers into it.
var Registry = prom.NewRegistry()

// startAdminServer serves /metrics, /healthz and /report on the admin port.
// Returns nil when the admin port is disabled.
func (d *Daemon) startAdminServer() *http.Server {
	if d.cfg.API.AdminPort <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", d.handleHealth)
	mux.HandleFunc("/report", d.handleReport)

	addr := net.JoinHostPort(d.cfg.API.Host, fmt.Sprintf("%d", d.cfg.API.AdminPort))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("Admin server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Admin server failed", logfields.Error(err))
		}
	}()
	return srv
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	running, scheduled := d.queue.Counts()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":           "ok",
		"uptime_seconds":   int(time.Since(d.startTime).Seconds()),
		"running_builds":   running,
		"scheduled_builds": scheduled,
	})
}

func (d *Daemon) handleReport(w http.ResponseWriter, r *http.Request) {
	if d.store == nil {
		http.Error(w, "build history disabled", http.StatusNotFound)
		return
	}
	records, err := d.store.Recent(r.Context(), 100)
	if err != nil {
		http.Error(w, "failed to load build history", http.StatusInternalServerError)
		return
	}
	html, err := report.HTML(d.hostname, records)
	if err != nil {
		http.Error(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}
