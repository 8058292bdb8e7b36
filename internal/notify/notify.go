// Package notify announces build results. Two backends exist: the classic
// IRC bot (per-target private messages plus an optional channel message) and
// a NATS JetStream publisher for machine consumers.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mschnitzer/daps-buildenv/internal/logfields"
)

// Event describes one finished build.
type Event struct {
	Project     string `json:"project"`
	Branch      string `json:"branch"`
	DCFile      string `json:"dc_file"`
	Format      string `json:"format"`
	Commit      string `json:"commit"`
	Success     bool   `json:"success"`
	ArchiveName string `json:"archive_name,omitempty"`
	LogPath     string `json:"log_path,omitempty"`
	Hostname    string `json:"hostname"`

	// IRCTargets are the project's configured notification nicknames.
	IRCTargets []string `json:"-"`
}

// Message renders the human-readable notification text.
func (e *Event) Message() string {
	if e.Success {
		return fmt.Sprintf("A new build has been finished on %s! DC-File: %s, Format: %s, Output-Archive: %s",
			e.Hostname, e.DCFile, displayFormat(e.Format), e.ArchiveName)
	}
	return fmt.Sprintf("A build has failed on %s! DC-File: %s, Format: %s, Error-Log: %s",
		e.Hostname, e.DCFile, displayFormat(e.Format), e.LogPath)
}

func displayFormat(f string) string {
	return strings.ReplaceAll(f, "_", "-")
}

// Notifier delivers build result events.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
	Close() error
}

// Multi fans an event out to several notifiers. Delivery failures are logged
// and do not fail the build.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a Multi from the given notifiers, skipping nils.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *Multi) Notify(ctx context.Context, event *Event) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			slog.Warn("Notification delivery failed",
				logfields.Project(event.Project), logfields.DCFile(event.DCFile), logfields.Error(err))
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
