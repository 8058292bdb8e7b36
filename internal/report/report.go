// Package report renders the recent build history as a small HTML page for
// the admin server. The page is generated as Markdown first, then converted
// with goldmark.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mschnitzer/daps-buildenv/internal/history"
)

var titleCaser = cases.Title(language.English)

// Markdown renders the build history as a Markdown document.
func Markdown(hostname string, records []*history.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# DAPS Build Report - %s\n\n", hostname)

	if len(records) == 0 {
		b.WriteString("No builds recorded yet.\n")
		return b.String()
	}

	b.WriteString("| Finished | Project | DC File | Format | Commit | Outcome | Duration |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			rec.FinishedAt.UTC().Format(time.RFC3339),
			rec.Project,
			rec.DCFile,
			DisplayFormat(rec.Format),
			shortCommit(rec.Commit),
			rec.Outcome,
			rec.Duration().Round(time.Second),
		)
	}
	return b.String()
}

// HTML renders the build history report as HTML.
func HTML(hostname string, records []*history.Record) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(hostname, records)), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// DisplayFormat turns an internal format name into its display form,
// e.g. "single_html" becomes "Single-Html".
func DisplayFormat(format string) string {
	return titleCaser.String(strings.ReplaceAll(format, "_", "-"))
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
