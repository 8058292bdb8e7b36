package docker

import (
	"context"
	"fmt"
	"strings"
)

// Build formats supported by the daemon. These map onto daps subcommands.
const (
	FormatHTML       = "html"
	FormatSingleHTML = "single_html"
	FormatPDF        = "pdf"
)

// DefaultFormats is the format set built for every scheduled DC file.
var DefaultFormats = []string{FormatHTML, FormatSingleHTML, FormatPDF}

// DocInfoPath is where the DAPS image drops document metadata after a build.
const DocInfoPath = "/tmp/doc_info.json"

// dapsArgs returns the daps argument string for a build format.
func dapsArgs(format string) (string, error) {
	switch format {
	case FormatHTML:
		return "html", nil
	case FormatSingleHTML:
		return "html --single", nil
	case FormatPDF:
		return "pdf", nil
	default:
		return "", fmt.Errorf("unsupported build format: %s", format)
	}
}

// BuildOutcome is the result of one daps run inside a container.
type BuildOutcome struct {
	Success bool
	// Log holds the combined daps output, kept for failure logs.
	Log string
	// ArchivePath is the tar archive inside the container holding the built
	// documentation. Empty when the build failed.
	ArchivePath string
	// Command is the daps invocation that was executed.
	Command string
}

// BuildDocumentation runs daps for one DC file and format and packs the
// output into a tar archive inside the container.
func (ctr *Container) BuildDocumentation(ctx context.Context, dcFile, format string) (*BuildOutcome, error) {
	args, err := dapsArgs(format)
	if err != nil {
		return nil, err
	}

	dapsCmd := fmt.Sprintf("daps -d %s/%s %s", RepoMount, dcFile, args)
	archive := fmt.Sprintf("/tmp/%s_%s.tar", dcFile, format)

	// daps prints the output location on success; pack whatever it names.
	script := fmt.Sprintf(
		`set -e
OUT=$(%s)
tar -C "$(dirname "$OUT")" -cf %s "$(basename "$OUT")"`,
		dapsCmd, archive,
	)

	res, err := ctr.Execute(ctx, script)
	if err != nil {
		return nil, err
	}

	outcome := &BuildOutcome{Command: dapsCmd}
	outcome.Log = res.Stdout
	if res.Stderr != "" {
		outcome.Log += res.Stderr
	}
	if res.ExitCode == 0 {
		outcome.Success = true
		outcome.ArchivePath = archive
	}
	return outcome, nil
}

// DocInfo reads the document metadata JSON the DAPS image writes during a
// build. Returns the raw JSON bytes.
func (ctr *Container) DocInfo(ctx context.Context) ([]byte, error) {
	res, err := ctr.Execute(ctx, "cat "+DocInfoPath)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("doc info not available: %s", strings.TrimSpace(res.Stderr))
	}
	return []byte(res.Stdout), nil
}
