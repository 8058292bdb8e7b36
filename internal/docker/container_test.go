package docker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records docker invocations and replays canned responses.
type fakeRunner struct {
	calls     [][]string
	stdins    [][]byte
	responses []fakeResponse
}

type fakeResponse struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

func (f *fakeRunner) Run(_ context.Context, stdin []byte, args ...string) ([]byte, []byte, int, error) {
	f.calls = append(f.calls, args)
	f.stdins = append(f.stdins, stdin)
	if len(f.responses) == 0 {
		return nil, nil, 0, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return []byte(resp.stdout), []byte(resp.stderr), resp.exitCode, resp.err
}

func TestImageExists(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{{stdout: "sha256:abc\n"}}}
	client := NewClient(runner, "mschnitzer/dapsenv")

	ok, err := client.ImageExists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"images", "-q", "mschnitzer/dapsenv"}, runner.calls[0])
}

func TestImageMissing(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{{stdout: "\n"}}}
	client := NewClient(runner, "mschnitzer/dapsenv")

	ok, err := client.ImageExists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpawnAndKill(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{stdout: "0123456789abcdef\n"},
		{},
	}}
	client := NewClient(runner, "mschnitzer/dapsenv")

	ctr, err := client.Spawn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", ctr.ID())
	assert.Equal(t, "0123456789ab", ctr.ShortID())

	require.NoError(t, ctr.Kill(context.Background()))
	assert.Equal(t, []string{"rm", "-f", "0123456789abcdef"}, runner.calls[1])
}

func TestSpawnFailure(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{{stderr: "no such image", exitCode: 125}}}
	client := NewClient(runner, "mschnitzer/dapsenv")

	_, err := client.Spawn(context.Background())
	assert.ErrorContains(t, err, "no such image")
}

func TestPrepareCopiesCheckout(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{{}, {}}}
	client := NewClient(runner, "mschnitzer/dapsenv")
	ctr := &Container{client: client, id: "c1"}

	require.NoError(t, ctr.Prepare(context.Background(), "/tmp/repos/kiwi"))
	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"exec", "c1", "mkdir", "-p", RepoMount}, runner.calls[0])
	assert.Equal(t, []string{"cp", "/tmp/repos/kiwi/.", "c1:" + RepoMount}, runner.calls[1])
}

func TestFileCreateStreamsContent(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{{}}}
	client := NewClient(runner, "mschnitzer/dapsenv")
	ctr := &Container{client: client, id: "c1"}

	require.NoError(t, ctr.FileCreate(context.Background(), "/tmp/build_info.json", []byte(`{"a":1}`)))
	assert.Equal(t, []byte(`{"a":1}`), runner.stdins[0])
	assert.Equal(t, "cat > /tmp/build_info.json", runner.calls[0][len(runner.calls[0])-1])
}

func TestBuildDocumentationSuccess(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{{stdout: "build ok\n"}}}
	client := NewClient(runner, "mschnitzer/dapsenv")
	ctr := &Container{client: client, id: "c1"}

	outcome, err := ctr.BuildDocumentation(context.Background(), "DC-kiwi", FormatSingleHTML)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, "/tmp/DC-kiwi_single_html.tar", outcome.ArchivePath)
	assert.Equal(t, "daps -d /daps/repo/DC-kiwi html --single", outcome.Command)

	script := runner.calls[0][len(runner.calls[0])-1]
	assert.True(t, strings.Contains(script, "daps -d /daps/repo/DC-kiwi html --single"))
}

func TestBuildDocumentationFailure(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{{stdout: "some output", stderr: "validation error", exitCode: 1}}}
	client := NewClient(runner, "mschnitzer/dapsenv")
	ctr := &Container{client: client, id: "c1"}

	outcome, err := ctr.BuildDocumentation(context.Background(), "DC-kiwi", FormatPDF)
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Empty(t, outcome.ArchivePath)
	assert.Contains(t, outcome.Log, "validation error")
}

func TestBuildDocumentationUnknownFormat(t *testing.T) {
	client := NewClient(&fakeRunner{}, "mschnitzer/dapsenv")
	ctr := &Container{client: client, id: "c1"}

	_, err := ctr.BuildDocumentation(context.Background(), "DC-kiwi", "epub3")
	assert.Error(t, err)
}
