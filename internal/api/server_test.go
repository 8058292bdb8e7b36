package api

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

type staticProvider struct {
	snap Snapshot
}

func (p *staticProvider) StatusSnapshot() Snapshot { return p.snap }

func startTestServer(t *testing.T, provider StatusProvider) (wsURL, origin string) {
	t.Helper()
	srv := &Server{provider: provider}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/", ts.URL + "/"
}

func TestStatusRequest(t *testing.T) {
	provider := &staticProvider{snap: Snapshot{
		RunningBuilds:   1,
		ScheduledBuilds: 2,
		Jobs: []Job{
			{Project: "opensuse-startup", Branch: "main", DCFile: "DC-opensuse-startup", Status: 1, Commit: "abc123", TimeStarted: 1700000000},
			{Project: "kiwi-docs", Branch: "main", DCFile: "DC-kiwi", Status: 0, Commit: "def456"},
		},
	}}
	wsURL, origin := startTestServer(t, provider)

	client := NewClientURL(wsURL, origin)
	resp, err := client.Status()
	require.NoError(t, err)

	assert.Equal(t, PacketStatus, resp.ID)
	assert.Equal(t, 1, resp.RunningBuilds)
	assert.Equal(t, 2, resp.ScheduledBuilds)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "DC-opensuse-startup", resp.Jobs[0].DCFile)
	assert.Equal(t, int64(1700000000), resp.Jobs[0].TimeStarted)
}

func TestStatusEmptyJobsIsArray(t *testing.T) {
	wsURL, origin := startTestServer(t, &staticProvider{})

	resp, err := NewClientURL(wsURL, origin).Status()
	require.NoError(t, err)
	assert.NotNil(t, resp.Jobs)
	assert.Empty(t, resp.Jobs)
}

func TestMalformedPacketClosesConnection(t *testing.T) {
	wsURL, origin := startTestServer(t, &staticProvider{})

	ws, err := websocket.Dial(wsURL, "", origin)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, websocket.Message.Send(ws, "not json"))

	var reply string
	err = websocket.Message.Receive(ws, &reply)
	assert.Error(t, err)
}

func TestUnknownPacketIDClosesConnection(t *testing.T) {
	wsURL, origin := startTestServer(t, &staticProvider{})

	ws, err := websocket.Dial(wsURL, "", origin)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, websocket.Message.Send(ws, `{"id":42}`))

	var reply string
	err = websocket.Message.Receive(ws, &reply)
	assert.Error(t, err)
}

func TestMissingIDClosesConnection(t *testing.T) {
	wsURL, origin := startTestServer(t, &staticProvider{})

	ws, err := websocket.Dial(wsURL, "", origin)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, websocket.Message.Send(ws, `{"foo":"bar"}`))

	var reply string
	err = websocket.Message.Receive(ws, &reply)
	assert.Error(t, err)
}
