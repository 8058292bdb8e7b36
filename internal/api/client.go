package api

import (
	"encoding/json"
	"fmt"

	"golang.org/x/net/websocket"
)

// Client queries a running daemon's status API.
type Client struct {
	url    string
	origin string
}

// NewClient creates a client for ws://host:port/.
func NewClient(host string, port int) *Client {
	return &Client{
		url:    fmt.Sprintf("ws://%s:%d/", host, port),
		origin: fmt.Sprintf("http://%s:%d/", host, port),
	}
}

// NewClientURL creates a client for an explicit WebSocket URL, used by tests.
func NewClientURL(wsURL, origin string) *Client {
	return &Client{url: wsURL, origin: origin}
}

// Status requests the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	ws, err := websocket.Dial(c.url, "", c.origin)
	if err != nil {
		return nil, fmt.Errorf("connect to status API: %w", err)
	}
	defer ws.Close()

	id := PacketStatus
	payload, err := json.Marshal(Request{ID: &id})
	if err != nil {
		return nil, err
	}
	if err := websocket.Message.Send(ws, string(payload)); err != nil {
		return nil, fmt.Errorf("send status request: %w", err)
	}

	var resp StatusResponse
	if err := websocket.JSON.Receive(ws, &resp); err != nil {
		return nil, fmt.Errorf("receive status response: %w", err)
	}
	return &resp, nil
}
