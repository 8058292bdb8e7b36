package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/mschnitzer/daps-buildenv/internal/logfields"
)

// Server serves the status API over WebSocket.
type Server struct {
	provider StatusProvider
	addr     string
	srv      *http.Server
}

// NewServer creates a status API server listening on host:port.
func NewServer(provider StatusProvider, host string, port int) *Server {
	return &Server{
		provider: provider,
		addr:     net.JoinHostPort(host, fmt.Sprintf("%d", port)),
	}
}

// Handler returns the WebSocket handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serveConn)
}

// Start begins listening. Errors other than a clean shutdown are logged.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	s.srv = &http.Server{Addr: s.addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("Status API server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Status API server failed", logfields.Error(err))
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// serveConn handles one client connection until it misbehaves or disconnects.
func (s *Server) serveConn(ws *websocket.Conn) {
	defer ws.Close()

	for {
		var raw string
		if err := websocket.Message.Receive(ws, &raw); err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil || req.ID == nil {
			return
		}

		switch *req.ID {
		case PacketStatus:
			snap := s.provider.StatusSnapshot()
			resp := StatusResponse{
				ID:              PacketStatus,
				RunningBuilds:   snap.RunningBuilds,
				ScheduledBuilds: snap.ScheduledBuilds,
				Jobs:            snap.Jobs,
			}
			if resp.Jobs == nil {
				resp.Jobs = []Job{}
			}
			if err := websocket.JSON.Send(ws, &resp); err != nil {
				return
			}
		default:
			// Unknown packet id closes the connection.
			return
		}
	}
}
