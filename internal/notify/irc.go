package notify

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mschnitzer/daps-buildenv/internal/config"
	"github.com/mschnitzer/daps-buildenv/internal/logfields"
)

// IRCNotifier is a minimal IRC client that delivers build results as private
// messages to the project's notification targets and optionally to the
// configured channel. Only the handful of commands the bot needs are spoken.
type IRCNotifier struct {
	cfg config.IRCConfig

	mu   sync.Mutex
	conn net.Conn
	w    *bufio.Writer
}

// NewIRCNotifier connects and registers the bot.
func NewIRCNotifier(cfg config.IRCConfig) (*IRCNotifier, error) {
	n := &IRCNotifier{cfg: cfg}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *IRCNotifier) connect() error {
	addr := net.JoinHostPort(n.cfg.Server, fmt.Sprintf("%d", n.cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("irc connect %s: %w", addr, err)
	}

	n.mu.Lock()
	n.conn = conn
	n.w = bufio.NewWriter(conn)
	n.mu.Unlock()

	if err := n.sendf("NICK %s", n.cfg.BotNickname); err != nil {
		return err
	}
	if err := n.sendf("USER %s 0 * :dapsenv build daemon", n.cfg.BotUsername); err != nil {
		return err
	}
	if err := n.sendf("JOIN %s", n.channel()); err != nil {
		return err
	}

	go n.readLoop(conn)

	slog.Info("IRC bot connected", slog.String("server", addr), slog.String("channel", n.channel()))
	return nil
}

// channel returns the channel name with the leading # the config may omit.
func (n *IRCNotifier) channel() string {
	if strings.HasPrefix(n.cfg.Channel, "#") {
		return n.cfg.Channel
	}
	return "#" + n.cfg.Channel
}

// readLoop answers server PINGs and drains everything else.
func (n *IRCNotifier) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "PING ") {
			if err := n.sendf("PONG %s", strings.TrimPrefix(line, "PING ")); err != nil {
				return
			}
		}
	}
}

func (n *IRCNotifier) sendf(format string, args ...any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.w == nil {
		return fmt.Errorf("irc connection closed")
	}
	if _, err := fmt.Fprintf(n.w, format+"\r\n", args...); err != nil {
		return err
	}
	return n.w.Flush()
}

// Notify delivers the event per the inform flags: one private message per
// configured target, plus a channel message when enabled.
func (n *IRCNotifier) Notify(_ context.Context, event *Event) error {
	if event.Success && !n.cfg.InformBuildSuccess {
		return nil
	}
	if !event.Success && !n.cfg.InformBuildFail {
		return nil
	}

	msg := event.Message()
	for _, target := range event.IRCTargets {
		if err := n.sendf("PRIVMSG %s :%s", target, msg); err != nil {
			return err
		}
		slog.Debug("IRC notification sent", slog.String("target", target), logfields.DCFile(event.DCFile))
	}
	if n.cfg.ChannelMessages {
		if err := n.sendf("PRIVMSG %s :%s", n.channel(), msg); err != nil {
			return err
		}
	}
	return nil
}

// Close quits and disconnects.
func (n *IRCNotifier) Close() error {
	_ = n.sendf("QUIT :shutting down")
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	n.w = nil
	return err
}
