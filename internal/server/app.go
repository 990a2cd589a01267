package server

import (
	"bufio"
	"context"
	"net"

	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

// handleAppConn runs for the lifetime of one game/application
// connection: it subscribes to the registry's broadcast feed (so
// every session's emitted events reach this connection), replays
// client_connect for every session already live (letting a restarted
// game rediscover sessions that outlived it), and decodes incoming
// JSON-line commands, routing each to its targeted session or every
// session if untargeted.
func (s *Server) handleAppConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	subID, events := s.reg.subscribeApp()
	defer s.reg.unsubscribeApp(subID)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for resp := range events {
			line := append(protocol.EncodeResponse(&resp), '\n')
			if _, err := conn.Write(line); err != nil {
				s.logger.Debug("app write failed", "error", err)
				return
			}
		}
	}()

	// Replay client_connect for every session already live, straight to
	// this connection's own event channel -- not a registry-wide
	// broadcast, which would hand every other already-connected
	// application a spurious duplicate client_connect each time any new
	// application connects.
	for _, sess := range s.reg.all() {
		select {
		case events <- protocol.Response{Type: "client_connect", Session: sess.ID}:
		default:
			s.logger.Debug("app reconnect replay dropped, event channel full", "session", sess.ID)
		}
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			s.logger.Warn("app command decode failed", "error", err)
			continue
		}
		s.dispatch(ctx, cmd)
	}

	<-writeDone
}

// dispatch handles the handful of commands that are server-level
// (targeting the registry rather than a single session's own state)
// and otherwise routes by the command's session field: empty or "*"
// reaches every session, anything else reaches just that session if
// it's currently registered.
func (s *Server) dispatch(ctx context.Context, cmd *protocol.Command) {
	switch cmd.Cmd {
	case "list_sessions":
		s.reg.broadcast(protocol.Response{Type: "sessions", Sessions: s.reg.sessionInfos()})
		return
	}

	if cmd.Session == "" || cmd.Session == "*" {
		for _, sess := range s.reg.all() {
			sess.Submit(func() { sess.ApplyCommand(ctx, cmd) })
		}
		return
	}

	sess, ok := s.reg.get(cmd.Session)
	if !ok {
		s.logger.Debug("target session not found", "session", cmd.Session, "cmd", cmd.Cmd)
		return
	}
	sess.Submit(func() { sess.ApplyCommand(ctx, cmd) })
}
