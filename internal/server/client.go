package server

import (
	"context"
	"net"

	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
	"github.com/benj-edwards/ascii-processing-unit/internal/session"
	"github.com/benj-edwards/ascii-processing-unit/internal/telnet"
)

// handleClientConn runs for the lifetime of one player's telnet
// connection: it creates and registers the Session behind it, sends
// the one-time raw-mode telnet handshake, then pumps bytes from the
// socket through a per-connection telnet.Filter and into the
// session's own goroutine via FeedInput.
func (s *Server) handleClientConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	addr := conn.RemoteAddr().String()
	id := s.reg.nextSessionID(addr)

	sess := session.New(id, addr, conn, s.reg.broadcast, s.reg.resolveBackground, s.logger)
	s.reg.register(id, sess, addr)
	sess.SetNotifyShare(func(sourceID string, shared bool) {
		s.reg.recordShare(sourceID, id, shared)
	})

	go sess.Run()

	if _, err := conn.Write(telnet.ServerRawModeNegotiation()); err != nil {
		s.logger.Error("telnet negotiation write failed", "session", id, "error", err)
		sess.Close()
		s.reg.unregister(id)
		return
	}

	s.reg.broadcast(protocol.Response{Type: "client_connect", Session: id})

	sess.Submit(func() {
		sess.ApplyCommand(ctx, &protocol.Command{Cmd: "init"})
	})

	var filter telnet.Filter
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := filter.Feed(buf[:n])
			for _, reply := range filter.DrainReplies() {
				conn.Write(reply)
			}
			if len(data) > 0 {
				payload := append([]byte(nil), data...)
				sess.Submit(func() { sess.FeedInput(payload) })
			}
		}
		if err != nil {
			break
		}
	}

	s.logger.Info("client disconnected", "session", id)
	sess.Close()
	s.reg.unregister(id)
}
