package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (ctx context.Context, appAddr, clientAddr string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := New(Config{AppBind: "127.0.0.1", AppPort: 0, ClientPort: 0}, nil)
	go func() {
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			t.Logf("server run exited: %v", err)
		}
	}()

	var err error
	appAddr, clientAddr, err = srv.Addrs(ctx)
	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	return ctx, appAddr, clientAddr
}

// TestClientConnectBroadcastsToApp verifies a newly connected client
// gets a session id and the app learns about it via client_connect,
// including the telnet raw-mode handshake arriving first.
func TestClientConnectBroadcastsToApp(t *testing.T) {
	_, appAddr, clientAddr := startTestServer(t)

	appConn, err := net.Dial("tcp", appAddr)
	if err != nil {
		t.Fatalf("dial app: %v", err)
	}
	defer appConn.Close()
	appReader := bufio.NewReader(appConn)

	clientConn, err := net.Dial("tcp", clientAddr)
	if err != nil {
		t.Fatalf("dial client: %v", err)
	}
	defer clientConn.Close()

	negotiation := make([]byte, 6)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(clientConn, negotiation); err != nil {
		t.Fatalf("reading telnet negotiation: %v", err)
	}
	if negotiation[0] != 0xff {
		t.Fatalf("expected telnet IAC as first byte, got %v", negotiation)
	}

	appConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := appReader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading client_connect: %v", err)
	}
	var resp struct {
		Type    string `json:"type"`
		Session string `json:"session"`
	}
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("decode client_connect: %v", err)
	}
	if resp.Type != "client_connect" {
		t.Fatalf("expected client_connect, got %q", resp.Type)
	}
	if !strings.HasPrefix(resp.Session, "session_") {
		t.Fatalf("expected session id prefixed session_, got %q", resp.Session)
	}
}

// TestClientConnRemainsOpenWithoutAnyCommand guards against a past
// bug where a freshly accepted client connection was torn down within
// a few iterations of its own event loop, independent of client EOF
// or an app-issued shutdown. After the telnet negotiation and the
// renderer's start-up sequence written by the session's own init
// command, a long-lived idle session should survive comfortably past
// its own internal tick interval untouched.
func TestClientConnRemainsOpenWithoutAnyCommand(t *testing.T) {
	_, _, clientAddr := startTestServer(t)

	clientConn, err := net.Dial("tcp", clientAddr)
	if err != nil {
		t.Fatalf("dial client: %v", err)
	}
	defer clientConn.Close()

	negotiation := make([]byte, 6)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(clientConn, negotiation); err != nil {
		t.Fatalf("reading telnet negotiation: %v", err)
	}

	initSeq := "\x1b[?25l\x1b[2J\x1b[H\x1b[0m"
	gotInit := make([]byte, len(initSeq))
	if _, err := readFull(clientConn, gotInit); err != nil {
		t.Fatalf("reading init sequence: %v", err)
	}
	if string(gotInit) != initSeq {
		t.Fatalf("expected init sequence %q, got %q", initSeq, gotInit)
	}

	clientConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := clientConn.Read(buf); err == nil {
		t.Fatalf("expected no further data and no close on an idle session")
	} else if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		t.Fatalf("expected a read timeout on an idle session, got %v", err)
	}
}

// TestAppShutdownClosesClientConnection verifies an app-issued
// shutdown command for a session closes that session's client socket,
// rather than relying on the client's own EOF.
func TestAppShutdownClosesClientConnection(t *testing.T) {
	_, appAddr, clientAddr := startTestServer(t)

	appConn, err := net.Dial("tcp", appAddr)
	if err != nil {
		t.Fatalf("dial app: %v", err)
	}
	defer appConn.Close()
	appReader := bufio.NewReader(appConn)

	clientConn, err := net.Dial("tcp", clientAddr)
	if err != nil {
		t.Fatalf("dial client: %v", err)
	}
	defer clientConn.Close()

	negotiation := make([]byte, 6)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(clientConn, negotiation); err != nil {
		t.Fatalf("reading telnet negotiation: %v", err)
	}

	appConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := appReader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading client_connect: %v", err)
	}
	var connectEvent struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal([]byte(line), &connectEvent); err != nil {
		t.Fatalf("decode client_connect: %v", err)
	}

	shutdownCmd := []byte(`{"cmd":"shutdown","session":"` + connectEvent.Session + `"}` + "\n")
	if _, err := appConn.Write(shutdownCmd); err != nil {
		t.Fatalf("write shutdown: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	for {
		if _, err := clientConn.Read(buf); err != nil {
			return
		}
	}
}

// TestAppReconnectReplayDoesNotDuplicateToOtherApps verifies that a
// second application connecting only gets its own client_connect
// replay, and a pre-existing application doesn't get a spurious
// duplicate client_connect broadcast out of that replay.
func TestAppReconnectReplayDoesNotDuplicateToOtherApps(t *testing.T) {
	_, appAddr, clientAddr := startTestServer(t)

	firstApp, err := net.Dial("tcp", appAddr)
	if err != nil {
		t.Fatalf("dial first app: %v", err)
	}
	defer firstApp.Close()
	firstReader := bufio.NewReader(firstApp)

	clientConn, err := net.Dial("tcp", clientAddr)
	if err != nil {
		t.Fatalf("dial client: %v", err)
	}
	defer clientConn.Close()

	negotiation := make([]byte, 6)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(clientConn, negotiation); err != nil {
		t.Fatalf("reading telnet negotiation: %v", err)
	}

	firstApp.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := firstReader.ReadString('\n'); err != nil {
		t.Fatalf("reading first app's own client_connect: %v", err)
	}

	secondApp, err := net.Dial("tcp", appAddr)
	if err != nil {
		t.Fatalf("dial second app: %v", err)
	}
	defer secondApp.Close()
	secondReader := bufio.NewReader(secondApp)

	secondApp.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := secondReader.ReadString('\n'); err != nil {
		t.Fatalf("reading second app's replayed client_connect: %v", err)
	}

	firstApp.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, err := firstReader.ReadString('\n'); err == nil {
		t.Fatalf("first app received an unexpected extra event from second app's connect")
	}
}

// TestAppCreateWindowRendersToClient is an end-to-end smoke test: an
// app sends create_window + flush targeted at the session id it
// learned from client_connect, and the player's socket receives
// rendered output containing the window's border glyphs.
func TestAppCreateWindowRendersToClient(t *testing.T) {
	_, appAddr, clientAddr := startTestServer(t)

	appConn, err := net.Dial("tcp", appAddr)
	if err != nil {
		t.Fatalf("dial app: %v", err)
	}
	defer appConn.Close()
	appReader := bufio.NewReader(appConn)

	clientConn, err := net.Dial("tcp", clientAddr)
	if err != nil {
		t.Fatalf("dial client: %v", err)
	}
	defer clientConn.Close()

	// Drain the telnet negotiation before anything else.
	negotiation := make([]byte, 6)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(clientConn, negotiation); err != nil {
		t.Fatalf("reading telnet negotiation: %v", err)
	}

	appConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := appReader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading client_connect: %v", err)
	}
	var connectEvent struct {
		Session string `json:"session"`
	}
	json.Unmarshal([]byte(line), &connectEvent)
	sessionID := connectEvent.Session

	send := func(v map[string]any) {
		v["session"] = sessionID
		data, _ := json.Marshal(v)
		appConn.Write(append(data, '\n'))
	}
	send(map[string]any{"cmd": "create_window", "id": "w", "x": 1, "y": 1, "width": 10, "height": 5, "border": "single"})
	send(map[string]any{"cmd": "flush", "force_full": true})

	deadline := time.Now().Add(2 * time.Second)
	var accumulated strings.Builder
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		if strings.ContainsAny(accumulated.String(), "┌╔") {
			return
		}
		clientConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := clientConn.Read(buf)
		if n > 0 {
			accumulated.Write(buf[:n])
		}
		if err != nil && n == 0 {
			continue
		}
	}
	t.Fatalf("expected a window border glyph in rendered output, got %q", accumulated.String())
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
