package adminws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

func TestHubBroadcastsToConnectedClient(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	// Give the server a moment to register the connection before
	// broadcasting -- there is no synchronous ack for "subscribed".
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(protocol.Response{Type: "client_connect", Session: "session_test"})

	ev, err := client.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Type != "client_connect" || ev.Session != "session_test" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHubDropsEventsForSlowClientWithoutBlocking(t *testing.T) {
	hub := NewHub(nil)
	c := &client{writeChan: make(chan []byte, 1), done: make(chan struct{})}
	hub.register(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(protocol.Response{Type: "window_moved"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a slow client instead of dropping")
	}
}
