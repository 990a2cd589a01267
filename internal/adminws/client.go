package adminws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

// Client dials a Hub's feed and decodes each message into a
// protocol.Response, the consumer-side counterpart of the teacher's
// wsclient.go Adapter.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to an adminws Hub at addr (host:port, no scheme) and
// returns a Client ready for Next.
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/admin/events"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("adminws: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Next blocks for the next event on the feed.
func (c *Client) Next() (protocol.Response, error) {
	var ev protocol.Response
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("adminws: decode event: %w", err)
	}
	return ev, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
