package stream

import (
	"time"

	"github.com/gorilla/websocket"
)

const defaultHandshakeTimeout = 10 * time.Second

// Conn is the minimal surface the manager needs from a live connection.
type Conn interface {
	// ReadMessage blocks for the next inbound frame.
	ReadMessage() ([]byte, error)

	// WriteJSON encodes and sends one outbound command.
	WriteJSON(v any) error

	// Close tears the connection down; pending reads fail afterwards.
	Close() error
}

// Dialer opens a new connection to the feed. Injected into the manager so
// tests can substitute fake transports.
type Dialer interface {
	Dial(url string) (Conn, error)
}

// WebsocketDialer dials the feed over gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

func (d WebsocketDialer) Dial(url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return wsConn{conn}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface. WriteJSON and Close
// are promoted from the embedded connection.
type wsConn struct {
	*websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.Conn.ReadMessage()
	return data, err
}
