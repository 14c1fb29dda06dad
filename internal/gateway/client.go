package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errSinkClosed = errors.New("sink closed")
	errSinkFull   = errors.New("slow subscriber, message dropped")
)

// wsClient adapts one WebSocket connection into a model.Sink. Sends are
// decoupled from the wire through a buffered channel so a slow peer can
// never block a worker slot.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

// Send queues one message for delivery. Non-blocking: a closed sink or
// a full buffer returns an error the registry swallows.
func (c *wsClient) Send(payload []byte) error {
	select {
	case <-c.done:
		return errSinkClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errSinkClosed
	default:
		return errSinkFull
	}
}

// Close requests a graceful teardown. The write pump flushes queued
// messages, sends a close frame and drops the connection. Safe to call
// more than once and after the peer disconnected.
func (c *wsClient) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			// Flush whatever is still queued before the close frame.
			for {
				select {
				case msg := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "order finished"))
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames (the protocol is push-only) and
// reports the disconnect through onClose.
func (c *wsClient) readPump(orderID string, onClose func()) {
	defer func() {
		onClose()
		c.Close()
		c.conn.Close()
		slog.Debug("ws subscriber disconnected", "order_id", orderID)
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
