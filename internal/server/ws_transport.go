package server

import (
	"sync"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// wsTransport carries one JSON frame per WebSocket message. Message
// boundaries come from the WebSocket protocol, so no length prefix is used.
type wsTransport struct {
	conn      *websocket.Conn
	keepalive sync.Once
	closeOnce sync.Once
	stop      chan struct{}
}

func newWSTransport(conn *websocket.Conn, maxFrameSize int64) *wsTransport {
	conn.SetReadLimit(maxFrameSize)
	return &wsTransport{
		conn: conn,
		stop: make(chan struct{}),
	}
}

func (t *wsTransport) ReadFrame() (protocol.Frame, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}

func (t *wsTransport) WriteFrame(payload []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

// SetDeadline applies a handshake deadline. Clearing it switches to the
// ping/pong keepalive: reads must see a pong within pongWait.
func (t *wsTransport) SetDeadline(deadline time.Time) error {
	if !deadline.IsZero() {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		return t.conn.SetWriteDeadline(deadline)
	}

	if err := t.conn.SetWriteDeadline(time.Time{}); err != nil {
		return err
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	t.keepalive.Do(func() {
		t.conn.SetPongHandler(func(string) error {
			return t.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go t.pingLoop()
	})
	return nil
}

// pingLoop relies on WriteControl being safe alongside the write pump.
func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}
