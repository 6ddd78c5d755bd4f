package client

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/gorilla/websocket"
)

// conn moves whole frames to and from the relay.
type conn interface {
	readFrame() (protocol.Frame, error)
	writeFrame(f protocol.Frame) error
	setReadDeadline(t time.Time) error
	close() error
}

// tcpConn speaks the length-prefixed framing of the TCP listener.
type tcpConn struct {
	nc           net.Conn
	reader       *bufio.Reader
	maxFrameSize int
	writeMu      sync.Mutex
}

func newTCPConn(nc net.Conn, maxFrameSize int) *tcpConn {
	return &tcpConn{
		nc:           nc,
		reader:       bufio.NewReader(nc),
		maxFrameSize: maxFrameSize,
	}
}

func (c *tcpConn) readFrame() (protocol.Frame, error) {
	return protocol.ReadFrame(c.reader, c.maxFrameSize)
}

func (c *tcpConn) writeFrame(f protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.nc, f)
}

func (c *tcpConn) setReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

func (c *tcpConn) close() error {
	return c.nc.Close()
}

// wsConn carries one frame per WebSocket text message.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(ws *websocket.Conn, maxFrameSize int) *wsConn {
	ws.SetReadLimit(int64(maxFrameSize))
	return &wsConn{ws: ws}
}

func (c *wsConn) readFrame() (protocol.Frame, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}

func (c *wsConn) writeFrame(f protocol.Frame) error {
	payload, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) setReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
