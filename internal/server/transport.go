package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
)

// Transport carries whole frames for one connection. ReadFrame is only called
// from one goroutine at a time, as is WriteFrame; Close may be called from any
// goroutine and more than once.
type Transport interface {
	ReadFrame() (protocol.Frame, error)
	WriteFrame(payload []byte) error
	// SetDeadline bounds pending reads and writes. A zero time removes the
	// bound and puts the transport in its steady state.
	SetDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// tcpTransport frames JSON documents with a 4-byte big-endian length prefix.
type tcpTransport struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxFrameSize int
}

func newTCPTransport(conn net.Conn, maxFrameSize int64) *tcpTransport {
	return &tcpTransport{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		maxFrameSize: int(maxFrameSize),
	}
}

func (t *tcpTransport) ReadFrame() (protocol.Frame, error) {
	return protocol.ReadFrame(t.reader, t.maxFrameSize)
}

func (t *tcpTransport) WriteFrame(payload []byte) error {
	return protocol.WritePayload(t.conn, payload)
}

func (t *tcpTransport) SetDeadline(deadline time.Time) error {
	return t.conn.SetDeadline(deadline)
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// writeFrame encodes f and writes it straight to the transport. It is only
// used before a connection has a write pump.
func writeFrame(t Transport, f protocol.Frame) error {
	payload, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	return t.WriteFrame(payload)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
