// Package client connects to a relay server, performs the presence handshake,
// and builds the frames a chat front end sends.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/gorilla/websocket"
)

// ErrRejected is returned when the server answers the presence request with
// anything other than a 200.
var ErrRejected = errors.New("client: presence rejected")

// Options tunes a connection. The zero value is usable.
type Options struct {
	// HandshakeTimeout bounds the presence exchange. Zero means no deadline.
	HandshakeTimeout time.Duration
	MaxFrameSize     int
	// Origin is sent with WebSocket dials.
	Origin string
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client is one admitted session. Send and the frame builders are safe for
// concurrent use; Receive and Run must not be used at the same time.
type Client struct {
	conn   conn
	login  string
	token  string
	now    func() time.Time
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the relay's TCP listener at addr and logs in.
func Dial(ctx context.Context, addr, login, password string, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := newClient(newTCPConn(nc, opts.MaxFrameSize), login, opts.Logger)
	if err := c.handshake(ctx, password, opts.HandshakeTimeout); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// DialWebSocket connects to the relay's WebSocket endpoint at url and logs in.
func DialWebSocket(ctx context.Context, url, login, password string, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	header := http.Header{}
	if opts.Origin != "" {
		header.Set("Origin", opts.Origin)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := newClient(newWSConn(ws, opts.MaxFrameSize), login, opts.Logger)
	if err := c.handshake(ctx, password, opts.HandshakeTimeout); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func newClient(cn conn, login string, logger *slog.Logger) *Client {
	return &Client{
		conn:   cn,
		login:  login,
		now:    time.Now,
		logger: logger.With("login", login),
	}
}

// handshake sends the presence request and waits for the verdict. The
// directory listing that follows a 200 is left for the caller.
func (c *Client) handshake(ctx context.Context, password string, timeout time.Duration) error {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		if d := time.Now().Add(timeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	if ok {
		if err := c.conn.setReadDeadline(deadline); err != nil {
			return err
		}
		defer func() { _ = c.conn.setReadDeadline(time.Time{}) }()
	}

	presence := protocol.Presence{
		Time:     protocol.Timestamp(c.now()),
		Login:    c.login,
		Password: password,
	}
	if err := c.conn.writeFrame(presence.Frame()); err != nil {
		return fmt.Errorf("send presence: %w", err)
	}

	resp, err := c.conn.readFrame()
	if err != nil {
		return fmt.Errorf("read presence response: %w", err)
	}

	code, _ := resp.Response()
	if code != protocol.StatusOK {
		return fmt.Errorf("%w: %d %s", ErrRejected, code, resp.Field(protocol.KeyAlert))
	}

	c.token = resp.Field(protocol.KeyToken)
	c.logger.Info("logged in")
	return nil
}

// Login returns the identity this client presented.
func (c *Client) Login() string {
	return c.login
}

// Token returns the session token issued by the server.
func (c *Client) Token() string {
	return c.token
}

// Send writes one frame to the server.
func (c *Client) Send(f protocol.Frame) error {
	return c.conn.writeFrame(f)
}

// Receive blocks for the next frame from the server.
func (c *Client) Receive() (protocol.Frame, error) {
	return c.conn.readFrame()
}

// Run delivers every inbound frame to inbound until the connection fails or
// ctx ends. Cancelling ctx closes the connection. The error is nil when ctx
// ended the loop.
func (c *Client) Run(ctx context.Context, inbound chan<- protocol.Frame) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		f, err := c.conn.readFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case inbound <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

// Close ends the session.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.close()
	})
	return c.closeErr
}
