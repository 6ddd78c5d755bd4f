package server

import (
	"errors"
	"log/slog"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/gorilla/websocket"
)

// Conn represents one admitted session. It owns the transport, an outbound
// queue drained by its write pump, and the identity it presented.
type Conn struct {
	transport   Transport
	send        chan []byte
	hub         *Hub
	addr        string
	login       string
	token       string
	rateLimiter *rateLimiter
	rateLimit   RateLimitConfig
	logger      *slog.Logger
}

func newConn(t Transport, hub *Hub, login string) *Conn {
	addr := t.RemoteAddr()
	return &Conn{
		transport:   t,
		send:        make(chan []byte, hub.cfg.SendQueueSize),
		hub:         hub,
		addr:        addr,
		login:       login,
		rateLimiter: newRateLimiter(hub.cfg.RateLimit),
		rateLimit:   hub.cfg.RateLimit,
		logger:      hub.logger.With("addr", addr, "login", login),
	}
}

// logReadError records why the read pump stopped. Every read error ends the
// session; this only picks the log level.
func (c *Conn) logReadError(err error) {
	switch {
	case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "limit", c.hub.cfg.MaxFrameSize, "error", err)
	case errors.Is(err, protocol.ErrEmptyFrame), errors.Is(err, protocol.ErrNotObject):
		c.logger.Warn("malformed frame", "error", err)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("client disconnected", "error", err)
	case isExpectedCloseError(err):
		c.logger.Info("client connection closed", "error", err)
	default:
		c.logger.Warn("read error", "error", err)
	}
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Conn) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn("rate limit exceeded; discarding frame",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// readPump blocks on the next frame and hands it to the hub. Any read failure
// ends the session.
func (c *Conn) readPump() {
	defer c.hub.disconnect(c)

	for {
		frame, err := c.transport.ReadFrame()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		if !c.hub.deliver(c, frame) {
			return
		}
	}
}

// writePump drains the send queue. It exits when the hub closes the queue or
// a write fails; either way the transport is closed.
func (c *Conn) writePump() {
	defer c.closeTransport()

	for payload := range c.send {
		if err := c.transport.WriteFrame(payload); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Warn("write error", "error", err)
			}
			c.hub.disconnect(c)
			return
		}
	}
}

func (c *Conn) closeTransport() {
	if err := c.transport.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("error closing transport", "error", err)
	}
}
