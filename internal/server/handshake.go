package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
)

// ErrMalformedPresence is returned when the first frame is not a valid
// presence request.
var ErrMalformedPresence = errors.New("server: malformed presence request")

// Alerts sent with a 400 handshake response.
const (
	alertMalformedPresence = "Malformed presence request"
	alertLoginTaken        = "This user already exists"
)

// handshaker runs the presence exchange shared by every transport.
type handshaker struct {
	hub     *Hub
	timeout time.Duration
	logger  *slog.Logger
}

// admit reads the presence request from t and asks the hub to admit it. On
// error the caller owns t and must close it; a 400 response has already been
// written when the request itself was at fault.
func (hs handshaker) admit(ctx context.Context, t Transport) (*Conn, error) {
	logger := hs.logger.With("addr", t.RemoteAddr())

	if hs.timeout > 0 {
		if err := t.SetDeadline(time.Now().Add(hs.timeout)); err != nil {
			return nil, fmt.Errorf("set handshake deadline: %w", err)
		}
	}

	frame, err := t.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}

	presence, ok := protocol.ParsePresence(frame)
	if !ok {
		hs.reject(logger, t, alertMalformedPresence)
		return nil, ErrMalformedPresence
	}

	if err := t.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}

	conn, err := hs.hub.Admit(ctx, t, presence)
	if errors.Is(err, ErrLoginTaken) {
		if hs.timeout > 0 {
			_ = t.SetDeadline(time.Now().Add(hs.timeout))
		}
		hs.reject(logger, t, alertLoginTaken)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (hs handshaker) reject(logger *slog.Logger, t Transport, alert string) {
	logger.Warn("presence rejected", "alert", alert)
	if err := writeFrame(t, protocol.PresenceRejected(alert)); err != nil && !isExpectedCloseError(err) {
		logger.Debug("failed to write presence rejection", "error", err)
	}
}
