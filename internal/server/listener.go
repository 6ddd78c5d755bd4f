package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
)

// Listener accepts TCP connections speaking the length-prefixed JSON protocol
// and runs the presence handshake on each before handing it to the hub.
type Listener struct {
	ln           net.Listener
	hs           handshaker
	backlog      chan struct{}
	maxFrameSize int64
	logger       *slog.Logger

	// mu orders handshake registration in Serve against Close, so that no
	// handshake starts after Close has begun waiting.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Listen binds addr. Serve must be called to start accepting.
func Listen(ctx context.Context, addr string, hs handshaker, cfg Config, logger *slog.Logger) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	lctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		ln:           ln,
		hs:           hs,
		backlog:      make(chan struct{}, cfg.Backlog),
		maxFrameSize: cfg.MaxFrameSize,
		logger:       logger,
		ctx:          lctx,
		cancel:       cancel,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve runs the accept loop until the listener is closed.
func (l *Listener) Serve() error {
	l.logger.Info("tcp listener started", "addr", l.ln.Addr().String())

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("failed to accept connection", "error", err)
			continue
		}

		select {
		case l.backlog <- struct{}{}:
		default:
			l.logger.Warn("handshake backlog full; closing connection", "addr", conn.RemoteAddr().String())
			_ = conn.Close()
			continue
		}

		if !l.track() {
			<-l.backlog
			_ = conn.Close()
			return nil
		}
		go l.handshake(conn)
	}
}

// track registers a handshake goroutine. It reports false once Close has
// started.
func (l *Listener) track() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.wg.Add(1)
	return true
}

func (l *Listener) handshake(conn net.Conn) {
	defer func() {
		<-l.backlog
		l.wg.Done()
	}()

	// Unblock a handshake still waiting on its first frame when the listener
	// closes.
	stop := context.AfterFunc(l.ctx, func() { _ = conn.Close() })
	defer stop()

	t := newTCPTransport(conn, l.maxFrameSize)
	if _, err := l.hs.admit(l.ctx, t); err != nil {
		l.logger.Info("connection not admitted", "addr", t.RemoteAddr(), "error", err)
		_ = t.Close()
	}
}

// Close stops accepting and waits for handshakes in flight.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	err := l.ln.Close()
	l.cancel()
	l.wg.Wait()
	return err
}
