package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server ties the hub to its TCP listener and optional HTTP side.
type Server struct {
	cfg    Config
	logger *slog.Logger
	hub    *Hub

	listener   *Listener
	httpServer *http.Server
	httpLn     net.Listener

	wg sync.WaitGroup
}

// New creates a server for cfg. Nothing is bound until Start.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.sanitize()
	return &Server{
		cfg:    cfg,
		logger: logger,
		hub:    NewHub(cfg, logger),
	}
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub, binds the TCP listener and, when configured, the HTTP
// listener. It returns once everything is accepting.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run()

	hs := handshaker{
		hub:     s.hub,
		timeout: s.cfg.HandshakeTimeout,
		logger:  s.logger,
	}

	listener, err := Listen(ctx, s.cfg.Addr, hs, s.cfg, s.logger)
	if err != nil {
		_ = s.hub.Shutdown(s.cfg.ShutdownTimeout)
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := listener.Serve(); err != nil {
			s.logger.Error("tcp listener stopped", "error", err)
		}
	}()

	if s.cfg.HTTPAddr == "" {
		return nil
	}

	var lc net.ListenConfig
	httpLn, err := lc.Listen(ctx, "tcp", s.cfg.HTTPAddr)
	if err != nil {
		_ = s.Shutdown(s.cfg.ShutdownTimeout)
		return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
	}
	s.httpLn = httpLn

	mux := SetupRoutes(s.hub, NewWebSocketHandler(s.hub, s.logger))
	s.httpServer = CreateServer(s.cfg.HTTPAddr, mux)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http listener started", "addr", httpLn.Addr().String())
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound TCP address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when the HTTP side is off.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// Run starts the server and blocks until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown(s.cfg.ShutdownTimeout)
}

// Shutdown stops accepting, closes every connection, and waits for the
// listener, HTTP server and hub goroutines up to timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	var errs []error

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}

	if s.httpServer != nil {
		if err := ShutdownServer(s.httpServer, timeout, s.logger); err != nil {
			errs = append(errs, err)
		}
	} else if s.httpLn != nil {
		_ = s.httpLn.Close()
	}

	if err := s.hub.Shutdown(timeout); err != nil {
		errs = append(errs, err)
	}

	s.wg.Wait()
	return errors.Join(errs...)
}
