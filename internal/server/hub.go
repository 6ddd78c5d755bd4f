// Package server coordinates admission, frame dispatch, and connection
// cleanup for the relay via the Hub type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/google/uuid"
)

var (
	// ErrHubClosed is returned when the hub stopped before answering.
	ErrHubClosed = errors.New("server: hub closed")
	// ErrLoginTaken is returned when a presence login is already a directory name.
	ErrLoginTaken = errors.New("server: login already taken")
)

type admission struct {
	transport Transport
	presence  protocol.Presence
	result    chan admissionResult
}

type admissionResult struct {
	conn *Conn
	err  error
}

type inboundFrame struct {
	conn  *Conn
	frame protocol.Frame
}

// Hub owns the directory and the set of admitted connections. Every read and
// mutation of either happens on the goroutine running Run; listeners, read
// pumps and write pumps reach it only through channels.
type Hub struct {
	cfg       Config
	logger    *slog.Logger
	directory *Directory
	conns     map[*Conn]struct{}
	tokens    map[string]*Conn
	failed    []*Conn
	newToken  func() string

	admissions chan admission
	inbound    chan inboundFrame
	unregister chan *Conn
	queries    chan func()

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub ready to be started with Run.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg.sanitize(),
		logger:     logger,
		directory:  NewDirectory(),
		conns:      make(map[*Conn]struct{}),
		tokens:     make(map[string]*Conn),
		newToken:   uuid.NewString,
		admissions: make(chan admission),
		inbound:    make(chan inboundFrame),
		unregister: make(chan *Conn),
		queries:    make(chan func()),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownConns()
			return

		case a := <-h.admissions:
			h.handle(func() { h.admit(a) })

		case in := <-h.inbound:
			h.handle(func() { h.dispatch(in.conn, in.frame) })

		case c := <-h.unregister:
			h.handle(func() { h.remove(c, "disconnected") })

		case q := <-h.queries:
			h.handle(q)
		}
	}
}

// handle runs one event. A panic is logged and the loop keeps going.
func (h *Hub) handle(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic in hub loop", "panic", r)
		}
	}()

	fn()
	h.removeFailed()
}

// Admit registers a validated presence and returns the admitted connection.
// On success the hub has queued the 200 response, started the pumps and
// broadcast the directory.
func (h *Hub) Admit(ctx context.Context, t Transport, p protocol.Presence) (*Conn, error) {
	a := admission{
		transport: t,
		presence:  p,
		result:    make(chan admissionResult, 1),
	}

	select {
	case h.admissions <- a:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}

	select {
	case r := <-a.result:
		return r.conn, r.err
	case <-h.done:
		return nil, ErrHubClosed
	}
}

// Contacts returns a snapshot of every directory name.
func (h *Hub) Contacts(ctx context.Context) ([]string, error) {
	var names []string
	err := h.query(ctx, func() {
		names = h.directory.Names()
	})
	return names, err
}

// query runs fn on the hub goroutine and waits for it.
func (h *Hub) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	q := func() {
		defer close(finished)
		fn()
	}

	select {
	case h.queries <- q:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubClosed
	}

	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// deliver hands a frame read by c to the hub. It reports false once the hub
// is shutting down.
func (h *Hub) deliver(c *Conn, f protocol.Frame) bool {
	select {
	case h.inbound <- inboundFrame{conn: c, frame: f}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// disconnect asks the hub to tear c down. Unknown or already removed
// connections are ignored by the hub.
func (h *Hub) disconnect(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) admit(a admission) {
	login := a.presence.Login
	if h.directory.Has(login) {
		a.result <- admissionResult{err: fmt.Errorf("%w: %s", ErrLoginTaken, login)}
		return
	}

	c := newConn(a.transport, h, login)
	c.token = h.issueToken()
	h.directory.AddIdentity(login, c)
	h.conns[c] = struct{}{}
	h.tokens[c.token] = c

	h.send(c, protocol.PresenceAccepted(c.token))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()

	c.logger.Info("client admitted", "clients", len(h.conns))
	h.broadcastContacts()

	a.result <- admissionResult{conn: c}
}

// issueToken returns a token not held by any current session.
func (h *Hub) issueToken() string {
	for {
		token := h.newToken()
		if _, taken := h.tokens[token]; token != "" && !taken {
			return token
		}
	}
}

// send encodes f and queues it for c.
func (h *Hub) send(c *Conn, f protocol.Frame) {
	payload, err := protocol.Encode(f)
	if err != nil {
		c.logger.Error("failed to encode frame", "error", err)
		return
	}
	h.enqueue(c, payload)
}

// enqueue never blocks the hub. A full queue counts as a write failure and
// the connection is torn down once the current event finishes.
func (h *Hub) enqueue(c *Conn, payload []byte) bool {
	if _, ok := h.conns[c]; !ok {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		c.logger.Warn("send queue full; dropping connection")
		h.failed = append(h.failed, c)
		return false
	}
}

func (h *Hub) removeFailed() {
	for len(h.failed) > 0 {
		c := h.failed[0]
		h.failed = h.failed[1:]
		h.remove(c, "send queue full")
	}
}

// remove tears c down: it leaves the polling set, its identity and room
// memberships are dropped, and the remaining identities get a new listing.
func (h *Hub) remove(c *Conn, reason string) {
	if _, ok := h.conns[c]; !ok {
		return
	}

	delete(h.conns, c)
	delete(h.tokens, c.token)
	names := h.directory.RemoveConn(c)

	// Closing the queue stops the write pump; closing the transport unblocks
	// the read pump.
	close(c.send)
	c.closeTransport()

	c.logger.Info("client removed", "reason", reason, "names", names, "clients", len(h.conns))
	h.broadcastContacts()
}

// broadcastContacts sends the current listing to every identity.
func (h *Hub) broadcastContacts() {
	payload, err := protocol.Encode(protocol.ContactList(h.directory.Names()))
	if err != nil {
		h.logger.Error("failed to encode contact list", "error", err)
		return
	}

	for _, c := range h.directory.Identities() {
		h.enqueue(c, payload)
	}
}

// sendContacts sends the current listing to c alone.
func (h *Hub) sendContacts(c *Conn) {
	h.send(c, protocol.ContactList(h.directory.Names()))
}

// shutdownConns closes every admitted connection.
func (h *Hub) shutdownConns() {
	h.logger.Info("shutting down all client connections")

	count := len(h.conns)
	for c := range h.conns {
		close(c.send)
		c.closeTransport()
	}
	clear(h.conns)
	clear(h.tokens)
	h.failed = nil
	h.directory = NewDirectory()

	h.logger.Info("closed client connections", "count", count)
}

// Shutdown stops the event loop and waits for every pump goroutine. It returns
// context.DeadlineExceeded if that takes longer than timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")
	h.cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		h.logger.Warn("hub shutdown timeout reached before event loop stopped")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed successfully")
		return nil
	case <-timer.C:
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
