package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
)

const (
	testPassword    = "secret"
	frameTimeout    = 2 * time.Second
	silenceInterval = 200 * time.Millisecond
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := *NewConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.RateLimit.Burst = 1000
	cfg.HandshakeTimeout = frameTimeout
	cfg.ShutdownTimeout = frameTimeout
	return cfg
}

// hubEnv is a running hub with a handshaker wired to it, fed by in-memory
// pipes instead of sockets.
type hubEnv struct {
	t   *testing.T
	hub *Hub
	hs  handshaker
}

func newHubEnv(t *testing.T, cfg Config) *hubEnv {
	t.Helper()
	hub := NewHub(cfg, quietLogger())
	return startHubEnv(t, hub)
}

func startHubEnv(t *testing.T, hub *Hub) *hubEnv {
	t.Helper()
	go hub.Run()
	t.Cleanup(func() {
		if err := hub.Shutdown(frameTimeout); err != nil {
			t.Errorf("Hub shutdown failed: %v", err)
		}
	})
	return &hubEnv{
		t:   t,
		hub: hub,
		hs:  handshaker{hub: hub, timeout: hub.cfg.HandshakeTimeout, logger: hub.logger},
	}
}

// pipe returns the client end of a connection whose server end is running
// the handshake.
func (e *hubEnv) pipe() *testPeer {
	serverSide, clientSide := net.Pipe()
	go func() {
		t := newTCPTransport(serverSide, e.hub.cfg.MaxFrameSize)
		if _, err := e.hs.admit(context.Background(), t); err != nil {
			_ = t.Close()
		}
	}()
	e.t.Cleanup(func() { _ = clientSide.Close() })
	return &testPeer{t: e.t, conn: clientSide}
}

// login connects a peer and completes the presence handshake. The listing
// broadcast after admission is left for the test to read.
func (e *hubEnv) login(name string) *testPeer {
	e.t.Helper()
	p := e.pipe()
	p.login(name)
	return p
}

// inspect runs fn on the hub goroutine.
func (e *hubEnv) inspect(fn func(d *Directory)) {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()
	if err := e.hub.query(ctx, func() { fn(e.hub.directory) }); err != nil {
		e.t.Fatalf("Hub query failed: %v", err)
	}
}

// testPeer is the client side of one relay connection.
type testPeer struct {
	t     *testing.T
	conn  net.Conn
	token string
}

func dialPeer(t *testing.T, addr string) *testPeer {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, frameTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testPeer{t: t, conn: conn}
}

func (p *testPeer) login(name string) {
	p.t.Helper()
	p.send(protocol.Presence{
		Time:     protocol.Timestamp(time.Now()),
		Login:    name,
		Password: testPassword,
	}.Frame())

	resp := p.recv()
	if code, _ := resp.Response(); code != protocol.StatusOK {
		p.t.Fatalf("Expected presence response %d for %s, got %#v", protocol.StatusOK, name, resp)
	}
	p.token = resp.Field(protocol.KeyToken)
	if p.token == "" {
		p.t.Fatalf("Expected a token for %s", name)
	}
}

func (p *testPeer) send(f protocol.Frame) {
	p.t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(frameTimeout))
	if err := protocol.WriteFrame(p.conn, f); err != nil {
		p.t.Fatalf("Failed to send frame: %v", err)
	}
}

func (p *testPeer) recv() protocol.Frame {
	p.t.Helper()
	f, err := p.tryRecv(frameTimeout)
	if err != nil {
		p.t.Fatalf("Failed to receive frame: %v", err)
	}
	return f
}

func (p *testPeer) tryRecv(timeout time.Duration) (protocol.Frame, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	return protocol.ReadFrame(p.conn, 0)
}

// expectContacts reads listings until one equals want. Earlier listings are
// skipped; any other frame fails the test.
func (p *testPeer) expectContacts(want ...string) {
	p.t.Helper()
	if want == nil {
		want = []string{}
	}
	for {
		f := p.recv()
		names, ok := f.Contacts()
		if !ok {
			p.t.Fatalf("Expected contact list %v, got %#v", want, f)
		}
		if reflect.DeepEqual(names, want) {
			return
		}
	}
}

// expectSilence fails if any frame arrives within the silence interval.
func (p *testPeer) expectSilence() {
	p.t.Helper()
	f, err := p.tryRecv(silenceInterval)
	if err == nil {
		p.t.Errorf("Expected no frame, got %#v", f)
		return
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		p.t.Errorf("Expected read timeout, got %v", err)
	}
}

// expectClosed waits for the server to close the connection.
func (p *testPeer) expectClosed() {
	p.t.Helper()
	for {
		_, err := p.tryRecv(frameTimeout)
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			p.t.Fatal("Expected the server to close the connection")
		}
		return
	}
}
