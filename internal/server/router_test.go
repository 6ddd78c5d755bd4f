package server

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
)

func msgFrame(from, to, message string) protocol.Frame {
	return protocol.Frame{
		"action":  "msg",
		"time":    "2024-01-02 03:04:05",
		"token":   "t",
		"from":    from,
		"to":      to,
		"message": message,
	}
}

// TestDirectMessageForwardedVerbatim verifies that a message to an identity
// reaches only that identity, unchanged.
func TestDirectMessageForwardedVerbatim(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	carol := env.login("carol")
	for _, p := range []*testPeer{alice, bob, carol} {
		p.expectContacts("alice", "bob", "carol")
	}

	sent := msgFrame("alice", "bob", "hi")
	sent["extra"] = "kept"
	sent["id"] = json.Number("9007199254740993")
	alice.send(sent)

	got := bob.recv()
	if got["id"] != json.Number("9007199254740993") {
		t.Errorf("Expected id 9007199254740993 relayed exactly, got %v", got["id"])
	}
	data, _ := protocol.Encode(sent)
	want, _ := protocol.Decode(data)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %#v, got %#v", want, got)
	}

	alice.expectSilence()
	carol.expectSilence()
}

// TestMessageToUnknownName verifies the routing error goes to the sender only.
func TestMessageToUnknownName(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	alice.expectContacts("alice", "bob")
	bob.expectContacts("alice", "bob")

	alice.send(msgFrame("alice", "nobody", "hello?"))

	resp := alice.recv()
	if code, _ := resp.Response(); code != protocol.StatusNotFound {
		t.Errorf("Expected response %d, got %#v", protocol.StatusNotFound, resp)
	}
	if resp.Field(protocol.KeyError) != "User <nobody> not found" {
		t.Errorf("Unexpected error %q", resp.Field(protocol.KeyError))
	}
	bob.expectSilence()

	// A missing "to" is an unknown name too.
	alice.send(protocol.Frame{"action": "msg", "message": "x"})
	resp = alice.recv()
	if resp.Field(protocol.KeyError) != "User <> not found" {
		t.Errorf("Unexpected error %q", resp.Field(protocol.KeyError))
	}
}

// TestRoomScenario walks through room creation, joining and fan-out.
func TestRoomScenario(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	alice.expectContacts("alice", "bob")
	bob.expectContacts("alice", "bob")

	alice.send(protocol.Frame{"action": "create_chat", "room": "r1"})
	alice.expectContacts("alice", "bob", "r1")
	bob.expectContacts("alice", "bob", "r1")

	bob.send(protocol.Frame{"action": "join", "room": "r1"})
	bob.expectContacts("alice", "bob", "r1")

	env.inspect(func(d *Directory) {
		e, ok := d.Lookup("r1")
		if !ok {
			t.Fatal("Expected r1 in directory")
		}
		members := e.(*Room).Members
		if len(members) != 2 || members[0].login != "alice" || members[1].login != "bob" {
			t.Errorf("Expected members [alice bob], got %v", members)
		}
	})

	bob.send(msgFrame("bob", "r1", "hello room"))
	for _, p := range []*testPeer{alice, bob} {
		got := p.recv()
		if got.Field(protocol.KeyFrom) != "r1:bob" {
			t.Errorf("Expected from %q, got %q", "r1:bob", got.Field(protocol.KeyFrom))
		}
		if got.Field(protocol.KeyMessage) != "hello room" {
			t.Errorf("Expected message %q, got %q", "hello room", got.Field(protocol.KeyMessage))
		}
	}
}

// TestDuplicateCreateIsNoop verifies that creating a taken name changes
// nothing and sends nothing.
func TestDuplicateCreateIsNoop(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	alice.expectContacts("alice", "bob")
	bob.expectContacts("alice", "bob")

	alice.send(protocol.Frame{"action": "create_chat", "room": "r1"})
	alice.expectContacts("alice", "bob", "r1")
	bob.expectContacts("alice", "bob", "r1")

	bob.send(protocol.Frame{"action": "create_chat", "room": "r1"})
	bob.send(protocol.Frame{"action": "create_chat", "room": "alice"})
	bob.expectSilence()
	alice.expectSilence()

	env.inspect(func(d *Directory) {
		e, _ := d.Lookup("r1")
		if members := e.(*Room).Members; len(members) != 1 || members[0].login != "alice" {
			t.Errorf("Expected r1 members unchanged, got %v", members)
		}
		if a, _ := d.Lookup("alice"); a.(Identity).Conn.login != "alice" {
			t.Errorf("Expected alice to stay an identity")
		}
	})
}

// TestDuplicateJoinDeliversTwice verifies that membership is not deduplicated.
func TestDuplicateJoinDeliversTwice(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	alice.expectContacts("alice", "bob")
	bob.expectContacts("alice", "bob")

	alice.send(protocol.Frame{"action": "create_chat", "room": "r1"})
	alice.expectContacts("alice", "bob", "r1")
	bob.expectContacts("alice", "bob", "r1")

	bob.send(protocol.Frame{"action": "join", "room": "r1"})
	bob.expectContacts("alice", "bob", "r1")
	bob.send(protocol.Frame{"action": "join", "room": "r1"})
	bob.expectContacts("alice", "bob", "r1")

	alice.send(msgFrame("alice", "r1", "twice"))
	alice.recv()
	bob.recv()
	bob.recv()
	bob.expectSilence()
}

func TestJoinMissingRoomIsNoop(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	env.login("bob")
	alice.expectContacts("alice", "bob")

	alice.send(protocol.Frame{"action": "join", "room": "nowhere"})
	alice.send(protocol.Frame{"action": "join", "room": "bob"})
	alice.expectSilence()

	env.inspect(func(d *Directory) {
		if d.Has("nowhere") {
			t.Error("Join must not create rooms")
		}
	})
}

func TestUpdateContactsRepliesToSenderOnly(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	alice.expectContacts("alice", "bob")
	bob.expectContacts("alice", "bob")

	bob.send(protocol.Frame{"action": "update_contacts"})
	bob.expectContacts("alice", "bob")
	alice.expectSilence()
}

// TestUnknownActionEchoesFrame verifies the 404 response and that the
// connection stays usable afterwards.
func TestUnknownActionEchoesFrame(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	alice.expectContacts("alice")

	cases := []protocol.Frame{
		{"action": "dance", "token": "t"},
		{"token": "t"},
		{"action": "presence", "login": "alice", "password": "pw"},
		{"action": json.Number("5")},
	}

	for _, sent := range cases {
		alice.send(sent)
		resp := alice.recv()
		if resp.Field(protocol.KeyError) != "This action not found" {
			t.Errorf("Expected action-not-found error for %v, got %#v", sent, resp)
		}
		for k, v := range sent {
			if !reflect.DeepEqual(resp[k], v) {
				t.Errorf("Expected field %q=%v echoed, got %v", k, v, resp[k])
			}
		}
		if code, _ := resp.Response(); code != protocol.StatusNotFound {
			t.Errorf("Expected response %d, got %v", protocol.StatusNotFound, resp[protocol.KeyResponse])
		}
	}

	alice.send(protocol.Frame{"action": "update_contacts"})
	alice.expectContacts("alice")
}

func TestReservedActionsAreSilent(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	alice.expectContacts("alice")

	for _, action := range []string{"probe", "quit", "authenticate", "leave", "check_contact", "delete_chat"} {
		alice.send(protocol.Frame{"action": action, "room": "r1", "login": "x"})
	}
	alice.expectSilence()

	env.inspect(func(d *Directory) {
		if got := d.Names(); !reflect.DeepEqual(got, []string{"alice"}) {
			t.Errorf("Reserved actions changed the directory: %v", got)
		}
	})
}

// TestDisconnectRemovesOnlyOwnEntries verifies teardown of one connection.
func TestDisconnectRemovesOnlyOwnEntries(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	carol := env.login("carol")
	alice.expectContacts("alice", "bob", "carol")
	bob.expectContacts("alice", "bob", "carol")
	carol.expectContacts("alice", "bob", "carol")

	bob.send(protocol.Frame{"action": "create_chat", "room": "r1"})
	for _, p := range []*testPeer{alice, bob, carol} {
		p.expectContacts("alice", "bob", "carol", "r1")
	}
	alice.send(protocol.Frame{"action": "join", "room": "r1"})
	alice.expectContacts("alice", "bob", "carol", "r1")

	_ = bob.conn.Close()

	alice.expectContacts("alice", "carol", "r1")
	carol.expectContacts("alice", "carol", "r1")

	env.inspect(func(d *Directory) {
		e, _ := d.Lookup("r1")
		members := e.(*Room).Members
		if len(members) != 1 || members[0].login != "alice" {
			t.Errorf("Expected r1 members [alice], got %v", members)
		}
	})

	// The name is free again.
	env.login("bob")
	alice.expectContacts("alice", "carol", "r1", "bob")
}

// TestMalformedFrameDisconnects verifies that a frame that is not a JSON
// object ends the session.
func TestMalformedFrameDisconnects(t *testing.T) {
	env := newHubEnv(t, testConfig())
	alice := env.login("alice")
	bob := env.login("bob")
	alice.expectContacts("alice", "bob")

	if err := protocol.WritePayload(bob.conn, []byte("[1,2,3]")); err != nil {
		t.Fatalf("Failed to write payload: %v", err)
	}
	bob.expectClosed()
	alice.expectContacts("alice")
}

// TestFullSendQueueDisconnects verifies that a peer that stops reading is
// torn down like a failed write, and that the sender is unaffected.
func TestFullSendQueueDisconnects(t *testing.T) {
	cfg := testConfig()
	cfg.SendQueueSize = 2
	env := newHubEnv(t, cfg)
	alice := env.login("alice")
	env.login("bob")
	alice.expectContacts("alice", "bob")

	// bob never reads: his write pump holds at most one frame and his queue
	// two more, so the third message overflows it.
	for i := 0; i < 3; i++ {
		alice.send(msgFrame("alice", "bob", "are you there?"))
	}

	// Messages sent after bob is gone come back as not found.
	awaitAliceOnly := func() {
		t.Helper()
		for {
			f := alice.recv()
			if names, ok := f.Contacts(); ok {
				if !reflect.DeepEqual(names, []string{"alice"}) {
					t.Fatalf("Expected [alice], got %v", names)
				}
				return
			}
			if code, _ := f.Response(); code != protocol.StatusNotFound {
				t.Fatalf("Unexpected frame %#v", f)
			}
		}
	}
	awaitAliceOnly()

	env.inspect(func(d *Directory) {
		if d.Has("bob") {
			t.Error("Expected bob to be removed")
		}
		if !d.Has("alice") {
			t.Error("Expected alice to stay connected")
		}
	})

	alice.send(protocol.Frame{"action": "update_contacts"})
	awaitAliceOnly()
}

func TestRateLimitDiscardsFrames(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = RateLimitConfig{Burst: 2, RefillInterval: 24 * time.Hour}
	env := newHubEnv(t, cfg)
	alice := env.login("alice")
	alice.expectContacts("alice")

	for i := 0; i < 4; i++ {
		alice.send(protocol.Frame{"action": "update_contacts"})
	}
	alice.expectContacts("alice")
	alice.expectContacts("alice")
	alice.expectSilence()
}
