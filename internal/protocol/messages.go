package protocol

import "fmt"

// Presence is the identity handshake request sent as the first frame on a
// connection.
type Presence struct {
	Time     string
	Login    string
	Password string
}

// Frame renders the request in wire form.
func (p Presence) Frame() Frame {
	return Frame{
		KeyAction:   ActionPresence.String(),
		KeyTime:     p.Time,
		KeyLogin:    p.Login,
		KeyPassword: p.Password,
	}
}

// ParsePresence extracts a presence request. It reports false unless the
// frame carries action "presence" and non-empty login and password strings.
func ParsePresence(f Frame) (Presence, bool) {
	if f.Action() != ActionPresence {
		return Presence{}, false
	}
	p := Presence{
		Time:     f.Field(KeyTime),
		Login:    f.Field(KeyLogin),
		Password: f.Field(KeyPassword),
	}
	if p.Login == "" || p.Password == "" {
		return Presence{}, false
	}
	return p, true
}

// PresenceAccepted is the handshake success response.
func PresenceAccepted(token string) Frame {
	return Frame{KeyResponse: StatusOK, KeyToken: token}
}

// PresenceRejected is the handshake failure response.
func PresenceRejected(alert string) Frame {
	return Frame{KeyResponse: StatusBadRequest, KeyAlert: alert}
}

// ContactList is the directory listing sent to identities.
func ContactList(names []string) Frame {
	if names == nil {
		names = []string{}
	}
	return Frame{KeyContacts: names}
}

// UserNotFound is the routing error returned for a message to an unknown name.
func UserNotFound(name string) Frame {
	return Frame{
		KeyResponse: StatusNotFound,
		KeyError:    fmt.Sprintf("User <%s> not found", name),
	}
}

// ActionNotFound is the response to a frame with a missing or unrecognized
// action. The request fields are merged over the error fields.
func ActionNotFound(request Frame) Frame {
	out := Frame{
		KeyResponse: StatusNotFound,
		KeyError:    "This action not found",
	}
	for k, v := range request {
		out[k] = v
	}
	return out
}
