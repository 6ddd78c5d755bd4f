// Package protocol defines the JSON frames exchanged between relay clients and
// the server, the set of recognized actions, and the length-prefixed wire
// codec used on TCP connections.
package protocol

import (
	"encoding/json"
	"time"
)

// Field names used by the relay protocol.
const (
	KeyAction   = "action"
	KeyTime     = "time"
	KeyToken    = "token"
	KeyLogin    = "login"
	KeyPassword = "password"
	KeyTo       = "to"
	KeyFrom     = "from"
	KeyMessage  = "message"
	KeyRoom     = "room"
	KeyResponse = "response"
	KeyAlert    = "alert"
	KeyError    = "error"
	KeyContacts = "contacts"
)

// Response codes carried in the "response" field.
const (
	StatusOK         = 200
	StatusBadRequest = 400
	StatusNotFound   = 404
)

// TimeLayout is the format of the "time" field stamped on client frames.
const TimeLayout = "2006-01-02 15:04:05"

// Frame is one discrete protocol message: a JSON object with string keys.
type Frame map[string]any

// Field returns the value stored under key when it is a string, or "" otherwise.
func (f Frame) Field(key string) string {
	if s, ok := f[key].(string); ok {
		return s
	}
	return ""
}

// Has reports whether key is present in the frame.
func (f Frame) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Action returns the recognized action carried by the frame, or ActionUnknown
// when the field is missing, not a string, or not part of the protocol.
func (f Frame) Action() Action {
	return ParseAction(f.Field(KeyAction))
}

// Response returns the numeric "response" code. Decoded frames carry JSON
// numbers as json.Number, frames built in-process carry ints.
func (f Frame) Response() (int, bool) {
	switch v := f[KeyResponse].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

// Contacts returns the directory names carried by a listing frame.
func (f Frame) Contacts() ([]string, bool) {
	switch v := f[KeyContacts].(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return names, true
	default:
		return nil, false
	}
}

// Clone returns a shallow copy of the frame.
func (f Frame) Clone() Frame {
	out := make(Frame, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Timestamp formats t the way clients stamp the "time" field.
func Timestamp(t time.Time) string {
	return t.Format(TimeLayout)
}
