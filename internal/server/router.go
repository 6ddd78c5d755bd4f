package server

import (
	"github.com/Tyrowin/gochat-relay/internal/protocol"
)

// dispatch routes one frame from an admitted connection. It runs on the hub
// goroutine.
func (h *Hub) dispatch(sender *Conn, f protocol.Frame) {
	action := f.Action()
	if action.Reserved() {
		sender.logger.Debug("reserved action ignored", "action", action.String())
		return
	}

	switch action {
	case protocol.ActionMsg:
		h.routeMessage(sender, f)
	case protocol.ActionCreateChat:
		h.createRoom(sender, f.Field(protocol.KeyRoom))
	case protocol.ActionJoin:
		h.joinRoom(sender, f.Field(protocol.KeyRoom))
	case protocol.ActionUpdateContacts:
		h.sendContacts(sender)
	case protocol.ActionPresence, protocol.ActionUnknown:
		// presence is only meaningful before admission.
		sender.logger.Warn("unknown action", "action", f[protocol.KeyAction])
		h.send(sender, protocol.ActionNotFound(f))
	default:
		panic("server: unhandled action " + action.String())
	}
}

// routeMessage forwards a msg frame to an identity unchanged, or to every
// member of a room in join order with "from" rewritten to "<room>:<from>".
// Room delivery includes the sender when it is a member.
func (h *Hub) routeMessage(sender *Conn, f protocol.Frame) {
	to := f.Field(protocol.KeyTo)

	entry, ok := h.directory.Lookup(to)
	if !ok {
		sender.logger.Warn("message to unknown name", "to", to)
		h.send(sender, protocol.UserNotFound(to))
		return
	}

	switch e := entry.(type) {
	case Identity:
		h.send(e.Conn, f)

	case *Room:
		from := f.Field(protocol.KeyFrom)
		if from == "" {
			from = sender.login
		}
		out := f.Clone()
		out[protocol.KeyFrom] = to + ":" + from

		payload, err := protocol.Encode(out)
		if err != nil {
			sender.logger.Error("failed to encode room message", "room", to, "error", err)
			return
		}
		for _, member := range e.Members {
			h.enqueue(member, payload)
		}
	}
}

// createRoom registers a room with sender as its only member. A taken name is
// left untouched and nothing is sent back.
func (h *Hub) createRoom(sender *Conn, room string) {
	if !h.directory.CreateRoom(room, sender) {
		sender.logger.Debug("create_chat ignored", "room", room)
		return
	}

	sender.logger.Info("room created", "room", room)
	h.broadcastContacts()
}

// joinRoom appends sender to an existing room and sends it the listing.
// Joining twice makes sender a member twice.
func (h *Hub) joinRoom(sender *Conn, room string) {
	if !h.directory.Join(room, sender) {
		sender.logger.Debug("join ignored", "room", room)
		return
	}

	sender.logger.Info("joined room", "room", room)
	h.sendContacts(sender)
}
