package client

import "github.com/Tyrowin/gochat-relay/internal/protocol"

// template returns a frame for action stamped with the current time and the
// session token.
func (c *Client) template(action protocol.Action) protocol.Frame {
	return protocol.Frame{
		protocol.KeyAction: action.String(),
		protocol.KeyTime:   protocol.Timestamp(c.now()),
		protocol.KeyToken:  c.token,
	}
}

// MsgFrame addresses message to an identity or a room.
func (c *Client) MsgFrame(to, message string) protocol.Frame {
	f := c.template(protocol.ActionMsg)
	f[protocol.KeyTo] = to
	f[protocol.KeyFrom] = c.login
	f[protocol.KeyMessage] = message
	return f
}

func (c *Client) UpdateContactsFrame() protocol.Frame {
	return c.template(protocol.ActionUpdateContacts)
}

func (c *Client) ProbeFrame() protocol.Frame {
	return c.template(protocol.ActionProbe)
}

func (c *Client) QuitFrame() protocol.Frame {
	return c.template(protocol.ActionQuit)
}

func (c *Client) AuthenticateFrame(login, password string) protocol.Frame {
	f := c.template(protocol.ActionAuthenticate)
	f[protocol.KeyLogin] = login
	f[protocol.KeyPassword] = password
	return f
}

func (c *Client) CheckContactFrame(login string) protocol.Frame {
	f := c.template(protocol.ActionCheckContact)
	f[protocol.KeyLogin] = login
	return f
}

func (c *Client) CreateChatFrame(room string) protocol.Frame {
	return c.roomFrame(protocol.ActionCreateChat, room)
}

func (c *Client) JoinFrame(room string) protocol.Frame {
	return c.roomFrame(protocol.ActionJoin, room)
}

func (c *Client) LeaveFrame(room string) protocol.Frame {
	return c.roomFrame(protocol.ActionLeave, room)
}

func (c *Client) DeleteChatFrame(room string) protocol.Frame {
	return c.roomFrame(protocol.ActionDeleteChat, room)
}

func (c *Client) roomFrame(action protocol.Action, room string) protocol.Frame {
	f := c.template(action)
	f[protocol.KeyRoom] = room
	return f
}

// SendMsg sends message to an identity or a room.
func (c *Client) SendMsg(to, message string) error {
	return c.Send(c.MsgFrame(to, message))
}

// CreateChat asks the server to create a room owned by this client.
func (c *Client) CreateChat(room string) error {
	return c.Send(c.CreateChatFrame(room))
}

// Join adds this client to an existing room.
func (c *Client) Join(room string) error {
	return c.Send(c.JoinFrame(room))
}

// UpdateContacts requests a fresh directory listing.
func (c *Client) UpdateContacts() error {
	return c.Send(c.UpdateContactsFrame())
}
