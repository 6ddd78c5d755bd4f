package ui

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
)

// Session is the part of a relay client the front end drives.
type Session interface {
	Login() string
	SendMsg(to, message string) error
	CreateChat(room string) error
	Join(room string) error
	UpdateContacts() error
}

var errQuit = errors.New("quit")

// state is everything the views render. It is only touched from the gocui
// main loop.
type state struct {
	lines    []string
	contacts []string
	selected string
	status   string
}

// apply folds an inbound frame into the state.
func (s *state) apply(f protocol.Frame) {
	switch Classify(f) {
	case KindChat:
		s.lines = append(s.lines, FormatChat(f))
	case KindError:
		s.lines = append(s.lines, FormatError(f))
	case KindContacts:
		s.contacts, _ = f.Contacts()
		if s.selected != "" && !slices.Contains(s.contacts, s.selected) {
			s.selected = ""
		}
	}
}

// selectNext moves the selection to the next contact, wrapping around.
func (s *state) selectNext() {
	if len(s.contacts) == 0 {
		s.selected = ""
		return
	}
	i := slices.Index(s.contacts, s.selected)
	s.selected = s.contacts[(i+1)%len(s.contacts)]
}

// execute runs one input line against the session. errQuit asks the caller
// to leave the main loop.
func (s *state) execute(sess Session, line string) error {
	cmd, err := ParseInput(line)
	if err != nil {
		s.status = err.Error()
		return nil
	}

	switch cmd.Name {
	case CmdSay:
		if cmd.Arg == "" {
			return nil
		}
		if s.selected == "" {
			s.status = "no contact selected; use /to <name> or Tab"
			return nil
		}
		err = sess.SendMsg(s.selected, cmd.Arg)
	case CmdCreate:
		err = sess.CreateChat(cmd.Arg)
	case CmdJoin:
		err = sess.Join(cmd.Arg)
	case CmdUpdate:
		err = sess.UpdateContacts()
	case CmdTo:
		s.selected = cmd.Arg
		s.status = fmt.Sprintf("sending to %s", cmd.Arg)
	case CmdHelp:
		s.lines = append(s.lines, helpText)
	case CmdQuit:
		return errQuit
	}

	if err != nil {
		s.status = fmt.Sprintf("send failed: %v", err)
		return err
	}
	return nil
}
