package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
)

// Kind classifies an inbound frame for display.
type Kind int

const (
	KindOther Kind = iota
	KindChat
	KindError
	KindContacts
)

// Classify decides how a frame is shown. Frames carrying an action are chat
// lines, then responses, then listings; anything else is ignored.
func Classify(f protocol.Frame) Kind {
	switch {
	case f.Has(protocol.KeyAction):
		return KindChat
	case f.Has(protocol.KeyResponse):
		return KindError
	case f.Has(protocol.KeyContacts):
		return KindContacts
	default:
		return KindOther
	}
}

// FormatChat renders a delivered message as "<time>: <from>><message>".
func FormatChat(f protocol.Frame) string {
	return fmt.Sprintf("%s: %s>%s",
		f.Field(protocol.KeyTime), f.Field(protocol.KeyFrom), f.Field(protocol.KeyMessage))
}

// FormatError renders a response as "Error <code>: <error>". Handshake
// rejections carry an alert instead of an error.
func FormatError(f protocol.Frame) string {
	code, _ := f.Response()
	text := f.Field(protocol.KeyError)
	if text == "" {
		text = f.Field(protocol.KeyAlert)
	}
	return fmt.Sprintf("Error %d: %s", code, text)
}

// Command is one parsed input line.
type Command struct {
	Name string
	Arg  string
}

// Command names. CmdSay is plain text for the selected contact.
const (
	CmdSay    = "say"
	CmdCreate = "create"
	CmdJoin   = "join"
	CmdUpdate = "update"
	CmdTo     = "to"
	CmdQuit   = "quit"
	CmdHelp   = "help"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errMissingArg     = errors.New("missing argument")
)

// ParseInput turns an input line into a command. Lines not starting with a
// slash are messages.
func ParseInput(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Name: CmdSay, Arg: line}, nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case CmdCreate, CmdJoin, CmdTo:
		if arg == "" {
			return Command{}, fmt.Errorf("/%s: %w", name, errMissingArg)
		}
		return Command{Name: name, Arg: arg}, nil
	case CmdUpdate, CmdQuit, CmdHelp:
		return Command{Name: name}, nil
	default:
		return Command{}, fmt.Errorf("/%s: %w", name, errUnknownCommand)
	}
}

const helpText = `Commands:
/create <room>  - Create a chat room
/join <room>    - Join a chat room
/update         - Refresh the contact list
/to <name>      - Select who plain text is sent to
/help           - Show this help
/quit           - Leave chat

Keybindings:
Ctrl-C          - Quit
Tab             - Select next contact
Enter           - Send`
