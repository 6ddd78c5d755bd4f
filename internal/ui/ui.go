// Package ui is the terminal front end of the relay client: a message log,
// the contact list, a status line and an input line.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/jroimartin/gocui"
)

const (
	msgView      = "messages"
	contactsView = "contacts"
	statusView   = "status"
	inputView    = "input"
)

// ChatUI renders a session and turns input lines into frames.
type ChatUI struct {
	gui     *gocui.Gui
	session Session
	state   state
}

// New creates the terminal UI for session. Close must be called to restore
// the terminal.
func New(session Session) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &ChatUI{
		gui:     g,
		session: session,
		state:   state{status: fmt.Sprintf("Logged in as %s | /help for commands", session.Login())},
	}
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 24
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 6

	if v, err := g.SetView(msgView, 0, 0, msgWidth, msgHeight); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(contactsView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Contacts"
	}

	if v, err := g.SetView(statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
	}

	if v, err := g.SetView(inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true

		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}

	return ui.render(g)
}

// render redraws every read-only view from the state.
func (ui *ChatUI) render(g *gocui.Gui) error {
	if v, err := g.View(msgView); err == nil {
		v.Clear()
		for _, line := range ui.state.lines {
			fmt.Fprintln(v, line)
		}
	}

	if v, err := g.View(contactsView); err == nil {
		v.Clear()
		for _, name := range ui.state.contacts {
			prefix := "  "
			if name == ui.state.selected {
				prefix = "> "
			}
			fmt.Fprintf(v, "%s%s\n", prefix, name)
		}
	}

	if v, err := g.View(statusView); err == nil {
		v.Clear()
		status := ui.state.status
		if ui.state.selected != "" {
			status = fmt.Sprintf("To: %s | %s", ui.state.selected, status)
		}
		fmt.Fprint(v, status)
	}

	return nil
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	if err := ui.gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			ui.state.selectNext()
			return nil
		}); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *ChatUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	v.Clear()
	_ = v.SetCursor(0, 0)

	if input == "" {
		return nil
	}

	if err := ui.state.execute(ui.session, input); errors.Is(err, errQuit) {
		return gocui.ErrQuit
	}
	return nil
}

// Run shows the UI until the user quits, ctx ends, or inbound is closed by
// the connection going away.
func (ui *ChatUI) Run(ctx context.Context, inbound <-chan protocol.Frame) error {
	if err := ui.keybindings(); err != nil {
		return err
	}

	go ui.forward(ctx, inbound)

	if err := ui.gui.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

// forward hands inbound frames to the main loop.
func (ui *ChatUI) forward(ctx context.Context, inbound <-chan protocol.Frame) {
	for {
		select {
		case <-ctx.Done():
			ui.gui.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
			return
		case f, ok := <-inbound:
			if !ok {
				ui.gui.Update(func(*gocui.Gui) error {
					ui.state.status = "Disconnected from server | Ctrl-C to exit"
					return nil
				})
				return
			}
			ui.gui.Update(func(*gocui.Gui) error {
				ui.state.apply(f)
				return nil
			})
		}
	}
}

// Close restores the terminal.
func (ui *ChatUI) Close() {
	ui.gui.Close()
}
