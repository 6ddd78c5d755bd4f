package protocol

// Action enumerates the values of the "action" field the relay understands.
type Action int

// Recognized actions. ActionUnknown covers a missing field and any value
// outside the protocol.
const (
	ActionUnknown Action = iota
	ActionPresence
	ActionMsg
	ActionCreateChat
	ActionJoin
	ActionUpdateContacts
	ActionProbe
	ActionQuit
	ActionAuthenticate
	ActionLeave
	ActionCheckContact
	ActionDeleteChat
)

var actionNames = [...]string{
	ActionUnknown:        "",
	ActionPresence:       "presence",
	ActionMsg:            "msg",
	ActionCreateChat:     "create_chat",
	ActionJoin:           "join",
	ActionUpdateContacts: "update_contacts",
	ActionProbe:          "probe",
	ActionQuit:           "quit",
	ActionAuthenticate:   "authenticate",
	ActionLeave:          "leave",
	ActionCheckContact:   "check_contact",
	ActionDeleteChat:     "delete_chat",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		if name != "" {
			m[name] = Action(a)
		}
	}
	return m
}()

// ParseAction maps a wire value to its Action.
func ParseAction(name string) Action {
	if a, ok := actionsByName[name]; ok {
		return a
	}
	return ActionUnknown
}

// String returns the wire value of the action.
func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return ""
	}
	return actionNames[a]
}

// Reserved reports whether the action is accepted but has no server-side
// effect.
func (a Action) Reserved() bool {
	switch a {
	case ActionProbe, ActionQuit, ActionAuthenticate, ActionLeave, ActionCheckContact, ActionDeleteChat:
		return true
	}
	return false
}
