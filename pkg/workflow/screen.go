// Package workflow drives the interactive case desk as a state machine.
//
// Each Screen is rendered by a View, which returns an Outcome naming the
// Action the user took. The Runner applies the action's effect and moves to
// the screen given by Transitions.
package workflow

import "fmt"

// Screen is one state of the interactive session.
type Screen int

const (
	ScreenToken Screen = iota
	ScreenCaseList
	ScreenQuery
	ScreenPersonnel
	ScreenSummary
	ScreenError
	ScreenDone
)

func (s Screen) String() string {
	switch s {
	case ScreenToken:
		return "token"
	case ScreenCaseList:
		return "case-list"
	case ScreenQuery:
		return "query"
	case ScreenPersonnel:
		return "personnel"
	case ScreenSummary:
		return "summary"
	case ScreenError:
		return "error"
	case ScreenDone:
		return "done"
	default:
		return fmt.Sprintf("screen(%d)", int(s))
	}
}

// Action is what the user did on a screen.
type Action int

const (
	ActionConfirm Action = iota + 1
	ActionCancel
	ActionRetry
	ActionBack
	ActionSwitchTab
	ActionReenterToken
	ActionAssign
	ActionExport
	ActionQuery
	ActionQuit
	// ActionRefresh clears the cache and reloads every tab.
	ActionRefresh
	ActionCloseTab
)

var actionNames = map[Action]string{
	ActionConfirm:      "confirm",
	ActionCancel:       "cancel",
	ActionRetry:        "retry",
	ActionBack:         "back",
	ActionSwitchTab:    "switch-tab",
	ActionReenterToken: "reenter-token",
	ActionAssign:       "assign",
	ActionExport:       "export",
	ActionQuery:        "query",
	ActionQuit:         "quit",
	ActionRefresh:      "refresh",
	ActionCloseTab:     "close-tab",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Transitions lists the regular successor of every screen per action.
// Effects that fail divert from this table: validation errors keep the
// current screen, rejected tokens lead to ScreenToken and other failures to
// ScreenError.
var Transitions = map[Screen]map[Action]Screen{
	ScreenToken: {
		ActionConfirm: ScreenCaseList,
		ActionCancel:  ScreenDone,
		ActionQuit:    ScreenDone,
	},
	ScreenCaseList: {
		ActionSwitchTab:    ScreenCaseList,
		ActionRetry:        ScreenCaseList,
		ActionRefresh:      ScreenCaseList,
		ActionCloseTab:     ScreenCaseList,
		ActionExport:       ScreenCaseList,
		ActionQuery:        ScreenQuery,
		ActionAssign:       ScreenPersonnel,
		ActionReenterToken: ScreenToken,
		ActionCancel:       ScreenDone,
		ActionQuit:         ScreenDone,
	},
	ScreenQuery: {
		ActionConfirm: ScreenCaseList,
		ActionCancel:  ScreenCaseList,
		ActionBack:    ScreenCaseList,
		ActionQuit:    ScreenDone,
	},
	ScreenPersonnel: {
		ActionConfirm: ScreenSummary,
		ActionCancel:  ScreenCaseList,
		ActionBack:    ScreenCaseList,
		ActionQuit:    ScreenDone,
	},
	ScreenSummary: {
		ActionConfirm: ScreenCaseList,
		ActionBack:    ScreenCaseList,
		ActionQuit:    ScreenDone,
	},
	ScreenError: {
		ActionRetry:        ScreenSummary,
		ActionBack:         ScreenPersonnel,
		ActionReenterToken: ScreenToken,
		ActionCancel:       ScreenCaseList,
		ActionQuit:         ScreenDone,
	},
}

// Next returns the successor of from for action.
func Next(from Screen, action Action) (Screen, bool) {
	next, ok := Transitions[from][action]
	return next, ok
}
