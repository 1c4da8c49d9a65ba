package workflow

import (
	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
)

// State is the session state passed to every screen.
type State struct {
	Screen Screen

	Tabs      *cases.TabSet
	ActiveTab string
	Selection *cases.Selection

	// Pending is the assignment being confirmed or retried.
	Pending *client.AssignRequest
	Result  *client.AssignResult

	// LastErr is shown on ScreenError; Origin is the screen that failed.
	LastErr error
	Origin  Screen

	// Notice is a one-line message for the next screen, cleared after it
	// has been shown.
	Notice string

	// Stopped is set when the user aborted the active tab's load. The tab
	// is not reloaded until the user asks for it.
	Stopped bool
}

// NewState returns the state of a fresh session with the static tabs open.
func NewState() *State {
	return &State{
		Screen:    ScreenCaseList,
		Tabs:      cases.NewTabSet(),
		ActiveTab: cases.TabPersonal,
		Selection: cases.NewSelection(),
	}
}

// Active returns the active tab, falling back to the personal tab.
func (s *State) Active() *cases.Tab {
	if t, ok := s.Tabs.Get(s.ActiveTab); ok {
		return t
	}
	s.ActiveTab = cases.TabPersonal
	t, _ := s.Tabs.Get(cases.TabPersonal)
	return t
}
