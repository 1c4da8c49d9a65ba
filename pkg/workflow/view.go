package workflow

import (
	"context"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/export"
)

// Outcome is the result of one screen. Only the fields relevant to Action
// are set:
//
//	ScreenToken      ActionConfirm   Token
//	ScreenCaseList   ActionSwitchTab TabID
//	ScreenCaseList   ActionCloseTab  TabID
//	ScreenCaseList   ActionAssign    Selected
//	ScreenCaseList   ActionExport    Records, Path, Format (all optional)
//	ScreenQuery      ActionConfirm   Name, Kind, Query
//	ScreenPersonnel  ActionConfirm   Assignee, Remark
type Outcome struct {
	Action Action

	Token string

	TabID    string
	Selected []string

	Records []cases.Record
	Path    string
	Format  export.Format

	Name  string
	Kind  cases.Kind
	Query cases.Query

	Assignee string
	Remark   string
}

// View renders screens and collects the user's choice. Each method blocks
// until the user acts or ctx is done.
type View interface {
	Token(ctx context.Context, s *State) (Outcome, error)
	CaseList(ctx context.Context, s *State) (Outcome, error)
	Query(ctx context.Context, s *State) (Outcome, error)
	Personnel(ctx context.Context, s *State) (Outcome, error)
	Summary(ctx context.Context, s *State) (Outcome, error)
	Error(ctx context.Context, s *State) (Outcome, error)
}

// LoadObserver is optionally implemented by a View to show progress while
// a tab loads.
type LoadObserver interface {
	LoadStarted(tab *cases.Tab)
	LoadFinished(tab *cases.Tab)
}

// Loader serves case lists. *coordinator.Coordinator implements it.
type Loader interface {
	FetchWithCache(ctx context.Context, endpoint string, payload map[string]any, label string) ([]cases.Record, error)
	ClearCache(ctx context.Context) error
}

// Assigner dispatches cases. *client.Client implements it.
type Assigner interface {
	Assign(ctx context.Context, req client.AssignRequest) (*client.AssignResult, error)
}
