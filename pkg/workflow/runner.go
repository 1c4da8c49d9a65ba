package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/coordinator"
	"github.com/Sternrassler/casedesk-client/pkg/export"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
	"github.com/Sternrassler/casedesk-client/pkg/token"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownTab is returned when an outcome names a tab that is not open.
	ErrUnknownTab = errors.New("unknown tab")
	// ErrNoPending is returned when retrying without a failed assignment.
	ErrNoPending = errors.New("no assignment to retry")
)

// Deps are the collaborators of a Runner.
type Deps struct {
	View     View
	Loader   Loader
	Assigner Assigner
	Tokens   token.Store

	// ExportDir receives exports without an explicit path. Defaults to the
	// working directory.
	ExportDir string
	Now       func() time.Time
}

// Runner executes the screen loop for one interactive session.
type Runner struct {
	deps    Deps
	state   *State
	session *coordinator.Session
	logger  zerolog.Logger
}

// NewRunner creates a runner with a fresh State.
func NewRunner(deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ExportDir == "" {
		deps.ExportDir = "."
	}
	return &Runner{
		deps:    deps,
		state:   NewState(),
		session: coordinator.NewSession(),
		logger:  logging.NewLogger("workflow"),
	}
}

// State returns the session state.
func (r *Runner) State() *State {
	return r.state
}

// Abort stops the load currently in progress, if any.
func (r *Runner) Abort() bool {
	return r.session.Abort()
}

// Run drives screens until ScreenDone or until ctx is done. A View error
// ends the session and is returned.
func (r *Runner) Run(ctx context.Context) error {
	defer r.session.Close()

	r.state.Screen = r.startScreen(ctx)
	for r.state.Screen != ScreenDone {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := r.step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	r.logger.Debug().Msg("Session finished")
	return nil
}

func (r *Runner) startScreen(ctx context.Context) Screen {
	t, err := r.deps.Tokens.Load(ctx)
	if err != nil || !t.Usable() {
		return ScreenToken
	}
	return ScreenCaseList
}

func (r *Runner) step(ctx context.Context) error {
	current := r.state.Screen
	if current == ScreenCaseList {
		r.ensureLoaded(ctx)
	}

	out, err := r.render(ctx, current)
	if err != nil {
		return fmt.Errorf("%s screen: %w", current, err)
	}
	r.state.Notice = ""

	next, ok := Next(current, out.Action)
	if !ok {
		r.logger.Warn().
			Stringer("screen", current).
			Stringer("action", out.Action).
			Msg("Action not available on screen")
		r.state.Notice = fmt.Sprintf("%s is not available here", out.Action)
		return nil
	}

	if err := r.apply(ctx, current, out); err != nil {
		r.state.Screen = r.divert(ctx, current, err)
		return nil
	}

	r.logger.Debug().
		Stringer("from", current).
		Stringer("action", out.Action).
		Stringer("to", next).
		Msg("Transition")
	r.state.Screen = next
	return nil
}

func (r *Runner) render(ctx context.Context, screen Screen) (Outcome, error) {
	v := r.deps.View
	switch screen {
	case ScreenToken:
		return v.Token(ctx, r.state)
	case ScreenCaseList:
		return v.CaseList(ctx, r.state)
	case ScreenQuery:
		return v.Query(ctx, r.state)
	case ScreenPersonnel:
		return v.Personnel(ctx, r.state)
	case ScreenSummary:
		return v.Summary(ctx, r.state)
	case ScreenError:
		return v.Error(ctx, r.state)
	}
	return Outcome{}, fmt.Errorf("no view for screen %s", screen)
}

// divert picks the screen after a failed effect.
func (r *Runner) divert(ctx context.Context, current Screen, err error) Screen {
	switch {
	case errors.Is(err, cases.ErrEmptySelection),
		errors.Is(err, cases.ErrEmptyInput),
		errors.Is(err, cases.ErrStaticTab),
		errors.Is(err, ErrUnknownTab),
		errors.Is(err, ErrNoPending):
		r.state.Notice = err.Error()
		return current

	case client.IsAborted(err):
		r.state.Notice = "Operation stopped"
		if current == ScreenError {
			return ScreenError
		}
		return ScreenCaseList

	case client.IsUnauthorized(err), errors.Is(err, token.ErrNoToken):
		if ierr := token.MarkInvalid(ctx, r.deps.Tokens); ierr != nil {
			r.logger.Warn().Err(ierr).Msg("Failed to mark token invalid")
		}
		r.state.Notice = "Your session token was rejected, please enter a new one"
		return ScreenToken
	}

	r.logger.Error().Err(err).Stringer("screen", current).Msg("Operation failed")
	r.state.LastErr = err
	r.state.Origin = current
	return ScreenError
}

func (r *Runner) apply(ctx context.Context, screen Screen, out Outcome) error {
	switch screen {
	case ScreenToken:
		if out.Action == ActionConfirm {
			return r.saveToken(ctx, out.Token)
		}

	case ScreenCaseList:
		return r.applyCaseList(ctx, out)

	case ScreenQuery:
		if out.Action == ActionConfirm {
			r.openQuery(out)
		}

	case ScreenPersonnel:
		if out.Action == ActionConfirm {
			req := client.AssignRequest{
				ApplicationNos: r.state.Selection.IDs(),
				Assignee:       out.Assignee,
				Kind:           r.state.Active().Kind,
				Remark:         out.Remark,
			}
			r.state.Pending = &req
			return r.assign(ctx)
		}

	case ScreenSummary:
		r.finishAssignment(ctx)

	case ScreenError:
		switch out.Action {
		case ActionRetry:
			if r.state.Pending == nil {
				return ErrNoPending
			}
			return r.assign(ctx)
		case ActionCancel, ActionQuit:
			r.state.Pending = nil
			r.state.LastErr = nil
		}
	}
	return nil
}

func (r *Runner) applyCaseList(ctx context.Context, out Outcome) error {
	r.state.Stopped = false

	switch out.Action {
	case ActionSwitchTab:
		if _, ok := r.state.Tabs.Get(out.TabID); !ok {
			return fmt.Errorf("%w %q", ErrUnknownTab, out.TabID)
		}
		if r.state.ActiveTab != out.TabID {
			r.state.Selection.Clear()
		}
		r.state.ActiveTab = out.TabID

	case ActionCloseTab:
		id := out.TabID
		if id == "" {
			id = r.state.ActiveTab
		}
		if err := r.state.Tabs.Close(id); err != nil {
			return err
		}
		if id == r.state.ActiveTab {
			r.state.ActiveTab = cases.TabPersonal
			r.state.Selection.Clear()
		}

	case ActionRetry:
		// Data already shown stays visible until the reload lands.
		tab := r.state.Active()
		tab.Err = nil
		tab.Status = cases.StatusIdle

	case ActionRefresh:
		if err := r.deps.Loader.ClearCache(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Cache clear incomplete")
		}
		r.state.Tabs.ResetAll()
		r.state.ActiveTab = cases.TabPersonal
		r.state.Selection.Clear()
		r.state.Notice = "Cache cleared"

	case ActionExport:
		if err := r.export(out); err != nil {
			r.logger.Warn().Err(err).Msg("Export failed")
			r.state.Notice = err.Error()
		}

	case ActionAssign:
		r.state.Selection.Clear()
		r.state.Selection.Add(out.Selected...)
		return r.state.Selection.Validate()
	}
	return nil
}

func (r *Runner) saveToken(ctx context.Context, value string) error {
	t := token.New(value)
	if t.Value == "" {
		return fmt.Errorf("token: %w", cases.ErrEmptyInput)
	}
	if err := r.deps.Tokens.Save(ctx, t); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	// Tabs that failed with the previous token are loaded again.
	for _, tab := range r.state.Tabs.List() {
		if tab.Status == cases.StatusError {
			tab.Reset()
		}
	}
	r.state.Notice = "Token saved"
	return nil
}

func (r *Runner) openQuery(out Outcome) {
	kind := out.Kind
	if kind == "" {
		kind = r.state.Active().Kind
	}
	name := out.Name
	if name == "" {
		name = fmt.Sprintf("Query %d", len(r.state.Tabs.List())-1)
	}
	tab := r.state.Tabs.Open(name, kind, out.Query)
	r.state.ActiveTab = tab.ID
	r.state.Selection.Clear()
}

// ensureLoaded fetches the active tab unless it already has data, failed,
// or was stopped by the user.
func (r *Runner) ensureLoaded(ctx context.Context) {
	tab := r.state.Active()
	if tab.Status != cases.StatusIdle || r.state.Stopped {
		return
	}

	obs, _ := r.deps.View.(LoadObserver)
	tab.Begin()
	if obs != nil {
		obs.LoadStarted(tab)
	}

	loadCtx, release := r.session.Begin(ctx)
	records, err := r.deps.Loader.FetchWithCache(loadCtx, client.EndpointFor(tab.Kind), tab.Query.Clone(), tab.Name)
	release()

	switch {
	case err == nil:
		tab.Succeed(cases.SortDefault(records))
	case client.IsAborted(err):
		tab.Reset()
		r.state.Stopped = true
		r.state.Notice = "Loading stopped"
		r.logger.Info().Str("tab", tab.Name).Msg("Load aborted")
	default:
		if client.IsUnauthorized(err) {
			if ierr := token.MarkInvalid(ctx, r.deps.Tokens); ierr != nil {
				r.logger.Warn().Err(ierr).Msg("Failed to mark token invalid")
			}
		}
		tab.Fail(err)
		r.logger.Error().Err(err).Str("tab", tab.Name).Msg("Load failed")
	}

	if obs != nil {
		obs.LoadFinished(tab)
	}
}

func (r *Runner) assign(ctx context.Context) error {
	opCtx, release := r.session.Begin(ctx)
	defer release()

	result, err := r.deps.Assigner.Assign(opCtx, *r.state.Pending)
	if err != nil {
		return err
	}
	r.state.Result = result
	r.state.LastErr = nil
	return nil
}

// finishAssignment leaves the summary. Assignees changed on the server, so
// cached listings are dropped.
func (r *Runner) finishAssignment(ctx context.Context) {
	r.state.Selection.Clear()
	r.state.Pending = nil
	r.state.Result = nil
	if err := r.deps.Loader.ClearCache(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Cache clear incomplete")
	}
	for _, tab := range r.state.Tabs.List() {
		tab.Data = nil
		tab.Status = cases.StatusIdle
		tab.Err = nil
	}
}

func (r *Runner) export(out Outcome) error {
	tab := r.state.Active()
	records := out.Records
	if records == nil {
		records = tab.Data
	}
	if len(records) == 0 {
		return fmt.Errorf("export: %w", cases.ErrEmptySelection)
	}

	format := out.Format
	if format == "" {
		format = export.FormatCSV
	}
	path := out.Path
	if path == "" {
		name := export.FileName(tab.Name, r.deps.Now()) + format.Ext()
		path = filepath.Join(r.deps.ExportDir, name)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	werr := export.Write(f, format, tab.Name, cases.ColumnsFor(tab.Kind), records)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("export %s: %w", path, werr)
	}

	r.logger.Info().Str("path", path).Int("records", len(records)).Msg("Exported cases")
	r.state.Notice = fmt.Sprintf("Exported %d cases to %s", len(records), path)
	return nil
}
