// Package terminal implements the interactive workflow screens as a
// line-oriented terminal UI.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/export"
	"github.com/Sternrassler/casedesk-client/pkg/workflow"
)

// DefaultRowsPerPage is the number of table rows shown at once.
const DefaultRowsPerPage = 20

// ErrInputClosed is returned when the input reaches EOF.
var ErrInputClosed = errors.New("input closed")

// listView is the per-tab table state kept by the terminal only.
type listView struct {
	filters []cases.Filter
	sortKey string
	desc    bool
	page    int
}

// View renders workflow screens to out and reads commands from in.
type View struct {
	out    io.Writer
	st     styles
	rows   int
	lines  <-chan string
	outMu  sync.Mutex
	tables map[string]*listView
}

// New starts reading lines from in.
func New(in io.Reader, out io.Writer) *View {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return &View{
		out:    out,
		st:     newStyles(out),
		rows:   DefaultRowsPerPage,
		lines:  lines,
		tables: make(map[string]*listView),
	}
}

func (v *View) printf(format string, args ...any) {
	v.outMu.Lock()
	defer v.outMu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

func (v *View) println(s string) {
	v.printf("%s\n", s)
}

func (v *View) prompt(ctx context.Context, label string) (string, error) {
	v.printf("%s ", v.st.faint.Render(label+">"))
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-v.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return strings.TrimSpace(line), nil
	}
}

func (v *View) showNotice(s *workflow.State) {
	if s.Notice != "" {
		v.println(v.st.notice.Render(s.Notice))
	}
}

// Progress prints fetch progress. It is safe to call from fetch goroutines.
func (v *View) Progress(fetched, total int) {
	v.printf("  %s\n", v.st.faint.Render(fmt.Sprintf("page %d/%d", fetched, total)))
}

// LoadStarted implements workflow.LoadObserver.
func (v *View) LoadStarted(tab *cases.Tab) {
	v.println(v.st.faint.Render(fmt.Sprintf("Loading %s (Ctrl-C to stop)", tab.Name)))
}

// LoadFinished implements workflow.LoadObserver.
func (v *View) LoadFinished(tab *cases.Tab) {
	if tab.Status == cases.StatusSuccess {
		v.println(v.st.faint.Render(fmt.Sprintf("Loaded %d cases", len(tab.Data))))
	}
}

// Token asks for a new SSO token.
func (v *View) Token(ctx context.Context, s *workflow.State) (workflow.Outcome, error) {
	v.println(v.st.title.Render("SSO token"))
	v.showNotice(s)
	v.println(v.st.faint.Render("Paste the SSO-TOKEN value, or :q to quit."))
	line, err := v.prompt(ctx, "token")
	if err != nil {
		return workflow.Outcome{}, err
	}
	if line == ":q" {
		return workflow.Outcome{Action: workflow.ActionCancel}, nil
	}
	return workflow.Outcome{Action: workflow.ActionConfirm, Token: line}, nil
}

func (v *View) table(id string) *listView {
	lv, ok := v.tables[id]
	if !ok {
		lv = &listView{}
		v.tables[id] = lv
	}
	return lv
}

// visible returns the filtered and sorted records of a tab.
func (v *View) visible(tab *cases.Tab) []cases.Record {
	lv := v.table(tab.ID)
	records := cases.Apply(tab.Data, lv.filters...)
	if lv.sortKey != "" {
		records = cases.Sort(records, cases.ColumnsFor(tab.Kind), lv.sortKey, lv.desc)
	}
	return records
}

func (v *View) drawList(s *workflow.State) {
	tab := s.Active()
	v.println("")
	v.println(v.st.renderTabs(s.Tabs.List(), s.ActiveTab))
	v.showNotice(s)

	switch tab.Status {
	case cases.StatusError:
		v.println(v.st.err.Render("Failed to load: " + tab.Err.Error()))
		v.println(v.st.faint.Render("retry to load again, token to enter a new token"))
		return
	case cases.StatusIdle:
		v.println(v.st.faint.Render("Not loaded. retry to load."))
		return
	}

	records := v.visible(tab)
	lv := v.table(tab.ID)
	pages := max(1, (len(records)+v.rows-1)/v.rows)
	lv.page = min(max(lv.page, 0), pages-1)
	from := lv.page * v.rows
	to := min(from+v.rows, len(records))

	v.printf("%s", v.st.renderTable(cases.Visible(cases.ColumnsFor(tab.Kind)), records[from:to], s.Selection))
	v.println(v.st.faint.Render(fmt.Sprintf("%d of %d cases, page %d/%d, %d selected",
		len(records), len(tab.Data), lv.page+1, pages, s.Selection.Len())))
}

const listHelp = `commands:
  tab N | close [N] | query | retry | refresh | token
  filter key=value | unfilter | sort key [desc] | next | prev
  select ID... | select all | select none
  assign | export [csv|xlsx] [path] | quit`

// CaseList shows the active tab and handles table commands until the user
// picks an action that leaves the list.
func (v *View) CaseList(ctx context.Context, s *workflow.State) (workflow.Outcome, error) {
	v.drawList(s)
	for {
		line, err := v.prompt(ctx, "cases")
		if err != nil {
			return workflow.Outcome{}, err
		}
		out, done, msg := v.listCommand(s, line)
		if done {
			return out, nil
		}
		if msg != "" {
			v.println(v.st.notice.Render(msg))
		} else {
			s.Notice = ""
			v.drawList(s)
		}
	}
}

func (v *View) tabID(s *workflow.State, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	tabs := s.Tabs.List()
	if err != nil || n < 1 || n > len(tabs) {
		return "", fmt.Errorf("no tab %q", arg)
	}
	return tabs[n-1].ID, nil
}

// listCommand interprets one line. It returns done when the line maps to a
// workflow action, or a message to print otherwise.
func (v *View) listCommand(s *workflow.State, line string) (workflow.Outcome, bool, string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return workflow.Outcome{}, false, listHelp
	}
	tab := s.Active()
	lv := v.table(tab.ID)
	args := fields[1:]
	act := func(a workflow.Action) (workflow.Outcome, bool, string) {
		return workflow.Outcome{Action: a}, true, ""
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "q", "exit":
		return act(workflow.ActionQuit)
	case "retry", "reload":
		return act(workflow.ActionRetry)
	case "refresh":
		return act(workflow.ActionRefresh)
	case "token":
		return act(workflow.ActionReenterToken)
	case "query":
		return act(workflow.ActionQuery)

	case "tab":
		if len(args) != 1 {
			return workflow.Outcome{}, false, "usage: tab N"
		}
		id, err := v.tabID(s, args[0])
		if err != nil {
			return workflow.Outcome{}, false, err.Error()
		}
		return workflow.Outcome{Action: workflow.ActionSwitchTab, TabID: id}, true, ""

	case "close":
		out := workflow.Outcome{Action: workflow.ActionCloseTab}
		if len(args) > 0 {
			id, err := v.tabID(s, args[0])
			if err != nil {
				return workflow.Outcome{}, false, err.Error()
			}
			out.TabID = id
		}
		return out, true, ""

	case "filter":
		if len(args) == 0 {
			return workflow.Outcome{}, false, "usage: filter key=value"
		}
		f, err := cases.ParseFilter(cases.ColumnsFor(tab.Kind), strings.Join(args, " "))
		if err != nil {
			return workflow.Outcome{}, false, err.Error()
		}
		lv.filters = append(lv.filters, f)
		lv.page = 0
		return workflow.Outcome{}, false, ""

	case "unfilter":
		lv.filters = nil
		lv.page = 0
		return workflow.Outcome{}, false, ""

	case "sort":
		if len(args) == 0 {
			return workflow.Outcome{}, false, "usage: sort key [desc]"
		}
		if _, ok := cases.FindColumn(cases.ColumnsFor(tab.Kind), args[0]); !ok {
			return workflow.Outcome{}, false, fmt.Sprintf("unknown column %q", args[0])
		}
		lv.sortKey = args[0]
		lv.desc = len(args) > 1 && strings.EqualFold(args[1], "desc")
		return workflow.Outcome{}, false, ""

	case "next":
		lv.page++
		return workflow.Outcome{}, false, ""
	case "prev":
		lv.page--
		return workflow.Outcome{}, false, ""

	case "select":
		switch {
		case len(args) == 1 && args[0] == "all":
			s.Selection.SelectAll(v.visible(tab))
		case len(args) == 1 && args[0] == "none":
			s.Selection.Clear()
		default:
			for _, id := range args {
				s.Selection.Toggle(id)
			}
		}
		return workflow.Outcome{}, false, ""

	case "assign":
		return workflow.Outcome{Action: workflow.ActionAssign, Selected: s.Selection.IDs()}, true, ""

	case "export":
		out := workflow.Outcome{Action: workflow.ActionExport, Format: export.FormatCSV, Records: v.visible(tab)}
		for _, a := range args {
			if f, err := export.ParseFormat(a); err == nil {
				out.Format = f
			} else {
				out.Path = a
			}
		}
		return out, true, ""
	}

	return workflow.Outcome{}, false, listHelp
}

// Query builds a dynamic query tab from key=value lines.
func (v *View) Query(ctx context.Context, s *workflow.State) (workflow.Outcome, error) {
	v.println(v.st.title.Render("New query"))
	v.showNotice(s)

	name, err := v.prompt(ctx, "name (:b to go back)")
	if err != nil {
		return workflow.Outcome{}, err
	}
	if name == ":b" {
		return workflow.Outcome{Action: workflow.ActionBack}, nil
	}

	kind := s.Active().Kind
	for {
		line, err := v.prompt(ctx, "kind [personal|batch]")
		if err != nil {
			return workflow.Outcome{}, err
		}
		if line == "" {
			break
		}
		k, perr := cases.ParseKind(line)
		if perr == nil {
			kind = k
			break
		}
		v.println(v.st.err.Render(perr.Error()))
	}

	v.println(v.st.faint.Render("Enter key=value conditions, empty line to run."))
	query := cases.Query{}
	for {
		line, err := v.prompt(ctx, "where")
		if err != nil {
			return workflow.Outcome{}, err
		}
		if line == "" {
			break
		}
		if line == ":b" {
			return workflow.Outcome{Action: workflow.ActionBack}, nil
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			v.println(v.st.err.Render("expected key=value"))
			continue
		}
		query[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return workflow.Outcome{Action: workflow.ActionConfirm, Name: name, Kind: kind, Query: query}, nil
}

// Personnel asks for the handler receiving the selected cases.
func (v *View) Personnel(ctx context.Context, s *workflow.State) (workflow.Outcome, error) {
	v.println(v.st.title.Render(fmt.Sprintf("Assign %d cases", s.Selection.Len())))
	v.showNotice(s)

	assignee, err := v.prompt(ctx, "handler (empty to go back)")
	if err != nil {
		return workflow.Outcome{}, err
	}
	if assignee == "" {
		return workflow.Outcome{Action: workflow.ActionBack}, nil
	}
	remark, err := v.prompt(ctx, "remark (optional)")
	if err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Outcome{Action: workflow.ActionConfirm, Assignee: assignee, Remark: remark}, nil
}

// Summary reports the assignment result.
func (v *View) Summary(ctx context.Context, s *workflow.State) (workflow.Outcome, error) {
	v.println(v.st.title.Render("Assignment result"))
	if r := s.Result; r != nil {
		v.println(v.st.ok.Render(fmt.Sprintf("%d assigned", len(r.Succeeded))))
		if len(r.Failed) > 0 {
			v.println(v.st.err.Render(fmt.Sprintf("%d rejected:", len(r.Failed))))
			for _, f := range r.Failed {
				v.println(v.st.err.Render(fmt.Sprintf("  %s  %s", f.ApplicationNo, f.Reason)))
			}
		}
	}
	line, err := v.prompt(ctx, "enter to continue")
	if err != nil {
		return workflow.Outcome{}, err
	}
	if line == "q" || line == "quit" {
		return workflow.Outcome{Action: workflow.ActionQuit}, nil
	}
	return workflow.Outcome{Action: workflow.ActionConfirm}, nil
}

// Error shows a failed assignment and offers retry.
func (v *View) Error(ctx context.Context, s *workflow.State) (workflow.Outcome, error) {
	v.println(v.st.err.Render("Assignment failed"))
	if s.LastErr != nil {
		v.println(v.st.err.Render(s.LastErr.Error()))
	}
	v.showNotice(s)

	for {
		line, err := v.prompt(ctx, "[r]etry [b]ack [t]oken [c]ancel [q]uit")
		if err != nil {
			return workflow.Outcome{}, err
		}
		switch strings.ToLower(line) {
		case "r", "retry":
			return workflow.Outcome{Action: workflow.ActionRetry}, nil
		case "b", "back":
			return workflow.Outcome{Action: workflow.ActionBack}, nil
		case "t", "token":
			return workflow.Outcome{Action: workflow.ActionReenterToken}, nil
		case "c", "cancel":
			return workflow.Outcome{Action: workflow.ActionCancel}, nil
		case "q", "quit":
			return workflow.Outcome{Action: workflow.ActionQuit}, nil
		}
	}
}

var (
	_ workflow.View         = (*View)(nil)
	_ workflow.LoadObserver = (*View)(nil)
)
