package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
	"github.com/HaPhanBaoMinh/upmon/internal/poller"
	"github.com/HaPhanBaoMinh/upmon/internal/ui/styles"
	"github.com/HaPhanBaoMinh/upmon/internal/ui/widgets"
)

// Controller is the synchronization side of the dashboard, implemented by
// *poller.Scheduler.
type Controller interface {
	Current() *poller.State
	Updates() <-chan *poller.State
	Refresh()
	Create(ctx context.Context, d domain.ServiceDraft) error
	Delete(ctx context.Context, id string) error
	Check(ctx context.Context, id string) error
	CheckAll(ctx context.Context) error
	Stop()
}

type viewKind int

const (
	listView viewKind = iota
	detailView
)

// View is either the service list or the detail page of one service.
type View struct {
	kind viewKind
	id   string
}

func ListView() View { return View{kind: listView} }

func DetailView(id string) View { return View{kind: detailView, id: id} }

func (v View) Detail() (string, bool) { return v.id, v.kind == detailView }

type stateMsg struct{ st *poller.State }
type detachedMsg struct{}
type clockMsg time.Time
type cmdDoneMsg struct {
	op  string
	err error
}

const clockEvery = time.Second

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	ctrl   Controller
	now    func() time.Time

	state *poller.State
	view  View

	table table.Model
	order []string                      // service ids in table order
	rows  map[*domain.Service]table.Row // per-service cells, reused while the pointer is unchanged
	rowW  int                           // table width the cached rows were built for

	form          *form
	confirmDelete string
	flash         string
	flashErr      bool

	width, height int
}

func New(ctrl Controller) Model {
	ctx, cancel := context.WithCancel(context.Background())

	t := table.New()
	t.SetHeight(12)
	t.SetWidth(100)
	t.Focus()

	m := Model{
		ctx:    ctx,
		cancel: cancel,
		ctrl:   ctrl,
		now:    time.Now,
		state:  ctrl.Current(),
		view:   ListView(),
		table:  t,
		rows:   map[*domain.Service]table.Row{},
	}
	m.rebuildTable()

	return m
}

// WithClock overrides the time source used for relative timestamps.
func (m Model) WithClock(now func() time.Time) Model {
	m.now = now
	return m
}

// Screen reports what is currently shown.
func (m Model) Screen() View { return m.view }

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl.Updates()),
		tickClock(),
	)
}

// waitForState delivers the next published state, or detachedMsg once the
// scheduler has stopped.
func waitForState(ch <-chan *poller.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return detachedMsg{}
		}
		return stateMsg{st}
	}
}

func tickClock() tea.Cmd {
	return tea.Tick(clockEvery, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return cmdDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

		// header, footer and padding
		headerH := lipgloss.Height(styles.Header.Render("x"))
		footerH := lipgloss.Height(styles.Footer.Render("x"))
		base := m.height - headerH - footerH - 4
		if base < 5 {
			base = 5
		}

		m.table.SetHeight(base)
		m.table.SetWidth(m.width - 4)
		m.rebuildTable()
		return m, nil

	case stateMsg:
		m.state = msg.st
		if id, ok := m.view.Detail(); ok && !m.state.Loading {
			if _, found := m.state.Service(id); !found {
				m.view = ListView()
			}
		}
		m.rebuildTable()
		return m, waitForState(m.ctrl.Updates())

	case detachedMsg:
		return m, nil

	case clockMsg:
		m.rebuildTable()
		return m, tickClock()

	case cmdDoneMsg:
		if msg.err != nil {
			m.flash, m.flashErr = msg.err.Error(), true
			if m.form != nil && msg.op == "create" {
				m.form.err = msg.err
			}
			return m, nil
		}
		m.flash, m.flashErr = msg.op+" ok", false
		if msg.op == "create" {
			m.form = nil
		}
		return m, nil

	case tea.KeyMsg:
		if m.form != nil {
			return m.updateForm(msg)
		}
		if m.confirmDelete != "" {
			id := m.confirmDelete
			m.confirmDelete = ""
			if msg.String() == "y" {
				if _, ok := m.view.Detail(); ok {
					m.view = ListView()
				}
				return m, m.run("delete", func(ctx context.Context) error { return m.ctrl.Delete(ctx, id) })
			}
			m.flash, m.flashErr = "", false
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m.quit()

		case "esc":
			if _, ok := m.view.Detail(); ok {
				m.view = ListView()
				return m, nil
			}
			return m.quit()

		case "enter":
			if id, ok := m.selectedID(); ok {
				m.view = DetailView(id)
			}
			return m, nil

		case "r":
			m.ctrl.Refresh()
			return m, nil

		case "a":
			m.form = newForm()
			m.flash = ""
			return m, textinput.Blink

		case "d":
			if id, ok := m.targetID(); ok {
				m.confirmDelete = id
				m.flash, m.flashErr = fmt.Sprintf("delete %s? [y] confirm, any other key cancels", m.serviceName(id)), true
			}
			return m, nil

		case "c":
			if id, ok := m.targetID(); ok {
				return m, m.run("check", func(ctx context.Context) error { return m.ctrl.Check(ctx, id) })
			}
			return m, nil

		case "C":
			return m, m.run("check all", m.ctrl.CheckAll)

		case "up", "k", "down", "j", "pgup", "pgdown", "home", "end":
			if _, ok := m.view.Detail(); ok {
				return m, nil
			}
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form = nil
		return m, nil

	case "tab", "down":
		return m, m.form.move(1)

	case "shift+tab", "up":
		return m, m.form.move(-1)

	case "enter":
		name, url, tags := m.form.values()
		draft, err := newDraft(name, url, tags, m.now())
		if err != nil {
			m.form.err = err
			return m, nil
		}
		m.form.err = nil
		return m, m.run("create", func(ctx context.Context) error { return m.ctrl.Create(ctx, draft) })
	}

	return m, m.form.update(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.ctrl.Stop()
	m.cancel()
	return m, tea.Quit
}

// selectedID is the service under the table cursor.
func (m Model) selectedID() (string, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.order) {
		return "", false
	}
	return m.order[i], true
}

// targetID is the service a command applies to: the open detail page, else
// the selected row.
func (m Model) targetID() (string, bool) {
	if id, ok := m.view.Detail(); ok {
		return id, true
	}
	return m.selectedID()
}

func (m Model) serviceName(id string) string {
	if svc, ok := m.state.Service(id); ok {
		return svc.Name
	}
	return id
}

const checkedCol = 4

// rebuildTable refreshes the rows from the current state. Cells of a
// service are only formatted again when its pointer changed; the relative
// "last checked" column is always recomputed.
func (m *Model) rebuildTable() {
	total := m.table.Width()
	wStatus, wName, wURL, wUptime, wChecked, wTrend := colWidths(total)

	if total != m.rowW {
		m.rows = map[*domain.Service]table.Row{}
		m.rowW = total
	}

	cols := []table.Column{
		{Title: "STATUS", Width: wStatus},
		{Title: "NAME", Width: wName},
		{Title: "URL", Width: wURL},
		{Title: "UPTIME", Width: wUptime},
		{Title: "CHECKED", Width: wChecked},
		{Title: "LATENCY", Width: wTrend},
	}

	now := m.now()
	rows := make([]table.Row, 0, len(m.state.Services))
	order := make([]string, 0, len(m.state.Services))
	cache := make(map[*domain.Service]table.Row, len(m.state.Services))

	for _, svc := range m.state.Services {
		cells, ok := m.rows[svc]
		if !ok {
			trend := widgets.LatencySpark(svc.Latency.Values(), wTrend)
			if trend == "" {
				trend = "-"
			}
			cells = table.Row{
				svc.Status(),
				widgets.Truncate(svc.Name, wName),
				widgets.Truncate(svc.URL, wURL),
				fmt.Sprintf("%6.2f%%", svc.UptimePercent),
				"",
				trend,
			}
		}
		cache[svc] = cells

		row := append(table.Row(nil), cells...)
		row[checkedCol] = widgets.Ago(svc.LastChecked, now)
		rows = append(rows, row)
		order = append(order, svc.ID)
	}

	m.rows = cache
	m.order = order
	m.table.SetColumns(cols)
	m.table.SetRows(rows)

	if len(rows) > 0 && m.table.Cursor() >= len(rows) {
		m.table.SetCursor(len(rows) - 1)
	}
}
