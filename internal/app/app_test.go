package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
	"github.com/HaPhanBaoMinh/upmon/internal/poller"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeCtrl struct {
	mu        sync.Mutex
	current   *poller.State
	updates   chan *poller.State
	refreshes int
	stopped   bool
	created   []domain.ServiceDraft
	deleted   []string
	checked   []string
	checkAll  int
	err       error
}

func newFakeCtrl(st *poller.State) *fakeCtrl {
	return &fakeCtrl{current: st, updates: make(chan *poller.State, 1)}
}

func (f *fakeCtrl) Current() *poller.State        { return f.current }
func (f *fakeCtrl) Updates() <-chan *poller.State { return f.updates }
func (f *fakeCtrl) Refresh()                      { f.mu.Lock(); f.refreshes++; f.mu.Unlock() }
func (f *fakeCtrl) Stop()                         { f.mu.Lock(); f.stopped = true; f.mu.Unlock() }
func (f *fakeCtrl) CheckAll(context.Context) error {
	f.mu.Lock()
	f.checkAll++
	f.mu.Unlock()
	return f.err
}

func (f *fakeCtrl) Create(_ context.Context, d domain.ServiceDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	return f.err
}

func (f *fakeCtrl) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeCtrl) Check(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, id)
	return f.err
}

func service(id, name string, latency ...float64) *domain.Service {
	points := make([]domain.LatencyPoint, len(latency))
	for i, v := range latency {
		points[i] = domain.LatencyPoint{Value: v, At: now.Add(time.Duration(i-len(latency)) * 10 * time.Second)}
	}
	return &domain.Service{
		ID:            id,
		Name:          name,
		URL:           "https://" + id + ".example.com",
		Healthy:       true,
		LastChecked:   now.Add(-2 * time.Minute),
		UptimePercent: 99.5,
		Latency:       domain.NewWindow(points...),
	}
}

func stateOf(services ...*domain.Service) *poller.State {
	st := &poller.State{ByID: map[string]*domain.Service{}, CheckedAt: now}
	for _, svc := range services {
		st.Services = append(st.Services, svc)
		st.ByID[svc.ID] = svc
	}
	return st
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel(ctrl *fakeCtrl) Model {
	return New(ctrl).WithClock(func() time.Time { return now })
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)

	return out, cmd
}

func TestStateMessageRebuildsRows(t *testing.T) {
	a, b := service("a", "Main API", 120, 130), service("b", "Auth", 45)
	ctrl := newFakeCtrl(stateOf())
	m := newModel(ctrl)

	m, cmd := send(t, m, stateMsg{stateOf(a, b)})
	require.NotNil(t, cmd, "keeps listening for states")

	assert.Equal(t, []string{"a", "b"}, m.order)
	require.Contains(t, m.rows, a)
	cachedA := m.rows[a]

	b2 := service("b", "Auth", 45, 47)
	m, _ = send(t, m, stateMsg{stateOf(a, b2)})

	assert.Same(t, &cachedA[0], &m.rows[a][0], "unchanged service reuses its cells")
	assert.NotContains(t, m.rows, b, "replaced pointer is evicted")
	assert.Contains(t, m.rows, b2)
	assert.Len(t, m.rows, 2)
}

func TestDetailViewTransitions(t *testing.T) {
	a, b := service("a", "Main API", 120), service("b", "Auth", 45)
	ctrl := newFakeCtrl(stateOf(a, b))
	m := newModel(ctrl)

	m, _ = send(t, m, key("down"))
	m, _ = send(t, m, key("enter"))

	assert.Equal(t, DetailView("b"), m.Screen())
	assert.Contains(t, m.View(), "Auth")
	assert.Contains(t, m.View(), "successful of last 100")

	m, _ = send(t, m, key("esc"))
	assert.Equal(t, ListView(), m.Screen())

	m, _ = send(t, m, key("enter"))
	m, _ = send(t, m, key("down"))
	require.Equal(t, DetailView("b"), m.Screen(), "cursor keys are ignored on the detail page")

	m, _ = send(t, m, stateMsg{stateOf(a)})
	assert.Equal(t, ListView(), m.Screen(), "detail of a removed service falls back to the list")
}

func TestDetailSurvivesFailedPoll(t *testing.T) {
	a := service("a", "Main API", 120)
	ctrl := newFakeCtrl(stateOf(a))
	m := newModel(ctrl)

	m, _ = send(t, m, key("enter"))

	failed := stateOf(a)
	failed.Err = &poller.FetchError{Seq: 2, Err: errors.New("connection refused")}
	m, _ = send(t, m, stateMsg{failed})

	assert.Equal(t, DetailView("a"), m.Screen())
	assert.Contains(t, m.View(), "connection refused")
}

func TestQuitStopsController(t *testing.T) {
	for _, k := range []string{"q", "esc"} {
		ctrl := newFakeCtrl(stateOf())
		m := newModel(ctrl)

		_, cmd := send(t, m, key(k))
		require.NotNil(t, cmd)

		assert.IsType(t, tea.QuitMsg{}, cmd(), k)
		assert.True(t, ctrl.stopped, k)
		assert.Error(t, m.ctx.Err(), k)
	}
}

func TestCommands(t *testing.T) {
	a, b := service("a", "Main API", 120), service("b", "Auth", 45)
	ctrl := newFakeCtrl(stateOf(a, b))
	m := newModel(ctrl)

	m, _ = send(t, m, key("r"))
	assert.Equal(t, 1, ctrl.refreshes)

	m, cmd := send(t, m, key("c"))
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())
	assert.Equal(t, []string{"a"}, ctrl.checked)
	assert.Equal(t, "check ok", m.flash)

	m, cmd = send(t, m, key("C"))
	require.NotNil(t, cmd)
	_, _ = send(t, m, cmd())
	assert.Equal(t, 1, ctrl.checkAll)

	m, _ = send(t, m, key("down"))
	m, cmd = send(t, m, key("d"))
	assert.Nil(t, cmd, "delete waits for confirmation")
	assert.Contains(t, m.flash, "Auth")

	m, cmd = send(t, m, key("n"))
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.deleted)

	m, _ = send(t, m, key("d"))
	m, cmd = send(t, m, key("y"))
	require.NotNil(t, cmd)
	_, _ = send(t, m, cmd())
	assert.Equal(t, []string{"b"}, ctrl.deleted)
}

func TestCommandFailureIsShown(t *testing.T) {
	ctrl := newFakeCtrl(stateOf(service("a", "Main API", 120)))
	ctrl.err = errors.New("check service a: unexpected status 500")
	m := newModel(ctrl)

	m, cmd := send(t, m, key("c"))
	m, _ = send(t, m, cmd())

	assert.True(t, m.flashErr)
	assert.Contains(t, m.View(), "unexpected status 500")
}

func TestAddForm(t *testing.T) {
	ctrl := newFakeCtrl(stateOf())
	m := newModel(ctrl)

	m, _ = send(t, m, key("a"))
	require.NotNil(t, m.form)

	m, cmd := send(t, m, key("enter"))
	assert.Nil(t, cmd)
	assert.ErrorIs(t, m.form.err, errNameRequired)

	m, _ = send(t, m, key("Docs"))
	m, _ = send(t, m, key("tab"))
	m, _ = send(t, m, key("https://docs.example.com"))
	m, _ = send(t, m, key("tab"))
	m, _ = send(t, m, key(" Internal, Docs ,Internal,"))

	m, cmd = send(t, m, key("enter"))
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())

	require.Len(t, ctrl.created, 1)
	d := ctrl.created[0]
	assert.Equal(t, "Docs", d.Name)
	assert.Equal(t, "https://docs.example.com", d.URL)
	assert.Equal(t, []string{"Internal", "Docs"}, d.Tags)
	assert.Equal(t, domain.DefaultCheckIntervalSeconds, d.CheckIntervalSeconds)
	assert.Nil(t, m.form, "form closes once created")
}

func TestAddFormCancel(t *testing.T) {
	ctrl := newFakeCtrl(stateOf())
	m := newModel(ctrl)

	m, _ = send(t, m, key("a"))
	m, _ = send(t, m, key("q"))
	require.NotNil(t, m.form, "typing q in the form does not quit")
	assert.False(t, ctrl.stopped)

	m, _ = send(t, m, key("esc"))
	assert.Nil(t, m.form)
	assert.Empty(t, ctrl.created)
}

func TestWaitForState(t *testing.T) {
	ch := make(chan *poller.State, 1)
	st := stateOf()
	ch <- st

	assert.Equal(t, stateMsg{st}, waitForState(ch)())

	close(ch)
	assert.Equal(t, detachedMsg{}, waitForState(ch)())
}

func TestLoadingHeader(t *testing.T) {
	st := stateOf()
	st.Loading = true
	m := newModel(newFakeCtrl(st))

	assert.Contains(t, m.View(), "loading")
}
