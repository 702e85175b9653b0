// Package tui renders the student and admin dashboards in the terminal.
//
// The model is a thin shell over dashboard.Controller: it turns keys into
// controller calls, runs network work as commands and turns the controller's
// dwell and dismiss delays into ticks. All presentation state that matters
// (view, phase, notice, filter, stats) lives in the controller.
//
// Keys:
//
//	tab / shift+tab   next / previous view
//	1..4              open a view directly
//	f                 cycle the status filter (complaints)
//	enter             update the selected complaint (admin)
//	n                 new complaint (student)
//	d                 delete the selected user (admin)
//	e / p             edit profile / change password (profile)
//	L                 log out
//	q / ctrl+c        quit
package tui

import (
	"context"
	"strconv"
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/dashboard"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
)

// Controller is the dashboard controller the model drives.
type Controller interface {
	State() dashboard.State
	Load(ctx context.Context)
	BeginViewSwitch(v dashboard.View) (uint64, time.Duration, error)
	CompleteViewSwitch(seq uint64) bool
	DismissNotice(seq uint64) bool
	CycleFilter() complaint.Filter
	Logout(ctx context.Context) error
	SubmitComplaint(ctx context.Context, n complaint.NewComplaint) dashboard.Outcome
	UpdateComplaint(ctx context.Context, u complaint.Update) dashboard.Outcome
	UpdateProfile(ctx context.Context, p account.Profile) dashboard.Outcome
	ChangePassword(ctx context.Context, change account.PasswordChange) dashboard.Outcome
	DeleteUser(ctx context.Context, regNo string) dashboard.Outcome
}

// Snapshots exposes the cached data the views render.
type Snapshots interface {
	Filtered(f complaint.Filter) []complaint.Complaint
	Complaint(id int) (complaint.Complaint, bool)
	Users() []account.User
	Profile() account.Profile
}

// Messages produced by commands.
type (
	loadedMsg     struct{}
	switchDoneMsg struct{ seq uint64 }
	dismissMsg    struct {
		seq  uint64
		then dashboard.View
	}
	outcomeMsg   struct{ out dashboard.Outcome }
	loggedOutMsg struct{ err error }
)

// Model is the bubbletea model for one signed-in session.
type Model struct {
	ctx  context.Context
	ctrl Controller
	data Snapshots
	log  zerolog.Logger

	spinner spinner.Model
	table   table.Model

	form    *huh.Form
	formFor formKind
	values  *formValues

	booting  bool
	inFlight bool
	alert    string
	loggedIn bool
	width    int
	height   int
}

// New creates the model. ctx bounds every network call the model starts.
func New(ctx context.Context, ctrl Controller, data Snapshots, log zerolog.Logger) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	t := table.New(table.WithFocused(true), table.WithHeight(10))
	t.SetStyles(tableStyles())

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		data:     data,
		log:      log.With().Str("component", "tui").Logger(),
		spinner:  s,
		table:    t,
		values:   &formValues{},
		booting:  true,
		loggedIn: true,
	}
}

// LoggedIn reports whether the session is still signed in when the program
// exits.
func (m Model) LoggedIn() bool {
	return m.loggedIn
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Load(m.ctx)
		return loadedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 14; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.booting = false
		m.syncTable()
		return m, nil

	case switchDoneMsg:
		if !m.ctrl.CompleteViewSwitch(msg.seq) {
			return m, nil
		}
		m.syncTable()
		if m.ctrl.State().View == dashboard.ViewSubmit {
			return m.openForm(formSubmit)
		}
		return m, nil

	case outcomeMsg:
		m.inFlight = false
		return m.handleOutcome(msg.out)

	case dismissMsg:
		if m.ctrl.DismissNotice(msg.seq) && msg.then != "" {
			return m.switchTo(msg.then)
		}
		return m, nil

	case loggedOutMsg:
		m.inFlight = false
		if msg.err != nil {
			m.alert = "Logout failed. Please try again."
			return m, nil
		}
		m.loggedIn = false
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.alert != "" {
		switch msg.String() {
		case "enter", "esc", " ":
			m.alert = ""
		}
		return m, nil
	}
	if m.form != nil {
		if msg.String() == "esc" {
			m.closeForm()
			return m, nil
		}
		return m.updateForm(msg)
	}
	st := m.ctrl.State()
	// The overlay owns the screen while loading or while a call is out.
	if m.booting || m.inFlight || st.Phase() == dashboard.PhaseLoading {
		return m, nil
	}
	views := dashboard.ViewsFor(st.Role)

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "right":
		return m.switchTo(views[(indexOf(views, st.View)+1)%len(views)])
	case "shift+tab", "left":
		return m.switchTo(views[(indexOf(views, st.View)+len(views)-1)%len(views)])
	case "1", "2", "3", "4":
		i, _ := strconv.Atoi(msg.String())
		if i <= len(views) {
			return m.switchTo(views[i-1])
		}
		return m, nil
	case "L":
		return m.openForm(formLogout)
	}

	switch st.View {
	case dashboard.ViewComplaints:
		switch msg.String() {
		case "f":
			m.ctrl.CycleFilter()
			m.syncTable()
			return m, nil
		case "enter":
			if st.Role.IsAdmin() {
				return m.openForm(formStatus)
			}
		}
	case dashboard.ViewSubmit:
		if msg.String() == "n" || msg.String() == "enter" {
			return m.openForm(formSubmit)
		}
	case dashboard.ViewUsers:
		if msg.String() == "d" {
			return m.openForm(formDelete)
		}
	case dashboard.ViewProfile:
		switch msg.String() {
		case "e":
			return m.openForm(formProfile)
		case "p":
			return m.openForm(formPassword)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// switchTo starts a view switch and schedules its completion after the
// dwell.
func (m Model) switchTo(v dashboard.View) (tea.Model, tea.Cmd) {
	m.closeForm()
	seq, dwell, err := m.ctrl.BeginViewSwitch(v)
	if err != nil {
		m.log.Warn().Err(err).Str("view", string(v)).Msg("view switch refused")
		m.alert = "Not permitted for this account."
		return m, nil
	}
	return m, tea.Tick(dwell, func(time.Time) tea.Msg { return switchDoneMsg{seq: seq} })
}

func (m Model) handleOutcome(out dashboard.Outcome) (tea.Model, tea.Cmd) {
	if !out.OK {
		m.alert = out.Alert
		return m, nil
	}
	m.syncTable()
	seq, then := out.Seq, out.Then
	return m, tea.Tick(out.DismissAfter, func(time.Time) tea.Msg { return dismissMsg{seq: seq, then: then} })
}

// syncTable reloads the table rows for the current view.
func (m *Model) syncTable() {
	st := m.ctrl.State()
	switch st.View {
	case dashboard.ViewComplaints:
		cols, rows := complaintRows(st.Role, m.data.Filtered(st.Filter))
		m.setTable(cols, rows)
	case dashboard.ViewUsers:
		cols, rows := userRows(m.data.Users())
		m.setTable(cols, rows)
	}
}

func (m *Model) setTable(cols []table.Column, rows []table.Row) {
	cursor := m.table.Cursor()
	// Rows must be cleared before narrowing the columns.
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(min(max(cursor, 0), len(rows)-1))
	}
}

// selected returns the first cell of the highlighted row.
func (m Model) selected() (string, bool) {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return "", false
	}
	return row[0], true
}

func (m Model) mutate(fn func(ctx context.Context) dashboard.Outcome) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{out: fn(m.ctx)}
	}
}

func indexOf(views []dashboard.View, v dashboard.View) int {
	for i, candidate := range views {
		if candidate == v {
			return i
		}
	}
	return 0
}
