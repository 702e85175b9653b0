package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/dashboard"
	apperrors "complaintdesk/internal/errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	state     dashboard.State
	calls     []string
	switchErr error
	seq       uint64
	completed []uint64
	dismissed []uint64
	outcome   dashboard.Outcome
	submitted complaint.NewComplaint
	deleted   string
}

func (f *fakeController) State() dashboard.State { return f.state }
func (f *fakeController) Load(ctx context.Context) {
	f.calls = append(f.calls, "load")
}

func (f *fakeController) BeginViewSwitch(v dashboard.View) (uint64, time.Duration, error) {
	f.calls = append(f.calls, "switch:"+string(v))
	if f.switchErr != nil {
		return 0, 0, f.switchErr
	}
	f.seq++
	f.state.View = v
	return f.seq, time.Millisecond, nil
}

func (f *fakeController) CompleteViewSwitch(seq uint64) bool {
	f.completed = append(f.completed, seq)
	return seq == f.seq
}

func (f *fakeController) DismissNotice(seq uint64) bool {
	f.dismissed = append(f.dismissed, seq)
	return true
}

func (f *fakeController) CycleFilter() complaint.Filter {
	f.calls = append(f.calls, "filter")
	f.state.Filter = f.state.Filter.Next()
	return f.state.Filter
}

func (f *fakeController) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	return nil
}

func (f *fakeController) SubmitComplaint(ctx context.Context, n complaint.NewComplaint) dashboard.Outcome {
	f.submitted = n
	return f.outcome
}

func (f *fakeController) UpdateComplaint(ctx context.Context, u complaint.Update) dashboard.Outcome {
	return f.outcome
}

func (f *fakeController) UpdateProfile(ctx context.Context, p account.Profile) dashboard.Outcome {
	return f.outcome
}

func (f *fakeController) ChangePassword(ctx context.Context, change account.PasswordChange) dashboard.Outcome {
	return f.outcome
}

func (f *fakeController) DeleteUser(ctx context.Context, regNo string) dashboard.Outcome {
	f.deleted = regNo
	return f.outcome
}

type fakeSnapshots struct {
	complaints []complaint.Complaint
	users      []account.User
}

func (f *fakeSnapshots) Filtered(flt complaint.Filter) []complaint.Complaint {
	return flt.Apply(f.complaints)
}

func (f *fakeSnapshots) Complaint(id int) (complaint.Complaint, bool) {
	for _, c := range f.complaints {
		if c.ID == id {
			return c, true
		}
	}
	return complaint.Complaint{}, false
}

func (f *fakeSnapshots) Users() []account.User     { return f.users }
func (f *fakeSnapshots) Profile() account.Profile { return account.Profile{RegNo: "R1"} }

func newTestModel(role account.Role) (Model, *fakeController, *fakeSnapshots) {
	ctrl := &fakeController{state: dashboard.State{Role: role, View: dashboard.ViewDashboard}}
	data := &fakeSnapshots{
		complaints: []complaint.Complaint{
			{ID: 1, Title: "Fan", Subject: "Hostel", Description: "broken", Status: complaint.StatusPending},
			{ID: 2, Title: "Wifi", Subject: "Lab", Description: "slow", Status: complaint.StatusResolved, Response: "fixed"},
		},
		users: []account.User{{RegNo: "R7", FullName: "Asha", Email: "a@x.io"}},
	}
	m := New(context.Background(), ctrl, data, zerolog.Nop())
	next, _ := m.Update(loadedMsg{})
	return next.(Model), ctrl, data
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestInitLoadsSnapshots(t *testing.T) {
	ctrl := &fakeController{state: dashboard.State{Role: account.RoleStudent, View: dashboard.ViewDashboard}}
	m := New(context.Background(), ctrl, &fakeSnapshots{}, zerolog.Nop())
	assert.True(t, m.booting)

	msg := m.load()()
	assert.IsType(t, loadedMsg{}, msg)
	assert.Equal(t, []string{"load"}, ctrl.calls)

	m, _ = update(t, m, msg)
	assert.False(t, m.booting)
}

func TestTabSwitchesThroughDwell(t *testing.T) {
	tests := []struct {
		role account.Role
		keys []string
		want dashboard.View
	}{
		{account.RoleStudent, []string{"tab"}, dashboard.ViewComplaints},
		{account.RoleStudent, []string{"3"}, dashboard.ViewSubmit},
		{account.RoleAdmin, []string{"3"}, dashboard.ViewUsers},
		{account.RoleAdmin, []string{"left"}, dashboard.ViewProfile},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.want), func(t *testing.T) {
			m, ctrl, _ := newTestModel(tt.role)
			var cmd tea.Cmd
			for _, k := range tt.keys {
				if k == "left" {
					m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
					continue
				}
				m, cmd = update(t, m, key(k))
			}
			require.NotNil(t, cmd, "completion is scheduled")
			assert.Equal(t, []string{"switch:" + string(tt.want)}, ctrl.calls)

			m, _ = update(t, m, switchDoneMsg{seq: ctrl.seq})
			assert.Equal(t, []uint64{ctrl.seq}, ctrl.completed)
			if tt.want == dashboard.ViewSubmit {
				assert.NotNil(t, m.form, "the submit form opens on arrival")
			}
		})
	}
}

func TestStaleSwitchCompletionIsIgnored(t *testing.T) {
	m, ctrl, _ := newTestModel(account.RoleStudent)
	m, _ = update(t, m, key("2"))
	m, _ = update(t, m, key("3"))

	m, _ = update(t, m, switchDoneMsg{seq: 1})
	assert.Nil(t, m.form)
	assert.Equal(t, []uint64{1}, ctrl.completed)
}

func TestRefusedSwitchRaisesAlert(t *testing.T) {
	m, ctrl, _ := newTestModel(account.RoleStudent)
	ctrl.switchErr = apperrors.ErrRoleNotPermitted

	m, cmd := update(t, m, key("tab"))
	assert.Nil(t, cmd)
	assert.Equal(t, "Not permitted for this account.", m.alert)
	assert.Contains(t, m.View(), "Not permitted")

	// Keys other than dismiss are swallowed while the alert is up.
	m, _ = update(t, m, key("tab"))
	assert.Len(t, ctrl.calls, 1)

	m, _ = update(t, m, key("enter"))
	assert.Empty(t, m.alert)
}

func TestOutcomeHandling(t *testing.T) {
	t.Run("failure alerts", func(t *testing.T) {
		m, _, _ := newTestModel(account.RoleStudent)
		m, cmd := update(t, m, outcomeMsg{out: dashboard.Outcome{Alert: "Failed to submit complaint."}})
		assert.Nil(t, cmd)
		assert.Equal(t, "Failed to submit complaint.", m.alert)
	})

	t.Run("success schedules dismiss then follow-up view", func(t *testing.T) {
		m, ctrl, _ := newTestModel(account.RoleStudent)
		m, cmd := update(t, m, outcomeMsg{out: dashboard.Outcome{
			OK: true, Seq: 4, DismissAfter: time.Millisecond, Then: dashboard.ViewComplaints,
		}})
		require.NotNil(t, cmd)
		assert.Empty(t, m.alert)

		_, cmd = update(t, m, dismissMsg{seq: 4, then: dashboard.ViewComplaints})
		assert.NotNil(t, cmd)
		assert.Equal(t, []uint64{4}, ctrl.dismissed)
		assert.Equal(t, []string{"switch:complaints"}, ctrl.calls)
	})
}

func TestFilterKeyCyclesAndRefreshesTable(t *testing.T) {
	m, ctrl, _ := newTestModel(account.RoleAdmin)
	ctrl.state.View = dashboard.ViewComplaints
	m.syncTable()
	assert.Len(t, m.table.Rows(), 2)

	m, _ = update(t, m, key("f"))
	assert.Equal(t, complaint.StatusPending, ctrl.state.Filter.Status)
	require.Len(t, m.table.Rows(), 1)
	assert.Equal(t, "1", m.table.Rows()[0][0])
}

func TestComplaintRows(t *testing.T) {
	_, rows := complaintRows(account.RoleStudent, []complaint.Complaint{
		{ID: 9, Title: "Fan", Subject: "Hostel", Status: complaint.StatusPending},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "9", rows[0][0])
	assert.Equal(t, "Pending", rows[0][3])
	assert.Equal(t, "-", rows[0][4])
}

func TestSubmitFormDispatchesMutation(t *testing.T) {
	m, ctrl, _ := newTestModel(account.RoleStudent)
	*m.values = formValues{title: "Fan", subject: "Hostel", description: "broken"}
	ctrl.outcome = dashboard.Outcome{OK: true}

	cmd := m.submitForm(formSubmit)
	require.NotNil(t, cmd)
	msg, ok := cmd().(outcomeMsg)
	require.True(t, ok)
	assert.True(t, msg.out.OK)
	assert.Equal(t, complaint.NewComplaint{Title: "Fan", Subject: "Hostel", Description: "broken"}, ctrl.submitted)
}

func TestConfirmForms(t *testing.T) {
	m, ctrl, _ := newTestModel(account.RoleAdmin)

	*m.values = formValues{regNo: "R7"}
	assert.Nil(t, m.submitForm(formDelete), "declined delete sends nothing")

	*m.values = formValues{regNo: "R7", approved: true}
	cmd := m.submitForm(formDelete)
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, "R7", ctrl.deleted)

	*m.values = formValues{approved: true}
	msg := m.submitForm(formLogout)()
	assert.Equal(t, loggedOutMsg{}, msg)

	m, cmd = update(t, m, msg)
	assert.False(t, m.LoggedIn())
	assert.NotNil(t, cmd)
}

func TestLogoutFailureAlerts(t *testing.T) {
	m, _, _ := newTestModel(account.RoleStudent)
	m, _ = update(t, m, loggedOutMsg{err: errors.New("boom")})
	assert.True(t, m.LoggedIn())
	assert.NotEmpty(t, m.alert)
}

func TestDeleteFormNeedsSelection(t *testing.T) {
	m, ctrl, data := newTestModel(account.RoleAdmin)
	data.users = nil
	ctrl.state.View = dashboard.ViewUsers
	m.syncTable()

	m, _ = update(t, m, key("d"))
	assert.Nil(t, m.form)

	data.users = []account.User{{RegNo: "R7"}}
	m.syncTable()
	m, _ = update(t, m, key("d"))
	assert.NotNil(t, m.form)
	assert.Equal(t, "R7", m.values.regNo)

	m, _ = update(t, m, key("esc"))
	assert.Nil(t, m.form)
}

func TestKeysBlockedWhileCallInFlight(t *testing.T) {
	m, ctrl, _ := newTestModel(account.RoleAdmin)
	ctrl.state.View = dashboard.ViewComplaints
	m.syncTable()
	ctrl.outcome = dashboard.Outcome{OK: true, Seq: 1, DismissAfter: time.Millisecond}

	*m.values = formValues{complaintID: 1, status: complaint.StatusResolved, response: "done"}
	m, cmd := m.dispatch(formStatus)
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Loading")

	for _, k := range []string{"enter", "tab", "f"} {
		m, _ = update(t, m, key(k))
		assert.Nil(t, m.form, "no form opens for %q", k)
	}
	assert.Empty(t, ctrl.calls, "no switch or filter while the update runs")

	m, _ = update(t, m, cmd())
	m, _ = update(t, m, key("enter"))
	assert.NotNil(t, m.form, "input resumes once the outcome arrives")
}

func TestDeclinedConfirmDoesNotBlock(t *testing.T) {
	m, _, _ := newTestModel(account.RoleAdmin)
	*m.values = formValues{regNo: "R7"}
	m, cmd := m.dispatch(formDelete)
	assert.Nil(t, cmd)
	assert.False(t, m.inFlight)
}
