package tui

import (
	"context"
	"fmt"
	"strconv"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/dashboard"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

type formKind int

const (
	formNone formKind = iota
	formSubmit
	formStatus
	formProfile
	formPassword
	formDelete
	formLogout
)

// formValues holds the fields bound to the open form. It is shared by
// pointer so copies of the model see the same values.
type formValues struct {
	title       string
	subject     string
	description string

	complaintID int
	status      complaint.Status
	response    string

	profile account.Profile

	current     string
	newPass     string
	confirmPass string

	regNo    string
	approved bool
}

func (m Model) openForm(kind formKind) (tea.Model, tea.Cmd) {
	*m.values = formValues{}
	v := m.values

	var group *huh.Group
	switch kind {
	case formSubmit:
		group = huh.NewGroup(
			huh.NewInput().Title("Title").Value(&v.title),
			huh.NewInput().Title("Subject").Value(&v.subject),
			huh.NewText().Title("Description").Lines(4).Value(&v.description),
		)

	case formStatus:
		raw, ok := m.selected()
		id, err := strconv.Atoi(raw)
		if !ok || err != nil {
			return m, nil
		}
		c, ok := m.data.Complaint(id)
		if !ok {
			return m, nil
		}
		v.complaintID, v.status, v.response = c.ID, c.Status, c.Response
		opts := make([]huh.Option[complaint.Status], 0, len(complaint.Statuses))
		for _, s := range complaint.Statuses {
			opts = append(opts, huh.NewOption(s.String(), s))
		}
		group = huh.NewGroup(
			huh.NewNote().Title(fmt.Sprintf("#%d %s", c.ID, c.Title)).Description(c.Description),
			huh.NewSelect[complaint.Status]().Title("Status").Options(opts...).Value(&v.status),
			huh.NewText().Title("Response").Lines(3).Value(&v.response),
		)

	case formProfile:
		v.profile = m.data.Profile()
		group = huh.NewGroup(
			huh.NewInput().Title("Full name").Value(&v.profile.FullName),
			huh.NewInput().Title("Email").Value(&v.profile.Email),
			huh.NewNote().Title("Registration number").Description(v.profile.RegNo),
		)

	case formPassword:
		group = huh.NewGroup(
			huh.NewInput().Title("Current password").EchoMode(huh.EchoModePassword).Value(&v.current),
			huh.NewInput().Title("New password").EchoMode(huh.EchoModePassword).Value(&v.newPass),
			huh.NewInput().Title("Confirm new password").EchoMode(huh.EchoModePassword).Value(&v.confirmPass),
		)

	case formDelete:
		regNo, ok := m.selected()
		if !ok {
			return m, nil
		}
		v.regNo = regNo
		group = huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete user %s?", regNo)).
				Description("Their account is removed permanently.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&v.approved),
		)

	case formLogout:
		group = huh.NewGroup(
			huh.NewConfirm().Title("Log out?").Affirmative("Log out").Negative("Stay").Value(&v.approved),
		)

	default:
		return m, nil
	}

	m.form = huh.NewForm(group).WithShowHelp(false).WithTheme(huh.ThemeCharm())
	m.formFor = kind
	return m, m.form.Init()
}

func (m *Model) closeForm() {
	m.form = nil
	m.formFor = formNone
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	fm, cmd := m.form.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.closeForm()
		return m, nil
	case huh.StateCompleted:
		kind := m.formFor
		m.closeForm()
		return m.dispatch(kind)
	}
	return m, cmd
}

// dispatch starts the call behind a completed form. Input stays blocked
// until its result arrives.
func (m Model) dispatch(kind formKind) (Model, tea.Cmd) {
	cmd := m.submitForm(kind)
	if cmd != nil {
		m.inFlight = true
	}
	return m, cmd
}

// submitForm turns a completed form into the controller call it stands for.
func (m Model) submitForm(kind formKind) tea.Cmd {
	v := *m.values

	switch kind {
	case formSubmit:
		n := complaint.NewComplaint{Title: v.title, Subject: v.subject, Description: v.description}
		return m.mutate(func(ctx context.Context) dashboard.Outcome {
			return m.ctrl.SubmitComplaint(ctx, n)
		})
	case formStatus:
		u := complaint.Update{ID: v.complaintID, Status: v.status, Response: v.response}
		return m.mutate(func(ctx context.Context) dashboard.Outcome {
			return m.ctrl.UpdateComplaint(ctx, u)
		})
	case formProfile:
		p := v.profile
		return m.mutate(func(ctx context.Context) dashboard.Outcome {
			return m.ctrl.UpdateProfile(ctx, p)
		})
	case formPassword:
		change := account.PasswordChange{Current: v.current, New: v.newPass, Confirm: v.confirmPass}
		return m.mutate(func(ctx context.Context) dashboard.Outcome {
			return m.ctrl.ChangePassword(ctx, change)
		})
	case formDelete:
		if !v.approved {
			return nil
		}
		regNo := v.regNo
		return m.mutate(func(ctx context.Context) dashboard.Outcome {
			return m.ctrl.DeleteUser(ctx, regNo)
		})
	case formLogout:
		if !v.approved {
			return nil
		}
		return func() tea.Msg {
			return loggedOutMsg{err: m.ctrl.Logout(m.ctx)}
		}
	}
	return nil
}
