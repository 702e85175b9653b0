package tui

import (
	"fmt"
	"strconv"
	"strings"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/dashboard"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.loggedIn {
		return "Logged out.\n"
	}

	st := m.ctrl.State()
	var b strings.Builder

	b.WriteString(m.renderHeader(st))
	b.WriteString("\n\n")

	switch {
	case m.alert != "":
		b.WriteString(alertStyle.Render(m.alert + "\n\n" + helpDescStyle.Render("enter to dismiss")))
	case m.booting || m.inFlight || st.Phase() == dashboard.PhaseLoading:
		b.WriteString(m.spinner.View() + " Loading...")
	case m.form != nil:
		b.WriteString(m.form.View())
	default:
		b.WriteString(m.renderBody(st))
	}

	if text, ok := st.Notice(); ok && st.Phase() == dashboard.PhaseNotice {
		b.WriteString("\n\n")
		b.WriteString(noticeStyle.Render(text))
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderFooter(st))
	return b.String()
}

func (m Model) renderHeader(st dashboard.State) string {
	tabs := make([]string, 0, 4)
	for i, v := range dashboard.ViewsFor(st.Role) {
		label := fmt.Sprintf("%d %s", i+1, v.Title())
		if v == st.View {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	title := titleStyle.Render(portalTitle(st.Role))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func portalTitle(role account.Role) string {
	if role.IsAdmin() {
		return "Admin Portal"
	}
	return "Student Portal"
}

func (m Model) renderBody(st dashboard.State) string {
	switch st.View {
	case dashboard.ViewDashboard:
		return renderStats(st.Stats)
	case dashboard.ViewComplaints:
		return filterStyle.Render("Filter: "+st.Filter.Label()) + "\n" + m.table.View()
	case dashboard.ViewUsers:
		return m.table.View()
	case dashboard.ViewSubmit:
		return helpDescStyle.Render("Press n to write a new complaint.")
	case dashboard.ViewProfile:
		return renderProfile(m.data.Profile())
	}
	return ""
}

// renderStats draws one card per bucket.
func renderStats(s complaint.Stats) string {
	cards := []string{
		statCard("Total", s.Total, lipgloss.Color("39")),
		statCard(complaint.StatusPending.String(), s.Pending, statusColor(complaint.StatusPending)),
		statCard(complaint.StatusInProgress.String(), s.InProgress, statusColor(complaint.StatusInProgress)),
		statCard(complaint.StatusResolved.String(), s.Resolved, statusColor(complaint.StatusResolved)),
		statCard(complaint.StatusRejected.String(), s.Rejected, statusColor(complaint.StatusRejected)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func statCard(label string, n int, color lipgloss.Color) string {
	value := lipgloss.NewStyle().Bold(true).Foreground(color).Render(strconv.Itoa(n))
	return cardStyle.BorderForeground(color).Render(value + "\n" + helpDescStyle.Render(label))
}

func renderProfile(p account.Profile) string {
	rows := [][2]string{
		{"Full name", p.FullName},
		{"Email", p.Email},
		{"Registration no.", p.RegNo},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(helpKeyStyle.Width(18).Render(r[0]))
		b.WriteString(r[1])
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderFooter(st dashboard.State) string {
	keys := [][2]string{{"tab", "switch view"}}
	switch st.View {
	case dashboard.ViewComplaints:
		keys = append(keys, [2]string{"f", "filter"})
		if st.Role.IsAdmin() {
			keys = append(keys, [2]string{"enter", "update status"})
		}
	case dashboard.ViewSubmit:
		keys = append(keys, [2]string{"n", "new complaint"})
	case dashboard.ViewUsers:
		keys = append(keys, [2]string{"d", "delete user"})
	case dashboard.ViewProfile:
		keys = append(keys, [2]string{"e", "edit"}, [2]string{"p", "password"})
	}
	if m.form != nil {
		keys = [][2]string{{"esc", "cancel"}}
	}
	keys = append(keys, [2]string{"L", "log out"}, [2]string{"q", "quit"})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, helpKeyStyle.Render(k[0])+" "+helpDescStyle.Render(k[1]))
	}
	return strings.Join(parts, "  ")
}

func complaintRows(role account.Role, list []complaint.Complaint) ([]table.Column, []table.Row) {
	cols := []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Title", Width: 22},
		{Title: "Subject", Width: 16},
		{Title: "Status", Width: 12},
		{Title: "Response", Width: 28},
	}
	if !role.IsAdmin() {
		cols[4].Title = "Admin response"
	}

	rows := make([]table.Row, 0, len(list))
	for _, c := range list {
		rows = append(rows, table.Row{
			strconv.Itoa(c.ID),
			c.Title,
			c.Subject,
			c.Status.String(),
			orDash(c.Response),
		})
	}
	return cols, rows
}

func userRows(users []account.User) ([]table.Column, []table.Row) {
	cols := []table.Column{
		{Title: "Reg. No", Width: 14},
		{Title: "Name", Width: 24},
		{Title: "Email", Width: 30},
	}
	rows := make([]table.Row, 0, len(users))
	for _, u := range users {
		rows = append(rows, table.Row{u.RegNo, u.FullName, u.Email})
	}
	return cols, rows
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func statusColor(s complaint.Status) lipgloss.Color {
	switch s {
	case complaint.StatusPending:
		return lipgloss.Color("214")
	case complaint.StatusInProgress:
		return lipgloss.Color("75")
	case complaint.StatusResolved:
		return lipgloss.Color("42")
	case complaint.StatusRejected:
		return lipgloss.Color("196")
	}
	return lipgloss.Color("250")
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			MarginRight(1).
			Align(lipgloss.Center)

	filterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Background(lipgloss.Color("22")).
			Padding(0, 1)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 2)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	return s
}
