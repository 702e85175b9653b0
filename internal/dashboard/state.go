package dashboard

import (
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
)

// View is one screen of a dashboard.
type View string

const (
	ViewDashboard  View = "dashboard"
	ViewComplaints View = "complaints"
	ViewSubmit     View = "submit"
	ViewUsers      View = "users"
	ViewProfile    View = "profile"
)

// Title is the view's display name.
func (v View) Title() string {
	switch v {
	case ViewDashboard:
		return "Dashboard"
	case ViewComplaints:
		return "Complaints"
	case ViewSubmit:
		return "New Complaint"
	case ViewUsers:
		return "Users"
	case ViewProfile:
		return "Profile"
	}
	return string(v)
}

// ViewsFor lists the views a role may open, in navigation order.
func ViewsFor(role account.Role) []View {
	if role.IsAdmin() {
		return []View{ViewDashboard, ViewComplaints, ViewUsers, ViewProfile}
	}
	return []View{ViewDashboard, ViewComplaints, ViewSubmit, ViewProfile}
}

// Allowed reports whether role may open v.
func Allowed(role account.Role, v View) bool {
	for _, allowed := range ViewsFor(role) {
		if allowed == v {
			return true
		}
	}
	return false
}

// Phase is what the dashboard is presenting right now.
type Phase int

const (
	// PhaseIdle shows a stable view.
	PhaseIdle Phase = iota
	// PhaseLoading shows the loader while a view switch dwells.
	PhaseLoading
	// PhaseNotice shows a transient message over the view.
	PhaseNotice
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseNotice:
		return "notice"
	}
	return "idle"
}

// State is a snapshot of the dashboard's presentation state.
//
// loading and notice may both be set; Phase resolves them so that loading
// always wins and a stale notice never paints over a navigation.
type State struct {
	Role   account.Role
	View   View
	Filter complaint.Filter
	Stats  complaint.Stats

	loading   bool
	pending   View
	switchSeq uint64
	notice    string
	noticeSeq uint64
}

// Phase resolves the presentation state. Loading supersedes a notice.
func (s State) Phase() Phase {
	switch {
	case s.loading:
		return PhaseLoading
	case s.notice != "":
		return PhaseNotice
	}
	return PhaseIdle
}

// Notice returns the notice text if it is the one being presented.
func (s State) Notice() (string, bool) {
	if s.Phase() != PhaseNotice {
		return "", false
	}
	return s.notice, true
}

// PendingView is the view a switch in progress will land on.
func (s State) PendingView() (View, bool) {
	return s.pending, s.loading
}

// Timing holds the fixed delays of the presentation protocol.
type Timing struct {
	// Dwell is the minimum time a view switch spends in loading.
	Dwell time.Duration

	SubmitDismiss   time.Duration
	UpdateDismiss   time.Duration
	ProfileDismiss  time.Duration
	PasswordDismiss time.Duration
	DeleteDismiss   time.Duration
}

// DefaultTiming returns the delays used by each role's dashboard.
func DefaultTiming(role account.Role) Timing {
	if role.IsAdmin() {
		return Timing{
			Dwell:           700 * time.Millisecond,
			UpdateDismiss:   1700 * time.Millisecond,
			ProfileDismiss:  1600 * time.Millisecond,
			PasswordDismiss: 1700 * time.Millisecond,
			DeleteDismiss:   1200 * time.Millisecond,
		}
	}
	return Timing{
		Dwell:           750 * time.Millisecond,
		SubmitDismiss:   1800 * time.Millisecond,
		ProfileDismiss:  1700 * time.Millisecond,
		PasswordDismiss: 1700 * time.Millisecond,
	}
}
