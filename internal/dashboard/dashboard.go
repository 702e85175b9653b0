// Package dashboard coordinates view switches and mutation outcomes for
// the student and admin dashboards.
//
// The controller owns three presentation phases: loading (a view switch in
// progress), idle (a stable view) and notice (a transient message after a
// mutation). Every mutation follows the same protocol:
//
//  1. Validate locally; invalid input is alerted and nothing is sent
//  2. Show the pending notice
//  3. Perform the network call
//  4. On success refresh the dependent snapshots, then show the success
//     notice and hand the caller a sequence number and dismiss delay
//  5. On failure clear the notice and return a blocking alert; cached
//     snapshots are not touched
//
// Timers belong to the caller. Dismissals and view-switch completions carry
// the sequence number they were issued with and are ignored once a newer
// one exists.
package dashboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/metrics"

	"github.com/rs/zerolog"
)

// API is the subset of the service client the dashboard mutates through.
type API interface {
	SubmitComplaint(ctx context.Context, n complaint.NewComplaint) (complaint.Complaint, error)
	UpdateProfile(ctx context.Context, p account.Profile) error
	ChangePassword(ctx context.Context, change account.PasswordChange) error
	DeleteUser(ctx context.Context, regNo string) error
	Logout(ctx context.Context) error
}

// Cache is the role-scoped snapshot store.
type Cache interface {
	RefreshAll(ctx context.Context) error
	RefreshComplaints(ctx context.Context) error
	RefreshStats(ctx context.Context) error
	RefreshProfile(ctx context.Context) error
	RefreshUsers(ctx context.Context) error
	DisplayStats() complaint.Stats
	Profile() account.Profile
	User(regNo string) (account.User, bool)
}

// Transitioner applies complaint status changes.
type Transitioner interface {
	Apply(ctx context.Context, role account.Role, u complaint.Update) error
}

// Outcome reports how a mutation ended.
type Outcome struct {
	Kind Kind
	OK   bool

	// Notice is the success message now being shown. Seq identifies it for
	// DismissNotice after DismissAfter has elapsed.
	Notice       string
	Seq          uint64
	DismissAfter time.Duration

	// Then is the view to open once the notice is dismissed, if any.
	Then View

	// Alert is the blocking message to show when OK is false.
	Alert string
	Err   error
}

// Controller holds one session's presentation state.
type Controller struct {
	api    API
	cache  Cache
	trans  Transitioner
	timing Timing
	log    zerolog.Logger

	mu    sync.Mutex
	state State
}

// New creates a controller for role, starting on the dashboard view.
func New(role account.Role, api API, cache Cache, trans Transitioner, timing Timing, log zerolog.Logger) *Controller {
	return &Controller{
		api:    api,
		cache:  cache,
		trans:  trans,
		timing: timing,
		log:    log.With().Str("component", "dashboard").Str("role", string(role)).Logger(),
		state:  State{Role: role, View: ViewDashboard},
	}
}

// State returns a copy of the current presentation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Timing returns the controller's delays.
func (c *Controller) Timing() Timing {
	return c.timing
}

// Load fetches every snapshot for the role. Individual failures are logged
// and leave that snapshot empty; the dashboard still opens.
func (c *Controller) Load(ctx context.Context) {
	if err := c.cache.RefreshAll(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial load incomplete")
	}
	c.syncStats()
}

func (c *Controller) syncStats() {
	stats := c.cache.DisplayStats()
	c.mu.Lock()
	c.state.Stats = stats
	c.mu.Unlock()
}

// BeginViewSwitch enters the loading phase on the way to v.
//
// Returns:
//   - uint64: Sequence number to pass to CompleteViewSwitch
//   - time.Duration: Minimum dwell before completing
//   - error: ErrRoleNotPermitted if the role may not open v
func (c *Controller) BeginViewSwitch(v View) (uint64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !Allowed(c.state.Role, v) {
		return 0, 0, fmt.Errorf("open view %q: %w", v, apperrors.ErrRoleNotPermitted)
	}
	c.state.switchSeq++
	c.state.loading = true
	c.state.pending = v
	c.state.notice = ""
	return c.state.switchSeq, c.timing.Dwell, nil
}

// CompleteViewSwitch settles the switch identified by seq into idle and
// re-derives the displayed stats. A superseded switch is ignored and false
// is returned.
func (c *Controller) CompleteViewSwitch(seq uint64) bool {
	stats := c.cache.DisplayStats()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.loading || seq != c.state.switchSeq {
		return false
	}
	c.state.loading = false
	c.state.View = c.state.pending
	c.state.pending = ""
	c.state.Stats = stats
	return true
}

// DismissNotice clears the notice identified by seq. A notice replaced
// since seq was issued is left alone and false is returned.
func (c *Controller) DismissNotice(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.state.noticeSeq || c.state.notice == "" {
		return false
	}
	c.state.notice = ""
	return true
}

// SetFilter sets the complaint list status filter.
func (c *Controller) SetFilter(f complaint.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Filter = f
}

// CycleFilter advances the status filter and returns the new one.
func (c *Controller) CycleFilter() complaint.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Filter = c.state.Filter.Next()
	return c.state.Filter
}

// Logout ends the server session.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.api.Logout(ctx); err != nil {
		c.log.Warn().Err(err).Msg("logout failed")
		return err
	}
	c.log.Info().Msg("logged out")
	return nil
}

// SubmitComplaint files a new complaint (students only). On success the
// complaints and stats are refreshed and the outcome points at the
// complaints view.
func (c *Controller) SubmitComplaint(ctx context.Context, n complaint.NewComplaint) Outcome {
	return c.mutate(ctx, KindSubmit, mutation{
		check: func(role account.Role) error {
			if role.IsAdmin() {
				return apperrors.ErrRoleNotPermitted
			}
			return n.Validate()
		},
		call: func(ctx context.Context) error {
			created, err := c.api.SubmitComplaint(ctx, n)
			if err == nil {
				c.log.Info().Int("complaint_id", created.ID).Msg("complaint submitted")
			}
			return err
		},
		refresh: []func(context.Context) error{c.cache.RefreshComplaints, c.cache.RefreshStats},
		then:    ViewComplaints,
	})
}

// UpdateComplaint changes a complaint's status and response (admins only).
// Refreshing is done by the transitioner.
func (c *Controller) UpdateComplaint(ctx context.Context, u complaint.Update) Outcome {
	var role account.Role
	return c.mutate(ctx, KindUpdate, mutation{
		check: func(r account.Role) error {
			role = r
			if !r.IsAdmin() {
				return apperrors.ErrRoleNotPermitted
			}
			return u.Validate()
		},
		call: func(ctx context.Context) error {
			return c.trans.Apply(ctx, role, u)
		},
	})
}

// UpdateProfile saves the signed-in user's profile. The registration
// number cannot be changed, so an update waits for a loaded profile to
// compare against.
func (c *Controller) UpdateProfile(ctx context.Context, p account.Profile) Outcome {
	p = p.Normalize()
	return c.mutate(ctx, KindProfile, mutation{
		check: func(account.Role) error {
			if err := p.Validate(); err != nil {
				return err
			}
			current := c.cache.Profile().RegNo
			if current == "" {
				return apperrors.NewValidationError("profile", "is not loaded yet")
			}
			if current != p.RegNo {
				return apperrors.NewValidationError("regNo", "cannot be changed")
			}
			return nil
		},
		call: func(ctx context.Context) error {
			return c.api.UpdateProfile(ctx, p)
		},
		refresh: []func(context.Context) error{c.cache.RefreshProfile},
	})
}

// ChangePassword changes the signed-in user's password.
func (c *Controller) ChangePassword(ctx context.Context, change account.PasswordChange) Outcome {
	return c.mutate(ctx, KindPassword, mutation{
		check: func(account.Role) error { return change.Validate() },
		call: func(ctx context.Context) error {
			return c.api.ChangePassword(ctx, change)
		},
	})
}

// DeleteUser removes a user account (admins only). The user must be in the
// current users snapshot. On success users, stats and complaints are
// refreshed in that order.
func (c *Controller) DeleteUser(ctx context.Context, regNo string) Outcome {
	return c.mutate(ctx, KindDelete, mutation{
		check: func(role account.Role) error {
			if !role.IsAdmin() {
				return apperrors.ErrRoleNotPermitted
			}
			if _, ok := c.cache.User(regNo); !ok {
				return apperrors.NewValidationError("regNo", fmt.Sprintf("no user %q", regNo))
			}
			return nil
		},
		call: func(ctx context.Context) error {
			return c.api.DeleteUser(ctx, regNo)
		},
		refresh: []func(context.Context) error{c.cache.RefreshUsers, c.cache.RefreshStats, c.cache.RefreshComplaints},
	})
}

type mutation struct {
	check   func(role account.Role) error
	call    func(ctx context.Context) error
	refresh []func(context.Context) error
	then    View
}

func (c *Controller) mutate(ctx context.Context, kind Kind, m mutation) Outcome {
	c.mu.Lock()
	role := c.state.Role
	c.mu.Unlock()
	txt := textsFor(role, kind)

	if err := m.check(role); err != nil {
		metrics.MutationTotal.WithLabelValues(string(kind), metrics.OutcomeInvalid).Inc()
		return Outcome{Kind: kind, Alert: alertText(err, txt.failure), Err: err}
	}

	seq := c.showNotice(txt.pending)

	if err := m.call(ctx); err != nil {
		metrics.MutationTotal.WithLabelValues(string(kind), metrics.OutcomeFailure).Inc()
		c.log.Warn().Err(err).Str("kind", string(kind)).Msg("mutation failed")
		c.DismissNotice(seq)
		return Outcome{Kind: kind, Alert: txt.failure, Err: err}
	}
	metrics.MutationTotal.WithLabelValues(string(kind), metrics.OutcomeSuccess).Inc()

	for _, refresh := range m.refresh {
		if err := refresh(ctx); err != nil {
			c.log.Warn().Err(err).Str("kind", string(kind)).Msg("refresh after mutation failed")
		}
	}
	c.syncStats()

	return Outcome{
		Kind:         kind,
		OK:           true,
		Notice:       txt.success,
		Seq:          c.showNotice(txt.success),
		DismissAfter: c.timing.dismissFor(kind),
		Then:         m.then,
	}
}

func (c *Controller) showNotice(text string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.noticeSeq++
	c.state.notice = text
	return c.state.noticeSeq
}

// alertText picks the message for a request rejected before sending.
func alertText(err error, fallback string) string {
	var ve *apperrors.ValidationError
	switch {
	case stderrors.As(err, &ve) && ve.Field == "newPassword":
		return ve.Message
	case ve != nil:
		return fmt.Sprintf("%s %s.", ve.Field, ve.Message)
	case apperrors.IsRoleNotPermitted(err):
		return "Not permitted for this account."
	}
	return fallback
}
