// Package transition applies administrator status changes to complaints.
//
// Flow:
//  1. Reject callers that are not in admin context
//  2. Validate the update locally (id, status, non-empty response)
//  3. Send the update to the service
//  4. Only after the service confirms: refresh stats, then complaints
//
// There is no optimistic update. If the service rejects the change the
// cached snapshots are left exactly as they were.
//
// The transition graph is permissive: any of the four statuses may move to
// any other, including back to Pending.
package transition

import (
	"context"
	"fmt"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/metrics"

	"github.com/rs/zerolog"
)

// Updater sends a status update to the service.
type Updater interface {
	UpdateComplaint(ctx context.Context, u complaint.Update) error
}

// Refresher reloads the snapshots a status change affects.
type Refresher interface {
	RefreshStats(ctx context.Context) error
	RefreshComplaints(ctx context.Context) error
}

// Controller applies status transitions.
type Controller struct {
	updater Updater
	cache   Refresher
	log     zerolog.Logger
}

// New creates a Controller.
func New(updater Updater, cache Refresher, log zerolog.Logger) *Controller {
	return &Controller{
		updater: updater,
		cache:   cache,
		log:     log.With().Str("component", "transition").Logger(),
	}
}

// Apply sets a complaint's status and response on behalf of role.
//
// Parameters:
//   - ctx: Context for the network calls
//   - role: Caller's role; anything but admin is rejected
//   - u: Complaint id, target status and response text
//
// Returns:
//   - error: ErrRoleNotPermitted, a ValidationError (nothing sent), or the
//     service error (nothing refreshed). Refresh failures after a confirmed
//     update are logged and not returned: the update itself succeeded.
func (c *Controller) Apply(ctx context.Context, role account.Role, u complaint.Update) error {
	if !role.IsAdmin() {
		return fmt.Errorf("update complaint %d: %w", u.ID, apperrors.ErrRoleNotPermitted)
	}
	if err := u.Validate(); err != nil {
		metrics.TransitionTotal.WithLabelValues(u.Status.Key(), metrics.OutcomeInvalid).Inc()
		return err
	}

	if err := c.updater.UpdateComplaint(ctx, u); err != nil {
		metrics.TransitionTotal.WithLabelValues(u.Status.Key(), metrics.OutcomeFailure).Inc()
		c.log.Warn().Err(err).Int("complaint_id", u.ID).Str("status", string(u.Status)).Msg("status update rejected")
		return err
	}
	metrics.TransitionTotal.WithLabelValues(u.Status.Key(), metrics.OutcomeSuccess).Inc()
	c.log.Info().Int("complaint_id", u.ID).Str("status", string(u.Status)).Msg("status updated")

	if err := c.cache.RefreshStats(ctx); err != nil {
		c.log.Warn().Err(err).Msg("stats refresh after update failed")
	}
	if err := c.cache.RefreshComplaints(ctx); err != nil {
		c.log.Warn().Err(err).Msg("complaints refresh after update failed")
	}
	return nil
}
