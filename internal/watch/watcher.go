// Package watch runs the admin watch daemon: it polls the complaint list,
// announces new complaints, edits announcements when a status changes and
// recovers the session when the service stops accepting it.
//
// Cycle recovery:
//
//	cycle fails
//	├─ other error → record and wait for next tick
//	└─ session rejected (401/403)
//	    ├─ re-login (with cookie reset fallback) succeeds → run cycle again
//	    └─ re-login fails → critical alert
package watch

import (
	"context"
	"fmt"
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/metrics"
	"complaintdesk/internal/storage"

	"github.com/rs/zerolog"
)

// Announcer publishes complaint events. A nil *notify.Notifier satisfies it
// and does nothing.
type Announcer interface {
	AnnounceComplaint(ctx context.Context, c complaint.Complaint) (int, error)
	AnnounceStatusChange(ctx context.Context, messageID int, c complaint.Complaint) error
	AnnounceRemoved(ctx context.Context, messageID, complaintID int) error
	SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error
}

// Cache is the admin store.
type Cache interface {
	RefreshComplaints(ctx context.Context) error
	RefreshStats(ctx context.Context) error
	Complaints() []complaint.Complaint
}

// Ledger remembers which complaints were announced.
type Ledger interface {
	All() ([]storage.Record, error)
	SaveMultiple(records []storage.Record) error
	Remove(complaintID int) error
}

// Session re-establishes an expired login.
type Session interface {
	Relogin(ctx context.Context) (account.Role, error)
}

// Monitor receives the outcome of every cycle.
type Monitor interface {
	RecordCycle(err error)
}

// Options configures a Watcher.
type Options struct {
	Interval time.Duration
	Workers  int

	// LoginAttempts is reported in the critical alert.
	LoginAttempts int
}

// Report summarizes one cycle.
type Report struct {
	New     int
	Changed int
	Removed int
	Failed  int
}

// Watcher polls the service and keeps the announcements in step.
type Watcher struct {
	cache     Cache
	ledger    Ledger
	announcer Announcer
	session   Session
	monitor   Monitor
	opts      Options
	log       zerolog.Logger
}

// New creates a Watcher.
func New(cache Cache, ledger Ledger, announcer Announcer, session Session, monitor Monitor, opts Options, log zerolog.Logger) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Watcher{
		cache:     cache,
		ledger:    ledger,
		announcer: announcer,
		session:   session,
		monitor:   monitor,
		opts:      opts,
		log:       log.With().Str("component", "watch").Logger(),
	}
}

// RunOnce performs one poll.
//
// Flow:
//  1. Refresh complaints (required) and stats (best effort)
//  2. Diff against the ledger
//  3. Announce new complaints through the worker pool
//  4. Edit announcements whose status changed
//  5. Mark and forget complaints the service no longer lists
//  6. Save every new and changed record in one transaction
//
// A complaint whose announcement fails is not recorded and is retried on
// the next cycle.
func (w *Watcher) RunOnce(ctx context.Context) (Report, error) {
	var rep Report

	if err := w.cache.RefreshComplaints(ctx); err != nil {
		return rep, err
	}
	if err := w.cache.RefreshStats(ctx); err != nil {
		w.log.Warn().Err(err).Msg("stats refresh failed")
	}

	records, err := w.ledger.All()
	if err != nil {
		return rep, fmt.Errorf("failed to read ledger: %w", err)
	}
	known := make(map[int]storage.Record, len(records))
	for _, r := range records {
		known[r.ComplaintID] = r
	}

	var fresh []complaint.Complaint
	var toSave []storage.Record
	seen := make(map[int]bool)

	for _, c := range w.cache.Complaints() {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		rec, ok := known[c.ID]
		switch {
		case !ok:
			fresh = append(fresh, c)
		case rec.Status != c.Status:
			if err := w.announcer.AnnounceStatusChange(ctx, rec.MessageID, c); err != nil {
				w.log.Warn().Err(err).Int("complaint_id", c.ID).Msg("failed to edit announcement")
				rep.Failed++
				continue
			}
			w.log.Info().Int("complaint_id", c.ID).Str("from", string(rec.Status)).Str("to", string(c.Status)).Msg("status changed")
			rec.Status = c.Status
			rec.Title = c.Title
			toSave = append(toSave, rec)
			rep.Changed++
		}
	}

	for id, rec := range known {
		if seen[id] {
			continue
		}
		if err := w.announcer.AnnounceRemoved(ctx, rec.MessageID, id); err != nil {
			w.log.Warn().Err(err).Int("complaint_id", id).Msg("failed to mark removed complaint")
		}
		if err := w.ledger.Remove(id); err != nil {
			w.log.Warn().Err(err).Int("complaint_id", id).Msg("failed to forget removed complaint")
			continue
		}
		rep.Removed++
	}

	if len(fresh) > 0 {
		pool := NewWorkerPool(ctx, w.announcer, w.opts.Workers, w.log)
		go func() {
			for _, c := range fresh {
				pool.Submit(c)
			}
			pool.Close()
		}()

		for res := range pool.Results() {
			if res.Err != nil {
				rep.Failed++
				continue
			}
			toSave = append(toSave, storage.Record{
				ComplaintID: res.Complaint.ID,
				MessageID:   res.MessageID,
				Status:      res.Complaint.Status,
				Title:       res.Complaint.Title,
			})
			rep.New++
		}
	}

	if len(toSave) > 0 {
		if err := w.ledger.SaveMultiple(toSave); err != nil {
			return rep, fmt.Errorf("failed to save ledger: %w", err)
		}
	}
	return rep, nil
}

// Cycle runs one poll with session recovery and records the outcome.
func (w *Watcher) Cycle(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.WatchCycleDuration.Observe(time.Since(start).Seconds()) }()

	err := w.cycle(ctx)
	w.monitor.RecordCycle(err)
	return err
}

func (w *Watcher) cycle(ctx context.Context) error {
	rep, err := w.RunOnce(ctx)
	if err == nil {
		w.logReport(rep)
		return nil
	}
	if !apperrors.IsUnauthorized(err) {
		w.log.Warn().Err(err).Msg("watch cycle failed")
		return err
	}

	w.log.Info().Err(err).Msg("session rejected, logging in again")
	role, loginErr := w.session.Relogin(ctx)
	if loginErr == nil && !role.IsAdmin() {
		loginErr = fmt.Errorf("logged in as %s: %w", role, apperrors.ErrRoleNotPermitted)
	}
	if loginErr != nil {
		w.log.Error().Err(loginErr).Msg("all login attempts failed")
		if alertErr := w.announcer.SendCriticalAlert(ctx, "Login Failure", fmt.Sprintf("Unable to re-login after session reset. Last error: %v", loginErr), w.opts.LoginAttempts); alertErr != nil {
			w.log.Warn().Err(alertErr).Msg("failed to send critical alert")
		}
		return fmt.Errorf("all retry attempts failed: %w", loginErr)
	}

	rep, err = w.RunOnce(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("watch cycle failed after re-login")
		return err
	}
	w.logReport(rep)
	return nil
}

func (w *Watcher) logReport(rep Report) {
	ev := w.log.Info()
	if rep == (Report{}) {
		ev = w.log.Debug()
	}
	ev.Int("new", rep.New).Int("changed", rep.Changed).Int("removed", rep.Removed).Int("failed", rep.Failed).Msg("watch cycle complete")
}

// Run performs a cycle immediately and then every Interval until ctx is
// cancelled. Individual cycle failures do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.opts.Interval).Msg("watch started")
	w.Cycle(ctx)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("watch stopped")
			return nil
		case <-ticker.C:
			w.Cycle(ctx)
		}
	}
}
