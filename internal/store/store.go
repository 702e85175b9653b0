// Package store is the role-scoped client-side cache behind both dashboards.
//
// A Store is built for one role and holds the last successfully fetched
// snapshot of complaints, stats, profile and (admins only) users. Each
// refresh replaces its snapshot wholesale. A failed refresh leaves the
// previous snapshot untouched, so readers always see a complete
// last-known-good view and never a partial merge.
package store

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
	"golang.org/x/sync/errgroup"
)

// ErrInconsistentStats is returned when the service reports counts whose
// buckets do not add up to the total.
var ErrInconsistentStats = stderrors.New("stats buckets do not sum to total")

// Resource names one snapshot.
type Resource string

const (
	ResourceComplaints Resource = "complaints"
	ResourceStats      Resource = "stats"
	ResourceProfile    Resource = "profile"
	ResourceUsers      Resource = "users"
)

// Source is the subset of the API client the store reads from.
type Source interface {
	MyComplaints(ctx context.Context) ([]complaint.Complaint, error)
	AllComplaints(ctx context.Context) ([]complaint.Complaint, error)
	MyStats(ctx context.Context) (complaint.Stats, error)
	AllStats(ctx context.Context) (complaint.Stats, error)
	Profile(ctx context.Context) (account.Profile, error)
	Users(ctx context.Context) ([]account.User, error)
}

// Store caches the snapshots visible to one role.
type Store struct {
	role account.Role
	src  Source
	log  zerolog.Logger

	mu         sync.RWMutex
	complaints []complaint.Complaint
	stats      complaint.Stats
	profile    account.Profile
	users      []account.User
	loadedAt   map[Resource]time.Time
}

// New creates an empty store for role.
func New(role account.Role, src Source, log zerolog.Logger) *Store {
	return &Store{
		role:     role,
		src:      src,
		log:      log.With().Str("component", "store").Str("role", string(role)).Logger(),
		loadedAt: make(map[Resource]time.Time),
	}
}

// Role returns the role the store was built for.
func (s *Store) Role() account.Role {
	return s.role
}

// fail logs and counts a failed refresh and returns err wrapped with the
// resource name.
func (s *Store) fail(res Resource, err error) error {
	s.log.Warn().Err(err).Str("resource", string(res)).Msg("refresh failed, keeping previous snapshot")
	metrics.RefreshTotal.WithLabelValues(string(res), metrics.OutcomeFailure).Inc()
	return fmt.Errorf("refresh %s: %w", res, err)
}

func (s *Store) succeed(res Resource) {
	s.loadedAt[res] = time.Now()
	metrics.RefreshTotal.WithLabelValues(string(res), metrics.OutcomeSuccess).Inc()
}

// RefreshComplaints replaces the complaints snapshot. Students get their own
// complaints, admins get every complaint. A list holding any invalid record
// is rejected whole.
func (s *Store) RefreshComplaints(ctx context.Context) error {
	var (
		list []complaint.Complaint
		err  error
	)
	if s.role.IsAdmin() {
		list, err = s.src.AllComplaints(ctx)
	} else {
		list, err = s.src.MyComplaints(ctx)
	}
	if err != nil {
		return s.fail(ResourceComplaints, err)
	}
	for _, c := range list {
		if err := c.Validate(); err != nil {
			return s.fail(ResourceComplaints, fmt.Errorf("complaint %d: %w", c.ID, err))
		}
	}
	if list == nil {
		list = []complaint.Complaint{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.complaints = list
	s.succeed(ResourceComplaints)
	return nil
}

// RefreshStats replaces the stats snapshot with the service's counts.
// Counts that break total == Σ buckets are rejected.
func (s *Store) RefreshStats(ctx context.Context) error {
	var (
		stats complaint.Stats
		err   error
	)
	if s.role.IsAdmin() {
		stats, err = s.src.AllStats(ctx)
	} else {
		stats, err = s.src.MyStats(ctx)
	}
	if err != nil {
		return s.fail(ResourceStats, err)
	}
	if !stats.Consistent() {
		return s.fail(ResourceStats, fmt.Errorf("%w: %+v", ErrInconsistentStats, stats))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	s.succeed(ResourceStats)

	if s.role.IsAdmin() {
		for _, st := range complaint.Statuses {
			metrics.ComplaintsByStatus.WithLabelValues(st.Key()).Set(float64(stats.Count(st)))
		}
	}
	return nil
}

// RefreshProfile replaces the profile snapshot.
func (s *Store) RefreshProfile(ctx context.Context) error {
	p, err := s.src.Profile(ctx)
	if err != nil {
		return s.fail(ResourceProfile, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	s.succeed(ResourceProfile)
	return nil
}

// RefreshUsers replaces the user list snapshot. Only admins may call it;
// a student store returns ErrRoleNotPermitted without touching the network.
func (s *Store) RefreshUsers(ctx context.Context) error {
	if !s.role.IsAdmin() {
		return fmt.Errorf("refresh %s: %w", ResourceUsers, apperrors.ErrRoleNotPermitted)
	}

	users, err := s.src.Users(ctx)
	if err != nil {
		return s.fail(ResourceUsers, err)
	}
	if users == nil {
		users = []account.User{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.succeed(ResourceUsers)
	return nil
}

// RefreshAll refreshes every snapshot the role may see, concurrently.
//
// The snapshots are independent, so one failure does not cancel the
// others. The first error is returned after all refreshes finish.
func (s *Store) RefreshAll(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error { return s.RefreshStats(ctx) })
	g.Go(func() error { return s.RefreshComplaints(ctx) })
	g.Go(func() error { return s.RefreshProfile(ctx) })
	if s.role.IsAdmin() {
		g.Go(func() error { return s.RefreshUsers(ctx) })
	}

	return g.Wait()
}

// Complaints returns a copy of the complaints snapshot.
func (s *Store) Complaints() []complaint.Complaint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]complaint.Complaint(nil), s.complaints...)
}

// Filtered returns the complaints snapshot filtered by status.
func (s *Store) Filtered(f complaint.Filter) []complaint.Complaint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.Apply(s.complaints)
}

// Complaint looks up one complaint in the snapshot.
func (s *Store) Complaint(id int) (complaint.Complaint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.complaints {
		if c.ID == id {
			return c, true
		}
	}
	return complaint.Complaint{}, false
}

// Stats returns the service-reported stats snapshot.
func (s *Store) Stats() complaint.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// DerivedStats aggregates the current complaints snapshot.
func (s *Store) DerivedStats() complaint.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return complaint.Aggregate(s.complaints)
}

// DisplayStats returns the counts a dashboard should show.
//
// Once a complaints snapshot exists the counts are aggregated from it, so
// the figures always agree with the list on screen. Before that the
// service-reported snapshot is used. A disagreement between the two is
// logged at debug level.
func (s *Store) DisplayStats() complaint.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.loadedAt[ResourceComplaints]; !ok {
		return s.stats
	}
	derived := complaint.Aggregate(s.complaints)
	if _, ok := s.loadedAt[ResourceStats]; ok && derived != s.stats {
		s.log.Debug().Interface("service", s.stats).Interface("derived", derived).Msg("stats snapshot disagrees with complaint list")
	}
	return derived
}

// Profile returns the profile snapshot.
func (s *Store) Profile() account.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Users returns a copy of the user list snapshot.
func (s *Store) Users() []account.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]account.User(nil), s.users...)
}

// User looks up one user by registration number in the snapshot.
func (s *Store) User(regNo string) (account.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.RegNo == regNo {
			return u, true
		}
	}
	return account.User{}, false
}

// LoadedAt reports when a snapshot last refreshed successfully.
func (s *Store) LoadedAt(res Resource) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.loadedAt[res]
	return t, ok
}
