package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/repairshop-client/internal/metrics"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Refresher exchanges the current token for a new session.
type Refresher interface {
	Refresh(ctx context.Context) (sessions.Session, bool)
}

// Policy controls when the scheduler acts relative to a token's expiry.
type Policy struct {
	RefreshEnabled   bool
	RefreshLead      time.Duration
	ForcedLogoutSkew time.Duration
}

// Status describes the timers currently armed. Zero times mean not armed.
type Status struct {
	ExpiresAt time.Time
	RefreshAt time.Time
	LogoutAt  time.Time
}

// Armed reports whether any timer is pending.
func (s Status) Armed() bool {
	return !s.RefreshAt.IsZero() || !s.LogoutAt.IsZero()
}

// Scheduler keeps one set of timers for the token currently in the store.
type Scheduler struct {
	store     *sessions.Store
	refresher Refresher
	teardown  *Teardown
	policy    Policy
	clock     Clock
	logger    zerolog.Logger

	lock        sync.Mutex
	ctx         context.Context
	generation  uint64
	timers      []Timer
	status      Status
	unsubscribe func()
}

type SchedulerOption func(*Scheduler)

func WithClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func WithSchedulerLogger(logger zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a scheduler. refresher may be nil when refresh is disabled.
func NewScheduler(store *sessions.Store, refresher Refresher, teardown *Teardown, policy Policy, options ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:     store,
		refresher: refresher,
		teardown:  teardown,
		policy:    policy,
		clock:     RealClock,
		logger:    log.Logger,
		ctx:       context.Background(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.refresher == nil {
		s.policy.RefreshEnabled = false
	}
	s.logger = s.logger.With().Str("component", "expiry_scheduler").Logger()
	return s
}

// Start subscribes to store changes and arms for the current session.
// ctx is used for store access from timer callbacks.
func (s *Scheduler) Start(ctx context.Context) {
	s.lock.Lock()
	if s.unsubscribe != nil {
		s.lock.Unlock()
		return
	}
	s.ctx = ctx
	s.unsubscribe = s.store.Subscribe(func() { s.Rearm(ctx) })
	s.lock.Unlock()

	s.Rearm(ctx)
}

// Stop unsubscribes and cancels every pending timer.
func (s *Scheduler) Stop() {
	s.lock.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.disarmLocked()
	s.generation++
	s.lock.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Status returns the currently armed deadlines.
func (s *Scheduler) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

// Rearm cancels existing timers and arms new ones from the store's current
// session. The read and the arm happen under one lock, so the last rearm to
// finish always reflects the latest session it could see.
func (s *Scheduler) Rearm(ctx context.Context) {
	s.lock.Lock()
	session := s.store.Get(ctx)
	s.disarmLocked()
	s.generation++
	generation := s.generation

	if !session.Valid() {
		s.lock.Unlock()
		return
	}

	expiresAt, ok := token.DecodeExpiry(session.Token)
	if !ok {
		s.lock.Unlock()
		s.logger.Debug().Msg("token expiry unreadable, no timers armed")
		return
	}

	now := s.clock.Now()
	if !expiresAt.After(now.Add(s.policy.ForcedLogoutSkew)) {
		s.lock.Unlock()
		s.logger.Info().Time("expires_at", expiresAt).Msg("token expired or about to, tearing down")
		s.teardown.RunIf(ctx, metrics.TeardownExpired, session.Token)
		return
	}

	s.status.ExpiresAt = expiresAt
	raw := session.Token

	if s.policy.RefreshEnabled {
		refreshAt := expiresAt.Add(-s.policy.RefreshLead)
		if refreshAt.After(now) {
			s.status.RefreshAt = refreshAt
			s.timers = append(s.timers, s.clock.AfterFunc(refreshAt.Sub(now), func() {
				s.onRefresh(generation, raw)
			}))
		}
	}

	logoutAt := expiresAt.Add(-s.policy.ForcedLogoutSkew)
	s.status.LogoutAt = logoutAt
	s.timers = append(s.timers, s.clock.AfterFunc(logoutAt.Sub(now), func() {
		s.onLogout(generation, raw)
	}))
	status := s.status
	s.lock.Unlock()

	s.logger.Debug().
		Time("expires_at", status.ExpiresAt).
		Time("refresh_at", status.RefreshAt).
		Time("logout_at", status.LogoutAt).
		Msg("expiry timers armed")
}

func (s *Scheduler) disarmLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.status = Status{}
}

// current reports whether a timer armed at generation for raw may still act.
func (s *Scheduler) current(ctx context.Context, generation uint64, raw string) bool {
	s.lock.Lock()
	stale := generation != s.generation
	s.lock.Unlock()
	if stale {
		return false
	}
	return s.store.Get(ctx).Token == raw
}

func (s *Scheduler) context() context.Context {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ctx
}

func (s *Scheduler) onRefresh(generation uint64, raw string) {
	ctx := s.context()
	if !s.current(ctx, generation, raw) {
		return
	}

	if _, ok := s.refresher.Refresh(ctx); ok {
		return
	}

	// A session replaced while the refresh was in flight is kept.
	s.teardown.RunIf(ctx, metrics.TeardownRefreshFailed, raw)
}

func (s *Scheduler) onLogout(generation uint64, raw string) {
	ctx := s.context()
	if !s.current(ctx, generation, raw) {
		return
	}
	s.teardown.RunIf(ctx, metrics.TeardownExpired, raw)
}
