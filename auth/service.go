// Package auth is the session facade: the only surface the UI needs to sign
// in, sign out and know who is signed in.
package auth

import (
	"context"
	"sync"

	"github.com/jrsteele09/repairshop-client/api"
	"github.com/jrsteele09/repairshop-client/expiry"
	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is what the UI renders from.
type State struct {
	Authenticated bool
	User          *users.Profile
}

// Deps holds the collaborators of the Service.
type Deps struct {
	Store     *sessions.Store   // Credential store, required
	Client    *api.Client       // API client used for login, required
	Scheduler *expiry.Scheduler // Optional expiry scheduler, started by Start
	Watcher   sessions.Watcher  // Optional cross-context change source, listened to by Start
}

// Service derives the authentication state from the store and keeps it
// current on every change, whatever its origin.
type Service struct {
	deps    Deps
	logger  zerolog.Logger
	changes *sessions.Notifier

	syncLock    sync.Mutex
	lock        sync.RWMutex
	state       State
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("[NewService] Store is required")
	}
	if deps.Client == nil {
		return nil, errors.New("[NewService] Client is required")
	}

	s := &Service{
		deps:    deps,
		logger:  log.Logger,
		changes: sessions.NewNotifier(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "auth_service").Logger()

	s.unsubscribe = deps.Store.Subscribe(func() { s.sync(context.Background()) })
	s.sync(context.Background())
	return s, nil
}

// Start arms the expiry scheduler and begins listening for changes made by
// other contexts sharing the medium. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	s.lock.Lock()
	if s.cancel != nil {
		s.lock.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.lock.Unlock()

	if s.deps.Watcher != nil {
		go func() {
			defer close(done)
			if err := sessions.Listen(ctx, s.deps.Watcher, s.deps.Store.Notifier()); err != nil {
				s.logger.Error().Err(err).Msg("cross-context listener stopped")
			}
		}()
	} else {
		close(done)
	}

	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Start(ctx)
	}
}

// Close stops the scheduler and the listener and detaches from the store.
// The stored session is left as is.
func (s *Service) Close() {
	s.lock.Lock()
	cancel, done, unsubscribe := s.cancel, s.done, s.unsubscribe
	s.cancel, s.done, s.unsubscribe = nil, nil, nil
	s.lock.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Stop()
	}
	if cancel != nil {
		cancel()
		<-done
	}
}

// Login exchanges credentials for a session. API failures, a 401 included,
// are returned unchanged as *api.APIError and never end an existing session.
// Use errors.As to reach the *api.ProblemDetails behind one.
func (s *Service) Login(ctx context.Context, email, password string) error {
	resp, err := api.Post[api.LoginResponse](ctx, s.deps.Client, api.LoginPath, loginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	if resp.AccessToken == "" || !resp.User.Valid() {
		return apperrors.Wrapf(apperrors.ErrInvalidSession, "login response")
	}
	if err := s.deps.Store.Set(ctx, resp.AccessToken, resp.User); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", resp.User.ID).Msg("signed in")
	return nil
}

// Logout ends the session locally. It makes no network call.
func (s *Service) Logout(ctx context.Context) error {
	return s.deps.Store.Clear(ctx)
}

func (s *Service) IsAuthenticated() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.Authenticated
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Service) CurrentUser() *users.Profile {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.User.Clone()
}

func (s *Service) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return State{Authenticated: s.state.Authenticated, User: s.state.User.Clone()}
}

// OnChange calls h with the new state after every store change.
func (s *Service) OnChange(h func(State)) (unsubscribe func()) {
	return s.changes.Subscribe(func() { h(s.State()) })
}

// Client returns the API client bound to this session.
func (s *Service) Client() *api.Client {
	return s.deps.Client
}

// sync re-reads the store. syncLock spans the read and the assignment so a
// slow read can never overwrite the state of a later one.
func (s *Service) sync(ctx context.Context) {
	s.syncLock.Lock()
	session := s.deps.Store.Get(ctx)
	s.lock.Lock()
	s.state = State{Authenticated: session.Valid(), User: session.User}
	s.lock.Unlock()
	s.syncLock.Unlock()

	s.changes.Publish()
}
