package sessions

import (
	"context"
	"encoding/json"
	"sync"

	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
	"github.com/jrsteele09/repairshop-client/internal/metrics"
	"github.com/jrsteele09/repairshop-client/token"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Store is the credential store: the single owner of the persisted session.
// Every mutation is one atomic medium write followed by exactly one change event.
type Store struct {
	repo     Repo
	notifier *Notifier
	lock     sync.RWMutex
	logger   zerolog.Logger
	metrics  metrics.Recorder
}

var _ oauth2.TokenSource = (*Store)(nil)

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(recorder metrics.Recorder) StoreOption {
	return func(s *Store) {
		s.metrics = recorder
	}
}

// NewStore creates a store over repo. A nil notifier gets a fresh one.
func NewStore(repo Repo, notifier *Notifier, options ...StoreOption) *Store {
	if notifier == nil {
		notifier = NewNotifier()
	}
	s := &Store{
		repo:     repo,
		notifier: notifier,
		logger:   log.Logger,
		metrics:  metrics.NoOp{},
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "session_store").Logger()
	return s
}

// Notifier returns the change notifier the store publishes to.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// Subscribe is shorthand for s.Notifier().Subscribe.
func (s *Store) Subscribe(h Handler) (unsubscribe func()) {
	return s.notifier.Subscribe(h)
}

// Get returns the current session. A medium failure or a half-present record reads as no session.
func (s *Store) Get(ctx context.Context) Session {
	s.lock.RLock()
	rec, err := s.repo.Load(ctx)
	s.lock.RUnlock()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load session")
		return Session{}
	}
	return s.decode(rec)
}

func (s *Store) decode(rec Record) Session {
	if rec.Empty() {
		return Session{}
	}
	var user users.Profile
	if err := json.Unmarshal([]byte(rec.User), &user); err != nil {
		s.logger.Warn().Err(err).Msg("stored user profile is not valid JSON")
		return Session{}
	}
	sess := Session{Token: rec.Token, User: &user}
	if !sess.Valid() {
		return Session{}
	}
	return sess
}

// Set stores a new session and publishes one change event.
func (s *Store) Set(ctx context.Context, rawToken string, user *users.Profile) error {
	sess := Session{Token: rawToken, User: user.Clone()}
	if !sess.Valid() {
		return apperrors.ErrInvalidSession
	}

	b, err := json.Marshal(sess.User)
	if err != nil {
		return apperrors.Wrapf(err, "failed to encode user profile")
	}

	s.lock.Lock()
	err = s.repo.Save(ctx, Record{Token: sess.Token, User: string(b)})
	s.lock.Unlock()
	if err != nil {
		return apperrors.Wrapf(err, "failed to save session")
	}

	s.logger.Debug().Str("user_id", sess.User.ID).Msg("session stored")
	s.metrics.RecordStoreWrite("set")
	s.notifier.Publish()
	return nil
}

// Clear removes the session. It always publishes, even when nothing was stored.
func (s *Store) Clear(ctx context.Context) error {
	s.lock.Lock()
	err := s.repo.Delete(ctx)
	s.lock.Unlock()
	if err != nil {
		return apperrors.Wrapf(err, "failed to clear session")
	}

	s.logger.Debug().Msg("session cleared")
	s.metrics.RecordStoreWrite("clear")
	s.notifier.Publish()
	return nil
}

// ClearIf removes the session only while the medium still holds rawToken.
// It publishes one change event when it cleared and reports whether it did.
func (s *Store) ClearIf(ctx context.Context, rawToken string) (bool, error) {
	s.lock.Lock()
	rec, err := s.repo.Load(ctx)
	if err != nil {
		s.lock.Unlock()
		return false, apperrors.Wrapf(err, "failed to load session")
	}
	if rec.Token != rawToken {
		s.lock.Unlock()
		return false, nil
	}
	err = s.repo.Delete(ctx)
	s.lock.Unlock()
	if err != nil {
		return false, apperrors.Wrapf(err, "failed to clear session")
	}

	s.logger.Debug().Msg("session cleared")
	s.metrics.RecordStoreWrite("clear")
	s.notifier.Publish()
	return true, nil
}

// Token implements oauth2.TokenSource over the stored bearer token. Expiry is advisory.
func (s *Store) Token() (*oauth2.Token, error) {
	sess := s.Get(context.Background())
	if !sess.Valid() {
		return nil, apperrors.ErrNoSession
	}
	t := &oauth2.Token{
		AccessToken: sess.Token,
		TokenType:   "Bearer",
	}
	if exp, ok := token.DecodeExpiry(sess.Token); ok {
		t.Expiry = exp
	}
	return t, nil
}
