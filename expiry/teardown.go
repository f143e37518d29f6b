package expiry

import (
	"context"

	"github.com/jrsteele09/repairshop-client/internal/metrics"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	expiredTitle        = "Session expired"
	signInAgain         = "Please sign in again."
	refreshFailedPrompt = "Your session could not be renewed. Please sign in again."
)

// Teardown ends the session and sends the user back to sign in.
type Teardown struct {
	store     *sessions.Store
	notifier  ui.Notifier
	navigator ui.Navigator
	metrics   metrics.Recorder
	logger    zerolog.Logger
}

type TeardownOption func(*Teardown)

func WithTeardownLogger(logger zerolog.Logger) TeardownOption {
	return func(t *Teardown) {
		t.logger = logger
	}
}

func WithTeardownMetrics(recorder metrics.Recorder) TeardownOption {
	return func(t *Teardown) {
		t.metrics = recorder
	}
}

// NewTeardown creates a Teardown. notifier and navigator may be nil.
func NewTeardown(store *sessions.Store, notifier ui.Notifier, navigator ui.Navigator, options ...TeardownOption) *Teardown {
	t := &Teardown{
		store:     store,
		notifier:  notifier,
		navigator: navigator,
		metrics:   metrics.NoOp{},
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "teardown").Logger()
	return t
}

// Run clears the store, notifies the user and navigates to the sign-in entry
// point unless already there. reason is one of the metrics.Teardown* values.
func (t *Teardown) Run(ctx context.Context, reason string) {
	t.logger.Info().Str("reason", reason).Msg("forcing session teardown")
	t.metrics.RecordTeardown(reason)

	if err := t.store.Clear(ctx); err != nil {
		t.logger.Error().Err(err).Msg("failed to clear session during teardown")
	}
	t.prompt(reason)
}

// RunIf tears down only while the store still holds rawToken. A session
// replaced in the meantime is left alone and false is returned.
func (t *Teardown) RunIf(ctx context.Context, reason, rawToken string) bool {
	cleared, err := t.store.ClearIf(ctx, rawToken)
	if err != nil {
		t.logger.Error().Err(err).Msg("failed to clear session during teardown")
		return false
	}
	if !cleared {
		t.logger.Debug().Str("reason", reason).Msg("session replaced, teardown skipped")
		return false
	}
	t.logger.Info().Str("reason", reason).Msg("forcing session teardown")
	t.metrics.RecordTeardown(reason)
	t.prompt(reason)
	return true
}

func (t *Teardown) prompt(reason string) {
	if t.notifier != nil {
		description := signInAgain
		if reason == metrics.TeardownRefreshFailed {
			description = refreshFailedPrompt
		}
		t.notifier.Notify(ui.LevelError, expiredTitle, description)
	}

	if t.navigator != nil && t.navigator.Location() != ui.LoginPath {
		t.navigator.Navigate(ui.LoginPath)
	}
}
