package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/repairshop-client/internal/metrics"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Refresher exchanges the stored token for a new one over the raw client,
// which never triggers the 401 handling itself.
type Refresher struct {
	raw      *http.Client
	endpoint string
	store    *sessions.Store
	policy   RefreshPolicy
	group    singleflight.Group
	logger   zerolog.Logger
	metrics  metrics.Recorder
}

type refreshResult struct {
	session sessions.Session
	ok      bool
}

func newRefresher(raw *http.Client, endpoint string, store *sessions.Store, policy RefreshPolicy, logger zerolog.Logger, recorder metrics.Recorder) *Refresher {
	return &Refresher{
		raw:      raw,
		endpoint: endpoint,
		store:    store,
		policy:   policy,
		logger:   logger.With().Str("component", "refresher").Logger(),
		metrics:  recorder,
	}
}

// Refresh refreshes whatever token the store currently holds.
func (r *Refresher) Refresh(ctx context.Context) (sessions.Session, bool) {
	return r.RefreshFrom(ctx, "")
}

// RefreshFrom refreshes on behalf of a request that was sent with used.
// If the store already holds a different valid session, that session is
// returned without a network call. Concurrent refreshes of the same token
// share one request and one store write.
func (r *Refresher) RefreshFrom(ctx context.Context, used string) (sessions.Session, bool) {
	if !r.policy.Enabled {
		r.metrics.RecordRefresh(metrics.RefreshSkipped)
		return sessions.Session{}, false
	}

	current := r.store.Get(ctx)
	if !current.Valid() {
		r.metrics.RecordRefresh(metrics.RefreshSkipped)
		return sessions.Session{}, false
	}
	if used != "" && current.Token != used {
		r.metrics.RecordRefresh(metrics.RefreshSkipped)
		return current, true
	}

	v, _, _ := r.group.Do(current.Token, func() (any, error) {
		return r.refresh(ctx, current.Token), nil
	})
	res := v.(refreshResult)
	return res.session, res.ok
}

func (r *Refresher) refresh(ctx context.Context, tok string) refreshResult {
	// A flight for tok may have completed between the caller's read and Do.
	if latest := r.store.Get(ctx); latest.Token != tok {
		r.metrics.RecordRefresh(metrics.RefreshSkipped)
		return refreshResult{session: latest, ok: latest.Valid()}
	}

	issued, err := r.post(ctx, tok)
	if err != nil {
		r.logger.Warn().Err(err).Msg("token refresh failed")
		r.metrics.RecordRefresh(metrics.RefreshFailure)
		return refreshResult{}
	}

	latest := r.store.Get(ctx)
	if latest.Token != tok && r.policy.StaleResult == StaleDiscard {
		r.logger.Info().Bool("session_present", latest.Valid()).Msg("discarding refresh result, session changed while refreshing")
		r.metrics.RecordRefresh(metrics.RefreshStale)
		return refreshResult{session: latest, ok: latest.Valid()}
	}

	if err := r.store.Set(ctx, issued.AccessToken, issued.User); err != nil {
		r.logger.Error().Err(err).Msg("failed to store refreshed session")
		r.metrics.RecordRefresh(metrics.RefreshFailure)
		return refreshResult{}
	}
	r.metrics.RecordRefresh(metrics.RefreshSuccess)
	return refreshResult{session: sessions.Session{Token: issued.AccessToken, User: issued.User.Clone()}, ok: true}
}

func (r *Refresher) post(ctx context.Context, tok string) (*LoginResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set(AuthorizationHeader, "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	resp, err := r.raw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &APIError{
			Method:        http.MethodPost,
			Path:          r.endpoint,
			Status:        resp.StatusCode,
			Problem:       &ProblemDetails{Title: "refresh rejected", Status: resp.StatusCode},
			CorrelationID: correlationOf(resp),
		}
	}

	var envelope Envelope[LoginResponse]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.Data.AccessToken == "" || !envelope.Data.User.Valid() {
		return nil, errMalformedRefresh
	}
	return &envelope.Data, nil
}
