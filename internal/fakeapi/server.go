// Package fakeapi is an in-process stand-in for the repair shop API. It
// issues real HS256 tokens, checks bcrypt passwords and lets tests force the
// failures the session client has to survive.
package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	BasePath          = "/api/v1"
	DefaultTokenTTL   = 15 * time.Minute
	correlationHeader = "X-Correlation-Id"
)

// Request is one request as the server saw it.
type Request struct {
	Method        string
	Path          string
	Authorization string
	CorrelationID string
	Status        int
}

type account struct {
	profile users.Profile
	hash    []byte
}

type Server struct {
	signer  *Signer
	ttl     time.Duration
	refresh bool
	now     func() time.Time
	cost    int
	logger  zerolog.Logger
	router  chi.Router

	lock        sync.Mutex
	accounts    map[string]*account
	revoked     map[string]struct{}
	failNext    int
	failRefresh int
	refreshHook func()
	refreshes   int
	requests    []Request
	data        *dataStore
}

type Option func(*Server)

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.ttl = ttl
	}
}

// WithRefresh enables POST /auth/refresh. Without it the endpoint is 404.
func WithRefresh(enabled bool) Option {
	return func(s *Server) {
		s.refresh = enabled
	}
}

func WithSecret(secret string) Option {
	return func(s *Server) {
		s.signer = NewSigner(secret)
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.cost = cost
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(options ...Option) *Server {
	s := &Server{
		signer:   NewSigner(""),
		ttl:      DefaultTokenTTL,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
		logger:   log.Logger,
		accounts: make(map[string]*account),
		revoked:  make(map[string]struct{}),
		data:     newDataStore(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "fakeapi").Logger()
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.correlate)

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh", s.refreshToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/me", s.me)
			s.mountResources(r)
		})
	})
	return r
}

// AddUser registers an account that can log in with password.
func (s *Server) AddUser(profile users.Profile, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.accounts[strings.ToLower(profile.Email)] = &account{profile: profile, hash: hash}
	return nil
}

// IssueToken mints a token for a registered user with an explicit expiry.
func (s *Server) IssueToken(userID string, expiresAt time.Time) (string, error) {
	acct := s.accountByID(userID)
	if acct == nil {
		return "", errors.Errorf("unknown user %q", userID)
	}
	return s.signer.Mint(&acct.profile, s.now(), expiresAt)
}

// Revoke makes every later request with tok fail with 401.
func (s *Server) Revoke(tok string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.revoked[tok] = struct{}{}
}

// FailNext makes the next n authenticated requests fail with 401.
func (s *Server) FailNext(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failNext = n
}

// FailRefresh makes the next n refresh requests fail with 401.
func (s *Server) FailRefresh(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failRefresh = n
}

// OnRefresh sets a hook that runs before each refresh is answered.
func (s *Server) OnRefresh(hook func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshHook = hook
}

// RefreshCount returns how many refresh requests were received.
func (s *Server) RefreshCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.refreshes
}

// Requests returns a copy of every request recorded so far.
func (s *Server) Requests() []Request {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the recorded requests whose path ends with suffix.
func (s *Server) RequestsTo(suffix string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if strings.HasSuffix(r.Path, suffix) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) accountByID(id string) *account {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, a := range s.accounts {
		if a.profile.ID == id {
			return a
		}
	}
	return nil
}

// correlate echoes the caller's correlation id, or assigns one, and records the
// request before it is handled. Status is filled in once the handler returns.
func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(correlationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(correlationHeader, cid)

		s.lock.Lock()
		index := len(s.requests)
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			CorrelationID: cid,
		})
		s.lock.Unlock()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.lock.Lock()
		s.requests[index].Status = ww.Status()
		s.lock.Unlock()
	})
}

type userKey struct{}

func userFrom(ctx context.Context) users.Profile {
	p, _ := ctx.Value(userKey{}).(users.Profile)
	return p
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token", nil)
			return
		}

		s.lock.Lock()
		forced := s.failNext > 0
		if forced {
			s.failNext--
		}
		_, revoked := s.revoked[raw]
		s.lock.Unlock()
		if forced || revoked {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "token rejected", nil)
			return
		}

		claims, err := s.signer.Verify(raw, s.now(), false)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), nil)
			return
		}
		sub, _ := claims["sub"].(string)
		acct := s.accountByID(sub)
		if acct == nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "unknown subject", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, acct.profile)))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"accessToken"`
	User        *users.Profile `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request body", err.Error(), nil)
		return
	}
	fieldErrors := map[string][]string{}
	if req.Email == "" {
		fieldErrors["Email"] = []string{"The Email field is required."}
	}
	if req.Password == "" {
		fieldErrors["Password"] = []string{"The Password field is required."}
	}
	if len(fieldErrors) > 0 {
		writeProblem(w, http.StatusBadRequest, "One or more validation errors occurred.", "", fieldErrors)
		return
	}

	s.lock.Lock()
	acct := s.accounts[strings.ToLower(req.Email)]
	s.lock.Unlock()
	if acct == nil || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeProblem(w, http.StatusUnauthorized, "Invalid credentials", "", nil)
		return
	}

	s.issue(w, acct)
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	if !s.refresh {
		writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
		return
	}

	s.lock.Lock()
	s.refreshes++
	hook := s.refreshHook
	failing := s.failRefresh > 0
	if failing {
		s.failRefresh--
	}
	s.lock.Unlock()

	if hook != nil {
		hook()
	}
	if failing {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "refresh rejected", nil)
		return
	}

	raw := bearer(r)
	s.lock.Lock()
	_, revoked := s.revoked[raw]
	s.lock.Unlock()
	if raw == "" || revoked {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "refresh rejected", nil)
		return
	}

	claims, err := s.signer.Verify(raw, s.now(), true)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), nil)
		return
	}
	sub, _ := claims["sub"].(string)
	acct := s.accountByID(sub)
	if acct == nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "unknown subject", nil)
		return
	}

	s.Revoke(raw)
	s.issue(w, acct)
}

func (s *Server) issue(w http.ResponseWriter, acct *account) {
	now := s.now()
	tok, err := s.signer.Mint(&acct.profile, now, now.Add(s.ttl))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to mint token")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return
	}
	user := acct.profile
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: tok, User: &user})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	writeJSON(w, http.StatusOK, &user)
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

type envelope struct {
	Data any `json:"data"`
}

type problem struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string, fieldErrors map[string][]string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Errors: fieldErrors,
	})
}
