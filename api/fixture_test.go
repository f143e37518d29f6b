package api_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/repairshop-client/api"
	"github.com/jrsteele09/repairshop-client/expiry"
	"github.com/jrsteele09/repairshop-client/internal/fakeapi"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/sessions/repofakes"
	"github.com/jrsteele09/repairshop-client/ui"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	adminUser = users.Profile{ID: "u-admin", ShopID: "shop-1", Email: "ana@shop.test", DisplayName: "Ana", Role: users.RoleAdmin}
	techUser  = users.Profile{ID: "u-tech", ShopID: "shop-1", Email: "tom@shop.test", DisplayName: "Tom", Role: users.RoleTech}
)

type message struct {
	Level       ui.Level
	Title       string
	Description string
}

type recordingNotifier struct {
	lock     sync.Mutex
	messages []message
}

func (n *recordingNotifier) Notify(level ui.Level, title, description string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.messages = append(n.messages, message{level, title, description})
}

func (n *recordingNotifier) Messages() []message {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]message(nil), n.messages...)
}

type countingRecorder struct {
	lock      sync.Mutex
	refreshes map[string]int
	teardowns map[string]int
	retries   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{refreshes: map[string]int{}, teardowns: map[string]int{}}
}

func (r *countingRecorder) RecordStoreWrite(string) {}
func (r *countingRecorder) RecordRequest(string, int, time.Duration) {}

func (r *countingRecorder) RecordRefresh(outcome string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.refreshes[outcome]++
}

func (r *countingRecorder) RecordRetry(int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.retries++
}

func (r *countingRecorder) RecordTeardown(reason string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.teardowns[reason]++
}

func (r *countingRecorder) Refreshes(outcome string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.refreshes[outcome]
}

func (r *countingRecorder) Teardowns(reason string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.teardowns[reason]
}

func (r *countingRecorder) Retries() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.retries
}

type fixture struct {
	api      *fakeapi.Server
	srv      *httptest.Server
	store    *sessions.Store
	client   *api.Client
	notifier *recordingNotifier
	router   *ui.Router
	metrics  *countingRecorder
	events   atomic.Int32
}

func newFixture(t *testing.T, policy api.RefreshPolicy, options ...fakeapi.Option) *fixture {
	t.Helper()
	options = append([]fakeapi.Option{fakeapi.WithBcryptCost(bcrypt.MinCost), fakeapi.WithRefresh(policy.Enabled)}, options...)

	f := &fixture{
		api:      fakeapi.New(options...),
		notifier: &recordingNotifier{},
		router:   ui.NewRouter("/orders"),
		metrics:  newCountingRecorder(),
	}
	require.NoError(t, f.api.AddUser(adminUser, "secret"))
	require.NoError(t, f.api.AddUser(techUser, "secret"))
	f.srv = httptest.NewServer(f.api)
	t.Cleanup(f.srv.Close)

	f.store = sessions.NewStore(repofakes.NewFakeSessionRepo(), nil)
	t.Cleanup(f.store.Subscribe(func() { f.events.Add(1) }))

	teardown := expiry.NewTeardown(f.store, f.notifier, f.router, expiry.WithTeardownMetrics(f.metrics))
	client, err := api.New(f.srv.URL+fakeapi.BasePath, f.store,
		api.WithRefreshPolicy(policy),
		api.WithTeardown(teardown),
		api.WithMetrics(f.metrics),
	)
	require.NoError(t, err)
	f.client = client
	return f
}

func refreshOn() api.RefreshPolicy {
	p := api.DefaultRefreshPolicy()
	p.Enabled = true
	return p
}

// signIn stores a server-issued session for user and returns its token.
func (f *fixture) signIn(t *testing.T, user users.Profile) string {
	t.Helper()
	tok, err := f.api.IssueToken(user.ID, time.Now().Add(15*time.Minute))
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), tok, &user))
	return tok
}

func (f *fixture) me(ctx context.Context) (users.Profile, error) {
	return api.Get[users.Profile](ctx, f.client, "/auth/me", nil)
}
