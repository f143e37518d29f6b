package expiry_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/repairshop-client/expiry"
	"github.com/jrsteele09/repairshop-client/internal/fakeapi"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/sessions/repofakes"
	"github.com/jrsteele09/repairshop-client/ui"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.lock.Lock()
	defer t.clock.lock.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock fires due timers synchronously from Advance, earliest first.
type fakeClock struct {
	lock   sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) expiry.Timer {
	c.lock.Lock()
	defer c.lock.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending returns the fire times of timers neither stopped nor fired.
func (c *fakeClock) Pending() []time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	var out []time.Time
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	target := c.now.Add(d)
	c.lock.Unlock()

	for {
		c.lock.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.lock.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.lock.Unlock()

		next.f()
	}
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(level ui.Level, title, description string) {
	m.Called(level, title, description)
}

type stubRefresher struct {
	lock    sync.Mutex
	calls   int
	refresh func(ctx context.Context) (sessions.Session, bool)
}

func (r *stubRefresher) Refresh(ctx context.Context) (sessions.Session, bool) {
	r.lock.Lock()
	r.calls++
	r.lock.Unlock()
	return r.refresh(ctx)
}

func (r *stubRefresher) Calls() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.calls
}

var user = &users.Profile{ID: "u1", ShopID: "s1", Email: "ana@shop.test", Role: users.RoleTech}

type schedulerFixture struct {
	clock     *fakeClock
	store     *sessions.Store
	notifier  *mockNotifier
	router    *ui.Router
	refresher *stubRefresher
	scheduler *expiry.Scheduler
}

func newSchedulerFixture(t *testing.T, policy expiry.Policy) *schedulerFixture {
	t.Helper()
	return newSchedulerFixtureOn(t, policy, repofakes.NewFakeSessionRepo())
}

func newSchedulerFixtureOn(t *testing.T, policy expiry.Policy, repo sessions.Repo) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		clock:     newFakeClock(),
		store:     sessions.NewStore(repo, nil),
		notifier:  &mockNotifier{},
		router:    ui.NewRouter("/orders"),
		refresher: &stubRefresher{},
	}
	f.refresher.refresh = func(context.Context) (sessions.Session, bool) { return sessions.Session{}, false }
	teardown := expiry.NewTeardown(f.store, f.notifier, f.router)
	f.scheduler = expiry.NewScheduler(f.store, f.refresher, teardown, policy, expiry.WithClock(f.clock))
	t.Cleanup(f.scheduler.Stop)
	return f
}

func (f *schedulerFixture) setToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	tok := fakeapi.MintToken(user.ID, f.clock.Now().Add(expiresIn))
	require.NoError(t, f.store.Set(context.Background(), tok, user))
	return tok
}

func (f *schedulerFixture) expectTeardown(description string) {
	f.notifier.On("Notify", ui.LevelError, "Session expired", description).Once()
}

var (
	refreshDisabled = expiry.Policy{RefreshEnabled: false, RefreshLead: 60 * time.Second, ForcedLogoutSkew: 2 * time.Second}
	refreshEnabled  = expiry.Policy{RefreshEnabled: true, RefreshLead: 60 * time.Second, ForcedLogoutSkew: 2 * time.Second}
)

func TestScheduler_EmptyStoreIsDisarmed(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())

	require.Empty(t, f.clock.Pending())
	require.False(t, f.scheduler.Status().Armed())
}

func TestScheduler_BackstopOnlyWhenRefreshDisabled(t *testing.T) {
	f := newSchedulerFixture(t, refreshDisabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, time.Hour)

	exp := epoch.Add(time.Hour)
	require.Equal(t, []time.Time{exp.Add(-2 * time.Second)}, f.clock.Pending())
	require.Equal(t, exp, f.scheduler.Status().ExpiresAt)
	require.True(t, f.scheduler.Status().RefreshAt.IsZero())

	f.clock.Advance(time.Hour - 3*time.Second)
	require.True(t, f.store.Get(context.Background()).Valid())
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)

	f.expectTeardown("Please sign in again.")
	f.clock.Advance(time.Second)
	require.True(t, f.store.Get(context.Background()).IsZero())
	require.Equal(t, ui.LoginPath, f.router.Location())
	require.Empty(t, f.clock.Pending())
	f.notifier.AssertExpectations(t)
}

func TestScheduler_RefreshBeforeExpiry(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())

	var renewed string
	f.refresher.refresh = func(ctx context.Context) (sessions.Session, bool) {
		renewed = fakeapi.MintToken(user.ID, f.clock.Now().Add(time.Hour))
		require.NoError(t, f.store.Set(ctx, renewed, user))
		return f.store.Get(ctx), true
	}

	f.setToken(t, time.Hour)
	exp := epoch.Add(time.Hour)
	require.Equal(t, []time.Time{exp.Add(-60 * time.Second), exp.Add(-2 * time.Second)}, f.clock.Pending())

	f.clock.Advance(time.Hour - 60*time.Second)
	require.Equal(t, 1, f.refresher.Calls())
	require.Equal(t, renewed, f.store.Get(context.Background()).Token)

	// The old backstop is gone; the new token is armed from the refresh time.
	refreshedAt := exp.Add(-60 * time.Second)
	require.Equal(t, []time.Time{
		refreshedAt.Add(time.Hour - 60*time.Second),
		refreshedAt.Add(time.Hour - 2*time.Second),
	}, f.clock.Pending())
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_RefreshFailureTearsDown(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, time.Hour)

	f.expectTeardown("Your session could not be renewed. Please sign in again.")
	f.clock.Advance(time.Hour - 60*time.Second)

	require.Equal(t, 1, f.refresher.Calls())
	require.True(t, f.store.Get(context.Background()).IsZero())
	require.Empty(t, f.clock.Pending())
	f.notifier.AssertExpectations(t)
}

func TestScheduler_RefreshFailureAfterReplacementKeepsSession(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, time.Hour)

	var replacement string
	f.refresher.refresh = func(ctx context.Context) (sessions.Session, bool) {
		replacement = fakeapi.MintToken("u2", f.clock.Now().Add(2*time.Hour))
		require.NoError(t, f.store.Set(ctx, replacement, user))
		return sessions.Session{}, false
	}

	f.clock.Advance(time.Hour - 60*time.Second)
	require.Equal(t, replacement, f.store.Get(context.Background()).Token)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_LeadLongerThanRemainingSkipsRefresh(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, 30*time.Second)

	require.Equal(t, []time.Time{epoch.Add(28 * time.Second)}, f.clock.Pending())
}

func TestScheduler_AlreadyExpiredTearsDownDuringArm(t *testing.T) {
	for name, remaining := range map[string]time.Duration{
		"past":        -time.Minute,
		"within skew": time.Second,
		"at skew":     2 * time.Second,
	} {
		t.Run(name, func(t *testing.T) {
			f := newSchedulerFixture(t, refreshEnabled)
			tok := fakeapi.MintToken(user.ID, epoch.Add(remaining))
			require.NoError(t, f.store.Set(context.Background(), tok, user))

			f.expectTeardown("Please sign in again.")
			f.scheduler.Start(context.Background())

			require.True(t, f.store.Get(context.Background()).IsZero())
			require.Empty(t, f.clock.Pending())
			require.Zero(t, f.refresher.Calls())
			f.notifier.AssertExpectations(t)
		})
	}
}

func TestScheduler_UnreadableExpiryLeavesSessionUsable(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())
	require.NoError(t, f.store.Set(context.Background(), "opaque-token", user))

	require.Empty(t, f.clock.Pending())
	require.True(t, f.store.Get(context.Background()).Valid())
}

func TestScheduler_ClearDisarms(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, time.Hour)
	require.Len(t, f.clock.Pending(), 2)

	require.NoError(t, f.store.Clear(context.Background()))
	require.Empty(t, f.clock.Pending())

	f.clock.Advance(2 * time.Hour)
	require.Zero(t, f.refresher.Calls())
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_ReplacementRearms(t *testing.T) {
	f := newSchedulerFixture(t, refreshDisabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, time.Hour)
	f.setToken(t, 3*time.Hour)

	require.Equal(t, []time.Time{epoch.Add(3*time.Hour - 2*time.Second)}, f.clock.Pending())

	f.clock.Advance(2 * time.Hour)
	require.True(t, f.store.Get(context.Background()).Valid())
}

func TestScheduler_RedundantEventsKeepOneSetOfTimers(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, time.Hour)

	for range 3 {
		f.store.Notifier().Publish()
	}
	require.Len(t, f.clock.Pending(), 2)
}

func TestScheduler_StopDisarms(t *testing.T) {
	f := newSchedulerFixture(t, refreshEnabled)
	f.scheduler.Start(context.Background())
	f.setToken(t, time.Hour)

	f.scheduler.Stop()
	require.Empty(t, f.clock.Pending())

	f.setToken(t, time.Hour)
	require.Empty(t, f.clock.Pending())
}

// pausingRepo holds the next Load after it has read the medium, until released.
type pausingRepo struct {
	sessions.Repo
	lock    sync.Mutex
	loaded  chan struct{}
	release chan struct{}
}

func (r *pausingRepo) pauseNextLoad() (loaded <-chan struct{}, release func()) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.loaded = make(chan struct{})
	r.release = make(chan struct{})
	return r.loaded, func() { close(r.release) }
}

func (r *pausingRepo) Load(ctx context.Context) (sessions.Record, error) {
	rec, err := r.Repo.Load(ctx)
	r.lock.Lock()
	loaded, release := r.loaded, r.release
	r.loaded, r.release = nil, nil
	r.lock.Unlock()
	if loaded != nil {
		close(loaded)
		<-release
	}
	return rec, err
}

// rearmWhileHeld starts a rearm that reads the current session and then
// pauses, writes next through a second client on the same medium, rearms for
// it as the watcher would, and lets the first rearm finish.
func rearmWhileHeld(t *testing.T, f *schedulerFixture, repo *pausingRepo, medium *repofakes.Medium, next string) {
	t.Helper()
	ctx := context.Background()
	loaded, release := repo.pauseNextLoad()

	first := make(chan struct{})
	go func() {
		defer close(first)
		f.scheduler.Rearm(ctx)
	}()
	<-loaded

	other := sessions.NewStore(medium.Open(), nil)
	require.NoError(t, other.Set(ctx, next, user))

	second := make(chan struct{})
	go func() {
		defer close(second)
		f.scheduler.Rearm(ctx)
	}()
	select {
	case <-second:
	case <-time.After(50 * time.Millisecond):
	}
	release()

	for _, done := range []chan struct{}{first, second} {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("rearm did not finish")
		}
	}
}

func TestScheduler_OverlappingRearmsKeepTheNewestSession(t *testing.T) {
	medium := repofakes.NewMedium()
	repo := &pausingRepo{Repo: medium.Open()}
	f := newSchedulerFixtureOn(t, refreshDisabled, repo)
	f.setToken(t, time.Hour)

	newer := fakeapi.MintToken(user.ID, epoch.Add(2*time.Hour))
	rearmWhileHeld(t, f, repo, medium, newer)

	require.Equal(t, epoch.Add(2*time.Hour), f.scheduler.Status().ExpiresAt)
	require.Equal(t, []time.Time{epoch.Add(2*time.Hour - 2*time.Second)}, f.clock.Pending())

	f.clock.Advance(90 * time.Minute)
	require.Equal(t, newer, f.store.Get(context.Background()).Token)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)

	f.expectTeardown("Please sign in again.")
	f.clock.Advance(time.Hour)
	require.True(t, f.store.Get(context.Background()).IsZero())
	f.notifier.AssertExpectations(t)
}

func TestScheduler_ExpiredReadDoesNotClearAReplacement(t *testing.T) {
	medium := repofakes.NewMedium()
	repo := &pausingRepo{Repo: medium.Open()}
	f := newSchedulerFixtureOn(t, refreshDisabled, repo)
	f.setToken(t, -time.Minute)

	fresh := fakeapi.MintToken(user.ID, epoch.Add(time.Hour))
	rearmWhileHeld(t, f, repo, medium, fresh)

	require.Equal(t, fresh, f.store.Get(context.Background()).Token)
	require.Equal(t, []time.Time{epoch.Add(time.Hour - 2*time.Second)}, f.clock.Pending())
	require.Equal(t, "/orders", f.router.Location())
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestTeardown_RunIfKeepsAReplacedSession(t *testing.T) {
	store := sessions.NewStore(repofakes.NewFakeSessionRepo(), nil)
	require.NoError(t, store.Set(context.Background(), "new", user))
	notifier := &mockNotifier{}
	router := ui.NewRouter("/orders")
	teardown := expiry.NewTeardown(store, notifier, router)

	require.False(t, teardown.RunIf(context.Background(), "expired", "old"))
	require.Equal(t, "new", store.Get(context.Background()).Token)
	require.Equal(t, "/orders", router.Location())
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)

	notifier.On("Notify", ui.LevelError, "Session expired", "Please sign in again.").Once()
	require.True(t, teardown.RunIf(context.Background(), "expired", "new"))
	require.True(t, store.Get(context.Background()).IsZero())
	require.Equal(t, ui.LoginPath, router.Location())
	notifier.AssertExpectations(t)
}

func TestTeardown_AlreadyOnLoginPage(t *testing.T) {
	store := sessions.NewStore(repofakes.NewFakeSessionRepo(), nil)
	require.NoError(t, store.Set(context.Background(), "tok", user))

	notifier := &mockNotifier{}
	notifier.On("Notify", ui.LevelError, "Session expired", "Please sign in again.").Once()
	router := ui.NewRouter(ui.LoginPath)
	navigations := 0
	router.OnNavigate = func(string) { navigations++ }

	expiry.NewTeardown(store, notifier, router).Run(context.Background(), "unauthorized")

	require.True(t, store.Get(context.Background()).IsZero())
	require.Zero(t, navigations)
	notifier.AssertExpectations(t)
}

func TestTeardown_NilCollaborators(t *testing.T) {
	store := sessions.NewStore(repofakes.NewFakeSessionRepo(), nil)
	require.NoError(t, store.Set(context.Background(), "tok", user))

	expiry.NewTeardown(store, nil, nil).Run(context.Background(), "expired")
	require.True(t, store.Get(context.Background()).IsZero())
}
