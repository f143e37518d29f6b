package redisrepo_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/sessions/redisrepo"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*mr.Miniredis, *redis.Client) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, client
}

func TestRepo_SaveLoadDelete(t *testing.T) {
	m, client := newClient(t)
	repo := redisrepo.New(client, redisrepo.WithNamespace("test"))
	ctx := context.Background()

	rec, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, rec.Empty())

	want := sessions.Record{Token: "tok-1", User: `{"id":"u1"}`}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	v, err := m.Get("test.token")
	require.NoError(t, err)
	require.Equal(t, "tok-1", v)

	require.NoError(t, repo.Delete(ctx))
	require.False(t, m.Exists("test.token"))
	require.False(t, m.Exists("test.user"))
	require.NoError(t, repo.Delete(ctx))
}

func TestRepo_HalfPresentIsEmpty(t *testing.T) {
	m, client := newClient(t)
	repo := redisrepo.New(client)

	require.NoError(t, m.Set(sessions.TokenKey, "tok-only"))

	rec, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, rec.Empty())
}

func TestRepo_WatchIgnoresOwnWrites(t *testing.T) {
	m, client := newClient(t)
	mine := redisrepo.New(client)
	theirs := redisrepo.New(client)
	require.NotEqual(t, mine.InstanceID(), theirs.InstanceID())

	var changes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mine.Watch(ctx, func() { changes.Add(1) }) }()
	require.Eventually(t, func() bool {
		return m.PubSubNumSub(mine.Channel())[mine.Channel()] == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, mine.Save(context.Background(), sessions.Record{Token: "a", User: `{"id":"u1"}`}))
	require.NoError(t, theirs.Save(context.Background(), sessions.Record{Token: "b", User: `{"id":"u1"}`}))
	require.NoError(t, theirs.Delete(context.Background()))

	require.Eventually(t, func() bool { return changes.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(2), changes.Load())

	cancel()
	<-done
}

func TestRepo_StoresShareSessionAcrossInstances(t *testing.T) {
	m, client := newClient(t)
	repoA := redisrepo.New(client)
	repoB := redisrepo.New(client)
	storeA := sessions.NewStore(repoA, nil)
	storeB := sessions.NewStore(repoB, nil)

	var seen atomic.Value
	storeB.Subscribe(func() { seen.Store(storeB.Get(context.Background()).Token) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sessions.Listen(ctx, repoB, storeB.Notifier()) }()
	require.Eventually(t, func() bool {
		return m.PubSubNumSub(repoB.Channel())[repoB.Channel()] == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, storeA.Set(context.Background(), "tok-a", &users.Profile{ID: "u1"}))
	require.Eventually(t, func() bool {
		v, _ := seen.Load().(string)
		return v == "tok-a"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, storeA.Clear(context.Background()))
	require.Eventually(t, func() bool {
		v, _ := seen.Load().(string)
		return v == ""
	}, time.Second, 5*time.Millisecond)
}
