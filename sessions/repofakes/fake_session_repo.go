package repofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/repairshop-client/sessions"
)

// Medium is an in-memory stand-in for a durable store shared by several
// running clients. Each client opens its own handle; a write through one
// handle is reported to the watchers of every other handle, asynchronously.
type Medium struct {
	lock     sync.RWMutex
	record   sessions.Record
	watchers map[*FakeSessionRepo]map[int]func()
	nextID   int
}

// NewMedium creates an empty shared medium.
func NewMedium() *Medium {
	return &Medium{
		watchers: make(map[*FakeSessionRepo]map[int]func()),
	}
}

// Open returns a new handle onto the medium.
func (m *Medium) Open() *FakeSessionRepo {
	return &FakeSessionRepo{medium: m}
}

// Record returns the raw stored record.
func (m *Medium) Record() sessions.Record {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.record
}

// Put writes a raw record without going through any handle, as another
// process would. Every watcher is notified.
func (m *Medium) Put(rec sessions.Record) {
	m.write(nil, rec)
}

// WatcherCount returns the number of active watchers across all handles.
func (m *Medium) WatcherCount() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	n := 0
	for _, w := range m.watchers {
		n += len(w)
	}
	return n
}

func (m *Medium) write(from *FakeSessionRepo, rec sessions.Record) {
	m.lock.Lock()
	m.record = rec
	var notify []func()
	for owner, ws := range m.watchers {
		if owner == from {
			continue
		}
		for _, fn := range ws {
			notify = append(notify, fn)
		}
	}
	m.lock.Unlock()

	for _, fn := range notify {
		go fn()
	}
}

// FakeSessionRepo is one client's handle onto a Medium.
type FakeSessionRepo struct {
	medium *Medium
	lock   sync.Mutex
	err    error
}

var (
	_ sessions.Repo    = (*FakeSessionRepo)(nil)
	_ sessions.Watcher = (*FakeSessionRepo)(nil)
)

// NewFakeSessionRepo returns a handle onto a private medium.
func NewFakeSessionRepo() *FakeSessionRepo {
	return NewMedium().Open()
}

// Medium returns the shared medium behind this handle.
func (r *FakeSessionRepo) Medium() *Medium {
	return r.medium
}

// FailWith makes every following call return err until cleared with nil.
func (r *FakeSessionRepo) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.err = err
}

func (r *FakeSessionRepo) failure() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.err
}

func (r *FakeSessionRepo) Load(ctx context.Context) (sessions.Record, error) {
	if err := r.failure(); err != nil {
		return sessions.Record{}, err
	}
	return r.medium.Record(), nil
}

func (r *FakeSessionRepo) Save(ctx context.Context, rec sessions.Record) error {
	if err := r.failure(); err != nil {
		return err
	}
	r.medium.write(r, rec)
	return nil
}

func (r *FakeSessionRepo) Delete(ctx context.Context) error {
	if err := r.failure(); err != nil {
		return err
	}
	r.medium.write(r, sessions.Record{})
	return nil
}

// Watch reports writes made through other handles until ctx is done.
func (r *FakeSessionRepo) Watch(ctx context.Context, onChange func()) error {
	m := r.medium
	m.lock.Lock()
	if m.watchers[r] == nil {
		m.watchers[r] = make(map[int]func())
	}
	id := m.nextID
	m.nextID++
	m.watchers[r][id] = onChange
	m.lock.Unlock()

	<-ctx.Done()

	m.lock.Lock()
	delete(m.watchers[r], id)
	if len(m.watchers[r]) == 0 {
		delete(m.watchers, r)
	}
	m.lock.Unlock()
	return ctx.Err()
}
