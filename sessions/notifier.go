package sessions

import "sync"

// Handler is called after every session change, local or external.
type Handler func()

// Notifier is the in-process change channel for the credential store.
// Handlers run on the publishing goroutine and outside the notifier lock,
// so they may read or write the store again.
type Notifier struct {
	lock     sync.Mutex
	handlers map[uint64]Handler
	nextID   uint64
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		handlers: make(map[uint64]Handler),
	}
}

// Subscribe registers h and returns a function that removes it. Calling the
// returned function more than once is safe.
func (n *Notifier) Subscribe(h Handler) (unsubscribe func()) {
	n.lock.Lock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = h
	n.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.lock.Lock()
			delete(n.handlers, id)
			n.lock.Unlock()
		})
	}
}

// Publish delivers one change event to every current subscriber.
func (n *Notifier) Publish() {
	n.lock.Lock()
	handlers := make([]Handler, 0, len(n.handlers))
	for _, h := range n.handlers {
		handlers = append(handlers, h)
	}
	n.lock.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.handlers)
}
