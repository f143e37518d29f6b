package sessions

import "context"

// Repo is the durable medium that holds the session keys.
// It may be shared by several running clients at once.
type Repo interface {
	// Load returns the stored record, or an empty Record when nothing is stored
	Load(ctx context.Context) (Record, error)

	// Save writes both keys in a single atomic operation
	Save(ctx context.Context, rec Record) error

	// Delete removes both keys; deleting an absent session is not an error
	Delete(ctx context.Context) error
}

// Watcher observes changes made to the medium by other processes.
type Watcher interface {
	// Watch calls onChange for every external change until ctx is done.
	// It may also report changes made by this process; handlers must be idempotent.
	Watch(ctx context.Context, onChange func()) error
}
