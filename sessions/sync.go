package sessions

import (
	"context"
	"errors"
)

// Listen re-emits changes made to the medium from other processes as ordinary
// change events, so subscribers cannot tell a remote change from a local one.
// It blocks until ctx is done or the watcher fails.
func Listen(ctx context.Context, watcher Watcher, notifier *Notifier) error {
	err := watcher.Watch(ctx, notifier.Publish)
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
