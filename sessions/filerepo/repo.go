// Package filerepo keeps the session in a JSON file so that several client
// processes on one machine share it. Writes are atomic (temp file + rename)
// and changes are observed with fsnotify.
package filerepo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileName is the session document inside the store directory.
const FileName = sessions.Namespace + ".json"

type document struct {
	Token string `json:"repairshop.token,omitempty"`
	User  string `json:"repairshop.user,omitempty"`
}

// Repo is a file backed sessions.Repo and sessions.Watcher.
type Repo struct {
	dir    string
	path   string
	logger zerolog.Logger
}

var (
	_ sessions.Repo    = (*Repo)(nil)
	_ sessions.Watcher = (*Repo)(nil)
)

type Option func(*Repo)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Repo) {
		r.logger = logger
	}
}

// New creates the directory if needed and returns a repo rooted there.
func New(dir string, options ...Option) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create session dir %s", dir)
	}
	r := &Repo{
		dir:    dir,
		path:   filepath.Join(dir, FileName),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Path returns the session document path.
func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) Load(ctx context.Context) (sessions.Record, error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sessions.Record{}, nil
		}
		return sessions.Record{}, errors.Wrap(err, "failed to read session file")
	}
	if len(b) == 0 {
		return sessions.Record{}, nil
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return sessions.Record{}, errors.Wrap(err, "failed to decode session file")
	}
	return sessions.Record{Token: doc.Token, User: doc.User}, nil
}

func (r *Repo) Save(ctx context.Context, rec sessions.Record) error {
	b, err := json.Marshal(document{Token: rec.Token, User: rec.User})
	if err != nil {
		return errors.Wrap(err, "failed to encode session file")
	}

	tmp, err := os.CreateTemp(r.dir, "."+sessions.Namespace+"-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp session file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp session file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync temp session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp session file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.Wrap(err, "failed to chmod temp session file")
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return errors.Wrap(err, "failed to replace session file")
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context) error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove session file")
	}
	return nil
}

// Watch reports every change to the session file until ctx is done.
// Writes made by this process are reported too.
func (r *Repo) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer w.Close()

	// Watch the directory: the file itself is replaced on every write.
	if err := w.Add(r.dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", r.dir)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != FileName {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn().Err(err).Str("dir", r.dir).Msg("session file watcher error")
		}
	}
}
