// Package redisrepo keeps the session in Redis so that clients on several
// machines share it. Both keys are written in one MULTI/EXEC and every write
// is announced on a pub/sub channel tagged with the writer's instance id.
package redisrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Repo implements sessions.Repo and sessions.Watcher over Redis.
// Keys: "<namespace>.token" and "<namespace>.user"; channel "<namespace>:auth".
type Repo struct {
	client     *redis.Client
	namespace  string
	instanceID string
	logger     zerolog.Logger
}

var (
	_ sessions.Repo    = (*Repo)(nil)
	_ sessions.Watcher = (*Repo)(nil)
)

type Option func(*Repo)

// WithNamespace changes the key prefix. Empty keeps the default.
func WithNamespace(namespace string) Option {
	return func(r *Repo) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Repo) {
		r.logger = logger
	}
}

// New creates a Redis backed repo. Each Repo gets its own instance id so it can
// ignore its own announcements.
func New(client *redis.Client, options ...Option) *Repo {
	r := &Repo{
		client:     client,
		namespace:  sessions.Namespace,
		instanceID: uuid.NewString(),
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Repo) tokenKey() string { return r.namespace + ".token" }
func (r *Repo) userKey() string  { return r.namespace + ".user" }

// Channel returns the pub/sub channel changes are announced on.
func (r *Repo) Channel() string { return r.namespace + ":auth" }

// InstanceID returns the id this repo tags its announcements with.
func (r *Repo) InstanceID() string { return r.instanceID }

func (r *Repo) Load(ctx context.Context) (sessions.Record, error) {
	vals, err := r.client.MGet(ctx, r.tokenKey(), r.userKey()).Result()
	if err != nil {
		return sessions.Record{}, errors.Wrap(err, "failed to load session from redis")
	}

	tok, _ := vals[0].(string)
	user, _ := vals[1].(string)
	rec := sessions.Record{Token: tok, User: user}
	if rec.Empty() {
		return sessions.Record{}, nil
	}
	return rec, nil
}

func (r *Repo) Save(ctx context.Context, rec sessions.Record) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(), rec.Token, 0)
		pipe.Set(ctx, r.userKey(), rec.User, 0)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to save session to redis")
	}
	r.announce(ctx)
	return nil
}

func (r *Repo) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.tokenKey(), r.userKey()).Err(); err != nil {
		return errors.Wrap(err, "failed to delete session from redis")
	}
	r.announce(ctx)
	return nil
}

// announce is best effort: the write already happened, a lost announcement
// only delays other clients until their next read.
func (r *Repo) announce(ctx context.Context) {
	if err := r.client.Publish(ctx, r.Channel(), r.instanceID).Err(); err != nil {
		r.logger.Warn().Err(err).Str("channel", r.Channel()).Msg("failed to announce session change")
	}
}

// Watch reports changes announced by other instances until ctx is done.
func (r *Repo) Watch(ctx context.Context, onChange func()) error {
	sub := r.client.Subscribe(ctx, r.Channel())
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "failed to subscribe to session channel")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == r.instanceID {
				continue
			}
			onChange()
		}
	}
}
