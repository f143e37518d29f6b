package main

import (
	"io"

	"github.com/jrsteele09/repairshop-client/api"
	"github.com/jrsteele09/repairshop-client/auth"
	"github.com/jrsteele09/repairshop-client/expiry"
	"github.com/jrsteele09/repairshop-client/internal/config"
	"github.com/jrsteele09/repairshop-client/internal/metrics"
	"github.com/jrsteele09/repairshop-client/repairshop"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/sessions/filerepo"
	"github.com/jrsteele09/repairshop-client/sessions/redisrepo"
	"github.com/jrsteele09/repairshop-client/sessions/repofakes"
	"github.com/jrsteele09/repairshop-client/ui"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app is one client context: a store, the API client bound to it and the
// session facade over both.
type app struct {
	store    *sessions.Store
	service  *auth.Service
	shop     *repairshop.Client
	notifier ui.Notifier
	router   *ui.Router
	out      io.Writer
	closers  []func() error
}

type appOption func(*appDeps)

type appDeps struct {
	recorder metrics.Recorder
	repo     sessions.Repo
}

// withRecorder reports session metrics to recorder.
func withRecorder(recorder metrics.Recorder) appOption {
	return func(d *appDeps) {
		d.recorder = recorder
	}
}

// withRepo replaces the configured medium.
func withRepo(repo sessions.Repo) appOption {
	return func(d *appDeps) {
		d.repo = repo
	}
}

func newApp(cfg config.Config, logger zerolog.Logger, out io.Writer, color bool, options ...appOption) (*app, error) {
	deps := appDeps{recorder: metrics.NoOp{}}
	for _, opt := range options {
		opt(&deps)
	}

	a := &app{
		notifier: ui.NewConsoleNotifier(out, color),
		router:   ui.NewRouter("/"),
		out:      out,
	}
	if deps.repo == nil {
		repo, closer, err := openRepo(cfg, logger)
		if err != nil {
			return nil, err
		}
		deps.repo = repo
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	a.store = sessions.NewStore(deps.repo, nil, sessions.WithLogger(logger), sessions.WithMetrics(deps.recorder))
	teardown := expiry.NewTeardown(a.store, a.notifier, a.router,
		expiry.WithTeardownLogger(logger),
		expiry.WithTeardownMetrics(deps.recorder),
	)

	policy := refreshPolicy(cfg)
	client, err := api.New(cfg.GetAPIBase(), a.store,
		api.WithRefreshPolicy(policy),
		api.WithTeardown(teardown),
		api.WithTimeout(cfg.GetHTTPTimeout()),
		api.WithLogger(logger),
		api.WithMetrics(deps.recorder),
	)
	if err != nil {
		return nil, err
	}

	var refresher expiry.Refresher
	if policy.Enabled {
		refresher = client.Refresher()
	}
	scheduler := expiry.NewScheduler(a.store, refresher, teardown, policy.ExpiryPolicy(), expiry.WithSchedulerLogger(logger))

	var watcher sessions.Watcher
	if w, ok := deps.repo.(sessions.Watcher); ok {
		watcher = w
	}
	a.service, err = auth.NewService(auth.Deps{
		Store:     a.store,
		Client:    client,
		Scheduler: scheduler,
		Watcher:   watcher,
	}, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a.shop, err = repairshop.New(client, a.service)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	a.service.Close()
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func refreshPolicy(cfg config.RefreshConfig) api.RefreshPolicy {
	p := api.DefaultRefreshPolicy()
	p.Enabled = cfg.GetRefreshEnabled()
	p.Endpoint = cfg.GetRefreshEndpoint()
	p.RefreshLead = cfg.GetRefreshLead()
	p.ForcedLogoutSkew = cfg.GetLogoutSkew()
	return p
}

// openRepo selects the session medium. The returned closer, if any, releases
// the medium's connections.
func openRepo(cfg config.StoreConfig, logger zerolog.Logger) (sessions.Repo, func() error, error) {
	switch cfg.GetSessionStore() {
	case config.StoreFile:
		repo, err := filerepo.New(cfg.GetSessionDir(), filerepo.WithLogger(logger))
		return repo, nil, err
	case config.StoreRedis:
		if cfg.GetRedisAddr() == "" {
			return nil, nil, errors.New("REPAIRSHOP_REDIS_ADDR is required for the redis session store")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr(), Password: cfg.GetRedisPassword()})
		return redisrepo.New(client, redisrepo.WithLogger(logger)), client.Close, nil
	case config.StoreMemory:
		return repofakes.NewFakeSessionRepo(), nil, nil
	default:
		return nil, nil, errors.Errorf("unknown session store %q", cfg.GetSessionStore())
	}
}
