// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/skyquery/query-api/pkg/auth"
	"github.com/skyquery/query-api/pkg/cache"
	"github.com/skyquery/query-api/pkg/config"
	"github.com/skyquery/query-api/pkg/defaults"
	"github.com/skyquery/query-api/pkg/executor"
	"github.com/skyquery/query-api/pkg/feed"
	"github.com/skyquery/query-api/pkg/filter"
	"github.com/skyquery/query-api/pkg/logging"
	"github.com/skyquery/query-api/pkg/query"
	"github.com/skyquery/query-api/pkg/router"
	"github.com/skyquery/query-api/pkg/server"
	"github.com/skyquery/query-api/pkg/store"
	"github.com/skyquery/query-api/pkg/store/memory"
	"github.com/skyquery/query-api/pkg/store/sqlstore"
	"github.com/skyquery/query-api/pkg/updater"
)

const (
	name           = "query_api"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/skyquery/query-api/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Version string `json:"version" yaml:"version" toml:"version"`
	Commit  string `json:"commit" yaml:"commit" toml:"commit"`
	Date    string `json:"date" yaml:"date" toml:"date"`
}

// Info returns the build information set at link time.
func Info() BuildInfo {
	return BuildInfo{Name: name, Version: version, Commit: commit, Date: date}
}

// App is a fully wired query service.
type App struct {
	cfg      *config.Config
	store    store.Store
	cache    cache.Cache
	executor *executor.Executor
	router   *router.Router
	updater  *updater.Updater
	server   *server.Server
}

// New opens the data source and cache named by cfg and wires the
// router, executor and, when the feed is enabled, the updater.
// The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	c, err := OpenCache(ctx, cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &App{cfg: cfg, store: st, cache: c}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.cfg

	// one compiler so router pre-checks and executor runs share the program cache
	filters, err := filter.NewCompiler()
	if err != nil {
		return fmt.Errorf("failed to create filter compiler: %w", err)
	}

	limits := Limits(cfg.Query)

	a.executor, err = executor.New(a.store,
		executor.WithCache(a.cache),
		executor.WithCacheTTL(cfg.Cache.TTL.Std()),
		executor.WithLimits(limits),
		executor.WithTimeout(cfg.Query.Timeout.Std()),
		executor.WithFilterCompiler(filters),
	)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	authenticator := auth.New(auth.Config{
		APIKeys:   auth.ParseAPIKeys(cfg.Auth.APIKeys),
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Required:  cfg.Auth.Required,
	})

	a.router, err = router.New(a.executor,
		router.WithAuthenticator(authenticator),
		router.WithLimits(limits),
		router.WithFilterCompiler(filters),
		router.WithTimeout(defaults.QueryHandlerTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	if cfg.Feed.Enabled {
		a.updater, err = NewUpdater(cfg.Feed, a.store, updater.WithInvalidate(a.executor.Invalidate))
		if err != nil {
			return err
		}
	}

	a.server = server.New(
		server.WithConfig(ServerConfig(cfg.Server)),
		server.WithRoutes(a.router.Routes),
		server.WithReadyCheck(a.store.Ping),
		server.WithDebug(a.debug),
	)
	return nil
}

// Limits converts the query section of the configuration.
func Limits(q config.Query) query.Limits {
	l := query.DefaultLimits()
	l.DefaultLimit = q.DefaultLimit
	l.MaxLimit = q.MaxLimit
	return l
}

// ServerConfig converts the server section of the configuration.
func ServerConfig(s config.Server) *server.Config {
	sc := server.NewConfig()
	sc.Name = name
	sc.Version = version
	sc.Address = s.Address
	sc.Port = s.Port
	sc.RateLimit = rate.Limit(s.RateLimit)
	sc.RateLimitBurst = s.RateLimitBurst
	if s.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = s.ShutdownTimeout.Std()
	}
	return sc
}

// OpenStore opens the configured data source, applying migrations when
// requested.
func OpenStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	}

	st, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect: sqlstore.Dialect(cfg.Driver),
		DSN:     cfg.DSN,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Migrate {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return st, nil
}

// OpenCache opens the configured result cache.
func OpenCache(ctx context.Context, cfg config.Cache) (cache.Cache, error) {
	switch cfg.Backend {
	case "none":
		return cache.Nop{}, nil
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return cache.NewLRU(cfg.Size), nil
	}
}

// NewUpdater builds an updater pulling from the configured feed into w.
func NewUpdater(cfg config.Feed, w store.Writer, opts ...updater.Option) (*updater.Updater, error) {
	base := cfg.URL
	if base == "" {
		base = feed.DefaultBaseURL
	}
	client, err := feed.NewClient(base)
	if err != nil {
		return nil, err
	}

	opts = append([]updater.Option{
		updater.WithInterval(cfg.Interval.Std()),
		updater.WithConcurrency(cfg.Concurrency),
		updater.WithWorkers(cfg.Workers),
	}, opts...)
	return updater.New(client, w, opts...), nil
}

type debugInfo struct {
	Build   BuildInfo       `json:"build"`
	Store   string          `json:"store"`
	Cache   string          `json:"cache"`
	Updater *updater.Status `json:"updater,omitempty"`
}

func (a *App) debug() any {
	d := debugInfo{
		Build: Info(),
		Store: a.cfg.Store.Driver,
		Cache: a.cfg.Cache.Backend,
	}
	if a.updater != nil {
		s := a.updater.Status()
		d.Updater = &s
	}
	return d
}

// Handler returns the HTTP handler of the wired server.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Executor returns the wired executor.
func (a *App) Executor() *executor.Executor {
	return a.executor
}

// Store returns the open data source.
func (a *App) Store() store.Store {
	return a.store
}

// Updater returns the feed updater, or nil when the feed is disabled.
func (a *App) Updater() *updater.Updater {
	return a.updater
}

// Run serves until ctx is done or a signal arrives, running the updater
// alongside the server when it is enabled.
func (a *App) Run(ctx context.Context) error {
	var tasks []func(context.Context) error
	if a.updater != nil {
		tasks = append(tasks, a.updater.Run)
	}
	return server.Run(ctx, a.server, tasks...)
}

// Close releases the data source and cache.
func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Serve configures logging, wires the service from cfg and blocks until
// shutdown.
func Serve(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}

	logging.SetDefaultStructuredLoggerWithLevel(name, version, cfg.Log.Level)
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Backend,
		"feed", cfg.Feed.Enabled,
	)

	start := time.Now()
	a, err := New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("failed to close resources", "error", err)
		}
	}()
	slog.Debug("initialized", "took", time.Since(start).String())

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
