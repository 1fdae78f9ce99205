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

package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skyquery/query-api/pkg/cache"
	"github.com/skyquery/query-api/pkg/defaults"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/filter"
	"github.com/skyquery/query-api/pkg/query"
	"github.com/skyquery/query-api/pkg/store"
)

var (
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_api_executions_total",
			Help: "Executed queries by operation, status and kind",
		},
		[]string{"op", "status", "kind"},
	)

	executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_api_execution_duration_seconds",
			Help:    "Query execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Runner executes queries. The router depends on this interface.
type Runner interface {
	Execute(ctx context.Context, q query.Query) query.Result
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache sets the result cache.
func WithCache(c cache.Cache) Option {
	return func(e *Executor) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithCacheTTL sets how long cached results live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Executor) {
		e.cacheTTL = ttl
	}
}

// WithLimits sets the parameter limits.
func WithLimits(l query.Limits) Option {
	return func(e *Executor) {
		e.limits = l
	}
}

// WithTimeout bounds each execution.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithFilterCompiler shares a compiler with the router.
func WithFilterCompiler(c *filter.Compiler) Option {
	return func(e *Executor) {
		if c != nil {
			e.filters = c
		}
	}
}

// Executor runs queries against a store.Reader. It is safe for concurrent use.
type Executor struct {
	source     store.Reader
	cache      cache.Cache
	cacheTTL   time.Duration
	limits     query.Limits
	timeout    time.Duration
	filters    *filter.Compiler
	generation atomic.Uint64
}

var _ Runner = (*Executor)(nil)

// New returns an Executor reading from source.
func New(source store.Reader, opts ...Option) (*Executor, error) {
	e := &Executor{
		source:   source,
		cache:    cache.Nop{},
		cacheTTL: defaults.QueryCacheTTL,
		limits:   query.DefaultLimits(),
		timeout:  defaults.QueryTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.filters == nil {
		c, err := filter.NewCompiler()
		if err != nil {
			return nil, err
		}
		e.filters = c
	}
	return e, nil
}

// Invalidate makes every cached result unreachable.
func (e *Executor) Invalidate() {
	e.generation.Add(1)
}

// Execute runs q and returns its single terminal Result.
func (e *Executor) Execute(ctx context.Context, q query.Query) (res query.Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("panic during execution",
				"panic", fmt.Sprintf("%v", p),
				"query", q,
				"stack", string(debug.Stack()))
			res = query.Fail(q, qerrors.New(qerrors.ErrCodeInternal, "panic during execution"))
		}
		executionDuration.WithLabelValues(string(q.Op())).Observe(time.Since(start).Seconds())
		executionsTotal.WithLabelValues(string(q.Op()), string(res.Status), string(res.Kind)).Inc()
		e.log(q, res, time.Since(start))
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return query.Fail(q, err)
	}
	if err := query.Validate(q, e.limits); err != nil {
		return query.Fail(q, err)
	}

	if !q.Op().Cacheable() {
		payload, err := e.run(ctx, q)
		return e.finish(ctx, q, payload, err)
	}

	key := strconv.FormatUint(e.generation.Load(), 10) + "|" + q.CacheKey()
	if payload, ok := e.cached(ctx, key); ok {
		return query.Succeed(q, payload)
	}
	payload, err := e.run(ctx, q)
	res = e.finish(ctx, q, payload, err)
	if res.OK() {
		e.remember(ctx, key, payload)
	}
	return res
}

func (e *Executor) finish(ctx context.Context, q query.Query, payload any, err error) query.Result {
	if err != nil {
		return query.Fail(q, err)
	}
	if err := ctx.Err(); err != nil {
		return query.Fail(q, err)
	}
	return query.Succeed(q, payload)
}

func (e *Executor) run(ctx context.Context, q query.Query) (any, error) {
	switch q.Op() {
	case query.OpGet:
		return e.get(ctx, q)
	case query.OpQuery:
		return e.search(ctx, q)
	case query.OpQueryItems:
		return e.source.ItemNames(ctx)
	case query.OpLowestBin:
		return e.lowestBin(ctx, q)
	case query.OpAverageAuction, query.OpAverageBin, query.OpAverage:
		return e.average(ctx, q)
	case query.OpPets:
		return e.pets(ctx, q)
	default:
		return nil, qerrors.New(qerrors.ErrCodeInvalidRequest, fmt.Sprintf("unsupported operation %q", q.Op()))
	}
}

func (e *Executor) get(ctx context.Context, q query.Query) (any, error) {
	p, err := query.ParseGet(q, e.limits)
	if err != nil {
		return nil, err
	}
	return e.source.GetAuction(ctx, p.Key)
}

func (e *Executor) search(ctx context.Context, q query.Query) (any, error) {
	p, err := query.ParseSearch(q, e.limits)
	if err != nil {
		return nil, err
	}
	f := p.StoreFilter()
	if p.Filter == "" {
		return e.source.SearchAuctions(ctx, f)
	}

	// The expression runs after the store, so the store must not truncate.
	limit := f.Limit
	f.Limit = 0
	auctions, err := e.source.SearchAuctions(ctx, f)
	if err != nil {
		return nil, err
	}
	return e.filters.Apply(ctx, p.Filter, auctions, limit)
}

func (e *Executor) lowestBin(ctx context.Context, q query.Query) (any, error) {
	p, err := query.ParseLowestBin(q, e.limits)
	if err != nil {
		return nil, err
	}
	prices, err := e.source.LowestBins(ctx, p.IDs)
	if err != nil {
		return nil, err
	}
	if len(p.IDs) > 0 && len(prices) == 0 {
		return nil, qerrors.NewWithContext(qerrors.ErrCodeNotFound,
			"no BIN auctions for the requested ids", map[string]any{"ids": p.IDs})
	}
	return prices, nil
}

func (e *Executor) average(ctx context.Context, q query.Query) (any, error) {
	p, err := query.ParseAverage(q, e.limits)
	if err != nil {
		return nil, err
	}
	buckets, err := e.source.AverageBuckets(ctx, p.Time, p.IDs)
	if err != nil {
		return nil, err
	}
	out := averages(q.Op(), buckets, p.Time, p.Step, p.Method)
	if len(p.IDs) > 0 && len(out) == 0 {
		return nil, qerrors.NewWithContext(qerrors.ErrCodeNotFound,
			"no sales for the requested ids", map[string]any{"ids": p.IDs})
	}
	return out, nil
}

func (e *Executor) pets(ctx context.Context, q query.Query) (any, error) {
	p, err := query.ParsePets(q, e.limits)
	if err != nil {
		return nil, err
	}
	prices, err := e.source.PetPrices(ctx, p.Names)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, qerrors.NewWithContext(qerrors.ErrCodeNotFound,
			"no prices for the requested pets", map[string]any{"pets": p.Names})
	}
	return prices, nil
}

// cached returns a stored payload as generic JSON values. Errors count as misses.
func (e *Executor) cached(ctx context.Context, key string) (any, bool) {
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("result cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Warn("discarding undecodable cache entry", "error", err)
		return nil, false
	}
	return payload, true
}

func (e *Executor) remember(ctx context.Context, key string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("result not cacheable", "error", err)
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		slog.Warn("result cache write failed", "error", err)
	}
}

func (e *Executor) log(q query.Query, res query.Result, took time.Duration) {
	if res.OK() {
		slog.Debug("query executed", "query", q, "duration", took.String())
		return
	}
	level := slog.LevelDebug
	if res.Kind == qerrors.ErrCodeInternal || res.Kind == qerrors.ErrCodeUnavailable {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "query failed",
		"query", q,
		"kind", res.Kind,
		"error", res.Cause(),
		"duration", took.String())
}
