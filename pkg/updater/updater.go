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

package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/skyquery/query-api/pkg/defaults"
	"github.com/skyquery/query-api/pkg/feed"
	"github.com/skyquery/query-api/pkg/store"
)

const hourMillis = int64(time.Hour / time.Millisecond)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_api_updater_cycles_total",
			Help: "Ingest cycles by result",
		},
		[]string{"result"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "query_api_updater_cycle_duration_seconds",
			Help:    "Ingest cycle latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		},
	)

	activeAuctions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "query_api_updater_active_auctions",
			Help: "Active auctions stored by the last successful cycle",
		},
	)
)

// Source is the feed the updater reads.
type Source interface {
	Page(ctx context.Context, n int) (*feed.Page, error)
	Ended(ctx context.Context) (*feed.Ended, error)
}

// Status describes the most recent cycles.
type Status struct {
	Cycles       int64     `json:"cycles" yaml:"cycles"`
	Failures     int64     `json:"failures" yaml:"failures"`
	LastUpdate   time.Time `json:"lastUpdate,omitzero" yaml:"lastUpdate,omitempty"`
	LastDuration string    `json:"lastDuration,omitempty" yaml:"lastDuration,omitempty"`
	Pages        int       `json:"pages" yaml:"pages"`
	Auctions     int       `json:"auctions" yaml:"auctions"`
	Ended        int       `json:"ended" yaml:"ended"`
	Pets         int       `json:"pets" yaml:"pets"`
	Skipped      int       `json:"skipped" yaml:"skipped"`
	LastError    string    `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

// Option configures an Updater.
type Option func(*Updater)

// WithClock replaces the real clock.
func WithClock(c clock.WithTicker) Option {
	return func(u *Updater) {
		u.clock = c
	}
}

// WithInterval sets the time between cycles.
func WithInterval(d time.Duration) Option {
	return func(u *Updater) {
		if d > 0 {
			u.interval = d
		}
	}
}

// WithInvalidate registers a callback run after every successful cycle.
func WithInvalidate(fn func()) Option {
	return func(u *Updater) {
		u.invalidate = fn
	}
}

// WithWriteTimeout bounds each store write of a cycle.
func WithWriteTimeout(d time.Duration) Option {
	return func(u *Updater) {
		if d > 0 {
			u.writeTimeout = d
		}
	}
}

// WithConcurrency bounds concurrent page fetches.
func WithConcurrency(n int) Option {
	return func(u *Updater) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithWorkers sets the size of the item decoding pool.
func WithWorkers(n int) Option {
	return func(u *Updater) {
		if n > 0 {
			u.workers = n
		}
	}
}

// Updater ingests the feed into a store.
type Updater struct {
	source       Source
	store        store.Writer
	clock        clock.WithTicker
	interval     time.Duration
	timeout      time.Duration
	writeTimeout time.Duration
	concurrency  int
	workers      int
	invalidate   func()

	// cycleMu serializes cycles; seenEnded is only touched while it is held.
	cycleMu   sync.Mutex
	seenEnded map[string]struct{}

	mu     sync.RWMutex
	status Status
}

// New returns an Updater writing feed data from source into w.
func New(source Source, w store.Writer, opts ...Option) *Updater {
	u := &Updater{
		source:       source,
		store:        w,
		clock:        clock.RealClock{},
		interval:     defaults.FeedUpdateInterval,
		timeout:      defaults.FeedCycleTimeout,
		writeTimeout: defaults.StoreWriteTimeout,
		concurrency:  defaults.FeedPageConcurrency,
		workers:      defaults.FeedDecodeWorkers,
		invalidate:   func() {},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Status returns a snapshot of the updater state.
func (u *Updater) Status() Status {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.status
}

// Run performs a cycle immediately and then on every tick until ctx is done.
// Cycle failures are recorded and logged; they do not stop Run.
func (u *Updater) Run(ctx context.Context) error {
	slog.Info("updater started", "interval", u.interval.String())

	ticker := u.clock.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		if err := u.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("update cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("updater stopped")
			return nil
		case <-ticker.C():
		}
	}
}

// RunOnce performs a single cycle. Concurrent calls run one after another.
func (u *Updater) RunOnce(ctx context.Context) error {
	u.cycleMu.Lock()
	defer u.cycleMu.Unlock()

	start := u.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	res, wrote, err := u.cycle(ctx)
	took := u.clock.Since(start)
	cycleDuration.Observe(took.Seconds())

	u.mu.Lock()
	defer u.mu.Unlock()
	u.status.Cycles++
	if err != nil {
		cyclesTotal.WithLabelValues("failure").Inc()
		u.status.Failures++
		u.status.LastError = err.Error()
		if wrote {
			// auctions and pets were replaced before the failing step
			activeAuctions.Set(float64(res.Auctions))
			u.status.Auctions = res.Auctions
			if res.Pets > 0 {
				u.status.Pets = res.Pets
			}
		}
		return err
	}

	cyclesTotal.WithLabelValues("success").Inc()
	activeAuctions.Set(float64(res.Auctions))
	res.Cycles = u.status.Cycles
	res.Failures = u.status.Failures
	res.LastUpdate = u.clock.Now().UTC()
	res.LastDuration = took.String()
	u.status = res

	slog.Info("update cycle completed",
		"pages", res.Pages,
		"auctions", res.Auctions,
		"ended", res.Ended,
		"pets", res.Pets,
		"skipped", res.Skipped,
		"duration", res.LastDuration,
	)
	return nil
}

// cycle fetches and decodes everything before the first store write, so a
// feed failure leaves the store untouched. Once any write has landed the
// cache is invalidated whatever the outcome; wrote reports that.
func (u *Updater) cycle(ctx context.Context) (st Status, wrote bool, err error) {
	pages, err := u.fetchPages(ctx)
	if err != nil {
		return st, false, err
	}
	st.Pages = len(pages)

	var raw []feed.Auction
	for _, p := range pages {
		raw = append(raw, p.Auctions...)
	}

	auctions, items, skipped, err := u.decodeAll(ctx, raw)
	if err != nil {
		return st, false, err
	}
	st.Skipped = skipped

	ended, err := u.source.Ended(ctx)
	if err != nil {
		return st, false, fmt.Errorf("failed to fetch ended auctions: %w", err)
	}
	fresh := u.freshEnded(ended.Auctions)
	buckets, bad := averageBuckets(fresh, u.clock.Now())
	st.Skipped += bad

	attachLowestBins(auctions)
	pets := petPrices(auctions, items)

	defer func() {
		if wrote {
			u.invalidate()
		}
	}()

	if err := u.write(ctx, func(ctx context.Context) error {
		return u.store.ReplaceAuctions(ctx, auctions)
	}); err != nil {
		return st, wrote, fmt.Errorf("failed to replace auctions: %w", err)
	}
	wrote = true
	st.Auctions = len(auctions)

	if err := u.write(ctx, func(ctx context.Context) error {
		return u.store.UpsertPetPrices(ctx, pets)
	}); err != nil {
		return st, wrote, fmt.Errorf("failed to update pet prices: %w", err)
	}
	st.Pets = len(pets)

	if err := u.write(ctx, func(ctx context.Context) error {
		return u.store.AddAverageBuckets(ctx, buckets)
	}); err != nil {
		return st, wrote, fmt.Errorf("failed to add average buckets: %w", err)
	}
	st.Ended = len(fresh)
	u.rememberEnded(ended.Auctions)

	return st, wrote, nil
}

// write runs one store write bounded by the write timeout.
func (u *Updater) write(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, u.writeTimeout)
	defer cancel()
	return fn(ctx)
}

// freshEnded drops ended auctions already folded by the previous cycle, and
// repeats within the document. The ended feed covers a rolling window, so
// consecutive documents overlap.
func (u *Updater) freshEnded(ended []feed.EndedAuction) []feed.EndedAuction {
	out := make([]feed.EndedAuction, 0, len(ended))
	seen := make(map[string]struct{}, len(ended))
	for _, e := range ended {
		if e.AuctionID != "" {
			if _, ok := u.seenEnded[e.AuctionID]; ok {
				continue
			}
			if _, ok := seen[e.AuctionID]; ok {
				continue
			}
			seen[e.AuctionID] = struct{}{}
		}
		out = append(out, e)
	}
	return out
}

// rememberEnded records the ids of the document just stored.
func (u *Updater) rememberEnded(ended []feed.EndedAuction) {
	ids := make(map[string]struct{}, len(ended))
	for _, e := range ended {
		if e.AuctionID != "" {
			ids[e.AuctionID] = struct{}{}
		}
	}
	u.seenEnded = ids
}

// fetchPages reads page zero to learn the page count, then the rest with
// bounded concurrency.
func (u *Updater) fetchPages(ctx context.Context) ([]*feed.Page, error) {
	first, err := u.source.Page(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page 0: %w", err)
	}
	total := max(first.TotalPages, 1)
	pages := make([]*feed.Page, total)
	pages[0] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for n := 1; n < total; n++ {
		g.Go(func() error {
			p, err := u.source.Page(gctx, n)
			if err != nil {
				return fmt.Errorf("failed to fetch page %d: %w", n, err)
			}
			pages[n] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// decodeAll converts raw auctions on the worker pool. Auctions whose item
// cannot be decoded are skipped.
func (u *Updater) decodeAll(ctx context.Context, raw []feed.Auction) ([]store.Auction, []feed.Item, int, error) {
	pool, err := ants.NewPool(u.workers)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to create decode pool: %w", err)
	}
	defer pool.Release()

	converted := make([]store.Auction, len(raw))
	items := make([]feed.Item, len(raw))
	ok := make([]bool, len(raw))

	var wg sync.WaitGroup
	for i := range raw {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			a, item, err := feed.Convert(raw[i])
			if err != nil {
				slog.Debug("skipping auction", "error", err)
				return
			}
			converted[i], items[i], ok[i] = a, item, true
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, nil, 0, fmt.Errorf("failed to submit decode task: %w", err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, 0, err
	}

	auctions := make([]store.Auction, 0, len(raw))
	decoded := make([]feed.Item, 0, len(raw))
	for i := range raw {
		if ok[i] {
			auctions = append(auctions, converted[i])
			decoded = append(decoded, items[i])
		}
	}
	return auctions, decoded, len(raw) - len(auctions), nil
}

// attachLowestBins sets LowestBinPrice on every auction to the lowest BIN
// price of its internal id, or zero when none is on sale.
func attachLowestBins(auctions []store.Auction) {
	lowest := map[string]int64{}
	for _, a := range auctions {
		if !a.Bin {
			continue
		}
		if cur, ok := lowest[a.InternalID]; !ok || a.StartingBid < cur {
			lowest[a.InternalID] = a.StartingBid
		}
	}
	for i := range auctions {
		auctions[i].LowestBinPrice = float64(lowest[auctions[i].InternalID])
	}
}

// petPrices returns the lowest BIN price per pet internal id.
func petPrices(auctions []store.Auction, items []feed.Item) []store.PetPrice {
	lowest := map[string]int64{}
	var order []string
	for i, a := range auctions {
		if !a.Bin || items[i].PetTier == "" {
			continue
		}
		cur, ok := lowest[a.InternalID]
		if !ok {
			order = append(order, a.InternalID)
		}
		if !ok || a.StartingBid < cur {
			lowest[a.InternalID] = a.StartingBid
		}
	}
	out := make([]store.PetPrice, 0, len(order))
	for _, name := range order {
		out = append(out, store.PetPrice{Name: name, Price: lowest[name]})
	}
	return out
}

type bucketKey struct {
	time int64
	id   string
	kind store.PriceKind
}

// averageBuckets folds ended auctions into hourly buckets. The price of a
// bucket is the mean unit price and its sales the number of auctions.
func averageBuckets(ended []feed.EndedAuction, now time.Time) ([]store.AverageBucket, int) {
	type sum struct {
		total float64
		count int
	}
	sums := map[bucketKey]*sum{}
	var order []bucketKey
	bad := 0

	for _, e := range ended {
		item, err := feed.DecodeItem(e.ItemBytes)
		if err != nil {
			bad++
			slog.Debug("skipping ended auction", "auctionID", e.AuctionID, "error", err)
			continue
		}
		ts := e.Timestamp
		if ts <= 0 {
			ts = now.UnixMilli()
		}
		kind := store.KindAuction
		if e.Bin {
			kind = store.KindBin
		}
		k := bucketKey{time: ts - ts%hourMillis, id: item.InternalID, kind: kind}
		s, ok := sums[k]
		if !ok {
			s = &sum{}
			sums[k] = s
			order = append(order, k)
		}
		s.total += float64(e.Price) / float64(item.Count)
		s.count++
	}

	out := make([]store.AverageBucket, 0, len(order))
	for _, k := range order {
		s := sums[k]
		out = append(out, store.AverageBucket{
			TimeT:  k.time,
			ItemID: k.id,
			Kind:   k.kind,
			Price:  s.total / float64(s.count),
			Sales:  float32(s.count),
		})
	}
	return out, bad
}
