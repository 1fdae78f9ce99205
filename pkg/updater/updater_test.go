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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/skyquery/query-api/pkg/feed"
	"github.com/skyquery/query-api/pkg/store"
	"github.com/skyquery/query-api/pkg/store/memory"
)

// fakeSource serves fixed pages and ended auctions.
type fakeSource struct {
	mu       sync.Mutex
	pages    []*feed.Page
	ended    *feed.Ended
	endedErr error
	failOn   int
	fetched  []int
}

func (f *fakeSource) Page(_ context.Context, n int) (*feed.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, n)
	if n == f.failOn {
		return nil, errors.New("feed down")
	}
	return f.pages[n], nil
}

func (f *fakeSource) Ended(context.Context) (*feed.Ended, error) {
	if f.endedErr != nil {
		return nil, f.endedErr
	}
	return f.ended, nil
}

// recordingWriter wraps a store, remembering write deadlines and failing
// bucket writes on demand.
type recordingWriter struct {
	store.Writer
	failBuckets bool
	deadlines   []time.Duration
}

func (w *recordingWriter) track(ctx context.Context) {
	if d, ok := ctx.Deadline(); ok {
		w.deadlines = append(w.deadlines, time.Until(d))
	}
}

func (w *recordingWriter) ReplaceAuctions(ctx context.Context, a []store.Auction) error {
	w.track(ctx)
	return w.Writer.ReplaceAuctions(ctx, a)
}

func (w *recordingWriter) UpsertPetPrices(ctx context.Context, p []store.PetPrice) error {
	w.track(ctx)
	return w.Writer.UpsertPetPrices(ctx, p)
}

func (w *recordingWriter) AddAverageBuckets(ctx context.Context, b []store.AverageBucket) error {
	w.track(ctx)
	if w.failBuckets {
		return errors.New("disk full")
	}
	return w.Writer.AddAverageBuckets(ctx, b)
}

func item(t *testing.T, attrs feed.Attributes, count int8) string {
	t.Helper()
	raw, err := feed.EncodeItem("item", count, attrs)
	require.NoError(t, err)
	return raw
}

func fixture(t *testing.T) *fakeSource {
	hyp := item(t, feed.Attributes{ID: "HYPERION"}, 1)
	pet := item(t, feed.Attributes{ID: "PET", PetInfo: `{"type":"WOLF","tier":"LEGENDARY"}`}, 1)
	stack := item(t, feed.Attributes{ID: "ENCHANTED_DIAMOND"}, 4)

	return &fakeSource{
		failOn: -1,
		pages: []*feed.Page{
			{TotalPages: 3, Auctions: []feed.Auction{
				{UUID: "h1", ItemName: "Hyperion", Tier: "LEGENDARY", StartingBid: 900, Bin: true, ItemBytes: hyp},
				{UUID: "h2", ItemName: "Hyperion", Tier: "LEGENDARY", StartingBid: 700, Bin: true, ItemBytes: hyp},
			}},
			{TotalPages: 3, Auctions: []feed.Auction{
				{UUID: "h3", ItemName: "Hyperion", Tier: "LEGENDARY", StartingBid: 100, HighestBidAmount: 200, ItemBytes: hyp},
				{UUID: "w1", ItemName: "[Lvl 1] Wolf", Tier: "LEGENDARY", StartingBid: 50, Bin: true, ItemBytes: pet},
			}},
			{TotalPages: 3, Auctions: []feed.Auction{
				{UUID: "w2", ItemName: "[Lvl 9] Wolf", Tier: "LEGENDARY", StartingBid: 40, Bin: true, ItemBytes: pet},
				{UUID: "broken", ItemBytes: "not-an-item"},
			}},
		},
		ended: &feed.Ended{Auctions: []feed.EndedAuction{
			{AuctionID: "e1", Price: 800, Bin: true, ItemBytes: hyp, Timestamp: 3*hourMillis + 5},
			{AuctionID: "e2", Price: 600, Bin: true, ItemBytes: hyp, Timestamp: 3*hourMillis + 10},
			{AuctionID: "e3", Price: 400, Bin: false, ItemBytes: stack, Timestamp: 3*hourMillis + 10},
			{AuctionID: "e4", Price: 1, ItemBytes: "junk"},
		}},
	}
}

func TestRunOnce(t *testing.T) {
	src := fixture(t)
	st := memory.New()
	invalidated := 0
	u := New(src, st, WithInvalidate(func() { invalidated++ }), WithConcurrency(2), WithWorkers(2))

	require.NoError(t, u.RunOnce(context.Background()))
	ctx := context.Background()

	status := u.Status()
	assert.Equal(t, int64(1), status.Cycles)
	assert.Equal(t, 3, status.Pages)
	assert.Equal(t, 5, status.Auctions)
	assert.Equal(t, 2, status.Skipped)
	assert.Equal(t, 1, status.Pets)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 1, invalidated)

	a, err := st.GetAuction(ctx, "h3")
	require.NoError(t, err)
	assert.Equal(t, "HYPERION", a.InternalID)
	assert.Equal(t, float64(700), a.LowestBinPrice)

	bins, err := st.LowestBins(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(700), bins["HYPERION"])
	assert.Equal(t, int64(40), bins["WOLF;LEGENDARY"])

	pets, err := st.PetPrices(ctx, []string{"WOLF;LEGENDARY"})
	require.NoError(t, err)
	assert.Equal(t, []store.PetPrice{{Name: "WOLF;LEGENDARY", Price: 40}}, pets)

	buckets, err := st.AverageBuckets(ctx, 0, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	byID := map[string]store.AverageBucket{}
	for _, b := range buckets {
		byID[b.ItemID] = b
	}
	assert.Equal(t, 3*hourMillis, byID["HYPERION"].TimeT)
	assert.Equal(t, store.KindBin, byID["HYPERION"].Kind)
	assert.InDelta(t, 700, byID["HYPERION"].Price, 1e-9)
	assert.Equal(t, float32(2), byID["HYPERION"].Sales)
	assert.Equal(t, store.KindAuction, byID["ENCHANTED_DIAMOND"].Kind)
	assert.InDelta(t, 100, byID["ENCHANTED_DIAMOND"].Price, 1e-9)
}

func TestRunOnceKeepsDataOnFailure(t *testing.T) {
	src := fixture(t)
	st := memory.New()
	u := New(src, st)
	require.NoError(t, u.RunOnce(context.Background()))

	src.failOn = 2
	err := u.RunOnce(context.Background())
	require.Error(t, err)

	status := u.Status()
	assert.Equal(t, int64(2), status.Cycles)
	assert.Equal(t, int64(1), status.Failures)
	assert.Contains(t, status.LastError, "page 2")
	assert.Equal(t, 5, status.Auctions)

	_, err = st.GetAuction(context.Background(), "h1")
	assert.NoError(t, err)
}

func TestRunOnceSkipsRepeatedEndedAuctions(t *testing.T) {
	src := fixture(t)
	st := memory.New()
	u := New(src, st)
	ctx := context.Background()

	require.NoError(t, u.RunOnce(ctx))
	assert.Equal(t, 4, u.Status().Ended)
	require.NoError(t, u.RunOnce(ctx))
	assert.Equal(t, 0, u.Status().Ended)

	buckets, err := st.AverageBuckets(ctx, 0, []string{"HYPERION"})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, float32(2), buckets[0].Sales)
	assert.InDelta(t, 700, buckets[0].Price, 1e-9)

	// a new document keeps only the ids it shares with the last one
	hyp := item(t, feed.Attributes{ID: "HYPERION"}, 1)
	src.ended = &feed.Ended{Auctions: []feed.EndedAuction{
		{AuctionID: "e2", Price: 600, Bin: true, ItemBytes: hyp, Timestamp: 3*hourMillis + 10},
		{AuctionID: "e5", Price: 1000, Bin: true, ItemBytes: hyp, Timestamp: 3*hourMillis + 20},
		{AuctionID: "e5", Price: 1000, Bin: true, ItemBytes: hyp, Timestamp: 3*hourMillis + 20},
	}}
	require.NoError(t, u.RunOnce(ctx))
	assert.Equal(t, 1, u.Status().Ended)

	buckets, err = st.AverageBuckets(ctx, 0, []string{"HYPERION"})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, float32(3), buckets[0].Sales)
	assert.InDelta(t, 800, buckets[0].Price, 1e-9)
}

func TestRunOnceEndedFailureWritesNothing(t *testing.T) {
	src := fixture(t)
	src.endedErr = errors.New("ended feed down")
	st := memory.New()
	invalidated := 0
	u := New(src, st, WithInvalidate(func() { invalidated++ }))

	err := u.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended feed down")
	assert.Zero(t, invalidated)
	assert.Zero(t, u.Status().Auctions)

	_, err = st.GetAuction(context.Background(), "h1")
	assert.Error(t, err)
}

func TestRunOnceInvalidatesAfterPartialWrite(t *testing.T) {
	w := &recordingWriter{Writer: memory.New(), failBuckets: true}
	invalidated := 0
	u := New(fixture(t), w, WithInvalidate(func() { invalidated++ }))

	err := u.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, invalidated)

	status := u.Status()
	assert.Equal(t, int64(1), status.Failures)
	assert.Equal(t, 5, status.Auctions)
	assert.Equal(t, 1, status.Pets)

	// the failed bucket write is retried in full next cycle
	w.failBuckets = false
	require.NoError(t, u.RunOnce(context.Background()))
	assert.Equal(t, 4, u.Status().Ended)
}

func TestRunOnceBoundsEachWrite(t *testing.T) {
	w := &recordingWriter{Writer: memory.New()}
	u := New(fixture(t), w, WithWriteTimeout(2*time.Second))

	require.NoError(t, u.RunOnce(context.Background()))
	require.Len(t, w.deadlines, 3)
	for _, d := range w.deadlines {
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestRunTicks(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(0, 0))
	u := New(fixture(t), memory.New(), WithClock(fc), WithInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()

	require.Eventually(t, func() bool { return u.Status().Cycles == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, fc.HasWaiters, 5*time.Second, 5*time.Millisecond)

	fc.Step(time.Minute)
	require.Eventually(t, func() bool { return u.Status().Cycles == 2 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("updater did not stop")
	}
}

func TestAverageBucketsUsesNowWithoutTimestamp(t *testing.T) {
	raw := item(t, feed.Attributes{ID: "STONE"}, 1)
	now := time.UnixMilli(5*hourMillis + 123)

	buckets, bad := averageBuckets([]feed.EndedAuction{{Price: 10, ItemBytes: raw}}, now)
	assert.Zero(t, bad)
	require.Len(t, buckets, 1)
	assert.Equal(t, 5*hourMillis, buckets[0].TimeT)
}
