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

// Package memory provides an in-process store.Store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"golang.org/x/text/cases"

	"github.com/skyquery/query-api/pkg/store"
)

type bucketKey struct {
	timeT  int64
	itemID string
	kind   store.PriceKind
}

// Store keeps all data in maps guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]store.Auction
	buckets  map[bucketKey]store.AverageBucket
	pets     map[string]int64
	closed   bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		auctions: map[string]store.Auction{},
		buckets:  map[bucketKey]store.AverageBucket{},
		pets:     map[string]int64{},
	}
}

func (s *Store) foldString(v string) string {
	// Caser is stateful and not safe for concurrent use
	return cases.Fold().String(v)
}

// GetAuction implements store.Reader.
func (s *Store) GetAuction(ctx context.Context, uuid string) (store.Auction, error) {
	if err := s.check(ctx); err != nil {
		return store.Auction{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[uuid]
	if !ok {
		return store.Auction{}, store.ErrAuctionNotFound(uuid)
	}
	return a, nil
}

// SearchAuctions implements store.Reader.
func (s *Store) SearchAuctions(ctx context.Context, f store.Filter) ([]store.Auction, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]store.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if f.Match(a, s.foldString) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return f.Less(out[i], out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ItemNames implements store.Reader.
func (s *Store) ItemNames(ctx context.Context) ([]store.ItemName, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	seen := map[string]string{}
	for _, a := range s.auctions {
		if cur, ok := seen[a.InternalID]; !ok || a.ItemName < cur {
			seen[a.InternalID] = a.ItemName
		}
	}
	s.mu.RUnlock()

	out := make([]store.ItemName, 0, len(seen))
	for id, name := range seen {
		out = append(out, store.ItemName{Name: name, InternalID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalID < out[j].InternalID })
	return out, nil
}

// LowestBins implements store.Reader.
func (s *Store) LowestBins(ctx context.Context, ids []string) (map[string]int64, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]int64{}
	for _, a := range s.auctions {
		if !a.Bin || (len(ids) > 0 && !slices.Contains(ids, a.InternalID)) {
			continue
		}
		if cur, ok := out[a.InternalID]; !ok || a.StartingBid < cur {
			out[a.InternalID] = a.StartingBid
		}
	}
	return out, nil
}

// AverageBuckets implements store.Reader.
func (s *Store) AverageBuckets(ctx context.Context, since int64, ids []string) ([]store.AverageBucket, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]store.AverageBucket, 0)
	for _, b := range s.buckets {
		if b.TimeT < since || (len(ids) > 0 && !slices.Contains(ids, b.ItemID)) {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeT != out[j].TimeT {
			return out[i].TimeT < out[j].TimeT
		}
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// PetPrices implements store.Reader.
func (s *Store) PetPrices(ctx context.Context, names []string) ([]store.PetPrice, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.PetPrice, 0, len(names))
	for _, n := range names {
		if p, ok := s.pets[n]; ok {
			out = append(out, store.PetPrice{Name: n, Price: p})
		}
	}
	return out, nil
}

// Ping implements store.Reader.
func (s *Store) Ping(ctx context.Context) error {
	return s.check(ctx)
}

// ReplaceAuctions implements store.Writer.
func (s *Store) ReplaceAuctions(ctx context.Context, auctions []store.Auction) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	next := make(map[string]store.Auction, len(auctions))
	for _, a := range auctions {
		next[a.UUID] = a
	}
	s.mu.Lock()
	s.auctions = next
	s.mu.Unlock()
	return nil
}

// AddAverageBuckets implements store.Writer.
func (s *Store) AddAverageBuckets(ctx context.Context, buckets []store.AverageBucket) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range buckets {
		k := bucketKey{timeT: b.TimeT, itemID: b.ItemID, kind: b.Kind}
		if cur, ok := s.buckets[k]; ok {
			s.buckets[k] = store.MergeBucket(cur, b)
			continue
		}
		s.buckets[k] = b
	}
	return nil
}

// UpsertPetPrices implements store.Writer.
func (s *Store) UpsertPetPrices(ctx context.Context, pets []store.PetPrice) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pets {
		s.pets[p.Name] = p.Price
	}
	return nil
}

// Close marks the store closed; later calls fail as unavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return store.ErrClosed
	}
	return nil
}
