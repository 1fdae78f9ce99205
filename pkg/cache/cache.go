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

package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"k8s.io/apimachinery/pkg/util/cache"
	"k8s.io/utils/clock"
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "query_api_cache_lookups_total",
		Help: "Result cache lookups by backend and outcome",
	},
	[]string{"backend", "outcome"},
)

// Cache stores payload bytes by key.
type Cache interface {
	// Get returns the value for key; ok is false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Close releases backend resources.
	Close() error
}

// LRU is an in-process cache bounded by entry count.
type LRU struct {
	entries *cache.LRUExpireCache
}

// NewLRU returns an LRU holding at most size entries.
func NewLRU(size int) *LRU {
	return NewLRUWithClock(size, clock.RealClock{})
}

// NewLRUWithClock is NewLRU with an injectable clock for expiry.
func NewLRUWithClock(size int, c clock.PassiveClock) *LRU {
	return &LRU{entries: cache.NewLRUExpireCacheWithClock(size, c)}
}

// Get implements Cache.
func (l *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.entries.Get(key)
	if !ok {
		lookups.WithLabelValues("lru", "miss").Inc()
		return nil, false, nil
	}
	lookups.WithLabelValues("lru", "hit").Inc()
	return v.([]byte), true, nil
}

// Set implements Cache.
func (l *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.entries.Add(key, value, ttl)
	return nil
}

// Close implements Cache.
func (l *LRU) Close() error {
	l.entries.RemoveAll(func(any) bool { return true })
	return nil
}

// Nop never stores anything.
type Nop struct{}

// Get implements Cache.
func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set implements Cache.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Close implements Cache.
func (Nop) Close() error { return nil }
