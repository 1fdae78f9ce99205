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

package store

import (
	"context"

	qerrors "github.com/skyquery/query-api/pkg/errors"
)

// Reader is the read path the query executor uses.
type Reader interface {
	// GetAuction returns the active auction with the given uuid.
	GetAuction(ctx context.Context, uuid string) (Auction, error)
	// SearchAuctions returns active auctions matching f, ordered and limited by f.
	SearchAuctions(ctx context.Context, f Filter) ([]Auction, error)
	// ItemNames returns the distinct items currently on sale.
	ItemNames(ctx context.Context) ([]ItemName, error)
	// LowestBins returns the lowest BIN price per internal id; all ids when ids is empty.
	LowestBins(ctx context.Context, ids []string) (map[string]int64, error)
	// AverageBuckets returns buckets with TimeT >= since; all items when ids is empty.
	AverageBuckets(ctx context.Context, since int64, ids []string) ([]AverageBucket, error)
	// PetPrices returns the prices of the named pets that are known.
	PetPrices(ctx context.Context, names []string) ([]PetPrice, error)
	// Ping reports whether the source is reachable.
	Ping(ctx context.Context) error
}

// Writer is the ingest path the updater uses.
type Writer interface {
	// ReplaceAuctions atomically replaces the full set of active auctions.
	ReplaceAuctions(ctx context.Context, auctions []Auction) error
	// AddAverageBuckets merges buckets into existing ones with the same
	// (TimeT, ItemID, Kind): prices are sales-weighted, sales are summed.
	AddAverageBuckets(ctx context.Context, buckets []AverageBucket) error
	// UpsertPetPrices inserts or replaces pet prices by name.
	UpsertPetPrices(ctx context.Context, pets []PetPrice) error
}

// Store is a complete data source.
type Store interface {
	Reader
	Writer
	Close() error
}

// ErrClosed is returned by a store after Close.
var ErrClosed = qerrors.New(qerrors.ErrCodeUnavailable, "data source is closed")

// ErrAuctionNotFound builds the NOT_FOUND error for a missing auction.
func ErrAuctionNotFound(uuid string) error {
	return qerrors.NewWithContext(qerrors.ErrCodeNotFound,
		"auction not found", map[string]any{"uuid": uuid})
}

// MergeBucket folds add into into with sales-weighted price.
func MergeBucket(into, add AverageBucket) AverageBucket {
	total := into.Sales + add.Sales
	if total <= 0 {
		into.Price = (into.Price + add.Price) / 2
		return into
	}
	into.Price = (into.Price*float64(into.Sales) + add.Price*float64(add.Sales)) / float64(total)
	into.Sales = total
	return into
}
