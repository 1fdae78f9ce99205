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
	"slices"
	"strings"
)

// SortField is a column auctions can be ordered by.
type SortField string

const (
	SortStartingBid SortField = "starting_bid"
	SortHighestBid  SortField = "highest_bid"
	SortEndT        SortField = "end_t"
	SortLowestBin   SortField = "lowestbin_price"
)

// SortFields returns all sortable fields.
func SortFields() []SortField {
	return []SortField{SortStartingBid, SortHighestBid, SortEndT, SortLowestBin}
}

// IsValid reports whether f is sortable.
func (f SortField) IsValid() bool {
	for _, k := range SortFields() {
		if f == k {
			return true
		}
	}
	return false
}

// Filter selects active auctions. Zero-valued fields do not constrain.
type Filter struct {
	// ItemName matches a case-insensitive substring of the item name.
	ItemName   string
	Tier       string
	ItemID     string
	InternalID string
	Auctioneer string
	// Bidder matches auctions with at least one bid by this player.
	Bidder string
	// Enchants must all be present on the auction.
	Enchants []string
	Bin      *bool
	// MinPrice and MaxPrice bound Auction.Price.
	MinPrice *int64
	MaxPrice *int64
	// EndBefore and EndAfter bound EndT, exclusive.
	EndBefore *int64
	EndAfter  *int64

	SortBy     SortField
	Descending bool
	// Limit caps the number of results; zero means unlimited.
	Limit int
}

// Match reports whether a satisfies f, ignoring ordering and limit.
// Implementations that cannot express a predicate natively use it as a post-filter.
func (f Filter) Match(a Auction, fold func(string) string) bool {
	if fold == nil {
		fold = func(s string) string { return s }
	}
	if f.ItemName != "" && !strings.Contains(fold(a.ItemName), fold(f.ItemName)) {
		return false
	}
	if f.Tier != "" && a.Tier != f.Tier {
		return false
	}
	if f.ItemID != "" && a.ItemID != f.ItemID {
		return false
	}
	if f.InternalID != "" && a.InternalID != f.InternalID {
		return false
	}
	if f.Auctioneer != "" && a.Auctioneer != f.Auctioneer {
		return false
	}
	if f.Bin != nil && a.Bin != *f.Bin {
		return false
	}
	if f.MinPrice != nil && a.Price() < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && a.Price() > *f.MaxPrice {
		return false
	}
	if f.EndBefore != nil && a.EndT >= *f.EndBefore {
		return false
	}
	if f.EndAfter != nil && a.EndT <= *f.EndAfter {
		return false
	}
	if f.Bidder != "" && !hasBidder(a.Bids, f.Bidder) {
		return false
	}
	for _, e := range f.Enchants {
		if !slices.Contains(a.Enchants, e) {
			return false
		}
	}
	return true
}

// Less orders a before b according to f.SortBy and f.Descending.
func (f Filter) Less(a, b Auction) bool {
	var x, y float64
	switch f.SortBy {
	case SortStartingBid:
		x, y = float64(a.StartingBid), float64(b.StartingBid)
	case SortHighestBid:
		x, y = float64(a.HighestBid), float64(b.HighestBid)
	case SortEndT:
		x, y = float64(a.EndT), float64(b.EndT)
	case SortLowestBin:
		x, y = a.LowestBinPrice, b.LowestBinPrice
	default:
		return a.UUID < b.UUID
	}
	if x == y {
		return a.UUID < b.UUID
	}
	if f.Descending {
		return x > y
	}
	return x < y
}

func hasBidder(bids []Bid, bidder string) bool {
	for _, b := range bids {
		if b.Bidder == bidder {
			return true
		}
	}
	return false
}
