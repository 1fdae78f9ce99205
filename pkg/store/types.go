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

// Tier is the rarity of an auctioned item.
type Tier string

const (
	TierCommon      Tier = "COMMON"
	TierUncommon    Tier = "UNCOMMON"
	TierRare        Tier = "RARE"
	TierEpic        Tier = "EPIC"
	TierLegendary   Tier = "LEGENDARY"
	TierMythic      Tier = "MYTHIC"
	TierDivine      Tier = "DIVINE"
	TierSpecial     Tier = "SPECIAL"
	TierVerySpecial Tier = "VERY_SPECIAL"
	TierUltimate    Tier = "ULTIMATE"
	TierAdmin       Tier = "ADMIN"
)

// Tiers returns all known tiers in rarity order.
func Tiers() []Tier {
	return []Tier{
		TierCommon, TierUncommon, TierRare, TierEpic, TierLegendary, TierMythic,
		TierDivine, TierSpecial, TierVerySpecial, TierUltimate, TierAdmin,
	}
}

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	for _, k := range Tiers() {
		if t == k {
			return true
		}
	}
	return false
}

// Index returns the rarity position of t, or -1 if unknown.
func (t Tier) Index() int {
	for i, k := range Tiers() {
		if t == k {
			return i
		}
	}
	return -1
}

// Bid is a single bid on an auction.
type Bid struct {
	Bidder string `json:"bidder" yaml:"bidder"`
	Amount int64  `json:"amount" yaml:"amount"`
}

// Auction is an active auction as served to clients.
type Auction struct {
	UUID        string `json:"uuid" yaml:"uuid"`
	Auctioneer  string `json:"auctioneer" yaml:"auctioneer"`
	EndT        int64  `json:"end_t" yaml:"end_t"`
	ItemName    string `json:"item_name" yaml:"item_name"`
	Tier        string `json:"tier" yaml:"tier"`
	ItemID      string `json:"item_id" yaml:"item_id"`
	InternalID  string `json:"internal_id" yaml:"internal_id"`
	StartingBid int64  `json:"starting_bid" yaml:"starting_bid"`
	HighestBid  int64  `json:"highest_bid" yaml:"highest_bid"`
	// LowestBinPrice is the lowest BIN price of the same internal id at ingest time.
	LowestBinPrice float64  `json:"-" yaml:"-"`
	Enchants       []string `json:"enchants" yaml:"enchants"`
	Bin            bool     `json:"bin" yaml:"bin"`
	Bids           []Bid    `json:"bids" yaml:"bids"`
	Count          int32    `json:"count" yaml:"count"`
}

// Price returns the current price of the auction: the highest bid when
// there is one, otherwise the starting bid.
func (a Auction) Price() int64 {
	if a.HighestBid > 0 {
		return a.HighestBid
	}
	return a.StartingBid
}

// ItemName pairs a display name with an internal id.
type ItemName struct {
	Name       string `json:"name" yaml:"name"`
	InternalID string `json:"id" yaml:"id"`
}

// PriceKind distinguishes regular auctions from buy-it-now sales.
type PriceKind int

const (
	KindAuction PriceKind = 0
	KindBin     PriceKind = 1
)

// String returns the string representation of the PriceKind.
func (k PriceKind) String() string {
	if k == KindBin {
		return "bin"
	}
	return "auction"
}

// AverageBucket is the aggregated price of one item for one hour and kind.
type AverageBucket struct {
	// TimeT is the start of the hour in epoch milliseconds.
	TimeT  int64
	ItemID string
	Kind   PriceKind
	Price  float64
	Sales  float32
}

// PetPrice is the price of a pet key such as LEGENDARY_ENDER_DRAGON.
type PetPrice struct {
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
}
