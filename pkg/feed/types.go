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

package feed

// Bid is a bid as published by the feed.
type Bid struct {
	Bidder    string `json:"bidder"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// Auction is an active auction as published by the feed.
type Auction struct {
	UUID             string `json:"uuid"`
	Auctioneer       string `json:"auctioneer"`
	End              int64  `json:"end"`
	ItemName         string `json:"item_name"`
	ItemLore         string `json:"item_lore"`
	Tier             string `json:"tier"`
	StartingBid      int64  `json:"starting_bid"`
	HighestBidAmount int64  `json:"highest_bid_amount"`
	ItemBytes        string `json:"item_bytes"`
	Bin              bool   `json:"bin"`
	Bids             []Bid  `json:"bids"`
	LastUpdated      int64  `json:"last_updated"`
}

// Page is one page of active auctions.
type Page struct {
	Success     bool      `json:"success"`
	Page        int       `json:"page"`
	TotalPages  int       `json:"totalPages"`
	LastUpdated int64     `json:"lastUpdated"`
	Auctions    []Auction `json:"auctions"`
}

// EndedAuction is an auction that ended in the last minute.
type EndedAuction struct {
	AuctionID string `json:"auction_id"`
	Price     int64  `json:"price"`
	Bin       bool   `json:"bin"`
	ItemBytes string `json:"item_bytes"`
	Timestamp int64  `json:"timestamp"`
}

// Ended is the list of recently ended auctions.
type Ended struct {
	Success     bool           `json:"success"`
	LastUpdated int64          `json:"lastUpdated"`
	Auctions    []EndedAuction `json:"auctions"`
}
