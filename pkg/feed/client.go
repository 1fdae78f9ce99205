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

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/skyquery/query-api/pkg/defaults"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/serializer"
	"github.com/skyquery/query-api/pkg/store"
)

// DefaultBaseURL is the public feed endpoint.
const DefaultBaseURL = "https://api.hypixel.net/v2"

// Client fetches feed documents.
type Client struct {
	base   string
	reader *serializer.HttpReader
}

// NewClient returns a Client for the feed rooted at baseURL.
func NewClient(baseURL string, opts ...serializer.HttpReaderOption) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
			"invalid feed url", map[string]any{"url": baseURL})
	}
	opts = append([]serializer.HttpReaderOption{
		serializer.WithTotalTimeout(defaults.FeedPageTimeout),
	}, opts...)
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		reader: serializer.NewHttpReader(opts...),
	}, nil
}

// Page fetches page n of the active auctions, starting at zero.
func (c *Client) Page(ctx context.Context, n int) (*Page, error) {
	var p Page
	if err := c.get(ctx, "/skyblock/auctions?page="+strconv.Itoa(n), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Ended fetches the auctions that ended recently.
func (c *Client) Ended(ctx context.Context) (*Ended, error) {
	var e Ended
	if err := c.get(ctx, "/skyblock/auctions_ended", &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	data, err := c.reader.ReadWithContext(ctx, c.base+path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return qerrors.Wrap(qerrors.ErrCodeUnavailable, "feed request failed", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeInternal,
			fmt.Sprintf("failed to decode feed document %s", path), err)
	}
	return nil
}

// Convert decodes the item of a and returns the stored form of the auction.
func Convert(a Auction) (store.Auction, Item, error) {
	item, err := DecodeItem(a.ItemBytes)
	if err != nil {
		return store.Auction{}, Item{}, fmt.Errorf("auction %s: %w", a.UUID, err)
	}

	bids := make([]store.Bid, 0, len(a.Bids))
	for _, b := range a.Bids {
		bids = append(bids, store.Bid{Bidder: b.Bidder, Amount: b.Amount})
	}

	tier := strings.ToUpper(a.Tier)
	if item.PetTier != "" {
		tier = item.PetTier
	}

	return store.Auction{
		UUID:        a.UUID,
		Auctioneer:  a.Auctioneer,
		EndT:        a.End,
		ItemName:    StripFormatting(a.ItemName),
		Tier:        tier,
		ItemID:      item.ID,
		InternalID:  item.InternalID,
		StartingBid: a.StartingBid,
		HighestBid:  a.HighestBidAmount,
		Enchants:    item.Enchants,
		Bin:         a.Bin,
		Bids:        bids,
		Count:       item.Count,
	}, item, nil
}
