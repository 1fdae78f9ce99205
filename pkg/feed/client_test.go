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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/skyquery/query-api/pkg/errors"
)

func newFeedServer(t *testing.T, pages []Page, ended Ended) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/skyblock/auctions", func(w http.ResponseWriter, r *http.Request) {
		var n int
		if err := json.Unmarshal([]byte(r.URL.Query().Get("page")), &n); err != nil || n >= len(pages) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(pages[n])
	})
	mux.HandleFunc("/skyblock/auctions_ended", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ended)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPageAndEnded(t *testing.T) {
	raw, err := EncodeItem("Stone", 1, Attributes{ID: "STONE"})
	require.NoError(t, err)

	srv := newFeedServer(t,
		[]Page{{Success: true, Page: 0, TotalPages: 1, Auctions: []Auction{{UUID: "a1", ItemBytes: raw}}}},
		Ended{Success: true, Auctions: []EndedAuction{{AuctionID: "e1", Price: 10, ItemBytes: raw}}},
	)

	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)

	p, err := c.Page(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalPages)
	require.Len(t, p.Auctions, 1)
	assert.Equal(t, "a1", p.Auctions[0].UUID)

	e, err := c.Ended(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Auctions, 1)
	assert.Equal(t, int64(10), e.Auctions[0].Price)
}

func TestClientErrors(t *testing.T) {
	srv := newFeedServer(t, nil, Ended{})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Page(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeUnavailable, qerrors.CodeOf(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Page(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeInvalidRequest, qerrors.CodeOf(err))
}

func TestConvert(t *testing.T) {
	raw, err := EncodeItem("§6Golden Dragon", 1, Attributes{
		ID:      "PET",
		PetInfo: `{"type":"GOLDEN_DRAGON","tier":"LEGENDARY"}`,
	})
	require.NoError(t, err)

	a, item, err := Convert(Auction{
		UUID:             "u1",
		Auctioneer:       "p1",
		End:              1000,
		ItemName:         "§7[Lvl 1] Golden Dragon",
		Tier:             "EPIC",
		StartingBid:      5,
		HighestBidAmount: 7,
		ItemBytes:        raw,
		Bids:             []Bid{{Bidder: "b1", Amount: 7}},
	})
	require.NoError(t, err)
	assert.Equal(t, "GOLDEN_DRAGON;LEGENDARY", a.InternalID)
	assert.Equal(t, "LEGENDARY", a.Tier)
	assert.Equal(t, "[Lvl 1] Golden Dragon", a.ItemName)
	assert.Equal(t, "PET", a.ItemID)
	assert.Equal(t, int64(7), a.Price())
	assert.Len(t, a.Bids, 1)
	assert.Equal(t, "LEGENDARY", item.PetTier)

	_, _, err = Convert(Auction{UUID: "bad", ItemBytes: "!!"})
	assert.Error(t, err)
}
