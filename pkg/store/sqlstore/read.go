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

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/skyquery/query-api/pkg/store"
)

const auctionColumns = "uuid, auctioneer, end_t, item_name, tier, item_id, internal_id, " +
	"starting_bid, highest_bid, lowestbin_price, enchants, bin, bids, count"

// priceExpr is the SQL form of store.Auction.Price.
const priceExpr = "(CASE WHEN highest_bid > 0 THEN highest_bid ELSE starting_bid END)"

var sortColumns = map[store.SortField]string{
	store.SortStartingBid: "starting_bid",
	store.SortHighestBid:  "highest_bid",
	store.SortEndT:        "end_t",
	store.SortLowestBin:   "lowestbin_price",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (store.Auction, error) {
	var (
		a        store.Auction
		enchants string
		bids     string
	)
	if err := row.Scan(&a.UUID, &a.Auctioneer, &a.EndT, &a.ItemName, &a.Tier, &a.ItemID,
		&a.InternalID, &a.StartingBid, &a.HighestBid, &a.LowestBinPrice, &enchants,
		&a.Bin, &bids, &a.Count); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(enchants), &a.Enchants); err != nil {
		return a, fmt.Errorf("decoding enchants of %s: %w", a.UUID, err)
	}
	if err := json.Unmarshal([]byte(bids), &a.Bids); err != nil {
		return a, fmt.Errorf("decoding bids of %s: %w", a.UUID, err)
	}
	if a.Enchants == nil {
		a.Enchants = []string{}
	}
	if a.Bids == nil {
		a.Bids = []store.Bid{}
	}
	return a, nil
}

// GetAuction implements store.Reader.
func (s *Store) GetAuction(ctx context.Context, uuid string) (store.Auction, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+auctionColumns+" FROM auctions WHERE uuid = ?"), uuid)
	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Auction{}, store.ErrAuctionNotFound(uuid)
	}
	if err != nil {
		return store.Auction{}, classify("get auction", err)
	}
	return a, nil
}

// SearchAuctions implements store.Reader.
func (s *Store) SearchAuctions(ctx context.Context, f store.Filter) ([]store.Auction, error) {
	where, args := searchWhere(f)

	var b strings.Builder
	b.WriteString("SELECT " + auctionColumns + " FROM auctions")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if col, ok := sortColumns[f.SortBy]; ok {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		b.WriteString(" ORDER BY " + col + " " + dir + ", uuid ASC")
	} else {
		b.WriteString(" ORDER BY uuid ASC")
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, classify("search auctions", err)
	}
	defer rows.Close()

	out := []store.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, classify("search auctions", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("search auctions", err)
	}
	return out, nil
}

// searchWhere builds the predicates of f. Every value is bound, never interpolated.
func searchWhere(f store.Filter) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v ...any) {
		where = append(where, clause)
		args = append(args, v...)
	}

	if f.ItemName != "" {
		add("LOWER(item_name) LIKE ? ESCAPE '\\'", "%"+likeEscape(strings.ToLower(f.ItemName))+"%")
	}
	if f.Tier != "" {
		add("tier = ?", f.Tier)
	}
	if f.ItemID != "" {
		add("item_id = ?", f.ItemID)
	}
	if f.InternalID != "" {
		add("internal_id = ?", f.InternalID)
	}
	if f.Auctioneer != "" {
		add("auctioneer = ?", f.Auctioneer)
	}
	if f.Bidder != "" {
		add("bids LIKE ? ESCAPE '\\'", "%\"bidder\":\""+likeEscape(f.Bidder)+"\"%")
	}
	for _, e := range f.Enchants {
		add("enchants LIKE ? ESCAPE '\\'", "%\""+likeEscape(e)+"\"%")
	}
	if f.Bin != nil {
		add("bin = ?", *f.Bin)
	}
	if f.MinPrice != nil {
		add(priceExpr+" >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(priceExpr+" <= ?", *f.MaxPrice)
	}
	if f.EndBefore != nil {
		add("end_t < ?", *f.EndBefore)
	}
	if f.EndAfter != nil {
		add("end_t > ?", *f.EndAfter)
	}
	return where, args
}

// ItemNames implements store.Reader.
func (s *Store) ItemNames(ctx context.Context) ([]store.ItemName, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT internal_id, MIN(item_name) FROM auctions GROUP BY internal_id ORDER BY internal_id")
	if err != nil {
		return nil, classify("item names", err)
	}
	defer rows.Close()

	out := []store.ItemName{}
	for rows.Next() {
		var n store.ItemName
		if err := rows.Scan(&n.InternalID, &n.Name); err != nil {
			return nil, classify("item names", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("item names", err)
	}
	return out, nil
}

// LowestBins implements store.Reader.
func (s *Store) LowestBins(ctx context.Context, ids []string) (map[string]int64, error) {
	q := "SELECT internal_id, MIN(starting_bid) FROM auctions WHERE bin = ?"
	args := []any{true}
	if len(ids) > 0 {
		var in string
		in, args = inClause(ids, args)
		q += " AND internal_id IN " + in
	}
	q += " GROUP BY internal_id"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, classify("lowest bins", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var (
			id    string
			price int64
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, classify("lowest bins", err)
		}
		out[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, classify("lowest bins", err)
	}
	return out, nil
}

// AverageBuckets implements store.Reader.
func (s *Store) AverageBuckets(ctx context.Context, since int64, ids []string) ([]store.AverageBucket, error) {
	q := "SELECT time_t, item_id, kind, price, sales FROM average_prices WHERE time_t >= ?"
	args := []any{since}
	if len(ids) > 0 {
		var in string
		in, args = inClause(ids, args)
		q += " AND item_id IN " + in
	}
	q += " ORDER BY time_t, item_id, kind"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, classify("average buckets", err)
	}
	defer rows.Close()

	out := []store.AverageBucket{}
	for rows.Next() {
		var (
			b    store.AverageBucket
			kind int
		)
		if err := rows.Scan(&b.TimeT, &b.ItemID, &kind, &b.Price, &b.Sales); err != nil {
			return nil, classify("average buckets", err)
		}
		b.Kind = store.PriceKind(kind)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("average buckets", err)
	}
	return out, nil
}

// PetPrices implements store.Reader. Results follow the order of names.
func (s *Store) PetPrices(ctx context.Context, names []string) ([]store.PetPrice, error) {
	if len(names) == 0 {
		return []store.PetPrice{}, nil
	}
	in, args := inClause(names, nil)
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT name, price FROM pets WHERE name IN "+in), args...)
	if err != nil {
		return nil, classify("pet prices", err)
	}
	defer rows.Close()

	found := map[string]int64{}
	for rows.Next() {
		var p store.PetPrice
		if err := rows.Scan(&p.Name, &p.Price); err != nil {
			return nil, classify("pet prices", err)
		}
		found[p.Name] = p.Price
	}
	if err := rows.Err(); err != nil {
		return nil, classify("pet prices", err)
	}

	out := make([]store.PetPrice, 0, len(found))
	for _, n := range names {
		if p, ok := found[n]; ok {
			out = append(out, store.PetPrice{Name: n, Price: p})
		}
	}
	return out, nil
}
