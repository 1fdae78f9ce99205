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
	"fmt"

	"github.com/skyquery/query-api/pkg/store"
)

const insertAuction = "INSERT INTO auctions (" + auctionColumns + ") " +
	"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

// upsertBucket merges a bucket into the stored one with sales-weighted prices.
const upsertBucket = "INSERT INTO average_prices (time_t, item_id, kind, price, sales) " +
	"VALUES (?, ?, ?, ?, ?) " +
	"ON CONFLICT (time_t, item_id, kind) DO UPDATE SET " +
	"price = CASE WHEN average_prices.sales + excluded.sales > 0 " +
	"THEN (average_prices.price * average_prices.sales + excluded.price * excluded.sales) / (average_prices.sales + excluded.sales) " +
	"ELSE (average_prices.price + excluded.price) / 2 END, " +
	"sales = average_prices.sales + excluded.sales"

const upsertPet = "INSERT INTO pets (name, price) VALUES (?, ?) " +
	"ON CONFLICT (name) DO UPDATE SET price = excluded.price"

// ReplaceAuctions implements store.Writer.
func (s *Store) ReplaceAuctions(ctx context.Context, auctions []store.Auction) error {
	return s.inTx(ctx, "replace auctions", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM auctions"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, s.rebind(insertAuction))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range auctions {
			enchants, bids, err := encodeLists(a)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, a.UUID, a.Auctioneer, a.EndT, a.ItemName, a.Tier,
				a.ItemID, a.InternalID, a.StartingBid, a.HighestBid, a.LowestBinPrice,
				enchants, a.Bin, bids, a.Count); err != nil {
				return fmt.Errorf("inserting auction %s: %w", a.UUID, err)
			}
		}
		return nil
	})
}

// AddAverageBuckets implements store.Writer.
func (s *Store) AddAverageBuckets(ctx context.Context, buckets []store.AverageBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	return s.inTx(ctx, "add average buckets", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(upsertBucket))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range buckets {
			if _, err := stmt.ExecContext(ctx, b.TimeT, b.ItemID, int(b.Kind), b.Price, b.Sales); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertPetPrices implements store.Writer.
func (s *Store) UpsertPetPrices(ctx context.Context, pets []store.PetPrice) error {
	if len(pets) == 0 {
		return nil
	}
	return s.inTx(ctx, "upsert pet prices", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(upsertPet))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range pets {
			if _, err := stmt.ExecContext(ctx, p.Name, p.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	return nil
}

func encodeLists(a store.Auction) (string, string, error) {
	enchants := a.Enchants
	if enchants == nil {
		enchants = []string{}
	}
	bids := a.Bids
	if bids == nil {
		bids = []store.Bid{}
	}
	e, err := json.Marshal(enchants)
	if err != nil {
		return "", "", fmt.Errorf("encoding enchants of %s: %w", a.UUID, err)
	}
	b, err := json.Marshal(bids)
	if err != nil {
		return "", "", fmt.Errorf("encoding bids of %s: %w", a.UUID, err)
	}
	return string(e), string(b), nil
}
