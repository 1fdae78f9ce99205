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

// Package filter evaluates CEL expressions against auctions.
//
// An expression sees one variable, auction, a map with the JSON field names
// of store.Auction plus price (the current price). It must yield a bool:
//
//	auction.bin && auction.price < 1000000 && "SHARPNESS;6" in auction.enchants
package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"k8s.io/apimachinery/pkg/util/cache"

	"github.com/skyquery/query-api/pkg/defaults"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/store"
)

const (
	variable = "auction"

	// costLimit bounds the work of a single evaluation.
	costLimit = 10000

	programTTL = time.Hour
)

// Compiler compiles and caches filter programs. It is safe for concurrent use.
type Compiler struct {
	env      *cel.Env
	programs *cache.LRUExpireCache
}

// NewCompiler returns a Compiler with the auction environment.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable(variable, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{
		env:      env,
		programs: cache.NewLRUExpireCache(defaults.FilterCacheEntries),
	}, nil
}

// Compile parses and type-checks expr. Errors are INVALID_REQUEST.
func (c *Compiler) Compile(expr string) (cel.Program, error) {
	if v, ok := c.programs.Get(expr); ok {
		return v.(cel.Program), nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, qerrors.WrapWithContext(qerrors.ErrCodeInvalidRequest,
			"invalid filter: "+issues.Err().Error(), issues.Err(), map[string]any{"param": "filter"})
	}
	if t := ast.OutputType(); t != cel.BoolType && t != cel.DynType {
		return nil, qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
			"invalid filter: must evaluate to bool, got "+t.String(), map[string]any{"param": "filter"})
	}

	prg, err := c.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "invalid filter", err)
	}
	c.programs.Add(expr, prg, programTTL)
	return prg, nil
}

// Match evaluates prg against a.
func Match(ctx context.Context, prg cel.Program, a store.Auction) (bool, error) {
	out, _, err := prg.ContextEval(ctx, map[string]any{variable: activation(a)})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "filter evaluation failed: "+err.Error(), err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, qerrors.New(qerrors.ErrCodeInvalidRequest, "filter evaluation failed: result not bool")
	}
	return v, nil
}

// Apply compiles expr and keeps the auctions it matches, at most limit when
// limit is positive.
func (c *Compiler) Apply(ctx context.Context, expr string, auctions []store.Auction, limit int) ([]store.Auction, error) {
	prg, err := c.Compile(expr)
	if err != nil {
		return nil, err
	}
	out := make([]store.Auction, 0, len(auctions))
	for _, a := range auctions {
		ok, err := Match(ctx, prg, a)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func activation(a store.Auction) map[string]any {
	bids := make([]map[string]any, len(a.Bids))
	for i, b := range a.Bids {
		bids[i] = map[string]any{"bidder": b.Bidder, "amount": b.Amount}
	}
	enchants := a.Enchants
	if enchants == nil {
		enchants = []string{}
	}
	return map[string]any{
		"uuid":            a.UUID,
		"auctioneer":      a.Auctioneer,
		"end_t":           a.EndT,
		"item_name":       a.ItemName,
		"tier":            a.Tier,
		"item_id":         a.ItemID,
		"internal_id":     a.InternalID,
		"starting_bid":    a.StartingBid,
		"highest_bid":     a.HighestBid,
		"price":           a.Price(),
		"lowestbin_price": a.LowestBinPrice,
		"enchants":        enchants,
		"bin":             a.Bin,
		"bids":            bids,
		"count":           int64(a.Count),
	}
}
