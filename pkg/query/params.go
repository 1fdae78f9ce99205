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

package query

import (
	"github.com/skyquery/query-api/pkg/store"
)

// GetParams are the parameters of OpGet.
type GetParams struct {
	Key string `param:"key" validate:"required,max=128,printascii"`
}

// SearchParams are the parameters of OpQuery.
type SearchParams struct {
	ItemName   string   `param:"item_name" validate:"omitempty,max=128"`
	Tier       string   `param:"tier" validate:"omitempty,tier"`
	ItemID     string   `param:"item_id" validate:"omitempty,max=64"`
	InternalID string   `param:"internal_id" validate:"omitempty,max=128"`
	Enchants   []string `param:"enchants" validate:"maxitems,dive,required,max=64"`
	Bin        *bool    `param:"bin"`
	Auctioneer string   `param:"auctioneer" validate:"omitempty,max=64,alphanum"`
	Bidder     string   `param:"bidder" validate:"omitempty,max=64,alphanum"`
	MinPrice   *int64   `param:"min_price" validate:"omitempty,min=0"`
	MaxPrice   *int64   `param:"max_price" validate:"omitempty,min=0"`
	EndBefore  *int64   `param:"end_before" validate:"omitempty,min=0"`
	EndAfter   *int64   `param:"end_after" validate:"omitempty,min=0"`
	// Filter is a CEL expression over the auction; it is compiled by the router.
	Filter    string `param:"filter" validate:"omitempty,max=512"`
	SortBy    string `param:"sort_by" validate:"omitempty,sortfield"`
	SortOrder string `param:"sort_order" validate:"omitempty,oneof=ASC DESC"`
	Limit     int    `param:"limit" validate:"min=1"`
}

// StoreFilter converts p into a store.Filter.
func (p SearchParams) StoreFilter() store.Filter {
	return store.Filter{
		ItemName:   p.ItemName,
		Tier:       p.Tier,
		ItemID:     p.ItemID,
		InternalID: p.InternalID,
		Auctioneer: p.Auctioneer,
		Bidder:     p.Bidder,
		Enchants:   p.Enchants,
		Bin:        p.Bin,
		MinPrice:   p.MinPrice,
		MaxPrice:   p.MaxPrice,
		EndBefore:  p.EndBefore,
		EndAfter:   p.EndAfter,
		SortBy:     store.SortField(p.SortBy),
		Descending: p.SortOrder == "DESC",
		Limit:      p.Limit,
	}
}

// LowestBinParams are the parameters of OpLowestBin.
type LowestBinParams struct {
	IDs []string `param:"ids" validate:"maxitems,dive,required,max=128"`
}

// AverageMethod selects how auction and BIN averages are combined.
type AverageMethod string

const (
	// MethodNew prefers the side with more than ten times the sales of the other.
	MethodNew AverageMethod = "new"
	// MethodOld always takes the lower of both averages.
	MethodOld AverageMethod = "old"
)

// AverageParams are the parameters of the average operations.
type AverageParams struct {
	// Time is the lower bound in epoch milliseconds.
	Time   int64         `param:"time" validate:"required,gt=0"`
	Step   int           `param:"step" validate:"min=1"`
	Method AverageMethod `param:"method" validate:"oneof=new old"`
	IDs    []string      `param:"ids" validate:"maxitems,dive,required,max=128"`
}

// PetsParams are the parameters of OpPets.
type PetsParams struct {
	Names []string `param:"query" validate:"required,min=1,maxitems,dive,required,max=64"`
}

// allowedParams lists the parameter names each operation accepts.
var allowedParams = map[Op][]string{
	OpGet: {"key"},
	OpQuery: {
		"item_name", "tier", "item_id", "internal_id", "enchants", "bin",
		"auctioneer", "bidder", "min_price", "max_price", "end_before", "end_after",
		"filter", "sort_by", "sort_order", "limit",
	},
	OpQueryItems:     {},
	OpLowestBin:      {"ids"},
	OpAverageAuction: {"time", "step", "ids"},
	OpAverageBin:     {"time", "step", "ids"},
	OpAverage:        {"time", "step", "method", "ids"},
	OpPets:           {"query"},
}
