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

package executor

import (
	"math"
	"sort"

	"github.com/skyquery/query-api/pkg/query"
	"github.com/skyquery/query-api/pkg/store"
)

const hourMillis = int64(3600 * 1000)

// dominanceFactor is how many times more sales one side needs before the
// new method prefers it over the lower of both averages.
const dominanceFactor = 10

// ItemAverage is the average price and sales of one item.
type ItemAverage struct {
	Price float64 `json:"price" yaml:"price"`
	Sales float32 `json:"sales" yaml:"sales"`
}

// window is the aggregate of the hourly buckets falling into one step.
type window struct {
	priceSum float64
	n        int
	sales    float32
}

func (w window) price() float64 {
	return w.priceSum / float64(w.n)
}

// series holds the windows of one item per price kind.
type series struct {
	auctions map[int64]*window
	bins     map[int64]*window
}

func (s *series) side(kind store.PriceKind) map[int64]*window {
	if kind == store.KindBin {
		return s.bins
	}
	return s.auctions
}

// averages folds buckets into per-item averages for op. Buckets are grouped
// into step-hour windows starting at since; within a window prices are
// averaged and sales summed.
func averages(op query.Op, buckets []store.AverageBucket, since int64, step int, method query.AverageMethod) map[string]ItemAverage {
	if step < 1 {
		step = 1
	}
	width := int64(step) * hourMillis

	items := map[string]*series{}
	for _, b := range buckets {
		if b.TimeT < since {
			continue
		}
		s, ok := items[b.ItemID]
		if !ok {
			s = &series{auctions: map[int64]*window{}, bins: map[int64]*window{}}
			items[b.ItemID] = s
		}
		idx := (b.TimeT - since) / width
		side := s.side(b.Kind)
		w, ok := side[idx]
		if !ok {
			w = &window{}
			side[idx] = w
		}
		w.priceSum += b.Price
		w.n++
		w.sales += b.Sales
	}

	out := make(map[string]ItemAverage, len(items))
	for id, s := range items {
		var (
			avg ItemAverage
			ok  bool
		)
		switch op {
		case query.OpAverageAuction:
			avg, ok = single(s.auctions)
		case query.OpAverageBin:
			avg, ok = single(s.bins)
		default:
			avg, ok = combined(s, method)
		}
		if ok {
			out[id] = avg
		}
	}
	return out
}

// single averages the windows of one side.
func single(ws map[int64]*window) (ItemAverage, bool) {
	if len(ws) == 0 {
		return ItemAverage{}, false
	}
	var (
		price float64
		sales float32
	)
	for _, w := range ws {
		price += w.price()
		sales += w.sales
	}
	n := float64(len(ws))
	return ItemAverage{Price: price / n, Sales: float32(float64(sales) / n)}, true
}

// combined applies the auction/BIN preference rule. With the new method a
// side with more than ten times the sales of the other wins outright;
// otherwise, and always with the old method, the lower average wins. A side
// without data never wins. Sales are the mean of per-window totals of both sides.
func combined(s *series, method query.AverageMethod) (ItemAverage, bool) {
	if len(s.auctions) == 0 && len(s.bins) == 0 {
		return ItemAverage{}, false
	}

	auctionAvg, auctionSales := sideAverage(s.auctions)
	binAvg, binSales := sideAverage(s.bins)

	var price float64
	switch {
	case method != query.MethodOld && auctionSales > binSales*dominanceFactor:
		price = auctionAvg
	case method != query.MethodOld && binSales > auctionSales*dominanceFactor:
		price = binAvg
	default:
		price = minIgnoringNaN(auctionAvg, binAvg)
	}

	return ItemAverage{Price: price, Sales: mergedSales(s)}, true
}

// sideAverage returns the mean window price and total sales; the mean is NaN
// when the side is empty.
func sideAverage(ws map[int64]*window) (float64, float64) {
	if len(ws) == 0 {
		return math.NaN(), 0
	}
	var (
		price float64
		sales float64
	)
	for _, w := range ws {
		price += w.price()
		sales += float64(w.sales)
	}
	return price / float64(len(ws)), sales
}

func minIgnoringNaN(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return math.Min(a, b)
	}
}

func mergedSales(s *series) float32 {
	merged := map[int64]float32{}
	for idx, w := range s.auctions {
		merged[idx] += w.sales
	}
	for idx, w := range s.bins {
		merged[idx] += w.sales
	}
	keys := make([]int64, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var total float64
	for _, k := range keys {
		total += float64(merged[k])
	}
	return float32(total / float64(len(keys)))
}
