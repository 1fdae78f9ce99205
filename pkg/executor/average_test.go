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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skyquery/query-api/pkg/query"
	"github.com/skyquery/query-api/pkg/store"
)

func bucket(hour int64, id string, kind store.PriceKind, price float64, sales float32) store.AverageBucket {
	return store.AverageBucket{TimeT: hour * hourMillis, ItemID: id, Kind: kind, Price: price, Sales: sales}
}

func TestAveragesSingleSide(t *testing.T) {
	buckets := []store.AverageBucket{
		bucket(0, "A", store.KindAuction, 100, 2),
		bucket(1, "A", store.KindAuction, 300, 4),
		bucket(0, "A", store.KindBin, 50, 1),
		bucket(0, "B", store.KindBin, 10, 1),
	}

	got := averages(query.OpAverageAuction, buckets, 0, 1, query.MethodNew)
	assert.Equal(t, map[string]ItemAverage{"A": {Price: 200, Sales: 3}}, got)

	got = averages(query.OpAverageBin, buckets, 0, 1, query.MethodNew)
	assert.Equal(t, map[string]ItemAverage{
		"A": {Price: 50, Sales: 1},
		"B": {Price: 10, Sales: 1},
	}, got)
}

func TestAveragesStep(t *testing.T) {
	buckets := []store.AverageBucket{
		bucket(0, "A", store.KindBin, 100, 1),
		bucket(1, "A", store.KindBin, 200, 1),
		bucket(2, "A", store.KindBin, 600, 2),
	}
	// windows: [0,1] -> price 150 sales 2, [2] -> price 600 sales 2
	got := averages(query.OpAverageBin, buckets, 0, 2, query.MethodNew)
	assert.Equal(t, ItemAverage{Price: 375, Sales: 2}, got["A"])
}

func TestAveragesSinceFilters(t *testing.T) {
	buckets := []store.AverageBucket{
		bucket(0, "A", store.KindBin, 100, 1),
		bucket(5, "A", store.KindBin, 200, 1),
	}
	got := averages(query.OpAverageBin, buckets, 5*hourMillis, 1, query.MethodNew)
	assert.Equal(t, ItemAverage{Price: 200, Sales: 1}, got["A"])
}

func TestAveragesCombined(t *testing.T) {
	tests := []struct {
		name    string
		buckets []store.AverageBucket
		method  query.AverageMethod
		want    ItemAverage
	}{
		{
			name: "auction dominates",
			buckets: []store.AverageBucket{
				bucket(0, "A", store.KindAuction, 500, 110),
				bucket(0, "A", store.KindBin, 100, 10),
			},
			method: query.MethodNew,
			want:   ItemAverage{Price: 500, Sales: 120},
		},
		{
			name: "bin dominates",
			buckets: []store.AverageBucket{
				bucket(0, "A", store.KindAuction, 50, 1),
				bucket(0, "A", store.KindBin, 100, 11),
			},
			method: query.MethodNew,
			want:   ItemAverage{Price: 100, Sales: 12},
		},
		{
			name: "balanced takes min",
			buckets: []store.AverageBucket{
				bucket(0, "A", store.KindAuction, 500, 5),
				bucket(0, "A", store.KindBin, 100, 5),
			},
			method: query.MethodNew,
			want:   ItemAverage{Price: 100, Sales: 10},
		},
		{
			name: "old method always min",
			buckets: []store.AverageBucket{
				bucket(0, "A", store.KindAuction, 500, 110),
				bucket(0, "A", store.KindBin, 100, 10),
			},
			method: query.MethodOld,
			want:   ItemAverage{Price: 100, Sales: 120},
		},
		{
			name: "empty auction side yields bins",
			buckets: []store.AverageBucket{
				bucket(0, "A", store.KindBin, 100, 1),
			},
			method: query.MethodOld,
			want:   ItemAverage{Price: 100, Sales: 1},
		},
		{
			name: "empty bin side yields auctions",
			buckets: []store.AverageBucket{
				bucket(0, "A", store.KindAuction, 70, 1),
			},
			method: query.MethodNew,
			want:   ItemAverage{Price: 70, Sales: 1},
		},
		{
			name: "sales averaged over merged windows",
			buckets: []store.AverageBucket{
				bucket(0, "A", store.KindAuction, 100, 1),
				bucket(1, "A", store.KindBin, 100, 3),
			},
			method: query.MethodOld,
			want:   ItemAverage{Price: 100, Sales: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := averages(query.OpAverage, tt.buckets, 0, 1, tt.method)
			assert.Equal(t, tt.want, got["A"])
		})
	}
}
