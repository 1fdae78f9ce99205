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

// Op identifies a query operation.
type Op string

const (
	OpGet            Op = "get"
	OpQuery          Op = "query"
	OpQueryItems     Op = "query_items"
	OpLowestBin      Op = "lowestbin"
	OpAverageAuction Op = "average_auction"
	OpAverageBin     Op = "average_bin"
	OpAverage        Op = "average"
	OpPets           Op = "pets"
)

// String returns the string representation of the Op.
func (o Op) String() string {
	return string(o)
}

// IsValid reports whether o is a supported operation.
func (o Op) IsValid() bool {
	switch o {
	case OpGet, OpQuery, OpQueryItems, OpLowestBin,
		OpAverageAuction, OpAverageBin, OpAverage, OpPets:
		return true
	default:
		return false
	}
}

// Cacheable reports whether results of o may be served from the result cache.
// Point lookups and searches always read the source.
func (o Op) Cacheable() bool {
	switch o {
	case OpQueryItems, OpLowestBin, OpAverageAuction, OpAverageBin, OpAverage, OpPets:
		return true
	default:
		return false
	}
}

// IsAverage reports whether o is one of the average price operations.
func (o Op) IsAverage() bool {
	return o == OpAverageAuction || o == OpAverageBin || o == OpAverage
}

// SupportedOps returns all supported operations in a stable order.
func SupportedOps() []Op {
	return []Op{
		OpGet,
		OpQuery,
		OpQueryItems,
		OpLowestBin,
		OpAverageAuction,
		OpAverageBin,
		OpAverage,
		OpPets,
	}
}
