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

package defaults

// Query limits.
const (
	// QueryDefaultLimit is the number of auctions returned when limit is omitted.
	QueryDefaultLimit = 100

	// QueryMaxLimit is the upper bound for the limit parameter.
	QueryMaxLimit = 1000

	// QueryMaxListItems bounds comma separated list parameters (ids, pets, enchants).
	QueryMaxListItems = 100

	// QueryMaxParamLength bounds any single parameter value.
	QueryMaxParamLength = 512

	// QueryMaxBodyBytes bounds the body of POST /v1/query.
	QueryMaxBodyBytes = 64 << 10

	// AverageMaxStepHours bounds the step parameter of average queries.
	AverageMaxStepHours = 24 * 7

	// CacheMaxEntries bounds the in-process result cache.
	CacheMaxEntries = 4096

	// FilterCacheEntries bounds the compiled filter program cache.
	FilterCacheEntries = 256
)

// Feed limits.
const (
	// FeedPageConcurrency bounds concurrent page fetches per cycle.
	FeedPageConcurrency = 8

	// FeedDecodeWorkers is the size of the item decoding worker pool.
	FeedDecodeWorkers = 16
)
