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

// Package router turns HTTP requests into queries.
//
// Every request is resolved to an operation and a flat parameter map, the
// caller is identified, and the query is validated. Only a query that passes
// every check reaches the executor; anything else is answered directly with
// an INVALID_REQUEST or UNAUTHORIZED failure envelope.
//
// Routes:
//
//	GET  /auctions/{key}    get
//	GET  /query             query
//	GET  /query_items       query_items
//	GET  /lowestbin         lowestbin
//	GET  /average_auction   average_auction
//	GET  /average_bin       average_bin
//	GET  /average           average
//	GET  /pets              pets
//	POST /v1/query          {"op": "...", "params": {...}}
package router
