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

// Package executor runs validated queries against a data source.
//
// Execute returns exactly one query.Result per query and never panics out.
// Failures are classified into the error taxonomy of pkg/errors:
//
//   - INVALID_REQUEST: the query is malformed (re-checked even after routing)
//   - NOT_FOUND: the query is valid but names data that does not exist
//   - SERVICE_UNAVAILABLE: the data source is unreachable or the caller went away
//   - TIMEOUT: the query exceeded its deadline
//   - INTERNAL: anything else
//
// Aggregate operations are served from a result cache when one is
// configured. Cached entries are keyed by a generation counter that
// Invalidate bumps, so a data refresh makes every earlier entry unreachable.
package executor
