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

// Package errors provides structured error types for better observability
// and programmatic error handling across the query service.
//
// Every failure that can reach a client is classified by an ErrorCode. The
// four query-facing kinds are:
//
//   - ErrCodeInvalidRequest: the request or query is malformed
//   - ErrCodeNotFound: the referenced data does not exist
//   - ErrCodeUnavailable: a dependency (database, cache, feed) is down
//   - ErrCodeInternal: anything not otherwise classified
//
// CodeOf classifies an arbitrary error, falling back to ErrCodeInternal.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeUnavailable,
//	    "failed to load auctions",
//	    cause,
//	    map[string]any{
//	        "op": "query",
//	    },
//	)
package errors
