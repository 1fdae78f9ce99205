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

// Package defaults provides centralized configuration constants for the query service.
//
// This package defines timeout values, limits, and other configuration defaults
// used across the codebase. Centralizing these values ensures consistency and
// makes tuning easier.
//
// # Categories
//
//   - Handler timeouts: for query execution inside HTTP requests
//   - Server timeouts: for HTTP server configuration
//   - Store timeouts: for database connectivity and migrations
//   - Feed timeouts and intervals: for the auction feed updater
//   - HTTP client timeouts: for outbound requests
//   - Query limits: result sizes and parameter bounds
//
// # Usage
//
//	import "github.com/skyquery/query-api/pkg/defaults"
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.QueryTimeout)
//	defer cancel()
package defaults
