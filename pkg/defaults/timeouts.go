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

import "time"

// Handler timeouts for HTTP request processing.
const (
	// QueryHandlerTimeout is the timeout for a single query request.
	QueryHandlerTimeout = 30 * time.Second

	// QueryTimeout is the internal timeout for query execution.
	// Should be less than QueryHandlerTimeout to allow error encoding.
	QueryTimeout = 25 * time.Second

	// QueryCacheTTL is the default lifetime of cached query results.
	QueryCacheTTL = 30 * time.Second
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// Store timeouts for database operations.
const (
	// StoreConnectTimeout bounds the initial ping of the data source.
	StoreConnectTimeout = 5 * time.Second

	// StoreMigrateTimeout bounds schema migrations at startup.
	StoreMigrateTimeout = 60 * time.Second

	// StoreWriteTimeout bounds a single ingest write transaction.
	StoreWriteTimeout = 45 * time.Second

	// StoreBusyTimeout is the SQLite busy timeout.
	StoreBusyTimeout = 5 * time.Second
)

// Feed timeouts and intervals for auction ingestion.
const (
	// FeedUpdateInterval is how often the updater polls the auction feed.
	FeedUpdateInterval = 60 * time.Second

	// FeedMinInterval is the shortest accepted polling interval. The ended
	// auction feed covers the last minute, so polling faster only re-reads it.
	FeedMinInterval = time.Minute

	// FeedCycleTimeout bounds a full ingest cycle.
	FeedCycleTimeout = 50 * time.Second

	// FeedPageTimeout bounds the fetch of a single feed page.
	FeedPageTimeout = 15 * time.Second
)

// HTTP client timeouts for outbound requests.
const (
	// HTTPClientTimeout is the default total timeout for HTTP requests.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second
)

// Auth defaults.
const (
	// TokenExpiry is the default lifetime of minted bearer tokens.
	TokenExpiry = 24 * time.Hour
)
