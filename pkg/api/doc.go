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

// Package api wires the query service together.
//
// It opens the configured data source and result cache, then builds the
// request router, query executor and (when enabled) the feed updater, and
// hands the router's routes to the reusable pkg/server package.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := api.Serve(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Endpoints
//
// Query endpoints (rate limited):
//   - GET /auctions/{key}     - Single auction by uuid
//   - GET /query              - Auction search with optional CEL filter
//   - GET /query_items        - Item names currently on sale
//   - GET /lowestbin          - Lowest BIN per item id
//   - GET /average_auction    - Hourly auction price averages
//   - GET /average_bin        - Hourly BIN price averages
//   - GET /average            - Both averages combined
//   - GET /pets               - Pet prices by TYPE;TIER
//   - POST /v1/query          - Any operation as a JSON body
//
// System endpoints (no rate limiting):
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness; pings the data source
//   - GET /debug   - Build, backend and updater status
//   - GET /metrics - Prometheus metrics
//
// Every query response is a JSON envelope with status, op, requestId and
// either data or error.
//
// Version information is set at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/skyquery/query-api/pkg/api.version=1.0.0'"
package api
