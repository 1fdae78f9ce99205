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

// Package server provides the HTTP shell shared by query_api commands.
//
// A Server owns the listener, the chi router and the middleware chain.
// Domain routes are contributed with WithRoutes and always run behind:
//
//   - Prometheus RED metrics keyed by route pattern
//   - API version negotiation via the Accept header
//   - Request ID tracking (X-Request-Id)
//   - Panic recovery
//   - Token bucket rate limiting (golang.org/x/time/rate)
//   - Request logging
//
// System endpoints bypass rate limiting:
//
//	GET /        service name, version and route list
//	GET /health  liveness probe, always 200
//	GET /ready   readiness probe, 503 until started or while the ready check fails
//	GET /debug   provider supplied status document
//	GET /metrics Prometheus exposition
//
// Errors raised by the shell itself (unknown route, rate limit, panic) are
// written as failure envelopes through the encoder package so clients see a
// single response shape.
//
// Usage:
//
//	s := server.New(
//	    server.WithName("query_api"),
//	    server.WithRoutes(func(r chi.Router) { r.Get("/query", h) }),
//	)
//	if err := server.Run(ctx, s); err != nil {
//	    return err
//	}
package server
