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

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/serializer"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, qerrors.ErrCodeNotFound, "no such route")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, qerrors.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// System endpoints (no rate limiting)
	mux.Group(func(r chi.Router) {
		r.Use(s.metricsMiddleware, s.requestIDMiddleware)
		r.Get("/", s.handleDefault)
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/debug", s.handleDebug)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})

	// API endpoints with middleware
	mux.Group(func(r chi.Router) {
		r.Use(
			s.metricsMiddleware,
			s.versionMiddleware,
			s.requestIDMiddleware,
			s.panicRecoveryMiddleware, // Recover first to prevent token waste on panics
			s.rateLimitMiddleware,
			s.loggingMiddleware,
		)
		for _, register := range s.routes {
			register(r)
		}
	})

	return mux
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	slog.Debug("handling default route",
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	)

	resp := struct {
		Name      string   `json:"name"`
		Version   string   `json:"version"`
		Ready     bool     `json:"ready"`
		Timestamp string   `json:"timestamp"`
		Routes    []string `json:"routes"`
	}{
		Name:      s.config.Name,
		Version:   s.config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Routes:    s.routeList(),
	}

	s.mu.RLock()
	resp.Ready = s.ready
	s.mu.RUnlock()

	serializer.RespondJSON(w, http.StatusOK, resp)
}

func (s *Server) routeList() []string {
	var out []string
	mux, ok := s.httpServer.Handler.(chi.Routes)
	if !ok {
		return out
	}
	_ = chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, method+" "+route)
		return nil
	})
	return out
}
