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

package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skyquery/query-api/pkg/auth"
	"github.com/skyquery/query-api/pkg/defaults"
	"github.com/skyquery/query-api/pkg/encoder"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/executor"
	"github.com/skyquery/query-api/pkg/filter"
	"github.com/skyquery/query-api/pkg/query"
	"github.com/skyquery/query-api/pkg/server"
)

var rejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "query_api_router_rejections_total",
		Help: "Requests rejected before execution by operation and kind",
	},
	[]string{"op", "kind"},
)

// Request is the body of POST /v1/query.
type Request struct {
	Op     string            `json:"op"`
	Params map[string]string `json:"params,omitempty"`
}

// Option configures a Router.
type Option func(*Router)

// WithAuthenticator sets the identity resolver. Without one every request is
// anonymous.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(rt *Router) {
		if a != nil {
			rt.auth = a
		}
	}
}

// WithLimits sets the parameter limits used for validation.
func WithLimits(l query.Limits) Option {
	return func(rt *Router) {
		rt.limits = l
	}
}

// WithFilterCompiler shares a compiler with the executor.
func WithFilterCompiler(c *filter.Compiler) Option {
	return func(rt *Router) {
		if c != nil {
			rt.filters = c
		}
	}
}

// WithTimeout bounds the execution of a single request.
func WithTimeout(d time.Duration) Option {
	return func(rt *Router) {
		rt.timeout = d
	}
}

// Router validates requests and dispatches them to a Runner.
type Router struct {
	runner  executor.Runner
	auth    *auth.Authenticator
	filters *filter.Compiler
	limits  query.Limits
	timeout time.Duration
}

// New returns a Router dispatching to runner.
func New(runner executor.Runner, opts ...Option) (*Router, error) {
	if runner == nil {
		return nil, errors.New("router requires a runner")
	}
	rt := &Router{
		runner:  runner,
		auth:    auth.New(auth.Config{}),
		limits:  query.DefaultLimits(),
		timeout: defaults.QueryHandlerTimeout,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.filters == nil {
		c, err := filter.NewCompiler()
		if err != nil {
			return nil, err
		}
		rt.filters = c
	}
	return rt, nil
}

// Routes registers the query routes on r.
func (rt *Router) Routes(r chi.Router) {
	r.Get("/auctions/{key}", rt.handleGet)
	for _, op := range query.SupportedOps() {
		if op == query.OpGet {
			continue
		}
		r.Get("/"+op.String(), rt.handleOp(op))
	}
	r.Post("/v1/query", rt.handlePost)
}

func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	params, err := flatten(r.URL.Query())
	if err == nil {
		params["key"] = chi.URLParam(r, "key")
	}
	rt.dispatch(w, r, query.OpGet, params, err)
}

func (rt *Router) handleOp(op query.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := flatten(r.URL.Query())
		rt.dispatch(w, r, op, params, err)
	}
}

func (rt *Router) handlePost(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	rt.dispatch(w, r, query.Op(req.Op), req.Params, err)
}

// dispatch is the single path from a parsed request to a written response.
// parseErr is the error from reading the request, if any.
func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request, op query.Op, params map[string]string, parseErr error) {
	ctx := r.Context()

	identity, authErr := rt.auth.Identify(r)
	q := query.New(op, params,
		query.WithID(server.RequestIDFrom(ctx)),
		query.WithRequestedBy(identity),
	)

	if err := rt.check(q, parseErr, authErr); err != nil {
		res := query.Fail(q, err)
		rejectionsTotal.WithLabelValues(metricOp(op), string(res.Kind)).Inc()
		slog.Debug("query rejected",
			"requestID", q.ID(),
			"op", op,
			"kind", res.Kind,
			"message", res.Message,
		)
		encoder.Write(w, res)
		return
	}

	ctx = auth.WithIdentity(ctx, identity)
	if rt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.timeout)
		defer cancel()
	}

	encoder.Write(w, rt.runner.Execute(ctx, q))
}

// check returns the first reason q must not be executed.
func (rt *Router) check(q query.Query, parseErr, authErr error) error {
	if parseErr != nil {
		return parseErr
	}
	if authErr != nil {
		return authErr
	}
	if err := query.Validate(q, rt.limits); err != nil {
		return err
	}
	if q.Op() == query.OpQuery {
		if expr := q.Get("filter"); expr != "" {
			if _, err := rt.filters.Compile(expr); err != nil {
				return err
			}
		}
	}
	return nil
}

// flatten converts URL values into a parameter map. A parameter given more
// than once is ambiguous and rejected.
func flatten(values url.Values) (map[string]string, error) {
	params := make(map[string]string, len(values))
	for name, vs := range values {
		if len(vs) > 1 {
			return params, qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
				fmt.Sprintf("parameter %q given more than once", name),
				map[string]any{"param": name})
		}
		params[name] = vs[0]
	}
	return params, nil
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	var req Request
	body := http.MaxBytesReader(w, r.Body, defaults.QueryMaxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return Request{}, qerrors.New(qerrors.ErrCodeInvalidRequest,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		return Request{}, qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "invalid request body", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Request{}, qerrors.New(qerrors.ErrCodeInvalidRequest, "request body must be a single JSON object")
	}
	if req.Op == "" {
		return req, qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
			"op is required", map[string]any{"param": "op"})
	}
	return req, nil
}

// metricOp bounds label cardinality to known operations.
func metricOp(op query.Op) string {
	if op.IsValid() {
		return op.String()
	}
	return "unknown"
}
