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
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyquery/query-api/pkg/auth"
	"github.com/skyquery/query-api/pkg/encoder"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/executor"
	"github.com/skyquery/query-api/pkg/query"
	"github.com/skyquery/query-api/pkg/store/memory"
)

// spyRunner records every query it receives and answers with success.
type spyRunner struct {
	mu      sync.Mutex
	queries []query.Query
}

func (s *spyRunner) Execute(_ context.Context, q query.Query) query.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	return query.Succeed(q, map[string]string{"ok": "yes"})
}

func (s *spyRunner) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func (s *spyRunner) last() query.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func newHandler(t *testing.T, runner executor.Runner, opts ...Option) http.Handler {
	t.Helper()
	rt, err := New(runner, opts...)
	require.NoError(t, err)
	mux := chi.NewRouter()
	rt.Routes(mux)
	return mux
}

func do(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, encoder.Envelope) {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env encoder.Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestNewRequiresRunner(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestRejectedBeforeExecutor(t *testing.T) {
	future := time.Now().Add(48 * time.Hour).UnixMilli()

	tests := []struct {
		name string
		path string
		code qerrors.ErrorCode
	}{
		{"unknown param", "/query_items?foo=1", qerrors.ErrCodeInvalidRequest},
		{"duplicate param", "/query?tier=RARE&tier=EPIC", qerrors.ErrCodeInvalidRequest},
		{"bad tier", "/query?tier=GODLY", qerrors.ErrCodeInvalidRequest},
		{"bad bool", "/query?bin=maybe", qerrors.ErrCodeInvalidRequest},
		{"limit too large", "/query?limit=100000", qerrors.ErrCodeInvalidRequest},
		{"price range inverted", "/query?min_price=10&max_price=1", qerrors.ErrCodeInvalidRequest},
		{"bad sort", "/query?sort_by=color", qerrors.ErrCodeInvalidRequest},
		{"filter not bool", "/query?filter=" + url.QueryEscape("'a' + 'b'"), qerrors.ErrCodeInvalidRequest},
		{"filter syntax", "/query?filter=" + url.QueryEscape("auction.bin ==="), qerrors.ErrCodeInvalidRequest},
		{"average missing time", "/average", qerrors.ErrCodeInvalidRequest},
		{"average future time", "/average_bin?time=" + strconvI(future), qerrors.ErrCodeInvalidRequest},
		{"average bad method", "/average?time=1&method=median", qerrors.ErrCodeInvalidRequest},
		{"pets missing query", "/pets", qerrors.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyRunner{}
			h := newHandler(t, spy)

			w, env := do(h, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, query.StatusFailure, env.Status)
			assert.Zero(t, spy.calls(), "executor must not run")
		})
	}
}

func TestDispatchesValidQueries(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		op     query.Op
		params map[string]string
	}{
		{"get by path", "/auctions/abc123", query.OpGet, map[string]string{"key": "abc123"}},
		{"search", "/query?tier=LEGENDARY&bin=true", query.OpQuery, map[string]string{"tier": "LEGENDARY", "bin": "true"}},
		{"filtered search", "/query?filter=" + url.QueryEscape("auction.price > 10"), query.OpQuery, map[string]string{"filter": "auction.price > 10"}},
		{"items", "/query_items", query.OpQueryItems, map[string]string{}},
		{"lowestbin", "/lowestbin?ids=A,B", query.OpLowestBin, map[string]string{"ids": "A,B"}},
		{"average", "/average?time=1&step=2", query.OpAverage, map[string]string{"time": "1", "step": "2"}},
		{"pets", "/pets?query=WOLF%3BLEGENDARY", query.OpPets, map[string]string{"query": "WOLF;LEGENDARY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyRunner{}
			h := newHandler(t, spy)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w, env := do(h, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			require.Equal(t, 1, spy.calls())
			q := spy.last()
			assert.Equal(t, tt.op, q.Op())
			assert.Equal(t, tt.params, q.Params())
			assert.Equal(t, query.StatusSuccess, env.Status)
			assert.Equal(t, string(tt.op), env.Op)
		})
	}
}

func TestPostQuery(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		executed bool
	}{
		{"valid", `{"op":"get","params":{"key":"k1"}}`, http.StatusOK, true},
		{"unknown op", `{"op":"drop_tables"}`, http.StatusBadRequest, false},
		{"missing op", `{"params":{}}`, http.StatusBadRequest, false},
		{"unknown field", `{"op":"get","sql":"select 1"}`, http.StatusBadRequest, false},
		{"not json", `op=get`, http.StatusBadRequest, false},
		{"trailing data", `{"op":"query_items"}{}`, http.StatusBadRequest, false},
		{"non string param", `{"op":"get","params":{"key":1}}`, http.StatusBadRequest, false},
		{"oversized", `{"op":"get","params":{"key":"` + strings.Repeat("x", 70<<10) + `"}}`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyRunner{}
			h := newHandler(t, spy)

			req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w, env := do(h, req)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.executed, spy.calls() == 1)
			if !tt.executed {
				require.NotNil(t, env.Error)
				assert.Equal(t, qerrors.ErrCodeInvalidRequest, env.Error.Code)
			}
		})
	}
}

func TestAuthentication(t *testing.T) {
	secret := []byte("test-secret")
	a := auth.New(auth.Config{
		APIKeys:   map[string]string{"ops": "k-123"},
		JWTSecret: secret,
		Required:  true,
	})
	token, err := auth.NewToken(secret, "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		value    string
		status   int
		identity string
	}{
		{"anonymous rejected", "", "", http.StatusUnauthorized, ""},
		{"bad key", auth.HeaderAPIKey, "nope", http.StatusUnauthorized, ""},
		{"api key", auth.HeaderAPIKey, "k-123", http.StatusOK, "apikey:ops"},
		{"bearer", "Authorization", "Bearer " + token, http.StatusOK, "alice"},
		{"bad bearer", "Authorization", "Bearer junk", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyRunner{}
			h := newHandler(t, spy, WithAuthenticator(a))

			req := httptest.NewRequest(http.MethodGet, "/query_items", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w, env := do(h, req)

			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Zero(t, spy.calls())
				require.NotNil(t, env.Error)
				assert.Equal(t, qerrors.ErrCodeUnauthorized, env.Error.Code)
				return
			}
			assert.Equal(t, tt.identity, spy.last().RequestedBy())
		})
	}
}

func TestGetMissingEndToEnd(t *testing.T) {
	exec, err := executor.New(memory.New())
	require.NoError(t, err)
	h := newHandler(t, exec)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"op":"get","params":{"key":"missing"}}`))
	w, env := do(h, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, query.StatusFailure, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, qerrors.ErrCodeNotFound, env.Error.Code)
	assert.False(t, env.Error.Retryable)
}

func TestMalformedNeverReachesExecutor(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	spy := &spyRunner{}
	h := newHandler(t, spy)

	ops := make([]any, 0, len(query.SupportedOps()))
	for _, op := range query.SupportedOps() {
		if op != query.OpGet {
			ops = append(ops, string(op))
		}
	}

	properties.Property("unknown parameters are rejected", prop.ForAll(
		func(op, name, value string) bool {
			name = "x_" + name
			path := "/" + op + "?" + url.Values{name: {value}}.Encode()
			w, env := do(h, httptest.NewRequest(http.MethodGet, path, nil))
			return w.Code == http.StatusBadRequest && env.Error != nil && spy.calls() == 0
		},
		gen.OneConstOf(ops...),
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("non numeric time is rejected", prop.ForAll(
		func(op, value string) bool {
			path := "/" + op + "?time=" + url.QueryEscape(value)
			w, _ := do(h, httptest.NewRequest(http.MethodGet, path, nil))
			return w.Code == http.StatusBadRequest && spy.calls() == 0
		},
		gen.OneConstOf("average", "average_bin", "average_auction"),
		gen.Identifier(),
	))

	properties.Property("unsupported operations are rejected", prop.ForAll(
		func(op string) bool {
			if query.Op(op).IsValid() {
				return true
			}
			body, _ := json.Marshal(Request{Op: op})
			req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(string(body)))
			w, _ := do(h, req)
			return w.Code == http.StatusBadRequest && spy.calls() == 0
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func strconvI(v int64) string {
	return strconv.FormatInt(v, 10)
}
