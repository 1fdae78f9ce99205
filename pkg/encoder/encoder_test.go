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

package encoder

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/query"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code qerrors.ErrorCode
		want int
	}{
		{"invalid request", qerrors.ErrCodeInvalidRequest, http.StatusBadRequest},
		{"unauthorized", qerrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{"not found", qerrors.ErrCodeNotFound, http.StatusNotFound},
		{"method not allowed", qerrors.ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{"rate limit", qerrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{"unavailable", qerrors.ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"timeout", qerrors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{"internal", qerrors.ErrCodeInternal, http.StatusInternalServerError},
		{"unknown defaults to internal", qerrors.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.code); got != tt.want {
				t.Fatalf("HTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestEncodeSuccess(t *testing.T) {
	q := query.New(query.OpLowestBin, nil, query.WithID("req-1"))
	r := query.Succeed(q, map[string]int64{"HYPERION": 800})

	var env map[string]any
	require.NoError(t, json.Unmarshal(Encode(r), &env))
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, "lowestbin", env["op"])
	assert.Equal(t, "req-1", env["requestId"])
	assert.Equal(t, map[string]any{"HYPERION": 800.0}, env["data"])
	assert.NotContains(t, env, "error")
}

func TestEncodeFailure(t *testing.T) {
	q := query.New(query.OpGet, map[string]string{"key": "missing"}, query.WithID("req-2"))

	tests := []struct {
		name      string
		result    query.Result
		code      qerrors.ErrorCode
		message   string
		retryable bool
	}{
		{"not found", query.FailWith(q, qerrors.ErrCodeNotFound, "auction not found"),
			qerrors.ErrCodeNotFound, "auction not found", false},
		{"unavailable", query.FailWith(q, qerrors.ErrCodeUnavailable, "data source unavailable"),
			qerrors.ErrCodeUnavailable, "data source unavailable", true},
		{"internal hides cause", query.Fail(q, errors.New("pq: password authentication failed")),
			qerrors.ErrCodeInternal, query.InternalMessage, false},
		{"unknown kind", query.Result{Status: query.StatusFailure, Op: query.OpGet, QueryID: "req-2",
			Kind: "WEIRD", Message: "secret detail"},
			qerrors.ErrCodeInternal, query.InternalMessage, false},
		{"zero result", query.Result{Op: query.OpGet, QueryID: "req-2"},
			qerrors.ErrCodeInternal, query.InternalMessage, false},
		{"unencodable payload", query.Succeed(q, math.NaN()),
			qerrors.ErrCodeInternal, query.InternalMessage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			require.NoError(t, json.Unmarshal(Encode(tt.result), &env))
			assert.Equal(t, query.StatusFailure, env.Status)
			assert.Nil(t, env.Data)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, tt.message, env.Error.Message)
			assert.Equal(t, tt.retryable, env.Error.Retryable)
		})
	}
}

func TestWrite(t *testing.T) {
	q := query.New(query.OpGet, nil, query.WithID("req-3"))

	t.Run("unavailable sets retry-after", func(t *testing.T) {
		w := httptest.NewRecorder()
		Write(w, query.FailWith(q, qerrors.ErrCodeUnavailable, "down"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.Equal(t, ContentType, w.Header().Get("Content-Type"))
	})

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		Write(w, query.Succeed(q, []string{"a"}))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Retry-After"))

		r, err := Decode(w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, []any{"a"}, r.Payload)
	})
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing status", `{"op":"get","requestId":"x","data":1}`},
		{"bad status", `{"status":"pending","op":"get","requestId":"x","data":1}`},
		{"success without data", `{"status":"success","op":"get","requestId":"x"}`},
		{"failure without error", `{"status":"failure","op":"get","requestId":"x"}`},
		{"both data and error", `{"status":"failure","op":"get","requestId":"x","data":1,"error":{"code":"NOT_FOUND","message":"m","retryable":false}}`},
		{"unknown code", `{"status":"failure","op":"get","requestId":"x","error":{"code":"NOPE","message":"m","retryable":false}}`},
		{"extra field", `{"status":"success","op":"get","requestId":"x","data":1,"debug":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, qerrors.ErrCodeInvalidRequest, qerrors.CodeOf(err))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	kinds := []any{"", "WEIRD"}
	for _, c := range qerrors.Codes() {
		kinds = append(kinds, c)
	}

	properties.Property("decode(encode(r)) is equivalent to r", prop.ForAll(
		func(success bool, op, id, message string, kind any, payload map[string]int64) bool {
			var r query.Result
			if success {
				r = query.Result{Status: query.StatusSuccess, Op: query.Op(op), QueryID: id, Payload: payload}
			} else {
				r = query.Result{Status: query.StatusFailure, Op: query.Op(op), QueryID: id,
					Kind: toCode(kind), Message: message}
			}
			decoded, err := Decode(Encode(r))
			if err != nil {
				return false
			}
			return Equivalent(r, decoded) && Equivalent(decoded, r)
		},
		gen.Bool(),
		gen.OneConstOf("get", "query", "lowestbin", "average", "pets", ""),
		gen.Identifier(),
		gen.AlphaString(),
		gen.OneConstOf(kinds...),
		gen.MapOf(gen.Identifier(), gen.Int64()),
	))

	properties.Property("every encoded failure has a known code", prop.ForAll(
		func(kind any, message string) bool {
			r := query.Result{Status: query.StatusFailure, Kind: toCode(kind), Message: message}
			var env Envelope
			if err := json.Unmarshal(Encode(r), &env); err != nil {
				return false
			}
			if env.Error == nil || !env.Error.Code.IsKnown() {
				return false
			}
			return env.Error.Code != qerrors.ErrCodeInternal || env.Error.Message == query.InternalMessage
		},
		gen.OneConstOf(kinds...),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func toCode(v any) qerrors.ErrorCode {
	switch c := v.(type) {
	case qerrors.ErrorCode:
		return c
	case string:
		return qerrors.ErrorCode(c)
	default:
		return ""
	}
}

func TestInvalidUTF8RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		r    query.Result
	}{
		{"failure message", query.Result{Status: query.StatusFailure, Op: query.OpGet, QueryID: "id",
			Kind: qerrors.ErrCodeNotFound, Message: "bad \xff key"}},
		{"run of bad bytes", query.Result{Status: query.StatusFailure, Op: query.OpGet, QueryID: "id",
			Kind: qerrors.ErrCodeInvalidRequest, Message: "a\xff\xfe\xfdb"}},
		{"op and request id", query.Result{Status: query.StatusSuccess, Op: query.Op("g\xc3et"), QueryID: "i\xffd",
			Payload: map[string]string{"k": "v\xff"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Encode(tt.r)
			require.True(t, json.Valid(data), "invalid json: %q", data)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.True(t, Equivalent(tt.r, decoded), "decoded %+v", decoded)
			assert.True(t, Equivalent(decoded, tt.r))
		})
	}
}

func TestEquivalent(t *testing.T) {
	q := query.New(query.OpPets, nil, query.WithID("id"))
	a := query.Succeed(q, map[string]int{"x": 1})
	b := query.Succeed(q, map[string]float64{"x": 1})
	c := query.Succeed(q, map[string]int{"x": 2})

	assert.True(t, Equivalent(a, b))
	assert.False(t, Equivalent(a, c))
	assert.False(t, Equivalent(a, query.FailWith(q, qerrors.ErrCodeNotFound, "")))
}
