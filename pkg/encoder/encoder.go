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
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/query"
)

// ContentType is the media type of every envelope.
const ContentType = "application/json"

// Envelope is the wire form of a query.Result.
type Envelope struct {
	Status    query.Status    `json:"status"`
	Op        string          `json:"op"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code      qerrors.ErrorCode `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
}

// Encode returns the envelope bytes of r. It never fails: a payload that
// cannot be marshaled turns the result into an INTERNAL failure.
func Encode(r query.Result) []byte {
	env := toEnvelope(r)
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(env); err != nil {
		// Only reachable through Data, which toEnvelope already marshaled.
		slog.Error("envelope encoding failed", "error", err, "requestId", r.QueryID)
		fallback, _ := json.Marshal(Envelope{
			Status:    query.StatusFailure,
			Op:        env.Op,
			RequestID: env.RequestID,
			Error:     &ErrorBody{Code: qerrors.ErrCodeInternal, Message: query.InternalMessage},
		})
		return append(fallback, '\n')
	}
	return buf.Bytes()
}

func toEnvelope(r query.Result) Envelope {
	env := Envelope{Op: validUTF8(string(r.Op)), RequestID: validUTF8(r.QueryID)}

	if r.Status == query.StatusSuccess {
		data, err := json.Marshal(r.Payload)
		if err == nil {
			env.Status = query.StatusSuccess
			env.Data = data
			return env
		}
		slog.Error("payload encoding failed", "error", err, "op", r.Op, "requestId", r.QueryID)
		r.Kind = qerrors.ErrCodeInternal
	}

	code := r.Kind
	if !code.IsKnown() {
		code = qerrors.ErrCodeInternal
	}
	msg := r.Message
	if code == qerrors.ErrCodeInternal {
		msg = query.InternalMessage
	} else if msg == "" {
		msg = query.DefaultMessage(code)
	}

	env.Status = query.StatusFailure
	env.Error = &ErrorBody{Code: code, Message: validUTF8(msg), Retryable: code.Retryable()}
	return env
}

// validUTF8 replaces invalid byte sequences with U+FFFD, as encoding/json
// would, so the envelope compares equal to its decoded form.
func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// HTTPStatus maps an error code to its HTTP status. Unknown codes map to 500.
func HTTPStatus(code qerrors.ErrorCode) int {
	switch code {
	case qerrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case qerrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case qerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case qerrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case qerrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case qerrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case qerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf returns the HTTP status r is written with.
func StatusOf(r query.Result) int {
	env := toEnvelope(r)
	if env.Error == nil {
		return http.StatusOK
	}
	return HTTPStatus(env.Error.Code)
}

// Write writes r to w with its HTTP status. The body is fully encoded before
// any header is written.
func Write(w http.ResponseWriter, r query.Result) {
	body := Encode(r)
	status := StatusOf(r)

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-store")
	if status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Warn("response write failed", "error", err, "requestId", r.QueryID)
	}
}

// Decode parses and validates an envelope and rebuilds its Result. The
// payload of a success decodes into generic JSON values.
func Decode(data []byte) (query.Result, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return query.Result{}, qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "malformed envelope", err)
	}
	if err := envelopeSchema.Validate(raw); err != nil {
		return query.Result{}, qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "envelope does not match schema", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return query.Result{}, qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "malformed envelope", err)
	}

	r := query.Result{Status: env.Status, Op: query.Op(env.Op), QueryID: env.RequestID}
	if env.Status == query.StatusSuccess {
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &r.Payload); err != nil {
				return query.Result{}, qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "malformed payload", err)
			}
		}
		return r, nil
	}
	r.Kind = env.Error.Code
	r.Message = env.Error.Message
	return r, nil
}

// Equivalent reports whether a and b encode to the same envelope.
func Equivalent(a, b query.Result) bool {
	ea, eb := toEnvelope(a), toEnvelope(b)
	if ea.Status != eb.Status || ea.Op != eb.Op || ea.RequestID != eb.RequestID {
		return false
	}
	if !reflect.DeepEqual(ea.Error, eb.Error) {
		return false
	}
	var da, db any
	if len(ea.Data) > 0 {
		_ = json.Unmarshal(ea.Data, &da)
	}
	if len(eb.Data) > 0 {
		_ = json.Unmarshal(eb.Data, &db)
	}
	return reflect.DeepEqual(da, db)
}

const schemaURL = "https://skyquery.dev/schemas/envelope.json"

var envelopeSchema = jsonschema.MustCompileString(schemaURL, `{
  "type": "object",
  "required": ["status", "op", "requestId"],
  "properties": {
    "status": {"enum": ["success", "failure"]},
    "op": {"type": "string"},
    "requestId": {"type": "string"},
    "data": true,
    "error": {
      "type": "object",
      "required": ["code", "message", "retryable"],
      "properties": {
        "code": {"enum": `+codeEnum()+`},
        "message": {"type": "string"},
        "retryable": {"type": "boolean"}
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false,
  "oneOf": [
    {"properties": {"status": {"const": "success"}}, "required": ["data"], "not": {"required": ["error"]}},
    {"properties": {"status": {"const": "failure"}}, "required": ["error"], "not": {"required": ["data"]}}
  ]
}`)

func codeEnum() string {
	b, _ := json.Marshal(qerrors.Codes())
	return string(b)
}
