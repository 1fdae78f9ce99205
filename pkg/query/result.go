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

package query

import (
	qerrors "github.com/skyquery/query-api/pkg/errors"
)

// Status is the terminal status of a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// IsValid reports whether s is a terminal status.
func (s Status) IsValid() bool {
	return s == StatusSuccess || s == StatusFailure
}

// InternalMessage replaces the message of every INTERNAL failure so that
// internal detail never reaches a client.
const InternalMessage = "internal error"

// Result is the outcome of executing a Query.
type Result struct {
	// Status is success or failure.
	Status Status
	// Op is the operation of the originating Query.
	Op Op
	// QueryID is the id of the originating Query.
	QueryID string
	// Kind classifies a failure. Empty on success.
	Kind qerrors.ErrorCode
	// Payload is the structured data of a success. Nil on failure.
	Payload any
	// Message is the client-safe diagnostic of a failure.
	Message string

	cause error
}

// Succeed builds the success Result of q.
func Succeed(q Query, payload any) Result {
	return Result{
		Status:  StatusSuccess,
		Op:      q.Op(),
		QueryID: q.ID(),
		Payload: payload,
	}
}

// Fail builds the failure Result of q from err. The kind is derived with
// errors.CodeOf; INTERNAL failures carry InternalMessage regardless of err.
func Fail(q Query, err error) Result {
	code := qerrors.CodeOf(err)
	if code == "" {
		code = qerrors.ErrCodeInternal
	}
	return Result{
		Status:  StatusFailure,
		Op:      q.Op(),
		QueryID: q.ID(),
		Kind:    code,
		Message: clientMessage(code, qerrors.MessageOf(err)),
		cause:   err,
	}
}

// FailWith builds a failure Result with an explicit code and message.
func FailWith(q Query, code qerrors.ErrorCode, message string) Result {
	return Fail(q, qerrors.New(code, message))
}

// Cause returns the error a failure was built from. It is never encoded.
func (r Result) Cause() error {
	return r.cause
}

// OK reports whether r is a success.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func clientMessage(code qerrors.ErrorCode, msg string) string {
	if code == qerrors.ErrCodeInternal || !code.IsKnown() {
		return InternalMessage
	}
	if msg != "" {
		return msg
	}
	return DefaultMessage(code)
}

// DefaultMessage returns the generic message used when a failure has none.
func DefaultMessage(code qerrors.ErrorCode) string {
	switch code {
	case qerrors.ErrCodeInvalidRequest:
		return "invalid request"
	case qerrors.ErrCodeNotFound:
		return "not found"
	case qerrors.ErrCodeUnavailable:
		return "service unavailable"
	case qerrors.ErrCodeTimeout:
		return "query timed out"
	case qerrors.ErrCodeUnauthorized:
		return "unauthorized"
	case qerrors.ErrCodeRateLimitExceeded:
		return "rate limit exceeded"
	case qerrors.ErrCodeMethodNotAllowed:
		return "method not allowed"
	default:
		return InternalMessage
	}
}
