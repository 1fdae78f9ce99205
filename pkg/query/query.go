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
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Query is a request to retrieve or compute data.
// The zero value is not useful; use New.
type Query struct {
	id          string
	op          Op
	params      map[string]string
	requestedBy string
	issuedAt    time.Time
}

// Option configures a Query at construction time.
type Option func(*Query)

// WithRequestedBy records the identity that issued the query.
func WithRequestedBy(identity string) Option {
	return func(q *Query) {
		q.requestedBy = identity
	}
}

// WithID sets the query id, typically the request id of the HTTP request.
func WithID(id string) Option {
	return func(q *Query) {
		if id != "" {
			q.id = id
		}
	}
}

// WithIssuedAt overrides the issue time.
func WithIssuedAt(t time.Time) Option {
	return func(q *Query) {
		q.issuedAt = t
	}
}

// New builds a Query. params is copied, so later changes by the caller do not
// affect the returned value.
func New(op Op, params map[string]string, opts ...Option) Query {
	q := Query{
		id:       uuid.New().String(),
		op:       op,
		params:   maps.Clone(params),
		issuedAt: time.Now().UTC(),
	}
	if q.params == nil {
		q.params = map[string]string{}
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// ID returns the query id.
func (q Query) ID() string { return q.id }

// Op returns the operation kind.
func (q Query) Op() Op { return q.op }

// RequestedBy returns the issuing identity, empty when anonymous.
func (q Query) RequestedBy() string { return q.requestedBy }

// IssuedAt returns when the query was constructed.
func (q Query) IssuedAt() time.Time { return q.issuedAt }

// Param returns a parameter value and whether it was present.
func (q Query) Param(name string) (string, bool) {
	v, ok := q.params[name]
	return v, ok
}

// Get returns a parameter value or an empty string.
func (q Query) Get(name string) string {
	return q.params[name]
}

// Params returns a copy of all parameters.
func (q Query) Params() map[string]string {
	return maps.Clone(q.params)
}

// ParamNames returns the parameter names in sorted order.
func (q Query) ParamNames() []string {
	return slices.Sorted(maps.Keys(q.params))
}

// CacheKey returns a canonical representation of the operation and parameters.
// Identity and id are excluded: equal queries from different callers share a key.
func (q Query) CacheKey() string {
	var b strings.Builder
	b.WriteString(string(q.op))
	for _, k := range q.ParamNames() {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.params[k])
	}
	return b.String()
}

// LogValue implements slog.LogValuer.
func (q Query) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", q.id),
		slog.String("op", string(q.op)),
		slog.Any("params", q.Params()),
		slog.String("requestedBy", q.requestedBy),
	)
}
