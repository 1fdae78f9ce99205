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
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skyquery/query-api/pkg/defaults"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/store"
)

// Limits bounds parameter values during parsing.
type Limits struct {
	DefaultLimit   int
	MaxLimit       int
	MaxStepHours   int
	MaxParamLength int
	// Now is used to reject average queries starting in the future.
	Now func() time.Time
}

// DefaultLimits returns limits from pkg/defaults.
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:   defaults.QueryDefaultLimit,
		MaxLimit:       defaults.QueryMaxLimit,
		MaxStepHours:   defaults.AverageMaxStepHours,
		MaxParamLength: defaults.QueryMaxParamLength,
		Now:            time.Now,
	}
}

func (l Limits) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("param"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// registration only fails for empty tags or nil funcs
	_ = v.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
		return store.Tier(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("maxitems", func(fl validator.FieldLevel) bool {
		return fl.Field().Len() <= defaults.QueryMaxListItems
	})
	_ = v.RegisterValidation("sortfield", func(fl validator.FieldLevel) bool {
		return store.SortField(fl.Field().String()).IsValid()
	})
	return v
}

// Validate checks that q names a supported operation and that its parameters
// parse and satisfy l. The returned error is always INVALID_REQUEST.
func Validate(q Query, l Limits) error {
	switch q.Op() {
	case OpGet:
		_, err := ParseGet(q, l)
		return err
	case OpQuery:
		_, err := ParseSearch(q, l)
		return err
	case OpQueryItems:
		return checkParams(q, l)
	case OpLowestBin:
		_, err := ParseLowestBin(q, l)
		return err
	case OpAverageAuction, OpAverageBin, OpAverage:
		_, err := ParseAverage(q, l)
		return err
	case OpPets:
		_, err := ParsePets(q, l)
		return err
	default:
		return qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("unsupported operation %q", q.Op()),
			map[string]any{"supported": SupportedOps()})
	}
}

// ParseGet parses the parameters of OpGet.
func ParseGet(q Query, l Limits) (GetParams, error) {
	var p GetParams
	if err := checkParams(q, l); err != nil {
		return p, err
	}
	p.Key = strings.TrimSpace(q.Get("key"))
	return p, structErr(validate.Struct(p))
}

// ParseSearch parses the parameters of OpQuery, applying the default limit.
func ParseSearch(q Query, l Limits) (SearchParams, error) {
	var p SearchParams
	if err := checkParams(q, l); err != nil {
		return p, err
	}

	p.ItemName = strings.TrimSpace(q.Get("item_name"))
	p.Tier = strings.ToUpper(strings.TrimSpace(q.Get("tier")))
	p.ItemID = strings.ToUpper(strings.TrimSpace(q.Get("item_id")))
	p.InternalID = strings.TrimSpace(q.Get("internal_id"))
	p.Enchants = upperAll(splitList(q.Get("enchants")))
	p.Auctioneer = playerID(q.Get("auctioneer"))
	p.Bidder = playerID(q.Get("bidder"))
	p.Filter = strings.TrimSpace(q.Get("filter"))
	p.SortBy = strings.ToLower(strings.TrimSpace(q.Get("sort_by")))
	p.SortOrder = strings.ToUpper(strings.TrimSpace(q.Get("sort_order")))

	var err error
	if p.Bin, err = optionalBool(q, "bin"); err != nil {
		return p, err
	}
	if p.MinPrice, err = optionalInt64(q, "min_price"); err != nil {
		return p, err
	}
	if p.MaxPrice, err = optionalInt64(q, "max_price"); err != nil {
		return p, err
	}
	if p.EndBefore, err = optionalInt64(q, "end_before"); err != nil {
		return p, err
	}
	if p.EndAfter, err = optionalInt64(q, "end_after"); err != nil {
		return p, err
	}

	p.Limit = l.DefaultLimit
	if v, ok := q.Param("limit"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return p, invalidParam("limit", "must be an integer")
		}
		p.Limit = n
	}
	if l.MaxLimit > 0 && p.Limit > l.MaxLimit {
		return p, invalidParam("limit", fmt.Sprintf("must be at most %d", l.MaxLimit))
	}

	if err := structErr(validate.Struct(p)); err != nil {
		return p, err
	}

	if p.MinPrice != nil && p.MaxPrice != nil && *p.MinPrice > *p.MaxPrice {
		return p, invalidParam("min_price", "must not exceed max_price")
	}
	if p.EndBefore != nil && p.EndAfter != nil && *p.EndAfter >= *p.EndBefore {
		return p, invalidParam("end_after", "must be before end_before")
	}
	return p, nil
}

// ParseLowestBin parses the parameters of OpLowestBin.
func ParseLowestBin(q Query, l Limits) (LowestBinParams, error) {
	var p LowestBinParams
	if err := checkParams(q, l); err != nil {
		return p, err
	}
	p.IDs = unique(splitList(q.Get("ids")))
	return p, structErr(validate.Struct(p))
}

// ParseAverage parses the parameters of the average operations.
func ParseAverage(q Query, l Limits) (AverageParams, error) {
	var p AverageParams
	if err := checkParams(q, l); err != nil {
		return p, err
	}

	raw, ok := q.Param("time")
	if !ok || strings.TrimSpace(raw) == "" {
		return p, invalidParam("time", "is required")
	}
	t, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return p, invalidParam("time", "must be epoch milliseconds")
	}
	p.Time = t

	p.Step = 1
	if v, ok := q.Param("step"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return p, invalidParam("step", "must be an integer")
		}
		p.Step = n
	}
	if l.MaxStepHours > 0 && p.Step > l.MaxStepHours {
		return p, invalidParam("step", fmt.Sprintf("must be at most %d", l.MaxStepHours))
	}

	p.Method = MethodNew
	if v := strings.TrimSpace(q.Get("method")); v != "" {
		p.Method = AverageMethod(strings.ToLower(v))
	}
	p.IDs = unique(splitList(q.Get("ids")))

	if err := structErr(validate.Struct(p)); err != nil {
		return p, err
	}
	if p.Time > l.now().UnixMilli() {
		return p, invalidParam("time", "must not be in the future")
	}
	return p, nil
}

// ParsePets parses the parameters of OpPets.
func ParsePets(q Query, l Limits) (PetsParams, error) {
	var p PetsParams
	if err := checkParams(q, l); err != nil {
		return p, err
	}
	p.Names = unique(upperAll(splitList(q.Get("query"))))
	return p, structErr(validate.Struct(p))
}

// checkParams rejects unknown operations, unknown parameters and oversized values.
func checkParams(q Query, l Limits) error {
	allowed, ok := allowedParams[q.Op()]
	if !ok {
		return qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("unsupported operation %q", q.Op()),
			map[string]any{"supported": SupportedOps()})
	}
	for _, name := range q.ParamNames() {
		if !slices.Contains(allowed, name) {
			return qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
				fmt.Sprintf("unknown parameter %q for %s", name, q.Op()),
				map[string]any{"param": name, "allowed": allowed})
		}
		if l.MaxParamLength > 0 && len(q.Get(name)) > l.MaxParamLength {
			return invalidParam(name, fmt.Sprintf("must be at most %d bytes", l.MaxParamLength))
		}
	}
	return nil
}

func invalidParam(name, msg string) error {
	return qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
		fmt.Sprintf("invalid %s: %s", name, msg),
		map[string]any{"param": name})
}

// structErr converts validator errors into a single INVALID_REQUEST error
// naming the first offending parameter.
func structErr(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalidParam(fe.Field(), describe(fe))
	}
	return qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "invalid parameters", err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "maxitems":
		return fmt.Sprintf("must list at most %d items", defaults.QueryMaxListItems)
	case "tier":
		return "unknown tier"
	case "sortfield":
		return "unknown sort field"
	case "printascii", "alphanum":
		return "contains invalid characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func optionalBool(q Query, name string) (*bool, error) {
	v, ok := q.Param(name)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return nil, invalidParam(name, "must be true or false")
	}
	return &b, nil
}

func optionalInt64(q Query, name string) (*int64, error) {
	v, ok := q.Param(name)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return nil, invalidParam(name, "must be an integer")
	}
	return &n, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// playerID normalizes a player uuid to the dashless form the feed uses.
func playerID(v string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), "-", ""))
}

func upperAll(in []string) []string {
	for i := range in {
		in[i] = strings.ToUpper(in[i])
	}
	return in
}

// unique drops repeated values, keeping the first occurrence.
func unique(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
