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
	"net/http"

	"github.com/skyquery/query-api/pkg/encoder"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/query"
)

// WriteError writes a failure envelope that did not originate from a query,
// such as a rate limit rejection or an unknown route.
func WriteError(w http.ResponseWriter, r *http.Request, code qerrors.ErrorCode, message string) {
	encoder.Write(w, query.Result{
		Status:  query.StatusFailure,
		QueryID: RequestIDFrom(r.Context()),
		Kind:    code,
		Message: message,
	})
}
