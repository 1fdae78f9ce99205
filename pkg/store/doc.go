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

// Package store defines the auction data model and the data source contract
// the query executor reads from and the updater writes to.
//
// Implementations:
//   - memory: in-process maps, used for tests and the empty default source
//   - sqlstore: database/sql backed, Postgres (pgx) and SQLite (modernc) dialects
//
// Errors returned by implementations are classified with pkg/errors codes:
// missing rows are NOT_FOUND, connectivity failures are SERVICE_UNAVAILABLE,
// anything else INTERNAL.
package store
