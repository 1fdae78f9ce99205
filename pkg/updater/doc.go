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

// Package updater keeps a store in sync with the auction feed.
//
// Each cycle fetches every page of active auctions (bounded concurrency),
// decodes items on a worker pool, computes the lowest BIN per internal id,
// replaces the active auction set, folds recently ended auctions into hourly
// average buckets and refreshes pet prices. After a successful cycle the
// result cache is invalidated.
//
// A failed cycle leaves the previous data in place; the next tick retries.
package updater
