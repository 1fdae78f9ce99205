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

// Package query defines the request and outcome model of the query service.
//
// A Query names an operation, carries opaque string parameters, and optionally
// the identity that issued it. Queries are values with unexported state: once
// constructed they cannot be changed, so a dispatched Query is immutable.
//
// A Result is the terminal outcome of one Query: either a success carrying a
// payload or a failure carrying an error code and a client-safe message.
// Results are built with Succeed and Fail only.
//
// Each operation has a typed parameter struct (GetParams, SearchParams, ...)
// produced by the matching Parse function. Validate runs the parser for the
// Query's operation and reports malformed input as an INVALID_REQUEST error.
//
// Operations:
//
//	get              single auction by key
//	query            search active auctions
//	query_items      distinct items on sale
//	lowestbin        lowest BIN price per internal id
//	average_auction  average auction price since a time
//	average_bin      average BIN price since a time
//	average          combined average price since a time
//	pets             pet prices by key
package query
