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

// Package cli implements the query_api command line.
//
// Without a subcommand the HTTP server is started. Subcommands:
//
// serve - Start the HTTP query server (and the feed updater when enabled):
//
//	query_api serve --config /etc/query_api/config.yaml
//
// migrate - Apply schema migrations to the configured SQLite or Postgres store:
//
//	DATABASE_URL=postgres://... query_api migrate
//
// update - Run a single feed update cycle and print its status:
//
//	query_api update --url https://api.hypixel.net/v2 --format table
//
// query - Execute one query locally and print the response envelope:
//
//	query_api query pets query=WOLF;LEGENDARY --format yaml
//
// token - Issue a bearer token signed with the configured JWT secret:
//
//	JWT_SECRET=... query_api token --subject ci --expiry 1h
//
// version - Print build information.
//
// Global flags --config (or $QUERY_API_CONFIG) and --log-level apply to
// every command. Output of commands that print documents is controlled with
// --format (json, yaml, toml, table) and --output.
package cli
