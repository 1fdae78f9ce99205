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

// Package config loads the query_api configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML,
// TOML or JSON file (format by extension), and environment variables:
//
//	QUERY_API_CONFIG  path of the config file
//	PORT              server.port
//	LOG_LEVEL         log.level
//	DATABASE_URL      store.dsn; postgres:// URLs select the postgres driver
//	REDIS_URL         cache.redisURL; selects the redis cache backend
//	QUERY_API_KEYS    auth.apiKeys, comma separated name=key pairs
//	JWT_SECRET        auth.jwtSecret
//	FEED_URL          feed.url; also enables the feed
//	SHUTDOWN_TIMEOUT_SECONDS  server.shutdownTimeout in whole seconds
//
// The merged result is validated with go-playground/validator.
package config
