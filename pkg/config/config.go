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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skyquery/query-api/pkg/defaults"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/serializer"
)

// EnvConfigPath names the config file when no path is given.
const EnvConfigPath = "QUERY_API_CONFIG"

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Server configures the HTTP listener.
type Server struct {
	Address         string   `json:"address" yaml:"address" toml:"address"`
	Port            int      `json:"port" yaml:"port" toml:"port" validate:"min=1,max=65535"`
	RateLimit       float64  `json:"rateLimit" yaml:"rateLimit" toml:"rateLimit" validate:"gt=0"`
	RateLimitBurst  int      `json:"rateLimitBurst" yaml:"rateLimitBurst" toml:"rateLimitBurst" validate:"min=1"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout" toml:"shutdownTimeout"`
}

// Store selects the data source.
type Store struct {
	Driver  string `json:"driver" yaml:"driver" toml:"driver" validate:"oneof=memory sqlite postgres"`
	DSN     string `json:"dsn" yaml:"dsn" toml:"dsn" validate:"required_unless=Driver memory"`
	Migrate bool   `json:"migrate" yaml:"migrate" toml:"migrate"`
}

// Cache selects the result cache.
type Cache struct {
	Backend  string   `json:"backend" yaml:"backend" toml:"backend" validate:"oneof=none memory redis"`
	Size     int      `json:"size" yaml:"size" toml:"size" validate:"min=1"`
	TTL      Duration `json:"ttl" yaml:"ttl" toml:"ttl"`
	RedisURL string   `json:"redisURL" yaml:"redisURL" toml:"redisURL" validate:"required_if=Backend redis"`
	Prefix   string   `json:"prefix" yaml:"prefix" toml:"prefix"`
}

// Feed configures the updater.
type Feed struct {
	Enabled     bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	URL         string   `json:"url" yaml:"url" toml:"url" validate:"omitempty,url"`
	Interval    Duration `json:"interval" yaml:"interval" toml:"interval"`
	Concurrency int      `json:"concurrency" yaml:"concurrency" toml:"concurrency" validate:"min=1"`
	Workers     int      `json:"workers" yaml:"workers" toml:"workers" validate:"min=1"`
}

// Auth configures caller identification.
type Auth struct {
	APIKeys   string `json:"apiKeys" yaml:"apiKeys" toml:"apiKeys"`
	JWTSecret string `json:"jwtSecret" yaml:"jwtSecret" toml:"jwtSecret"`
	Required  bool   `json:"required" yaml:"required" toml:"required"`
}

// Query bounds query execution.
type Query struct {
	DefaultLimit int      `json:"defaultLimit" yaml:"defaultLimit" toml:"defaultLimit" validate:"min=1,ltefield=MaxLimit"`
	MaxLimit     int      `json:"maxLimit" yaml:"maxLimit" toml:"maxLimit" validate:"min=1"`
	Timeout      Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
}

// Log configures logging.
type Log struct {
	Level string `json:"level" yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`
}

// Config is the complete service configuration.
type Config struct {
	Server Server `json:"server" yaml:"server" toml:"server"`
	Store  Store  `json:"store" yaml:"store" toml:"store"`
	Cache  Cache  `json:"cache" yaml:"cache" toml:"cache"`
	Feed   Feed   `json:"feed" yaml:"feed" toml:"feed"`
	Auth   Auth   `json:"auth" yaml:"auth" toml:"auth"`
	Query  Query  `json:"query" yaml:"query" toml:"query"`
	Log    Log    `json:"log" yaml:"log" toml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:            8080,
			RateLimit:       100,
			RateLimitBurst:  200,
			ShutdownTimeout: Duration(defaults.ServerShutdownTimeout),
		},
		Store: Store{Driver: "memory"},
		Cache: Cache{
			Backend: "memory",
			Size:    defaults.CacheMaxEntries,
			TTL:     Duration(defaults.QueryCacheTTL),
			Prefix:  "query_api:",
		},
		Feed: Feed{
			Interval:    Duration(defaults.FeedUpdateInterval),
			Concurrency: defaults.FeedPageConcurrency,
			Workers:     defaults.FeedDecodeWorkers,
		},
		Query: Query{
			DefaultLimit: defaults.QueryDefaultLimit,
			MaxLimit:     defaults.QueryMaxLimit,
			Timeout:      Duration(defaults.QueryTimeout),
		},
		Log: Log{Level: "info"},
	}
}

// Load builds the configuration from path (or $QUERY_API_CONFIG when path is
// empty), then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	r, err := serializer.NewFileReader(serializer.FormatFromPath(path), path, serializer.WithStrict())
	if err != nil {
		return qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "failed to open config "+path, err)
	}
	defer r.Close()

	if err := r.Deserialize(c); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "failed to parse config "+path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return qerrors.New(qerrors.ErrCodeInvalidRequest, "invalid PORT: "+v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Store.DSN = v
		c.Store.Driver = driverFor(v)
	}
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		c.Cache.RedisURL = v
		c.Cache.Backend = "redis"
	}
	if v, ok := lookup("QUERY_API_KEYS"); ok && v != "" {
		c.Auth.APIKeys = v
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup("FEED_URL"); ok && v != "" {
		c.Feed.URL = v
		c.Feed.Enabled = true
	}
	if v, ok := lookup("SHUTDOWN_TIMEOUT_SECONDS"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return qerrors.New(qerrors.ErrCodeInvalidRequest, "invalid SHUTDOWN_TIMEOUT_SECONDS: "+v)
		}
		c.Server.ShutdownTimeout = Duration(time.Duration(secs) * time.Second)
	}
	return nil
}

func driverFor(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

var validate = validator.New()

// Validate checks c. Errors are INVALID_REQUEST naming the first bad field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		if time.Duration(c.Feed.Interval) < defaults.FeedMinInterval {
			return qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
				fmt.Sprintf("invalid config Config.Feed.Interval: must be at least %s", defaults.FeedMinInterval),
				map[string]any{"field": "Config.Feed.Interval"})
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return qerrors.NewWithContext(qerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid config %s: failed %s", fe.Namespace(), fe.Tag()),
			map[string]any{"field": fe.Namespace()})
	}
	return qerrors.Wrap(qerrors.ErrCodeInvalidRequest, "invalid config", err)
}
