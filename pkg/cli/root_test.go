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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyquery/query-api/pkg/api"
	"github.com/skyquery/query-api/pkg/auth"
	"github.com/skyquery/query-api/pkg/defaults"
)

// isolate clears environment that config.Load reads.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{"QUERY_API_CONFIG", "PORT", "LOG_LEVEL", "DATABASE_URL",
		"REDIS_URL", "QUERY_API_KEYS", "JWT_SECRET", "FEED_URL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.Writer = &out
	err := root.Run(context.Background(), append([]string{name}, args...))
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, name, root.Name)
	assert.NotNil(t, root.Action, "root should serve by default")

	want := []string{"serve", "migrate", "update", "query", "token", "version"}
	var got []string
	for _, c := range root.Commands {
		got = append(got, c.Name)
		assert.NotNil(t, c.Action, "command %s has no action", c.Name)
	}
	assert.Equal(t, want, got)
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "version.json")

	_, err := run(t, "version", "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var info api.BuildInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, api.Info(), info)
}

func TestVersionCommandRejectsFormat(t *testing.T) {
	isolate(t)
	_, err := run(t, "version", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestQueryCommand(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "out.json")

	_, err := run(t, "query", "--output", path, "get", "key=missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "failure", env["status"])
	assert.Equal(t, "get", env["op"])
	errBody, ok := env["error"].(map[string]any)
	require.True(t, ok, "expected error body in %s", data)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestQueryCommandValidation(t *testing.T) {
	isolate(t)

	_, err := run(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation is required")

	_, err = run(t, "query", "get", "key")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "out.json")
	_, err = run(t, "query", "--output", path, "drop_tables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
}

func TestQueryCommandItemsOnEmptyStore(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "out.yaml")

	_, err := run(t, "query", "--format", "yaml", "--output", path, "query_items")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: success")
}

func TestTokenCommand(t *testing.T) {
	isolate(t)

	_, err := run(t, "token", "--subject", "ci")
	require.Error(t, err, "token requires a secret")

	t.Setenv("JWT_SECRET", "s3cret")
	out, err := run(t, "token", "--subject", "ci", "--expiry", "1h")
	require.NoError(t, err)

	a := auth.New(auth.Config{JWTSecret: []byte("s3cret")})
	claims, err := a.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ci", claims.Subject)
}

func TestTokenExpiryDefault(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "s3cret")

	before := time.Now()
	out, err := run(t, "token", "--subject", "ci")
	require.NoError(t, err)

	a := auth.New(auth.Config{JWTSecret: []byte("s3cret")})
	claims, err := a.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	lifetime := claims.ExpiresAt.Sub(before)
	assert.InDelta(t, defaults.TokenExpiry.Seconds(), lifetime.Seconds(), 5)
}

func TestMigrateCommand(t *testing.T) {
	isolate(t)

	_, err := run(t, "migrate")
	require.Error(t, err, "memory store has nothing to migrate")

	dir := t.TempDir()
	t.Setenv("DATABASE_URL", filepath.Join(dir, "query.db"))
	path := filepath.Join(dir, "migrate.json")
	_, err = run(t, "migrate", "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var res migrateResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "sqlite", res.Driver)
	assert.NotEmpty(t, res.Versions)
}
