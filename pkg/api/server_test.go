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

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/skyquery/query-api/pkg/cache"
	"github.com/skyquery/query-api/pkg/config"
	"github.com/skyquery/query-api/pkg/encoder"
	qerrors "github.com/skyquery/query-api/pkg/errors"
	"github.com/skyquery/query-api/pkg/query"
	"github.com/skyquery/query-api/pkg/store"
	"github.com/skyquery/query-api/pkg/store/memory"
	"github.com/skyquery/query-api/pkg/store/sqlstore"
)

// TestConstants verifies package constants are properly defined
func TestConstants(t *testing.T) {
	if name != "query_api" {
		t.Errorf("name = %q, want %q", name, "query_api")
	}
	if versionDefault != "dev" {
		t.Errorf("versionDefault = %q, want %q", versionDefault, "dev")
	}

	info := Info()
	if info.Name != name || info.Version == "" || info.Commit == "" || info.Date == "" {
		t.Errorf("unexpected build info: %+v", info)
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return a
}

func decode(t *testing.T, w *httptest.ResponseRecorder) encoder.Envelope {
	t.Helper()
	var env encoder.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", w.Body.String(), err)
	}
	return env
}

// TestGetMissingOnEmptySource exercises the full stack: router, executor and
// encoder behind the server middleware.
func TestGetMissingOnEmptySource(t *testing.T) {
	a := newApp(t, config.Default())

	req := httptest.NewRequest(http.MethodGet, "/auctions/missing", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusNotFound, w.Body.String())
	}
	env := decode(t, w)
	if env.Status != query.StatusFailure {
		t.Errorf("status = %q, want %q", env.Status, query.StatusFailure)
	}
	if env.Error == nil || env.Error.Code != qerrors.ErrCodeNotFound {
		t.Errorf("error = %+v, want code %s", env.Error, qerrors.ErrCodeNotFound)
	}
	if env.RequestID == "" {
		t.Error("expected request id in envelope")
	}
}

func TestMalformedRejected(t *testing.T) {
	a := newApp(t, config.Default())

	req := httptest.NewRequest(http.MethodGet, "/query?limit=-1", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if env := decode(t, w); env.Error == nil || env.Error.Code != qerrors.ErrCodeInvalidRequest {
		t.Errorf("error = %+v, want %s", env.Error, qerrors.ErrCodeInvalidRequest)
	}
}

func TestReadyPingsStore(t *testing.T) {
	a := newApp(t, config.Default())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.server.Serve(ctx, ln) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	}()

	url := "http://" + ln.Addr().String() + "/ready"
	get := func() int {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("GET /ready: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get(); code != http.StatusOK {
		t.Errorf("ready status = %d, want %d", code, http.StatusOK)
	}

	if err := a.Store().Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if code := get(); code != http.StatusServiceUnavailable {
		t.Errorf("ready status after close = %d, want %d", code, http.StatusServiceUnavailable)
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.APIKeys = "ci=secret"
	cfg.Auth.Required = true
	a := newApp(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/query_items", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodGet, "/query_items", nil)
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("keyed status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestFeedEnablesUpdater(t *testing.T) {
	cfg := config.Default()
	a := newApp(t, cfg)
	if a.Updater() != nil {
		t.Error("expected no updater when the feed is disabled")
	}

	cfg = config.Default()
	cfg.Feed.Enabled = true
	cfg.Feed.URL = "http://127.0.0.1:1/v2"
	a = newApp(t, cfg)
	if a.Updater() == nil {
		t.Fatal("expected updater when the feed is enabled")
	}

	d, ok := a.debug().(debugInfo)
	if !ok {
		t.Fatalf("debug() returned %T", a.debug())
	}
	if d.Updater == nil || d.Store != "memory" || d.Build.Name != name {
		t.Errorf("unexpected debug info: %+v", d)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := OpenStore(ctx, config.Store{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := st.(*memory.Store); !ok {
		t.Errorf("memory driver returned %T", st)
	}
	_ = st.Close()

	st, err = OpenStore(ctx, config.Store{
		Driver:  "sqlite",
		DSN:     filepath.Join(t.TempDir(), "query.db"),
		Migrate: true,
	})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer st.Close()

	sq, ok := st.(*sqlstore.Store)
	if !ok {
		t.Fatalf("sqlite driver returned %T", st)
	}
	applied, err := sq.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(applied) == 0 {
		t.Error("expected migrations to be applied")
	}

	_, err = sq.GetAuction(ctx, "missing")
	if qerrors.CodeOf(err) != qerrors.ErrCodeNotFound {
		t.Errorf("GetAuction(missing) code = %s, want %s", qerrors.CodeOf(err), qerrors.ErrCodeNotFound)
	}
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()

	c, err := OpenCache(ctx, config.Cache{Backend: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(cache.Nop); !ok {
		t.Errorf("none backend returned %T", c)
	}

	c, err = OpenCache(ctx, config.Cache{Backend: "memory", Size: 8})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*cache.LRU); !ok {
		t.Errorf("memory backend returned %T", c)
	}

	if _, err := OpenCache(ctx, config.Cache{Backend: "redis", RedisURL: "not a url"}); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestServerConfig(t *testing.T) {
	sc := ServerConfig(config.Server{
		Address:         "127.0.0.1",
		Port:            9090,
		RateLimit:       5,
		RateLimitBurst:  10,
		ShutdownTimeout: config.Duration(3 * time.Second),
	})
	if sc.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr() = %q", sc.Addr())
	}
	if sc.RateLimit != 5 || sc.RateLimitBurst != 10 {
		t.Errorf("rate limit = %v/%d", sc.RateLimit, sc.RateLimitBurst)
	}
	if sc.ShutdownTimeout != 3*time.Second {
		t.Errorf("ShutdownTimeout = %v", sc.ShutdownTimeout)
	}
	if sc.Name != name {
		t.Errorf("Name = %q", sc.Name)
	}
}

func TestLimits(t *testing.T) {
	l := Limits(config.Query{DefaultLimit: 7, MaxLimit: 70})
	if l.DefaultLimit != 7 || l.MaxLimit != 70 {
		t.Errorf("limits = %+v", l)
	}
	if l.MaxStepHours == 0 || l.Now == nil {
		t.Error("expected unset limits to keep defaults")
	}
}

func TestSeededSearch(t *testing.T) {
	a := newApp(t, config.Default())

	err := a.Store().ReplaceAuctions(context.Background(), []store.Auction{
		{UUID: "a1", ItemName: "Hyperion", ItemID: "HYPERION", Bin: true, StartingBid: 700, EndT: time.Now().Add(time.Hour).UnixMilli()},
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auctions/a1", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if env := decode(t, w); env.Status != query.StatusSuccess {
		t.Errorf("status = %q", env.Status)
	}
}
