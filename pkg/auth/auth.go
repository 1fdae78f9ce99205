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

// Package auth resolves the identity behind a request.
//
// Two credentials are accepted: a static API key in the X-API-Key header and
// an HS256 JWT in "Authorization: Bearer <token>". The resolved identity is
// recorded on each query as its requested-by value.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	qerrors "github.com/skyquery/query-api/pkg/errors"
)

const (
	// HeaderAPIKey carries a static API key.
	HeaderAPIKey = "X-API-Key"

	issuer = "query_api"
)

// Config configures an Authenticator.
type Config struct {
	// APIKeys maps key name to key value.
	APIKeys map[string]string
	// JWTSecret signs and verifies bearer tokens. Bearer auth is off when empty.
	JWTSecret []byte
	// Required rejects anonymous requests.
	Required bool
}

// Claims are the JWT claims issued by NewToken.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator resolves identities. It is safe for concurrent use.
type Authenticator struct {
	keys     map[string]string
	secret   []byte
	required bool
}

// New returns an Authenticator for cfg.
func New(cfg Config) *Authenticator {
	keys := make(map[string]string, len(cfg.APIKeys))
	for name, key := range cfg.APIKeys {
		if key != "" {
			keys[name] = key
		}
	}
	return &Authenticator{keys: keys, secret: cfg.JWTSecret, required: cfg.Required}
}

// ParseAPIKeys parses a comma separated list of name=key pairs. A bare key is
// named by its position.
func ParseAPIKeys(v string) map[string]string {
	out := map[string]string{}
	for i, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, key, ok := strings.Cut(part, "=")
		if !ok {
			name, key = "key"+strconv.Itoa(i), part
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(key)
	}
	return out
}

// Identify returns the identity of r. Presented but invalid credentials are
// always UNAUTHORIZED; missing credentials are only rejected when required.
func (a *Authenticator) Identify(r *http.Request) (string, error) {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		if name, ok := a.lookupKey(key); ok {
			return "apikey:" + name, nil
		}
		return "", qerrors.New(qerrors.ErrCodeUnauthorized, "invalid API key")
	}

	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", qerrors.New(qerrors.ErrCodeUnauthorized,
				"invalid Authorization header format (expected 'Bearer <token>')")
		}
		claims, err := a.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}

	if a.required {
		return "", qerrors.New(qerrors.ErrCodeUnauthorized, "credentials required")
	}
	return "", nil
}

func (a *Authenticator) lookupKey(key string) (string, bool) {
	var found string
	for name, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			found = name
		}
	}
	return found, found != ""
}

// ValidateToken parses and verifies a bearer token.
func (a *Authenticator) ValidateToken(token string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, qerrors.New(qerrors.ErrCodeUnauthorized, "bearer authentication not configured")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrCodeUnauthorized, "invalid or expired token", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, qerrors.New(qerrors.ErrCodeUnauthorized, "token subject is required")
	}
	return claims, nil
}

// NewToken mints a bearer token for subject.
func NewToken(secret []byte, subject string, expiry time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("no secret configured")
	}
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) string {
	v, _ := ctx.Value(contextKey{}).(string)
	return v
}
