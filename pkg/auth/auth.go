// Copyright 2018-2024 CERN
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
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package auth provides the authenticators that obtain the gateway access token.
package auth

import (
	"context"
	"sync"

	"github.com/cs3org/cs3api4lab/pkg/config"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// TokenHeader is the metadata key carrying the access token.
const TokenHeader = "x-access-token"

// Authenticator obtains and refreshes the access token presented to the gateway.
type Authenticator interface {
	// Authenticate returns the current token, obtaining one on first use.
	Authenticate(ctx context.Context) (string, error)
	// RefreshToken discards the current token and obtains a new one.
	RefreshToken(ctx context.Context) (string, error)
}

// New returns the authenticator selected by the configuration.
// gw must be a client that does not refresh tokens itself.
func New(c *config.Config, gw gateway.GatewayAPIClient) (Authenticator, error) {
	switch c.Authenticator {
	case "basic":
		return NewBasic(gw, c.LoginType, c.ClientID, c.ClientSecret), nil
	case "token":
		return NewStatic(c.Token), nil
	case "oidc":
		return NewOIDC(gw, OIDCOptions{
			Issuer:       c.OIDCIssuer,
			ClientID:     c.OIDCClientID,
			ClientSecret: c.OIDCClientSecret,
			Scopes:       c.OIDCScopes,
			Username:     c.ClientID,
			Password:     c.ClientSecret,
		}), nil
	default:
		return nil, errors.New("auth: unknown authenticator " + c.Authenticator)
	}
}

// memo keeps the last token. Concurrent refreshes collapse into one fetch.
type memo struct {
	mu    sync.RWMutex
	token string
	group singleflight.Group
	fetch func(ctx context.Context) (string, error)
}

func (m *memo) current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *memo) Authenticate(ctx context.Context) (string, error) {
	if t := m.current(); t != "" {
		return t, nil
	}
	return m.do(ctx, "authenticate", true)
}

func (m *memo) RefreshToken(ctx context.Context) (string, error) {
	return m.do(ctx, "refresh", false)
}

func (m *memo) do(ctx context.Context, key string, reuse bool) (string, error) {
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		if t := m.current(); reuse && t != "" {
			return t, nil
		}
		t, err := m.fetch(ctx)
		if err != nil {
			return "", err
		}
		m.mu.Lock()
		m.token = t
		m.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
