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

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	"github.com/cs3org/cs3api4lab/pkg/gateway/gatewaytest"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestBasicMemoizesToken(t *testing.T) {
	g := gatewaytest.New()
	defer g.Close()
	g.AddUser("einstein", "relativity")

	b := NewBasic(g, "basic", "einstein", "relativity")
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tkn, err := b.Authenticate(ctx)
			assert.NoError(t, err)
			tokens[i] = tkn
		}(i)
	}
	wg.Wait()
	for _, tkn := range tokens {
		assert.Equal(t, tokens[0], tkn)
	}

	refreshed, err := b.RefreshToken(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, tokens[0], refreshed)

	again, err := b.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, refreshed, again)
}

func TestBasicInvalidCredentials(t *testing.T) {
	g := gatewaytest.New()
	defer g.Close()
	g.AddUser("einstein", "relativity")

	_, err := NewBasic(g, "basic", "einstein", "wrong").Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, errtypes.IsUnauthenticatedErr(err))
}

func TestStatic(t *testing.T) {
	tkn, err := NewStatic("abc").RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tkn)

	_, err = NewStatic("").Authenticate(context.Background())
	assert.True(t, errtypes.IsUnauthenticatedErr(err))
}

func TestNewSelectsAuthenticator(t *testing.T) {
	tests := []struct {
		kind string
		want interface{}
	}{
		{"basic", &Basic{}},
		{"token", &Static{}},
		{"oidc", &OIDC{}},
	}
	for _, tt := range tests {
		a, err := New(&config.Config{Authenticator: tt.kind}, nil)
		require.NoError(t, err)
		assert.IsType(t, tt.want, a)
	}
	_, err := New(&config.Config{Authenticator: "kerberos"}, nil)
	assert.Error(t, err)
}

func TestContextToken(t *testing.T) {
	ctx := ContextSetToken(context.Background(), "a")
	ctx = ContextSetToken(ctx, "b")
	tkn, ok := ContextGetToken(ctx)
	require.True(t, ok)
	assert.Equal(t, "b", tkn)

	_, ok = ContextGetToken(context.Background())
	assert.False(t, ok)
}

type countingAuthenticator struct {
	refreshed int
}

func (c *countingAuthenticator) Authenticate(context.Context) (string, error) { return "old", nil }
func (c *countingAuthenticator) RefreshToken(context.Context) (string, error) {
	c.refreshed++
	return "new", nil
}

func TestInterceptorReplaysOnceWithFreshToken(t *testing.T) {
	tests := []struct {
		name   string
		reject func(reply interface{}) error
	}{
		{"cs3 status", func(reply interface{}) error {
			reply.(*provider.StatResponse).Status = &rpc.Status{Code: rpc.Code_CODE_UNAUTHENTICATED}
			return nil
		}},
		{"grpc code", func(interface{}) error {
			return status.Error(codes.Unauthenticated, "expired")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &countingAuthenticator{}
			var seen []string
			invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
				tkn, _ := ContextGetToken(ctx)
				seen = append(seen, tkn)
				if tkn == "old" {
					return tt.reject(reply)
				}
				reply.(*provider.StatResponse).Status = &rpc.Status{Code: rpc.Code_CODE_OK}
				return nil
			}

			reply := &provider.StatResponse{}
			ctx := ContextSetToken(context.Background(), "old")
			err := NewUnaryClientInterceptor(a)(ctx, "/cs3.gateway.v1beta1.GatewayAPI/Stat", &provider.StatRequest{}, reply, nil, invoker)
			require.NoError(t, err)
			assert.Equal(t, []string{"old", "new"}, seen)
			assert.Equal(t, 1, a.refreshed)
			assert.Equal(t, rpc.Code_CODE_OK, reply.Status.Code)
		})
	}
}

func TestInterceptorReplacesWhoAmIToken(t *testing.T) {
	a := &countingAuthenticator{}
	var headers, bodies []string
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		tkn, _ := ContextGetToken(ctx)
		body := req.(*gateway.WhoAmIRequest).Token
		headers = append(headers, tkn)
		bodies = append(bodies, body)
		if body == "old" {
			reply.(*gateway.WhoAmIResponse).Status = &rpc.Status{Code: rpc.Code_CODE_UNAUTHENTICATED}
			return nil
		}
		reply.(*gateway.WhoAmIResponse).Status = &rpc.Status{Code: rpc.Code_CODE_OK}
		return nil
	}

	req := &gateway.WhoAmIRequest{Token: "old"}
	reply := &gateway.WhoAmIResponse{}
	ctx := ContextSetToken(context.Background(), "old")
	err := NewUnaryClientInterceptor(a)(ctx, "/cs3.gateway.v1beta1.GatewayAPI/WhoAmI", req, reply, nil, invoker)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, headers)
	assert.Equal(t, []string{"old", "new"}, bodies)
	assert.Equal(t, rpc.Code_CODE_OK, reply.Status.Code)
	assert.Equal(t, "old", req.Token)
}

func TestInterceptorSkipsAuthenticate(t *testing.T) {
	a := &countingAuthenticator{}
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unauthenticated, "bad credentials")
	}
	err := NewUnaryClientInterceptor(a)(context.Background(), authenticateMethod, nil, nil, nil, invoker)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, a.refreshed)
}

func TestOIDC(t *testing.T) {
	g := gatewaytest.New()
	defer g.Close()
	g.AddUser("marie", "radioactivity")
	g.SetBearer("access-1", "marie")

	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                                issuer,
			"authorization_endpoint":                issuer + "/auth",
			"token_endpoint":                        issuer + "/token",
			"jwks_uri":                              issuer + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "password" || r.Form.Get("username") != "marie" || r.Form.Get("password") != "radioactivity" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	issuer = srv.URL

	o := NewOIDC(g, OIDCOptions{
		Issuer:   issuer,
		ClientID: "cs3api4lab",
		Username: "marie",
		Password: "radioactivity",
	})
	tkn, err := o.Authenticate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tkn)

	bad := NewOIDC(g, OIDCOptions{Issuer: issuer, ClientID: "cs3api4lab", Username: "marie", Password: "x"})
	_, err = bad.Authenticate(context.Background())
	assert.True(t, errtypes.IsUnauthenticatedErr(err))
}
