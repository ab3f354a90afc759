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

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	"github.com/pkg/errors"
)

// Basic authenticates against the gateway with a login type and a client id/secret pair.
type Basic struct {
	memo
}

// NewBasic returns an authenticator calling the gateway Authenticate RPC.
func NewBasic(gw gateway.GatewayAPIClient, loginType, clientID, clientSecret string) *Basic {
	b := &Basic{}
	b.fetch = func(ctx context.Context) (string, error) {
		return authenticate(ctx, gw, loginType, clientID, clientSecret)
	}
	return b
}

func authenticate(ctx context.Context, gw gateway.GatewayAPIClient, loginType, clientID, clientSecret string) (string, error) {
	res, err := gw.Authenticate(ctx, &gateway.AuthenticateRequest{
		Type:         loginType,
		ClientId:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		return "", errtypes.Transport(errors.Wrap(err, "auth: error calling Authenticate").Error())
	}
	if res.Status.Code != rpc.Code_CODE_OK {
		return "", errtypes.Unauthenticated(res.Status.Message)
	}
	appctx.GetLogger(ctx).Debug().Str("client_id", clientID).Str("login_type", loginType).Msg("auth: obtained token")
	return res.Token, nil
}

// Static serves a token issued out of band. It cannot be refreshed.
type Static struct {
	token string
}

// NewStatic returns an authenticator for a fixed token.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Authenticate returns the configured token.
func (s *Static) Authenticate(_ context.Context) (string, error) {
	if s.token == "" {
		return "", errtypes.Unauthenticated("no token configured")
	}
	return s.token, nil
}

// RefreshToken returns the configured token unchanged.
func (s *Static) RefreshToken(ctx context.Context) (string, error) {
	return s.Authenticate(ctx)
}
