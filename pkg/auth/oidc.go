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
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// OIDCOptions configures the OIDC authenticator.
type OIDCOptions struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string
	Password     string
}

// OIDC obtains an access token from an OpenID Connect provider with the
// resource owner password flow and exchanges it at the gateway with the
// bearer login type.
type OIDC struct {
	memo
	opts OIDCOptions
	gw   gateway.GatewayAPIClient

	tsMu sync.Mutex
	ts oauth2.TokenSource
}

// NewOIDC returns an authenticator backed by the issuer in opts.
func NewOIDC(gw gateway.GatewayAPIClient, opts OIDCOptions) *OIDC {
	o := &OIDC{opts: opts, gw: gw}
	o.fetch = o.exchange
	return o
}

func (o *OIDC) exchange(ctx context.Context) (string, error) {
	ts, err := o.tokenSource(ctx)
	if err != nil {
		return "", err
	}
	t, err := ts.Token()
	if err != nil {
		o.tsMu.Lock()
		o.ts = nil
		o.tsMu.Unlock()
		return "", errtypes.Unauthenticated(errors.Wrap(err, "oidc: error obtaining token").Error())
	}
	return authenticate(ctx, o.gw, "bearer", "", t.AccessToken)
}

func (o *OIDC) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	o.tsMu.Lock()
	defer o.tsMu.Unlock()
	if o.ts != nil {
		return o.ts, nil
	}

	provider, err := oidc.NewProvider(ctx, o.opts.Issuer)
	if err != nil {
		return nil, errtypes.Transport(errors.Wrap(err, "oidc: error discovering "+o.opts.Issuer).Error())
	}

	scopes := o.opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	conf := &oauth2.Config{
		ClientID:     o.opts.ClientID,
		ClientSecret: o.opts.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	t, err := conf.PasswordCredentialsToken(ctx, o.opts.Username, o.opts.Password)
	if err != nil {
		return nil, errtypes.Unauthenticated(errors.Wrap(err, "oidc: password grant failed").Error())
	}
	// the source refreshes the token on its own once it expires
	o.ts = conf.TokenSource(context.Background(), t)
	return o.ts, nil
}
