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

// Package adapter wires the gateway client, the resolver, the lock manager,
// the share engine and the working copy manager for one configuration.
package adapter

import (
	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/config"
	gw "github.com/cs3org/cs3api4lab/pkg/gateway"
	"github.com/cs3org/cs3api4lab/pkg/lock"
	"github.com/cs3org/cs3api4lab/pkg/pool"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	"github.com/cs3org/cs3api4lab/pkg/share"
	"github.com/cs3org/cs3api4lab/pkg/workingcopy"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	"github.com/pkg/errors"
)

// Context holds the components built for one configuration and one user.
type Context struct {
	Config        *config.Config
	Authenticator auth.Authenticator
	Gateway       *gw.Client
	Resolver      *reference.Resolver
	Locks         lock.Strategy
	Shares        *share.Engine
	WorkingCopies *workingcopy.Manager
	Files         *Files
}

// New builds a context on top of an already connected gateway client.
func New(c *config.Config, authn auth.Authenticator, api gateway.GatewayAPIClient) (*Context, error) {
	client := gw.NewFromConfig(c, api, authn)
	resolver := reference.New(c)
	locks, err := lock.New(c, client)
	if err != nil {
		return nil, err
	}
	shares := share.New(c, client, resolver, share.NewGatewayDirectory(client, 0))
	wc := workingcopy.New(c, client, resolver, shares, locks)
	return &Context{
		Config:        c,
		Authenticator: authn,
		Gateway:       client,
		Resolver:      resolver,
		Locks:         locks,
		Shares:        shares,
		WorkingCopies: wc,
		Files:         &Files{gw: client, resolver: resolver, locks: locks, wc: wc},
	}, nil
}

// Dial connects to the gateway named in c and builds a context. The
// authenticator talks to a plain connection while the returned client
// refreshes rejected tokens through it.
func Dial(c *config.Config) (*Context, error) {
	opts := []pool.Option{
		pool.Endpoint(c.Endpoint),
		pool.Insecure(c.Insecure),
		pool.SkipVerify(c.SkipVerify),
	}
	plain, err := pool.GetGatewayServiceClient(opts...)
	if err != nil {
		return nil, err
	}
	authn, err := auth.New(c, plain)
	if err != nil {
		return nil, err
	}
	api, err := pool.GetGatewayServiceClient(append(opts, pool.WithAuthenticator(authn))...)
	if err != nil {
		return nil, errors.Wrap(err, "adapter: error dialing gateway")
	}
	return New(c, authn, api)
}

// Close releases the resources held by the context.
func (c *Context) Close() error {
	return c.Gateway.Close()
}
