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

// Package gateway wraps the CS3 gateway API with typed errors, token handling
// and the two-phase data transfer protocol.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	"github.com/jellydator/ttlcache/v2"
	"github.com/pkg/errors"
)

const defaultChunkSize = 4 * 1024 * 1024

// Options configures a Client.
type Options struct {
	ChunkSize    int
	DevEnv       bool
	StatCacheTTL time.Duration
	HTTPClient   *http.Client
}

// Client talks to a CS3 gateway on behalf of the user the Authenticator
// represents. It keeps no state besides the optional stat cache.
type Client struct {
	gw        gateway.GatewayAPIClient
	authn     auth.Authenticator
	http      *http.Client
	chunkSize int
	devEnv    bool
	statCache *ttlcache.Cache
}

// New returns a client for gw. A zero StatCacheTTL disables the stat cache.
func New(gw gateway.GatewayAPIClient, authn auth.Authenticator, o Options) *Client {
	c := &Client{
		gw:        gw,
		authn:     authn,
		http:      o.HTTPClient,
		chunkSize: o.ChunkSize,
		devEnv:    o.DevEnv,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 24 * time.Hour}
	}
	if c.chunkSize <= 0 {
		c.chunkSize = defaultChunkSize
	}
	if o.StatCacheTTL > 0 {
		c.statCache = initCache(o.StatCacheTTL)
	}
	return c
}

// NewFromConfig returns a client configured from c.
func NewFromConfig(c *config.Config, gw gateway.GatewayAPIClient, authn auth.Authenticator) *Client {
	return New(gw, authn, Options{
		ChunkSize:    c.ChunkSize,
		DevEnv:       c.DevEnv,
		StatCacheTTL: time.Duration(c.StatCacheTTL) * time.Second,
	})
}

// Close releases the stat cache.
func (c *Client) Close() error {
	if c.statCache != nil {
		return c.statCache.Close()
	}
	return nil
}

// ChunkSize is the size of the chunks downloads are read in.
func (c *Client) ChunkSize() int {
	return c.chunkSize
}

// API exposes the underlying gateway client.
func (c *Client) API() gateway.GatewayAPIClient {
	return c.gw
}

func (c *Client) authCtx(ctx context.Context) (context.Context, string, error) {
	tkn, err := c.authn.Authenticate(ctx)
	if err != nil {
		return nil, "", errors.Wrap(err, "gateway: error authenticating")
	}
	return auth.ContextSetToken(ctx, tkn), tkn, nil
}

type statusGetter interface {
	GetStatus() *rpc.Status
}

// checkRPC turns a call error or a non-OK status into a typed error.
func checkRPC(op string, res statusGetter, err error) error {
	if err != nil {
		return errtypes.Transport(op + ": " + err.Error())
	}
	if err := errtypes.NewErrtypeFromStatus(res.GetStatus()); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}
