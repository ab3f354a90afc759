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

// Package pool keeps the connections to the gateway, one per endpoint and authenticator.
package pool

import (
	"crypto/tls"
	"sync"

	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/metrics"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

type connKey struct {
	endpoint string
	authn    auth.Authenticator
}

type provider struct {
	m    sync.Mutex
	conn map[connKey]gateway.GatewayAPIClient
}

var gatewayProviders = provider{conn: map[connKey]gateway.GatewayAPIClient{}}

// NewConn creates a new connection to a grpc server
// with open telemetry tracing and metrics support.
func NewConn(options Options) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if !options.Insecure {
		creds = credentials.NewTLS(&tls.Config{InsecureSkipVerify: options.SkipVerify}) //nolint:gosec
	}

	interceptors := []grpc.UnaryClientInterceptor{metrics.NewUnaryClientInterceptor()}
	if options.Authenticator != nil {
		interceptors = append(interceptors, auth.NewUnaryClientInterceptor(options.Authenticator))
	}

	conn, err := grpc.NewClient(
		options.Endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(options.MaxCallRecvMsgSize),
		),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(interceptors...),
	)
	if err != nil {
		return nil, errors.Wrap(err, "pool: error connecting to "+options.Endpoint)
	}

	return conn, nil
}

// GetGatewayServiceClient returns a GatewayAPIClient, reusing the connection
// built earlier for the same endpoint and authenticator.
func GetGatewayServiceClient(opts ...Option) (gateway.GatewayAPIClient, error) {
	gatewayProviders.m.Lock()
	defer gatewayProviders.m.Unlock()

	options := newOptions(opts...)
	key := connKey{endpoint: options.Endpoint, authn: options.Authenticator}
	if val, ok := gatewayProviders.conn[key]; ok {
		return val, nil
	}

	conn, err := NewConn(options)
	if err != nil {
		return nil, err
	}

	v := gateway.NewGatewayAPIClient(conn)
	gatewayProviders.conn[key] = v

	return v, nil
}
