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
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

const authenticateMethod = "/cs3.gateway.v1beta1.GatewayAPI/Authenticate"

type statusGetter interface {
	GetStatus() *rpc.Status
}

// ContextSetToken returns a context carrying the token in the outgoing metadata,
// replacing any previous token.
func ContextSetToken(ctx context.Context, token string) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return metadata.AppendToOutgoingContext(ctx, TokenHeader, token)
	}
	md = md.Copy()
	md.Set(TokenHeader, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// ContextGetToken returns the token of the outgoing metadata.
func ContextGetToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return "", false
	}
	v := md.Get(TokenHeader)
	if len(v) == 0 {
		return "", false
	}
	return v[len(v)-1], true
}

// NewUnaryClientInterceptor replays a call once with a refreshed token when the
// gateway answers UNAUTHENTICATED, either as gRPC code or as CS3 status.
func NewUnaryClientInterceptor(a Authenticator) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if method == authenticateMethod {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		err := invoker(ctx, method, req, reply, cc, opts...)
		if !unauthenticated(reply, err) {
			return err
		}

		appctx.GetLogger(ctx).Debug().Str("method", method).Msg("auth: token rejected, refreshing")
		tkn, rerr := a.RefreshToken(ctx)
		if rerr != nil {
			return rerr
		}
		if m, ok := reply.(proto.Message); ok {
			proto.Reset(m)
		}
		// WhoAmI carries the token in the request body too.
		if w, ok := req.(*gateway.WhoAmIRequest); ok {
			w = proto.Clone(w).(*gateway.WhoAmIRequest)
			w.Token = tkn
			req = w
		}
		return invoker(ContextSetToken(ctx, tkn), method, req, reply, cc, opts...)
	}
}

func unauthenticated(reply interface{}, err error) bool {
	if err != nil {
		return status.Code(err) == codes.Unauthenticated
	}
	r, ok := reply.(statusGetter)
	return ok && r.GetStatus().GetCode() == rpc.Code_CODE_UNAUTHENTICATED
}
