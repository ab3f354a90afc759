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

package gatewaytest

import (
	"context"

	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

func (g *Gateway) expired(l *provider.Lock) bool {
	return l.Expiration != nil && uint64(g.now().Unix()) >= l.Expiration.Seconds
}

// lockedNode resolves a reference to a node the caller may stat.
func (g *Gateway) lockedNode(ctx context.Context, method string, ref *provider.Reference) (*node, *rpc.Status) {
	u, st := g.begin(ctx, method)
	if st != nil {
		return nil, st
	}
	p, found := g.resolve(ref)
	n, exists := g.nodes[p]
	if !found || !exists {
		return nil, status(rpc.Code_CODE_NOT_FOUND, "resource not found")
	}
	if !g.permissions(u, p).Stat {
		return nil, status(rpc.Code_CODE_PERMISSION_DENIED, "not allowed")
	}
	if n.lock != nil && g.expired(n.lock) {
		n.lock = nil
	}
	return n, nil
}

// SetLock implements gateway.GatewayAPIClient. A live lock is never replaced.
func (g *Gateway) SetLock(ctx context.Context, req *provider.SetLockRequest, _ ...grpc.CallOption) (*provider.SetLockResponse, error) {
	n, st := g.lockedNode(ctx, "SetLock", req.Ref)
	defer g.mu.Unlock()
	if st != nil {
		return &provider.SetLockResponse{Status: st}, nil
	}
	if n.lock != nil {
		return &provider.SetLockResponse{Status: status(rpc.Code_CODE_FAILED_PRECONDITION, "resource is locked")}, nil
	}
	n.lock = proto.Clone(req.Lock).(*provider.Lock)
	return &provider.SetLockResponse{Status: statusOK()}, nil
}

// GetLock implements gateway.GatewayAPIClient.
func (g *Gateway) GetLock(ctx context.Context, req *provider.GetLockRequest, _ ...grpc.CallOption) (*provider.GetLockResponse, error) {
	n, st := g.lockedNode(ctx, "GetLock", req.Ref)
	defer g.mu.Unlock()
	if st != nil {
		return &provider.GetLockResponse{Status: st}, nil
	}
	res := &provider.GetLockResponse{Status: statusOK()}
	if n.lock != nil {
		res.Lock = proto.Clone(n.lock).(*provider.Lock)
	}
	return res, nil
}

// RefreshLock implements gateway.GatewayAPIClient.
func (g *Gateway) RefreshLock(ctx context.Context, req *provider.RefreshLockRequest, _ ...grpc.CallOption) (*provider.RefreshLockResponse, error) {
	n, st := g.lockedNode(ctx, "RefreshLock", req.Ref)
	defer g.mu.Unlock()
	if st != nil {
		return &provider.RefreshLockResponse{Status: st}, nil
	}
	existing := req.ExistingLockId
	if existing == "" {
		existing = req.Lock.GetLockId()
	}
	if n.lock == nil || n.lock.LockId != existing {
		return &provider.RefreshLockResponse{Status: status(rpc.Code_CODE_FAILED_PRECONDITION, "lock mismatch")}, nil
	}
	n.lock = proto.Clone(req.Lock).(*provider.Lock)
	return &provider.RefreshLockResponse{Status: statusOK()}, nil
}

// Unlock implements gateway.GatewayAPIClient.
func (g *Gateway) Unlock(ctx context.Context, req *provider.UnlockRequest, _ ...grpc.CallOption) (*provider.UnlockResponse, error) {
	n, st := g.lockedNode(ctx, "Unlock", req.Ref)
	defer g.mu.Unlock()
	if st != nil {
		return &provider.UnlockResponse{Status: st}, nil
	}
	if n.lock == nil || n.lock.LockId != req.Lock.GetLockId() {
		return &provider.UnlockResponse{Status: status(rpc.Code_CODE_FAILED_PRECONDITION, "lock mismatch")}, nil
	}
	n.lock = nil
	return &provider.UnlockResponse{Status: statusOK()}, nil
}
