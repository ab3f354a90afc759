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
	"path"
	"sort"

	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	collaboration "github.com/cs3org/go-cs3apis/cs3/sharing/collaboration/v1beta1"
	ocm "github.com/cs3org/go-cs3apis/cs3/sharing/ocm/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

func (g *Gateway) nodeByID(id *provider.ResourceId) (*node, bool) {
	if id == nil {
		return nil, false
	}
	p, ok := g.ids[id.OpaqueId]
	if !ok {
		return nil, false
	}
	n, ok := g.nodes[p]
	return n, ok
}

func (g *Gateway) localUser(id *userpb.UserId) bool {
	for _, a := range g.accounts {
		if !a.remote && sameUser(a.user.Id, id) {
			return true
		}
	}
	return false
}

func canManage(u *userpb.User, s *collaboration.Share) bool {
	return sameUser(s.Owner, u.Id) || sameUser(s.Creator, u.Id)
}

func matchesFilters(id *provider.ResourceId, filters []*collaboration.Filter) bool {
	for _, f := range filters {
		if f.Type == collaboration.Filter_TYPE_RESOURCE_ID && f.GetResourceId().GetOpaqueId() != id.OpaqueId {
			return false
		}
	}
	return true
}

func sortedShareIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

// CreateShare implements gateway.GatewayAPIClient. Grantees must be local users or groups.
func (g *Gateway) CreateShare(ctx context.Context, req *collaboration.CreateShareRequest, _ ...grpc.CallOption) (*collaboration.CreateShareResponse, error) {
	u, st := g.begin(ctx, "CreateShare")
	defer g.mu.Unlock()
	if st != nil {
		return &collaboration.CreateShareResponse{Status: st}, nil
	}
	n, found := g.nodeByID(req.ResourceInfo.GetId())
	if !found {
		return &collaboration.CreateShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if !g.permissions(u, n.info.Path).AddGrant {
		return &collaboration.CreateShareResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "sharing not allowed")}, nil
	}
	grantee := req.Grant.GetGrantee()
	if grantee.GetType() == provider.GranteeType_GRANTEE_TYPE_USER && !g.localUser(grantee.GetUserId()) {
		return &collaboration.CreateShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "grantee not found")}, nil
	}
	for _, s := range g.shares {
		if s.ResourceId.OpaqueId == n.info.Id.OpaqueId && proto.Equal(s.Grantee, grantee) {
			return &collaboration.CreateShareResponse{Status: status(rpc.Code_CODE_ALREADY_EXISTS, "share already exists")}, nil
		}
	}
	now := g.timestamp()
	s := &collaboration.Share{
		Id:          &collaboration.ShareId{OpaqueId: g.nextID("share-")},
		ResourceId:  proto.Clone(n.info.Id).(*provider.ResourceId),
		Permissions: proto.Clone(req.Grant.GetPermissions()).(*collaboration.SharePermissions),
		Grantee:     proto.Clone(grantee).(*provider.Grantee),
		Owner:       n.info.Owner,
		Creator:     u.Id,
		Ctime:       now,
		Mtime:       now,
		Expiration:  req.Grant.GetExpiration(),
	}
	g.shares[s.Id.OpaqueId] = s
	g.states[s.Id.OpaqueId] = collaboration.ShareState_SHARE_STATE_PENDING
	return &collaboration.CreateShareResponse{Status: statusOK(), Share: proto.Clone(s).(*collaboration.Share)}, nil
}

// ListShares implements gateway.GatewayAPIClient.
func (g *Gateway) ListShares(ctx context.Context, req *collaboration.ListSharesRequest, _ ...grpc.CallOption) (*collaboration.ListSharesResponse, error) {
	u, st := g.begin(ctx, "ListShares")
	defer g.mu.Unlock()
	if st != nil {
		return &collaboration.ListSharesResponse{Status: st}, nil
	}
	var out []*collaboration.Share
	for _, id := range sortedShareIDs(g.shares) {
		s := g.shares[id]
		if canManage(u, s) && matchesFilters(s.ResourceId, req.Filters) {
			out = append(out, proto.Clone(s).(*collaboration.Share))
		}
	}
	return &collaboration.ListSharesResponse{Status: statusOK(), Shares: out}, nil
}

// UpdateShare implements gateway.GatewayAPIClient for permission updates.
func (g *Gateway) UpdateShare(ctx context.Context, req *collaboration.UpdateShareRequest, _ ...grpc.CallOption) (*collaboration.UpdateShareResponse, error) {
	u, st := g.begin(ctx, "UpdateShare")
	defer g.mu.Unlock()
	if st != nil {
		return &collaboration.UpdateShareResponse{Status: st}, nil
	}
	s, found := g.shares[req.Ref.GetId().GetOpaqueId()]
	if !found || !canManage(u, s) {
		return &collaboration.UpdateShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	perms := req.Field.GetPermissions()
	if perms == nil {
		return &collaboration.UpdateShareResponse{Status: status(rpc.Code_CODE_INVALID_ARGUMENT, "unsupported field")}, nil
	}
	s.Permissions = proto.Clone(perms).(*collaboration.SharePermissions)
	s.Mtime = g.timestamp()
	return &collaboration.UpdateShareResponse{Status: statusOK(), Share: proto.Clone(s).(*collaboration.Share)}, nil
}

// RemoveShare implements gateway.GatewayAPIClient.
func (g *Gateway) RemoveShare(ctx context.Context, req *collaboration.RemoveShareRequest, _ ...grpc.CallOption) (*collaboration.RemoveShareResponse, error) {
	u, st := g.begin(ctx, "RemoveShare")
	defer g.mu.Unlock()
	if st != nil {
		return &collaboration.RemoveShareResponse{Status: st}, nil
	}
	id := req.Ref.GetId().GetOpaqueId()
	s, found := g.shares[id]
	if !found || !canManage(u, s) {
		return &collaboration.RemoveShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	delete(g.shares, id)
	delete(g.states, id)
	return &collaboration.RemoveShareResponse{Status: statusOK()}, nil
}

func (g *Gateway) received(s *collaboration.Share) *collaboration.ReceivedShare {
	rs := &collaboration.ReceivedShare{
		Share: proto.Clone(s).(*collaboration.Share),
		State: g.states[s.Id.OpaqueId],
	}
	if n, ok := g.nodeByID(s.ResourceId); ok {
		rs.MountPoint = &provider.Reference{Path: path.Base(n.info.Path)}
	}
	return rs
}

// ListReceivedShares implements gateway.GatewayAPIClient.
func (g *Gateway) ListReceivedShares(ctx context.Context, req *collaboration.ListReceivedSharesRequest, _ ...grpc.CallOption) (*collaboration.ListReceivedSharesResponse, error) {
	u, st := g.begin(ctx, "ListReceivedShares")
	defer g.mu.Unlock()
	if st != nil {
		return &collaboration.ListReceivedSharesResponse{Status: st}, nil
	}
	var out []*collaboration.ReceivedShare
	for _, id := range sortedShareIDs(g.shares) {
		s := g.shares[id]
		if sameUser(s.Grantee.GetUserId(), u.Id) {
			out = append(out, g.received(s))
		}
	}
	return &collaboration.ListReceivedSharesResponse{Status: statusOK(), Shares: out}, nil
}

// GetReceivedShare implements gateway.GatewayAPIClient.
func (g *Gateway) GetReceivedShare(ctx context.Context, req *collaboration.GetReceivedShareRequest, _ ...grpc.CallOption) (*collaboration.GetReceivedShareResponse, error) {
	u, st := g.begin(ctx, "GetReceivedShare")
	defer g.mu.Unlock()
	if st != nil {
		return &collaboration.GetReceivedShareResponse{Status: st}, nil
	}
	s, found := g.shares[req.Ref.GetId().GetOpaqueId()]
	if !found || !sameUser(s.Grantee.GetUserId(), u.Id) {
		return &collaboration.GetReceivedShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	return &collaboration.GetReceivedShareResponse{Status: statusOK(), Share: g.received(s)}, nil
}

// UpdateReceivedShare implements gateway.GatewayAPIClient for the state field.
// Invalid shares stay invalid.
func (g *Gateway) UpdateReceivedShare(ctx context.Context, req *collaboration.UpdateReceivedShareRequest, _ ...grpc.CallOption) (*collaboration.UpdateReceivedShareResponse, error) {
	u, st := g.begin(ctx, "UpdateReceivedShare")
	defer g.mu.Unlock()
	if st != nil {
		return &collaboration.UpdateReceivedShareResponse{Status: st}, nil
	}
	id := req.Share.GetShare().GetId().GetOpaqueId()
	s, found := g.shares[id]
	if !found || !sameUser(s.Grantee.GetUserId(), u.Id) {
		return &collaboration.UpdateReceivedShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	for _, p := range req.UpdateMask.GetPaths() {
		if p == "state" && g.states[id] != collaboration.ShareState_SHARE_STATE_INVALID {
			g.states[id] = req.Share.State
		}
	}
	return &collaboration.UpdateReceivedShareResponse{Status: statusOK(), Share: g.received(s)}, nil
}

// InvalidateShare marks the local or federated share id as invalid.
func (g *Gateway) InvalidateShare(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.shares[id]; ok {
		g.states[id] = collaboration.ShareState_SHARE_STATE_INVALID
	}
	if _, ok := g.ocmShares[id]; ok {
		g.ocmStates[id] = ocm.ShareState_SHARE_STATE_INVALID
	}
}
