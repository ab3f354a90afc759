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

	ocmprovider "github.com/cs3org/go-cs3apis/cs3/ocm/provider/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	ocm "github.com/cs3org/go-cs3apis/cs3/sharing/ocm/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// GetInfoByDomain implements gateway.GatewayAPIClient.
func (g *Gateway) GetInfoByDomain(ctx context.Context, req *ocmprovider.GetInfoByDomainRequest, _ ...grpc.CallOption) (*ocmprovider.GetInfoByDomainResponse, error) {
	_, st := g.begin(ctx, "GetInfoByDomain")
	defer g.mu.Unlock()
	if st != nil {
		return &ocmprovider.GetInfoByDomainResponse{Status: st}, nil
	}
	info, found := g.providers[req.Domain]
	if !found {
		return &ocmprovider.GetInfoByDomainResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "provider not found")}, nil
	}
	return &ocmprovider.GetInfoByDomainResponse{Status: statusOK(), ProviderInfo: proto.Clone(info).(*ocmprovider.ProviderInfo)}, nil
}

func ocmFiltersMatch(id *provider.ResourceId, filters []*ocm.ListOCMSharesRequest_Filter) bool {
	for _, f := range filters {
		if f.Type == ocm.ListOCMSharesRequest_Filter_TYPE_RESOURCE_ID && f.GetResourceId().GetOpaqueId() != id.OpaqueId {
			return false
		}
	}
	return true
}

// CreateOCMShare implements gateway.GatewayAPIClient.
func (g *Gateway) CreateOCMShare(ctx context.Context, req *ocm.CreateOCMShareRequest, _ ...grpc.CallOption) (*ocm.CreateOCMShareResponse, error) {
	u, st := g.begin(ctx, "CreateOCMShare")
	defer g.mu.Unlock()
	if st != nil {
		return &ocm.CreateOCMShareResponse{Status: st}, nil
	}
	n, found := g.nodeByID(req.ResourceId)
	if !found {
		return &ocm.CreateOCMShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if req.RecipientMeshProvider == nil {
		return &ocm.CreateOCMShareResponse{Status: status(rpc.Code_CODE_INVALID_ARGUMENT, "missing mesh provider")}, nil
	}
	if !g.permissions(u, n.info.Path).AddGrant {
		return &ocm.CreateOCMShareResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "sharing not allowed")}, nil
	}
	for _, s := range g.ocmShares {
		if s.ResourceId.OpaqueId == n.info.Id.OpaqueId && proto.Equal(s.Grantee, req.Grantee) {
			return &ocm.CreateOCMShareResponse{Status: status(rpc.Code_CODE_ALREADY_EXISTS, "share already exists")}, nil
		}
	}
	now := g.timestamp()
	s := &ocm.Share{
		Id:            &ocm.ShareId{OpaqueId: g.nextID("ocm-share-")},
		ResourceId:    proto.Clone(n.info.Id).(*provider.ResourceId),
		Name:          path.Base(n.info.Path),
		Token:         g.nextID("secret-"),
		Grantee:       proto.Clone(req.Grantee).(*provider.Grantee),
		Owner:         n.info.Owner,
		Creator:       u.Id,
		Ctime:         now,
		Mtime:         now,
		ShareType:     ocm.ShareType_SHARE_TYPE_USER,
		AccessMethods: req.AccessMethods,
	}
	g.ocmShares[s.Id.OpaqueId] = s
	g.ocmStates[s.Id.OpaqueId] = ocm.ShareState_SHARE_STATE_PENDING
	return &ocm.CreateOCMShareResponse{Status: statusOK(), Share: proto.Clone(s).(*ocm.Share)}, nil
}

// ListOCMShares implements gateway.GatewayAPIClient.
func (g *Gateway) ListOCMShares(ctx context.Context, req *ocm.ListOCMSharesRequest, _ ...grpc.CallOption) (*ocm.ListOCMSharesResponse, error) {
	u, st := g.begin(ctx, "ListOCMShares")
	defer g.mu.Unlock()
	if st != nil {
		return &ocm.ListOCMSharesResponse{Status: st}, nil
	}
	var out []*ocm.Share
	for _, id := range sortedShareIDs(g.ocmShares) {
		s := g.ocmShares[id]
		if (sameUser(s.Owner, u.Id) || sameUser(s.Creator, u.Id)) && ocmFiltersMatch(s.ResourceId, req.Filters) {
			out = append(out, proto.Clone(s).(*ocm.Share))
		}
	}
	return &ocm.ListOCMSharesResponse{Status: statusOK(), Shares: out}, nil
}

// UpdateOCMShare implements gateway.GatewayAPIClient for access method updates.
func (g *Gateway) UpdateOCMShare(ctx context.Context, req *ocm.UpdateOCMShareRequest, _ ...grpc.CallOption) (*ocm.UpdateOCMShareResponse, error) {
	u, st := g.begin(ctx, "UpdateOCMShare")
	defer g.mu.Unlock()
	if st != nil {
		return &ocm.UpdateOCMShareResponse{Status: st}, nil
	}
	s, found := g.ocmShares[req.Ref.GetId().GetOpaqueId()]
	if !found || !(sameUser(s.Owner, u.Id) || sameUser(s.Creator, u.Id)) {
		return &ocm.UpdateOCMShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	for _, f := range req.Field {
		m := f.GetAccessMethods()
		if m == nil {
			return &ocm.UpdateOCMShareResponse{Status: status(rpc.Code_CODE_INVALID_ARGUMENT, "unsupported field")}, nil
		}
		if m.GetWebdavOptions() != nil {
			var methods []*ocm.AccessMethod
			for _, old := range s.AccessMethods {
				if old.GetWebdavOptions() == nil {
					methods = append(methods, old)
				}
			}
			s.AccessMethods = append(methods, proto.Clone(m).(*ocm.AccessMethod))
		}
	}
	s.Mtime = g.timestamp()
	return &ocm.UpdateOCMShareResponse{Status: statusOK()}, nil
}

// RemoveOCMShare implements gateway.GatewayAPIClient.
func (g *Gateway) RemoveOCMShare(ctx context.Context, req *ocm.RemoveOCMShareRequest, _ ...grpc.CallOption) (*ocm.RemoveOCMShareResponse, error) {
	u, st := g.begin(ctx, "RemoveOCMShare")
	defer g.mu.Unlock()
	if st != nil {
		return &ocm.RemoveOCMShareResponse{Status: st}, nil
	}
	id := req.Ref.GetId().GetOpaqueId()
	s, found := g.ocmShares[id]
	if !found || !(sameUser(s.Owner, u.Id) || sameUser(s.Creator, u.Id)) {
		return &ocm.RemoveOCMShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	delete(g.ocmShares, id)
	delete(g.ocmStates, id)
	return &ocm.RemoveOCMShareResponse{Status: statusOK()}, nil
}

func (g *Gateway) receivedOCM(s *ocm.Share) *ocm.ReceivedShare {
	rs := &ocm.ReceivedShare{
		Id:            &ocm.ShareId{OpaqueId: s.Id.OpaqueId},
		RemoteShareId: s.Id.OpaqueId,
		Name:          s.Name,
		Grantee:       proto.Clone(s.Grantee).(*provider.Grantee),
		Owner:         s.Owner,
		Creator:       s.Creator,
		Ctime:         s.Ctime,
		Mtime:         s.Mtime,
		ShareType:     s.ShareType,
		State:         g.ocmStates[s.Id.OpaqueId],
		ResourceType:  provider.ResourceType_RESOURCE_TYPE_FILE,
	}
	if n, ok := g.nodeByID(s.ResourceId); ok {
		rs.ResourceType = n.info.Type
	}
	for _, m := range s.AccessMethods {
		if w := m.GetWebdavOptions(); w != nil {
			rs.Protocols = append(rs.Protocols, &ocm.Protocol{
				Term: &ocm.Protocol_WebdavOptions{
					WebdavOptions: &ocm.WebDAVProtocol{
						Uri:          g.server.URL + "/remote.php/dav/ocm/" + s.Token,
						SharedSecret: s.Token,
						Permissions:  &ocm.SharePermissions{Permissions: w.GetPermissions()},
					},
				},
			})
		}
	}
	return rs
}

// ListReceivedOCMShares implements gateway.GatewayAPIClient.
func (g *Gateway) ListReceivedOCMShares(ctx context.Context, req *ocm.ListReceivedOCMSharesRequest, _ ...grpc.CallOption) (*ocm.ListReceivedOCMSharesResponse, error) {
	u, st := g.begin(ctx, "ListReceivedOCMShares")
	defer g.mu.Unlock()
	if st != nil {
		return &ocm.ListReceivedOCMSharesResponse{Status: st}, nil
	}
	var out []*ocm.ReceivedShare
	for _, id := range sortedShareIDs(g.ocmShares) {
		s := g.ocmShares[id]
		if sameUser(s.Grantee.GetUserId(), u.Id) {
			out = append(out, g.receivedOCM(s))
		}
	}
	return &ocm.ListReceivedOCMSharesResponse{Status: statusOK(), Shares: out}, nil
}

// GetReceivedOCMShare implements gateway.GatewayAPIClient.
func (g *Gateway) GetReceivedOCMShare(ctx context.Context, req *ocm.GetReceivedOCMShareRequest, _ ...grpc.CallOption) (*ocm.GetReceivedOCMShareResponse, error) {
	u, st := g.begin(ctx, "GetReceivedOCMShare")
	defer g.mu.Unlock()
	if st != nil {
		return &ocm.GetReceivedOCMShareResponse{Status: st}, nil
	}
	s, found := g.ocmShares[req.Ref.GetId().GetOpaqueId()]
	if !found || !sameUser(s.Grantee.GetUserId(), u.Id) {
		return &ocm.GetReceivedOCMShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	return &ocm.GetReceivedOCMShareResponse{Status: statusOK(), Share: g.receivedOCM(s)}, nil
}

// UpdateReceivedOCMShare implements gateway.GatewayAPIClient for the state field.
func (g *Gateway) UpdateReceivedOCMShare(ctx context.Context, req *ocm.UpdateReceivedOCMShareRequest, _ ...grpc.CallOption) (*ocm.UpdateReceivedOCMShareResponse, error) {
	u, st := g.begin(ctx, "UpdateReceivedOCMShare")
	defer g.mu.Unlock()
	if st != nil {
		return &ocm.UpdateReceivedOCMShareResponse{Status: st}, nil
	}
	id := req.Share.GetId().GetOpaqueId()
	s, found := g.ocmShares[id]
	if !found || !sameUser(s.Grantee.GetUserId(), u.Id) {
		return &ocm.UpdateReceivedOCMShareResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "share not found")}, nil
	}
	for _, p := range req.UpdateMask.GetPaths() {
		if p == "state" && g.ocmStates[id] != ocm.ShareState_SHARE_STATE_INVALID {
			g.ocmStates[id] = req.Share.State
		}
	}
	return &ocm.UpdateReceivedOCMShareResponse{Status: statusOK()}, nil
}
