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
	"strings"

	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"google.golang.org/grpc"
)

// Stat implements gateway.GatewayAPIClient.
func (g *Gateway) Stat(ctx context.Context, req *provider.StatRequest, _ ...grpc.CallOption) (*provider.StatResponse, error) {
	u, st := g.begin(ctx, "Stat")
	defer g.mu.Unlock()
	if st != nil {
		return &provider.StatResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	n, exists := g.nodes[p]
	if !found || !exists {
		return &provider.StatResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if !g.permissions(u, p).Stat {
		return &provider.StatResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "stat not allowed")}, nil
	}
	return &provider.StatResponse{Status: statusOK(), Info: g.infoFor(u, n)}, nil
}

// ListContainer implements gateway.GatewayAPIClient.
func (g *Gateway) ListContainer(ctx context.Context, req *provider.ListContainerRequest, _ ...grpc.CallOption) (*provider.ListContainerResponse, error) {
	u, st := g.begin(ctx, "ListContainer")
	defer g.mu.Unlock()
	if st != nil {
		return &provider.ListContainerResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	n, exists := g.nodes[p]
	if !found || !exists {
		return &provider.ListContainerResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if n.info.Type != provider.ResourceType_RESOURCE_TYPE_CONTAINER {
		return &provider.ListContainerResponse{Status: status(rpc.Code_CODE_INVALID_ARGUMENT, "not a container")}, nil
	}
	if !g.permissions(u, p).ListContainer {
		return &provider.ListContainerResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "listing not allowed")}, nil
	}
	var infos []*provider.ResourceInfo
	for cp, c := range g.nodes {
		if cp != "/" && path.Dir(cp) == p {
			infos = append(infos, g.infoFor(u, c))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return &provider.ListContainerResponse{Status: statusOK(), Infos: infos}, nil
}

// CreateContainer implements gateway.GatewayAPIClient.
func (g *Gateway) CreateContainer(ctx context.Context, req *provider.CreateContainerRequest, _ ...grpc.CallOption) (*provider.CreateContainerResponse, error) {
	u, st := g.begin(ctx, "CreateContainer")
	defer g.mu.Unlock()
	if st != nil {
		return &provider.CreateContainerResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	if !found {
		return &provider.CreateContainerResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "parent not found")}, nil
	}
	if _, exists := g.nodes[p]; exists {
		return &provider.CreateContainerResponse{Status: status(rpc.Code_CODE_ALREADY_EXISTS, "container exists")}, nil
	}
	parent, exists := g.nodes[path.Dir(p)]
	if !exists {
		return &provider.CreateContainerResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "parent not found")}, nil
	}
	if !g.permissions(u, path.Dir(p)).CreateContainer {
		return &provider.CreateContainerResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "create container not allowed")}, nil
	}
	owner := parent.info.Owner
	if owner == nil {
		owner = u.Id
	}
	g.mkdir(p, owner)
	return &provider.CreateContainerResponse{Status: statusOK()}, nil
}

// Delete implements gateway.GatewayAPIClient. Shares on removed resources are dropped.
func (g *Gateway) Delete(ctx context.Context, req *provider.DeleteRequest, _ ...grpc.CallOption) (*provider.DeleteResponse, error) {
	u, st := g.begin(ctx, "Delete")
	defer g.mu.Unlock()
	if st != nil {
		return &provider.DeleteResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	if _, exists := g.nodes[p]; !found || !exists {
		return &provider.DeleteResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if !g.permissions(u, p).Delete {
		return &provider.DeleteResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "delete not allowed")}, nil
	}
	for cp, n := range g.nodes {
		if cp == p || strings.HasPrefix(cp, p+"/") {
			delete(g.ids, n.info.Id.OpaqueId)
			delete(g.nodes, cp)
			for id, s := range g.shares {
				if s.ResourceId.OpaqueId == n.info.Id.OpaqueId {
					delete(g.shares, id)
				}
			}
			for id, s := range g.ocmShares {
				if s.ResourceId.OpaqueId == n.info.Id.OpaqueId {
					delete(g.ocmShares, id)
				}
			}
		}
	}
	return &provider.DeleteResponse{Status: statusOK()}, nil
}

// Move implements gateway.GatewayAPIClient.
func (g *Gateway) Move(ctx context.Context, req *provider.MoveRequest, _ ...grpc.CallOption) (*provider.MoveResponse, error) {
	u, st := g.begin(ctx, "Move")
	defer g.mu.Unlock()
	if st != nil {
		return &provider.MoveResponse{Status: st}, nil
	}
	src, found := g.resolve(req.Source)
	if _, exists := g.nodes[src]; !found || !exists {
		return &provider.MoveResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "source not found")}, nil
	}
	dst, found := g.resolve(req.Destination)
	if _, exists := g.nodes[path.Dir(dst)]; !found || !exists {
		return &provider.MoveResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "destination parent not found")}, nil
	}
	if _, exists := g.nodes[dst]; exists {
		return &provider.MoveResponse{Status: status(rpc.Code_CODE_ALREADY_EXISTS, "destination exists")}, nil
	}
	if !g.permissions(u, src).Move || !g.permissions(u, path.Dir(dst)).InitiateFileUpload {
		return &provider.MoveResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "move not allowed")}, nil
	}
	for cp, n := range g.nodes {
		if cp == src || strings.HasPrefix(cp, src+"/") {
			np := dst + strings.TrimPrefix(cp, src)
			delete(g.nodes, cp)
			n.info.Path = np
			g.nodes[np] = n
			g.ids[n.info.Id.OpaqueId] = np
		}
	}
	return &provider.MoveResponse{Status: statusOK()}, nil
}

// SetArbitraryMetadata implements gateway.GatewayAPIClient. Anyone allowed to
// stat a resource may annotate it.
func (g *Gateway) SetArbitraryMetadata(ctx context.Context, req *provider.SetArbitraryMetadataRequest, _ ...grpc.CallOption) (*provider.SetArbitraryMetadataResponse, error) {
	u, st := g.begin(ctx, "SetArbitraryMetadata")
	defer g.mu.Unlock()
	if st != nil {
		return &provider.SetArbitraryMetadataResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	n, exists := g.nodes[p]
	if !found || !exists {
		return &provider.SetArbitraryMetadataResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if !g.permissions(u, p).Stat {
		return &provider.SetArbitraryMetadataResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "not allowed")}, nil
	}
	for k, v := range req.ArbitraryMetadata.GetMetadata() {
		n.info.ArbitraryMetadata.Metadata[k] = v
	}
	return &provider.SetArbitraryMetadataResponse{Status: statusOK()}, nil
}

// UnsetArbitraryMetadata implements gateway.GatewayAPIClient.
func (g *Gateway) UnsetArbitraryMetadata(ctx context.Context, req *provider.UnsetArbitraryMetadataRequest, _ ...grpc.CallOption) (*provider.UnsetArbitraryMetadataResponse, error) {
	u, st := g.begin(ctx, "UnsetArbitraryMetadata")
	defer g.mu.Unlock()
	if st != nil {
		return &provider.UnsetArbitraryMetadataResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	n, exists := g.nodes[p]
	if !found || !exists {
		return &provider.UnsetArbitraryMetadataResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if !g.permissions(u, p).Stat {
		return &provider.UnsetArbitraryMetadataResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "not allowed")}, nil
	}
	for _, k := range req.ArbitraryMetadataKeys {
		delete(n.info.ArbitraryMetadata.Metadata, k)
	}
	return &provider.UnsetArbitraryMetadataResponse{Status: statusOK()}, nil
}

// InitiateFileDownload implements gateway.GatewayAPIClient. The simple
// protocol is offered after a spaces one, as real gateways do.
func (g *Gateway) InitiateFileDownload(ctx context.Context, req *provider.InitiateFileDownloadRequest, _ ...grpc.CallOption) (*gateway.InitiateFileDownloadResponse, error) {
	u, st := g.begin(ctx, "InitiateFileDownload")
	defer g.mu.Unlock()
	if st != nil {
		return &gateway.InitiateFileDownloadResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	n, exists := g.nodes[p]
	if !found || !exists {
		return &gateway.InitiateFileDownloadResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	if n.info.Type != provider.ResourceType_RESOURCE_TYPE_FILE {
		return &gateway.InitiateFileDownloadResponse{Status: status(rpc.Code_CODE_INVALID_ARGUMENT, "not a file")}, nil
	}
	if !g.permissions(u, p).InitiateFileDownload {
		return &gateway.InitiateFileDownloadResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "download not allowed")}, nil
	}
	tkn := g.nextID("transfer-")
	g.transfers[tkn] = transfer{path: p, user: u}
	return &gateway.InitiateFileDownloadResponse{
		Status: statusOK(),
		Protocols: []*gateway.FileDownloadProtocol{
			{Protocol: "spaces", DownloadEndpoint: g.server.URL + "/spaces/" + tkn, Token: tkn},
			{Protocol: "simple", DownloadEndpoint: g.server.URL + "/data/" + tkn, Token: tkn},
		},
	}, nil
}

// InitiateFileUpload implements gateway.GatewayAPIClient.
func (g *Gateway) InitiateFileUpload(ctx context.Context, req *provider.InitiateFileUploadRequest, _ ...grpc.CallOption) (*gateway.InitiateFileUploadResponse, error) {
	u, st := g.begin(ctx, "InitiateFileUpload")
	defer g.mu.Unlock()
	if st != nil {
		return &gateway.InitiateFileUploadResponse{Status: st}, nil
	}
	p, found := g.resolve(req.Ref)
	if !found {
		return &gateway.InitiateFileUploadResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "resource not found")}, nil
	}
	n, perms, exists := g.target(u, p)
	if !exists {
		return &gateway.InitiateFileUploadResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "parent not found")}, nil
	}
	if n != nil && n.info.Type != provider.ResourceType_RESOURCE_TYPE_FILE {
		return &gateway.InitiateFileUploadResponse{Status: status(rpc.Code_CODE_INVALID_ARGUMENT, "not a file")}, nil
	}
	if !perms.InitiateFileUpload {
		return &gateway.InitiateFileUploadResponse{Status: status(rpc.Code_CODE_PERMISSION_DENIED, "upload not allowed")}, nil
	}
	tkn := g.nextID("transfer-")
	g.transfers[tkn] = transfer{path: p, upload: true, user: u}
	return &gateway.InitiateFileUploadResponse{
		Status: statusOK(),
		Protocols: []*gateway.FileUploadProtocol{
			{Protocol: "tus", UploadEndpoint: g.server.URL + "/tus/" + tkn, Token: tkn},
			{Protocol: "simple", UploadEndpoint: g.server.URL + "/data/" + tkn, Token: tkn},
		},
	}, nil
}
