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

// Package gatewaytest provides an in-memory CS3 gateway for tests.
//
// The fake keeps users, a single storage tree, native locks, local and
// federated shares and mesh providers. File content moves over a real HTTP
// data server so the two-phase transfer protocol is exercised end to end.
// Only the methods the adapter calls are implemented; the others panic.
package gatewaytest

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	ocmprovider "github.com/cs3org/go-cs3apis/cs3/ocm/provider/v1beta1"
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	collaboration "github.com/cs3org/go-cs3apis/cs3/sharing/collaboration/v1beta1"
	ocm "github.com/cs3org/go-cs3apis/cs3/sharing/ocm/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	types "github.com/cs3org/go-cs3apis/cs3/types/v1beta1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

const (
	tokenHeader = "x-access-token"
	// LocalIdp is the identity provider of the users added with AddUser.
	LocalIdp = "localhost"
	// StorageID is the storage id of every resource.
	StorageID = "home-storage"
)

type node struct {
	info    *provider.ResourceInfo
	content []byte
	lock    *provider.Lock
}

type account struct {
	user   *userpb.User
	secret string
	remote bool
}

type transfer struct {
	path   string
	upload bool
	user   *userpb.User
}

// Gateway is an in-memory implementation of gateway.GatewayAPIClient.
type Gateway struct {
	gateway.GatewayAPIClient

	mu        sync.Mutex
	now       func() time.Time
	seq       int
	accounts  map[string]*account
	tokens    map[string]*userpb.User
	bearers   map[string]string
	nodes     map[string]*node
	ids       map[string]string
	shares    map[string]*collaboration.Share
	states    map[string]collaboration.ShareState
	ocmShares map[string]*ocm.Share
	ocmStates map[string]ocm.ShareState
	providers map[string]*ocmprovider.ProviderInfo
	transfers map[string]transfer
	calls     map[string]int
	server    *httptest.Server
}

// New returns an empty gateway with the /home container and a running data server.
// Call Close when done.
func New() *Gateway {
	g := &Gateway{
		now:       time.Now,
		accounts:  map[string]*account{},
		tokens:    map[string]*userpb.User{},
		bearers:   map[string]string{},
		nodes:     map[string]*node{},
		ids:       map[string]string{},
		shares:    map[string]*collaboration.Share{},
		states:    map[string]collaboration.ShareState{},
		ocmShares: map[string]*ocm.Share{},
		ocmStates: map[string]ocm.ShareState{},
		providers: map[string]*ocmprovider.ProviderInfo{},
		transfers: map[string]transfer{},
		calls:     map[string]int{},
	}
	g.mkdir("/", nil)
	g.mkdir("/home", nil)
	g.server = httptest.NewServer(g.dataRouter())
	return g
}

// Close stops the data server.
func (g *Gateway) Close() {
	g.server.Close()
}

// SetNow replaces the clock used for timestamps and lock expiry.
func (g *Gateway) SetNow(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Calls returns how often method was invoked.
func (g *Gateway) Calls(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

// AddUser registers a local user with a home container at /home/<username>.
func (g *Gateway) AddUser(username, secret string) *userpb.User {
	return g.addAccount(username, LocalIdp, secret, false)
}

// AddRemoteUser registers a user of another domain. It can log in but is
// unknown to GetUser, as a federated user would be.
func (g *Gateway) AddRemoteUser(username, idp, secret string) *userpb.User {
	return g.addAccount(username, idp, secret, true)
}

func (g *Gateway) addAccount(username, idp, secret string, remote bool) *userpb.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := userpb.UserType_USER_TYPE_PRIMARY
	if remote {
		t = userpb.UserType_USER_TYPE_FEDERATED
	}
	u := &userpb.User{
		Id: &userpb.UserId{
			Idp:      idp,
			OpaqueId: username + "-id",
			Type:     t,
		},
		Username:    username,
		Mail:        username + "@" + idp,
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
	}
	g.accounts[username] = &account{user: u, secret: secret, remote: remote}
	g.mkdir("/home/"+username, u.Id)
	return u
}

// AddProvider registers a mesh provider for domain.
func (g *Gateway) AddProvider(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[domain] = &ocmprovider.ProviderInfo{
		Name:   domain,
		Domain: domain,
	}
}

// SetBearer makes the bearer login type accept accessToken for username.
func (g *Gateway) SetBearer(accessToken, username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bearers[accessToken] = username
}

// Token logs username in and returns the token.
func (g *Gateway) Token(username string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mintToken(g.accounts[username].user)
}

// ExpireToken invalidates token.
func (g *Gateway) ExpireToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tokens, token)
}

// Put stores content at p, owned by username, creating the file if needed.
func (g *Gateway) Put(p, username string, content []byte) *provider.ResourceInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.writeFile(p, g.accounts[username].user, content)
	return proto.Clone(n.info).(*provider.ResourceInfo)
}

// Content returns the content stored at p.
func (g *Gateway) Content(p string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[p]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), n.content...), true
}

// Metadata returns a copy of the arbitrary metadata stored at p.
func (g *Gateway) Metadata(p string) map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	md := map[string]string{}
	if n, ok := g.nodes[p]; ok {
		for k, v := range n.info.ArbitraryMetadata.GetMetadata() {
			md[k] = v
		}
	}
	return md
}

// Exists reports whether p is stored.
func (g *Gateway) Exists(p string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nodes[p]
	return ok
}

// Paths returns every stored path below dir, sorted.
func (g *Gateway) Paths(dir string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for p := range g.nodes {
		if strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Gateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s%d", prefix, g.seq)
}

func (g *Gateway) mintToken(u *userpb.User) string {
	t := g.nextID("token-")
	g.tokens[t] = u
	return t
}

func (g *Gateway) timestamp() *types.Timestamp {
	now := g.now()
	return &types.Timestamp{Seconds: uint64(now.Unix()), Nanos: uint32(now.Nanosecond())}
}

// begin locks the gateway and resolves the caller from the token in ctx.
// The returned status is nil when the caller is authenticated.
func (g *Gateway) begin(ctx context.Context, method string) (*userpb.User, *rpc.Status) {
	g.mu.Lock()
	g.calls[method]++
	tkn := ""
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if v := md.Get(tokenHeader); len(v) > 0 {
			tkn = v[len(v)-1]
		}
	}
	if u, ok := g.tokens[tkn]; ok {
		return u, nil
	}
	return nil, status(rpc.Code_CODE_UNAUTHENTICATED, "invalid or missing token")
}

func status(code rpc.Code, msg string) *rpc.Status {
	return &rpc.Status{Code: code, Message: msg}
}

func statusOK() *rpc.Status {
	return &rpc.Status{Code: rpc.Code_CODE_OK}
}

func sameUser(a, b *userpb.UserId) bool {
	return a != nil && b != nil && a.Idp == b.Idp && a.OpaqueId == b.OpaqueId
}

func (g *Gateway) mkdir(p string, owner *userpb.UserId) *node {
	if n, ok := g.nodes[p]; ok {
		return n
	}
	id := g.nextID("oid:")
	n := &node{info: &provider.ResourceInfo{
		Type:              provider.ResourceType_RESOURCE_TYPE_CONTAINER,
		Id:                &provider.ResourceId{StorageId: StorageID, SpaceId: StorageID, OpaqueId: id},
		Path:              p,
		Owner:             owner,
		Mtime:             g.timestamp(),
		ArbitraryMetadata: &provider.ArbitraryMetadata{Metadata: map[string]string{}},
	}}
	g.nodes[p] = n
	g.ids[id] = p
	return n
}

func (g *Gateway) writeFile(p string, u *userpb.User, content []byte) *node {
	n, ok := g.nodes[p]
	if !ok {
		owner := u.Id
		if parent, ok := g.nodes[path.Dir(p)]; ok && parent.info.Owner != nil {
			owner = parent.info.Owner
		}
		id := g.nextID("oid:")
		n = &node{info: &provider.ResourceInfo{
			Type:              provider.ResourceType_RESOURCE_TYPE_FILE,
			Id:                &provider.ResourceId{StorageId: StorageID, SpaceId: StorageID, OpaqueId: id},
			Path:              p,
			Owner:             owner,
			MimeType:          "application/octet-stream",
			ArbitraryMetadata: &provider.ArbitraryMetadata{Metadata: map[string]string{}},
		}}
		g.nodes[p] = n
		g.ids[id] = p
	}
	n.content = append([]byte(nil), content...)
	n.info.Size = uint64(len(content))
	n.info.Mtime = g.timestamp()
	n.info.Etag = fmt.Sprintf("%d", g.now().UnixNano())
	return n
}

// resolve maps a reference to a stored path.
func (g *Gateway) resolve(ref *provider.Reference) (string, bool) {
	if ref == nil {
		return "", false
	}
	if ref.ResourceId != nil {
		p, ok := g.ids[ref.ResourceId.OpaqueId]
		if !ok || ref.ResourceId.StorageId != StorageID {
			return "", false
		}
		if ref.Path != "" && ref.Path != "." {
			p = path.Join(p, ref.Path)
		}
		return p, true
	}
	if !strings.HasPrefix(ref.Path, "/") {
		return "", false
	}
	return path.Clean(ref.Path), true
}

func allPermissions() *provider.ResourcePermissions {
	return &provider.ResourcePermissions{
		AddGrant:             true,
		CreateContainer:      true,
		Delete:               true,
		GetPath:              true,
		GetQuota:             true,
		InitiateFileDownload: true,
		InitiateFileUpload:   true,
		ListContainer:        true,
		ListFileVersions:     true,
		ListGrants:           true,
		ListRecycle:          true,
		Move:                 true,
		RemoveGrant:          true,
		RestoreFileVersion:   true,
		Stat:                 true,
		UpdateGrant:          true,
	}
}

func browsePermissions() *provider.ResourcePermissions {
	return &provider.ResourcePermissions{
		GetPath:       true,
		ListContainer: true,
		Stat:          true,
	}
}

func merge(dst, src *provider.ResourcePermissions) {
	dst.AddGrant = dst.AddGrant || src.AddGrant
	dst.CreateContainer = dst.CreateContainer || src.CreateContainer
	dst.Delete = dst.Delete || src.Delete
	dst.GetPath = dst.GetPath || src.GetPath
	dst.InitiateFileDownload = dst.InitiateFileDownload || src.InitiateFileDownload
	dst.InitiateFileUpload = dst.InitiateFileUpload || src.InitiateFileUpload
	dst.ListContainer = dst.ListContainer || src.ListContainer
	dst.ListFileVersions = dst.ListFileVersions || src.ListFileVersions
	dst.ListGrants = dst.ListGrants || src.ListGrants
	dst.Move = dst.Move || src.Move
	dst.RemoveGrant = dst.RemoveGrant || src.RemoveGrant
	dst.RestoreFileVersion = dst.RestoreFileVersion || src.RestoreFileVersion
	dst.Stat = dst.Stat || src.Stat
	dst.UpdateGrant = dst.UpdateGrant || src.UpdateGrant
}

// permissions computes what u may do on p: everything on owned resources,
// browsing on unowned containers, and the union of the grants on p and its
// ancestors otherwise.
func (g *Gateway) permissions(u *userpb.User, p string) *provider.ResourcePermissions {
	perms := &provider.ResourcePermissions{}
	for cur := p; ; cur = path.Dir(cur) {
		if n, ok := g.nodes[cur]; ok {
			if cur == p || n.info.Type == provider.ResourceType_RESOURCE_TYPE_CONTAINER {
				if n.info.Owner == nil && cur == p {
					merge(perms, browsePermissions())
				}
				if sameUser(n.info.Owner, u.Id) {
					return allPermissions()
				}
				for _, s := range g.shares {
					if s.ResourceId.OpaqueId == n.info.Id.OpaqueId && sameUser(s.Grantee.GetUserId(), u.Id) {
						merge(perms, s.Permissions.GetPermissions())
					}
				}
				for _, s := range g.ocmShares {
					if s.ResourceId.OpaqueId == n.info.Id.OpaqueId && sameUser(s.Grantee.GetUserId(), u.Id) {
						for _, m := range s.AccessMethods {
							if w := m.GetWebdavOptions(); w != nil {
								merge(perms, w.GetPermissions())
							}
						}
					}
				}
			}
		}
		if cur == "/" {
			break
		}
	}
	return perms
}

// target returns the permissions that govern creating p: the existing
// resource itself, or its parent container.
func (g *Gateway) target(u *userpb.User, p string) (*node, *provider.ResourcePermissions, bool) {
	if n, ok := g.nodes[p]; ok {
		return n, g.permissions(u, p), true
	}
	if _, ok := g.nodes[path.Dir(p)]; !ok {
		return nil, nil, false
	}
	return nil, g.permissions(u, path.Dir(p)), true
}

func (g *Gateway) infoFor(u *userpb.User, n *node) *provider.ResourceInfo {
	info := proto.Clone(n.info).(*provider.ResourceInfo)
	info.PermissionSet = g.permissions(u, n.info.Path)
	if n.lock != nil && !g.expired(n.lock) {
		info.Lock = proto.Clone(n.lock).(*provider.Lock)
	}
	return info
}

// WhoAmI implements gateway.GatewayAPIClient.
func (g *Gateway) WhoAmI(ctx context.Context, req *gateway.WhoAmIRequest, _ ...grpc.CallOption) (*gateway.WhoAmIResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["WhoAmI"]++
	u, ok := g.tokens[req.Token]
	if !ok {
		return &gateway.WhoAmIResponse{Status: status(rpc.Code_CODE_UNAUTHENTICATED, "invalid token")}, nil
	}
	return &gateway.WhoAmIResponse{Status: statusOK(), User: u}, nil
}

// Authenticate implements gateway.GatewayAPIClient for the basic and bearer login types.
func (g *Gateway) Authenticate(ctx context.Context, req *gateway.AuthenticateRequest, _ ...grpc.CallOption) (*gateway.AuthenticateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["Authenticate"]++
	var a *account
	switch req.Type {
	case "basic":
		if acc, ok := g.accounts[req.ClientId]; ok && acc.secret == req.ClientSecret {
			a = acc
		}
	case "bearer":
		if name, ok := g.bearers[req.ClientSecret]; ok {
			a = g.accounts[name]
		}
	}
	if a == nil {
		return &gateway.AuthenticateResponse{Status: status(rpc.Code_CODE_UNAUTHENTICATED, "invalid credentials")}, nil
	}
	return &gateway.AuthenticateResponse{Status: statusOK(), User: a.user, Token: g.mintToken(a.user)}, nil
}

// GetUser implements gateway.GatewayAPIClient. Remote users are not found.
func (g *Gateway) GetUser(ctx context.Context, req *userpb.GetUserRequest, _ ...grpc.CallOption) (*userpb.GetUserResponse, error) {
	_, st := g.begin(ctx, "GetUser")
	defer g.mu.Unlock()
	if st != nil {
		return &userpb.GetUserResponse{Status: st}, nil
	}
	for _, a := range g.accounts {
		if !a.remote && sameUser(a.user.Id, req.UserId) {
			return &userpb.GetUserResponse{Status: statusOK(), User: a.user}, nil
		}
	}
	return &userpb.GetUserResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "user not found")}, nil
}

// GetUserByClaim implements gateway.GatewayAPIClient for the username claim.
func (g *Gateway) GetUserByClaim(ctx context.Context, req *userpb.GetUserByClaimRequest, _ ...grpc.CallOption) (*userpb.GetUserByClaimResponse, error) {
	_, st := g.begin(ctx, "GetUserByClaim")
	defer g.mu.Unlock()
	if st != nil {
		return &userpb.GetUserByClaimResponse{Status: st}, nil
	}
	if a, found := g.accounts[req.Value]; found && req.Claim == "username" && !a.remote {
		return &userpb.GetUserByClaimResponse{Status: statusOK(), User: a.user}, nil
	}
	return &userpb.GetUserByClaimResponse{Status: status(rpc.Code_CODE_NOT_FOUND, "user not found")}, nil
}
