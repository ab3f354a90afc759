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

// Package share unifies local and OCM shares behind one model.
//
// Local shares live in the administrative domain of the gateway, OCM shares
// are sent to users of other domains through a mesh provider. The engine
// picks the universe when a share is created and merges both when listing.
// Share ids of the two universes are never interchanged.
package share

import (
	"context"
	"time"

	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	ocmprovider "github.com/cs3org/go-cs3apis/cs3/ocm/provider/v1beta1"
	collaboration "github.com/cs3org/go-cs3apis/cs3/sharing/collaboration/v1beta1"
	ocm "github.com/cs3org/go-cs3apis/cs3/sharing/ocm/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	types "github.com/cs3org/go-cs3apis/cs3/types/v1beta1"
)

// Kind tells which universe a share belongs to.
type Kind string

// Share kinds.
const (
	KindLocal Kind = "local"
	KindOCM   Kind = "ocm"
)

// Grantee types.
const (
	GranteeUser  = "user"
	GranteeGroup = "group"
)

// Received share states.
const (
	StatePending  = "pending"
	StateAccepted = "accepted"
	StateRejected = "rejected"
	StateInvalid  = "invalid"
)

// FieldRole is the only share field that can be updated.
const FieldRole = "role"

// Grantee identifies who a share is granted to.
type Grantee struct {
	Type     string `json:"type"`
	Idp      string `json:"idp"`
	OpaqueID string `json:"opaque_id"`
}

// Share is the unified view of a local or OCM share.
type Share struct {
	ID         string               `json:"id"`
	Kind       Kind                 `json:"kind"`
	Path       string               `json:"path"`
	Name       string               `json:"name"`
	ResourceID *provider.ResourceId `json:"-"`
	Owner      *userpb.UserId       `json:"-"`
	Creator    *userpb.UserId       `json:"-"`
	Grantee    Grantee              `json:"grantee"`
	Role       Role                 `json:"role"`
	State      string               `json:"state,omitempty"`
	Ctime      time.Time            `json:"ctime"`
	Mtime      time.Time            `json:"mtime"`
}

// GranteeInfo describes one grantee of a resource.
type GranteeInfo struct {
	ShareID     string  `json:"share_id"`
	Kind        Kind    `json:"kind"`
	Grantee     Grantee `json:"grantee"`
	DisplayName string  `json:"display_name,omitempty"`
	Role        Role    `json:"role"`
}

// CreateRequest carries the parameters of Create.
type CreateRequest struct {
	Endpoint        string
	Path            string
	GranteeOpaqueID string
	GranteeIdp      string
	Role            string
	GranteeType     string
	Reshare         bool
}

// Gateway is the part of the gateway client the engine needs.
type Gateway interface {
	Stat(ctx context.Context, ref *provider.Reference) (*provider.ResourceInfo, error)
	WhoAmI(ctx context.Context) (*userpb.User, error)

	CreateShare(ctx context.Context, info *provider.ResourceInfo, grant *collaboration.ShareGrant) (*collaboration.Share, error)
	ListShares(ctx context.Context, filters []*collaboration.Filter) ([]*collaboration.Share, error)
	UpdateSharePermissions(ctx context.Context, id string, perms *provider.ResourcePermissions) (*collaboration.Share, error)
	RemoveShare(ctx context.Context, id string) error
	ListReceivedShares(ctx context.Context) ([]*collaboration.ReceivedShare, error)
	GetReceivedShare(ctx context.Context, id string) (*collaboration.ReceivedShare, error)
	UpdateReceivedShare(ctx context.Context, rs *collaboration.ReceivedShare, paths ...string) (*collaboration.ReceivedShare, error)

	GetInfoByDomain(ctx context.Context, domain string) (*ocmprovider.ProviderInfo, error)
	CreateOCMShare(ctx context.Context, id *provider.ResourceId, grantee *provider.Grantee, mesh *ocmprovider.ProviderInfo, perms *provider.ResourcePermissions) (*ocm.Share, error)
	ListOCMShares(ctx context.Context, filters []*ocm.ListOCMSharesRequest_Filter) ([]*ocm.Share, error)
	UpdateOCMSharePermissions(ctx context.Context, id string, perms *provider.ResourcePermissions) error
	RemoveOCMShare(ctx context.Context, id string) error
	ListReceivedOCMShares(ctx context.Context) ([]*ocm.ReceivedShare, error)
	GetReceivedOCMShare(ctx context.Context, id string) (*ocm.ReceivedShare, error)
	UpdateReceivedOCMShare(ctx context.Context, rs *ocm.ReceivedShare, paths ...string) error
}

// Engine creates, lists and updates shares in both universes.
type Engine struct {
	gw        Gateway
	resolver  *reference.Resolver
	users     UserDirectory
	enableOCM bool
}

// NewEngine returns an engine. OCM shares are only created and listed
// when enableOCM is set.
func NewEngine(gw Gateway, resolver *reference.Resolver, users UserDirectory, enableOCM bool) *Engine {
	return &Engine{gw: gw, resolver: resolver, users: users, enableOCM: enableOCM}
}

// New returns an engine configured from c.
func New(c *config.Config, gw Gateway, resolver *reference.Resolver, users UserDirectory) *Engine {
	return NewEngine(gw, resolver, users, c.EnableOCM)
}

func toTime(ts *types.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return time.Unix(int64(ts.Seconds), int64(ts.Nanos)).UTC()
}

func granteeOf(g *provider.Grantee) Grantee {
	switch g.GetType() {
	case provider.GranteeType_GRANTEE_TYPE_GROUP:
		return Grantee{Type: GranteeGroup, Idp: g.GetGroupId().GetIdp(), OpaqueID: g.GetGroupId().GetOpaqueId()}
	default:
		return Grantee{Type: GranteeUser, Idp: g.GetUserId().GetIdp(), OpaqueID: g.GetUserId().GetOpaqueId()}
	}
}

func localState(s collaboration.ShareState) string {
	switch s {
	case collaboration.ShareState_SHARE_STATE_ACCEPTED:
		return StateAccepted
	case collaboration.ShareState_SHARE_STATE_REJECTED:
		return StateRejected
	case collaboration.ShareState_SHARE_STATE_INVALID:
		return StateInvalid
	default:
		return StatePending
	}
}

func ocmState(s ocm.ShareState) string {
	switch s {
	case ocm.ShareState_SHARE_STATE_ACCEPTED:
		return StateAccepted
	case ocm.ShareState_SHARE_STATE_REJECTED:
		return StateRejected
	case ocm.ShareState_SHARE_STATE_INVALID:
		return StateInvalid
	default:
		return StatePending
	}
}

func fromLocal(s *collaboration.Share, p string) *Share {
	return &Share{
		ID:         s.GetId().GetOpaqueId(),
		Kind:       KindLocal,
		Path:       p,
		Name:       baseName(p),
		ResourceID: s.ResourceId,
		Owner:      s.Owner,
		Creator:    s.Creator,
		Grantee:    granteeOf(s.Grantee),
		Role:       RoleFromPermissions(s.GetPermissions().GetPermissions()),
		Ctime:      toTime(s.Ctime),
		Mtime:      toTime(s.Mtime),
	}
}

func fromOCM(s *ocm.Share, p string) *Share {
	var perms *provider.ResourcePermissions
	for _, m := range s.AccessMethods {
		if w := m.GetWebdavOptions(); w != nil {
			perms = w.GetPermissions()
		}
	}
	return &Share{
		ID:         s.GetId().GetOpaqueId(),
		Kind:       KindOCM,
		Path:       p,
		Name:       s.Name,
		ResourceID: s.ResourceId,
		Owner:      s.Owner,
		Creator:    s.Creator,
		Grantee:    granteeOf(s.Grantee),
		Role:       RoleFromPermissions(perms),
		Ctime:      toTime(s.Ctime),
		Mtime:      toTime(s.Mtime),
	}
}

// fromReceivedOCM converts a received OCM share. Those carry no resource id,
// so the share name stands in for the path.
func fromReceivedOCM(rs *ocm.ReceivedShare) *Share {
	var perms *provider.ResourcePermissions
	for _, p := range rs.Protocols {
		if w := p.GetWebdavOptions(); w != nil {
			perms = w.GetPermissions().GetPermissions()
		}
	}
	return &Share{
		ID:      rs.GetId().GetOpaqueId(),
		Kind:    KindOCM,
		Path:    rs.Name,
		Name:    rs.Name,
		Owner:   rs.Owner,
		Creator: rs.Creator,
		Grantee: granteeOf(rs.Grantee),
		Role:    RoleFromPermissions(perms),
		State:   ocmState(rs.State),
		Ctime:   toTime(rs.Ctime),
		Mtime:   toTime(rs.Mtime),
	}
}
