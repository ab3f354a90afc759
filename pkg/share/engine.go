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

package share

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	grouppb "github.com/cs3org/go-cs3apis/cs3/identity/group/v1beta1"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	collaboration "github.com/cs3org/go-cs3apis/cs3/sharing/collaboration/v1beta1"
	ocm "github.com/cs3org/go-cs3apis/cs3/sharing/ocm/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/pkg/errors"
)

// Create shares the resource at req.Path. The grantee gets a local share
// when the user directory knows it and an OCM share otherwise.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Share, error) {
	log := appctx.GetLogger(ctx)

	role, err := ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if req.GranteeType != GranteeUser && req.GranteeType != GranteeGroup {
		return nil, errtypes.BadRequest("unknown grantee type " + req.GranteeType)
	}
	perms, err := Permissions(role, req.Reshare)
	if err != nil {
		return nil, err
	}

	info, err := e.statTarget(ctx, req.Path, req.Endpoint)
	if err != nil {
		return nil, err
	}

	idp, opaqueID := req.GranteeIdp, req.GranteeOpaqueID
	if idp == "" {
		if u, d, ok := ParseAddress(opaqueID); ok {
			opaqueID, idp = u, d
		}
	}

	if req.GranteeType == GranteeGroup {
		grantee := &provider.Grantee{
			Type: provider.GranteeType_GRANTEE_TYPE_GROUP,
			Id:   &provider.Grantee_GroupId{GroupId: &grouppb.GroupId{Idp: idp, OpaqueId: opaqueID}},
		}
		return e.createLocal(ctx, info, grantee, perms)
	}

	u, err := e.users.Lookup(ctx, idp, opaqueID)
	if err != nil {
		return nil, errors.Wrap(err, "share: error looking up grantee")
	}
	if u != nil {
		grantee := &provider.Grantee{
			Type: provider.GranteeType_GRANTEE_TYPE_USER,
			Id:   &provider.Grantee_UserId{UserId: u.Id},
		}
		return e.createLocal(ctx, info, grantee, perms)
	}

	if !e.enableOCM {
		return nil, errtypes.OCMDisabled("grantee " + opaqueID + "@" + idp + " is not a local user")
	}
	log.Debug().Str("grantee", opaqueID).Str("idp", idp).Msg("grantee unknown locally, creating ocm share")
	return e.createOCM(ctx, info, idp, opaqueID, perms)
}

func (e *Engine) statTarget(ctx context.Context, p, endpoint string) (*provider.ResourceInfo, error) {
	ref, err := e.resolver.Resolve(p, endpoint)
	if err != nil {
		return nil, err
	}
	info, err := e.gw.Stat(ctx, ref)
	if err != nil {
		if errtypes.IsNotFoundErr(err) {
			return nil, errtypes.ResourceNotFound(p)
		}
		return nil, err
	}
	return info, nil
}

func (e *Engine) createLocal(ctx context.Context, info *provider.ResourceInfo, grantee *provider.Grantee, perms *provider.ResourcePermissions) (*Share, error) {
	s, err := e.gw.CreateShare(ctx, info, &collaboration.ShareGrant{
		Grantee:     grantee,
		Permissions: &collaboration.SharePermissions{Permissions: perms},
	})
	if err != nil {
		if errtypes.IsAlreadyExistsErr(err) {
			return nil, errtypes.ShareAlreadyExists(info.Path)
		}
		return nil, errors.Wrap(err, "share: error creating share")
	}
	return fromLocal(s, info.Path), nil
}

func (e *Engine) createOCM(ctx context.Context, info *provider.ResourceInfo, idp, opaqueID string, perms *provider.ResourcePermissions) (*Share, error) {
	mesh, err := e.gw.GetInfoByDomain(ctx, domainOf(idp))
	if err != nil {
		if errtypes.IsNotFoundErr(err) {
			return nil, errtypes.ProviderNotFound(idp)
		}
		return nil, errors.Wrap(err, "share: error looking up mesh provider")
	}
	grantee := &provider.Grantee{
		Type: provider.GranteeType_GRANTEE_TYPE_USER,
		Id: &provider.Grantee_UserId{UserId: &userpb.UserId{
			Idp:      idp,
			OpaqueId: opaqueID,
			Type:     userpb.UserType_USER_TYPE_FEDERATED,
		}},
	}
	s, err := e.gw.CreateOCMShare(ctx, info.Id, grantee, mesh, perms)
	if err != nil {
		if errtypes.IsAlreadyExistsErr(err) {
			return nil, errtypes.ShareAlreadyExists(info.Path)
		}
		return nil, errors.Wrap(err, "share: error creating ocm share")
	}
	return fromOCM(s, info.Path), nil
}

// domainOf strips the scheme and path of an idp given as a URL.
func domainOf(idp string) string {
	if u, err := url.Parse(idp); err == nil && u.Host != "" {
		return u.Host
	}
	return idp
}

// Update changes a field of the share id. Only the role can be changed.
func (e *Engine) Update(ctx context.Context, id, field, value string) error {
	if field != FieldRole {
		return errtypes.BadRequest("field " + field + " cannot be updated")
	}
	role, err := ParseRole(value)
	if err != nil {
		return err
	}
	perms, err := Permissions(role, false)
	if err != nil {
		return err
	}

	_, err = e.gw.UpdateSharePermissions(ctx, id, perms)
	if err == nil || !errtypes.IsNotFoundErr(err) {
		return err
	}
	if e.enableOCM {
		err = e.gw.UpdateOCMSharePermissions(ctx, id, perms)
		if err == nil || !errtypes.IsNotFoundErr(err) {
			return err
		}
	}
	return errtypes.ShareNotFound(id)
}

// Remove deletes the share id from whichever universe holds it.
func (e *Engine) Remove(ctx context.Context, id string) error {
	err := e.gw.RemoveShare(ctx, id)
	if err == nil || !errtypes.IsNotFoundErr(err) {
		return err
	}
	if e.enableOCM {
		err = e.gw.RemoveOCMShare(ctx, id)
		if err == nil || !errtypes.IsNotFoundErr(err) {
			return err
		}
	}
	return errtypes.ShareNotFound(id)
}

// UpdateReceivedState accepts or rejects the received share id and returns
// the share as the gateway reports it afterwards.
func (e *Engine) UpdateReceivedState(ctx context.Context, id, state string) (*Share, error) {
	var (
		want   collaboration.ShareState
		remote ocm.ShareState
	)
	switch state {
	case StateAccepted:
		want, remote = collaboration.ShareState_SHARE_STATE_ACCEPTED, ocm.ShareState_SHARE_STATE_ACCEPTED
	case StateRejected:
		want, remote = collaboration.ShareState_SHARE_STATE_REJECTED, ocm.ShareState_SHARE_STATE_REJECTED
	default:
		return nil, errtypes.BadRequest("cannot move a share to state " + state)
	}

	rs, err := e.gw.GetReceivedShare(ctx, id)
	switch {
	case err == nil:
		rs.State = want
		updated, err := e.gw.UpdateReceivedShare(ctx, rs, "state")
		if err != nil {
			return nil, errors.Wrap(err, "share: error updating received share")
		}
		return e.received(ctx, updated), nil
	case !errtypes.IsNotFoundErr(err):
		return nil, err
	}

	if !e.enableOCM {
		return nil, errtypes.ShareNotFound(id)
	}
	ors, err := e.gw.GetReceivedOCMShare(ctx, id)
	if err != nil {
		if errtypes.IsNotFoundErr(err) {
			return nil, errtypes.ShareNotFound(id)
		}
		return nil, err
	}
	ors.State = remote
	if err := e.gw.UpdateReceivedOCMShare(ctx, ors, "state"); err != nil {
		return nil, errors.Wrap(err, "share: error updating received ocm share")
	}
	ors, err = e.gw.GetReceivedOCMShare(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromReceivedOCM(ors), nil
}

// received converts a received local share, resolving its path when the
// resource can still be reached.
func (e *Engine) received(ctx context.Context, rs *collaboration.ReceivedShare) *Share {
	p := ""
	if info, err := e.gw.Stat(ctx, reference.IDRef(rs.GetShare().GetResourceId())); err == nil {
		p = info.Path
	}
	s := fromLocal(rs.Share, p)
	s.State = localState(rs.State)
	return s
}

// IsSharedWithMe reports whether info reached the current user through a
// local or an OCM share that was not rejected.
func (e *Engine) IsSharedWithMe(ctx context.Context, info *provider.ResourceInfo) (bool, error) {
	received, err := e.gw.ListReceivedShares(ctx)
	if err != nil {
		return false, err
	}
	for _, rs := range received {
		if !live(localState(rs.State)) {
			continue
		}
		if SameResource(rs.GetShare().GetResourceId(), info.GetId()) {
			return true, nil
		}
	}

	if !e.enableOCM {
		return false, nil
	}
	ocmReceived, err := e.gw.ListReceivedOCMShares(ctx)
	if err != nil {
		return false, err
	}
	name := path.Base(info.GetPath())
	for _, rs := range ocmReceived {
		if !live(ocmState(rs.State)) {
			continue
		}
		if rs.Name == name && sameUser(rs.Owner, info.GetOwner()) {
			return true, nil
		}
	}
	return false, nil
}

func live(state string) bool {
	return state == StatePending || state == StateAccepted
}

func sameUser(a, b *userpb.UserId) bool {
	return a != nil && b != nil && a.Idp == b.Idp && a.OpaqueId == b.OpaqueId
}

// SameResource compares two resource ids, ignoring the percent-encoding
// some storage providers apply to opaque ids.
func SameResource(a, b *provider.ResourceId) bool {
	if a == nil || b == nil {
		return false
	}
	return unescape(a.StorageId) == unescape(b.StorageId) && unescape(a.OpaqueId) == unescape(b.OpaqueId)
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func baseName(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(p)
}
