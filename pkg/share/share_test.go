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
	"strings"
	"testing"

	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	"github.com/cs3org/cs3api4lab/pkg/gateway"
	"github.com/cs3org/cs3api4lab/pkg/gateway/gatewaytest"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteDomain = "cesnet.cz"

type fixture struct {
	g *gatewaytest.Gateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := gatewaytest.New()
	t.Cleanup(g.Close)
	g.AddUser("einstein", "relativity")
	g.AddUser("marie", "radioactivity")
	g.AddRemoteUser("richard", remoteDomain, "superfluidity")
	g.AddProvider(remoteDomain)
	g.Put("/home/einstein/doc.txt", "einstein", []byte("doc"))
	g.Put("/home/einstein/other.txt", "einstein", []byte("other"))
	return &fixture{g: g}
}

func (f *fixture) engine(t *testing.T, username, secret string, enableOCM bool) *Engine {
	t.Helper()
	c := gateway.New(f.g, auth.NewBasic(f.g, "basic", username, secret), gateway.Options{})
	r := reference.NewResolver("/home/"+username, []string{"/home", "/reva"})
	return NewEngine(c, r, NewGatewayDirectory(c, 0), enableOCM)
}

func (f *fixture) einstein(t *testing.T) *Engine {
	return f.engine(t, "einstein", "relativity", true)
}

func (f *fixture) marie(t *testing.T) *Engine {
	return f.engine(t, "marie", "radioactivity", true)
}

func (f *fixture) richard(t *testing.T) *Engine {
	return f.engine(t, "richard", "superfluidity", true)
}

func toMarie(p, role string) CreateRequest {
	return CreateRequest{Path: p, GranteeOpaqueID: "marie-id", GranteeIdp: gatewaytest.LocalIdp, Role: role, GranteeType: GranteeUser}
}

func toRichard(p, role string) CreateRequest {
	return CreateRequest{Path: p, GranteeOpaqueID: "richard-id", GranteeIdp: remoteDomain, Role: role, GranteeType: GranteeUser}
}

func TestCreateLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.einstein(t)

	s, err := e.Create(ctx, toMarie("/doc.txt", "editor"))
	require.NoError(t, err)
	assert.Equal(t, KindLocal, s.Kind)
	assert.Equal(t, "/home/einstein/doc.txt", s.Path)
	assert.Equal(t, RoleEditor, s.Role)
	assert.Equal(t, Grantee{Type: GranteeUser, Idp: gatewaytest.LocalIdp, OpaqueID: "marie-id"}, s.Grantee)
	assert.True(t, strings.HasPrefix(s.ID, "share-"))

	_, err = e.Create(ctx, toMarie("/home/einstein/doc.txt", "viewer"))
	require.Error(t, err)
	assert.True(t, errtypes.IsAlreadyExistsErr(err))
	assert.IsType(t, errtypes.ShareAlreadyExists(""), err)
}

func TestCreateGroupShare(t *testing.T) {
	f := newFixture(t)
	s, err := f.einstein(t).Create(context.Background(), CreateRequest{
		Path: "/doc.txt", GranteeOpaqueID: "physicists", GranteeIdp: gatewaytest.LocalIdp, Role: "viewer", GranteeType: GranteeGroup,
	})
	require.NoError(t, err)
	assert.Equal(t, KindLocal, s.Kind)
	assert.Equal(t, GranteeGroup, s.Grantee.Type)
	assert.Equal(t, RoleViewer, s.Role)
}

func TestCreateRoutesUnknownGranteesToOCM(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.einstein(t).Create(ctx, toRichard("/doc.txt", "viewer"))
	require.NoError(t, err)
	assert.Equal(t, KindOCM, s.Kind)
	assert.True(t, strings.HasPrefix(s.ID, "ocm-share-"))
	assert.Equal(t, "/home/einstein/doc.txt", s.Path)

	before := f.g.Calls("GetInfoByDomain")
	disabled := f.engine(t, "einstein", "relativity", false)
	_, err = disabled.Create(ctx, toRichard("/other.txt", "viewer"))
	require.Error(t, err)
	assert.True(t, errtypes.IsFeatureDisabledErr(err))
	assert.IsType(t, errtypes.OCMDisabled(""), err)
	assert.Equal(t, before, f.g.Calls("GetInfoByDomain"))
}

func TestCreateWithFederatedAddress(t *testing.T) {
	f := newFixture(t)
	s, err := f.einstein(t).Create(context.Background(), CreateRequest{
		Path: "/doc.txt", GranteeOpaqueID: "richard-id@" + remoteDomain, Role: "editor", GranteeType: GranteeUser,
	})
	require.NoError(t, err)
	assert.Equal(t, KindOCM, s.Kind)
	assert.Equal(t, "richard-id", s.Grantee.OpaqueID)
	assert.Equal(t, remoteDomain, s.Grantee.Idp)
	assert.Equal(t, RoleEditor, s.Role)
}

func TestCreateErrors(t *testing.T) {
	f := newFixture(t)
	e := f.einstein(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   CreateRequest
		check func(error) bool
	}{
		{"unknown role", toMarie("/doc.txt", "owner"), errtypes.IsBadRequestErr},
		{"unknown grantee type", CreateRequest{Path: "/doc.txt", GranteeOpaqueID: "marie-id", Role: "viewer", GranteeType: "robot"}, errtypes.IsBadRequestErr},
		{"missing resource", toMarie("/missing.txt", "viewer"), func(err error) bool {
			_, ok := err.(errtypes.ResourceNotFound)
			return ok
		}},
		{"unknown provider", CreateRequest{Path: "/doc.txt", GranteeOpaqueID: "bob", GranteeIdp: "unknown.org", Role: "viewer", GranteeType: GranteeUser}, func(err error) bool {
			_, ok := err.(errtypes.ProviderNotFound)
			return ok
		}},
		{"id without endpoint", CreateRequest{Path: "oid:1", Endpoint: reference.DefaultEndpoint, GranteeOpaqueID: "marie-id", GranteeIdp: gatewaytest.LocalIdp, Role: "viewer", GranteeType: GranteeUser}, errtypes.IsBadRequestErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Create(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestListDeduplicatesByPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.einstein(t)

	_, err := e.Create(ctx, toMarie("/doc.txt", "editor"))
	require.NoError(t, err)
	_, err = e.Create(ctx, toRichard("/doc.txt", "viewer"))
	require.NoError(t, err)
	_, err = e.Create(ctx, toRichard("/other.txt", "viewer"))
	require.NoError(t, err)

	shares, err := e.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, "/home/einstein/doc.txt", shares[0].Path)
	assert.Equal(t, KindLocal, shares[0].Kind)
	assert.Equal(t, "/home/einstein/other.txt", shares[1].Path)
	assert.Equal(t, KindOCM, shares[1].Kind)

	shares, err = e.List(ctx, "/other.txt")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, KindOCM, shares[0].Kind)

	local, err := f.engine(t, "einstein", "relativity", false).List(ctx, "")
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, KindLocal, local[0].Kind)
}

func TestReceivedStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.einstein(t).Create(ctx, toMarie("/doc.txt", "viewer"))
	require.NoError(t, err)
	marie := f.marie(t)

	received, err := marie.ListReceived(ctx, "")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, StatePending, received[0].State)
	assert.Equal(t, "/home/einstein/doc.txt", received[0].Path)

	got, err := marie.UpdateReceivedState(ctx, s.ID, StateAccepted)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, got.State)

	pending, err := marie.ListReceived(ctx, StatePending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = marie.UpdateReceivedState(ctx, s.ID, StateInvalid)
	assert.True(t, errtypes.IsBadRequestErr(err))
	_, err = marie.ListReceived(ctx, "gone")
	assert.True(t, errtypes.IsBadRequestErr(err))

	f.g.InvalidateShare(s.ID)
	got, err = marie.UpdateReceivedState(ctx, s.ID, StateAccepted)
	require.NoError(t, err)
	assert.Equal(t, StateInvalid, got.State, "the gateway decides the resulting state")

	_, err = marie.UpdateReceivedState(ctx, "share-404", StateAccepted)
	assert.IsType(t, errtypes.ShareNotFound(""), err)
}

func TestReceivedOCMShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.einstein(t).Create(ctx, toRichard("/doc.txt", "editor"))
	require.NoError(t, err)
	richard := f.richard(t)

	received, err := richard.ListReceived(ctx, "")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, KindOCM, received[0].Kind)
	assert.Equal(t, "doc.txt", received[0].Path)
	assert.Equal(t, RoleEditor, received[0].Role)
	assert.Equal(t, StatePending, received[0].State)

	got, err := richard.UpdateReceivedState(ctx, s.ID, StateRejected)
	require.NoError(t, err)
	assert.Equal(t, KindOCM, got.Kind)
	assert.Equal(t, StateRejected, got.State)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.einstein(t)
	local, err := e.Create(ctx, toMarie("/doc.txt", "editor"))
	require.NoError(t, err)
	remote, err := e.Create(ctx, toRichard("/doc.txt", "editor"))
	require.NoError(t, err)

	require.NoError(t, e.Update(ctx, local.ID, FieldRole, "viewer"))
	require.NoError(t, e.Update(ctx, remote.ID, FieldRole, "viewer"))

	grantees, err := e.ListGranteesForResource(ctx, "/doc.txt")
	require.NoError(t, err)
	require.Len(t, grantees, 2)
	for _, g := range grantees {
		assert.Equal(t, RoleViewer, g.Role, g.ShareID)
	}

	assert.True(t, errtypes.IsBadRequestErr(e.Update(ctx, local.ID, "display_name", "x")))
	assert.True(t, errtypes.IsBadRequestErr(e.Update(ctx, local.ID, FieldRole, "owner")))
	assert.IsType(t, errtypes.ShareNotFound(""), e.Update(ctx, "share-404", FieldRole, "viewer"))
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.einstein(t)
	local, err := e.Create(ctx, toMarie("/doc.txt", "editor"))
	require.NoError(t, err)
	remote, err := e.Create(ctx, toRichard("/other.txt", "editor"))
	require.NoError(t, err)

	require.NoError(t, e.Remove(ctx, local.ID))
	require.NoError(t, e.Remove(ctx, remote.ID))

	shares, err := e.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, shares)

	err = e.Remove(ctx, local.ID)
	assert.IsType(t, errtypes.ShareNotFound(""), err)
}

func TestListGrantees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.einstein(t)
	_, err := e.Create(ctx, toMarie("/doc.txt", "editor"))
	require.NoError(t, err)
	_, err = e.Create(ctx, toRichard("/doc.txt", "viewer"))
	require.NoError(t, err)

	grantees, err := e.ListGranteesForResource(ctx, "/doc.txt")
	require.NoError(t, err)
	require.Len(t, grantees, 2)
	assert.Equal(t, KindLocal, grantees[0].Kind)
	assert.Equal(t, "Marie", grantees[0].DisplayName)
	assert.Equal(t, RoleEditor, grantees[0].Role)
	assert.Equal(t, KindOCM, grantees[1].Kind)
	assert.Equal(t, "richard-id", grantees[1].Grantee.OpaqueID)
	assert.Equal(t, RoleViewer, grantees[1].Role)

	_, err = e.ListGranteesForResource(ctx, "/missing.txt")
	assert.IsType(t, errtypes.ResourceNotFound(""), err)
}

func TestIsSharedWithMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.einstein(t)
	local, err := e.Create(ctx, toMarie("/doc.txt", "editor"))
	require.NoError(t, err)
	_, err = e.Create(ctx, toRichard("/doc.txt", "editor"))
	require.NoError(t, err)

	info := f.g.Put("/home/einstein/doc.txt", "einstein", []byte("doc"))

	shared, err := e.IsSharedWithMe(ctx, info)
	require.NoError(t, err)
	assert.False(t, shared)

	marie := f.marie(t)
	shared, err = marie.IsSharedWithMe(ctx, info)
	require.NoError(t, err)
	assert.True(t, shared)

	shared, err = f.richard(t).IsSharedWithMe(ctx, info)
	require.NoError(t, err)
	assert.True(t, shared)

	_, err = marie.UpdateReceivedState(ctx, local.ID, StateRejected)
	require.NoError(t, err)
	shared, err = marie.IsSharedWithMe(ctx, info)
	require.NoError(t, err)
	assert.False(t, shared)
}

func TestSameResourceIgnoresEscaping(t *testing.T) {
	a := &provider.ResourceId{StorageId: "home-storage", OpaqueId: "oid:42"}
	b := &provider.ResourceId{StorageId: "home-storage", OpaqueId: "oid%3A42"}
	assert.True(t, SameResource(a, b))
	assert.False(t, SameResource(a, &provider.ResourceId{StorageId: "home-storage", OpaqueId: "oid:43"}))
	assert.False(t, SameResource(a, nil))
}

func TestRoles(t *testing.T) {
	viewer, err := Permissions(RoleViewer, false)
	require.NoError(t, err)
	assert.True(t, viewer.Stat)
	assert.False(t, viewer.InitiateFileUpload)
	assert.False(t, viewer.AddGrant)
	assert.Equal(t, RoleViewer, RoleFromPermissions(viewer))

	editor, err := Permissions(RoleEditor, true)
	require.NoError(t, err)
	assert.True(t, editor.Move)
	assert.True(t, editor.AddGrant)
	assert.Equal(t, RoleEditor, RoleFromPermissions(editor))

	editor.Move = false
	assert.Equal(t, RoleViewer, RoleFromPermissions(editor), "a partial editor set collapses to viewer")
	assert.Equal(t, RoleViewer, RoleFromPermissions(nil))

	_, err = Permissions("owner", false)
	assert.True(t, errtypes.IsBadRequestErr(err))
}

func TestParseAddress(t *testing.T) {
	u, d, ok := ParseAddress("marie@cern.ch")
	assert.True(t, ok)
	assert.Equal(t, "marie", u)
	assert.Equal(t, "cern.ch", d)

	u, d, ok = ParseAddress("marie@example.org@cern.ch")
	assert.True(t, ok)
	assert.Equal(t, "marie@example.org", u)
	assert.Equal(t, "cern.ch", d)

	for _, s := range []string{"marie", "@cern.ch", "marie@"} {
		_, _, ok = ParseAddress(s)
		assert.False(t, ok, s)
	}
}

func TestGatewayDirectoryCachesHits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := gateway.New(f.g, auth.NewBasic(f.g, "basic", "einstein", "relativity"), gateway.Options{})
	d := NewGatewayDirectory(c, 8)

	for i := 0; i < 2; i++ {
		u, err := d.Lookup(ctx, gatewaytest.LocalIdp, "marie-id")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "marie", u.Username)
	}
	assert.Equal(t, 1, f.g.Calls("GetUser"))

	for i := 0; i < 2; i++ {
		u, err := d.Lookup(ctx, remoteDomain, "richard-id")
		require.NoError(t, err)
		assert.Nil(t, u)
	}
	assert.Equal(t, 3, f.g.Calls("GetUser"))
}
