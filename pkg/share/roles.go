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
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
)

// Role is the coarse permission level of a share.
type Role string

// Roles.
const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleViewer, RoleEditor:
		return Role(s), nil
	default:
		return "", errtypes.BadRequest("unknown role " + s)
	}
}

// Permissions returns the permission set granted by role. Reshare adds the
// grant management permissions.
func Permissions(role Role, reshare bool) (*provider.ResourcePermissions, error) {
	p := &provider.ResourcePermissions{}
	switch role {
	case RoleViewer:
	case RoleEditor:
		p.CreateContainer = true
		p.Delete = true
		p.InitiateFileUpload = true
		p.RestoreFileVersion = true
		p.Move = true
	default:
		return nil, errtypes.BadRequest("unknown role " + string(role))
	}
	p.GetPath = true
	p.InitiateFileDownload = true
	p.ListFileVersions = true
	p.ListContainer = true
	p.Stat = true
	if reshare {
		p.AddGrant = true
		p.ListGrants = true
		p.RemoveGrant = true
		p.UpdateGrant = true
	}
	return p, nil
}

// RoleFromPermissions collapses a permission set to a role: the full editor
// set maps to editor, anything else to viewer.
func RoleFromPermissions(p *provider.ResourcePermissions) Role {
	if p.GetCreateContainer() && p.GetDelete() && p.GetInitiateFileUpload() &&
		p.GetRestoreFileVersion() && p.GetMove() &&
		p.GetGetPath() && p.GetInitiateFileDownload() && p.GetListFileVersions() &&
		p.GetListContainer() && p.GetStat() {
		return RoleEditor
	}
	return RoleViewer
}
