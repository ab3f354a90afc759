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

package gateway

import (
	"context"

	collaboration "github.com/cs3org/go-cs3apis/cs3/sharing/collaboration/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

func shareRef(id string) *collaboration.ShareReference {
	return &collaboration.ShareReference{
		Spec: &collaboration.ShareReference_Id{
			Id: &collaboration.ShareId{
				OpaqueId: id,
			},
		},
	}
}

// CreateShare grants grant on the resource described by info.
func (c *Client) CreateShare(ctx context.Context, info *provider.ResourceInfo, grant *collaboration.ShareGrant) (*collaboration.Share, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.CreateShare(ctx, &collaboration.CreateShareRequest{
		ResourceInfo: info,
		Grant:        grant,
	})
	if err := checkRPC("create share", res, err); err != nil {
		return nil, err
	}
	return res.Share, nil
}

// ListShares lists the shares created by the current user matching filters.
func (c *Client) ListShares(ctx context.Context, filters []*collaboration.Filter) ([]*collaboration.Share, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.ListShares(ctx, &collaboration.ListSharesRequest{Filters: filters})
	if err := checkRPC("list shares", res, err); err != nil {
		return nil, err
	}
	return res.Shares, nil
}

// ResourceFilter returns the share filter matching the resource id.
func ResourceFilter(id *provider.ResourceId) *collaboration.Filter {
	return &collaboration.Filter{
		Type: collaboration.Filter_TYPE_RESOURCE_ID,
		Term: &collaboration.Filter_ResourceId{
			ResourceId: id,
		},
	}
}

// UpdateSharePermissions overwrites the permissions of the share id.
func (c *Client) UpdateSharePermissions(ctx context.Context, id string, perms *provider.ResourcePermissions) (*collaboration.Share, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.UpdateShare(ctx, &collaboration.UpdateShareRequest{
		Ref: shareRef(id),
		Field: &collaboration.UpdateShareRequest_UpdateField{
			Field: &collaboration.UpdateShareRequest_UpdateField_Permissions{
				Permissions: &collaboration.SharePermissions{
					Permissions: perms,
				},
			},
		},
	})
	if err := checkRPC("update share", res, err); err != nil {
		return nil, err
	}
	return res.Share, nil
}

// RemoveShare deletes the share id.
func (c *Client) RemoveShare(ctx context.Context, id string) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}

	res, err := c.gw.RemoveShare(ctx, &collaboration.RemoveShareRequest{Ref: shareRef(id)})
	return checkRPC("remove share", res, err)
}

// ListReceivedShares lists the shares granted to the current user.
func (c *Client) ListReceivedShares(ctx context.Context) ([]*collaboration.ReceivedShare, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.ListReceivedShares(ctx, &collaboration.ListReceivedSharesRequest{})
	if err := checkRPC("list received shares", res, err); err != nil {
		return nil, err
	}
	return res.Shares, nil
}

// GetReceivedShare returns the received share id.
func (c *Client) GetReceivedShare(ctx context.Context, id string) (*collaboration.ReceivedShare, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.GetReceivedShare(ctx, &collaboration.GetReceivedShareRequest{Ref: shareRef(id)})
	if err := checkRPC("get received share", res, err); err != nil {
		return nil, err
	}
	return res.Share, nil
}

// UpdateReceivedShare applies the fields of rs named by paths and returns the share the gateway reports.
func (c *Client) UpdateReceivedShare(ctx context.Context, rs *collaboration.ReceivedShare, paths ...string) (*collaboration.ReceivedShare, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.UpdateReceivedShare(ctx, &collaboration.UpdateReceivedShareRequest{
		Share:      rs,
		UpdateMask: &fieldmaskpb.FieldMask{Paths: paths},
	})
	if err := checkRPC("update received share", res, err); err != nil {
		return nil, err
	}
	return res.Share, nil
}
