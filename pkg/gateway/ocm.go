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

	ocmprovider "github.com/cs3org/go-cs3apis/cs3/ocm/provider/v1beta1"
	ocm "github.com/cs3org/go-cs3apis/cs3/sharing/ocm/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

func ocmShareRef(id string) *ocm.ShareReference {
	return &ocm.ShareReference{
		Spec: &ocm.ShareReference_Id{
			Id: &ocm.ShareId{
				OpaqueId: id,
			},
		},
	}
}

// NewWebDavAccessMethod returns the webdav access method granting perms.
func NewWebDavAccessMethod(perms *provider.ResourcePermissions) *ocm.AccessMethod {
	return &ocm.AccessMethod{
		Term: &ocm.AccessMethod_WebdavOptions{
			WebdavOptions: &ocm.WebDAVAccessMethod{
				Permissions:  perms,
				Requirements: []string{},
			},
		},
	}
}

// GetInfoByDomain looks up the mesh provider serving domain.
func (c *Client) GetInfoByDomain(ctx context.Context, domain string) (*ocmprovider.ProviderInfo, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.GetInfoByDomain(ctx, &ocmprovider.GetInfoByDomainRequest{Domain: domain})
	if err := checkRPC("get info by domain", res, err); err != nil {
		return nil, err
	}
	return res.ProviderInfo, nil
}

// CreateOCMShare shares the resource id with a federated grantee.
func (c *Client) CreateOCMShare(ctx context.Context, id *provider.ResourceId, grantee *provider.Grantee, mesh *ocmprovider.ProviderInfo, perms *provider.ResourcePermissions) (*ocm.Share, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.CreateOCMShare(ctx, &ocm.CreateOCMShareRequest{
		ResourceId:            id,
		Grantee:               grantee,
		RecipientMeshProvider: mesh,
		AccessMethods:         []*ocm.AccessMethod{NewWebDavAccessMethod(perms)},
	})
	if err := checkRPC("create ocm share", res, err); err != nil {
		return nil, err
	}
	return res.Share, nil
}

// ListOCMShares lists the federated shares created by the current user matching filters.
func (c *Client) ListOCMShares(ctx context.Context, filters []*ocm.ListOCMSharesRequest_Filter) ([]*ocm.Share, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.ListOCMShares(ctx, &ocm.ListOCMSharesRequest{Filters: filters})
	if err := checkRPC("list ocm shares", res, err); err != nil {
		return nil, err
	}
	return res.Shares, nil
}

// OCMResourceFilter returns the federated share filter matching the resource id.
func OCMResourceFilter(id *provider.ResourceId) *ocm.ListOCMSharesRequest_Filter {
	return &ocm.ListOCMSharesRequest_Filter{
		Type: ocm.ListOCMSharesRequest_Filter_TYPE_RESOURCE_ID,
		Term: &ocm.ListOCMSharesRequest_Filter_ResourceId{
			ResourceId: id,
		},
	}
}

// UpdateOCMSharePermissions replaces the webdav permissions of the federated share id.
func (c *Client) UpdateOCMSharePermissions(ctx context.Context, id string, perms *provider.ResourcePermissions) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}

	res, err := c.gw.UpdateOCMShare(ctx, &ocm.UpdateOCMShareRequest{
		Ref: ocmShareRef(id),
		Field: []*ocm.UpdateOCMShareRequest_UpdateField{
			{
				Field: &ocm.UpdateOCMShareRequest_UpdateField_AccessMethods{
					AccessMethods: NewWebDavAccessMethod(perms),
				},
			},
		},
	})
	return checkRPC("update ocm share", res, err)
}

// RemoveOCMShare deletes the federated share id.
func (c *Client) RemoveOCMShare(ctx context.Context, id string) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}

	res, err := c.gw.RemoveOCMShare(ctx, &ocm.RemoveOCMShareRequest{Ref: ocmShareRef(id)})
	return checkRPC("remove ocm share", res, err)
}

// ListReceivedOCMShares lists the federated shares granted to the current user.
func (c *Client) ListReceivedOCMShares(ctx context.Context) ([]*ocm.ReceivedShare, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.ListReceivedOCMShares(ctx, &ocm.ListReceivedOCMSharesRequest{})
	if err := checkRPC("list received ocm shares", res, err); err != nil {
		return nil, err
	}
	return res.Shares, nil
}

// GetReceivedOCMShare returns the received federated share id.
func (c *Client) GetReceivedOCMShare(ctx context.Context, id string) (*ocm.ReceivedShare, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.GetReceivedOCMShare(ctx, &ocm.GetReceivedOCMShareRequest{Ref: ocmShareRef(id)})
	if err := checkRPC("get received ocm share", res, err); err != nil {
		return nil, err
	}
	return res.Share, nil
}

// UpdateReceivedOCMShare applies the fields of rs named by paths.
func (c *Client) UpdateReceivedOCMShare(ctx context.Context, rs *ocm.ReceivedShare, paths ...string) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}

	res, err := c.gw.UpdateReceivedOCMShare(ctx, &ocm.UpdateReceivedOCMShareRequest{
		Share:      rs,
		UpdateMask: &fieldmaskpb.FieldMask{Paths: paths},
	})
	return checkRPC("update received ocm share", res, err)
}
