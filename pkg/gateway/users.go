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

	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
)

// GetUser returns the local user identified by id.
func (c *Client) GetUser(ctx context.Context, id *userpb.UserId) (*userpb.User, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.GetUser(ctx, &userpb.GetUserRequest{UserId: id})
	if err := checkRPC("get user", res, err); err != nil {
		return nil, err
	}
	return res.User, nil
}

// FindUser returns the local user with the given username.
func (c *Client) FindUser(ctx context.Context, username string) (*userpb.User, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.GetUserByClaim(ctx, &userpb.GetUserByClaimRequest{Claim: "username", Value: username})
	if err := checkRPC("get user by claim", res, err); err != nil {
		return nil, err
	}
	return res.User, nil
}
