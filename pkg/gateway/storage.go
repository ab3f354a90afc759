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
	"net/url"
	"strings"

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"google.golang.org/protobuf/proto"
)

// Stat returns the resource info of ref including all its arbitrary metadata.
func (c *Client) Stat(ctx context.Context, ref *provider.Reference) (*provider.ResourceInfo, error) {
	ctx, tkn, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	key := cacheKey(tkn, ref)
	if info := c.cachedStat(key); info != nil {
		return info, nil
	}

	info, err := c.stat(ctx, ref)
	if err != nil && c.devEnv && errtypes.IsNotFoundErr(err) {
		if unescaped := unescapeRef(ref); unescaped != nil {
			appctx.GetLogger(ctx).Warn().Str("opaque_id", ref.ResourceId.OpaqueId).Msg("gateway: resource not found, retrying stat with unescaped id")
			info, err = c.stat(ctx, unescaped)
		}
	}
	if err != nil {
		return nil, err
	}

	c.cacheStat(key, info)
	return info, nil
}

// TryStat is Stat with absence as a value: it returns nil, nil when ref does not exist.
func (c *Client) TryStat(ctx context.Context, ref *provider.Reference) (*provider.ResourceInfo, error) {
	info, err := c.Stat(ctx, ref)
	if err != nil {
		if errtypes.IsNotFoundErr(err) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

func (c *Client) stat(ctx context.Context, ref *provider.Reference) (*provider.ResourceInfo, error) {
	res, err := c.gw.Stat(ctx, &provider.StatRequest{
		Ref:                   ref,
		ArbitraryMetadataKeys: []string{"*"},
	})
	if err := checkRPC("stat", res, err); err != nil {
		return nil, err
	}
	return res.Info, nil
}

// unescapeRef returns a copy of an id reference with a percent-decoded
// opaque id, or nil when there is nothing to decode.
func unescapeRef(ref *provider.Reference) *provider.Reference {
	id := ref.GetResourceId()
	if id == nil || !strings.Contains(id.OpaqueId, "%") {
		return nil
	}
	oid, err := url.PathUnescape(id.OpaqueId)
	if err != nil || oid == id.OpaqueId {
		return nil
	}
	r := proto.Clone(ref).(*provider.Reference)
	r.ResourceId.OpaqueId = oid
	return r
}

// Delete removes ref.
func (c *Client) Delete(ctx context.Context, ref *provider.Reference) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.Delete(ctx, &provider.DeleteRequest{Ref: ref})
	return checkRPC("delete", res, err)
}

// Move renames src to dst.
func (c *Client) Move(ctx context.Context, src, dst *provider.Reference) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.Move(ctx, &provider.MoveRequest{Source: src, Destination: dst})
	return checkRPC("move", res, err)
}

// CreateContainer creates the directory ref.
func (c *Client) CreateContainer(ctx context.Context, ref *provider.Reference) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.CreateContainer(ctx, &provider.CreateContainerRequest{Ref: ref})
	return checkRPC("create container", res, err)
}

// ListContainer lists the direct children of ref.
func (c *Client) ListContainer(ctx context.Context, ref *provider.Reference) ([]*provider.ResourceInfo, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.ListContainer(ctx, &provider.ListContainerRequest{
		Ref:                   ref,
		ArbitraryMetadataKeys: []string{"*"},
	})
	if err := checkRPC("list container", res, err); err != nil {
		return nil, err
	}
	return res.Infos, nil
}

// SetMetadata sets the given arbitrary metadata keys on ref.
func (c *Client) SetMetadata(ctx context.Context, ref *provider.Reference, md map[string]string) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.SetArbitraryMetadata(ctx, &provider.SetArbitraryMetadataRequest{
		Ref:               ref,
		ArbitraryMetadata: &provider.ArbitraryMetadata{Metadata: md},
	})
	return checkRPC("set arbitrary metadata", res, err)
}

// UnsetMetadata removes the given arbitrary metadata keys from ref.
func (c *Client) UnsetMetadata(ctx context.Context, ref *provider.Reference, keys ...string) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.UnsetArbitraryMetadata(ctx, &provider.UnsetArbitraryMetadataRequest{
		Ref:                   ref,
		ArbitraryMetadataKeys: keys,
	})
	return checkRPC("unset arbitrary metadata", res, err)
}

// WhoAmI returns the user the current token belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*userpb.User, error) {
	if u, ok := appctx.ContextGetUser(ctx); ok {
		return u, nil
	}
	ctx, tkn, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.WhoAmI(ctx, &gateway.WhoAmIRequest{Token: tkn})
	if err := checkRPC("whoami", res, err); err != nil {
		return nil, err
	}
	return res.User, nil
}
