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
	"sync"

	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	"github.com/cs3org/cs3api4lab/pkg/gateway"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	collaboration "github.com/cs3org/go-cs3apis/cs3/sharing/collaboration/v1beta1"
	ocm "github.com/cs3org/go-cs3apis/cs3/sharing/ocm/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"golang.org/x/sync/errgroup"
)

// List returns the shares created by the current user, optionally limited
// to the resource at pathFilter. Local shares come first and only the first
// share of each path is kept, so a resource shared both locally and through
// OCM shows once.
func (e *Engine) List(ctx context.Context, pathFilter string) ([]*Share, error) {
	var (
		localFilters []*collaboration.Filter
		ocmFilters   []*ocm.ListOCMSharesRequest_Filter
	)
	if pathFilter != "" {
		info, err := e.statTarget(ctx, pathFilter, reference.DefaultEndpoint)
		if err != nil {
			return nil, err
		}
		localFilters = append(localFilters, gateway.ResourceFilter(info.Id))
		ocmFilters = append(ocmFilters, gateway.OCMResourceFilter(info.Id))
	}

	paths := &pathCache{gw: e.gw, paths: map[string]string{}}
	var local, remote []*Share
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		shares, err := e.gw.ListShares(gctx, localFilters)
		if err != nil {
			return err
		}
		for _, s := range shares {
			local = append(local, fromLocal(s, paths.get(gctx, s.ResourceId)))
		}
		return nil
	})
	if e.enableOCM {
		g.Go(func() error {
			shares, err := e.gw.ListOCMShares(gctx, ocmFilters)
			if err != nil {
				return err
			}
			for _, s := range shares {
				remote = append(remote, fromOCM(s, paths.get(gctx, s.ResourceId)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dedup(local, remote), nil
}

// ListReceived returns the shares received by the current user, optionally
// limited to one state.
func (e *Engine) ListReceived(ctx context.Context, stateFilter string) ([]*Share, error) {
	switch stateFilter {
	case "", StatePending, StateAccepted, StateRejected, StateInvalid:
	default:
		return nil, errtypes.BadRequest("unknown share state " + stateFilter)
	}

	var local, remote []*Share
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		received, err := e.gw.ListReceivedShares(gctx)
		if err != nil {
			return err
		}
		for _, rs := range received {
			local = append(local, e.received(gctx, rs))
		}
		return nil
	})
	if e.enableOCM {
		g.Go(func() error {
			received, err := e.gw.ListReceivedOCMShares(gctx)
			if err != nil {
				return err
			}
			for _, rs := range received {
				remote = append(remote, fromReceivedOCM(rs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*Share
	for _, s := range dedup(local, remote) {
		if stateFilter == "" || s.State == stateFilter {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListGranteesForResource returns who the resource at p is shared with.
func (e *Engine) ListGranteesForResource(ctx context.Context, p string) ([]*GranteeInfo, error) {
	info, err := e.statTarget(ctx, p, reference.DefaultEndpoint)
	if err != nil {
		return nil, err
	}

	var local, remote []*GranteeInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		shares, err := e.gw.ListShares(gctx, []*collaboration.Filter{gateway.ResourceFilter(info.Id)})
		if err != nil {
			return err
		}
		for _, s := range shares {
			gi := &GranteeInfo{
				ShareID: s.GetId().GetOpaqueId(),
				Kind:    KindLocal,
				Grantee: granteeOf(s.Grantee),
				Role:    RoleFromPermissions(s.GetPermissions().GetPermissions()),
			}
			if gi.Grantee.Type == GranteeUser {
				if u, err := e.users.Lookup(gctx, gi.Grantee.Idp, gi.Grantee.OpaqueID); err == nil && u != nil {
					gi.DisplayName = u.DisplayName
				}
			}
			local = append(local, gi)
		}
		return nil
	})
	if e.enableOCM {
		g.Go(func() error {
			shares, err := e.gw.ListOCMShares(gctx, []*ocm.ListOCMSharesRequest_Filter{gateway.OCMResourceFilter(info.Id)})
			if err != nil {
				return err
			}
			for _, s := range shares {
				o := fromOCM(s, info.Path)
				remote = append(remote, &GranteeInfo{ShareID: o.ID, Kind: KindOCM, Grantee: o.Grantee, Role: o.Role})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(local, remote...), nil
}

// dedup merges the share lists keeping the first share of every path.
// Shares without a path are always kept.
func dedup(lists ...[]*Share) []*Share {
	seen := map[string]bool{}
	var out []*Share
	for _, l := range lists {
		for _, s := range l {
			if s.Path != "" {
				if seen[s.Path] {
					continue
				}
				seen[s.Path] = true
			}
			out = append(out, s)
		}
	}
	return out
}

// pathCache resolves resource ids to paths once per listing.
type pathCache struct {
	gw    Gateway
	mu    sync.Mutex
	paths map[string]string
}

func (c *pathCache) get(ctx context.Context, id *provider.ResourceId) string {
	if id == nil {
		return ""
	}
	key := reference.Wrap(id)
	c.mu.Lock()
	p, ok := c.paths[key]
	c.mu.Unlock()
	if ok {
		return p
	}
	if info, err := c.gw.Stat(ctx, reference.IDRef(id)); err == nil {
		p = info.Path
	}
	c.mu.Lock()
	c.paths[key] = p
	c.mu.Unlock()
	return p
}
