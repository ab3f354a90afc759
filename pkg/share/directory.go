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

	"github.com/bluele/gcache"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
)

const defaultDirectorySize = 1024

// UserDirectory looks up users of the local domain.
type UserDirectory interface {
	// Lookup returns the user, or nil when the user is not known locally.
	Lookup(ctx context.Context, idp, opaqueID string) (*userpb.User, error)
}

// UserGetter resolves a user id through the gateway.
type UserGetter interface {
	GetUser(ctx context.Context, id *userpb.UserId) (*userpb.User, error)
}

// GatewayDirectory is a UserDirectory backed by the gateway user API.
// Found users are kept in an LRU cache; misses are always asked again.
type GatewayDirectory struct {
	gw    UserGetter
	cache gcache.Cache
}

// NewGatewayDirectory returns a directory caching up to size users.
func NewGatewayDirectory(gw UserGetter, size int) *GatewayDirectory {
	if size <= 0 {
		size = defaultDirectorySize
	}
	return &GatewayDirectory{
		gw:    gw,
		cache: gcache.New(size).LRU().Build(),
	}
}

// Lookup implements UserDirectory.
func (d *GatewayDirectory) Lookup(ctx context.Context, idp, opaqueID string) (*userpb.User, error) {
	key := idp + "!" + opaqueID
	if v, err := d.cache.Get(key); err == nil {
		return v.(*userpb.User), nil
	}
	u, err := d.gw.GetUser(ctx, &userpb.UserId{Idp: idp, OpaqueId: opaqueID})
	if err != nil {
		if errtypes.IsNotFoundErr(err) {
			return nil, nil
		}
		return nil, err
	}
	_ = d.cache.Set(key, u)
	return u, nil
}

// ParseAddress splits a federated address user@provider at its last @.
// ok is false when s carries no provider.
func ParseAddress(s string) (user, domain string, ok bool) {
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
