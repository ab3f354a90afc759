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
	"time"

	"github.com/cs3org/cs3api4lab/pkg/metrics"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/jellydator/ttlcache/v2"
	"google.golang.org/protobuf/proto"
)

func initCache(ttl time.Duration) *ttlcache.Cache {
	cache := ttlcache.NewCache()
	_ = cache.SetTTL(ttl)
	cache.SkipTTLExtensionOnHit(true)
	return cache
}

func cacheKey(token string, ref *provider.Reference) string {
	id := ref.GetResourceId()
	return token + "!" + id.GetStorageId() + "!" + id.GetSpaceId() + "!" + id.GetOpaqueId() + "!" + ref.GetPath()
}

func (c *Client) cachedStat(key string) *provider.ResourceInfo {
	if c.statCache == nil {
		return nil
	}
	v, err := c.statCache.Get(key)
	if err != nil {
		metrics.StatCache.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.StatCache.WithLabelValues("hit").Inc()
	return proto.Clone(v.(*provider.ResourceInfo)).(*provider.ResourceInfo)
}

func (c *Client) cacheStat(key string, info *provider.ResourceInfo) {
	if c.statCache == nil {
		return
	}
	_ = c.statCache.Set(key, proto.Clone(info))
}

// purgeStatCache drops every entry. Any mutation may change metadata that
// other cached references point to, so nothing is kept.
func (c *Client) purgeStatCache() {
	if c.statCache != nil {
		_ = c.statCache.Purge()
	}
}
