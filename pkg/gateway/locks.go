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

	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
)

// GetLock returns the native lock held on ref, or nil when ref is not locked.
func (c *Client) GetLock(ctx context.Context, ref *provider.Reference) (*provider.Lock, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.GetLock(ctx, &provider.GetLockRequest{Ref: ref})
	if err := checkRPC("get lock", res, err); err != nil {
		if errtypes.IsNotFoundErr(err) {
			return nil, nil
		}
		return nil, err
	}
	if res.Lock == nil || res.Lock.LockId == "" {
		return nil, nil
	}
	return res.Lock, nil
}

// SetLock places lock on ref. The gateway refuses it when another lock is held.
func (c *Client) SetLock(ctx context.Context, ref *provider.Reference, lock *provider.Lock) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.SetLock(ctx, &provider.SetLockRequest{Ref: ref, Lock: lock})
	return checkRPC("set lock", res, err)
}

// RefreshLock replaces the lock existingID on ref with lock.
func (c *Client) RefreshLock(ctx context.Context, ref *provider.Reference, lock *provider.Lock, existingID string) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.RefreshLock(ctx, &provider.RefreshLockRequest{Ref: ref, Lock: lock, ExistingLockId: existingID})
	return checkRPC("refresh lock", res, err)
}

// Unlock releases lock on ref.
func (c *Client) Unlock(ctx context.Context, ref *provider.Reference, lock *provider.Lock) error {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return err
	}
	defer c.purgeStatCache()

	res, err := c.gw.Unlock(ctx, &provider.UnlockRequest{Ref: ref, Lock: lock})
	return checkRPC("unlock", res, err)
}
