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

package lock

import (
	"context"
	"time"

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	"github.com/cs3org/cs3api4lab/pkg/metrics"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	types "github.com/cs3org/go-cs3apis/cs3/types/v1beta1"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Native uses the lock RPCs of the gateway. Locks carry an explicit
// expiration instead of a timestamp the client has to age.
type Native struct {
	gw  Gateway
	ttl time.Duration
	now func() time.Time
}

// NewNative returns a native strategy placing locks valid for ttl.
func NewNative(gw Gateway, ttl time.Duration, opts ...Option) *Native {
	o := newOptions(opts)
	return &Native{gw: gw, ttl: ttl, now: o.now}
}

func (n *Native) expired(l *provider.Lock) bool {
	if l.GetExpiration() == nil {
		return false
	}
	return n.now().After(time.Unix(int64(l.Expiration.Seconds), int64(l.Expiration.Nanos)))
}

// Acquire implements Strategy.
func (n *Native) Acquire(ctx context.Context, info *provider.ResourceInfo) error {
	log := appctx.GetLogger(ctx)
	u, err := n.gw.WhoAmI(ctx)
	if err != nil {
		return err
	}
	r := ref(info)
	current, err := n.gw.GetLock(ctx, r)
	if err != nil {
		return err
	}

	exp := n.now().Add(n.ttl)
	l := &provider.Lock{
		LockId:     uuid.New().String(),
		Type:       provider.LockType_LOCK_TYPE_WRITE,
		AppName:    AppName,
		User:       u.Id,
		Expiration: &types.Timestamp{Seconds: uint64(exp.Unix()), Nanos: uint32(exp.Nanosecond())},
	}

	switch {
	case current == nil || n.expired(current):
		err = n.gw.SetLock(ctx, r, l)
	case SameIdentity(current.User, u.Id):
		l.LockId = current.LockId
		err = n.gw.RefreshLock(ctx, r, l, current.LockId)
	default:
		metrics.LockConflicts.WithLabelValues("native").Inc()
		return errtypes.Locked(current.GetUser().GetOpaqueId())
	}
	if err != nil {
		return errors.Wrap(err, "lock: error placing native lock")
	}
	log.Debug().Str("path", info.GetPath()).Str("lock_id", l.LockId).Msg("native lock acquired")
	return nil
}

func (n *Native) foreign(ctx context.Context, info *provider.ResourceInfo) (*provider.Lock, error) {
	u, err := n.gw.WhoAmI(ctx)
	if err != nil {
		return nil, err
	}
	current, err := n.gw.GetLock(ctx, ref(info))
	if err != nil {
		return nil, err
	}
	if current == nil || SameIdentity(current.User, u.Id) {
		return nil, nil
	}
	return current, nil
}

// IsLocked implements Strategy.
func (n *Native) IsLocked(ctx context.Context, info *provider.ResourceInfo) (bool, error) {
	l, err := n.foreign(ctx, info)
	return l != nil, err
}

// IsValidExternalLock implements Strategy.
func (n *Native) IsValidExternalLock(ctx context.Context, info *provider.ResourceInfo) (bool, error) {
	l, err := n.foreign(ctx, info)
	if err != nil {
		return false, err
	}
	return l != nil && !n.expired(l), nil
}

// Release implements Strategy.
func (n *Native) Release(ctx context.Context, info *provider.ResourceInfo) error {
	u, err := n.gw.WhoAmI(ctx)
	if err != nil {
		return err
	}
	r := ref(info)
	current, err := n.gw.GetLock(ctx, r)
	if err != nil || current == nil {
		return err
	}
	if !SameIdentity(current.User, u.Id) {
		return errtypes.Locked(current.GetUser().GetOpaqueId())
	}
	return n.gw.Unlock(ctx, r, current)
}

// Holder implements Strategy. Native locks only carry the user id, so the
// username is left empty.
func (n *Native) Holder(ctx context.Context, info *provider.ResourceInfo) (*Holder, error) {
	current, err := n.gw.GetLock(ctx, ref(info))
	if err != nil || current == nil {
		return nil, err
	}
	h := &Holder{
		Idp:      current.GetUser().GetIdp(),
		OpaqueID: current.GetUser().GetOpaqueId(),
		Expired:  n.expired(current),
	}
	if e := current.GetExpiration(); e != nil {
		h.Expires = time.Unix(int64(e.Seconds), int64(e.Nanos))
	}
	return h, nil
}
