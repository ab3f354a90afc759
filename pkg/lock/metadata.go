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
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/pkg/errors"
)

// MetadataKey is the arbitrary metadata key holding the lock record.
const MetadataKey = "cs3api4lab_locks"

// Metadata keeps the lock as a record in the arbitrary metadata of the
// resource.
//
// Acquire reads the record from the given info and then writes its own, so
// two users acquiring at the same instant may both succeed and the last
// write wins. The gateway offers nothing stronger on this channel; use the
// native strategy when exact mutual exclusion matters.
type Metadata struct {
	gw  Gateway
	ttl time.Duration
	now func() time.Time
}

// NewMetadata returns a metadata strategy whose locks expire after ttl
// without a refresh.
func NewMetadata(gw Gateway, ttl time.Duration, opts ...Option) *Metadata {
	o := newOptions(opts)
	return &Metadata{gw: gw, ttl: ttl, now: o.now}
}

// record returns the lock record stored in info, or nil. An undecodable
// record counts as no lock so that the next Acquire overwrites it.
func (m *Metadata) record(ctx context.Context, info *provider.ResourceInfo) *Record {
	v, ok := info.GetArbitraryMetadata().GetMetadata()[MetadataKey]
	if !ok || v == "" {
		return nil
	}
	r, err := DecodeRecord(v)
	if err != nil {
		appctx.GetLogger(ctx).Warn().Err(err).Str("path", info.GetPath()).Msg("ignoring undecodable lock record")
		return nil
	}
	return r
}

// foreign returns the record held by somebody else than the current user.
func (m *Metadata) foreign(ctx context.Context, info *provider.ResourceInfo) (*Record, *userpb.User, error) {
	r := m.record(ctx, info)
	u, err := m.gw.WhoAmI(ctx)
	if err != nil {
		return nil, nil, err
	}
	if r == nil || SameIdentity(r.UserID(), u.Id) {
		return nil, u, nil
	}
	return r, u, nil
}

// Acquire implements Strategy.
func (m *Metadata) Acquire(ctx context.Context, info *provider.ResourceInfo) error {
	log := appctx.GetLogger(ctx)
	other, u, err := m.foreign(ctx, info)
	if err != nil {
		return err
	}
	now := m.now()
	if other != nil && !other.Expired(now, m.ttl) {
		metrics.LockConflicts.WithLabelValues("metadata").Inc()
		return errtypes.Locked(other.Username)
	}

	rec := NewRecord(u, now)
	if prev := m.record(ctx, info); prev != nil && other == nil {
		rec.Created = prev.Created
	}
	v, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := m.gw.SetMetadata(ctx, ref(info), map[string]string{MetadataKey: v}); err != nil {
		return errors.Wrap(err, "lock: error writing lock record")
	}
	log.Debug().Str("path", info.GetPath()).Str("holder", u.Username).Msg("metadata lock acquired")
	return nil
}

// IsLocked implements Strategy.
func (m *Metadata) IsLocked(ctx context.Context, info *provider.ResourceInfo) (bool, error) {
	other, _, err := m.foreign(ctx, info)
	if err != nil {
		return false, err
	}
	return other != nil, nil
}

// IsValidExternalLock implements Strategy.
func (m *Metadata) IsValidExternalLock(ctx context.Context, info *provider.ResourceInfo) (bool, error) {
	other, _, err := m.foreign(ctx, info)
	if err != nil {
		return false, err
	}
	return other != nil && !other.Expired(m.now(), m.ttl), nil
}

// Release implements Strategy. Records of other users are left alone unless
// they expired.
func (m *Metadata) Release(ctx context.Context, info *provider.ResourceInfo) error {
	if v := info.GetArbitraryMetadata().GetMetadata()[MetadataKey]; v == "" {
		return nil
	}
	other, _, err := m.foreign(ctx, info)
	if err != nil {
		return err
	}
	if other != nil && !other.Expired(m.now(), m.ttl) {
		return errtypes.Locked(other.Username)
	}
	return m.gw.UnsetMetadata(ctx, ref(info), MetadataKey)
}

// Holder implements Strategy.
func (m *Metadata) Holder(ctx context.Context, info *provider.ResourceInfo) (*Holder, error) {
	r := m.record(ctx, info)
	if r == nil {
		return nil, nil
	}
	return &Holder{
		Username: r.Username,
		Idp:      r.Idp,
		OpaqueID: r.OpaqueID,
		Created:  r.Created,
		Updated:  r.Updated,
		Expires:  r.Updated.Add(m.ttl),
		Expired:  r.Expired(m.now(), m.ttl),
	}, nil
}
