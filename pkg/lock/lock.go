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

// Package lock implements the file lock strategies of the adapter.
//
// Two strategies exist. Metadata stores a lock record in the arbitrary
// metadata of the resource and ages it out client side. Native delegates to
// the lock RPCs of the gateway, which enforce the lock themselves.
package lock

import (
	"context"
	"time"

	"github.com/cs3org/cs3api4lab/pkg/config"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/pkg/errors"
)

// AppName is the application name carried by native locks.
const AppName = "cs3api4lab"

// Strategy acquires and inspects locks on resources.
type Strategy interface {
	// Acquire locks info for the current user or refreshes the lock the
	// user already holds. It fails with errtypes.Locked when somebody else
	// holds a lock that has not expired.
	Acquire(ctx context.Context, info *provider.ResourceInfo) error
	// IsLocked reports whether a lock held by somebody else is present.
	IsLocked(ctx context.Context, info *provider.ResourceInfo) (bool, error)
	// IsValidExternalLock reports whether a lock held by somebody else is
	// present and not expired.
	IsValidExternalLock(ctx context.Context, info *provider.ResourceInfo) (bool, error)
	// Release drops the lock of the current user. Releasing an unlocked
	// resource is a no-op.
	Release(ctx context.Context, info *provider.ResourceInfo) error
	// Holder returns who holds the lock on info, or nil when unlocked.
	Holder(ctx context.Context, info *provider.ResourceInfo) (*Holder, error)
}

// Gateway is the part of the gateway client the strategies need.
type Gateway interface {
	WhoAmI(ctx context.Context) (*userpb.User, error)
	SetMetadata(ctx context.Context, ref *provider.Reference, md map[string]string) error
	UnsetMetadata(ctx context.Context, ref *provider.Reference, keys ...string) error
	GetLock(ctx context.Context, ref *provider.Reference) (*provider.Lock, error)
	SetLock(ctx context.Context, ref *provider.Reference, lock *provider.Lock) error
	RefreshLock(ctx context.Context, ref *provider.Reference, lock *provider.Lock, existingID string) error
	Unlock(ctx context.Context, ref *provider.Reference, lock *provider.Lock) error
}

// Holder describes the owner of a lock.
type Holder struct {
	Username string
	Idp      string
	OpaqueID string
	Created  time.Time
	Updated  time.Time
	Expires  time.Time
	Expired  bool
}

// Option configures a strategy.
type Option func(o *options)

type options struct {
	now func() time.Time
}

// WithClock replaces the clock used to stamp and age locks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns the strategy selected by the locks_api setting.
func New(c *config.Config, gw Gateway, opts ...Option) (Strategy, error) {
	switch c.LocksAPI {
	case "", config.LocksAPIMetadata:
		return NewMetadata(gw, c.LockTTL(), opts...), nil
	case config.LocksAPICS3:
		return NewNative(gw, c.LockTTL(), opts...), nil
	default:
		return nil, errors.Errorf("lock: unknown locks_api %q", c.LocksAPI)
	}
}

// SameIdentity compares two user ids by idp and opaque id. The username is
// not authoritative.
func SameIdentity(a, b *userpb.UserId) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Idp == b.Idp && a.OpaqueId == b.OpaqueId
}

func ref(info *provider.ResourceInfo) *provider.Reference {
	if info.GetId() != nil {
		return &provider.Reference{ResourceId: info.Id}
	}
	return &provider.Reference{Path: info.GetPath()}
}
