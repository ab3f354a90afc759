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

package workingcopy

import (
	"context"

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/lock"
	"github.com/cs3org/cs3api4lab/pkg/metrics"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/pkg/errors"
)

// OnOpenHook runs when the current user opens p. It returns the path of
// the working copy the user should edit, or "" when p needs none.
//
// Opening a working copy refreshes its record on the original. Opening a
// resource shared with the user creates the working copy on first use and
// refreshes the record afterwards.
func (m *Manager) OnOpenHook(ctx context.Context, p, endpoint string) (string, error) {
	log := appctx.GetLogger(ctx)
	info, err := m.stat(ctx, p, endpoint)
	if err != nil {
		return "", err
	}
	if info.Type != provider.ResourceType_RESOURCE_TYPE_FILE {
		return "", nil
	}
	me, err := m.gw.WhoAmI(ctx)
	if err != nil {
		return "", err
	}

	if IsCopyOf(me.Username, info.Path) {
		id := original(info)
		if id == nil {
			return "", nil
		}
		orig, err := m.gw.Stat(ctx, reference.IDRef(id))
		if err != nil {
			return "", errors.Wrap(err, "workingcopy: error reaching original")
		}
		if err := m.register(ctx, me, orig, info.Path); err != nil {
			return "", err
		}
		metrics.WorkingCopies.WithLabelValues("refreshed").Inc()
		return info.Path, nil
	}

	if lock.SameIdentity(info.GetOwner(), me.GetId()) {
		return "", nil
	}
	shared, err := m.shares.IsSharedWithMe(ctx, info)
	if err != nil || !shared {
		return "", err
	}

	cp := m.copyPath(me.Username, info)
	existing, err := m.gw.TryStat(ctx, reference.PathRef(cp))
	if err != nil {
		return "", err
	}
	if existing == nil {
		if err := m.createCopy(ctx, info, cp); err != nil {
			return "", err
		}
		metrics.WorkingCopies.WithLabelValues("created").Inc()
		log.Debug().Str("original", info.Path).Str("copy", cp).Msg("working copy created")
	} else {
		metrics.WorkingCopies.WithLabelValues("refreshed").Inc()
	}

	if err := m.register(ctx, me, info, cp); err != nil {
		return "", err
	}
	return cp, nil
}

func (m *Manager) createCopy(ctx context.Context, orig *provider.ResourceInfo, cp string) error {
	data, err := m.gw.ReadFile(ctx, reference.IDRef(orig.Id))
	if err != nil {
		return errors.Wrap(err, "workingcopy: error reading original")
	}
	ref := reference.PathRef(cp)
	if err := m.gw.WriteFile(ctx, ref, data); err != nil {
		return errors.Wrap(err, "workingcopy: error writing working copy")
	}
	return m.gw.SetMetadata(ctx, ref, map[string]string{OriginalKey: reference.Wrap(orig.Id)})
}

// register creates or refreshes the copy record of me on orig and lists
// orig in the index.
func (m *Manager) register(ctx context.Context, me *userpb.User, orig *provider.ResourceInfo, cp string) error {
	now := m.now()
	key := CopyKey(me.Username)
	rec := newCopyRecord(me, cp, now)
	if v := orig.GetArbitraryMetadata().GetMetadata()[key]; v != "" {
		if prev, err := DecodeCopyRecord(v); err == nil && !prev.Expired(now, m.ttl) {
			rec.Created = prev.Created
		}
	}
	v, err := EncodeCopyRecord(rec)
	if err != nil {
		return err
	}
	if err := m.gw.SetMetadata(ctx, reference.IDRef(orig.Id), map[string]string{key: v}); err != nil {
		return errors.Wrap(err, "workingcopy: error writing copy record")
	}
	return m.addToIndex(ctx, orig.Path)
}

// OnCloseHook runs when the current user closes p. Closing a working copy
// of the user clears its record on the original; the copy itself stays.
func (m *Manager) OnCloseHook(ctx context.Context, p, endpoint string) error {
	info, err := m.stat(ctx, p, endpoint)
	if err != nil {
		return err
	}
	me, err := m.gw.WhoAmI(ctx)
	if err != nil {
		return err
	}
	if !IsCopyOf(me.Username, info.Path) {
		return nil
	}
	id := original(info)
	if id == nil {
		return nil
	}
	if err := m.gw.SetMetadata(ctx, reference.IDRef(id), map[string]string{CopyKey(me.Username): ""}); err != nil {
		return errors.Wrap(err, "workingcopy: error clearing copy record")
	}
	metrics.WorkingCopies.WithLabelValues("cleared").Inc()
	return nil
}
