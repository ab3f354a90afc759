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
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	"github.com/cs3org/cs3api4lab/pkg/metrics"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
)

// GetMerger returns the holder of the oldest valid copy record on the
// resource at p, or nil when no record is valid. A working copy is followed
// to its original.
func (m *Manager) GetMerger(ctx context.Context, p, endpoint string) (*CopyRecord, error) {
	info, err := m.stat(ctx, p, endpoint)
	if err != nil {
		return nil, err
	}
	if id := original(info); id != nil {
		if info, err = m.gw.Stat(ctx, reference.IDRef(id)); err != nil {
			return nil, err
		}
	}

	now := m.now()
	records, _ := copyRecords(info)
	var merger *CopyRecord
	for _, r := range records {
		if r.Expired(now, m.ttl) {
			continue
		}
		if merger == nil || r.Created.Before(merger.Created) ||
			(r.Created.Equal(merger.Created) && r.Username < merger.Username) {
			merger = r
		}
	}
	return merger, nil
}

// CheckLocks sweeps the originals listed in the index. Expired or garbled
// copy records are cleared, and originals that vanished or hold no live
// record any more are dropped from the index. The sweep goes on past
// failing originals and reports all failures at the end.
func (m *Manager) CheckLocks(ctx context.Context) error {
	log := appctx.GetLogger(ctx)
	paths, err := m.readIndex(ctx)
	if err != nil || len(paths) == 0 {
		return err
	}

	var (
		keep []string
		errs []error
	)
	now := m.now()
	for _, p := range paths {
		info, err := m.gw.TryStat(ctx, reference.PathRef(p))
		if err != nil {
			errs = append(errs, err)
			keep = append(keep, p)
			continue
		}
		if info == nil {
			log.Debug().Str("path", p).Msg("dropping vanished original from index")
			continue
		}

		records, bad := copyRecords(info)
		stale := map[string]string{}
		for _, k := range bad {
			stale[k] = ""
		}
		live := 0
		for k, r := range records {
			if r.Expired(now, m.ttl) {
				stale[k] = ""
				continue
			}
			live++
		}
		if len(stale) > 0 {
			if err := m.gw.SetMetadata(ctx, reference.IDRef(info.Id), stale); err != nil {
				errs = append(errs, err)
				keep = append(keep, p)
				continue
			}
			metrics.WorkingCopies.WithLabelValues("expired").Add(float64(len(stale)))
			log.Warn().Str("path", p).Int("records", len(stale)).Msg("cleared expired copy records")
		}
		if live > 0 {
			keep = append(keep, p)
		}
	}

	if len(keep) != len(paths) {
		if err := m.writeIndex(ctx, keep); err != nil {
			errs = append(errs, err)
		}
	}
	return errtypes.Join(errs...)
}

// Records returns the valid copy records on info by holder.
func (m *Manager) Records(info *provider.ResourceInfo) map[string]*CopyRecord {
	now := m.now()
	records, _ := copyRecords(info)
	out := map[string]*CopyRecord{}
	for _, r := range records {
		if !r.Expired(now, m.ttl) {
			out[r.Username] = r
		}
	}
	return out
}
