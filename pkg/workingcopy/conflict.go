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
	"path"
	"strings"

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/metrics"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	"github.com/pkg/errors"
)

const conflictTimeFormat = "20060102150405"

// ResolveFilePath returns the path a write to p should go to. It is p
// itself unless somebody else holds a valid lock on it, in which case the
// write goes to a conflict file next to p, or in the mount directory when
// the user cannot write next to p.
func (m *Manager) ResolveFilePath(ctx context.Context, p, endpoint string) (string, error) {
	ref, err := m.resolver.Resolve(p, endpoint)
	if err != nil {
		return "", err
	}
	info, err := m.gw.TryStat(ctx, ref)
	if err != nil {
		return "", err
	}
	if info == nil {
		if ref.Path == "" {
			return "", errors.Errorf("workingcopy: cannot write to missing resource %s", p)
		}
		return ref.Path, nil
	}

	locked, err := m.locks.IsValidExternalLock(ctx, info)
	if err != nil {
		return "", err
	}
	if !locked {
		return info.Path, nil
	}

	me, err := m.gw.WhoAmI(ctx)
	if err != nil {
		return "", err
	}
	dir := path.Dir(info.Path)
	if parent, err := m.gw.TryStat(ctx, reference.PathRef(dir)); err != nil || parent == nil || !parent.GetPermissionSet().GetInitiateFileUpload() {
		dir = m.mountDir
	}
	target := path.Join(dir, ConflictName(path.Base(info.Path), me.Username, m.now().Format(conflictTimeFormat)))

	metrics.ConflictRedirects.Inc()
	appctx.GetLogger(ctx).Warn().Str("path", info.Path).Str("target", target).Msg("resource locked by another user, redirecting write")
	return target, nil
}

// ConflictName returns <name>-<username>.<timestamp>-conflict.<ext> for a
// file called <name>.<ext>.
func ConflictName(base, username, timestamp string) string {
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name, ext = base, ""
	}
	return name + "-" + username + "." + timestamp + "-conflict" + ext
}
