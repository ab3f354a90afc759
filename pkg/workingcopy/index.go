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
	"encoding/json"

	"github.com/pkg/errors"
)

// readIndex returns the original paths listed in the index file.
func (m *Manager) readIndex(ctx context.Context) ([]string, error) {
	info, err := m.gw.TryStat(ctx, m.indexRef())
	if err != nil || info == nil {
		return nil, err
	}
	data, err := m.gw.ReadFile(ctx, m.indexRef())
	if err != nil {
		return nil, err
	}
	var paths []string
	if len(data) == 0 {
		return paths, nil
	}
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, errors.Wrap(err, "workingcopy: error decoding index")
	}
	return paths, nil
}

func (m *Manager) writeIndex(ctx context.Context, paths []string) error {
	if paths == nil {
		paths = []string{}
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	return m.gw.WriteFile(ctx, m.indexRef(), data)
}

// addToIndex records p in the index unless it is already there.
func (m *Manager) addToIndex(ctx context.Context, p string) error {
	paths, err := m.readIndex(ctx)
	if err != nil {
		return err
	}
	for _, x := range paths {
		if x == p {
			return nil
		}
	}
	return m.writeIndex(ctx, append(paths, p))
}
