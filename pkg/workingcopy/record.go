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
	"sort"
	"strings"
	"time"

	"github.com/cs3org/cs3api4lab/pkg/lock"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
)

// CopyRecord is stored on the original under the copy key of its holder.
type CopyRecord struct {
	lock.Record
	CopyInfo string `json:"copy_info"`
}

// EncodeCopyRecord serializes r to percent-encoded JSON.
func EncodeCopyRecord(r *CopyRecord) (string, error) {
	return lock.Encode(r)
}

// DecodeCopyRecord parses a value produced by EncodeCopyRecord.
func DecodeCopyRecord(s string) (*CopyRecord, error) {
	r := &CopyRecord{}
	if err := lock.Decode(s, r); err != nil {
		return nil, err
	}
	return r, nil
}

func newCopyRecord(u *userpb.User, copyInfo string, now time.Time) *CopyRecord {
	return &CopyRecord{Record: *lock.NewRecord(u, now), CopyInfo: copyInfo}
}

// copyRecords returns the non-empty copy records of info by key. Values
// that cannot be decoded are returned in bad.
func copyRecords(info *provider.ResourceInfo) (records map[string]*CopyRecord, bad []string) {
	records = map[string]*CopyRecord{}
	for k, v := range info.GetArbitraryMetadata().GetMetadata() {
		if !strings.HasPrefix(k, CopyKeyPrefix) || v == "" {
			continue
		}
		r, err := DecodeCopyRecord(v)
		if err != nil {
			bad = append(bad, k)
			continue
		}
		records[k] = r
	}
	sort.Strings(bad)
	return records, bad
}
