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
	"encoding/json"
	"net/url"
	"time"

	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	"github.com/pkg/errors"
)

// Record is the lock record kept in the arbitrary metadata of a resource.
type Record struct {
	Username string    `json:"username"`
	Idp      string    `json:"idp"`
	OpaqueID string    `json:"opaque_id"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// NewRecord returns a record for u stamped with now.
func NewRecord(u *userpb.User, now time.Time) *Record {
	return &Record{
		Username: u.GetUsername(),
		Idp:      u.GetId().GetIdp(),
		OpaqueID: u.GetId().GetOpaqueId(),
		Created:  now,
		Updated:  now,
	}
}

// UserID returns the identity of the holder.
func (r *Record) UserID() *userpb.UserId {
	return &userpb.UserId{Idp: r.Idp, OpaqueId: r.OpaqueID}
}

// Expired reports whether the record was last updated more than ttl before now.
func (r *Record) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.Updated) > ttl
}

// EncodeRecord serializes r to JSON and percent-encodes it, which is the
// form stored in the metadata map.
func EncodeRecord(r *Record) (string, error) {
	return Encode(r)
}

// DecodeRecord parses a value produced by EncodeRecord.
func DecodeRecord(s string) (*Record, error) {
	r := &Record{}
	if err := Decode(s, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Encode marshals v to JSON and percent-encodes the result.
func Encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "lock: error encoding record")
	}
	return url.QueryEscape(string(b)), nil
}

// Decode reverses Encode into v.
func Decode(s string, v interface{}) error {
	raw, err := url.QueryUnescape(s)
	if err != nil {
		return errors.Wrap(err, "lock: error unescaping record")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Wrap(err, "lock: error decoding record")
	}
	return nil
}
