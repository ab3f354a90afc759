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

package reference

import (
	"testing"

	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	r := NewResolver("/home/einstein", []string{"/home", "/reva/"})
	tests := []struct {
		in   string
		want string
	}{
		{"/notes.txt", "/home/einstein/notes.txt"},
		{"/home/einstein/notes.txt", "/home/einstein/notes.txt"},
		{"/home/einstein", "/home/einstein"},
		{"/home/marie/shared.txt", "/home/marie/shared.txt"},
		{"/reva/einstein/a", "/reva/einstein/a"},
		{"/homework/a", "/home/einstein/homework/a"},
		{"/dir/../a.txt", "/home/einstein/a.txt"},
		{"/", "/home/einstein"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref, err := r.Resolve(tt.in, "")
			require.NoError(t, err)
			assert.Nil(t, ref.ResourceId)
			assert.Equal(t, tt.want, ref.Path)
		})
	}
}

func TestResolvePathWithoutHome(t *testing.T) {
	ref, err := NewResolver("", nil).Resolve("/a/b", DefaultEndpoint)
	require.NoError(t, err)
	assert.Equal(t, "/a/b", ref.Path)
}

func TestResolveOpaqueID(t *testing.T) {
	r := NewResolver("/home", nil)

	ref, err := r.Resolve("oid:42", "home-storage")
	require.NoError(t, err)
	assert.Empty(t, ref.Path)
	assert.Equal(t, &provider.ResourceId{StorageId: "home-storage", OpaqueId: "oid:42"}, ref.ResourceId)

	for _, endpoint := range []string{"", DefaultEndpoint} {
		_, err := r.Resolve("oid:42", endpoint)
		require.Error(t, err)
		assert.True(t, errtypes.IsBadRequestErr(err))
		assert.IsType(t, errtypes.InvalidEndpoint(""), err)
	}
}

func TestWrapResolveID(t *testing.T) {
	id := &provider.ResourceId{StorageId: "home-storage", OpaqueId: "oid:7!x"}
	got := ResolveID(Wrap(id))
	require.NotNil(t, got)
	assert.Equal(t, id.StorageId, got.StorageId)
	assert.Equal(t, id.OpaqueId, got.OpaqueId)

	assert.Nil(t, ResolveID("no-delimiter"))
	assert.Nil(t, ResolveID("!oid"))
	assert.Nil(t, ResolveID(""))
}
