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

package adapter

import (
	"context"
	"path"
	"strings"
	"testing"

	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	"github.com/cs3org/cs3api4lab/pkg/gateway/gatewaytest"
	"github.com/cs3org/cs3api4lab/pkg/lock"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	"github.com/cs3org/cs3api4lab/pkg/share"
	"github.com/cs3org/cs3api4lab/pkg/workingcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docPath = "/home/einstein/doc.txt"

var users = map[string]string{
	"einstein": "relativity",
	"marie":    "radioactivity",
}

func newContext(t *testing.T, g *gatewaytest.Gateway, username string, mutate ...func(*config.Config)) *Context {
	t.Helper()
	c := &config.Config{HomeDir: "/home/" + username}
	c.Init()
	for _, m := range mutate {
		m(c)
	}
	ac, err := New(c, auth.NewBasic(g, "basic", username, users[username]), g)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ac.Close() })
	return ac
}

func setup(t *testing.T) (*gatewaytest.Gateway, *Context, *Context) {
	t.Helper()
	g := gatewaytest.New()
	t.Cleanup(g.Close)
	for u, secret := range users {
		g.AddUser(u, secret)
	}
	g.Put(docPath, "einstein", []byte("draft"))

	einstein := newContext(t, g, "einstein")
	marie := newContext(t, g, "marie")
	_, err := einstein.Shares.Create(context.Background(), share.CreateRequest{
		Path:            "/doc.txt",
		GranteeIdp:      gatewaytest.LocalIdp,
		GranteeOpaqueID: "marie-id",
		Role:            "editor",
		GranteeType:     share.GranteeUser,
	})
	require.NoError(t, err)
	return g, einstein, marie
}

func TestNew(t *testing.T) {
	g := gatewaytest.New()
	defer g.Close()
	c := &config.Config{LocksAPI: "flock"}
	c.Init()
	_, err := New(c, auth.NewStatic("token"), g)
	assert.Error(t, err)

	ac := newContext(t, g, "einstein", func(c *config.Config) { c.LocksAPI = config.LocksAPICS3 })
	assert.IsType(t, &lock.Native{}, ac.Locks)
}

func TestSaveLocksTheTarget(t *testing.T) {
	g, einstein, _ := setup(t)
	ctx := context.Background()

	written, err := einstein.Files.Save(ctx, "/doc.txt", "", []byte("final"))
	require.NoError(t, err)
	assert.Equal(t, docPath, written)

	content, _ := g.Content(docPath)
	assert.Equal(t, "final", string(content))

	info, err := einstein.Gateway.Stat(ctx, reference.PathRef(docPath))
	require.NoError(t, err)
	holder, err := einstein.Locks.Holder(ctx, info)
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, "einstein", holder.Username)
}

func TestSaveNewFile(t *testing.T) {
	g, _, marie := setup(t)
	ctx := context.Background()

	written, err := marie.Files.Save(ctx, "/notes.md", "", []byte("# notes"))
	require.NoError(t, err)
	assert.Equal(t, "/home/marie/notes.md", written)
	assert.NotEmpty(t, g.Metadata(written)[lock.MetadataKey])
}

func TestSaveRedirectsOnConflict(t *testing.T) {
	g, einstein, marie := setup(t)
	ctx := context.Background()

	_, err := einstein.Files.Save(ctx, "/doc.txt", "", []byte("einstein"))
	require.NoError(t, err)

	written, err := marie.Files.Save(ctx, docPath, "", []byte("marie"))
	require.NoError(t, err)
	assert.Equal(t, "/home/marie", path.Dir(written))
	assert.True(t, strings.HasPrefix(path.Base(written), "doc-marie."))
	assert.True(t, strings.HasSuffix(written, "-conflict.txt"))

	original, _ := g.Content(docPath)
	assert.Equal(t, "einstein", string(original))
	conflict, _ := g.Content(written)
	assert.Equal(t, "marie", string(conflict))
}

func TestAcquireRefusesForeignLock(t *testing.T) {
	_, einstein, marie := setup(t)
	ctx := context.Background()

	_, err := einstein.Files.Save(ctx, "/doc.txt", "", []byte("einstein"))
	require.NoError(t, err)

	info, err := marie.Gateway.Stat(ctx, reference.PathRef(docPath))
	require.NoError(t, err)
	err = marie.Locks.Acquire(ctx, info)
	require.Error(t, err)
	assert.True(t, errtypes.IsLockedErr(err))
}

func TestOpenHandsOutWorkingCopy(t *testing.T) {
	_, einstein, marie := setup(t)
	ctx := context.Background()

	f, err := marie.Files.Open(ctx, docPath, "")
	require.NoError(t, err)
	assert.True(t, f.WorkingCopy)
	assert.True(t, workingcopy.IsCopyOf("marie", f.Path))
	assert.Equal(t, "draft", string(f.Content))

	merger, err := einstein.WorkingCopies.GetMerger(ctx, docPath, "")
	require.NoError(t, err)
	require.NotNil(t, merger)
	assert.Equal(t, "marie", merger.Username)

	require.NoError(t, marie.Files.Close(ctx, f.Path, ""))
	merger, err = einstein.WorkingCopies.GetMerger(ctx, docPath, "")
	require.NoError(t, err)
	assert.Nil(t, merger)
}

func TestOpenOwnFile(t *testing.T) {
	_, einstein, _ := setup(t)

	f, err := einstein.Files.Open(context.Background(), "/doc.txt", "")
	require.NoError(t, err)
	assert.False(t, f.WorkingCopy)
	assert.Equal(t, docPath, f.Path)
	assert.Equal(t, "draft", string(f.Content))
}
