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

// Package workingcopy keeps collaborators from overwriting each other.
//
// When a user opens a file somebody else shared with them, a private working
// copy is created in their home and linked to the original through the
// "original" metadata key. The original records every collaborator under a
// "copy-<username>" key, and an index file in the home of the collaborator
// lists the originals it holds records on so that stale records can be swept.
// Writes to a resource locked by somebody else are redirected to a conflict
// file.
package workingcopy

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/lock"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	userpb "github.com/cs3org/go-cs3apis/cs3/identity/user/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/google/uuid"
)

const (
	// OriginalKey links a working copy to its original, as <storage_id>!<opaque_id>.
	OriginalKey = "original"
	// CopyKeyPrefix prefixes the copy record keys on the original.
	CopyKeyPrefix = "copy-"

	defaultIndex = ".locks"
	defaultTTL   = 60 * time.Second
)

// Gateway is the part of the gateway client the manager needs.
type Gateway interface {
	Stat(ctx context.Context, ref *provider.Reference) (*provider.ResourceInfo, error)
	TryStat(ctx context.Context, ref *provider.Reference) (*provider.ResourceInfo, error)
	ReadFile(ctx context.Context, ref *provider.Reference) ([]byte, error)
	WriteFile(ctx context.Context, ref *provider.Reference, data []byte) error
	SetMetadata(ctx context.Context, ref *provider.Reference, md map[string]string) error
	WhoAmI(ctx context.Context) (*userpb.User, error)
}

// ShareChecker tells whether a resource reached the current user through a share.
type ShareChecker interface {
	IsSharedWithMe(ctx context.Context, info *provider.ResourceInfo) (bool, error)
}

// Options configures a Manager.
type Options struct {
	// HomeDir receives the working copies and the index. Defaults to the
	// home directory of the resolver.
	HomeDir string
	// MountDir receives conflict files when the directory of the target
	// is not writable. Defaults to HomeDir.
	MountDir string
	// Index is the name of the index file.
	Index string
	// CopyTTL is the validity of a copy record without a refresh.
	CopyTTL time.Duration
	Now     func() time.Time
}

// Manager implements the open and close hooks, merger arbitration, the
// record sweep and conflict redirection.
type Manager struct {
	gw       Gateway
	resolver *reference.Resolver
	shares   ShareChecker
	locks    lock.Strategy
	homeDir  string
	mountDir string
	index    string
	ttl      time.Duration
	now      func() time.Time
}

// NewManager returns a manager.
func NewManager(gw Gateway, resolver *reference.Resolver, shares ShareChecker, locks lock.Strategy, o Options) *Manager {
	m := &Manager{
		gw:       gw,
		resolver: resolver,
		shares:   shares,
		locks:    locks,
		homeDir:  o.HomeDir,
		mountDir: o.MountDir,
		index:    o.Index,
		ttl:      o.CopyTTL,
		now:      o.Now,
	}
	if m.homeDir == "" {
		m.homeDir = resolver.HomeDir()
	}
	if m.mountDir == "" {
		m.mountDir = m.homeDir
	}
	if m.index == "" {
		m.index = defaultIndex
	}
	if m.ttl <= 0 {
		m.ttl = defaultTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// New returns a manager configured from c.
func New(c *config.Config, gw Gateway, resolver *reference.Resolver, shares ShareChecker, locks lock.Strategy) *Manager {
	return NewManager(gw, resolver, shares, locks, Options{
		HomeDir:  c.HomeDir,
		MountDir: c.MountDir,
		Index:    c.LocksIndex,
		CopyTTL:  c.CopyLockTTL(),
	})
}

// CopyKey returns the metadata key recording the working copy of username.
func CopyKey(username string) string {
	return CopyKeyPrefix + username
}

// CopyName returns the name of the working copy username keeps of info.
// It is derived from the resource id so that it survives renames of the
// original.
func CopyName(username string, info *provider.ResourceInfo) string {
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(reference.Wrap(info.GetId()))).String()[:8]
	return CopyKeyPrefix + username + "-" + sum + "-" + path.Base(info.GetPath())
}

// IsCopyOf reports whether the resource at p is a working copy of username.
// The username must be followed by the id checksum, so copies of bob-x are
// not taken for copies of bob.
func IsCopyOf(username, p string) bool {
	rest, ok := strings.CutPrefix(path.Base(p), CopyKeyPrefix+username+"-")
	if !ok || len(rest) < 10 || rest[8] != '-' {
		return false
	}
	for _, r := range rest[:8] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func (m *Manager) copyPath(username string, info *provider.ResourceInfo) string {
	return path.Join(m.homeDir, CopyName(username, info))
}

func (m *Manager) indexRef() *provider.Reference {
	return reference.PathRef(path.Join(m.homeDir, m.index))
}

func (m *Manager) stat(ctx context.Context, p, endpoint string) (*provider.ResourceInfo, error) {
	ref, err := m.resolver.Resolve(p, endpoint)
	if err != nil {
		return nil, err
	}
	return m.gw.Stat(ctx, ref)
}

// original returns the resource the working copy info is linked to, or nil
// when info carries no valid link.
func original(info *provider.ResourceInfo) *provider.ResourceId {
	v := info.GetArbitraryMetadata().GetMetadata()[OriginalKey]
	if v == "" {
		return nil
	}
	return reference.ResolveID(v)
}
