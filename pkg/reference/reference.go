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

// Package reference turns user facing identifiers into CS3 references.
package reference

import (
	"path"
	"strings"
	"unicode/utf8"

	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
)

const (
	idDelimiter = "!"
	// DefaultEndpoint is the sentinel endpoint sent by clients that did not pick one.
	DefaultEndpoint = "default"
)

// Resolver builds references from paths or opaque ids. It performs no network calls.
type Resolver struct {
	homeDir  string
	rootDirs []string
}

// New returns a resolver configured from c.
func New(c *config.Config) *Resolver {
	return NewResolver(c.HomeDir, c.RootDirList)
}

// NewResolver returns a resolver prefixing paths with homeDir unless they
// already start with it or with one of rootDirs.
func NewResolver(homeDir string, rootDirs []string) *Resolver {
	return &Resolver{homeDir: strings.TrimSuffix(homeDir, "/"), rootDirs: rootDirs}
}

// HomeDir returns the configured home directory.
func (r *Resolver) HomeDir() string {
	return r.homeDir
}

// Resolve returns the reference for identifier. Identifiers starting with a
// slash are paths; anything else is an opaque id in the storage named by endpoint.
func (r *Resolver) Resolve(identifier, endpoint string) (*provider.Reference, error) {
	if strings.HasPrefix(identifier, "/") {
		return &provider.Reference{Path: r.Path(identifier)}, nil
	}
	if endpoint == "" || endpoint == DefaultEndpoint {
		return nil, errtypes.InvalidEndpoint("an opaque id requires a storage endpoint, got " + quote(endpoint))
	}
	return &provider.Reference{
		ResourceId: &provider.ResourceId{
			StorageId: endpoint,
			OpaqueId:  identifier,
		},
	}, nil
}

// Path canonicalizes an absolute path by prepending the home directory when needed.
func (r *Resolver) Path(p string) string {
	p = path.Clean(p)
	if r.homeDir == "" || hasDirPrefix(p, r.homeDir) {
		return p
	}
	for _, root := range r.rootDirs {
		if root != "" && hasDirPrefix(p, strings.TrimSuffix(root, "/")) {
			return p
		}
	}
	return path.Join(r.homeDir, p)
}

func hasDirPrefix(p, dir string) bool {
	return dir == "" || p == dir || strings.HasPrefix(p, dir+"/")
}

func quote(s string) string {
	return "\"" + s + "\""
}

// Wrap encodes a resource id as <storage_id>!<opaque_id>.
func Wrap(id *provider.ResourceId) string {
	return id.GetStorageId() + idDelimiter + id.GetOpaqueId()
}

// ResolveID decodes an id produced by Wrap. It returns nil if s is not a wrapped id.
func ResolveID(s string) *provider.ResourceId {
	parts := strings.SplitN(s, idDelimiter, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil
	}
	if !utf8.ValidString(parts[0]) || !utf8.ValidString(parts[1]) {
		return nil
	}
	return &provider.ResourceId{StorageId: parts[0], OpaqueId: parts[1]}
}

// IDRef returns a reference addressing id.
func IDRef(id *provider.ResourceId) *provider.Reference {
	return &provider.Reference{ResourceId: id}
}

// PathRef returns a reference addressing the absolute path p.
func PathRef(p string) *provider.Reference {
	return &provider.Reference{Path: p}
}
