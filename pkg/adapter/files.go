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

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	gw "github.com/cs3org/cs3api4lab/pkg/gateway"
	"github.com/cs3org/cs3api4lab/pkg/lock"
	"github.com/cs3org/cs3api4lab/pkg/reference"
	"github.com/cs3org/cs3api4lab/pkg/workingcopy"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/pkg/errors"
)

// File is the result of opening a resource.
type File struct {
	// Path is the resource to edit: the working copy when one was handed
	// out, the requested resource otherwise.
	Path        string
	WorkingCopy bool
	Info        *provider.ResourceInfo
	Content     []byte
}

// Files reads and writes resources on behalf of an editor, going through
// the working copy and lock logic.
type Files struct {
	gw       *gw.Client
	resolver *reference.Resolver
	locks    lock.Strategy
	wc       *workingcopy.Manager
}

// Open runs the open hook on p and reads the resource the user should edit.
func (f *Files) Open(ctx context.Context, p, endpoint string) (*File, error) {
	cp, err := f.wc.OnOpenHook(ctx, p, endpoint)
	if err != nil {
		return nil, err
	}
	ref, err := f.resolver.Resolve(p, endpoint)
	if err != nil {
		return nil, err
	}
	if cp != "" {
		ref = reference.PathRef(cp)
	}
	info, err := f.gw.Stat(ctx, ref)
	if err != nil {
		return nil, err
	}
	if info.Type == provider.ResourceType_RESOURCE_TYPE_CONTAINER {
		return &File{Path: info.Path, Info: info}, nil
	}
	data, err := f.gw.ReadFile(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &File{Path: info.Path, WorkingCopy: cp != "", Info: info, Content: data}, nil
}

// Close runs the close hook on p.
func (f *Files) Close(ctx context.Context, p, endpoint string) error {
	return f.wc.OnCloseHook(ctx, p, endpoint)
}

// Save writes content to p, or to a conflict file when somebody else holds
// a valid lock on p, and leaves the written resource locked by the current
// user. It returns the path written.
func (f *Files) Save(ctx context.Context, p, endpoint string, content []byte) (string, error) {
	target, err := f.wc.ResolveFilePath(ctx, p, endpoint)
	if err != nil {
		return "", err
	}
	ref := reference.PathRef(target)
	info, err := f.gw.TryStat(ctx, ref)
	if err != nil {
		return "", err
	}
	if info != nil {
		if err := f.locks.Acquire(ctx, info); err != nil {
			return "", err
		}
	}
	if err := f.gw.WriteFile(ctx, ref, content); err != nil {
		return "", errors.Wrap(err, "adapter: error saving "+target)
	}
	if info == nil {
		if info, err = f.gw.Stat(ctx, ref); err != nil {
			return "", err
		}
		if err := f.locks.Acquire(ctx, info); err != nil {
			return "", err
		}
	}
	appctx.GetLogger(ctx).Debug().Str("path", target).Int("size", len(content)).Msg("saved")
	return target, nil
}
