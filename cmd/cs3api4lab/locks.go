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

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/table"
)

func lockCommand() *command {
	cmd := newCommand("lock")
	cmd.Description = func() string { return "acquire or refresh the lock on a file" }
	cmd.Usage = func() string { return "Usage: lock [-flags] <path>" }
	show := cmd.Bool("show", false, "only print the current holder")
	cmd.Action = func(w ...io.Writer) error {
		ref, err := resolve(cmd, "")
		if err != nil {
			return err
		}
		info, err := ac.Gateway.Stat(ctx, ref)
		if err != nil {
			return err
		}
		if !*show {
			if err := ac.Locks.Acquire(ctx, info); err != nil {
				return err
			}
			if info, err = ac.Gateway.Stat(ctx, ref); err != nil {
				return err
			}
		}
		h, err := ac.Locks.Holder(ctx, info)
		if err != nil {
			return err
		}
		if h == nil {
			fmt.Fprintln(out(w, os.Stdout), "not locked")
			return nil
		}
		t := table.NewWriter()
		t.SetOutputMirror(out(w, os.Stdout))
		t.AppendHeader(table.Row{"Path", "Holder", "Idp", "Created", "Updated", "Expires", "Expired"})
		t.AppendRow(table.Row{info.Path, h.Username, h.Idp, h.Created, h.Updated, h.Expires, h.Expired})
		t.Render()
		return nil
	}
	return cmd
}

func unlockCommand() *command {
	cmd := newCommand("unlock")
	cmd.Description = func() string { return "release your lock on a file" }
	cmd.Usage = func() string { return "Usage: unlock <path>" }
	cmd.Action = func(w ...io.Writer) error {
		ref, err := resolve(cmd, "")
		if err != nil {
			return err
		}
		info, err := ac.Gateway.Stat(ctx, ref)
		if err != nil {
			return err
		}
		return ac.Locks.Release(ctx, info)
	}
	return cmd
}
