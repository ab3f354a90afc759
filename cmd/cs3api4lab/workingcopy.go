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
	"sort"

	"github.com/jedib0t/go-pretty/table"
	"github.com/pkg/errors"
)

func openCommand() *command {
	cmd := newCommand("open")
	cmd.Description = func() string { return "open a file, creating a working copy when it is shared with you" }
	cmd.Usage = func() string { return "Usage: open [-flags] <path or opaque id>" }
	endpoint := cmd.String("endpoint", "", "storage id when the argument is an opaque id")
	cat := cmd.Bool("cat", false, "print the content")
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 1 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		f, err := ac.Files.Open(ctx, cmd.Args()[0], *endpoint)
		if err != nil {
			return err
		}
		o := out(w, os.Stdout)
		if *cat {
			_, err := o.Write(f.Content)
			return err
		}
		fmt.Fprintf(o, "%s (working copy: %t, %d bytes)\n", f.Path, f.WorkingCopy, len(f.Content))
		return nil
	}
	return cmd
}

func closeCommand() *command {
	cmd := newCommand("close")
	cmd.Description = func() string { return "close a working copy" }
	cmd.Usage = func() string { return "Usage: close <path>" }
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 1 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		return ac.Files.Close(ctx, cmd.Args()[0], "")
	}
	return cmd
}

func mergerCommand() *command {
	cmd := newCommand("merger")
	cmd.Description = func() string { return "show who merges the working copies of a file" }
	cmd.Usage = func() string { return "Usage: merger [-flags] <path>" }
	all := cmd.Bool("a", false, "list every valid working copy")
	cmd.Action = func(w ...io.Writer) error {
		ref, err := resolve(cmd, "")
		if err != nil {
			return err
		}
		o := out(w, os.Stdout)
		if *all {
			info, err := ac.Gateway.Stat(ctx, ref)
			if err != nil {
				return err
			}
			records := ac.WorkingCopies.Records(info)
			names := make([]string, 0, len(records))
			for n := range records {
				names = append(names, n)
			}
			sort.Strings(names)
			t := table.NewWriter()
			t.SetOutputMirror(o)
			t.AppendHeader(table.Row{"User", "Copy", "Created", "Updated"})
			for _, n := range names {
				r := records[n]
				t.AppendRow(table.Row{r.Username, r.CopyInfo, r.Created, r.Updated})
			}
			t.Render()
			return nil
		}
		merger, err := ac.WorkingCopies.GetMerger(ctx, cmd.Args()[0], "")
		if err != nil {
			return err
		}
		if merger == nil {
			fmt.Fprintln(o, "no working copies")
			return nil
		}
		fmt.Fprintf(o, "%s merges %s (open since %s)\n", merger.Username, merger.CopyInfo, merger.Created)
		return nil
	}
	return cmd
}

func checkLocksCommand() *command {
	cmd := newCommand("check-locks")
	cmd.Description = func() string { return "clear your expired working copy records" }
	cmd.Action = func(w ...io.Writer) error {
		return ac.WorkingCopies.CheckLocks(ctx)
	}
	return cmd
}
