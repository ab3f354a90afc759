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
	"time"

	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	"github.com/jedib0t/go-pretty/table"
	"github.com/pkg/errors"
)

func resolve(cmd *command, endpoint string) (*provider.Reference, error) {
	if cmd.NArg() < 1 {
		return nil, errors.New("Invalid arguments: " + cmd.Usage())
	}
	return ac.Resolver.Resolve(cmd.Args()[0], endpoint)
}

func whoamiCommand() *command {
	cmd := newCommand("whoami")
	cmd.Description = func() string { return "tells who you are" }
	cmd.Action = func(w ...io.Writer) error {
		u, err := ac.Gateway.WhoAmI(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out(w, os.Stdout), "%s (%s) idp=%s opaque_id=%s\n", u.Username, u.DisplayName, u.Id.Idp, u.Id.OpaqueId)
		return nil
	}
	return cmd
}

func statCommand() *command {
	cmd := newCommand("stat")
	cmd.Description = func() string { return "get the metadata for a file or folder" }
	cmd.Usage = func() string { return "Usage: stat [-flags] <path or opaque id>" }
	endpoint := cmd.String("endpoint", "", "storage id when the argument is an opaque id")
	cmd.Action = func(w ...io.Writer) error {
		ref, err := resolve(cmd, *endpoint)
		if err != nil {
			return err
		}
		info, err := ac.Gateway.Stat(ctx, ref)
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(out(w, os.Stdout))
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows([]table.Row{
			{"Path", info.Path},
			{"Id", info.GetId().GetStorageId() + "!" + info.GetId().GetOpaqueId()},
			{"Type", info.Type.String()},
			{"Size", info.Size},
			{"Mtime", time.Unix(int64(info.GetMtime().GetSeconds()), 0)},
			{"Owner", info.GetOwner().GetOpaqueId()},
			{"Etag", info.Etag},
		})
		for k, v := range info.GetArbitraryMetadata().GetMetadata() {
			t.AppendRow(table.Row{"Metadata." + k, v})
		}
		t.Render()
		return nil
	}
	return cmd
}

func lsCommand() *command {
	cmd := newCommand("ls")
	cmd.Description = func() string { return "list a container contents" }
	cmd.Usage = func() string { return "Usage: ls [-flags] <container_name>" }
	longFlag := cmd.Bool("l", false, "long listing")
	cmd.Action = func(w ...io.Writer) error {
		ref, err := resolve(cmd, "")
		if err != nil {
			return err
		}
		infos, err := ac.Gateway.ListContainer(ctx, ref)
		if err != nil {
			return err
		}
		o := out(w, os.Stdout)
		for _, info := range infos {
			if *longFlag {
				fmt.Fprintf(o, "%s %d %d %s\n", info.Type, info.GetMtime().GetSeconds(), info.Size, info.Path)
			} else {
				fmt.Fprintln(o, info.Path)
			}
		}
		return nil
	}
	return cmd
}

func mkdirCommand() *command {
	cmd := newCommand("mkdir")
	cmd.Description = func() string { return "creates a folder" }
	cmd.Usage = func() string { return "Usage: mkdir <path>" }
	cmd.Action = func(w ...io.Writer) error {
		ref, err := resolve(cmd, "")
		if err != nil {
			return err
		}
		return ac.Gateway.CreateContainer(ctx, ref)
	}
	return cmd
}

func rmCommand() *command {
	cmd := newCommand("rm")
	cmd.Description = func() string { return "removes a file or folder" }
	cmd.Usage = func() string { return "Usage: rm <path>" }
	cmd.Action = func(w ...io.Writer) error {
		ref, err := resolve(cmd, "")
		if err != nil {
			return err
		}
		return ac.Gateway.Delete(ctx, ref)
	}
	return cmd
}

func moveCommand() *command {
	cmd := newCommand("mv")
	cmd.Description = func() string { return "moves/rename a file/folder" }
	cmd.Usage = func() string { return "Usage: mv <source> <target>" }
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 2 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		src, err := ac.Resolver.Resolve(cmd.Args()[0], "")
		if err != nil {
			return err
		}
		dst, err := ac.Resolver.Resolve(cmd.Args()[1], "")
		if err != nil {
			return err
		}
		return ac.Gateway.Move(ctx, src, dst)
	}
	return cmd
}

func uploadCommand() *command {
	cmd := newCommand("upload")
	cmd.Description = func() string { return "upload a local file, redirected to a conflict file when locked by someone else" }
	cmd.Usage = func() string { return "Usage: upload [-flags] <file_name> <remote_target>" }
	raw := cmd.Bool("raw", false, "write the target directly, bypassing locks")
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 2 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		data, err := os.ReadFile(cmd.Args()[0])
		if err != nil {
			return err
		}
		target := cmd.Args()[1]
		if *raw {
			ref, err := ac.Resolver.Resolve(target, "")
			if err != nil {
				return err
			}
			return ac.Gateway.WriteFile(ctx, ref, data)
		}
		written, err := ac.Files.Save(ctx, target, "", data)
		if err != nil {
			return err
		}
		fmt.Fprintln(out(w, os.Stdout), written)
		return nil
	}
	return cmd
}

func downloadCommand() *command {
	cmd := newCommand("download")
	cmd.Description = func() string { return "download a remote file to the local filesystem" }
	cmd.Usage = func() string { return "Usage: download [-flags] <remote_file> <local_file>" }
	endpoint := cmd.String("endpoint", "", "storage id when the argument is an opaque id")
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 2 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		ref, err := ac.Resolver.Resolve(cmd.Args()[0], *endpoint)
		if err != nil {
			return err
		}
		fd, err := os.Create(cmd.Args()[1])
		if err != nil {
			return err
		}
		defer fd.Close()
		n, err := ac.Gateway.Download(ctx, ref, fd)
		if err != nil {
			return err
		}
		fmt.Fprintf(out(w, os.Stdout), "%d bytes written to %s\n", n, cmd.Args()[1])
		return nil
	}
	return cmd
}
