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

	"github.com/cs3org/cs3api4lab/pkg/share"
	"github.com/jedib0t/go-pretty/table"
	"github.com/pkg/errors"
)

func printShares(w io.Writer, shares []*share.Share) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Kind", "Path", "Grantee.Type", "Grantee.Idp", "Grantee.OpaqueId", "Role", "State", "Created", "Updated"})
	for _, s := range shares {
		t.AppendRow(table.Row{s.ID, s.Kind, s.Path, s.Grantee.Type, s.Grantee.Idp, s.Grantee.OpaqueID, s.Role, s.State, s.Ctime, s.Mtime})
	}
	t.Render()
}

func shareCreateCommand() *command {
	cmd := newCommand("share-create")
	cmd.Description = func() string { return "create share to a user or group, local or federated" }
	cmd.Usage = func() string { return "Usage: share-create [-flags] <path>" }
	grantType := cmd.String("type", share.GranteeUser, "grantee type (user or group)")
	grantee := cmd.String("grantee", "", "the grantee, or user@provider for a federated user")
	idp := cmd.String("idp", "", "the idp of the grantee")
	role := cmd.String("role", string(share.RoleViewer), "the role for the share (viewer or editor)")
	endpoint := cmd.String("endpoint", "", "storage id when the argument is an opaque id")
	reshare := cmd.Bool("reshare", false, "allow the grantee to share further")
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 1 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		if *grantee == "" {
			return errors.New("Grantee cannot be empty: use -grantee flag\n" + cmd.Usage())
		}
		s, err := ac.Shares.Create(ctx, share.CreateRequest{
			Endpoint:        *endpoint,
			Path:            cmd.Args()[0],
			GranteeOpaqueID: *grantee,
			GranteeIdp:      *idp,
			Role:            *role,
			GranteeType:     *grantType,
			Reshare:         *reshare,
		})
		if err != nil {
			return err
		}
		printShares(out(w, os.Stdout), []*share.Share{s})
		return nil
	}
	return cmd
}

func shareListCommand() *command {
	cmd := newCommand("share-list")
	cmd.Description = func() string { return "list shares you manage" }
	cmd.Usage = func() string { return "Usage: share-list [-flags]" }
	path := cmd.String("path", "", "only shares of this resource")
	cmd.Action = func(w ...io.Writer) error {
		shares, err := ac.Shares.List(ctx, *path)
		if err != nil {
			return err
		}
		printShares(out(w, os.Stdout), shares)
		return nil
	}
	return cmd
}

func shareListReceivedCommand() *command {
	cmd := newCommand("share-list-received")
	cmd.Description = func() string { return "list shares you have received" }
	cmd.Usage = func() string { return "Usage: share-list-received [-flags]" }
	state := cmd.String("state", "", "only shares in this state (pending, accepted, rejected, invalid)")
	cmd.Action = func(w ...io.Writer) error {
		shares, err := ac.Shares.ListReceived(ctx, *state)
		if err != nil {
			return err
		}
		printShares(out(w, os.Stdout), shares)
		return nil
	}
	return cmd
}

func shareUpdateCommand() *command {
	cmd := newCommand("share-update")
	cmd.Description = func() string { return "update a share" }
	cmd.Usage = func() string { return "Usage: share-update [-flags] <share_id>" }
	role := cmd.String("role", "", "the new role (viewer or editor)")
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 1 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		if *role == "" {
			return errors.New("Role cannot be empty: use -role flag\n" + cmd.Usage())
		}
		return ac.Shares.Update(ctx, cmd.Args()[0], share.FieldRole, *role)
	}
	return cmd
}

func shareUpdateReceivedCommand() *command {
	cmd := newCommand("share-update-received")
	cmd.Description = func() string { return "accept or reject a received share" }
	cmd.Usage = func() string { return "Usage: share-update-received [-flags] <share_id>" }
	state := cmd.String("state", share.StateAccepted, "the new state (accepted or rejected)")
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 1 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		s, err := ac.Shares.UpdateReceivedState(ctx, cmd.Args()[0], *state)
		if err != nil {
			return err
		}
		printShares(out(w, os.Stdout), []*share.Share{s})
		return nil
	}
	return cmd
}

func shareRemoveCommand() *command {
	cmd := newCommand("share-remove")
	cmd.Description = func() string { return "remove a share" }
	cmd.Usage = func() string { return "Usage: share-remove <share_id>" }
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 1 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		return ac.Shares.Remove(ctx, cmd.Args()[0])
	}
	return cmd
}

func granteesCommand() *command {
	cmd := newCommand("grantees")
	cmd.Description = func() string { return "list who a resource is shared with" }
	cmd.Usage = func() string { return "Usage: grantees <path>" }
	cmd.Action = func(w ...io.Writer) error {
		if cmd.NArg() < 1 {
			return errors.New("Invalid arguments: " + cmd.Usage())
		}
		grantees, err := ac.Shares.ListGranteesForResource(ctx, cmd.Args()[0])
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(out(w, os.Stdout))
		t.AppendHeader(table.Row{"#", "Kind", "Type", "Idp", "OpaqueId", "Name", "Role"})
		for _, g := range grantees {
			t.AppendRow(table.Row{g.ShareID, g.Kind, g.Grantee.Type, g.Grantee.Idp, g.Grantee.OpaqueID, g.DisplayName, g.Role})
		}
		t.Render()
		fmt.Fprintf(out(w, os.Stdout), "%d grantees\n", len(grantees))
		return nil
	}
	return cmd
}
