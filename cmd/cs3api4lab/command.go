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
	"flag"
	"fmt"
	"io"
)

// command is a subcommand with its own flag set.
type command struct {
	*flag.FlagSet
	Name        string
	Action      func(w ...io.Writer) error
	Usage       func() string
	Description func() string
}

func newCommand(name string) *command {
	cmd := &command{
		Name:    name,
		FlagSet: flag.NewFlagSet(name, flag.ContinueOnError),
	}
	cmd.Usage = func() string { return fmt.Sprintf("Usage: %s", name) }
	cmd.Description = func() string { return name }
	return cmd
}

func out(w []io.Writer, def io.Writer) io.Writer {
	if len(w) > 0 && w[0] != nil {
		return w[0]
	}
	return def
}
