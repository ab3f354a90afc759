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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cs3org/cs3api4lab/pkg/adapter"
	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/gateway/gatewaytest"
	"github.com/cs3org/cs3api4lab/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainUsageListsCommands(t *testing.T) {
	cmds := []*command{whoamiCommand(), shareUpdateReceivedCommand(), checkLocksCommand()}
	usage := createMainUsage(cmds)
	for _, c := range cmds {
		assert.Contains(t, usage, c.Name)
		assert.Contains(t, usage, c.Description())
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := shareCreateCommand()
	require.NoError(t, cmd.Parse([]string{"-grantee", "marie", "-role", "editor", "/doc.txt"}))
	assert.Equal(t, "marie", cmd.Lookup("grantee").Value.String())
	assert.Equal(t, "editor", cmd.Lookup("role").Value.String())
	assert.Equal(t, []string{"/doc.txt"}, cmd.Args())
}

func TestMissingArguments(t *testing.T) {
	cmd := shareRemoveCommand()
	require.NoError(t, cmd.Parse(nil))
	err := cmd.Action()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share-remove")
}

func TestLockPrintsNewHolder(t *testing.T) {
	g := gatewaytest.New()
	defer g.Close()
	g.AddUser("einstein", "relativity")
	g.Put("/home/einstein/doc.txt", "einstein", []byte("draft"))

	c := &config.Config{HomeDir: "/home/einstein"}
	c.Init()
	var err error
	ac, err = adapter.New(c, auth.NewBasic(g, "basic", "einstein", "relativity"), g)
	require.NoError(t, err)
	ctx = context.Background()
	defer func() {
		_ = ac.Close()
		ac = nil
	}()

	cmd := lockCommand()
	require.NoError(t, cmd.Parse([]string{"/doc.txt"}))
	var b bytes.Buffer
	require.NoError(t, cmd.Action(&b))
	assert.NotContains(t, b.String(), "not locked")
	assert.Contains(t, b.String(), "/home/einstein/doc.txt")
}

func TestPrintMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	metrics.ConflictRedirects.Inc()

	var buf bytes.Buffer
	require.NoError(t, printMetrics(reg, &buf))
	assert.True(t, strings.Contains(buf.String(), "cs3api4lab_locks_conflict_redirects_total"))
}
