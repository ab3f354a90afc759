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
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cs3org/cs3api4lab/pkg/adapter"
	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/config"
	"github.com/cs3org/cs3api4lab/pkg/logger"
	"github.com/cs3org/cs3api4lab/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ac  *adapter.Context
	ctx context.Context

	confFlag     = flag.String("c", "", "path to the TOML configuration file")
	logLevelFlag = flag.String("log-level", "", "overrides the configured log level")
	metricsFlag  = flag.Bool("metrics", false, "prints the collected metrics after the command")
)

func main() {
	flag.Parse()

	cmds := []*command{
		whoamiCommand(),
		statCommand(),
		lsCommand(),
		mkdirCommand(),
		rmCommand(),
		moveCommand(),
		uploadCommand(),
		downloadCommand(),
		lockCommand(),
		unlockCommand(),
		shareCreateCommand(),
		shareListCommand(),
		shareListReceivedCommand(),
		shareUpdateCommand(),
		shareUpdateReceivedCommand(),
		shareRemoveCommand(),
		granteesCommand(),
		openCommand(),
		closeCommand(),
		mergerCommand(),
		checkLocksCommand(),
	}

	mainUsage := createMainUsage(cmds)
	if flag.NArg() < 1 {
		fmt.Println(mainUsage)
		os.Exit(1)
	}

	action := flag.Args()[0]
	for _, v := range cmds {
		if v.Name != action {
			continue
		}
		if err := v.Parse(flag.Args()[1:]); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if err := run(v); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	fmt.Println(mainUsage)
	os.Exit(1)
}

func run(cmd *command) error {
	c, err := config.Load(*confFlag)
	if err != nil {
		return err
	}
	if *logLevelFlag != "" {
		c.Log.Level = *logLevelFlag
	}
	log, err := logger.New(c.Log)
	if err != nil {
		return err
	}
	ctx = appctx.WithLogger(context.Background(), log)

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	ac, err = adapter.Dial(c)
	if err != nil {
		return err
	}
	defer ac.Close()

	if err := cmd.Action(); err != nil {
		log.Error().Err(err).Str("command", cmd.Name).Msg("command failed")
		return err
	}
	if *metricsFlag {
		return printMetrics(reg, os.Stdout)
	}
	return nil
}

func createMainUsage(cmds []*command) string {
	n := 0
	for _, cmd := range cmds {
		if l := len(cmd.Name); l > n {
			n = l
		}
	}

	usage := "Command line interface to a CS3 storage gateway\n\n"
	usage += "Usage: cs3api4lab [-c config.toml] [-log-level level] [-metrics] <command> [-flags] [args]\n\n"
	for _, cmd := range cmds {
		usage += fmt.Sprintf("%s%s%s\n", cmd.Name, strings.Repeat(" ", 4+(n-len(cmd.Name))), cmd.Description())
	}
	return usage
}
