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

// Package logger builds the zerolog logger used by the adapter and the command line tool.
package logger

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Mode selects the output encoding.
type Mode string

const (
	// JSONMode writes one json document per line.
	JSONMode Mode = "json"
	// ConsoleMode writes human readable, colored lines.
	ConsoleMode Mode = "console"
)

// Options configures New.
type Options struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
	Mode   string `mapstructure:"mode"`
}

// New creates a logger writing to the configured output.
func New(o Options) (*zerolog.Logger, error) {
	w, err := getWriter(o.Output)
	if err != nil {
		return nil, err
	}
	return NewWithWriter(w, o)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, o Options) (*zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if o.Level != "" {
		l, err := zerolog.ParseLevel(o.Level)
		if err != nil {
			return nil, errors.Wrap(err, "logger: invalid level "+o.Level)
		}
		lvl = l
	}

	if Mode(o.Mode) == ConsoleMode {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}

	l := zerolog.New(w).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
	return &l, nil
}

func getWriter(out string) (io.Writer, error) {
	if out == "stderr" || out == "" {
		return os.Stderr, nil
	}

	if out == "stdout" {
		return os.Stdout, nil
	}

	fd, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "error creating log file: "+out)
	}

	return fd, nil
}
