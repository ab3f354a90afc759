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

// Package metrics exposes the prometheus collectors of the adapter.
package metrics

import (
	"context"
	"time"

	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "cs3api4lab"

// Calls counts gateway calls by method and resulting code. Transport errors
// are reported with their gRPC code, gateway statuses with their CS3 code.
var Calls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "calls_total",
		Help:      "A counter for calls to the storage gateway.",
	},
	[]string{"method", "code"},
)

// Duration is partitioned by the gateway method.
var Duration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "A histogram of latencies for gateway calls.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"method"},
)

// StatCache counts stat cache lookups by result (hit, miss).
var StatCache = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "stat_cache_lookups_total",
		Help:      "A counter for stat cache lookups.",
	},
	[]string{"result"},
)

// LockConflicts counts acquisitions refused because of a foreign lock.
var LockConflicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "locks",
		Name:      "conflicts_total",
		Help:      "A counter for lock acquisitions refused by a foreign lock.",
	},
	[]string{"strategy"},
)

// ConflictRedirects counts writes redirected to a conflict file.
var ConflictRedirects = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "locks",
		Name:      "conflict_redirects_total",
		Help:      "A counter for writes redirected to a conflict file.",
	},
)

// WorkingCopies counts working copy lifecycle events (created, refreshed, cleared, expired).
var WorkingCopies = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workingcopy",
		Name:      "events_total",
		Help:      "A counter for working copy lifecycle events.",
	},
	[]string{"event"},
)

// Collectors returns every collector of the adapter.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{Calls, Duration, StatCache, LockConflicts, ConflictRedirects, WorkingCopies}
}

// Register registers the collectors with reg, ignoring the ones already registered.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

type statusGetter interface {
	GetStatus() *rpc.Status
}

// NewUnaryClientInterceptor records the outcome and the latency of every gateway call.
func NewUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		Observe(method, reply, err, time.Since(start))
		return err
	}
}

// Observe records one gateway call.
func Observe(method string, reply interface{}, err error, d time.Duration) {
	code := "OK"
	switch {
	case err != nil:
		code = status.Code(err).String()
	default:
		if r, ok := reply.(statusGetter); ok && r.GetStatus() != nil {
			code = r.GetStatus().GetCode().String()
		}
	}
	Calls.WithLabelValues(method, code).Inc()
	Duration.WithLabelValues(method).Observe(d.Seconds())
}
