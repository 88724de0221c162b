// Copyright 2023 The Cockroach Authors
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
// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets mirrors the teacher's internal/util/metrics package
// (deleted in this rewrite, see DESIGN.md): a log-ish spread from a
// millisecond to a couple of minutes, suitable for a single run's
// wall-clock duration.
var latencyBuckets = []float64{
	.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120,
}

var (
	rowsMovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbxfer_rows_moved_total",
		Help: "the number of source rows moved into the destination across all runs",
	})

	partitionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbxfer_partitions_completed_total",
		Help: "the number of partitions whose writer finished successfully",
	})

	partitionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbxfer_partition_errors_total",
		Help: "the number of partitions that returned an error from their worker",
	})

	cellConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbxfer_cell_conversions_total",
		Help: "the number of columns dispatched through a given (src_tag, dst_tag) rule",
	}, []string{"src_tag", "dst_tag"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dbxfer_run_duration_seconds",
		Help:    "wall-clock duration of a Dispatcher.Run call",
		Buckets: latencyBuckets,
	})
)
