// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"github.com/uber-go/tally"
)

// Metrics is the struct containing all the counters that track the trial
// lifecycle inside the control loop.
type Metrics struct {
	Dispatched  tally.Counter
	Succeeded   tally.Counter
	Failed      tally.Counter
	Resubmitted tally.Counter
	Dropped     tally.Counter
	Checkpoints tally.Counter

	QueueDepth tally.Gauge
}

// NewMetrics returns a new Metrics struct, with all metrics initialized and
// rooted at the given tally.Scope
func NewMetrics(scope tally.Scope) *Metrics {
	trialScope := scope.SubScope("trial")
	return &Metrics{
		Dispatched:  trialScope.Counter("dispatched"),
		Succeeded:   trialScope.Counter("succeeded"),
		Failed:      trialScope.Counter("failed"),
		Resubmitted: trialScope.Counter("resubmitted"),
		Dropped:     trialScope.Counter("dropped"),
		Checkpoints: scope.Counter("checkpoints"),
		QueueDepth:  scope.Gauge("queue_depth"),
	}
}
