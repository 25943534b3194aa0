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

// Package scheduler drives the optimization loop: it keeps every compute
// class's queue full of trials, feeds completions back into the search
// state and reports the best trial seen.
package scheduler

import (
	"context"
	"time"

	"github.com/jeffkinnison/shadho/pkg/searchspace"
)

// Completion is the outcome of one dispatched trial.
type Completion struct {
	// Tag is the correlation tag the trial was dispatched with.
	Tag string

	// Loss is the trial's objective value, nil when the objective
	// returned only a metrics map (see Config.ResultOptimizeKey) or the
	// trial failed.
	Loss *float64

	// Extra carries any additional metrics the objective returned.
	Extra map[string]searchspace.Value

	// Failed marks the trial as unsuccessful; Retryable says whether
	// redispatching could help.
	Failed    bool
	Retryable bool
}

// TaskDispatcher runs trials on workers. It owns worker lifecycle, file
// staging and the wire protocol; the scheduler only hands over parameters
// and collects completions.
type TaskDispatcher interface {
	// Dispatch submits one trial. resourceHint names the compute class
	// the trial was queued to, for dispatchers that route by hardware.
	Dispatch(ctx context.Context, tag string, params searchspace.Value, resourceHint string) error

	// AwaitCompletion blocks for the next completion, up to pollTimeout.
	// A nil completion with nil error means the poll timed out.
	AwaitCompletion(ctx context.Context, pollTimeout time.Duration) (*Completion, error)
}
