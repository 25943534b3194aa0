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
	"context"
	"reflect"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeffkinnison/shadho/pkg/common/queue"
	"github.com/jeffkinnison/shadho/pkg/searchspace"
)

const localQueueSize = 1024

// Objective is an in-process objective function: given one trial's
// hyperparameters it returns the loss and any extra metrics.
type Objective func(params searchspace.Value) (float64, map[string]searchspace.Value, error)

type localTask struct {
	tag    string
	params searchspace.Value
}

// LocalDispatcher runs trials in-process on a pool of goroutines. It exists
// for single-machine searches and tests; distributed execution belongs to
// an external work-queue master behind the same TaskDispatcher contract.
type LocalDispatcher struct {
	objective   Objective
	tasks       queue.Queue
	completions queue.Queue
	stopChan    chan struct{}
}

// NewLocalDispatcher starts workers goroutines evaluating the objective.
func NewLocalDispatcher(objective Objective, workers int) *LocalDispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &LocalDispatcher{
		objective: objective,
		tasks: queue.NewQueue(
			"local-tasks",
			reflect.TypeOf(localTask{}),
			localQueueSize),
		completions: queue.NewQueue(
			"local-completions",
			reflect.TypeOf(Completion{}),
			localQueueSize),
		stopChan: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Dispatch queues one trial for evaluation. The resource hint is ignored:
// every local worker is equivalent.
func (d *LocalDispatcher) Dispatch(
	_ context.Context,
	tag string,
	params searchspace.Value,
	_ string) error {
	return d.tasks.Enqueue(&localTask{tag: tag, params: params})
}

// AwaitCompletion returns the next finished trial, or nil after
// pollTimeout.
func (d *LocalDispatcher) AwaitCompletion(
	_ context.Context,
	pollTimeout time.Duration) (*Completion, error) {
	item, err := d.completions.Dequeue(pollTimeout)
	if err != nil {
		if _, ok := err.(queue.DequeueTimeOutError); ok {
			return nil, nil
		}
		return nil, err
	}
	return item.(*Completion), nil
}

// Stop shuts the worker pool down. Queued tasks are abandoned.
func (d *LocalDispatcher) Stop() {
	close(d.stopChan)
}

func (d *LocalDispatcher) work() {
	for {
		select {
		case <-d.stopChan:
			return
		default:
		}

		item, err := d.tasks.Dequeue(100 * time.Millisecond)
		if err != nil {
			continue
		}
		task := item.(*localTask)

		loss, extra, err := d.objective(task.params)
		completion := &Completion{Tag: task.tag}
		if err != nil {
			log.WithError(err).WithField("tag", task.tag).
				Warn("Objective failed")
			completion.Failed = true
			completion.Retryable = true
		} else {
			completion.Loss = &loss
			completion.Extra = extra
		}
		if err := d.completions.Enqueue(completion); err != nil {
			log.WithError(err).Error("Dropping completion, queue is full")
		}
	}
}
