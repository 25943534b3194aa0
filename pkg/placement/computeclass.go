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

// Package placement ranks search models and spreads them across compute
// classes, groups of workers with equivalent hardware.
package placement

import (
	"math/rand"

	"github.com/pborman/uuid"
)

// DefaultClassName names the catch-all class synthesized when the user does
// not describe their hardware.
const DefaultClassName = "all"

// ComputeClass is a group of interchangeable workers, identified by a
// resource predicate like "gpu8" or "cpu16". Models are assigned to classes
// and sampled by weight when the class has queue capacity.
type ComputeClass struct {
	ID   string
	Name string

	// Resource and Value describe the hardware predicate workers must
	// satisfy to join this class, e.g. Resource="gpus", Value=8.
	Resource string
	Value    float64

	// MaxQueuedTasks caps the work queued to this class; CurrentTasks is
	// the scheduler's count of in-flight trials.
	MaxQueuedTasks int
	CurrentTasks   int

	// Assignments lists assigned model ids in rank order, with parallel
	// sampling probabilities. Both are rebuilt on every assignment run.
	Assignments   []string
	Probabilities []float64
}

// NewComputeClass creates a class for workers matching the resource
// predicate.
func NewComputeClass(name, resource string, value float64, maxQueuedTasks int) *ComputeClass {
	return &ComputeClass{
		ID:             uuid.New(),
		Name:           name,
		Resource:       resource,
		Value:          value,
		MaxQueuedTasks: maxQueuedTasks,
	}
}

// DefaultClass creates the catch-all class that admits any worker.
func DefaultClass(maxQueuedTasks int) *ComputeClass {
	return NewComputeClass(DefaultClassName, "", 0, maxQueuedTasks)
}

// clear drops all model assignments.
func (cc *ComputeClass) clear() {
	cc.Assignments = cc.Assignments[:0]
	cc.Probabilities = cc.Probabilities[:0]
}

// add appends a model, skipping duplicates from neighbor redundancy.
func (cc *ComputeClass) add(modelID string) {
	for _, id := range cc.Assignments {
		if id == modelID {
			return
		}
	}
	cc.Assignments = append(cc.Assignments, modelID)
}

// SampleModel draws one assigned model id by probability weight. ok is
// false when nothing is assigned.
func (cc *ComputeClass) SampleModel(rng *rand.Rand) (string, bool) {
	if len(cc.Assignments) == 0 {
		return "", false
	}
	r := rng.Float64()
	var cum float64
	for i, p := range cc.Probabilities {
		cum += p
		if r < cum {
			return cc.Assignments[i], true
		}
	}
	return cc.Assignments[len(cc.Assignments)-1], true
}
