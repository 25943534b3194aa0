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

package placement

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeffkinnison/shadho/pkg/storage"
)

// Assigner ranks models by the enabled heuristics and distributes them
// across compute classes.
type Assigner struct {
	useComplexity bool
	usePriority   bool

	metrics *Metrics
}

// NewAssigner creates an Assigner applying the enabled heuristics.
func NewAssigner(useComplexity, usePriority bool, metrics *Metrics) *Assigner {
	return &Assigner{
		useComplexity: useComplexity,
		usePriority:   usePriority,
		metrics:       metrics,
	}
}

// Rank orders models from most to least promising and stamps each model's
// composite rank. The rank starts at 1; each enabled heuristic sorts the
// models descending by its value and multiplies the rank by the model's
// position in that order, so a model that both heuristics place first keeps
// rank 1 and models both place last accumulate the largest ranks. A smaller
// rank means the model deserves more trials.
func (a *Assigner) Rank(models []*storage.Model) []*storage.Model {
	ranked := append([]*storage.Model(nil), models...)
	ranks := make(map[string]int, len(ranked))
	for _, model := range ranked {
		ranks[model.ID] = 1
	}

	if a.useComplexity {
		sort.SliceStable(ranked, func(i, j int) bool {
			return complexityOf(ranked[i]) > complexityOf(ranked[j])
		})
		for pos, model := range ranked {
			ranks[model.ID] *= pos + 1
		}
	}

	if a.usePriority {
		sort.SliceStable(ranked, func(i, j int) bool {
			return priorityOf(ranked[i]) > priorityOf(ranked[j])
		})
		for pos, model := range ranked {
			ranks[model.ID] *= pos + 1
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranks[ranked[i].ID] < ranks[ranked[j].ID]
	})
	for _, model := range ranked {
		rank := ranks[model.ID]
		model.Rank = &rank
	}

	if a.metrics != nil {
		a.metrics.ModelsRanked.Inc(int64(len(ranked)))
	}
	return ranked
}

// Assign ranks the models and rebuilds every class's assignments. With a
// single class all models land there; otherwise the longer of the two lists
// is walked in order and spread over the shorter one, with each element
// also assigned to the neighboring bucket so losing one class never orphans
// a model.
func (a *Assigner) Assign(models []*storage.Model, ccs []*ComputeClass) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.AssignmentRuns.Inc(1)
			a.metrics.AssignDuration.Record(time.Since(start))
		}
	}()

	for _, cc := range ccs {
		cc.clear()
	}
	if len(models) == 0 || len(ccs) == 0 {
		return
	}

	ranked := a.Rank(models)

	if len(ccs) == 1 {
		// A single class always samples uniformly: with no placement
		// choice to make, the rank weighting adds nothing.
		for _, model := range ranked {
			ccs[0].add(model.ID)
		}
		ccs[0].Probabilities = uniform(len(ccs[0].Assignments))
		return
	}

	if len(ranked) >= len(ccs) {
		step := float64(len(ranked)) / float64(len(ccs))
		for i, model := range ranked {
			j := int(float64(i) / step)
			ccs[j].add(model.ID)
			if n := neighbor(i, j, len(ranked), len(ccs)); n != j {
				ccs[n].add(model.ID)
			}
		}
	} else {
		step := float64(len(ccs)) / float64(len(ranked))
		for i, cc := range ccs {
			j := int(float64(i) / step)
			cc.add(ranked[j].ID)
			if n := neighbor(i, j, len(ccs), len(ranked)); n != j {
				cc.add(ranked[n].ID)
			}
		}
	}

	for _, cc := range ccs {
		cc.Probabilities = a.probabilities(len(cc.Assignments))
		log.WithFields(log.Fields{
			"compute_class": cc.Name,
			"models":        len(cc.Assignments),
		}).Debug("Assigned models to compute class")
	}
}

// neighbor picks the redundant bucket for position i of the walk: the next
// bucket before the midpoint, the previous one after, clamped to valid
// buckets.
func neighbor(i, j, largerLen, smallerLen int) int {
	n := j + 1
	if i >= largerLen/2 {
		n = j - 1
	}
	if n < 0 {
		n = j + 1
	}
	if n > smallerLen-1 {
		n = j - 1
	}
	if n < 0 {
		return j
	}
	return n
}

// probabilities returns the sampling weights for n assigned models in rank
// order: reverse-rank triangular when both heuristics contribute to the
// order, uniform otherwise.
func (a *Assigner) probabilities(n int) []float64 {
	if n == 0 {
		return nil
	}
	if a.useComplexity && a.usePriority {
		probs := make([]float64, n)
		total := float64(n*(n+1)) / 2
		for i := range probs {
			probs[i] = float64(n-i) / total
		}
		return probs
	}
	return uniform(n)
}

func uniform(n int) []float64 {
	if n == 0 {
		return nil
	}
	probs := make([]float64, n)
	for i := range probs {
		probs[i] = 1 / float64(n)
	}
	return probs
}

func complexityOf(m *storage.Model) float64 {
	if m.Complexity == nil {
		return 0
	}
	return *m.Complexity
}

// priorityOf is the latest entry of the model's priority series.
func priorityOf(m *storage.Model) float64 {
	if len(m.Priority) == 0 {
		return 0
	}
	return m.Priority[len(m.Priority)-1]
}
