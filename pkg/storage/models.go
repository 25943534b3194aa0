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

package storage

import (
	"github.com/jeffkinnison/shadho/pkg/searchspace"
)

// Model is one disjoint region of the search space. It owns the domains
// produced for its region and accumulates the results of every trial
// sampled from them.
type Model struct {
	ID      string   `json:"id"`
	Domains []string `json:"domains"`
	Results []string `json:"results"`

	// Heuristic state. Complexity and Rank are nil until first computed;
	// Priority grows by one entry per recompute.
	Complexity *float64  `json:"complexity,omitempty"`
	Priority   []float64 `json:"priority,omitempty"`
	Rank       *int      `json:"rank,omitempty"`
}

// Domain is the stored form of a search dimension: the sampling definition
// plus the ids of the values drawn from it.
type Domain struct {
	ID      string             `json:"id"`
	ModelID string             `json:"model_id"`
	Def     searchspace.Domain `json:"def"`
	Values  []string           `json:"values"`
}

// ValueRecord is one sampled hyperparameter value, kept both raw and in the
// numeric form the sensitivity estimator consumes.
type ValueRecord struct {
	ID       string            `json:"id"`
	DomainID string            `json:"domain_id"`
	ResultID string            `json:"result_id"`
	Value    searchspace.Value `json:"value"`
	Numeric  float64           `json:"numeric"`
}

// Result is one trial: the values it was parameterized with and, once the
// trial finishes, the observed loss and any extra outputs.
type Result struct {
	ID      string   `json:"id"`
	ModelID string   `json:"model_id"`
	Values  []string `json:"values"`

	Loss  *float64                     `json:"loss,omitempty"`
	Extra map[string]searchspace.Value `json:"extra,omitempty"`

	// Submissions counts dispatches of this trial, used to bound
	// resubmission after worker failures.
	Submissions int `json:"submissions"`
}

// Completed reports whether the trial has reported a loss.
func (r *Result) Completed() bool {
	return r.Loss != nil
}
