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

package main

import (
	"github.com/jeffkinnison/shadho/pkg/common/metrics"
	"github.com/jeffkinnison/shadho/pkg/scheduler"
	"github.com/jeffkinnison/shadho/pkg/storage/mysql"
)

const (
	backendMemory = "memory"
	backendMySQL  = "mysql"
)

// Config holds all configs to run a search.
type Config struct {
	Scheduler      scheduler.Config     `yaml:"scheduler"`
	Storage        StorageConfig        `yaml:"storage"`
	Metrics        metrics.Config       `yaml:"metrics"`
	ComputeClasses []ComputeClassConfig `yaml:"compute_classes"`
}

// StorageConfig selects and configures the search state backend.
type StorageConfig struct {
	// Backend is "memory" (default) or "mysql".
	Backend string `yaml:"backend" validate:"regexp=^(memory|mysql)?$"`

	// Checkpoint is the JSON snapshot path of the memory backend. Empty
	// disables checkpointing.
	Checkpoint string `yaml:"checkpoint"`

	MySQL mysql.Config `yaml:"mysql"`
}

// ComputeClassConfig describes one group of equivalent workers.
type ComputeClassConfig struct {
	Name     string  `yaml:"name" validate:"nonzero"`
	Resource string  `yaml:"resource"`
	Value    float64 `yaml:"value"`

	// MaxQueuedTasks overrides the scheduler-wide default for this class.
	MaxQueuedTasks int `yaml:"max_queued_tasks"`
}
