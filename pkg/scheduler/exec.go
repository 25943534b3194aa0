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
	"bytes"
	"encoding/json"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/jeffkinnison/shadho/pkg/searchspace"
)

// NewExecDispatcher returns a LocalDispatcher whose objective runs a user
// command once per trial. The trial's hyperparameters are written to the
// command's stdin as JSON; the command prints its result to stdout, either
// a bare number or a JSON object of metrics.
func NewExecDispatcher(command string, args []string, workers int) *LocalDispatcher {
	return NewLocalDispatcher(execObjective(command, args), workers)
}

func execObjective(command string, args []string) Objective {
	return func(params searchspace.Value) (float64, map[string]searchspace.Value, error) {
		input, err := json.Marshal(params)
		if err != nil {
			return 0, nil, errors.Wrap(err, "failed to encode params")
		}

		cmd := exec.Command(command, args...)
		cmd.Stdin = bytes.NewReader(input)
		output, err := cmd.Output()
		if err != nil {
			return 0, nil, errors.Wrapf(err, "command %v failed", command)
		}
		return parseObjectiveOutput(output)
	}
}

// parseObjectiveOutput accepts either a bare numeric loss or a JSON object
// of metrics containing a "loss" field.
func parseObjectiveOutput(output []byte) (float64, map[string]searchspace.Value, error) {
	output = bytes.TrimSpace(output)

	var loss float64
	if err := json.Unmarshal(output, &loss); err == nil {
		return loss, nil, nil
	}

	var metrics map[string]searchspace.Value
	if err := json.Unmarshal(output, &metrics); err != nil {
		return 0, nil, errors.Errorf(
			"command output %q is neither a number nor a metrics object",
			output)
	}
	v, ok := metrics[DefaultResultOptimizeKey]
	if !ok || v.Kind() != searchspace.NumberValue {
		return 0, nil, errors.Errorf(
			"command output has no numeric %q field", DefaultResultOptimizeKey)
	}
	return v.Number(), metrics, nil
}
