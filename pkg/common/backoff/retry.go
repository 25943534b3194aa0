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

package backoff

import (
	"time"
)

// Retriable is a function returning an error which can be retried.
type Retriable func() error

// Retry will retry the given function until it succeeded or hit maximum
// number of retries then return last error.
func Retry(f Retriable, p RetryPolicy) error {
	var err error

	for attempt := 1; ; attempt++ {
		// function executed successfully. no need to retry.
		if err = f(); err == nil {
			return nil
		}

		backoff := p.CalculateNextDelay(attempt)
		if backoff == done {
			return err
		}

		time.Sleep(backoff)
	}
}
