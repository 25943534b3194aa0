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

package heuristics

import (
	"github.com/jeffkinnison/shadho/pkg/searchspace"
)

// Complexity approximates the size of a single domain's search space.
// Continuous domains score 2 plus the width of the interval holding 99.99%
// of their probability mass. Discrete and exhaustive domains with n choices
// score 2 - 1/n, approaching 2 as the list grows. Constants and empty lists
// score 1.
func Complexity(d searchspace.Domain) float64 {
	switch d.Kind {
	case searchspace.KindContinuous:
		return 2 + d.Width()
	case searchspace.KindDiscrete, searchspace.KindExhaustive:
		if n := len(d.Choices); n > 0 {
			return 2.0 - 1.0/float64(n)
		}
		return 1
	default:
		return 1
	}
}

// ModelComplexity is the sum of the complexities of a model's domains.
func ModelComplexity(domains []searchspace.Domain) float64 {
	var total float64
	for _, d := range domains {
		total += Complexity(d)
	}
	return total
}
