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

package searchspace

import "math"

// Scaling names the post-sample transform applied to numeric samples.
type Scaling string

const (
	// ScaleLinear leaves the sampled value untouched.
	ScaleLinear Scaling = "linear"
	// ScaleLn maps a sample x to e**x.
	ScaleLn Scaling = "ln"
	// ScaleLog10 maps a sample x to 10**x.
	ScaleLog10 Scaling = "log10"
	// ScaleLog2 maps a sample x to 2**x.
	ScaleLog2 Scaling = "log2"
)

// scaleNumber applies the named scaling to a numeric sample. Unknown
// scalings behave as linear.
func scaleNumber(x float64, s Scaling) float64 {
	switch s {
	case ScaleLn:
		return math.Exp(x)
	case ScaleLog10:
		return math.Pow(10.0, x)
	case ScaleLog2:
		return math.Exp2(x)
	default:
		return x
	}
}

// scaleValue applies the scaling to numeric values and passes all other
// variants through unchanged.
func scaleValue(v Value, s Scaling) Value {
	if v.Kind() != NumberValue {
		return v
	}
	return NumberOf(scaleNumber(v.Number(), s))
}
