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
	"math"

	"github.com/pkg/errors"
)

const (
	// jitter keeps the kernel matrix positive definite in the presence of
	// duplicate rows.
	jitter = 1e-8

	// Multiplicative step of the length-scale search and how far it is
	// allowed to shrink before the search stops.
	lengthScaleStep    = 1.5
	lengthScaleMinStep = 1.001

	// Hard bounds on the fitted length scale.
	lengthScaleMin = 1e-3
	lengthScaleMax = 1e3
)

// gaussianProcess is a minimal Gaussian-process regressor with an RBF
// kernel. Its only job here is fitting the kernel's characteristic length
// scale to a feature/label sample; predictions are never needed.
type gaussianProcess struct {
	x [][]float64
	y []float64

	lengthScale float64
}

func newGaussianProcess(lengthScale float64) *gaussianProcess {
	return &gaussianProcess{lengthScale: lengthScale}
}

// fit stores the normalized training sample and locally optimizes the
// length scale by maximizing the log marginal likelihood, starting from the
// initial length scale the process was created with.
func (gp *gaussianProcess) fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.Errorf(
			"gp: feature rows (%d) and labels (%d) must match and be non-empty",
			len(x), len(y))
	}

	gp.x = x
	gp.y = normalize(y)

	best := gp.lengthScale
	bestLML := gp.logMarginalLikelihood(best)

	// Greedy multiplicative line search. Step up or down while the
	// likelihood improves, shrinking the step when neither direction does.
	step := lengthScaleStep
	for step > lengthScaleMinStep {
		improved := false
		for _, cand := range []float64{best * step, best / step} {
			if cand < lengthScaleMin || cand > lengthScaleMax {
				continue
			}
			if lml := gp.logMarginalLikelihood(cand); lml > bestLML {
				best, bestLML = cand, lml
				improved = true
			}
		}
		if !improved {
			step = math.Sqrt(step)
		}
	}

	gp.lengthScale = best
	return nil
}

// logMarginalLikelihood evaluates the sample's log marginal likelihood under
// an RBF kernel with the given length scale.
func (gp *gaussianProcess) logMarginalLikelihood(lengthScale float64) float64 {
	n := len(gp.x)
	k := make([][]float64, n)
	for i := range k {
		k[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			v := rbf(gp.x[i], gp.x[j], lengthScale)
			k[i][j] = v
			k[j][i] = v
		}
		k[i][i] += jitter
	}

	chol, ok := cholesky(k)
	if !ok {
		return math.Inf(-1)
	}

	// alpha = K^-1 y via forward and back substitution.
	alpha := solveCholesky(chol, gp.y)

	lml := 0.0
	for i := 0; i < n; i++ {
		lml -= 0.5 * gp.y[i] * alpha[i]
		lml -= math.Log(chol[i][i])
	}
	lml -= 0.5 * float64(n) * math.Log(2*math.Pi)
	return lml
}

// rbf is the radial basis function kernel
// k(a, b) = exp(-||a-b||^2 / (2 l^2)).
func rbf(a, b []float64, lengthScale float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Exp(-sum / (2 * lengthScale * lengthScale))
}

// cholesky returns the lower-triangular factor L of a symmetric matrix,
// with ok=false when the matrix is not positive definite.
func cholesky(m [][]float64) ([][]float64, bool) {
	n := len(m)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := m[i][j]
			for p := 0; p < j; p++ {
				sum -= l[i][p] * l[j][p]
			}
			if i == j {
				if sum <= 0 {
					return nil, false
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, true
}

// solveCholesky solves (L L^T) x = y given the lower factor L.
func solveCholesky(l [][]float64, y []float64) []float64 {
	n := len(y)

	// Forward substitution: L z = y.
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := y[i]
		for j := 0; j < i; j++ {
			sum -= l[i][j] * z[j]
		}
		z[i] = sum / l[i][i]
	}

	// Back substitution: L^T x = z.
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= l[j][i] * x[j]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

// normalize centers and scales labels to zero mean and unit variance. A
// constant label vector normalizes to all zeros.
func normalize(y []float64) []float64 {
	n := float64(len(y))
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range y {
		variance += (v - mean) * (v - mean)
	}
	variance /= n

	std := math.Sqrt(variance)
	out := make([]float64, len(y))
	if std == 0 {
		return out
	}
	for i, v := range y {
		out[i] = (v - mean) / std
	}
	return out
}
