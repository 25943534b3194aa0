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
	"math/rand"

	log "github.com/sirupsen/logrus"
)

const (
	// Number of resampled fits per priority estimate.
	priorityRepetitions = 50

	// Fraction of the sample each fit trains on.
	trainFraction = 0.8

	// Bounds of the uniformly drawn initial length scale.
	initLengthScaleLo = 0.1
	initLengthScaleHi = 2.0
)

// SensitivityEstimator scores how strongly a model's observed losses react
// to its hyperparameter values. Larger scores mean the loss surface is more
// sensitive and the model is worth more trials.
type SensitivityEstimator interface {
	// Estimate computes a sensitivity score from feature rows (one row
	// per completed trial, one column per domain) and their losses.
	Estimate(features [][]float64, losses []float64) float64
}

// GPEstimator estimates sensitivity by repeatedly fitting Gaussian-process
// regressors to random subsamples of the trial history and measuring how
// much the fitted inverse length scale swings between fits.
type GPEstimator struct {
	rng *rand.Rand
}

// NewGPEstimator creates a GPEstimator drawing its subsamples and initial
// length scales from the given source.
func NewGPEstimator(rng *rand.Rand) *GPEstimator {
	return &GPEstimator{rng: rng}
}

// Estimate runs the resampled fits and returns the spread of the recorded
// inverse length scales. Fewer than two trials score zero: there is nothing
// to fit against.
func (e *GPEstimator) Estimate(features [][]float64, losses []float64) float64 {
	n := len(features)
	if n < 2 || n != len(losses) {
		return 0
	}

	trainSize := int(math.Ceil(trainFraction * float64(n)))
	if trainSize < 2 {
		trainSize = 2
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	for rep := 0; rep < priorityRepetitions; rep++ {
		perm := e.rng.Perm(n)
		x := make([][]float64, trainSize)
		y := make([]float64, trainSize)
		for i := 0; i < trainSize; i++ {
			x[i] = features[perm[i]]
			y[i] = losses[perm[i]]
		}

		init := initLengthScaleLo +
			e.rng.Float64()*(initLengthScaleHi-initLengthScaleLo)
		gp := newGaussianProcess(init)
		if err := gp.fit(x, y); err != nil {
			log.WithError(err).Warn("Skipping sensitivity fit")
			continue
		}

		inv := 1 / gp.lengthScale
		if inv < lo {
			lo = inv
		}
		if inv > hi {
			hi = inv
		}
	}

	if math.IsInf(lo, 1) {
		return 0
	}
	return math.Abs(hi - lo)
}
