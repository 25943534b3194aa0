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
	"testing"

	"github.com/stretchr/testify/suite"
)

type PriorityTestSuite struct {
	suite.Suite

	rng *rand.Rand
}

func (suite *PriorityTestSuite) SetupTest() {
	suite.rng = rand.New(rand.NewSource(7))
}

func TestPriority(t *testing.T) {
	suite.Run(t, new(PriorityTestSuite))
}

func (suite *PriorityTestSuite) TestTooFewTrialsScoresZero() {
	e := NewGPEstimator(suite.rng)
	suite.Equal(float64(0), e.Estimate(nil, nil))
	suite.Equal(float64(0), e.Estimate(
		[][]float64{{1}}, []float64{0.5}))
}

func (suite *PriorityTestSuite) TestMismatchedRowsScoreZero() {
	e := NewGPEstimator(suite.rng)
	suite.Equal(float64(0), e.Estimate(
		[][]float64{{1}, {2}}, []float64{0.5}))
}

func (suite *PriorityTestSuite) TestEstimateIsFinite() {
	e := NewGPEstimator(suite.rng)

	features := make([][]float64, 30)
	losses := make([]float64, 30)
	for i := range features {
		x := suite.rng.Float64() * math.Pi
		features[i] = []float64{x}
		losses[i] = math.Sin(3 * x)
	}

	score := e.Estimate(features, losses)
	suite.False(math.IsNaN(score))
	suite.False(math.IsInf(score, 0))
	suite.True(score >= 0)
}

func (suite *PriorityTestSuite) TestGPFitMatchesSampleSize() {
	gp := newGaussianProcess(1.0)
	err := gp.fit(
		[][]float64{{0}, {1}, {2}},
		[]float64{0, 1, 0})
	suite.NoError(err)
	suite.True(gp.lengthScale >= lengthScaleMin)
	suite.True(gp.lengthScale <= lengthScaleMax)
}

func (suite *PriorityTestSuite) TestGPFitRejectsEmptySample() {
	gp := newGaussianProcess(1.0)
	suite.Error(gp.fit(nil, nil))
	suite.Error(gp.fit([][]float64{{1}}, []float64{1, 2}))
}

func (suite *PriorityTestSuite) TestCholeskySolveRoundTrip() {
	// A simple symmetric positive definite system.
	m := [][]float64{
		{4, 2},
		{2, 3},
	}
	l, ok := cholesky(m)
	suite.True(ok)

	x := solveCholesky(l, []float64{8, 7})
	// Verify M x = y.
	suite.InDelta(8, m[0][0]*x[0]+m[0][1]*x[1], 1e-9)
	suite.InDelta(7, m[1][0]*x[0]+m[1][1]*x[1], 1e-9)
}

func (suite *PriorityTestSuite) TestCholeskyRejectsIndefinite() {
	_, ok := cholesky([][]float64{
		{1, 2},
		{2, 1},
	})
	suite.False(ok)
}

func (suite *PriorityTestSuite) TestNormalize() {
	y := normalize([]float64{1, 2, 3})
	var mean float64
	for _, v := range y {
		mean += v
	}
	suite.InDelta(0, mean, 1e-9)
	suite.InDelta(-y[0], y[2], 1e-9)
}

func (suite *PriorityTestSuite) TestNormalizeConstant() {
	suite.Equal([]float64{0, 0, 0}, normalize([]float64{5, 5, 5}))
}
