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

package storage_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/jeffkinnison/shadho/pkg/searchspace"
	"github.com/jeffkinnison/shadho/pkg/storage"
	"github.com/jeffkinnison/shadho/pkg/storage/memstore"
)

// fixedEstimator returns a constant sensitivity score.
type fixedEstimator struct {
	score float64
}

func (e *fixedEstimator) Estimate(_ [][]float64, _ []float64) float64 {
	return e.score
}

type SearchDBTestSuite struct {
	suite.Suite

	ctx context.Context
	db  *storage.SearchDB
	rng *rand.Rand
}

func (suite *SearchDBTestSuite) SetupTest() {
	store, err := memstore.NewStore("")
	suite.NoError(err)

	suite.ctx = context.Background()
	suite.db = storage.NewSearchDB(store, &fixedEstimator{score: 2.5}, 2)
	suite.rng = rand.New(rand.NewSource(99))
}

func TestSearchDB(t *testing.T) {
	suite.Run(t, new(SearchDBTestSuite))
}

func (suite *SearchDBTestSuite) TestMakeForestOneModelPerAlternative() {
	models, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"exclusive": true,
		"svm":       searchspace.Tree{"c": searchspace.Uniform(0, 1)},
		"rf":        searchspace.Tree{"depth": searchspace.Randint(1, 5)},
	})
	suite.NoError(err)
	suite.Len(models, 2)
	for _, model := range models {
		suite.Len(model.Domains, 1)
		suite.NotNil(model.Complexity)
	}
}

func (suite *SearchDBTestSuite) TestMakeForestEmptySpec() {
	_, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{"exclusive": true})
	suite.Error(err)
}

func (suite *SearchDBTestSuite) TestGenerateRoundTrip() {
	models, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"a": searchspace.Tree{"b": searchspace.Uniform(0, 1)},
	})
	suite.NoError(err)
	suite.Len(models, 1)

	resultID, params, err := suite.db.Generate(suite.ctx, models[0].ID, suite.rng)
	suite.NoError(err)

	// Params nest by the slash-separated path.
	suite.Equal(searchspace.ObjectValue, params.Kind())
	a, ok := params.Object()["a"].(map[string]interface{})
	suite.True(ok)
	b, ok := a["b"].(searchspace.Value)
	suite.True(ok)
	suite.Equal(searchspace.NumberValue, b.Kind())
	suite.True(b.Number() >= 0 && b.Number() <= 1)

	// Exactly one value row, referencing the domain and the result.
	result, err := suite.db.Store().GetResult(suite.ctx, resultID)
	suite.NoError(err)
	suite.Len(result.Values, 1)
	suite.Equal(1, result.Submissions)

	record, err := suite.db.Store().GetValue(suite.ctx, result.Values[0])
	suite.NoError(err)
	suite.Equal(models[0].Domains[0], record.DomainID)
	suite.Equal(resultID, record.ResultID)
	suite.True(b.Equal(record.Value))
	suite.Equal(b.Number(), record.Numeric)

	model, err := suite.db.Store().GetModel(suite.ctx, models[0].ID)
	suite.NoError(err)
	suite.Equal([]string{resultID}, model.Results)
}

func (suite *SearchDBTestSuite) TestGenerateEncodesNumericFeature() {
	models, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"optimizer": searchspace.Choice("adam", "sgd"),
	})
	suite.NoError(err)

	resultID, params, err := suite.db.Generate(suite.ctx, models[0].ID, suite.rng)
	suite.NoError(err)

	sampled, ok := params.Object()["optimizer"].(searchspace.Value)
	suite.True(ok)

	// Discrete values are stored with their index among the choices as the
	// numeric feature.
	result, err := suite.db.Store().GetResult(suite.ctx, resultID)
	suite.NoError(err)
	record, err := suite.db.Store().GetValue(suite.ctx, result.Values[0])
	suite.NoError(err)
	if sampled.Text() == "adam" {
		suite.Equal(0.0, record.Numeric)
	} else {
		suite.Equal("sgd", sampled.Text())
		suite.Equal(1.0, record.Numeric)
	}
}

func (suite *SearchDBTestSuite) TestGenerateUnknownModel() {
	_, _, err := suite.db.Generate(suite.ctx, "nope", suite.rng)
	suite.Error(err)
	suite.IsType(&storage.ModelNotFoundError{}, err)
}

func (suite *SearchDBTestSuite) TestRegisterResultSignalsEveryNthCompletion() {
	models, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"x": searchspace.Uniform(0, 1),
	})
	suite.NoError(err)

	// The update frequency is 2: the second and fourth completions must
	// recompute the priority and signal reassignment.
	expect := []bool{false, true, false, true}
	for i, want := range expect {
		resultID, _, err := suite.db.Generate(suite.ctx, models[0].ID, suite.rng)
		suite.NoError(err)

		reassign, err := suite.db.RegisterResult(
			suite.ctx, resultID, float64(i), nil)
		suite.NoError(err)
		suite.Equal(want, reassign)
	}

	model, err := suite.db.Store().GetModel(suite.ctx, models[0].ID)
	suite.NoError(err)
	suite.Equal([]float64{2.5, 2.5}, model.Priority)
}

func (suite *SearchDBTestSuite) TestResubmitIncrementsSubmissions() {
	models, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"x": searchspace.Uniform(0, 1),
	})
	suite.NoError(err)

	resultID, params, err := suite.db.Generate(suite.ctx, models[0].ID, suite.rng)
	suite.NoError(err)

	submissions, err := suite.db.RegisterFailure(suite.ctx, resultID)
	suite.NoError(err)
	suite.Equal(1, submissions)

	again, submissions, err := suite.db.Resubmit(suite.ctx, resultID)
	suite.NoError(err)
	suite.Equal(2, submissions)
	suite.True(params.Equal(again))

	submissions, err = suite.db.RegisterFailure(suite.ctx, resultID)
	suite.NoError(err)
	suite.Equal(2, submissions)
}

func (suite *SearchDBTestSuite) TestOptimalNoneFound() {
	_, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"x": searchspace.Uniform(0, 1),
	})
	suite.NoError(err)

	optimum, found, err := suite.db.Optimal(suite.ctx)
	suite.NoError(err)
	suite.False(found)
	suite.Nil(optimum)
}

func (suite *SearchDBTestSuite) TestOptimalPicksMinimumLoss() {
	models, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"x": searchspace.Uniform(0, 1),
	})
	suite.NoError(err)

	losses := []float64{0.8, 0.1, 0.5}
	var bestParams searchspace.Value
	for _, loss := range losses {
		resultID, params, err := suite.db.Generate(
			suite.ctx, models[0].ID, suite.rng)
		suite.NoError(err)
		if loss == 0.1 {
			bestParams = params
		}
		_, err = suite.db.RegisterResult(suite.ctx, resultID, loss,
			map[string]searchspace.Value{
				"acc": searchspace.NumberOf(1 - loss),
			})
		suite.NoError(err)
	}

	optimum, found, err := suite.db.Optimal(suite.ctx)
	suite.NoError(err)
	suite.True(found)
	suite.Equal(0.1, optimum.Loss)
	suite.True(bestParams.Equal(optimum.Params))
	suite.Equal(searchspace.NumberOf(0.9), optimum.Extra["acc"])
}

func (suite *SearchDBTestSuite) TestGenerateExhaustedGrid() {
	models, err := suite.db.MakeForest(suite.ctx, searchspace.Tree{
		"depth": searchspace.ExhaustiveList(1, 2),
	})
	suite.NoError(err)

	for i := 0; i < 2; i++ {
		_, _, err := suite.db.Generate(suite.ctx, models[0].ID, suite.rng)
		suite.NoError(err)
	}

	_, _, err = suite.db.Generate(suite.ctx, models[0].ID, suite.rng)
	suite.Error(err)
	suite.IsType(searchspace.ErrExhausted{}, err)
}
