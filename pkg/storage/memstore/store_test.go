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

package memstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/jeffkinnison/shadho/pkg/searchspace"
	"github.com/jeffkinnison/shadho/pkg/storage"
)

type StoreTestSuite struct {
	suite.Suite

	ctx   context.Context
	store *Store
}

func (suite *StoreTestSuite) SetupTest() {
	store, err := NewStore("")
	suite.NoError(err)
	suite.ctx = context.Background()
	suite.store = store
}

func TestStore(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) TestModelLifecycle() {
	model := &storage.Model{ID: "m1", Domains: []string{"d1"}}
	suite.NoError(suite.store.CreateModel(suite.ctx, model))

	got, err := suite.store.GetModel(suite.ctx, "m1")
	suite.NoError(err)
	suite.Equal(model, got)

	complexity := 1.75
	got.Complexity = &complexity
	suite.NoError(suite.store.UpdateModel(suite.ctx, got))

	updated, err := suite.store.GetModel(suite.ctx, "m1")
	suite.NoError(err)
	suite.Equal(&complexity, updated.Complexity)

	all, err := suite.store.GetAllModels(suite.ctx)
	suite.NoError(err)
	suite.Len(all, 1)
}

func (suite *StoreTestSuite) TestNotFoundErrors() {
	_, err := suite.store.GetModel(suite.ctx, "missing")
	suite.IsType(&storage.ModelNotFoundError{}, err)

	_, err = suite.store.GetDomain(suite.ctx, "missing")
	suite.IsType(&storage.DomainNotFoundError{}, err)

	_, err = suite.store.GetResult(suite.ctx, "missing")
	suite.IsType(&storage.ResultNotFoundError{}, err)

	_, err = suite.store.GetValue(suite.ctx, "missing")
	suite.IsType(&storage.ValueNotFoundError{}, err)

	err = suite.store.UpdateModel(suite.ctx, &storage.Model{ID: "missing"})
	suite.IsType(&storage.ModelNotFoundError{}, err)
}

func (suite *StoreTestSuite) TestReadsReturnCopies() {
	suite.NoError(suite.store.CreateModel(suite.ctx, &storage.Model{ID: "m1"}))

	first, err := suite.store.GetModel(suite.ctx, "m1")
	suite.NoError(err)
	first.Results = append(first.Results, "r1")

	second, err := suite.store.GetModel(suite.ctx, "m1")
	suite.NoError(err)
	suite.Empty(second.Results)
}

func (suite *StoreTestSuite) TestCheckpointAndResume() {
	path := filepath.Join(suite.T().TempDir(), "checkpoint.json")
	store, err := NewStore(path)
	suite.NoError(err)

	loss := 0.25
	suite.NoError(store.CreateModel(suite.ctx, &storage.Model{
		ID:      "m1",
		Domains: []string{"d1"},
		Results: []string{"r1"},
	}))
	suite.NoError(store.CreateDomain(suite.ctx, &storage.Domain{
		ID:      "d1",
		ModelID: "m1",
		Def:     *searchspace.Uniform(0, 1),
	}))
	suite.NoError(store.CreateResult(suite.ctx, &storage.Result{
		ID:          "r1",
		ModelID:     "m1",
		Values:      []string{"v1"},
		Loss:        &loss,
		Submissions: 1,
	}))
	suite.NoError(store.CreateValue(suite.ctx, &storage.ValueRecord{
		ID:       "v1",
		DomainID: "d1",
		ResultID: "r1",
		Value:    searchspace.NumberOf(0.5),
		Numeric:  0.5,
	}))
	suite.NoError(store.Checkpoint(suite.ctx))

	resumed, err := NewStore(path)
	suite.NoError(err)

	model, err := resumed.GetModel(suite.ctx, "m1")
	suite.NoError(err)
	suite.Equal([]string{"r1"}, model.Results)

	result, err := resumed.GetResult(suite.ctx, "r1")
	suite.NoError(err)
	suite.NotNil(result.Loss)
	suite.Equal(0.25, *result.Loss)

	record, err := resumed.GetValue(suite.ctx, "v1")
	suite.NoError(err)
	suite.True(searchspace.NumberOf(0.5).Equal(record.Value))
}

func (suite *StoreTestSuite) TestCheckpointDisabledWithoutPath() {
	suite.NoError(suite.store.Checkpoint(suite.ctx))
}
