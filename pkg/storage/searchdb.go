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

package storage

import (
	"context"
	"math"
	"math/rand"
	"strings"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeffkinnison/shadho/pkg/heuristics"
	"github.com/jeffkinnison/shadho/pkg/searchspace"
)

// DefaultUpdateFrequency is how many completed trials a model accumulates
// between recomputes of its priority.
const DefaultUpdateFrequency = 10

// Optimum is the best observed trial of a search.
type Optimum struct {
	Loss   float64
	Params searchspace.Value
	Extra  map[string]searchspace.Value
}

// SearchDB layers search semantics over an EntityStore: building the model
// forest from a spec, sampling trials, recording outcomes and keeping the
// per-model heuristic state current.
type SearchDB struct {
	store     EntityStore
	estimator heuristics.SensitivityEstimator

	// updateFrequency is the completed-trial period of priority
	// recomputation.
	updateFrequency int
}

// NewSearchDB creates a SearchDB over the given store. A non-positive
// updateFrequency falls back to DefaultUpdateFrequency.
func NewSearchDB(
	store EntityStore,
	estimator heuristics.SensitivityEstimator,
	updateFrequency int) *SearchDB {
	if updateFrequency <= 0 {
		updateFrequency = DefaultUpdateFrequency
	}
	return &SearchDB{
		store:           store,
		estimator:       estimator,
		updateFrequency: updateFrequency,
	}
}

// Store exposes the underlying EntityStore, mainly for checkpointing.
func (db *SearchDB) Store() EntityStore {
	return db.store
}

// MakeForest splits the spec into disjoint search trees and persists one
// model per tree, with its domains and complexity.
func (db *SearchDB) MakeForest(
	ctx context.Context,
	spec searchspace.Tree) ([]*Model, error) {
	leafSets, err := searchspace.Split(spec)
	if err != nil {
		return nil, err
	}

	models := make([]*Model, 0, len(leafSets))
	for _, leaves := range leafSets {
		model := &Model{ID: uuid.New()}
		complexity := heuristics.ModelComplexity(leaves)
		model.Complexity = &complexity

		for _, leaf := range leaves {
			domain := &Domain{
				ID:      uuid.New(),
				ModelID: model.ID,
				Def:     leaf,
			}
			if err := db.store.CreateDomain(ctx, domain); err != nil {
				return nil, errors.Wrap(err, "failed to create domain")
			}
			model.Domains = append(model.Domains, domain.ID)
		}

		if err := db.store.CreateModel(ctx, model); err != nil {
			return nil, errors.Wrap(err, "failed to create model")
		}
		models = append(models, model)
	}

	log.WithField("models", len(models)).Info("Built search forest")
	return models, nil
}

// Models returns every model in the search.
func (db *SearchDB) Models(ctx context.Context) ([]*Model, error) {
	return db.store.GetAllModels(ctx)
}

// Generate samples one value from each of the model's domains and records
// them as a new trial. It returns the trial id and the sampled
// hyperparameters nested by their slash-separated paths.
//
// ErrExhausted propagates when any domain is an exhausted grid.
func (db *SearchDB) Generate(
	ctx context.Context,
	modelID string,
	rng *rand.Rand) (string, searchspace.Value, error) {
	model, err := db.store.GetModel(ctx, modelID)
	if err != nil {
		return "", searchspace.Value{}, err
	}

	result := &Result{
		ID:          uuid.New(),
		ModelID:     model.ID,
		Submissions: 1,
	}

	sampled := make(map[string]searchspace.Value, len(model.Domains))
	for _, domainID := range model.Domains {
		domain, err := db.store.GetDomain(ctx, domainID)
		if err != nil {
			return "", searchspace.Value{}, err
		}

		v, err := domain.Def.Sample(rng)
		if err != nil {
			return "", searchspace.Value{}, err
		}

		record := &ValueRecord{
			ID:       uuid.New(),
			DomainID: domain.ID,
			ResultID: result.ID,
			Value:    v,
			Numeric:  domain.Def.ToNumeric(v),
		}
		if err := db.store.CreateValue(ctx, record); err != nil {
			return "", searchspace.Value{}, errors.Wrap(err, "failed to create value")
		}

		domain.Values = append(domain.Values, record.ID)
		if err := db.store.UpdateDomain(ctx, domain); err != nil {
			return "", searchspace.Value{}, err
		}

		result.Values = append(result.Values, record.ID)
		sampled[domain.Def.Path] = v
	}

	if err := db.store.CreateResult(ctx, result); err != nil {
		return "", searchspace.Value{}, errors.Wrap(err, "failed to create result")
	}

	model.Results = append(model.Results, result.ID)
	if err := db.store.UpdateModel(ctx, model); err != nil {
		return "", searchspace.Value{}, err
	}

	return result.ID, nestParams(sampled), nil
}

// Resubmit rebuilds the hyperparameters of an existing trial and increments
// its submission count, for redispatching after a worker failure.
func (db *SearchDB) Resubmit(
	ctx context.Context,
	resultID string) (searchspace.Value, int, error) {
	result, err := db.store.GetResult(ctx, resultID)
	if err != nil {
		return searchspace.Value{}, 0, err
	}

	params, err := db.resultParams(ctx, result)
	if err != nil {
		return searchspace.Value{}, 0, err
	}

	result.Submissions++
	if err := db.store.UpdateResult(ctx, result); err != nil {
		return searchspace.Value{}, 0, err
	}
	return params, result.Submissions, nil
}

// RegisterResult records a completed trial. It returns true when the
// model's priority was recomputed, signaling that compute-class assignments
// should be refreshed.
func (db *SearchDB) RegisterResult(
	ctx context.Context,
	resultID string,
	loss float64,
	extra map[string]searchspace.Value) (bool, error) {
	result, err := db.store.GetResult(ctx, resultID)
	if err != nil {
		return false, err
	}

	result.Loss = &loss
	result.Extra = extra
	if err := db.store.UpdateResult(ctx, result); err != nil {
		return false, err
	}

	model, err := db.store.GetModel(ctx, result.ModelID)
	if err != nil {
		return false, err
	}

	completed, err := db.completedResults(ctx, model)
	if err != nil {
		return false, err
	}
	if len(completed) == 0 || len(completed)%db.updateFrequency != 0 {
		return false, nil
	}

	if err := db.recomputePriority(ctx, model, completed); err != nil {
		return false, err
	}
	return true, nil
}

// RegisterFailure records a failed dispatch of a trial and returns its
// submission count so the caller can decide whether to retry.
func (db *SearchDB) RegisterFailure(
	ctx context.Context,
	resultID string) (int, error) {
	result, err := db.store.GetResult(ctx, resultID)
	if err != nil {
		return 0, err
	}
	return result.Submissions, nil
}

// Optimal returns the minimum-loss completed trial across all models, with
// its hyperparameters rebuilt as Generate returned them. found is false
// when no trial has completed.
func (db *SearchDB) Optimal(ctx context.Context) (*Optimum, bool, error) {
	models, err := db.store.GetAllModels(ctx)
	if err != nil {
		return nil, false, err
	}

	var best *Result
	for _, model := range models {
		for _, resultID := range model.Results {
			result, err := db.store.GetResult(ctx, resultID)
			if err != nil {
				return nil, false, err
			}
			if !result.Completed() {
				continue
			}
			if best == nil || *result.Loss < *best.Loss {
				best = result
			}
		}
	}
	if best == nil {
		return nil, false, nil
	}

	params, err := db.resultParams(ctx, best)
	if err != nil {
		return nil, false, err
	}
	return &Optimum{
		Loss:   *best.Loss,
		Params: params,
		Extra:  best.Extra,
	}, true, nil
}

// completedResults loads the model's completed trials in creation order.
func (db *SearchDB) completedResults(
	ctx context.Context,
	model *Model) ([]*Result, error) {
	completed := make([]*Result, 0, len(model.Results))
	for _, resultID := range model.Results {
		result, err := db.store.GetResult(ctx, resultID)
		if err != nil {
			return nil, err
		}
		if result.Completed() {
			completed = append(completed, result)
		}
	}
	return completed, nil
}

// recomputePriority appends a fresh sensitivity estimate to the model's
// priority series.
func (db *SearchDB) recomputePriority(
	ctx context.Context,
	model *Model,
	completed []*Result) error {
	index := make(map[string]int, len(model.Domains))
	for i, domainID := range model.Domains {
		index[domainID] = i
	}

	features := make([][]float64, 0, len(completed))
	losses := make([]float64, 0, len(completed))
	for _, result := range completed {
		if math.IsNaN(*result.Loss) || math.IsInf(*result.Loss, 0) {
			continue
		}
		row := make([]float64, len(model.Domains))
		for _, valueID := range result.Values {
			record, err := db.store.GetValue(ctx, valueID)
			if err != nil {
				return err
			}
			if i, ok := index[record.DomainID]; ok {
				row[i] = record.Numeric
			}
		}
		features = append(features, row)
		losses = append(losses, *result.Loss)
	}

	priority := db.estimator.Estimate(features, losses)
	model.Priority = append(model.Priority, priority)

	log.WithFields(log.Fields{
		"model_id": model.ID,
		"priority": priority,
		"trials":   len(completed),
	}).Debug("Recomputed model priority")

	return db.store.UpdateModel(ctx, model)
}

// resultParams rebuilds a trial's nested hyperparameters from its stored
// values.
func (db *SearchDB) resultParams(
	ctx context.Context,
	result *Result) (searchspace.Value, error) {
	sampled := make(map[string]searchspace.Value, len(result.Values))
	for _, valueID := range result.Values {
		record, err := db.store.GetValue(ctx, valueID)
		if err != nil {
			return searchspace.Value{}, err
		}
		domain, err := db.store.GetDomain(ctx, record.DomainID)
		if err != nil {
			return searchspace.Value{}, err
		}
		sampled[domain.Def.Path] = record.Value
	}
	return nestParams(sampled), nil
}

// nestParams folds path-keyed values into a nested object. A single value
// under the empty path stands alone: the model is one scalar dimension.
func nestParams(sampled map[string]searchspace.Value) searchspace.Value {
	if v, ok := sampled[""]; ok && len(sampled) == 1 {
		return v
	}

	root := make(map[string]interface{})
	for path, v := range sampled {
		keys := strings.Split(path, "/")
		node := root
		for _, key := range keys[:len(keys)-1] {
			child, ok := node[key].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[key] = child
			}
			node = child
		}
		node[keys[len(keys)-1]] = v
	}
	return searchspace.ObjectOf(root)
}
