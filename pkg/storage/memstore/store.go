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

// Package memstore keeps all search state in memory and checkpoints it to a
// single JSON file. An existing checkpoint is loaded on open, so a search
// survives process restarts between checkpoints.
package memstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeffkinnison/shadho/pkg/searchspace"
	"github.com/jeffkinnison/shadho/pkg/storage"
)

// snapshot is the on-disk layout of a checkpoint.
type snapshot struct {
	Models  map[string]*storage.Model       `json:"models"`
	Domains map[string]*storage.Domain      `json:"domains"`
	Results map[string]*storage.Result      `json:"results"`
	Values  map[string]*storage.ValueRecord `json:"values"`
}

// Store is an in-memory EntityStore with JSON file checkpoints.
type Store struct {
	sync.RWMutex

	path string

	models  map[string]*storage.Model
	domains map[string]*storage.Domain
	results map[string]*storage.Result
	values  map[string]*storage.ValueRecord
}

// NewStore opens a memory store backed by the checkpoint file at path. An
// empty path disables checkpointing. If the file exists its contents become
// the initial state.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:    path,
		models:  make(map[string]*storage.Model),
		domains: make(map[string]*storage.Domain),
		results: make(map[string]*storage.Result),
		values:  make(map[string]*storage.ValueRecord),
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read checkpoint")
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "failed to decode checkpoint")
	}
	if snap.Models != nil {
		s.models = snap.Models
	}
	if snap.Domains != nil {
		s.domains = snap.Domains
	}
	if snap.Results != nil {
		s.results = snap.Results
	}
	if snap.Values != nil {
		s.values = snap.Values
	}

	log.WithFields(log.Fields{
		"path":   path,
		"models": len(s.models),
	}).Info("Resumed search from checkpoint")
	return s, nil
}

// CreateModel stores a copy of the model.
func (s *Store) CreateModel(_ context.Context, model *storage.Model) error {
	s.Lock()
	defer s.Unlock()
	s.models[model.ID] = copyModel(model)
	return nil
}

// GetModel returns a copy of the model, or ModelNotFoundError.
func (s *Store) GetModel(_ context.Context, id string) (*storage.Model, error) {
	s.RLock()
	defer s.RUnlock()
	model, ok := s.models[id]
	if !ok {
		return nil, &storage.ModelNotFoundError{ModelID: id}
	}
	return copyModel(model), nil
}

// GetAllModels returns copies of every stored model.
func (s *Store) GetAllModels(_ context.Context) ([]*storage.Model, error) {
	s.RLock()
	defer s.RUnlock()
	models := make([]*storage.Model, 0, len(s.models))
	for _, model := range s.models {
		models = append(models, copyModel(model))
	}
	return models, nil
}

// UpdateModel replaces the stored model.
func (s *Store) UpdateModel(_ context.Context, model *storage.Model) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.models[model.ID]; !ok {
		return &storage.ModelNotFoundError{ModelID: model.ID}
	}
	s.models[model.ID] = copyModel(model)
	return nil
}

// CreateDomain stores a copy of the domain.
func (s *Store) CreateDomain(_ context.Context, domain *storage.Domain) error {
	s.Lock()
	defer s.Unlock()
	s.domains[domain.ID] = copyDomain(domain)
	return nil
}

// GetDomain returns a copy of the domain, or DomainNotFoundError.
func (s *Store) GetDomain(_ context.Context, id string) (*storage.Domain, error) {
	s.RLock()
	defer s.RUnlock()
	domain, ok := s.domains[id]
	if !ok {
		return nil, &storage.DomainNotFoundError{DomainID: id}
	}
	return copyDomain(domain), nil
}

// UpdateDomain replaces the stored domain.
func (s *Store) UpdateDomain(_ context.Context, domain *storage.Domain) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.domains[domain.ID]; !ok {
		return &storage.DomainNotFoundError{DomainID: domain.ID}
	}
	s.domains[domain.ID] = copyDomain(domain)
	return nil
}

// CreateResult stores a copy of the result.
func (s *Store) CreateResult(_ context.Context, result *storage.Result) error {
	s.Lock()
	defer s.Unlock()
	s.results[result.ID] = copyResult(result)
	return nil
}

// GetResult returns a copy of the result, or ResultNotFoundError.
func (s *Store) GetResult(_ context.Context, id string) (*storage.Result, error) {
	s.RLock()
	defer s.RUnlock()
	result, ok := s.results[id]
	if !ok {
		return nil, &storage.ResultNotFoundError{ResultID: id}
	}
	return copyResult(result), nil
}

// UpdateResult replaces the stored result.
func (s *Store) UpdateResult(_ context.Context, result *storage.Result) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.results[result.ID]; !ok {
		return &storage.ResultNotFoundError{ResultID: result.ID}
	}
	s.results[result.ID] = copyResult(result)
	return nil
}

// CreateValue stores a copy of the sampled value.
func (s *Store) CreateValue(_ context.Context, value *storage.ValueRecord) error {
	s.Lock()
	defer s.Unlock()
	v := *value
	s.values[value.ID] = &v
	return nil
}

// GetValue returns a copy of the sampled value, or ValueNotFoundError.
func (s *Store) GetValue(_ context.Context, id string) (*storage.ValueRecord, error) {
	s.RLock()
	defer s.RUnlock()
	value, ok := s.values[id]
	if !ok {
		return nil, &storage.ValueNotFoundError{ValueID: id}
	}
	v := *value
	return &v, nil
}

// Checkpoint writes the full state to the checkpoint file, atomically via a
// temp file rename.
func (s *Store) Checkpoint(_ context.Context) error {
	if s.path == "" {
		return nil
	}

	s.RLock()
	data, err := json.Marshal(&snapshot{
		Models:  s.models,
		Domains: s.domains,
		Results: s.results,
		Values:  s.values,
	})
	s.RUnlock()
	if err != nil {
		return errors.Wrap(err, "failed to encode checkpoint")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write checkpoint")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to commit checkpoint")
	}

	log.WithField("path", filepath.Base(s.path)).Debug("Wrote checkpoint")
	return nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}

func copyModel(m *storage.Model) *storage.Model {
	c := *m
	c.Domains = append([]string(nil), m.Domains...)
	c.Results = append([]string(nil), m.Results...)
	c.Priority = append([]float64(nil), m.Priority...)
	if m.Complexity != nil {
		v := *m.Complexity
		c.Complexity = &v
	}
	if m.Rank != nil {
		v := *m.Rank
		c.Rank = &v
	}
	return &c
}

func copyDomain(d *storage.Domain) *storage.Domain {
	c := *d
	c.Values = append([]string(nil), d.Values...)
	return &c
}

func copyResult(r *storage.Result) *storage.Result {
	c := *r
	c.Values = append([]string(nil), r.Values...)
	if r.Loss != nil {
		v := *r.Loss
		c.Loss = &v
	}
	if r.Extra != nil {
		c.Extra = make(map[string]searchspace.Value, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
