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
	"fmt"
)

// ModelNotFoundError indicates that the model is not found
type ModelNotFoundError struct {
	ModelID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %v is not found", e.ModelID)
}

// DomainNotFoundError indicates that the domain is not found
type DomainNotFoundError struct {
	DomainID string
}

func (e *DomainNotFoundError) Error() string {
	return fmt.Sprintf("domain %v is not found", e.DomainID)
}

// ResultNotFoundError indicates that the result is not found
type ResultNotFoundError struct {
	ResultID string
}

func (e *ResultNotFoundError) Error() string {
	return fmt.Sprintf("result %v is not found", e.ResultID)
}

// ValueNotFoundError indicates that the sampled value is not found
type ValueNotFoundError struct {
	ValueID string
}

func (e *ValueNotFoundError) Error() string {
	return fmt.Sprintf("value %v is not found", e.ValueID)
}

// EntityStore is the interface to persist search state. Writes replace the
// stored entity wholesale; reads return copies the caller may mutate.
type EntityStore interface {
	CreateModel(ctx context.Context, model *Model) error
	GetModel(ctx context.Context, id string) (*Model, error)
	GetAllModels(ctx context.Context) ([]*Model, error)
	UpdateModel(ctx context.Context, model *Model) error

	CreateDomain(ctx context.Context, domain *Domain) error
	GetDomain(ctx context.Context, id string) (*Domain, error)
	UpdateDomain(ctx context.Context, domain *Domain) error

	CreateResult(ctx context.Context, result *Result) error
	GetResult(ctx context.Context, id string) (*Result, error)
	UpdateResult(ctx context.Context, result *Result) error

	CreateValue(ctx context.Context, value *ValueRecord) error
	GetValue(ctx context.Context, id string) (*ValueRecord, error)

	// Checkpoint flushes in-memory state to durable storage. Stores that
	// persist on every write may treat this as a no-op.
	Checkpoint(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
