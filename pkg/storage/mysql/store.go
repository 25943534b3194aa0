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

// Package mysql persists search state as JSON bodies keyed by entity id.
// Every write is durable immediately, so Checkpoint is a no-op.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // Pull in MySQL driver for sqlx
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/jeffkinnison/shadho/pkg/storage"
)

const (
	// Table names
	modelsTable  = "models"
	domainsTable = "domains"
	resultsTable = "results"
	valuesTable  = "search_values"

	insertStmt = `INSERT INTO %s (row_key, body) VALUES (?, ?)`
	updateStmt = `UPDATE %s SET body = ? WHERE row_key = ?`
	getStmt    = `SELECT body FROM %s WHERE row_key = ?`
	getAllStmt = `SELECT body FROM %s`

	createTableStmt = `CREATE TABLE IF NOT EXISTS %s (
		row_key    VARCHAR(64) NOT NULL PRIMARY KEY,
		body       MEDIUMTEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			ON UPDATE CURRENT_TIMESTAMP
	)`
)

// Config holds the database connection settings.
type Config struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// String returns the connection string for the DB
func (c *Config) String() string {
	return fmt.Sprintf(
		"%s:%s@(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Store implements storage.EntityStore on MySQL.
type Store struct {
	DB *sqlx.DB
}

// NewStore connects to the configured database and brings the schema up to
// date.
func NewStore(cfg *Config) (*Store, error) {
	db, err := sqlx.Open("mysql", cfg.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	log.WithField("database", cfg.Database).Info("Connected to MySQL store")
	return s, nil
}

func (s *Store) migrate() error {
	var errs error
	for _, table := range []string{
		modelsTable, domainsTable, resultsTable, valuesTable,
	} {
		if _, err := s.DB.Exec(fmt.Sprintf(createTableStmt, table)); err != nil {
			errs = multierr.Append(errs,
				errors.Wrapf(err, "failed to create table %v", table))
		}
	}
	return errs
}

func (s *Store) insert(ctx context.Context, table, id string, entity interface{}) error {
	body, err := json.Marshal(entity)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %v row %v", table, id)
	}
	_, err = s.DB.ExecContext(ctx, fmt.Sprintf(insertStmt, table), id, string(body))
	return errors.Wrapf(err, "failed to insert %v row %v", table, id)
}

// update replaces the row body, reporting whether the row existed.
func (s *Store) update(ctx context.Context, table, id string, entity interface{}) (bool, error) {
	body, err := json.Marshal(entity)
	if err != nil {
		return false, errors.Wrapf(err, "failed to encode %v row %v", table, id)
	}
	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(updateStmt, table), string(body), id)
	if err != nil {
		return false, errors.Wrapf(err, "failed to update %v row %v", table, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// The driver supports RowsAffected; treat the row as updated.
		return true, nil
	}
	return n > 0, nil
}

// get loads one row body into entity, reporting whether the row existed.
func (s *Store) get(ctx context.Context, table, id string, entity interface{}) (bool, error) {
	var body string
	err := s.DB.GetContext(ctx, &body, fmt.Sprintf(getStmt, table), id)
	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "failed to get %v row %v", table, id)
	}
	if err := json.Unmarshal([]byte(body), entity); err != nil {
		return false, errors.Wrapf(err, "failed to decode %v row %v", table, id)
	}
	return true, nil
}

// CreateModel inserts the model.
func (s *Store) CreateModel(ctx context.Context, model *storage.Model) error {
	return s.insert(ctx, modelsTable, model.ID, model)
}

// GetModel loads the model, or ModelNotFoundError.
func (s *Store) GetModel(ctx context.Context, id string) (*storage.Model, error) {
	var model storage.Model
	ok, err := s.get(ctx, modelsTable, id, &model)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &storage.ModelNotFoundError{ModelID: id}
	}
	return &model, nil
}

// GetAllModels loads every model.
func (s *Store) GetAllModels(ctx context.Context) ([]*storage.Model, error) {
	var bodies []string
	err := s.DB.SelectContext(ctx, &bodies, fmt.Sprintf(getAllStmt, modelsTable))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list models")
	}
	models := make([]*storage.Model, 0, len(bodies))
	for _, body := range bodies {
		var model storage.Model
		if err := json.Unmarshal([]byte(body), &model); err != nil {
			return nil, errors.Wrap(err, "failed to decode model row")
		}
		models = append(models, &model)
	}
	return models, nil
}

// UpdateModel replaces the model, or ModelNotFoundError.
func (s *Store) UpdateModel(ctx context.Context, model *storage.Model) error {
	ok, err := s.update(ctx, modelsTable, model.ID, model)
	if err != nil {
		return err
	}
	if !ok {
		return &storage.ModelNotFoundError{ModelID: model.ID}
	}
	return nil
}

// CreateDomain inserts the domain.
func (s *Store) CreateDomain(ctx context.Context, domain *storage.Domain) error {
	return s.insert(ctx, domainsTable, domain.ID, domain)
}

// GetDomain loads the domain, or DomainNotFoundError.
func (s *Store) GetDomain(ctx context.Context, id string) (*storage.Domain, error) {
	var domain storage.Domain
	ok, err := s.get(ctx, domainsTable, id, &domain)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &storage.DomainNotFoundError{DomainID: id}
	}
	return &domain, nil
}

// UpdateDomain replaces the domain, or DomainNotFoundError.
func (s *Store) UpdateDomain(ctx context.Context, domain *storage.Domain) error {
	ok, err := s.update(ctx, domainsTable, domain.ID, domain)
	if err != nil {
		return err
	}
	if !ok {
		return &storage.DomainNotFoundError{DomainID: domain.ID}
	}
	return nil
}

// CreateResult inserts the result.
func (s *Store) CreateResult(ctx context.Context, result *storage.Result) error {
	return s.insert(ctx, resultsTable, result.ID, result)
}

// GetResult loads the result, or ResultNotFoundError.
func (s *Store) GetResult(ctx context.Context, id string) (*storage.Result, error) {
	var result storage.Result
	ok, err := s.get(ctx, resultsTable, id, &result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &storage.ResultNotFoundError{ResultID: id}
	}
	return &result, nil
}

// UpdateResult replaces the result, or ResultNotFoundError.
func (s *Store) UpdateResult(ctx context.Context, result *storage.Result) error {
	ok, err := s.update(ctx, resultsTable, result.ID, result)
	if err != nil {
		return err
	}
	if !ok {
		return &storage.ResultNotFoundError{ResultID: result.ID}
	}
	return nil
}

// CreateValue inserts the sampled value.
func (s *Store) CreateValue(ctx context.Context, value *storage.ValueRecord) error {
	return s.insert(ctx, valuesTable, value.ID, value)
}

// GetValue loads the sampled value, or ValueNotFoundError.
func (s *Store) GetValue(ctx context.Context, id string) (*storage.ValueRecord, error) {
	var value storage.ValueRecord
	ok, err := s.get(ctx, valuesTable, id, &value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &storage.ValueNotFoundError{ValueID: id}
	}
	return &value, nil
}

// Checkpoint is a no-op: every write already hit the database.
func (s *Store) Checkpoint(_ context.Context) error {
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}
