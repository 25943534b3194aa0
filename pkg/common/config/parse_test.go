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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type testConfig struct {
	Name    string `yaml:"name" validate:"nonzero"`
	Port    int    `yaml:"port"`
	Workers int    `yaml:"workers"`
}

type ParseTestSuite struct {
	suite.Suite

	dir string
}

func (suite *ParseTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
}

func TestParse(t *testing.T) {
	suite.Run(t, new(ParseTestSuite))
}

func (suite *ParseTestSuite) writeFile(name, content string) string {
	path := filepath.Join(suite.dir, name)
	suite.NoError(os.WriteFile(path, []byte(content), 0644))
	return path
}

func (suite *ParseTestSuite) TestParseSingleFile() {
	path := suite.writeFile("base.yaml", "name: search\nport: 8080\n")

	var cfg testConfig
	suite.NoError(Parse(&cfg, path))
	suite.Equal("search", cfg.Name)
	suite.Equal(8080, cfg.Port)
}

func (suite *ParseTestSuite) TestParseMergesFilesInOrder() {
	base := suite.writeFile("base.yaml", "name: search\nport: 8080\nworkers: 2\n")
	override := suite.writeFile("override.yaml", "port: 9090\n")

	var cfg testConfig
	suite.NoError(Parse(&cfg, base, override))
	suite.Equal("search", cfg.Name)
	suite.Equal(9090, cfg.Port)
	suite.Equal(2, cfg.Workers)
}

func (suite *ParseTestSuite) TestParseNoFiles() {
	var cfg testConfig
	suite.Error(Parse(&cfg))
}

func (suite *ParseTestSuite) TestParseMissingFile() {
	var cfg testConfig
	suite.Error(Parse(&cfg, filepath.Join(suite.dir, "absent.yaml")))
}

func (suite *ParseTestSuite) TestParseValidationFailure() {
	path := suite.writeFile("bad.yaml", "port: 8080\n")

	var cfg testConfig
	err := Parse(&cfg, path)
	suite.Error(err)

	verr, ok := err.(ValidationError)
	suite.True(ok)
	suite.Error(verr.ErrForField("Name"))
}

func (suite *ParseTestSuite) TestParseMalformedYAML() {
	path := suite.writeFile("broken.yaml", "name: [unclosed\n")

	var cfg testConfig
	suite.Error(Parse(&cfg, path))
}
