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

package searchspace

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ParseSpecTestSuite struct {
	suite.Suite
}

func TestParseSpec(t *testing.T) {
	suite.Run(t, new(ParseSpecTestSuite))
}

func (suite *ParseSpecTestSuite) TestContinuousLeaf() {
	spec, err := ParseSpec([]byte(`
x:
  domain:
    distribution: uniform
    lo: 0
    hi: 1
`))
	suite.NoError(err)

	d, ok := spec["x"].(*Domain)
	suite.True(ok)
	suite.Equal(KindContinuous, d.Kind)
	suite.Equal(DistUniform, d.Distribution)
	suite.Equal(float64(0), d.Lo)
	suite.Equal(float64(1), d.Hi)
}

func (suite *ParseSpecTestSuite) TestListLeafAndScaling() {
	spec, err := ParseSpec([]byte(`
units:
  domain: [32, 64, 128]
  scaling: linear
`))
	suite.NoError(err)

	d, ok := spec["units"].(*Domain)
	suite.True(ok)
	suite.Equal(KindDiscrete, d.Kind)
	suite.Len(d.Choices, 3)
}

func (suite *ParseSpecTestSuite) TestExhaustiveLeaf() {
	spec, err := ParseSpec([]byte(`
depth:
  domain: [1, 2, 3]
  exhaustive: true
`))
	suite.NoError(err)

	d, ok := spec["depth"].(*Domain)
	suite.True(ok)
	suite.Equal(KindExhaustive, d.Kind)
}

func (suite *ParseSpecTestSuite) TestNestedTreesAndModifiers() {
	spec, err := ParseSpec([]byte(`
model:
  exclusive: true
  svm:
    c:
      domain:
        distribution: uniform
        lo: -2
        hi: 2
      scaling: log10
  knn:
    k:
      domain: [1, 3, 5]
`))
	suite.NoError(err)

	model, ok := spec["model"].(Tree)
	suite.True(ok)
	suite.Equal(true, model["exclusive"])

	svm, ok := model["svm"].(Tree)
	suite.True(ok)
	c, ok := svm["c"].(*Domain)
	suite.True(ok)
	suite.Equal(ScaleLog10, c.Scaling)

	spaces, err := Split(spec)
	suite.NoError(err)
	suite.Len(spaces, 2)
}

func (suite *ParseSpecTestSuite) TestScalarLeaf() {
	spec, err := ParseSpec([]byte(`seed: 1234`))
	suite.NoError(err)
	suite.Equal(1234, spec["seed"])
}

func (suite *ParseSpecTestSuite) TestMalformedYAMLFails() {
	_, err := ParseSpec([]byte("x: [unclosed"))
	suite.Error(err)
}
