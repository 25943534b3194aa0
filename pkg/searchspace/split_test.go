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

type SplitTestSuite struct {
	suite.Suite
}

func TestSplit(t *testing.T) {
	suite.Run(t, new(SplitTestSuite))
}

// paths flattens the leaf-sets into their path lists for assertions.
func paths(spaces [][]Domain) [][]string {
	out := make([][]string, 0, len(spaces))
	for _, space := range spaces {
		p := make([]string, 0, len(space))
		for _, d := range space {
			p = append(p, d.Path)
		}
		out = append(out, p)
	}
	return out
}

func (suite *SplitTestSuite) TestSingleLeaf() {
	spaces, err := Split(Tree{"x": Uniform(0, 1)})
	suite.NoError(err)
	suite.Len(spaces, 1)
	suite.Equal([][]string{{"x"}}, paths(spaces))
}

func (suite *SplitTestSuite) TestCrossProduct() {
	spaces, err := Split(Tree{
		"a": Uniform(0, 1),
		"b": Normal(0, 1),
	})
	suite.NoError(err)
	suite.Len(spaces, 1)
	suite.ElementsMatch([]string{"a", "b"}, paths(spaces)[0])
}

func (suite *SplitTestSuite) TestExclusiveConcatenation() {
	spaces, err := Split(Tree{
		"exclusive": true,
		"svm": Tree{
			"c":     LnUniform(-2, 2),
			"gamma": LnUniform(-3, 3),
		},
		"rf": Tree{
			"depth": Randint(1, 10),
		},
	})
	suite.NoError(err)
	suite.Len(spaces, 2)

	// Children contribute their own leaf-sets, never a cross-product.
	suite.ElementsMatch(
		[][]string{
			{"rf/depth"},
			{"svm/c", "svm/gamma"},
		},
		paths(spaces))
}

func (suite *SplitTestSuite) TestNestedExclusiveUnderCross() {
	spaces, err := Split(Tree{
		"lr": Log10Uniform(-5, -1),
		"kernel": Tree{
			"exclusive": true,
			"rbf":       Tree{"gamma": LnUniform(-3, 3)},
			"poly":      Tree{"degree": Randint(2, 5)},
		},
	})
	suite.NoError(err)
	suite.Len(spaces, 2)
	for _, space := range spaces {
		suite.Len(space, 2)
	}

	// Every leaf path of the original spec appears exactly once across
	// all leaf-sets.
	counts := map[string]int{}
	for _, space := range spaces {
		for _, d := range space {
			counts[d.Path]++
		}
	}
	suite.Equal(map[string]int{
		"lr":                 2,
		"kernel/rbf/gamma":   1,
		"kernel/poly/degree": 1,
	}, counts)
}

func (suite *SplitTestSuite) TestOptionalAppendsEmptySet() {
	spaces, err := Split(Tree{
		"dropout": Tree{
			"optional": true,
			"rate":     Uniform(0, 0.5),
		},
	})
	suite.NoError(err)
	suite.Len(spaces, 2)
	suite.ElementsMatch(
		[][]string{{"dropout/rate"}, {}},
		paths(spaces))
}

func (suite *SplitTestSuite) TestScalarWrappedAsConstant() {
	spaces, err := Split(Tree{"epochs": 10})
	suite.NoError(err)
	suite.Len(spaces, 1)
	suite.Equal(KindConstant, spaces[0][0].Kind)
	suite.Equal(NumberOf(10), spaces[0][0].Value)
}

func (suite *SplitTestSuite) TestEmptyExclusiveFails() {
	_, err := Split(Tree{"exclusive": true})
	suite.Error(err)
	suite.IsType(EmptySpecError{}, err)
}

func (suite *SplitTestSuite) TestNilNodeFails() {
	_, err := Split(Tree{"x": nil})
	suite.Error(err)
	suite.IsType(InvalidSpecError{}, err)
}

func (suite *SplitTestSuite) TestInputNotMutated() {
	leaf := Uniform(0, 1)
	spec := Tree{"layer": Tree{"width": leaf}}

	spaces, err := Split(spec)
	suite.NoError(err)
	suite.Equal("layer/width", spaces[0][0].Path)
	suite.Equal("", leaf.Path)
}
