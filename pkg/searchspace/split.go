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
	"fmt"
	"sort"
)

// Reserved keys controlling spec structure rather than content.
const (
	keyExclusive = "exclusive"
	keyOptional  = "optional"
)

// Tree is a nested search-space specification. Values are either nested
// Trees, *Domain leaves, or raw scalars which are auto-wrapped into constant
// domains. The reserved boolean keys "exclusive" and "optional" mark a
// subtree's children as mutually exclusive alternatives or as skippable.
type Tree map[string]interface{}

// EmptySpecError is returned when a specification contains no searchable
// alternative at all, such as an exclusive node with no children.
type EmptySpecError struct{}

func (e EmptySpecError) Error() string {
	return "specification produces no search spaces"
}

// InvalidSpecError is returned when a specification node cannot be
// interpreted.
type InvalidSpecError struct {
	Path   string
	Reason string
}

func (e InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid specification at %q: %s", e.Path, e.Reason)
}

// Split partitions a nested specification into disjoint leaf-sets, each the
// domain list of one independently searchable model. Children of an
// exclusive node contribute their leaf-sets as separate alternatives;
// children of a non-exclusive node are crossed, since they are sampled
// together. An optional node contributes one extra empty leaf-set for the
// "skip this subtree" alternative.
//
// Split never mutates its input: returned Domains are copies with their
// paths set.
func Split(spec Tree) ([][]Domain, error) {
	spaces, err := splitNode(spec, "")
	if err != nil {
		return nil, err
	}
	if len(spaces) == 0 {
		return nil, EmptySpecError{}
	}
	return spaces, nil
}

func splitNode(node interface{}, path string) ([][]Domain, error) {
	// Leaves carry their own sampling rule; everything else that is not a
	// subtree is wrapped into a constant leaf.
	switch t := node.(type) {
	case *Domain:
		return [][]Domain{{t.clone(path)}}, nil
	case Domain:
		return [][]Domain{{t.clone(path)}}, nil
	case Tree:
		return splitTree(t, path)
	case map[string]interface{}:
		return splitTree(t, path)
	case nil:
		return nil, InvalidSpecError{Path: path, Reason: "nil node"}
	default:
		v, err := ValueOf(node)
		if err != nil {
			return nil, InvalidSpecError{Path: path, Reason: err.Error()}
		}
		leaf := Constant(v).clone(path)
		return [][]Domain{{leaf}}, nil
	}
}

func splitTree(node map[string]interface{}, path string) ([][]Domain, error) {
	exclusive := boolKey(node, keyExclusive)
	optional := boolKey(node, keyOptional)

	// Key order decides model iteration order only; sort for determinism.
	keys := make([]string, 0, len(node))
	for key := range node {
		if key == keyExclusive || key == keyOptional {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	spaces := [][]Domain{}
	if !exclusive {
		spaces = [][]Domain{{}}
	}

	for _, key := range keys {
		subpath := key
		if path != "" {
			subpath = path + "/" + key
		}
		split, err := splitNode(node[key], subpath)
		if err != nil {
			return nil, err
		}
		if exclusive {
			// Each child's leaf-sets are distinct alternatives.
			spaces = append(spaces, split...)
			continue
		}
		// All children are sampled together: cross every accumulated
		// leaf-set with every leaf-set of this child.
		newspaces := make([][]Domain, 0, len(spaces)*len(split))
		for _, space := range spaces {
			for _, s := range split {
				newspace := make([]Domain, 0, len(space)+len(s))
				newspace = append(newspace, space...)
				newspace = append(newspace, s...)
				newspaces = append(newspaces, newspace)
			}
		}
		spaces = newspaces
	}

	if optional {
		spaces = append(spaces, []Domain{})
	}
	return spaces, nil
}

func boolKey(node map[string]interface{}, key string) bool {
	v, ok := node[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
