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

	"gopkg.in/yaml.v2"
)

// ParseSpec loads a search-space specification from YAML. A mapping with a
// "domain" key is interpreted as a leaf:
//
//	gamma:
//	  domain: {distribution: uniform, lo: 0.001, hi: 10}
//	  scaling: ln
//	layers:
//	  domain: [1, 2, 4, 8]
//	  exhaustive: true
//	bias:
//	  domain: 0.5
//
// Every other mapping is a subtree, with the reserved boolean keys
// "exclusive" and "optional" kept in place for Split.
func ParseSpec(data []byte) (Tree, error) {
	var raw map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	node, err := normalizeNode(raw, "")
	if err != nil {
		return nil, err
	}
	tree, ok := node.(Tree)
	if !ok {
		return nil, InvalidSpecError{Path: "", Reason: "top level must be a mapping"}
	}
	return tree, nil
}

func normalizeNode(raw interface{}, path string) (interface{}, error) {
	m, ok := raw.(map[interface{}]interface{})
	if !ok {
		// Scalars and lists pass through; Split wraps scalars into
		// constant leaves.
		return raw, nil
	}

	if _, isLeaf := m["domain"]; isLeaf {
		return parseLeaf(m, path)
	}

	tree := Tree{}
	for k, v := range m {
		key, ok := k.(string)
		if !ok {
			return nil, InvalidSpecError{
				Path:   path,
				Reason: fmt.Sprintf("non-string key %v", k),
			}
		}
		if key == keyExclusive || key == keyOptional {
			b, ok := v.(bool)
			if !ok {
				return nil, InvalidSpecError{
					Path:   path,
					Reason: fmt.Sprintf("%s must be a boolean", key),
				}
			}
			tree[key] = b
			continue
		}
		subpath := key
		if path != "" {
			subpath = path + "/" + key
		}
		child, err := normalizeNode(v, subpath)
		if err != nil {
			return nil, err
		}
		tree[key] = child
	}
	return tree, nil
}

func parseLeaf(m map[interface{}]interface{}, path string) (*Domain, error) {
	var d *Domain

	switch dom := m["domain"].(type) {
	case map[interface{}]interface{}:
		var err error
		if d, err = parseDistribution(dom, path); err != nil {
			return nil, err
		}
	case []interface{}:
		choices := make([]Value, 0, len(dom))
		for _, c := range dom {
			v, err := ValueOf(c)
			if err != nil {
				return nil, InvalidSpecError{Path: path, Reason: err.Error()}
			}
			choices = append(choices, v)
		}
		kind := KindDiscrete
		if b, ok := m["exhaustive"].(bool); ok && b {
			kind = KindExhaustive
		}
		d = &Domain{Kind: kind, Choices: choices}
	default:
		v, err := ValueOf(dom)
		if err != nil {
			return nil, InvalidSpecError{Path: path, Reason: err.Error()}
		}
		d = &Domain{Kind: KindConstant, Value: v}
	}

	d.Strategy = StrategyRandom
	if s, ok := m["strategy"].(string); ok {
		d.Strategy = Strategy(s)
	}
	d.Scaling = ScaleLinear
	if s, ok := m["scaling"].(string); ok {
		d.Scaling = Scaling(s)
	}
	return d, nil
}

func parseDistribution(m map[interface{}]interface{}, path string) (*Domain, error) {
	name, _ := m["distribution"].(string)
	d := &Domain{Kind: KindContinuous}
	switch Distribution(name) {
	case DistUniform:
		d.Distribution = DistUniform
		d.Lo = floatKey(m, "lo")
		d.Hi = floatKey(m, "hi")
	case DistNormal:
		d.Distribution = DistNormal
		d.Mu = floatKey(m, "mu")
		d.Sigma = floatKey(m, "sigma")
	default:
		return nil, InvalidSpecError{
			Path:   path,
			Reason: fmt.Sprintf("unknown distribution %q", name),
		}
	}
	return d, nil
}

func floatKey(m map[interface{}]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
