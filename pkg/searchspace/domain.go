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
	"math"
	"math/rand"
)

// Kind enumerates the sampling rules a Domain can follow.
type Kind int

const (
	// KindConstant always produces the same value.
	KindConstant Kind = iota
	// KindDiscrete samples uniformly from a finite list of choices.
	KindDiscrete
	// KindContinuous samples from a continuous probability distribution.
	KindContinuous
	// KindExhaustive walks a finite list of choices in order, once each.
	KindExhaustive
)

// Distribution names the continuous distribution a KindContinuous domain
// samples from.
type Distribution string

const (
	// DistUniform is the continuous uniform distribution on [Lo, Hi].
	DistUniform Distribution = "uniform"
	// DistNormal is the normal distribution with mean Mu and stddev Sigma.
	DistNormal Distribution = "normal"
)

// Strategy names the procedure used to draw the next sample.
type Strategy string

// StrategyRandom draws samples at random. It is the only strategy currently
// implemented and the default for every constructor.
const StrategyRandom Strategy = "random"

// centralMass is the probability mass used when estimating the width of a
// continuous distribution for the complexity heuristic.
const centralMass = 0.9999

// ErrExhausted is returned by Sample when an exhaustive domain has walked
// past its final choice.
type ErrExhausted struct {
	Path string
}

func (e ErrExhausted) Error() string {
	return fmt.Sprintf("exhaustive domain %q has no values left", e.Path)
}

// Domain is one hyperparameter's sampling rule: the leaf of a search-space
// specification. Path locates the leaf within the original nested spec
// ("kernel/gamma"). Apart from the Cursor of exhaustive domains, a Domain is
// immutable after creation.
type Domain struct {
	Path     string   `json:"path"`
	Kind     Kind     `json:"kind"`
	Strategy Strategy `json:"strategy"`
	Scaling  Scaling  `json:"scaling"`

	// Continuous domains only.
	Distribution Distribution `json:"distribution,omitempty"`
	Lo           float64      `json:"lo,omitempty"`
	Hi           float64      `json:"hi,omitempty"`
	Mu           float64      `json:"mu,omitempty"`
	Sigma        float64      `json:"sigma,omitempty"`

	// Discrete and exhaustive domains only.
	Choices []Value `json:"choices,omitempty"`

	// Constant domains only.
	Value Value `json:"value,omitempty"`

	// Cursor is the next index an exhaustive domain will produce.
	Cursor int `json:"cursor,omitempty"`
}

// Sample draws the next value from the domain using its strategy and
// scaling. Exhaustive domains advance their cursor and return ErrExhausted
// once every choice has been produced.
func (d *Domain) Sample(rng *rand.Rand) (Value, error) {
	switch d.Kind {
	case KindConstant:
		return d.Value, nil
	case KindContinuous:
		var x float64
		switch d.Distribution {
		case DistNormal:
			x = d.Mu + d.Sigma*rng.NormFloat64()
		default:
			x = d.Lo + rng.Float64()*(d.Hi-d.Lo)
		}
		return NumberOf(scaleNumber(x, d.Scaling)), nil
	case KindDiscrete:
		if len(d.Choices) == 0 {
			return Value{}, nil
		}
		return scaleValue(d.Choices[rng.Intn(len(d.Choices))], d.Scaling), nil
	case KindExhaustive:
		if d.Cursor >= len(d.Choices) {
			return Value{}, ErrExhausted{Path: d.Path}
		}
		v := d.Choices[d.Cursor]
		d.Cursor++
		return scaleValue(v, d.Scaling), nil
	}
	return Value{}, fmt.Errorf("unknown domain kind %d", d.Kind)
}

// Exhausted reports whether an exhaustive domain has produced all of its
// choices. Non-exhaustive domains are never exhausted.
func (d *Domain) Exhausted() bool {
	return d.Kind == KindExhaustive && d.Cursor >= len(d.Choices)
}

// Interval returns the interval containing the central share p of the
// domain's probability mass. Only meaningful for continuous domains.
func (d *Domain) Interval(p float64) (float64, float64) {
	switch d.Distribution {
	case DistNormal:
		// Central quantiles of the normal distribution via the inverse
		// error function.
		z := math.Sqrt2 * math.Erfinv(p)
		return d.Mu - z*d.Sigma, d.Mu + z*d.Sigma
	default:
		half := (1 - p) / 2
		width := d.Hi - d.Lo
		return d.Lo + half*width, d.Hi - half*width
	}
}

// Width returns the width of the interval holding the central 99.99% of the
// domain's probability mass.
func (d *Domain) Width() float64 {
	a, b := d.Interval(centralMass)
	return math.Abs(b - a)
}

// ToNumeric encodes a sampled value as a feature for the sensitivity
// heuristic. Discrete and exhaustive domains map a value to its index among
// the choices, or -1 when absent. Constant domains map to 0 on a match and
// -1 otherwise. Continuous domains pass numeric values through unchanged.
func (d *Domain) ToNumeric(v Value) float64 {
	switch d.Kind {
	case KindDiscrete, KindExhaustive:
		for i, c := range d.Choices {
			if c.Equal(v) {
				return float64(i)
			}
		}
		return -1
	case KindConstant:
		if d.Value.Equal(v) {
			return 0
		}
		return -1
	default:
		if v.Kind() == NumberValue {
			return v.Number()
		}
		return -1
	}
}

// clone returns a copy of the domain with the given path. Choice slices are
// shared: they are immutable after construction.
func (d *Domain) clone(path string) Domain {
	c := *d
	c.Path = path
	return c
}

// Uniform creates a continuous uniform domain on [lo, hi].
func Uniform(lo, hi float64) *Domain {
	return continuous(DistUniform, lo, hi, 0, 0, ScaleLinear)
}

// LnUniform creates a uniform domain on [lo, hi] whose samples x are
// returned as e**x.
func LnUniform(lo, hi float64) *Domain {
	return continuous(DistUniform, lo, hi, 0, 0, ScaleLn)
}

// Log10Uniform creates a uniform domain on [lo, hi] whose samples x are
// returned as 10**x.
func Log10Uniform(lo, hi float64) *Domain {
	return continuous(DistUniform, lo, hi, 0, 0, ScaleLog10)
}

// Log2Uniform creates a uniform domain on [lo, hi] whose samples x are
// returned as 2**x.
func Log2Uniform(lo, hi float64) *Domain {
	return continuous(DistUniform, lo, hi, 0, 0, ScaleLog2)
}

// Normal creates a normal domain with mean mu and standard deviation sigma.
func Normal(mu, sigma float64) *Domain {
	return continuous(DistNormal, 0, 0, mu, sigma, ScaleLinear)
}

// LnNormal creates a normal domain whose samples x are returned as e**x.
func LnNormal(mu, sigma float64) *Domain {
	return continuous(DistNormal, 0, 0, mu, sigma, ScaleLn)
}

// Log10Normal creates a normal domain whose samples x are returned as 10**x.
func Log10Normal(mu, sigma float64) *Domain {
	return continuous(DistNormal, 0, 0, mu, sigma, ScaleLog10)
}

// Log2Normal creates a normal domain whose samples x are returned as 2**x.
func Log2Normal(mu, sigma float64) *Domain {
	return continuous(DistNormal, 0, 0, mu, sigma, ScaleLog2)
}

func continuous(dist Distribution, lo, hi, mu, sigma float64, s Scaling) *Domain {
	return &Domain{
		Kind:         KindContinuous,
		Strategy:     StrategyRandom,
		Scaling:      s,
		Distribution: dist,
		Lo:           lo,
		Hi:           hi,
		Mu:           mu,
		Sigma:        sigma,
	}
}

// Randint creates a discrete domain over the integers [lo, hi).
func Randint(lo, hi int) *Domain {
	return randint(lo, hi, ScaleLinear)
}

// Log10Randint creates a discrete domain over the integers [lo, hi) whose
// samples x are returned as 10**x.
func Log10Randint(lo, hi int) *Domain {
	return randint(lo, hi, ScaleLog10)
}

// Log2Randint creates a discrete domain over the integers [lo, hi) whose
// samples x are returned as 2**x.
func Log2Randint(lo, hi int) *Domain {
	return randint(lo, hi, ScaleLog2)
}

func randint(lo, hi int, s Scaling) *Domain {
	choices := make([]Value, 0, hi-lo)
	for i := lo; i < hi; i++ {
		choices = append(choices, NumberOf(float64(i)))
	}
	return &Domain{
		Kind:     KindDiscrete,
		Strategy: StrategyRandom,
		Scaling:  s,
		Choices:  choices,
	}
}

// Choice creates a discrete domain over an arbitrary set of categorical
// values.
func Choice(vals ...interface{}) *Domain {
	return &Domain{
		Kind:     KindDiscrete,
		Strategy: StrategyRandom,
		Scaling:  ScaleLinear,
		Choices:  wrapValues(vals),
	}
}

// ExhaustiveList creates an exhaustive domain producing each of vals exactly
// once, in order.
func ExhaustiveList(vals ...interface{}) *Domain {
	return &Domain{
		Kind:     KindExhaustive,
		Strategy: StrategyRandom,
		Scaling:  ScaleLinear,
		Choices:  wrapValues(vals),
	}
}

// Constant creates a domain that always produces v.
func Constant(v interface{}) *Domain {
	return &Domain{
		Kind:     KindConstant,
		Strategy: StrategyRandom,
		Scaling:  ScaleLinear,
		Value:    MustValueOf(v),
	}
}

func wrapValues(vals []interface{}) []Value {
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		out = append(out, MustValueOf(v))
	}
	return out
}
