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
	"encoding/json"
	"fmt"
	"reflect"
)

// ValueKind enumerates the variants a sampled hyperparameter value can take.
type ValueKind int

const (
	// NumberValue is a numeric value.
	NumberValue ValueKind = iota
	// StringValue is a categorical string value.
	StringValue
	// ObjectValue is a nested structure value.
	ObjectValue
)

// Value is a tagged union over the types a hyperparameter sample can take.
// Domains produce Values and the storage layer persists them; conversion to
// native Go types happens only at those boundaries.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	obj  map[string]interface{}
}

// NumberOf wraps a numeric sample in a Value.
func NumberOf(f float64) Value {
	return Value{kind: NumberValue, num: f}
}

// StringOf wraps a categorical string sample in a Value.
func StringOf(s string) Value {
	return Value{kind: StringValue, str: s}
}

// ObjectOf wraps a nested structure sample in a Value.
func ObjectOf(m map[string]interface{}) Value {
	return Value{kind: ObjectValue, obj: m}
}

// ValueOf converts a native Go value into a Value. Integers and floats map
// to NumberValue, strings to StringValue and maps to ObjectValue.
func ValueOf(v interface{}) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case float64:
		return NumberOf(t), nil
	case float32:
		return NumberOf(float64(t)), nil
	case int:
		return NumberOf(float64(t)), nil
	case int32:
		return NumberOf(float64(t)), nil
	case int64:
		return NumberOf(float64(t)), nil
	case uint:
		return NumberOf(float64(t)), nil
	case string:
		return StringOf(t), nil
	case map[string]interface{}:
		return ObjectOf(t), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", v)
}

// MustValueOf is ValueOf for values known to be convertible. It panics on
// unsupported types and is meant for building specs in code and tests.
func MustValueOf(v interface{}) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind returns the variant tag of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Number returns the numeric payload. Only meaningful for NumberValue.
func (v Value) Number() float64 {
	return v.num
}

// Text returns the string payload. Only meaningful for StringValue.
func (v Value) Text() string {
	return v.str
}

// Object returns the structure payload. Only meaningful for ObjectValue.
func (v Value) Object() map[string]interface{} {
	return v.obj
}

// Interface unwraps the value into a native Go type.
func (v Value) Interface() interface{} {
	switch v.kind {
	case NumberValue:
		return v.num
	case StringValue:
		return v.str
	default:
		return v.obj
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NumberValue:
		return v.num == o.num
	case StringValue:
		return v.str == o.str
	default:
		return reflect.DeepEqual(v.obj, o.obj)
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	return fmt.Sprintf("%v", v.Interface())
}

// MarshalJSON serializes the value as its native JSON representation.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON restores a value from its native JSON representation.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = NumberOf(t)
	case string:
		*v = StringOf(t)
	case map[string]interface{}:
		*v = ObjectOf(t)
	case nil:
		*v = Value{}
	default:
		return fmt.Errorf("unsupported value payload %T", raw)
	}
	return nil
}
