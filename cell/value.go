// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package cell models the heterogeneous values that appear in stream
// metadata label maps as a small tagged variant, so a passthrough
// output column can settle on a single cell Kind (string by default)
// and represent absent values as a typed null rather than panicking
// or silently coercing everything to a string.
package cell

import "fmt"

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	// Null indicates the absence of a value (a missing label key).
	Null Kind = iota
	// String is the default kind: almost all label values are strings.
	String
	// Float64 is used for JSON numbers.
	Float64
	// Bool is used for JSON booleans.
	Bool
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// A Value is one label cell: a tagged union of the JSON scalar types
// that can appear in a stream metadata document, plus Null for a
// missing key.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Flag bool
}

// Nil is the null Value, used for missing label keys.
var Nil = Value{Kind: Null}

// FromString wraps s as a string Value.
func FromString(s string) Value { return Value{Kind: String, Str: s} }

// FromFloat64 wraps f as a float64 Value.
func FromFloat64(f float64) Value { return Value{Kind: Float64, Num: f} }

// FromBool wraps b as a bool Value.
func FromBool(b bool) Value { return Value{Kind: Bool, Flag: b} }

// FromAny converts a decoded JSON value (as produced by
// encoding/json's interface{} decoding) into a Value. Unrecognized
// types (objects, arrays) fall back to their fmt.Sprint
// representation as a string, since a passthrough column has no
// other sensible shape for them.
func FromAny(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Nil
	case string:
		return FromString(x)
	case float64:
		return FromFloat64(x)
	case bool:
		return FromBool(x)
	default:
		return FromString(fmt.Sprint(x))
	}
}

// IsNull reports whether v represents a missing value.
func (v Value) IsNull() bool { return v.Kind == Null }

// String renders v as text. Besides diagnostics, it is what a
// non-string Value becomes when conformed to a String-kind cell and
// when labels are projected to strings for a selector.
func (v Value) String() string {
	switch v.Kind {
	case Null:
		return "<null>"
	case String:
		return v.Str
	case Float64:
		return fmt.Sprintf("%g", v.Num)
	case Bool:
		return fmt.Sprintf("%t", v.Flag)
	default:
		return "<invalid>"
	}
}
