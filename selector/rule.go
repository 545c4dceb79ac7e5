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

// Package selector declares the label-selector contract the collector
// relies on (spec.md §6, "Rule contract") and a handful of small
// reference matchers. The real expression language that compiles a
// query string into a Rule is an external collaborator; this package
// only needs to be able to combine and evaluate predicates, the way
// ion/blockfmt.Filter combines range predicates over a SparseIndex.
package selector

// A Rule evaluates a label map and reports whether it matches.
// Absence of a label is equivalent to an empty string value; Rule
// implementations should not treat a missing key as an error.
type Rule interface {
	Matches(labels map[string]string) bool
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(labels map[string]string) bool

// Matches implements Rule.
func (f RuleFunc) Matches(labels map[string]string) bool { return f(labels) }

func get(labels map[string]string, key string) string {
	return labels[key] // zero value "" for a missing key
}

// Equals returns a Rule matching labels where labels[key] == value.
func Equals(key, value string) Rule {
	return RuleFunc(func(labels map[string]string) bool {
		return get(labels, key) == value
	})
}

// In returns a Rule matching labels where labels[key] is one of values.
func In(key string, values ...string) Rule {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return RuleFunc(func(labels map[string]string) bool {
		_, ok := set[get(labels, key)]
		return ok
	})
}

// And returns a Rule matching labels that satisfy every rule in rules.
// And of zero rules always matches, the conventional empty intersection.
func And(rules ...Rule) Rule {
	return RuleFunc(func(labels map[string]string) bool {
		for _, r := range rules {
			if !r.Matches(labels) {
				return false
			}
		}
		return true
	})
}

// Or returns a Rule matching labels that satisfy any rule in rules.
// Or of zero rules never matches, the conventional empty union.
func Or(rules ...Rule) Rule {
	return RuleFunc(func(labels map[string]string) bool {
		for _, r := range rules {
			if r.Matches(labels) {
				return true
			}
		}
		return false
	})
}

// Not negates r.
func Not(r Rule) Rule {
	return RuleFunc(func(labels map[string]string) bool {
		return !r.Matches(labels)
	})
}
