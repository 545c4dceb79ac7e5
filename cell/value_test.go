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

package cell

import "testing"

func TestFromAny(t *testing.T) {
	cases := []struct {
		in   interface{}
		kind Kind
	}{
		{nil, Null},
		{"entity-A", String},
		{3.5, Float64},
		{true, Bool},
	}
	for _, c := range cases {
		got := FromAny(c.in)
		if got.Kind != c.kind {
			t.Errorf("FromAny(%v).Kind = %v, want %v", c.in, got.Kind, c.kind)
		}
	}
}

func TestNilIsNull(t *testing.T) {
	if !Nil.IsNull() {
		t.Fatal("Nil.IsNull() = false")
	}
	if FromString("x").IsNull() {
		t.Fatal("non-null value reported as null")
	}
}
