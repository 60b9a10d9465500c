// Copyright 2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package quote

import (
	"strconv"

	"github.com/goccy/go-json"
)

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindNumber
)

// Value is a JSON scalar whose type is unknown until decode time. The
// scanner ranking endpoint mixes strings and numbers in a single array, so
// rows are decoded into []Value once at the boundary and converted through
// the typed accessors. Value never leaks outside the adapter that decodes it.
type Value struct {
	kind valueKind
	str  string
	num  float64
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		v.kind = kindNull
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v.kind = kindString
		v.str = s
		return nil
	}

	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	v.kind = kindNumber
	v.num = n
	return nil
}

// AsString returns the string form of the value. Numbers do not coerce.
func (v Value) AsString() (string, bool) {
	if v.kind != kindString {
		return "", false
	}
	return v.str, true
}

// AsNumber returns the numeric form of the value. Numeric strings parse;
// everything else fails.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.num, true
	case kindString:
		n, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IsNull reports whether the value was JSON null.
func (v Value) IsNull() bool {
	return v.kind == kindNull
}
