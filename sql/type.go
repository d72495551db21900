// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

import (
	"bytes"
	"strings"

	"github.com/spf13/cast"
)

// Affinity is the SQLite-style storage class a column prefers values to be
// stored/compared under.
type Affinity int

const (
	Integer Affinity = iota
	Real
	Numeric
	Text
	Blob
	AffinityNull
)

func (a Affinity) String() string {
	switch a {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Numeric:
		return "NUMERIC"
	case Text:
		return "TEXT"
	case Blob:
		return "BLOB"
	default:
		return "NULL"
	}
}

// Collation controls how TEXT values order and compare. Only the two the
// engine needs to make decisions about are modeled; module authors may
// still stash a richer name here for vtab-specific display.
type Collation string

const (
	CollationBinary Collation = "BINARY"
	CollationNoCase Collation = "NOCASE"
)

// Type is a scalar column/expression type, §3's "Scalar type".
type Type struct {
	Affinity   Affinity
	Nullable   bool
	Collation  Collation
	IsReadOnly bool
}

func (t Type) String() string {
	n := "NOT NULL"
	if t.Nullable {
		n = "NULL"
	}
	return t.Affinity.String() + " " + n
}

// Common type shorthands, mirroring the teacher's sql.Int64/sql.Text/...
// exported type variables.
var (
	IntegerType   = Type{Affinity: Integer}
	RealType      = Type{Affinity: Real}
	NumericType   = Type{Affinity: Numeric}
	TextType      = Type{Affinity: Text, Collation: CollationBinary}
	BlobType      = Type{Affinity: Blob}
	NullType      = Type{Affinity: AffinityNull, Nullable: true}
	NullableInt   = Type{Affinity: Integer, Nullable: true}
	NullableText  = Type{Affinity: Text, Nullable: true, Collation: CollationBinary}
	NullableReal  = Type{Affinity: Real, Nullable: true}
	NullableBlob  = Type{Affinity: Blob, Nullable: true}
)

// CastDefault returns the zero value CAST falls back to when conversion to
// affinity fails outright (§4.A).
func CastDefault(a Affinity) interface{} {
	switch a {
	case Integer:
		return int64(0)
	case Real, Numeric:
		return float64(0)
	case Text:
		return ""
	case Blob:
		return []byte{}
	default:
		return nil
	}
}

// CoerceTo converts v to the target affinity using the cast library,
// falling back to CastDefault on irrecoverable conversions — this is the
// CAST contract of §4.A, not a general-purpose numeric parser.
func CoerceTo(v interface{}, a Affinity) interface{} {
	if v == nil {
		return nil
	}
	switch a {
	case Integer:
		if i, err := cast.ToInt64E(v); err == nil {
			return i
		}
		// SQLite-style leading-numeric-prefix coercion for TEXT.
		if s, ok := v.(string); ok {
			if n, ok := leadingInt(s); ok {
				return n
			}
		}
		return CastDefault(Integer)
	case Real, Numeric:
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
		if s, ok := v.(string); ok {
			if n, ok := leadingFloat(s); ok {
				return n
			}
		}
		return CastDefault(a)
	case Text:
		s, err := cast.ToStringE(v)
		if err != nil {
			return CastDefault(Text)
		}
		return s
	case Blob:
		switch b := v.(type) {
		case []byte:
			return b
		case string:
			return []byte(b)
		default:
			return CastDefault(Blob)
		}
	default:
		return v
	}
}

func leadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, false
	}
	n, err := cast.ToInt64E(s[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

func leadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	seenDot := false
	for i < len(s) {
		c := s[i]
		if c >= '0' && c <= '9' {
			i++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			i++
			continue
		}
		break
	}
	if i == start || (i == start+1 && seenDot) {
		return 0, false
	}
	f, err := cast.ToFloat64E(s[:i])
	if err != nil {
		return 0, false
	}
	return f, true
}

// looksNumeric reports whether a TEXT value should be compared under
// numeric ordering rather than lexicographic ordering (§4.A).
func looksNumeric(s string) bool {
	_, ok := leadingFloat(s)
	return ok && strings.TrimSpace(s) == formatNumericPrefix(s)
}

func formatNumericPrefix(s string) string {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	seenDot := false
	for i < len(s) {
		c := s[i]
		if c >= '0' && c <= '9' {
			i++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			i++
			continue
		}
		break
	}
	return s[:i]
}

// Compare orders two values of the given type under SQL three-valued
// semantics extended with a total order for ORDER BY/index purposes: NULL
// sorts before any non-NULL value. Returns -1/0/1 and isNull indicates a
// NULL was involved in the comparison (callers doing WHERE-predicate
// evaluation should treat that as UNKNOWN rather than this total order).
func Compare(a, b interface{}, t Type) (cmp int, isNull bool) {
	if a == nil && b == nil {
		return 0, true
	}
	if a == nil {
		return -1, true
	}
	if b == nil {
		return 1, true
	}
	switch t.Affinity {
	case Integer, Real, Numeric:
		af, aerr := cast.ToFloat64E(a)
		bf, berr := cast.ToFloat64E(b)
		if aerr == nil && berr == nil {
			return compareFloat(af, bf), false
		}
		fallthrough
	case Text:
		as, _ := cast.ToStringE(a)
		bs, _ := cast.ToStringE(b)
		if as2, ok := a.(string); ok {
			as = as2
		}
		if bs2, ok := b.(string); ok {
			bs = bs2
		}
		if looksNumeric(as) && looksNumeric(bs) {
			af, aerr := leadingFloat(as)
			bf, berr := leadingFloat(bs)
			if aerr && berr {
				return compareFloat(af, bf), false
			}
		}
		if t.Collation == CollationNoCase {
			return strings.Compare(strings.ToUpper(as), strings.ToUpper(bs)), false
		}
		return strings.Compare(as, bs), false
	case Blob:
		ab, aok := a.([]byte)
		bb, bok := b.([]byte)
		if aok && bok {
			return bytes.Compare(ab, bb), false
		}
	}
	as, _ := cast.ToStringE(a)
	bs, _ := cast.ToStringE(b)
	return strings.Compare(as, bs), false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal is sugar over Compare for the common equality-test case, returning
// (result, isNull) matching three-valued-logic expectations.
func Equal(a, b interface{}, t Type) (bool, bool) {
	cmp, isNull := Compare(a, b, t)
	return cmp == 0, isNull
}
