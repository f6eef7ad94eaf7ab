package vm

import (
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports structural equality. Arrays, tables and objects compare by
// contents; column references compare by table identity and column name.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindNumber:
		return a.num == b.num
	case KindBool:
		return a.Bool() == b.Bool()
	case KindString, KindPath:
		return a.str == b.str
	case KindFunction, KindNative:
		return a.index == b.index
	case KindArray:
		return equalSlices(a.array.elems, b.array.elems)
	case KindTable:
		return equalTables(a.table, b.table)
	case KindObject:
		return equalObjects(a.obj, b.obj)
	case KindColumn:
		return a.table == b.table && a.str == b.str
	}
	return false
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalTables(a, b *Table) bool {
	if a == b {
		return true
	}
	if len(a.Headers) != len(b.Headers) || len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Headers {
		if a.Headers[i] != b.Headers[i] {
			return false
		}
	}
	for i := range a.Rows {
		if !equalSlices(a.Rows[i], b.Rows[i]) {
			return false
		}
	}
	return true
}

func equalObjects(a, b *Object) bool {
	if a == b {
		return true
	}
	if len(a.fields) != len(b.fields) {
		return false
	}
	for k, av := range a.fields {
		bv, ok := b.fields[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

// Truthy reports whether the value counts as true in a condition.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool()
	case KindNumber:
		return v.num != 0
	case KindString, KindPath:
		return v.str != ""
	case KindArray:
		return v.array.Len() > 0
	case KindTable:
		return v.table.RowCount() > 0
	case KindObject:
		return v.obj.Len() > 0
	case KindColumn:
		return v.table.HasColumn(v.str) && v.table.RowCount() > 0
	}
	return true
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// FormatNumber renders a number the way the language displays it: integral
// values without a fractional part, others in shortest decimal form.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e18 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// String renders the value for display and for string concatenation.
func (v Value) String() string {
	var sb strings.Builder
	v.render(&sb, 0)
	return sb.String()
}

const maxRenderDepth = 64

func (v Value) render(sb *strings.Builder, depth int) {
	if depth > maxRenderDepth {
		sb.WriteString("...")
		return
	}
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindNumber:
		sb.WriteString(FormatNumber(v.num))
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.Bool()))
	case KindString, KindPath:
		sb.WriteString(v.str)
	case KindFunction:
		sb.WriteString("<function>")
	case KindNative:
		sb.WriteString("<native function>")
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.array.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.render(sb, depth+1)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			v.obj.fields[k].render(sb, depth+1)
		}
		sb.WriteByte('}')
	case KindTable:
		sb.WriteString("<table: ")
		sb.WriteString(strconv.Itoa(v.table.RowCount()))
		sb.WriteString(" rows, ")
		sb.WriteString(strconv.Itoa(v.table.ColumnCount()))
		sb.WriteString(" columns>")
	case KindColumn:
		sb.WriteString("<column: ")
		sb.WriteString(v.table.DisplayName())
		sb.WriteByte('.')
		sb.WriteString(v.str)
		if v.table.HasColumn(v.str) {
			sb.WriteString(" (")
			sb.WriteString(strconv.Itoa(v.table.RowCount()))
			sb.WriteString(" values)>")
		} else {
			sb.WriteString(" (not found)>")
		}
	}
}

// ---------------------------------------------------------------------------
// Deep clone
// ---------------------------------------------------------------------------

// DeepClone returns an independent copy of the value. Arrays, tables and
// objects are copied recursively; scalars are returned as is. A column
// reference keeps pointing at the same table.
func DeepClone(v Value) Value {
	return deepClone(v, make(map[any]Value))
}

func deepClone(v Value, seen map[any]Value) Value {
	switch v.kind {
	case KindArray:
		if c, ok := seen[v.array]; ok {
			return c
		}
		a := &Array{elems: make([]Value, len(v.array.elems))}
		c := FromArray(a)
		seen[v.array] = c
		for i, e := range v.array.elems {
			a.elems[i] = deepClone(e, seen)
		}
		return c
	case KindObject:
		if c, ok := seen[v.obj]; ok {
			return c
		}
		o := NewObject()
		c := FromObject(o)
		seen[v.obj] = c
		for k, e := range v.obj.fields {
			o.fields[k] = deepClone(e, seen)
		}
		return c
	case KindTable:
		if c, ok := seen[v.table]; ok {
			return c
		}
		return FromTable(v.table.clone(seen))
	}
	return v
}

// ---------------------------------------------------------------------------
// Hashability
// ---------------------------------------------------------------------------

// Hashable reports whether the value may be part of a memoization key.
// Only numbers, bools, strings and null qualify.
func (v Value) Hashable() bool {
	switch v.kind {
	case KindNumber, KindBool, KindString, KindNull:
		return true
	}
	return false
}
