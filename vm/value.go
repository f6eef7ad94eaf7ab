package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Value: tagged union of every runtime datum
// ---------------------------------------------------------------------------

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindString
	KindArray
	KindTable
	KindObject
	KindFunction
	KindNative
	KindPath
	KindColumn
)

var kindNames = [...]string{
	KindNull:     "null",
	KindNumber:   "number",
	KindBool:     "bool",
	KindString:   "string",
	KindArray:    "array",
	KindTable:    "table",
	KindObject:   "object",
	KindFunction: "function",
	KindNative:   "native function",
	KindPath:     "path",
	KindColumn:   "column",
}

// String returns the user-facing type name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a runtime datum. Scalars (number, bool, string, null, path and
// function references) are copied with the Value. Arrays, tables and objects
// are shared handles: copying the Value aliases the same storage.
type Value struct {
	kind  Kind
	num   float64
	str   string // string text, path text or column name
	index int    // function or native table index
	array *Array
	table *Table
	obj   *Object
}

// Well-known values
var (
	Null  = Value{kind: KindNull}
	True  = Value{kind: KindBool, num: 1}
	False = Value{kind: KindBool}
)

// FromNumber creates a number value.
func FromNumber(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// FromInt creates a number value from an integer.
func FromInt(n int) Value {
	return Value{kind: KindNumber, num: float64(n)}
}

// FromBool creates a bool value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromString creates a string value.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromPath creates a filesystem path value.
func FromPath(p string) Value {
	return Value{kind: KindPath, str: p}
}

// FromFunction creates a reference to the function at index in the program's
// function table.
func FromFunction(index int) Value {
	return Value{kind: KindFunction, index: index}
}

// FromNative creates a reference to the native at index in the native table.
func FromNative(index int) Value {
	return Value{kind: KindNative, index: index}
}

// FromArray wraps an array handle. A nil handle yields Null.
func FromArray(a *Array) Value {
	if a == nil {
		return Null
	}
	return Value{kind: KindArray, array: a}
}

// NewArrayValue creates a value holding a fresh array of the given elements.
func NewArrayValue(elems ...Value) Value {
	return FromArray(NewArray(elems...))
}

// FromTable wraps a table handle. A nil handle yields Null.
func FromTable(t *Table) Value {
	if t == nil {
		return Null
	}
	return Value{kind: KindTable, table: t}
}

// FromObject wraps an object handle. A nil handle yields Null.
func FromObject(o *Object) Value {
	if o == nil {
		return Null
	}
	return Value{kind: KindObject, obj: o}
}

// FromColumn creates a reference to a column of a table. The reference keeps
// the table's identity rather than a copy of the column.
func FromColumn(t *Table, column string) Value {
	if t == nil {
		return Null
	}
	return Value{kind: KindColumn, table: t, str: column}
}

// Kind returns the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// TypeName returns the user-facing type name of the value.
func (v Value) TypeName() string { return v.kind.String() }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsTable() bool  { return v.kind == KindTable }
func (v Value) IsObject() bool { return v.kind == KindObject }
func (v Value) IsPath() bool   { return v.kind == KindPath }
func (v Value) IsColumn() bool { return v.kind == KindColumn }

// IsCallable reports whether the value can be the target of a call.
func (v Value) IsCallable() bool {
	return v.kind == KindFunction || v.kind == KindNative
}

// Number returns the numeric payload, or 0 for non-numbers.
func (v Value) Number() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.num
}

// Bool returns the boolean payload, or false for non-bools.
func (v Value) Bool() bool {
	return v.kind == KindBool && v.num != 0
}

// Text returns the text of a string or path value, or "" otherwise.
func (v Value) Text() string {
	if v.kind == KindString || v.kind == KindPath {
		return v.str
	}
	return ""
}

// Index returns the table index of a function or native reference, or -1.
func (v Value) Index() int {
	if v.kind == KindFunction || v.kind == KindNative {
		return v.index
	}
	return -1
}

// Array returns the array handle, or nil if the value is not an array.
func (v Value) Array() *Array { return v.array }

// Table returns the table handle, or nil if the value is not a table.
func (v Value) Table() *Table {
	if v.kind != KindTable {
		return nil
	}
	return v.table
}

// Object returns the object handle, or nil if the value is not an object.
func (v Value) Object() *Object { return v.obj }

// Column returns the table and column name of a column reference.
func (v Value) Column() (*Table, string, bool) {
	if v.kind != KindColumn {
		return nil, "", false
	}
	return v.table, v.str, true
}

// ---------------------------------------------------------------------------
// Array: shared mutable sequence
// ---------------------------------------------------------------------------

// Array is a growable sequence of values shared by every Value that holds it.
type Array struct {
	elems []Value
}

// NewArray creates an array holding the given elements.
func NewArray(elems ...Value) *Array {
	a := &Array{elems: make([]Value, len(elems))}
	copy(a.elems, elems)
	return a
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// Get returns the element at index, or Null when out of range.
func (a *Array) Get(index int) Value {
	if index < 0 || index >= len(a.elems) {
		return Null
	}
	return a.elems[index]
}

// Set replaces the element at index. Returns false when out of range.
func (a *Array) Set(index int, v Value) bool {
	if index < 0 || index >= len(a.elems) {
		return false
	}
	a.elems[index] = v
	return true
}

// Append adds values to the end of the array.
func (a *Array) Append(vs ...Value) {
	a.elems = append(a.elems, vs...)
}

// Elements returns a copy of the elements.
func (a *Array) Elements() []Value {
	out := make([]Value, len(a.elems))
	copy(out, a.elems)
	return out
}

// ---------------------------------------------------------------------------
// Object: shared string-keyed map
// ---------------------------------------------------------------------------

// Object is a string-keyed map of values shared by every Value that holds it.
type Object struct {
	fields map[string]Value
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Get returns the field value and whether it exists.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Set stores a field.
func (o *Object) Set(key string, v Value) {
	o.fields[key] = v
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.fields) }

// Keys returns the field names in sorted order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
