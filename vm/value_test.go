package vm

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/datacode/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Equality and truthiness
// ---------------------------------------------------------------------------

func TestEqual(t *testing.T) {
	tbl := NewTable("a")
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numbers", FromNumber(1), FromNumber(1), true},
		{"negative zero", FromNumber(math.Copysign(0, -1)), FromNumber(0), true},
		{"nan", FromNumber(math.NaN()), FromNumber(math.NaN()), false},
		{"number vs string", FromNumber(1), FromString("1"), false},
		{"string vs path", FromString("/a"), FromPath("/a"), false},
		{"null", Null, Null, true},
		{"arrays by content", NewArrayValue(FromNumber(1)), NewArrayValue(FromNumber(1)), true},
		{"arrays differ", NewArrayValue(FromNumber(1)), NewArrayValue(FromNumber(2)), false},
		{"functions by index", FromFunction(1), FromFunction(1), true},
		{"function vs native", FromFunction(1), FromNative(1), false},
		{"same column", FromColumn(tbl, "a"), FromColumn(tbl, "a"), true},
		{"column other table", FromColumn(tbl, "a"), FromColumn(NewTable("a"), "a"), false},
		{"tables by content", FromTable(NewTable("x")), FromTable(NewTable("x")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEqualObjects(t *testing.T) {
	a, b := NewObject(), NewObject()
	a.Set("k", FromNumber(1))
	b.Set("k", FromNumber(1))
	if !Equal(FromObject(a), FromObject(b)) {
		t.Error("objects with the same fields are not equal")
	}
	b.Set("extra", Null)
	if Equal(FromObject(a), FromObject(b)) {
		t.Error("objects with different fields are equal")
	}
}

func TestTruthy(t *testing.T) {
	full := NewTable("a")
	_ = full.AddRow(FromNumber(1))
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null, false},
		{"false", False, false},
		{"true", True, true},
		{"zero", FromNumber(0), false},
		{"nonzero", FromNumber(-2), true},
		{"empty string", FromString(""), false},
		{"string", FromString("x"), true},
		{"empty array", NewArrayValue(), false},
		{"array", NewArrayValue(Null), true},
		{"empty table", FromTable(NewTable("a")), false},
		{"table", FromTable(full), true},
		{"empty object", FromObject(NewObject()), false},
		{"function", FromFunction(0), true},
		{"column", FromColumn(full, "a"), true},
		{"missing column", FromColumn(full, "b"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("Truthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{3, "3"},
		{-42, "-42"},
		{2.5, "2.5"},
		{0.1, "0.1"},
		{1e20, "100000000000000000000"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	obj := NewObject()
	obj.Set("b", FromNumber(2))
	obj.Set("a", FromString("x"))
	tbl := NewTable("id", "name")
	_ = tbl.AddRow(FromNumber(1), FromString("ann"))
	tbl.Name = "users"

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null, "null"},
		{"bool", True, "true"},
		{"string", FromString("hi"), "hi"},
		{"array", NewArrayValue(FromNumber(1), FromString("a"), Null), "[1, a, null]"},
		{"object sorted", FromObject(obj), `{"a": x, "b": 2}`},
		{"table", FromTable(tbl), "<table: 1 rows, 2 columns>"},
		{"column", FromColumn(tbl, "id"), "<column: users.id (1 values)>"},
		{"missing column", FromColumn(tbl, "zip"), "<column: users.zip (not found)>"},
		{"function", FromFunction(3), "<function>"},
		{"native", FromNative(0), "<native function>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueStringCycle(t *testing.T) {
	a := NewArray()
	a.Append(FromArray(a))
	s := FromArray(a).String()
	if len(s) == 0 || len(s) > 1000 {
		t.Errorf("cyclic rendering has length %d", len(s))
	}
}

// ---------------------------------------------------------------------------
// Aliasing and cloning
// ---------------------------------------------------------------------------

func TestArrayAliasingThroughGlobals(t *testing.T) {
	appendNative := Native{Name: "push", Fn: func(env *NativeEnv, args []Value) Value {
		args[0].Array().Append(args[1])
		return args[0]
	}}

	// a = [1, 2]; b = a; c = clone(a); push(a, 3)
	p := bytecode.NewProgram()
	m := p.Main
	m.EmitConstant(num(1))
	m.EmitConstant(num(2))
	m.Emit(bytecode.OpMakeArray, 2)
	m.Emit(bytecode.OpStoreGlobal, 0)
	m.Emit(bytecode.OpLoadGlobal, 0)
	m.Emit(bytecode.OpStoreGlobal, 1)
	m.Emit(bytecode.OpLoadGlobal, 0)
	m.Emit(bytecode.OpClone)
	m.Emit(bytecode.OpStoreGlobal, 2)
	m.Emit(bytecode.OpLoadGlobal, 0)
	m.EmitConstant(num(3))
	m.EmitConstant(bytecode.NativeConst(0))
	m.Emit(bytecode.OpCall, 2)
	m.Emit(bytecode.OpPop)

	interp, _ := mustRun(t, p, appendNative)
	if n := interp.Global(1).Array().Len(); n != 3 {
		t.Errorf("alias length = %d, want 3", n)
	}
	if n := interp.Global(2).Array().Len(); n != 2 {
		t.Errorf("clone length = %d, want 2", n)
	}
}

func TestDeepClone(t *testing.T) {
	inner := NewArray(FromNumber(1))
	obj := NewObject()
	obj.Set("list", FromArray(inner))
	orig := NewArrayValue(FromObject(obj), FromArray(inner))

	c := DeepClone(orig)
	if !Equal(c, orig) {
		t.Fatalf("clone %v differs from %v", c, orig)
	}
	inner.Append(FromNumber(2))
	if Equal(c, orig) {
		t.Error("mutating the original changed the clone")
	}

	// Shared sub-values stay shared within the clone.
	clonedObj := c.Array().Get(0).Object()
	list, _ := clonedObj.Get("list")
	if list.Array() != c.Array().Get(1).Array() {
		t.Error("clone did not preserve sharing")
	}
}

func TestDeepCloneTable(t *testing.T) {
	tbl := NewTable("id")
	_ = tbl.AddRow(FromNumber(1))
	tbl.Name = "things"

	c := DeepClone(FromTable(tbl)).Table()
	if c == tbl || c.ID == tbl.ID {
		t.Error("clone shares identity with the original")
	}
	if c.Name != "things" || c.RowCount() != 1 {
		t.Errorf("clone = %s with %d rows", c.Name, c.RowCount())
	}
	_ = tbl.AddRow(FromNumber(2))
	if c.RowCount() != 1 {
		t.Error("clone follows the original's rows")
	}

	col := FromColumn(tbl, "id")
	if ct, _, _ := DeepClone(col).Column(); ct != tbl {
		t.Error("cloned column reference moved to another table")
	}
}

func TestDeepCloneCycle(t *testing.T) {
	a := NewArray()
	a.Append(FromArray(a))
	c := DeepClone(FromArray(a)).Array()
	if c == a {
		t.Fatal("clone is the original")
	}
	if c.Get(0).Array() != c {
		t.Error("cycle not preserved in clone")
	}
}

// ---------------------------------------------------------------------------
// Cache keys
// ---------------------------------------------------------------------------

func TestNewCacheKey(t *testing.T) {
	key := func(args ...Value) CacheKey {
		t.Helper()
		k, ok := NewCacheKey(args)
		if !ok {
			t.Fatalf("NewCacheKey(%v) failed", args)
		}
		return k
	}

	if key(FromNumber(0)) != key(FromNumber(math.Copysign(0, -1))) {
		t.Error("-0 and 0 have different keys")
	}
	if key(FromNumber(1)) == key(FromString("1")) {
		t.Error("number and string share a key")
	}
	if key(FromString("ab"), FromString("c")) == key(FromString("a"), FromString("bc")) {
		t.Error("string boundaries are ambiguous")
	}
	if key(Null) == key(False) {
		t.Error("null and false share a key")
	}
	if key() != key() {
		t.Error("empty keys differ")
	}

	for _, bad := range []Value{FromNumber(math.NaN()), NewArrayValue(), FromTable(NewTable()), FromPath("/x")} {
		if _, ok := NewCacheKey([]Value{FromNumber(1), bad}); ok {
			t.Errorf("NewCacheKey accepted %s", bad.TypeName())
		}
	}
}

func TestHashable(t *testing.T) {
	for _, v := range []Value{Null, True, FromNumber(1), FromString("s")} {
		if !v.Hashable() {
			t.Errorf("%s not hashable", v.TypeName())
		}
	}
	for _, v := range []Value{NewArrayValue(), FromObject(NewObject()), FromFunction(0), FromPath("p")} {
		if v.Hashable() {
			t.Errorf("%s hashable", v.TypeName())
		}
	}
}

// ---------------------------------------------------------------------------
// Element access
// ---------------------------------------------------------------------------

func TestGetElementArray(t *testing.T) {
	arr := NewArrayValue(FromString("a"), FromString("b"), FromString("c"))
	tests := []struct {
		name    string
		index   Value
		want    Value
		wantErr ErrorType
		fails   bool
	}{
		{"first", FromNumber(0), FromString("a"), 0, false},
		{"last", FromNumber(2), FromString("c"), 0, false},
		{"truncates", FromNumber(1.9), FromString("b"), 0, false},
		{"length", FromNumber(3), Null, IndexError, true},
		{"huge", FromNumber(1e12), Null, IndexError, true},
		{"negative", FromNumber(-1), Null, RuntimeError, true},
		{"nan", FromNumber(math.NaN()), Null, TypeError, true},
		{"string", FromString("0"), Null, TypeError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, f := GetElement(arr, tt.index)
			if tt.fails {
				if f == nil || f.Type != tt.wantErr {
					t.Fatalf("fault = %v, want %s", f, tt.wantErr)
				}
				return
			}
			if f != nil {
				t.Fatalf("unexpected fault %v", f)
			}
			if !Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetElementHugeIndexMessage(t *testing.T) {
	tbl := NewTable("id")
	if err := tbl.AddRow(FromNumber(1)); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		container Value
		index     float64
		want      string
	}{
		{"array", NewArrayValue(FromNumber(1)), 1e12, "1000000000000"},
		{"array fractional", NewArrayValue(FromNumber(1)), 3000000000.5, "3000000000"},
		{"table row", FromTable(tbl), 5e9, "5000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, f := GetElement(tt.container, FromNumber(tt.index))
			if f == nil || f.Type != IndexError {
				t.Fatalf("fault = %v, want IndexError", f)
			}
			if !strings.Contains(f.Message, tt.want) {
				t.Errorf("message = %q, want it to mention %s", f.Message, tt.want)
			}
			if strings.Contains(f.Message, "2147483647") {
				t.Errorf("message = %q reports a clamped index", f.Message)
			}
		})
	}
}

func TestGetElementTable(t *testing.T) {
	tbl := NewTable("id", "name")
	_ = tbl.AddRow(FromNumber(1), FromString("ann"))
	_ = tbl.AddRow(FromNumber(2), FromString("bob"))
	tv := FromTable(tbl)

	row, f := GetElement(tv, FromNumber(1))
	if f != nil {
		t.Fatalf("row 1: %v", f)
	}
	if name, _ := row.Object().Get("name"); name.Text() != "bob" {
		t.Errorf("row 1 name = %v", name)
	}
	if _, f := GetElement(tv, FromNumber(2)); f == nil || f.Type != IndexError {
		t.Errorf("row 2 fault = %v, want IndexError", f)
	}

	col, f := GetElement(tv, FromString("name"))
	if f != nil || !col.IsColumn() {
		t.Fatalf("column access = %v, %v", col, f)
	}
	if v, f := GetElement(col, FromNumber(0)); f != nil || v.Text() != "ann" {
		t.Errorf("name[0] = %v, %v", v, f)
	}
	if _, f := GetElement(col, FromNumber(2)); f == nil || f.Type != IndexError {
		t.Errorf("name[2] fault = %v, want IndexError", f)
	}
	if _, f := GetElement(tv, FromString("zip")); f == nil || f.Type != KeyError {
		t.Errorf("missing column fault = %v, want KeyError", f)
	}

	headers, _ := GetElement(tv, FromString("columns"))
	if !Equal(headers, NewArrayValue(FromString("id"), FromString("name"))) {
		t.Errorf("columns = %v", headers)
	}
	rows, _ := GetElement(tv, FromString("rows"))
	if rows.Array().Len() != 2 {
		t.Errorf("rows = %v", rows)
	}
}

func TestGetElementViaBytecode(t *testing.T) {
	// [10, 20][1] through the opcode, and its length.
	p := bytecode.NewProgram()
	m := p.Main
	m.EmitConstant(num(10))
	m.EmitConstant(num(20))
	m.Emit(bytecode.OpMakeArray, 2)
	m.Emit(bytecode.OpStoreLocal, 0)
	m.Emit(bytecode.OpLoadLocal, 0)
	m.EmitConstant(num(1))
	m.Emit(bytecode.OpGetArrayElement)
	m.Emit(bytecode.OpLoadLocal, 0)
	m.Emit(bytecode.OpGetArrayLength)
	m.Emit(bytecode.OpAdd)
	m.Emit(bytecode.OpReturn)

	_, got := mustRun(t, p)
	if got.Number() != 22 {
		t.Errorf("got %v, want 22", got)
	}
}

func TestGetElementObject(t *testing.T) {
	obj := NewObject()
	obj.Set("k", FromNumber(1))
	if v, f := GetElement(FromObject(obj), FromString("k")); f != nil || v.Number() != 1 {
		t.Errorf("obj[k] = %v, %v", v, f)
	}
	if _, f := GetElement(FromObject(obj), FromString("x")); f == nil || f.Type != KeyError {
		t.Errorf("obj[x] fault = %v, want KeyError", f)
	}
	if _, f := GetElement(FromNumber(1), FromNumber(0)); f == nil || f.Type != TypeError {
		t.Errorf("1[0] fault = %v, want TypeError", f)
	}
}

func TestPathProperties(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.csv")
	if err := os.WriteFile(file, []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path, prop string
		want       Value
	}{
		{file, "is_file", True},
		{file, "is_dir", False},
		{dir, "is_dir", True},
		{file, "exists", True},
		{filepath.Join(dir, "missing"), "exists", False},
		{file, "name", FromString("report.csv")},
		{file, "extension", FromString("csv")},
		{file, "parent", FromPath(dir)},
		{"archive.tar.gz", "extension", FromString("gz")},
		{".bashrc", "extension", Null},
		{"README", "extension", Null},
		{"README", "parent", Null},
		{"/", "name", Null},
	}
	for _, tt := range tests {
		t.Run(tt.path+"."+tt.prop, func(t *testing.T) {
			got, f := GetElement(FromPath(tt.path), FromString(tt.prop))
			if f != nil {
				t.Fatalf("fault: %v", f)
			}
			if !Equal(got, tt.want) {
				t.Errorf("got %v (%s), want %v", got, got.TypeName(), tt.want)
			}
		})
	}

	if _, f := GetElement(FromPath(file), FromString("size")); f == nil || f.Type != KeyError {
		t.Errorf("unknown property fault = %v, want KeyError", f)
	}
}

func TestPathJoin(t *testing.T) {
	got, f := Binary(bytecode.OpDiv, FromPath("/data"), FromString("/etc/passwd"))
	if f != nil || got.Text() != "/etc/passwd" {
		t.Errorf("absolute join = %v, %v", got, f)
	}
	got, _ = Binary(bytecode.OpDiv, FromPath("/data"), FromString("in.csv"))
	if !got.IsPath() || got.Text() != "/data/in.csv" {
		t.Errorf("join = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

func TestTableAddRow(t *testing.T) {
	tbl := NewTable("a", "b")
	if err := tbl.AddRow(FromNumber(1)); err == nil {
		t.Error("short row accepted")
	}
	if err := tbl.AddRow(FromNumber(1), FromNumber(2)); err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 1 || tbl.ColumnCount() != 2 {
		t.Errorf("shape = %dx%d", tbl.RowCount(), tbl.ColumnCount())
	}
	if tbl.ColumnIndex("b") != 1 || tbl.ColumnIndex("c") != -1 {
		t.Error("ColumnIndex wrong")
	}
	if tbl.DisplayName() != "table" {
		t.Errorf("DisplayName = %q", tbl.DisplayName())
	}
}
