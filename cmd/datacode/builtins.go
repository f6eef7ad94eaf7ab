package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/datacode/vm"
)

// Builtin native table. Compiled programs address natives by position, so
// the order here is part of the artifact contract.
const (
	nativePrint = iota
	nativeLen
	nativeTable
	nativeAddRow
	nativeRelate
	nativePrimaryKey
	nativePush
	nativeReadFile
)

func builtins(out io.Writer) []vm.Native {
	return []vm.Native{
		nativePrint:      {Name: "print", Fn: printNative(out)},
		nativeLen:        {Name: "len", Fn: lenNative},
		nativeTable:      {Name: "table", Fn: tableNative},
		nativeAddRow:     {Name: "add_row", Fn: addRowNative},
		nativeRelate:     {Name: "relate", Fn: relateNative},
		nativePrimaryKey: {Name: "primary_key", Fn: primaryKeyNative},
		nativePush:       {Name: "push", Fn: pushNative},
		nativeReadFile:   {Name: "read_file", Fn: readFileNative},
	}
}

func printNative(out io.Writer) vm.NativeFunc {
	return func(env *vm.NativeEnv, args []vm.Value) vm.Value {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		if _, err := fmt.Fprintln(out, strings.Join(parts, " ")); err != nil {
			env.Wrap(vm.IOError, err)
		}
		return vm.Null
	}
}

func arity(env *vm.NativeEnv, name string, args []vm.Value, n int) bool {
	if len(args) != n {
		env.Raise(vm.TypeError, "%s() takes %d arguments (%d given)", name, n, len(args))
		return false
	}
	return true
}

func lenNative(env *vm.NativeEnv, args []vm.Value) vm.Value {
	if !arity(env, "len", args, 1) {
		return vm.Null
	}
	switch v := args[0]; {
	case v.IsArray():
		return vm.FromInt(v.Array().Len())
	case v.IsTable():
		return vm.FromInt(v.Table().RowCount())
	case v.IsString():
		return vm.FromInt(len([]rune(v.Text())))
	case v.IsObject():
		return vm.FromInt(v.Object().Len())
	}
	env.Raise(vm.TypeError, "len() of %s", args[0].TypeName())
	return vm.Null
}

// table(["a", "b"]) creates an empty table with the given headers.
func tableNative(env *vm.NativeEnv, args []vm.Value) vm.Value {
	if !arity(env, "table", args, 1) {
		return vm.Null
	}
	arr := args[0].Array()
	if arr == nil {
		env.Raise(vm.TypeError, "table() expects an array of column names, got %s", args[0].TypeName())
		return vm.Null
	}
	headers := make([]string, arr.Len())
	for i, h := range arr.Elements() {
		if !h.IsString() {
			env.Raise(vm.TypeError, "column name must be a string, got %s", h.TypeName())
			return vm.Null
		}
		headers[i] = h.Text()
	}
	return vm.FromTable(vm.NewTable(headers...))
}

func addRowNative(env *vm.NativeEnv, args []vm.Value) vm.Value {
	if !arity(env, "add_row", args, 2) {
		return vm.Null
	}
	t, row := args[0].Table(), args[1].Array()
	if t == nil || row == nil {
		env.Raise(vm.TypeError, "add_row() expects a table and an array")
		return vm.Null
	}
	if err := t.AddRow(row.Elements()...); err != nil {
		env.Wrap(vm.ValueError, err)
		return vm.Null
	}
	return args[0]
}

// relate(users["id"], orders["user_id"]) declares a foreign key.
func relateNative(env *vm.NativeEnv, args []vm.Value) vm.Value {
	if !arity(env, "relate", args, 2) {
		return vm.Null
	}
	if !env.Relate(args[0], args[1]) {
		env.Raise(vm.TypeError, "relate() expects two column references")
	}
	return vm.Null
}

func primaryKeyNative(env *vm.NativeEnv, args []vm.Value) vm.Value {
	if !arity(env, "primary_key", args, 1) {
		return vm.Null
	}
	if !env.PrimaryKey(args[0]) {
		env.Raise(vm.TypeError, "primary_key() expects a column reference")
	}
	return vm.Null
}

func pushNative(env *vm.NativeEnv, args []vm.Value) vm.Value {
	if !arity(env, "push", args, 2) {
		return vm.Null
	}
	arr := args[0].Array()
	if arr == nil {
		env.Raise(vm.TypeError, "push() expects an array, got %s", args[0].TypeName())
		return vm.Null
	}
	arr.Append(args[1])
	return args[0]
}

func readFileNative(env *vm.NativeEnv, args []vm.Value) vm.Value {
	if !arity(env, "read_file", args, 1) {
		return vm.Null
	}
	if !args[0].IsPath() && !args[0].IsString() {
		env.Raise(vm.TypeError, "read_file() expects a path, got %s", args[0].TypeName())
		return vm.Null
	}
	data, err := os.ReadFile(args[0].Text())
	if err != nil {
		env.Wrap(vm.IOError, err)
		return vm.Null
	}
	return vm.FromString(string(data))
}
