package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// NativeFunc implements a builtin. Natives cannot return an error: they
// report faults through env, which the interpreter checks after every call.
type NativeFunc func(env *NativeEnv, args []Value) Value

// Native is one entry of the index-addressed native table.
type Native struct {
	Name string
	Fn   NativeFunc
}

// NativeEnv is the side channel between a native and the interpreter. It is
// reset before each native call.
type NativeEnv struct {
	fault       *Fault
	relations   []pendingRelation
	primaryKeys []pendingPrimaryKey
	log         commonlog.Logger
}

type pendingRelation struct {
	pkTable  *Table
	pkColumn string
	fkTable  *Table
	fkColumn string
}

type pendingPrimaryKey struct {
	table  *Table
	column string
}

func (e *NativeEnv) reset() {
	e.fault = nil
	e.relations = e.relations[:0]
	e.primaryKeys = e.primaryKeys[:0]
}

// Raise records a fault of the given type. The native's return value is
// discarded and the fault is dispatched as if the call instruction raised it.
func (e *NativeEnv) Raise(t ErrorType, format string, args ...any) {
	if e.fault == nil {
		e.fault = raise(t, format, args...)
	}
}

// Fail records an IOError fault, the category used for host-environment
// failures such as sandbox violations.
func (e *NativeEnv) Fail(format string, args ...any) {
	e.Raise(IOError, format, args...)
}

// Wrap records a fault of the given type wrapping a Go error.
func (e *NativeEnv) Wrap(t ErrorType, err error) {
	if e.fault == nil && err != nil {
		e.fault = &Fault{Type: t, Message: err.Error(), cause: err}
	}
}

// Failed reports whether a fault has been recorded during this call.
func (e *NativeEnv) Failed() bool {
	return e.fault != nil
}

// Relate records that the column fk references the primary key column pk.
// Both values must be column references; returns false otherwise.
func (e *NativeEnv) Relate(pk, fk Value) bool {
	pkTable, pkColumn, ok := pk.Column()
	if !ok {
		return false
	}
	fkTable, fkColumn, ok := fk.Column()
	if !ok {
		return false
	}
	e.relations = append(e.relations, pendingRelation{pkTable, pkColumn, fkTable, fkColumn})
	return true
}

// PrimaryKey records that a column is its table's primary key.
func (e *NativeEnv) PrimaryKey(column Value) bool {
	t, name, ok := column.Column()
	if !ok {
		return false
	}
	e.primaryKeys = append(e.primaryKeys, pendingPrimaryKey{t, name})
	return true
}

// Logger returns the interpreter's logger.
func (e *NativeEnv) Logger() commonlog.Logger {
	return e.log
}

func (e *NativeEnv) takeFault() *Fault {
	f := e.fault
	e.fault = nil
	return f
}

// ---------------------------------------------------------------------------
// Explicit relations and primary keys
// ---------------------------------------------------------------------------

// ExplicitRelation is a foreign key declared by the program: SourceColumn of
// SourceTable references TargetColumn of TargetTable.
type ExplicitRelation struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
}

// String renders the relation as source -> target.
func (r ExplicitRelation) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn)
}

// ExplicitPrimaryKey is a primary key declared by the program.
type ExplicitPrimaryKey struct {
	Table  string
	Column string
}

// collectDeclarations resolves the relations and primary keys recorded by the
// last native call. Tables are identified by handle and named after the
// explicitly declared global holding them; records whose tables are not held
// by such a global are dropped.
func (i *Interpreter) collectDeclarations() {
	for _, r := range i.env.relations {
		target, ok1 := i.explicitNameOf(r.pkTable)
		source, ok2 := i.explicitNameOf(r.fkTable)
		if !ok1 || !ok2 {
			i.log.Debugf("relation %s -> %s dropped: table not bound to a global", r.fkColumn, r.pkColumn)
			continue
		}
		i.relations = append(i.relations, ExplicitRelation{
			SourceTable:  source,
			SourceColumn: r.fkColumn,
			TargetTable:  target,
			TargetColumn: r.pkColumn,
		})
	}
	for _, pk := range i.env.primaryKeys {
		name, ok := i.explicitNameOf(pk.table)
		if !ok {
			i.log.Debugf("primary key %s dropped: table not bound to a global", pk.column)
			continue
		}
		i.primaryKeys = append(i.primaryKeys, ExplicitPrimaryKey{Table: name, Column: pk.column})
	}
}

// explicitNameOf returns the name of the lowest explicitly declared global
// slot holding t.
func (i *Interpreter) explicitNameOf(t *Table) (string, bool) {
	for slot, v := range i.globals {
		if v.kind != KindTable || v.table != t {
			continue
		}
		if name, ok := i.explicitGlobalNames[slot]; ok {
			return name, true
		}
	}
	return "", false
}
