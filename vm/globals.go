package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Global variables
// ---------------------------------------------------------------------------

// storeGlobal writes slot, growing the global table as needed. A table
// stored into a named global takes the global's name.
func (i *Interpreter) storeGlobal(slot int, v Value) {
	if v.kind == KindTable {
		if name, ok := i.globalNames[slot]; ok {
			v.table.Name = name
		}
	}
	if slot >= len(i.globals) {
		grown := make([]Value, slot+1)
		copy(grown, i.globals)
		i.globals = grown
	}
	i.globals[slot] = v
}

// DefineGlobal binds a global slot before or between runs, for example to
// hand inputs to a program. Negative slots are rejected.
func (i *Interpreter) DefineGlobal(slot int, v Value) error {
	if slot < 0 {
		return fmt.Errorf("vm: invalid global slot %d", slot)
	}
	i.storeGlobal(slot, v)
	return nil
}

// Global returns the value in slot, or Null if it was never assigned.
func (i *Interpreter) Global(slot int) Value {
	if slot < 0 || slot >= len(i.globals) {
		return Null
	}
	return i.globals[slot]
}

// Globals returns a copy of the global table.
func (i *Interpreter) Globals() []Value {
	out := make([]Value, len(i.globals))
	copy(out, i.globals)
	return out
}

// GlobalNames returns the registered name of every named global slot.
func (i *Interpreter) GlobalNames() map[int]string {
	return copyNames(i.globalNames)
}

// ExplicitGlobalNames returns the names of globals declared with the global
// keyword.
func (i *Interpreter) ExplicitGlobalNames() map[int]string {
	return copyNames(i.explicitGlobalNames)
}

// Lookup returns the value of the global registered under name.
func (i *Interpreter) Lookup(name string) (Value, bool) {
	for slot, n := range i.globalNames {
		if n == name && slot < len(i.globals) {
			return i.globals[slot], true
		}
	}
	return Null, false
}

// Relations returns the foreign keys declared during the last run.
func (i *Interpreter) Relations() []ExplicitRelation {
	return append([]ExplicitRelation(nil), i.relations...)
}

// PrimaryKeys returns the primary keys declared during the last run.
func (i *Interpreter) PrimaryKeys() []ExplicitPrimaryKey {
	return append([]ExplicitPrimaryKey(nil), i.primaryKeys...)
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// GlobalVar is one named global in a snapshot.
type GlobalVar struct {
	Slot     int
	Name     string
	Explicit bool
	Value    Value
}

// Snapshot is the post-run global state handed to export features.
type Snapshot struct {
	Vars        []GlobalVar // named globals, by slot
	Relations   []ExplicitRelation
	PrimaryKeys []ExplicitPrimaryKey
}

// Snapshot captures the named globals and declarations of the last run.
func (i *Interpreter) Snapshot() *Snapshot {
	s := &Snapshot{
		Relations:   i.Relations(),
		PrimaryKeys: i.PrimaryKeys(),
	}
	slots := make([]int, 0, len(i.globalNames))
	for slot := range i.globalNames {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		_, explicit := i.explicitGlobalNames[slot]
		s.Vars = append(s.Vars, GlobalVar{
			Slot:     slot,
			Name:     i.globalNames[slot],
			Explicit: explicit,
			Value:    i.Global(slot),
		})
	}
	return s
}

// Tables returns the table-valued globals of the snapshot.
func (s *Snapshot) Tables() []GlobalVar {
	var out []GlobalVar
	for _, v := range s.Vars {
		if v.Value.IsTable() {
			out = append(out, v)
		}
	}
	return out
}

func copyNames(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
