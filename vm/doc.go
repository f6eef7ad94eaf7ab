// Package vm implements the DataCode virtual machine.
//
// This package contains:
//   - The tagged Value representation with shared Array, Table and Object handles
//   - Value semantics: structural equality, truthiness, rendering, deep clone
//   - The bytecode interpreter driven by an explicit frame stack
//   - Value-capturing closures resolved against the live frame stack
//   - Per-function result memoization
//   - Structured exception handling with a typed error hierarchy
//   - The native function table and its fault side channel
//   - Post-run introspection of globals, relations and primary keys
package vm
