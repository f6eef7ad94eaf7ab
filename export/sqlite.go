// Package export writes the global state of a finished run to external
// stores.
package export

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/datacode/vm"
)

// maxValueText bounds the rendered value stored per variable.
const maxValueText = 10000

const (
	variablesTable   = "_datacode_variables"
	relationsTable   = "_datacode_relations"
	primaryKeysTable = "_datacode_primary_keys"
)

var log = commonlog.GetLogger("datacode.export")

// ToSQLite writes snap to a fresh SQLite database at path, replacing any
// existing file. Every named global becomes a row of _datacode_variables and
// every table-valued global is written as a table of the same name.
func ToSQLite(path string, snap *vm.Snapshot) error {
	if snap == nil {
		return errors.New("export: nil snapshot")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := writeSnapshot(tx, snap); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing export: %w", err)
	}

	log.Infof("exported %d variables to %s", len(snap.Vars), path)
	return nil
}

func writeSnapshot(tx *sql.Tx, snap *vm.Snapshot) error {
	if err := writeVariables(tx, snap.Vars); err != nil {
		return err
	}

	exported := make(map[string]*vm.Table)
	for _, v := range snap.Tables() {
		if strings.HasPrefix(v.Name, "_datacode_") {
			log.Warningf("skipping table %s: reserved name", v.Name)
			continue
		}
		if err := writeTable(tx, v.Name, v.Value.Table()); err != nil {
			return err
		}
		exported[v.Name] = v.Value.Table()
	}

	if err := writeRelations(tx, snap.Relations, exported); err != nil {
		return err
	}
	return writePrimaryKeys(tx, snap.PrimaryKeys)
}

// ---------------------------------------------------------------------------
// Metadata tables
// ---------------------------------------------------------------------------

func writeVariables(tx *sql.Tx, vars []vm.GlobalVar) error {
	_, err := tx.Exec(`CREATE TABLE ` + variablesTable + ` (
		name TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		is_global INTEGER NOT NULL,
		table_name TEXT,
		table_id TEXT,
		row_count INTEGER,
		column_count INTEGER,
		value TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating %s: %w", variablesTable, err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO ` + variablesTable +
		` (name, type, is_global, table_name, table_id, row_count, column_count, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing variable insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, v := range vars {
		var tableName, tableID, rows, cols any
		if t := v.Value.Table(); t != nil {
			tableName = t.DisplayName()
			tableID = t.ID.String()
			rows = t.RowCount()
			cols = t.ColumnCount()
		}
		text := v.Value.String()
		if len(text) > maxValueText {
			text = text[:maxValueText]
		}
		if _, err := stmt.Exec(v.Name, v.Value.TypeName(), boolInt(v.Explicit),
			tableName, tableID, rows, cols, text, now); err != nil {
			return fmt.Errorf("writing variable %s: %w", v.Name, err)
		}
	}
	return nil
}

func writeRelations(tx *sql.Tx, rels []vm.ExplicitRelation, exported map[string]*vm.Table) error {
	_, err := tx.Exec(`CREATE TABLE ` + relationsTable + ` (
		source_table TEXT NOT NULL,
		source_column TEXT NOT NULL,
		target_table TEXT NOT NULL,
		target_column TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating %s: %w", relationsTable, err)
	}

	for _, r := range rels {
		if _, err := tx.Exec(`INSERT INTO `+relationsTable+
			` (source_table, source_column, target_table, target_column) VALUES (?, ?, ?, ?)`,
			r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn); err != nil {
			return fmt.Errorf("writing relation %s: %w", r, err)
		}
		for _, end := range [][2]string{{r.SourceTable, r.SourceColumn}, {r.TargetTable, r.TargetColumn}} {
			if err := createIndex(tx, end[0], end[1], exported); err != nil {
				return err
			}
		}
	}
	return nil
}

func createIndex(tx *sql.Tx, table, column string, exported map[string]*vm.Table) error {
	t, ok := exported[table]
	if !ok || !t.HasColumn(column) {
		return nil
	}
	name := quoteIdent("idx_" + table + "_" + column)
	_, err := tx.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		name, quoteIdent(table), quoteIdent(column)))
	if err != nil {
		return fmt.Errorf("indexing %s.%s: %w", table, column, err)
	}
	return nil
}

func writePrimaryKeys(tx *sql.Tx, pks []vm.ExplicitPrimaryKey) error {
	_, err := tx.Exec(`CREATE TABLE ` + primaryKeysTable + ` (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating %s: %w", primaryKeysTable, err)
	}
	for _, pk := range pks {
		if _, err := tx.Exec(`INSERT INTO `+primaryKeysTable+` (table_name, column_name) VALUES (?, ?)`,
			pk.Table, pk.Column); err != nil {
			return fmt.Errorf("writing primary key %s.%s: %w", pk.Table, pk.Column, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Data tables
// ---------------------------------------------------------------------------

func writeTable(tx *sql.Tx, name string, t *vm.Table) error {
	if len(t.Headers) == 0 {
		log.Debugf("skipping table %s: no columns", name)
		return nil
	}

	defs := make([]string, len(t.Headers))
	cols := make([]string, len(t.Headers))
	marks := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		col, _ := t.Column(h)
		cols[i] = quoteIdent(h)
		defs[i] = cols[i] + " " + columnType(col)
		marks[i] = "?"
	}

	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("creating table %s: %w", name, err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Headers))
	for r, row := range t.Rows {
		for i := range args {
			args[i] = nil
			if i < len(row) {
				args[i] = sqlValue(row[i])
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("writing row %d of %s: %w", r, name, err)
		}
	}
	log.Debugf("exported table %s (%d rows)", name, t.RowCount())
	return nil
}

// columnType picks the SQLite affinity that fits every non-null value.
func columnType(values []vm.Value) string {
	typ := ""
	for _, v := range values {
		var vt string
		switch {
		case v.IsNull():
			continue
		case v.IsBool():
			vt = "INTEGER"
		case v.IsNumber():
			vt = "INTEGER"
			if n := v.Number(); n != math.Trunc(n) || math.IsInf(n, 0) {
				vt = "REAL"
			}
		default:
			return "TEXT"
		}
		switch {
		case typ == "":
			typ = vt
		case typ != vt:
			typ = "REAL"
		}
	}
	if typ == "" {
		return "TEXT"
	}
	return typ
}

func sqlValue(v vm.Value) any {
	switch {
	case v.IsNull():
		return nil
	case v.IsBool():
		return boolInt(v.Bool())
	case v.IsNumber():
		n := v.Number()
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	}
	return v.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
