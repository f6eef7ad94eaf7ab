package vm

import (
	"math"
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Element access
// ---------------------------------------------------------------------------

// GetElement implements container[index], dispatching on the pair of
// container and index kinds.
func GetElement(container, index Value) (Value, *Fault) {
	switch container.kind {
	case KindArray:
		n, f := elementIndex("Array", index)
		if f != nil {
			return Null, f
		}
		if n >= container.array.Len() {
			return Null, raise(IndexError, "Array index %d out of bounds (length: %d)", n, container.array.Len())
		}
		return container.array.elems[n], nil

	case KindTable:
		return tableElement(container.table, index)

	case KindObject:
		if !index.IsString() {
			return Null, raise(TypeError, "Object index must be a string, got %s", index.TypeName())
		}
		v, ok := container.obj.Get(index.str)
		if !ok {
			return Null, raise(KeyError, "Key '%s' not found in object", index.str)
		}
		return v, nil

	case KindColumn:
		n, f := elementIndex("Column", index)
		if f != nil {
			return Null, f
		}
		col, ok := container.table.Column(container.str)
		if !ok {
			return Null, raise(KeyError, "Column '%s' not found", container.str)
		}
		if n >= len(col) {
			return Null, raise(IndexError, "Column index %d out of bounds (length: %d)", n, len(col))
		}
		return col[n], nil

	case KindPath:
		if !index.IsString() {
			return Null, raise(TypeError, "Path property access requires a string, got %s", index.TypeName())
		}
		return pathProperty(container.str, index.str)
	}
	return Null, raise(TypeError, "Cannot index %s", container.TypeName())
}

// elementIndex validates a numeric index. Fractional indexes truncate.
func elementIndex(what string, index Value) (int, *Fault) {
	if !index.IsNumber() {
		return 0, raise(TypeError, "%s index must be a number, got %s", what, index.TypeName())
	}
	n := index.num
	if math.IsNaN(n) {
		return 0, raise(TypeError, "%s index must be a number, got NaN", what)
	}
	if n < 0 {
		return 0, raise(RuntimeError, "%s index must be non-negative", what)
	}
	if n > math.MaxInt32 {
		return 0, raise(IndexError, "%s index %s out of bounds", what, FormatNumber(math.Trunc(n)))
	}
	return int(n), nil
}

func tableElement(t *Table, index Value) (Value, *Fault) {
	switch index.kind {
	case KindString:
		switch index.str {
		case "rows":
			rows := make([]Value, len(t.Rows))
			for i, r := range t.Rows {
				rows[i] = NewArrayValue(r...)
			}
			return NewArrayValue(rows...), nil
		case "columns":
			cols := make([]Value, len(t.Headers))
			for i, h := range t.Headers {
				cols[i] = FromString(h)
			}
			return NewArrayValue(cols...), nil
		}
		if !t.HasColumn(index.str) {
			return Null, raise(KeyError, "Column '%s' not found in table", index.str)
		}
		return FromColumn(t, index.str), nil

	case KindNumber:
		n, f := elementIndex("Table row", index)
		if f != nil {
			return Null, f
		}
		row, ok := t.Row(n)
		if !ok {
			return Null, raise(IndexError, "Row index %d out of bounds (length: %d)", n, t.RowCount())
		}
		return FromObject(row), nil
	}
	return Null, raise(TypeError, "Table index must be a column name or row number, got %s", index.TypeName())
}

// ---------------------------------------------------------------------------
// Path pseudo-properties
// ---------------------------------------------------------------------------

func pathProperty(p, property string) (Value, *Fault) {
	switch property {
	case "is_file":
		info, err := os.Stat(p)
		return FromBool(err == nil && info.Mode().IsRegular()), nil
	case "is_dir":
		info, err := os.Stat(p)
		return FromBool(err == nil && info.IsDir()), nil
	case "exists":
		_, err := os.Stat(p)
		return FromBool(err == nil), nil
	case "name":
		if name, ok := pathName(p); ok {
			return FromString(name), nil
		}
		return Null, nil
	case "extension":
		if ext, ok := pathExtension(p); ok {
			return FromString(ext), nil
		}
		return Null, nil
	case "parent":
		if parent, ok := pathParent(p); ok {
			return FromPath(parent), nil
		}
		return Null, nil
	}
	return Null, raise(KeyError, "Property '%s' not found on path", property)
}

// pathName returns the final component of p, if it names a file or directory.
func pathName(p string) (string, bool) {
	trimmed := strings.TrimRight(p, string(filepath.Separator))
	if trimmed == "" {
		return "", false
	}
	name := filepath.Base(trimmed)
	if name == "." || name == ".." {
		return "", false
	}
	return name, true
}

// pathExtension returns the text after the last dot of the final component.
// Dotfiles without a further dot have no extension.
func pathExtension(p string) (string, bool) {
	name, ok := pathName(p)
	if !ok {
		return "", false
	}
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return "", false
	}
	return name[dot+1:], true
}

// pathParent returns the directory containing p. The filesystem root and
// bare names have no parent.
func pathParent(p string) (string, bool) {
	trimmed := strings.TrimRight(p, string(filepath.Separator))
	if trimmed == "" || !strings.ContainsRune(trimmed, filepath.Separator) {
		return "", false
	}
	return filepath.Dir(trimmed), true
}
