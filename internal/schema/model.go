package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// DetailLevel selects how much catalog metadata is loaded for a table.
type DetailLevel int

const (
	// Basic loads columns, identity, primary and unique keys.
	Basic DetailLevel = iota
	// Extended adds outbound foreign keys and inbound references.
	Extended
)

func (l DetailLevel) String() string {
	if l == Extended {
		return "extended"
	}
	return "basic"
}

// ParseDetailLevel accepts "basic" or "extended" (case-insensitive); empty means basic.
func ParseDetailLevel(s string) (DetailLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic":
		return Basic, nil
	case "extended":
		return Extended, nil
	default:
		return Basic, errors.Errorf("unknown detail level: %s", s)
	}
}

type ColumnDefinition struct {
	Name       string
	Ordinal    int
	DataType   string
	Length     int // character max length, -1 for MAX
	Precision  int
	Scale      int
	IsNullable bool
	IsIdentity bool
}

// SQLType renders the column type with its length or precision, e.g. nvarchar(50).
func (c ColumnDefinition) SQLType() string {
	t := strings.ToLower(c.DataType)
	switch t {
	case "char", "varchar", "nchar", "nvarchar", "binary", "varbinary":
		if c.Length < 0 {
			return t + "(max)"
		}
		if c.Length > 0 {
			return fmt.Sprintf("%s(%d)", t, c.Length)
		}
	case "decimal", "numeric":
		if c.Precision > 0 {
			return fmt.Sprintf("%s(%d,%d)", t, c.Precision, c.Scale)
		}
	}
	return t
}

const (
	ConstraintPrimaryKey = "PRIMARY KEY"
	ConstraintUnique     = "UNIQUE"
)

type KeyConstraint struct {
	Name    string
	Type    string
	Columns []string
}

// ForeignKeyConstraint describes Schema.Table(Columns) -> ReferencedSchema.ReferencedTable(ReferencedColumns).
type ForeignKeyConstraint struct {
	Name              string
	Schema            string
	Table             string
	Columns           []string
	ReferencedSchema  string
	ReferencedTable   string
	ReferencedColumns []string
}

type TableDefinition struct {
	Name         TableName
	Columns      []ColumnDefinition
	Identity     *ColumnDefinition
	PrimaryKey   *KeyConstraint
	UniqueKeys   []KeyConstraint
	ForeignKeys  []ForeignKeyConstraint // Extended only
	ReferencedBy []ForeignKeyConstraint // Extended only
	DetailLevel  DetailLevel

	columnIndex map[string]int
}

func (t *TableDefinition) indexColumns() {
	t.columnIndex = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.columnIndex[strings.ToLower(c.Name)] = i
	}
}

// Column looks a column up by name, case-insensitively.
func (t *TableDefinition) Column(name string) (ColumnDefinition, bool) {
	if t.columnIndex == nil {
		t.indexColumns()
	}
	i, ok := t.columnIndex[strings.ToLower(name)]
	if !ok {
		return ColumnDefinition{}, false
	}
	return t.Columns[i], true
}

func (t *TableDefinition) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// IsUniqueKey reports whether cols cover the identity column or every column of a
// primary or unique key.
func (t *TableDefinition) IsUniqueKey(cols []string) bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[strings.ToLower(c)] = true
	}
	if t.Identity != nil && set[strings.ToLower(t.Identity.Name)] {
		return true
	}
	covers := func(k KeyConstraint) bool {
		if len(k.Columns) == 0 {
			return false
		}
		for _, c := range k.Columns {
			if !set[strings.ToLower(c)] {
				return false
			}
		}
		return true
	}
	if t.PrimaryKey != nil && covers(*t.PrimaryKey) {
		return true
	}
	for _, k := range t.UniqueKeys {
		if covers(k) {
			return true
		}
	}
	return false
}

// PrimaryKeyColumns returns the primary key column names, or nil.
func (t *TableDefinition) PrimaryKeyColumns() []string {
	if t.PrimaryKey == nil {
		return nil
	}
	return t.PrimaryKey.Columns
}
