// Package schematest scripts catalog responses on a go-sqlmock connection.
package schematest

import (
	"database/sql/driver"

	"db-upsert/internal/dialect"

	"github.com/DATA-DOG/go-sqlmock"
)

var columnNames = []string{
	"TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME", "ORDINAL_POSITION", "DATA_TYPE",
	"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE", "IS_NULLABLE", "IS_IDENTITY",
}

// Column is one catalog column row.
type Column struct {
	Name     string
	Type     string
	Length   int
	Nullable bool
	Identity bool
}

// Key is one primary or unique key.
type Key struct {
	Name    string
	Type    string
	Columns []string
}

// ForeignKey is one foreign key row set.
type ForeignKey struct {
	Name          string
	Schema, Table string
	Columns       []string
	RefSchema     string
	RefTable      string
	RefColumns    []string
}

// Table scripts the catalog for one table.
type Table struct {
	Schema       string
	Name         string
	Columns      []Column
	Keys         []Key
	ForeignKeys  []ForeignKey
	ReferencedBy []ForeignKey
}

// Items is dbo.Items(Id int identity primary key, Key nvarchar(100) unique, Value nvarchar(max)).
func Items() Table {
	return Table{
		Schema: "dbo",
		Name:   "Items",
		Columns: []Column{
			{Name: "Id", Type: "int", Identity: true},
			{Name: "Key", Type: "nvarchar", Length: 100},
			{Name: "Value", Type: "nvarchar", Length: -1, Nullable: true},
		},
		Keys: []Key{
			{Name: "PK_Items", Type: "PRIMARY KEY", Columns: []string{"Id"}},
			{Name: "UQ_Items_Key", Type: "UNIQUE", Columns: []string{"Key"}},
		},
	}
}

// ExpectColumns scripts the columns query, answering for lookupSchema/lookupTable.
func ExpectColumns(mock sqlmock.Sqlmock, d dialect.Dialect, lookupSchema, lookupTable string, t Table) *sqlmock.ExpectedQuery {
	rows := sqlmock.NewRows(columnNames)
	for i, c := range t.Columns {
		var length driver.Value
		if c.Length != 0 {
			length = int64(c.Length)
		}
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		identity := int64(0)
		if c.Identity {
			identity = 1
		}
		rows.AddRow(t.Schema, t.Name, c.Name, int64(i+1), c.Type, length, nil, nil, nullable, identity)
	}
	return mock.ExpectQuery(d.ColumnsQuery()).WithArgs(lookupSchema, lookupTable).WillReturnRows(rows)
}

// ExpectKeys scripts the key constraints query.
func ExpectKeys(mock sqlmock.Sqlmock, d dialect.Dialect, t Table) *sqlmock.ExpectedQuery {
	rows := sqlmock.NewRows([]string{"CONSTRAINT_NAME", "CONSTRAINT_TYPE", "COLUMN_NAME"})
	for _, k := range t.Keys {
		for _, c := range k.Columns {
			rows.AddRow(k.Name, k.Type, c)
		}
	}
	return mock.ExpectQuery(d.KeyConstraintsQuery()).WithArgs(t.Schema, t.Name).WillReturnRows(rows)
}

func fkRows(fks []ForeignKey) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"name", "schema", "table", "column", "ref_schema", "ref_table", "ref_column"})
	for _, fk := range fks {
		for i, c := range fk.Columns {
			rows.AddRow(fk.Name, fk.Schema, fk.Table, c, fk.RefSchema, fk.RefTable, fk.RefColumns[i])
		}
	}
	return rows
}

// ExpectBasic scripts a full Basic load of t.
func ExpectBasic(mock sqlmock.Sqlmock, d dialect.Dialect, t Table) {
	ExpectColumns(mock, d, t.Schema, t.Name, t)
	ExpectKeys(mock, d, t)
}

// ExpectExtended scripts a full Extended load of t.
func ExpectExtended(mock sqlmock.Sqlmock, d dialect.Dialect, t Table) {
	ExpectBasic(mock, d, t)
	mock.ExpectQuery(d.ForeignKeysQuery()).WithArgs(t.Schema, t.Name).WillReturnRows(fkRows(t.ForeignKeys))
	mock.ExpectQuery(d.ReferencingKeysQuery()).WithArgs(t.Schema, t.Name).WillReturnRows(fkRows(t.ReferencedBy))
}
