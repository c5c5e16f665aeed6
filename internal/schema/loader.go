package schema

import (
	"context"
	"database/sql"
	"strings"

	"db-upsert/internal/conn"
	"db-upsert/internal/dialect"

	"github.com/pkg/errors"
)

// Loader reads table metadata from the database catalog.
type Loader struct {
	d dialect.Dialect
}

func NewLoader(d dialect.Dialect) *Loader {
	return &Loader{d: d}
}

func (l *Loader) Dialect() dialect.Dialect { return l.d }

// Load reads the definition of name at the requested detail level. A table that the
// catalog does not know yields (nil, nil).
func (l *Loader) Load(ctx context.Context, q conn.Querier, name TableName, level DetailLevel) (*TableDefinition, error) {
	schemaName := l.d.FoldIdentifier(name.Schema)
	tableName := l.d.FoldIdentifier(name.Table)

	// --- Step 1: Columns ---
	def, err := l.loadColumns(ctx, q, schemaName, tableName)
	if err != nil || def == nil {
		return nil, err
	}
	def.DetailLevel = level

	// --- Step 2: Primary / Unique keys ---
	if err := l.loadKeyConstraints(ctx, q, def); err != nil {
		return nil, err
	}

	if level < Extended {
		return def, nil
	}

	// --- Step 3: Foreign keys, both directions ---
	def.ForeignKeys, err = l.loadForeignKeys(ctx, q, l.d.ForeignKeysQuery(), def.Name)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load foreign keys")
	}
	def.ReferencedBy, err = l.loadForeignKeys(ctx, q, l.d.ReferencingKeysQuery(), def.Name)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load referencing keys")
	}
	return def, nil
}

func (l *Loader) loadColumns(ctx context.Context, q conn.Querier, schemaName, tableName string) (*TableDefinition, error) {
	rows, err := q.QueryContext(ctx, l.d.ColumnsQuery(), schemaName, tableName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query columns")
	}
	defer rows.Close()

	var def *TableDefinition
	for rows.Next() {
		var tSchema, tName, cName, dType, isNull string
		var ordinal int
		var cLen, cPrec, cScale, isIdentity sql.NullInt64
		if err := rows.Scan(&tSchema, &tName, &cName, &ordinal, &dType, &cLen, &cPrec, &cScale, &isNull, &isIdentity); err != nil {
			return nil, errors.Wrapf(err, "failed to scan column (table: %s)", tableName)
		}
		if def == nil {
			// Catalog-confirmed names replace whatever the caller typed.
			def = &TableDefinition{Name: TableName{Schema: tSchema, Table: tName}}
		}
		col := ColumnDefinition{
			Name:       cName,
			Ordinal:    ordinal,
			DataType:   strings.ToLower(dType),
			Length:     int(cLen.Int64),
			Precision:  int(cPrec.Int64),
			Scale:      int(cScale.Int64),
			IsNullable: strings.EqualFold(isNull, "YES"),
			IsIdentity: isIdentity.Valid && isIdentity.Int64 != 0,
		}
		def.Columns = append(def.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating columns")
	}
	if def == nil {
		return nil, nil
	}

	for i := range def.Columns {
		if !def.Columns[i].IsIdentity {
			continue
		}
		if def.Identity != nil {
			return nil, errors.Errorf("table %s reports more than one identity column (%s, %s)",
				def.Name, def.Identity.Name, def.Columns[i].Name)
		}
		def.Identity = &def.Columns[i]
	}
	def.indexColumns()
	return def, nil
}

func (l *Loader) loadKeyConstraints(ctx context.Context, q conn.Querier, def *TableDefinition) error {
	rows, err := q.QueryContext(ctx, l.d.KeyConstraintsQuery(), def.Name.Schema, def.Name.Table)
	if err != nil {
		return errors.Wrap(err, "failed to query key constraints")
	}
	defer rows.Close()

	var keys []*KeyConstraint
	byName := make(map[string]*KeyConstraint)
	for rows.Next() {
		var name, kind, column string
		if err := rows.Scan(&name, &kind, &column); err != nil {
			return errors.Wrap(err, "failed to scan key constraint")
		}
		k, ok := byName[name]
		if !ok {
			k = &KeyConstraint{Name: name, Type: strings.ToUpper(kind)}
			byName[name] = k
			keys = append(keys, k)
		}
		k.Columns = append(k.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "error iterating key constraints")
	}

	for _, k := range keys {
		if k.Type == ConstraintPrimaryKey {
			def.PrimaryKey = k
		} else {
			def.UniqueKeys = append(def.UniqueKeys, *k)
		}
	}
	return nil
}

func (l *Loader) loadForeignKeys(ctx context.Context, q conn.Querier, query string, name TableName) ([]ForeignKeyConstraint, error) {
	rows, err := q.QueryContext(ctx, query, name.Schema, name.Table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKeyConstraint
	index := make(map[string]int)
	for rows.Next() {
		var fkName, pSchema, pTable, pCol, rSchema, rTable, rCol string
		if err := rows.Scan(&fkName, &pSchema, &pTable, &pCol, &rSchema, &rTable, &rCol); err != nil {
			return nil, err
		}
		// constraint names are unique per schema, not per database
		key := pSchema + "." + fkName
		i, ok := index[key]
		if !ok {
			fks = append(fks, ForeignKeyConstraint{
				Name:             fkName,
				Schema:           pSchema,
				Table:            pTable,
				ReferencedSchema: rSchema,
				ReferencedTable:  rTable,
			})
			i = len(fks) - 1
			index[key] = i
		}
		fks[i].Columns = append(fks[i].Columns, pCol)
		fks[i].ReferencedColumns = append(fks[i].ReferencedColumns, rCol)
	}
	return fks, rows.Err()
}
