package dialect

// Dialect abstracts database-specific catalog access and identifier handling.
//
// Every catalog query takes exactly two bind parameters, schema then table, written
// in the driver's native marker style, and returns the columns documented on the method.
type Dialect interface {
	Name() string

	// Catalog queries (schema, table).
	//   ColumnsQuery:         schema, table, column name, ordinal, data type, char length, precision, scale, nullable (YES/NO), is identity (0/1)
	//   KeyConstraintsQuery:  constraint name, constraint type (PRIMARY KEY/UNIQUE), column name
	//   ForeignKeysQuery:     constraint name, schema, table, column, ref schema, ref table, ref column
	//   ReferencingKeysQuery: same shape as ForeignKeysQuery, filtered on the referenced side
	ColumnsQuery() string
	KeyConstraintsQuery() string
	ForeignKeysQuery() string
	ReferencingKeysQuery() string

	// Identifiers
	QuoteIdentifier(name string) string
	FoldIdentifier(name string) string
	DefaultSchema() string

	// SupportsMerge reports whether the bulk merge engine can target this dialect.
	SupportsMerge() bool
}
