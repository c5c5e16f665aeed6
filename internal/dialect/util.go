package dialect

// QuoteQualified quotes schema and table and joins them with a dot. An empty schema
// yields just the quoted table.
func QuoteQualified(d Dialect, schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}
