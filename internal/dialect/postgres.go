package dialect

import "strings"

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) ColumnsQuery() string {
	// udt_name keeps int4/varchar style names; identity covers both GENERATED and serial columns.
	return `SELECT
    c.table_schema,
    c.table_name,
    c.column_name,
    c.ordinal_position,
    c.udt_name,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale,
    c.is_nullable,
    CASE WHEN c.is_identity = 'YES' OR c.column_default LIKE 'nextval(%' THEN 1 ELSE 0 END
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`
}

func (d *PostgresDialect) KeyConstraintsQuery() string {
	return `SELECT tc.constraint_name, tc.constraint_type, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
    ON tc.constraint_schema = kcu.constraint_schema AND tc.constraint_name = kcu.constraint_name
WHERE tc.table_schema = $1 AND tc.table_name = $2
    AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
ORDER BY tc.constraint_name, kcu.ordinal_position`
}

const postgresForeignKeySelect = `SELECT rc.constraint_name, kcu.table_schema, kcu.table_name, kcu.column_name,
    ccu.table_schema, ccu.table_name, ccu.column_name
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_schema = rc.constraint_schema AND kcu.constraint_name = rc.constraint_name
JOIN information_schema.key_column_usage ccu
    ON ccu.constraint_schema = rc.unique_constraint_schema AND ccu.constraint_name = rc.unique_constraint_name
    AND ccu.ordinal_position = kcu.position_in_unique_constraint`

func (d *PostgresDialect) ForeignKeysQuery() string {
	return postgresForeignKeySelect + `
WHERE kcu.table_schema = $1 AND kcu.table_name = $2
ORDER BY rc.constraint_name, kcu.ordinal_position`
}

func (d *PostgresDialect) ReferencingKeysQuery() string {
	return postgresForeignKeySelect + `
WHERE ccu.table_schema = $1 AND ccu.table_name = $2
ORDER BY rc.constraint_name, kcu.ordinal_position`
}

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Unquoted identifiers fold to lower case.
func (d *PostgresDialect) FoldIdentifier(name string) string { return strings.ToLower(name) }

func (d *PostgresDialect) DefaultSchema() string { return "public" }

func (d *PostgresDialect) SupportsMerge() bool { return false }
