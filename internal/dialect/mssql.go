package dialect

import "strings"

type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) ColumnsQuery() string {
	return `
		SELECT
			c.TABLE_SCHEMA,
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.ORDINAL_POSITION,
			c.DATA_TYPE,
			c.CHARACTER_MAXIMUM_LENGTH,
			c.NUMERIC_PRECISION,
			c.NUMERIC_SCALE,
			c.IS_NULLABLE,
			CASE WHEN idc.column_id IS NOT NULL THEN 1 ELSE 0 END AS IS_IDENTITY
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN sys.identity_columns idc
			ON idc.object_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
			AND idc.name = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`
}

func (d *MSSQLDialect) KeyConstraintsQuery() string {
	return `
		SELECT tc.CONSTRAINT_NAME, tc.CONSTRAINT_TYPE, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
			AND tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
}

const mssqlForeignKeySelect = `
		SELECT fk.name, ps.name, pt.name, pc.name, rs.name, rt.name, rc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables pt ON pt.object_id = fk.parent_object_id
		JOIN sys.schemas ps ON ps.schema_id = pt.schema_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id`

func (d *MSSQLDialect) ForeignKeysQuery() string {
	return mssqlForeignKeySelect + `
		WHERE ps.name = @p1 AND pt.name = @p2
		ORDER BY fk.name, fkc.constraint_column_id`
}

func (d *MSSQLDialect) ReferencingKeysQuery() string {
	return mssqlForeignKeySelect + `
		WHERE rs.name = @p1 AND rt.name = @p2
		ORDER BY fk.name, fkc.constraint_column_id`
}

// QuoteIdentifier brackets a name, doubling any closing bracket.
func (d *MSSQLDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLDialect) FoldIdentifier(name string) string { return name }

func (d *MSSQLDialect) DefaultSchema() string { return "dbo" }

func (d *MSSQLDialect) SupportsMerge() bool { return true }
