package dialect

import "strings"

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) ColumnsQuery() string {
	return `SELECT TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME, ORDINAL_POSITION, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH,
    NUMERIC_PRECISION, NUMERIC_SCALE, IS_NULLABLE,
    CASE WHEN EXTRA LIKE '%auto_increment%' THEN 1 ELSE 0 END
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`
}

func (d *MysqlDialect) KeyConstraintsQuery() string {
	return `SELECT tc.CONSTRAINT_NAME, tc.CONSTRAINT_TYPE, kcu.COLUMN_NAME
FROM information_schema.TABLE_CONSTRAINTS tc
JOIN information_schema.KEY_COLUMN_USAGE kcu
    ON tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA AND tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
    AND tc.TABLE_NAME = kcu.TABLE_NAME
WHERE tc.TABLE_SCHEMA = ? AND tc.TABLE_NAME = ?
    AND tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'UNIQUE')
ORDER BY tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
}

const mysqlForeignKeySelect = `SELECT CONSTRAINT_NAME, TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME,
    REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE`

func (d *MysqlDialect) ForeignKeysQuery() string {
	return mysqlForeignKeySelect + `
WHERE REFERENCED_TABLE_NAME IS NOT NULL AND TABLE_SCHEMA = ? AND TABLE_NAME = ?
ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) ReferencingKeysQuery() string {
	return mysqlForeignKeySelect + `
WHERE REFERENCED_TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME = ?
ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) FoldIdentifier(name string) string { return name }

// MySQL schemas are databases; the caller resolves the current one.
func (d *MysqlDialect) DefaultSchema() string { return "" }

func (d *MysqlDialect) SupportsMerge() bool { return false }
