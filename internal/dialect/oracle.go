package dialect

import "strings"

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) ColumnsQuery() string {
	return `
SELECT
    t.OWNER,
    t.TABLE_NAME,
    t.COLUMN_NAME,
    t.COLUMN_ID,
    t.DATA_TYPE,
    t.CHAR_LENGTH,
    t.DATA_PRECISION,
    t.DATA_SCALE,
    CASE WHEN t.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 1 ELSE 0 END
FROM ALL_TAB_COLUMNS t
WHERE t.OWNER = :1 AND t.TABLE_NAME = :2
ORDER BY t.COLUMN_ID`
}

func (d *OracleDialect) KeyConstraintsQuery() string {
	return `
SELECT c.CONSTRAINT_NAME,
    CASE c.CONSTRAINT_TYPE WHEN 'P' THEN 'PRIMARY KEY' ELSE 'UNIQUE' END,
    cc.COLUMN_NAME
FROM ALL_CONSTRAINTS c
JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
WHERE c.OWNER = :1 AND c.TABLE_NAME = :2 AND c.CONSTRAINT_TYPE IN ('P', 'U')
ORDER BY c.CONSTRAINT_NAME, cc.POSITION`
}

const oracleForeignKeySelect = `
SELECT c.CONSTRAINT_NAME, c.OWNER, c.TABLE_NAME, cc.COLUMN_NAME, r.OWNER, r.TABLE_NAME, rcc.COLUMN_NAME
FROM ALL_CONSTRAINTS c
JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
JOIN ALL_CONSTRAINTS r ON r.OWNER = c.R_OWNER AND r.CONSTRAINT_NAME = c.R_CONSTRAINT_NAME
JOIN ALL_CONS_COLUMNS rcc ON rcc.OWNER = r.OWNER AND rcc.CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND rcc.POSITION = cc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'`

func (d *OracleDialect) ForeignKeysQuery() string {
	return oracleForeignKeySelect + ` AND c.OWNER = :1 AND c.TABLE_NAME = :2
ORDER BY c.CONSTRAINT_NAME, cc.POSITION`
}

func (d *OracleDialect) ReferencingKeysQuery() string {
	return oracleForeignKeySelect + ` AND r.OWNER = :1 AND r.TABLE_NAME = :2
ORDER BY c.CONSTRAINT_NAME, cc.POSITION`
}

func (d *OracleDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Unquoted identifiers fold to upper case.
func (d *OracleDialect) FoldIdentifier(name string) string { return strings.ToUpper(name) }

// The owner defaults to the connected user, which only the caller knows.
func (d *OracleDialect) DefaultSchema() string { return "" }

func (d *OracleDialect) SupportsMerge() bool { return false }
