package dialect

import "db-upsert/internal/errs"

// GetDialect returns the Dialect for a database/sql driver name.
func GetDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlserver", "mssql", "azuresql":
		return &MSSQLDialect{}, nil
	case "postgres", "pgx":
		return &PostgresDialect{}, nil
	case "oracle":
		return &OracleDialect{}, nil
	case "mysql":
		return &MysqlDialect{}, nil
	}
	return nil, errs.Configf(errs.ErrUnsupportedDialect, "no dialect for driver %q", driver)
}

var (
	_ Dialect = (*MSSQLDialect)(nil)
	_ Dialect = (*PostgresDialect)(nil)
	_ Dialect = (*MysqlDialect)(nil)
	_ Dialect = (*OracleDialect)(nil)
)
