// Package bulk streams staging rows to the server. Row order on the server side is not
// guaranteed; callers correlate through the row number column instead.
package bulk

import (
	"context"
	"log/slog"
	"time"

	"db-upsert/internal/conn"
	"db-upsert/internal/errs"
	"db-upsert/internal/logger"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"
)

// Request describes one bulk load into a staging table.
type Request struct {
	Table   string // unquoted; temp tables keep their leading #
	Columns []string
	Rows    [][]any

	Timeout      time.Duration // 0 means no timeout
	RowsPerBatch int
	Tablock      bool
}

// Loader is the bulk-load transport.
type Loader interface {
	Load(ctx context.Context, q conn.Querier, req Request) (int64, error)
}

// CopyInLoader loads through the SQL Server bulk copy protocol (mssql.CopyIn).
type CopyInLoader struct {
	log *slog.Logger
}

func NewCopyInLoader(log *slog.Logger) *CopyInLoader {
	return &CopyInLoader{log: logger.OrDefault(log)}
}

// Statement returns the bulk copy statement text for req.
func Statement(req Request) string {
	return mssql.CopyIn(req.Table, mssql.BulkOptions{
		KeepNulls:    true,
		RowsPerBatch: req.RowsPerBatch,
		Tablock:      req.Tablock,
	}, req.Columns...)
}

func (l *CopyInLoader) Load(ctx context.Context, q conn.Querier, req Request) (int64, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	start := time.Now()

	stmt, err := q.PrepareContext(ctx, Statement(req))
	if err != nil {
		return 0, errs.Operation(err, "failed to prepare bulk copy into "+req.Table)
	}
	defer stmt.Close()

	for i, row := range req.Rows {
		if len(row) != len(req.Columns) {
			return 0, errs.Operation(errors.Errorf("row %d has %d values for %d columns", i+1, len(row), len(req.Columns)),
				"bulk copy into "+req.Table)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, errs.Operation(err, "failed to buffer bulk copy row")
		}
	}

	// an Exec without arguments flushes the buffered rows
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, errs.Operation(err, "failed to flush bulk copy into "+req.Table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Operation(err, "failed to read bulk copy row count")
	}
	l.log.Debug("bulk copy finished", "table", req.Table, "rows", n, "elapsed", time.Since(start))
	return n, nil
}
