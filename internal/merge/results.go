package merge

import (
	"database/sql"

	"db-upsert/internal/errs"

	"github.com/pkg/errors"
)

// ReadResults scans merge output rows (row number, identity, action). A row number
// reported twice means one source row matched several target rows; that fails with
// ErrNonUniqueMatch unless allowNonUnique is set. Rows are not closed.
func ReadResults(rows *sql.Rows, allowNonUnique bool) ([]ActionResult, error) {
	var out []ActionResult
	seen := make(map[int64]bool)
	for rows.Next() {
		var (
			rowNumber int64
			identity  sql.NullInt64
			action    string
		)
		if err := rows.Scan(&rowNumber, &identity, &action); err != nil {
			return nil, errs.Operation(err, "failed to scan merge output")
		}
		a, err := ParseAction(action)
		if err != nil {
			return nil, errs.Operation(err, "failed to read merge output")
		}
		if seen[rowNumber] && !allowNonUnique {
			return nil, &errs.Error{
				Kind: errs.ErrNonUniqueMatch,
				Err:  errors.Errorf("source row %d matched more than one target row", rowNumber),
			}
		}
		seen[rowNumber] = true

		r := ActionResult{RowNumber: rowNumber, Action: a}
		if identity.Valid {
			id := identity.Int64
			r.Identity = &id
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Operation(err, "failed to read merge output")
	}
	return out, nil
}

// Counts tallies results per action.
func Counts(results []ActionResult) (inserted, updated int) {
	for _, r := range results {
		switch r.Action {
		case Insert:
			inserted++
		case Update:
			updated++
		}
	}
	return inserted, updated
}
