// Package merge resolves the merge join key, generates the staging and MERGE script, and
// reads the merge output back.
package merge

import (
	"strings"

	"github.com/pkg/errors"
)

// Action is a set of merge outcomes.
type Action uint8

const (
	Insert Action = 1 << iota
	Update

	InsertOrUpdate = Insert | Update
)

// Has reports whether a shares any outcome with other.
func (a Action) Has(other Action) bool { return a&other != 0 }

func (a Action) String() string {
	switch a {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case InsertOrUpdate:
		return "INSERT_OR_UPDATE"
	default:
		return "NONE"
	}
}

// ParseAction reads a $action value or a configured action name.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INSERT":
		return Insert, nil
	case "UPDATE":
		return Update, nil
	case "INSERT_OR_UPDATE", "INSERTORUPDATE", "UPSERT":
		return InsertOrUpdate, nil
	case "DELETE":
		return 0, nil
	default:
		return 0, errors.Errorf("unknown merge action %q", s)
	}
}

// ActionResult is one row of merge output.
type ActionResult struct {
	RowNumber int64 // 1-based position of the source record
	Identity  *int64
	Action    Action
}
