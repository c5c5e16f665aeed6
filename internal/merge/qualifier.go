package merge

import (
	"log/slog"
	"strings"

	"db-upsert/internal/entity"
	"db-upsert/internal/errs"
	"db-upsert/internal/logger"
	"db-upsert/internal/schema"
)

// Qualifier is a caller-supplied join key. An empty Columns list means "derive it".
type Qualifier struct {
	Columns        []string
	AllowNonUnique bool
}

// Source tells where a resolved qualifier came from.
type Source string

const (
	SourceExplicit   Source = "explicit"
	SourceEntity     Source = "entity"
	SourceIdentity   Source = "identity"
	SourcePrimaryKey Source = "primary key"
)

// Expression is a resolved join key made of catalog-confirmed column names.
type Expression struct {
	Columns        []string
	AllowNonUnique bool
	Unique         bool // covered by the identity or a primary/unique key
	Source         Source
}

// Resolve picks the join key: explicit columns, then the record's match-tagged
// properties, then the table identity, then its primary key. Every column must exist
// in the table and be carried by the record (the identity always is).
func Resolve(def *schema.TableDefinition, pd *entity.ProcessingDefinition, explicit *Qualifier, log *slog.Logger) (*Expression, error) {
	var expr *Expression
	switch {
	case explicit != nil && len(explicit.Columns) > 0:
		expr = &Expression{Columns: explicit.Columns, AllowNonUnique: explicit.AllowNonUnique, Source: SourceExplicit}
	case pd != nil && len(pd.MatchQualifier) > 0:
		expr = &Expression{Columns: pd.MatchQualifier, AllowNonUnique: pd.AllowNonUniqueMatch, Source: SourceEntity}
	case def.Identity != nil:
		expr = &Expression{Columns: []string{def.Identity.Name}, Source: SourceIdentity}
	case len(def.PrimaryKeyColumns()) > 0:
		expr = &Expression{Columns: def.PrimaryKeyColumns(), Source: SourcePrimaryKey}
	default:
		return nil, errs.Configf(errs.ErrAmbiguousMatchQualifier,
			"%s has no identity or primary key; supply match columns", def.Name.FullName())
	}
	if explicit != nil && explicit.AllowNonUnique {
		expr.AllowNonUnique = true
	}

	confirmed := make([]string, 0, len(expr.Columns))
	seen := make(map[string]bool, len(expr.Columns))
	for _, name := range expr.Columns {
		col, ok := def.Column(name)
		if !ok {
			return nil, errs.Configf(errs.ErrUnknownColumn, "match column %q is not a column of %s",
				name, def.Name.FullName())
		}
		if !col.IsIdentity && pd != nil {
			if _, mapped := pd.Property(col.Name); !mapped {
				return nil, errs.Configf(errs.ErrUnknownColumn, "match column %q is not mapped by %s",
					col.Name, pd.Type)
			}
		}
		if k := strings.ToLower(col.Name); !seen[k] {
			seen[k] = true
			confirmed = append(confirmed, col.Name)
		}
	}
	expr.Columns = confirmed
	expr.Unique = def.IsUniqueKey(confirmed)

	if !expr.Unique {
		logger.OrDefault(log).Warn("match columns are not covered by a unique key",
			"table", def.Name.FullName(), "columns", confirmed, "allowNonUnique", expr.AllowNonUnique)
	}
	return expr, nil
}
