package merge

import (
	"fmt"
	"strings"

	"db-upsert/internal/batch"
	"db-upsert/internal/dialect"
	"db-upsert/internal/errs"
	"db-upsert/internal/schema"

	"github.com/google/uuid"
)

// Output table columns.
const (
	ActionColumn   = "MergeAction"
	IdentityColumn = "IdentityValue"
)

// Script is everything needed for one upsert round: the DDL that creates the staging
// and output temp tables, and the merge batch that consumes staging, reports its
// outcome and drops both tables.
type Script struct {
	StagingTable   string // unquoted temp table name
	OutputTable    string
	StagingColumns []string // bulk-load column order
	StagingDDL     string
	MergeDML       string
}

// ScriptBuilder generates merge scripts. Only catalog-confirmed identifiers and
// generated temp table names are ever interpolated.
type ScriptBuilder struct {
	d      dialect.Dialect
	suffix func() string
}

func NewScriptBuilder(d dialect.Dialect) *ScriptBuilder {
	return &ScriptBuilder{
		d: d,
		suffix: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// WithSuffix replaces the temp table name suffix generator.
func (sb *ScriptBuilder) WithSuffix(fn func() string) *ScriptBuilder {
	sb.suffix = fn
	return sb
}

// Build generates the script merging b's columns into def on expr. When ordered is
// set, the merge source is sorted by row number.
func (sb *ScriptBuilder) Build(def *schema.TableDefinition, b *batch.Batch, expr *Expression, action Action, ordered bool) (*Script, error) {
	if !sb.d.SupportsMerge() {
		return nil, errs.Configf(errs.ErrUnsupportedDialect, "%s has no MERGE support", sb.d.Name())
	}
	if !action.Has(InsertOrUpdate) {
		return nil, errs.Configf(errs.ErrInvalidEntity, "action %s requests neither insert nor update", action)
	}

	suffix := sb.suffix()
	s := &Script{
		StagingTable:   "#upsert_stage_" + suffix,
		OutputTable:    "#upsert_out_" + suffix,
		StagingColumns: b.StagingColumns(),
	}
	s.StagingDDL = sb.stagingDDL(def, b, s)
	s.MergeDML = sb.mergeDML(def, b, expr, action, ordered, s)
	return s, nil
}

func (sb *ScriptBuilder) q(name string) string { return sb.d.QuoteIdentifier(name) }

// stagingDDL clones the shape of the carried columns with SELECT TOP(0) ... INTO. The
// identity is copied as an expression so staging has no IDENTITY property, and the
// row number becomes the staging primary key.
func (sb *ScriptBuilder) stagingDDL(def *schema.TableDefinition, b *batch.Batch, s *Script) string {
	cols := make([]string, 0, len(b.Columns)+1)
	for _, c := range b.Columns {
		if c == b.IdentityColumn {
			cols = append(cols, fmt.Sprintf("t.%s + 0 AS %s", sb.q(c), sb.q(c)))
		} else {
			cols = append(cols, "t."+sb.q(c))
		}
	}
	rn := sb.q(batch.RowNumberColumn)
	cols = append(cols, "ISNULL(CAST(0 AS BIGINT), 0) AS "+rn)

	var sql strings.Builder
	sql.WriteString("SET NOCOUNT ON;\n")
	fmt.Fprintf(&sql, "SELECT TOP(0) %s\nINTO %s\nFROM %s AS t;\n",
		strings.Join(cols, ", "), sb.q(s.StagingTable), dialect.QuoteQualified(sb.d, def.Name.Schema, def.Name.Table))
	fmt.Fprintf(&sql, "ALTER TABLE %s ADD PRIMARY KEY (%s);\n", sb.q(s.StagingTable), rn)
	fmt.Fprintf(&sql, "CREATE TABLE %s (%s NVARCHAR(10) NOT NULL, %s BIGINT NULL, %s BIGINT NOT NULL);",
		sb.q(s.OutputTable), sb.q(ActionColumn), sb.q(IdentityColumn), rn)
	return sql.String()
}

func (sb *ScriptBuilder) mergeDML(def *schema.TableDefinition, b *batch.Batch, expr *Expression, action Action, ordered bool, s *Script) string {
	rn := sb.q(batch.RowNumberColumn)
	target := dialect.QuoteQualified(sb.d, def.Name.Schema, def.Name.Table)

	source := "SELECT * FROM " + sb.q(s.StagingTable)
	if ordered {
		source = "SELECT TOP 100 PERCENT * FROM " + sb.q(s.StagingTable) + " ORDER BY " + rn
	}

	on := make([]string, 0, len(expr.Columns))
	matchSet := make(map[string]bool, len(expr.Columns))
	for _, c := range expr.Columns {
		matchSet[strings.ToLower(c)] = true
		col, _ := def.Column(c)
		cond := fmt.Sprintf("T.%s = S.%s", sb.q(c), sb.q(c))
		if col.IsNullable {
			cond = fmt.Sprintf("(%s OR (T.%s IS NULL AND S.%s IS NULL))", cond, sb.q(c), sb.q(c))
		}
		on = append(on, cond)
	}

	var writable, updatable []string
	for _, c := range b.Columns {
		if c == b.IdentityColumn {
			continue
		}
		writable = append(writable, c)
		if !matchSet[strings.ToLower(c)] {
			updatable = append(updatable, c)
		}
	}
	if len(updatable) == 0 {
		updatable = writable
	}

	var sql strings.Builder
	sql.WriteString("SET NOCOUNT ON;\n")
	fmt.Fprintf(&sql, "MERGE INTO %s WITH (HOLDLOCK) AS T\nUSING (%s) AS S\nON %s\n",
		target, source, strings.Join(on, " AND "))

	if action.Has(Update) && len(updatable) > 0 {
		sets := make([]string, len(updatable))
		for i, c := range updatable {
			sets[i] = fmt.Sprintf("T.%s = S.%s", sb.q(c), sb.q(c))
		}
		fmt.Fprintf(&sql, "WHEN MATCHED THEN UPDATE SET %s\n", strings.Join(sets, ", "))
	}
	if action.Has(Insert) {
		if len(writable) == 0 {
			sql.WriteString("WHEN NOT MATCHED BY TARGET THEN INSERT DEFAULT VALUES\n")
		} else {
			fmt.Fprintf(&sql, "WHEN NOT MATCHED BY TARGET THEN INSERT (%s) VALUES (%s)\n",
				sb.list("", writable), sb.list("S.", writable))
		}
	}

	identity := "CAST(NULL AS BIGINT)"
	if def.Identity != nil {
		identity = fmt.Sprintf("CAST(INSERTED.%s AS BIGINT)", sb.q(def.Identity.Name))
	}
	fmt.Fprintf(&sql, "OUTPUT $action, %s, S.%s INTO %s (%s, %s, %s);\n",
		identity, rn, sb.q(s.OutputTable), sb.q(ActionColumn), sb.q(IdentityColumn), rn)

	fmt.Fprintf(&sql, "SELECT %s, %s, %s FROM %s ORDER BY %s;\n",
		rn, sb.q(IdentityColumn), sb.q(ActionColumn), sb.q(s.OutputTable), rn)
	fmt.Fprintf(&sql, "DROP TABLE %s;\nDROP TABLE %s;", sb.q(s.StagingTable), sb.q(s.OutputTable))
	return sql.String()
}

func (sb *ScriptBuilder) list(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + sb.q(c)
	}
	return strings.Join(out, ", ")
}
