// Package engine runs bulk upserts: records are bulk copied into a staging table and
// merged into the target in one statement, and generated identities are written back.
package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"reflect"
	"time"

	"db-upsert/internal/batch"
	"db-upsert/internal/bulk"
	"db-upsert/internal/conn"
	"db-upsert/internal/dialect"
	"db-upsert/internal/entity"
	"db-upsert/internal/errs"
	"db-upsert/internal/logger"
	"db-upsert/internal/merge"
	"db-upsert/internal/schema"

	"github.com/pkg/errors"
)

// Deps are the collaborators of an Engine. Nil fields get defaults.
type Deps struct {
	Cache     *schema.Cache
	Reflector *entity.Reflector
	Loader    bulk.Loader
	Scripts   *merge.ScriptBuilder
	Logger    *slog.Logger
}

type Engine struct {
	provider  conn.Provider
	dialect   dialect.Dialect
	cache     *schema.Cache
	reflector *entity.Reflector
	loader    bulk.Loader
	scripts   *merge.ScriptBuilder
	log       *slog.Logger
}

func New(p conn.Provider, d dialect.Dialect, deps Deps) *Engine {
	log := logger.OrDefault(deps.Logger)
	e := &Engine{
		provider:  p,
		dialect:   d,
		cache:     deps.Cache,
		reflector: deps.Reflector,
		loader:    deps.Loader,
		scripts:   deps.Scripts,
		log:       log,
	}
	if e.cache == nil {
		e.cache = schema.NewCache(schema.NewLoader(d), log)
	}
	if e.reflector == nil {
		e.reflector = entity.NewReflector()
	}
	if e.loader == nil {
		e.loader = bulk.NewCopyInLoader(log)
	}
	if e.scripts == nil {
		e.scripts = merge.NewScriptBuilder(d)
	}
	return e
}

func (e *Engine) Cache() *schema.Cache         { return e.cache }
func (e *Engine) Reflector() *entity.Reflector { return e.reflector }
func (e *Engine) Dialect() dialect.Dialect     { return e.dialect }

// Result summarizes one upsert.
type Result struct {
	Table    schema.TableName
	Inserted int
	Updated  int
	Actions  []merge.ActionResult
	Elapsed  time.Duration
}

// Upsert merges records into their table inside tx and writes generated identities back
// onto them. records keeps its order and is returned for chaining. The caller owns tx.
func Upsert[T any](ctx context.Context, e *Engine, tx *sql.Tx, records []T, opts ...Option) ([]T, error) {
	records, _, err := UpsertWithResult(ctx, e, tx, records, opts...)
	return records, err
}

// UpsertWithResult is Upsert that also reports per-action counts.
func UpsertWithResult[T any](ctx context.Context, e *Engine, tx *sql.Tx, records []T, opts ...Option) ([]T, *Result, error) {
	res, err := e.upsert(ctx, tx, reflect.ValueOf(records), reflect.TypeOf(records).Elem(), newCallOptions(opts))
	return records, res, err
}

func (e *Engine) upsert(ctx context.Context, tx *sql.Tx, records reflect.Value, elem reflect.Type, o *callOptions) (*Result, error) {
	start := time.Now()

	// --- Validated ---
	if err := o.Validate(); err != nil {
		return nil, errs.Configf(errs.ErrConfiguration, "%v", err)
	}
	pd, err := e.reflector.Definition(elem)
	if err != nil {
		return nil, err
	}
	rawName := o.table
	if rawName == "" {
		rawName = pd.TableName
	}
	if rawName == "" {
		return nil, errs.Configf(errs.ErrInvalidTableName, "%s names no table and none was given", pd.Type)
	}
	name, err := schema.ParseTableName(rawName, o.DefaultSchema)
	if err != nil {
		return nil, err
	}
	res := &Result{Table: name}
	if records.Len() == 0 {
		return res, nil
	}
	if !e.dialect.SupportsMerge() {
		return nil, errs.Configf(errs.ErrUnsupportedDialect, "%s cannot run bulk merges", e.dialect.Name())
	}
	if tx == nil {
		return nil, errs.Configf(errs.ErrConfiguration, "upsert into %s needs a transaction", name)
	}
	level, err := schema.ParseDetailLevel(o.DetailLevel)
	if err != nil {
		return nil, errs.Configf(errs.ErrConfiguration, "%v", err)
	}

	// --- SchemaResolved ---
	c, err := conn.NewTxProvider(tx, e.provider.UniqueIdentifier()).NewConnection(ctx)
	if err != nil {
		return nil, errs.Connection(err, "failed to use transaction")
	}
	defer c.Close()

	def, err := e.cache.Get(ctx, c, name, level, o.forceReload)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errs.Configf(errs.ErrTableNotFound, "%s", name)
	}
	res.Table = def.Name
	if def.Identity != nil && !pd.CanAssignIdentity(def.Identity.Name) {
		return nil, errs.Configf(errs.ErrUnmappedIdentity, "%s has identity column %s but %s cannot receive it",
			def.Name, def.Identity.Name, pd.Type)
	}
	e.log.Debug("schema resolved", "table", def.Name.FullName(), "columns", len(def.Columns))

	// --- QualifierResolved ---
	expr, err := merge.Resolve(def, pd, o.qualifier, e.log)
	if err != nil {
		return nil, err
	}
	b, err := batch.Build(records, def, pd)
	if err != nil {
		return nil, err
	}
	script, err := e.scripts.Build(def, b, expr, o.action, o.RowNumberOrdering && pd.RowNumberOrdering)
	if err != nil {
		return nil, err
	}
	e.log.Debug("qualifier resolved", "table", def.Name.FullName(), "match", expr.Columns, "source", string(expr.Source))

	// --- StagingLoaded ---
	if _, err := tx.ExecContext(ctx, script.StagingDDL); err != nil {
		return nil, errs.Operation(err, "failed to create staging tables")
	}
	n, err := e.loader.Load(ctx, tx, bulk.Request{
		Table:        script.StagingTable,
		Columns:      script.StagingColumns,
		Rows:         b.Rows,
		Timeout:      o.BatchTimeout,
		RowsPerBatch: o.BulkRowsPerBatch,
		Tablock:      o.Tablock,
	})
	if err != nil {
		return nil, err
	}
	if n != int64(b.Len()) {
		return nil, errs.Operation(errors.Errorf("loaded %d of %d rows", n, b.Len()), "staging load incomplete")
	}
	e.log.Debug("staging loaded", "table", script.StagingTable, "rows", n)

	// --- MergeExecuted ---
	actions, err := e.merge(ctx, tx, script, expr)
	if err != nil {
		return nil, err
	}
	e.log.Debug("merge executed", "table", def.Name.FullName(), "outputRows", len(actions))

	// --- ResultsApplied ---
	if err := e.apply(records, def, pd, actions, o.action); err != nil {
		return nil, err
	}
	res.Actions = actions
	res.Inserted, res.Updated = merge.Counts(actions)
	res.Elapsed = time.Since(start)
	e.log.Debug("results applied", "table", def.Name.FullName(),
		"inserted", res.Inserted, "updated", res.Updated, "elapsed", res.Elapsed)
	return res, nil
}

func (e *Engine) merge(ctx context.Context, tx *sql.Tx, script *merge.Script, expr *merge.Expression) ([]merge.ActionResult, error) {
	rows, err := tx.QueryContext(ctx, script.MergeDML)
	if err != nil {
		return nil, errs.Operation(err, "failed to execute merge")
	}
	defer rows.Close()
	return merge.ReadResults(rows, expr.AllowNonUnique)
}

// apply writes identities back. Row numbers and every identity value are checked
// before the first record is touched.
func (e *Engine) apply(records reflect.Value, def *schema.TableDefinition, pd *entity.ProcessingDefinition, actions []merge.ActionResult, requested merge.Action) error {
	n := int64(records.Len())
	var assign []merge.ActionResult
	for _, a := range actions {
		if a.RowNumber < 1 || a.RowNumber > n {
			return errs.Operation(errors.Errorf("row number %d outside 1..%d", a.RowNumber, n), "invalid merge output")
		}
		if def.Identity == nil || !requested.Has(a.Action) || a.Identity == nil {
			continue
		}
		if err := pd.CheckIdentity(records.Index(int(a.RowNumber-1)), def.Identity.Name, *a.Identity); err != nil {
			return errors.WithMessagef(err, "row %d", a.RowNumber)
		}
		assign = append(assign, a)
	}
	for _, a := range assign {
		if err := pd.AssignIdentity(records.Index(int(a.RowNumber-1)), def.Identity.Name, *a.Identity); err != nil {
			return err
		}
	}
	return nil
}

// Describe returns the definition of table, loaded over a fresh connection.
func (e *Engine) Describe(ctx context.Context, table string, level schema.DetailLevel, reload bool) (*schema.TableDefinition, error) {
	name, err := schema.ParseTableName(table, e.dialect.DefaultSchema())
	if err != nil {
		return nil, err
	}
	c, err := e.provider.NewConnection(ctx)
	if err != nil {
		return nil, errs.Connection(err, "failed to open connection")
	}
	defer c.Close()

	def, err := e.cache.Get(ctx, c, name, level, reload)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errs.Configf(errs.ErrTableNotFound, "%s", name)
	}
	return def, nil
}
