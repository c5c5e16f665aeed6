package engine

import (
	"time"

	"db-upsert/internal/config"
	"db-upsert/internal/merge"
)

// Option overrides one setting for a single Upsert call.
type Option func(*callOptions)

type callOptions struct {
	config.Options

	table       string
	action      merge.Action
	qualifier   *merge.Qualifier
	forceReload bool
}

func newCallOptions(opts []Option) *callOptions {
	o := &callOptions{
		Options: config.Defaults(),
		action:  merge.InsertOrUpdate,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTable names the target table, overriding the record type's table.
func WithTable(name string) Option {
	return func(o *callOptions) { o.table = name }
}

// WithAction selects which merge branches run. Default InsertOrUpdate.
func WithAction(a merge.Action) Option {
	return func(o *callOptions) { o.action = a }
}

// WithMatch sets explicit join columns.
func WithMatch(columns ...string) Option {
	return func(o *callOptions) {
		if o.qualifier == nil {
			o.qualifier = &merge.Qualifier{}
		}
		o.qualifier.Columns = columns
	}
}

// WithNonUniqueMatch tolerates a source row matching several target rows.
func WithNonUniqueMatch() Option {
	return func(o *callOptions) {
		if o.qualifier == nil {
			o.qualifier = &merge.Qualifier{}
		}
		o.qualifier.AllowNonUnique = true
	}
}

// WithForceReload reloads the table definition from the catalog.
func WithForceReload() Option {
	return func(o *callOptions) { o.forceReload = true }
}

func WithBatchTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.BatchTimeout = d }
}

func WithRowNumberOrdering(enabled bool) Option {
	return func(o *callOptions) { o.RowNumberOrdering = enabled }
}

// WithOptions replaces every configurable setting at once.
func WithOptions(opts config.Options) Option {
	return func(o *callOptions) { o.Options = opts }
}
