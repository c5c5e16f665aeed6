// Package batch turns records into positional rows for the staging table.
package batch

import (
	"reflect"

	"db-upsert/internal/entity"
	"db-upsert/internal/errs"
	"db-upsert/internal/schema"
)

// RowNumberColumn is the synthetic 1-based ordinal appended to every row. It is the only
// key that correlates a merge output row with the record it came from.
const RowNumberColumn = "__RowNumber"

// Batch is an ordered set of rows. Every row holds one value per Columns entry followed
// by its row number.
type Batch struct {
	Columns        []string // catalog-confirmed names, table order
	IdentityColumn string   // empty when the table has no identity
	Rows           [][]any
}

func (b *Batch) Len() int { return len(b.Rows) }

// StagingColumns returns Columns followed by RowNumberColumn.
func (b *Batch) StagingColumns() []string {
	cols := make([]string, 0, len(b.Columns)+1)
	cols = append(cols, b.Columns...)
	return append(cols, RowNumberColumn)
}

// Build reads records, a slice of structs or struct pointers, into a Batch shaped by def.
// Only columns the record maps are carried, plus the identity column as a placeholder
// (nil when the record has no identity property).
func Build(records reflect.Value, def *schema.TableDefinition, pd *entity.ProcessingDefinition) (*Batch, error) {
	if records.Kind() != reflect.Slice {
		return nil, errs.Configf(errs.ErrInvalidEntity, "expected slice of records, got %s", records.Kind())
	}
	for _, p := range pd.Properties {
		if !def.HasColumn(p.Column) {
			return nil, errs.Configf(errs.ErrUnknownColumn, "%s.%s maps to %q, not a column of %s",
				pd.Type, p.Field, p.Column, def.Name.FullName())
		}
	}

	b := &Batch{}
	var props []*entity.PropertyDefinition
	for _, c := range def.Columns {
		var p *entity.PropertyDefinition
		if c.IsIdentity {
			b.IdentityColumn = c.Name
			p, _ = pd.IdentityProperty(c.Name)
		} else {
			var ok bool
			if p, ok = pd.Property(c.Name); !ok {
				continue
			}
		}
		b.Columns = append(b.Columns, c.Name)
		props = append(props, p)
	}

	n := records.Len()
	b.Rows = make([][]any, n)
	for i := 0; i < n; i++ {
		sv, err := entity.Addressable(records.Index(i))
		if err != nil {
			return nil, errs.Configf(errs.ErrInvalidEntity, "record %d: %v", i, err)
		}
		row := make([]any, len(props)+1)
		for j, p := range props {
			if p != nil {
				row[j] = p.Value(sv)
			}
		}
		row[len(props)] = int64(i + 1)
		b.Rows[i] = row
	}
	return b, nil
}
