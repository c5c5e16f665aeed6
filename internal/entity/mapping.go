package entity

import (
	"reflect"

	"db-upsert/internal/errs"
)

// FieldMapping binds one struct field to a column.
type FieldMapping struct {
	Field    string
	Column   string
	Identity bool
	Match    bool
}

// Mapping describes a record type without struct tags. Fields not listed are not mapped.
type Mapping struct {
	Table               string
	Fields              []FieldMapping
	AllowNonUniqueMatch bool
	NoRowNumberOrdering bool
}

func (m Mapping) build(st reflect.Type) (*ProcessingDefinition, error) {
	def := &ProcessingDefinition{
		Type:                st,
		TableName:           m.Table,
		RowNumberOrdering:   !m.NoRowNumberOrdering,
		AllowNonUniqueMatch: m.AllowNonUniqueMatch,
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, fm := range m.Fields {
		f, ok := st.FieldByName(fm.Field)
		if !ok || !f.IsExported() {
			return nil, errs.Configf(errs.ErrInvalidEntity, "%s has no exported field %q", st, fm.Field)
		}
		column := fm.Column
		if column == "" {
			column = f.Name
		}
		if seen[column] {
			return nil, errs.Configf(errs.ErrInvalidEntity, "column %q mapped twice on %s", column, st)
		}
		seen[column] = true
		def.Properties = append(def.Properties, PropertyDefinition{
			Field:            f.Name,
			Index:            f.Index,
			Type:             f.Type,
			Column:           column,
			IsIdentity:       fm.Identity,
			IsMatchQualifier: fm.Match,
		})
		if fm.Match {
			def.MatchQualifier = append(def.MatchQualifier, column)
		}
	}
	applyCapabilities(def)
	def.index()
	return def, nil
}
