// Package entity maps record types onto table columns.
//
// Column names resolve with a fixed precedence per field:
//
//	`bulk:"Column,identity,match,nonunique"` > `db:"Column"` > `gorm:"column:Column"` > field name
//
// The table name comes from a TableName() string method, else a `table:"..."` tag on any
// field. Untagged embedded structs and exported embedded struct pointers are flattened.
// Types may skip tags entirely and Register an explicit Mapping instead.
package entity

import (
	"reflect"
	"strings"
)

// IdentitySetter lets a record receive a 32-bit identity without reflection.
type IdentitySetter interface {
	SetIdentity(id int32)
}

// Identity64Setter lets a record receive a 64-bit identity without reflection.
type Identity64Setter interface {
	SetIdentity64(id int64)
}

// Tabler names the table a record type maps to.
type Tabler interface {
	TableName() string
}

type PropertyDefinition struct {
	Field            string
	Index            []int
	Type             reflect.Type
	Column           string
	IsIdentity       bool
	IsMatchQualifier bool
}

// ProcessingDefinition is the cached mapping for one record type.
type ProcessingDefinition struct {
	Type       reflect.Type // the struct type
	TableName  string       // empty when the type names no table
	Properties []PropertyDefinition

	RowNumberOrdering bool

	// Type-level match qualifier columns, in declaration order.
	MatchQualifier      []string
	AllowNonUniqueMatch bool

	HasIdentitySetter   bool
	HasIdentity64Setter bool

	columns map[string]int
}

func (d *ProcessingDefinition) index() {
	d.columns = make(map[string]int, len(d.Properties))
	for i, p := range d.Properties {
		d.columns[strings.ToLower(p.Column)] = i
	}
}

// Property returns the property mapped to column, case-insensitively.
func (d *ProcessingDefinition) Property(column string) (*PropertyDefinition, bool) {
	i, ok := d.columns[strings.ToLower(column)]
	if !ok {
		return nil, false
	}
	return &d.Properties[i], true
}

// IdentityProperty returns the property tagged as identity, else the property mapped
// to identityColumn (the table's identity column, may be empty).
func (d *ProcessingDefinition) IdentityProperty(identityColumn string) (*PropertyDefinition, bool) {
	for i := range d.Properties {
		if d.Properties[i].IsIdentity {
			return &d.Properties[i], true
		}
	}
	if identityColumn == "" {
		return nil, false
	}
	return d.Property(identityColumn)
}

// CanAssignIdentity reports whether identities can be written back to records.
func (d *ProcessingDefinition) CanAssignIdentity(identityColumn string) bool {
	if d.HasIdentitySetter || d.HasIdentity64Setter {
		return true
	}
	_, ok := d.IdentityProperty(identityColumn)
	return ok
}
