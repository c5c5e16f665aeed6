package entity

import (
	"math"
	"reflect"

	"db-upsert/internal/errs"

	"github.com/pkg/errors"
)

// Addressable returns the struct value behind a record, which must be a pointer to a
// struct or an addressable struct value.
func Addressable(v reflect.Value) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, errs.Configf(errs.ErrInvalidEntity, "nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errs.Configf(errs.ErrInvalidEntity, "expected struct, got %s", v.Kind())
	}
	return v, nil
}

// Value reads the property from a struct value. Nil pointers read as nil and other
// pointers are dereferenced.
func (p *PropertyDefinition) Value(v reflect.Value) any {
	f, ok := fieldByIndex(v, p.Index)
	if !ok {
		return nil
	}
	for f.Kind() == reflect.Ptr {
		if f.IsNil() {
			return nil
		}
		f = f.Elem()
	}
	return f.Interface()
}

// fieldByIndex walks index without panicking on nil embedded pointers.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// settableField walks index, allocating nil embedded pointers on the way.
func settableField(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// CheckIdentity reports whether id can be stored on the record behind v. It never
// modifies the record.
func (d *ProcessingDefinition) CheckIdentity(v reflect.Value, identityColumn string, id int64) error {
	sv, err := Addressable(v)
	if err != nil {
		return err
	}
	if !sv.CanAddr() {
		return errs.Configf(errs.ErrInvalidEntity, "record of type %s is not addressable", d.Type)
	}
	switch {
	case d.HasIdentity64Setter:
		return nil
	case d.HasIdentitySetter:
		if id > math.MaxInt32 || id < math.MinInt32 {
			return writeBackError("identity %d overflows SetIdentity(int32) on %s", id, d.Type)
		}
		return nil
	}
	p, ok := d.IdentityProperty(identityColumn)
	if !ok {
		return errs.Configf(errs.ErrUnmappedIdentity, "%s maps no identity property", d.Type)
	}
	return checkInteger(p.Type, id, d.Type, p.Field)
}

// AssignIdentity writes a database-generated identity into the record behind v.
// Setter interfaces win over field access. The record is untouched when an error is
// returned.
func (d *ProcessingDefinition) AssignIdentity(v reflect.Value, identityColumn string, id int64) error {
	if err := d.CheckIdentity(v, identityColumn, id); err != nil {
		return err
	}
	sv, _ := Addressable(v)
	rec := sv.Addr().Interface()
	if s, ok := rec.(Identity64Setter); ok {
		s.SetIdentity64(id)
		return nil
	}
	if s, ok := rec.(IdentitySetter); ok {
		s.SetIdentity(int32(id))
		return nil
	}
	p, _ := d.IdentityProperty(identityColumn)
	f := settableField(sv, p.Index)
	if f.Kind() == reflect.Ptr {
		if f.IsNil() {
			f.Set(reflect.New(f.Type().Elem()))
		}
		f = f.Elem()
	}
	if f.CanInt() {
		f.SetInt(id)
	} else {
		f.SetUint(uint64(id))
	}
	return nil
}

func checkInteger(ft reflect.Type, id int64, t reflect.Type, field string) error {
	if ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}
	switch ft.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if reflect.Zero(ft).OverflowInt(id) {
			return writeBackError("identity %d overflows %s.%s", id, t, field)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if id < 0 || reflect.Zero(ft).OverflowUint(uint64(id)) {
			return writeBackError("identity %d overflows %s.%s", id, t, field)
		}
	default:
		return writeBackError("identity field %s.%s has non-integer type %s", t, field, ft)
	}
	return nil
}

func writeBackError(format string, args ...any) error {
	return &errs.Error{Kind: errs.ErrIdentityWriteBack, Err: errors.Errorf(format, args...)}
}
