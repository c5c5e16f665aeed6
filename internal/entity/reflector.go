package entity

import (
	"reflect"
	"strings"
	"sync"

	"db-upsert/internal/errs"
)

// Reflector computes and memoizes ProcessingDefinitions per record type. Entries live
// as long as the Reflector; the set of record types is bounded by the program.
type Reflector struct {
	defs sync.Map // reflect.Type -> *ProcessingDefinition
}

func NewReflector() *Reflector {
	return &Reflector{}
}

var (
	identitySetterType   = reflect.TypeOf((*IdentitySetter)(nil)).Elem()
	identity64SetterType = reflect.TypeOf((*Identity64Setter)(nil)).Elem()
	tablerType           = reflect.TypeOf((*Tabler)(nil)).Elem()
)

// StructType unwraps pointers down to a struct type.
func StructType(t reflect.Type) (reflect.Type, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errs.Configf(errs.ErrInvalidEntity, "expected struct or pointer to struct, got %v", t)
	}
	return t, nil
}

// Definition returns the ProcessingDefinition for t (a struct or pointer to struct).
func (r *Reflector) Definition(t reflect.Type) (*ProcessingDefinition, error) {
	st, err := StructType(t)
	if err != nil {
		return nil, err
	}
	if v, ok := r.defs.Load(st); ok {
		return v.(*ProcessingDefinition), nil
	}
	def := reflectDefinition(st)
	v, _ := r.defs.LoadOrStore(st, def)
	return v.(*ProcessingDefinition), nil
}

// Register installs an explicit mapping for t, replacing any tag-derived one.
func (r *Reflector) Register(t reflect.Type, m Mapping) error {
	st, err := StructType(t)
	if err != nil {
		return err
	}
	def, err := m.build(st)
	if err != nil {
		return err
	}
	r.defs.Store(st, def)
	return nil
}

func reflectDefinition(st reflect.Type) *ProcessingDefinition {
	def := &ProcessingDefinition{
		Type:              st,
		RowNumberOrdering: true,
	}
	collectFields(st, nil, def)
	applyCapabilities(def)
	if def.TableName == "" && reflect.PointerTo(st).Implements(tablerType) {
		def.TableName = reflect.New(st).Interface().(Tabler).TableName()
	}
	def.index()
	return def
}

func applyCapabilities(def *ProcessingDefinition) {
	pt := reflect.PointerTo(def.Type)
	def.HasIdentitySetter = pt.Implements(identitySetterType)
	def.HasIdentity64Setter = pt.Implements(identity64SetterType)
}

func collectFields(st reflect.Type, parent []int, def *ProcessingDefinition) {
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		index := append(append([]int{}, parent...), i)

		if table := f.Tag.Get("table"); table != "" && def.TableName == "" {
			def.TableName = table
		}
		if f.Anonymous && f.Tag.Get("bulk") == "" && f.Tag.Get("db") == "" {
			switch {
			case f.Type.Kind() == reflect.Struct:
				collectFields(f.Type, index, def)
				continue
			case f.Type.Kind() == reflect.Ptr && f.Type.Elem().Kind() == reflect.Struct && f.IsExported():
				// nil pointers are allocated on identity write-back
				collectFields(f.Type.Elem(), index, def)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}

		column, opts, skip := columnName(f)
		if skip {
			continue
		}
		p := PropertyDefinition{
			Field:  f.Name,
			Index:  index,
			Type:   f.Type,
			Column: column,
		}
		for _, o := range opts {
			switch o {
			case "identity":
				p.IsIdentity = true
			case "match":
				p.IsMatchQualifier = true
			case "nonunique":
				def.AllowNonUniqueMatch = true
			}
		}
		if p.IsMatchQualifier {
			def.MatchQualifier = append(def.MatchQualifier, p.Column)
		}
		def.Properties = append(def.Properties, p)
	}
}

// columnName applies the naming precedence. It returns the trailing bulk options and
// whether the field is excluded.
func columnName(f reflect.StructField) (string, []string, bool) {
	var opts []string
	if tag, ok := f.Tag.Lookup("bulk"); ok {
		if tag == "-" {
			return "", nil, true
		}
		parts := strings.Split(tag, ",")
		opts = parts[1:]
		if name := strings.TrimSpace(parts[0]); name != "" {
			return name, opts, false
		}
	}
	if tag := f.Tag.Get("db"); tag != "" {
		name := strings.TrimSpace(strings.Split(tag, ",")[0])
		if name == "-" {
			return "", nil, true
		}
		if name != "" {
			return name, opts, false
		}
	}
	if tag := f.Tag.Get("gorm"); tag != "" {
		for _, part := range strings.Split(tag, ";") {
			part = strings.TrimSpace(part)
			if part == "-" {
				return "", nil, true
			}
			if k, v, ok := strings.Cut(part, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "column") {
				if v = strings.TrimSpace(v); v != "" {
					return v, opts, false
				}
			}
		}
	}
	return f.Name, opts, false
}
