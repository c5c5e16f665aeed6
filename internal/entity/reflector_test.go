package entity_test

import (
	"math"
	"reflect"
	"sync"
	"testing"

	"db-upsert/internal/entity"
	"db-upsert/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type audit struct {
	CreatedBy string `db:"created_by"`
}

type tagged struct {
	audit
	ID      int     `bulk:"Id,identity"`
	Key     string  `bulk:"Key,match"`
	Value   *string `db:"value"`
	Note    string  `gorm:"type:nvarchar(10);column:note_text"`
	Plain   float64
	Skipped string `bulk:"-"`
	hidden  string
}

func (tagged) TableName() string { return "dbo.Tagged" }

type withTableTag struct {
	_    struct{} `table:"inventory.Stock"`
	Code string   `bulk:"Code,match,nonunique"`
}

type setter32 struct {
	Id   int64
	Name string
	got  int32
}

func (s *setter32) SetIdentity(id int32) { s.got = id }

type setter64 struct {
	Id  int32
	got int64
}

func (s *setter64) SetIdentity64(id int64) { s.got = id }

func TestDefinition_TagPrecedence(t *testing.T) {
	r := entity.NewReflector()
	def, err := r.Definition(reflect.TypeOf(tagged{}))
	require.NoError(t, err)

	assert.Equal(t, "dbo.Tagged", def.TableName)
	assert.True(t, def.RowNumberOrdering)

	var columns []string
	for _, p := range def.Properties {
		columns = append(columns, p.Column)
	}
	assert.Equal(t, []string{"created_by", "Id", "Key", "value", "note_text", "Plain"}, columns)
	assert.Equal(t, []string{"Key"}, def.MatchQualifier)
	assert.False(t, def.AllowNonUniqueMatch)

	id, ok := def.IdentityProperty("")
	require.True(t, ok)
	assert.Equal(t, "ID", id.Field)

	p, ok := def.Property("NOTE_TEXT")
	require.True(t, ok)
	assert.Equal(t, "Note", p.Field)
}

func TestDefinition_PointerTypeSharesEntry(t *testing.T) {
	r := entity.NewReflector()
	a, err := r.Definition(reflect.TypeOf(tagged{}))
	require.NoError(t, err)
	b, err := r.Definition(reflect.TypeOf(&tagged{}))
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestDefinition_ConcurrentFirstUse(t *testing.T) {
	r := entity.NewReflector()
	defs := make([]*entity.ProcessingDefinition, 32)
	var wg sync.WaitGroup
	for i := range defs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := r.Definition(reflect.TypeOf(tagged{}))
			assert.NoError(t, err)
			defs[i] = d
		}(i)
	}
	wg.Wait()
	for _, d := range defs[1:] {
		assert.Same(t, defs[0], d)
	}
}

func TestDefinition_TableTagAndNonUnique(t *testing.T) {
	def, err := entity.NewReflector().Definition(reflect.TypeOf(withTableTag{}))
	require.NoError(t, err)
	assert.Equal(t, "inventory.Stock", def.TableName)
	assert.True(t, def.AllowNonUniqueMatch)
	assert.Equal(t, []string{"Code"}, def.MatchQualifier)
}

func TestDefinition_RejectsNonStruct(t *testing.T) {
	_, err := entity.NewReflector().Definition(reflect.TypeOf(42))
	assert.ErrorIs(t, err, errs.ErrInvalidEntity)
	assert.True(t, errs.IsConfiguration(err))
}

func TestDefinition_Capabilities(t *testing.T) {
	r := entity.NewReflector()
	d32, err := r.Definition(reflect.TypeOf(setter32{}))
	require.NoError(t, err)
	assert.True(t, d32.HasIdentitySetter)
	assert.False(t, d32.HasIdentity64Setter)
	assert.True(t, d32.CanAssignIdentity(""))

	d64, err := r.Definition(reflect.TypeOf(setter64{}))
	require.NoError(t, err)
	assert.True(t, d64.HasIdentity64Setter)
}

func TestRegister(t *testing.T) {
	type row struct {
		Ref   int64
		Label string
		Extra string
	}
	r := entity.NewReflector()
	err := r.Register(reflect.TypeOf(row{}), entity.Mapping{
		Table: "Rows",
		Fields: []entity.FieldMapping{
			{Field: "Ref", Column: "RowId", Identity: true},
			{Field: "Label", Match: true},
		},
		NoRowNumberOrdering: true,
	})
	require.NoError(t, err)

	def, err := r.Definition(reflect.TypeOf(&row{}))
	require.NoError(t, err)
	assert.Equal(t, "Rows", def.TableName)
	assert.False(t, def.RowNumberOrdering)
	require.Len(t, def.Properties, 2)
	assert.Equal(t, "RowId", def.Properties[0].Column)
	assert.Equal(t, "Label", def.Properties[1].Column)
	assert.Equal(t, []string{"Label"}, def.MatchQualifier)

	err = r.Register(reflect.TypeOf(row{}), entity.Mapping{Fields: []entity.FieldMapping{{Field: "Missing"}}})
	assert.ErrorIs(t, err, errs.ErrInvalidEntity)

	err = r.Register(reflect.TypeOf(row{}), entity.Mapping{Fields: []entity.FieldMapping{
		{Field: "Label", Column: "X"}, {Field: "Extra", Column: "X"},
	}})
	assert.ErrorIs(t, err, errs.ErrInvalidEntity)
}

func TestValue(t *testing.T) {
	def, err := entity.NewReflector().Definition(reflect.TypeOf(tagged{}))
	require.NoError(t, err)

	v := "v"
	rec := tagged{audit: audit{CreatedBy: "me"}, ID: 3, Key: "k", Value: &v}
	sv := reflect.ValueOf(rec)

	got := map[string]any{}
	for i := range def.Properties {
		got[def.Properties[i].Column] = def.Properties[i].Value(sv)
	}
	assert.Equal(t, "me", got["created_by"])
	assert.Equal(t, 3, got["Id"])
	assert.Equal(t, "v", got["value"])

	rec.Value = nil
	p, _ := def.Property("value")
	assert.Nil(t, p.Value(reflect.ValueOf(rec)))
}

type Base struct {
	ID int64 `bulk:"Id,identity"`
}

type withBasePtr struct {
	*Base
	Key string `bulk:"Key,match"`
}

func TestDefinition_EmbeddedPointer(t *testing.T) {
	def, err := entity.NewReflector().Definition(reflect.TypeOf(withBasePtr{}))
	require.NoError(t, err)
	p, ok := def.IdentityProperty("Id")
	require.True(t, ok)
	assert.Equal(t, []int{0, 0}, p.Index)
	assert.True(t, def.CanAssignIdentity("Id"))

	assert.Nil(t, p.Value(reflect.ValueOf(withBasePtr{Key: "a"})))
	assert.EqualValues(t, 3, p.Value(reflect.ValueOf(withBasePtr{Base: &Base{ID: 3}})))
}

func TestAssignIdentity(t *testing.T) {
	r := entity.NewReflector()

	t.Run("field", func(t *testing.T) {
		def, err := r.Definition(reflect.TypeOf(tagged{}))
		require.NoError(t, err)
		rec := &tagged{}
		require.NoError(t, def.AssignIdentity(reflect.ValueOf(rec), "Id", 41))
		assert.Equal(t, 41, rec.ID)
	})

	t.Run("slice element", func(t *testing.T) {
		def, err := r.Definition(reflect.TypeOf(tagged{}))
		require.NoError(t, err)
		recs := []tagged{{}, {}}
		require.NoError(t, def.AssignIdentity(reflect.ValueOf(recs).Index(1), "Id", 7))
		assert.Equal(t, 7, recs[1].ID)
		assert.Equal(t, 0, recs[0].ID)
	})

	t.Run("by table identity column", func(t *testing.T) {
		type untagged struct {
			RowId *uint16
			Name  string
		}
		def, err := r.Definition(reflect.TypeOf(untagged{}))
		require.NoError(t, err)
		assert.False(t, def.CanAssignIdentity(""))
		assert.True(t, def.CanAssignIdentity("rowid"))

		rec := &untagged{}
		require.NoError(t, def.AssignIdentity(reflect.ValueOf(rec), "rowid", 9))
		require.NotNil(t, rec.RowId)
		assert.EqualValues(t, 9, *rec.RowId)

		err = def.AssignIdentity(reflect.ValueOf(rec), "rowid", math.MaxUint16+1)
		assert.ErrorIs(t, err, errs.ErrIdentityWriteBack)
		assert.False(t, errs.IsConfiguration(err))
		err = def.AssignIdentity(reflect.ValueOf(rec), "rowid", -1)
		assert.ErrorIs(t, err, errs.ErrIdentityWriteBack)
		assert.EqualValues(t, 9, *rec.RowId)
	})

	t.Run("setter32", func(t *testing.T) {
		def, err := r.Definition(reflect.TypeOf(setter32{}))
		require.NoError(t, err)
		rec := &setter32{}
		require.NoError(t, def.AssignIdentity(reflect.ValueOf(rec), "Id", 12))
		assert.EqualValues(t, 12, rec.got)
		assert.Zero(t, rec.Id)

		err = def.AssignIdentity(reflect.ValueOf(rec), "Id", math.MaxInt32+1)
		assert.ErrorIs(t, err, errs.ErrIdentityWriteBack)
		assert.EqualValues(t, 12, rec.got)
	})

	t.Run("setter64", func(t *testing.T) {
		def, err := r.Definition(reflect.TypeOf(setter64{}))
		require.NoError(t, err)
		rec := &setter64{}
		require.NoError(t, def.AssignIdentity(reflect.ValueOf(rec), "Id", math.MaxInt32+5))
		assert.EqualValues(t, math.MaxInt32+5, rec.got)
	})

	t.Run("unmapped", func(t *testing.T) {
		type bare struct{ Name string }
		def, err := r.Definition(reflect.TypeOf(bare{}))
		require.NoError(t, err)
		err = def.AssignIdentity(reflect.ValueOf(&bare{}), "Id", 1)
		assert.ErrorIs(t, err, errs.ErrUnmappedIdentity)
	})

	t.Run("check leaves record alone", func(t *testing.T) {
		type tiny struct {
			ID int8 `bulk:"Id,identity"`
		}
		def, err := r.Definition(reflect.TypeOf(tiny{}))
		require.NoError(t, err)
		rec := &tiny{ID: 5}
		require.NoError(t, def.CheckIdentity(reflect.ValueOf(rec), "Id", 100))
		assert.EqualValues(t, 5, rec.ID)
		assert.ErrorIs(t, def.CheckIdentity(reflect.ValueOf(rec), "Id", 300), errs.ErrIdentityWriteBack)
	})

	t.Run("non-integer field", func(t *testing.T) {
		type texty struct {
			ID string `bulk:"Id,identity"`
		}
		def, err := r.Definition(reflect.TypeOf(texty{}))
		require.NoError(t, err)
		err = def.AssignIdentity(reflect.ValueOf(&texty{}), "Id", 1)
		assert.ErrorIs(t, err, errs.ErrIdentityWriteBack)
	})

	t.Run("nil embedded pointer", func(t *testing.T) {
		def, err := r.Definition(reflect.TypeOf(withBasePtr{}))
		require.NoError(t, err)
		rec := &withBasePtr{}
		require.NoError(t, def.AssignIdentity(reflect.ValueOf(rec), "Id", 77))
		require.NotNil(t, rec.Base)
		assert.EqualValues(t, 77, rec.ID)
	})

	t.Run("nil record", func(t *testing.T) {
		def, err := r.Definition(reflect.TypeOf(tagged{}))
		require.NoError(t, err)
		err = def.AssignIdentity(reflect.ValueOf((*tagged)(nil)), "Id", 1)
		assert.ErrorIs(t, err, errs.ErrInvalidEntity)
	})
}
