package merge_test

import (
	"reflect"
	"testing"

	"db-upsert/internal/batch"
	"db-upsert/internal/entity"
	"db-upsert/internal/schema"

	"github.com/stretchr/testify/require"
)

type item struct {
	ID    int64   `bulk:"Id,identity"`
	Key   string  `bulk:"Key"`
	Value *string `bulk:"Value"`
}

type keyedItem struct {
	ID    int64   `bulk:"Id,identity"`
	Key   string  `bulk:"Key,match"`
	Value *string `bulk:"Value"`
}

func itemsTable() *schema.TableDefinition {
	id := schema.ColumnDefinition{Name: "Id", Ordinal: 1, DataType: "int", IsIdentity: true}
	return &schema.TableDefinition{
		Name: schema.TableName{Schema: "dbo", Table: "Items"},
		Columns: []schema.ColumnDefinition{
			id,
			{Name: "Key", Ordinal: 2, DataType: "nvarchar", Length: 100},
			{Name: "Value", Ordinal: 3, DataType: "nvarchar", Length: -1, IsNullable: true},
		},
		Identity:   &id,
		PrimaryKey: &schema.KeyConstraint{Name: "PK_Items", Type: schema.ConstraintPrimaryKey, Columns: []string{"Id"}},
		UniqueKeys: []schema.KeyConstraint{{Name: "UQ_Items_Key", Type: schema.ConstraintUnique, Columns: []string{"Key"}}},
	}
}

func definition(t *testing.T, v any) *entity.ProcessingDefinition {
	t.Helper()
	pd, err := entity.NewReflector().Definition(reflect.TypeOf(v))
	require.NoError(t, err)
	return pd
}

func buildBatch(t *testing.T, def *schema.TableDefinition, records any, pd *entity.ProcessingDefinition) *batch.Batch {
	t.Helper()
	b, err := batch.Build(reflect.ValueOf(records), def, pd)
	require.NoError(t, err)
	return b
}
