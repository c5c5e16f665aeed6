package merge_test

import (
	"testing"

	"db-upsert/internal/dialect"
	"db-upsert/internal/errs"
	"db-upsert/internal/merge"
	"db-upsert/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSuffix() string { return "x" }

func TestBuild_InsertOrUpdate(t *testing.T) {
	def := itemsTable()
	pd := definition(t, keyedItem{})
	b := buildBatch(t, def, []keyedItem{{Key: "a"}}, pd)
	expr, err := merge.Resolve(def, pd, nil, nil)
	require.NoError(t, err)

	s, err := merge.NewScriptBuilder(&dialect.MSSQLDialect{}).WithSuffix(fixedSuffix).
		Build(def, b, expr, merge.InsertOrUpdate, true)
	require.NoError(t, err)

	assert.Equal(t, "#upsert_stage_x", s.StagingTable)
	assert.Equal(t, "#upsert_out_x", s.OutputTable)
	assert.Equal(t, []string{"Id", "Key", "Value", "__RowNumber"}, s.StagingColumns)

	assert.Equal(t, `SET NOCOUNT ON;
SELECT TOP(0) t.[Id] + 0 AS [Id], t.[Key], t.[Value], ISNULL(CAST(0 AS BIGINT), 0) AS [__RowNumber]
INTO [#upsert_stage_x]
FROM [dbo].[Items] AS t;
ALTER TABLE [#upsert_stage_x] ADD PRIMARY KEY ([__RowNumber]);
CREATE TABLE [#upsert_out_x] ([MergeAction] NVARCHAR(10) NOT NULL, [IdentityValue] BIGINT NULL, [__RowNumber] BIGINT NOT NULL);`, s.StagingDDL)

	assert.Equal(t, `SET NOCOUNT ON;
MERGE INTO [dbo].[Items] WITH (HOLDLOCK) AS T
USING (SELECT TOP 100 PERCENT * FROM [#upsert_stage_x] ORDER BY [__RowNumber]) AS S
ON T.[Key] = S.[Key]
WHEN MATCHED THEN UPDATE SET T.[Value] = S.[Value]
WHEN NOT MATCHED BY TARGET THEN INSERT ([Key], [Value]) VALUES (S.[Key], S.[Value])
OUTPUT $action, CAST(INSERTED.[Id] AS BIGINT), S.[__RowNumber] INTO [#upsert_out_x] ([MergeAction], [IdentityValue], [__RowNumber]);
SELECT [__RowNumber], [IdentityValue], [MergeAction] FROM [#upsert_out_x] ORDER BY [__RowNumber];
DROP TABLE [#upsert_stage_x];
DROP TABLE [#upsert_out_x];`, s.MergeDML)
}

func TestBuild_ActionClauses(t *testing.T) {
	def := itemsTable()
	pd := definition(t, item{})
	b := buildBatch(t, def, []item{{Key: "a"}}, pd)
	expr, err := merge.Resolve(def, pd, nil, nil)
	require.NoError(t, err)
	sb := merge.NewScriptBuilder(&dialect.MSSQLDialect{})

	s, err := sb.Build(def, b, expr, merge.Insert, true)
	require.NoError(t, err)
	assert.Contains(t, s.MergeDML, "WHEN NOT MATCHED BY TARGET THEN INSERT")
	assert.NotContains(t, s.MergeDML, "WHEN MATCHED")
	assert.Contains(t, s.MergeDML, "ON T.[Id] = S.[Id]")

	s, err = sb.Build(def, b, expr, merge.Update, false)
	require.NoError(t, err)
	assert.Contains(t, s.MergeDML, "WHEN MATCHED THEN UPDATE SET T.[Key] = S.[Key], T.[Value] = S.[Value]")
	assert.NotContains(t, s.MergeDML, "NOT MATCHED")
	assert.NotContains(t, s.MergeDML, "ORDER BY [__RowNumber]) AS S")
	assert.Contains(t, s.MergeDML, "USING (SELECT * FROM [#upsert_stage_")

	_, err = sb.Build(def, b, expr, 0, true)
	assert.ErrorIs(t, err, errs.ErrInvalidEntity)
}

func TestBuild_UniqueNames(t *testing.T) {
	def := itemsTable()
	pd := definition(t, item{})
	b := buildBatch(t, def, []item{{Key: "a"}}, pd)
	expr, err := merge.Resolve(def, pd, nil, nil)
	require.NoError(t, err)
	sb := merge.NewScriptBuilder(&dialect.MSSQLDialect{})

	s1, err := sb.Build(def, b, expr, merge.InsertOrUpdate, true)
	require.NoError(t, err)
	s2, err := sb.Build(def, b, expr, merge.InsertOrUpdate, true)
	require.NoError(t, err)
	assert.NotEqual(t, s1.StagingTable, s2.StagingTable)
	assert.NotEqual(t, s1.StagingTable, s1.OutputTable)
}

func TestBuild_NullableMatchAndNoIdentity(t *testing.T) {
	type tag struct {
		Code  *string
		Label string
	}
	def := &schema.TableDefinition{
		Name: schema.TableName{Schema: "app", Table: "Tags"},
		Columns: []schema.ColumnDefinition{
			{Name: "Code", DataType: "varchar", Length: 20, IsNullable: true},
			{Name: "Label", DataType: "nvarchar", Length: 50},
		},
	}
	pd := definition(t, tag{})
	b := buildBatch(t, def, []tag{{Label: "l"}}, pd)
	expr, err := merge.Resolve(def, pd, &merge.Qualifier{Columns: []string{"Code"}}, nil)
	require.NoError(t, err)

	s, err := merge.NewScriptBuilder(&dialect.MSSQLDialect{}).WithSuffix(fixedSuffix).
		Build(def, b, expr, merge.InsertOrUpdate, true)
	require.NoError(t, err)
	assert.Contains(t, s.MergeDML, "ON (T.[Code] = S.[Code] OR (T.[Code] IS NULL AND S.[Code] IS NULL))")
	assert.Contains(t, s.MergeDML, "OUTPUT $action, CAST(NULL AS BIGINT), S.[__RowNumber]")
	assert.Contains(t, s.StagingDDL, "SELECT TOP(0) t.[Code], t.[Label], ISNULL")
	assert.Contains(t, s.StagingDDL, "FROM [app].[Tags] AS t;")
}

func TestBuild_OnlyKeyColumns(t *testing.T) {
	type link struct {
		A int
		B int
	}
	def := &schema.TableDefinition{
		Name:       schema.TableName{Schema: "dbo", Table: "Links"},
		Columns:    []schema.ColumnDefinition{{Name: "A", DataType: "int"}, {Name: "B", DataType: "int"}},
		PrimaryKey: &schema.KeyConstraint{Name: "PK_Links", Type: schema.ConstraintPrimaryKey, Columns: []string{"A", "B"}},
	}
	pd := definition(t, link{})
	b := buildBatch(t, def, []link{{1, 2}}, pd)
	expr, err := merge.Resolve(def, pd, nil, nil)
	require.NoError(t, err)

	s, err := merge.NewScriptBuilder(&dialect.MSSQLDialect{}).Build(def, b, expr, merge.InsertOrUpdate, true)
	require.NoError(t, err)
	assert.Contains(t, s.MergeDML, "ON T.[A] = S.[A] AND T.[B] = S.[B]")
	assert.Contains(t, s.MergeDML, "WHEN MATCHED THEN UPDATE SET T.[A] = S.[A], T.[B] = S.[B]")
}

func TestBuild_UnsupportedDialect(t *testing.T) {
	def := itemsTable()
	pd := definition(t, item{})
	b := buildBatch(t, def, []item{{Key: "a"}}, pd)
	expr, err := merge.Resolve(def, pd, nil, nil)
	require.NoError(t, err)

	_, err = merge.NewScriptBuilder(&dialect.PostgresDialect{}).Build(def, b, expr, merge.InsertOrUpdate, true)
	assert.ErrorIs(t, err, errs.ErrUnsupportedDialect)
}
