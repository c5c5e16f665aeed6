package schema_test

import (
	"context"
	"testing"

	"db-upsert/internal/conn"
	"db-upsert/internal/dialect"
	"db-upsert/internal/schema"
	"db-upsert/internal/schema/schematest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (conn.Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c, err := conn.NewDBProvider(db, "mock-conn").NewConnection(context.Background())
	require.NoError(t, err)
	return c, mock
}

func ordersTable() schematest.Table {
	return schematest.Table{
		Schema: "sales",
		Name:   "Orders",
		Columns: []schematest.Column{
			{Name: "OrderId", Type: "bigint", Identity: true},
			{Name: "CustomerId", Type: "int"},
		},
		Keys: []schematest.Key{{Name: "PK_Orders", Type: "PRIMARY KEY", Columns: []string{"OrderId"}}},
		ForeignKeys: []schematest.ForeignKey{{
			Name: "FK_Orders_Customers", Schema: "sales", Table: "Orders", Columns: []string{"CustomerId"},
			RefSchema: "sales", RefTable: "Customers", RefColumns: []string{"CustomerId"},
		}},
		ReferencedBy: []schematest.ForeignKey{{
			Name: "FK_Lines_Orders", Schema: "sales", Table: "OrderLines", Columns: []string{"OrderId"},
			RefSchema: "sales", RefTable: "Orders", RefColumns: []string{"OrderId"},
		}},
	}
}

func TestLoader_Basic(t *testing.T) {
	c, mock := newMock(t)
	d := &dialect.MSSQLDialect{}
	schematest.ExpectBasic(mock, d, schematest.Items())

	def, err := schema.NewLoader(d).Load(context.Background(), c, schema.TableName{Schema: "dbo", Table: "Items"}, schema.Basic)
	require.NoError(t, err)
	require.NotNil(t, def)

	assert.Equal(t, "dbo.Items", def.Name.FullName())
	assert.Len(t, def.Columns, 3)
	require.NotNil(t, def.Identity)
	assert.Equal(t, "Id", def.Identity.Name)
	assert.Equal(t, []string{"Id"}, def.PrimaryKeyColumns())
	require.Len(t, def.UniqueKeys, 1)
	assert.Equal(t, []string{"Key"}, def.UniqueKeys[0].Columns)
	assert.Equal(t, -1, def.Columns[2].Length)
	assert.True(t, def.Columns[2].IsNullable)
	assert.Nil(t, def.ForeignKeys)
	assert.Nil(t, def.ReferencedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_BasicAndExtendedAgree(t *testing.T) {
	c, mock := newMock(t)
	d := &dialect.MSSQLDialect{}
	orders := ordersTable()
	schematest.ExpectBasic(mock, d, orders)
	schematest.ExpectExtended(mock, d, orders)

	loader := schema.NewLoader(d)
	name := schema.TableName{Schema: "sales", Table: "Orders"}
	basic, err := loader.Load(context.Background(), c, name, schema.Basic)
	require.NoError(t, err)
	extended, err := loader.Load(context.Background(), c, name, schema.Extended)
	require.NoError(t, err)

	assert.Empty(t, basic.ForeignKeys)
	assert.Len(t, basic.Columns, len(extended.Columns))
	assert.Equal(t, basic.Identity.Name, extended.Identity.Name)

	require.Len(t, extended.ForeignKeys, 1)
	assert.Equal(t, "Customers", extended.ForeignKeys[0].ReferencedTable)
	require.Len(t, extended.ReferencedBy, 1)
	assert.Equal(t, "OrderLines", extended.ReferencedBy[0].Table)
	assert.Equal(t, schema.Extended, extended.DetailLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_UsesCatalogNames(t *testing.T) {
	c, mock := newMock(t)
	d := &dialect.MSSQLDialect{}
	items := schematest.Items()
	schematest.ExpectColumns(mock, d, "DBO", "items", items)
	schematest.ExpectKeys(mock, d, items)

	def, err := schema.NewLoader(d).Load(context.Background(), c, schema.TableName{Schema: "DBO", Table: "items"}, schema.Basic)
	require.NoError(t, err)
	assert.Equal(t, schema.TableName{Schema: "dbo", Table: "Items"}, def.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_NotFound(t *testing.T) {
	c, mock := newMock(t)
	d := &dialect.MSSQLDialect{}
	schematest.ExpectColumns(mock, d, "dbo", "Missing", schematest.Table{})

	def, err := schema.NewLoader(d).Load(context.Background(), c, schema.TableName{Schema: "dbo", Table: "Missing"}, schema.Basic)
	assert.NoError(t, err)
	assert.Nil(t, def)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_TwoIdentityColumns(t *testing.T) {
	c, mock := newMock(t)
	d := &dialect.MSSQLDialect{}
	bad := schematest.Table{Schema: "dbo", Name: "Bad", Columns: []schematest.Column{
		{Name: "A", Type: "int", Identity: true},
		{Name: "B", Type: "int", Identity: true},
	}}
	schematest.ExpectColumns(mock, d, "dbo", "Bad", bad)

	_, err := schema.NewLoader(d).Load(context.Background(), c, schema.TableName{Schema: "dbo", Table: "Bad"}, schema.Basic)
	assert.ErrorContains(t, err, "more than one identity column")
}

func TestLoader_QueryError(t *testing.T) {
	c, mock := newMock(t)
	d := &dialect.MSSQLDialect{}
	mock.ExpectQuery(d.ColumnsQuery()).WillReturnError(errors.New("transaction has already been committed"))

	_, err := schema.NewLoader(d).Load(context.Background(), c, schema.TableName{Schema: "dbo", Table: "Items"}, schema.Basic)
	assert.ErrorContains(t, err, "failed to query columns")
}

func TestLoader_FoldsIdentifiers(t *testing.T) {
	c, mock := newMock(t)
	d := &dialect.PostgresDialect{}
	tbl := schematest.Table{Schema: "public", Name: "items", Columns: []schematest.Column{{Name: "id", Type: "int4", Identity: true}}}
	schematest.ExpectColumns(mock, d, "public", "items", tbl)
	schematest.ExpectKeys(mock, d, tbl)

	def, err := schema.NewLoader(d).Load(context.Background(), c, schema.TableName{Schema: "Public", Table: "Items"}, schema.Basic)
	require.NoError(t, err)
	assert.Equal(t, "public.items", def.Name.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}
