// Package seed generates sample records for the fill command.
package seed

import (
	"fmt"
	"math"
	"strings"

	"db-upsert/internal/dialect"
	"db-upsert/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
)

// Item is a row of the sample key/value table.
type Item struct {
	ID    int64   `bulk:"Id,identity"`
	Key   string  `bulk:"Key,match"`
	Value *string `bulk:"Value"`
}

func (Item) TableName() string { return "dbo.Items" }

// Generator produces Items with unique keys.
type Generator struct {
	faker  *gofakeit.Faker
	prefix string
	seq    int

	KeyLength   int // 0 = unlimited
	ValueLength int
}

// NewGenerator seeds the faker; seed 0 picks a random seed.
func NewGenerator(seed int64, prefix string) *Generator {
	return &Generator{faker: gofakeit.New(seed), prefix: prefix}
}

// Items returns n new records. Roughly one in ten has a NULL value.
func (g *Generator) Items(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		g.seq++
		key := fmt.Sprintf("%s-%07d-%s", g.prefix, g.seq, strings.ToLower(g.faker.Word()))
		items[i].Key = truncate(key, g.KeyLength)
		if g.faker.Number(1, 10) > 1 {
			v := truncate(g.faker.Sentence(g.faker.Number(3, 12)), g.ValueLength)
			items[i].Value = &v
		}
	}
	return items
}

// Touch rewrites the value of every record in place, keeping keys.
func (g *Generator) Touch(items []Item) {
	for i := range items {
		v := truncate(g.faker.HipsterSentence(g.faker.Number(3, 8)), g.ValueLength)
		items[i].Value = &v
	}
}

// SizeFor reads key and value lengths from def so generated text always fits.
func (g *Generator) SizeFor(def *schema.TableDefinition) {
	if c, ok := def.Column("Key"); ok && c.Length > 0 {
		g.KeyLength = c.Length
	}
	if c, ok := def.Column("Value"); ok && c.Length > 0 {
		g.ValueLength = c.Length
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// identityMax is the largest value an identity of dataType can hold.
func identityMax(dataType string) int64 {
	switch strings.ToLower(dataType) {
	case "tinyint":
		return math.MaxUint8
	case "smallint":
		return math.MaxInt16
	case "int", "integer":
		return math.MaxInt32
	default:
		return math.MaxInt64
	}
}

// MaxRows caps requested by the range of def's identity column. The second result is
// false when the cap applied.
func MaxRows(def *schema.TableDefinition, requested int) (int, bool) {
	if def.Identity == nil {
		return requested, true
	}
	if limit := identityMax(def.Identity.DataType); int64(requested) > limit {
		return int(limit), false
	}
	return requested, true
}

// CreateTableSQL returns a statement creating the sample table when it is missing.
func CreateTableSQL(d dialect.Dialect, name schema.TableName) string {
	quoted := dialect.QuoteQualified(d, name.Schema, name.Table)
	literal := strings.ReplaceAll(quoted, "'", "''")
	return fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
	[Id] INT IDENTITY(1,1) NOT NULL CONSTRAINT %s PRIMARY KEY,
	[Key] NVARCHAR(100) NOT NULL CONSTRAINT %s UNIQUE,
	[Value] NVARCHAR(MAX) NULL
);`, literal, quoted, d.QuoteIdentifier("PK_"+name.Table), d.QuoteIdentifier("UQ_"+name.Table+"_Key"))
}
