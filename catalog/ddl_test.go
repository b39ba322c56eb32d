package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbdb/rbdb/catalog"
)

func TestIsCreateTable(t *testing.T) {
	assert.True(t, catalog.IsCreateTable("CREATE TABLE human(name)"))
	assert.True(t, catalog.IsCreateTable("  create table human(name)"))
	assert.False(t, catalog.IsCreateTable("SELECT * FROM human"))
	assert.False(t, catalog.IsCreateTable("CREATE VIEW human AS SELECT 1"))
}

func TestParseCreateTableBasic(t *testing.T) {
	p, err := catalog.ParseCreateTable(`CREATE TABLE human(name)`)
	require.NoError(t, err)
	assert.Equal(t, "human", p.Name)
	assert.Equal(t, []string{"name"}, p.Columns)
	assert.False(t, p.IfNotExists)
}

func TestParseCreateTableIfNotExists(t *testing.T) {
	p, err := catalog.ParseCreateTable(`CREATE TABLE IF NOT EXISTS parent(parent, child)`)
	require.NoError(t, err)
	assert.True(t, p.IfNotExists)
	assert.Equal(t, []string{"parent", "child"}, p.Columns)
}

func TestParseCreateTableStripsBracketedTableName(t *testing.T) {
	p, err := catalog.ParseCreateTable(`CREATE TABLE [human](name)`)
	require.NoError(t, err)
	assert.Equal(t, "human", p.Name)
}

func TestParseCreateTableDiscardsTableLevelConstraints(t *testing.T) {
	p, err := catalog.ParseCreateTable(`CREATE TABLE citizen(name, country, UNIQUE(name, country))`)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "country"}, p.Columns)
}

func TestParseCreateTableTakesFirstTokenOfColumnDef(t *testing.T) {
	p, err := catalog.ParseCreateTable(`CREATE TABLE measurement(value NUMBER NOT NULL)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"value"}, p.Columns)
}

func TestParseCreateTableRejectsQuotedColumn(t *testing.T) {
	_, err := catalog.ParseCreateTable(`CREATE TABLE human("name")`)
	require.Error(t, err)
	var quoted *catalog.QuotedColumnNotSupportedError
	require.ErrorAs(t, err, &quoted)
	assert.Equal(t, "name", quoted.Column)
}

func TestParseCreateTableLowercasesName(t *testing.T) {
	p, err := catalog.ParseCreateTable(`CREATE TABLE Human(name)`)
	require.NoError(t, err)
	assert.Equal(t, "human", p.Name)
}

func TestParseCreateTableIgnoresCommasInsideNestedParens(t *testing.T) {
	p, err := catalog.ParseCreateTable(`CREATE TABLE widget(name, CHECK(name <> ''), size)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "size"}, p.Columns)
}
