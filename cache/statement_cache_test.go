package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/dialect"
	"github.com/Konsultn-Engineering/linsql/errs"
)

var catalog = ast.MustCatalog(ast.TableMeta{Name: "users", Columns: []ast.ColumnMeta{
	{Name: "id", Type: ast.TypeInt, PrimaryKey: true},
	{Name: "name", Type: ast.TypeString, Nullable: true},
}})

func TestGetOrCompileHitsPerDialect(t *testing.T) {
	c, err := NewStatementCache(8)
	require.NoError(t, err)

	b := ast.NewBuilder(catalog)
	q := b.Select("id").From("users").Where(ast.Eq("id", 1))

	first, err := c.GetOrCompile(q, dialect.Postgres{})
	require.NoError(t, err)
	again, err := c.GetOrCompile(b.Select("id").From("users").Where(ast.Eq("id", 1)), dialect.Postgres{})
	require.NoError(t, err)
	assert.Same(t, first, again)

	my, err := c.GetOrCompile(q, dialect.MariaDB{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `users` WHERE `id` = ?", my.SQL())

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestGetOrCompileDoesNotCacheErrors(t *testing.T) {
	c, err := NewStatementCache(0)
	require.NoError(t, err)

	bad := ast.NewBuilder(catalog).Select("missing").From("users")
	_, err = c.GetOrCompile(bad, dialect.H2{})
	assert.ErrorIs(t, err, errs.ErrUnresolvedReference)
	assert.Zero(t, c.Len())

	_, err = c.GetOrCompile(nil, dialect.H2{})
	assert.ErrorIs(t, err, errs.ErrInvalidExpression)
}
