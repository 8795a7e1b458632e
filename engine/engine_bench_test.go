package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/connector"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

// createBenchEngine opens a fresh SQLite-backed engine holding 100 users.
func createBenchEngine(b *testing.B) *Engine {
	b.Helper()
	ctx := context.Background()
	e, err := Open(ctx, connector.Config{
		URL:      "file:" + filepath.Join(b.TempDir(), "bench.db"),
		Dialect:  "mariadb",
		Driver:   "sqlite",
		PoolSize: 4,
	}, testCatalog)
	require.NoError(b, err)
	b.Cleanup(func() { _ = e.Close(context.Background()) })
	require.NoError(b, e.CreateSchema(ctx))

	ins := e.Builder().Insert("users")
	for i := 1; i <= 100; i++ {
		ins = ins.Values(ast.Assign("id", i), ast.Assign("name", "user"), ast.Assign("email", nil))
	}
	_, err = e.Exec(ctx, ins)
	require.NoError(b, err)
	return e
}

// Benchmark for Find with 100 rows, compile cache warm.
func BenchmarkFind100Rows(b *testing.B) {
	e := createBenchEngine(b)
	q := e.Builder().Select("id", "name", "email").From("users")
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		users, err := Find(ctx, e, q, userSpec)
		if err != nil {
			b.Fatal(err)
		}
		if len(users) != 100 {
			b.Fatalf("got %d users", len(users))
		}
	}
}

// Benchmark for Each, stopping after the first row.
func BenchmarkEachFirstRow(b *testing.B) {
	e := createBenchEngine(b)
	q := e.Builder().Select("id", "name", "email").From("users").OrderBy("id", ast.Asc)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for _, err := range Each(ctx, e, q, userSpec) {
			if err != nil {
				b.Fatal(err)
			}
			break
		}
	}
}

func benchmarkQuery(e *Engine) ast.Node {
	return e.Builder().Select("id", "name").From("users").
		Where(ast.And(ast.Eq("name", ast.NamedParam("name", ast.TypeString)), ast.Gt("id", 10))).
		OrderBy("id", ast.Desc).
		Limit(20)
}

func BenchmarkCompileCached(b *testing.B) {
	e := createBenchEngine(b)
	q := benchmarkQuery(e)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := e.Compile(q); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompileUncached(b *testing.B) {
	e := createBenchEngine(b)
	q := benchmarkQuery(e)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := visitor.Compile(q, e.Dialect()); err != nil {
			b.Fatal(err)
		}
	}
}
