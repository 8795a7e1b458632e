package visitor

import (
	"testing"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/dialect"
)

func BenchmarkCompileSelect(b *testing.B) {
	q := newBuilder().Select("id", "name").From("users").
		Where(ast.And(ast.Eq("id", 123), ast.IsNotNull("email"))).
		Limit(1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Compile(q, dialect.Postgres{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompileInsertBatch(b *testing.B) {
	q := newBuilder().Insert("users")
	for i := 0; i < 50; i++ {
		q = q.Values(ast.Assign("id", i), ast.Assign("name", "n"))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Compile(q, dialect.MariaDB{}); err != nil {
			b.Fatal(err)
		}
	}
}
