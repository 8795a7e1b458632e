package dialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Konsultn-Engineering/linsql/ast"
)

type Postgres struct{}

func NewPostgresDialect() Dialect {
	return Postgres{}
}

var postgresLiterals = literalStyle{
	bytes: func(b []byte) string { return fmt.Sprintf(`'\x%x'::bytea`, b) },
	time: func(t time.Time) string {
		return "'" + t.Format("2006-01-02 15:04:05.000000Z07:00") + "'::timestamptz"
	},
}

var postgresTypes = map[ast.SemanticType]string{
	ast.TypeBool:    "BOOLEAN",
	ast.TypeInt:     "BIGINT",
	ast.TypeFloat:   "DOUBLE PRECISION",
	ast.TypeDecimal: "NUMERIC",
	ast.TypeString:  "VARCHAR(255)",
	ast.TypeText:    "TEXT",
	ast.TypeBytes:   "BYTEA",
	ast.TypeTime:    "TIMESTAMP WITH TIME ZONE",
	ast.TypeDate:    "DATE",
	ast.TypeUUID:    "UUID",
	ast.TypeJSON:    "JSONB",
}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdentifier(name string) string {
	return quoteWith(`"`, name)
}

func (Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (p Postgres) RenderLiteral(v any) (string, error) {
	return postgresLiterals.render(p.Name(), v)
}

func (Postgres) Pagination(limit, offset *int) string {
	return limitOffset(limit, offset, "")
}

func (p Postgres) Upsert(spec UpsertSpec) (UpsertClause, error) {
	var sb strings.Builder
	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(quoteList(p, spec.Conflict))
	sb.WriteString(")")

	if spec.DoNothing || len(spec.Update) == 0 {
		sb.WriteString(" DO NOTHING")
		return UpsertClause{Head: "INSERT INTO", Tail: sb.String()}, nil
	}

	sb.WriteString(" DO UPDATE SET ")
	for i, c := range spec.Update {
		if i > 0 {
			sb.WriteString(", ")
		}
		q := p.QuoteIdentifier(c)
		sb.WriteString(q + " = EXCLUDED." + q)
	}
	return UpsertClause{Head: "INSERT INTO", Tail: sb.String()}, nil
}

func (p Postgres) MapType(t ast.SemanticType) (string, error) {
	if s, ok := postgresTypes[t]; ok {
		return s, nil
	}
	return "", unsupportedType(p.Name(), t)
}

func (Postgres) Supports(f Feature) bool {
	switch f {
	case FeatureUpsert, FeatureUpsertDoNothing, FeatureUpsertPartialUpdate,
		FeatureReturning, FeatureFullJoin, FeatureILike:
		return true
	}
	return false
}

// limitOffset renders "LIMIT n OFFSET m". noLimit stands in for the count
// when only an offset is given and the family cannot omit LIMIT.
func limitOffset(limit, offset *int, noLimit string) string {
	var parts []string
	switch {
	case limit != nil:
		parts = append(parts, "LIMIT "+strconv.Itoa(*limit))
	case offset != nil && noLimit != "":
		parts = append(parts, "LIMIT "+noLimit)
	}
	if offset != nil {
		parts = append(parts, "OFFSET "+strconv.Itoa(*offset))
	}
	return strings.Join(parts, " ")
}
