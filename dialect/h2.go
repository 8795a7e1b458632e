package dialect

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/errs"
)

type H2 struct{}

func NewH2Dialect() Dialect {
	return H2{}
}

var h2Literals = literalStyle{
	bytes: func(b []byte) string { return fmt.Sprintf("X'%x'", b) },
	time: func(t time.Time) string {
		return "TIMESTAMP WITH TIME ZONE '" + t.Format("2006-01-02 15:04:05.000000-07:00") + "'"
	},
}

var h2Types = map[ast.SemanticType]string{
	ast.TypeBool:    "BOOLEAN",
	ast.TypeInt:     "BIGINT",
	ast.TypeFloat:   "DOUBLE PRECISION",
	ast.TypeDecimal: "DECIMAL(38,10)",
	ast.TypeString:  "VARCHAR(255)",
	ast.TypeText:    "CLOB",
	ast.TypeBytes:   "BLOB",
	ast.TypeTime:    "TIMESTAMP WITH TIME ZONE",
	ast.TypeDate:    "DATE",
	ast.TypeUUID:    "UUID",
	ast.TypeJSON:    "JSON",
}

func (H2) Name() string { return "h2" }

func (H2) QuoteIdentifier(name string) string {
	return quoteWith(`"`, name)
}

func (H2) Placeholder(int) string {
	return "?"
}

func (h H2) RenderLiteral(v any) (string, error) {
	return h2Literals.render(h.Name(), v)
}

// Pagination uses the standard OFFSET/FETCH form.
func (H2) Pagination(limit, offset *int) string {
	switch {
	case limit != nil && offset != nil:
		return "OFFSET " + strconv.Itoa(*offset) + " ROWS FETCH NEXT " + strconv.Itoa(*limit) + " ROWS ONLY"
	case limit != nil:
		return "FETCH FIRST " + strconv.Itoa(*limit) + " ROWS ONLY"
	case offset != nil:
		return "OFFSET " + strconv.Itoa(*offset) + " ROWS"
	}
	return ""
}

// Upsert renders MERGE INTO ... KEY (...), which overwrites every
// non-key column of a matching row.
func (h H2) Upsert(spec UpsertSpec) (UpsertClause, error) {
	if spec.DoNothing {
		return UpsertClause{}, errs.Unsupported(FeatureUpsertDoNothing.String(), h.Name())
	}

	var rest []string
	for _, c := range spec.Columns {
		if !slices.Contains(spec.Conflict, c) {
			rest = append(rest, c)
		}
	}
	update := slices.Clone(spec.Update)
	slices.Sort(update)
	slices.Sort(rest)
	if !slices.Equal(update, rest) {
		return UpsertClause{}, errs.Unsupported(FeatureUpsertPartialUpdate.String(), h.Name())
	}

	return UpsertClause{
		Head: "MERGE INTO",
		Key:  " KEY (" + quoteList(h, spec.Conflict) + ")",
	}, nil
}

func (h H2) MapType(t ast.SemanticType) (string, error) {
	if s, ok := h2Types[t]; ok {
		return s, nil
	}
	return "", unsupportedType(h.Name(), t)
}

func (H2) Supports(f Feature) bool {
	switch f {
	case FeatureUpsert, FeatureILike:
		return true
	}
	return false
}
