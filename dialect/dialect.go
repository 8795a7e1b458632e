package dialect

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/errs"
)

// Dialect captures everything that differs between database families when
// rendering SQL text. Implementations are stateless values.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// Placeholder renders the n-th bind parameter, counting from 1.
	Placeholder(n int) string
	RenderLiteral(v any) (string, error)
	// Pagination renders the row-limiting clause; either bound may be nil.
	Pagination(limit, offset *int) string
	Upsert(spec UpsertSpec) (UpsertClause, error)
	MapType(t ast.SemanticType) (string, error)
	Supports(f Feature) bool
}

type Feature int

const (
	FeatureUpsert Feature = iota
	FeatureUpsertDoNothing
	FeatureUpsertPartialUpdate
	FeatureReturning
	FeatureFullJoin
	FeatureILike
)

func (f Feature) String() string {
	switch f {
	case FeatureUpsert:
		return "upsert"
	case FeatureUpsertDoNothing:
		return "upsert do-nothing"
	case FeatureUpsertPartialUpdate:
		return "upsert with partial update"
	case FeatureReturning:
		return "RETURNING"
	case FeatureFullJoin:
		return "FULL JOIN"
	case FeatureILike:
		return "ILIKE"
	}
	return "feature(" + strconv.Itoa(int(f)) + ")"
}

// UpsertSpec describes an INSERT with conflict handling. Names are unquoted.
type UpsertSpec struct {
	Table     string
	Columns   []string
	Conflict  []string
	Update    []string
	DoNothing bool
}

// UpsertClause is spliced around the column list and VALUES rows:
//
//	Head <table> (<columns>)Key VALUES <rows>Tail
type UpsertClause struct {
	Head string
	Key  string
	Tail string
}

// PlainInsert is the clause of an INSERT without conflict handling.
var PlainInsert = UpsertClause{Head: "INSERT INTO"}

// ByName returns the dialect registered under name.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mariadb", "mysql":
		return MariaDB{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "h2":
		return H2{}, nil
	}
	return nil, errs.New(errs.UnsupportedDialectFeature, "unknown dialect %q", name)
}

// All returns every built-in dialect.
func All() []Dialect {
	return []Dialect{MariaDB{}, Postgres{}, H2{}}
}

func quoteWith(q, name string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func quoteList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

// literalStyle holds the per-family pieces of literal rendering.
type literalStyle struct {
	escapeBackslash bool
	bytes           func([]byte) string
	time            func(time.Time) string
}

func (s literalStyle) quote(v string) string {
	if s.escapeBackslash {
		v = strings.ReplaceAll(v, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func (s literalStyle) render(dialect string, v any) (string, error) {
	// A nil pointer is NULL, even when its type has a value-receiver String.
	// Other pointers render as what they point to, unless only the pointer
	// type is a Stringer.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "NULL", nil
		}
		elem := rv.Elem().Interface()
		_, ptrStringer := v.(fmt.Stringer)
		_, elemStringer := elem.(fmt.Stringer)
		if !ptrStringer || elemStringer {
			return s.render(dialect, elem)
		}
	}

	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return s.quote(val), nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32, float64:
		f := reflect.ValueOf(val).Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", errs.New(errs.TypeMismatch, "%s cannot render %v as a literal", dialect, f)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case time.Time:
		return s.time(val), nil
	case []byte:
		return s.bytes(val), nil
	case fmt.Stringer:
		return s.quote(val.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return s.quote(rv.String()), nil
	case reflect.Bool:
		return s.render(dialect, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return s.render(dialect, rv.Float())
	}
	return "", errs.New(errs.TypeMismatch, "%s cannot render %T as a literal", dialect, v)
}

func unsupportedType(dialect string, t ast.SemanticType) error {
	return errs.Unsupported("column type "+t.String(), dialect)
}
