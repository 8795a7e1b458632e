package dialect

import (
	"fmt"
	"strings"
	"time"

	"github.com/Konsultn-Engineering/linsql/ast"
)

// MariaDB also covers MySQL servers.
type MariaDB struct{}

func NewMariaDBDialect() Dialect {
	return MariaDB{}
}

// mariadbNoLimit is the documented way to express "no limit" when only an
// offset is wanted.
const mariadbNoLimit = "18446744073709551615"

var mariadbLiterals = literalStyle{
	escapeBackslash: true,
	bytes:           func(b []byte) string { return fmt.Sprintf("X'%x'", b) },
	time: func(t time.Time) string {
		return "'" + t.UTC().Format("2006-01-02 15:04:05.000000") + "'"
	},
}

var mariadbTypes = map[ast.SemanticType]string{
	ast.TypeBool:    "BOOLEAN",
	ast.TypeInt:     "BIGINT",
	ast.TypeFloat:   "DOUBLE",
	ast.TypeDecimal: "DECIMAL(38,10)",
	ast.TypeString:  "VARCHAR(255)",
	ast.TypeText:    "LONGTEXT",
	ast.TypeBytes:   "LONGBLOB",
	ast.TypeTime:    "DATETIME(6)",
	ast.TypeDate:    "DATE",
	ast.TypeUUID:    "CHAR(36)",
	ast.TypeJSON:    "JSON",
}

func (MariaDB) Name() string { return "mariadb" }

func (MariaDB) QuoteIdentifier(name string) string {
	return quoteWith("`", name)
}

func (MariaDB) Placeholder(int) string {
	return "?"
}

func (m MariaDB) RenderLiteral(v any) (string, error) {
	return mariadbLiterals.render(m.Name(), v)
}

func (MariaDB) Pagination(limit, offset *int) string {
	return limitOffset(limit, offset, mariadbNoLimit)
}

// Upsert relies on the table's unique keys; the conflict columns only
// document intent.
func (m MariaDB) Upsert(spec UpsertSpec) (UpsertClause, error) {
	if spec.DoNothing || len(spec.Update) == 0 {
		return UpsertClause{Head: "INSERT IGNORE INTO"}, nil
	}

	var sb strings.Builder
	sb.WriteString(" ON DUPLICATE KEY UPDATE ")
	for i, c := range spec.Update {
		if i > 0 {
			sb.WriteString(", ")
		}
		q := m.QuoteIdentifier(c)
		sb.WriteString(q + " = VALUES(" + q + ")")
	}
	return UpsertClause{Head: "INSERT INTO", Tail: sb.String()}, nil
}

func (m MariaDB) MapType(t ast.SemanticType) (string, error) {
	if s, ok := mariadbTypes[t]; ok {
		return s, nil
	}
	return "", unsupportedType(m.Name(), t)
}

func (MariaDB) Supports(f Feature) bool {
	switch f {
	case FeatureUpsert, FeatureUpsertDoNothing, FeatureUpsertPartialUpdate:
		return true
	}
	return false
}
