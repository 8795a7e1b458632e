package cache

import (
	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/dialect"
)

// Key identifies one compilation: the same tree compiles to different text
// per dialect.
type Key struct {
	Fingerprint uint64
	Dialect     string
}

func KeyOf(node ast.Node, d dialect.Dialect) Key {
	return Key{Fingerprint: node.Fingerprint(), Dialect: d.Name()}
}
