package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/dialect"
	"github.com/Konsultn-Engineering/linsql/errs"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

const DefaultSize = 512

// StatementCache keeps compiled statements keyed by tree fingerprint and
// dialect. Compiled statements are immutable, so a hit is shared by every
// caller.
type StatementCache struct {
	cache  *lru.Cache[Key, *visitor.CompiledStatement]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewStatementCache(size int) (*StatementCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[Key, *visitor.CompiledStatement](size)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidExpression, err, "statement cache")
	}
	return &StatementCache{cache: c}, nil
}

// GetOrCompile returns the cached compilation of node for d, compiling and
// storing it on a miss. Nodes carrying a construction error are never
// looked up.
func (s *StatementCache) GetOrCompile(node ast.Node, d dialect.Dialect) (*visitor.CompiledStatement, error) {
	if node == nil || d == nil {
		return visitor.Compile(node, d)
	}
	if e, ok := node.(interface{ Err() error }); ok {
		if err := e.Err(); err != nil {
			return nil, err
		}
	}

	key := KeyOf(node, d)
	if cs, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return cs, nil
	}
	s.misses.Add(1)

	cs, err := visitor.Compile(node, d)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, cs)
	return cs, nil
}

func (s *StatementCache) Len() int { return s.cache.Len() }

func (s *StatementCache) Purge() { s.cache.Purge() }

// Stats reports lookups since creation.
func (s *StatementCache) Stats() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}
