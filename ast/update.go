package ast

import (
	"hash/fnv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

type SetClause struct {
	Column *ColumnRef
	Value  Expr
}

type UpdateStmt struct {
	Table *TableRef
	Set   []SetClause
	Where Expr
}

func (s *UpdateStmt) Type() NodeType         { return NodeUpdate }
func (s *UpdateStmt) Accept(v Visitor) error { return v.VisitUpdate(s) }
func (s *UpdateStmt) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte("update:"))
	h.Write(utils.U64ToBytes(s.Table.Fingerprint()))
	for _, set := range s.Set {
		h.Write(utils.U64ToBytes(set.Column.Fingerprint()))
		h.Write(utils.U64ToBytes(set.Value.Fingerprint()))
	}
	if s.Where != nil {
		h.Write([]byte("where:"))
		h.Write(utils.U64ToBytes(s.Where.Fingerprint()))
	}
	return h.Sum64()
}
