package ast

import (
	"hash/fnv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

type DeleteStmt struct {
	Table *TableRef
	Where Expr
}

func (s *DeleteStmt) Type() NodeType         { return NodeDelete }
func (s *DeleteStmt) Accept(v Visitor) error { return v.VisitDelete(s) }
func (s *DeleteStmt) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte("delete:"))
	h.Write(utils.U64ToBytes(s.Table.Fingerprint()))
	if s.Where != nil {
		h.Write(utils.U64ToBytes(s.Where.Fingerprint()))
	}
	return h.Sum64()
}
