package ast

import (
	"hash/fnv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

// UpsertClause is the conflict handling of an INSERT: update the listed
// columns, or skip the row.
type UpsertClause struct {
	Conflict  []*ColumnRef
	Update    []*ColumnRef
	DoNothing bool
}

type InsertStmt struct {
	Table     *TableRef
	Columns   []*ColumnRef
	Rows      [][]Expr
	Upsert    *UpsertClause
	Returning []Expr
}

func (s *InsertStmt) Type() NodeType         { return NodeInsert }
func (s *InsertStmt) Accept(v Visitor) error { return v.VisitInsert(s) }
func (s *InsertStmt) HasReturning() bool     { return len(s.Returning) > 0 }

func (s *InsertStmt) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte("insert:"))
	h.Write(utils.U64ToBytes(s.Table.Fingerprint()))
	for _, c := range s.Columns {
		h.Write(utils.U64ToBytes(c.Fingerprint()))
	}
	for _, row := range s.Rows {
		h.Write([]byte("row:"))
		for _, v := range row {
			h.Write(utils.U64ToBytes(v.Fingerprint()))
		}
	}
	if u := s.Upsert; u != nil {
		h.Write([]byte("upsert:"))
		for _, c := range u.Conflict {
			h.Write(utils.U64ToBytes(c.Fingerprint()))
		}
		h.Write([]byte("set:"))
		for _, c := range u.Update {
			h.Write(utils.U64ToBytes(c.Fingerprint()))
		}
		if u.DoNothing {
			h.Write([]byte("nothing"))
		}
	}
	for _, r := range s.Returning {
		h.Write([]byte("returning:"))
		h.Write(utils.U64ToBytes(r.Fingerprint()))
	}
	return h.Sum64()
}
