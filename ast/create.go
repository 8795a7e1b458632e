package ast

import (
	"strconv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

// CreateTableStmt renders the DDL of a catalog table. Column types go
// through the dialect's type mapping.
type CreateTableStmt struct {
	Table       *TableRef
	Columns     []ColumnMeta
	IfNotExists bool
}

func (s *CreateTableStmt) Type() NodeType         { return NodeCreateTable }
func (s *CreateTableStmt) Accept(v Visitor) error { return v.VisitCreateTable(s) }
func (s *CreateTableStmt) Fingerprint() uint64 {
	fps := make([]uint64, 0, len(s.Columns)+1)
	fps = append(fps, s.Table.Fingerprint())
	for _, c := range s.Columns {
		fps = append(fps, utils.FingerprintString(c.Name+":"+c.Type.String()+":"+
			strconv.FormatBool(c.Nullable)+":"+strconv.FormatBool(c.PrimaryKey)))
	}
	return utils.Chain("create:"+strconv.FormatBool(s.IfNotExists), fps...)
}
