package ast

import (
	"strconv"

	"github.com/Konsultn-Engineering/linsql/utils"
)

type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
)

func (j JoinType) String() string {
	switch j {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	default:
		return "JOIN"
	}
}

type JoinClause struct {
	JoinType JoinType
	Table    *TableRef
	On       Expr
}

func (j *JoinClause) Type() NodeType         { return NodeJoin }
func (j *JoinClause) Accept(v Visitor) error { return v.VisitJoinClause(j) }

func (j *JoinClause) Fingerprint() uint64 {
	fp := utils.Chain("join:"+strconv.Itoa(int(j.JoinType)), j.Table.Fingerprint())
	if j.On != nil {
		fp = utils.Mix64(fp, j.On.Fingerprint())
	}
	return fp
}
