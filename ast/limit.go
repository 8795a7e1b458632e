package ast

import (
	"github.com/Konsultn-Engineering/linsql/utils"
)

// LimitClause holds the pagination of a SELECT. Either bound may be absent.
type LimitClause struct {
	Count  *int
	Offset *int
}

func (l *LimitClause) Type() NodeType         { return NodeLimit }
func (l *LimitClause) Accept(v Visitor) error { return v.VisitLimitClause(l) }

func (l *LimitClause) Fingerprint() uint64 {
	return utils.Chain("limit", boundFingerprint(l.Count), boundFingerprint(l.Offset))
}

// boundFingerprint keeps an absent bound distinct from zero.
func boundFingerprint(n *int) uint64 {
	if n == nil {
		return utils.U64("none")
	}
	return utils.FingerprintValue(*n)
}
