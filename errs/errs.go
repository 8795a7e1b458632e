// Package errs defines the error kinds shared by the expression builder,
// the compiler, the connection manager and the result mapper.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	TypeMismatch
	UnresolvedReference
	UnsupportedDialectFeature
	ConnectionAcquisitionTimeout
	ExecutionError
	MappingError
	InvalidExpression
	IllegalTransition
)

var kindNames = [...]string{
	KindUnknown:                  "unknown",
	TypeMismatch:                 "type mismatch",
	UnresolvedReference:          "unresolved reference",
	UnsupportedDialectFeature:    "unsupported dialect feature",
	ConnectionAcquisitionTimeout: "connection acquisition timeout",
	ExecutionError:               "execution error",
	MappingError:                 "mapping error",
	InvalidExpression:            "invalid expression",
	IllegalTransition:            "illegal transition",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrTypeMismatch                 = &Error{Kind: TypeMismatch}
	ErrUnresolvedReference          = &Error{Kind: UnresolvedReference}
	ErrUnsupportedDialectFeature    = &Error{Kind: UnsupportedDialectFeature}
	ErrConnectionAcquisitionTimeout = &Error{Kind: ConnectionAcquisitionTimeout}
	ErrExecution                    = &Error{Kind: ExecutionError}
	ErrMapping                      = &Error{Kind: MappingError}
	ErrInvalidExpression            = &Error{Kind: InvalidExpression}
	ErrIllegalTransition            = &Error{Kind: IllegalTransition}
)

// Error carries a Kind plus whatever context the failing layer had at hand.
// Execution errors fill SQL, Dialect and Params; mapping errors fill Field
// and Row; dialect errors fill Feature.
type Error struct {
	Kind    Kind
	Msg     string
	Err     error
	SQL     string
	Dialect string
	Params  []any
	Field   string
	Row     int
	Feature string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())

	switch e.Kind {
	case MappingError:
		if e.Field != "" {
			fmt.Fprintf(&sb, ": field %q", e.Field)
		}
		fmt.Fprintf(&sb, " at row %d", e.Row)
	case UnsupportedDialectFeature:
		if e.Feature != "" {
			fmt.Fprintf(&sb, ": %s not supported by %s", e.Feature, e.Dialect)
		}
	}

	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.SQL != "" {
		fmt.Fprintf(&sb, " [dialect=%s params=%d sql=%q]", e.Dialect, len(e.Params), e.SQL)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Execution builds an ExecutionError with a snapshot of the statement that failed.
func Execution(err error, sql, dialect string, params []any) *Error {
	var snapshot []any
	if len(params) > 0 {
		snapshot = make([]any, len(params))
		copy(snapshot, params)
	}
	return &Error{Kind: ExecutionError, Err: err, SQL: sql, Dialect: dialect, Params: snapshot}
}

func Mapping(field string, row int, err error) *Error {
	return &Error{Kind: MappingError, Field: field, Row: row, Err: err}
}

func Unsupported(feature, dialect string) *Error {
	return &Error{Kind: UnsupportedDialectFeature, Feature: feature, Dialect: dialect}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
