// Package schema maps result rows onto typed records through an explicit,
// reusable MappingSpec instead of runtime type introspection.
package schema

import (
	"database/sql"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/Konsultn-Engineering/linsql/database"
	"github.com/Konsultn-Engineering/linsql/errs"
)

var errNull = errors.New("null value")

// Field maps one result column onto a part of T.
type Field[T any] struct {
	name     string
	column   string
	optional bool
	decode   func(src any, dst *T) error
}

func (f Field[T]) Name() string   { return f.name }
func (f Field[T]) Column() string { return f.column }
func (f Field[T]) Optional() bool { return f.optional }

// Required maps column onto a field that must not be NULL.
func Required[T, F any](name, column string, dec Decoder[F], set func(*T, F)) Field[T] {
	return Field[T]{
		name:   name,
		column: column,
		decode: func(src any, dst *T) error {
			if src == nil {
				return errNull
			}
			v, err := dec(src)
			if err != nil {
				return err
			}
			set(dst, v)
			return nil
		},
	}
}

// Optional maps column onto a field that records NULL as an invalid
// sql.Null.
func Optional[T, F any](name, column string, dec Decoder[F], set func(*T, sql.Null[F])) Field[T] {
	return Field[T]{
		name:     name,
		column:   column,
		optional: true,
		decode: func(src any, dst *T) error {
			if src == nil {
				set(dst, sql.Null[F]{})
				return nil
			}
			v, err := dec(src)
			if err != nil {
				return err
			}
			set(dst, sql.Null[F]{V: v, Valid: true})
			return nil
		},
	}
}

// MappingSpec is the ordered column-to-field correspondence for T. Build it
// once per record shape and share it; it holds no per-query state.
type MappingSpec[T any] struct {
	fields []Field[T]
}

func NewSpec[T any](fields ...Field[T]) (*MappingSpec[T], error) {
	if len(fields) == 0 {
		return nil, errs.New(errs.InvalidExpression, "mapping spec has no fields")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.decode == nil || f.name == "" || f.column == "" {
			return nil, errs.New(errs.InvalidExpression, "mapping field %q is incomplete", f.name)
		}
		if _, dup := seen[f.name]; dup {
			return nil, errs.New(errs.InvalidExpression, "mapping field %q declared twice", f.name)
		}
		seen[f.name] = struct{}{}
	}
	return &MappingSpec[T]{fields: append([]Field[T](nil), fields...)}, nil
}

func MustSpec[T any](fields ...Field[T]) *MappingSpec[T] {
	s, err := NewSpec(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *MappingSpec[T]) Fields() []Field[T] { return append([]Field[T](nil), s.fields...) }

// bind locates each field's column in the result set.
func (s *MappingSpec[T]) bind(cols []string) ([]int, error) {
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := pos[c]; !dup {
			pos[c] = i
		}
	}
	idx := make([]int, len(s.fields))
	for i, f := range s.fields {
		p, ok := pos[f.column]
		if !ok {
			return nil, errs.Mapping(f.name, 0, errors.New("column "+f.column+" not in result set"))
		}
		idx[i] = p
	}
	return idx, nil
}

// Map decodes rows lazily. The sequence makes a single forward pass: it
// stops at the first error, closes rows when iteration ends, and yields an
// IllegalTransition error if ranged over a second time. Records already
// yielded stay valid after an error.
func (s *MappingSpec[T]) Map(rows database.Rows) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		var zero T
		if !used.CompareAndSwap(false, true) {
			yield(zero, errs.New(errs.IllegalTransition, "result sequence is not restartable"))
			return
		}

		stopped, err := s.each(rows, yield)
		if cerr := rows.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil && !stopped {
			yield(zero, err)
		}
	}
}

// each feeds decoded records to yield. It reports whether the consumer
// stopped early and the error that ended the pass, if any.
func (s *MappingSpec[T]) each(rows database.Rows, yield func(T, error) bool) (bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	idx, err := s.bind(cols)
	if err != nil {
		return false, err
	}

	buf := getScanBuffers(len(cols))
	defer putScanBuffers(buf)

	for row := 0; rows.Next(); row++ {
		if err := rows.Scan(buf.ptrs...); err != nil {
			return false, errs.Mapping("", row, err)
		}
		var rec T
		for i, f := range s.fields {
			if err := f.decode(buf.vals[idx[i]], &rec); err != nil {
				return false, errs.Mapping(f.name, row, err)
			}
		}
		if !yield(rec, nil) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// All collects every record. On error it returns the records decoded before
// the failure together with the error.
func (s *MappingSpec[T]) All(rows database.Rows) ([]T, error) {
	var out []T
	for rec, err := range s.Map(rows) {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// One returns the first record and closes rows. An empty result is a
// MappingError wrapping sql.ErrNoRows.
func (s *MappingSpec[T]) One(rows database.Rows) (T, error) {
	for rec, err := range s.Map(rows) {
		return rec, err
	}
	var zero T
	return zero, errs.Wrap(errs.MappingError, sql.ErrNoRows, "expected one row")
}
