package ast

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SemanticType is the database-independent type of a column or expression.
// Dialects map it to a native column type.
type SemanticType int

const (
	TypeUnknown SemanticType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeDecimal
	TypeString
	TypeText
	TypeBytes
	TypeTime
	TypeDate
	TypeUUID
	TypeJSON
)

var semanticTypeNames = [...]string{
	TypeUnknown: "unknown",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeDecimal: "decimal",
	TypeString:  "string",
	TypeText:    "text",
	TypeBytes:   "bytes",
	TypeTime:    "time",
	TypeDate:    "date",
	TypeUUID:    "uuid",
	TypeJSON:    "json",
}

// SemanticTypes lists every concrete type, in declaration order.
var SemanticTypes = []SemanticType{
	TypeBool, TypeInt, TypeFloat, TypeDecimal, TypeString, TypeText,
	TypeBytes, TypeTime, TypeDate, TypeUUID, TypeJSON,
}

func (t SemanticType) String() string {
	if int(t) < 0 || int(t) >= len(semanticTypeNames) {
		return "unknown"
	}
	return semanticTypeNames[t]
}

type typeFamily int

const (
	familyAny typeFamily = iota
	familyBool
	familyNumeric
	familyText
	familyTemporal
	familyBytes
)

func (t SemanticType) family() typeFamily {
	switch t {
	case TypeBool:
		return familyBool
	case TypeInt, TypeFloat, TypeDecimal:
		return familyNumeric
	case TypeString, TypeText, TypeUUID, TypeJSON:
		return familyText
	case TypeTime, TypeDate:
		return familyTemporal
	case TypeBytes:
		return familyBytes
	default:
		return familyAny
	}
}

func (t SemanticType) Numeric() bool { return t.family() == familyNumeric }

func (t SemanticType) Textual() bool { return t.family() == familyText }

// ComparableWith reports whether values of t and o may meet in a comparison.
// TypeUnknown (NULL, untyped parameters) is comparable with everything.
func (t SemanticType) ComparableWith(o SemanticType) bool {
	a, b := t.family(), o.family()
	return a == familyAny || b == familyAny || a == b
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	ulidType    = reflect.TypeOf(ulid.ULID{})
	rawJSONType = reflect.TypeOf(json.RawMessage(nil))
)

// InferType derives the semantic type of a Go value bound as a parameter.
func InferType(v any) SemanticType {
	if v == nil {
		return TypeUnknown
	}
	switch v.(type) {
	case bool:
		return TypeBool
	case string:
		return TypeString
	case []byte:
		return TypeBytes
	case time.Time:
		return TypeTime
	case uuid.UUID:
		return TypeUUID
	case ulid.ULID:
		return TypeString
	case json.RawMessage:
		return TypeJSON
	}

	rt := reflect.TypeOf(v)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	switch rt {
	case timeType:
		return TypeTime
	case uuidType:
		return TypeUUID
	case ulidType:
		return TypeString
	case rawJSONType:
		return TypeJSON
	}

	switch rt.Kind() {
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.String:
		return TypeString
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return TypeBytes
		}
	}
	return TypeUnknown
}
