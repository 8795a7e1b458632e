package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Decoder converts one non-NULL driver value into a field value. Drivers
// hand back int64, float64, bool, []byte, string or time.Time; text
// protocols (MariaDB) deliver most scalars as []byte.
type Decoder[F any] func(src any) (F, error)

func unsupported[F any](src any) (F, error) {
	var zero F
	return zero, fmt.Errorf("cannot decode %T into %T", src, zero)
}

// text returns src as a string when the driver sent it as text.
func text(src any) (string, bool) {
	switch v := src.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

func String(src any) (string, error) {
	if s, ok := text(src); ok {
		return s, nil
	}
	switch v := src.(type) {
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	}
	return unsupported[string](src)
}

func Int64(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("uint64 %d too large for int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("cannot convert %v to int64: precision loss", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	if s, ok := text(src); ok {
		return strconv.ParseInt(s, 10, 64)
	}
	return unsupported[int64](src)
}

func Int(src any) (int, error) {
	n, err := Int64(src)
	if err != nil {
		return 0, err
	}
	if int64(int(n)) != n {
		return 0, fmt.Errorf("int64 %d overflows int", n)
	}
	return int(n), nil
}

func Float64(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	if s, ok := text(src); ok {
		return strconv.ParseFloat(s, 64)
	}
	return unsupported[float64](src)
}

// Bool also accepts 0/1 integers, which is how MariaDB stores BOOLEAN.
func Bool(src any) (bool, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case int64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("cannot convert %d to bool", v)
	}
	if s, ok := text(src); ok {
		return strconv.ParseBool(s)
	}
	return unsupported[bool](src)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Time parses text timestamps too; SQLite and MariaDB without parseTime
// return them as strings.
func Time(src any) (time.Time, error) {
	if t, ok := src.(time.Time); ok {
		return t, nil
	}
	s, ok := text(src)
	if !ok {
		return unsupported[time.Time](src)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}

// Bytes returns a copy; drivers may reuse their buffers between rows.
func Bytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	}
	return unsupported[[]byte](src)
}

// UUID accepts the textual form and the 16-byte binary form.
func UUID(src any) (uuid.UUID, error) {
	switch v := src.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	}
	return unsupported[uuid.UUID](src)
}

// ULID accepts the 26-character text form and the 16-byte binary form.
func ULID(src any) (ulid.ULID, error) {
	switch v := src.(type) {
	case []byte:
		if len(v) == 16 {
			var id ulid.ULID
			err := id.UnmarshalBinary(v)
			return id, err
		}
		return ulid.Parse(string(v))
	case string:
		return ulid.Parse(v)
	}
	return unsupported[ulid.ULID](src)
}

// JSON decodes a JSON document column into V.
func JSON[V any](src any) (V, error) {
	var out V
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return unsupported[V](src)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}
