package sql

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/syssam/fluent/dialect"
)

// escapeStringValue escapes a string value for safe use in SQL.
// It escapes both single quotes (by doubling) and backslashes (for MySQL compatibility).
func escapeStringValue(s string) string {
	// Fast path: if no escaping needed, return as-is
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	// Escape backslashes first, then single quotes
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

// QuoteString escapes s and wraps it in single quotes for the dialect.
func QuoteString(d, s string) string {
	switch d {
	case dialect.Postgres:
		return pq.QuoteLiteral(s)
	case dialect.SQLite:
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	default:
		return "'" + escapeStringValue(s) + "'"
	}
}

// Quote renders v as an SQL literal for the dialect.
//
// Strings, byte slices, times and fmt.Stringer values are escaped and quoted.
// Numbers and booleans are written as-is, nil as NULL. A driver.Valuer is
// resolved to its value first.
func Quote(d string, v any) (string, error) {
	if vr, ok := v.(driver.Valuer); ok {
		dv, err := vr.Value()
		if err != nil {
			return "", fmt.Errorf("dialect/sql: resolve %T: %w", v, err)
		}
		v = dv
	}
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return QuoteString(d, v), nil
	case []byte:
		return QuoteString(d, string(v)), nil
	case time.Time:
		return QuoteString(d, v.Format(timeLayout(d))), nil
	case bool:
		return quoteBool(d, v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case fmt.Stringer:
		return QuoteString(d, v.String()), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return Quote(d, rv.Elem().Interface())
	case reflect.String:
		return QuoteString(d, rv.String()), nil
	case reflect.Bool:
		return quoteBool(d, rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	}
	return "", fmt.Errorf("dialect/sql: cannot render %T as a literal", v)
}

func quoteBool(d string, b bool) string {
	switch {
	case d == dialect.Postgres && b:
		return "TRUE"
	case d == dialect.Postgres:
		return "FALSE"
	case b:
		return "1"
	default:
		return "0"
	}
}

func timeLayout(d string) string {
	if d == dialect.Postgres {
		return "2006-01-02 15:04:05.999999Z07:00"
	}
	return "2006-01-02 15:04:05.999999"
}
