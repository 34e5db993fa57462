package memory

// compare.go gets property values of entities and compares them

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/andrewwphillips/gqlkit/internal/field"
)

// valueAt gets the value of a dotted property path of an entity (struct or map).
// The 2nd return value is false if the path does not exist or a nil pointer was found on the way.
func valueAt(entity interface{}, path string) (interface{}, bool) {
	v := reflect.ValueOf(entity)
	for _, name := range strings.Split(path, ".") {
		for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, false
			}
			v = v.Elem()
		}
		switch v.Kind() {
		case reflect.Map:
			v = v.MapIndex(reflect.ValueOf(name))
			if !v.IsValid() {
				return nil, false
			}
		case reflect.Struct:
			var ok bool
			if v, ok = field.Value(v, name); !ok || !v.IsValid() {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, true
		}
		v = v.Elem()
	}
	return v.Interface(), true
}

// compare returns -1, 0 or 1 as a is less than, equal to or greater than b.
// The 2nd return value is false if the values cannot be ordered (then only equality is reported).
func compare(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true // nulls first
		default:
			return 1, true
		}
	}
	if c, ok := compareIntegers(a, b); ok {
		return c, true
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return sign(fa - fb), true
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if sa, ok := toString(a); ok {
		if sb, ok := toString(b); ok {
			return strings.Compare(sa, sb), true
		}
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 1, false
}

// equal compares values allowing for different numeric types, times as strings etc
func equal(a, b interface{}) bool {
	c, ok := compare(a, b)
	return ok && c == 0
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	}
	return 0
}

// compareIntegers compares a and b exactly if both are integers (float64 only holds integers up to 2^53)
func compareIntegers(a, b interface{}) (int, bool) {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isSigned(va) && isSigned(vb):
		return compareInt64(va.Int(), vb.Int()), true
	case isUnsigned(va) && isUnsigned(vb):
		return compareUint64(va.Uint(), vb.Uint()), true
	case isSigned(va) && isUnsigned(vb):
		if va.Int() < 0 {
			return -1, true
		}
		return compareUint64(uint64(va.Int()), vb.Uint()), true
	case isUnsigned(va) && isSigned(vb):
		if vb.Int() < 0 {
			return 1, true
		}
		return compareUint64(va.Uint(), uint64(vb.Int())), true
	}
	return 0, false
}

func isSigned(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if r, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return r, true
		}
	}
	return time.Time{}, false
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return fmt.Sprint(s), true
	case fmt.Stringer:
		return s.String(), true
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}
