// Package field maps Go struct fields onto GraphQL field (property) names
package field

// field.go gets GraphQL property info from Go struct fields and caches it per struct type

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Info is returned by Get() with info extracted from a struct field to be used as a GraphQL property.
// The info is obtained from the field's name, type and "graphql" (metadata) tag.
type Info struct {
	Name        string       // GraphQL property name - from the tag or the Go field name with 1st char lower-cased
	GoName      string       // name of the Go struct field
	Index       []int        // index sequence for reflect.Value.FieldByIndex (longer than 1 for promoted fields)
	Type        reflect.Type // type of the field
	Nullable    bool         // pointer fields or those with the "nullable" tag option
	Embedded    bool         // anonymous struct field (its fields are promoted)
	Description string       // text after any # in the tag
}

// Get checks if a field in a Go struct is exported and, if so, returns the GraphQL property info.
// If the field is not exported or the tag name is a dash (-) then nil is returned, but no error.
func Get(f *reflect.StructField) (*Info, error) {
	if f.PkgPath != "" && !f.Anonymous {
		return nil, nil // unexported field
	}
	fieldInfo, err := GetTagInfo(f.Tag.Get("graphql"))
	if err != nil {
		return nil, fmt.Errorf("%w getting tag info from field %q", err, f.Name)
	}
	if fieldInfo == nil {
		return nil, nil // explicitly omitted field
	}
	if fieldInfo.Name == "" {
		fieldInfo.Name = LowerFirst(f.Name)
	}
	fieldInfo.GoName = f.Name
	fieldInfo.Index = f.Index
	fieldInfo.Type = f.Type

	t := f.Type
	if t.Kind() == reflect.Ptr {
		fieldInfo.Nullable = true
		t = t.Elem()
	}
	fieldInfo.Embedded = f.Anonymous && t.Kind() == reflect.Struct
	return fieldInfo, nil
}

// LowerFirst makes a GraphQL name from a Go name by lower-casing the first letter
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	first, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(first)) + s[n:]
}

// cache of GraphQL properties for each struct type already seen
var cache sync.Map // map[reflect.Type]map[string]*Info

// Fields returns the GraphQL properties of a struct type keyed by GraphQL name, including
// those promoted from embedded structs.  Pointers to structs are followed.
// Fields with bad tags are skipped.
func Fields(t reflect.Type) map[string]*Info {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if r, ok := cache.Load(t); ok {
		return r.(map[string]*Info)
	}
	r := make(map[string]*Info, t.NumField())
	addFields(r, t, nil)
	cache.Store(t, r)
	return r
}

// addFields adds the properties of struct t to r, where the outer (shallower) fields take precedence
func addFields(r map[string]*Info, t reflect.Type, index []int) {
	var embedded []*Info
	for i := 0; i < t.NumField(); i++ {
		tField := t.Field(i)
		fieldInfo, err := Get(&tField)
		if err != nil || fieldInfo == nil {
			continue
		}
		fieldInfo.Index = append(append([]int{}, index...), tField.Index...)
		if fieldInfo.Embedded && tField.Tag.Get("graphql") == "" {
			embedded = append(embedded, fieldInfo)
			continue
		}
		if fieldInfo.Embedded && tField.PkgPath != "" {
			continue // unexported embedded struct with a tag
		}
		r[fieldInfo.Name] = fieldInfo
	}
	for _, e := range embedded {
		inner := make(map[string]*Info)
		et := e.Type
		if et.Kind() == reflect.Ptr {
			et = et.Elem()
		}
		addFields(inner, et, e.Index)
		for name, fi := range inner {
			if _, ok := r[name]; !ok {
				r[name] = fi
			}
		}
	}
}

// Lookup finds the GraphQL property called name in struct type t
func Lookup(t reflect.Type, name string) (*Info, bool) {
	fi, ok := Fields(t)[name]
	return fi, ok
}

// PathType returns the type at the end of a dotted property path (eg "author.name") starting at struct type t.
// Slices and pointers along the way are followed to their element type.
func PathType(t reflect.Type, path string) (reflect.Type, bool) {
	for _, name := range strings.Split(path, ".") {
		t = Indirect(t)
		fi, ok := Lookup(t, name)
		if !ok {
			return nil, false
		}
		t = fi.Type
	}
	return t, true
}

// Indirect follows pointers, slices and arrays to get to the underlying element type
func Indirect(t reflect.Type) reflect.Type {
	for {
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}
}

// Value gets the value of the GraphQL property called name from v (a struct or pointer to struct).
// The 2nd return value is false if v has no such property.  A nil pointer on the way gives an invalid Value.
func Value(v reflect.Value, name string) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, true
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	fi, ok := Lookup(v.Type(), name)
	if !ok {
		return reflect.Value{}, false
	}
	r, err := v.FieldByIndexErr(fi.Index)
	if err != nil {
		return reflect.Value{}, true // nil embedded pointer
	}
	return r, true
}

// PathValue follows a dotted property path from v, returning an invalid Value if a nil is found on the way
func PathValue(v reflect.Value, path string) (reflect.Value, bool) {
	for _, name := range strings.Split(path, ".") {
		var ok bool
		if v, ok = Value(v, name); !ok {
			return reflect.Value{}, false
		}
		if !v.IsValid() {
			return v, true
		}
	}
	return v, true
}
