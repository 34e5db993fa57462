package gqlkit

// types.go makes Go struct types from the object types of a schema, so entities can be held in a
// repository without having to declare Go types for them

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/andrewwphillips/gqlkit/internal/field"
	"github.com/vektah/gqlparser/v2/ast"
)

// scalarTypes gives the Go type of the fields of each scalar type.  Other (custom) scalars are held as interface{}.
var scalarTypes = map[string]reflect.Type{
	"Int":      reflect.TypeOf(int64(0)),
	"Float":    reflect.TypeOf(float64(0)),
	"String":   reflect.TypeOf(""),
	"Boolean":  reflect.TypeOf(false),
	"ID":       reflect.TypeOf(""),
	"DateTime": reflect.TypeOf(time.Time{}), // RFC3339 (ISO-8601) encoding
	"Time":     reflect.TypeOf(time.Time{}),
}

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

// StructType makes a Go struct type with a field for each field of the named object (or input) type.
// Fields that have arguments are skipped, since they need a data fetcher, as are connection fields.
// Lists become slices, enums are strings, and nested object types become pointers to structs made
// the same way (though a reference back to a type already being made is held as interface{}).
// The struct fields are tagged with the GraphQL field name for the graphql and json encodings.
func StructType(schema *ast.Schema, typeName string) (reflect.Type, error) {
	def := schema.Types[typeName]
	if def == nil {
		return nil, fmt.Errorf("type %q is not in the schema", typeName)
	}
	if def.Kind != ast.Object && def.Kind != ast.InputObject {
		return nil, fmt.Errorf("type %q is not an object type (%s)", typeName, def.Kind)
	}
	return structType(schema, def, map[string]bool{}), nil
}

func structType(schema *ast.Schema, def *ast.Definition, making map[string]bool) reflect.Type {
	making[def.Name] = true
	defer delete(making, def.Name)

	fields := make([]reflect.StructField, 0, len(def.Fields))
	for _, f := range def.Fields {
		if len(f.Arguments) > 0 || strings.HasPrefix(f.Name, "__") || strings.HasSuffix(f.Type.Name(), "Connection") {
			continue
		}
		fields = append(fields, reflect.StructField{
			Name: goName(f.Name),
			Type: goType(schema, f.Type, making),
			Tag:  reflect.StructTag(fmt.Sprintf(`graphql:"%s" json:"%s,omitempty"`, f.Name, f.Name)),
		})
	}
	return reflect.StructOf(fields)
}

// goType gets the Go type for a GraphQL field type
func goType(schema *ast.Schema, t *ast.Type, making map[string]bool) reflect.Type {
	if t.Elem != nil {
		return reflect.SliceOf(goType(schema, t.Elem, making))
	}
	if st, ok := scalarTypes[t.NamedType]; ok {
		return st
	}
	def := schema.Types[t.NamedType]
	switch {
	case def == nil:
		return anyType
	case def.Kind == ast.Enum:
		return scalarTypes["String"]
	case (def.Kind == ast.Object || def.Kind == ast.InputObject) && !making[def.Name]:
		return reflect.PtrTo(structType(schema, def, making))
	}
	return anyType
}

// goName makes an exported Go field name from a GraphQL name
func goName(name string) string {
	if strings.HasPrefix(name, "_") {
		return "X" + name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Entities converts records (eg maps decoded from JSON or YAML) to values of the struct type t.
// The record keys are GraphQL field names and date/time fields are RFC3339 strings.
func Entities(t reflect.Type, records []interface{}) ([]interface{}, error) {
	if field.Indirect(t).Kind() != reflect.Struct {
		return nil, fmt.Errorf("entities of type %v are not structs", t)
	}
	r := make([]interface{}, 0, len(records))
	for i, record := range records {
		buf, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("%w encoding record %d", err, i)
		}
		v := reflect.New(t)
		if err := json.Unmarshal(buf, v.Interface()); err != nil {
			return nil, fmt.Errorf("%w converting record %d to %v", err, i, t)
		}
		r = append(r, v.Elem().Interface())
	}
	return r, nil
}
