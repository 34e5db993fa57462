package engine

// fetcher.go has the data fetcher types, the environment passed to them and the default property fetcher

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/andrewwphillips/gqlkit/internal/field"
	"github.com/dolmen-go/jsonmap"
	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/text/language"
)

type (
	// DataFetcher obtains the value of a field.  A nil value (with nil error) is a GraphQL null.
	// For a subscription root field the value must be a channel (any element type).
	DataFetcher interface {
		Get(env *Environment) (interface{}, error)
	}

	// DataFetcherFunc allows an ordinary function to be used as a DataFetcher
	DataFetcherFunc func(env *Environment) (interface{}, error)

	// Environment is what a DataFetcher gets to work out the value of a field
	Environment struct {
		Context         context.Context
		Source          interface{}            // value of the parent object (nil for root fields unless a root value was given)
		Arguments       map[string]interface{} // coerced field arguments (including defaults)
		Field           *ast.Field             // first of the merged fields with the same response key
		Fields          []*ast.Field
		FieldDefinition *ast.FieldDefinition
		ParentType      *ast.Definition
		Schema          *ast.Schema
		Operation       *ast.OperationDefinition
		Variables       map[string]interface{}
		Path            []interface{}
		RequestID       string
		Locale          language.Tag
	}

	// SelectedField is a node of the selection set under a field, with fragments flattened
	SelectedField struct {
		Name          string
		Alias         string
		QualifiedName string // field names from the environment's field, eg "edges/node/title"
		Definition    *ast.FieldDefinition
		Arguments     map[string]interface{}
		SelectionSet  []SelectedField
	}
)

// Get calls f(env)
func (f DataFetcherFunc) Get(env *Environment) (interface{}, error) {
	return f(env)
}

// Argument returns the value of an argument of the field
func (env *Environment) Argument(name string) (interface{}, bool) {
	v, ok := env.Arguments[name]
	return v, ok
}

// FieldType returns the GraphQL type of the field
func (env *Environment) FieldType() *ast.Type {
	return env.FieldDefinition.Type
}

// SelectionSet returns the fields selected under this field (merged across fields with the same response key)
func (env *Environment) SelectionSet() []SelectedField {
	var set ast.SelectionSet
	for _, f := range env.Fields {
		set = append(set, f.SelectionSet...)
	}
	return selectFields(set, env.Variables, "")
}

// Contains returns true if a (qualified) field name was selected, eg "edges/node/title"
func Contains(set []SelectedField, qualifiedName string) bool {
	for _, f := range set {
		if f.QualifiedName == qualifiedName || Contains(f.SelectionSet, qualifiedName) {
			return true
		}
	}
	return false
}

func selectFields(set ast.SelectionSet, vars map[string]interface{}, prefix string) []SelectedField {
	var r []SelectedField
	index := make(map[string]int)
	var walk func(set ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, s := range set {
			switch sel := s.(type) {
			case *ast.Field:
				if directiveBypass(sel.Directives, vars) || strings.HasPrefix(sel.Name, "__") {
					continue
				}
				if i, ok := index[sel.Name]; ok {
					// same field selected again (eg in a fragment) so merge sub-selections
					r[i].SelectionSet = mergeSelected(r[i].SelectionSet,
						selectFields(sel.SelectionSet, vars, r[i].QualifiedName+"/"))
					continue
				}
				sf := SelectedField{
					Name:          sel.Name,
					Alias:         sel.Alias,
					QualifiedName: prefix + sel.Name,
					Definition:    sel.Definition,
				}
				if sel.Definition != nil {
					sf.Arguments = argumentValues(sel.Definition.Arguments, sel.Arguments, vars)
				}
				sf.SelectionSet = selectFields(sel.SelectionSet, vars, sf.QualifiedName+"/")
				index[sel.Name] = len(r)
				r = append(r, sf)
			case *ast.InlineFragment:
				if !directiveBypass(sel.Directives, vars) {
					walk(sel.SelectionSet)
				}
			case *ast.FragmentSpread:
				if !directiveBypass(sel.Directives, vars) && sel.Definition != nil {
					walk(sel.Definition.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return r
}

func mergeSelected(a, b []SelectedField) []SelectedField {
	for _, f := range b {
		found := false
		for i := range a {
			if a[i].Name == f.Name {
				a[i].SelectionSet = mergeSelected(a[i].SelectionSet, f.SelectionSet)
				found = true
				break
			}
		}
		if !found {
			a = append(a, f)
		}
	}
	return a
}

// directiveBypass handles field directives - just standard "skip" and "include" for now
// Returns: true if a directive indicates the field is not to be processed
func directiveBypass(directives ast.DirectiveList, vars map[string]interface{}) bool {
	for _, d := range directives {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		reverse := d.Name == "skip"
		for _, arg := range d.Arguments {
			if arg.Name == "if" {
				if rawValue, err := arg.Value.Value(vars); err == nil {
					if b, ok := rawValue.(bool); ok && b == reverse {
						return true
					}
				}
			}
		}
	}
	return false
}

// PropertyFetcher is the default DataFetcher.  It gets the value of the field from the source which may be:
//   - a map with string keys (incl. jsonmap.Ordered) - the value with the field name as key
//   - a struct (or pointer to struct) - the field with the same GraphQL name (see the "graphql" tag)
//   - any type with an exported method named after the field (1st letter upper-cased) taking no args
//     or just a context.Context and returning a value and optionally an error
//
// If the source does not have the property the value is null.
var PropertyFetcher DataFetcher = DataFetcherFunc(func(env *Environment) (interface{}, error) {
	return Property(env.Context, env.Source, env.FieldDefinition.Name)
})

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Property gets a named property from a value as described for PropertyFetcher
func Property(ctx context.Context, source interface{}, name string) (interface{}, error) {
	switch s := source.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return s[name], nil
	case jsonmap.Ordered:
		return s.Data[name], nil
	case *jsonmap.Ordered:
		return s.Data[name], nil
	}

	v := reflect.ValueOf(source)
	if m, ok := method(v, name); ok {
		return callMethod(ctx, m, name)
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		r := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !r.IsValid() {
			return nil, nil
		}
		return r.Interface(), nil
	case reflect.Struct:
		r, ok := field.Value(v, name)
		if !ok || !r.IsValid() {
			return nil, nil
		}
		return r.Interface(), nil
	}
	return nil, nil
}

// method finds a method called name (with 1st letter upper-cased) on v or a pointer to v
func method(v reflect.Value, name string) (reflect.Value, bool) {
	if !v.IsValid() || name == "" {
		return reflect.Value{}, false
	}
	goName := strings.ToUpper(name[:1]) + name[1:]
	if m := v.MethodByName(goName); m.IsValid() {
		return m, true
	}
	if v.Kind() != reflect.Ptr && v.CanAddr() {
		if m := v.Addr().MethodByName(goName); m.IsValid() {
			return m, true
		}
	}
	return reflect.Value{}, false
}

func callMethod(ctx context.Context, m reflect.Value, name string) (interface{}, error) {
	t := m.Type()
	var in []reflect.Value
	switch {
	case t.NumIn() == 0:
	case t.NumIn() == 1 && t.In(0) == contextType:
		if ctx == nil {
			ctx = context.Background()
		}
		in = []reflect.Value{reflect.ValueOf(ctx)}
	default:
		return nil, nil // not a getter
	}
	switch {
	case t.NumOut() == 1:
		return m.Call(in)[0].Interface(), nil
	case t.NumOut() == 2 && t.Out(1) == errorType:
		out := m.Call(in)
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, fmt.Errorf("%w getting %q", err, name)
		}
		return out[0].Interface(), nil
	}
	return nil, nil
}
