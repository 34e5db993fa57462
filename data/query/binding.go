package query

// binding.go binds GraphQL field arguments to an example domain value

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/andrewwphillips/gqlkit/internal/field"
	"github.com/mitchellh/mapstructure"
	"github.com/vektah/gqlparser/v2/ast"
)

// BindingError is returned when arguments cannot be bound to the domain type
type BindingError struct {
	Name string // argument or property path
	Err  error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("binding %q: %v", e.Name, e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

// ErrorClassification implements graphql.Classified
func (e *BindingError) ErrorClassification() graphql.ErrorClassification {
	return graphql.BadRequest
}

// argumentsToBind returns the arguments to bind.  If the field has a single argument whose value is an
// object then the fields of that object are bound.
func argumentsToBind(defs ast.ArgumentDefinitionList, args map[string]interface{}) map[string]interface{} {
	if len(defs) == 1 {
		if m, ok := args[defs[0].Name].(map[string]interface{}); ok {
			return m
		}
	}
	return args
}

// bindExample creates a new value of the domain type with its properties set from the arguments.
// The returned paths are the (dotted) properties that were set.
func bindExample(domain reflect.Type, args map[string]interface{}) (interface{}, []string, error) {
	t := domain
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil, &BindingError{Name: t.String(), Err: fmt.Errorf("domain type must be a struct")}
	}

	input, paths, err := toGoNames(t, args, "")
	if err != nil {
		return nil, nil, err
	}
	probe := reflect.New(t)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           probe.Interface(),
	})
	if err != nil {
		return nil, nil, &BindingError{Name: t.Name(), Err: err}
	}
	if err := decoder.Decode(input); err != nil {
		return nil, nil, &BindingError{Name: t.Name(), Err: err}
	}
	sort.Strings(paths)
	if domain.Kind() == reflect.Ptr {
		return probe.Interface(), paths, nil
	}
	return probe.Elem().Interface(), paths, nil
}

// toGoNames converts the keys of an argument map from GraphQL property names to Go field names (following
// nested objects), also returning the dotted paths of the leaf properties.  Embedded struct fields are left
// at the top level (the decoder squashes embedded structs).
func toGoNames(t reflect.Type, args map[string]interface{}, prefix string) (map[string]interface{}, []string, error) {
	r := make(map[string]interface{}, len(args))
	var paths []string
	for name, value := range args {
		fi, ok := field.Lookup(t, name)
		if !ok {
			return nil, nil, &BindingError{Name: prefix + name, Err: fmt.Errorf("no property %q in %s", name, t.Name())}
		}
		if nested, ok := value.(map[string]interface{}); ok {
			inner := field.Indirect(fi.Type)
			if inner.Kind() == reflect.Struct {
				m, p, err := toGoNames(inner, nested, prefix+name+".")
				if err != nil {
					return nil, nil, err
				}
				r[fi.GoName] = m
				paths = append(paths, p...)
				continue
			}
		}
		r[fi.GoName] = value
		paths = append(paths, prefix+name)
	}
	return r, paths, nil
}
