package engine

// introspection.go implements the data fetchers of the introspection types which handle the GraphQL __schema
// and __type queries

import (
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
)

type (
	// introType is the source of a __Type - a named type (def) or a wrapping type (NON_NULL or LIST)
	introType struct {
		def    *ast.Definition
		typ    *ast.Type
		schema *ast.Schema
	}

	// inputValue is the source of an __InputValue (field argument or input object field)
	inputValue struct {
		name, description string
		typ               *ast.Type
		defaultValue      *ast.Value
	}
)

var (
	introspectionSchema = DataFetcherFunc(func(env *Environment) (interface{}, error) {
		return env.Schema, nil
	})

	introspectionType = DataFetcherFunc(func(env *Environment) (interface{}, error) {
		name, _ := env.Arguments["name"].(string)
		def := env.Schema.Types[name]
		if def == nil {
			return nil, nil
		}
		return introType{def: def, schema: env.Schema}, nil
	})
)

// introspectionFetchers are added to the fetchers of every schema
var introspectionFetchers = map[string]map[string]DataFetcher{
	"__Schema": {
		"description": introFunc(func(s *ast.Schema, _ *Environment) interface{} { return nil }),
		"types": introFunc(func(s *ast.Schema, _ *Environment) interface{} {
			names := make([]string, 0, len(s.Types))
			for name := range s.Types {
				names = append(names, name)
			}
			sort.Strings(names)
			r := make([]introType, 0, len(names))
			for _, name := range names {
				r = append(r, introType{def: s.Types[name], schema: s})
			}
			return r
		}),
		"queryType":        introFunc(func(s *ast.Schema, _ *Environment) interface{} { return namedType(s, s.Query) }),
		"mutationType":     introFunc(func(s *ast.Schema, _ *Environment) interface{} { return namedType(s, s.Mutation) }),
		"subscriptionType": introFunc(func(s *ast.Schema, _ *Environment) interface{} { return namedType(s, s.Subscription) }),
		"directives": introFunc(func(s *ast.Schema, _ *Environment) interface{} {
			names := make([]string, 0, len(s.Directives))
			for name := range s.Directives {
				names = append(names, name)
			}
			sort.Strings(names)
			r := make([]*ast.DirectiveDefinition, 0, len(names))
			for _, name := range names {
				r = append(r, s.Directives[name])
			}
			return r
		}),
	},

	"__Type": {
		"kind": introFunc(func(t introType, _ *Environment) interface{} {
			switch {
			case t.typ != nil && t.typ.NonNull:
				return "NON_NULL"
			case t.typ != nil && t.typ.Elem != nil:
				return "LIST"
			}
			return string(t.def.Kind)
		}),
		"name": introFunc(func(t introType, _ *Environment) interface{} {
			if t.def == nil {
				return nil
			}
			return t.def.Name
		}),
		"description": introFunc(func(t introType, _ *Environment) interface{} {
			if t.def == nil || t.def.Description == "" {
				return nil
			}
			return t.def.Description
		}),
		"specifiedByURL": introFunc(func(t introType, _ *Environment) interface{} { return nil }),
		"fields": introFunc(func(t introType, env *Environment) interface{} {
			if t.def == nil || (t.def.Kind != ast.Object && t.def.Kind != ast.Interface) {
				return nil
			}
			r := []*ast.FieldDefinition{}
			for _, f := range t.def.Fields {
				if len(f.Name) > 1 && f.Name[:2] == "__" {
					continue
				}
				if f.Directives.ForName("deprecated") != nil && !includeDeprecated(env) {
					continue
				}
				r = append(r, f)
			}
			return r
		}),
		"interfaces": introFunc(func(t introType, _ *Environment) interface{} {
			if t.def == nil || (t.def.Kind != ast.Object && t.def.Kind != ast.Interface) {
				return nil
			}
			r := []introType{}
			for _, name := range t.def.Interfaces {
				r = append(r, introType{def: t.schema.Types[name], schema: t.schema})
			}
			return r
		}),
		"possibleTypes": introFunc(func(t introType, _ *Environment) interface{} {
			if t.def == nil || (t.def.Kind != ast.Interface && t.def.Kind != ast.Union) {
				return nil
			}
			r := []introType{}
			for _, def := range t.schema.PossibleTypes[t.def.Name] {
				r = append(r, introType{def: def, schema: t.schema})
			}
			return r
		}),
		"enumValues": introFunc(func(t introType, env *Environment) interface{} {
			if t.def == nil || t.def.Kind != ast.Enum {
				return nil
			}
			r := []*ast.EnumValueDefinition{}
			for _, v := range t.def.EnumValues {
				if v.Directives.ForName("deprecated") != nil && !includeDeprecated(env) {
					continue
				}
				r = append(r, v)
			}
			return r
		}),
		"inputFields": introFunc(func(t introType, _ *Environment) interface{} {
			if t.def == nil || t.def.Kind != ast.InputObject {
				return nil
			}
			r := []inputValue{}
			for _, f := range t.def.Fields {
				r = append(r, inputValue{name: f.Name, description: f.Description, typ: f.Type, defaultValue: f.DefaultValue})
			}
			return r
		}),
		"ofType": introFunc(func(t introType, _ *Environment) interface{} {
			if t.typ == nil {
				return nil
			}
			if t.typ.NonNull {
				inner := *t.typ
				inner.NonNull = false
				return typeRef(t.schema, &inner)
			}
			if t.typ.Elem != nil {
				return typeRef(t.schema, t.typ.Elem)
			}
			return nil
		}),
	},

	"__Field": {
		"name":        introFunc(func(f *ast.FieldDefinition, _ *Environment) interface{} { return f.Name }),
		"description": introFunc(func(f *ast.FieldDefinition, _ *Environment) interface{} { return optional(f.Description) }),
		"args": introFunc(func(f *ast.FieldDefinition, _ *Environment) interface{} {
			return args(f.Arguments)
		}),
		"type": introFunc(func(f *ast.FieldDefinition, env *Environment) interface{} {
			return typeRef(env.Schema, f.Type)
		}),
		"isDeprecated": introFunc(func(f *ast.FieldDefinition, _ *Environment) interface{} {
			return f.Directives.ForName("deprecated") != nil
		}),
		"deprecationReason": introFunc(func(f *ast.FieldDefinition, _ *Environment) interface{} {
			return deprecationReason(f.Directives)
		}),
	},

	"__InputValue": {
		"name":        introFunc(func(v inputValue, _ *Environment) interface{} { return v.name }),
		"description": introFunc(func(v inputValue, _ *Environment) interface{} { return optional(v.description) }),
		"type":        introFunc(func(v inputValue, env *Environment) interface{} { return typeRef(env.Schema, v.typ) }),
		"defaultValue": introFunc(func(v inputValue, _ *Environment) interface{} {
			if v.defaultValue == nil {
				return nil
			}
			return v.defaultValue.String()
		}),
	},

	"__EnumValue": {
		"name":        introFunc(func(v *ast.EnumValueDefinition, _ *Environment) interface{} { return v.Name }),
		"description": introFunc(func(v *ast.EnumValueDefinition, _ *Environment) interface{} { return optional(v.Description) }),
		"isDeprecated": introFunc(func(v *ast.EnumValueDefinition, _ *Environment) interface{} {
			return v.Directives.ForName("deprecated") != nil
		}),
		"deprecationReason": introFunc(func(v *ast.EnumValueDefinition, _ *Environment) interface{} {
			return deprecationReason(v.Directives)
		}),
	},

	"__Directive": {
		"name":        introFunc(func(d *ast.DirectiveDefinition, _ *Environment) interface{} { return d.Name }),
		"description": introFunc(func(d *ast.DirectiveDefinition, _ *Environment) interface{} { return optional(d.Description) }),
		"locations": introFunc(func(d *ast.DirectiveDefinition, _ *Environment) interface{} {
			r := make([]string, 0, len(d.Locations))
			for _, loc := range d.Locations {
				r = append(r, string(loc))
			}
			return r
		}),
		"args":         introFunc(func(d *ast.DirectiveDefinition, _ *Environment) interface{} { return args(d.Arguments) }),
		"isRepeatable": introFunc(func(d *ast.DirectiveDefinition, _ *Environment) interface{} { return d.IsRepeatable }),
	},
}

// introFunc makes a data fetcher from a function taking the (typed) source
func introFunc[S any](f func(source S, env *Environment) interface{}) DataFetcher {
	return DataFetcherFunc(func(env *Environment) (interface{}, error) {
		source, ok := env.Source.(S)
		if !ok {
			return nil, nil
		}
		return f(source, env), nil
	})
}

// namedType returns the __Type source for a definition (or nil)
func namedType(s *ast.Schema, def *ast.Definition) interface{} {
	if def == nil {
		return nil
	}
	return introType{def: def, schema: s}
}

// typeRef returns the __Type source for a (possibly wrapped) type reference
func typeRef(s *ast.Schema, t *ast.Type) interface{} {
	if t == nil {
		return nil
	}
	if t.NonNull || t.Elem != nil {
		return introType{typ: t, schema: s}
	}
	return namedType(s, s.Types[t.NamedType])
}

func args(list ast.ArgumentDefinitionList) []inputValue {
	r := make([]inputValue, 0, len(list))
	for _, a := range list {
		r = append(r, inputValue{name: a.Name, description: a.Description, typ: a.Type, defaultValue: a.DefaultValue})
	}
	return r
}

func includeDeprecated(env *Environment) bool {
	b, _ := env.Arguments["includeDeprecated"].(bool)
	return b
}

func deprecationReason(directives ast.DirectiveList) interface{} {
	d := directives.ForName("deprecated")
	if d == nil {
		return nil
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw
	}
	return "No longer supported"
}

func optional(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
