package query

// selection.go works out which domain properties a query selected

import (
	"reflect"
	"sort"

	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/internal/field"
)

// PropertySelection returns the dotted paths of the properties of the domain type selected under the field.
// For a connection field the selection of edges/node (and nodes) is used.
func PropertySelection(env *engine.Environment, domain reflect.Type) []string {
	set := env.SelectionSet()
	if env.Schema != nil && env.FieldDefinition != nil && pagination.IsConnectionType(env.Schema, env.FieldDefinition.Type) {
		var nodes []engine.SelectedField
		for _, f := range set {
			switch f.Name {
			case "edges":
				for _, e := range f.SelectionSet {
					if e.Name == "node" {
						nodes = append(nodes, e.SelectionSet...)
					}
				}
			case "nodes":
				nodes = append(nodes, f.SelectionSet...)
			}
		}
		set = nodes
	}

	seen := make(map[string]bool)
	var r []string
	var walk func(set []engine.SelectedField, t reflect.Type, prefix string)
	walk = func(set []engine.SelectedField, t reflect.Type, prefix string) {
		for _, f := range set {
			fi, ok := field.Lookup(field.Indirect(t), f.Name)
			if !ok {
				continue // not a property (eg computed by another fetcher)
			}
			path := prefix + f.Name
			inner := field.Indirect(fi.Type)
			if len(f.SelectionSet) > 0 && inner.Kind() == reflect.Struct {
				walk(f.SelectionSet, inner, path+".")
				continue
			}
			if !seen[path] {
				seen[path] = true
				r = append(r, path)
			}
		}
	}
	walk(set, domain, "")
	sort.Strings(r)
	return r
}
