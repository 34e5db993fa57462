package pagination

// sdl.go generates the definitions of connection, edge and PageInfo types referenced (but not defined) in a schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const pageInfoSDL = `type PageInfo {
  hasPreviousPage: Boolean!
  hasNextPage: Boolean!
  startCursor: String
  endCursor: String
}
`

// AddConnectionTypes returns the schema with definitions added for any types named XConnection (where X is a
// defined type) that are used as a field type but not defined.  For each one an XConnection and XEdge type
// is added plus PageInfo if it is not already defined.
func AddConnectionTypes(sdl ...string) (string, error) {
	defined := make(map[string]bool)
	used := make(map[string]bool)
	for i, s := range sdl {
		doc, err := parser.ParseSchema(&ast.Source{Name: fmt.Sprintf("schema%d", i+1), Input: s})
		if err != nil {
			return "", fmt.Errorf("%w parsing schema", err)
		}
		for _, list := range []ast.DefinitionList{doc.Definitions, doc.Extensions} {
			for _, def := range list {
				defined[def.Name] = true
				for _, f := range def.Fields {
					used[namedType(f.Type)] = true
				}
			}
		}
	}

	var names []string
	for name := range used {
		if !defined[name] && strings.HasSuffix(name, connectionSuffix) && defined[NodeTypeName(name)] {
			names = append(names, name)
		}
	}
	joined := strings.Join(sdl, "\n")
	if len(names) == 0 {
		return joined, nil
	}
	sort.Strings(names) // generate in the same order every time

	builder := &strings.Builder{}
	builder.WriteString(joined)
	builder.WriteString("\n")
	for _, name := range names {
		node := NodeTypeName(name)
		fmt.Fprintf(builder, "type %s {\n  edges: [%sEdge]!\n  pageInfo: PageInfo!\n}\n", name, node)
		fmt.Fprintf(builder, "type %sEdge {\n  cursor: String!\n  node: %s!\n}\n", node, node)
	}
	if !defined["PageInfo"] {
		builder.WriteString(pageInfoSDL)
	}
	return builder.String(), nil
}

// namedType gets the type name removing any list and non-null wrappers
func namedType(t *ast.Type) string {
	for t != nil && t.Elem != nil {
		t = t.Elem
	}
	if t == nil {
		return ""
	}
	return t.NamedType
}
