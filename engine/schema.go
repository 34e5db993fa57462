package engine

// schema.go loads the schema and builds lookup tables of data fetchers for quick lookup during execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Schema is a loaded GraphQL schema with the data fetcher for every object field decided
type Schema struct {
	ast           *ast.Schema
	fetchers      map[string]map[string]DataFetcher // type name -> field name -> fetcher
	typeResolvers map[string]TypeResolver
}

// NewSchema loads the schema from SDL string(s) and wires up the data fetchers
func NewSchema(wiring *Wiring, sdl ...string) (*Schema, error) {
	sources := make([]*ast.Source, 0, len(sdl))
	for i, s := range sdl {
		name := "schema"
		if i > 0 {
			name = fmt.Sprintf("schema%d", i+1)
		}
		sources = append(sources, &ast.Source{Name: name, Input: s})
	}
	return NewSchemaFromSources(wiring, sources...)
}

// MustSchema is like NewSchema but panics on error
func MustSchema(wiring *Wiring, sdl ...string) *Schema {
	s, err := NewSchema(wiring, sdl...)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSchemaFromSources loads the schema from sources and wires up the data fetchers
func NewSchemaFromSources(wiring *Wiring, sources ...*ast.Source) (*Schema, error) {
	if len(sources) == 0 {
		return nil, errors.New("no schema sources")
	}
	astSchema, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("%w loading schema", asGQLError(err))
	}
	if wiring == nil {
		wiring = NewWiring()
	}
	s := &Schema{ast: astSchema}
	s.makeFetcherTables(wiring)
	return s, nil
}

// AST returns the parsed schema
func (s *Schema) AST() *ast.Schema {
	return s.ast
}

// DataFetcher returns the fetcher decided for a field (nil if the type or field does not exist)
func (s *Schema) DataFetcher(typeName, fieldName string) DataFetcher {
	return s.fetchers[typeName][fieldName]
}

// makeFetcherTables decides the fetcher of every field of every object type once.
// This allows us to quickly find the fetcher given the type and field name.
func (s *Schema) makeFetcherTables(wiring *Wiring) {
	s.fetchers = make(map[string]map[string]DataFetcher, len(s.ast.Types))
	for name, def := range s.ast.Types {
		if def.Kind != ast.Object || strings.HasPrefix(name, "__") {
			continue
		}
		r := make(map[string]DataFetcher, len(def.Fields))
		for _, fieldDef := range def.Fields {
			if strings.HasPrefix(fieldDef.Name, "__") {
				continue
			}
			env := FieldWiringEnvironment{Schema: s.ast, ParentType: def, FieldDefinition: fieldDef, Wiring: wiring}
			fetcher := wiring.fetcherFor(env)
			for _, v := range wiring.visitors {
				fetcher = v.VisitField(env, fetcher)
			}
			r[fieldDef.Name] = fetcher
		}
		s.fetchers[name] = r
	}
	for typeName, fields := range introspectionFetchers {
		for fieldName, f := range fields {
			if s.fetchers[typeName] == nil {
				s.fetchers[typeName] = make(map[string]DataFetcher)
			}
			s.fetchers[typeName][fieldName] = f
		}
	}

	wiring.mu.Lock()
	s.typeResolvers = make(map[string]TypeResolver, len(wiring.typeResolvers))
	for k, v := range wiring.typeResolvers {
		s.typeResolvers[k] = v
	}
	wiring.mu.Unlock()
}

// asGQLError gets the gqlparser error from an error returned by gqlparser
func asGQLError(err error) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	return &gqlerror.Error{Message: err.Error()}
}
