package gqlkit

// gqlkit.go provides the Kit type for assembling a GraphQL execution service or HTTP handler

import (
	"fmt"
	"net/http"

	"github.com/andrewwphillips/gqlkit/data/memory"
	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/data/query"
	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// Kit collects the schema, data fetchers and repositories of a GraphQL service
type Kit struct {
	sdl   []string
	wire  []func(*engine.Wiring)
	repos []query.Repository
	options
}

// New creates a Kit from zero or more SDL strings (more can be added later using AddSchema)
func New(sdl ...string) *Kit {
	return &Kit{sdl: sdl}
}

// AddSchema adds SDL (type definitions or extensions) to the schema
func (k *Kit) AddSchema(sdl ...string) *Kit {
	k.sdl = append(k.sdl, sdl...)
	return k
}

// DataFetcher registers the fetcher of a field.  A registered fetcher takes precedence over
// any a repository would provide.
func (k *Kit) DataFetcher(typeName, fieldName string, fetcher engine.DataFetcher) *Kit {
	k.wire = append(k.wire, func(w *engine.Wiring) { w.DataFetcher(typeName, fieldName, fetcher) })
	return k
}

// DataFetcherFunc registers a function as the fetcher of a field
func (k *Kit) DataFetcherFunc(typeName, fieldName string, f func(env *engine.Environment) (interface{}, error)) *Kit {
	return k.DataFetcher(typeName, fieldName, engine.DataFetcherFunc(f))
}

// TypeResolver registers the resolver for an interface or union type
func (k *Kit) TypeResolver(typeName string, resolver engine.TypeResolver) *Kit {
	k.wire = append(k.wire, func(w *engine.Wiring) { w.TypeResolver(typeName, resolver) })
	return k
}

// Repository adds repositories whose types are served by Query fields without a registered fetcher.
// A field returning the type gives one entity, a list of the type gives all matching entities and
// a connection of the type scrolls through them.
func (k *Kit) Repository(repos ...query.Repository) *Kit {
	k.repos = append(k.repos, repos...)
	return k
}

// MemoryRepository creates an in-memory repository for an object type of the schema and adds it to the Kit.
// The entities of the repository are of a Go struct type made from the GraphQL type (see StructType).
func (k *Kit) MemoryRepository(typeName string) (*memory.Repository, error) {
	s, err := k.ast()
	if err != nil {
		return nil, err
	}
	t, err := StructType(s, typeName)
	if err != nil {
		return nil, err
	}
	repo := memory.New(t, memory.TypeName(typeName))
	k.Repository(repo)
	return repo, nil
}

// SetOptions sets options for the service and the HTTP handler
func (k *Kit) SetOptions(options ...func(*options)) *Kit {
	for _, opt := range options {
		opt(&k.options)
	}
	return k
}

// Schema returns the schema including the generated connection types
func (k *Kit) Schema() (string, error) {
	if len(k.sdl) == 0 {
		return "", fmt.Errorf("no schema")
	}
	return pagination.AddConnectionTypes(k.sdl...)
}

// Service builds the schema and returns the service that executes requests against it
func (k *Kit) Service() (*engine.Service, error) {
	sdl, err := k.Schema()
	if err != nil {
		return nil, err
	}
	wiring := k.wiring()
	schema, err := engine.NewSchema(wiring, sdl)
	if err != nil {
		return nil, err
	}
	return engine.New(schema, k.engineOptions()...), nil
}

// Handler builds the service and returns the HTTP handler for it (which also handles websocket upgrades)
func (k *Kit) Handler() (http.Handler, error) {
	service, err := k.Service()
	if err != nil {
		return nil, err
	}
	return k.handler(service), nil
}

// wiring makes a new wiring with the registered fetchers, auto-registration of repositories and connections
func (k *Kit) wiring() *engine.Wiring {
	wiring := engine.NewWiring()
	for _, f := range k.wire {
		f(wiring)
	}
	if len(k.repos) > 0 {
		factory := query.NewAutoRegistrationWiringFactory(query.AutoRegistration(k.repos...), wiring)
		wiring.Factory(factory)
	}
	return wiring.Visitor(pagination.ConnectionFieldVisitor(k.adapters...))
}

// ast loads the schema without wiring (to find the fields of types)
func (k *Kit) ast() (*ast.Schema, error) {
	sdl, err := k.Schema()
	if err != nil {
		return nil, err
	}
	s, gqlErr := gqlparser.LoadSchema(&ast.Source{Name: "schema", Input: sdl})
	if gqlErr != nil {
		return nil, fmt.Errorf("%w loading schema", gqlErr)
	}
	return s, nil
}
