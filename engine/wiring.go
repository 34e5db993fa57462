package engine

// wiring.go connects schema fields to data fetchers (explicitly or through factories) and abstract types to resolvers

import (
	"context"
	"sync"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

type (
	// Wiring collects data fetchers, type resolvers, wiring factories and field visitors used to build a Schema
	Wiring struct {
		mu            sync.Mutex
		fetchers      map[string]map[string]DataFetcher // type name -> field name -> fetcher
		typeResolvers map[string]TypeResolver
		factories     []WiringFactory
		visitors      []FieldVisitor
	}

	// FieldWiringEnvironment describes a schema field whose data fetcher is being decided
	FieldWiringEnvironment struct {
		Schema          *ast.Schema
		ParentType      *ast.Definition
		FieldDefinition *ast.FieldDefinition
		Wiring          *Wiring
	}

	// WiringFactory can provide data fetchers for fields that have no explicitly registered one
	WiringFactory interface {
		ProvidesDataFetcher(env FieldWiringEnvironment) bool
		DataFetcher(env FieldWiringEnvironment) DataFetcher
	}

	// FieldVisitor is called for every object field once its fetcher is decided and may return a
	// replacement (usually decorating) fetcher
	FieldVisitor interface {
		VisitField(env FieldWiringEnvironment, fetcher DataFetcher) DataFetcher
	}

	// FieldVisitorFunc allows a function to be used as a FieldVisitor
	FieldVisitorFunc func(env FieldWiringEnvironment, fetcher DataFetcher) DataFetcher

	// TypeResolver returns the name of the object type of a value of an interface or union type
	TypeResolver func(ctx context.Context, value interface{}, abstractType *ast.Definition) (string, error)

	// TypeNamer is implemented by values (and repositories) that know their GraphQL object type name
	TypeNamer interface {
		GraphQLTypeName() string
	}

	// ExceptionResolver converts an error returned from a data fetcher into GraphQL errors.
	// It returns nil if it does not handle the error.
	ExceptionResolver func(err error, env *Environment) []graphql.ResponseError
)

// VisitField calls f
func (f FieldVisitorFunc) VisitField(env FieldWiringEnvironment, fetcher DataFetcher) DataFetcher {
	return f(env, fetcher)
}

// FieldType returns the type of the field being wired
func (env FieldWiringEnvironment) FieldType() *ast.Type {
	return env.FieldDefinition.Type
}

// NewWiring creates an empty Wiring
func NewWiring() *Wiring {
	return &Wiring{
		fetchers:      make(map[string]map[string]DataFetcher),
		typeResolvers: make(map[string]TypeResolver),
	}
}

// DataFetcher registers the fetcher for a field of a type
func (w *Wiring) DataFetcher(typeName, fieldName string, fetcher DataFetcher) *Wiring {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fetchers[typeName] == nil {
		w.fetchers[typeName] = make(map[string]DataFetcher)
	}
	w.fetchers[typeName][fieldName] = fetcher
	return w
}

// DataFetcherFunc registers a function as the fetcher for a field of a type
func (w *Wiring) DataFetcherFunc(typeName, fieldName string, f func(env *Environment) (interface{}, error)) *Wiring {
	return w.DataFetcher(typeName, fieldName, DataFetcherFunc(f))
}

// Type registers fetchers for several fields of a type
func (w *Wiring) Type(typeName string, fetchers map[string]DataFetcher) *Wiring {
	for name, f := range fetchers {
		w.DataFetcher(typeName, name, f)
	}
	return w
}

// TypeResolver registers the resolver for an interface or union type
func (w *Wiring) TypeResolver(typeName string, resolver TypeResolver) *Wiring {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.typeResolvers[typeName] = resolver
	return w
}

// Factory adds a wiring factory.  Factories are asked in the order added.
func (w *Wiring) Factory(factory WiringFactory) *Wiring {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.factories = append(w.factories, factory)
	return w
}

// Visitor adds a field visitor.  Visitors are applied in the order added.
func (w *Wiring) Visitor(visitor FieldVisitor) *Wiring {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visitors = append(w.visitors, visitor)
	return w
}

// HasDataFetcher returns true if a fetcher was explicitly registered for the field
func (w *Wiring) HasDataFetcher(typeName, fieldName string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.fetchers[typeName][fieldName]
	return ok
}

// DataFetchers returns a snapshot of the explicitly registered fetchers of a type
func (w *Wiring) DataFetchers(typeName string) map[string]DataFetcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := make(map[string]DataFetcher, len(w.fetchers[typeName]))
	for k, v := range w.fetchers[typeName] {
		r[k] = v
	}
	return r
}

// fetcherFor decides the fetcher for a field: explicit registration, then wiring factories, then the property fetcher
func (w *Wiring) fetcherFor(env FieldWiringEnvironment) DataFetcher {
	w.mu.Lock()
	f, ok := w.fetchers[env.ParentType.Name][env.FieldDefinition.Name]
	factories := w.factories
	w.mu.Unlock()
	if ok {
		return f
	}
	for _, factory := range factories {
		if factory.ProvidesDataFetcher(env) {
			if f := factory.DataFetcher(env); f != nil {
				return f
			}
		}
	}
	return PropertyFetcher
}
