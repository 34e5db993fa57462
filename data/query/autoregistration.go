package query

// autoregistration.go installs repository data fetchers for Query fields that have no fetcher registered

import (
	"strings"
	"sync"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/vektah/gqlparser/v2/ast"
)

// AutoRegistration makes a fetcher factory for each repository keyed by the GraphQL type it serves.
// Predicate executors are preferred to example executors, and sync executors to reactive ones.
// Repositories that are not executors are ignored.
func AutoRegistration(repos ...Repository) map[string]DataFetcherFactory {
	r := make(map[string]DataFetcherFactory, len(repos))
	for _, repo := range repos {
		var b *Builder
		switch executor := repo.(type) {
		case PredicateExecutor:
			b = QueryByPredicate(executor)
		case ExampleExecutor:
			b = QueryByExample(executor)
		case ReactivePredicateExecutor:
			b = ReactiveQueryByPredicate(executor)
		case ReactiveExampleExecutor:
			b = ReactiveQueryByExample(executor)
		default:
			continue
		}
		if name := typeName(repo); name != "" {
			r[name] = b
		}
	}
	return r
}

// AutoRegistrationWiringFactory is a wiring factory that provides repository fetchers for Query fields
type AutoRegistrationWiringFactory struct {
	factories map[string]DataFetcherFactory
	wiring    *engine.Wiring

	once       sync.Once
	registered map[string]bool // Query fields with a fetcher registered in the wiring
}

// NewAutoRegistrationWiringFactory creates a wiring factory using the fetcher factories (keyed by GraphQL type name).
// If wiring is nil the wiring being used to build the schema is checked for existing registrations.
func NewAutoRegistrationWiringFactory(factories map[string]DataFetcherFactory, wiring *engine.Wiring) *AutoRegistrationWiringFactory {
	return &AutoRegistrationWiringFactory{factories: factories, wiring: wiring}
}

// ProvidesDataFetcher returns true for Query fields (without a registered fetcher) whose type is served by a repository
func (f *AutoRegistrationWiringFactory) ProvidesDataFetcher(env engine.FieldWiringEnvironment) bool {
	if !isQueryType(env) || f.hasDataFetcher(env) {
		return false
	}
	_, ok := f.factories[outputTypeName(env.Schema, env.FieldDefinition.Type)]
	return ok
}

// DataFetcher returns a scrollable fetcher for connections, a many fetcher for lists, otherwise a single fetcher
func (f *AutoRegistrationWiringFactory) DataFetcher(env engine.FieldWiringEnvironment) engine.DataFetcher {
	t := env.FieldDefinition.Type
	factory, ok := f.factories[outputTypeName(env.Schema, t)]
	if !ok {
		return nil
	}
	switch {
	case isConnection(env.Schema, t.Name()):
		return factory.Scrollable()
	case t.Elem != nil:
		return factory.Many()
	default:
		return factory.Single()
	}
}

// hasDataFetcher checks if the Query field has a fetcher registered (the list is obtained once)
func (f *AutoRegistrationWiringFactory) hasDataFetcher(env engine.FieldWiringEnvironment) bool {
	f.once.Do(func() {
		w := f.wiring
		if w == nil {
			w = env.Wiring
		}
		f.registered = make(map[string]bool)
		if w != nil {
			for name := range w.DataFetchers(env.ParentType.Name) {
				f.registered[name] = true
			}
		}
	})
	return f.registered[env.FieldDefinition.Name]
}

func isQueryType(env engine.FieldWiringEnvironment) bool {
	if env.Schema != nil && env.Schema.Query != nil {
		return env.ParentType.Name == env.Schema.Query.Name
	}
	return env.ParentType.Name == "Query"
}

// outputTypeName gets the name of the (unwrapped) type of a field, using the node type name for connections
func outputTypeName(schema *ast.Schema, t *ast.Type) string {
	name := t.Name()
	if isConnection(schema, name) {
		return strings.TrimSuffix(name, "Connection")
	}
	return name
}

// isConnection checks for a XConnection type with edges and pageInfo fields
func isConnection(schema *ast.Schema, name string) bool {
	if !strings.HasSuffix(name, "Connection") || schema == nil {
		return false
	}
	def := schema.Types[name]
	return def != nil && def.Fields.ForName("edges") != nil && def.Fields.ForName("pageInfo") != nil
}
