// Package query makes data fetchers from repositories that run Query-by-Example or predicate queries.
// Field arguments are bound to an example domain value or a predicate, the selected fields decide which
// properties to fetch, and connection fields are fetched a window at a time.
package query

// executor.go has the interfaces implemented by repositories (query executors)

import (
	"context"
	"reflect"
	"strings"

	"github.com/andrewwphillips/gqlkit/data/pagination"
)

// StringMatching controls how string properties of an example are compared
type StringMatching int

const (
	MatchExact StringMatching = iota
	MatchContaining
	MatchStarting
	MatchEnding
)

type (
	// Repository is implemented by all executors, giving the type of the values they return
	Repository interface {
		DomainType() reflect.Type
	}

	// Order is a sort property and direction
	Order struct {
		Property   string // dotted GraphQL property path
		Descending bool
	}

	// Sort is a list of orders, the first being the most significant
	Sort []Order

	// FetchSpec describes how a query is to be run
	FetchSpec struct {
		Properties []string     // dotted property paths to fetch (nil means all)
		Projection reflect.Type // type of the returned values (nil means the domain type)
		Sort       Sort
		Limit      int                       // maximum number of results, 0 means no limit (Scroll: the window size)
		Position   pagination.ScrollPosition // where to start scrolling (nil means the start)
	}

	// ExampleMatcher says how the properties of an example are matched
	ExampleMatcher struct {
		StringMatching StringMatching
		IgnoreCase     bool
		IgnoredPaths   []string
		MatchAny       bool // any property may match rather than all
	}

	// Example is a partially populated domain value.  Only the properties in Paths are matched.
	Example struct {
		Probe   interface{}
		Paths   []string // dotted property paths set in the probe
		Matcher ExampleMatcher
	}

	// ExampleExecutor runs Query-by-Example queries
	ExampleExecutor interface {
		Repository
		FindOne(ctx context.Context, example Example, spec FetchSpec) (interface{}, error) // nil if none found
		FindAll(ctx context.Context, example Example, spec FetchSpec) ([]interface{}, error)
		Scroll(ctx context.Context, example Example, spec FetchSpec) (pagination.Window, error)
	}

	// PredicateExecutor runs predicate queries
	PredicateExecutor interface {
		Repository
		FindOne(ctx context.Context, predicate Predicate, spec FetchSpec) (interface{}, error)
		FindAll(ctx context.Context, predicate Predicate, spec FetchSpec) ([]interface{}, error)
		Scroll(ctx context.Context, predicate Predicate, spec FetchSpec) (pagination.Window, error)
	}

	// Result is a value (or error) sent by a reactive executor
	Result struct {
		Value interface{}
		Err   error
	}

	// WindowResult is a window (or error) sent by a reactive executor
	WindowResult struct {
		Window pagination.Window
		Err    error
	}

	// ReactiveExampleExecutor runs Query-by-Example queries sending results on a channel which is closed when done
	ReactiveExampleExecutor interface {
		Repository
		FindOne(ctx context.Context, example Example, spec FetchSpec) <-chan Result
		FindAll(ctx context.Context, example Example, spec FetchSpec) <-chan Result
		Scroll(ctx context.Context, example Example, spec FetchSpec) <-chan WindowResult
	}

	// ReactivePredicateExecutor runs predicate queries sending results on a channel which is closed when done
	ReactivePredicateExecutor interface {
		Repository
		FindOne(ctx context.Context, predicate Predicate, spec FetchSpec) <-chan Result
		FindAll(ctx context.Context, predicate Predicate, spec FetchSpec) <-chan Result
		Scroll(ctx context.Context, predicate Predicate, spec FetchSpec) <-chan WindowResult
	}

	// TypeNamer can be implemented by a repository to give the GraphQL type it serves (default is the
	// name of its domain type)
	TypeNamer interface {
		GraphQLTypeName() string
	}
)

// IsIgnored returns true if the property path (or one of its parents) is ignored
func (m ExampleMatcher) IsIgnored(path string) bool {
	for _, p := range m.IgnoredPaths {
		if path == p || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

// Keys returns the sort properties, in order
func (s Sort) Keys() []string {
	r := make([]string, 0, len(s))
	for _, o := range s {
		r = append(r, o.Property)
	}
	return r
}

// Desc creates a descending order
func Desc(property string) Order {
	return Order{Property: property, Descending: true}
}

// Asc creates an ascending order
func Asc(property string) Order {
	return Order{Property: property}
}

// typeName gets the GraphQL type name that a repository serves
func typeName(r Repository) string {
	if namer, ok := r.(TypeNamer); ok {
		if name := namer.GraphQLTypeName(); name != "" {
			return name
		}
	}
	t := r.DomainType()
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// collect reads all the results from a reactive executor's channel
func collect(ctx context.Context, ch <-chan Result) ([]interface{}, error) {
	r := []interface{}{}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result, ok := <-ch:
			if !ok {
				return r, nil
			}
			if result.Err != nil {
				return nil, result.Err
			}
			r = append(r, result.Value)
		}
	}
}

// first reads the first result from a reactive executor's channel
func first(ctx context.Context, ch <-chan Result) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result, ok := <-ch:
		if !ok {
			return nil, nil
		}
		return result.Value, result.Err
	}
}

// firstWindow reads the window from a reactive executor's channel
func firstWindow(ctx context.Context, ch <-chan WindowResult) (pagination.Window, error) {
	select {
	case <-ctx.Done():
		return pagination.Window{}, ctx.Err()
	case result, ok := <-ch:
		if !ok {
			return pagination.Window{}, nil
		}
		return result.Window, result.Err
	}
}
