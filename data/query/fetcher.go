package query

// fetcher.go builds single, many and scrollable data fetchers over example and predicate executors

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/internal/field"
)

// DefaultScrollCount is how many elements a scrollable fetcher returns if the query does not say
const DefaultScrollCount = 20

// pagingArguments are the Relay arguments used by scrollable fetchers (not bound to properties)
var pagingArguments = []string{"first", "after", "last", "before"}

type (
	// DataFetcherFactory makes the fetchers for a repository
	DataFetcherFactory interface {
		Single() engine.DataFetcher
		Many() engine.DataFetcher
		Scrollable() engine.DataFetcher
	}

	// SortStrategy works out the sort from the field (usually its arguments)
	SortStrategy interface {
		Sort(env *engine.Environment) (Sort, error)
	}

	// SortStrategyFunc allows a function to be used as a SortStrategy
	SortStrategyFunc func(env *engine.Environment) (Sort, error)

	// ArgumentSort gets the sort properties from a list argument and the direction from an argument with
	// a value of ASC or DESC.  These arguments are not bound to properties.
	ArgumentSort struct {
		PropertiesArgument string
		DirectionArgument  string
	}

	// Builder configures and creates data fetchers for an executor
	Builder struct {
		repo            Repository
		finder          finder
		projection      reflect.Type
		sort            Sort
		sortStrategy    SortStrategy
		cursorStrategy  pagination.CursorStrategy
		defaultCount    int
		defaultPosition pagination.ScrollPosition
		matcher         ExampleMatcher
		customizer      func(*Bindings)
	}

	// finder hides the differences between the executor kinds
	finder interface {
		findOne(ctx context.Context, q interface{}, spec FetchSpec) (interface{}, error)
		findAll(ctx context.Context, q interface{}, spec FetchSpec) ([]interface{}, error)
		scroll(ctx context.Context, q interface{}, spec FetchSpec) (pagination.Window, error)
		usesPredicate() bool
	}
)

// Sort calls f
func (f SortStrategyFunc) Sort(env *engine.Environment) (Sort, error) {
	return f(env)
}

// Sort reads the sort arguments
func (s ArgumentSort) Sort(env *engine.Environment) (Sort, error) {
	desc := false
	if v := env.Arguments[s.DirectionArgument]; v != nil {
		switch d := strings.ToUpper(fmt.Sprint(v)); d {
		case "ASC":
		case "DESC":
			desc = true
		default:
			return nil, &BindingError{Name: s.DirectionArgument, Err: fmt.Errorf("unknown sort direction %q", d)}
		}
	}
	var r Sort
	for _, p := range toList(env.Arguments[s.PropertiesArgument]) {
		if p == nil {
			continue
		}
		r = append(r, Order{Property: fmt.Sprint(p), Descending: desc})
	}
	return r, nil
}

// ArgumentNames returns the arguments that are not bound to properties
func (s ArgumentSort) ArgumentNames() []string {
	return []string{s.PropertiesArgument, s.DirectionArgument}
}

func newBuilder(repo Repository, f finder) *Builder {
	return &Builder{
		repo:           repo,
		finder:         f,
		cursorStrategy: pagination.DefaultCursorStrategy(),
		defaultCount:   DefaultScrollCount,
	}
}

// QueryByExample creates a builder of fetchers that bind arguments to an example of the domain type
func QueryByExample(executor ExampleExecutor) *Builder {
	return newBuilder(executor, exampleFinder{executor})
}

// ReactiveQueryByExample is like QueryByExample for an executor that returns results on channels
func ReactiveQueryByExample(executor ReactiveExampleExecutor) *Builder {
	return newBuilder(executor, reactiveExampleFinder{executor})
}

// QueryByPredicate creates a builder of fetchers that bind arguments to a predicate
func QueryByPredicate(executor PredicateExecutor) *Builder {
	return newBuilder(executor, predicateFinder{executor})
}

// ReactiveQueryByPredicate is like QueryByPredicate for an executor that returns results on channels
func ReactiveQueryByPredicate(executor ReactivePredicateExecutor) *Builder {
	return newBuilder(executor, reactivePredicateFinder{executor})
}

// ProjectAs sets the type of the returned values.  If it is not the domain type (or an interface
// that the domain type implements) then all properties are fetched.
func (b *Builder) ProjectAs(t reflect.Type) *Builder {
	b.projection = t
	return b
}

// SortBy sets the sort used when the sort strategy gives none
func (b *Builder) SortBy(sort Sort) *Builder {
	b.sort = sort
	return b
}

// SortStrategy sets how the sort is obtained from the field
func (b *Builder) SortStrategy(s SortStrategy) *Builder {
	b.sortStrategy = s
	return b
}

// CursorStrategy sets how cursor arguments are decoded by scrollable fetchers
func (b *Builder) CursorStrategy(cs pagination.CursorStrategy) *Builder {
	b.cursorStrategy = cs
	return b
}

// DefaultScrollCount sets how many elements a scrollable fetcher returns when first/last is not given
func (b *Builder) DefaultScrollCount(n int) *Builder {
	b.defaultCount = n
	return b
}

// DefaultScrollPosition sets where scrolling starts when there is no cursor (default is the initial offset)
func (b *Builder) DefaultScrollPosition(p pagination.ScrollPosition) *Builder {
	b.defaultPosition = p
	return b
}

// Matcher sets how examples are matched (Query-by-Example only)
func (b *Builder) Matcher(m ExampleMatcher) *Builder {
	b.matcher = m
	return b
}

// Customizer allows the predicate bindings to be changed (predicate fetchers only)
func (b *Builder) Customizer(f func(*Bindings)) *Builder {
	b.customizer = f
	return b
}

// Single returns a fetcher of the first matching value (or null)
func (b *Builder) Single() engine.DataFetcher {
	return engine.DataFetcherFunc(func(env *engine.Environment) (interface{}, error) {
		q, spec, err := b.prepare(env, nil)
		if err != nil {
			return nil, err
		}
		return b.finder.findOne(env.Context, q, spec)
	})
}

// Many returns a fetcher of all matching values
func (b *Builder) Many() engine.DataFetcher {
	return engine.DataFetcherFunc(func(env *engine.Environment) (interface{}, error) {
		q, spec, err := b.prepare(env, nil)
		if err != nil {
			return nil, err
		}
		return b.finder.findAll(env.Context, q, spec)
	})
}

// Scrollable returns a fetcher of a window of matching values using the first/after/last/before arguments
func (b *Builder) Scrollable() engine.DataFetcher {
	return engine.DataFetcherFunc(func(env *engine.Environment) (interface{}, error) {
		sub, err := pagination.SubrangeFromArguments(env.Arguments, b.cursorStrategy)
		if err != nil {
			return nil, &BindingError{Name: "cursor", Err: err}
		}
		q, spec, err := b.prepare(env, pagingArguments)
		if err != nil {
			return nil, err
		}
		spec.Position = b.startPosition(sub)
		spec.Limit = b.defaultCount
		if sub.Count != nil {
			spec.Limit = *sub.Count
		}
		return b.finder.scroll(env.Context, q, spec)
	})
}

// startPosition gets the position to scroll from, using the default position when there is no cursor
func (b *Builder) startPosition(sub pagination.Subrange) pagination.ScrollPosition {
	if sub.Position != nil {
		return sub.Position
	}
	if b.defaultPosition == nil {
		return pagination.InitialOffset()
	}
	if _, ok := b.defaultPosition.(pagination.KeysetPosition); ok && !sub.Forward {
		return pagination.KeysetInitial(pagination.Backward)
	}
	return b.defaultPosition
}

// prepare binds the arguments (apart from those to skip) and works out the fetch spec
func (b *Builder) prepare(env *engine.Environment, skip []string) (interface{}, FetchSpec, error) {
	var spec FetchSpec
	sort := b.sort
	if b.sortStrategy != nil {
		s, err := b.sortStrategy.Sort(env)
		if err != nil {
			return nil, spec, err
		}
		if len(s) > 0 {
			sort = s
		}
		if named, ok := b.sortStrategy.(interface{ ArgumentNames() []string }); ok {
			skip = append(skip, named.ArgumentNames()...)
		}
	}
	spec.Sort = sort

	domain := b.repo.DomainType()
	if b.projectsDomain() {
		spec.Properties = PropertySelection(env, domain)
	} else {
		spec.Projection = b.projection
	}

	var args map[string]interface{}
	if env.FieldDefinition != nil {
		args = argumentsToBind(env.FieldDefinition.Arguments, without(env.Arguments, skip))
	} else {
		args = without(env.Arguments, skip)
	}

	if b.finder.usesPredicate() {
		bindings := NewBindings(domain)
		if b.customizer != nil {
			b.customizer(bindings)
		}
		p, err := bindings.Predicate(args)
		return p, spec, err
	}
	probe, paths, err := bindExample(domain, args)
	if err != nil {
		return nil, spec, err
	}
	return Example{Probe: probe, Paths: paths, Matcher: b.matcher}, spec, nil
}

// projectsDomain returns true if the values returned are of the domain type
func (b *Builder) projectsDomain() bool {
	if b.projection == nil {
		return true
	}
	domain := b.repo.DomainType()
	if field.Indirect(b.projection) == field.Indirect(domain) {
		return true
	}
	return b.projection.Kind() == reflect.Interface && domain.Implements(b.projection)
}

// without returns the arguments apart from the named ones (and any that are null)
func without(args map[string]interface{}, names []string) map[string]interface{} {
	r := make(map[string]interface{}, len(args))
outer:
	for k, v := range args {
		for _, name := range names {
			if k == name {
				continue outer
			}
		}
		if v != nil {
			r[k] = v
		}
	}
	return r
}

type (
	exampleFinder           struct{ ExampleExecutor }
	reactiveExampleFinder   struct{ ReactiveExampleExecutor }
	predicateFinder         struct{ PredicateExecutor }
	reactivePredicateFinder struct{ ReactivePredicateExecutor }
)

func (f exampleFinder) findOne(ctx context.Context, q interface{}, spec FetchSpec) (interface{}, error) {
	return f.FindOne(ctx, q.(Example), spec)
}

func (f exampleFinder) findAll(ctx context.Context, q interface{}, spec FetchSpec) ([]interface{}, error) {
	return f.FindAll(ctx, q.(Example), spec)
}

func (f exampleFinder) scroll(ctx context.Context, q interface{}, spec FetchSpec) (pagination.Window, error) {
	return f.Scroll(ctx, q.(Example), spec)
}

func (exampleFinder) usesPredicate() bool { return false }

func (f reactiveExampleFinder) findOne(ctx context.Context, q interface{}, spec FetchSpec) (interface{}, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return first(ctx, f.FindOne(ctx, q.(Example), spec))
}

func (f reactiveExampleFinder) findAll(ctx context.Context, q interface{}, spec FetchSpec) ([]interface{}, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return collect(ctx, f.FindAll(ctx, q.(Example), spec))
}

func (f reactiveExampleFinder) scroll(ctx context.Context, q interface{}, spec FetchSpec) (pagination.Window, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return firstWindow(ctx, f.Scroll(ctx, q.(Example), spec))
}

func (reactiveExampleFinder) usesPredicate() bool { return false }

func (f predicateFinder) findOne(ctx context.Context, q interface{}, spec FetchSpec) (interface{}, error) {
	return f.FindOne(ctx, q.(Predicate), spec)
}

func (f predicateFinder) findAll(ctx context.Context, q interface{}, spec FetchSpec) ([]interface{}, error) {
	return f.FindAll(ctx, q.(Predicate), spec)
}

func (f predicateFinder) scroll(ctx context.Context, q interface{}, spec FetchSpec) (pagination.Window, error) {
	return f.Scroll(ctx, q.(Predicate), spec)
}

func (predicateFinder) usesPredicate() bool { return true }

func (f reactivePredicateFinder) findOne(ctx context.Context, q interface{}, spec FetchSpec) (interface{}, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return first(ctx, f.FindOne(ctx, q.(Predicate), spec))
}

func (f reactivePredicateFinder) findAll(ctx context.Context, q interface{}, spec FetchSpec) ([]interface{}, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return collect(ctx, f.FindAll(ctx, q.(Predicate), spec))
}

func (f reactivePredicateFinder) scroll(ctx context.Context, q interface{}, spec FetchSpec) (pagination.Window, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return firstWindow(ctx, f.Scroll(ctx, q.(Predicate), spec))
}

func (reactivePredicateFinder) usesPredicate() bool { return true }
