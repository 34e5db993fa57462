// Package mongo has a repository that runs example and predicate queries against a MongoDB collection
package mongo

// repository.go has the repository and its executor methods

import (
	"context"
	"fmt"
	"reflect"

	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/data/query"
	"github.com/dolmen-go/jsonmap"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository queries documents of one domain type in a collection.
// The Repository is an ExampleExecutor; Predicates gives the PredicateExecutor.
type Repository struct {
	coll     *mongo.Collection
	domain   reflect.Type
	typeName string
	id       string // property added to keyset sorts so that keys are unique
}

// PredicateRepository runs predicate queries over a Repository
type PredicateRepository struct{ *Repository }

// New creates a repository of the collection for documents decoded into values of the same type as domain
// (a value or a reflect.Type)
func New(coll *mongo.Collection, domain interface{}, opts ...func(*Repository)) *Repository {
	t, ok := domain.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(domain)
	}
	r := &Repository{coll: coll, domain: t, id: "id"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TypeName sets the GraphQL type served (default is the name of the domain type)
func TypeName(name string) func(*Repository) {
	return func(r *Repository) {
		r.typeName = name
	}
}

// IDProperty sets the property that uniquely identifies a document (default "id")
func IDProperty(path string) func(*Repository) {
	return func(r *Repository) {
		r.id = path
	}
}

// DomainType implements query.Repository
func (r *Repository) DomainType() reflect.Type {
	return r.domain
}

// GraphQLTypeName implements query.TypeNamer
func (r *Repository) GraphQLTypeName() string {
	return r.typeName
}

// Predicates returns the predicate executor for the repository
func (r *Repository) Predicates() PredicateRepository {
	return PredicateRepository{r}
}

// FindOne implements query.ExampleExecutor
func (r *Repository) FindOne(ctx context.Context, example query.Example, spec query.FetchSpec) (interface{}, error) {
	filter, err := ExampleFilter(r.domain, example)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, filter, spec)
}

// FindAll implements query.ExampleExecutor
func (r *Repository) FindAll(ctx context.Context, example query.Example, spec query.FetchSpec) ([]interface{}, error) {
	filter, err := ExampleFilter(r.domain, example)
	if err != nil {
		return nil, err
	}
	return r.findAll(ctx, filter, spec)
}

// Scroll implements query.ExampleExecutor
func (r *Repository) Scroll(ctx context.Context, example query.Example, spec query.FetchSpec) (pagination.Window, error) {
	filter, err := ExampleFilter(r.domain, example)
	if err != nil {
		return pagination.Window{}, err
	}
	return r.scroll(ctx, filter, spec)
}

// FindOne implements query.PredicateExecutor
func (r PredicateRepository) FindOne(ctx context.Context, p query.Predicate, spec query.FetchSpec) (interface{}, error) {
	filter, err := PredicateFilter(r.domain, p)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, filter, spec)
}

// FindAll implements query.PredicateExecutor
func (r PredicateRepository) FindAll(ctx context.Context, p query.Predicate, spec query.FetchSpec) ([]interface{}, error) {
	filter, err := PredicateFilter(r.domain, p)
	if err != nil {
		return nil, err
	}
	return r.findAll(ctx, filter, spec)
}

// Scroll implements query.PredicateExecutor
func (r PredicateRepository) Scroll(ctx context.Context, p query.Predicate, spec query.FetchSpec) (pagination.Window, error) {
	filter, err := PredicateFilter(r.domain, p)
	if err != nil {
		return pagination.Window{}, err
	}
	return r.scroll(ctx, filter, spec)
}

// findOptions makes the find options for a spec (projection, sort and limit)
func (r *Repository) findOptions(spec query.FetchSpec, reverse bool) (*options.FindOptions, error) {
	opts := options.Find()
	if spec.Projection == nil {
		projection, err := Projection(r.domain, spec.Properties)
		if err != nil {
			return nil, err
		}
		if projection != nil {
			opts.SetProjection(projection)
		}
	}
	if len(spec.Sort) > 0 {
		sort, err := SortDocument(r.domain, spec.Sort, reverse)
		if err != nil {
			return nil, err
		}
		opts.SetSort(sort)
	}
	if spec.Limit > 0 {
		opts.SetLimit(int64(spec.Limit))
	}
	return opts, nil
}

func (r *Repository) findOne(ctx context.Context, filter bson.D, spec query.FetchSpec) (interface{}, error) {
	spec.Limit = 1
	list, err := r.findAll(ctx, filter, spec)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (r *Repository) findAll(ctx context.Context, filter bson.D, spec query.FetchSpec) ([]interface{}, error) {
	opts, err := r.findOptions(spec, false)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, filter, opts, spec.Projection)
}

// find runs the query decoding the documents into the domain (or projection) type
func (r *Repository) find(ctx context.Context, filter bson.D, opts *options.FindOptions, projection reflect.Type) ([]interface{}, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w finding in %s", err, r.coll.Name())
	}
	defer cursor.Close(ctx)

	t := r.domain
	if projection != nil {
		t = projection
	}
	result := []interface{}{}
	for cursor.Next(ctx) {
		v, err := decode(cursor, t)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// decode decodes the current document into a new value of type t
func decode(cursor *mongo.Cursor, t reflect.Type) (interface{}, error) {
	elem := t
	if t.Kind() == reflect.Ptr {
		elem = t.Elem()
	}
	p := reflect.New(elem)
	if err := cursor.Decode(p.Interface()); err != nil {
		return nil, fmt.Errorf("%w decoding %v", err, t)
	}
	if t.Kind() == reflect.Ptr {
		return p.Interface(), nil
	}
	return p.Elem().Interface(), nil
}

func (r *Repository) scroll(ctx context.Context, filter bson.D, spec query.FetchSpec) (pagination.Window, error) {
	limit := spec.Limit
	if limit < 0 {
		limit = 0
	}
	spec.Limit = limit + 1 // one extra to see if there are more

	switch pos := spec.Position.(type) {
	case nil:
		return r.offsetScroll(ctx, filter, spec, pagination.InitialOffset(), limit)
	case pagination.OffsetPosition:
		return r.offsetScroll(ctx, filter, spec, pos, limit)
	case pagination.KeysetPosition:
		return r.keysetScroll(ctx, filter, spec, pos, limit)
	}
	return pagination.Window{}, fmt.Errorf("unsupported scroll position %T", spec.Position)
}

func (r *Repository) offsetScroll(ctx context.Context, filter bson.D, spec query.FetchSpec, pos pagination.OffsetPosition, limit int) (pagination.Window, error) {
	opts, err := r.findOptions(spec, false)
	if err != nil {
		return pagination.Window{}, err
	}
	start := pos.StartIndex()
	opts.SetSkip(start)
	list, err := r.find(ctx, filter, opts, spec.Projection)
	if err != nil {
		return pagination.Window{}, err
	}
	more := len(list) > limit
	if more {
		list = list[:limit]
	}
	return pagination.NewOffsetWindow(list, start, more), nil
}

// keysetScroll gets the documents after (or before) the keys.  Scrolling backward runs the query in reverse
// order then reverses the results.
func (r *Repository) keysetScroll(ctx context.Context, filter bson.D, spec query.FetchSpec, pos pagination.KeysetPosition, limit int) (pagination.Window, error) {
	spec.Sort = r.keysetSort(spec.Sort)
	forward := pos.Direction == pagination.Forward
	if !pos.IsInitial() {
		keyFilter, err := KeysetFilter(r.domain, spec.Sort, pos.Keys.Data, forward)
		if err != nil {
			return pagination.Window{}, err
		}
		filter = bson.D{{Key: "$and", Value: bson.A{filter, keyFilter}}}
	}
	if spec.Properties != nil {
		spec.Properties = append(append([]string{}, spec.Properties...), spec.Sort.Keys()...) // keys are needed for positions
	}
	opts, err := r.findOptions(spec, !forward)
	if err != nil {
		return pagination.Window{}, err
	}
	list, err := r.find(ctx, filter, opts, spec.Projection)
	if err != nil {
		return pagination.Window{}, err
	}
	more := len(list) > limit
	if more {
		list = list[:limit]
	}
	if !forward {
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
		more = !pos.IsInitial() // the reference document is after the window
	}

	w := pagination.Window{Content: list, Positions: make([]pagination.ScrollPosition, len(list)), More: more}
	for i, v := range list {
		keys := jsonmap.Ordered{Data: make(map[string]interface{}, len(spec.Sort))}
		for _, o := range spec.Sort {
			keys.Data[o.Property] = probeValue(v, o.Property)
			keys.Order = append(keys.Order, o.Property)
		}
		w.Positions[i] = pagination.Keyset(keys, pagination.Forward)
	}
	return w, nil
}

// keysetSort adds the id property to the sort (if not already there)
func (r *Repository) keysetSort(order query.Sort) query.Sort {
	if r.id == "" {
		return order
	}
	for _, o := range order {
		if o.Property == r.id {
			return order
		}
	}
	return append(append(query.Sort{}, order...), query.Asc(r.id))
}
