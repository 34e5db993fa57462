// Package memory has a repository that keeps entities in memory and runs example and predicate queries over them.
// It is used for tests and the command line server.
package memory

// repository.go has the repository and its Query-by-Example executor methods

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/data/query"
	"github.com/andrewwphillips/gqlkit/internal/field"
	"github.com/dolmen-go/jsonmap"
)

// Repository holds entities of one domain type.  It is safe for concurrent use.
// The Repository is an ExampleExecutor; Predicates, Reactive and ReactivePredicates give the other executors.
type Repository struct {
	domain   reflect.Type
	typeName string
	id       string // property used to break ties when keyset scrolling

	mu       sync.RWMutex
	entities []interface{}
}

// New creates a repository for entities of the same type as domain (a value or a reflect.Type)
func New(domain interface{}, options ...func(*Repository)) *Repository {
	t, ok := domain.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(domain)
	}
	r := &Repository{domain: t, id: "id"}
	for _, opt := range options {
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

// IDProperty sets the property that uniquely identifies an entity (default "id")
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

// Save adds entities, replacing any with the same id
func (r *Repository) Save(entities ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entity := range entities {
		if t := reflect.TypeOf(entity); t != r.domain {
			return fmt.Errorf("cannot save %v in repository of %v", t, r.domain)
		}
		id, hasID := valueAt(entity, r.id)
		replaced := false
		if hasID && id != nil {
			for i, e := range r.entities {
				if other, ok := valueAt(e, r.id); ok && equal(id, other) {
					r.entities[i] = entity
					replaced = true
					break
				}
			}
		}
		if !replaced {
			r.entities = append(r.entities, entity)
		}
	}
	return nil
}

// Len returns the number of entities
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// FindOne implements query.ExampleExecutor
func (r *Repository) FindOne(ctx context.Context, example query.Example, spec query.FetchSpec) (interface{}, error) {
	spec.Limit = 1
	list, err := r.FindAll(ctx, example, spec)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// FindAll implements query.ExampleExecutor
func (r *Repository) FindAll(ctx context.Context, example query.Example, spec query.FetchSpec) ([]interface{}, error) {
	return r.findAll(ctx, exampleMatch(example), spec)
}

// Scroll implements query.ExampleExecutor
func (r *Repository) Scroll(ctx context.Context, example query.Example, spec query.FetchSpec) (pagination.Window, error) {
	return r.scroll(ctx, exampleMatch(example), spec)
}

func exampleMatch(example query.Example) func(interface{}) (bool, error) {
	return func(entity interface{}) (bool, error) {
		return matchExample(example, entity), nil
	}
}

func predicateMatch(p query.Predicate) func(interface{}) (bool, error) {
	return func(entity interface{}) (bool, error) {
		return evaluate(p, entity)
	}
}

// matching returns the entities that match in sort order
func (r *Repository) matching(ctx context.Context, match func(interface{}) (bool, error), order query.Sort) ([]interface{}, error) {
	r.mu.RLock()
	entities := append([]interface{}(nil), r.entities...)
	r.mu.RUnlock()

	var found []interface{}
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := match(entity)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, entity)
		}
	}
	if len(order) > 0 {
		sort.SliceStable(found, func(i, j int) bool {
			return compareEntities(order, found[i], found[j]) < 0
		})
	}
	return found, nil
}

func (r *Repository) findAll(ctx context.Context, match func(interface{}) (bool, error), spec query.FetchSpec) ([]interface{}, error) {
	found, err := r.matching(ctx, match, spec.Sort)
	if err != nil {
		return nil, err
	}
	if spec.Limit > 0 && len(found) > spec.Limit {
		found = found[:spec.Limit]
	}
	result := make([]interface{}, 0, len(found))
	for _, entity := range found {
		v, err := project(entity, spec)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// scroll returns a window of matching entities from the position in the spec (offset or keyset)
func (r *Repository) scroll(ctx context.Context, match func(interface{}) (bool, error), spec query.FetchSpec) (pagination.Window, error) {
	order := r.keysetSort(spec.Sort)
	found, err := r.matching(ctx, match, order)
	if err != nil {
		return pagination.Window{}, err
	}

	var w pagination.Window
	switch pos := spec.Position.(type) {
	case pagination.KeysetPosition:
		w = keysetWindow(found, order, pos, spec.Limit)
	case nil:
		w = offsetWindow(found, pagination.InitialOffset(), spec.Limit)
	case pagination.OffsetPosition:
		w = offsetWindow(found, pos, spec.Limit)
	default:
		return pagination.Window{}, fmt.Errorf("unsupported scroll position %T", spec.Position)
	}
	for i, entity := range w.Content {
		if w.Content[i], err = project(entity, spec); err != nil {
			return pagination.Window{}, err
		}
	}
	return w, nil
}

// keysetSort adds the id property to the sort (if not already there) so that keys are unique
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

func offsetWindow(found []interface{}, pos pagination.OffsetPosition, limit int) pagination.Window {
	start := pos.StartIndex()
	if start > int64(len(found)) {
		start = int64(len(found))
	}
	end := int64(len(found))
	if limit >= 0 && start+int64(limit) < end {
		end = start + int64(limit)
	}
	return pagination.NewOffsetWindow(found[start:end], start, end < int64(len(found)))
}

// keysetWindow returns up to limit entities after (or before if scrolling backward) the keys of the position
func keysetWindow(found []interface{}, order query.Sort, pos pagination.KeysetPosition, limit int) pagination.Window {
	from, to := 0, len(found) // range of entities after/before the keys
	if !pos.IsInitial() {
		if pos.Direction == pagination.Forward {
			from = sort.Search(len(found), func(i int) bool { return compareKeys(order, found[i], pos.Keys) > 0 })
		} else {
			to = sort.Search(len(found), func(i int) bool { return compareKeys(order, found[i], pos.Keys) >= 0 })
		}
	}
	if limit < 0 {
		limit = 0
	}
	if pos.Direction == pagination.Forward {
		if to-from > limit {
			to = from + limit
		}
	} else if to-from > limit {
		from = to - limit
	}

	w := pagination.Window{Content: found[from:to], Positions: make([]pagination.ScrollPosition, to-from), More: to < len(found)}
	for i, entity := range w.Content {
		w.Positions[i] = pagination.Keyset(keysOf(order, entity), pagination.Forward)
	}
	return w
}

// keysOf gets the values of the sort properties of an entity
func keysOf(order query.Sort, entity interface{}) jsonmap.Ordered {
	keys := jsonmap.Ordered{Data: make(map[string]interface{}, len(order))}
	for _, o := range order {
		v, _ := valueAt(entity, o.Property)
		keys.Data[o.Property] = v
		keys.Order = append(keys.Order, o.Property)
	}
	return keys
}

// compareEntities compares two entities using the sort order
func compareEntities(order query.Sort, a, b interface{}) int {
	for _, o := range order {
		va, _ := valueAt(a, o.Property)
		vb, _ := valueAt(b, o.Property)
		if c, _ := compare(va, vb); c != 0 {
			if o.Descending {
				return -c
			}
			return c
		}
	}
	return 0
}

// compareKeys compares an entity with keyset values using the sort order
func compareKeys(order query.Sort, entity interface{}, keys jsonmap.Ordered) int {
	for _, o := range order {
		va, _ := valueAt(entity, o.Property)
		if c, _ := compare(va, keys.Data[o.Property]); c != 0 {
			if o.Descending {
				return -c
			}
			return c
		}
	}
	return 0
}

// project converts an entity to the projection type, or keeps only the selected properties
func project(entity interface{}, spec query.FetchSpec) (interface{}, error) {
	if spec.Projection != nil {
		return projectAs(entity, spec.Projection)
	}
	if spec.Properties == nil {
		return entity, nil
	}
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Map {
		r := reflect.MakeMap(v.Type())
		for _, top := range topLevel(spec.Properties) {
			if value := v.MapIndex(reflect.ValueOf(top)); value.IsValid() {
				r.SetMapIndex(reflect.ValueOf(top), value)
			}
		}
		return r.Interface(), nil
	}
	return projectAs(entity, reflect.TypeOf(entity), topLevel(spec.Properties)...)
}

// projectAs copies properties (all if none given) from the entity to a new value of type t
func projectAs(entity interface{}, t reflect.Type, properties ...string) (interface{}, error) {
	if t.Kind() == reflect.Interface {
		if !reflect.TypeOf(entity).Implements(t) {
			return nil, fmt.Errorf("%T does not implement %v", entity, t)
		}
		return entity, nil
	}
	st := field.Indirect(t)
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot project to %v", t)
	}
	if v := reflect.ValueOf(entity); v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, nil
	}
	dst := reflect.New(st).Elem()
	for name, fi := range field.Fields(st) {
		if properties != nil && !contains(properties, name) {
			continue
		}
		value, ok := valueAt(entity, name)
		if !ok || value == nil {
			continue
		}
		from := reflect.ValueOf(value)
		to, err := dst.FieldByIndexErr(fi.Index)
		if err != nil || !to.CanSet() {
			continue
		}
		switch {
		case from.Type().AssignableTo(to.Type()):
			to.Set(from)
		case from.Type().ConvertibleTo(to.Type()):
			to.Set(from.Convert(to.Type()))
		case to.Kind() == reflect.Ptr && from.Type().AssignableTo(to.Type().Elem()):
			p := reflect.New(to.Type().Elem())
			p.Elem().Set(from)
			to.Set(p)
		}
	}
	if t.Kind() == reflect.Ptr {
		return dst.Addr().Interface(), nil
	}
	return dst.Interface(), nil
}

// topLevel gets the distinct first segments of dotted paths
func topLevel(paths []string) []string {
	r := []string{}
	for _, p := range paths {
		top := strings.SplitN(p, ".", 2)[0]
		if !contains(r, top) {
			r = append(r, top)
		}
	}
	return r
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
