package query

// predicate.go has the predicate tree and the bindings that build predicates from field arguments

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/andrewwphillips/gqlkit/internal/field"
)

// Op is a comparison operator
type Op string

const (
	Eq           Op = "eq"
	Ne           Op = "ne"
	In           Op = "in"
	Gt           Op = "gt"
	Gte          Op = "gte"
	Lt           Op = "lt"
	Lte          Op = "lte"
	Contains     Op = "contains"
	StartsWith   Op = "startsWith"
	EndsWith     Op = "endsWith"
	EqIgnoreCase Op = "eqIgnoreCase"
)

type (
	// Predicate is a node of a query predicate tree: Comparison, And, Or or Not
	Predicate interface {
		String() string
	}

	// Comparison compares the property at Path with Values (just one value except for In)
	Comparison struct {
		Path   string
		Op     Op
		Values []interface{}
	}

	// And is true if all its predicates are (an empty And is always true)
	And []Predicate

	// Or is true if any of its predicates are
	Or []Predicate

	// Not negates a predicate
	Not struct {
		Predicate Predicate
	}

	// BindingFunc makes a predicate for a property path from the argument value(s).
	// Returning false means no predicate for the path.
	BindingFunc func(path string, values []interface{}) (Predicate, bool)

	// Bindings customise how arguments are turned into a predicate
	Bindings struct {
		domain          reflect.Type
		bindings        map[string]BindingFunc
		excluded        []string
		included        []string
		excludeUnlisted bool
	}
)

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %v", c.Path, c.Op, c.Values)
}

func (a And) String() string {
	return join("and", a)
}

func (o Or) String() string {
	return join("or", o)
}

func (n Not) String() string {
	return "not(" + n.Predicate.String() + ")"
}

func join(op string, list []Predicate) string {
	parts := make([]string, 0, len(list))
	for _, p := range list {
		parts = append(parts, p.String())
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

// NewBindings creates bindings for a domain type
func NewBindings(domain reflect.Type) *Bindings {
	return &Bindings{domain: domain, bindings: make(map[string]BindingFunc)}
}

// Bind sets how the predicate for a property path is made
func (b *Bindings) Bind(path string, f BindingFunc) *Bindings {
	b.bindings[path] = f
	return b
}

// BindOp binds a property path to a comparison with an operator
func (b *Bindings) BindOp(path string, op Op) *Bindings {
	return b.Bind(path, func(path string, values []interface{}) (Predicate, bool) {
		return Comparison{Path: path, Op: op, Values: values}, true
	})
}

// Excluding means arguments for the paths (and their sub-properties) are ignored
func (b *Bindings) Excluding(paths ...string) *Bindings {
	b.excluded = append(b.excluded, paths...)
	return b
}

// Including lists paths that are allowed when ExcludeUnlisted is used
func (b *Bindings) Including(paths ...string) *Bindings {
	b.included = append(b.included, paths...)
	return b
}

// ExcludeUnlisted means only paths that were bound or included are used
func (b *Bindings) ExcludeUnlisted() *Bindings {
	b.excludeUnlisted = true
	return b
}

// isAllowed checks if a path is to be used in the predicate
func (b *Bindings) isAllowed(path string) bool {
	if hasPrefix(b.excluded, path) {
		return false
	}
	if !b.excludeUnlisted {
		return true
	}
	if _, ok := b.bindings[path]; ok {
		return true
	}
	return hasPrefix(b.included, path)
}

func hasPrefix(list []string, path string) bool {
	for _, p := range list {
		if path == p || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

// Predicate builds the predicate for the arguments.  Nested objects give dotted property paths.
// By default a single value is compared for equality and a list with In.
func (b *Bindings) Predicate(args map[string]interface{}) (Predicate, error) {
	values := make(map[string]interface{})
	flatten(args, "", values)
	paths := make([]string, 0, len(values))
	for path := range values {
		paths = append(paths, path)
	}
	sort.Strings(paths) // predicates in the same order every time

	r := And{}
	for _, path := range paths {
		if !b.isAllowed(path) {
			continue
		}
		if b.domain != nil && field.Indirect(b.domain).Kind() == reflect.Struct {
			if _, ok := field.PathType(b.domain, path); !ok {
				return nil, &BindingError{Name: path, Err: fmt.Errorf("no property %q in %s", path, field.Indirect(b.domain).Name())}
			}
		}
		list := toList(values[path])
		if f, ok := b.bindings[path]; ok {
			if p, ok := f(path, list); ok && p != nil {
				r = append(r, p)
			}
			continue
		}
		switch len(list) {
		case 0:
			continue
		case 1:
			r = append(r, Comparison{Path: path, Op: Eq, Values: list})
		default:
			r = append(r, Comparison{Path: path, Op: In, Values: list})
		}
	}
	return r, nil
}

func flatten(m map[string]interface{}, prefix string, r map[string]interface{}) {
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(nested, prefix+k+".", r)
			continue
		}
		r[prefix+k] = v
	}
}

func toList(v interface{}) []interface{} {
	if v == nil {
		return []interface{}{nil}
	}
	if list, ok := v.([]interface{}); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		r := make([]interface{}, rv.Len())
		for i := range r {
			r[i] = rv.Index(i).Interface()
		}
		return r
	}
	return []interface{}{v}
}
