package mongo

// filter.go converts examples, predicates, property selections and sorts to MongoDB documents

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/andrewwphillips/gqlkit/data/query"
	"github.com/andrewwphillips/gqlkit/internal/field"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldPath converts a dotted GraphQL property path to the document field path of the domain type.
// The bson tag of a Go field is used if present, otherwise the lower case Go field name (as the driver does).
// Paths of non-struct (eg map) domain types are unchanged.
func FieldPath(domain reflect.Type, path string) (string, error) {
	t := field.Indirect(domain)
	if t.Kind() != reflect.Struct {
		return path, nil
	}
	var parts []string
	for _, name := range strings.Split(path, ".") {
		t = field.Indirect(t)
		fi, ok := field.Lookup(t, name)
		if !ok {
			return "", fmt.Errorf("no property %q in %s", path, field.Indirect(domain).Name())
		}
		parts = append(parts, bsonNames(t, fi.Index)...)
		t = fi.Type
	}
	return strings.Join(parts, "."), nil
}

// bsonNames gets the document key(s) of a (possibly promoted) struct field.  Embedded structs are inlined
// only if tagged as such.
func bsonNames(t reflect.Type, index []int) []string {
	var r []string
	for i, idx := range index {
		t = field.Indirect(t)
		sf := t.Field(idx)
		if i < len(index)-1 && sf.Anonymous && !strings.Contains(sf.Tag.Get("bson"), "inline") {
			r = append(r, keyName(sf))
		} else if i == len(index)-1 {
			r = append(r, keyName(sf))
		}
		t = sf.Type
	}
	return r
}

func keyName(sf reflect.StructField) string {
	if tag, ok := sf.Tag.Lookup("bson"); ok {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(sf.Name)
}

// ExampleFilter makes a query filter from the set (and not ignored) properties of an example
func ExampleFilter(domain reflect.Type, example query.Example) (bson.D, error) {
	m := example.Matcher
	var conditions bson.A
	for _, path := range example.Paths {
		if m.IsIgnored(path) {
			continue
		}
		key, err := FieldPath(domain, path)
		if err != nil {
			return nil, err
		}
		value := probeValue(example.Probe, path)
		if s, ok := value.(string); ok && (m.StringMatching != query.MatchExact || m.IgnoreCase) {
			conditions = append(conditions, bson.D{{Key: key, Value: stringRegex(m.StringMatching, m.IgnoreCase, s)}})
			continue
		}
		conditions = append(conditions, bson.D{{Key: key, Value: value}})
	}
	switch {
	case len(conditions) == 0:
		return bson.D{}, nil
	case m.MatchAny:
		return bson.D{{Key: "$or", Value: conditions}}, nil
	case len(conditions) == 1:
		return conditions[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: conditions}}, nil
}

func stringRegex(matching query.StringMatching, ignoreCase bool, s string) primitive.Regex {
	pattern := regexp.QuoteMeta(s)
	switch matching {
	case query.MatchStarting:
		pattern = "^" + pattern
	case query.MatchEnding:
		pattern += "$"
	case query.MatchExact:
		pattern = "^" + pattern + "$"
	}
	r := primitive.Regex{Pattern: pattern}
	if ignoreCase {
		r.Options = "i"
	}
	return r
}

// probeValue gets a property of an example or document (nil if a pointer on the way is nil)
func probeValue(probe interface{}, path string) interface{} {
	if m, ok := probe.(map[string]interface{}); ok {
		var v interface{} = m
		for _, name := range strings.Split(path, ".") {
			if m, ok = v.(map[string]interface{}); !ok {
				return nil
			}
			v = m[name]
		}
		return v
	}
	v, ok := field.PathValue(reflect.ValueOf(probe), path)
	if !ok || !v.IsValid() {
		return nil
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// PredicateFilter makes a query filter from a predicate
func PredicateFilter(domain reflect.Type, p query.Predicate) (bson.D, error) {
	switch pred := p.(type) {
	case nil:
		return bson.D{}, nil
	case query.And:
		if len(pred) == 0 {
			return bson.D{}, nil
		}
		list, err := predicateList(domain, pred)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$and", Value: list}}, nil
	case query.Or:
		list, err := predicateList(domain, pred)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$or", Value: list}}, nil
	case query.Not:
		inner, err := PredicateFilter(domain, pred.Predicate)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: bson.A{inner}}}, nil
	case query.Comparison:
		return comparisonFilter(domain, pred)
	}
	return nil, fmt.Errorf("unknown predicate %T", p)
}

func predicateList(domain reflect.Type, list []query.Predicate) (bson.A, error) {
	r := make(bson.A, 0, len(list))
	for _, p := range list {
		d, err := PredicateFilter(domain, p)
		if err != nil {
			return nil, err
		}
		r = append(r, d)
	}
	return r, nil
}

var operators = map[query.Op]string{
	query.Eq:  "$eq",
	query.Ne:  "$ne",
	query.Gt:  "$gt",
	query.Gte: "$gte",
	query.Lt:  "$lt",
	query.Lte: "$lte",
}

func comparisonFilter(domain reflect.Type, c query.Comparison) (bson.D, error) {
	key, err := FieldPath(domain, c.Path)
	if err != nil {
		return nil, err
	}
	if c.Op == query.In {
		return bson.D{{Key: key, Value: bson.D{{Key: "$in", Value: bson.A(c.Values)}}}}, nil
	}
	if len(c.Values) != 1 {
		return nil, fmt.Errorf("comparison %s needs one value", c)
	}
	value := c.Values[0]
	if op, ok := operators[c.Op]; ok {
		return bson.D{{Key: key, Value: bson.D{{Key: op, Value: value}}}}, nil
	}

	s := fmt.Sprint(value)
	var r primitive.Regex
	switch c.Op {
	case query.Contains:
		r = stringRegex(query.MatchContaining, false, s)
	case query.StartsWith:
		r = stringRegex(query.MatchStarting, false, s)
	case query.EndsWith:
		r = stringRegex(query.MatchEnding, false, s)
	case query.EqIgnoreCase:
		r = stringRegex(query.MatchExact, true, s)
	default:
		return nil, fmt.Errorf("unknown operator %q", c.Op)
	}
	return bson.D{{Key: key, Value: r}}, nil
}

// Projection makes a projection document including the properties (nil means all properties)
func Projection(domain reflect.Type, properties []string) (bson.D, error) {
	if properties == nil {
		return nil, nil
	}
	r := bson.D{}
	for _, p := range properties {
		key, err := FieldPath(domain, p)
		if err != nil {
			return nil, err
		}
		r = append(r, bson.E{Key: key, Value: 1})
	}
	return r, nil
}

// SortDocument makes a sort document.  If reverse is true the directions are swapped.
func SortDocument(domain reflect.Type, sort query.Sort, reverse bool) (bson.D, error) {
	r := bson.D{}
	for _, o := range sort {
		key, err := FieldPath(domain, o.Property)
		if err != nil {
			return nil, err
		}
		dir := 1
		if o.Descending != reverse {
			dir = -1
		}
		r = append(r, bson.E{Key: key, Value: dir})
	}
	return r, nil
}

// KeysetFilter makes a filter of the documents after (forward) or before (backward) the keys in the sort order:
// {$or: [{k1: {$gt: v1}}, {k1: v1, k2: {$gt: v2}}, ...]}
func KeysetFilter(domain reflect.Type, sort query.Sort, keys map[string]interface{}, forward bool) (bson.D, error) {
	var or bson.A
	for i, o := range sort {
		cond := bson.D{}
		for _, prev := range sort[:i] {
			key, err := FieldPath(domain, prev.Property)
			if err != nil {
				return nil, err
			}
			cond = append(cond, bson.E{Key: key, Value: keys[prev.Property]})
		}
		key, err := FieldPath(domain, o.Property)
		if err != nil {
			return nil, err
		}
		op := "$gt"
		if o.Descending == forward {
			op = "$lt"
		}
		cond = append(cond, bson.E{Key: key, Value: bson.D{{Key: op, Value: keys[o.Property]}}})
		or = append(or, cond)
	}
	if len(or) == 0 {
		return bson.D{}, nil
	}
	return bson.D{{Key: "$or", Value: or}}, nil
}
