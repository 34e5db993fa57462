package memory

// match.go decides if an entity matches an example or satisfies a predicate

import (
	"fmt"
	"strings"

	"github.com/andrewwphillips/gqlkit/data/query"
)

// matchExample returns true if the entity has the same values as the example for the set (non-ignored) properties
func matchExample(example query.Example, entity interface{}) bool {
	m := example.Matcher
	matched, checked := 0, 0
	for _, path := range example.Paths {
		if m.IsIgnored(path) {
			continue
		}
		checked++
		want, _ := valueAt(example.Probe, path)
		got, ok := valueAt(entity, path)
		if ok && matchValue(m, want, got) {
			matched++
			if m.MatchAny {
				return true
			}
		} else if !m.MatchAny {
			return false
		}
	}
	return checked == 0 || matched == checked || (m.MatchAny && matched > 0)
}

func matchValue(m query.ExampleMatcher, want, got interface{}) bool {
	ws, wok := want.(string)
	gs, gok := toString(got)
	if !wok || !gok {
		return equal(want, got)
	}
	if m.IgnoreCase {
		ws, gs = strings.ToLower(ws), strings.ToLower(gs)
	}
	switch m.StringMatching {
	case query.MatchContaining:
		return strings.Contains(gs, ws)
	case query.MatchStarting:
		return strings.HasPrefix(gs, ws)
	case query.MatchEnding:
		return strings.HasSuffix(gs, ws)
	}
	return gs == ws
}

// evaluate returns true if the entity satisfies the predicate (a nil predicate is always satisfied)
func evaluate(p query.Predicate, entity interface{}) (bool, error) {
	switch pred := p.(type) {
	case nil:
		return true, nil
	case query.And:
		for _, sub := range pred {
			if ok, err := evaluate(sub, entity); err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case query.Or:
		for _, sub := range pred {
			if ok, err := evaluate(sub, entity); err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case query.Not:
		ok, err := evaluate(pred.Predicate, entity)
		return !ok, err
	case query.Comparison:
		got, _ := valueAt(entity, pred.Path)
		return evaluateComparison(pred, got)
	}
	return false, fmt.Errorf("unknown predicate %T", p)
}

func evaluateComparison(c query.Comparison, got interface{}) (bool, error) {
	if c.Op == query.In {
		for _, v := range c.Values {
			if equal(v, got) {
				return true, nil
			}
		}
		return false, nil
	}
	if len(c.Values) != 1 {
		return false, fmt.Errorf("comparison %s needs one value", c)
	}
	want := c.Values[0]
	switch c.Op {
	case query.Eq:
		return equal(want, got), nil
	case query.Ne:
		return !equal(want, got), nil
	case query.Gt, query.Gte, query.Lt, query.Lte:
		if got == nil || want == nil {
			return false, nil
		}
		cmp, ok := compare(got, want)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case query.Gt:
			return cmp > 0, nil
		case query.Gte:
			return cmp >= 0, nil
		case query.Lt:
			return cmp < 0, nil
		}
		return cmp <= 0, nil
	}

	gs, gok := toString(got)
	ws, wok := toString(want)
	if !gok || !wok {
		return false, nil
	}
	switch c.Op {
	case query.Contains:
		return strings.Contains(gs, ws), nil
	case query.StartsWith:
		return strings.HasPrefix(gs, ws), nil
	case query.EndsWith:
		return strings.HasSuffix(gs, ws), nil
	case query.EqIgnoreCase:
		return strings.EqualFold(gs, ws), nil
	}
	return false, fmt.Errorf("unknown operator %q", c.Op)
}
