package graphqltest

// match.go compares values of a response with expected JSON and expected entities

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/google/go-cmp/cmp"
)

// MatchesJSON fails if the value does not match the expected JSON.  The match is lenient: objects may have fields
// that are not expected and the order of list elements is ignored (but lists must have the same length).
func (p *Path) MatchesJSON(expected string) *Path {
	p.matchJSON(expected, false)
	return p
}

// MatchesJSONStrictly fails if the value does not match the expected JSON exactly, apart from white space
// and the order of object fields
func (p *Path) MatchesJSONStrictly(expected string) *Path {
	p.matchJSON(expected, true)
	return p
}

func (p *Path) matchJSON(expected string, strict bool) {
	if !p.exists() {
		p.r.fail("No value at JSON path %q to match %s", p.path, expected)
		return
	}
	want, err := decodeJSON(expected)
	if err != nil {
		p.r.fail("Failed to parse expected JSON %s: %v", expected, err)
		return
	}
	got, err := decodeJSON(p.raw())
	if err != nil {
		p.r.fail("Failed to parse JSON at path %q %s: %v", p.path, p.raw(), err)
		return
	}
	if !jsonMatches(want, got, strict) {
		p.r.fail("JSON at path %q does not match (-expected +actual):\n%s", p.path, diff(want, got))
	}
}

func decodeJSON(s string) (interface{}, error) {
	return graphql.DecodeValue([]byte(s))
}

// jsonMatches compares decoded JSON values (see MatchesJSON and MatchesJSONStrictly)
func jsonMatches(expected, actual interface{}, strict bool) bool {
	switch want := expected.(type) {
	case map[string]interface{}:
		got, ok := actual.(map[string]interface{})
		if !ok || (strict && len(got) != len(want)) {
			return false
		}
		for k, v := range want {
			gv, ok := got[k]
			if !ok || !jsonMatches(v, gv, strict) {
				return false
			}
		}
		return true

	case []interface{}:
		got, ok := actual.([]interface{})
		if !ok || len(got) != len(want) {
			return false
		}
		if strict {
			for i := range want {
				if !jsonMatches(want[i], got[i], strict) {
					return false
				}
			}
			return true
		}
		return matchUnordered(want, got, make([]bool, len(got)))

	case int64:
		switch g := actual.(type) {
		case int64:
			return g == want
		case float64:
			return g == float64(want)
		}
		return false

	case float64:
		switch g := actual.(type) {
		case int64:
			return float64(g) == want
		case float64:
			return g == want
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

// matchUnordered finds a different element of actual matching each element of expected, backtracking
// if a lenient match of one element prevents others from matching
func matchUnordered(expected, actual []interface{}, used []bool) bool {
	if len(expected) == 0 {
		return true
	}
	for i, v := range actual {
		if used[i] || !jsonMatches(expected[0], v, false) {
			continue
		}
		used[i] = true
		if matchUnordered(expected[1:], actual, used) {
			return true
		}
		used[i] = false
	}
	return false
}

// diff shows the differences between values for failure messages
func diff(expected, actual interface{}) (r string) {
	defer func() {
		if recover() != nil {
			r = "expected: " + show(expected) + "\nactual:   " + show(actual)
		}
	}()
	return cmp.Diff(expected, actual, cmp.Exporter(func(reflect.Type) bool { return true }))
}

func show(v interface{}) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return reflect.ValueOf(v).String()
	}
	return string(bytes.TrimSpace(buf.Bytes()))
}
