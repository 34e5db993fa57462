package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

const (
	stringSchema    = "type Query { message: String! }"
	listSchema      = "type Query { values: [Int!] }"
	nestedSchema    = "type Query { n: N! } type N { q: Boolean! p: Boolean! }"
	argsSchema      = "type Query { dbl(v: Int!): Int! }"
	defaultSchema   = "type Query { f(i: Int! = 87, s: String! = \"ijk\"): String! }"
	enumSchema      = "type Query { colour: Colour! all: [Colour!]! } enum Colour { RED GREEN BLUE }"
	interfaceSchema = "type Query { a: X! } interface X { x1: Int! } type D implements X { x1: Int! e: String! }"
	unionSchema     = "type Query { c: [U] } type U1 { v: Int! } type U2 { v: Int! w: String! } union U = U1 | U2"
	nullSchema      = "type Query { o: O } type O { a: String b: String! }"
)

type (
	// D implements interface X
	D struct {
		X1 int
		E  string
	}
	U1 struct{ V int }
	U2 struct {
		V int
		W string
	}

	// getter has methods called by the property fetcher
	getter struct{ n int }

	// JsonObject is what json.Unmarshal produces when it decodes a JSON object.
	JsonObject = map[string]interface{}
)

func (g getter) Message() string                           { return "n=" + strconv.Itoa(g.n) }
func (g getter) Values(ctx context.Context) ([]int, error) { return []int{g.n, g.n * 2}, nil }

// run executes a query against a schema whose root value is data, returning the decoded JSON response
func run(t *testing.T, sdl string, wiring *engine.Wiring, data interface{}, query string, variables string,
	options ...func(*engine.Service),
) JsonObject {
	t.Helper()
	schema, err := engine.NewSchema(wiring, sdl)
	require.NoError(t, err, "loading schema")
	request := graphql.NewExecutionRequest(graphql.Request{Document: query})
	if variables != "" {
		request.Variables, err = graphql.DecodeOrdered([]byte(variables))
		require.NoError(t, err)
	}
	s := engine.New(schema, append([]func(*engine.Service){engine.RootValue(data)}, options...)...)
	r, err := s.Execute(context.Background(), request)
	require.NoError(t, err)
	buf, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded JsonObject
	require.NoError(t, json.Unmarshal(buf, &decoded))
	return decoded
}

// TestQuery runs tests for "normal" GraphQL queries (ie no errors)
func TestQuery(t *testing.T) {
	happyData := map[string]struct {
		schema    string      // GraphQL schema
		wiring    func() *engine.Wiring
		data      interface{} // root value
		query     string      // GraphQL query to send to the service (query syntax)
		variables string      // GraphQL variables to use with the query (JSON)

		expected interface{} // expected "data" after decoding the returned JSON
	}{
		"String": {
			stringSchema, nil, struct{ Message string }{"hello"}, `{ message }`, "",
			JsonObject{"message": "hello"},
		},
		"Map": {
			stringSchema, nil, map[string]interface{}{"message": "from map"}, `{ message }`, "",
			JsonObject{"message": "from map"},
		},
		"Getter": {
			stringSchema, nil, getter{3}, `{ message }`, "",
			JsonObject{"message": "n=3"},
		},
		"GetterContext": {
			listSchema, nil, getter{4}, `{ values }`, "",
			JsonObject{"values": []interface{}{4.0, 8.0}},
		},
		"Slice": {
			listSchema, nil, struct{ Values []int }{[]int{1, 8, 3}}, `{ values }`, "",
			JsonObject{"values": []interface{}{1.0, 8.0, 3.0}},
		},
		"EmptySlice": {
			listSchema, nil, struct{ Values []int }{[]int{}}, `{ values }`, "",
			JsonObject{"values": []interface{}{}},
		},
		"NilSlice": {
			listSchema, nil, struct{ Values []int }{}, `{ values }`, "",
			JsonObject{"values": nil},
		},
		"Nested": {
			nestedSchema, nil, struct{ N struct{ P, Q bool } }{struct{ P, Q bool }{true, false}}, `{ n { p q } }`, "",
			JsonObject{"n": JsonObject{"p": true, "q": false}},
		},
		"Alias": {
			stringSchema, nil, struct{ Message string }{"hi"}, `{ a: message b: message }`, "",
			JsonObject{"a": "hi", "b": "hi"},
		},
		"Typename": {
			stringSchema, nil, struct{ Message string }{"hi"}, `{ __typename }`, "",
			JsonObject{"__typename": "Query"},
		},
		"Argument": {
			argsSchema, func() *engine.Wiring {
				return engine.NewWiring().DataFetcherFunc("Query", "dbl", func(env *engine.Environment) (interface{}, error) {
					return 2 * env.Arguments["v"].(int64), nil
				})
			}, nil, `{ dbl(v: 21) }`, "",
			JsonObject{"dbl": 42.0},
		},
		"Variable": {
			argsSchema, func() *engine.Wiring {
				return engine.NewWiring().DataFetcherFunc("Query", "dbl", func(env *engine.Environment) (interface{}, error) {
					return 2 * env.Arguments["v"].(int64), nil
				})
			}, nil, `query ($x: Int!) { dbl(v: $x) }`, `{"x": 5}`,
			JsonObject{"dbl": 10.0},
		},
		"Defaults": {
			defaultSchema, func() *engine.Wiring {
				return engine.NewWiring().DataFetcherFunc("Query", "f", func(env *engine.Environment) (interface{}, error) {
					return fmt.Sprintf("%s/%d", env.Arguments["s"], env.Arguments["i"]), nil
				})
			}, nil, `{ f(s: "abc") }`, "",
			JsonObject{"f": "abc/87"},
		},
		"Skip": {
			"type Query { m: String! v: Int! }", nil, struct {
				M string
				V int
			}{"mmm", 43}, `{ m @skip(if: true) v @include(if: true) }`, "",
			JsonObject{"v": 43.0},
		},
		"EnumString": {
			enumSchema, nil, struct {
				Colour string
				All    []string
			}{"GREEN", []string{"BLUE", "RED"}}, `{ colour all }`, "",
			JsonObject{"colour": "GREEN", "all": []interface{}{"BLUE", "RED"}},
		},
		"EnumIndex": {
			enumSchema, nil, struct {
				Colour int
				All    []int
			}{2, []int{0, 1}}, `{ colour all }`, "",
			JsonObject{"colour": "BLUE", "all": []interface{}{"RED", "GREEN"}},
		},
		"Interface": {
			interfaceSchema, nil, struct{ A interface{} }{D{4, "fff"}}, `{ a { x1 ... on D { e } } }`, "",
			JsonObject{"a": JsonObject{"x1": 4.0, "e": "fff"}},
		},
		"Union": {
			unionSchema, nil, struct{ C []interface{} }{[]interface{}{U1{1}, &U2{2, "two"}}},
			`{ c { __typename ... on U1 { v } ... on U2 { v w } } }`, "",
			JsonObject{"c": []interface{}{
				JsonObject{"__typename": "U1", "v": 1.0},
				JsonObject{"__typename": "U2", "v": 2.0, "w": "two"},
			}},
		},
		"UnionMap": {
			unionSchema, nil, map[string]interface{}{"c": []interface{}{map[string]interface{}{"__typename": "U2", "v": 7, "w": "x"}}},
			`{ c { ...f } } fragment f on U2 { w }`, "",
			JsonObject{"c": []interface{}{JsonObject{"w": "x"}}},
		},
		"TypeResolver": {
			unionSchema, func() *engine.Wiring {
				return engine.NewWiring().TypeResolver("U", func(ctx context.Context, value interface{}, _ *ast.Definition) (string, error) {
					return "U1", nil
				})
			}, struct{ C []interface{} }{[]interface{}{struct{ V int }{9}}}, `{ c { ... on U1 { v } } }`, "",
			JsonObject{"c": []interface{}{JsonObject{"v": 9.0}}},
		},
	}

	for name, testData := range happyData {
		t.Run(name, func(t *testing.T) {
			var wiring *engine.Wiring
			if testData.wiring != nil {
				wiring = testData.wiring()
			}
			result := run(t, testData.schema, wiring, testData.data, testData.query, testData.variables)
			Assertf(t, result["errors"] == nil, "%6s: expected no error, got %v", name, result["errors"])
			Assertf(t, reflect.DeepEqual(result["data"], testData.expected), "%6s: expected %v, got %v",
				name, testData.expected, result["data"])
		})
	}
}

func TestResponseOrder(t *testing.T) {
	data := struct {
		A, B, C, D string
	}{"a", "b", "c", "d"}
	schema := engine.MustSchema(nil, "type Query { a: String b: String c: String d: String }")
	s := engine.New(schema, engine.RootValue(data))
	r, err := s.Execute(context.Background(), graphql.NewExecutionRequest(graphql.Request{Document: `{ d b c a }`}))
	require.NoError(t, err)
	buf, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"d":"d","b":"b","c":"c","a":"a"}}`, string(buf))
}

// TestErrors checks errors and null propagation
func TestErrors(t *testing.T) {
	boom := errors.New("boom")
	errorData := map[string]struct {
		schema string
		wiring func() *engine.Wiring
		data   interface{}
		query  string

		expectedData  interface{}
		dataPresent   bool
		errorContains string
		errorPath     []interface{}
		class         string
	}{
		"Syntax": {
			stringSchema, nil, nil, `{ message `,
			nil, false, "Expected Name", nil, "InvalidSyntax",
		},
		"UnknownField": {
			stringSchema, nil, nil, `{ messages }`,
			nil, false, "Cannot query field", nil, "ValidationError",
		},
		"NullableFetchError": {
			nullSchema, func() *engine.Wiring {
				return engine.NewWiring().DataFetcherFunc("O", "a", func(env *engine.Environment) (interface{}, error) {
					return nil, boom
				})
			}, struct{ O struct{ B string } }{struct{ B string }{"b"}}, `{ o { a b } }`,
			JsonObject{"o": JsonObject{"a": nil, "b": "b"}}, true, "boom", []interface{}{"o", "a"}, "INTERNAL_ERROR",
		},
		"NonNullPropagates": {
			nullSchema, func() *engine.Wiring {
				return engine.NewWiring().DataFetcherFunc("O", "b", func(env *engine.Environment) (interface{}, error) {
					return nil, nil
				})
			}, struct{ O struct{ A string } }{struct{ A string }{"a"}}, `{ o { a b } }`,
			JsonObject{"o": nil}, true, "non null type", []interface{}{"o", "b"}, "NullValueInNonNullableField",
		},
		"PropagateToRoot": {
			stringSchema, func() *engine.Wiring {
				return engine.NewWiring().DataFetcherFunc("Query", "message", func(env *engine.Environment) (interface{}, error) {
					return nil, graphql.ResponseError{Message: "not here", Classification: graphql.NotFound}
				})
			}, nil, `{ message }`,
			nil, true, "not here", []interface{}{"message"}, "NOT_FOUND",
		},
		"Panic": {
			nullSchema, func() *engine.Wiring {
				return engine.NewWiring().DataFetcherFunc("Query", "o", func(env *engine.Environment) (interface{}, error) {
					panic("oops")
				})
			}, nil, `{ o { a } }`,
			JsonObject{"o": nil}, true, "panic oops", []interface{}{"o"}, "INTERNAL_ERROR",
		},
		"BadEnum": {
			enumSchema, nil, struct {
				Colour string
				All    []string
			}{"PINK", nil}, `{ colour }`,
			nil, true, "not a value of enum", []interface{}{"colour"}, "DataFetchingException",
		},
		"Mutation": {
			stringSchema, nil, nil, `mutation { message }`,
			nil, false, "", nil, "",
		},
	}

	for name, testData := range errorData {
		t.Run(name, func(t *testing.T) {
			var wiring *engine.Wiring
			if testData.wiring != nil {
				wiring = testData.wiring()
			}
			result := run(t, testData.schema, wiring, testData.data, testData.query, "")
			_, present := result["data"]
			Assertf(t, present == testData.dataPresent, "%6s: expected data present %v, got %v", name, testData.dataPresent, present)
			Assertf(t, reflect.DeepEqual(result["data"], testData.expectedData), "%6s: expected data %v, got %v",
				name, testData.expectedData, result["data"])

			errs, _ := result["errors"].([]interface{})
			require.NotEmpty(t, errs, "expected an error")
			first := errs[0].(JsonObject)
			Assertf(t, strings.Contains(first["message"].(string), testData.errorContains),
				"%6s: expected error containing %q, got %q", name, testData.errorContains, first["message"])
			if testData.errorPath != nil {
				Assertf(t, reflect.DeepEqual(first["path"], testData.errorPath), "%6s: expected path %v, got %v",
					name, testData.errorPath, first["path"])
				Assertf(t, first["locations"] != nil, "%6s: expected error location", name)
			}
			if testData.class != "" {
				ext, _ := first["extensions"].(JsonObject)
				Assertf(t, ext != nil && ext["classification"] == testData.class, "%6s: expected classification %q, got %v",
					name, testData.class, ext)
			}
		})
	}
}

func TestExceptionResolver(t *testing.T) {
	wiring := engine.NewWiring().DataFetcherFunc("Query", "message", func(env *engine.Environment) (interface{}, error) {
		return nil, errors.New("denied")
	})
	resolver := func(err error, env *engine.Environment) []graphql.ResponseError {
		if err.Error() != "denied" {
			return nil
		}
		return []graphql.ResponseError{{Message: "access denied", Classification: graphql.Forbidden}}
	}
	result := run(t, "type Query { message: String }", wiring, nil, `{ message }`, "", engine.ExceptionResolvers(resolver))
	errs := result["errors"].([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(JsonObject)
	assert.Equal(t, "access denied", first["message"])
	assert.Equal(t, []interface{}{"message"}, first["path"])
	assert.Equal(t, "FORBIDDEN", first["extensions"].(JsonObject)["classification"])
}

func TestMutationSerial(t *testing.T) {
	var order []string
	add := func(name string) engine.DataFetcherFunc {
		return func(env *engine.Environment) (interface{}, error) {
			time.Sleep(time.Duration(len(order)) * time.Millisecond)
			order = append(order, name)
			return true, nil
		}
	}
	wiring := engine.NewWiring().
		DataFetcher("Mutation", "a", add("a")).
		DataFetcher("Mutation", "b", add("b")).
		DataFetcher("Mutation", "c", add("c"))
	result := run(t, "type Query { q: Int } type Mutation { a: Boolean b: Boolean c: Boolean }", wiring, nil,
		`mutation { c a b }`, "")
	assert.Nil(t, result["errors"])
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestCancelled(t *testing.T) {
	schema := engine.MustSchema(nil, stringSchema)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := engine.New(schema, engine.RootValue(struct{ Message string }{"x"})).
		Execute(ctx, graphql.NewExecutionRequest(graphql.Request{Document: `{ message }`}))
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, graphql.ExecutionAborted, r.Errors[0].Classification)
	assert.Nil(t, r.Data)
}

func TestOperationName(t *testing.T) {
	schema := engine.MustSchema(nil, "type Query { m: String v: Int }")
	s := engine.New(schema, engine.RootValue(struct {
		M string
		V int
	}{"mmm", 3}))
	doc := `query A { m } query B { v }`

	r, err := s.Execute(context.Background(), graphql.NewExecutionRequest(graphql.Request{Document: doc, OperationName: "B"}))
	require.NoError(t, err)
	v, ok := r.Field("v")
	assert.True(t, ok)
	assert.EqualValues(t, 3, v)

	r, err = s.Execute(context.Background(), graphql.NewExecutionRequest(graphql.Request{Document: doc}))
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	assert.False(t, r.DataPresent)

	r, err = s.Execute(context.Background(), graphql.NewExecutionRequest(graphql.Request{Document: doc, OperationName: "C"}))
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Message, `"C"`)
}

func TestSelectionSet(t *testing.T) {
	var got []engine.SelectedField
	wiring := engine.NewWiring().DataFetcherFunc("Query", "books", func(env *engine.Environment) (interface{}, error) {
		got = env.SelectionSet()
		return nil, nil
	})
	run(t, "type Query { books: BookConnection } type BookConnection { edges: [Edge] } "+
		"type Edge { cursor: String node: Book } type Book { title: String isbn: String }",
		wiring, nil, `{ books { edges { node { title ...F } } } } fragment F on Book { isbn @include(if: false) title }`, "")
	assert.True(t, engine.Contains(got, "edges/node/title"))
	assert.False(t, engine.Contains(got, "edges/node/isbn"))
	assert.False(t, engine.Contains(got, "edges/cursor"))
}

func Assertf(t *testing.T, succeeded bool, format string, args ...interface{}) {
	const (
		succeed = "✓" // tick
		failed  = "X"
	)

	t.Helper()
	if !succeeded {
		t.Errorf("%s\t"+format, append([]interface{}{failed}, args...)...)
	} else {
		t.Logf("%s\t"+format, append([]interface{}{succeed}, args...)...)
	}
}
