package gqlkit

// run.go provides the MustRun function for quickly creating a GraphQL http handler

import (
	"fmt"
	"net/http"

	"github.com/andrewwphillips/gqlkit/data/query"
	"github.com/andrewwphillips/gqlkit/engine"
)

// MustRun creates an http handler that handles GraphQL requests, panicking if the schema is bad.
// It is a variadic function so can take any number of parameters after the schema, which may be
// any of these, in any order:
//
//	string = more SDL (type definitions or extensions)
//	query.Repository = a repository serving Query fields of its type (see Kit.Repository)
//	map[string]map[string]engine.DataFetcher = data fetchers keyed by type name then field name
//	func(*options) = an option such as NoIntrospection(true)
func MustRun(sdl string, params ...interface{}) http.Handler {
	k := New(sdl)
	for _, param := range params {
		switch p := param.(type) {
		case string:
			k.AddSchema(p)
		case query.Repository:
			k.Repository(p)
		case map[string]map[string]engine.DataFetcher:
			for typeName, fetchers := range p {
				for fieldName, f := range fetchers {
					k.DataFetcher(typeName, fieldName, f)
				}
			}
		case func(*options):
			k.SetOptions(p)
		default:
			panic(fmt.Sprintf("MustRun parameter of type %T not expected", param))
		}
	}
	h, err := k.Handler()
	if err != nil {
		panic(err)
	}
	return h
}
