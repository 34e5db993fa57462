// Package gqlkit builds a GraphQL service from a schema written in SDL.
//
// Fields are served by data fetchers, either registered explicitly or generated for any
// repository serving the type of a Query field.  Fields returning an XConnection type are paged
// with cursors and the connection, edge and PageInfo types are added to the schema for you.
// For example, here is a complete GraphQL server keeping its books in memory:
//
//	package main
//
//	import (
//		"net/http"
//
//		"github.com/andrewwphillips/gqlkit"
//		"github.com/andrewwphillips/gqlkit/data/memory"
//	)
//
//	type Book struct {
//		ID     string
//		Title  string
//		Author string
//	}
//
//	func main() {
//		books := memory.New(Book{})
//		books.Save(Book{"1", "Dune", "Herbert"}, Book{"2", "Emma", "Austen"})
//		http.Handle("/graphql", gqlkit.MustRun(`
//			type Query { book(id: ID): Book  books(author: String): [Book!]!  bookPages(first: Int, after: String): BookConnection }
//			type Book { id: ID!  title: String!  author: String! }`, books))
//		http.ListenAndServe(":8080", nil)
//	}
//
// which answers queries like this:
//
//	{
//	  books(author: "Austen") { title }
//	  bookPages(first: 10) { edges { node { title } } pageInfo { hasNextPage endCursor } }
//	}
//
// The returned handler accepts JSON over HTTP (GET or POST), server-sent events for subscriptions and
// websockets using the graphql-transport-ws or graphql-ws protocols.
// The graphqltest package has testers for exercising a service or handler from Go tests.
package gqlkit
