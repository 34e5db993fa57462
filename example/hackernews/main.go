package main

import (
	"log"
	"net/http"
	"time"

	"github.com/andrewwphillips/gqlkit"
	"github.com/andrewwphillips/gqlkit/data/memory"
)

const (
	address = "localhost:8080"
	path    = "/graphql"
)

const schema = `
type Query {
  feed(postedBy: UserInput, first: Int, after: String): LinkConnection!
  link(id: ID!): Link
}
type Mutation {
  post(url: String!, description: String!): Link!
  signup(email: String!, password: String!, name: String!): AuthPayload
  login(email: String!, password: String!): AuthPayload
}
type Link { id: ID!  description: String!  url: String!  postedBy: User }
type User { id: ID!  name: String!  email: String! }
type AuthPayload { token: String  user: User }
input UserInput { id: ID  name: String }
`

// newKit creates the service with links kept in memory
func newKit(links *memory.Repository, users *userStore) *gqlkit.Kit {
	return gqlkit.New(schema).
		Repository(links).
		DataFetcherFunc("Mutation", "post", post(links, users)).
		DataFetcherFunc("Mutation", "signup", users.signup).
		DataFetcherFunc("Mutation", "login", users.login).
		SetOptions(gqlkit.JWTSecret([]byte(appSecret)))
}

func main() {
	h, err := newKit(memory.New(Link{}), newUserStore()).Handler()
	if err != nil {
		log.Fatalln(err)
	}
	http.Handle(path, http.TimeoutHandler(h, 15*time.Second, `{"errors":[{"message":"timeout"}]}`))

	log.Println("starting server on: http://" + address + path)
	log.Println(http.ListenAndServe(address, nil))
}
