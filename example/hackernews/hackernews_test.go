package main

import (
	"testing"

	"github.com/andrewwphillips/gqlkit/data/memory"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/andrewwphillips/gqlkit/graphqltest"
	"github.com/stretchr/testify/require"
)

func TestHackerNews(t *testing.T) {
	h, err := newKit(memory.New(Link{}), newUserStore()).Handler()
	require.NoError(t, err)
	builder := graphqltest.NewHTTPHandlerBuilder(h)
	tester := builder.Build(t)

	var payload struct {
		Token string
		User  struct{ ID, Name string }
	}
	tester.Document(`mutation { signup(email: "al@example.com", password: "pw", name: "Al") { token user { id name } } }`).
		ExecuteAndVerify().
		Path("signup").
		Entity(&payload).
		Matches(func(interface{}) bool { return payload.Token != "" && payload.User.Name == "Al" })

	tester.Document(`mutation { login(email: "al@example.com", password: "wrong") { token } }`).
		Execute().
		Errors().
		Expect(func(e graphql.ResponseError) bool { return e.Message == "invalid email or password" }).
		Verify()

	tester.Document(`mutation { post(url: "http://x.com", description: "anon") { id } }`).
		Execute().
		Errors().
		Expect(func(e graphql.ResponseError) bool { return e.Message == "you must be logged in to post" }).
		Verify()

	authorized := builder.Build(t).Mutate().Header("Authorization", "Bearer "+payload.Token).Build(t)
	var id string
	posted := authorized.Document(`mutation { post(url: "http://go.dev", description: "Go") { id postedBy { name } } }`).
		ExecuteAndVerify()
	posted.Path("post.postedBy.name").MatchesJSON(`"Al"`)
	posted.Path("post.id").Entity(&id)

	tester.Document(`query($id: ID!) { link(id: $id) { url } }`).
		Variable("id", id).
		ExecuteAndVerify().
		Path("link.url").MatchesJSON(`"http://go.dev"`)

	tester.Document(`query($user: ID) { feed(postedBy: {id: $user}, first: 10) { edges { node { description } } } }`).
		Variable("user", payload.User.ID).
		ExecuteAndVerify().
		Path("feed.edges[*].node.description").MatchesJSONStrictly(`["Go"]`)
}
