package gqlkit_test

// End-to-end tests (also see lower-level tests in the engine, web, data and graphqltest packages)

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/andrewwphillips/gqlkit"
	"github.com/andrewwphillips/gqlkit/data/memory"
	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/andrewwphillips/gqlkit/graphqltest"
	"github.com/andrewwphillips/gqlkit/web"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

type Book struct {
	ID     string `graphql:"id"`
	Title  string
	Author string
}

const bookSchema = `
type Query {
  book(id: ID): Book
  books(author: String): [Book!]!
  bookPages(first: Int, after: String): BookConnection!
  count: Int!
}
type Book { id: ID!  title: String!  author: String! }
`

func newBooks(t *testing.T) *memory.Repository {
	books := memory.New(Book{})
	require.NoError(t, books.Save(Book{"1", "Dune", "Herbert"}, Book{"2", "Emma", "Austen"}, Book{"3", "Persuasion", "Austen"}))
	return books
}

// TestQuery performs high-level (end to end) tests of GraphQL queries served by a handler made with MustRun
func TestQuery(t *testing.T) {
	count := map[string]map[string]engine.DataFetcher{
		"Query": {"count": engine.DataFetcherFunc(func(env *engine.Environment) (interface{}, error) { return 42, nil })},
	}
	h := gqlkit.MustRun(bookSchema, newBooks(t), count)

	tests := map[string]struct {
		query    string
		path     string
		expected string // JSON
	}{
		"one":      {`{ book(id: "2") { title author } }`, "book", `{"title":"Emma","author":"Austen"}`},
		"none":     {`{ book(id: "9") { title } }`, "book", `null`},
		"many":     {`{ books(author: "Austen") { title } }`, "books[*].title", `["Emma","Persuasion"]`},
		"all":      {`{ books { id } }`, "books[*].id", `["1","2","3"]`},
		"fetcher":  {`{ count }`, "count", `42`},
		"page":     {`{ bookPages(first: 2) { edges { node { title } } pageInfo { hasNextPage } } }`, "bookPages", `{"edges":[{"node":{"title":"Dune"}},{"node":{"title":"Emma"}}],"pageInfo":{"hasNextPage":true}}`},
	}

	builder := graphqltest.NewHTTPHandlerBuilder(h)
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			builder.Build(t).Document(test.query).ExecuteAndVerify().Path(test.path).MatchesJSONStrictly(test.expected)
		})
	}
}

func TestScroll(t *testing.T) {
	h := gqlkit.MustRun(bookSchema, newBooks(t))
	tester := graphqltest.NewHTTPHandlerBuilder(h).Build(t)

	var cursor string
	tester.Document(`{ bookPages(first: 2) { pageInfo { endCursor } } }`).
		ExecuteAndVerify().
		Path("bookPages.pageInfo.endCursor").
		Entity(&cursor).
		Matches(func(v interface{}) bool { return v.(string) != "" })

	tester.Document(`query($after: String) { bookPages(first: 2, after: $after) { edges { node { title } } pageInfo { hasNextPage } } }`).
		Variable("after", cursor).
		ExecuteAndVerify().
		Path("bookPages").
		MatchesJSONStrictly(`{"edges":[{"node":{"title":"Persuasion"}}],"pageInfo":{"hasNextPage":false}}`)
}

func TestSchema(t *testing.T) {
	sdl, err := gqlkit.New(bookSchema).Schema()
	require.NoError(t, err)
	assert.Contains(t, sdl, "type BookConnection")
	assert.Contains(t, sdl, "type BookEdge")
	assert.Contains(t, sdl, "type PageInfo")

	_, err = gqlkit.New().Schema()
	assert.Error(t, err)

	_, err = gqlkit.New(`type Query { bad: Nope }`).Service()
	assert.Error(t, err)
}

func TestDataFetcherPrecedence(t *testing.T) {
	k := gqlkit.New(bookSchema).
		Repository(newBooks(t)).
		DataFetcherFunc("Query", "book", func(env *engine.Environment) (interface{}, error) {
			return Book{ID: "0", Title: "Registered"}, nil
		})
	service, err := k.Service()
	require.NoError(t, err)

	tester := graphqltest.NewServiceBuilder(service).Build(t)
	tester.Document(`{ book(id: "1") { title } }`).ExecuteAndVerify().Path("book.title").MatchesJSON(`"Registered"`)
	tester.Document(`{ books(author: "Herbert") { title } }`).ExecuteAndVerify().Path("books[*].title").MatchesJSON(`["Dune"]`)
}

func TestOptions(t *testing.T) {
	secret := []byte("shh")
	var claims jwt.MapClaims
	k := gqlkit.New(bookSchema).
		Repository(newBooks(t)).
		DataFetcherFunc("Query", "count", func(env *engine.Environment) (interface{}, error) {
			claims, _ = web.ClaimsFromContext(env.Context)
			return 1, nil
		}).
		SetOptions(
			gqlkit.NoIntrospection(true),
			gqlkit.DocumentCacheSize(0),
			gqlkit.JWTSecret(secret),
			gqlkit.PingFrequency(time.Minute),
		)
	h, err := k.Handler()
	require.NoError(t, err)

	token, err := web.NewToken(secret, jwt.MapClaims{"sub": "jane"})
	require.NoError(t, err)
	builder := graphqltest.NewHTTPHandlerBuilder(h)

	builder.Build(t).Document(`{ __schema { queryType { name } } }`).Execute().
		Errors().
		Expect(func(e graphql.ResponseError) bool { return strings.Contains(e.Message, "introspection") }).
		Verify()

	builder.Build(t).Mutate().Header("Authorization", "Bearer "+token).Build(t).
		Document(`{ count }`).ExecuteAndVerify().Path("count").MatchesJSON(`1`)
	assert.Equal(t, "jane", claims["sub"])

	builder.Build(t).Mutate().Header("Authorization", "Bearer nonsense").Build(t).
		Document(`{ count }`).Execute().
		Errors().
		Expect(func(e graphql.ResponseError) bool { return e.Classification == graphql.Unauthorized }).
		Verify()
}

func TestMustRunPanics(t *testing.T) {
	tests := map[string]struct {
		sdl    string
		params []interface{}
	}{
		"bad_param":  {bookSchema, []interface{}{42}},
		"bad_schema": {`type Query {`, nil},
	}
	for name, test := range tests {
		func() {
			defer func() {
				Assertf(t, recover() != nil, "%12s: expected panic", name)
			}()
			gqlkit.MustRun(test.sdl, test.params...)
		}()
	}
}

const librarySchema = `
type Query {
  author(name: String): Author
  authors(country: String): [Author!]!
}
enum Genre { NOVEL POETRY }
type Author {
  name: String!
  born: DateTime
  country: String
  genres: [Genre!]
  books(first: Int): [Book]
  editor: Author
  publisher: Publisher
  _rank: Int
}
type Publisher { name: String! city: String }
type Book { title: String! }
scalar DateTime
`

func TestStructType(t *testing.T) {
	s, gqlErr := gqlparser.LoadSchema(&ast.Source{Input: librarySchema})
	require.Nil(t, gqlErr)

	author, err := gqlkit.StructType(s, "Author")
	require.NoError(t, err)
	fields := map[string]string{}
	for i := 0; i < author.NumField(); i++ {
		f := author.Field(i)
		typ := f.Type.String()
		if f.Type.Kind() == reflect.Ptr && f.Type.Elem().Kind() == reflect.Struct {
			typ = "*struct"
		}
		fields[f.Tag.Get("graphql")] = f.Name + " " + typ
	}
	assert.Equal(t, map[string]string{
		"name":      "Name string",
		"born":      "Born time.Time",
		"country":   "Country string",
		"genres":    "Genres []string",
		"editor":    "Editor interface {}",
		"publisher": "Publisher *struct",
		"_rank":     "X_rank int64",
	}, fields)

	errorTests := map[string]struct {
		typeName string
		expected string
	}{
		"missing": {"Nope", `type "Nope" is not in the schema`},
		"enum":    {"Genre", `type "Genre" is not an object type (ENUM)`},
	}
	for name, test := range errorTests {
		_, err := gqlkit.StructType(s, test.typeName)
		Assertf(t, err != nil && err.Error() == test.expected, "%8s: expected error %q, got %v", name, test.expected, err)
	}
}

func TestMemoryRepository(t *testing.T) {
	k := gqlkit.New(librarySchema)
	authors, err := k.MemoryRepository("Author")
	require.NoError(t, err)

	entities, err := gqlkit.Entities(authors.DomainType(), []interface{}{
		map[string]interface{}{"name": "Jane Austen", "born": "1775-12-16T00:00:00Z", "country": "UK", "genres": []string{"NOVEL"},
			"publisher": map[string]interface{}{"name": "Egerton"}},
		map[string]interface{}{"name": "Emily Dickinson", "country": "US", "genres": []string{"POETRY"}},
	})
	require.NoError(t, err)
	require.NoError(t, authors.Save(entities...))

	service, err := k.Service()
	require.NoError(t, err)
	tester := graphqltest.NewServiceBuilder(service).Build(t)

	tester.Document(`{ author(name: "Jane Austen") { born genres publisher { name city } } }`).
		ExecuteAndVerify().
		Path("author").
		MatchesJSONStrictly(`{"born":"1775-12-16T00:00:00Z","genres":["NOVEL"],"publisher":{"name":"Egerton","city":""}}`)

	var names []string
	tester.Document(`{ authors(country: "US") { name } }`).
		ExecuteAndVerify().
		Path("authors[*].name").
		EntityList(&names).
		HasSize(1).
		Contains("Emily Dickinson")

	_, err = gqlkit.Entities(reflect.TypeOf(""), nil)
	assert.Error(t, err)
	_, err = gqlkit.Entities(authors.DomainType(), []interface{}{map[string]interface{}{"born": "yesterday"}})
	assert.Error(t, err)
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
