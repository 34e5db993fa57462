package memory_test

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/andrewwphillips/gqlkit/data/memory"
	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/data/query"
	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type (
	Author struct {
		Name string
		Born int
	}
	Book struct {
		ID        string `graphql:"id"`
		Title     string
		Pages     int
		Published time.Time
		Author    *Author
	}
	Summary struct {
		Title string
		Pages int64
	}
)

func date(year int) time.Time { return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC) }

func newRepo(t *testing.T) *memory.Repository {
	repo := memory.New(Book{})
	require.NoError(t, repo.Save(
		Book{"1", "Dune", 412, date(1965), &Author{"Frank Herbert", 1920}},
		Book{"2", "Emma", 474, date(1815), &Author{"Jane Austen", 1775}},
		Book{"3", "Persuasion", 249, date(1817), &Author{"Jane Austen", 1775}},
		Book{"4", "Ulysses", 730, date(1922), nil},
	))
	return repo
}

func titles(list []interface{}) []string {
	r := []string{}
	for _, v := range list {
		switch b := v.(type) {
		case Book:
			r = append(r, b.Title)
		case Summary:
			r = append(r, b.Title)
		case map[string]interface{}:
			r = append(r, b["title"].(string))
		}
	}
	return r
}

func TestSave(t *testing.T) {
	repo := newRepo(t)
	assert.Equal(t, 4, repo.Len())
	require.NoError(t, repo.Save(Book{ID: "2", Title: "Emma (2nd ed)"}))
	assert.Equal(t, 4, repo.Len())
	assert.Error(t, repo.Save(Summary{}))

	got, err := repo.FindOne(context.Background(), query.Example{Probe: Book{ID: "2"}, Paths: []string{"id"}}, query.FetchSpec{})
	require.NoError(t, err)
	assert.Equal(t, "Emma (2nd ed)", got.(Book).Title)
}

func TestExample(t *testing.T) {
	exampleData := map[string]struct {
		example  query.Example
		sort     query.Sort
		expected []string
	}{
		"All":       {query.Example{Probe: Book{}}, nil, []string{"Dune", "Emma", "Persuasion", "Ulysses"}},
		"Exact":     {query.Example{Probe: Book{Title: "Emma"}, Paths: []string{"title"}}, nil, []string{"Emma"}},
		"Nested":    {query.Example{Probe: Book{Author: &Author{Born: 1775}}, Paths: []string{"author.born"}}, nil, []string{"Emma", "Persuasion"}},
		"NilParent": {query.Example{Probe: Book{Author: &Author{Name: "x"}}, Paths: []string{"author.name"}}, nil, []string{}},
		"Sorted":    {query.Example{Probe: Book{}}, query.Sort{query.Desc("pages")}, []string{"Ulysses", "Emma", "Dune", "Persuasion"}},
		"Time":      {query.Example{Probe: Book{Published: date(1817)}, Paths: []string{"published"}}, nil, []string{"Persuasion"}},
		"Containing": {query.Example{Probe: Book{Author: &Author{Name: "austen"}}, Paths: []string{"author.name"},
			Matcher: query.ExampleMatcher{StringMatching: query.MatchContaining, IgnoreCase: true}}, nil, []string{"Emma", "Persuasion"}},
		"Starting": {query.Example{Probe: Book{Title: "U"}, Paths: []string{"title"},
			Matcher: query.ExampleMatcher{StringMatching: query.MatchStarting}}, nil, []string{"Ulysses"}},
		"Ending": {query.Example{Probe: Book{Title: "ion"}, Paths: []string{"title"},
			Matcher: query.ExampleMatcher{StringMatching: query.MatchEnding}}, nil, []string{"Persuasion"}},
		"Ignored": {query.Example{Probe: Book{Title: "Emma", Pages: 1}, Paths: []string{"pages", "title"},
			Matcher: query.ExampleMatcher{IgnoredPaths: []string{"pages"}}}, nil, []string{"Emma"}},
		"Any": {query.Example{Probe: Book{Title: "Emma", Pages: 412}, Paths: []string{"pages", "title"},
			Matcher: query.ExampleMatcher{MatchAny: true}}, nil, []string{"Dune", "Emma"}},
	}

	repo := newRepo(t)
	for name, testData := range exampleData {
		got, err := repo.FindAll(context.Background(), testData.example, query.FetchSpec{Sort: testData.sort})
		Assertf(t, err == nil, "%6s: expected no error, got %v", name, err)
		Assertf(t, reflect.DeepEqual(titles(got), testData.expected), "%6s: expected %v, got %v",
			name, testData.expected, titles(got))
	}
}

func TestPredicate(t *testing.T) {
	predicateData := map[string]struct {
		predicate query.Predicate
		expected  []string
	}{
		"Nil":      {nil, []string{"Dune", "Emma", "Persuasion", "Ulysses"}},
		"Eq":       {query.Comparison{Path: "pages", Op: query.Eq, Values: []interface{}{int64(249)}}, []string{"Persuasion"}},
		"Ne":       {query.Comparison{Path: "pages", Op: query.Ne, Values: []interface{}{int64(249)}}, []string{"Dune", "Emma", "Ulysses"}},
		"In":       {query.Comparison{Path: "id", Op: query.In, Values: []interface{}{"1", "4"}}, []string{"Dune", "Ulysses"}},
		"Gt":       {query.Comparison{Path: "pages", Op: query.Gt, Values: []interface{}{int64(474)}}, []string{"Ulysses"}},
		"Gte":      {query.Comparison{Path: "pages", Op: query.Gte, Values: []interface{}{474.0}}, []string{"Emma", "Ulysses"}},
		"Lt":       {query.Comparison{Path: "published", Op: query.Lt, Values: []interface{}{"1900-01-01T00:00:00Z"}}, []string{"Emma", "Persuasion"}},
		"Lte":      {query.Comparison{Path: "author.born", Op: query.Lte, Values: []interface{}{int64(1775)}}, []string{"Emma", "Persuasion"}},
		"Contains": {query.Comparison{Path: "title", Op: query.Contains, Values: []interface{}{"ss"}}, []string{"Ulysses"}},
		"Starts":   {query.Comparison{Path: "author.name", Op: query.StartsWith, Values: []interface{}{"Frank"}}, []string{"Dune"}},
		"Ends":     {query.Comparison{Path: "title", Op: query.EndsWith, Values: []interface{}{"ma"}}, []string{"Emma"}},
		"Fold":     {query.Comparison{Path: "title", Op: query.EqIgnoreCase, Values: []interface{}{"DUNE"}}, []string{"Dune"}},
		"Null":     {query.Comparison{Path: "author", Op: query.Eq, Values: []interface{}{nil}}, []string{"Ulysses"}},
		"And": {query.And{
			query.Comparison{Path: "author.born", Op: query.Eq, Values: []interface{}{int64(1775)}},
			query.Comparison{Path: "pages", Op: query.Lt, Values: []interface{}{int64(300)}},
		}, []string{"Persuasion"}},
		"Or": {query.Or{
			query.Comparison{Path: "title", Op: query.Eq, Values: []interface{}{"Dune"}},
			query.Comparison{Path: "title", Op: query.Eq, Values: []interface{}{"Emma"}},
		}, []string{"Dune", "Emma"}},
		"Not": {query.Not{Predicate: query.Comparison{Path: "pages", Op: query.Gt, Values: []interface{}{int64(300)}}}, []string{"Persuasion"}},
	}

	repo := newRepo(t).Predicates()
	for name, testData := range predicateData {
		got, err := repo.FindAll(context.Background(), testData.predicate, query.FetchSpec{})
		Assertf(t, err == nil, "%6s: expected no error, got %v", name, err)
		Assertf(t, reflect.DeepEqual(titles(got), testData.expected), "%6s: expected %v, got %v",
			name, testData.expected, titles(got))
	}

	_, err := repo.FindAll(context.Background(), query.Comparison{Path: "pages", Op: query.Eq}, query.FetchSpec{})
	assert.Error(t, err)
}

func TestProjection(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	got, err := repo.FindAll(ctx, query.Example{Probe: Book{}}, query.FetchSpec{Projection: reflect.TypeOf(Summary{}), Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{Summary{"Dune", 412}, Summary{"Emma", 474}}, got)

	one, err := repo.FindOne(ctx, query.Example{Probe: Book{Title: "Emma"}, Paths: []string{"title"}},
		query.FetchSpec{Properties: []string{"author.name", "title"}})
	require.NoError(t, err)
	assert.Equal(t, Book{Title: "Emma", Author: &Author{"Jane Austen", 1775}}, one)

	none, err := repo.FindOne(ctx, query.Example{Probe: Book{Title: "Middlemarch"}, Paths: []string{"title"}}, query.FetchSpec{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestOffsetScroll(t *testing.T) {
	repo := newRepo(t)
	all := query.Example{Probe: Book{}}

	w, err := repo.Scroll(context.Background(), all, query.FetchSpec{Position: pagination.InitialOffset(), Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Emma", "Persuasion"}, titles(w.Content))
	assert.True(t, w.More)
	assert.Equal(t, pagination.Offset(2), w.PositionAt(2))

	w, err = repo.Scroll(context.Background(), all, query.FetchSpec{Position: pagination.Offset(2), Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ulysses"}, titles(w.Content))
	assert.False(t, w.More)

	w, err = repo.Scroll(context.Background(), all, query.FetchSpec{Position: pagination.Offset(10), Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, w.Content)
}

func TestKeysetScroll(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	all := query.Example{Probe: Book{}}
	byPages := query.Sort{query.Asc("pages")}

	w, err := repo.Scroll(ctx, all, query.FetchSpec{Position: pagination.KeysetInitial(pagination.Forward), Limit: 2, Sort: byPages})
	require.NoError(t, err)
	assert.Equal(t, []string{"Persuasion", "Dune"}, titles(w.Content))
	assert.True(t, w.More)
	last := w.PositionAt(1).(pagination.KeysetPosition)
	assert.Equal(t, []string{"pages", "id"}, last.Keys.Order)

	w, err = repo.Scroll(ctx, all, query.FetchSpec{Position: last, Limit: 2, Sort: byPages})
	require.NoError(t, err)
	assert.Equal(t, []string{"Emma", "Ulysses"}, titles(w.Content))
	assert.False(t, w.More)

	// back from the last
	end := w.PositionAt(1).(pagination.KeysetPosition)
	w, err = repo.Scroll(ctx, all, query.FetchSpec{Position: end.Backward(), Limit: 2, Sort: byPages})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Emma"}, titles(w.Content))
	assert.True(t, w.More)

	w, err = repo.Scroll(ctx, all, query.FetchSpec{Position: pagination.KeysetInitial(pagination.Backward), Limit: 1, Sort: byPages})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ulysses"}, titles(w.Content))
}

func TestReactive(t *testing.T) {
	defer goleak.VerifyNone(t)
	repo := newRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := repo.Reactive().FindAll(ctx, query.Example{Probe: Book{}}, query.FetchSpec{})
	r := <-ch
	require.NoError(t, r.Err)
	assert.Equal(t, "Dune", r.Value.(Book).Title)
	cancel() // the sender must stop without the rest being read
	for range ch {
	}

	var count int
	for r := range repo.ReactivePredicates().FindAll(context.Background(), query.Comparison{Path: "pages", Op: query.Gt, Values: []interface{}{int64(400)}}, query.FetchSpec{}) {
		require.NoError(t, r.Err)
		count++
	}
	assert.Equal(t, 3, count)

	wr := <-repo.ReactivePredicates().Scroll(context.Background(), nil, query.FetchSpec{Position: pagination.InitialOffset(), Limit: 1})
	require.NoError(t, wr.Err)
	assert.Equal(t, []string{"Dune"}, titles(wr.Window.Content))

	r = <-repo.ReactivePredicates().FindOne(context.Background(), query.Comparison{Path: "pages", Op: query.Eq}, query.FetchSpec{})
	assert.Error(t, r.Err)
}

func TestMaps(t *testing.T) {
	repo := memory.New(map[string]interface{}{}, memory.TypeName("Book"))
	require.NoError(t, repo.Save(
		map[string]interface{}{"id": "1", "title": "Dune", "pages": 412},
		map[string]interface{}{"id": "2", "title": "Emma", "pages": 474},
	))
	assert.Equal(t, "Book", repo.GraphQLTypeName())

	got, err := repo.Predicates().FindAll(context.Background(),
		query.Comparison{Path: "pages", Op: query.Gt, Values: []interface{}{int64(420)}},
		query.FetchSpec{Properties: []string{"title"}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{map[string]interface{}{"title": "Emma"}}, got)
}

func TestLargeIntegers(t *testing.T) {
	const big = int64(1) << 53
	repo := memory.New(map[string]interface{}{}, memory.TypeName("Counter"))
	require.NoError(t, repo.Save(
		map[string]interface{}{"id": "a", "count": big},
		map[string]interface{}{"id": "b", "count": big + 1},
		map[string]interface{}{"id": "c", "count": uint64(big + 2)},
	))

	integerData := map[string]struct {
		op       query.Op
		value    interface{}
		expected []interface{}
	}{
		"eq":       {query.Eq, big + 1, []interface{}{map[string]interface{}{"id": "b"}}},
		"gt":       {query.Gt, big, []interface{}{map[string]interface{}{"id": "b"}, map[string]interface{}{"id": "c"}}},
		"unsigned": {query.Eq, uint64(big + 2), []interface{}{map[string]interface{}{"id": "c"}}},
		"negative": {query.Lt, int64(-1), []interface{}{}},
	}
	for name, testData := range integerData {
		got, err := repo.Predicates().FindAll(context.Background(),
			query.Comparison{Path: "count", Op: testData.op, Values: []interface{}{testData.value}},
			query.FetchSpec{Properties: []string{"id"}})
		require.NoError(t, err, name)
		Assertf(t, reflect.DeepEqual(got, testData.expected), "%8s: expected %v, got %v", name, testData.expected, got)
	}
}

const bookSchema = `
type Query {
  books(title: String, author: AuthorInput, first: Int, after: String, last: Int, before: String): BookConnection!
  byTitle(title: String): [Book!]!
}
input AuthorInput { name: String }
type Author { name: String born: Int }
type Book { id: ID! title: String pages: Int author: Author }
`

// Repositories, fetchers, pagination and the engine working together
func TestScrollQuery(t *testing.T) {
	repo := newRepo(t)
	factories := query.AutoRegistration(repo.Predicates())
	factories["Book"] = query.QueryByPredicate(repo.Predicates()).
		DefaultScrollPosition(pagination.KeysetInitial(pagination.Forward)).
		SortBy(query.Sort{query.Asc("title")}).
		Customizer(func(b *query.Bindings) { b.BindOp("title", query.StartsWith) })

	wiring := engine.NewWiring().Visitor(pagination.ConnectionFieldVisitor())
	wiring.Factory(query.NewAutoRegistrationWiringFactory(factories, wiring))
	sdl, err := pagination.AddConnectionTypes(bookSchema)
	require.NoError(t, err)
	service := engine.New(engine.MustSchema(wiring, sdl))

	execute := func(q string) map[string]interface{} {
		t.Helper()
		r, err := service.Execute(context.Background(), graphql.NewExecutionRequest(graphql.Request{Document: q}))
		require.NoError(t, err)
		require.Empty(t, r.Errors)
		buf, err := json.Marshal(r.Data)
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(buf, &m))
		return m
	}

	page := execute(`{ books(first: 2) { nodes { title } pageInfo { hasNextPage endCursor } } }`)["books"].(map[string]interface{})
	assert.Equal(t, []interface{}{map[string]interface{}{"title": "Dune"}, map[string]interface{}{"title": "Emma"}}, page["nodes"])
	info := page["pageInfo"].(map[string]interface{})
	assert.Equal(t, true, info["hasNextPage"])

	page = execute(`{ books(first: 2, after: "` + info["endCursor"].(string) + `") { nodes { title } pageInfo { hasNextPage } } }`)["books"].(map[string]interface{})
	assert.Equal(t, []interface{}{map[string]interface{}{"title": "Persuasion"}, map[string]interface{}{"title": "Ulysses"}}, page["nodes"])
	assert.Equal(t, false, page["pageInfo"].(map[string]interface{})["hasNextPage"])

	page = execute(`{ books(title: "E") { edges { node { title author { name } } } } }`)["books"].(map[string]interface{})
	assert.Equal(t, []interface{}{map[string]interface{}{"node": map[string]interface{}{"title": "Emma", "author": map[string]interface{}{"name": "Jane Austen"}}}}, page["edges"])

	list := execute(`{ byTitle(title: "Dune") { pages } }`)["byTitle"]
	assert.Equal(t, []interface{}{map[string]interface{}{"pages": 412.0}}, list)
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
