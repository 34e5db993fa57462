package graphqltest_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/andrewwphillips/gqlkit/graphqltest"
	"github.com/stretchr/testify/assert"
)

var testFS = fstest.MapFS{
	"graphql-test/projectReleases.graphql": {Data: []byte(`query($slug: String!) {project(slug: $slug){...releaseFields}}`)},
	"graphql-test/releaseFields.gql":       {Data: []byte(`fragment releaseFields on Project {releases{version}}`)},
	"other/tags.graphql":                   {Data: []byte(`{tags}`)},
}

func TestFileDocumentSource(t *testing.T) {
	documentData := map[string]struct {
		locations []string
		name      string
		expected  string // document, or error if it starts with "!"
	}{
		"graphql":   {nil, "projectReleases", `query($slug: String!) {project(slug: $slug){...releaseFields}}`},
		"gql":       {nil, "releaseFields", `fragment releaseFields on Project {releases{version}}`},
		"location":  {[]string{"graphql-test", "other"}, "tags", `{tags}`},
		"not_found": {nil, "tags", `!document "tags" not found in [graphql-test]`},
	}
	for name, testData := range documentData {
		got, err := graphqltest.NewFileDocumentSource(testFS, testData.locations...).Document(testData.name)
		if testData.expected[0] == '!' {
			Assertf(t, err != nil && err.Error() == testData.expected[1:], "%10s: expected error %q, got %v", name, testData.expected[1:], err)
			continue
		}
		Assertf(t, err == nil, "%10s: expected no error, got %v", name, err)
		Assertf(t, got == testData.expected, "%10s: expected %q, got %q", name, testData.expected, got)
	}
}

func TestCachingDocumentSource(t *testing.T) {
	calls := 0
	source := graphqltest.NewCachingDocumentSource(graphqltest.DocumentSourceFunc(func(name string) (string, error) {
		calls++
		if name == "missing" {
			return "", errors.New("not found")
		}
		return "{" + name + "}", nil
	}), 2)

	for i := 0; i < 3; i++ {
		doc, err := source.Document("tags")
		assert.NoError(t, err)
		assert.Equal(t, "{tags}", doc)
	}
	assert.Equal(t, 1, calls)

	_, err := source.Document("missing")
	assert.Error(t, err)
	_, err = source.Document("missing")
	assert.Error(t, err)
	assert.Equal(t, 3, calls) // errors are not cached
}

func TestDocumentName(t *testing.T) {
	builder := graphqltest.NewServiceBuilder(newService()).
		DocumentSource(graphqltest.NewFileDocumentSource(testFS, "graphql-test", "other"))

	message := failure(func(tt graphqltest.TestingT) {
		var versions []string
		builder.Build(tt).
			DocumentName("projectReleases").
			FragmentName("releaseFields").
			Variable("slug", "spring-framework").
			ExecuteAndVerify().
			Path("project.releases[*].version").
			EntityList(&versions).
			HasSize(2).
			Contains("5.3.0", "6.0.0")
	})
	assert.Empty(t, message)

	message = failure(func(tt graphqltest.TestingT) {
		builder.Build(tt).DocumentName("nope")
	})
	assert.Contains(t, message, `Failed to get document "nope"`)

	message = failure(func(tt graphqltest.TestingT) {
		builder.Build(tt).Document(`{project(slug:"gql"){...inline}}`).
			Fragment(`fragment inline on Project {name}`).
			Execute().Path("project.name").MatchesJSON(`"GraphQL Kit"`)
	})
	assert.Empty(t, message)
}
