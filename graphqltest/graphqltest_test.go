package graphqltest_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphqltest"
	"github.com/andrewwphillips/gqlkit/web"
)

const testSchema = `
type Query {
  project(slug: String!): Project
  projects: [Project!]!
  tags: [String!]!
  fail(message: String!): String
  locale: String!
  whoami: String
  slow: String
}
type Project { slug: String! name: String! repositoryUrl: String! releases: [Release!]! }
type Release { version: String! current: Boolean! }
type Subscription { count(to: Int!): Int! ticks: Int! never: Int }
`

var (
	secret = []byte("GraphQL-is-awesome")

	projects = map[string]map[string]interface{}{
		"spring-framework": {
			"slug":          "spring-framework",
			"name":          "Spring Framework",
			"repositoryUrl": "http://github.com/spring-projects/spring-framework",
			"releases": []interface{}{
				map[string]interface{}{"version": "5.3.0", "current": false},
				map[string]interface{}{"version": "6.0.0", "current": true},
			},
		},
		"gql": {
			"slug":          "gql",
			"name":          "GraphQL Kit",
			"repositoryUrl": "http://github.com/andrewwphillips/gqlkit",
			"releases":      []interface{}{},
		},
	}
)

// newService creates the service used by the tests
func newService() *engine.Service {
	wiring := engine.NewWiring().
		DataFetcherFunc("Query", "project", func(env *engine.Environment) (interface{}, error) {
			if p, ok := projects[env.Arguments["slug"].(string)]; ok {
				return p, nil
			}
			return nil, nil
		}).
		DataFetcherFunc("Query", "projects", func(env *engine.Environment) (interface{}, error) {
			return []interface{}{projects["spring-framework"], projects["gql"]}, nil
		}).
		DataFetcherFunc("Query", "tags", func(env *engine.Environment) (interface{}, error) {
			return []string{"a", "b", "c"}, nil
		}).
		DataFetcherFunc("Query", "fail", func(env *engine.Environment) (interface{}, error) {
			return nil, errors.New(env.Arguments["message"].(string))
		}).
		DataFetcherFunc("Query", "locale", func(env *engine.Environment) (interface{}, error) {
			return env.Locale.String(), nil
		}).
		DataFetcherFunc("Query", "whoami", func(env *engine.Environment) (interface{}, error) {
			claims, ok := web.ClaimsFromContext(env.Context)
			if !ok {
				return nil, nil
			}
			return claims["sub"], nil
		}).
		DataFetcherFunc("Query", "slow", func(env *engine.Environment) (interface{}, error) {
			select {
			case <-time.After(time.Second):
				return "done", nil
			case <-env.Context.Done():
				return nil, env.Context.Err()
			}
		}).
		DataFetcherFunc("Subscription", "count", func(env *engine.Environment) (interface{}, error) {
			to := int(env.Arguments["to"].(int64))
			ch := make(chan int)
			go func() {
				defer close(ch)
				for i := 1; i <= to; i++ {
					select {
					case ch <- i:
					case <-env.Context.Done():
						return
					}
				}
			}()
			return ch, nil
		}).
		DataFetcherFunc("Subscription", "ticks", func(env *engine.Environment) (interface{}, error) {
			ch := make(chan int)
			go func() {
				defer close(ch)
				for i := 1; ; i++ {
					select {
					case ch <- i:
						time.Sleep(time.Millisecond)
					case <-env.Context.Done():
						return
					}
				}
			}()
			return ch, nil
		}).
		DataFetcherFunc("Subscription", "never", func(env *engine.Environment) (interface{}, error) {
			ch := make(chan int)
			go func() {
				<-env.Context.Done()
				close(ch)
			}()
			return ch, nil
		})
	return engine.New(engine.MustSchema(wiring, testSchema))
}

type (
	// recorder is a TestingT that records failures, so that tests can check that assertions fail
	recorder struct {
		messages []string
	}

	failNow struct{}
)

func (r *recorder) Errorf(format string, args ...interface{}) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (r *recorder) FailNow() { panic(failNow{}) }

func (r *recorder) Helper() {}

// failure runs test with a recorder returning the failure message, or an empty string if nothing failed
func failure(test func(t graphqltest.TestingT)) (message string) {
	r := &recorder{}
	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(failNow); !ok {
				panic(v)
			}
		}
		message = strings.Join(r.messages, "\n")
	}()
	test(r)
	return
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

// checkFailure checks the message returned by failure: no failure if expected is empty, else a
// failure containing expected (and the request)
func checkFailure(t *testing.T, name, message, expected string) {
	t.Helper()
	if expected == "" {
		Assertf(t, message == "", "%20s: expected no failure, got %q", name, message)
		return
	}
	Assertf(t, strings.Contains(message, expected), "%20s: expected failure containing %q, got %q", name, expected, message)
	Assertf(t, strings.Contains(message, "Request:"), "%20s: expected failure to show the request, got %q", name, message)
}
