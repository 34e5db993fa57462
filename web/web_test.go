package web_test

import (
	"errors"
	"testing"
	"time"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/andrewwphillips/gqlkit/web"
)

const testSchema = `
scalar Upload
type Query { hello(name: String! = "world"): String! whoami: String }
type Mutation { upload(file: Upload!): String! }
type Subscription { message: String! count(to: Int!): Int! }
`

var secret = []byte("GraphQL-is-awesome")

// newService creates a service with a "message" subscription that keeps sending "hello" (with delay between
// messages) and a "count" subscription that sends 1 to n
func newService(delay time.Duration) *engine.Service {
	wiring := engine.NewWiring().
		DataFetcherFunc("Query", "hello", func(env *engine.Environment) (interface{}, error) {
			return "hello " + env.Arguments["name"].(string), nil
		}).
		DataFetcherFunc("Query", "whoami", func(env *engine.Environment) (interface{}, error) {
			claims, ok := web.ClaimsFromContext(env.Context)
			if !ok {
				return nil, nil
			}
			return claims["sub"], nil
		}).
		DataFetcherFunc("Mutation", "upload", func(env *engine.Environment) (interface{}, error) {
			upload, ok := env.Arguments["file"].(graphql.Upload)
			if !ok {
				return nil, errors.New("file is not an upload")
			}
			return upload.Filename + ":" + string(upload.Content), nil
		}).
		DataFetcherFunc("Subscription", "message", func(env *engine.Environment) (interface{}, error) {
			ch := make(chan string)
			go func() {
				defer close(ch)
				for {
					select {
					case <-env.Context.Done():
						return
					case ch <- "hello":
						if delay > 0 {
							time.Sleep(delay)
						}
					}
				}
			}()
			return ch, nil
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
		})
	return engine.New(engine.MustSchema(wiring, testSchema))
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
