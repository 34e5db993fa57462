package web_test

import (
	"context"
	"testing"
	"time"

	"github.com/andrewwphillips/gqlkit/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRSocketRequestResponse(t *testing.T) {
	requester := web.NewRSocketHandler(newService(0)).Requester()
	ctx := context.Background()

	requestData := map[string]struct {
		route, mimeType, data string
		expected              string // response, or error if ok is false
		ok                    bool
	}{
		"query":     {"graphql", web.MimeTypeGraphQL, `{"query":"{hello}"}`, `{"data":{"hello":"hello world"}}`, true},
		"json":      {"graphql", "application/json", `{"query":"{hello(name:\"R\")}"}`, `{"data":{"hello":"hello R"}}`, true},
		"route":     {"other", web.MimeTypeGraphQL, `{"query":"{hello}"}`, `no handler for route "other"`, false},
		"mime":      {"graphql", "text/plain", `{"query":"{hello}"}`, `unsupported data MIME type "text/plain"`, false},
		"empty":     {"graphql", web.MimeTypeGraphQL, `{}`, `request has no query document`, false},
		"subscribe": {"graphql", web.MimeTypeGraphQL, `{"query":"subscription {count(to:1)}"}`, `subscriptions on route "graphql" need request-stream`, false},
	}
	for name, testData := range requestData {
		got, err := requester.RequestResponse(ctx, testData.route, testData.mimeType, []byte(testData.data))
		if testData.ok {
			Assertf(t, err == nil, "%10s: expected no error, got %v", name, err)
			Assertf(t, string(got) == testData.expected, "%10s: expected %s, got %s", name, testData.expected, got)
		} else {
			Assertf(t, err != nil && err.Error() == testData.expected, "%10s: expected error %q, got %v", name, testData.expected, err)
		}
	}
}

func TestRSocketRequestStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	requester := web.NewRSocketHandler(newService(0), web.Route("api")).Requester()
	ch, err := requester.RequestStream(context.Background(), "api", web.MimeTypeGraphQL, []byte(`{"query":"subscription {count(to:3)}"}`))
	require.NoError(t, err)
	var got []string
	for p := range ch {
		require.NoError(t, p.Err)
		got = append(got, string(p.Data))
	}
	assert.Equal(t, []string{`{"data":{"count":1}}`, `{"data":{"count":2}}`, `{"data":{"count":3}}`}, got)

	// cancelling the context ends an endless stream
	ctx, cancel := context.WithCancel(context.Background())
	h := web.NewRSocketHandler(newService(time.Millisecond))
	ch, err = h.RequestStream(ctx, "graphql", web.MimeTypeGraphQL, []byte(`{"query":"subscription {message}"}`))
	require.NoError(t, err)
	p := <-ch
	assert.Equal(t, `{"data":{"message":"hello"}}`, string(p.Data))
	cancel()
	for range ch {
	}
	time.Sleep(10 * time.Millisecond) // let the source see the cancellation
}
