package graphqltest

// rsocket.go has a transport that sends requests to a route of an RSocket requester

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/andrewwphillips/gqlkit/web"
)

// RSocketTransport sends queries and mutations as request-response and subscriptions as request-stream
type RSocketTransport struct {
	requester web.RSocketRequester
	route     string
	mimeType  string
}

// NewRSocketTransport creates a transport using the "graphql" route and application/graphql+json data
func NewRSocketTransport(requester web.RSocketRequester) *RSocketTransport {
	return &RSocketTransport{requester: requester, route: "graphql", mimeType: web.MimeTypeGraphQL}
}

// Mutate returns a copy of the transport
func (t *RSocketTransport) Mutate() *RSocketTransport {
	r := *t
	return &r
}

// Execute sends a request-response interaction
func (t *RSocketTransport) Execute(ctx context.Context, request graphql.ExecutionRequest) (graphql.Response, error) {
	data, err := json.Marshal(request.Request)
	if err != nil {
		return graphql.Response{}, fmt.Errorf("%w encoding request", err)
	}
	buf, err := t.requester.RequestResponse(ctx, t.route, t.mimeType, data)
	if err != nil {
		return graphql.Response{}, err
	}
	return graphql.ParseResponse(buf)
}

// ExecuteSubscription sends a request-stream interaction, decoding each payload as a response
func (t *RSocketTransport) ExecuteSubscription(ctx context.Context, request graphql.ExecutionRequest) (ResponseStream, error) {
	data, err := json.Marshal(request.Request)
	if err != nil {
		return nil, fmt.Errorf("%w encoding request", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	payloads, err := t.requester.RequestStream(ctx, t.route, t.mimeType, data)
	if err != nil {
		cancel()
		return nil, err
	}

	ch := make(chan streamItem)
	go func() {
		defer close(ch)
		for p := range payloads {
			item := streamItem{err: p.Err}
			if p.Err == nil {
				item.response, item.err = graphql.ParseResponse(p.Data)
			}
			if !send(ctx, ch, item) || item.err != nil {
				break
			}
		}
		cancel()
		for range payloads {
			// drain until the sender sees the cancellation
		}
	}()
	return newChannelStream(ch, cancel), nil
}
