package graphqltest

// service.go has a transport that calls an execution service directly, without any transport layer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"golang.org/x/text/language"
)

// ServiceTransport executes requests by calling the service in-process
type ServiceTransport struct {
	service engine.ExecutionService
	locale  language.Tag
}

// NewServiceTransport creates a transport calling the service.  Requests without a locale get the
// locale (use language.Und for none).
func NewServiceTransport(service engine.ExecutionService, locale language.Tag) *ServiceTransport {
	return &ServiceTransport{service: service, locale: locale}
}

// Mutate returns a copy of the transport
func (t *ServiceTransport) Mutate() *ServiceTransport {
	r := *t
	return &r
}

// Execute calls the service, waiting for the response until ctx is done
func (t *ServiceTransport) Execute(ctx context.Context, request graphql.ExecutionRequest) (graphql.Response, error) {
	type result struct {
		response graphql.Response
		err      error
	}
	if request.Locale == language.Und {
		request.Locale = t.locale
	}
	ch := make(chan result, 1)
	go func() {
		r, err := t.service.Execute(ctx, request)
		ch <- result{r, err}
	}()
	select {
	case res := <-ch:
		if ctx.Err() == nil {
			return res.response, res.err
		}
	case <-ctx.Done():
	}
	return graphql.Response{}, fmt.Errorf("%w waiting for response to request %s", ctx.Err(), request.ID)
}

// ExecuteSubscription calls the service, which must return a stream of responses
func (t *ServiceTransport) ExecuteSubscription(ctx context.Context, request graphql.ExecutionRequest) (ResponseStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	r, err := t.Execute(ctx, request)
	if err != nil {
		cancel()
		return nil, err
	}
	stream, err := engine.SubscriptionStream(r)
	if err != nil {
		cancel()
		buf, _ := json.Marshal(r)
		return nil, fmt.Errorf("%w\nResponse: %s", ErrNotStream, buf)
	}

	ch := make(chan streamItem)
	go func() {
		defer close(ch)
		for {
			select {
			case response, ok := <-stream:
				if !ok || !send(ctx, ch, streamItem{response: response}) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return newChannelStream(ch, cancel), nil
}
