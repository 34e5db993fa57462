package web

// rsocket.go has a handler for RSocket style request-response and request-stream interactions on a route

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/jensneuse/abstractlogger"
)

const (
	// MimeTypeGraphQL is the data MIME type of GraphQL requests and responses
	MimeTypeGraphQL = "application/graphql+json"
	mimeTypeJSON    = "application/json"
)

type (
	// RSocketRequester sends requests to a route, eg the requester of a client connection
	RSocketRequester interface {
		RequestResponse(ctx context.Context, route, mimeType string, data []byte) ([]byte, error)
		RequestStream(ctx context.Context, route, mimeType string, data []byte) (<-chan RSocketPayload, error)
	}

	// RSocketPayload is an element of a stream: the data of a response or an error that ends the stream
	RSocketPayload struct {
		Data []byte
		Err  error
	}

	// RSocketHandler executes GraphQL requests sent to its route
	RSocketHandler struct {
		service engine.ExecutionService
		config
		chain Chain
	}

	// localRequester sends requests directly to a handler, copying the data as a connection would
	localRequester struct {
		h *RSocketHandler
	}
)

// NewRSocketHandler creates a handler for the route (option Route, default "graphql")
func NewRSocketHandler(service engine.ExecutionService, options ...Option) *RSocketHandler {
	h := &RSocketHandler{service: service}
	h.setOptions(options...)
	h.chain = newChain(service, h.interceptors)
	return h
}

// Requester returns a requester that calls the handler in-process
func (h *RSocketHandler) Requester() RSocketRequester {
	return localRequester{h}
}

// RequestResponse executes a query or mutation returning the JSON response
func (h *RSocketHandler) RequestResponse(ctx context.Context, route, mimeType string, data []byte) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	response, err := h.execute(ctx, route, mimeType, data)
	if err != nil {
		return nil, err
	}
	if _, ok := response.Data.(graphql.Stream); ok {
		return nil, fmt.Errorf("subscriptions on route %q need request-stream", route)
	}
	return json.Marshal(response)
}

// RequestStream executes a subscription sending a JSON response for each event.  A query or mutation
// gives a stream of one response.
func (h *RSocketHandler) RequestStream(ctx context.Context, route, mimeType string, data []byte) (<-chan RSocketPayload, error) {
	response, err := h.execute(ctx, route, mimeType, data)
	if err != nil {
		return nil, err
	}
	ch := make(chan RSocketPayload)
	go func() {
		defer close(ch)
		stream, ok := response.Data.(graphql.Stream)
		if !ok {
			h.sendPayload(ctx, ch, response)
			return
		}
		for {
			select {
			case event, ok := <-stream:
				if !ok || !h.sendPayload(ctx, ch, event) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (h *RSocketHandler) execute(ctx context.Context, route, mimeType string, data []byte) (graphql.Response, error) {
	if route != h.route {
		return graphql.Response{}, fmt.Errorf("no handler for route %q", route)
	}
	if mimeType != MimeTypeGraphQL && mimeType != mimeTypeJSON {
		return graphql.Response{}, fmt.Errorf("unsupported data MIME type %q", mimeType)
	}
	var request graphql.Request
	if err := json.Unmarshal(data, &request); err != nil {
		return graphql.Response{}, fmt.Errorf("%w decoding request", err)
	}
	if request.Document == "" {
		return graphql.Response{}, graphql.ErrEmptyRequest
	}
	req := newWebRequest(request, nil)
	h.log.Debug("RSocket request", abstractlogger.String("route", route), abstractlogger.String("id", req.ID))
	response, err := h.chain(ctx, req)
	if err != nil {
		return graphql.Response{}, err
	}
	return response.Response, nil
}

func (h *RSocketHandler) sendPayload(ctx context.Context, ch chan<- RSocketPayload, r graphql.Response) bool {
	buf, err := json.Marshal(r)
	select {
	case ch <- RSocketPayload{Data: buf, Err: err}:
		return err == nil
	case <-ctx.Done():
		return false
	}
}

func (r localRequester) RequestResponse(ctx context.Context, route, mimeType string, data []byte) ([]byte, error) {
	return r.h.RequestResponse(ctx, route, mimeType, append([]byte(nil), data...))
}

func (r localRequester) RequestStream(ctx context.Context, route, mimeType string, data []byte) (<-chan RSocketPayload, error) {
	return r.h.RequestStream(ctx, route, mimeType, append([]byte(nil), data...))
}
