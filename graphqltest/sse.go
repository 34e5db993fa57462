package graphqltest

// sse.go has a transport that receives subscription responses as server-sent events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/buger/jsonparser"
	"github.com/r3labs/sse/v2"
)

const maxEventSize = 1 << 20

// SSETransport is an HTTP transport that also handles subscriptions, as a stream of events:
// "next" (data is a response), "complete" (end of stream) and "error" (data is a list of errors
// or an object with an "errors" list)
type SSETransport struct {
	*HTTPTransport
}

// NewSSETransport makes an HTTP transport send subscriptions as server-sent events requests
func NewSSETransport(t *HTTPTransport) *SSETransport {
	return &SSETransport{HTTPTransport: t}
}

// Mutate returns a copy of the transport with its own headers
func (t *SSETransport) Mutate() *SSETransport {
	return &SSETransport{HTTPTransport: t.HTTPTransport.Mutate()}
}

// ExecuteSubscription posts the request and reads events from the response as they arrive
func (t *SSETransport) ExecuteSubscription(ctx context.Context, request graphql.ExecutionRequest) (ResponseStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := t.post(ctx, request, contentTypeSSE)
	if err != nil {
		cancel()
		return nil, err
	}
	if mediaType(resp) != contentTypeSSE {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected content type %q for subscription (expected %s)",
			resp.Header.Get("Content-Type"), contentTypeSSE)
	}

	ch := make(chan streamItem)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		reader := sse.NewEventStreamReader(resp.Body, maxEventSize)
		for {
			buf, err := reader.ReadEvent()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					send(ctx, ch, streamItem{err: fmt.Errorf("%w reading event stream", err)})
				} else if ctx.Err() == nil {
					send(ctx, ch, streamItem{err: io.ErrUnexpectedEOF})
				}
				return
			}
			event, data := parseEvent(buf)
			switch event {
			case "next", "":
				if len(data) == 0 {
					continue // eg a comment used as a keep-alive
				}
				r, err := graphql.ParseResponse(data)
				if !send(ctx, ch, streamItem{response: r, err: err}) || err != nil {
					return
				}
			case "complete":
				return
			case "error":
				errs, err := parseErrors(data)
				send(ctx, ch, streamItem{response: graphql.Response{Errors: errs}, err: err})
				return
			}
		}
	}()
	return newChannelStream(ch, cancel), nil
}

// parseEvent gets the event name and the (joined) data lines of an event
func parseEvent(buf []byte) (event string, data []byte) {
	var lines [][]byte
	for _, line := range bytes.Split(buf, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			event = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			d := line[len("data:"):]
			if len(d) > 0 && d[0] == ' ' {
				d = d[1:]
			}
			lines = append(lines, d)
		}
	}
	return event, bytes.Join(lines, []byte("\n"))
}

// parseErrors decodes the data of an error event
func parseErrors(data []byte) ([]graphql.ResponseError, error) {
	list := data
	if _, dataType, _, err := jsonparser.Get(data); err == nil && dataType == jsonparser.Object {
		if list, _, _, err = jsonparser.Get(data, "errors"); err != nil {
			return nil, fmt.Errorf("%w getting errors of error event", err)
		}
	}
	var r []graphql.ResponseError
	if err := json.Unmarshal(list, &r); err != nil {
		return nil, fmt.Errorf("%w decoding errors of error event", err)
	}
	return r, nil
}
