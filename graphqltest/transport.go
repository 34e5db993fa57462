package graphqltest

// transport.go has the interface that testers use to send requests and the stream of subscription responses

import (
	"context"
	"errors"
	"sync"

	"github.com/andrewwphillips/gqlkit/graphql"
)

var (
	// ErrSubscriptionNotSupported is returned by transports that can only send single requests
	ErrSubscriptionNotSupported = errors.New("subscriptions are not supported by this transport")

	// ErrNotStream is returned when a subscription request does not give a stream of responses
	ErrNotStream = errors.New("Response is not a stream (not a Publisher)")
)

type (
	// Transport sends requests to a GraphQL service
	Transport interface {
		// Execute sends a query or mutation returning the single response
		Execute(ctx context.Context, request graphql.ExecutionRequest) (graphql.Response, error)

		// ExecuteSubscription starts a subscription.  The subscription ends when ctx is cancelled
		// or the stream is closed.
		ExecuteSubscription(ctx context.Context, request graphql.ExecutionRequest) (ResponseStream, error)
	}

	// ResponseStream is the sequence of responses of a subscription, used like bufio.Scanner:
	//   for s.Next(ctx) { r := s.Get() ... }
	//   if err := s.Err(); err != nil { ... }
	ResponseStream interface {
		Next(ctx context.Context) bool // waits for the next response, returning false at the end of the stream
		Get() graphql.Response         // the response got by the last call to Next
		Err() error                    // the error that ended the stream (nil if it completed normally)
		Close()                        // cancels the subscription
	}

	// streamItem is a response or an error that ends the stream
	streamItem struct {
		response graphql.Response
		err      error
	}

	// channelStream is a ResponseStream that reads from a channel, which the sender closes at the end
	channelStream struct {
		ch      <-chan streamItem
		cancel  context.CancelFunc
		once    sync.Once
		current graphql.Response
		err     error
	}
)

func newChannelStream(ch <-chan streamItem, cancel context.CancelFunc) *channelStream {
	return &channelStream{ch: ch, cancel: cancel}
}

func (s *channelStream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	select {
	case item, ok := <-s.ch:
		if !ok {
			return false
		}
		if item.err != nil {
			s.err = item.err
			return false
		}
		s.current = item.response
		return true
	case <-ctx.Done():
		s.err = ctx.Err()
		return false
	}
}

func (s *channelStream) Get() graphql.Response { return s.current }

func (s *channelStream) Err() error { return s.err }

func (s *channelStream) Close() {
	s.once.Do(s.cancel)
}

// send delivers an item unless the stream has been closed
func send(ctx context.Context, ch chan<- streamItem, item streamItem) bool {
	select {
	case ch <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
