package graphqltest

// subscription.go has the responses of a subscription request

import (
	"context"
	"errors"
	"sync"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/jensneuse/abstractlogger"
)

// Subscription gets the responses of a subscription.  The request is not sent until the first call
// of Next, Responses or ExpectComplete.
type Subscription struct {
	tester  *Tester
	request graphql.ExecutionRequest

	mu     sync.Mutex
	stream ResponseStream
}

// Next waits (up to the response timeout) for the next response, failing the test if there is none
func (s *Subscription) Next() *Response {
	stream := s.start()
	ctx, cancel := context.WithTimeout(context.Background(), s.tester.timeout)
	defer cancel()
	if !stream.Next(ctx) {
		s.failEnded(stream.Err(), "Expected a subscription response")
		return nil
	}
	return newResponse(s.tester, s.request.Request, stream.Get())
}

// Responses returns a channel of the responses, which is closed when the subscription ends or ctx is done
func (s *Subscription) Responses(ctx context.Context) <-chan *Response {
	stream := s.start()
	ch := make(chan *Response)
	go func() {
		defer close(ch)
		for stream.Next(ctx) {
			select {
			case ch <- newResponse(s.tester, s.request.Request, stream.Get()):
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			s.tester.log.Error("subscription ended", abstractlogger.String("id", s.request.ID), abstractlogger.Error(err))
		}
	}()
	return ch
}

// ExpectComplete waits (up to the response timeout) for the subscription to end, failing the test if there
// is another response
func (s *Subscription) ExpectComplete() {
	stream := s.start()
	ctx, cancel := context.WithTimeout(context.Background(), s.tester.timeout)
	defer cancel()
	if stream.Next(ctx) {
		defer stream.Close()
		fail(s.tester.t, s.request.Request, "Expected the subscription to complete but got another response: %s",
			responseJSON(stream.Get()))
		return
	}
	if err := stream.Err(); err != nil {
		s.failEnded(err, "Expected the subscription to complete")
	}
	stream.Close()
}

// Cancel ends the subscription
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		s.stream.Close()
	}
}

// start sends the request the first time it is called
func (s *Subscription) start() ResponseStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		s.tester.log.Debug("starting subscription", abstractlogger.String("id", s.request.ID))
		stream, err := s.tester.transport.ExecuteSubscription(context.Background(), s.request)
		if err != nil {
			fail(s.tester.t, s.request.Request, "Subscription request failed: %v", err)
			return nil
		}
		s.stream = stream
	}
	return s.stream
}

func (s *Subscription) failEnded(err error, expected string) {
	switch {
	case err == nil:
		fail(s.tester.t, s.request.Request, "%s but the subscription completed", expected)
	case errors.Is(err, context.DeadlineExceeded):
		s.stream.Close()
		fail(s.tester.t, s.request.Request, "%s within %v", expected, s.tester.timeout)
	default:
		fail(s.tester.t, s.request.Request, "%s but the subscription failed: %v", expected, err)
	}
}
