package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const subscriptionSchema = "type Query { q: Int } type Subscription { count(to: Int!): Int! message: String! }"

func counter() *engine.Wiring {
	return engine.NewWiring().DataFetcherFunc("Subscription", "count", func(env *engine.Environment) (interface{}, error) {
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
}

func subscribe(t *testing.T, ctx context.Context, wiring *engine.Wiring, query string) graphql.Response {
	t.Helper()
	s := engine.New(engine.MustSchema(wiring, subscriptionSchema))
	r, err := s.Execute(ctx, graphql.NewExecutionRequest(graphql.Request{Document: query}))
	require.NoError(t, err)
	return r
}

func TestSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := subscribe(t, context.Background(), counter(), `subscription { n: count(to: 3) }`)
	stream, err := engine.SubscriptionStream(r)
	require.NoError(t, err)

	var got []interface{}
	for event := range stream {
		require.Empty(t, event.Errors)
		v, ok := event.Field("n")
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, got)
}

func TestSubscriptionCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := subscribe(t, ctx, counter(), `subscription { count(to: 1000) }`)
	stream, err := engine.SubscriptionStream(r)
	require.NoError(t, err)

	first := <-stream
	v, _ := first.Field("count")
	assert.EqualValues(t, 1, v)
	cancel()

	// stream must be closed soon after cancel
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				time.Sleep(10 * time.Millisecond) // allow source goroutine to see cancellation
				return
			}
		case <-timeout:
			t.Fatal("stream not closed after cancel")
		}
	}
}

func TestSubscriptionErrors(t *testing.T) {
	wiring := engine.NewWiring().
		DataFetcherFunc("Subscription", "message", func(env *engine.Environment) (interface{}, error) {
			return "not a channel", nil
		}).
		DataFetcherFunc("Subscription", "count", func(env *engine.Environment) (interface{}, error) {
			return nil, errors.New("no source")
		})

	r := subscribe(t, context.Background(), wiring, `subscription { message }`)
	_, err := engine.SubscriptionStream(r)
	assert.ErrorIs(t, err, engine.ErrNotSubscription)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Message, "must return a channel")

	r = subscribe(t, context.Background(), wiring, `subscription { count(to: 2) }`)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "no source", r.Errors[0].Message)
	assert.Equal(t, "count", r.Errors[0].Path())
}

func TestSubscriptionEventError(t *testing.T) {
	wiring := engine.NewWiring().DataFetcherFunc("Subscription", "message", func(env *engine.Environment) (interface{}, error) {
		ch := make(chan interface{}, 2)
		ch <- "first"
		ch <- graphql.ResponseError{Message: "bad event", Classification: graphql.DataFetchingException}
		close(ch)
		return ch, nil
	})
	r := subscribe(t, context.Background(), wiring, `subscription { message }`)
	stream, err := engine.SubscriptionStream(r)
	require.NoError(t, err)

	var events []graphql.Response
	for event := range stream {
		events = append(events, event)
	}
	require.Len(t, events, 2)
	v, _ := events[0].Field("message")
	assert.Equal(t, "first", v)
	require.Len(t, events[1].Errors, 1)
	assert.Equal(t, "bad event", events[1].Errors[0].Message)
	assert.Equal(t, graphql.DataFetchingException, events[1].Errors[0].Classification)
}
