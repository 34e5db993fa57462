package engine

// subscription.go runs subscription operations: the root field's fetcher returns a channel and each value
// received from it becomes a response on the stream

import (
	"context"
	"fmt"
	"reflect"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/dolmen-go/jsonmap"
	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
)

// subscribe calls the fetcher of the (single) root subscription field and starts a goroutine that converts
// the events it sends into responses.  The stream is closed when the source channel is closed or ctx is done.
func (e *execution) subscribe(ctx context.Context) graphql.Response {
	root := e.s.schema.ast.Subscription
	groups := e.collectFields(root, e.op.SelectionSet)
	if len(groups) != 1 {
		return requestError("subscription must select exactly one top level field", graphql.ValidationError)
	}
	group := groups[0]
	astField := group.fields[0]
	fieldDef := root.Fields.ForName(astField.Name)
	if fieldDef == nil {
		return requestError(fmt.Sprintf("field %q not found in type %q", astField.Name, root.Name), graphql.ValidationError)
	}
	path := []interface{}{group.key}
	fetcher := e.s.schema.DataFetcher(root.Name, fieldDef.Name)
	if fetcher == nil {
		fetcher = PropertyFetcher
	}
	env := &Environment{
		Context:         ctx,
		Source:          e.s.rootValue,
		Arguments:       argumentValues(fieldDef.Arguments, astField.Arguments, e.vars),
		Field:           astField,
		Fields:          group.fields,
		FieldDefinition: fieldDef,
		ParentType:      root,
		Schema:          e.s.schema.ast,
		Operation:       e.op,
		Variables:       e.vars,
		Path:            path,
		RequestID:       e.request.ID,
		Locale:          e.request.Locale,
	}
	value, err := callFetcher(fetcher, env)
	if err != nil {
		e.fetchError(err, env)
		return graphql.Response{Errors: e.sortedErrors()}
	}
	source := reflect.ValueOf(value)
	if !source.IsValid() || source.Kind() != reflect.Chan || source.Type().ChanDir()&reflect.RecvDir == 0 || source.IsNil() {
		return graphql.Response{Errors: []graphql.ResponseError{e.locate(graphql.ResponseError{
			Message:        fmt.Sprintf("subscription field %q must return a channel, got %T", astField.Name, value),
			Classification: graphql.DataFetchingException,
		}, group.fields, path)}}
	}

	out := make(chan graphql.Response)
	go func() {
		defer close(out)
		cases := []reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
			{Dir: reflect.SelectRecv, Chan: source},
		}
		for {
			chosen, event, ok := reflect.Select(cases)
			if chosen == 0 {
				e.s.log.Debug("subscription cancelled", abstractlogger.String("id", e.request.ID))
				return
			}
			if !ok {
				e.s.log.Debug("subscription complete", abstractlogger.String("id", e.request.ID))
				return
			}
			select {
			case out <- e.event(ctx, group, fieldDef.Type, event.Interface(), path):
			case <-ctx.Done():
				return
			}
		}
	}()
	return graphql.Response{Data: graphql.Stream(out), DataPresent: true}
}

// event completes a value received from the source stream, giving a response with its own errors
func (e *execution) event(ctx context.Context, group *fieldGroup, typ *ast.Type, value interface{}, path []interface{}) graphql.Response {
	ee := &execution{s: e.s, request: e.request, doc: e.doc, op: e.op, vars: e.vars}
	if err, ok := value.(error); ok {
		ee.fetchError(err, &Environment{
			Context:         ctx,
			Field:           group.fields[0],
			Fields:          group.fields,
			FieldDefinition: group.fields[0].Definition,
			ParentType:      e.s.schema.ast.Subscription,
			Schema:          e.s.schema.ast,
			Operation:       e.op,
			Variables:       e.vars,
			Path:            path,
			RequestID:       e.request.ID,
			Locale:          e.request.Locale,
		})
		return graphql.Response{Errors: ee.sortedErrors()}
	}
	v, propagate := ee.completeValue(ctx, typ, group.fields, value, path)
	r := graphql.Response{DataPresent: true, Errors: ee.sortedErrors()}
	if !propagate {
		r.Data = jsonmap.Ordered{Data: map[string]interface{}{group.key: v}, Order: []string{group.key}}
	}
	return r
}
