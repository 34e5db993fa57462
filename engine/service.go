// Package engine executes GraphQL requests against a schema whose fields are wired to data fetchers.
package engine

// service.go implements the execution service: parsing, validation and dispatch of each operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrewwphillips/gqlkit/graphql"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// ErrNotSubscription is returned by SubscriptionStream if a response does not contain a stream
var ErrNotSubscription = errors.New("response is not a subscription stream")

type (
	// ExecutionService executes a request, returning a response which (for a subscription) has a
	// graphql.Stream as its data
	ExecutionService interface {
		Execute(ctx context.Context, request graphql.ExecutionRequest) (graphql.Response, error)
	}

	// Service is the ExecutionService for a Schema
	Service struct {
		schema *Schema
		log    abstractlogger.Logger

		noConcurrency   bool
		maxConcurrency  int
		noIntrospection bool
		cacheSize       int
		cache           *lru.Cache // parsed and validated documents keyed by document text
		resolvers       []ExceptionResolver
		rootValue       interface{}
	}
)

// New creates the execution service for a schema
func New(schema *Schema, options ...func(*Service)) *Service {
	s := &Service{schema: schema, cacheSize: -1}
	s.SetOptions(options...)
	return s
}

// Schema returns the schema the service executes against
func (s *Service) Schema() *Schema {
	return s.schema
}

// Execute parses, validates and runs the request
func (s *Service) Execute(ctx context.Context, request graphql.ExecutionRequest) (graphql.Response, error) {
	if s == nil || s.schema == nil {
		return graphql.Response{}, errors.New("execution service has no schema")
	}
	if request.ID == "" {
		request.ID = graphql.NewID()
	}
	doc, errs := s.document(request.Document)
	if errs != nil {
		return graphql.Response{Errors: errs}, nil
	}

	op, err := selectOperation(doc, request.OperationName)
	if err != nil {
		return requestError(err.Error(), graphql.ValidationError), nil
	}
	vars, gqlErr := validator.VariableValues(s.schema.ast, op, request.VariableMap())
	if gqlErr != nil {
		return graphql.Response{Errors: []graphql.ResponseError{
			graphql.FromGQLError(asGQLError(gqlErr), graphql.ValidationError),
		}}, nil
	}
	e := &execution{s: s, request: request, doc: doc, op: op, vars: vars}
	s.log.Debug("executing operation",
		abstractlogger.String("id", request.ID),
		abstractlogger.String("operation", string(op.Operation)),
		abstractlogger.String("name", op.Name),
	)

	switch op.Operation {
	case ast.Query:
		return e.run(ctx, s.schema.ast.Query, s.noConcurrency), nil
	case ast.Mutation:
		if s.schema.ast.Mutation == nil {
			return requestError("schema does not support mutations", graphql.OperationNotSupported), nil
		}
		return e.run(ctx, s.schema.ast.Mutation, true), nil // top level mutation fields are run sequentially
	case ast.Subscription:
		if s.schema.ast.Subscription == nil {
			return requestError("schema does not support subscriptions", graphql.OperationNotSupported), nil
		}
		return e.subscribe(ctx), nil
	}
	return requestError(fmt.Sprintf("unknown operation type %q", op.Operation), graphql.OperationNotSupported), nil
}

// document gets the parsed and validated query document, using the cache if enabled
func (s *Service) document(text string) (*ast.QueryDocument, []graphql.ResponseError) {
	if s.cache != nil {
		if doc, ok := s.cache.Get(text); ok {
			return doc.(*ast.QueryDocument), nil
		}
	}
	doc, err := parser.ParseQuery(&ast.Source{Name: "request", Input: text})
	if err != nil {
		return nil, []graphql.ResponseError{graphql.FromGQLError(asGQLError(err), graphql.InvalidSyntax)}
	}
	if list := validator.Validate(s.schema.ast, doc); len(list) > 0 {
		return nil, convertList(list, graphql.ValidationError)
	}
	if s.cache != nil {
		s.cache.Add(text, doc)
	}
	return doc, nil
}

// selectOperation finds the operation to execute
func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name == "" && len(doc.Operations) > 1 {
		return nil, errors.New("operation name is required when the document has more than one operation")
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		if name == "" {
			return nil, errors.New("document has no operations")
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	return op, nil
}

// SubscriptionStream gets the stream from the response to a subscription request
func SubscriptionStream(r graphql.Response) (graphql.Stream, error) {
	if stream, ok := r.Data.(graphql.Stream); ok && stream != nil {
		return stream, nil
	}
	return nil, ErrNotSubscription
}

func requestError(message string, class graphql.ErrorClassification) graphql.Response {
	return graphql.Response{Errors: []graphql.ResponseError{{Message: message, Classification: class}}}
}

func convertList(list gqlerror.List, class graphql.ErrorClassification) []graphql.ResponseError {
	r := make([]graphql.ResponseError, 0, len(list))
	for _, err := range list {
		r = append(r, graphql.FromGQLError(err, class))
	}
	return r
}
