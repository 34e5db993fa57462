// Package graphqltest is for testing GraphQL services.  A tester sends requests through a transport (direct
// service calls, HTTP, server-sent events, websockets or RSocket) and returns responses with methods for
// checking errors and the values at JSON paths.  Failed checks are reported through the TestingT (eg *testing.T)
// and stop the test.
//
//   tester := graphqltest.NewHTTPHandlerBuilder(handler).Build(t)
//   tester.Document(`{project(slug:"gql"){releases{version}}}`).
//       Execute().
//       Path("project.releases[*].version").
//       EntityList(&versions).
//       HasSizeGreaterThan(1)
package graphqltest

// tester.go has the testers and the request specification made by Document/DocumentName

import (
	"context"
	"sort"
	"strings"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/dolmen-go/jsonmap"
	"github.com/jensneuse/abstractlogger"
	"golang.org/x/text/language"
)

type (
	// TestingT is the part of *testing.T used to report failures.  FailNow must not return.
	TestingT interface {
		Errorf(format string, args ...interface{})
		FailNow()
	}

	tHelper interface {
		Helper()
	}

	// Tester creates requests and sends them with its transport
	Tester struct {
		t         TestingT
		transport Transport
		config
	}

	// ServiceTester is a tester that calls a service directly
	ServiceTester struct {
		*Tester
		transport *ServiceTransport
	}

	// HTTPTester is a tester that sends HTTP requests
	HTTPTester struct {
		*Tester
		transport *HTTPTransport
		sse       bool
	}

	// WebSocketTester is a tester that sends requests over a websocket
	WebSocketTester struct {
		*Tester
		transport *WebSocketTransport
	}

	// RSocketTester is a tester that sends requests to an RSocket route
	RSocketTester struct {
		*Tester
		transport *RSocketTransport
	}

	// Request is a request being prepared.  The setters return the same request.
	Request struct {
		tester        *Tester
		document      string
		fragments     []string
		operationName string
		variables     jsonmap.Ordered
		extensions    map[string]interface{}
		locale        language.Tag
	}
)

func newTester(t TestingT, transport Transport, cfg config) *Tester {
	return &Tester{t: t, transport: transport, config: cfg}
}

// Mutate returns a builder with a copy of the tester's configuration, for making a similar tester
func (t *ServiceTester) Mutate() *ServiceBuilder {
	return newServiceBuilder(t.config, t.transport.Mutate())
}

// Mutate returns a builder with a copy of the tester's configuration, for making a similar tester
func (t *HTTPTester) Mutate() *HTTPBuilder {
	return newHTTPBuilder(t.config, t.transport.Mutate(), t.sse)
}

// Mutate returns a builder with a copy of the tester's configuration.  The new tester makes its own connection.
func (t *WebSocketTester) Mutate() *WebSocketBuilder {
	return newWebSocketBuilder(t.config, t.transport.Mutate())
}

// Close closes the tester's websocket connection
func (t *WebSocketTester) Close() {
	t.transport.Close()
}

// Mutate returns a builder with a copy of the tester's configuration, for making a similar tester
func (t *RSocketTester) Mutate() *RSocketBuilder {
	b := NewRSocketBuilder(nil)
	b.config, b.transport = t.config, t.transport.Mutate()
	return b
}

// Document starts a request with the document text
func (t *Tester) Document(document string) *Request {
	return &Request{tester: t, document: document, locale: language.Und}
}

// DocumentName starts a request with a document from the tester's document source
func (t *Tester) DocumentName(name string) *Request {
	r := &Request{tester: t, locale: language.Und}
	r.document = r.lookup(name)
	return r
}

// Fragment adds a fragment definition to the document
func (r *Request) Fragment(fragment string) *Request {
	r.fragments = append(r.fragments, fragment)
	return r
}

// FragmentName adds a fragment definition from the tester's document source
func (r *Request) FragmentName(name string) *Request {
	return r.Fragment(r.lookup(name))
}

// OperationName sets the operation to execute if the document has more than one
func (r *Request) OperationName(name string) *Request {
	r.operationName = name
	return r
}

// Variable sets a variable.  Variables are sent in the order they were first set.
func (r *Request) Variable(name string, value interface{}) *Request {
	graphql.SetVariable(&r.variables, name, value)
	return r
}

// Variables sets several variables (in name order)
func (r *Request) Variables(vars map[string]interface{}) *Request {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.Variable(name, vars[name])
	}
	return r
}

// Extension adds an entry to the request's extensions
func (r *Request) Extension(name string, value interface{}) *Request {
	if r.extensions == nil {
		r.extensions = make(map[string]interface{})
	}
	r.extensions[name] = value
	return r
}

// Locale sets the locale of the request
func (r *Request) Locale(locale language.Tag) *Request {
	r.locale = locale
	return r
}

// Execute sends the request and waits for the response
func (r *Request) Execute() *Response {
	t := r.tester
	request := r.request()
	t.log.Debug("executing request", abstractlogger.String("id", request.ID),
		abstractlogger.String("operation", request.OperationName))

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	response, err := t.transport.Execute(ctx, request)
	if err != nil {
		fail(t.t, request.Request, "Request failed: %v", err)
		return nil
	}
	if _, ok := response.Data.(graphql.Stream); ok {
		fail(t.t, request.Request, "Request is a subscription - use ExecuteSubscription")
		return nil
	}
	return newResponse(t, request.Request, response)
}

// ExecuteAndVerify executes the request checking that the response has no errors, at all
func (r *Request) ExecuteAndVerify() *Response {
	response := r.Execute()
	response.Path("$.errors").PathDoesNotExist()
	return response
}

// ExecuteSubscription returns a subscription that is started when its first response is requested
func (r *Request) ExecuteSubscription() *Subscription {
	return &Subscription{tester: r.tester, request: r.request()}
}

func (r *Request) request() graphql.ExecutionRequest {
	document := r.document
	if len(r.fragments) > 0 {
		document = strings.Join(append([]string{document}, r.fragments...), "\n")
	}
	request := graphql.Request{
		Document:      document,
		OperationName: r.operationName,
		Extensions:    r.extensions,
	}
	if len(r.variables.Order) > 0 {
		request.Variables = graphql.CopyVariables(r.variables)
	}
	return graphql.ExecutionRequest{Request: request, ID: graphql.NewID(), Locale: r.locale}
}

// lookup gets a document from the document source, failing the test if it is not found
func (r *Request) lookup(name string) string {
	document, err := r.tester.documents.Document(name)
	if err != nil {
		fail(r.tester.t, r.request().Request, "Failed to get document %q: %v", name, err)
	}
	return document
}

// fail reports a failure, including the request that it relates to, and stops the test
func fail(t TestingT, request graphql.Request, format string, args ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	t.Errorf(format+"\nRequest: %s", append(args, request)...)
	t.FailNow()
}
