package graphqltest

// builder.go has the builders that configure and create testers, one for each transport

import (
	"net/http"
	"os"
	"time"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/andrewwphillips/gqlkit/web"
	"github.com/jensneuse/abstractlogger"
	"golang.org/x/text/language"
)

const (
	// DefaultResponseTimeout is how long a tester waits for a response unless changed with ResponseTimeout
	DefaultResponseTimeout = 5 * time.Second

	documentCacheSize = 100
)

type (
	// config is the part of a tester's configuration that does not depend on the transport
	config struct {
		filter    func(graphql.ResponseError) bool
		documents DocumentSource
		timeout   time.Duration
		codec     Codec
		log       abstractlogger.Logger
	}

	// builder has the setters common to all builders.  B is the type of the builder that embeds it,
	// which the setters return so calls can be chained.
	builder[B any] struct {
		self B
		config
	}

	// ServiceBuilder creates testers that call an execution service directly
	ServiceBuilder struct {
		builder[*ServiceBuilder]
		transport *ServiceTransport
	}

	// HTTPBuilder creates testers that send requests as HTTP POSTs
	HTTPBuilder struct {
		builder[*HTTPBuilder]
		transport *HTTPTransport
		sse       bool
	}

	// WebSocketBuilder creates testers that send requests over a websocket
	WebSocketBuilder struct {
		builder[*WebSocketBuilder]
		transport *WebSocketTransport
	}

	// RSocketBuilder creates testers that send requests to an RSocket route
	RSocketBuilder struct {
		builder[*RSocketBuilder]
		transport *RSocketTransport
	}
)

func defaultConfig() config {
	return config{
		documents: NewCachingDocumentSource(NewFileDocumentSource(os.DirFS(".")), documentCacheSize),
		timeout:   DefaultResponseTimeout,
		codec:     JSONCodec{},
		log:       abstractlogger.NoopLogger,
	}
}

// ErrorFilter marks errors that match the predicate as expected, so they do not cause test failures.
// If called more than once an error must match all the predicates.
func (b *builder[B]) ErrorFilter(predicate func(graphql.ResponseError) bool) B {
	if previous := b.filter; previous != nil {
		b.filter = func(e graphql.ResponseError) bool { return previous(e) && predicate(e) }
	} else {
		b.filter = predicate
	}
	return b.self
}

// DocumentSource sets where documents are found by name (default: files in the "graphql-test" directory)
func (b *builder[B]) DocumentSource(source DocumentSource) B {
	b.documents = source
	return b.self
}

// ResponseTimeout sets how long to wait for a response (default 5 seconds)
func (b *builder[B]) ResponseTimeout(timeout time.Duration) B {
	b.timeout = timeout
	return b.self
}

// Codec sets how JSON values are converted to entities (default JSONCodec)
func (b *builder[B]) Codec(codec Codec) B {
	b.codec = codec
	return b.self
}

// Logger sets the logger, which logs requests at debug level
func (b *builder[B]) Logger(log abstractlogger.Logger) B {
	b.log = log
	return b.self
}

// NewServiceBuilder creates a builder for testers that call the service directly
func NewServiceBuilder(service engine.ExecutionService) *ServiceBuilder {
	return newServiceBuilder(defaultConfig(), NewServiceTransport(service, language.Und))
}

func newServiceBuilder(cfg config, transport *ServiceTransport) *ServiceBuilder {
	b := &ServiceBuilder{builder: builder[*ServiceBuilder]{config: cfg}, transport: transport}
	b.self = b
	return b
}

// Locale sets the locale of requests that do not set their own
func (b *ServiceBuilder) Locale(locale language.Tag) *ServiceBuilder {
	b.transport.locale = locale
	return b
}

// Build creates the tester.  Changes to the builder after this do not affect the tester.
func (b *ServiceBuilder) Build(t TestingT) *ServiceTester {
	transport := b.transport.Mutate()
	return &ServiceTester{Tester: newTester(t, transport, b.config), transport: transport}
}

// NewHTTPBuilder creates a builder for testers that post requests to the URL
func NewHTTPBuilder(url string) *HTTPBuilder {
	return newHTTPBuilder(defaultConfig(), NewHTTPTransport(url, nil), false)
}

// NewHTTPHandlerBuilder creates a builder for testers that send requests to the handler in-process
func NewHTTPHandlerBuilder(h http.Handler) *HTTPBuilder {
	return newHTTPBuilder(defaultConfig(), NewHandlerTransport(h), false)
}

func newHTTPBuilder(cfg config, transport *HTTPTransport, sse bool) *HTTPBuilder {
	b := &HTTPBuilder{builder: builder[*HTTPBuilder]{config: cfg}, transport: transport, sse: sse}
	b.self = b
	return b
}

// URL sets the URL that requests are posted to
func (b *HTTPBuilder) URL(url string) *HTTPBuilder {
	b.transport.url = url
	return b
}

// Handler makes requests be served by the handler in-process
func (b *HTTPBuilder) Handler(h http.Handler) *HTTPBuilder {
	t := NewHandlerTransport(h)
	b.transport.url, b.transport.client = t.url, t.client
	return b
}

// Client sets the HTTP client used to send requests
func (b *HTTPBuilder) Client(client *http.Client) *HTTPBuilder {
	b.transport.client = client
	return b
}

// Header adds a header sent with every request
func (b *HTTPBuilder) Header(key string, values ...string) *HTTPBuilder {
	for _, v := range values {
		b.transport.header.Add(key, v)
	}
	return b
}

// Headers allows the headers sent with every request to be modified
func (b *HTTPBuilder) Headers(modify func(http.Header)) *HTTPBuilder {
	modify(b.transport.header)
	return b
}

// SSE makes the tester handle subscriptions, as server-sent events
func (b *HTTPBuilder) SSE() *HTTPBuilder {
	b.sse = true
	return b
}

// Build creates the tester.  Changes to the builder after this do not affect the tester.
func (b *HTTPBuilder) Build(t TestingT) *HTTPTester {
	transport := b.transport.Mutate()
	r := &HTTPTester{transport: transport, sse: b.sse}
	if b.sse {
		r.Tester = newTester(t, NewSSETransport(transport), b.config)
	} else {
		r.Tester = newTester(t, transport, b.config)
	}
	return r
}

// NewWebSocketBuilder creates a builder for testers that connect to the websocket URL
func NewWebSocketBuilder(url string) *WebSocketBuilder {
	return newWebSocketBuilder(defaultConfig(), NewWebSocketTransport(url))
}

// NewWebSocketHandlerBuilder creates a builder for testers that connect to the handler in-process
func NewWebSocketHandlerBuilder(h http.Handler) *WebSocketBuilder {
	return newWebSocketBuilder(defaultConfig(), NewWebSocketHandlerTransport(h))
}

func newWebSocketBuilder(cfg config, transport *WebSocketTransport) *WebSocketBuilder {
	b := &WebSocketBuilder{builder: builder[*WebSocketBuilder]{config: cfg}, transport: transport}
	b.self = b
	return b
}

// URL sets the websocket URL
func (b *WebSocketBuilder) URL(url string) *WebSocketBuilder {
	b.transport.url = url
	return b
}

// Handler makes the tester connect to the handler in-process
func (b *WebSocketBuilder) Handler(h http.Handler) *WebSocketBuilder {
	t := NewWebSocketHandlerTransport(h)
	b.transport.url, b.transport.dialer = t.url, t.dialer
	return b
}

// Header adds a header sent when connecting
func (b *WebSocketBuilder) Header(key string, values ...string) *WebSocketBuilder {
	for _, v := range values {
		b.transport.header.Add(key, v)
	}
	return b
}

// InitPayload sets the payload of the connection_init message
func (b *WebSocketBuilder) InitPayload(payload map[string]interface{}) *WebSocketBuilder {
	b.transport.SetInitPayload(payload)
	return b
}

// Build creates the tester, which connects when the first request is sent
func (b *WebSocketBuilder) Build(t TestingT) *WebSocketTester {
	transport := b.transport.Mutate()
	return &WebSocketTester{Tester: newTester(t, transport, b.config), transport: transport}
}

// NewRSocketBuilder creates a builder for testers that use the requester
func NewRSocketBuilder(requester web.RSocketRequester) *RSocketBuilder {
	b := &RSocketBuilder{builder: builder[*RSocketBuilder]{config: defaultConfig()}, transport: NewRSocketTransport(requester)}
	b.self = b
	return b
}

// Requester sets the requester that requests are sent with
func (b *RSocketBuilder) Requester(requester web.RSocketRequester) *RSocketBuilder {
	b.transport.requester = requester
	return b
}

// Route sets the route of requests (default "graphql")
func (b *RSocketBuilder) Route(route string) *RSocketBuilder {
	b.transport.route = route
	return b
}

// DataMimeType sets the MIME type of request data (default application/graphql+json)
func (b *RSocketBuilder) DataMimeType(mimeType string) *RSocketBuilder {
	b.transport.mimeType = mimeType
	return b
}

// Build creates the tester
func (b *RSocketBuilder) Build(t TestingT) *RSocketTester {
	transport := b.transport.Mutate()
	return &RSocketTester{Tester: newTester(t, transport, b.config), transport: transport}
}
