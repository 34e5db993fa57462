package gqlkit

// options.go handles options that can be used to control the GraphQL service and handler.
// These options are just passed on to the engine and web packages. (See engine/options.go
// for details on how closures are used to handle options.)

import (
	"net/http"
	"time"

	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/web"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jensneuse/abstractlogger"
)

type options struct {
	// service options
	noIntrospection, noConcurrency bool
	maxConcurrency                 int
	cacheSize                      *int
	resolvers                      []engine.ExceptionResolver
	adapters                       []pagination.ConnectionAdapter

	// handler options
	initialTimeout, pingFrequency, pongTimeout time.Duration
	maxUploadSize                              int64
	noWebSocket                                bool
	interceptors                               []web.Interceptor
	jwtSecret                                  []byte
	jwtOptions                                 []jwt.ParserOption

	log abstractlogger.Logger
}

// NoIntrospection controls whether introspection queries are permitted
func NoIntrospection(on bool) func(*options) {
	return func(opt *options) {
		opt.noIntrospection = on
	}
}

// NoConcurrency controls whether concurrent execution of queries (but not mutations) is permitted
func NoConcurrency(on bool) func(*options) {
	return func(opt *options) {
		opt.noConcurrency = on
	}
}

// MaxConcurrency limits how many fields of a selection set are fetched at once (0 = no limit)
func MaxConcurrency(n int) func(*options) {
	return func(opt *options) {
		opt.maxConcurrency = n
	}
}

// DocumentCacheSize sets how many parsed query documents are kept (0 turns off the cache)
func DocumentCacheSize(size int) func(*options) {
	return func(opt *options) {
		opt.cacheSize = &size
	}
}

// ExceptionResolvers adds functions that turn errors returned by data fetchers into GraphQL errors
func ExceptionResolvers(resolvers ...engine.ExceptionResolver) func(*options) {
	return func(opt *options) {
		opt.resolvers = append(opt.resolvers, resolvers...)
	}
}

// ConnectionAdapters sets how the results of connection fields are turned into edges and cursors.
// The default handles windows and slices using the default cursor strategy.
func ConnectionAdapters(adapters ...pagination.ConnectionAdapter) func(*options) {
	return func(opt *options) {
		opt.adapters = adapters
	}
}

// InitialTimeout sets the length time to wait from when the websocket is opened until the
// "connection_init" message is received.
func InitialTimeout(timeout time.Duration) func(*options) {
	return func(opt *options) {
		opt.initialTimeout = timeout
	}
}

// PingFrequency says how often to send a "ping" message (if the client connects with new
// GraphQL websocket protocol) or a "ka" (keep alive) message (old protocol)
func PingFrequency(freq time.Duration) func(*options) {
	return func(opt *options) {
		opt.pingFrequency = freq
	}
}

// PongTimeout set the length time to wait for a "pong" message from the client after
// a "ping" message is sent.
func PongTimeout(timeout time.Duration) func(*options) {
	return func(opt *options) {
		opt.pongTimeout = timeout
	}
}

// MaxUploadSize limits the size of multipart (file upload) requests
func MaxUploadSize(size int64) func(*options) {
	return func(opt *options) {
		opt.maxUploadSize = size
	}
}

// NoWebSocket stops the handler upgrading connections to websockets
func NoWebSocket(on bool) func(*options) {
	return func(opt *options) {
		opt.noWebSocket = on
	}
}

// Interceptors adds interceptors run around every request received by the handler
func Interceptors(interceptors ...web.Interceptor) func(*options) {
	return func(opt *options) {
		opt.interceptors = append(opt.interceptors, interceptors...)
	}
}

// JWTSecret makes the handler check bearer tokens, which must be signed (HMAC) with the secret.
// Requests with a bad token are rejected and the claims of a good one are available to data
// fetchers using web.ClaimsFromContext.
func JWTSecret(secret []byte, parserOptions ...jwt.ParserOption) func(*options) {
	return func(opt *options) {
		opt.jwtSecret = secret
		opt.jwtOptions = parserOptions
	}
}

// Logger sets the logger of the service and handler
func Logger(log abstractlogger.Logger) func(*options) {
	return func(opt *options) {
		opt.log = log
	}
}

// engineOptions converts the options to those of the execution service
func (opt *options) engineOptions() []func(*engine.Service) {
	r := []func(*engine.Service){
		engine.NoIntrospection(opt.noIntrospection),
		engine.NoConcurrency(opt.noConcurrency),
		engine.MaxConcurrency(opt.maxConcurrency),
	}
	if opt.cacheSize != nil {
		r = append(r, engine.DocumentCacheSize(*opt.cacheSize))
	}
	if len(opt.resolvers) > 0 {
		r = append(r, engine.ExceptionResolvers(opt.resolvers...))
	}
	if opt.log != nil {
		r = append(r, engine.Logger(opt.log))
	}
	return r
}

// webOptions converts the options to those of the handler (zero values get the handler's defaults)
func (opt *options) webOptions() []web.Option {
	r := []web.Option{
		web.InitialTimeout(opt.initialTimeout),
		web.PingFrequency(opt.pingFrequency),
		web.PongTimeout(opt.pongTimeout),
		web.MaxUploadSize(opt.maxUploadSize),
		web.NoWebSocket(opt.noWebSocket),
	}
	if opt.jwtSecret != nil {
		r = append(r, web.Interceptors(web.JWTInterceptor(opt.jwtSecret, opt.jwtOptions...)))
	}
	if len(opt.interceptors) > 0 {
		r = append(r, web.Interceptors(opt.interceptors...))
	}
	if opt.log != nil {
		r = append(r, web.Logger(opt.log))
	}
	return r
}

// handler creates the HTTP handler for the service
func (opt *options) handler(service engine.ExecutionService) http.Handler {
	return web.NewHandler(service, opt.webOptions()...)
}
