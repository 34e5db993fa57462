package web

// options.go handles setting of handler options
//
// As for the engine, options are closures (Option) passed as the last (variadic) parameter of NewHandler(),
// NewWebSocketHandler() and NewRSocketHandler().  Each option function below captures its parameter(s) in
// the returned closure which is run against the handler's configuration.
// If the same option function is used more than once then only the last use has any effect (except for
// Interceptors which accumulate).

import (
	"time"

	"github.com/jensneuse/abstractlogger"
)

const (
	defaultInitialTimeout = 10 * time.Second // how long to wait for connection_init after the WS is opened
	defaultPingFrequency  = 20 * time.Second // how often to send a ping (ka in old protocol) message to the client
	defaultPongTimeout    = 5 * time.Second  // how long to wait for a pong after sending a ping
	defaultMaxUploadSize  = 32 << 20         // multipart requests (bytes)
	defaultRoute          = "graphql"        // RSocket route
)

type (
	// Option sets a handler option
	Option func(*config)

	// config holds the options shared by the HTTP, WebSocket and RSocket handlers
	config struct {
		log                                        abstractlogger.Logger
		interceptors                               []Interceptor
		initialTimeout, pingFrequency, pongTimeout time.Duration
		maxUploadSize                              int64
		noWebSocket                                bool
		route                                      string
	}
)

// setOptions runs the option closures then sets any options that still have their unset (zero) value
func (c *config) setOptions(options ...Option) {
	for _, option := range options {
		option(c)
	}

	if c.log == nil {
		c.log = abstractlogger.NoopLogger
	}
	if c.initialTimeout == 0 {
		c.initialTimeout = defaultInitialTimeout
	}
	if c.pingFrequency == 0 {
		c.pingFrequency = defaultPingFrequency
	}
	if c.pongTimeout == 0 {
		c.pongTimeout = defaultPongTimeout
	}
	if c.maxUploadSize == 0 {
		c.maxUploadSize = defaultMaxUploadSize
	}
	if c.route == "" {
		c.route = defaultRoute
	}
}

// Logger sets the logger (default is no logging)
func Logger(log abstractlogger.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// Interceptors adds interceptors that are run (in order) around the execution of every request
func Interceptors(interceptors ...Interceptor) Option {
	return func(c *config) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// InitialTimeout sets the length time to wait from when the websocket is opened until the
// "connection_init" message is received. If the message is not received from the client
// within the time limit then the WS is closed with code 4408.
func InitialTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.initialTimeout = timeout
	}
}

// PingFrequency says how often to send a "ping" message (if the client connects with new
// protocol) or a "ka" (keep alive) message (old protocol)
func PingFrequency(freq time.Duration) Option {
	return func(c *config) {
		c.pingFrequency = freq
	}
}

// PongTimeout set the length time to wait for a "pong" message from the client after
// a "ping" message is sent. If the message is not received from the client
// within the time limit then the WS is closed.
func PongTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.pongTimeout = timeout
	}
}

// MaxUploadSize limits the size of multipart (file upload) requests
func MaxUploadSize(size int64) Option {
	return func(c *config) {
		c.maxUploadSize = size
	}
}

// NoWebSocket stops the HTTP handler from upgrading connections to websockets
func NoWebSocket(on bool) Option {
	return func(c *config) {
		c.noWebSocket = on
	}
}

// Route sets the route the RSocket handler answers (default "graphql")
func Route(route string) Option {
	return func(c *config) {
		c.route = route
	}
}
