package graphqltest

// websocket.go has a transport that is a graphql-transport-ws (graphql-ws library) client.  Queries, mutations and
// subscriptions are all sent as "subscribe" messages on the one connection, which is made on first use.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/gorilla/websocket"
	"github.com/posener/wstest"
	"go.uber.org/atomic"
)

const (
	protocolTransportWS = "graphql-transport-ws"
	ackTimeout          = 10 * time.Second
)

var errConnectionClosed = errors.New("websocket connection closed")

type (
	// WebSocketTransport sends requests over a websocket
	WebSocketTransport struct {
		url         string
		dialer      *websocket.Dialer
		header      http.Header
		initPayload map[string]interface{}

		mu     sync.Mutex
		client *wsClient
	}

	// wsClient is an initialised connection
	wsClient struct {
		conn    *websocket.Conn
		writeMu sync.Mutex

		mu          sync.Mutex
		subscribers map[string]wsSubscriber
		err         error
		closed      atomic.Bool
		done        chan struct{} // closed when the read loop ends
	}

	// wsSubscriber receives the messages for one operation
	wsSubscriber struct {
		in   chan wsMessage
		done <-chan struct{}
	}

	wsMessage struct {
		Type    string          `json:"type"`
		ID      string          `json:"id,omitempty"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
)

// NewWebSocketTransport creates a transport for the websocket URL (ws:// or wss://)
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{url: url, dialer: websocket.DefaultDialer, header: make(http.Header)}
}

// NewWebSocketHandlerTransport creates a transport connecting to the handler in-process
func NewWebSocketHandlerTransport(h http.Handler) *WebSocketTransport {
	return &WebSocketTransport{url: "ws://localhost/graphql", dialer: wstest.NewDialer(h), header: make(http.Header)}
}

// Header gives access to the headers sent when connecting
func (t *WebSocketTransport) Header() http.Header { return t.header }

// SetInitPayload sets the payload of the connection_init message, eg {"Authorization": "Bearer ..."}
func (t *WebSocketTransport) SetInitPayload(payload map[string]interface{}) {
	t.initPayload = payload
}

// Mutate returns an unconnected copy of the transport
func (t *WebSocketTransport) Mutate() *WebSocketTransport {
	r := &WebSocketTransport{url: t.url, dialer: t.dialer, header: t.header.Clone()}
	if t.initPayload != nil {
		r.initPayload = make(map[string]interface{}, len(t.initPayload))
		for k, v := range t.initPayload {
			r.initPayload[k] = v
		}
	}
	return r
}

// Close closes the connection (if any).  The next request makes a new connection.
func (t *WebSocketTransport) Close() {
	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()
	if c != nil {
		c.close()
	}
}

// Execute sends the request and returns its (first) response
func (t *WebSocketTransport) Execute(ctx context.Context, request graphql.ExecutionRequest) (graphql.Response, error) {
	stream, err := t.ExecuteSubscription(ctx, request)
	if err != nil {
		return graphql.Response{}, err
	}
	defer stream.Close()
	if !stream.Next(ctx) {
		if stream.Err() != nil {
			return graphql.Response{}, stream.Err()
		}
		return graphql.Response{}, fmt.Errorf("no response to request %s", request.ID)
	}
	return stream.Get(), nil
}

// ExecuteSubscription sends a subscribe message, the responses being the payloads of the "next" messages
func (t *WebSocketTransport) ExecuteSubscription(ctx context.Context, request graphql.ExecutionRequest) (ResponseStream, error) {
	c, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	id := request.ID
	if id == "" {
		id = graphql.NewID()
	}
	return c.subscribe(ctx, id, request.Request)
}

// connect returns the connection, dialing and initialising it if necessary
func (t *WebSocketTransport) connect(ctx context.Context) (*wsClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil && !t.client.closed.Load() {
		return t.client, nil
	}

	dialer := *t.dialer
	dialer.Subprotocols = []string{protocolTransportWS}
	conn, resp, err := dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return nil, fmt.Errorf("%w connecting to %s", err, t.url)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &wsClient{conn: conn, subscribers: make(map[string]wsSubscriber), done: make(chan struct{})}
	if err := c.init(ctx, t.initPayload); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go c.readLoop()
	t.client = c
	return c, nil
}

// init sends connection_init and waits for connection_ack
func (c *wsClient) init(ctx context.Context, payload map[string]interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w encoding connection_init payload", err)
	}
	if payload == nil {
		buf = nil
	}
	if err := c.send(wsMessage{Type: "connection_init", Payload: buf}); err != nil {
		return err
	}

	deadline := time.Now().Add(ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("%w waiting for connection_ack", err)
		}
		switch msg.Type {
		case "connection_ack":
			return nil
		case "ping":
			if err := c.send(wsMessage{Type: "pong"}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected %q message waiting for connection_ack", msg.Type)
		}
	}
}

// readLoop passes messages to their subscribers until the connection is closed
func (c *wsClient) readLoop() {
	defer close(c.done)
	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.err = errConnectionClosed
			if ce, ok := err.(*websocket.CloseError); ok {
				c.err = fmt.Errorf("%w: %d %s", errConnectionClosed, ce.Code, ce.Text)
			}
			for id, s := range c.subscribers {
				close(s.in)
				delete(c.subscribers, id)
			}
			c.mu.Unlock()
			c.closed.Store(true)
			return
		}

		switch msg.Type {
		case "ping":
			_ = c.send(wsMessage{Type: "pong"})
			continue
		case "pong":
			continue
		}
		c.mu.Lock()
		s, ok := c.subscribers[msg.ID]
		c.mu.Unlock()
		if ok {
			select {
			case s.in <- msg:
			case <-s.done:
			}
		}
	}
}

func (c *wsClient) subscribe(ctx context.Context, id string, request graphql.Request) (ResponseStream, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%w encoding request", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	in := make(chan wsMessage, 16)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		cancel()
		return nil, c.err
	}
	if _, ok := c.subscribers[id]; ok {
		c.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("operation %s is already running", id)
	}
	c.subscribers[id] = wsSubscriber{in: in, done: ctx.Done()}
	c.mu.Unlock()

	if err := c.send(wsMessage{Type: "subscribe", ID: id, Payload: payload}); err != nil {
		c.remove(id)
		cancel()
		return nil, err
	}

	out := make(chan streamItem)
	go func() {
		defer close(out)
		completed := false // by the server
		defer func() {
			c.remove(id)
			if !completed {
				_ = c.send(wsMessage{Type: "complete", ID: id})
			}
		}()
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					completed = true
					c.mu.Lock()
					err := c.err
					c.mu.Unlock()
					send(ctx, out, streamItem{err: err})
					return
				}
				switch msg.Type {
				case "next":
					r, err := graphql.ParseResponse(msg.Payload)
					if !send(ctx, out, streamItem{response: r, err: err}) || err != nil {
						return
					}
				case "error":
					completed = true
					errs, err := parseErrors(msg.Payload)
					send(ctx, out, streamItem{response: graphql.Response{Errors: errs}, err: err})
					return
				case "complete":
					completed = true
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return newChannelStream(out, cancel), nil
}

func (c *wsClient) remove(id string) {
	c.mu.Lock()
	delete(c.subscribers, id)
	c.mu.Unlock()
}

func (c *wsClient) send(msg wsMessage) error {
	if c.closed.Load() {
		return errConnectionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// close sends a normal close message and waits (briefly) for the server to close the connection
func (c *wsClient) close() {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	_ = c.conn.Close()
}
