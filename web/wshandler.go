package web

// wshandler.go handles websockets for subscriptions (and queries/mutations).  It supports both commonly used WS protocols
// * subscriptions-transport-ws: early protocol from Apollo for subscriptions (sub-protocol name:graphql-ws)
// * graphql-ws is newer ws transport which can handle query/mutation/subscription (sub-protocol name:graphql-transport-ws).

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

const (
	protocolGraphQLWS   = "graphql-ws"           // subscriptions-transport-ws (old)
	protocolTransportWS = "graphql-transport-ws" // graphql-ws (new)

	closeBadRequest   = 4400
	closeUnauthorized = 4401
	closeInitTimeout  = 4408
	closeDuplicateID  = 4409
	closeTooManyInits = 4429
)

// errBadMessage is returned by read when a message is not valid JSON
var errBadMessage = errors.New("invalid message")

type (
	// WebSocketHandler executes requests received over websockets
	WebSocketHandler struct {
		service engine.ExecutionService
		config
		chain Chain
	}

	wsConnection struct {
		*websocket.Conn // handle for WS communications

		h       *WebSocketHandler
		request *http.Request
		header  http.Header // request headers plus the authorization of connection_init
		id      string      // connection id for logging

		writeMu sync.Mutex // only one goroutine may write at a time

		// cancelSubscription keeps track of the cancel function associated with each operation.
		//  map key = ID that identifies the operation
		//  map value = context.CancelFunc that will terminate the operation (ie kill all subscription processing)
		mu                 sync.Mutex
		cancelSubscription map[string]context.CancelFunc
		wg                 sync.WaitGroup

		newProtocol  bool // default to old
		pongReceived atomic.Bool
	}

	wsMessage struct {
		Type    string          `json:"type"`
		ID      string          `json:"id,omitempty"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
)

var upgrader = websocket.Upgrader{
	CheckOrigin:  func(r *http.Request) bool { return true },
	Subprotocols: []string{protocolGraphQLWS, protocolTransportWS},
}

// NewWebSocketHandler creates a handler that upgrades HTTP requests to websockets and executes the
// requests sent over them
func NewWebSocketHandler(service engine.ExecutionService, options ...Option) *WebSocketHandler {
	h := &WebSocketHandler{service: service}
	h.setOptions(options...)
	h.chain = newChain(service, h.interceptors)
	return h
}

// ServeHTTP upgrades the connection then processes messages until the client (or a protocol error) closes it
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade error", abstractlogger.Error(err))
		// nothing else required here as w's HTTP status has already been set
		return
	}
	c := &wsConnection{
		Conn:               conn,
		h:                  h,
		request:            r,
		header:             r.Header.Clone(),
		id:                 uuid.NewString(),
		cancelSubscription: make(map[string]context.CancelFunc, 1),
		newProtocol:        conn.Subprotocol() == protocolTransportWS, // else assume it's the "old" (graphql-ws) WS sub-protocol
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		c.stopAll()
		c.wg.Wait()
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			h.log.Debug("websocket close error", abstractlogger.String("connection", c.id), abstractlogger.Error(err))
		}
	}()
	h.log.Debug("websocket opened", abstractlogger.String("connection", c.id), abstractlogger.String("protocol", conn.Subprotocol()))

	if !c.init() {
		return
	}
	go c.keepAlive(ctx)
	c.run(ctx)
}

// init handles the initial (high level) handshake by receiving a "connection_init" message and sending an "ack"
func (c *wsConnection) init() bool {
	_ = c.SetReadDeadline(time.Now().Add(c.h.initialTimeout))
	message, err := c.read()
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		c.close(closeInitTimeout, "Connection initialisation timeout")
		return false
	case errors.Is(err, errBadMessage):
		c.close(closeBadRequest, err.Error())
		return false
	case err != nil:
		return false
	}
	_ = c.SetReadDeadline(time.Time{})

	switch message.Type {
	case "connection_init":
	case "connection_terminate":
		c.close(websocket.CloseNormalClosure, "")
		return false
	case "subscribe":
		c.close(closeUnauthorized, "Unauthorized")
		return false
	default:
		if !c.newProtocol {
			c.send(wsMessage{Type: "connection_error", Payload: errorPayload("expected connection_init")})
		}
		c.close(closeBadRequest, "expected connection_init, got "+message.Type)
		return false
	}
	c.initPayload(message.Payload)

	if err := c.send(wsMessage{Type: "connection_ack"}); err != nil {
		return false
	}
	if !c.newProtocol {
		_ = c.send(wsMessage{Type: "ka"})
	}
	return true
}

// initPayload takes the authorization (if any) from the payload of connection_init so that interceptors
// can check it like an HTTP header
func (c *wsConnection) initPayload(payload json.RawMessage) {
	var m map[string]interface{}
	if len(payload) == 0 || json.Unmarshal(payload, &m) != nil {
		return
	}
	for k, v := range m {
		if s, ok := v.(string); ok && strings.EqualFold(k, "authorization") {
			c.header.Set("Authorization", s)
		}
	}
}

// run reads and handles messages until the connection is closed
func (c *wsConnection) run(ctx context.Context) {
	for {
		message, err := c.read()
		if errors.Is(err, errBadMessage) {
			c.close(closeBadRequest, err.Error())
			return
		}
		if err != nil {
			return
		}

		switch message.Type {
		case "subscribe", "start":
			if (message.Type == "subscribe") != c.newProtocol {
				c.close(closeBadRequest, "unexpected message type "+message.Type)
				return
			}
			if !c.start(ctx, message) {
				return
			}

		case "complete", "stop":
			c.stop(message.ID)

		case "ping":
			_ = c.send(wsMessage{Type: "pong", Payload: message.Payload})

		case "pong":
			c.pongReceived.Store(true)

		case "connection_init":
			c.close(closeTooManyInits, "Too many initialisation requests")
			return

		case "connection_terminate":
			c.close(websocket.CloseNormalClosure, "")
			return

		default:
			c.close(closeBadRequest, "unexpected message type "+message.Type)
			return
		}
	}
}

// start decodes the request of a subscribe (or start) message and starts executing it.
// It returns false if the connection has been closed due to a protocol error.
func (c *wsConnection) start(ctx context.Context, message *wsMessage) bool {
	var request graphql.Request
	if message.ID == "" || len(message.Payload) == 0 {
		c.close(closeBadRequest, "subscribe message needs an id and payload")
		return false
	}
	if err := json.Unmarshal(message.Payload, &request); err != nil {
		c.close(closeBadRequest, "invalid payload: "+err.Error())
		return false
	}

	// Add to our map of operations active in this ws (first checking that the ID is not in use)
	c.mu.Lock()
	if _, ok := c.cancelSubscription[message.ID]; ok {
		c.mu.Unlock()
		c.close(closeDuplicateID, "Subscriber for "+message.ID+" already exists")
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelSubscription[message.ID] = cancel
	c.mu.Unlock()

	req := newWebRequest(request, c.request)
	req.Header = c.header.Clone()
	c.h.log.Debug("websocket request", abstractlogger.String("connection", c.id),
		abstractlogger.String("id", message.ID), abstractlogger.String("request", req.ID))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.finish(message.ID, cancel)
		c.process(ctx, message.ID, req)
	}()
	return true
}

// process executes the request sending the response(s)
func (c *wsConnection) process(ctx context.Context, id string, req *WebRequest) {
	response, err := c.h.chain(ctx, req)
	if err != nil {
		_ = c.send(wsMessage{Type: "error", ID: id, Payload: c.errorPayload(graphql.ResponseError{Message: err.Error()})})
		return
	}
	stream, ok := response.Data.(graphql.Stream)
	if !ok {
		if !response.DataPresent && len(response.Errors) > 0 {
			_ = c.send(wsMessage{Type: "error", ID: id, Payload: c.errorPayload(response.Errors...)})
			return
		}
		if c.next(id, response.Response) == nil {
			_ = c.send(wsMessage{Type: "complete", ID: id})
		}
		return
	}

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				_ = c.send(wsMessage{Type: "complete", ID: id})
				return
			}
			if err := c.next(id, event); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// next sends a response ("next" message, or "data" for the old protocol)
func (c *wsConnection) next(id string, r graphql.Response) error {
	messageType := "next"
	if !c.newProtocol {
		messageType = "data"
	}
	payload, err := json.Marshal(r)
	if err != nil {
		payload = c.errorPayload(graphql.ResponseError{Message: "error encoding response: " + err.Error()})
		messageType = "error"
	}
	return c.send(wsMessage{Type: messageType, ID: id, Payload: payload})
}

// errorPayload is a list of errors (new protocol) or a single error (old protocol)
func (c *wsConnection) errorPayload(errs ...graphql.ResponseError) json.RawMessage {
	var buf []byte
	if c.newProtocol {
		buf, _ = json.Marshal(errs)
	} else {
		buf, _ = json.Marshal(errs[0])
	}
	return buf
}

func errorPayload(message string) json.RawMessage {
	buf, _ := json.Marshal(map[string]string{"message": message})
	return buf
}

// stop kills processing of one operation (eg subscription) by calling the cancel function of the operation's context
func (c *wsConnection) stop(id string) {
	c.mu.Lock()
	cancel, ok := c.cancelSubscription[id]
	delete(c.cancelSubscription, id)
	c.mu.Unlock()
	if !ok {
		c.h.log.Debug("websocket ID not found or already complete", abstractlogger.String("id", id))
		return
	}
	cancel()
	if !c.newProtocol {
		_ = c.send(wsMessage{Type: "complete", ID: id})
	}
}

// finish removes a completed operation so that its ID can be reused
func (c *wsConnection) finish(id string, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancelSubscription, id)
}

// stopAll kills processing of all operations (eg before closing the websocket)
func (c *wsConnection) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.cancelSubscription {
		cancel()
		delete(c.cancelSubscription, id)
	}
}

// keepAlive periodically sends a "ping" (closing the connection if a "pong" is not received in time) or
// for the old protocol a "ka" message
func (c *wsConnection) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.h.pingFrequency)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !c.newProtocol {
			if c.send(wsMessage{Type: "ka"}) != nil {
				return
			}
			continue
		}

		c.pongReceived.Store(false)
		if c.send(wsMessage{Type: "ping"}) != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.h.pongTimeout):
		}
		if !c.pongReceived.Load() {
			c.h.log.Debug("websocket pong timeout", abstractlogger.String("connection", c.id))
			_ = c.Conn.Close() // the read in run() then fails which ends the connection
			return
		}
	}
}

func (c *wsConnection) read() (*wsMessage, error) {
	_, buf, err := c.ReadMessage()
	if err != nil {
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.h.log.Debug("websocket read error", abstractlogger.String("connection", c.id), abstractlogger.Error(err))
		}
		return nil, err
	}

	var message wsMessage
	if err := json.Unmarshal(buf, &message); err != nil || message.Type == "" {
		return nil, fmt.Errorf("%w: %s", errBadMessage, buf)
	}
	return &message, nil
}

func (c *wsConnection) send(message wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.WriteJSON(message); err != nil {
		c.h.log.Debug("websocket write error", abstractlogger.String("connection", c.id), abstractlogger.Error(err))
		return err
	}
	return nil
}

// close sends a close message with the code and reason; the caller then returns and the connection is closed
func (c *wsConnection) close(code int, reason string) {
	const maxReason = 120 // control frame payloads are limited to 125 bytes
	if len(reason) > maxReason {
		reason = reason[:maxReason]
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.h.log.Debug("websocket closing", abstractlogger.String("connection", c.id),
		abstractlogger.Int("code", code), abstractlogger.String("reason", reason))
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
