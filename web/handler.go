// Package web binds an execution service to HTTP: GraphQL requests as JSON (POST), query parameters (GET)
// and multipart file uploads; subscriptions as server-sent events or over websockets; and an in-process
// RSocket-style route handler.
package web

// handler.go implements the HTTP handler and its ServeHTTP method

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/gorilla/websocket"
	"github.com/jensneuse/abstractlogger"
	"golang.org/x/text/language"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeResponse = "application/graphql-response+json"
	contentTypeGraphQL  = "application/graphql"
	contentTypeSSE      = "text/event-stream"
	contentTypeForm     = "multipart/form-data"
)

// Handler executes GraphQL requests received over HTTP
type Handler struct {
	service engine.ExecutionService
	config
	chain Chain
	ws    *WebSocketHandler
}

// NewHandler creates an HTTP handler that executes requests with the service
func NewHandler(service engine.ExecutionService, options ...Option) *Handler {
	h := &Handler{service: service}
	h.setOptions(options...)
	h.chain = newChain(service, h.interceptors)
	if !h.noWebSocket {
		h.ws = &WebSocketHandler{service: service, config: h.config, chain: h.chain}
	}
	return h
}

// ServeHTTP receives a GraphQL request, executes it and writes the response
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ws != nil && websocket.IsWebSocketUpgrade(r) {
		h.ws.ServeHTTP(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		h.writeError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
		return
	}

	request, err := h.decode(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "error decoding request: "+err.Error())
		return
	}

	req := newWebRequest(request, r)
	h.log.Debug("HTTP request", abstractlogger.String("id", req.ID), abstractlogger.String("operation", request.OperationName))
	ctx, cancel := context.WithCancel(r.Context()) // stops a subscription when the response is done
	defer cancel()
	response, err := h.chain(ctx, req)
	if err != nil {
		h.log.Error("execution failed", abstractlogger.String("id", req.ID), abstractlogger.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for k, v := range response.Header {
		w.Header()[k] = v
	}

	if accepts(r, contentTypeSSE) {
		h.serveSSE(w, r, response.Response)
		return
	}
	if _, ok := response.Data.(graphql.Stream); ok {
		h.writeError(w, http.StatusBadRequest, "subscriptions need an Accept header of "+contentTypeSSE+" or a websocket")
		return
	}
	h.writeJSON(w, r, response.Response)
}

// decode gets the request from the URL parameters (GET) or the body (POST)
func (h *Handler) decode(r *http.Request) (graphql.Request, error) {
	var request graphql.Request
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		request.Document, request.OperationName = q.Get("query"), q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			vars, err := graphql.DecodeOrdered([]byte(v))
			if err != nil {
				return request, fmt.Errorf("%w in variables", err)
			}
			request.Variables = vars
		}
		if v := q.Get("extensions"); v != "" {
			if err := json.Unmarshal([]byte(v), &request.Extensions); err != nil {
				return request, fmt.Errorf("%w in extensions", err)
			}
		}
	} else {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			mediaType = contentTypeJSON
		}
		switch mediaType {
		case contentTypeForm:
			if request, err = h.decodeMultipart(r); err != nil {
				return request, err
			}
		case contentTypeGraphQL:
			buf, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxUploadSize))
			if err != nil {
				return request, err
			}
			request.Document = string(buf)
		default:
			buf, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxUploadSize))
			if err != nil {
				return request, err
			}
			if err := json.Unmarshal(buf, &request); err != nil {
				return request, err
			}
		}
	}
	if request.Document == "" {
		return request, graphql.ErrEmptyRequest
	}
	return request, nil
}

// writeJSON writes the response as the media type the client prefers
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, response graphql.Response) {
	buf, err := json.Marshal(response)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "error encoding JSON response: "+err.Error())
		return
	}
	contentType := contentTypeJSON
	if accepts(r, contentTypeResponse) {
		contentType = contentTypeResponse
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(buf); err != nil {
		h.log.Error("error writing response", abstractlogger.Error(err))
	}
}

// writeError sends a GraphQL error response for a request that could not be executed
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	// the request was not executed so there is no data entry
	buf, _ := json.Marshal(graphql.Response{
		Errors: []graphql.ResponseError{{Message: message, Classification: graphql.BadRequest}},
	})
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// accepts returns true if the request's Accept header includes the media type
func accepts(r *http.Request, mediaType string) bool {
	for _, accept := range r.Header.Values("Accept") {
		for _, part := range strings.Split(accept, ",") {
			if t, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && t == mediaType {
				return true
			}
		}
	}
	return false
}

// locale gets the preferred language of the client from the Accept-Language header
func locale(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.Und
	}
	return tags[0]
}
