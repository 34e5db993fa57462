package graphqltest

// http.go has transports that send requests as HTTP POSTs, to a URL or an in-process http.Handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"github.com/andrewwphillips/gqlkit/graphql"
	"golang.org/x/text/language"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeResponse = "application/graphql-response+json"
	contentTypeSSE      = "text/event-stream"
)

// HTTPTransport sends each request as a JSON POST
type HTTPTransport struct {
	url    string
	client *http.Client
	header http.Header
}

// NewHTTPTransport creates a transport posting to the URL using the client (http.DefaultClient if nil)
func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{url: url, client: client, header: make(http.Header)}
}

// NewHandlerTransport creates a transport that serves requests with the handler, without a server
func NewHandlerTransport(h http.Handler) *HTTPTransport {
	return NewHTTPTransport("http://localhost/graphql", &http.Client{Transport: handlerRoundTripper{h}})
}

// Header gives access to the headers sent with every request
func (t *HTTPTransport) Header() http.Header { return t.header }

// Mutate returns a copy of the transport with its own headers
func (t *HTTPTransport) Mutate() *HTTPTransport {
	return &HTTPTransport{url: t.url, client: t.client, header: t.header.Clone()}
}

// Execute posts the request and decodes the JSON response
func (t *HTTPTransport) Execute(ctx context.Context, request graphql.ExecutionRequest) (graphql.Response, error) {
	resp, err := t.post(ctx, request, contentTypeResponse+", "+contentTypeJSON)
	if err != nil {
		return graphql.Response{}, err
	}
	defer resp.Body.Close()

	if mediaType(resp) != contentTypeJSON && mediaType(resp) != contentTypeResponse {
		return graphql.Response{}, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return graphql.Response{}, fmt.Errorf("%w reading response body", err)
	}
	return graphql.ParseResponse(buf)
}

// ExecuteSubscription returns ErrSubscriptionNotSupported - use an SSETransport or a WebSocketTransport
func (t *HTTPTransport) ExecuteSubscription(context.Context, graphql.ExecutionRequest) (ResponseStream, error) {
	return nil, ErrSubscriptionNotSupported
}

// post sends the request returning the response if it has status OK
func (t *HTTPTransport) post(ctx context.Context, request graphql.ExecutionRequest, accept string) (*http.Response, error) {
	body, err := json.Marshal(request.Request)
	if err != nil {
		return nil, fmt.Errorf("%w encoding request", err)
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range t.header {
		hr.Header[k] = append([]string(nil), v...)
	}
	hr.Header.Set("Content-Type", contentTypeJSON)
	hr.Header.Set("Accept", accept)
	if request.ID != "" {
		hr.Header.Set("X-Request-ID", request.ID)
	}
	if request.Locale != language.Und {
		hr.Header.Set("Accept-Language", request.Locale.String())
	}

	resp, err := t.client.Do(hr)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP status %d (%s): %s", resp.StatusCode, http.StatusText(resp.StatusCode), buf)
	}
	return resp, nil
}

func mediaType(resp *http.Response) string {
	t, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return t
}

type (
	// handlerRoundTripper serves requests with a handler.  The handler runs in its own goroutine writing
	// the body to a pipe, so a streamed (SSE) response can be read while it is being written.
	handlerRoundTripper struct {
		h http.Handler
	}

	// pipeWriter is the http.ResponseWriter given to the handler
	pipeWriter struct {
		header  http.Header
		written http.Header // headers as at the time the status was written
		status  int
		w       *io.PipeWriter
		ready   chan struct{}
		once    sync.Once
	}
)

func (rt handlerRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	pr, pw := io.Pipe()
	w := &pipeWriter{header: make(http.Header), w: pw, ready: make(chan struct{})}
	sr := r.Clone(r.Context())
	sr.RequestURI = r.URL.RequestURI()
	sr.RemoteAddr = "127.0.0.1:1234"
	if sr.Body == nil {
		sr.Body = http.NoBody
	}
	go func() {
		defer func() {
			w.WriteHeader(http.StatusOK) // in case the handler wrote nothing
			_ = pw.Close()
		}()
		rt.h.ServeHTTP(w, sr)
	}()

	select {
	case <-w.ready:
	case <-r.Context().Done():
		_ = pr.Close()
		return nil, r.Context().Err()
	}
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", w.status, http.StatusText(w.status)),
		StatusCode: w.status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     w.written,
		Body:       pr,
		Request:    r,
	}, nil
}

func (w *pipeWriter) Header() http.Header { return w.header }

func (w *pipeWriter) WriteHeader(status int) {
	w.once.Do(func() {
		w.status, w.written = status, w.header.Clone()
		close(w.ready)
	})
}

func (w *pipeWriter) Write(buf []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.w.Write(buf)
}

// Flush does nothing as writes to the pipe block until they are read
func (w *pipeWriter) Flush() {}

var _ http.Flusher = (*pipeWriter)(nil)
