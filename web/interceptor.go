package web

// interceptor.go has the chain of interceptors run around the execution of a request

import (
	"context"
	"net/http"
	"net/url"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
)

type (
	// WebRequest is a request to execute along with the details of the transport it arrived on.
	// Interceptors may modify it before calling the next in the chain.
	WebRequest struct {
		graphql.ExecutionRequest
		Header     http.Header
		URL        *url.URL
		RemoteAddr string
		cookies    []*http.Cookie
	}

	// WebResponse is the result of execution plus headers to add to the HTTP response
	WebResponse struct {
		graphql.Response
		Header http.Header
	}

	// Chain runs the rest of the interceptors then executes the request
	Chain func(ctx context.Context, request *WebRequest) (*WebResponse, error)

	// Interceptor is called around the execution of a request.  It can change the request (or context), return
	// a response without calling next, or change the response returned by next.
	Interceptor interface {
		Intercept(ctx context.Context, request *WebRequest, next Chain) (*WebResponse, error)
	}

	// InterceptorFunc adapts a function to the Interceptor interface
	InterceptorFunc func(ctx context.Context, request *WebRequest, next Chain) (*WebResponse, error)
)

// Intercept implements Interceptor
func (f InterceptorFunc) Intercept(ctx context.Context, request *WebRequest, next Chain) (*WebResponse, error) {
	return f(ctx, request, next)
}

// newWebRequest makes a request for executing r, taking headers, cookies and locale from the HTTP request
func newWebRequest(r graphql.Request, hr *http.Request) *WebRequest {
	req := &WebRequest{ExecutionRequest: graphql.NewExecutionRequest(r), Header: http.Header{}}
	if hr != nil {
		req.Header = hr.Header.Clone()
		req.URL = hr.URL
		req.RemoteAddr = hr.RemoteAddr
		req.cookies = hr.Cookies()
		req.Locale = locale(hr)
	}
	return req
}

// Cookies returns the cookies sent with the request
func (r *WebRequest) Cookies() []*http.Cookie {
	return r.cookies
}

// Cookie returns the named cookie or http.ErrNoCookie
func (r *WebRequest) Cookie(name string) (*http.Cookie, error) {
	for _, c := range r.cookies {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, http.ErrNoCookie
}

// newChain makes a chain that runs the interceptors in order, the last calling the service
func newChain(service engine.ExecutionService, interceptors []Interceptor) Chain {
	next := func(ctx context.Context, request *WebRequest) (*WebResponse, error) {
		r, err := service.Execute(ctx, request.ExecutionRequest)
		if err != nil {
			return nil, err
		}
		return &WebResponse{Response: r, Header: http.Header{}}, nil
	}
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor, inner := interceptors[i], next
		next = func(ctx context.Context, request *WebRequest) (*WebResponse, error) {
			return interceptor.Intercept(ctx, request, inner)
		}
	}
	return next
}

// errorResponse makes a response with a single error (used by interceptors that reject a request)
func errorResponse(message string, class graphql.ErrorClassification) *WebResponse {
	return &WebResponse{
		Response: graphql.Response{Errors: []graphql.ResponseError{{Message: message, Classification: class}}},
		Header:   http.Header{},
	}
}
