package graphqltest

// response.go has the response of a request, with its errors, and the checks of errors

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// reviewState says if an error has been accounted for by the test (filtered or expected)
type reviewState int

const (
	unreviewed reviewState = iota
	expected
)

type (
	// Response is a response to check.  Before any path is checked all errors must have been accounted
	// for, with the tester's error filter or the methods of Errors().
	Response struct {
		tester   *Tester
		request  graphql.Request
		response graphql.Response
		document string // the response as JSON
		errors   []*reviewedError
	}

	reviewedError struct {
		graphql.ResponseError
		state reviewState
	}

	// Errors has the checks of the errors of a response
	Errors struct {
		r *Response
	}
)

func newResponse(t *Tester, request graphql.Request, r graphql.Response) *Response {
	buf, err := json.Marshal(r)
	if err != nil {
		fail(t.t, request, "Failed to encode response: %v", err)
		return nil
	}
	document := string(buf)
	if e := gjson.Get(document, "errors"); e.Exists() && len(e.Array()) == 0 {
		if document, err = sjson.Delete(document, "errors"); err != nil {
			fail(t.t, request, "Failed to remove empty errors from %s: %v", buf, err)
			return nil
		}
	}

	response := &Response{tester: t, request: request, response: r, document: document}
	for _, e := range r.Errors {
		re := &reviewedError{ResponseError: e}
		if t.filter != nil && t.filter(e) {
			re.state = expected
		}
		response.errors = append(response.errors, re)
	}
	return response
}

// Get returns the response as received
func (r *Response) Get() graphql.Response { return r.response }

// JSON returns the response as JSON
func (r *Response) JSON() string { return r.document }

// Errors returns the checks of the response's errors
func (r *Response) Errors() *Errors { return &Errors{r: r} }

// Path gets the value at a JSON path, failing the test if the response has errors that have not been filtered
// or expected.  Paths that do not start with "$" or "data." are in the data, ie "$.data." is prepended.
// An empty path is all the data.
func (r *Response) Path(path string) *Path {
	r.verifyErrors()
	switch {
	case path == "":
		path = "$.data"
	case strings.HasPrefix(path, "$"):
	case strings.HasPrefix(path, "data."):
		path = "$." + path
	case strings.HasPrefix(path, "["):
		path = "$.data" + path
	default:
		path = "$.data." + path
	}
	return newPath(r, path)
}

// fail reports a failure of a check of the response
func (r *Response) fail(format string, args ...interface{}) {
	if h, ok := r.tester.t.(tHelper); ok {
		h.Helper()
	}
	fail(r.tester.t, r.request, format, args...)
}

// verifyErrors fails if any errors are unreviewed
func (r *Response) verifyErrors() {
	var unexpected []string
	for _, e := range r.errors {
		if e.state == unreviewed {
			unexpected = append(unexpected, e.String())
		}
	}
	if len(unexpected) > 0 {
		r.fail("Response has %d unexpected error(s) of %d in total:\n  %s", len(unexpected), len(r.errors),
			strings.Join(unexpected, "\n  "))
	}
}

// Filter marks the errors that match the predicate as expected.  It is not a failure if none match.
func (e *Errors) Filter(predicate func(graphql.ResponseError) bool) *Errors {
	e.mark(predicate)
	return e
}

// Expect marks the errors that match the predicate as expected, failing if none match
func (e *Errors) Expect(predicate func(graphql.ResponseError) bool) *Errors {
	if e.mark(predicate) == 0 {
		e.r.fail("No error matched the expectation. Errors: %s", e.list())
	}
	return e
}

// Verify fails if any errors have not been filtered or expected.  It returns the response for checking paths.
func (e *Errors) Verify() *Response {
	e.r.verifyErrors()
	return e.r
}

// Satisfy passes all the errors to the function (which can make its own checks) and marks them as expected
func (e *Errors) Satisfy(consumer func([]graphql.ResponseError)) *Response {
	all := make([]graphql.ResponseError, len(e.r.errors))
	for i, re := range e.r.errors {
		re.state = expected
		all[i] = re.ResponseError
	}
	consumer(all)
	return e.r
}

// mark sets errors matching the predicate as expected returning how many matched
func (e *Errors) mark(predicate func(graphql.ResponseError) bool) int {
	count := 0
	for _, re := range e.r.errors {
		if predicate(re.ResponseError) {
			re.state = expected
			count++
		}
	}
	return count
}

func (e *Errors) list() string {
	if len(e.r.errors) == 0 {
		return "none"
	}
	s := make([]string, len(e.r.errors))
	for i, re := range e.r.errors {
		s[i] = re.String()
	}
	return "\n  " + strings.Join(s, "\n  ")
}

// responseJSON is used to show a response in a failure message
func responseJSON(r graphql.Response) string {
	buf, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%+v", r)
	}
	return string(buf)
}
