package graphql

// response.go has the response and error types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ErrorClassification categorises a GraphQL error.  It is sent to clients in the "classification" extension.
type ErrorClassification string

const (
	InvalidSyntax               ErrorClassification = "InvalidSyntax"
	ValidationError             ErrorClassification = "ValidationError"
	OperationNotSupported       ErrorClassification = "OperationNotSupported"
	DataFetchingException       ErrorClassification = "DataFetchingException"
	NullValueInNonNullableField ErrorClassification = "NullValueInNonNullableField"
	ExecutionAborted            ErrorClassification = "ExecutionAborted"

	BadRequest    ErrorClassification = "BAD_REQUEST"
	Unauthorized  ErrorClassification = "UNAUTHORIZED"
	Forbidden     ErrorClassification = "FORBIDDEN"
	NotFound      ErrorClassification = "NOT_FOUND"
	InternalError ErrorClassification = "INTERNAL_ERROR"
)

// Classified is implemented by errors that know their GraphQL classification
type Classified interface {
	ErrorClassification() ErrorClassification
}

type (
	// Response is the result of executing a request
	Response struct {
		Data        interface{}
		DataPresent bool // false if the request failed before execution (eg validation errors)
		Errors      []ResponseError
		Extensions  map[string]interface{}
	}

	// Stream is the data of a subscription response - a Response for each event.
	// The channel is closed when the subscription completes.
	Stream <-chan Response

	// SourceLocation is the position in the request document that an error relates to
	SourceLocation struct {
		Line       int    `json:"line"`
		Column     int    `json:"column"`
		SourceName string `json:"sourceName,omitempty"`
	}

	// ResponseError is an entry of the "errors" list of a response
	ResponseError struct {
		Message        string
		Locations      []SourceLocation
		ParsedPath     []interface{} // string (field name) and int (list index) segments
		Classification ErrorClassification
		Extensions     map[string]interface{}
	}

	responseErrorJSON struct {
		Message    string                 `json:"message"`
		Locations  []SourceLocation       `json:"locations,omitempty"`
		Path       []interface{}          `json:"path,omitempty"`
		Extensions map[string]interface{} `json:"extensions,omitempty"`
	}
)

// IsValid returns true if the response has data that is not null
func (r Response) IsValid() bool {
	return r.DataPresent && r.Data != nil
}

// ToMap returns the response in the form sent to clients
func (r Response) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, 3)
	if r.DataPresent {
		m["data"] = r.Data
	}
	if len(r.Errors) > 0 {
		m["errors"] = r.Errors
	}
	if len(r.Extensions) > 0 {
		m["extensions"] = r.Extensions
	}
	return m
}

// MarshalJSON encodes the response as defined by the GraphQL spec
func (r Response) MarshalJSON() ([]byte, error) {
	var out struct {
		Data       *json.RawMessage       `json:"data,omitempty"`
		Errors     []ResponseError        `json:"errors,omitempty"`
		Extensions map[string]interface{} `json:"extensions,omitempty"`
	}
	if r.DataPresent {
		buf, err := json.Marshal(r.Data)
		if err != nil {
			return nil, fmt.Errorf("%w encoding response data", err)
		}
		raw := json.RawMessage(buf)
		out.Data = &raw
	}
	out.Errors, out.Extensions = r.Errors, r.Extensions
	return json.Marshal(out)
}

// UnmarshalJSON decodes a response (eg received from a server)
func (r *Response) UnmarshalJSON(buf []byte) error {
	var in struct {
		Data       json.RawMessage        `json:"data"`
		Errors     []ResponseError        `json:"errors"`
		Extensions map[string]interface{} `json:"extensions"`
	}
	if err := json.Unmarshal(buf, &in); err != nil {
		return err
	}
	*r = Response{Errors: in.Errors, Extensions: in.Extensions}
	if len(in.Data) > 0 {
		r.DataPresent = true
		if !bytes.Equal(bytes.TrimSpace(in.Data), []byte("null")) {
			v, err := DecodeValue(in.Data)
			if err != nil {
				return fmt.Errorf("%w decoding response data", err)
			}
			r.Data = v
		}
	}
	return nil
}

// ParseResponse decodes a JSON response body
func ParseResponse(buf []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(buf, &r); err != nil {
		return Response{}, fmt.Errorf("%w decoding GraphQL response", err)
	}
	if !r.DataPresent && len(r.Errors) == 0 {
		return Response{}, errors.New("GraphQL response has neither data nor errors")
	}
	return r, nil
}

// Field returns the value at a path of field names in the response data
func (r Response) Field(path ...string) (interface{}, bool) {
	v := r.Data
	for _, name := range path {
		m, ok := asMap(v)
		if !ok {
			return nil, false
		}
		if v, ok = m[name]; !ok {
			return nil, false
		}
	}
	return v, true
}

// Error makes ResponseError usable as a Go error, eg so a data fetcher can return one
func (e ResponseError) Error() string {
	return e.Message
}

// ErrorClassification implements Classified
func (e ResponseError) ErrorClassification() ErrorClassification {
	return e.Classification
}

// Path renders the parsed path like "project.releases[0].version"
func (e ResponseError) Path() string {
	var b strings.Builder
	for _, seg := range e.ParsedPath {
		switch s := seg.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(s) + "]")
		case int64:
			b.WriteString("[" + strconv.FormatInt(s, 10) + "]")
		case float64:
			b.WriteString("[" + strconv.Itoa(int(s)) + "]")
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(fmt.Sprint(s))
		}
	}
	return b.String()
}

// String is used in test failure messages
func (e ResponseError) String() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if p := e.Path(); p != "" {
		b.WriteString(" (path: " + p + ")")
	}
	if e.Classification != "" {
		b.WriteString(" [" + string(e.Classification) + "]")
	}
	return b.String()
}

// MarshalJSON puts the classification into the extensions
func (e ResponseError) MarshalJSON() ([]byte, error) {
	out := responseErrorJSON{Message: e.Message, Locations: e.Locations, Path: e.ParsedPath}
	if e.Classification != "" || len(e.Extensions) > 0 {
		out.Extensions = make(map[string]interface{}, len(e.Extensions)+1)
		for k, v := range e.Extensions {
			out.Extensions[k] = v
		}
		if e.Classification != "" {
			out.Extensions["classification"] = string(e.Classification)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON takes the classification out of the extensions
func (e *ResponseError) UnmarshalJSON(buf []byte) error {
	var in responseErrorJSON
	decoder := json.NewDecoder(bytes.NewReader(buf))
	decoder.UseNumber()
	if err := decoder.Decode(&in); err != nil {
		return err
	}
	*e = ResponseError{Message: in.Message, Locations: in.Locations}
	for _, seg := range in.Path {
		seg = FixNumber(seg)
		if i, ok := seg.(int64); ok {
			seg = int(i)
		}
		e.ParsedPath = append(e.ParsedPath, seg)
	}
	if len(in.Extensions) > 0 {
		FixNumbers(in.Extensions)
		if c, ok := in.Extensions["classification"].(string); ok {
			e.Classification = ErrorClassification(c)
			delete(in.Extensions, "classification")
		}
		if len(in.Extensions) > 0 {
			e.Extensions = in.Extensions
		}
	}
	return nil
}

// FromGQLError converts a gqlparser error, using class if the error does not have a classification extension
func FromGQLError(err *gqlerror.Error, class ErrorClassification) ResponseError {
	r := ResponseError{Message: err.Message, Classification: class}
	for _, loc := range err.Locations {
		r.Locations = append(r.Locations, SourceLocation{Line: loc.Line, Column: loc.Column})
	}
	r.ParsedPath = ConvertPath(err.Path)
	for k, v := range err.Extensions {
		if k == "classification" {
			if c, ok := v.(string); ok {
				r.Classification = ErrorClassification(c)
			}
			continue
		}
		if r.Extensions == nil {
			r.Extensions = make(map[string]interface{})
		}
		r.Extensions[k] = v
	}
	return r
}

// ConvertPath converts a gqlparser path to the segments of a ResponseError path
func ConvertPath(path ast.Path) []interface{} {
	if len(path) == 0 {
		return nil
	}
	r := make([]interface{}, 0, len(path))
	for _, elt := range path {
		switch e := elt.(type) {
		case ast.PathIndex:
			r = append(r, int(e))
		case ast.PathName:
			r = append(r, string(e))
		}
	}
	return r
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case interface{ ToMap() map[string]interface{} }:
		return m.ToMap(), true
	}
	return ordered(v)
}
