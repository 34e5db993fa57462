// Package graphql holds the transport-neutral GraphQL request and response model shared by the
// engine, the web bindings and the test support.
package graphql

// request.go has the request types, ids and ordered variables

import (
	"encoding/json"
	"errors"

	"github.com/dolmen-go/jsonmap"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// ErrEmptyRequest is returned when decoding a request that has no document
var ErrEmptyRequest = errors.New("request has no query document")

type (
	// Request is a GraphQL request as sent by a client.  Variables keep their insertion order.
	Request struct {
		Document      string
		OperationName string
		Variables     jsonmap.Ordered
		Extensions    map[string]interface{}
	}

	// ExecutionRequest is a request as handed to an execution service, with an id and locale
	ExecutionRequest struct {
		Request
		ID     string
		Locale language.Tag
	}

	// requestJSON is the wire form of a Request
	requestJSON struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName,omitempty"`
		Variables     *jsonmap.Ordered       `json:"variables,omitempty"`
		Extensions    map[string]interface{} `json:"extensions,omitempty"`
	}
)

// NewID generates a unique request id
func NewID() string {
	return uuid.NewString()
}

// NewExecutionRequest wraps a request giving it a new id
func NewExecutionRequest(r Request) ExecutionRequest {
	return ExecutionRequest{Request: r, ID: NewID(), Locale: language.Und}
}

// NewVariables makes ordered variables from alternating names and values
func NewVariables(kv ...interface{}) jsonmap.Ordered {
	var r jsonmap.Ordered
	for i := 0; i+1 < len(kv); i += 2 {
		SetVariable(&r, kv[i].(string), kv[i+1])
	}
	return r
}

// SetVariable adds or replaces a variable, keeping the position of the first insertion
func SetVariable(vars *jsonmap.Ordered, name string, value interface{}) {
	if vars.Data == nil {
		vars.Data = make(map[string]interface{})
	}
	if _, ok := vars.Data[name]; !ok {
		vars.Order = append(vars.Order, name)
	}
	vars.Data[name] = value
}

// CopyVariables makes a copy of ordered variables so the copy can be modified independently
func CopyVariables(vars jsonmap.Ordered) jsonmap.Ordered {
	r := jsonmap.Ordered{
		Data:  make(map[string]interface{}, len(vars.Data)),
		Order: make([]string, 0, len(vars.Order)),
	}
	for _, k := range vars.Order {
		SetVariable(&r, k, vars.Data[k])
	}
	return r
}

// VariableMap returns the variables as a plain map (never nil)
func (r Request) VariableMap() map[string]interface{} {
	if r.Variables.Data == nil {
		return map[string]interface{}{}
	}
	return r.Variables.Data
}

// ToMap returns the request in its transport-neutral form.  Empty optional entries are left out.
func (r Request) ToMap() map[string]interface{} {
	m := map[string]interface{}{"query": r.Document}
	if r.OperationName != "" {
		m["operationName"] = r.OperationName
	}
	if len(r.Variables.Order) > 0 {
		m["variables"] = r.Variables.Data
	}
	if len(r.Extensions) > 0 {
		m["extensions"] = r.Extensions
	}
	return m
}

// MarshalJSON encodes the request with variables in insertion order
func (r Request) MarshalJSON() ([]byte, error) {
	out := requestJSON{
		Query:         r.Document,
		OperationName: r.OperationName,
		Extensions:    r.Extensions,
	}
	if len(r.Variables.Order) > 0 {
		out.Variables = &r.Variables
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a request keeping the order of the variables.
// JSON numbers in variables become int64 if integral else float64.
func (r *Request) UnmarshalJSON(buf []byte) error {
	var in struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     json.RawMessage        `json:"variables"`
		Extensions    map[string]interface{} `json:"extensions"`
	}
	if err := json.Unmarshal(buf, &in); err != nil {
		return err
	}
	r.Document, r.OperationName, r.Extensions = in.Query, in.OperationName, in.Extensions
	r.Variables = jsonmap.Ordered{}
	if len(in.Variables) > 0 && string(in.Variables) != "null" {
		vars, err := DecodeOrdered(in.Variables)
		if err != nil {
			return err
		}
		r.Variables = vars
	}
	return nil
}

// String is used when a request is shown in a test failure message
func (r Request) String() string {
	buf, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return r.Document
	}
	return string(buf)
}
