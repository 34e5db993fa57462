package graphql

// json.go has JSON helpers for ordered objects and numbers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/buger/jsonparser"
	"github.com/dolmen-go/jsonmap"
)

// DecodeOrdered decodes a JSON object keeping the order of its (top level) keys.
// Nested values are decoded with DecodeValue.
func DecodeOrdered(buf []byte) (jsonmap.Ordered, error) {
	r := jsonmap.Ordered{Data: make(map[string]interface{})}
	err := jsonparser.ObjectEach(buf, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		if dataType == jsonparser.String {
			// jsonparser strips the quotes of strings
			s, err := jsonparser.ParseString(value)
			if err != nil {
				return err
			}
			SetVariable(&r, name, s)
			return nil
		}
		v, err := DecodeValue(value)
		if err != nil {
			return fmt.Errorf("%w decoding %q", err, name)
		}
		SetVariable(&r, name, v)
		return nil
	})
	if err != nil {
		return jsonmap.Ordered{}, fmt.Errorf("%w decoding JSON object", err)
	}
	return r, nil
}

// DecodeValue decodes any JSON value, numbers becoming int64 (if integral) or float64
func DecodeValue(buf []byte) (interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(buf))
	decoder.UseNumber() // allows us to distinguish ints from floats (see FixNumbers())
	var v interface{}
	if err := decoder.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", decoder.InputOffset())
	}
	return FixNumber(v), nil
}

// FixNumbers goes through the structure created by the JSON decoder, converting any json.Number values to
// either an int64 or a float64.  This assumes that all the JSON numbers were decoded into a json.Number type, rather
// than int/float, by use of the json.Decoder.UseNumber() method.
func FixNumbers(m map[string]interface{}) {
	for key, val := range m {
		m[key] = FixNumber(val)
	}
}

// FixNumber converts json.Number values in v (recursively for lists and objects)
func FixNumber(v interface{}) interface{} {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	case map[string]interface{}:
		FixNumbers(value)
	case []interface{}:
		for i := range value {
			value[i] = FixNumber(value[i])
		}
	}
	return v
}

// ordered gets the map of an ordered object
func ordered(v interface{}) (map[string]interface{}, bool) {
	switch o := v.(type) {
	case jsonmap.Ordered:
		return o.Data, true
	case *jsonmap.Ordered:
		if o != nil {
			return o.Data, true
		}
	}
	return nil, false
}
