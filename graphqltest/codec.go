package graphqltest

// codec.go converts JSON values of responses to Go values (entities)

import (
	"bytes"
	"encoding/json"

	"github.com/mitchellh/mapstructure"
)

type (
	// Codec decodes the JSON at a response path into v (a pointer)
	Codec interface {
		Decode(data []byte, v interface{}) error
	}

	// JSONCodec uses encoding/json, with an option to reject fields that v does not have
	JSONCodec struct {
		DisallowUnknownFields bool
	}

	// MapCodec decodes to a generic value then uses mapstructure (matching "json" tags) to fill v, which
	// allows conversions such as a string to a number
	MapCodec struct {
		WeaklyTyped bool
	}
)

func (c JSONCodec) Decode(data []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if c.DisallowUnknownFields {
		decoder.DisallowUnknownFields()
	}
	return decoder.Decode(v)
}

func (c MapCodec) Decode(data []byte, v interface{}) error {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: c.WeaklyTyped,
		Result:           v,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(value)
}
