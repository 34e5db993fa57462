package pagination

// cursor.go converts scroll positions to and from opaque cursor strings

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/buger/jsonparser"
	"github.com/dolmen-go/jsonmap"
)

// ErrInvalidCursor is returned when a cursor cannot be decoded
var ErrInvalidCursor = errors.New("invalid cursor")

const (
	offsetPrefix = "O_"
	keysetPrefix = "K_"

	timeType = "time" // type tag of time values when time typing is enabled
)

type (
	// CursorStrategy converts between positions and cursors
	CursorStrategy interface {
		ToCursor(pos ScrollPosition) (string, error)
		FromCursor(cursor string) (ScrollPosition, error)
	}

	// KeysetCodec converts the keys of a keyset position to and from a string
	KeysetCodec interface {
		EncodeKeys(keys jsonmap.Ordered) (string, error)
		DecodeKeys(s string) (jsonmap.Ordered, error)
	}

	// CursorEncoder does a final (reversible) encoding of a cursor, eg to make it opaque
	CursorEncoder interface {
		Encode(cursor string) string
		Decode(s string) (string, error)
	}

	// ScrollPositionCursorStrategy encodes an offset position as "O_" + offset and a keyset position as "K_" + keys
	ScrollPositionCursorStrategy struct {
		Keyset KeysetCodec // default JSONKeysetCodec{}
	}

	// JSONKeysetCodec encodes keys as a JSON object preserving their order.
	// If TimeTyping is set time.Time values are tagged so they decode as time.Time rather than strings.
	JSONKeysetCodec struct {
		TimeTyping bool
	}

	// EncodingCursorStrategy applies an encoder to the cursors of another strategy
	EncodingCursorStrategy struct {
		Strategy CursorStrategy
		Encoder  CursorEncoder
	}

	// Base64Encoder encodes cursors using standard base64
	Base64Encoder struct{}

	// NoOpEncoder leaves cursors unchanged
	NoOpEncoder struct{}
)

// DefaultCursorStrategy returns the strategy used when none is configured: base64 encoded scroll position cursors
func DefaultCursorStrategy() CursorStrategy {
	return EncodingCursorStrategy{Strategy: ScrollPositionCursorStrategy{}, Encoder: Base64Encoder{}}
}

// ToCursor implements CursorStrategy
func (s ScrollPositionCursorStrategy) ToCursor(pos ScrollPosition) (string, error) {
	switch p := pos.(type) {
	case OffsetPosition:
		return offsetPrefix + strconv.FormatInt(p.StartIndex()-1, 10), nil
	case KeysetPosition:
		keys, err := s.codec().EncodeKeys(p.Keys)
		if err != nil {
			return "", fmt.Errorf("%w encoding keyset cursor", err)
		}
		return keysetPrefix + keys, nil
	}
	return "", fmt.Errorf("unsupported scroll position %T", pos)
}

// FromCursor implements CursorStrategy
func (s ScrollPositionCursorStrategy) FromCursor(cursor string) (ScrollPosition, error) {
	if len(cursor) < 3 {
		return nil, fmt.Errorf("%w %q: too short", ErrInvalidCursor, cursor)
	}
	switch cursor[:2] {
	case offsetPrefix:
		n, err := strconv.ParseInt(cursor[2:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidCursor, cursor, err)
		}
		if n < -1 { // -1 is the initial position
			return nil, fmt.Errorf("%w %q: negative offset", ErrInvalidCursor, cursor)
		}
		return Offset(n), nil
	case keysetPrefix:
		keys, err := s.codec().DecodeKeys(cursor[2:])
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidCursor, cursor, err)
		}
		return Keyset(keys, Forward), nil
	}
	return nil, fmt.Errorf("%w %q: unknown prefix", ErrInvalidCursor, cursor)
}

func (s ScrollPositionCursorStrategy) codec() KeysetCodec {
	if s.Keyset == nil {
		return JSONKeysetCodec{}
	}
	return s.Keyset
}

// EncodeKeys implements KeysetCodec
func (c JSONKeysetCodec) EncodeKeys(keys jsonmap.Ordered) (string, error) {
	if c.TimeTyping {
		typed := jsonmap.Ordered{Data: make(map[string]interface{}, len(keys.Order)), Order: keys.Order}
		for _, k := range keys.Order {
			typed.Data[k] = keys.Data[k]
			if t, ok := keys.Data[k].(time.Time); ok {
				typed.Data[k] = []interface{}{timeType, t.Format(time.RFC3339Nano)}
			}
		}
		keys = typed
	}
	if keys.Data == nil {
		keys.Data = map[string]interface{}{}
	}
	buf, err := json.Marshal(keys)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// DecodeKeys implements KeysetCodec.  Numbers decode as int64 (if integral) or float64.
func (c JSONKeysetCodec) DecodeKeys(s string) (jsonmap.Ordered, error) {
	if _, t, _, err := jsonparser.Get([]byte(s)); err != nil || t != jsonparser.Object {
		return jsonmap.Ordered{}, errors.New("keys must be a JSON object")
	}
	keys, err := graphql.DecodeOrdered([]byte(s))
	if err != nil {
		return jsonmap.Ordered{}, err
	}
	if c.TimeTyping {
		for _, k := range keys.Order {
			list, ok := keys.Data[k].([]interface{})
			if !ok || len(list) != 2 || list[0] != timeType {
				continue
			}
			str, _ := list[1].(string)
			t, err := time.Parse(time.RFC3339Nano, str)
			if err != nil {
				return jsonmap.Ordered{}, fmt.Errorf("%w decoding time key %q", err, k)
			}
			keys.Data[k] = t
		}
	}
	return keys, nil
}

// ToCursor implements CursorStrategy
func (s EncodingCursorStrategy) ToCursor(pos ScrollPosition) (string, error) {
	cursor, err := s.Strategy.ToCursor(pos)
	if err != nil {
		return "", err
	}
	return s.Encoder.Encode(cursor), nil
}

// FromCursor implements CursorStrategy
func (s EncodingCursorStrategy) FromCursor(cursor string) (ScrollPosition, error) {
	decoded, err := s.Encoder.Decode(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCursor, cursor, err)
	}
	return s.Strategy.FromCursor(decoded)
}

// Encode implements CursorEncoder
func (Base64Encoder) Encode(cursor string) string {
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

// Decode implements CursorEncoder
func (Base64Encoder) Decode(s string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Encode implements CursorEncoder
func (NoOpEncoder) Encode(cursor string) string { return cursor }

// Decode implements CursorEncoder
func (NoOpEncoder) Decode(s string) (string, error) { return s, nil }
