package pagination

// subrange.go converts pagination arguments (first/after/last/before) into the range of elements to fetch

import (
	"fmt"
)

// Subrange is a requested range of elements: a position (nil for the start), how many (nil for the default) and
// the direction.  Offset ranges are always forward.
type Subrange struct {
	Position ScrollPosition
	Count    *int
	Forward  bool
}

// NewSubrange creates a Subrange normalising the values:
//   - a negative count is treated as not specified
//   - an offset scrolling backward becomes a forward range ending just before the offset
//   - a keyset scrolling backward gets the backward direction
func NewSubrange(pos ScrollPosition, count *int, forward bool) Subrange {
	if count != nil && *count < 0 {
		count = nil
	}
	switch p := pos.(type) {
	case OffsetPosition:
		if !forward {
			n := 1
			if count != nil {
				n = *count
			}
			offset := p.StartIndex() - 1 // -1 for the initial position
			if offset-int64(n+1) < 0 {
				// Not enough elements before the position: return them all from the start
				c := int(offset)
				if c < 0 {
					c = 0
				}
				return Subrange{Position: InitialOffset(), Count: &c, Forward: true}
			}
			pos = Offset(offset - int64(n+1))
		}
		forward = true
	case KeysetPosition:
		if !forward {
			pos = p.Backward()
		}
	}
	return Subrange{Position: pos, Count: count, Forward: forward}
}

// SubrangeFromArguments creates a Subrange from the Relay pagination arguments of a field.
// first/after scroll forward, last/before scroll backward.
func SubrangeFromArguments(args map[string]interface{}, strategy CursorStrategy) (Subrange, error) {
	forward := true
	if args["last"] != nil || args["before"] != nil {
		forward = false
	}
	countArg, cursorArg := "first", "after"
	if !forward {
		countArg, cursorArg = "last", "before"
	}

	var count *int
	if v := args[countArg]; v != nil {
		n, err := toInt(v)
		if err != nil {
			return Subrange{}, fmt.Errorf("%w in argument %q", err, countArg)
		}
		count = &n
	}
	var pos ScrollPosition
	if v := args[cursorArg]; v != nil {
		cursor, ok := v.(string)
		if !ok {
			return Subrange{}, fmt.Errorf("argument %q must be a string cursor, got %T", cursorArg, v)
		}
		var err error
		if pos, err = strategy.FromCursor(cursor); err != nil {
			return Subrange{}, fmt.Errorf("%w in argument %q", err, cursorArg)
		}
	}
	return NewSubrange(pos, count, forward), nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("invalid count %v (%T)", v, v)
}
