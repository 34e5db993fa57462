// Package pagination implements cursor based pagination following the Relay Connection conventions.
// Scroll positions (offset or keyset) are encoded as opaque cursors, requested ranges are derived from the
// first/after/last/before arguments, and windows of results are rendered as edges and pageInfo.
package pagination

// position.go has the offset and keyset scroll positions

import (
	"fmt"
	"reflect"

	"github.com/dolmen-go/jsonmap"
)

// Direction of a keyset scroll
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

type (
	// ScrollPosition is a pointer into an ordered result set - OffsetPosition or KeysetPosition
	ScrollPosition interface {
		IsInitial() bool
	}

	// OffsetPosition is the 0-based index of an element.  Scrolling from it starts at the next element.
	// The initial position is before the first element.
	OffsetPosition struct {
		offset  int64
		initial bool
	}

	// KeysetPosition holds the values of the sort properties of an element, in sort order
	KeysetPosition struct {
		Keys      jsonmap.Ordered
		Direction Direction
	}
)

// InitialOffset returns the position before the first element
func InitialOffset() OffsetPosition {
	return OffsetPosition{initial: true}
}

// Offset returns the position of the element at index n (a negative n gives the initial position)
func Offset(n int64) OffsetPosition {
	if n < 0 {
		return InitialOffset()
	}
	return OffsetPosition{offset: n}
}

// Offset returns the index of the element (0 for the initial position)
func (p OffsetPosition) Offset() int64 {
	return p.offset
}

// StartIndex returns the index of the first element after the position
func (p OffsetPosition) StartIndex() int64 {
	if p.initial {
		return 0
	}
	return p.offset + 1
}

// IsInitial is true for the initial position and the position of the first element (as nothing precedes it)
func (p OffsetPosition) IsInitial() bool {
	return p.initial || p.offset == 0
}

// Advance returns the position n elements further on
func (p OffsetPosition) Advance(n int64) OffsetPosition {
	if p.initial {
		return Offset(n - 1)
	}
	return Offset(p.offset + n)
}

func (p OffsetPosition) String() string {
	if p.initial {
		return "offset(initial)"
	}
	return fmt.Sprintf("offset(%d)", p.offset)
}

// Keyset creates a keyset position
func Keyset(keys jsonmap.Ordered, dir Direction) KeysetPosition {
	return KeysetPosition{Keys: keys, Direction: dir}
}

// KeysetInitial returns the keyset position that starts from the beginning (forward) or end (backward)
func KeysetInitial(dir Direction) KeysetPosition {
	return KeysetPosition{Direction: dir}
}

// IsInitial is true if there are no keys
func (p KeysetPosition) IsInitial() bool {
	return len(p.Keys.Order) == 0
}

// Backward returns the same keys scrolling backward
func (p KeysetPosition) Backward() KeysetPosition {
	p.Direction = Backward
	return p
}

// Forward returns the same keys scrolling forward
func (p KeysetPosition) Forward() KeysetPosition {
	p.Direction = Forward
	return p
}

// Equal compares keys (in order) and direction
func (p KeysetPosition) Equal(other KeysetPosition) bool {
	if p.Direction != other.Direction || len(p.Keys.Order) != len(other.Keys.Order) {
		return false
	}
	for i, k := range p.Keys.Order {
		if other.Keys.Order[i] != k || !reflect.DeepEqual(p.Keys.Data[k], other.Keys.Data[k]) {
			return false
		}
	}
	return true
}

func (p KeysetPosition) String() string {
	buf, err := p.Keys.MarshalJSON()
	if err != nil || len(p.Keys.Order) == 0 {
		buf = []byte("{}")
	}
	return fmt.Sprintf("keyset(%s, %s)", buf, p.Direction)
}
