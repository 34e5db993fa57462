package pagination

// window.go has the containers returned by scrollable data fetchers

type (
	// Window is a range of results with the scroll position of each element
	Window struct {
		Content   []interface{}
		Positions []ScrollPosition // same length as Content
		More      bool             // more elements follow in the direction of scrolling
	}

	// Slice is a range of results starting at an index (offset) of the whole result set
	Slice struct {
		Content []interface{}
		Offset  int64 // index of the first element of Content
		More    bool
	}
)

// NewOffsetWindow creates a window of content starting at index start using offset positions
func NewOffsetWindow(content []interface{}, start int64, more bool) Window {
	w := Window{Content: content, Positions: make([]ScrollPosition, len(content)), More: more}
	for i := range content {
		w.Positions[i] = Offset(start + int64(i))
	}
	return w
}

// Len returns the number of elements in the window
func (w Window) Len() int {
	return len(w.Content)
}

// PositionAt returns the scroll position of the element at index i
func (w Window) PositionAt(i int) ScrollPosition {
	if i < 0 || i >= len(w.Positions) {
		return nil
	}
	return w.Positions[i]
}

// PositionAt returns the offset position of the element at index i
func (s Slice) PositionAt(i int) ScrollPosition {
	return Offset(s.Offset + int64(i))
}
