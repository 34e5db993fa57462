package graphqltest

// entity.go converts values of a response to Go values and has the checks of those values

import (
	"reflect"

	"github.com/stretchr/testify/assert"
)

type (
	// Entity is a value at a path converted to a Go value
	Entity struct {
		path *Path
		ptr  interface{} // pointer to the value
	}

	// EntityList is a list value at a path converted to a Go slice
	EntityList struct {
		Entity
	}
)

// Entity converts the value at the path into v, which must be a pointer
func (p *Path) Entity(v interface{}) *Entity {
	p.decode(v)
	return &Entity{path: p, ptr: v}
}

// EntityList converts the list at the path into v, which must be a pointer to a slice.
// For an indefinite path (with a wildcard) the list is the values found.
func (p *Path) EntityList(v interface{}) *EntityList {
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		p.r.fail("EntityList needs a pointer to a slice, not %T", v)
		return nil
	}
	p.decode(v)
	return &EntityList{Entity{path: p, ptr: v}}
}

func (p *Path) decode(v interface{}) {
	if !p.exists() {
		p.r.fail("No value at JSON path %q", p.path)
		return
	}
	if err := p.r.tester.codec.Decode([]byte(p.raw()), v); err != nil {
		p.r.fail("Failed to convert %s at JSON path %q to %T: %v", p.raw(), p.path, v, err)
	}
}

// Get returns the value (not the pointer passed to Path.Entity)
func (e *Entity) Get() interface{} {
	return reflect.ValueOf(e.ptr).Elem().Interface()
}

// Path continues with another path of the response
func (e *Entity) Path(path string) *Path {
	return e.path.r.Path(path)
}

// IsEqualTo fails if the value is not equal to expected (using reflect.DeepEqual or []byte comparison)
func (e *Entity) IsEqualTo(expected interface{}) *Entity {
	if got := e.Get(); !assert.ObjectsAreEqual(expected, got) {
		e.fail("Value at JSON path %q is not equal to expected (-expected +actual):\n%s", e.path.path, diff(expected, got))
	}
	return e
}

// IsNotEqualTo fails if the value is equal to other
func (e *Entity) IsNotEqualTo(other interface{}) *Entity {
	if got := e.Get(); assert.ObjectsAreEqual(other, got) {
		e.fail("Value at JSON path %q is equal to %v", e.path.path, show(other))
	}
	return e
}

// IsSameAs fails unless other is the pointer passed to Path.Entity or (for pointer, map, etc values) the value
// refers to the same thing as other
func (e *Entity) IsSameAs(other interface{}) *Entity {
	if !e.isSame(other) {
		e.fail("Value at JSON path %q is not the same as %T %v", e.path.path, other, show(other))
	}
	return e
}

// IsNotSameAs is the opposite of IsSameAs
func (e *Entity) IsNotSameAs(other interface{}) *Entity {
	if e.isSame(other) {
		e.fail("Value at JSON path %q is the same as %T %v", e.path.path, other, show(other))
	}
	return e
}

// Matches fails if the predicate returns false for the value
func (e *Entity) Matches(predicate func(interface{}) bool) *Entity {
	if !predicate(e.Get()) {
		e.fail("Value at JSON path %q does not match the predicate: %s", e.path.path, show(e.Get()))
	}
	return e
}

// Satisfies passes the value to the function, which can make its own checks
func (e *Entity) Satisfies(consumer func(interface{})) *Entity {
	consumer(e.Get())
	return e
}

func (e *Entity) isSame(other interface{}) bool {
	if other == e.ptr {
		return true
	}
	a, b := reflect.ValueOf(e.Get()), reflect.ValueOf(other)
	if !a.IsValid() || !b.IsValid() || a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer() && !a.IsNil()
	}
	return false
}

func (e *Entity) fail(format string, args ...interface{}) {
	e.path.r.fail(format, args...)
}

// elements returns the elements of the list
func (l *EntityList) elements() []interface{} {
	v := reflect.ValueOf(l.ptr).Elem()
	r := make([]interface{}, v.Len())
	for i := range r {
		r[i] = v.Index(i).Interface()
	}
	return r
}

func (l *EntityList) contains(value interface{}) bool {
	for _, elt := range l.elements() {
		if assert.ObjectsAreEqual(value, elt) {
			return true
		}
	}
	return false
}

// Contains fails unless the list contains all the values
func (l *EntityList) Contains(values ...interface{}) *EntityList {
	var missing []interface{}
	for _, v := range values {
		if !l.contains(v) {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		l.fail("List at JSON path %q %s does not contain %s", l.path.path, show(l.Get()), show(missing))
	}
	return l
}

// DoesNotContain fails if the list contains all the values
func (l *EntityList) DoesNotContain(values ...interface{}) *EntityList {
	if len(values) == 0 {
		return l
	}
	for _, v := range values {
		if !l.contains(v) {
			return l
		}
	}
	l.fail("List at JSON path %q %s contains %s", l.path.path, show(l.Get()), show(values))
	return l
}

// ContainsExactly fails unless the list contains all the values.  The list may also have other values.
func (l *EntityList) ContainsExactly(values ...interface{}) *EntityList {
	return l.Contains(values...)
}

// HasSize fails unless the list has size elements
func (l *EntityList) HasSize(size int) *EntityList {
	if n := len(l.elements()); n != size {
		l.fail("List at JSON path %q has %d elements, expected %d", l.path.path, n, size)
	}
	return l
}

// HasSizeLessThan fails unless the list has fewer than size elements
func (l *EntityList) HasSizeLessThan(size int) *EntityList {
	if n := len(l.elements()); n >= size {
		l.fail("List at JSON path %q has %d elements, expected less than %d", l.path.path, n, size)
	}
	return l
}

// HasSizeGreaterThan fails unless the list has more than size elements
func (l *EntityList) HasSizeGreaterThan(size int) *EntityList {
	if n := len(l.elements()); n <= size {
		l.fail("List at JSON path %q has %d elements, expected more than %d", l.path.path, n, size)
	}
	return l
}
