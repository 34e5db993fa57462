package graphqltest

// path.go gets the values at JSON paths of a response and has the checks of those values.
// Paths are a subset of JSONPath: $ (root), .name, ['name'], [n] (list index) and [*] or .* (all elements).
// A path with a wildcard is indefinite - its value is a list of the values found.

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var errPathNotFound = errors.New("no value at path")

type (
	segmentKind int

	segment struct {
		kind  segmentKind
		name  string
		index int
	}

	// Path is the value(s) at a path of a response
	Path struct {
		r          *Response
		path       string
		indefinite bool
		results    []gjson.Result
	}
)

const (
	segmentName segmentKind = iota
	segmentIndex
	segmentWildcard
)

// newPath finds the values at the path, failing if the path cannot be parsed
func newPath(r *Response, path string) *Path {
	segments, err := parsePath(path)
	if err != nil {
		r.fail("Invalid JSON path %q: %v", path, err)
		return nil
	}
	p := &Path{r: r, path: path}
	current := []gjson.Result{gjson.Parse(r.document)}
	for _, seg := range segments {
		var next []gjson.Result
		for _, v := range current {
			switch seg.kind {
			case segmentName:
				if v.IsObject() {
					v.ForEach(func(key, value gjson.Result) bool {
						if key.Str == seg.name {
							next = append(next, value)
							return false
						}
						return true
					})
				}
			case segmentIndex:
				if v.IsArray() {
					if elts := v.Array(); seg.index < len(elts) {
						next = append(next, elts[seg.index])
					}
				}
			case segmentWildcard:
				p.indefinite = true
				if v.IsArray() || v.IsObject() {
					v.ForEach(func(_, value gjson.Result) bool {
						next = append(next, value)
						return true
					})
				}
			}
		}
		current = next
	}
	p.results = current
	return p
}

// parsePath splits a path into segments, rejecting JSONPath features that are not supported
func parsePath(path string) ([]segment, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, errors.New(`path must start with "$"`)
	}
	var r []segment
	for i := 1; i < len(path); {
		switch path[i] {
		case '.':
			i++
			if i >= len(path) {
				return nil, errors.New("path ends with a dot")
			}
			switch path[i] {
			case '.':
				return nil, errors.New("deep scan (..) is not supported")
			case '*':
				r = append(r, segment{kind: segmentWildcard})
				i++
				continue
			}
			end := i
			for end < len(path) && path[end] != '.' && path[end] != '[' {
				end++
			}
			if end == i {
				return nil, fmt.Errorf("missing name at %d", i)
			}
			r = append(r, segment{kind: segmentName, name: path[i:end]})
			i = end

		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed [ at %d", i)
			}
			inner := path[i+1 : i+end]
			switch {
			case inner == "*":
				r = append(r, segment{kind: segmentWildcard})
			case strings.HasPrefix(inner, "?"):
				return nil, errors.New("filters are not supported")
			case len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0]:
				r = append(r, segment{kind: segmentName, name: inner[1 : len(inner)-1]})
			default:
				n, err := strconv.Atoi(inner)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("unsupported subscript [%s]", inner)
				}
				r = append(r, segment{kind: segmentIndex, index: n})
			}
			i += end + 1

		default:
			return nil, fmt.Errorf("unexpected %q at %d", path[i], i)
		}
	}
	return r, nil
}

// Path gets a path relative to this one, eg Path("project").Path("releases[0]")
func (p *Path) Path(path string) *Path {
	if strings.HasPrefix(path, "[") {
		return p.r.Path(p.path + path)
	}
	return p.r.Path(p.path + "." + path)
}

// PathExists fails if there is no value at the path (a null value exists)
func (p *Path) PathExists() *Path {
	if !p.exists() {
		p.r.fail("No value at JSON path %q", p.path)
	}
	return p
}

// PathDoesNotExist fails if there is a value at the path
func (p *Path) PathDoesNotExist() *Path {
	if p.exists() {
		p.r.fail("Expected no value at JSON path %q but found %s", p.path, p.raw())
	}
	return p
}

// ValueExists fails if there is no value, or the value is null
func (p *Path) ValueExists() *Path {
	if !p.valueExists() {
		p.r.fail("No value at JSON path %q", p.path)
	}
	return p
}

// ValueDoesNotExist fails if there is a value that is not null
func (p *Path) ValueDoesNotExist() *Path {
	if p.valueExists() {
		p.r.fail("Expected no value at JSON path %q but found %s", p.path, p.raw())
	}
	return p
}

// ValueIsEmpty fails unless there is no value or it is null, an empty string, an empty list or an empty object
func (p *Path) ValueIsEmpty() *Path {
	empty, err := p.isEmpty()
	if errors.Is(err, errPathNotFound) {
		return p
	}
	if !empty {
		p.r.fail("Expected an empty value at JSON path %q but found %s", p.path, p.raw())
	}
	return p
}

// ValueIsNotEmpty fails if the value is missing or empty (see ValueIsEmpty)
func (p *Path) ValueIsNotEmpty() *Path {
	empty, err := p.isEmpty()
	if err != nil {
		p.r.fail("No value at JSON path %q", p.path)
	}
	if empty {
		p.r.fail("Expected a non-empty value at JSON path %q but found %s", p.path, p.raw())
	}
	return p
}

// Raw returns the JSON of the value (a list of the values for an indefinite path)
func (p *Path) Raw() string {
	return p.raw()
}

func (p *Path) exists() bool {
	if p.indefinite {
		return len(p.results) > 0
	}
	return len(p.results) == 1
}

func (p *Path) valueExists() bool {
	if p.indefinite {
		return len(p.results) > 0
	}
	return len(p.results) == 1 && p.results[0].Type != gjson.Null
}

func (p *Path) isEmpty() (bool, error) {
	if !p.exists() {
		return false, errPathNotFound
	}
	if p.indefinite {
		return false, nil
	}
	v := p.results[0]
	switch {
	case v.Type == gjson.Null:
		return true, nil
	case v.Type == gjson.String:
		return v.Str == "", nil
	case v.IsArray():
		return len(v.Array()) == 0, nil
	case v.IsObject():
		return len(v.Map()) == 0, nil
	}
	return false, nil
}

// raw returns the JSON text of the value
func (p *Path) raw() string {
	if !p.indefinite {
		if len(p.results) == 0 {
			return "nothing"
		}
		return p.results[0].Raw
	}
	s := make([]string, len(p.results))
	for i, v := range p.results {
		s[i] = v.Raw
	}
	return "[" + strings.Join(s, ",") + "]"
}
