package pagination

// connection.go renders windows of results as Relay connections (edges and pageInfo)

import (
	"fmt"
	"strings"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/vektah/gqlparser/v2/ast"
)

const connectionSuffix = "Connection"

type (
	// ConnectionAdapter gives access to the elements and positions of a container of results
	ConnectionAdapter interface {
		Supports(container interface{}) bool
		Content(container interface{}) []interface{}
		HasPrevious(container interface{}) bool
		HasNext(container interface{}) bool
		CursorAt(container interface{}, index int) (string, error)
	}

	// WindowConnectionAdapter adapts Window (or *Window) values
	WindowConnectionAdapter struct {
		Strategy CursorStrategy // default DefaultCursorStrategy()
	}

	// SliceConnectionAdapter adapts Slice (or *Slice) values
	SliceConnectionAdapter struct {
		Strategy CursorStrategy
	}

	connectionVisitor struct {
		adapters []ConnectionAdapter
	}
)

// Supports implements ConnectionAdapter
func (a WindowConnectionAdapter) Supports(container interface{}) bool {
	_, ok := window(container)
	return ok
}

// Content implements ConnectionAdapter
func (a WindowConnectionAdapter) Content(container interface{}) []interface{} {
	w, _ := window(container)
	return w.Content
}

// HasPrevious is true if the first element is not at the initial position
func (a WindowConnectionAdapter) HasPrevious(container interface{}) bool {
	w, _ := window(container)
	pos := w.PositionAt(0)
	return pos != nil && !pos.IsInitial()
}

// HasNext implements ConnectionAdapter
func (a WindowConnectionAdapter) HasNext(container interface{}) bool {
	w, _ := window(container)
	return w.More
}

// CursorAt implements ConnectionAdapter
func (a WindowConnectionAdapter) CursorAt(container interface{}, index int) (string, error) {
	w, _ := window(container)
	pos := w.PositionAt(index)
	if pos == nil {
		return "", fmt.Errorf("no scroll position at index %d of window of %d", index, w.Len())
	}
	return strategyOrDefault(a.Strategy).ToCursor(pos)
}

func window(container interface{}) (Window, bool) {
	switch w := container.(type) {
	case Window:
		return w, true
	case *Window:
		if w != nil {
			return *w, true
		}
	}
	return Window{}, false
}

// Supports implements ConnectionAdapter
func (a SliceConnectionAdapter) Supports(container interface{}) bool {
	_, ok := slice(container)
	return ok
}

// Content implements ConnectionAdapter
func (a SliceConnectionAdapter) Content(container interface{}) []interface{} {
	s, _ := slice(container)
	return s.Content
}

// HasPrevious implements ConnectionAdapter
func (a SliceConnectionAdapter) HasPrevious(container interface{}) bool {
	s, _ := slice(container)
	return s.Offset > 0
}

// HasNext implements ConnectionAdapter
func (a SliceConnectionAdapter) HasNext(container interface{}) bool {
	s, _ := slice(container)
	return s.More
}

// CursorAt implements ConnectionAdapter
func (a SliceConnectionAdapter) CursorAt(container interface{}, index int) (string, error) {
	s, _ := slice(container)
	return strategyOrDefault(a.Strategy).ToCursor(s.PositionAt(index))
}

func slice(container interface{}) (Slice, bool) {
	switch s := container.(type) {
	case Slice:
		return s, true
	case *Slice:
		if s != nil {
			return *s, true
		}
	}
	return Slice{}, false
}

func strategyOrDefault(s CursorStrategy) CursorStrategy {
	if s == nil {
		return DefaultCursorStrategy()
	}
	return s
}

// ConnectionFieldVisitor returns a field visitor that wraps the fetchers of connection fields so that a
// container supported by one of the adapters is rendered as edges and pageInfo.  If no adapters are given
// window and slice adapters with the default cursor strategy are used.
func ConnectionFieldVisitor(adapters ...ConnectionAdapter) engine.FieldVisitor {
	if len(adapters) == 0 {
		adapters = []ConnectionAdapter{WindowConnectionAdapter{}, SliceConnectionAdapter{}}
	}
	return connectionVisitor{adapters: adapters}
}

// VisitField implements engine.FieldVisitor
func (v connectionVisitor) VisitField(env engine.FieldWiringEnvironment, fetcher engine.DataFetcher) engine.DataFetcher {
	if !IsConnectionType(env.Schema, env.FieldDefinition.Type) {
		return fetcher
	}
	nonNull := env.FieldDefinition.Type.NonNull
	return engine.DataFetcherFunc(func(de *engine.Environment) (interface{}, error) {
		value, err := fetcher.Get(de)
		if err != nil {
			return nil, err
		}
		if value == nil {
			if nonNull {
				return emptyConnection(), nil
			}
			return nil, nil
		}
		for _, adapter := range v.adapters {
			if adapter.Supports(value) {
				return connection(adapter, value)
			}
		}
		return value, nil // not a container we know about (maybe already a connection)
	})
}

// IsConnectionType is true for a (non-list) type whose name ends in "Connection" with edges and pageInfo fields
func IsConnectionType(schema *ast.Schema, t *ast.Type) bool {
	if t == nil || t.Elem != nil || !strings.HasSuffix(t.NamedType, connectionSuffix) {
		return false
	}
	def := schema.Types[t.NamedType]
	return def != nil && def.Fields.ForName("edges") != nil && def.Fields.ForName("pageInfo") != nil
}

// NodeTypeName returns the name of the type of the nodes of a connection type (ie without the suffix)
func NodeTypeName(connectionType string) string {
	return strings.TrimSuffix(connectionType, connectionSuffix)
}

func connection(adapter ConnectionAdapter, container interface{}) (map[string]interface{}, error) {
	content := adapter.Content(container)
	edges := make([]interface{}, 0, len(content))
	var startCursor, endCursor interface{}
	for i, node := range content {
		cursor, err := adapter.CursorAt(container, i)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			startCursor = cursor
		}
		endCursor = cursor
		edges = append(edges, map[string]interface{}{"cursor": cursor, "node": node})
	}
	return map[string]interface{}{
		"edges": edges,
		"nodes": content,
		"pageInfo": map[string]interface{}{
			"hasPreviousPage": adapter.HasPrevious(container),
			"hasNextPage":     adapter.HasNext(container),
			"startCursor":     startCursor,
			"endCursor":       endCursor,
		},
	}, nil
}

func emptyConnection() map[string]interface{} {
	return map[string]interface{}{
		"edges": []interface{}{},
		"nodes": []interface{}{},
		"pageInfo": map[string]interface{}{
			"hasPreviousPage": false,
			"hasNextPage":     false,
			"startCursor":     nil,
			"endCursor":       nil,
		},
	}
}
