package engine

// execute.go runs the selection sets of an operation, calling data fetchers and completing their values

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/dolmen-go/jsonmap"
	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/sync/errgroup"
)

type (
	// execution controls an operation (query/mutation/subscription) of a GraphQL request
	execution struct {
		s       *Service
		request graphql.ExecutionRequest
		doc     *ast.QueryDocument
		op      *ast.OperationDefinition
		vars    map[string]interface{} // variables valid for this op (coerced from the request)

		mu     sync.Mutex
		errors []graphql.ResponseError
	}

	// fieldGroup is the fields of a selection set with the same response key (name or alias)
	fieldGroup struct {
		key    string
		fields []*ast.Field
	}
)

var (
	schemaFieldDef = &ast.FieldDefinition{Name: "__schema", Type: ast.NonNullNamedType("__Schema", nil)}
	typeFieldDef   = &ast.FieldDefinition{
		Name: "__type",
		Type: ast.NamedType("__Type", nil),
		Arguments: ast.ArgumentDefinitionList{
			{Name: "name", Type: ast.NonNullNamedType("String", nil)},
		},
	}
)

// run executes the operation's selection set against the root type
func (e *execution) run(ctx context.Context, root *ast.Definition, serial bool) graphql.Response {
	data, propagate := e.executeSelectionSet(ctx, root, e.s.rootValue, e.op.SelectionSet, nil, serial)
	r := graphql.Response{DataPresent: true, Errors: e.sortedErrors()}
	if !propagate {
		r.Data = data
	}
	return r
}

// executeSelectionSet resolves the fields of an object.  Fields are resolved concurrently unless serial is set.
// Returns a jsonmap.Ordered with an entry for each response key in the order of the query.
// The 2nd return value is true if a non-null field is null so the whole object must be null.
func (e *execution) executeSelectionSet(ctx context.Context, objectType *ast.Definition, source interface{},
	set ast.SelectionSet, path []interface{}, serial bool,
) (jsonmap.Ordered, bool) {
	groups := e.collectFields(objectType, set)
	values := make([]interface{}, len(groups))
	propagate := make([]bool, len(groups))
	resolve := func(i int) {
		values[i], propagate[i] = e.resolveField(ctx, objectType, source, groups[i].fields, appendPath(path, groups[i].key))
	}

	if serial || len(groups) < 2 {
		for i := range groups {
			resolve(i)
		}
	} else {
		var g errgroup.Group
		if e.s.maxConcurrency > 0 {
			g.SetLimit(e.s.maxConcurrency)
		}
		for i := range groups {
			i := i
			g.Go(func() error {
				resolve(i)
				return nil
			})
		}
		_ = g.Wait() // resolve never returns an error - they are recorded in the execution
	}

	r := jsonmap.Ordered{
		Data:  make(map[string]interface{}, len(groups)),
		Order: make([]string, 0, len(groups)),
	}
	for i, group := range groups {
		if propagate[i] {
			return jsonmap.Ordered{}, true
		}
		r.Order = append(r.Order, group.key)
		r.Data[group.key] = values[i]
	}
	return r, false
}

// collectFields groups the fields of a selection set (including those of applicable fragments) by response key
func (e *execution) collectFields(objectType *ast.Definition, set ast.SelectionSet) []*fieldGroup {
	var groups []*fieldGroup
	index := make(map[string]*fieldGroup)
	visited := make(map[string]bool)

	var collect func(set ast.SelectionSet)
	collect = func(set ast.SelectionSet) {
		for _, s := range set {
			switch sel := s.(type) {
			case *ast.Field:
				if directiveBypass(sel.Directives, e.vars) {
					continue
				}
				key := sel.Alias
				if key == "" {
					key = sel.Name
				}
				if g, ok := index[key]; ok {
					g.fields = append(g.fields, sel)
					continue
				}
				g := &fieldGroup{key: key, fields: []*ast.Field{sel}}
				index[key] = g
				groups = append(groups, g)

			case *ast.InlineFragment:
				if directiveBypass(sel.Directives, e.vars) || !e.typeApplies(objectType, sel.TypeCondition) {
					continue
				}
				collect(sel.SelectionSet)

			case *ast.FragmentSpread:
				if directiveBypass(sel.Directives, e.vars) || visited[sel.Name] {
					continue
				}
				visited[sel.Name] = true
				fragment := sel.Definition
				if fragment == nil {
					fragment = e.doc.Fragments.ForName(sel.Name)
				}
				if fragment == nil || !e.typeApplies(objectType, fragment.TypeCondition) {
					continue
				}
				collect(fragment.SelectionSet)
			}
		}
	}
	collect(set)
	return groups
}

// typeApplies checks if a fragment with a type condition applies to an object type
func (e *execution) typeApplies(objectType *ast.Definition, condition string) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	for _, t := range e.s.schema.ast.PossibleTypes[condition] {
		if t.Name == objectType.Name {
			return true
		}
	}
	return false
}

// resolveField calls the data fetcher of a field and completes the value
// Returns the value and true if it is null but the field is non-null (so the parent must be null).
func (e *execution) resolveField(ctx context.Context, objectType *ast.Definition, source interface{},
	fields []*ast.Field, path []interface{},
) (interface{}, bool) {
	astField := fields[0]
	var fetcher DataFetcher
	var fieldDef *ast.FieldDefinition

	switch astField.Name {
	case "__typename": // __typename is a special introspection field (see GraphQL spec)
		return objectType.Name, false

	case "__schema", "__type":
		if objectType.Name != e.s.schema.ast.Query.Name {
			break
		}
		if e.s.noIntrospection {
			e.addErrors(e.locate(graphql.ResponseError{
				Message:        "introspection has been disabled",
				Classification: graphql.ValidationError,
			}, fields, path))
			return nil, astField.Name == "__schema"
		}
		fieldDef, fetcher = schemaFieldDef, introspectionSchema
		if astField.Name == "__type" {
			fieldDef, fetcher = typeFieldDef, introspectionType
		}
	}
	if fieldDef == nil {
		fieldDef = objectType.Fields.ForName(astField.Name)
		if fieldDef == nil {
			e.addErrors(e.locate(graphql.ResponseError{
				Message:        fmt.Sprintf("field %q not found in type %q", astField.Name, objectType.Name),
				Classification: graphql.ValidationError,
			}, fields, path))
			return nil, false
		}
		fetcher = e.s.schema.DataFetcher(objectType.Name, fieldDef.Name)
		if fetcher == nil {
			fetcher = PropertyFetcher
		}
	}

	env := &Environment{
		Context:         ctx,
		Source:          source,
		Arguments:       argumentValues(fieldDef.Arguments, astField.Arguments, e.vars),
		Field:           astField,
		Fields:          fields,
		FieldDefinition: fieldDef,
		ParentType:      objectType,
		Schema:          e.s.schema.ast,
		Operation:       e.op,
		Variables:       e.vars,
		Path:            path,
		RequestID:       e.request.ID,
		Locale:          e.request.Locale,
	}
	if err := ctx.Err(); err != nil {
		e.addErrors(e.locate(graphql.ResponseError{
			Message:        "execution aborted: " + err.Error(),
			Classification: graphql.ExecutionAborted,
		}, fields, path))
		return nil, fieldDef.Type.NonNull
	}
	value, err := callFetcher(fetcher, env)
	if err != nil {
		e.fetchError(err, env)
		return nil, fieldDef.Type.NonNull
	}
	return e.completeValue(ctx, fieldDef.Type, fields, value, path)
}

// callFetcher calls a data fetcher converting any panic to an (internal) error
func callFetcher(fetcher DataFetcher, env *Environment) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("internal error: panic %v", r)
		}
	}()
	return fetcher.Get(env)
}

// completeValue turns the value from a fetcher into a value for the response according to the field type.
// The 2nd return value is true if the type is non-null but the value is null (or failed).
func (e *execution) completeValue(ctx context.Context, typ *ast.Type, fields []*ast.Field, value interface{},
	path []interface{},
) (interface{}, bool) {
	if !typ.NonNull {
		r, _ := e.completeNullable(ctx, typ, fields, value, path)
		return r, false
	}
	nullable := *typ
	nullable.NonNull = false
	r, failed := e.completeNullable(ctx, &nullable, fields, value, path)
	if failed {
		return nil, true // error already recorded
	}
	if r == nil {
		e.addErrors(e.locate(graphql.ResponseError{
			Message: fmt.Sprintf("The field at path '%s' was declared as a non null type, but the code "+
				"involved in retrieving data has wrongly returned a null value.", pathString(path)),
			Classification: graphql.NullValueInNonNullableField,
		}, fields, path))
		return nil, true
	}
	return r, false
}

// completeNullable completes a value of a nullable type.
// The 2nd return value is true if the value is null because of an (already recorded) error.
func (e *execution) completeNullable(ctx context.Context, typ *ast.Type, fields []*ast.Field, value interface{},
	path []interface{},
) (interface{}, bool) {
	if isNil(value) {
		return nil, false
	}

	if typ.Elem != nil {
		v := reflect.ValueOf(value)
		for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			e.addErrors(e.locate(graphql.ResponseError{
				Message:        fmt.Sprintf("expected a list for field %q but got %T", fields[0].Name, value),
				Classification: graphql.DataFetchingException,
			}, fields, path))
			return nil, true
		}
		results := make([]interface{}, 0, v.Len()) // to distinguish empty list from nil
		for i := 0; i < v.Len(); i++ {
			r, propagate := e.completeValue(ctx, typ.Elem, fields, v.Index(i).Interface(), appendPath(path, i))
			if propagate {
				return nil, true
			}
			results = append(results, r)
		}
		return results, false
	}

	def := e.s.schema.ast.Types[typ.NamedType]
	if def == nil {
		e.addErrors(e.locate(graphql.ResponseError{
			Message:        fmt.Sprintf("unknown type %q", typ.NamedType),
			Classification: graphql.ValidationError,
		}, fields, path))
		return nil, true
	}
	switch def.Kind {
	case ast.Scalar, ast.Enum:
		r, err := serializeLeaf(def, value)
		if err != nil {
			e.addErrors(e.locate(graphql.ResponseError{
				Message:        err.Error(),
				Classification: graphql.DataFetchingException,
			}, fields, path))
			return nil, true
		}
		return r, false

	case ast.Interface, ast.Union:
		objectType, err := e.resolveType(ctx, def, value)
		if err != nil {
			e.addErrors(e.locate(graphql.ResponseError{
				Message:        err.Error(),
				Classification: graphql.DataFetchingException,
			}, fields, path))
			return nil, true
		}
		def = objectType
	}

	var set ast.SelectionSet
	for _, f := range fields {
		set = append(set, f.SelectionSet...)
	}
	r, propagate := e.executeSelectionSet(ctx, def, value, set, path, e.s.noConcurrency)
	if propagate {
		return nil, true
	}
	return r, false
}

// resolveType finds the object type of a value of an interface or union type
func (e *execution) resolveType(ctx context.Context, abstract *ast.Definition, value interface{}) (*ast.Definition, error) {
	var name string
	if resolver := e.s.schema.typeResolvers[abstract.Name]; resolver != nil {
		var err error
		if name, err = resolver(ctx, value, abstract); err != nil {
			return nil, fmt.Errorf("%w resolving type of %s", err, abstract.Name)
		}
	} else if namer, ok := value.(TypeNamer); ok {
		name = namer.GraphQLTypeName()
	} else if m, ok := value.(map[string]interface{}); ok {
		name, _ = m["__typename"].(string)
	} else {
		t := reflect.TypeOf(value)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		name = t.Name()
	}
	for _, possible := range e.s.schema.ast.PossibleTypes[abstract.Name] {
		if possible.Name == name {
			return possible, nil
		}
	}
	return nil, fmt.Errorf("could not resolve the type of %T to a possible type of %s (got %q)", value, abstract.Name, name)
}

// fetchError converts an error from a data fetcher to GraphQL error(s) and records them
func (e *execution) fetchError(err error, env *Environment) {
	e.s.log.Debug("data fetcher error",
		abstractlogger.String("id", e.request.ID),
		abstractlogger.String("path", pathString(env.Path)),
		abstractlogger.Error(err),
	)
	var errs []graphql.ResponseError
	for _, resolver := range e.s.resolvers {
		if errs = resolver(err, env); len(errs) > 0 {
			break
		}
	}
	if len(errs) == 0 {
		errs = []graphql.ResponseError{ToResponseError(err)}
	}
	for i := range errs {
		errs[i] = e.locate(errs[i], env.Fields, env.Path)
	}
	e.addErrors(errs...)
}

// ToResponseError converts a Go error to a GraphQL error.  The classification is taken from the error if it
// is Classified, otherwise it is INTERNAL_ERROR.
func ToResponseError(err error) graphql.ResponseError {
	var re graphql.ResponseError
	if errors.As(err, &re) {
		return re
	}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return graphql.FromGQLError(gqlErr, graphql.DataFetchingException)
	}
	r := graphql.ResponseError{Message: err.Error(), Classification: graphql.InternalError}
	var classified graphql.Classified
	if errors.As(err, &classified) {
		r.Classification = classified.ErrorClassification()
	}
	return r
}

// locate fills in the path and location of an error (if not already set)
func (e *execution) locate(r graphql.ResponseError, fields []*ast.Field, path []interface{}) graphql.ResponseError {
	if r.ParsedPath == nil {
		r.ParsedPath = append([]interface{}{}, path...)
	}
	if r.Locations == nil && len(fields) > 0 && fields[0].Position != nil {
		r.Locations = []graphql.SourceLocation{{Line: fields[0].Position.Line, Column: fields[0].Position.Column}}
	}
	return r
}

func (e *execution) addErrors(errs ...graphql.ResponseError) {
	e.mu.Lock()
	e.errors = append(e.errors, errs...)
	e.mu.Unlock()
}

// sortedErrors returns the errors in a repeatable order (fields may be resolved concurrently)
func (e *execution) sortedErrors() []graphql.ResponseError {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errors) == 0 {
		return nil
	}
	r := append([]graphql.ResponseError{}, e.errors...)
	sort.SliceStable(r, func(i, j int) bool {
		return r[i].Path() < r[j].Path()
	})
	return r
}

// argumentValues gets the values of the arguments of a field, using defaults for those not supplied
func argumentValues(defs ast.ArgumentDefinitionList, args ast.ArgumentList, vars map[string]interface{}) map[string]interface{} {
	r := make(map[string]interface{}, len(defs))
	for _, def := range defs {
		arg := args.ForName(def.Name)
		if arg != nil && arg.Value != nil {
			if arg.Value.Kind == ast.Variable {
				if _, ok := vars[arg.Value.Raw]; !ok {
					arg = nil // variable not supplied so use default (if any)
				}
			}
		}
		if arg != nil && arg.Value != nil {
			if v, err := arg.Value.Value(vars); err == nil {
				r[def.Name] = v
			}
			continue
		}
		if def.DefaultValue != nil {
			if v, err := def.DefaultValue.Value(vars); err == nil {
				r[def.Name] = v
			}
		}
	}
	return r
}

// serializeLeaf converts a scalar or enum value for the response
func serializeLeaf(def *ast.Definition, value interface{}) (interface{}, error) {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	value = v.Interface()
	if def.Kind == ast.Enum {
		return serializeEnum(def, v)
	}

	switch def.Name {
	case "Int":
		switch {
		case v.CanInt():
			return v.Int(), nil
		case v.CanUint():
			return int64(v.Uint()), nil
		case v.CanFloat() && v.Float() == math.Trunc(v.Float()):
			return int64(v.Float()), nil
		}
		return nil, fmt.Errorf("cannot use %v (%T) as Int", value, value)
	case "Float":
		switch {
		case v.CanFloat():
			return v.Float(), nil
		case v.CanInt():
			return float64(v.Int()), nil
		case v.CanUint():
			return float64(v.Uint()), nil
		}
		return nil, fmt.Errorf("cannot use %v (%T) as Float", value, value)
	case "Boolean":
		if v.Kind() == reflect.Bool {
			return v.Bool(), nil
		}
		return nil, fmt.Errorf("cannot use %v (%T) as Boolean", value, value)
	case "String", "ID":
		if v.Kind() == reflect.String {
			return v.String(), nil
		}
		if v.CanInt() {
			return strconv.FormatInt(v.Int(), 10), nil
		}
		if v.CanUint() {
			return strconv.FormatUint(v.Uint(), 10), nil
		}
		if s, ok := textValue(value); ok {
			return s, nil
		}
		if def.Name == "String" && (v.CanFloat() || v.Kind() == reflect.Bool) {
			return fmt.Sprint(value), nil
		}
		return nil, fmt.Errorf("cannot use %v (%T) as %s", value, value, def.Name)
	}

	// custom scalar
	if _, ok := value.(json.Marshaler); ok {
		return value, nil
	}
	if s, ok := textValue(value); ok {
		return s, nil
	}
	return value, nil
}

// textValue gets a string from a type implementing encoding.TextMarshaler or fmt.Stringer
func textValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case encoding.TextMarshaler:
		if buf, err := v.MarshalText(); err == nil {
			return string(buf), true
		}
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

// serializeEnum gets the enum value name from a string (or string-like) value or an integer index
func serializeEnum(def *ast.Definition, v reflect.Value) (interface{}, error) {
	var name string
	switch {
	case v.Kind() == reflect.String:
		name = v.String()
	case v.CanInt() || v.CanUint():
		idx := int(v.Convert(reflect.TypeOf(0)).Int())
		if idx < 0 || idx >= len(def.EnumValues) {
			return nil, fmt.Errorf("enum %s index %d out of range", def.Name, idx)
		}
		return def.EnumValues[idx].Name, nil
	default:
		s, ok := textValue(v.Interface())
		if !ok {
			return nil, fmt.Errorf("invalid value %v (%T) for enum %s", v.Interface(), v.Interface(), def.Name)
		}
		name = s
	}
	if def.EnumValues.ForName(name) == nil {
		return nil, fmt.Errorf("%q is not a value of enum %s", name, def.Name)
	}
	return name, nil
}

// isNil is true for nil and nil values of pointer, map, slice, interface, func and chan types
func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// appendPath makes a new path (so paths of different fields never share an array)
func appendPath(path []interface{}, segment interface{}) []interface{} {
	r := make([]interface{}, len(path)+1)
	copy(r, path)
	r[len(path)] = segment
	return r
}

func pathString(path []interface{}) string {
	return graphql.ResponseError{ParsedPath: path}.Path()
}
