package field_test

import (
	"reflect"
	"testing"

	"github.com/andrewwphillips/gqlkit/internal/field"
)

type (
	Author struct {
		Name    string
		private int
	}
	Audit struct {
		Created string `graphql:"createdAt"`
		Version int
	}
	Book struct {
		Audit
		ID      int `graphql:"id"`
		Title   string
		Author  *Author
		Tags    []string
		Skipped string `graphql:"-"`
		Version int    `graphql:"edition"`
	}
)

var tagData = map[string]struct {
	in       string
	name     string
	nullable bool
	desc     string
	omitted  bool
	err      bool
}{
	"Empty":       {in: ``},
	"Name":        {in: `title`, name: "title"},
	"NameComma":   {in: `title,`, name: "title"},
	"Nullable":    {in: `title,nullable`, name: "title", nullable: true},
	"DefaultName": {in: `,nullable`, nullable: true},
	"Desc":        {in: `title # the book's title`, name: "title", desc: "the book's title"},
	"Dash":        {in: `-`, omitted: true},
	"BadOption":   {in: `title,bad`, err: true},
	"BadName":     {in: `a(b)`, err: true},
}

func TestGetTagInfo(t *testing.T) {
	for name, data := range tagData {
		got, err := field.GetTagInfo(data.in)
		if data.err {
			Assertf(t, err != nil, "Error   : %12s: expected error got nil", name)
			continue
		}
		Assertf(t, err == nil, "Error   : %12s: expected no error got %v", name, err)
		if data.omitted {
			Assertf(t, got == nil, "Omitted : %12s: expected nil info got %v", name, got)
			continue
		}
		Assertf(t, got.Name == data.name, "Name    : %12s: expected %q got %q", name, data.name, got.Name)
		Assertf(t, got.Nullable == data.nullable, "Nullable: %12s: expected %v got %v", name, data.nullable, got.Nullable)
		Assertf(t, got.Description == data.desc, "Desc    : %12s: expected %q got %q", name, data.desc, got.Description)
	}
}

func TestFields(t *testing.T) {
	fields := field.Fields(reflect.TypeOf(&Book{}))
	for _, name := range []string{"id", "title", "author", "tags", "createdAt", "edition"} {
		_, ok := fields[name]
		Assertf(t, ok, "Fields  : expected property %q", name)
	}
	for _, name := range []string{"skipped", "Skipped", "private"} {
		_, ok := fields[name]
		Assertf(t, !ok, "Fields  : unexpected property %q", name)
	}
	Assertf(t, fields["author"].Nullable, "Fields  : expected author to be nullable")
	Assertf(t, reflect.DeepEqual(fields["createdAt"].Index, []int{0, 0}), "Fields  : promoted index got %v", fields["createdAt"].Index)
}

func TestPathValue(t *testing.T) {
	book := Book{Audit: Audit{Created: "2001"}, Title: "Dune", Author: &Author{Name: "Herbert"}}

	v, ok := field.PathValue(reflect.ValueOf(&book), "author.name")
	Assertf(t, ok && v.Interface() == "Herbert", "PathValue: expected Herbert got %v (%v)", v, ok)

	v, ok = field.PathValue(reflect.ValueOf(book), "createdAt")
	Assertf(t, ok && v.Interface() == "2001", "PathValue: expected 2001 got %v (%v)", v, ok)

	_, ok = field.PathValue(reflect.ValueOf(book), "author.age")
	Assertf(t, !ok, "PathValue: expected no author.age property")

	v, ok = field.PathValue(reflect.ValueOf(Book{}), "author.name")
	Assertf(t, ok && !v.IsValid(), "PathValue: expected invalid value through nil author")

	typ, ok := field.PathType(reflect.TypeOf(Book{}), "author.name")
	Assertf(t, ok && typ.Kind() == reflect.String, "PathType : expected string got %v", typ)
}

func Assertf(t *testing.T, succeeded bool, format string, args ...interface{}) {
	const (
		succeed = "✓" // tick
		failed  = "X"
	)

	t.Helper()
	if !succeeded {
		t.Errorf("%s\t"+format, append([]interface{}{failed}, args...)...)
	} else {
		t.Logf("%s\t"+format, append([]interface{}{succeed}, args...)...)
	}
}
