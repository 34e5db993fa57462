package field

// tag.go handles extracting info from the "graphql:" tag string (struct field metadata)

import (
	"fmt"
	"strings"
)

// GetTagInfo extracts the GraphQL property name and options from a field's tag (if any).
// The tag is a comma-separated list starting with the name, optionally followed by a description
// after a # character, eg `graphql:"title,nullable # the title of the book"`.
// If the tag just contains a dash (-) then nil is returned (no error).  If the tag string is empty
// the returned Info is not nil but the Name field is empty.
func GetTagInfo(tag string) (*Info, error) {
	if strings.TrimSpace(tag) == "-" {
		return nil, nil // this field is to be ignored
	}
	var description string
	if i := strings.IndexByte(tag, '#'); i >= 0 {
		description = strings.TrimSpace(tag[i+1:])
		tag = tag[:i]
	}
	fieldInfo := &Info{Description: description}
	for i, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if i == 0 {
			if strings.ContainsAny(part, " \t()") {
				return nil, fmt.Errorf("invalid name %q in tag %q", part, tag)
			}
			fieldInfo.Name = part
			continue
		}
		switch part {
		case "":
			// ignore empty sections
		case "nullable":
			fieldInfo.Nullable = true
		default:
			return nil, fmt.Errorf("unknown option %q in %q", part, tag)
		}
	}
	return fieldInfo, nil
}
