package graphqltest

// documents.go has sources of named request documents (and fragments), eg files in a test directory

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultDocumentLocation is the directory searched by the default document source
const DefaultDocumentLocation = "graphql-test"

// DocumentExtensions are tried in turn when looking for a document file
var DocumentExtensions = []string{".graphql", ".gql"}

type (
	// DocumentSource finds the text of a document by name
	DocumentSource interface {
		Document(name string) (string, error)
	}

	// DocumentSourceFunc allows a function to be used as a DocumentSource
	DocumentSourceFunc func(name string) (string, error)

	// fileDocumentSource looks for files in directories of a file system
	fileDocumentSource struct {
		fsys      fs.FS
		locations []string
	}

	// cachingDocumentSource remembers recently used documents of another source
	cachingDocumentSource struct {
		source DocumentSource
		cache  *lru.Cache
	}
)

func (f DocumentSourceFunc) Document(name string) (string, error) { return f(name) }

// NewFileDocumentSource creates a source that looks in the locations (directories) of fsys for a file
// with the name and one of the DocumentExtensions.  If no locations are given "graphql-test" is used.
func NewFileDocumentSource(fsys fs.FS, locations ...string) DocumentSource {
	if len(locations) == 0 {
		locations = []string{DefaultDocumentLocation}
	}
	return fileDocumentSource{fsys: fsys, locations: locations}
}

func (s fileDocumentSource) Document(name string) (string, error) {
	for _, location := range s.locations {
		for _, ext := range DocumentExtensions {
			buf, err := fs.ReadFile(s.fsys, path.Join(location, name+ext))
			if err == nil {
				return string(buf), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w reading document %q", err, name)
			}
		}
	}
	return "", fmt.Errorf("document %q not found in %v", name, s.locations)
}

// NewCachingDocumentSource caches up to size documents of the source (only documents that are found are cached)
func NewCachingDocumentSource(source DocumentSource, size int) DocumentSource {
	cache, err := lru.New(size)
	if err != nil {
		panic(err) // size is not positive
	}
	return cachingDocumentSource{source: source, cache: cache}
}

func (s cachingDocumentSource) Document(name string) (string, error) {
	if v, ok := s.cache.Get(name); ok {
		return v.(string), nil
	}
	doc, err := s.source.Document(name)
	if err != nil {
		return "", err
	}
	s.cache.Add(name, doc)
	return doc, nil
}
