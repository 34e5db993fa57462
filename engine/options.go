package engine

// options.go handles setting of service options
//
// Options are closures with the signature func(*Service) passed as the last (variadic) parameter of New().
// Each option function below captures its parameter(s) in the returned closure which SetOptions() then runs.
// If the same option function is used more than once then only the last use has any effect.

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/jensneuse/abstractlogger"
)

const defaultCacheSize = 100 // number of parsed query documents kept

// SetOptions takes a slice of service options (closures) and executes them
func (s *Service) SetOptions(options ...func(*Service)) {
	for _, option := range options {
		option(s)
	}

	// Set any options that still have their unset (zero) value
	if s.log == nil {
		s.log = abstractlogger.NoopLogger
	}
	if s.cacheSize < 0 {
		s.cacheSize = defaultCacheSize
	}
	if s.cacheSize > 0 && s.cache == nil {
		s.cache, _ = lru.New(s.cacheSize) // only fails for size <= 0
	}
}

// NoConcurrency turns off concurrent execution of query fields
func NoConcurrency(on bool) func(*Service) {
	return func(s *Service) {
		s.noConcurrency = on
	}
}

// MaxConcurrency limits how many fields of a selection set are fetched at the same time (0 = no limit)
func MaxConcurrency(n int) func(*Service) {
	return func(s *Service) {
		s.maxConcurrency = n
	}
}

// NoIntrospection turns off __schema and __type queries
func NoIntrospection(on bool) func(*Service) {
	return func(s *Service) {
		s.noIntrospection = on
	}
}

// DocumentCacheSize sets how many parsed and validated documents are cached (0 turns off caching)
func DocumentCacheSize(size int) func(*Service) {
	return func(s *Service) {
		s.cacheSize = size
	}
}

// Logger sets the logger (default is no logging)
func Logger(log abstractlogger.Logger) func(*Service) {
	return func(s *Service) {
		s.log = log
	}
}

// ExceptionResolvers adds resolvers that convert data fetcher errors to GraphQL errors.
// They are tried in order, the first that returns errors wins.
func ExceptionResolvers(resolvers ...ExceptionResolver) func(*Service) {
	return func(s *Service) {
		s.resolvers = append(s.resolvers, resolvers...)
	}
}

// RootValue sets the source value passed to the fetchers of top level fields
func RootValue(v interface{}) func(*Service) {
	return func(s *Service) {
		s.rootValue = v
	}
}
