package memory

// executors.go has views of a repository that implement the predicate and reactive executors

import (
	"context"

	"github.com/andrewwphillips/gqlkit/data/pagination"
	"github.com/andrewwphillips/gqlkit/data/query"
)

type (
	// PredicateRepository runs predicate queries over a Repository
	PredicateRepository struct{ *Repository }

	// ReactiveRepository runs example queries over a Repository sending results on channels
	ReactiveRepository struct{ *Repository }

	// ReactivePredicateRepository runs predicate queries over a Repository sending results on channels
	ReactivePredicateRepository struct{ *Repository }
)

// Predicates returns the predicate executor for the repository
func (r *Repository) Predicates() PredicateRepository {
	return PredicateRepository{r}
}

// Reactive returns the reactive example executor for the repository
func (r *Repository) Reactive() ReactiveRepository {
	return ReactiveRepository{r}
}

// ReactivePredicates returns the reactive predicate executor for the repository
func (r *Repository) ReactivePredicates() ReactivePredicateRepository {
	return ReactivePredicateRepository{r}
}

// FindOne implements query.PredicateExecutor
func (r PredicateRepository) FindOne(ctx context.Context, p query.Predicate, spec query.FetchSpec) (interface{}, error) {
	spec.Limit = 1
	list, err := r.findAll(ctx, predicateMatch(p), spec)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// FindAll implements query.PredicateExecutor
func (r PredicateRepository) FindAll(ctx context.Context, p query.Predicate, spec query.FetchSpec) ([]interface{}, error) {
	return r.findAll(ctx, predicateMatch(p), spec)
}

// Scroll implements query.PredicateExecutor
func (r PredicateRepository) Scroll(ctx context.Context, p query.Predicate, spec query.FetchSpec) (pagination.Window, error) {
	return r.scroll(ctx, predicateMatch(p), spec)
}

// FindOne implements query.ReactiveExampleExecutor
func (r ReactiveRepository) FindOne(ctx context.Context, example query.Example, spec query.FetchSpec) <-chan query.Result {
	spec.Limit = 1
	return stream(ctx, func() ([]interface{}, error) { return r.findAll(ctx, exampleMatch(example), spec) })
}

// FindAll implements query.ReactiveExampleExecutor
func (r ReactiveRepository) FindAll(ctx context.Context, example query.Example, spec query.FetchSpec) <-chan query.Result {
	return stream(ctx, func() ([]interface{}, error) { return r.findAll(ctx, exampleMatch(example), spec) })
}

// Scroll implements query.ReactiveExampleExecutor
func (r ReactiveRepository) Scroll(ctx context.Context, example query.Example, spec query.FetchSpec) <-chan query.WindowResult {
	return streamWindow(ctx, func() (pagination.Window, error) { return r.scroll(ctx, exampleMatch(example), spec) })
}

// FindOne implements query.ReactivePredicateExecutor
func (r ReactivePredicateRepository) FindOne(ctx context.Context, p query.Predicate, spec query.FetchSpec) <-chan query.Result {
	spec.Limit = 1
	return stream(ctx, func() ([]interface{}, error) { return r.findAll(ctx, predicateMatch(p), spec) })
}

// FindAll implements query.ReactivePredicateExecutor
func (r ReactivePredicateRepository) FindAll(ctx context.Context, p query.Predicate, spec query.FetchSpec) <-chan query.Result {
	return stream(ctx, func() ([]interface{}, error) { return r.findAll(ctx, predicateMatch(p), spec) })
}

// Scroll implements query.ReactivePredicateExecutor
func (r ReactivePredicateRepository) Scroll(ctx context.Context, p query.Predicate, spec query.FetchSpec) <-chan query.WindowResult {
	return streamWindow(ctx, func() (pagination.Window, error) { return r.scroll(ctx, predicateMatch(p), spec) })
}

// stream sends the results of find on a channel, stopping early if the context is cancelled
func stream(ctx context.Context, find func() ([]interface{}, error)) <-chan query.Result {
	ch := make(chan query.Result)
	go func() {
		defer close(ch)
		list, err := find()
		if err != nil {
			select {
			case ch <- query.Result{Err: err}:
			case <-ctx.Done():
			}
			return
		}
		for _, v := range list {
			select {
			case ch <- query.Result{Value: v}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func streamWindow(ctx context.Context, find func() (pagination.Window, error)) <-chan query.WindowResult {
	ch := make(chan query.WindowResult, 1)
	go func() {
		defer close(ch)
		w, err := find()
		ch <- query.WindowResult{Window: w, Err: err}
	}()
	return ch
}
