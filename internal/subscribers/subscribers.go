// Package subscribers resolves a record's subscriber query into batches of
// user ids. Fetchers are registered by query type name; the scheduler
// iterates the batches lazily so large audiences never sit in memory.
package subscribers

import (
	"context"

	"github.com/google/uuid"

	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
)

// DefaultBatchSize is the subscriber fan-out batch size.
const DefaultBatchSize = 100

// Batcher yields subscriber batches. Next returns nil, nil once the query
// is exhausted.
type Batcher interface {
	Next(ctx context.Context) ([]uuid.UUID, error)
}

// Fetcher builds a Batcher for one query type.
type Fetcher interface {
	Fetch(params models.JSONMap, batchSize int) (Batcher, error)
}

// Registry maps query type names to fetchers. It is assembled once at
// startup and read-only afterwards.
type Registry struct {
	fetchers map[string]Fetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register binds a fetcher to a query type name.
func (r *Registry) Register(queryType string, f Fetcher) {
	r.fetchers[queryType] = f
}

// Resolve returns the batch iterator for a record's subscriber query.
func (r *Registry) Resolve(queryType string, params models.JSONMap, batchSize int) (Batcher, error) {
	f, ok := r.fetchers[queryType]
	if !ok {
		return nil, errs.UnknownQueryType(queryType)
	}
	return f.Fetch(params, batchSize)
}

// batchFunc adapts a page-fetching closure into a Batcher. done latches
// once a short or empty page comes back.
type batchFunc struct {
	fetch func(ctx context.Context, page int) ([]uuid.UUID, error)
	page  int
	size  int
	done  bool
}

func (b *batchFunc) Next(ctx context.Context) ([]uuid.UUID, error) {
	if b.done {
		return nil, nil
	}
	b.page++
	ids, err := b.fetch(ctx, b.page)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		b.done = true
		return nil, nil
	}
	if len(ids) < b.size {
		b.done = true
	}
	return ids, nil
}
