package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moviehub/notify/internal/auth"
	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
)

// Query type names the registry knows at startup.
const (
	QueryBirthdayToday = "birthday_today"
	QueryExplicitList  = "explicit_list"
)

// NewDefaultRegistry builds the registry with the standard fetchers.
func NewDefaultRegistry(users auth.Service) *Registry {
	r := NewRegistry()
	r.Register(QueryBirthdayToday, &BirthdayTodayFetcher{Users: users, Now: time.Now})
	r.Register(QueryExplicitList, &ExplicitListFetcher{})
	return r
}

// BirthdayTodayFetcher pages through users whose birthday falls on the
// current UTC date.
type BirthdayTodayFetcher struct {
	Users auth.Service
	Now   func() time.Time
}

func (f *BirthdayTodayFetcher) Fetch(_ models.JSONMap, batchSize int) (Batcher, error) {
	today := f.Now().UTC()
	month, day := int(today.Month()), today.Day()

	return &batchFunc{
		size: batchSize,
		fetch: func(ctx context.Context, page int) ([]uuid.UUID, error) {
			return f.Users.GetUsersByBirthday(ctx, month, day, page, batchSize)
		},
	}, nil
}

// ExplicitListFetcher serves a subscriber list stored in the query params
// under "subscribers", sliced into batches.
type ExplicitListFetcher struct{}

func (f *ExplicitListFetcher) Fetch(params models.JSONMap, batchSize int) (Batcher, error) {
	raw, ok := params["subscribers"]
	if !ok {
		return nil, errs.Validation("subscriber_query_params", "subscribers list is required")
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscribers param: %w", err)
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(encoded, &ids); err != nil {
		return nil, errs.Validation("subscriber_query_params", "subscribers must be a list of UUIDs")
	}

	return &batchFunc{
		size: batchSize,
		fetch: func(_ context.Context, page int) ([]uuid.UUID, error) {
			start := (page - 1) * batchSize
			if start >= len(ids) {
				return nil, nil
			}
			end := start + batchSize
			if end > len(ids) {
				end = len(ids)
			}
			return ids[start:end], nil
		},
	}, nil
}
