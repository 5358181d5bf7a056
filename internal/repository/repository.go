// Package repository exposes the property store the engine reads from.
// Property CRUD itself lives elsewhere; the engine only fetches records and
// consumes the mutation event stream.
package repository

import (
	"context"

	"searchcore/internal/model"
)

// PropertyRepository is the read-side collaborator contract.
type PropertyRepository interface {
	// GetByID returns nil, nil when the property does not exist.
	GetByID(ctx context.Context, id string) (*model.PropertyRecord, error)

	// GetByIDs fetches the subset of ids that exist.
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.PropertyRecord, error)

	// All returns every record, including unpublished and soft-deleted
	// ones; it feeds the reindexing pipeline and the in-memory filter
	// engine, which apply their own gates.
	All(ctx context.Context) ([]*model.PropertyRecord, error)

	// Changes streams mutation events for cache invalidation and
	// reindex triggering. The channel is closed when the repository
	// shuts down.
	Changes() <-chan model.ChangeEvent
}

// FeedbackSink records search activity for later relevance tuning.
type FeedbackSink interface {
	LogSearch(ctx context.Context, searchID, query string, locale model.Locale, resultCount int, tookMs int64) error
	LogFeedback(ctx context.Context, searchID, propertyID, action string) error
}
