package filter

import (
	"context"

	"searchcore/internal/model"
	"searchcore/internal/repository"
)

// MemoryEngine evaluates filters by scanning the repository. Fine for the
// embedded mode and tests; the Postgres engine covers indexed datasets.
type MemoryEngine struct {
	repo repository.PropertyRepository
}

var _ Engine = (*MemoryEngine)(nil)

// NewMemoryEngine creates a scan-based engine over the repository.
func NewMemoryEngine(repo repository.PropertyRepository) *MemoryEngine {
	return &MemoryEngine{repo: repo}
}

// Match implements Engine.
func (e *MemoryEngine) Match(ctx context.Context, filters *model.FilterSet) (map[string]struct{}, error) {
	records, err := e.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if Matches(rec, filters) {
			out[rec.ID] = struct{}{}
		}
	}
	return out, nil
}
